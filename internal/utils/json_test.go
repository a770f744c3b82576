package utils

import "testing"

type intentPayload struct {
	Marka  string `json:"marka"`
	Budget int    `json:"budget"`
}

func TestParseModelJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    intentPayload
		wantErr bool
	}{
		{
			name:  "pure JSON",
			input: `{"marka":"BMW","budget":2000000}`,
			want:  intentPayload{Marka: "BMW", Budget: 2000000},
		},
		{
			name:  "markdown fenced",
			input: "```json\n{\"marka\":\"Toyota\"}\n```",
			want:  intentPayload{Marka: "Toyota"},
		},
		{
			name:  "plain fence",
			input: "```\n{\"marka\":\"Kia\"}\n```",
			want:  intentPayload{Marka: "Kia"},
		},
		{
			name:  "surrounded by prose",
			input: `Вот результат: {"marka":"Audi","budget":1500000} — готово.`,
			want:  intentPayload{Marka: "Audi", Budget: 1500000},
		},
		{
			name:  "trailing comma recovered",
			input: `{"marka":"Skoda","budget":900000,}`,
			want:  intentPayload{Marka: "Skoda", Budget: 900000},
		},
		{
			name:  "braces inside string literal",
			input: `{"marka":"Lada {classic}","budget":300000}`,
			want:  intentPayload{Marka: "Lada {classic}", Budget: 300000},
		},
		{
			name:  "byte order mark and trailing comma",
			input: "\ufeff{\"marka\":\"UAZ\",\"budget\":800000,}",
			want:  intentPayload{Marka: "UAZ", Budget: 800000},
		},
		{
			name:    "empty input",
			input:   "   ",
			wantErr: true,
		},
		{
			name:    "no JSON at all",
			input:   "просто текст без данных",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got intentPayload
			err := ParseModelJSON(tt.input, &got)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
