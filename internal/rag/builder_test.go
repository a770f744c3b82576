package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/homie43/car-fit-chat-backend/internal/model"
)

type fakeCatalog struct {
	keywordItems    []model.ContextItem
	structuralItems []model.ContextItem
	semanticItems   []model.ContextItem
	err             error

	keywordCalls    int
	structuralCalls int
	semanticCalls   int
	structuralLimit int
}

func (f *fakeCatalog) NormalizeBrand(_ context.Context, name string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return name, nil
}

func (f *fakeCatalog) SearchForContext(_ context.Context, _ model.ContextFilters, _ []string, _ int) ([]model.ContextItem, error) {
	f.keywordCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.keywordItems, nil
}

func (f *fakeCatalog) SearchStructural(_ context.Context, _ model.ContextFilters, limit int) ([]model.ContextItem, error) {
	f.structuralCalls++
	f.structuralLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.structuralItems, nil
}

func (f *fakeCatalog) SearchSemantic(_ context.Context, _ []float32, _ model.ContextFilters, _ int) ([]model.ContextItem, error) {
	f.semanticCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.semanticItems, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func item(marka, mod, variant string, description string) model.ContextItem {
	it := model.ContextItem{Marka: marka, Model: mod, Variant: variant}
	if description != "" {
		it.Description = &description
	}
	return it
}

func toyotaPrefs() model.Preferences {
	return model.Preferences{Marka: model.StringPtr("Toyota")}
}

func TestBuildNoSearchSignal(t *testing.T) {
	cat := &fakeCatalog{}
	b := NewBuilder(cat, nil, 5)

	got, err := b.Build(context.Background(), model.Preferences{Budget: model.IntPtr(2000000)}, nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Performed {
		t.Error("budget alone must not trigger a catalog search")
	}
	if cat.keywordCalls+cat.structuralCalls != 0 {
		t.Error("no catalog call expected without search signal")
	}
}

func TestBuildZeroResultsDistinctFromNoSearch(t *testing.T) {
	cat := &fakeCatalog{}
	b := NewBuilder(cat, nil, 5)

	got, err := b.Build(context.Background(), toyotaPrefs(), nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Performed {
		t.Error("search was performed; zero matches must not look like no search")
	}
	if len(got.Items) != 0 || got.Prompt != "" {
		t.Errorf("expected zero results, got %d items", len(got.Items))
	}
}

func TestBuildMergeOrderAndDedup(t *testing.T) {
	cat := &fakeCatalog{
		keywordItems: []model.ContextItem{
			item("Toyota", "Camry", "VIII", "просторный седан"),
		},
		structuralItems: []model.ContextItem{
			item("Toyota", "Camry", "VIII", "просторный седан"), // duplicate of pass A
			item("Toyota", "Corolla", "XII", ""),
			item("Toyota", "RAV4", "V", "популярный кроссовер"),
		},
	}
	b := NewBuilder(cat, nil, 5)

	got, err := b.Build(context.Background(), toyotaPrefs(), []string{"просторный"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got.Items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(got.Items))
	}
	// Pass A first, then pass B with described items sorted ahead.
	if got.Items[0].Model != "Camry" {
		t.Errorf("first item = %s, keyword pass must lead", got.Items[0].Model)
	}
	if got.Items[1].Model != "RAV4" || got.Items[2].Model != "Corolla" {
		t.Errorf("described structural items must sort before undescribed: %s, %s",
			got.Items[1].Model, got.Items[2].Model)
	}
	if cat.structuralLimit != 10 {
		t.Errorf("structural pass limit = %d, want 2x result limit", cat.structuralLimit)
	}
}

func TestBuildCapsAtLimit(t *testing.T) {
	cat := &fakeCatalog{}
	for i := 0; i < 8; i++ {
		cat.structuralItems = append(cat.structuralItems,
			item("Toyota", fmt.Sprintf("Model%d", i), "base", ""))
	}
	b := NewBuilder(cat, nil, 3)

	got, err := b.Build(context.Background(), toyotaPrefs(), nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Items) != 3 {
		t.Errorf("len(items) = %d, want capped at 3", len(got.Items))
	}
}

func TestBuildSkipsKeywordPassWithoutKeywords(t *testing.T) {
	cat := &fakeCatalog{structuralItems: []model.ContextItem{item("Toyota", "Camry", "VIII", "")}}
	b := NewBuilder(cat, nil, 5)

	if _, err := b.Build(context.Background(), toyotaPrefs(), nil, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cat.keywordCalls != 0 {
		t.Error("keyword pass must be skipped when no keywords were extracted")
	}
}

func TestBuildCatalogFailurePropagates(t *testing.T) {
	cat := &fakeCatalog{err: errors.New("connection refused")}
	b := NewBuilder(cat, nil, 5)

	if _, err := b.Build(context.Background(), toyotaPrefs(), nil, ""); err == nil {
		t.Fatal("catalog failure must propagate as an error")
	}
}

func TestBuildSemanticFallback(t *testing.T) {
	cat := &fakeCatalog{semanticItems: []model.ContextItem{item("Toyota", "Camry", "VIII", "")}}
	b := NewBuilder(cat, fakeEmbedder{}, 5)

	got, err := b.Build(context.Background(), toyotaPrefs(), nil, "надежный семейный седан")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cat.semanticCalls != 1 {
		t.Error("semantic fallback should run when both passes are empty")
	}
	if len(got.Items) != 1 {
		t.Errorf("len(items) = %d, want 1 from semantic pass", len(got.Items))
	}
}

func TestRenderPromptRoundTrip(t *testing.T) {
	for n := 1; n <= 4; n++ {
		var items []model.ContextItem
		for i := 0; i < n; i++ {
			it := item("Toyota", fmt.Sprintf("Model%d", i), "base", "")
			if i%2 == 0 {
				desc := fmt.Sprintf("описание номер %d", i)
				it.Description = &desc
				it.Trims = []string{"Комфорт", "Люкс"}
			}
			items = append(items, it)
		}

		prompt := renderPrompt(items)

		if !strings.Contains(prompt, fmt.Sprintf("%d", n)) {
			t.Errorf("n=%d: header must state the count", n)
		}
		for i, it := range items {
			if !strings.Contains(prompt, it.Marka+" "+it.Model) {
				t.Errorf("n=%d: item %d brand+model missing from prompt", n, i)
			}
			if it.Description != nil && !strings.Contains(prompt, *it.Description) {
				t.Errorf("n=%d: item %d description missing from prompt", n, i)
			}
			if it.YearFrom == nil && !strings.Contains(prompt, "неизвестно") {
				t.Errorf("n=%d: unknown year range must render as неизвестно", n)
			}
		}
		if !strings.Contains(prompt, "только автомобили из этого списка") {
			t.Error("closing instruction missing")
		}
	}
}
