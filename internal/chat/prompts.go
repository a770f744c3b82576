package chat

import (
	"encoding/json"
	"strings"

	"github.com/homie43/car-fit-chat-backend/internal/model"
	"github.com/homie43/car-fit-chat-backend/internal/stream"
)

const systemPromptBase = `Ты — ассистент по подбору автомобилей. Помогаешь пользователю выбрать машину: уточняешь пожелания, советуешь варианты, отвечаешь на вопросы про автомобили.

Правила:
- Отвечай на языке пользователя, коротко и по делу.
- Не выдумывай автомобили. Если дан список из каталога, рекомендуй только машины из него.
- Если данных не хватает, задай один уточняющий вопрос.
- Не обсуждай темы, не связанные с подбором автомобиля.`

const preferencesInstruction = `В самом конце ответа добавь служебный блок с накопленными предпочтениями пользователя строго в таком виде:
` + stream.OpenMarker + `{"marka":"...","model":"...","country":"...","color":"...","power":"...","kpp":"...","yearFrom":0,"yearTo":0,"bodyType":"...","budget":0}` + stream.CloseMarker + `
Включай только известные поля. Блок обязателен даже при пустых предпочтениях: тогда пиши ` + stream.OpenMarker + `{}` + stream.CloseMarker + `. Никогда не упоминай этот блок в видимом тексте.`

// buildSystemPrompt assembles the per-turn system prompt: base behavior,
// the current preference snapshot, the grounding block when a search ran,
// and the hidden block contract.
func buildSystemPrompt(prefs model.Preferences, ragCtx string) string {
	var b strings.Builder
	b.WriteString(systemPromptBase)

	if !prefs.IsEmpty() {
		if raw, err := json.Marshal(prefs); err == nil {
			b.WriteString("\n\nИзвестные предпочтения пользователя: ")
			b.Write(raw)
		}
	}

	if ragCtx != "" {
		b.WriteString("\n\n")
		b.WriteString(ragCtx)
	}

	b.WriteString("\n\n")
	b.WriteString(preferencesInstruction)

	return b.String()
}
