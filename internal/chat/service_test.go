package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/homie43/car-fit-chat-backend/internal/config"
	"github.com/homie43/car-fit-chat-backend/internal/extract"
	"github.com/homie43/car-fit-chat-backend/internal/llm"
	"github.com/homie43/car-fit-chat-backend/internal/model"
	"github.com/homie43/car-fit-chat-backend/internal/rag"
)

type fakeCompleter struct {
	fragments []string
	err       error
	calls     int
	system    string
}

func (f *fakeCompleter) StreamChat(ctx context.Context, system string, history []llm.Message, user string, onDelta func(string) error) error {
	f.calls++
	f.system = system
	if f.err != nil {
		return f.err
	}
	for _, fr := range f.fragments {
		if err := onDelta(fr); err != nil {
			return err
		}
	}
	return nil
}

type fakePrefStore struct {
	stored    model.Preferences
	saved     *model.Preferences
	deleted   bool
	loadErr   error
	saveCalls int
}

func (f *fakePrefStore) LoadPreferences(ctx context.Context, userID string) (model.Preferences, error) {
	if f.loadErr != nil {
		return model.Preferences{}, f.loadErr
	}
	return f.stored, nil
}

func (f *fakePrefStore) SavePreferences(ctx context.Context, userID string, prefs model.Preferences) error {
	f.saveCalls++
	f.saved = &prefs
	return nil
}

func (f *fakePrefStore) DeletePreferences(ctx context.Context, userID string) error {
	f.deleted = true
	return nil
}

type fakeMessageStore struct {
	saved []model.ChatMessage
}

func (f *fakeMessageStore) SaveMessage(ctx context.Context, msg model.ChatMessage) error {
	f.saved = append(f.saved, msg)
	return nil
}

func (f *fakeMessageStore) History(ctx context.Context, userID string, limit int) ([]model.ChatMessage, error) {
	return nil, nil
}

type fakeBuilder struct {
	ctx   *rag.Context
	err   error
	calls int
}

func (f *fakeBuilder) Build(ctx context.Context, prefs model.Preferences, keywords []string, query string) (*rag.Context, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.ctx != nil {
		return f.ctx, nil
	}
	return &rag.Context{Performed: false}, nil
}

type blockingModerator struct {
	blockText string
}

func (m blockingModerator) Check(ctx context.Context, text string) (bool, error) {
	return !strings.Contains(text, m.blockText), nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(userID string) bool { return false }

func testConfig() config.ChatConfig {
	return config.ChatConfig{
		HistoryDepth:      10,
		ContextLimit:      5,
		YearMin:           1970,
		YearMax:           2039,
		FallbackMessage:   "Извините, я могу помочь только с подбором автомобиля.",
		ModerationMessage: "Сообщение отклонено модерацией.",
		RejectionPhrases:  []string{"извините, я не могу"},
	}
}

func newTestService(cfg config.ChatConfig, completer Completer, builder ContextBuilder, prefs *fakePrefStore, msgs *fakeMessageStore, mod Moderator, lim Limiter) *Service {
	return NewService(cfg,
		extract.NewExtractor(cfg.YearMin, cfg.YearMax),
		builder, completer, mod, prefs, msgs, lim)
}

func TestRespondMergesHiddenPreferences(t *testing.T) {
	cfg := testConfig()
	completer := &fakeCompleter{fragments: []string{
		"Отличный выбор! Рекомендую Toyota Camry.",
		"\n[PREFERENCES]{\"marka\":\"Toyota\",\"yearFrom\":2020}[/PREFERENCES]",
	}}
	prefs := &fakePrefStore{stored: model.Preferences{KPP: model.StringPtr("AT")}}
	msgs := &fakeMessageStore{}
	svc := newTestService(cfg, completer, &fakeBuilder{}, prefs, msgs, nil, nil)

	var streamed strings.Builder
	result, err := svc.Respond(context.Background(), "u1", "Хочу тойоту от 2020 года", func(d string) error {
		streamed.WriteString(d)
		return nil
	})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	if strings.Contains(result.Answer, "[PREFERENCES]") {
		t.Error("hidden block leaked into the answer")
	}
	if strings.Contains(streamed.String(), "[PREFERENCES]") {
		t.Error("hidden block leaked into the stream")
	}
	if !strings.Contains(result.Answer, "Toyota Camry") {
		t.Errorf("answer = %q, want visible text kept", result.Answer)
	}

	if prefs.saved == nil {
		t.Fatal("preferences were not saved")
	}
	if prefs.saved.Marka == nil || *prefs.saved.Marka != "Toyota" {
		t.Error("hidden block marka must be merged")
	}
	if prefs.saved.KPP == nil || *prefs.saved.KPP != "AT" {
		t.Error("stored kpp must survive the merge")
	}
	if prefs.saved.YearFrom == nil || *prefs.saved.YearFrom != 2020 {
		t.Error("hidden block yearFrom must be merged")
	}

	if len(msgs.saved) != 2 {
		t.Fatalf("saved %d messages, want user + assistant", len(msgs.saved))
	}
	if msgs.saved[0].Role != "user" || msgs.saved[1].Role != "assistant" {
		t.Error("messages must be saved in user, assistant order")
	}
}

func TestRespondRejectionFallsBack(t *testing.T) {
	cfg := testConfig()
	completer := &fakeCompleter{fragments: []string{
		"Извините, я не могу помочь с этим вопросом.",
	}}
	prefs := &fakePrefStore{}
	msgs := &fakeMessageStore{}
	svc := newTestService(cfg, completer, &fakeBuilder{}, prefs, msgs, nil, nil)

	var streamed strings.Builder
	result, err := svc.Respond(context.Background(), "u1", "вопрос", func(d string) error {
		streamed.WriteString(d)
		return nil
	})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	if result.Answer != cfg.FallbackMessage {
		t.Errorf("answer = %q, want fallback", result.Answer)
	}
	if strings.Contains(streamed.String(), "не могу помочь с этим") {
		t.Error("refusal text leaked into the stream")
	}
	if len(msgs.saved) != 2 || msgs.saved[1].Content != cfg.FallbackMessage {
		t.Error("fallback must be persisted as the assistant message")
	}
}

func TestRespondRateLimited(t *testing.T) {
	cfg := testConfig()
	completer := &fakeCompleter{fragments: []string{"ответ"}}
	svc := newTestService(cfg, completer, &fakeBuilder{}, &fakePrefStore{}, &fakeMessageStore{}, nil, denyLimiter{})

	_, err := svc.Respond(context.Background(), "u1", "привет", nil)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("error = %v, want ErrRateLimited", err)
	}
	if completer.calls != 0 {
		t.Error("model must not be called for a rate limited request")
	}
}

func TestRespondPreModerationBlocks(t *testing.T) {
	cfg := testConfig()
	completer := &fakeCompleter{fragments: []string{"ответ"}}
	msgs := &fakeMessageStore{}
	svc := newTestService(cfg, completer, &fakeBuilder{}, &fakePrefStore{}, msgs, blockingModerator{blockText: "запрещено"}, nil)

	result, err := svc.Respond(context.Background(), "u1", "это запрещено", nil)
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if result.Answer != cfg.ModerationMessage {
		t.Errorf("answer = %q, want moderation message", result.Answer)
	}
	if completer.calls != 0 {
		t.Error("blocked message must not reach the model")
	}
	if len(msgs.saved) != 2 {
		t.Error("blocked exchange must still be persisted")
	}
}

func TestRespondPostModerationFallsBack(t *testing.T) {
	cfg := testConfig()
	completer := &fakeCompleter{fragments: []string{
		"Могу предложить запрещено хороший вариант.",
	}}
	prefs := &fakePrefStore{}
	msgs := &fakeMessageStore{}
	svc := newTestService(cfg, completer, &fakeBuilder{}, prefs, msgs, blockingModerator{blockText: "запрещено"}, nil)

	result, err := svc.Respond(context.Background(), "u1", "Хочу тойоту", nil)
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	if completer.calls != 1 {
		t.Fatal("the message itself passes moderation, so the model must be called")
	}
	if result.Answer != cfg.FallbackMessage {
		t.Errorf("answer = %q, want fallback after the answer is blocked", result.Answer)
	}
	if len(msgs.saved) != 2 || msgs.saved[1].Content != cfg.FallbackMessage {
		t.Error("the fallback must be persisted as the assistant message")
	}
	if prefs.saveCalls != 1 {
		t.Error("preferences must still be saved for the turn")
	}
}

func TestRespondModelFailureIsFatal(t *testing.T) {
	cfg := testConfig()
	completer := &fakeCompleter{err: errors.New("connection reset")}
	prefs := &fakePrefStore{}
	msgs := &fakeMessageStore{}
	svc := newTestService(cfg, completer, &fakeBuilder{}, prefs, msgs, nil, nil)

	_, err := svc.Respond(context.Background(), "u1", "привет", nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if prefs.saveCalls != 0 {
		t.Error("preferences must not be saved on a failed turn")
	}
	if len(msgs.saved) != 0 {
		t.Error("messages must not be saved on a failed turn")
	}
}

func TestRespondCatalogFailureDegrades(t *testing.T) {
	cfg := testConfig()
	completer := &fakeCompleter{fragments: []string{"Подберу и без каталога."}}
	builder := &fakeBuilder{err: errors.New("db down")}
	svc := newTestService(cfg, completer, builder, &fakePrefStore{}, &fakeMessageStore{}, nil, nil)

	result, err := svc.Respond(context.Background(), "u1", "Хочу тойоту", nil)
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if result.Grounded {
		t.Error("a failed search must surface as not grounded")
	}
	if completer.calls != 1 {
		t.Error("the model call must still happen")
	}
}

func TestRespondGroundingFlowsIntoPrompt(t *testing.T) {
	cfg := testConfig()
	completer := &fakeCompleter{fragments: []string{"Смотрите Camry."}}
	builder := &fakeBuilder{ctx: &rag.Context{
		Performed: true,
		Items:     []model.ContextItem{{Marka: "Toyota", Model: "Camry", Variant: "XV70"}},
		Prompt:    "Найдено в каталоге: 1.",
	}}
	svc := newTestService(cfg, completer, builder, &fakePrefStore{}, &fakeMessageStore{}, nil, nil)

	result, err := svc.Respond(context.Background(), "u1", "Хочу тойоту", nil)
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if !result.Grounded || len(result.Context) != 1 {
		t.Error("grounding outcome must be carried to the result")
	}
	if !strings.Contains(completer.system, "Найдено в каталоге") {
		t.Error("grounding block must be part of the system prompt")
	}
	if !strings.Contains(completer.system, "[PREFERENCES]") {
		t.Error("system prompt must demand the hidden block")
	}
}

func TestRespondMalformedHiddenBlockKeepsAnswer(t *testing.T) {
	cfg := testConfig()
	completer := &fakeCompleter{fragments: []string{
		"Хороший вариант.\n[PREFERENCES]{not json}[/PREFERENCES]",
	}}
	prefs := &fakePrefStore{}
	svc := newTestService(cfg, completer, &fakeBuilder{}, prefs, &fakeMessageStore{}, nil, nil)

	result, err := svc.Respond(context.Background(), "u1", "Хочу тойоту", nil)
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if !strings.Contains(result.Answer, "Хороший вариант") {
		t.Errorf("answer = %q, want visible text kept", result.Answer)
	}
	if prefs.saveCalls != 1 {
		t.Error("rule-based preferences must still be saved")
	}
	if prefs.saved.Marka == nil || *prefs.saved.Marka != "Toyota" {
		t.Error("rule-based marka must be saved despite the malformed block")
	}
}
