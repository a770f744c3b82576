// Package chat orchestrates one conversation turn: rate limiting,
// moderation, preference extraction and merge, catalog grounding, the
// streamed model call with the hidden preference block filtered out, and
// persistence of the outcome.
package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/homie43/car-fit-chat-backend/internal/config"
	"github.com/homie43/car-fit-chat-backend/internal/extract"
	"github.com/homie43/car-fit-chat-backend/internal/llm"
	"github.com/homie43/car-fit-chat-backend/internal/model"
	"github.com/homie43/car-fit-chat-backend/internal/rag"
	"github.com/homie43/car-fit-chat-backend/internal/stream"
)

var (
	// ErrRateLimited is returned when the user exceeded the request budget.
	ErrRateLimited = errors.New("too many requests")
)

// Completer streams a model response fragment by fragment.
type Completer interface {
	StreamChat(ctx context.Context, system string, history []llm.Message, user string, onDelta func(string) error) error
}

// Moderator screens a piece of text. ok=false means the text is blocked.
type Moderator interface {
	Check(ctx context.Context, text string) (ok bool, err error)
}

// AllowAll is the no-op moderator used when no moderation backend is
// configured.
type AllowAll struct{}

func (AllowAll) Check(ctx context.Context, text string) (bool, error) {
	return true, nil
}

// PreferenceStore persists per-user preference sets.
type PreferenceStore interface {
	LoadPreferences(ctx context.Context, userID string) (model.Preferences, error)
	SavePreferences(ctx context.Context, userID string, prefs model.Preferences) error
	DeletePreferences(ctx context.Context, userID string) error
}

// MessageStore persists conversation history.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg model.ChatMessage) error
	History(ctx context.Context, userID string, limit int) ([]model.ChatMessage, error)
}

// ContextBuilder produces the catalog grounding context for a turn.
type ContextBuilder interface {
	Build(ctx context.Context, prefs model.Preferences, keywords []string, query string) (*rag.Context, error)
}

// Limiter gates requests per user.
type Limiter interface {
	Allow(userID string) bool
}

// Service runs the conversation pipeline.
type Service struct {
	cfg       config.ChatConfig
	extractor *extract.Extractor
	builder   ContextBuilder
	completer Completer
	moderator Moderator
	prefs     PreferenceStore
	messages  MessageStore
	limiter   Limiter // nil disables rate limiting
}

// NewService wires the turn pipeline. moderator may be nil (everything
// passes), limiter may be nil (no limit).
func NewService(
	cfg config.ChatConfig,
	extractor *extract.Extractor,
	builder ContextBuilder,
	completer Completer,
	moderator Moderator,
	prefs PreferenceStore,
	messages MessageStore,
	limiter Limiter,
) *Service {
	if moderator == nil {
		moderator = AllowAll{}
	}
	return &Service{
		cfg:       cfg,
		extractor: extractor,
		builder:   builder,
		completer: completer,
		moderator: moderator,
		prefs:     prefs,
		messages:  messages,
		limiter:   limiter,
	}
}

// Respond handles one user message. Visible response fragments are passed to
// onDelta as they arrive; onDelta may be nil for non-streaming callers. The
// returned TurnResult always carries the final answer text, even when the
// streamed fragments were replaced by a fallback.
func (s *Service) Respond(ctx context.Context, userID, message string, onDelta func(string) error) (*model.TurnResult, error) {
	start := time.Now()

	if s.limiter != nil && !s.limiter.Allow(userID) {
		return nil, ErrRateLimited
	}

	emit := func(text string) error {
		if onDelta == nil || text == "" {
			return nil
		}
		return onDelta(text)
	}

	stored, err := s.prefs.LoadPreferences(ctx, userID)
	if err != nil {
		log.Printf("Warning: failed to load preferences for %s: %v", userID, err)
		stored = model.Preferences{}
	}

	// Pre-moderation: a blocked message never reaches the model.
	if ok, err := s.moderator.Check(ctx, message); err != nil {
		log.Printf("Warning: pre-moderation check failed: %v", err)
	} else if !ok {
		answer := s.cfg.ModerationMessage
		if err := emit(answer); err != nil {
			return nil, err
		}
		s.persistTurn(userID, message, answer)
		return &model.TurnResult{
			Answer:      answer,
			Preferences: stored,
			Grounded:    false,
			Took:        time.Since(start).Milliseconds(),
		}, nil
	}

	// Rule-based extraction from the raw message, merged over the store.
	extracted, keywords := s.extractor.Extract(message)
	merged := model.MergePreferences(stored, extracted)

	ragCtx := s.buildContext(ctx, merged, keywords, message)

	history := s.loadHistory(ctx, userID)
	system := buildSystemPrompt(merged, ragCtx.Prompt)

	filter := stream.NewFilter(s.cfg.RejectionPhrases)
	var visible strings.Builder

	streamErr := s.completer.StreamChat(ctx, system, history, message, func(fragment string) error {
		out := filter.Feed(fragment)
		if filter.Rejected() {
			return stream.ErrRejected
		}
		visible.WriteString(out)
		return emit(out)
	})

	if streamErr != nil && !errors.Is(streamErr, stream.ErrRejected) {
		// A transport or model failure is fatal for the turn; nothing is
		// persisted as a successful exchange.
		return nil, streamErr
	}

	rejected := errors.Is(streamErr, stream.ErrRejected) || filter.Rejected()

	var answer string
	if rejected {
		answer = s.cfg.FallbackMessage
		if err := emit(answer); err != nil {
			return nil, err
		}
	} else {
		tail := filter.Flush()
		visible.WriteString(tail)
		if err := emit(tail); err != nil {
			return nil, err
		}
		answer = strings.TrimSpace(visible.String())

		// The model's own view of the preferences, merged last so it wins
		// over the rule-based pass within this turn.
		hidden, err := stream.ParseHiddenPreferences(filter.Text())
		if err != nil {
			log.Printf("Warning: malformed hidden preference block for %s: %v", userID, err)
		} else {
			merged = model.MergePreferences(merged, hidden)
		}

		if ok, err := s.moderator.Check(ctx, answer); err != nil {
			log.Printf("Warning: post-moderation check failed: %v", err)
		} else if !ok {
			answer = s.cfg.FallbackMessage
			if err := emit(answer); err != nil {
				return nil, err
			}
		}
	}

	if answer == "" {
		answer = s.cfg.FallbackMessage
		if err := emit(answer); err != nil {
			return nil, err
		}
	}

	if err := s.prefs.SavePreferences(ctx, userID, merged); err != nil {
		log.Printf("Warning: failed to save preferences for %s: %v", userID, err)
	}
	s.persistTurn(userID, message, answer)

	return &model.TurnResult{
		Answer:      answer,
		Preferences: merged,
		Context:     ragCtx.Items,
		Grounded:    ragCtx.Performed,
		Took:        time.Since(start).Milliseconds(),
	}, nil
}

// Preferences returns the stored preference set for the user.
func (s *Service) Preferences(ctx context.Context, userID string) (model.Preferences, error) {
	return s.prefs.LoadPreferences(ctx, userID)
}

// ResetPreferences drops the stored preference set for the user.
func (s *Service) ResetPreferences(ctx context.Context, userID string) error {
	return s.prefs.DeletePreferences(ctx, userID)
}

// buildContext degrades a catalog failure to "no search performed" so a
// database hiccup does not kill the conversation turn.
func (s *Service) buildContext(ctx context.Context, prefs model.Preferences, keywords []string, message string) *rag.Context {
	ragCtx, err := s.builder.Build(ctx, prefs, keywords, message)
	if err != nil {
		log.Printf("Warning: catalog search failed, answering ungrounded: %v", err)
		return &rag.Context{Performed: false}
	}
	return ragCtx
}

func (s *Service) loadHistory(ctx context.Context, userID string) []llm.Message {
	stored, err := s.messages.History(ctx, userID, s.cfg.HistoryDepth)
	if err != nil {
		log.Printf("Warning: failed to load history for %s: %v", userID, err)
		return nil
	}

	history := make([]llm.Message, 0, len(stored))
	for _, m := range stored {
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}
	return history
}

// persistTurn saves both sides of the exchange. Uses a background context so
// a client disconnect right after the stream does not lose the turn.
func (s *Service) persistTurn(userID, userMessage, answer string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.messages.SaveMessage(ctx, model.ChatMessage{UserID: userID, Role: "user", Content: userMessage}); err != nil {
		log.Printf("Warning: failed to save user message for %s: %v", userID, err)
	}
	if err := s.messages.SaveMessage(ctx, model.ChatMessage{UserID: userID, Role: "assistant", Content: answer}); err != nil {
		log.Printf("Warning: failed to save assistant message for %s: %v", userID, err)
	}
}
