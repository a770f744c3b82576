// Package rag builds the retrieval-augmented grounding context: it turns a
// merged preference set into catalog queries, merges the retrieval passes
// into a ranked, de-duplicated result set and renders it as a text block
// the language model is constrained to.
package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/homie43/car-fit-chat-backend/internal/model"
)

// Catalog is the retrieval side of the vehicle catalog collaborator.
type Catalog interface {
	// NormalizeBrand maps a localized or loosely spelled brand name to the
	// catalog's canonical spelling; unknown names are returned unchanged.
	NormalizeBrand(ctx context.Context, name string) (string, error)
	// SearchForContext is the keyword pass: structural filters plus a
	// requirement that the description contains at least one keyword.
	SearchForContext(ctx context.Context, filters model.ContextFilters, keywords []string, limit int) ([]model.ContextItem, error)
	// SearchStructural queries by typed fields only.
	SearchStructural(ctx context.Context, filters model.ContextFilters, limit int) ([]model.ContextItem, error)
	// SearchSemantic orders catalog rows by embedding distance to the query
	// vector; used as a fallback when the other passes find nothing.
	SearchSemantic(ctx context.Context, embedding []float32, filters model.ContextFilters, limit int) ([]model.ContextItem, error)
}

// Embedder produces a query embedding for the semantic fallback pass.
// Optional; a nil Embedder disables the fallback.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Context is the outcome of one build. Performed distinguishes "search
// performed, zero matches" (Performed true, empty Items) from "no search
// performed" (Performed false).
type Context struct {
	Performed bool
	Items     []model.ContextItem
	Prompt    string
}

// Builder runs the two-pass retrieval and renders the grounding block.
type Builder struct {
	catalog  Catalog
	embedder Embedder
	limit    int
}

// NewBuilder creates a builder. embedder may be nil.
func NewBuilder(catalog Catalog, embedder Embedder, limit int) *Builder {
	if limit <= 0 {
		limit = 5
	}
	return &Builder{catalog: catalog, embedder: embedder, limit: limit}
}

// Build retrieves and renders the grounding context for one turn. query is
// the raw user message, used only for the semantic fallback embedding.
// A catalog failure is returned as an error; callers degrade it to
// "no search performed" for the turn.
func (b *Builder) Build(ctx context.Context, prefs model.Preferences, keywords []string, query string) (*Context, error) {
	if !prefs.HasSearchSignal() {
		return &Context{Performed: false}, nil
	}

	filters := model.FiltersFromPreferences(prefs)
	if filters.Marka != nil {
		normalized, err := b.catalog.NormalizeBrand(ctx, *filters.Marka)
		if err != nil {
			return nil, fmt.Errorf("normalize brand: %w", err)
		}
		filters.Marka = &normalized
	}

	// Pass A: items whose description actually discusses what the user
	// asked about rank first.
	var merged []model.ContextItem
	seen := map[string]bool{}
	if len(keywords) > 0 {
		keywordItems, err := b.catalog.SearchForContext(ctx, filters, keywords, b.limit)
		if err != nil {
			return nil, fmt.Errorf("keyword pass: %w", err)
		}
		for _, item := range keywordItems {
			if len(merged) == b.limit {
				break
			}
			if !seen[item.Key()] {
				seen[item.Key()] = true
				merged = append(merged, item)
			}
		}
	}

	// Pass B: structural coverage, described items first.
	structural, err := b.catalog.SearchStructural(ctx, filters, b.limit*2)
	if err != nil {
		return nil, fmt.Errorf("structural pass: %w", err)
	}
	sort.SliceStable(structural, func(i, j int) bool {
		return described(structural[i]) && !described(structural[j])
	})
	for _, item := range structural {
		if len(merged) == b.limit {
			break
		}
		if !seen[item.Key()] {
			seen[item.Key()] = true
			merged = append(merged, item)
		}
	}

	if len(merged) == 0 && b.embedder != nil && strings.TrimSpace(query) != "" {
		merged = b.semanticFallback(ctx, filters, query)
	}

	result := &Context{Performed: true, Items: merged}
	if len(merged) > 0 {
		result.Prompt = renderPrompt(merged)
	}
	return result, nil
}

// semanticFallback is best effort: embedding or search failures degrade to
// the zero-result answer rather than failing the turn.
func (b *Builder) semanticFallback(ctx context.Context, filters model.ContextFilters, query string) []model.ContextItem {
	vec, err := b.embedder.Embed(ctx, query)
	if err != nil || len(vec) == 0 {
		return nil
	}
	items, err := b.catalog.SearchSemantic(ctx, vec, filters, b.limit)
	if err != nil {
		return nil
	}
	return items
}

func described(item model.ContextItem) bool {
	return item.Description != nil && strings.TrimSpace(*item.Description) != ""
}

// renderPrompt renders the grounding block: a count header, one section
// per item, and the closing instruction that only listed vehicles may be
// used in the answer.
func renderPrompt(items []model.ContextItem) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Найдено в каталоге: %d.\n", len(items))

	for i, item := range items {
		fmt.Fprintf(&sb, "\n%d. %s %s %s\n", i+1, item.Marka, item.Model, item.Variant)
		fmt.Fprintf(&sb, "   Годы выпуска: %s\n", yearRange(item))
		if item.BodyType != nil {
			fmt.Fprintf(&sb, "   Кузов: %s\n", *item.BodyType)
		}
		if item.Power != nil {
			fmt.Fprintf(&sb, "   Мощность: %s\n", *item.Power)
		}
		if item.KPP != nil {
			fmt.Fprintf(&sb, "   Коробка: %s\n", *item.KPP)
		}
		if described(item) {
			fmt.Fprintf(&sb, "   Описание: %s\n", strings.TrimSpace(*item.Description))
		}
		if len(item.Trims) > 0 {
			fmt.Fprintf(&sb, "   Комплектации: %s\n", strings.Join(item.Trims, ", "))
		}
	}

	sb.WriteString("\nИспользуй в ответе только автомобили из этого списка. Не придумывай модели и факты, которых здесь нет.\n")
	return sb.String()
}

func yearRange(item model.ContextItem) string {
	switch {
	case item.YearFrom != nil && item.YearTo != nil:
		return fmt.Sprintf("%d–%d", *item.YearFrom, *item.YearTo)
	case item.YearFrom != nil:
		return fmt.Sprintf("с %d", *item.YearFrom)
	case item.YearTo != nil:
		return fmt.Sprintf("до %d", *item.YearTo)
	default:
		return "неизвестно"
	}
}
