// Package extract pulls structured vehicle preferences out of unstructured
// Russian/English chat text using lookup tables expanded through the
// morphology generator. It is a closed-vocabulary rule matcher: extraction
// never fails, an unmatched slot is simply absent.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/homie43/car-fit-chat-backend/internal/model"
	"github.com/homie43/car-fit-chat-backend/internal/morph"
)

const maxKeywords = 5

// Budget patterns, tried in order; first match wins.
var (
	reBudgetMillions  = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:млн|миллион[а-яё]*|million)`)
	reBudgetThousands = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:тыс[а-яё]*|thousand|k|к)(?:[^a-zа-яё]|$)`)
	reBudgetExplicit  = regexp.MustCompile(`(?i)бюджет[а-яё]*\s*[:\-]?\s*(\d{4,})`)
	reBudgetUpTo      = regexp.MustCompile(`(?i)до\s+(\d{6,})`)
)

// formMatch records which root produced a surface form, so that on a
// collision the longer root can win.
type formMatch struct {
	canonical string
	rootLen   int
}

// multiPattern is a multi-word localized alias: at every position the token
// must be one of that word's generated forms.
type multiPattern struct {
	canonical string
	words     []map[string]bool
}

// latinPattern is a multi-word Latin brand name matched literally.
type latinPattern struct {
	canonical string
	words     []string
}

// Extractor holds the read-only lookup tables built once at construction.
type Extractor struct {
	yearMin int
	yearMax int

	multiLocalized  []multiPattern
	singleLocalized map[string]formMatch
	multiLatin      []latinPattern
	singleLatin     map[string]string

	bodyForms  map[string]string
	kppForms   map[string]string
	structured map[string]bool
	stops      map[string]bool
}

// NewExtractor builds the form tables from the static vocabulary. yearMin
// and yearMax bound what counts as a plausible vehicle manufacture year.
func NewExtractor(yearMin, yearMax int) *Extractor {
	e := &Extractor{
		yearMin:         yearMin,
		yearMax:         yearMax,
		singleLocalized: map[string]formMatch{},
		singleLatin:     map[string]string{},
		bodyForms:       map[string]string{},
		kppForms:        map[string]string{},
		structured:      map[string]bool{},
		stops:           map[string]bool{},
	}

	for _, b := range brandVocab {
		for _, alias := range b.Localized {
			words := strings.Fields(alias)
			if len(words) > 1 {
				p := multiPattern{canonical: b.Canonical}
				for _, w := range words {
					forms := map[string]bool{}
					for _, f := range morph.WordForms(w) {
						forms[f] = true
						e.structured[f] = true
					}
					p.words = append(p.words, forms)
				}
				e.multiLocalized = append(e.multiLocalized, p)
				continue
			}
			rootLen := utf8.RuneCountInString(alias)
			for _, f := range morph.WordForms(alias) {
				if prev, ok := e.singleLocalized[f]; ok && prev.rootLen >= rootLen {
					continue
				}
				e.singleLocalized[f] = formMatch{canonical: b.Canonical, rootLen: rootLen}
				e.structured[f] = true
			}
		}
		for _, name := range b.Latin {
			words := morph.Tokenize(name)
			for _, w := range words {
				e.structured[w] = true
			}
			if len(words) > 1 {
				e.multiLatin = append(e.multiLatin, latinPattern{canonical: b.Canonical, words: words})
			} else if len(words) == 1 {
				e.singleLatin[words[0]] = b.Canonical
			}
		}
	}
	sortPatternsLongestFirst(e)

	for root, label := range bodyTypeVocab {
		for _, f := range morph.WordForms(root) {
			e.bodyForms[f] = label
			e.structured[f] = true
		}
	}
	for root, code := range transmissionVocab {
		for _, f := range morph.WordForms(root) {
			e.kppForms[f] = code
			e.structured[f] = true
		}
	}
	for _, root := range stopWordVocab {
		for _, f := range morph.WordForms(root) {
			e.stops[f] = true
		}
	}

	return e
}

func sortPatternsLongestFirst(e *Extractor) {
	// Insertion sort keeps construction dependency-free; the tables are tiny.
	for i := 1; i < len(e.multiLocalized); i++ {
		for j := i; j > 0 && len(e.multiLocalized[j].words) > len(e.multiLocalized[j-1].words); j-- {
			e.multiLocalized[j], e.multiLocalized[j-1] = e.multiLocalized[j-1], e.multiLocalized[j]
		}
	}
	for i := 1; i < len(e.multiLatin); i++ {
		for j := i; j > 0 && len(e.multiLatin[j].words) > len(e.multiLatin[j-1].words); j-- {
			e.multiLatin[j], e.multiLatin[j-1] = e.multiLatin[j-1], e.multiLatin[j]
		}
	}
}

// Extract parses one chat message into a preference set and a free-text
// keyword list for description search. The original-case text is inspected
// for the punctuation-sensitive budget and year-cue patterns.
func (e *Extractor) Extract(message string) (model.Preferences, []string) {
	prefs := model.Preferences{}
	tokens := morph.Tokenize(message)
	if len(tokens) == 0 {
		return prefs, nil
	}

	if brand := e.matchBrand(tokens); brand != "" {
		prefs.Marka = &brand
	}
	for _, t := range tokens {
		if label, ok := e.bodyForms[t]; ok {
			prefs.BodyType = &label
			break
		}
	}
	e.extractYears(tokens, &prefs)
	for _, t := range tokens {
		if code, ok := e.kppForms[t]; ok {
			prefs.KPP = &code
			break
		}
	}
	if budget := extractBudget(message); budget > 0 {
		prefs.Budget = &budget
	}

	return prefs, e.keywords(tokens)
}

// matchBrand applies the four brand passes in order: multi-word localized,
// single-word localized, multi-word Latin, single-word Latin.
func (e *Extractor) matchBrand(tokens []string) string {
	for _, p := range e.multiLocalized {
		if matchFormWindow(tokens, p.words) {
			return p.canonical
		}
	}
	for _, t := range tokens {
		if m, ok := e.singleLocalized[t]; ok {
			return m.canonical
		}
	}
	for _, p := range e.multiLatin {
		if matchLiteralWindow(tokens, p.words) {
			return p.canonical
		}
	}
	for _, t := range tokens {
		if canonical, ok := e.singleLatin[t]; ok {
			return canonical
		}
	}
	return ""
}

func matchFormWindow(tokens []string, words []map[string]bool) bool {
	for i := 0; i+len(words) <= len(tokens); i++ {
		ok := true
		for j, forms := range words {
			if !forms[tokens[i+j]] {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func matchLiteralWindow(tokens []string, words []string) bool {
	for i := 0; i+len(words) <= len(tokens); i++ {
		ok := true
		for j, w := range words {
			if tokens[i+j] != w {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// extractYears finds all 4-digit tokens within the plausible range. Two or
// more found: smallest is "from", largest "to". Exactly one: the text right
// before it decides the direction, defaulting to "from".
func (e *Extractor) extractYears(tokens []string, prefs *model.Preferences) {
	var years []int
	var positions []int
	for i, t := range tokens {
		if len(t) != 4 || !allDigits(t) {
			continue
		}
		y, err := strconv.Atoi(t)
		if err != nil || y < e.yearMin || y > e.yearMax {
			continue
		}
		years = append(years, y)
		positions = append(positions, i)
	}

	switch {
	case len(years) == 0:
	case len(years) == 1:
		y := years[0]
		if yearDirection(tokens, positions[0]) == "to" {
			prefs.YearTo = &y
		} else {
			prefs.YearFrom = &y
		}
	default:
		lo, hi := years[0], years[0]
		for _, y := range years[1:] {
			if y < lo {
				lo = y
			}
			if y > hi {
				hi = y
			}
		}
		prefs.YearFrom = &lo
		prefs.YearTo = &hi
	}
}

// yearDirection decides whether the year token at pos is a lower or upper
// bound. Only the couple of tokens right before the number carry direction.
func yearDirection(tokens []string, pos int) string {
	for i := pos - 1; i >= 0 && i >= pos-2; i-- {
		for _, cue := range yearToCues {
			if tokens[i] == cue {
				return "to"
			}
		}
		for _, cue := range yearFromCues {
			if tokens[i] == cue {
				return "from"
			}
		}
	}
	return "from"
}

// extractBudget tries the budget patterns in order against the original
// text and normalizes the first hit to a plain ruble amount.
func extractBudget(original string) int {
	if m := reBudgetMillions.FindStringSubmatch(original); m != nil {
		return int(parseDecimal(m[1])*1_000_000 + 0.5)
	}
	if m := reBudgetThousands.FindStringSubmatch(original); m != nil {
		return int(parseDecimal(m[1])*1_000 + 0.5)
	}
	if m := reBudgetExplicit.FindStringSubmatch(original); m != nil {
		v, err := strconv.Atoi(m[1])
		if err == nil {
			return v
		}
	}
	if m := reBudgetUpTo.FindStringSubmatch(original); m != nil {
		v, err := strconv.Atoi(m[1])
		if err == nil {
			return v
		}
	}
	return 0
}

func parseDecimal(s string) float64 {
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// keywords selects up to maxKeywords free-text tokens for description
// search: long enough, non-numeric, not a known structured form, not a
// stop word, first-seen order.
func (e *Extractor) keywords(tokens []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, t := range tokens {
		if utf8.RuneCountInString(t) < 4 || allDigits(t) {
			continue
		}
		if e.structured[t] || e.stops[t] || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
