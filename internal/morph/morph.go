// Package morph provides tokenization and Russian word-form generation for
// the closed-vocabulary preference matcher. Everything here is pure and
// deterministic; the form tables are built once at process start.
package morph

import (
	"strings"
	"unicode"
)

// Tokenize lower-cases the input, replaces every character that is not a
// Cyrillic/Latin letter or digit with a separator, and splits on runs of
// separators, dropping empties.
func Tokenize(text string) []string {
	lowered := strings.ToLower(text)
	fields := strings.FieldsFunc(lowered, func(r rune) bool {
		return !isWordRune(r)
	})
	return fields
}

func isWordRune(r rune) bool {
	if r >= '0' && r <= '9' {
		return true
	}
	if r >= 'a' && r <= 'z' {
		return true
	}
	return unicode.Is(unicode.Cyrillic, r)
}

// hardFeminineEndings are the case endings for roots in -а
// (direct-object, locative, instrumental, genitive).
var hardFeminineEndings = []string{"у", "е", "ой", "ы"}

// softFeminineEndings are the case endings for roots in -я.
var softFeminineEndings = []string{"ю", "е", "ей", "и"}

// masculineEndings are the declension suffixes for consonant-ending roots
// (genitive, dative, locative, instrumental, plural, genitive-plural).
var masculineEndings = []string{"а", "у", "е", "ом", "ы", "ов"}

const cyrillicVowels = "аеёиоуыэюя"

// WordForms expands a root word into the set of surface forms that can
// refer to the same concept in inflected text. The root itself is always
// included and comes first; the set is deduplicated.
//
// Rules:
//   - pure Latin-script tokens are indeclinable;
//   - Cyrillic roots in -а take the hard feminine endings, roots in -я the
//     soft ones (final vowel stripped first);
//   - Cyrillic roots ending in any other vowel, and consonant-ending roots
//     of three letters or fewer (abbreviations), are indeclinable;
//   - longer consonant-ending Cyrillic roots take the masculine suffixes.
func WordForms(root string) []string {
	root = strings.ToLower(strings.TrimSpace(root))
	if root == "" {
		return nil
	}

	runes := []rune(root)
	last := runes[len(runes)-1]

	if !unicode.Is(unicode.Cyrillic, last) {
		return []string{root}
	}

	switch {
	case last == 'а':
		return withSuffixes(root, string(runes[:len(runes)-1]), hardFeminineEndings)
	case last == 'я':
		return withSuffixes(root, string(runes[:len(runes)-1]), softFeminineEndings)
	case strings.ContainsRune(cyrillicVowels, last):
		return []string{root}
	case len(runes) <= 3:
		// Short consonant-ending tokens are abbreviations (бмв, ваз).
		return []string{root}
	default:
		return withSuffixes(root, root, masculineEndings)
	}
}

func withSuffixes(root, stem string, endings []string) []string {
	forms := make([]string, 0, len(endings)+1)
	seen := map[string]bool{root: true}
	forms = append(forms, root)
	for _, e := range endings {
		f := stem + e
		if !seen[f] {
			seen[f] = true
			forms = append(forms, f)
		}
	}
	return forms
}
