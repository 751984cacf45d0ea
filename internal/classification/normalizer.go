// Package classification assigns taxonomy subcategories to free-text expense notes.
package classification

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalize lower-cases text, folds ё to е and replaces every rune that is
// not a Latin or Cyrillic letter, a digit or whitespace with a space.
// Whitespace runs collapse to one space. The result is idempotent.
//
// ё sits outside [а-я] but is folded instead of being blanked like other
// runes there: "мёд" becomes "мед", not "м д", and an alias learned from
// a note written with ё also matches the same note written with е.
func Normalize(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	// Casers carry state, so each call gets its own.
	lowered := cases.Lower(language.Russian).String(norm.NFKC.String(text))

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case r == 'ё':
			b.WriteRune('е')
		case r >= 'a' && r <= 'z', r >= 'а' && r <= 'я', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
