package classification

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"whitespace only", " \t\n ", ""},
		{"punctuation only", "!!! ... ???", ""},
		{"lowercases cyrillic", "КОФЕ", "кофе"},
		{"strips currency and punctuation", "  Кофе, 450₽!! ", "кофе 450"},
		{"collapses whitespace", "такси\t\tдо   дома\n", "такси до дома"},
		{"folds yo", "Ёлка и мёд", "елка и мед"},
		{"keeps latin", "Netflix Premium", "netflix premium"},
		{"full width compatibility forms", "ＴＡＸＩ", "taxi"},
		{"ligature", "ﬁlm", "film"},
		{"hyphen splits words", "фаст-фуд", "фаст фуд"},
		{"drops other scripts", "café", "caf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Кофе и круассан!",
		"  ПОДПИСКА   Нетфликс  ",
		"Ёжик в тумане",
		"Uber ride #42 (airport)",
		"ＴＡＸＩ ﬁ",
		"\t",
	}

	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
		assert.Equal(t, strings.TrimSpace(once), once)
		assert.NotContains(t, once, "  ")
	}
}
