package chat

import (
	"regexp"
	"strings"

	"github.com/Veraticus/fintracker/internal/taxonomy"
	"github.com/shopspring/decimal"
)

var (
	amountPattern = regexp.MustCompile(`^\d+(?:[.,]\d{1,2})?$`)
	timePattern   = regexp.MustCompile(`^(?:[01]\d|2[0-3]):[0-5]\d$`)

	currencyMarks = strings.NewReplacer(
		"₽", "", "rub", "", "rur", "",
		"$", "", "usd", "",
		"€", "", "eur", "",
	)
)

const amountPunctuation = ".,:;!?()[]{}"

// ParsedExpense is an expense message split into its parts.
type ParsedExpense struct {
	Amount   decimal.Decimal
	Category string // quick category, empty when the note should be classified
	Note     string
}

// ParseAmount reads one token as a positive amount with at most two
// decimals. Currency marks and surrounding punctuation are ignored, and a
// comma works as the decimal separator.
func ParseAmount(token string) (decimal.Decimal, bool) {
	cleaned := currencyMarks.Replace(strings.ToLower(strings.TrimSpace(token)))
	cleaned = strings.Trim(cleaned, amountPunctuation)
	if cleaned == "" || !amountPattern.MatchString(cleaned) {
		return decimal.Zero, false
	}

	value, err := decimal.NewFromString(strings.ReplaceAll(cleaned, ",", "."))
	if err != nil || !value.IsPositive() {
		return decimal.Zero, false
	}
	return value, true
}

// ParseExpense finds the first amount token in text. The remaining tokens
// form the note, unless the first of them names a category, in which case
// it becomes the quick category and the rest is the note.
func ParseExpense(text string, tax *taxonomy.Taxonomy) (ParsedExpense, bool) {
	tokens := strings.Fields(text)

	amountIdx := -1
	var amount decimal.Decimal
	for i, token := range tokens {
		if value, ok := ParseAmount(token); ok {
			amountIdx, amount = i, value
			break
		}
	}
	if amountIdx < 0 {
		return ParsedExpense{}, false
	}

	rest := make([]string, 0, len(tokens)-1)
	rest = append(rest, tokens[:amountIdx]...)
	rest = append(rest, tokens[amountIdx+1:]...)

	parsed := ParsedExpense{Amount: amount}
	if len(rest) == 0 {
		return parsed, true
	}
	if key, ok := tax.ParseCategory(rest[0]); ok {
		parsed.Category = key
		rest = rest[1:]
	}
	parsed.Note = strings.Join(rest, " ")
	return parsed, true
}

// ParseCommand splits "/cmd@bot args" into a lower-cased command name and
// its arguments.
func ParseCommand(text string) (string, string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}

	head, args, _ := strings.Cut(text[1:], " ")
	name, _, _ := strings.Cut(strings.ToLower(head), "@")
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(args), true
}

// ValidReminderTime reports whether s is a 24-hour HH:MM time.
func ValidReminderTime(s string) bool {
	return timePattern.MatchString(s)
}

// ParseCurrency accepts 2 to 6 letters and upper-cases them.
func ParseCurrency(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) < 2 || len(s) > 6 {
		return "", false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return "", false
		}
	}
	return s, true
}
