package chat

import (
	"fmt"
	"strings"

	"github.com/Veraticus/fintracker/internal/model"
	"github.com/Veraticus/fintracker/internal/taxonomy"
	"github.com/shopspring/decimal"
)

// FormatAmount renders an amount with two decimals and the currency code.
func FormatAmount(amount decimal.Decimal, currency string) string {
	return amount.StringFixed(2) + " " + currency
}

// ExpenseLabel returns the subcategory label when there is one, otherwise
// the category label.
func ExpenseLabel(tax *taxonomy.Taxonomy, category, subcategory string) string {
	if subcategory != "" {
		return tax.SubcategoryLabel(subcategory)
	}
	return tax.CategoryLabel(category)
}

func formatAdded(tax *taxonomy.Taxonomy, expense *model.Expense, currency string) string {
	return fmt.Sprintf("Добавлено #%d: %s -> %s",
		expense.ID,
		FormatAmount(expense.Amount, currency),
		ExpenseLabel(tax, expense.Category, expense.Subcategory))
}

func formatCategoryLines(tax *taxonomy.Taxonomy, totals []model.CategoryTotal) string {
	if len(totals) == 0 {
		return "Нет расходов"
	}
	lines := make([]string, 0, len(totals))
	for _, t := range totals {
		lines = append(lines, fmt.Sprintf("- %s: %s", tax.CategoryLabel(t.Category), t.Amount.StringFixed(2)))
	}
	return strings.Join(lines, "\n")
}

func formatLastLine(tax *taxonomy.Taxonomy, e *model.Expense, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s | %s", e.ID, FormatAmount(e.Amount, currency), tax.CategoryLabel(e.Category))
	if e.Subcategory != "" {
		b.WriteString("/" + tax.SubcategoryLabel(e.Subcategory))
	}
	fmt.Fprintf(&b, " | user:%d", e.UserID)
	if e.Note != "" {
		b.WriteString(" | " + e.Note)
	}
	return b.String()
}

func formatSettings(g *model.Group) string {
	status := "выключены"
	if g.ReminderEnabled {
		status = "включены"
	}
	return "⚙️ Настройки группы\n" +
		"- Валюта: " + g.Currency + "\n" +
		"- Timezone: " + g.Timezone + "\n" +
		"- Напоминания: " + status + "\n" +
		"- Время напоминаний: " + g.ReminderTime + "\n\n" +
		"Команды:\n" +
		"- `/remind HH:MM`\n" +
		"- `/tz Europe/Moscow`"
}

// CategoryKeyboard offers every base category for a pending decision.
func CategoryKeyboard(tax *taxonomy.Taxonomy, pendingID int64) Keyboard {
	categories := tax.Categories()
	keyboard := make(Keyboard, 0, len(categories))
	for _, c := range categories {
		keyboard = append(keyboard, []Button{{
			Text: c.Label,
			Data: fmt.Sprintf("cat:%d:%s", pendingID, c.Key),
		}})
	}
	return keyboard
}

// SettingsKeyboard toggles reminders and offers preset reminder times.
func SettingsKeyboard(groupID int64, enabled bool) Keyboard {
	status := "Включить"
	if enabled {
		status = "Отключить"
	}
	return Keyboard{
		{{Text: "🔔 " + status + " напоминания", Data: fmt.Sprintf("cfg:t:%d", groupID)}},
		{
			{Text: "🕘 09:00", Data: fmt.Sprintf("cfg:h:%d:09-00", groupID)},
			{Text: "🕛 12:00", Data: fmt.Sprintf("cfg:h:%d:12-00", groupID)},
			{Text: "🌙 21:00", Data: fmt.Sprintf("cfg:h:%d:21-00", groupID)},
		},
	}
}

func appKeyboard(url string) Keyboard {
	return Keyboard{{{Text: "Open App", URL: url}}}
}
