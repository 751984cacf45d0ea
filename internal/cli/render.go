package cli

import (
	"fmt"
	"strings"

	"github.com/Veraticus/fintracker/internal/chat"
	"github.com/Veraticus/fintracker/internal/model"
	"github.com/Veraticus/fintracker/internal/report"
	"github.com/Veraticus/fintracker/internal/taxonomy"
	"github.com/charmbracelet/lipgloss"
)

const dateLayout = "2006-01-02 15:04"

// RenderPrediction describes a dry-run classification.
func RenderPrediction(tax *taxonomy.Taxonomy, note string, p *model.Prediction, threshold float64) string {
	header := BoldStyle.Render(fmt.Sprintf("%q", note))
	if p == nil {
		return header + "\n" + FormatWarning("No match: would be recorded as "+tax.CategoryLabel(taxonomy.OtherCategory))
	}

	route := FormatInfo("Would ask the author to confirm")
	if p.Confidence >= threshold {
		route = FormatSuccess("Would be applied automatically")
	}
	return fmt.Sprintf("%s\n  %s / %s (%s)\n  confidence %.2f, threshold %.2f\n%s",
		header,
		tax.CategoryLabel(p.Category),
		tax.SubcategoryLabel(p.Subcategory),
		p.Reason,
		p.Confidence,
		threshold,
		route)
}

// RenderSummary renders a period total with its category breakdown.
func RenderSummary(title string, lines []report.CategoryLine, summary *model.Summary, currency string) string {
	var b strings.Builder
	b.WriteString(FormatTitle(title))
	b.WriteString("\n")
	if summary.Count == 0 {
		b.WriteString(SubtleStyle.Render("No expenses"))
		return b.String()
	}
	for _, line := range lines {
		b.WriteString(row(line.Label, chat.FormatAmount(line.Amount, currency)))
	}
	b.WriteString(TableHeaderStyle.Render(strings.Repeat(" ", 40)))
	b.WriteString("\n")
	b.WriteString(row(BoldStyle.Render(fmt.Sprintf("Total (%d)", summary.Count)), chat.FormatAmount(summary.Total, currency)))
	return strings.TrimRight(b.String(), "\n")
}

func row(label, amount string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(26).Render(label),
		AmountStyle.Render(amount)) + "\n"
}

// RenderExpenses renders recent expenses, newest first.
func RenderExpenses(tax *taxonomy.Taxonomy, expenses []model.Expense, currency string) string {
	if len(expenses) == 0 {
		return SubtleStyle.Render("No expenses")
	}
	lines := make([]string, 0, len(expenses)+1)
	lines = append(lines, TableHeaderStyle.Render(fmt.Sprintf("%-6s %-16s %14s  %s", "ID", "WHEN", "AMOUNT", "CATEGORY")))
	for _, e := range expenses {
		mark := ""
		if e.IsAutoApplied {
			mark = SubtleStyle.Render(" auto")
		}
		line := fmt.Sprintf("%-6d %-16s %14s  %s",
			e.ID,
			e.SpentAt.Format(dateLayout),
			chat.FormatAmount(e.Amount, currency),
			chat.ExpenseLabel(tax, e.Category, e.Subcategory)) + mark
		if e.Note != "" {
			line += SubtleStyle.Render("  " + e.Note)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// RenderPending lists open decisions.
func RenderPending(tax *taxonomy.Taxonomy, pending []model.PendingDecision, currency string) string {
	if len(pending) == 0 {
		return FormatSuccess("No open decisions")
	}
	lines := make([]string, 0, len(pending)+1)
	lines = append(lines, TableHeaderStyle.Render(fmt.Sprintf("%-6s %-10s %14s  %-24s %s", "ID", "AUTHOR", "AMOUNT", "SUGGESTION", "NOTE")))
	for _, p := range pending {
		suggestion := "-"
		if p.PredictedSubcategory != "" {
			suggestion = fmt.Sprintf("%s %.2f", tax.SubcategoryLabel(p.PredictedSubcategory), p.PredictedConfidence)
		}
		lines = append(lines, fmt.Sprintf("%-6d %-10d %14s  %-24s %s",
			p.ID, p.UserID, chat.FormatAmount(p.Amount, currency), suggestion, p.Note))
	}
	return strings.Join(lines, "\n")
}

// RenderAliases lists a group's learned aliases.
func RenderAliases(tax *taxonomy.Taxonomy, aliases []model.MerchantAlias) string {
	if len(aliases) == 0 {
		return SubtleStyle.Render("No aliases learned yet")
	}
	lines := make([]string, 0, len(aliases)+1)
	lines = append(lines, TableHeaderStyle.Render(fmt.Sprintf("%-28s %-24s %-8s %s", "PATTERN", "SUBCATEGORY", "SOURCE", "SINCE")))
	for _, a := range aliases {
		lines = append(lines, fmt.Sprintf("%-28s %-24s %-8s %s",
			a.Pattern, tax.SubcategoryLabel(a.Subcategory), a.Source, a.CreatedAt.Format("2006-01-02")))
	}
	return strings.Join(lines, "\n")
}

// RenderTaxonomy prints categories with their subcategories and keywords.
func RenderTaxonomy(tax *taxonomy.Taxonomy) string {
	var b strings.Builder
	for _, c := range tax.Categories() {
		b.WriteString(BoldStyle.Render(fmt.Sprintf("%s (%s)", c.Label, c.Key)))
		b.WriteString("\n")
		for _, s := range tax.Subcategories() {
			if s.Category != c.Key {
				continue
			}
			fmt.Fprintf(&b, "  %-24s %s\n", s.Key, SubtleStyle.Render(strings.Join(s.Keywords, ", ")))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
