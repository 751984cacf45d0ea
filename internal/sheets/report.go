package sheets

import (
	"fmt"
	"sort"
	"time"

	"github.com/Veraticus/fintracker/internal/model"
	"github.com/Veraticus/fintracker/internal/taxonomy"
	"github.com/shopspring/decimal"
)

// BuildReport turns stored expenses into report rows. authors maps user
// ids to display names; unknown users show their id.
func BuildReport(expenses []*model.Expense, tax *taxonomy.Taxonomy, authors map[int64]string, dateRange DateRange, loc *time.Location) *Report {
	if loc == nil {
		loc = time.UTC
	}

	report := &Report{
		DateRange: dateRange,
		Total:     decimal.Zero,
		Expenses:  make([]ExpenseRow, 0, len(expenses)),
	}

	type bucket struct {
		amount decimal.Decimal
		count  int
	}
	byCategory := make(map[string]*bucket)

	for _, e := range expenses {
		author, ok := authors[e.UserID]
		if !ok {
			author = fmt.Sprintf("%d", e.UserID)
		}
		row := ExpenseRow{
			Date:        e.SpentAt.In(loc),
			Amount:      e.Amount,
			Category:    tax.CategoryLabel(e.Category),
			Author:      author,
			Note:        e.Note,
			Confidence:  e.AutoConfidence,
			AutoApplied: e.IsAutoApplied,
		}
		if e.Subcategory != "" {
			row.Subcategory = tax.SubcategoryLabel(e.Subcategory)
		}
		report.Expenses = append(report.Expenses, row)
		report.Total = report.Total.Add(e.Amount)

		b, ok := byCategory[e.Category]
		if !ok {
			b = &bucket{amount: decimal.Zero}
			byCategory[e.Category] = b
		}
		b.amount = b.amount.Add(e.Amount)
		b.count++
	}

	sort.SliceStable(report.Expenses, func(i, j int) bool {
		return report.Expenses[i].Date.After(report.Expenses[j].Date)
	})

	for _, c := range tax.Categories() {
		b, ok := byCategory[c.Key]
		if !ok {
			continue
		}
		report.Categories = append(report.Categories, CategoryRow{
			Label:  c.Label,
			Amount: b.amount,
			Count:  b.count,
		})
	}
	sort.SliceStable(report.Categories, func(i, j int) bool {
		return report.Categories[i].Amount.GreaterThan(report.Categories[j].Amount)
	})

	return report
}

// Values lays the report out as sheet rows: a title, the summary, the
// category breakdown and the expense listing. Amounts are written as
// float64 so Sheets treats them as numbers.
func (r *Report) Values() [][]any {
	values := make([][]any, 0, 10+len(r.Categories)+len(r.Expenses))

	values = append(values,
		[]any{
			"Expense Report",
			fmt.Sprintf("%s - %s", r.DateRange.Start.Format("02.01.2006"), r.DateRange.End.Format("02.01.2006")),
		},
		[]any{},
		[]any{"Summary"},
		[]any{"Total Amount", r.Total.InexactFloat64()},
		[]any{"Total Expenses", len(r.Expenses)},
		[]any{},
		[]any{"Category Breakdown"},
		[]any{"Category", "Count", "Amount"},
	)

	for _, c := range r.Categories {
		values = append(values, []any{c.Label, c.Count, c.Amount.InexactFloat64()})
	}

	values = append(values,
		[]any{},
		[]any{"Expenses"},
		[]any{"Date", "Author", "Amount", "Category", "Subcategory", "Auto", "Confidence", "Note"},
	)

	for _, e := range r.Expenses {
		auto := "no"
		if e.AutoApplied {
			auto = "yes"
		}
		values = append(values, []any{
			e.Date.Format("2006-01-02 15:04"),
			e.Author,
			e.Amount.InexactFloat64(),
			e.Category,
			e.Subcategory,
			auto,
			fmt.Sprintf("%.2f", e.Confidence),
			e.Note,
		})
	}

	return values
}
