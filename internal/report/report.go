// Package report builds spending summaries for a group's local calendar.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/fintracker/internal/model"
	"github.com/Veraticus/fintracker/internal/service"
	"github.com/Veraticus/fintracker/internal/taxonomy"
	"github.com/shopspring/decimal"
)

// Period is a reporting window anchored to the group's local time.
type Period string

// Supported periods.
const (
	PeriodToday Period = "today"
	PeriodMonth Period = "month"
)

// DashboardTransactions is how many recent expenses a dashboard lists.
const DashboardTransactions = 20

// ParsePeriod validates a period name.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodToday, PeriodMonth:
		return p, nil
	default:
		return "", fmt.Errorf("unknown period %q: use today or month", s)
	}
}

// Range returns [start, end) for the period containing now in loc.
func (p Period) Range(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	if p == PeriodMonth {
		start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0)
	}
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// CategoryLine is one category of a breakdown.
type CategoryLine struct {
	Key    string          `json:"key"`
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// Transaction is one recent expense as shown on the dashboard.
type Transaction struct {
	SpentAt          time.Time       `json:"spent_at"`
	Amount           decimal.Decimal `json:"amount"`
	Category         string          `json:"category"`
	CategoryLabel    string          `json:"category_label"`
	Subcategory      string          `json:"subcategory"`
	SubcategoryLabel string          `json:"subcategory_label"`
	Note             string          `json:"note"`
	ID               int64           `json:"id"`
	UserID           int64           `json:"user_id"`
	IsAutoApplied    bool            `json:"is_auto_applied"`
}

// GroupInfo describes the group a dashboard belongs to.
type GroupInfo struct {
	Title    string `json:"title"`
	Currency string `json:"currency"`
	Timezone string `json:"timezone"`
	ID       int64  `json:"id"`
}

// Totals holds the period totals.
type Totals struct {
	Today decimal.Decimal `json:"today"`
	Month decimal.Decimal `json:"month"`
}

// Dashboard is everything the web app shows for a group.
type Dashboard struct {
	Group           GroupInfo      `json:"group"`
	Totals          Totals         `json:"totals"`
	TodayCategories []CategoryLine `json:"today_categories"`
	MonthCategories []CategoryLine `json:"month_categories"`
	Transactions    []Transaction  `json:"transactions"`
}

// Builder assembles summaries from storage.
type Builder struct {
	storage  service.Storage
	tax      *taxonomy.Taxonomy
	fallback *time.Location
}

// NewBuilder creates a Builder. Groups with an unknown timezone use fallback.
func NewBuilder(storage service.Storage, tax *taxonomy.Taxonomy, fallback *time.Location) *Builder {
	if fallback == nil {
		fallback = time.UTC
	}
	return &Builder{storage: storage, tax: tax, fallback: fallback}
}

// Summary totals a group's spending for the period containing now.
func (b *Builder) Summary(ctx context.Context, group *model.Group, period Period, now time.Time) (*model.Summary, error) {
	start, end := period.Range(now, group.Location(b.fallback))
	summary, err := b.storage.GetSummary(ctx, group.ID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize %s: %w", period, err)
	}
	return summary, nil
}

// Lines labels a summary's categories.
func (b *Builder) Lines(summary *model.Summary) []CategoryLine {
	lines := make([]CategoryLine, 0, len(summary.Categories))
	for _, c := range summary.Categories {
		lines = append(lines, CategoryLine{
			Key:    c.Category,
			Label:  b.tax.CategoryLabel(c.Category),
			Amount: c.Amount,
		})
	}
	return lines
}

// Dashboard builds the web app view of a group.
func (b *Builder) Dashboard(ctx context.Context, group *model.Group, now time.Time) (*Dashboard, error) {
	today, err := b.Summary(ctx, group, PeriodToday, now)
	if err != nil {
		return nil, err
	}
	month, err := b.Summary(ctx, group, PeriodMonth, now)
	if err != nil {
		return nil, err
	}
	expenses, err := b.storage.GetLastExpenses(ctx, group.ID, DashboardTransactions)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent expenses: %w", err)
	}

	title := group.Title
	if title == "" {
		title = "FinTracker"
	}

	dashboard := &Dashboard{
		Group: GroupInfo{
			ID:       group.ID,
			Title:    title,
			Currency: group.Currency,
			Timezone: group.Timezone,
		},
		Totals:          Totals{Today: today.Total, Month: month.Total},
		TodayCategories: b.Lines(today),
		MonthCategories: b.Lines(month),
		Transactions:    make([]Transaction, 0, len(expenses)),
	}
	for _, e := range expenses {
		dashboard.Transactions = append(dashboard.Transactions, Transaction{
			ID:               e.ID,
			UserID:           e.UserID,
			Amount:           e.Amount,
			Category:         e.Category,
			CategoryLabel:    b.tax.CategoryLabel(e.Category),
			Subcategory:      e.Subcategory,
			SubcategoryLabel: b.tax.SubcategoryLabel(e.Subcategory),
			Note:             e.Note,
			SpentAt:          e.SpentAt,
			IsAutoApplied:    e.IsAutoApplied,
		})
	}
	return dashboard, nil
}
