package sheets

import (
	"testing"
	"time"

	"github.com/Veraticus/fintracker/internal/model"
	"github.com/Veraticus/fintracker/internal/taxonomy"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testExpenses() []*model.Expense {
	day := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	return []*model.Expense{
		{
			ID: 1, UserID: 7, SpentAt: day,
			Amount: decimal.RequireFromString("350"), Category: "food", Subcategory: "food_out",
			Note: "кофе латте", AutoConfidence: 0.83, IsAutoApplied: true,
		},
		{
			ID: 2, UserID: 8, SpentAt: day.Add(2 * time.Hour),
			Amount: decimal.RequireFromString("1200.50"), Category: "transport",
			Note: "такси", AutoConfidence: 0.71,
		},
		{
			ID: 3, UserID: 7, SpentAt: day.Add(time.Hour),
			Amount: decimal.RequireFromString("150"), Category: "food", Subcategory: "food_groceries",
			Note: "хлеб", AutoConfidence: 0.67,
		},
	}
}

func TestBuildReport(t *testing.T) {
	tax := taxonomy.Default()
	report := BuildReport(testExpenses(), tax, map[int64]string{7: "Анна"}, DateRange{}, time.UTC)

	assert.True(t, report.Total.Equal(decimal.RequireFromString("1700.5")))
	require.Len(t, report.Expenses, 3)

	// Newest first.
	assert.Equal(t, "такси", report.Expenses[0].Note)
	assert.Equal(t, "8", report.Expenses[0].Author)
	assert.Empty(t, report.Expenses[0].Subcategory)
	assert.Equal(t, "Продукты", report.Expenses[1].Subcategory)
	assert.Equal(t, "Анна", report.Expenses[2].Author)
	assert.Equal(t, "Еда", report.Expenses[2].Category)

	require.Len(t, report.Categories, 2)
	assert.Equal(t, "Транспорт", report.Categories[0].Label)
	assert.Equal(t, "Еда", report.Categories[1].Label)
	assert.Equal(t, 2, report.Categories[1].Count)
	assert.True(t, report.Categories[1].Amount.Equal(decimal.NewFromInt(500)))
}

func TestReportValues(t *testing.T) {
	dateRange := DateRange{
		Start: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
	}
	report := BuildReport(testExpenses(), taxonomy.Default(), nil, dateRange, time.UTC)
	values := report.Values()

	assert.Equal(t, []any{"Expense Report", "01.06.2024 - 30.06.2024"}, values[0])
	assert.Equal(t, []any{"Total Amount", 1700.5}, values[3])
	assert.Equal(t, []any{"Total Expenses", 3}, values[4])
	assert.Equal(t, []any{"Транспорт", 1, 1200.5}, values[8])

	// 8 header rows, 2 categories, 3 listing headers, 3 expenses.
	require.Len(t, values, 16)
	last := values[len(values)-1]
	assert.Equal(t, "2024-06-01 09:00", last[0])
	assert.Equal(t, "yes", last[5])
	assert.Equal(t, "0.83", last[6])
}

func TestBuildReportEmpty(t *testing.T) {
	report := BuildReport(nil, taxonomy.Default(), nil, DateRange{}, nil)
	assert.True(t, report.Total.IsZero())
	assert.Empty(t, report.Categories)
	assert.Len(t, report.Values(), 11)
}
