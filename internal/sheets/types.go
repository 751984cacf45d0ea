package sheets

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExpenseRow is one line of the expense listing.
type ExpenseRow struct {
	Date        time.Time
	Amount      decimal.Decimal
	Category    string
	Subcategory string
	Author      string
	Note        string
	Confidence  float64
	AutoApplied bool
}

// CategoryRow is one line of the category breakdown.
type CategoryRow struct {
	Label  string
	Amount decimal.Decimal
	Count  int
}

// DateRange represents the time period covered by the report.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Report holds everything written to the spreadsheet.
type Report struct {
	DateRange  DateRange
	Total      decimal.Decimal
	Expenses   []ExpenseRow
	Categories []CategoryRow
}
