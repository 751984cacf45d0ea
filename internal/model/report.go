package model

import "github.com/shopspring/decimal"

// CategoryTotal is the amount spent in one base category.
type CategoryTotal struct {
	Category string
	Amount   decimal.Decimal
}

// Summary aggregates a group's spending over a period.
type Summary struct {
	Total      decimal.Decimal
	Categories []CategoryTotal
	Count      int
}
