package storage

import "github.com/shopspring/decimal"

// Amounts are stored as integer minor units so sums stay exact.

func toCents(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
