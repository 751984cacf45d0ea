package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is a finalized spending record.
//
// The Auto* fields keep the classifier's opinion at the time the expense was
// recorded, even when the user picked something else.
type Expense struct {
	SpentAt         time.Time
	CreatedAt       time.Time
	Amount          decimal.Decimal
	Category        string
	Subcategory     string
	Note            string
	NormalizedNote  string
	AutoCategory    string
	AutoSubcategory string
	ID              int64
	GroupID         int64
	UserID          int64
	SourceMessageID int64
	AutoConfidence  float64
	IsAutoApplied   bool
}

// ApplyPrediction copies a prediction into the audit fields.
func (e *Expense) ApplyPrediction(p *Prediction) {
	if p == nil {
		e.AutoCategory = ""
		e.AutoSubcategory = ""
		e.AutoConfidence = 0
		return
	}
	e.AutoCategory = p.Category
	e.AutoSubcategory = p.Subcategory
	e.AutoConfidence = p.Confidence
}
