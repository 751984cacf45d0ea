package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PendingDecision is an expense waiting for its author to choose a category.
// It exists only while OPEN; finalizing or discarding removes it.
type PendingDecision struct {
	SpentAt              time.Time
	CreatedAt            time.Time
	Amount               decimal.Decimal
	Note                 string
	NormalizedNote       string
	PredictedCategory    string
	PredictedSubcategory string
	ID                   int64
	GroupID              int64
	UserID               int64
	SourceMessageID      int64
	PredictedConfidence  float64
}

// Prediction returns the stored prediction, or nil when none was recorded.
func (p *PendingDecision) Prediction() *Prediction {
	if p.PredictedCategory == "" {
		return nil
	}
	return &Prediction{
		Category:    p.PredictedCategory,
		Subcategory: p.PredictedSubcategory,
		Confidence:  p.PredictedConfidence,
		Reason:      ReasonRules,
	}
}
