package model

import "time"

// AliasSource indicates how a merchant alias was created.
type AliasSource string

const (
	// SourceFeedback marks aliases promoted from repeated user corrections.
	SourceFeedback AliasSource = "feedback"
	// SourceManual marks aliases added through the CLI.
	SourceManual AliasSource = "manual"
)

// AliasConfidence is the confidence reported for alias-backed predictions.
const AliasConfidence = 0.97

// MerchantAlias is a learned mapping from a normalized note to a subcategory,
// scoped to one group.
type MerchantAlias struct {
	CreatedAt   time.Time
	Pattern     string
	Subcategory string
	Source      AliasSource
	GroupID     int64
	Confidence  float64
}

// FeedbackEvent records one user choice for a note. Events are append-only.
type FeedbackEvent struct {
	CreatedAt            time.Time
	NormalizedNote       string
	PredictedSubcategory string
	ChosenSubcategory    string
	ID                   int64
	GroupID              int64
}

// FeedbackStats summarizes the feedback recorded for one (group, note) pair.
type FeedbackStats struct {
	Total int
	Agree int
}

// AgreementRatio returns Agree/Total, or 0 without events.
func (s FeedbackStats) AgreementRatio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Agree) / float64(s.Total)
}
