// Package model defines the core domain models used throughout the application.
package model

// PredictionReason records which path produced a prediction.
type PredictionReason string

// Prediction reasons.
const (
	ReasonAlias PredictionReason = "alias"
	ReasonRules PredictionReason = "rules"
)

// Prediction is the top-1 classification of a note.
type Prediction struct {
	Category    string
	Subcategory string
	Reason      PredictionReason
	Confidence  float64
}
