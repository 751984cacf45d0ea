package classification

import "github.com/Veraticus/fintracker/internal/model"

// DefaultThreshold is the confidence needed to apply a prediction without asking.
const DefaultThreshold = 0.82

// Decision is the routing outcome for a prediction.
type Decision int

// Routing outcomes.
const (
	// DecisionFallback records the expense under "other" with no audit data.
	DecisionFallback Decision = iota
	// DecisionAutoApply records the expense with the predicted category.
	DecisionAutoApply
	// DecisionAskUser opens a pending decision for the author.
	DecisionAskUser
)

func (d Decision) String() string {
	switch d {
	case DecisionAutoApply:
		return "auto_apply"
	case DecisionAskUser:
		return "ask_user"
	default:
		return "fallback"
	}
}

// Gate compares predictions against a confidence threshold.
type Gate struct {
	threshold float64
}

// NewGate creates a gate. The threshold is clamped to [0, 1].
func NewGate(threshold float64) *Gate {
	return &Gate{threshold: ClampThreshold(threshold)}
}

// Threshold returns the effective threshold.
func (g *Gate) Threshold() float64 {
	return g.threshold
}

// Decide routes a prediction.
func (g *Gate) Decide(p *model.Prediction) Decision {
	switch {
	case p == nil:
		return DecisionFallback
	case p.Confidence >= g.threshold:
		return DecisionAutoApply
	default:
		return DecisionAskUser
	}
}

// ClampThreshold limits a threshold to [0, 1].
func ClampThreshold(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
