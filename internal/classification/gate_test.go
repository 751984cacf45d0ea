package classification

import (
	"testing"

	"github.com/Veraticus/fintracker/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestGate_Decide(t *testing.T) {
	g := NewGate(DefaultThreshold)

	tests := []struct {
		name string
		pred *model.Prediction
		want Decision
	}{
		{"no prediction", nil, DecisionFallback},
		{"alias", &model.Prediction{Confidence: 0.97}, DecisionAutoApply},
		{"exactly threshold", &model.Prediction{Confidence: 0.82}, DecisionAutoApply},
		{"below threshold", &model.Prediction{Confidence: 0.71}, DecisionAskUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Decide(tt.pred))
		})
	}
}

func TestGate_ThresholdClamped(t *testing.T) {
	assert.InDelta(t, 0.0, NewGate(-1).Threshold(), 1e-9)
	assert.InDelta(t, 1.0, NewGate(7).Threshold(), 1e-9)

	always := NewGate(0)
	assert.Equal(t, DecisionAutoApply, always.Decide(&model.Prediction{Confidence: 0.2}))

	never := NewGate(1)
	assert.Equal(t, DecisionAskUser, never.Decide(&model.Prediction{Confidence: 0.98}))
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "auto_apply", DecisionAutoApply.String())
	assert.Equal(t, "ask_user", DecisionAskUser.String())
	assert.Equal(t, "fallback", DecisionFallback.String())
}
