package api

import (
	"time"

	"github.com/Veraticus/fintracker/internal/model"
	"github.com/Veraticus/fintracker/internal/taxonomy"
	"github.com/shopspring/decimal"
)

type expenseRequest struct {
	SpentAt         *time.Time `json:"spent_at"`
	Amount          string     `json:"amount" binding:"required"`
	Note            string     `json:"note"`
	Category        string     `json:"category"`
	UserID          int64      `json:"user_id" binding:"required"`
	SourceMessageID int64      `json:"source_message_id"`
}

type classifyRequest struct {
	Note string `json:"note"`
}

type resolveRequest struct {
	Choice string `json:"choice" binding:"required"`
	UserID int64  `json:"user_id" binding:"required"`
}

type discardRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

type predictionDTO struct {
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory"`
	Reason      string  `json:"reason"`
	Confidence  float64 `json:"confidence"`
}

type expenseDTO struct {
	SpentAt          time.Time       `json:"spent_at"`
	Amount           decimal.Decimal `json:"amount"`
	Category         string          `json:"category"`
	CategoryLabel    string          `json:"category_label"`
	Subcategory      string          `json:"subcategory"`
	SubcategoryLabel string          `json:"subcategory_label"`
	Note             string          `json:"note"`
	ID               int64           `json:"id"`
	GroupID          int64           `json:"group_id"`
	UserID           int64           `json:"user_id"`
	AutoConfidence   float64         `json:"auto_confidence"`
	IsAutoApplied    bool            `json:"is_auto_applied"`
}

type pendingDTO struct {
	SpentAt    time.Time       `json:"spent_at"`
	CreatedAt  time.Time       `json:"created_at"`
	Prediction *predictionDTO  `json:"prediction,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Note       string          `json:"note"`
	ID         int64           `json:"id"`
	GroupID    int64           `json:"group_id"`
	UserID     int64           `json:"user_id"`
}

type choiceDTO struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

func newPrediction(p *model.Prediction) *predictionDTO {
	if p == nil {
		return nil
	}
	return &predictionDTO{
		Category:    p.Category,
		Subcategory: p.Subcategory,
		Reason:      string(p.Reason),
		Confidence:  p.Confidence,
	}
}

func newExpense(tax *taxonomy.Taxonomy, e *model.Expense) expenseDTO {
	return expenseDTO{
		ID:               e.ID,
		GroupID:          e.GroupID,
		UserID:           e.UserID,
		Amount:           e.Amount,
		Category:         e.Category,
		CategoryLabel:    tax.CategoryLabel(e.Category),
		Subcategory:      e.Subcategory,
		SubcategoryLabel: tax.SubcategoryLabel(e.Subcategory),
		Note:             e.Note,
		SpentAt:          e.SpentAt,
		AutoConfidence:   e.AutoConfidence,
		IsAutoApplied:    e.IsAutoApplied,
	}
}

func newPending(p *model.PendingDecision) pendingDTO {
	return pendingDTO{
		ID:         p.ID,
		GroupID:    p.GroupID,
		UserID:     p.UserID,
		Amount:     p.Amount,
		Note:       p.Note,
		SpentAt:    p.SpentAt,
		CreatedAt:  p.CreatedAt,
		Prediction: newPrediction(p.Prediction()),
	}
}

func newChoices(categories []taxonomy.Category) []choiceDTO {
	out := make([]choiceDTO, 0, len(categories))
	for _, c := range categories {
		out = append(out, choiceDTO{Key: c.Key, Label: c.Label})
	}
	return out
}
