package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Veraticus/fintracker/internal/model"
	"github.com/Veraticus/fintracker/internal/service"
)

// EventMessage is the JSON body published for every engine event.
type EventMessage struct {
	OccurredAt time.Time       `json:"occurred_at"`
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	GroupID    int64           `json:"group_id"`
}

// ExpensePayload describes a recorded expense.
type ExpensePayload struct {
	SpentAt         time.Time `json:"spent_at"`
	Amount          string    `json:"amount"`
	Category        string    `json:"category"`
	Subcategory     string    `json:"subcategory,omitempty"`
	Note            string    `json:"note,omitempty"`
	AutoSubcategory string    `json:"auto_subcategory,omitempty"`
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	AutoConfidence  float64   `json:"auto_confidence"`
	IsAutoApplied   bool      `json:"is_auto_applied"`
}

// PendingPayload describes a decision waiting for its author.
type PendingPayload struct {
	Amount               string  `json:"amount"`
	Note                 string  `json:"note,omitempty"`
	PredictedSubcategory string  `json:"predicted_subcategory,omitempty"`
	ID                   int64   `json:"id"`
	UserID               int64   `json:"user_id"`
	PredictedConfidence  float64 `json:"predicted_confidence"`
}

// ReminderPayload asks the transport to nudge a group.
type ReminderPayload struct {
	LocalDate string `json:"local_date"`
	Text      string `json:"text"`
}

// NewEventMessage converts an engine event into its wire form.
func NewEventMessage(event service.Event) (*EventMessage, error) {
	msg := &EventMessage{
		ID:         event.ID,
		Type:       string(event.Type),
		GroupID:    event.GroupID,
		OccurredAt: event.OccurredAt.UTC(),
	}

	payload := wirePayload(event.Payload)
	if payload == nil {
		return msg, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event.Type, err)
	}
	msg.Payload = body
	return msg, nil
}

func wirePayload(payload any) any {
	switch p := payload.(type) {
	case *model.Expense:
		return ExpensePayload{
			ID:              p.ID,
			UserID:          p.UserID,
			Amount:          p.Amount.StringFixed(2),
			Category:        p.Category,
			Subcategory:     p.Subcategory,
			Note:            p.Note,
			AutoSubcategory: p.AutoSubcategory,
			AutoConfidence:  p.AutoConfidence,
			IsAutoApplied:   p.IsAutoApplied,
			SpentAt:         p.SpentAt.UTC(),
		}
	case *model.PendingDecision:
		return PendingPayload{
			ID:                   p.ID,
			UserID:               p.UserID,
			Amount:               p.Amount.StringFixed(2),
			Note:                 p.Note,
			PredictedSubcategory: p.PredictedSubcategory,
			PredictedConfidence:  p.PredictedConfidence,
		}
	case *model.Reminder:
		return ReminderPayload{LocalDate: p.LocalDate, Text: p.Text}
	default:
		return payload
	}
}

// ToJSON converts the message to JSON bytes.
func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON decodes a message body.
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
