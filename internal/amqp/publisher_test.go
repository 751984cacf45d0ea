package amqp

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/fintracker/internal/common"
	"github.com/Veraticus/fintracker/internal/model"
	"github.com/Veraticus/fintracker/internal/service"
	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	errs      []error
	published []amqp091.Publishing
	keys      []string
	calls     int
	closed    bool
	mu        sync.Mutex
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp091.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		if err != nil {
			return err
		}
	}
	c.published = append(c.published, msg)
	c.keys = append(c.keys, key)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func testPublisher(ch *fakeChannel) *Publisher {
	p := newPublisher(ch, "fintracker", "events")
	p.retry.InitialDelay = time.Millisecond
	p.retry.MaxDelay = time.Millisecond
	p.retry.Multiplier = 1
	return p
}

func expenseEvent() service.Event {
	return service.Event{
		ID:         "evt-1",
		Type:       service.EventExpenseCreated,
		GroupID:    -100,
		OccurredAt: time.Date(2024, 6, 1, 15, 0, 0, 0, time.FixedZone("MSK", 3*3600)),
		Payload: &model.Expense{
			ID:              7,
			UserID:          42,
			Amount:          decimal.RequireFromString("450.5"),
			Category:        "food",
			Subcategory:     "food_out",
			AutoSubcategory: "food_out",
			AutoConfidence:  0.83,
			IsAutoApplied:   true,
			Note:            "кофе латте",
		},
	}
}

func TestPublisherNotify(t *testing.T) {
	ch := &fakeChannel{}
	p := testPublisher(ch)

	require.NoError(t, p.Notify(context.Background(), expenseEvent()))
	require.Len(t, ch.published, 1)

	pub := ch.published[0]
	assert.Equal(t, "events", ch.keys[0])
	assert.Equal(t, "application/json", pub.ContentType)
	assert.Equal(t, amqp091.Persistent, pub.DeliveryMode)
	assert.Equal(t, "evt-1", pub.MessageId)
	assert.Equal(t, "expense.created", pub.Type)

	msg, err := EventMessageFromJSON(pub.Body)
	require.NoError(t, err)
	assert.Equal(t, int64(-100), msg.GroupID)
	assert.Equal(t, time.UTC, msg.OccurredAt.Location())
	assert.JSONEq(t, `{
		"id": 7,
		"user_id": 42,
		"amount": "450.50",
		"category": "food",
		"subcategory": "food_out",
		"note": "кофе латте",
		"auto_subcategory": "food_out",
		"auto_confidence": 0.83,
		"is_auto_applied": true,
		"spent_at": "0001-01-01T00:00:00Z"
	}`, string(msg.Payload))
}

func TestPublisherRetriesTransientFailures(t *testing.T) {
	ch := &fakeChannel{errs: []error{errors.New("connection reset"), nil}}
	p := testPublisher(ch)

	require.NoError(t, p.Notify(context.Background(), expenseEvent()))
	assert.Equal(t, 2, ch.calls)
	assert.Len(t, ch.published, 1)
}

func TestPublisherGivesUpOnClosedChannel(t *testing.T) {
	ch := &fakeChannel{errs: []error{amqp091.ErrClosed}}
	p := testPublisher(ch)

	err := p.Notify(context.Background(), expenseEvent())
	require.Error(t, err)
	assert.ErrorIs(t, err, amqp091.ErrClosed)
	assert.Equal(t, 1, ch.calls)
}

func TestPublisherHonorsBrokerRecoverFlag(t *testing.T) {
	tests := []struct {
		name      string
		err       *amqp091.Error
		wantCalls int
	}{
		{
			name:      "recoverable broker error is retried",
			err:       &amqp091.Error{Code: amqp091.ResourceError, Reason: "low on memory", Server: true, Recover: true},
			wantCalls: 2,
		},
		{
			name:      "hard broker error stops at once",
			err:       &amqp091.Error{Code: amqp091.NotFound, Reason: "no exchange", Server: true, Recover: false},
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &fakeChannel{errs: []error{tt.err, nil}}
			p := testPublisher(ch)

			err := p.Notify(context.Background(), expenseEvent())
			assert.Equal(t, tt.wantCalls, ch.calls)
			if tt.err.Recover {
				require.NoError(t, err)
				return
			}
			var brokerErr *amqp091.Error
			require.ErrorAs(t, err, &brokerErr)
			assert.Equal(t, amqp091.NotFound, brokerErr.Code)
		})
	}
}

func TestPublisherExhaustsRetries(t *testing.T) {
	boom := errors.New("broker unavailable")
	ch := &fakeChannel{errs: []error{boom, boom, boom}}
	p := testPublisher(ch)

	err := p.Notify(context.Background(), expenseEvent())
	require.ErrorIs(t, err, common.ErrMaxRetries)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, ch.calls)
}

func TestNewEventMessagePayloads(t *testing.T) {
	msg, err := NewEventMessage(service.Event{
		ID:   "evt-2",
		Type: service.EventPendingOpened,
		Payload: &model.PendingDecision{
			ID:                   3,
			UserID:               42,
			Amount:               decimal.NewFromInt(250),
			Note:                 "такси",
			PredictedSubcategory: "transport_taxi",
			PredictedConfidence:  0.71,
		},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": 3,
		"user_id": 42,
		"amount": "250.00",
		"note": "такси",
		"predicted_subcategory": "transport_taxi",
		"predicted_confidence": 0.71
	}`, string(msg.Payload))

	msg, err = NewEventMessage(service.Event{
		ID:      "evt-3",
		Type:    service.EventReminderDue,
		Payload: &model.Reminder{GroupID: -100, LocalDate: "2024-06-01", Text: "hi"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"local_date": "2024-06-01", "text": "hi"}`, string(msg.Payload))

	msg, err = NewEventMessage(service.Event{ID: "evt-4", Type: service.EventReminderDue})
	require.NoError(t, err)
	assert.Nil(t, msg.Payload)
}

func TestPublisherClose(t *testing.T) {
	ch := &fakeChannel{}
	require.NoError(t, testPublisher(ch).Close())
	assert.True(t, ch.closed)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, n.Notify(context.Background(), expenseEvent()))
	assert.Contains(t, buf.String(), "type=expense.created")
	assert.Contains(t, buf.String(), "group=-100")
}
