// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/fintracker/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Alias operations
	LookupAlias(ctx context.Context, groupID int64, pattern string) (*model.MerchantAlias, error)
	UpsertAlias(ctx context.Context, alias *model.MerchantAlias) error
	GetAliases(ctx context.Context, groupID int64) ([]model.MerchantAlias, error)
	DeleteAlias(ctx context.Context, groupID int64, pattern string) error

	// Feedback operations
	AppendFeedback(ctx context.Context, event *model.FeedbackEvent) error
	GetFeedbackStats(ctx context.Context, groupID int64, pattern, chosen string) (model.FeedbackStats, error)

	// Pending decision operations
	CreatePending(ctx context.Context, pending *model.PendingDecision) error
	GetPending(ctx context.Context, id int64) (*model.PendingDecision, error)
	DeletePending(ctx context.Context, id int64) error
	ListPending(ctx context.Context, groupID int64) ([]model.PendingDecision, error)

	// Expense operations
	InsertExpense(ctx context.Context, expense *model.Expense) error
	GetExpense(ctx context.Context, id int64) (*model.Expense, error)
	GetLastExpenses(ctx context.Context, groupID int64, limit int) ([]model.Expense, error)
	GetExpensesByPeriod(ctx context.Context, groupID int64, start, end time.Time) ([]model.Expense, error)
	DeleteLastExpense(ctx context.Context, groupID, userID int64) (*model.Expense, error)
	GetSummary(ctx context.Context, groupID int64, start, end time.Time) (*model.Summary, error)
	CountExpenses(ctx context.Context, groupID int64, start, end time.Time) (int, error)

	// User and group operations
	UpsertUser(ctx context.Context, user *model.User) error
	EnsureGroup(ctx context.Context, group *model.Group) (*model.Group, error)
	GetGroup(ctx context.Context, id int64) (*model.Group, error)
	GetGroups(ctx context.Context) ([]model.Group, error)
	UpdateGroupSettings(ctx context.Context, group *model.Group) error
	MarkReminded(ctx context.Context, groupID int64, date string) error

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// EventType names an engine event.
type EventType string

// Engine events.
const (
	EventExpenseCreated EventType = "expense.created"
	EventPendingOpened  EventType = "pending.opened"
	EventReminderDue    EventType = "reminder.due"
)

// Event is a notification emitted after the engine changes state.
type Event struct {
	OccurredAt time.Time
	Payload    any
	ID         string
	Type       EventType
	GroupID    int64
}

// Notifier delivers engine events to the outside world.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	// Retryable classifies failures; nil retries everything.
	Retryable    func(error) bool
	Operation    string
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
