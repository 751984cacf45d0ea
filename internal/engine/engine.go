// Package engine routes expense notes through classification and keeps
// pending decisions and learned aliases consistent.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/fintracker/internal/classification"
	"github.com/Veraticus/fintracker/internal/common"
	"github.com/Veraticus/fintracker/internal/model"
	"github.com/Veraticus/fintracker/internal/service"
	"github.com/Veraticus/fintracker/internal/taxonomy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInvalidEntry is returned for entries missing a group or user.
var ErrInvalidEntry = errors.New("invalid entry")

// Config holds configuration options for the engine.
type Config struct {
	Now                func() time.Time
	Taxonomy           *taxonomy.Taxonomy
	AutoThreshold      float64
	PromotionMinEvents int
	PromotionAgreement float64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		AutoThreshold:      classification.DefaultThreshold,
		PromotionMinEvents: 3,
		PromotionAgreement: 0.8,
		Taxonomy:           taxonomy.Default(),
		Now:                time.Now,
	}
}

// Engine classifies expense entries and finalizes pending decisions.
type Engine struct {
	storage   service.Storage
	notifier  service.Notifier
	predictor *classification.Predictor
	gate      *classification.Gate
	learner   *Learner
	now       func() time.Time
}

// New creates an engine with the default configuration.
func New(storage service.Storage, notifier service.Notifier) *Engine {
	return NewWithConfig(storage, notifier, DefaultConfig())
}

// NewWithConfig creates an engine with custom configuration. notifier may be nil.
func NewWithConfig(storage service.Storage, notifier service.Notifier, config Config) *Engine {
	defaults := DefaultConfig()
	if config.Taxonomy == nil {
		config.Taxonomy = defaults.Taxonomy
	}
	if config.Now == nil {
		config.Now = defaults.Now
	}
	if config.PromotionMinEvents <= 0 {
		config.PromotionMinEvents = defaults.PromotionMinEvents
	}
	if config.PromotionAgreement <= 0 {
		config.PromotionAgreement = defaults.PromotionAgreement
	}

	return &Engine{
		storage:   storage,
		notifier:  notifier,
		predictor: classification.NewPredictor(config.Taxonomy),
		gate:      classification.NewGate(config.AutoThreshold),
		learner:   NewLearner(storage, config.PromotionMinEvents, config.PromotionAgreement),
		now:       config.Now,
	}
}

// Taxonomy returns the taxonomy the engine classifies against.
func (e *Engine) Taxonomy() *taxonomy.Taxonomy {
	return e.predictor.Taxonomy()
}

// Threshold returns the auto-apply confidence threshold.
func (e *Engine) Threshold() float64 {
	return e.gate.Threshold()
}

// Learner returns the engine's feedback learner.
func (e *Engine) Learner() *Learner {
	return e.learner
}

// Entry is one expense to record.
type Entry struct {
	SpentAt         time.Time
	Amount          decimal.Decimal
	Note            string
	Category        string // explicit base category; skips classification
	GroupID         int64
	UserID          int64
	SourceMessageID int64
}

// RouteResult holds the outcome of ClassifyAndRoute. Exactly one of
// AutoApplied and Pending is set.
type RouteResult struct {
	Prediction  *model.Prediction
	AutoApplied *model.Expense
	Pending     *model.PendingDecision
	Choices     []taxonomy.Category
	Decision    classification.Decision
	Manual      bool
}

// Predict classifies a note for a group without recording anything.
func (e *Engine) Predict(ctx context.Context, groupID int64, note string) *model.Prediction {
	return e.predictor.Predict(note, e.aliasLookup(ctx, groupID))
}

// ClassifyAndRoute records an entry as an expense or opens a pending
// decision, depending on the prediction's confidence. Entries without any
// prediction are recorded under "other" so the amount is never lost.
func (e *Engine) ClassifyAndRoute(ctx context.Context, entry Entry) (*RouteResult, error) {
	if err := e.validateEntry(entry); err != nil {
		return nil, err
	}

	normalized := classification.Normalize(entry.Note)
	spentAt := entry.SpentAt
	if spentAt.IsZero() {
		spentAt = e.now()
	}

	expense := &model.Expense{
		GroupID:         entry.GroupID,
		UserID:          entry.UserID,
		Amount:          entry.Amount,
		Note:            strings.TrimSpace(entry.Note),
		NormalizedNote:  normalized,
		SourceMessageID: entry.SourceMessageID,
		SpentAt:         spentAt,
	}

	if entry.Category != "" {
		return e.recordManual(ctx, expense, entry.Category)
	}

	prediction := e.predictor.PredictNormalized(normalized, e.aliasLookup(ctx, entry.GroupID))
	decision := e.gate.Decide(prediction)
	result := &RouteResult{Prediction: prediction, Decision: decision}

	switch decision {
	case classification.DecisionAutoApply:
		expense.Category = prediction.Category
		expense.Subcategory = prediction.Subcategory
		expense.ApplyPrediction(prediction)
		expense.IsAutoApplied = true

	case classification.DecisionAskUser:
		pending := &model.PendingDecision{
			GroupID:              entry.GroupID,
			UserID:               entry.UserID,
			Amount:               entry.Amount,
			Note:                 expense.Note,
			NormalizedNote:       normalized,
			PredictedCategory:    prediction.Category,
			PredictedSubcategory: prediction.Subcategory,
			PredictedConfidence:  prediction.Confidence,
			SourceMessageID:      entry.SourceMessageID,
			SpentAt:              spentAt,
			CreatedAt:            e.now(),
		}
		if err := e.storage.CreatePending(ctx, pending); err != nil {
			return nil, fmt.Errorf("failed to open pending decision: %w", err)
		}
		slog.Info("category confirmation requested",
			"group", entry.GroupID,
			"user", entry.UserID,
			"pending", pending.ID,
			"predicted", prediction.Subcategory,
			"confidence", prediction.Confidence)
		e.notify(ctx, service.EventPendingOpened, entry.GroupID, pending)

		result.Pending = pending
		result.Choices = e.Taxonomy().Categories()
		return result, nil

	default:
		expense.Category = taxonomy.OtherCategory
		expense.ApplyPrediction(nil)
		expense.IsAutoApplied = true
	}

	if err := e.storage.InsertExpense(ctx, expense); err != nil {
		return nil, fmt.Errorf("failed to record expense: %w", err)
	}

	slog.Info("expense recorded",
		"decision", decision.String(),
		"group", expense.GroupID,
		"user", expense.UserID,
		"expense", expense.ID,
		"category", expense.Category,
		"subcategory", expense.Subcategory,
		"confidence", expense.AutoConfidence)
	e.notify(ctx, service.EventExpenseCreated, expense.GroupID, expense)

	result.AutoApplied = expense
	return result, nil
}

func (e *Engine) recordManual(ctx context.Context, expense *model.Expense, category string) (*RouteResult, error) {
	if !e.Taxonomy().IsCategory(category) {
		return nil, fmt.Errorf("%w: %q", common.ErrInvalidCategory, category)
	}

	expense.Category = category
	expense.AutoCategory = category
	expense.AutoConfidence = 1.0
	expense.IsAutoApplied = false

	if err := e.storage.InsertExpense(ctx, expense); err != nil {
		return nil, fmt.Errorf("failed to record expense: %w", err)
	}

	slog.Info("manual expense recorded",
		"group", expense.GroupID,
		"user", expense.UserID,
		"expense", expense.ID,
		"category", category)
	e.notify(ctx, service.EventExpenseCreated, expense.GroupID, expense)

	return &RouteResult{AutoApplied: expense, Manual: true}, nil
}

// ResolvePending finalizes a pending decision with the author's choice.
//
// chosen is normally a base category; the predicted subcategory is kept
// only when it belongs to that category. A subcategory key is also
// accepted and taken as an exact correction; it teaches the learner only
// when it shares a parent with the prediction. Missing or already resolved
// decisions return common.ErrNotFound, and anyone but the author gets
// common.ErrForbidden without any change.
func (e *Engine) ResolvePending(ctx context.Context, pendingID, resolverID int64, chosen string) (*model.Expense, error) {
	category, subcategory, explicitSub := e.parseChoice(chosen)

	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	pending, err := tx.GetPending(ctx, pendingID)
	if err != nil {
		return nil, err
	}
	if pending.UserID != resolverID {
		return nil, fmt.Errorf("pending decision %d: %w", pendingID, common.ErrForbidden)
	}
	if category == "" {
		return nil, fmt.Errorf("%w: %q", common.ErrInvalidCategory, chosen)
	}

	if !explicitSub {
		subcategory = ""
		if pending.PredictedSubcategory != "" && e.Taxonomy().ParentOf(pending.PredictedSubcategory) == category {
			subcategory = pending.PredictedSubcategory
		}
	}

	if err := tx.DeletePending(ctx, pendingID); err != nil {
		return nil, err
	}

	expense := &model.Expense{
		GroupID:         pending.GroupID,
		UserID:          pending.UserID,
		Amount:          pending.Amount,
		Category:        category,
		Subcategory:     subcategory,
		Note:            pending.Note,
		NormalizedNote:  pending.NormalizedNote,
		SourceMessageID: pending.SourceMessageID,
		SpentAt:         pending.SpentAt,
		IsAutoApplied:   false,
	}
	expense.ApplyPrediction(pending.Prediction())

	if err := tx.InsertExpense(ctx, expense); err != nil {
		return nil, fmt.Errorf("failed to record expense: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit resolution: %w", err)
	}

	slog.Info("pending decision resolved",
		"group", expense.GroupID,
		"pending", pendingID,
		"expense", expense.ID,
		"category", category,
		"subcategory", subcategory)

	tax := e.Taxonomy()
	if pending.PredictedSubcategory != "" && subcategory != "" &&
		tax.ParentOf(subcategory) == tax.ParentOf(pending.PredictedSubcategory) {
		// The expense is already recorded; a learning failure must not undo it.
		if err := e.learner.RecordFeedback(ctx, pending.GroupID, pending.NormalizedNote, pending.PredictedSubcategory, subcategory); err != nil {
			common.LogError(err, "Failed to record category feedback", common.Fields{
				"group":   pending.GroupID,
				"pending": pendingID,
			})
		}
	}

	e.notify(ctx, service.EventExpenseCreated, expense.GroupID, expense)
	return expense, nil
}

// DiscardPending drops an open decision without recording an expense.
func (e *Engine) DiscardPending(ctx context.Context, pendingID, resolverID int64) error {
	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	pending, err := tx.GetPending(ctx, pendingID)
	if err != nil {
		return err
	}
	if pending.UserID != resolverID {
		return fmt.Errorf("pending decision %d: %w", pendingID, common.ErrForbidden)
	}
	if err := tx.DeletePending(ctx, pendingID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit discard: %w", err)
	}

	slog.Info("pending decision discarded", "group", pending.GroupID, "pending", pendingID)
	return nil
}

// parseChoice maps a choice to (category, subcategory, explicit).
// category is empty when the choice is unknown.
func (e *Engine) parseChoice(chosen string) (string, string, bool) {
	tax := e.Taxonomy()
	chosen = strings.TrimSpace(chosen)
	if key, ok := tax.ParseCategory(chosen); ok {
		return key, "", false
	}
	if parent := tax.ParentOf(chosen); parent != "" {
		return parent, chosen, true
	}
	return "", "", false
}

func (e *Engine) validateEntry(entry Entry) error {
	if entry.GroupID == 0 || entry.UserID == 0 {
		return fmt.Errorf("%w: group and user are required", ErrInvalidEntry)
	}
	if !entry.Amount.IsPositive() {
		return fmt.Errorf("%w: %s", common.ErrInvalidAmount, entry.Amount)
	}
	return nil
}

// aliasLookup binds alias lookups to one group. Storage failures are
// logged and treated as misses so classification never fails on them.
func (e *Engine) aliasLookup(ctx context.Context, groupID int64) classification.AliasLookup {
	return func(normalized string) (string, bool) {
		alias, err := e.storage.LookupAlias(ctx, groupID, normalized)
		if err != nil {
			if !errors.Is(err, common.ErrNotFound) {
				slog.Warn("alias lookup failed", "group", groupID, "error", err)
			}
			return "", false
		}
		return alias.Subcategory, true
	}
}

func (e *Engine) notify(ctx context.Context, eventType service.EventType, groupID int64, payload any) {
	if e.notifier == nil {
		return
	}
	event := service.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		GroupID:    groupID,
		OccurredAt: e.now(),
		Payload:    payload,
	}
	if err := e.notifier.Notify(ctx, event); err != nil {
		slog.Warn("failed to publish event", "type", eventType, "group", groupID, "error", err)
	}
}
