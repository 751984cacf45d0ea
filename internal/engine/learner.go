package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/fintracker/internal/model"
	"github.com/Veraticus/fintracker/internal/service"
)

// Learner turns repeated user choices into group aliases.
//
// Promotion looks at the whole feedback history for a note with no decay,
// so a long-established alias needs a matching majority of new choices
// before it flips.
type Learner struct {
	storage      service.Storage
	minEvents    int
	minAgreement float64
}

// NewLearner creates a learner that promotes a note once it has at least
// minEvents feedback events and minAgreement of them agree.
func NewLearner(storage service.Storage, minEvents int, minAgreement float64) *Learner {
	return &Learner{
		storage:      storage,
		minEvents:    minEvents,
		minAgreement: minAgreement,
	}
}

// RecordFeedback appends a feedback event and promotes the note to an alias
// when enough events agree. Everything happens in one transaction so
// concurrent feedback on the same note cannot lose updates.
func (l *Learner) RecordFeedback(ctx context.Context, groupID int64, normalized, predicted, chosen string) error {
	if normalized == "" || chosen == "" {
		return nil
	}

	tx, err := l.storage.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.AppendFeedback(ctx, &model.FeedbackEvent{
		GroupID:              groupID,
		NormalizedNote:       normalized,
		PredictedSubcategory: predicted,
		ChosenSubcategory:    chosen,
	}); err != nil {
		return fmt.Errorf("failed to append feedback: %w", err)
	}

	stats, err := tx.GetFeedbackStats(ctx, groupID, normalized, chosen)
	if err != nil {
		return err
	}

	promote := stats.Total >= l.minEvents && stats.AgreementRatio() >= l.minAgreement
	if promote {
		if err := tx.UpsertAlias(ctx, &model.MerchantAlias{
			GroupID:     groupID,
			Pattern:     normalized,
			Subcategory: chosen,
			Confidence:  model.AliasConfidence,
			Source:      model.SourceFeedback,
		}); err != nil {
			return fmt.Errorf("failed to promote alias: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit feedback: %w", err)
	}

	if promote {
		slog.Info("alias promoted",
			"group", groupID,
			"pattern", normalized,
			"subcategory", chosen,
			"events", stats.Total,
			"agree", stats.Agree)
	}
	return nil
}
