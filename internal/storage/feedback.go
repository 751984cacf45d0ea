package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/fintracker/internal/model"
)

// AppendFeedback records a user choice. Feedback rows are never updated.
func (s *SQLiteStorage) AppendFeedback(ctx context.Context, event *model.FeedbackEvent) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.appendFeedbackTx(ctx, s.db, event)
}

func (s *SQLiteStorage) appendFeedbackTx(ctx context.Context, q queryable, event *model.FeedbackEvent) error {
	if err := validateFeedback(event); err != nil {
		return err
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO category_feedback (group_id, normalized_note, predicted_subcategory, chosen_subcategory, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, event.GroupID, event.NormalizedNote, event.PredictedSubcategory, event.ChosenSubcategory, event.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to append feedback: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get feedback id: %w", err)
	}
	event.ID = id

	return nil
}

// GetFeedbackStats counts all feedback for (group, pattern) and how many of
// those events chose the given subcategory.
func (s *SQLiteStorage) GetFeedbackStats(ctx context.Context, groupID int64, pattern, chosen string) (model.FeedbackStats, error) {
	if err := validateContext(ctx); err != nil {
		return model.FeedbackStats{}, err
	}
	return s.feedbackStatsTx(ctx, s.db, groupID, pattern, chosen)
}

func (s *SQLiteStorage) feedbackStatsTx(ctx context.Context, q queryable, groupID int64, pattern, chosen string) (model.FeedbackStats, error) {
	var stats model.FeedbackStats
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN chosen_subcategory = ? THEN 1 ELSE 0 END), 0)
		FROM category_feedback
		WHERE group_id = ? AND normalized_note = ?
	`, chosen, groupID, pattern).Scan(&stats.Total, &stats.Agree)
	if err != nil {
		return model.FeedbackStats{}, fmt.Errorf("failed to count feedback: %w", err)
	}
	return stats, nil
}
