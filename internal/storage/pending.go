package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/fintracker/internal/common"
	"github.com/Veraticus/fintracker/internal/model"
)

const pendingColumns = `id, group_id, user_id, amount_cents, note, normalized_note,
	predicted_category, predicted_subcategory, predicted_confidence, source_message_id, spent_at, created_at`

// CreatePending stores an OPEN pending decision and sets its ID.
func (s *SQLiteStorage) CreatePending(ctx context.Context, pending *model.PendingDecision) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.createPendingTx(ctx, s.db, pending)
}

func (s *SQLiteStorage) createPendingTx(ctx context.Context, q queryable, pending *model.PendingDecision) error {
	if err := validatePending(pending); err != nil {
		return err
	}
	if pending.CreatedAt.IsZero() {
		pending.CreatedAt = time.Now().UTC()
	}
	if pending.SpentAt.IsZero() {
		pending.SpentAt = pending.CreatedAt
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO pending_decisions (
			group_id, user_id, amount_cents, note, normalized_note,
			predicted_category, predicted_subcategory, predicted_confidence,
			source_message_id, spent_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		pending.GroupID,
		pending.UserID,
		toCents(pending.Amount),
		pending.Note,
		pending.NormalizedNote,
		pending.PredictedCategory,
		pending.PredictedSubcategory,
		pending.PredictedConfidence,
		pending.SourceMessageID,
		pending.SpentAt.UTC(),
		pending.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create pending decision: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get pending id: %w", err)
	}
	pending.ID = id

	return nil
}

// GetPending loads an OPEN pending decision or returns common.ErrNotFound.
func (s *SQLiteStorage) GetPending(ctx context.Context, id int64) (*model.PendingDecision, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getPendingTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getPendingTx(ctx context.Context, q queryable, id int64) (*model.PendingDecision, error) {
	row := q.QueryRowContext(ctx, `SELECT `+pendingColumns+` FROM pending_decisions WHERE id = ?`, id)
	pending, err := scanPending(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pending decision %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending decision: %w", err)
	}
	return pending, nil
}

// DeletePending removes a pending decision. Deleting one that is already
// gone returns common.ErrNotFound, which makes finalization exactly-once.
func (s *SQLiteStorage) DeletePending(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.deletePendingTx(ctx, s.db, id)
}

func (s *SQLiteStorage) deletePendingTx(ctx context.Context, q queryable, id int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM pending_decisions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete pending decision: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("pending decision %d: %w", id, common.ErrNotFound)
	}

	return nil
}

// ListPending lists OPEN decisions, oldest first. A zero groupID lists all groups.
func (s *SQLiteStorage) ListPending(ctx context.Context, groupID int64) ([]model.PendingDecision, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listPendingTx(ctx, s.db, groupID)
}

func (s *SQLiteStorage) listPendingTx(ctx context.Context, q queryable, groupID int64) ([]model.PendingDecision, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+pendingColumns+`
		FROM pending_decisions
		WHERE ? = 0 OR group_id = ?
		ORDER BY id
	`, groupID, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pending []model.PendingDecision
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending decision: %w", err)
		}
		pending = append(pending, *p)
	}

	return pending, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPending(row rowScanner) (*model.PendingDecision, error) {
	var (
		p     model.PendingDecision
		cents int64
	)
	if err := row.Scan(
		&p.ID,
		&p.GroupID,
		&p.UserID,
		&cents,
		&p.Note,
		&p.NormalizedNote,
		&p.PredictedCategory,
		&p.PredictedSubcategory,
		&p.PredictedConfidence,
		&p.SourceMessageID,
		&p.SpentAt,
		&p.CreatedAt,
	); err != nil {
		return nil, err
	}
	p.Amount = fromCents(cents)
	return &p, nil
}
