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

// LookupAlias returns the alias for (groupID, pattern) or common.ErrNotFound.
func (s *SQLiteStorage) LookupAlias(ctx context.Context, groupID int64, pattern string) (*model.MerchantAlias, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	return s.lookupAliasTx(ctx, s.db, groupID, pattern)
}

func (s *SQLiteStorage) lookupAliasTx(ctx context.Context, q queryable, groupID int64, pattern string) (*model.MerchantAlias, error) {
	if err := validateID(groupID, "groupID"); err != nil {
		return nil, err
	}
	if err := validateString(pattern, "pattern"); err != nil {
		return nil, err
	}

	var alias model.MerchantAlias
	err := q.QueryRowContext(ctx, `
		SELECT group_id, pattern, subcategory, confidence, source, created_at
		FROM merchant_aliases
		WHERE group_id = ? AND pattern = ?
	`, groupID, pattern).Scan(
		&alias.GroupID,
		&alias.Pattern,
		&alias.Subcategory,
		&alias.Confidence,
		&alias.Source,
		&alias.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("alias %q: %w", pattern, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alias: %w", err)
	}

	return &alias, nil
}

// UpsertAlias creates or replaces the alias for (group, pattern).
func (s *SQLiteStorage) UpsertAlias(ctx context.Context, alias *model.MerchantAlias) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAlias(alias); err != nil {
		return err
	}

	return s.upsertAliasTx(ctx, s.db, alias)
}

// upsertAliasTx is a single statement, so concurrent promotions of the same
// key resolve as last writer wins.
func (s *SQLiteStorage) upsertAliasTx(ctx context.Context, q queryable, alias *model.MerchantAlias) error {
	now := time.Now().UTC()
	if alias.CreatedAt.IsZero() {
		alias.CreatedAt = now
	}
	if alias.Source == "" {
		alias.Source = model.SourceFeedback
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO merchant_aliases (group_id, pattern, subcategory, confidence, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(group_id, pattern) DO UPDATE SET
			subcategory = excluded.subcategory,
			confidence = excluded.confidence,
			source = excluded.source,
			updated_at = excluded.updated_at
	`, alias.GroupID, alias.Pattern, alias.Subcategory, alias.Confidence, string(alias.Source), alias.CreatedAt.UTC(), now)
	if err != nil {
		return fmt.Errorf("failed to upsert alias: %w", err)
	}

	return nil
}

// GetAliases lists a group's aliases. A zero groupID lists every group.
func (s *SQLiteStorage) GetAliases(ctx context.Context, groupID int64) ([]model.MerchantAlias, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getAliasesTx(ctx, s.db, groupID)
}

func (s *SQLiteStorage) getAliasesTx(ctx context.Context, q queryable, groupID int64) ([]model.MerchantAlias, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT group_id, pattern, subcategory, confidence, source, created_at
		FROM merchant_aliases
		WHERE ? = 0 OR group_id = ?
		ORDER BY group_id, pattern
	`, groupID, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query aliases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var aliases []model.MerchantAlias
	for rows.Next() {
		var alias model.MerchantAlias
		if err := rows.Scan(
			&alias.GroupID,
			&alias.Pattern,
			&alias.Subcategory,
			&alias.Confidence,
			&alias.Source,
			&alias.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alias: %w", err)
		}
		aliases = append(aliases, alias)
	}

	return aliases, rows.Err()
}

// DeleteAlias removes an alias. Only explicit user action calls this.
func (s *SQLiteStorage) DeleteAlias(ctx context.Context, groupID int64, pattern string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.deleteAliasTx(ctx, s.db, groupID, pattern)
}

func (s *SQLiteStorage) deleteAliasTx(ctx context.Context, q queryable, groupID int64, pattern string) error {
	if err := validateString(pattern, "pattern"); err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `
		DELETE FROM merchant_aliases WHERE group_id = ? AND pattern = ?
	`, groupID, pattern)
	if err != nil {
		return fmt.Errorf("failed to delete alias: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return common.ErrNotFound
	}

	return nil
}
