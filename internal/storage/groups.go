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

const (
	groupColumns        = `id, title, currency, timezone, reminder_enabled, reminder_time, last_reminder_date, created_at`
	defaultReminderTime = "21:00"
)

// UpsertUser records a chat participant, refreshing their names.
func (s *SQLiteStorage) UpsertUser(ctx context.Context, user *model.User) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.upsertUserTx(ctx, s.db, user)
}

func (s *SQLiteStorage) upsertUserTx(ctx context.Context, q queryable, user *model.User) error {
	if user == nil {
		return fmt.Errorf("%w: user", ErrNilParameter)
	}
	if err := validateID(user.ID, "user.ID"); err != nil {
		return err
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO users (id, username, first_name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name
	`, user.ID, user.Username, user.FirstName, user.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// EnsureGroup creates the group if it is new and returns the stored row.
// New groups start with reminders on; an existing group only has its
// title refreshed.
func (s *SQLiteStorage) EnsureGroup(ctx context.Context, group *model.Group) (*model.Group, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var stored *model.Group
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		stored, err = s.ensureGroupTx(ctx, tx, group)
		return err
	})
	return stored, err
}

func (s *SQLiteStorage) ensureGroupTx(ctx context.Context, q queryable, group *model.Group) (*model.Group, error) {
	if err := validateGroup(group); err != nil {
		return nil, err
	}
	reminderTime := group.ReminderTime
	if reminderTime == "" {
		reminderTime = defaultReminderTime
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO chat_groups (id, title, currency, timezone, reminder_enabled, reminder_time, last_reminder_date, created_at)
		VALUES (?, ?, ?, ?, 1, ?, '', ?)
		ON CONFLICT(id) DO UPDATE SET
			title = CASE WHEN excluded.title != '' THEN excluded.title ELSE chat_groups.title END
	`, group.ID, group.Title, group.Currency, group.Timezone, reminderTime, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to ensure group: %w", err)
	}

	return s.getGroupTx(ctx, q, group.ID)
}

// GetGroup loads a group or returns common.ErrNotFound.
func (s *SQLiteStorage) GetGroup(ctx context.Context, id int64) (*model.Group, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getGroupTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getGroupTx(ctx context.Context, q queryable, id int64) (*model.Group, error) {
	row := q.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM chat_groups WHERE id = ?`, id)
	group, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return group, nil
}

// GetGroups lists every known group.
func (s *SQLiteStorage) GetGroups(ctx context.Context) ([]model.Group, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getGroupsTx(ctx, s.db)
}

func (s *SQLiteStorage) getGroupsTx(ctx context.Context, q queryable) ([]model.Group, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+groupColumns+` FROM chat_groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var groups []model.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, *g)
	}
	return groups, rows.Err()
}

// UpdateGroupSettings saves currency, timezone and reminder settings.
func (s *SQLiteStorage) UpdateGroupSettings(ctx context.Context, group *model.Group) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.updateGroupSettingsTx(ctx, s.db, group)
}

func (s *SQLiteStorage) updateGroupSettingsTx(ctx context.Context, q queryable, group *model.Group) error {
	if err := validateGroup(group); err != nil {
		return err
	}
	reminderTime := group.ReminderTime
	if reminderTime == "" {
		reminderTime = defaultReminderTime
	}

	result, err := q.ExecContext(ctx, `
		UPDATE chat_groups
		SET title = ?, currency = ?, timezone = ?, reminder_enabled = ?, reminder_time = ?
		WHERE id = ?
	`, group.Title, group.Currency, group.Timezone, group.ReminderEnabled, reminderTime, group.ID)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("group %d: %w", group.ID, common.ErrNotFound)
	}
	return nil
}

// MarkReminded records the local date a reminder was handled for a group.
func (s *SQLiteStorage) MarkReminded(ctx context.Context, groupID int64, date string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.markRemindedTx(ctx, s.db, groupID, date)
}

func (s *SQLiteStorage) markRemindedTx(ctx context.Context, q queryable, groupID int64, date string) error {
	if err := validateString(date, "date"); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, `
		UPDATE chat_groups SET last_reminder_date = ? WHERE id = ?
	`, date, groupID); err != nil {
		return fmt.Errorf("failed to mark reminder: %w", err)
	}
	return nil
}

func scanGroup(row rowScanner) (*model.Group, error) {
	var g model.Group
	if err := row.Scan(
		&g.ID,
		&g.Title,
		&g.Currency,
		&g.Timezone,
		&g.ReminderEnabled,
		&g.ReminderTime,
		&g.LastReminderDate,
		&g.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &g, nil
}
