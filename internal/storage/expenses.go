package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/fintracker/internal/common"
	"github.com/Veraticus/fintracker/internal/model"
	"github.com/shopspring/decimal"
)

const expenseColumns = `id, group_id, user_id, amount_cents, category, subcategory, note, normalized_note,
	auto_category, auto_subcategory, auto_confidence, is_auto_applied, source_message_id, spent_at, created_at`

// InsertExpense stores a finalized expense and sets its ID.
func (s *SQLiteStorage) InsertExpense(ctx context.Context, expense *model.Expense) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.insertExpenseTx(ctx, s.db, expense)
}

func (s *SQLiteStorage) insertExpenseTx(ctx context.Context, q queryable, expense *model.Expense) error {
	if err := validateExpense(expense); err != nil {
		return err
	}

	now := time.Now().UTC()
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = now
	}
	if expense.SpentAt.IsZero() {
		expense.SpentAt = expense.CreatedAt
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO expenses (
			group_id, user_id, amount_cents, category, subcategory, note, normalized_note,
			auto_category, auto_subcategory, auto_confidence, is_auto_applied,
			source_message_id, spent_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		expense.GroupID,
		expense.UserID,
		toCents(expense.Amount),
		expense.Category,
		expense.Subcategory,
		expense.Note,
		expense.NormalizedNote,
		expense.AutoCategory,
		expense.AutoSubcategory,
		expense.AutoConfidence,
		expense.IsAutoApplied,
		expense.SourceMessageID,
		expense.SpentAt.UTC(),
		expense.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get expense id: %w", err)
	}
	expense.ID = id

	return nil
}

// GetExpense loads one expense by id.
func (s *SQLiteStorage) GetExpense(ctx context.Context, id int64) (*model.Expense, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getExpenseTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getExpenseTx(ctx context.Context, q queryable, id int64) (*model.Expense, error) {
	row := q.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	expense, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return expense, nil
}

// GetLastExpenses returns a group's most recent expenses, newest first.
func (s *SQLiteStorage) GetLastExpenses(ctx context.Context, groupID int64, limit int) ([]model.Expense, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getLastExpensesTx(ctx, s.db, groupID, limit)
}

func (s *SQLiteStorage) getLastExpensesTx(ctx context.Context, q queryable, groupID int64, limit int) ([]model.Expense, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := q.QueryContext(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses
		WHERE group_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, groupID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	return collectExpenses(rows)
}

// GetExpensesByPeriod returns a group's expenses with start <= spent_at < end.
// A zero groupID covers every group.
func (s *SQLiteStorage) GetExpensesByPeriod(ctx context.Context, groupID int64, start, end time.Time) ([]model.Expense, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getExpensesByPeriodTx(ctx, s.db, groupID, start, end)
}

func (s *SQLiteStorage) getExpensesByPeriodTx(ctx context.Context, q queryable, groupID int64, start, end time.Time) ([]model.Expense, error) {
	if err := validateDateRange(start, end); err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses
		WHERE (? = 0 OR group_id = ?) AND spent_at >= ? AND spent_at < ?
		ORDER BY spent_at, id
	`, groupID, groupID, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	return collectExpenses(rows)
}

// DeleteLastExpense removes the newest expense a user recorded in a group
// and returns it.
func (s *SQLiteStorage) DeleteLastExpense(ctx context.Context, groupID, userID int64) (*model.Expense, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var deleted *model.Expense
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		deleted, err = s.deleteLastExpenseTx(ctx, tx, groupID, userID)
		return err
	})
	return deleted, err
}

func (s *SQLiteStorage) deleteLastExpenseTx(ctx context.Context, q queryable, groupID, userID int64) (*model.Expense, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses
		WHERE group_id = ? AND user_id = ?
		ORDER BY id DESC
		LIMIT 1
	`, groupID, userID)
	expense, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no expenses for user %d: %w", userID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find last expense: %w", err)
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, expense.ID); err != nil {
		return nil, fmt.Errorf("failed to delete expense: %w", err)
	}

	return expense, nil
}

// GetSummary totals a group's spending per base category, largest first.
func (s *SQLiteStorage) GetSummary(ctx context.Context, groupID int64, start, end time.Time) (*model.Summary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getSummaryTx(ctx, s.db, groupID, start, end)
}

func (s *SQLiteStorage) getSummaryTx(ctx context.Context, q queryable, groupID int64, start, end time.Time) (*model.Summary, error) {
	if err := validateDateRange(start, end); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT category, SUM(amount_cents), COUNT(*)
		FROM expenses
		WHERE group_id = ? AND spent_at >= ? AND spent_at < ?
		GROUP BY category
		ORDER BY SUM(amount_cents) DESC, category
	`, groupID, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to summarize expenses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	summary := &model.Summary{Total: decimal.Zero}
	for rows.Next() {
		var (
			category string
			cents    int64
			count    int
		)
		if err := rows.Scan(&category, &cents, &count); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		amount := fromCents(cents)
		summary.Categories = append(summary.Categories, model.CategoryTotal{Category: category, Amount: amount})
		summary.Total = summary.Total.Add(amount)
		summary.Count += count
	}

	return summary, rows.Err()
}

// CountExpenses counts a group's expenses with start <= spent_at < end.
func (s *SQLiteStorage) CountExpenses(ctx context.Context, groupID int64, start, end time.Time) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return s.countExpensesTx(ctx, s.db, groupID, start, end)
}

func (s *SQLiteStorage) countExpensesTx(ctx context.Context, q queryable, groupID int64, start, end time.Time) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM expenses
		WHERE group_id = ? AND spent_at >= ? AND spent_at < ?
	`, groupID, start.UTC(), end.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count expenses: %w", err)
	}
	return count, nil
}

func collectExpenses(rows *sql.Rows) ([]model.Expense, error) {
	defer func() { _ = rows.Close() }()

	var expenses []model.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, *expense)
	}
	return expenses, rows.Err()
}

func scanExpense(row rowScanner) (*model.Expense, error) {
	var (
		e     model.Expense
		cents int64
	)
	if err := row.Scan(
		&e.ID,
		&e.GroupID,
		&e.UserID,
		&cents,
		&e.Category,
		&e.Subcategory,
		&e.Note,
		&e.NormalizedNote,
		&e.AutoCategory,
		&e.AutoSubcategory,
		&e.AutoConfidence,
		&e.IsAutoApplied,
		&e.SourceMessageID,
		&e.SpentAt,
		&e.CreatedAt,
	); err != nil {
		return nil, err
	}
	e.Amount = fromCents(cents)
	return &e, nil
}
