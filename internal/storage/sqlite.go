// Package storage provides the data persistence layer for fintracker.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/fintracker/internal/model"
	"github.com/Veraticus/fintracker/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// queryable is satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLiteStorage implements the Storage interface using SQLite.
// Aliases are read from the database on every lookup, so a promotion
// committed by any process is visible to the next prediction.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Immediate transactions take the write lock on BEGIN, so two finalizers
	// of the same pending decision serialize instead of both reading it.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't benefit from multiple connections
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

// withTx runs fn inside a transaction and commits when it returns nil.
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	return nil, fmt.Errorf("nested transactions are not supported")
}

func (t *sqliteTransaction) Close() error {
	return fmt.Errorf("cannot close storage from within a transaction")
}

func (t *sqliteTransaction) LookupAlias(ctx context.Context, groupID int64, pattern string) (*model.MerchantAlias, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.lookupAliasTx(ctx, t.tx, groupID, pattern)
}

func (t *sqliteTransaction) UpsertAlias(ctx context.Context, alias *model.MerchantAlias) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAlias(alias); err != nil {
		return err
	}
	return t.storage.upsertAliasTx(ctx, t.tx, alias)
}

func (t *sqliteTransaction) GetAliases(ctx context.Context, groupID int64) ([]model.MerchantAlias, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getAliasesTx(ctx, t.tx, groupID)
}

func (t *sqliteTransaction) DeleteAlias(ctx context.Context, groupID int64, pattern string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.deleteAliasTx(ctx, t.tx, groupID, pattern)
}

func (t *sqliteTransaction) AppendFeedback(ctx context.Context, event *model.FeedbackEvent) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.appendFeedbackTx(ctx, t.tx, event)
}

func (t *sqliteTransaction) GetFeedbackStats(ctx context.Context, groupID int64, pattern, chosen string) (model.FeedbackStats, error) {
	if err := validateContext(ctx); err != nil {
		return model.FeedbackStats{}, err
	}
	return t.storage.feedbackStatsTx(ctx, t.tx, groupID, pattern, chosen)
}

func (t *sqliteTransaction) CreatePending(ctx context.Context, pending *model.PendingDecision) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.createPendingTx(ctx, t.tx, pending)
}

func (t *sqliteTransaction) GetPending(ctx context.Context, id int64) (*model.PendingDecision, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getPendingTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) DeletePending(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.deletePendingTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) ListPending(ctx context.Context, groupID int64) ([]model.PendingDecision, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listPendingTx(ctx, t.tx, groupID)
}

func (t *sqliteTransaction) InsertExpense(ctx context.Context, expense *model.Expense) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.insertExpenseTx(ctx, t.tx, expense)
}

func (t *sqliteTransaction) GetExpense(ctx context.Context, id int64) (*model.Expense, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getExpenseTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetLastExpenses(ctx context.Context, groupID int64, limit int) ([]model.Expense, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getLastExpensesTx(ctx, t.tx, groupID, limit)
}

func (t *sqliteTransaction) GetExpensesByPeriod(ctx context.Context, groupID int64, start, end time.Time) ([]model.Expense, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getExpensesByPeriodTx(ctx, t.tx, groupID, start, end)
}

func (t *sqliteTransaction) DeleteLastExpense(ctx context.Context, groupID, userID int64) (*model.Expense, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.deleteLastExpenseTx(ctx, t.tx, groupID, userID)
}

func (t *sqliteTransaction) GetSummary(ctx context.Context, groupID int64, start, end time.Time) (*model.Summary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getSummaryTx(ctx, t.tx, groupID, start, end)
}

func (t *sqliteTransaction) CountExpenses(ctx context.Context, groupID int64, start, end time.Time) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return t.storage.countExpensesTx(ctx, t.tx, groupID, start, end)
}

func (t *sqliteTransaction) UpsertUser(ctx context.Context, user *model.User) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.upsertUserTx(ctx, t.tx, user)
}

func (t *sqliteTransaction) EnsureGroup(ctx context.Context, group *model.Group) (*model.Group, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.ensureGroupTx(ctx, t.tx, group)
}

func (t *sqliteTransaction) GetGroup(ctx context.Context, id int64) (*model.Group, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getGroupTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetGroups(ctx context.Context) ([]model.Group, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getGroupsTx(ctx, t.tx)
}

func (t *sqliteTransaction) UpdateGroupSettings(ctx context.Context, group *model.Group) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.updateGroupSettingsTx(ctx, t.tx, group)
}

func (t *sqliteTransaction) MarkReminded(ctx context.Context, groupID int64, date string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.markRemindedTx(ctx, t.tx, groupID, date)
}
