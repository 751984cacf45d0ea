package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/fintracker/internal/model"
	"github.com/shopspring/decimal"
)

const testGroupID int64 = -1001

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

func newTestExpense(userID int64, amount string, category, subcategory string, spentAt time.Time) *model.Expense {
	return &model.Expense{
		GroupID:     testGroupID,
		UserID:      userID,
		Amount:      decimal.RequireFromString(amount),
		Category:    category,
		Subcategory: subcategory,
		Note:        category + " note",
		SpentAt:     spentAt,
	}
}

func TestNewSQLiteStorage_EmptyPath(t *testing.T) {
	if _, err := NewSQLiteStorage(" "); !errors.Is(err, ErrEmptyString) {
		t.Errorf("NewSQLiteStorage() error = %v, want ErrEmptyString", err)
	}
}

func TestNewSQLiteStorage_InMemory(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error: %v", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	if store.Path() != ":memory:" {
		t.Errorf("Path() = %q", store.Path())
	}
}

func TestTransaction_RollbackDiscardsWrites(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx() error: %v", err)
	}
	if err := tx.InsertExpense(ctx, newTestExpense(1, "10", "food", "", time.Now())); err != nil {
		t.Fatalf("InsertExpense() error: %v", err)
	}
	if err := tx.UpsertAlias(ctx, &model.MerchantAlias{
		GroupID: testGroupID, Pattern: "ларек", Subcategory: "food_groceries", Confidence: 0.97,
	}); err != nil {
		t.Fatalf("UpsertAlias() error: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() error: %v", err)
	}

	expenses, err := store.GetLastExpenses(ctx, testGroupID, 10)
	if err != nil {
		t.Fatalf("GetLastExpenses() error: %v", err)
	}
	if len(expenses) != 0 {
		t.Errorf("expected no expenses after rollback, got %d", len(expenses))
	}

	if _, err := store.LookupAlias(ctx, testGroupID, "ларек"); err == nil {
		t.Error("alias from rolled back transaction is visible")
	}
}

func TestTransaction_AliasVisibleOnlyAfterCommit(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	other, err := NewSQLiteStorage(store.Path())
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error: %v", err)
	}
	defer func() { _ = other.Close() }()

	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx() error: %v", err)
	}
	alias := &model.MerchantAlias{
		GroupID: testGroupID, Pattern: "подписка нетфликс", Subcategory: "subscriptions_digital", Confidence: 0.97,
	}
	if err := tx.UpsertAlias(ctx, alias); err != nil {
		t.Fatalf("UpsertAlias() error: %v", err)
	}

	if _, err := other.LookupAlias(ctx, testGroupID, alias.Pattern); err == nil {
		t.Error("alias visible before commit")
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}

	got, err := other.LookupAlias(ctx, testGroupID, alias.Pattern)
	if err != nil || got.Subcategory != "subscriptions_digital" {
		t.Fatalf("alias not visible after commit: %+v, %v", got, err)
	}
}

func TestTransaction_RejectsNestedOperations(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx() error: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.Migrate(ctx); err == nil {
		t.Error("Migrate inside transaction should fail")
	}
	if _, err := tx.BeginTx(ctx); err == nil {
		t.Error("nested BeginTx should fail")
	}
}
