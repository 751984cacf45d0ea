// Package testutil provides shared fixtures for tests that need a migrated
// database with groups and expenses in it.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Veraticus/fintracker/internal/engine"
	"github.com/Veraticus/fintracker/internal/model"
	"github.com/Veraticus/fintracker/internal/service"
	"github.com/Veraticus/fintracker/internal/storage"
	"github.com/shopspring/decimal"
)

// TestDB is a migrated in-memory database bound to one test.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// TestDBOptions configure SetupTestDBWithOptions.
type TestDBOptions struct {
	CustomSetup    func(context.Context, service.Storage) error
	Groups         []model.Group
	SkipMigrations bool
}

// SetupTestDB creates a migrated in-memory database, closed on cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	group := db.Group(-100, "Europe/Moscow")
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{})
}

// SetupTestDBWithOptions creates a test database with seeded groups and
// custom setup.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Logf("failed to close test database: %v", err)
		}
	})

	ctx := context.Background()
	if !opts.SkipMigrations {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
	}

	db := &TestDB{Storage: store, t: t}
	for i := range opts.Groups {
		db.ensureGroup(&opts.Groups[i])
	}

	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}
	return db
}

// Group stores a RUB group in the given timezone.
func (db *TestDB) Group(id int64, timezone string) *model.Group {
	db.t.Helper()
	return db.ensureGroup(&model.Group{ID: id, Currency: "RUB", Timezone: timezone})
}

func (db *TestDB) ensureGroup(group *model.Group) *model.Group {
	db.t.Helper()
	if group.Currency == "" {
		group.Currency = "RUB"
	}
	if group.Timezone == "" {
		group.Timezone = "UTC"
	}
	stored, err := db.Storage.EnsureGroup(context.Background(), group)
	if err != nil {
		db.t.Fatalf("failed to seed group %d: %v", group.ID, err)
	}
	return stored
}

// Expense records a finalized expense. amount is a decimal string.
func (db *TestDB) Expense(groupID, userID int64, amount, category, subcategory string, spentAt time.Time) *model.Expense {
	db.t.Helper()
	value, err := decimal.NewFromString(amount)
	if err != nil {
		db.t.Fatalf("bad fixture amount %q: %v", amount, err)
	}
	expense := &model.Expense{
		GroupID:     groupID,
		UserID:      userID,
		Amount:      value,
		Category:    category,
		Subcategory: subcategory,
		SpentAt:     spentAt,
	}
	if err := db.Storage.InsertExpense(context.Background(), expense); err != nil {
		db.t.Fatalf("failed to seed expense: %v", err)
	}
	return expense
}

// Engine returns an engine over this database with a fixed clock.
func (db *TestDB) Engine(now time.Time, notifier service.Notifier) *engine.Engine {
	config := engine.DefaultConfig()
	config.Now = func() time.Time { return now }
	return engine.NewWithConfig(db.Storage, notifier, config)
}

// WithTransaction runs fn in a transaction that is always rolled back.
func (db *TestDB) WithTransaction(fn func(tx service.Transaction) error) error {
	ctx := context.Background()
	tx, err := db.Storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}
