package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func TestMigrate_ReachesExpectedVersion(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	version, err := store.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error: %v", err)
	}
	if version != ExpectedSchemaVersion {
		t.Errorf("schema version = %d, want %d", version, ExpectedSchemaVersion)
	}

	// Running again is a no-op.
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error: %v", err)
	}
}

func TestMigrate_CreatesTables(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	for _, table := range []string{"users", "chat_groups", "expenses", "pending_decisions", "category_feedback", "merchant_aliases"} {
		var count int
		err := store.db.QueryRow(`
			SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?
		`, table).Scan(&count)
		if err != nil {
			t.Fatalf("failed to inspect schema: %v", err)
		}
		if count != 1 {
			t.Errorf("table %s was not created", table)
		}
	}
}

func TestMigrate_ReminderDefaults(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	// Rows inserted without the reminder columns pick up the migration defaults.
	if _, err := store.db.Exec(`
		INSERT INTO chat_groups (id, title, currency, timezone, created_at)
		VALUES (-5, 'legacy', 'RUB', 'Europe/Moscow', CURRENT_TIMESTAMP)
	`); err != nil {
		t.Fatalf("insert legacy group: %v", err)
	}

	group, err := store.GetGroup(context.Background(), -5)
	if err != nil {
		t.Fatalf("GetGroup() error: %v", err)
	}
	if !group.ReminderEnabled || group.ReminderTime != "21:00" || group.LastReminderDate != "" {
		t.Errorf("unexpected reminder defaults: %+v", group)
	}
}

func TestMigrate_BackfillsPendingSpendingDate(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "legacy.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error: %v", err)
	}
	defer func() { _ = store.Close() }()

	// Build a version 3 database by hand.
	for _, migration := range migrations[:3] {
		tx, err := store.db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("BeginTx() error: %v", err)
		}
		if err := migration.Up(tx); err != nil {
			t.Fatalf("migration %d: %v", migration.Version, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); err != nil {
			t.Fatalf("set version: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("Commit() error: %v", err)
		}
	}

	createdAt := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	result, err := store.db.Exec(`
		INSERT INTO pending_decisions (group_id, user_id, amount_cents, note, created_at)
		VALUES (?, 7, 30000, 'такси', ?)
	`, testGroupID, createdAt)
	if err != nil {
		t.Fatalf("insert legacy pending: %v", err)
	}
	id, _ := result.LastInsertId()

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}

	pending, err := store.GetPending(ctx, id)
	if err != nil {
		t.Fatalf("GetPending() error: %v", err)
	}
	if !pending.SpentAt.Equal(createdAt) {
		t.Errorf("spent_at = %v, want %v", pending.SpentAt, createdAt)
	}
}
