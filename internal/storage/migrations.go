package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS users (
					id INTEGER PRIMARY KEY,
					username TEXT NOT NULL DEFAULT '',
					first_name TEXT NOT NULL DEFAULT '',
					created_at DATETIME NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS chat_groups (
					id INTEGER PRIMARY KEY,
					title TEXT NOT NULL DEFAULT '',
					currency TEXT NOT NULL,
					timezone TEXT NOT NULL,
					created_at DATETIME NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS expenses (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					group_id INTEGER NOT NULL,
					user_id INTEGER NOT NULL,
					amount_cents INTEGER NOT NULL,
					category TEXT NOT NULL,
					subcategory TEXT NOT NULL DEFAULT '',
					note TEXT NOT NULL DEFAULT '',
					normalized_note TEXT NOT NULL DEFAULT '',
					auto_category TEXT NOT NULL DEFAULT '',
					auto_subcategory TEXT NOT NULL DEFAULT '',
					auto_confidence REAL NOT NULL DEFAULT 0,
					is_auto_applied INTEGER NOT NULL DEFAULT 0,
					source_message_id INTEGER NOT NULL DEFAULT 0,
					spent_at DATETIME NOT NULL,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_expenses_group_spent ON expenses(group_id, spent_at)`,
				`CREATE INDEX idx_expenses_group_user ON expenses(group_id, user_id, id)`,

				`CREATE TABLE IF NOT EXISTS pending_decisions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					group_id INTEGER NOT NULL,
					user_id INTEGER NOT NULL,
					amount_cents INTEGER NOT NULL,
					note TEXT NOT NULL DEFAULT '',
					normalized_note TEXT NOT NULL DEFAULT '',
					predicted_category TEXT NOT NULL DEFAULT '',
					predicted_subcategory TEXT NOT NULL DEFAULT '',
					predicted_confidence REAL NOT NULL DEFAULT 0,
					source_message_id INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_pending_group ON pending_decisions(group_id)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Feedback events and merchant aliases",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS category_feedback (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					group_id INTEGER NOT NULL,
					normalized_note TEXT NOT NULL,
					predicted_subcategory TEXT NOT NULL DEFAULT '',
					chosen_subcategory TEXT NOT NULL,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_feedback_group_note ON category_feedback(group_id, normalized_note)`,

				`CREATE TABLE IF NOT EXISTS merchant_aliases (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					group_id INTEGER NOT NULL,
					pattern TEXT NOT NULL,
					subcategory TEXT NOT NULL,
					confidence REAL NOT NULL DEFAULT 0.9,
					source TEXT NOT NULL DEFAULT 'feedback',
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL,
					UNIQUE(group_id, pattern)
				)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Daily reminder settings",
		Up: func(tx *sql.Tx) error {
			if err := execAll(tx, []string{
				`ALTER TABLE chat_groups ADD COLUMN reminder_enabled INTEGER NOT NULL DEFAULT 1`,
				`ALTER TABLE chat_groups ADD COLUMN reminder_time TEXT NOT NULL DEFAULT '21:00'`,
				`ALTER TABLE chat_groups ADD COLUMN last_reminder_date TEXT NOT NULL DEFAULT ''`,
			}); err != nil {
				return err
			}
			slog.Info("Enabled daily reminders for existing groups")
			return nil
		},
	},
	{
		Version:     4,
		Description: "Spending date on pending decisions",
		Up: func(tx *sql.Tx) error {
			// Decisions opened before this version only know when they were created.
			return execAll(tx, []string{
				`ALTER TABLE pending_decisions ADD COLUMN spent_at DATETIME`,
				`UPDATE pending_decisions SET spent_at = created_at WHERE spent_at IS NULL`,
			})
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion reports the database's current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
