package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a
// fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS customer_history (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					identity TEXT NOT NULL,
					fraud_count INTEGER NOT NULL DEFAULT 0,
					escalate_count INTEGER NOT NULL DEFAULT 0,
					recommendation TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_customer_history_identity ON customer_history(identity)`,

				`CREATE TABLE IF NOT EXISTS document_keys (
					key TEXT PRIMARY KEY,
					identity TEXT,
					document_type TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS decisions (
					analysis_id TEXT PRIMARY KEY,
					identity TEXT NOT NULL,
					document_type TEXT NOT NULL,
					recommendation TEXT NOT NULL,
					confidence REAL NOT NULL,
					risk_score REAL NOT NULL,
					risk_level TEXT NOT NULL,
					decision TEXT NOT NULL,
					model_analysis TEXT,
					validation_issues TEXT,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_decisions_identity ON decisions(identity)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add decision indexes for report queries",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE INDEX IF NOT EXISTS idx_decisions_created_at ON decisions(created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_decisions_recommendation ON decisions(recommendation)`,
				`CREATE INDEX IF NOT EXISTS idx_decisions_risk_level ON decisions(risk_level)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Track running submission totals on ledger rows",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`ALTER TABLE customer_history ADD COLUMN total_submissions INTEGER NOT NULL DEFAULT 0`)
			return err
		},
	},
}

// Migrate applies all pending database migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	// Apply migrations
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

		// Update version
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

	// Verify we're at the expected schema version
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

// SchemaVersion reports the database's current schema version without
// applying any migrations.
func (s *Storage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
