package storage

import (
	"context"
	"testing"
)

func TestMigrate_ReachesExpectedVersion(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	var version int
	if err := store.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("Failed to read schema version: %v", err)
	}
	if version != ExpectedSchemaVersion {
		t.Errorf("Schema version = %d, want %d", version, ExpectedSchemaVersion)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	// Running migrations again on a current database is a no-op.
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Second Migrate failed: %v", err)
	}
}

func TestMigrate_CreatesTables(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	for _, table := range []string{"customer_history", "document_keys", "decisions"} {
		var count int
		err := store.db.QueryRow(`
			SELECT COUNT(*) FROM sqlite_master
			WHERE type='table' AND name=?
		`, table).Scan(&count)
		if err != nil {
			t.Fatalf("Failed to check table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("Table %s was not created", table)
		}
	}
}

func TestMigration3_TotalSubmissionsColumn(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	// The column added in v3 must accept inserts.
	_, err := store.db.Exec(`
		INSERT INTO customer_history (identity, fraud_count, escalate_count, recommendation, total_submissions)
		VALUES ('JOHN DOE', 0, 0, 'APPROVE', 1)
	`)
	if err != nil {
		t.Fatalf("Insert with total_submissions failed: %v", err)
	}

	var total int
	err = store.db.QueryRow(`
		SELECT total_submissions FROM customer_history WHERE identity = 'JOHN DOE'
	`).Scan(&total)
	if err != nil {
		t.Fatalf("Failed to read total_submissions: %v", err)
	}
	if total != 1 {
		t.Errorf("total_submissions = %d, want 1", total)
	}
}

func TestMigrate_CreatesReportIndexes(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	for _, index := range []string{
		"idx_decisions_created_at",
		"idx_decisions_recommendation",
		"idx_decisions_risk_level",
	} {
		var count int
		err := store.db.QueryRow(`
			SELECT COUNT(*) FROM sqlite_master
			WHERE type='index' AND name=?
		`, index).Scan(&count)
		if err != nil {
			t.Fatalf("Failed to check index %s: %v", index, err)
		}
		if count != 1 {
			t.Errorf("Index %s was not created", index)
		}
	}
}
