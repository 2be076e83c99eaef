// Package testutil provides shared helpers for tests that need a real
// database or canned document fixtures.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/docket/internal/model"
	"github.com/Veraticus/docket/internal/storage"
)

// SetupTestDB creates a migrated in-memory SQLite database, registered
// for cleanup with the test.
func SetupTestDB(t *testing.T) *storage.Storage {
	t.Helper()

	store, err := storage.NewStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

// SeedHistory appends ledger rows for an identity in submission order.
func SeedHistory(t *testing.T, store *storage.Storage, identity string, recommendations ...model.Recommendation) {
	t.Helper()

	ctx := context.Background()
	for _, rec := range recommendations {
		if err := store.RecordDecision(ctx, identity, rec); err != nil {
			t.Fatalf("failed to seed history for %s: %v", identity, err)
		}
	}
}
