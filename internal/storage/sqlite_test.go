package storage

import (
	"context"
	"path/filepath"
	"testing"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*Storage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewStorage(dbPath)
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

func TestNewStorage_EmptyPath(t *testing.T) {
	if _, err := NewStorage("  "); err == nil {
		t.Fatal("Expected error for empty path, got nil")
	}
}

func TestNewStorage_CreatesParentDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "docket.db")

	store, err := NewStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage in nested directory: %v", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
}

func TestStorage_ReopenExistingDatabase(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	ctx := context.Background()

	store, err := NewStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	if err := store.Remember(ctx, "JOHN DOE|check|1044"); err != nil {
		t.Fatalf("Failed to remember key: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Failed to close storage: %v", err)
	}

	reopened, err := NewStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen storage: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	if err := reopened.Migrate(ctx); err != nil {
		t.Fatalf("Migrate on reopened database failed: %v", err)
	}

	exists, err := reopened.Exists(ctx, "JOHN DOE|check|1044")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("Key recorded before reopen should still exist")
	}
}
