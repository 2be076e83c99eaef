package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/Veraticus/docket/internal/common"
)

func TestRememberAndExists(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	key := "JOHN DOE|bank_statement|2026-02"

	exists, err := store.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("Key should not exist before Remember")
	}

	if err := store.Remember(ctx, key); err != nil {
		t.Fatalf("Remember failed: %v", err)
	}

	exists, err = store.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("Key should exist after Remember")
	}
}

func TestRemember_DuplicateKey(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	key := "JOHN DOE|check|1044"
	if err := store.Remember(ctx, key); err != nil {
		t.Fatalf("First Remember failed: %v", err)
	}

	err := store.Remember(ctx, key)
	if err == nil {
		t.Fatal("Second Remember should fail")
	}
	if !errors.Is(err, common.ErrDuplicateEntry) {
		t.Errorf("Error = %v, want ErrDuplicateEntry", err)
	}
}

func TestRemember_DenormalizesCompositeKey(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.Remember(ctx, "JANE ROE|paystub|2026-02-20"); err != nil {
		t.Fatalf("Remember failed: %v", err)
	}

	var identity, docType string
	err := store.db.QueryRow(`
		SELECT identity, document_type FROM document_keys WHERE key = ?
	`, "JANE ROE|paystub|2026-02-20").Scan(&identity, &docType)
	if err != nil {
		t.Fatalf("Failed to read key row: %v", err)
	}

	if identity != "JANE ROE" {
		t.Errorf("identity = %q, want %q", identity, "JANE ROE")
	}
	if docType != "paystub" {
		t.Errorf("document_type = %q, want %q", docType, "paystub")
	}
}

func TestRemember_OpaqueKeyKeptIntact(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	// A key outside the composite convention is stored verbatim with
	// empty audit columns.
	if err := store.Remember(ctx, "sha256:abc123"); err != nil {
		t.Fatalf("Remember failed: %v", err)
	}

	exists, err := store.Exists(ctx, "sha256:abc123")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("Opaque key should exist after Remember")
	}

	var identity string
	err = store.db.QueryRow(`
		SELECT identity FROM document_keys WHERE key = ?
	`, "sha256:abc123").Scan(&identity)
	if err != nil {
		t.Fatalf("Failed to read key row: %v", err)
	}
	if identity != "" {
		t.Errorf("identity = %q, want empty for opaque keys", identity)
	}
}

func TestDedupe_RejectsEmptyKey(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := store.Exists(ctx, " "); err == nil {
		t.Error("Exists should reject an empty key")
	}
	if err := store.Remember(ctx, ""); err == nil {
		t.Error("Remember should reject an empty key")
	}
}
