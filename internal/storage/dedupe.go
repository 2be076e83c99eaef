package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/Veraticus/docket/internal/common"
)

// Exists reports whether a document key has been recorded before.
func (s *Storage) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(key, "key"); err != nil {
		return false, err
	}

	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM document_keys WHERE key = ?)
	`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check document key: %w", err)
	}
	return exists, nil
}

// Remember durably records a document key. Recording a key that already
// exists returns ErrDuplicateEntry.
func (s *Storage) Remember(ctx context.Context, key string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(key, "key"); err != nil {
		return err
	}

	identity, docType := splitDocumentKey(key)
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO document_keys (key, identity, document_type)
		VALUES (?, ?, ?)
	`, key, identity, docType)
	if err != nil {
		return fmt.Errorf("failed to remember document key: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to inspect insert result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: document key %s", common.ErrDuplicateEntry, key)
	}
	return nil
}

// splitDocumentKey denormalizes the identity|type|discriminator key
// convention into audit columns. Keys in another shape are stored intact
// with the columns left empty.
func splitDocumentKey(key string) (identity, docType string) {
	parts := strings.SplitN(key, "|", 3)
	if len(parts) < 3 {
		return "", ""
	}
	return parts[0], parts[1]
}
