package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// CheckpointManager snapshots the decision database so risky operations
// (bulk feed ingestion, restores after bad model deployments) can be
// rolled back. Snapshots live next to the database under checkpoints/,
// each with a JSON metadata sidecar. Metadata is deliberately kept out
// of the database itself: the index of snapshots must survive the file
// it indexes being replaced.
type CheckpointManager struct {
	db     *sql.DB
	dbPath string
	dir    string
}

// CheckpointMetadata is the sidecar JSON written next to each snapshot.
type CheckpointMetadata struct {
	CreatedAt     time.Time      `json:"created_at"`
	RowCounts     map[string]int `json:"row_counts"`
	ID            string         `json:"id"`
	Description   string         `json:"description"`
	FileSize      int64          `json:"file_size"`
	SchemaVersion int            `json:"schema_version"`
	IsAuto        bool           `json:"is_auto"`
}

// CheckpointInfo describes a checkpoint for listing.
type CheckpointInfo struct {
	CreatedAt     time.Time
	ID            string
	Description   string
	FileSize      int64
	Decisions     int
	LedgerRows    int
	DocumentKeys  int
	SchemaVersion int
	IsAuto        bool
}

// Checkpoint errors.
var (
	ErrCheckpointNotFound  = errors.New("checkpoint not found")
	ErrCheckpointCorrupted = errors.New("checkpoint integrity check failed")
	ErrCheckpointExists    = errors.New("checkpoint already exists")
	ErrDiskSpaceLow        = errors.New("insufficient disk space for checkpoint")
)

// maxAutoCheckpoints is how many automatic checkpoints are retained;
// older ones are pruned after each AutoCheckpoint.
const maxAutoCheckpoints = 5

// Checkpoints returns a manager for this database's snapshots.
func (s *Storage) Checkpoints() (*CheckpointManager, error) {
	return newCheckpointManager(s.db, s.dbPath)
}

func newCheckpointManager(db *sql.DB, dbPath string) (*CheckpointManager, error) {
	dir := filepath.Join(filepath.Dir(dbPath), "checkpoints")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	return &CheckpointManager{
		db:     db,
		dbPath: dbPath,
		dir:    dir,
	}, nil
}

// Create snapshots the database under the given tag. An empty tag gets
// a timestamped name.
func (cm *CheckpointManager) Create(ctx context.Context, tag, description string) (*CheckpointInfo, error) {
	if tag == "" {
		tag = fmt.Sprintf("checkpoint-%s", time.Now().Format("2006-01-02-1504"))
	}
	return cm.create(ctx, tag, description, false)
}

func (cm *CheckpointManager) create(ctx context.Context, tag, description string, isAuto bool) (*CheckpointInfo, error) {
	if err := validateCheckpointTag(tag); err != nil {
		return nil, err
	}

	snapshotPath := filepath.Join(cm.dir, tag+".db")
	if _, err := os.Stat(snapshotPath); err == nil {
		return nil, ErrCheckpointExists
	}

	var schemaVersion int
	if err := cm.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&schemaVersion); err != nil {
		return nil, fmt.Errorf("failed to get schema version: %w", err)
	}

	rowCounts := cm.countRows(ctx)

	dbInfo, err := os.Stat(cm.dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat database: %w", err)
	}
	if !cm.hasSpaceFor(int64(float64(dbInfo.Size()) * 1.1)) {
		return nil, ErrDiskSpaceLow
	}

	if err := cm.snapshotDatabase(ctx, snapshotPath); err != nil {
		return nil, fmt.Errorf("failed to snapshot database: %w", err)
	}

	snapshotInfo, err := os.Stat(snapshotPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat checkpoint: %w", err)
	}

	metadata := CheckpointMetadata{
		ID:            tag,
		CreatedAt:     time.Now().UTC(),
		Description:   description,
		FileSize:      snapshotInfo.Size(),
		RowCounts:     rowCounts,
		SchemaVersion: schemaVersion,
		IsAuto:        isAuto,
	}
	if err := cm.saveMetadata(filepath.Join(cm.dir, tag+".meta.json"), metadata); err != nil {
		if rmErr := os.Remove(snapshotPath); rmErr != nil {
			slog.Error("Failed to remove checkpoint after metadata save failure", "error", rmErr)
		}
		return nil, fmt.Errorf("failed to save checkpoint metadata: %w", err)
	}

	info := metadata.info()
	return &info, nil
}

// List returns all checkpoints, newest first.
func (cm *CheckpointManager) List(_ context.Context) ([]CheckpointInfo, error) {
	entries, err := os.ReadDir(cm.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoints directory: %w", err)
	}

	checkpoints := make([]CheckpointInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".meta.json") {
			continue
		}

		metadata, loadErr := cm.loadMetadata(filepath.Join(cm.dir, entry.Name()))
		if loadErr != nil {
			// A corrupted sidecar hides one checkpoint, not the listing.
			slog.Warn("Skipping unreadable checkpoint metadata",
				"file", entry.Name(),
				"error", loadErr)
			continue
		}
		checkpoints = append(checkpoints, metadata.info())
	}

	sort.Slice(checkpoints, func(i, j int) bool {
		return checkpoints[i].CreatedAt.After(checkpoints[j].CreatedAt)
	})

	return checkpoints, nil
}

// GetCheckpointInfo returns one checkpoint's metadata.
func (cm *CheckpointManager) GetCheckpointInfo(_ context.Context, checkpointID string) (*CheckpointInfo, error) {
	if err := validateCheckpointTag(checkpointID); err != nil {
		return nil, err
	}

	metadata, err := cm.loadMetadata(filepath.Join(cm.dir, checkpointID+".meta.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("failed to load checkpoint metadata: %w", err)
	}

	info := metadata.info()
	return &info, nil
}

// Restore replaces the database file with a checkpoint. The manager's
// connection is closed in the process; the caller must reopen storage
// afterwards. The pre-restore database is kept as a backup until the
// copy succeeds.
func (cm *CheckpointManager) Restore(_ context.Context, checkpointID string) error {
	if err := validateCheckpointTag(checkpointID); err != nil {
		return err
	}

	snapshotPath := filepath.Join(cm.dir, checkpointID+".db")
	if _, err := os.Stat(snapshotPath); err != nil {
		if os.IsNotExist(err) {
			return ErrCheckpointNotFound
		}
		return fmt.Errorf("failed to access checkpoint: %w", err)
	}

	if _, err := cm.loadMetadata(filepath.Join(cm.dir, checkpointID+".meta.json")); err != nil {
		return fmt.Errorf("failed to load checkpoint metadata: %w", err)
	}

	if err := verifySnapshotIntegrity(snapshotPath); err != nil {
		return ErrCheckpointCorrupted
	}

	if err := cm.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	backupPath := cm.dbPath + ".restore-backup"
	if err := copyFileAtomic(cm.dbPath, backupPath); err != nil {
		return fmt.Errorf("failed to back up current database: %w", err)
	}

	if err := copyFileAtomic(snapshotPath, cm.dbPath); err != nil {
		if rollbackErr := copyFileAtomic(backupPath, cm.dbPath); rollbackErr != nil {
			slog.Error("Failed to roll back after restore failure", "error", rollbackErr)
		}
		return fmt.Errorf("failed to restore checkpoint: %w", err)
	}

	if err := os.Remove(backupPath); err != nil {
		slog.Warn("Failed to remove restore backup", "error", err, "path", backupPath)
	}

	return nil
}

// Delete removes a checkpoint and its metadata.
func (cm *CheckpointManager) Delete(_ context.Context, checkpointID string) error {
	if err := validateCheckpointTag(checkpointID); err != nil {
		return err
	}

	snapshotPath := filepath.Join(cm.dir, checkpointID+".db")
	if _, err := os.Stat(snapshotPath); err != nil {
		if os.IsNotExist(err) {
			return ErrCheckpointNotFound
		}
		return fmt.Errorf("failed to access checkpoint: %w", err)
	}

	if err := os.Remove(snapshotPath); err != nil {
		return fmt.Errorf("failed to remove checkpoint: %w", err)
	}
	if err := os.Remove(filepath.Join(cm.dir, checkpointID+".meta.json")); err != nil && !os.IsNotExist(err) {
		slog.Debug("Failed to remove checkpoint metadata", "error", err, "id", checkpointID)
	}

	return nil
}

// AutoCheckpoint snapshots the database before a risky operation and
// prunes old automatic snapshots. The nanosecond tag keeps rapid
// successive operations from colliding.
func (cm *CheckpointManager) AutoCheckpoint(ctx context.Context, prefix string) error {
	tag := fmt.Sprintf("auto-%s-%d", prefix, time.Now().UnixNano())
	description := fmt.Sprintf("Automatic checkpoint before %s", prefix)

	if _, err := cm.create(ctx, tag, description, true); err != nil {
		return fmt.Errorf("failed to create auto-checkpoint: %w", err)
	}

	if err := cm.pruneAutoCheckpoints(ctx); err != nil {
		slog.Warn("Failed to prune old auto-checkpoints", "error", err)
	}

	return nil
}

func (cm *CheckpointManager) pruneAutoCheckpoints(ctx context.Context) error {
	checkpoints, err := cm.List(ctx)
	if err != nil {
		return err
	}

	autoSeen := 0
	for _, cp := range checkpoints {
		if !cp.IsAuto {
			continue
		}
		autoSeen++
		if autoSeen <= maxAutoCheckpoints {
			continue
		}
		if err := cm.Delete(ctx, cp.ID); err != nil {
			slog.Debug("Failed to delete old auto-checkpoint", "error", err, "checkpoint", cp.ID)
		}
	}

	return nil
}

func (m CheckpointMetadata) info() CheckpointInfo {
	return CheckpointInfo{
		ID:            m.ID,
		CreatedAt:     m.CreatedAt,
		Description:   m.Description,
		FileSize:      m.FileSize,
		Decisions:     m.RowCounts["decisions"],
		LedgerRows:    m.RowCounts["customer_history"],
		DocumentKeys:  m.RowCounts["document_keys"],
		SchemaVersion: m.SchemaVersion,
		IsAuto:        m.IsAuto,
	}
}

func validateCheckpointTag(tag string) error {
	if tag == "" {
		return errors.New("checkpoint tag cannot be empty")
	}
	if strings.ContainsAny(tag, `/\`) || strings.Contains(tag, "..") {
		return errors.New("invalid checkpoint tag: cannot contain path separators")
	}
	return nil
}

// countRows records per-table row counts in the metadata so a listing
// can show what a snapshot holds without opening it. A missing table
// counts as zero.
func (cm *CheckpointManager) countRows(ctx context.Context) map[string]int {
	queries := map[string]string{
		"decisions":        "SELECT COUNT(*) FROM decisions",
		"customer_history": "SELECT COUNT(*) FROM customer_history",
		"document_keys":    "SELECT COUNT(*) FROM document_keys",
	}

	counts := make(map[string]int, len(queries))
	for table, query := range queries {
		var count int
		if err := cm.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
			counts[table] = 0
			continue
		}
		counts[table] = count
	}
	return counts
}

func (cm *CheckpointManager) hasSpaceFor(required int64) bool {
	probe := filepath.Join(cm.dir, ".space-probe")
	f, err := os.Create(probe) // #nosec G304 -- probe lives under the checkpoints directory
	if err != nil {
		return false
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(probe)
	}()

	return f.Truncate(required) == nil
}

// snapshotDatabase copies the live database via VACUUM INTO after
// flushing the WAL, falling back to a plain file copy on SQLite builds
// without VACUUM INTO support.
func (cm *CheckpointManager) snapshotDatabase(ctx context.Context, destPath string) error {
	if _, err := cm.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint WAL: %w", err)
	}

	if strings.ContainsAny(destPath, `'";`) || strings.Contains(destPath, "..") {
		return fmt.Errorf("invalid snapshot path")
	}
	// #nosec G201 -- destPath is validated above and built from a checked tag
	if _, err := cm.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", destPath)); err != nil {
		return copyFileAtomic(cm.dbPath, destPath)
	}

	return nil
}

func copyFileAtomic(src, dst string) error {
	source, err := os.Open(src) // #nosec G304 -- callers pass validated paths
	if err != nil {
		return err
	}
	defer func() { _ = source.Close() }()

	tmp := dst + ".tmp"
	destination, err := os.Create(tmp) // #nosec G304 -- callers pass validated paths
	if err != nil {
		return err
	}

	if _, err := io.Copy(destination, source); err != nil {
		_ = destination.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := destination.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, dst)
}

func (cm *CheckpointManager) saveMetadata(path string, metadata CheckpointMetadata) error {
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (cm *CheckpointManager) loadMetadata(path string) (*CheckpointMetadata, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is under the checkpoints directory
	if err != nil {
		return nil, err
	}

	var metadata CheckpointMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, err
	}
	return &metadata, nil
}

func verifySnapshotIntegrity(path string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
