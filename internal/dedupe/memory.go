// Package dedupe provides duplicate-document detectors: a process-local
// TTL detector for single-node deployments and tests, and a Redis-backed
// detector shared across analyzer instances. The durable SQLite detector
// lives in internal/storage.
package dedupe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Veraticus/docket/internal/common"
	"github.com/Veraticus/docket/internal/service"
)

// defaultWindow is how long a remembered key blocks resubmission when no
// TTL is configured.
const defaultWindow = 24 * time.Hour

// Memory is a thread-safe in-process duplicate detector.
type Memory struct {
	entries map[string]time.Time
	stopCh  chan struct{}
	ttl     time.Duration
	mu      sync.RWMutex
}

var _ service.DuplicateDetector = (*Memory)(nil)

// NewMemory creates a detector whose keys expire after ttl. A zero ttl
// uses the default window.
func NewMemory(ttl time.Duration) *Memory {
	if ttl == 0 {
		ttl = defaultWindow
	}

	m := &Memory{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	// Start cleanup goroutine
	go m.cleanup()

	return m
}

// Exists reports whether the key was remembered within the TTL window.
func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	expiry, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		return false, nil
	}
	return true, nil
}

// Remember records the key. Remembering a key that is still live returns
// ErrDuplicateEntry.
func (m *Memory) Remember(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if expiry, ok := m.entries[key]; ok && now.Before(expiry) {
		return fmt.Errorf("%w: document key %s", common.ErrDuplicateEntry, key)
	}

	m.entries[key] = now.Add(m.ttl)
	return nil
}

// cleanup periodically removes expired entries.
func (m *Memory) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.mu.Lock()
			now := time.Now()
			for key, expiry := range m.entries {
				if now.After(expiry) {
					delete(m.entries, key)
				}
			}
			m.mu.Unlock()
		}
	}
}

// size returns the number of live and expired entries still held.
func (m *Memory) size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close stops the cleanup goroutine.
func (m *Memory) Close() {
	close(m.stopCh)
}
