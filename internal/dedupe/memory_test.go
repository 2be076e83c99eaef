package dedupe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/docket/internal/common"
)

func TestMemory_RememberAndExists(t *testing.T) {
	m := NewMemory(time.Minute)
	defer m.Close()
	ctx := context.Background()

	key := "JOHN DOE|bank_statement|2026-02"

	exists, err := m.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("Key should not exist before Remember")
	}

	if err := m.Remember(ctx, key); err != nil {
		t.Fatalf("Remember failed: %v", err)
	}

	exists, err = m.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("Key should exist after Remember")
	}
}

func TestMemory_DuplicateKey(t *testing.T) {
	m := NewMemory(time.Minute)
	defer m.Close()
	ctx := context.Background()

	if err := m.Remember(ctx, "key-1"); err != nil {
		t.Fatalf("First Remember failed: %v", err)
	}

	err := m.Remember(ctx, "key-1")
	if !errors.Is(err, common.ErrDuplicateEntry) {
		t.Errorf("Second Remember error = %v, want ErrDuplicateEntry", err)
	}
}

func TestMemory_KeysExpire(t *testing.T) {
	m := NewMemory(30 * time.Millisecond)
	defer m.Close()
	ctx := context.Background()

	if err := m.Remember(ctx, "short-lived"); err != nil {
		t.Fatalf("Remember failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	exists, err := m.Exists(ctx, "short-lived")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("Key should have expired")
	}

	// An expired key can be remembered again without a duplicate error.
	if err := m.Remember(ctx, "short-lived"); err != nil {
		t.Errorf("Remember after expiry failed: %v", err)
	}
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	m := NewMemory(time.Minute)
	defer m.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", n%5)
			_ = m.Remember(ctx, key)
			_, _ = m.Exists(ctx, key)
		}(i)
	}
	wg.Wait()

	if got := m.size(); got != 5 {
		t.Errorf("size = %d, want 5 distinct keys", got)
	}
}
