package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimited wraps a Client with a token-bucket limiter so bulk feed runs
// cannot exceed the provider's per-minute allowance. Waiting respects the
// caller's context; a canceled wait means no oracle call was made.
type RateLimited struct {
	inner   Client
	limiter *rateLimiter
}

// NewRateLimited wraps client at the given requests-per-minute rate.
func NewRateLimited(client Client, requestsPerMinute int) *RateLimited {
	return &RateLimited{
		inner:   client,
		limiter: newRateLimiter(requestsPerMinute),
	}
}

// Judge waits for a token, then delegates. One token is one upstream call.
func (r *RateLimited) Judge(ctx context.Context, req *Request) (*Response, error) {
	if err := r.limiter.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Judge(ctx, req)
}

// Close stops the refill goroutine.
func (r *RateLimited) Close() {
	r.limiter.Close()
}

// rateLimiter is a token bucket refilled at a steady per-minute rate.
type rateLimiter struct {
	lastRefill time.Time
	stopCh     chan struct{}
	tokens     int
	capacity   int
	refillRate int
	mu         sync.Mutex
}

func newRateLimiter(requestsPerMinute int) *rateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}

	rl := &rateLimiter{
		tokens:     requestsPerMinute,
		capacity:   requestsPerMinute,
		refillRate: requestsPerMinute,
		lastRefill: time.Now(),
		stopCh:     make(chan struct{}),
	}
	go rl.refill()
	return rl
}

// wait blocks until a token is available or the context is canceled.
func (rl *rateLimiter) wait(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if rl.tryAcquire() {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("rate limiter canceled: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (rl *rateLimiter) tryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}

// refill adds one token per interval up to capacity.
func (rl *rateLimiter) refill() {
	ticker := time.NewTicker(time.Minute / time.Duration(rl.refillRate))
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.mu.Lock()
			if rl.tokens < rl.capacity {
				rl.tokens++
			}
			rl.mu.Unlock()
		}
	}
}

// Close stops the refill goroutine.
func (rl *rateLimiter) Close() {
	close(rl.stopCh)
}
