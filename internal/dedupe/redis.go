package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Veraticus/docket/internal/common"
	"github.com/Veraticus/docket/internal/service"
)

const keyPrefix = "docket:dedupe:"

// Redis is a duplicate detector backed by a shared Redis instance, for
// deployments running more than one analyzer against the same customer
// base. Transient command failures are retried; a key that turns out to
// already exist is not.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	retry  service.RetryOptions
}

var _ service.DuplicateDetector = (*Redis)(nil)

// NewRedis connects to Redis at addr. Keys expire after ttl; a zero ttl
// uses the default window.
func NewRedis(addr, password string, db int, ttl time.Duration) (*Redis, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	if ttl == 0 {
		ttl = defaultWindow
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Redis{
		client: client,
		ttl:    ttl,
		retry:  service.RetryOptions{MaxAttempts: 3, InitialDelay: 100 * time.Millisecond},
	}, nil
}

// Exists reports whether the key was remembered within the TTL window.
func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	var found bool
	err := common.WithRetry(ctx, func() error {
		n, err := r.client.Exists(ctx, keyPrefix+key).Result()
		if err != nil {
			return fmt.Errorf("failed to check document key: %w", err)
		}
		found = n > 0
		return nil
	}, r.retry)
	if err != nil {
		return false, err
	}
	return found, nil
}

// Remember records the key with SET NX so concurrent analyzers agree on
// a single winner. A key that already exists returns ErrDuplicateEntry.
func (r *Redis) Remember(ctx context.Context, key string) error {
	var created bool
	err := common.WithRetry(ctx, func() error {
		ok, err := r.client.SetNX(ctx, keyPrefix+key, 1, r.ttl).Result()
		if err != nil {
			return fmt.Errorf("failed to remember document key: %w", err)
		}
		created = ok
		return nil
	}, r.retry)
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("%w: document key %s", common.ErrDuplicateEntry, key)
	}
	return nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
