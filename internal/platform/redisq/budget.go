package redisq

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// budgetTTL bounds how long a crashed worker's slots stay held. Every
// acquire refreshes the expiry, so the counter only decays when no
// worker is touching it.
const budgetTTL = 5 * time.Minute

// Budget is a shared rate budget for generation calls, counted in redis
// so every worker pool instance draws from the same pool of slots.
// Acquire blocks until a slot frees up, which is the backpressure that
// keeps the fleet under the provider's rate limit.
type Budget struct {
	rdb       *redis.Client
	key       string
	limit     int
	retryWait time.Duration
}

// NewBudget creates a budget with the given slot limit. The key
// namespaces independent budgets (one per provider).
func NewBudget(rdb *redis.Client, key string, limit int) *Budget {
	return &Budget{
		rdb:       rdb,
		key:       key,
		limit:     limit,
		retryWait: 100 * time.Millisecond,
	}
}

// Acquire takes one slot, blocking until one is available or the
// context ends. Callers must Release the slot when the call finishes.
func (b *Budget) Acquire(ctx context.Context) error {
	for {
		n, err := b.rdb.Incr(ctx, b.key).Result()
		if err != nil {
			return fmt.Errorf("failed to acquire budget slot: %w", err)
		}
		b.rdb.Expire(ctx, b.key, budgetTTL)

		if n <= int64(b.limit) {
			return nil
		}

		// Over the limit: give the slot back and wait for capacity.
		b.rdb.Decr(ctx, b.key)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.retryWait):
		}
	}
}

// Release returns a slot to the budget. The background context keeps
// the release working even when the caller's context was cancelled.
func (b *Budget) Release() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	b.rdb.Decr(ctx, b.key)
}
