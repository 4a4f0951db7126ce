package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter bounds how many times a given key (an IP, a machine ID, an API
// key ID) may act within a window, using Redis INCR + EXPIRE. Counters are
// namespaced by keyPrefix; forge-api builds one limiter, with the
// "phone_home" prefix, for DPU phone-home throttling.
type RateLimiter struct {
	redis      *redis.Client
	keyPrefix  string
	maxAttempt int
	window     time.Duration
}

// NewRateLimiter creates a rate limiter scoped by keyPrefix. maxAttempt is
// the max number of actions allowed per key within window.
func NewRateLimiter(rdb *redis.Client, keyPrefix string, maxAttempt int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		redis:      rdb,
		keyPrefix:  keyPrefix,
		maxAttempt: maxAttempt,
		window:     window,
	}
}

// RateLimitResult holds the result of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	RetryAt   time.Time
}

func (rl *RateLimiter) key(id string) string {
	return fmt.Sprintf("%s:%s", rl.keyPrefix, id)
}

// Check returns whether the given key is allowed to act.
func (rl *RateLimiter) Check(ctx context.Context, id string) (*RateLimitResult, error) {
	key := rl.key(id)

	count, err := rl.redis.Get(ctx, key).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("checking rate limit: %w", err)
	}

	if count >= rl.maxAttempt {
		ttl, err := rl.redis.TTL(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("getting TTL: %w", err)
		}
		return &RateLimitResult{
			Allowed:   false,
			Remaining: 0,
			RetryAt:   time.Now().Add(ttl),
		}, nil
	}

	return &RateLimitResult{
		Allowed:   true,
		Remaining: rl.maxAttempt - count,
	}, nil
}

// Record records one action against key.
func (rl *RateLimiter) Record(ctx context.Context, id string) error {
	key := rl.key(id)

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording rate limit: %w", err)
	}

	// The pipeline above already refreshes the expiry on every call, so the
	// window slides with each recorded action; this extra EXPIRE on the
	// first increment sets the same value again.
	if incr.Val() == 1 {
		rl.redis.Expire(ctx, key, rl.window)
	}

	return nil
}

// Reset clears the rate limit counter for key (on successful auth).
func (rl *RateLimiter) Reset(ctx context.Context, id string) error {
	return rl.redis.Del(ctx, rl.key(id)).Err()
}
