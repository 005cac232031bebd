package attempts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "login_attempts:"

// RedisTracker shares counters between server replicas. INCR and EXPIRE run
// in one MULTI/EXEC so a counter never lives without a TTL. Redis owns
// memory bounds here; there is no capacity limit.
type RedisTracker struct {
	client redis.UniversalClient
	max    int
	ttl    time.Duration
}

// NewRedisTracker wraps an existing client. Non-positive max or ttl fall
// back to MaxAttempts and TTL.
func NewRedisTracker(client redis.UniversalClient, max int, ttl time.Duration) *RedisTracker {
	if max <= 0 {
		max = MaxAttempts
	}
	if ttl <= 0 {
		ttl = TTL
	}
	return &RedisTracker{client: client, max: max, ttl: ttl}
}

func redisKey(name string) string {
	return redisKeyPrefix + name
}

func (r *RedisTracker) RecordFailure(ctx context.Context, name string) error {
	key := redisKey(name)

	tx := r.client.TxPipeline()
	tx.Incr(ctx, key)
	tx.Expire(ctx, key, r.ttl)

	if _, err := tx.Exec(ctx); err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}
	return nil
}

func (r *RedisTracker) Evict(ctx context.Context, name string) error {
	if err := r.client.Del(ctx, redisKey(name)).Err(); err != nil {
		return fmt.Errorf("evict login attempts: %w", err)
	}
	return nil
}

func (r *RedisTracker) Exceeded(ctx context.Context, name string) (bool, error) {
	n, err := r.Count(ctx, name)
	if err != nil {
		return false, err
	}
	return n >= r.max, nil
}

func (r *RedisTracker) Count(ctx context.Context, name string) (int, error) {
	n, err := r.client.Get(ctx, redisKey(name)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read login attempts: %w", err)
	}
	return n, nil
}
