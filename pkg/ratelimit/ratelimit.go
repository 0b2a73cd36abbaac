package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter allows one action per user per window.
type Limiter interface {
	Allow(ctx context.Context, userID uuid.UUID, action string, window time.Duration) (bool, error)
	Clear(ctx context.Context, userID uuid.UUID, action string) error
}

type RedisLimiter struct {
	rdb *redis.Client
}

// NewRedisLimiter returns a limiter backed by rdb. A nil client allows everything.
func NewRedisLimiter(rdb *redis.Client) *RedisLimiter {
	return &RedisLimiter{rdb: rdb}
}

func Key(userID uuid.UUID, action string) string {
	return fmt.Sprintf("rate_limit:user:%s:%s", userID.String(), action)
}

func (l *RedisLimiter) Allow(ctx context.Context, userID uuid.UUID, action string, window time.Duration) (bool, error) {
	if l.rdb == nil || window <= 0 {
		return true, nil
	}

	wasSet, err := l.rdb.SetNX(ctx, Key(userID, action), "locked", window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit in redis: %w", err)
	}
	return wasSet, nil
}

func (l *RedisLimiter) Clear(ctx context.Context, userID uuid.UUID, action string) error {
	if l.rdb == nil {
		return nil
	}
	return l.rdb.Del(ctx, Key(userID, action)).Err()
}
