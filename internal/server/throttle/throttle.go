// Package throttle implements fixed-window counters used to cap how often
// an action may be performed for a key.
package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter reports whether one more action for key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// counter is the subset of redis.Cmdable used by RedisLimiter.
type counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisLimiter allows at most limit actions per key in each window. The
// window starts with the first action and is enforced by the key's TTL.
type RedisLimiter struct {
	client    counter
	namespace string
	limit     int64
	window    time.Duration
}

func NewRedisLimiter(client counter, namespace string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client:    client,
		namespace: namespace,
		limit:     int64(limit),
		window:    window,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	countKey := l.namespace + ":" + key

	cnt, err := l.client.Incr(ctx, countKey).Result()
	if err != nil {
		return false, fmt.Errorf("throttle incr: %w", err)
	}

	if cnt == 1 {
		if err := l.client.Expire(ctx, countKey, l.window).Err(); err != nil {
			return false, fmt.Errorf("throttle expire: %w", err)
		}
	}

	return cnt <= l.limit, nil
}

// NopLimiter allows everything.
type NopLimiter struct{}

func (NopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }
