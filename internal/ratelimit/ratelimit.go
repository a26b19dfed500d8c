// Package ratelimit counts failed attempts per caller in fixed windows.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type Limiter interface {
	// Exceeded reports whether key used up its attempts in the current window.
	Exceeded(ctx context.Context, key string) (bool, error)
	// Hit records one failed attempt for key.
	Hit(ctx context.Context, key string) error
}

// Counter is the part of *redis.Client the limiter needs.
type Counter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

type RedisLimiter struct {
	counter Counter
	prefix  string
	limit   int
	window  time.Duration
}

func NewRedisLimiter(counter Counter, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{counter: counter, prefix: prefix, limit: limit, window: window}
}

// Connect parses a redis:// URL and returns a client for it.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ratelimit: ping: %w", err)
	}
	return client, nil
}

func (l *RedisLimiter) key(key string) string {
	return l.prefix + ":" + key
}

func (l *RedisLimiter) Exceeded(ctx context.Context, key string) (bool, error) {
	value, err := l.counter.Get(ctx, l.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	count, err := strconv.Atoi(value)
	if err != nil {
		return false, fmt.Errorf("ratelimit: counter %q: %w", key, err)
	}
	return count >= l.limit, nil
}

func (l *RedisLimiter) Hit(ctx context.Context, key string) error {
	k := l.key(key)
	count, err := l.counter.Incr(ctx, k).Result()
	if err != nil {
		return err
	}
	if count == 1 {
		return l.counter.Expire(ctx, k, l.window).Err()
	}
	return nil
}

// Noop never limits. It is used when no Redis is configured.
type Noop struct{}

func (Noop) Exceeded(context.Context, string) (bool, error) { return false, nil }

func (Noop) Hit(context.Context, string) error { return nil }
