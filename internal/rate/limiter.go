// Package rate implementa rate limiting de ventana fija, en Redis o en memoria.
package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	WindowTTL   time.Duration
	CurrentHits int64
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

func newResult(hits, max int64, ttl, window time.Duration) Result {
	remaining := max - hits
	if remaining < 0 {
		remaining = 0
	}
	res := Result{
		Allowed:     hits <= max,
		Remaining:   remaining,
		CurrentHits: hits,
		WindowTTL:   ttl,
	}
	if !res.Allowed {
		res.RetryAfter = ttl
		if res.RetryAfter <= 0 {
			res.RetryAfter = window
		}
	}
	return res
}

func windowKey(prefix, key string, now time.Time, window time.Duration) (string, time.Duration) {
	start := now.Truncate(window)
	ttl := start.Add(window).Sub(now)
	return fmt.Sprintf("%s%s:%d", prefix, strings.ReplaceAll(key, " ", "_"), start.Unix()), ttl
}

// RedisLimiter: fixed window (INCR + EXPIRE NX en la misma transacción).
type RedisLimiter struct {
	Client rdb.UniversalClient
	Prefix string
	Max    int64
	Window time.Duration
}

func NewRedisLimiter(client rdb.UniversalClient, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{Client: client, Prefix: prefix, Max: int64(max), Window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	redisKey, _ := windowKey(l.Prefix, key, time.Now().UTC(), l.Window)

	pipe := l.Client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, l.Window)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("rate: redis: %w", err)
	}
	return newResult(incr.Val(), l.Max, ttl.Val(), l.Window), nil
}
