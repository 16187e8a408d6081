package rate

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter es la versión in-process de RedisLimiter (un solo nodo).
type MemoryLimiter struct {
	Max    int64
	Window time.Duration

	c   *gocache.Cache
	now func() time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		Max:    int64(max),
		Window: window,
		c:      gocache.New(window, window*2),
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	k, ttl := windowKey("", key, l.now().UTC(), l.Window)
	// Add falla si la ventana ya existe; el incremento es atómico igual.
	_ = l.c.Add(k, int64(0), ttl)
	hits, err := l.c.IncrementInt64(k, 1)
	if err != nil {
		return Result{}, err
	}
	return newResult(hits, l.Max, ttl, l.Window), nil
}
