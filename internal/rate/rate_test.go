package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(2, time.Minute)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}
	res, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, int64(0), res.Remaining)
	require.Equal(t, time.Minute, res.RetryAfter)

	// otra key no comparte contador
	res, err = l.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	require.True(t, res.Allowed)

	// ventana siguiente
	now = now.Add(time.Minute)
	res, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, res.Allowed)
	require.Equal(t, int64(1), res.Remaining)
}

func TestWindowKey(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 45, 0, time.UTC)
	k, ttl := windowKey("rl:", "a b", now, time.Minute)
	require.Equal(t, "rl:a_b:1777629600", k)
	require.Equal(t, 15*time.Second, ttl)
}
