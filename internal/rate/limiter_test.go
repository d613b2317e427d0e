package rate

import (
	"context"
	"testing"
	"time"

	"chatdispatch/internal/db"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLimiter(t *testing.T, rps, burst int) *Limiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewLimiter(&db.RedisDB{Client: client}, zap.NewNop(), rps, burst)
}

func TestLimiter_AllowsWithinBurst(t *testing.T) {
	l := newTestLimiter(t, 1, 2)
	ctx := context.Background()

	ok1, _, err := l.Allow(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok1)

	ok2, _, err := l.Allow(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok2)
}

func TestLimiter_BlocksBeyondBurst(t *testing.T) {
	l := newTestLimiter(t, 1, 1)
	ctx := context.Background()

	ok1, _, err := l.Allow(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok1)

	ok2, retryAfter, err := l.Allow(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, ok2)
	require.Greater(t, retryAfter, time.Duration(0))
}

func TestLimiter_IndependentPerUser(t *testing.T) {
	l := newTestLimiter(t, 1, 1)
	ctx := context.Background()

	ok1, _, err := l.Allow(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok1)

	ok2, _, err := l.Allow(ctx, "user-2")
	require.NoError(t, err)
	require.True(t, ok2)
}

func TestLimiter_Reset(t *testing.T) {
	l := newTestLimiter(t, 1, 1)
	ctx := context.Background()

	ok1, _, err := l.Allow(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok1)

	require.NoError(t, l.Reset(ctx, "user-1"))

	ok2, _, err := l.Allow(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok2)
}
