package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, maxAttempts int, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewWithClient(rdb, "test:", maxAttempts, window), mr
}

func TestLimiter_BlocksAfterMaxFailures(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "alice")
		require.NoError(t, err)
		require.True(t, ok, "attempt %d", i)
		require.NoError(t, l.Fail(ctx, "alice"))
	}

	ok, err := l.Allow(ctx, "alice")
	require.NoError(t, err)
	require.False(t, ok)

	// Ключ нормализуется: регистр и пробелы не обходят лимит.
	ok, err = l.Allow(ctx, "  ALICE ")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = l.Allow(ctx, "bob")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLimiter_WindowExpires(t *testing.T) {
	t.Parallel()

	l, mr := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	require.NoError(t, l.Fail(ctx, "alice"))
	require.Equal(t, time.Minute, mr.TTL("test:alice"))

	ok, err := l.Allow(ctx, "alice")
	require.NoError(t, err)
	require.False(t, ok)

	mr.FastForward(time.Minute + time.Second)

	ok, err = l.Allow(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLimiter_ResetClearsCounter(t *testing.T) {
	t.Parallel()

	l, mr := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	require.NoError(t, l.Fail(ctx, "alice"))
	require.NoError(t, l.Reset(ctx, "alice"))
	require.False(t, mr.Exists("test:alice"))

	ok, err := l.Allow(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLimiter_Disabled(t *testing.T) {
	t.Parallel()

	l, mr := newTestLimiter(t, 0, time.Minute)
	ctx := context.Background()

	require.NoError(t, l.Fail(ctx, "alice"))
	require.False(t, mr.Exists("test:alice"))

	ok, err := l.Allow(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLimiter_Unavailable(t *testing.T) {
	t.Parallel()

	l, mr := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()
	mr.Close()

	ok, err := l.Allow(ctx, "alice")
	require.ErrorIs(t, err, ErrUnavailable)
	require.True(t, ok)

	require.ErrorIs(t, l.Fail(ctx, "alice"), ErrUnavailable)
	require.ErrorIs(t, l.Reset(ctx, "alice"), ErrUnavailable)
}

func TestNew(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	l, err := New(context.Background(), "redis://"+mr.Addr()+"/0", "", 5, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	require.Equal(t, "accounts:login:", l.prefix)
	require.NoError(t, l.Ping(context.Background()))

	_, err = New(context.Background(), "not-a-url", "", 5, time.Minute)
	require.Error(t, err)
}
