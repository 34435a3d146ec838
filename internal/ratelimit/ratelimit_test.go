package ratelimit

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterBurstThenDeny(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	l := NewMemoryLimiter(6, 3)

	for i := 0; i < 3; i++ {
		ok, _ := l.Allow(ctx, "1.2.3.4")
		require.True(ok, "request %d within burst must pass", i)
	}

	ok, retry := l.Allow(ctx, "1.2.3.4")
	require.False(ok)
	require.Greater(retry, time.Duration(0), "denied request must carry a retry hint")
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	l := NewMemoryLimiter(6, 1)

	ok, _ := l.Allow(ctx, "1.2.3.4")
	require.True(ok)
	ok, _ = l.Allow(ctx, "1.2.3.4")
	require.False(ok)

	// A different client is unaffected.
	ok, _ = l.Allow(ctx, "5.6.7.8")
	require.True(ok)
}

func TestMemoryLimiterPrunesIdleVisitors(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	l := NewMemoryLimiter(6, 1)

	for i := 0; i < 4096; i++ {
		l.Allow(ctx, "client-"+strconv.Itoa(i))
	}
	require.Len(l.visitors, 4096)

	// Age everything past the idle cutoff, then trip the prune with a new key.
	l.mu.Lock()
	for _, v := range l.visitors {
		v.lastSeen = time.Now().Add(-11 * time.Minute)
	}
	l.mu.Unlock()

	ok, _ := l.Allow(ctx, "fresh-client")
	require.True(ok)
	require.Len(l.visitors, 1)
}

func TestMemoryWindowSeen(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	w := NewMemoryWindow(time.Minute)

	require.False(w.Seen(ctx, "CA:https://shop.example.com/p/1"))
	require.True(w.Seen(ctx, "CA:https://shop.example.com/p/1"))
	require.False(w.Seen(ctx, "US:https://shop.example.com/p/1"), "window keys are country-scoped")
}

func TestMemoryWindowExpiry(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	w := NewMemoryWindow(50 * time.Millisecond)

	require.False(w.Seen(ctx, "k"))
	time.Sleep(80 * time.Millisecond)
	require.False(w.Seen(ctx, "k"), "expired entry must not count as seen")
}
