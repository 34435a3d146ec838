// Package ratelimit provides the anti-abuse primitives for public deal
// submission: a per-client rate limiter and a rolling duplicate-submission
// window. Both have an in-memory implementation and a redis-backed one for
// multi-instance deployments; the redis variants degrade open on redis
// errors so an outage never blocks submissions.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter gates an action per key. Allow returns false plus a retry hint
// when the key is over its budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration)
}

// Window remembers keys for a rolling interval. Seen marks the key and
// reports whether it was already present within the window.
type Window interface {
	Seen(ctx context.Context, key string) bool
}

type visitor struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type MemoryLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	visitors map[string]*visitor
}

// NewMemoryLimiter allows perMinute actions per key with the given burst.
func NewMemoryLimiter(perMinute float64, burst int) *MemoryLimiter {
	return &MemoryLimiter{
		limit:    rate.Limit(perMinute / 60),
		burst:    burst,
		visitors: map[string]*visitor{},
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	v, ok := l.visitors[key]
	if !ok {
		if len(l.visitors) >= 4096 {
			l.pruneLocked(now)
		}
		v = &visitor{lim: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now

	res := v.lim.Reserve()
	if d := res.Delay(); d > 0 {
		res.Cancel()
		return false, d
	}
	return true, 0
}

func (l *MemoryLimiter) pruneLocked(now time.Time) {
	for k, v := range l.visitors {
		if now.Sub(v.lastSeen) > 10*time.Minute {
			delete(l.visitors, k)
		}
	}
}

type MemoryWindow struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time
}

func NewMemoryWindow(ttl time.Duration) *MemoryWindow {
	return &MemoryWindow{
		ttl:     ttl,
		entries: map[string]time.Time{},
	}
}

func (w *MemoryWindow) Seen(_ context.Context, key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	for k, t := range w.entries {
		if now.Sub(t) > w.ttl {
			delete(w.entries, k)
		}
	}
	if t, ok := w.entries[key]; ok && now.Sub(t) <= w.ttl {
		return true
	}
	w.entries[key] = now
	return false
}
