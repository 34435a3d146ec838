package ratelimit

import (
	"context"
	"time"

	"github.com/go-redis/redis/v9"
)

type logger interface {
	Errorf(format string, v ...any)
}

// RedisLimiter is a fixed-window counter, one window per key.
type RedisLimiter struct {
	Redis  *redis.Client
	Limit  int
	Window time.Duration
	Logger logger
}

func (l RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	rKey := "rl:" + key
	n, err := l.Redis.Incr(ctx, rKey).Result()
	if err != nil {
		l.Logger.Errorf("RedisLimiter: Error incrementing counter with key: %s, err: %v", rKey, err)
		return true, 0
	}
	if n == 1 {
		if err = l.Redis.Expire(ctx, rKey, l.Window).Err(); err != nil {
			l.Logger.Errorf("RedisLimiter: Error setting expiry on key: %s, err: %v", rKey, err)
		}
	}
	if int(n) > l.Limit {
		ttl, err := l.Redis.TTL(ctx, rKey).Result()
		if err != nil || ttl < 0 {
			ttl = l.Window
		}
		return false, ttl
	}
	return true, 0
}

// RedisWindow remembers submission keys with SET NX and a TTL.
type RedisWindow struct {
	Redis  *redis.Client
	TTL    time.Duration
	Logger logger
}

func (w RedisWindow) Seen(ctx context.Context, key string) bool {
	rKey := "dup:" + key
	set, err := w.Redis.SetNX(ctx, rKey, 1, w.TTL).Result()
	if err != nil {
		w.Logger.Errorf("RedisWindow: Error setting key: %s, err: %v", rKey, err)
		return false
	}
	return !set
}
