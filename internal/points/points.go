// Package points records point awards for users whose submissions get
// approved. The ledger itself lives outside this service; redis keeps the
// running totals the points subsystem reads.
package points

import (
	"context"
	"time"

	"github.com/go-redis/redis/v9"
	"github.com/pkg/errors"
)

type Awarder interface {
	Award(ctx context.Context, userID string, points int) error
}

type RedisAwarder struct {
	Redis *redis.Client
}

func (a RedisAwarder) Award(ctx context.Context, userID string, points int) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := a.Redis.IncrBy(ctx, "points:"+userID, int64(points)).Err()
	return errors.Wrapf(err, "error awarding %d point(s) to user: %s", points, userID)
}

type logger interface {
	Infof(format string, v ...any)
}

// LogAwarder stands in when no redis is configured; awards are only logged.
type LogAwarder struct {
	Logger logger
}

func (a LogAwarder) Award(_ context.Context, userID string, points int) error {
	a.Logger.Infof("points: Awarded %d point(s) to user: %s (log-only awarder)", points, userID)
	return nil
}
