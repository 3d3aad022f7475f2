package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares counters across replicas. Keys carry the window start,
// so old windows simply expire.
type RedisLimiter struct {
	rdb    *redis.Client
	limit  int64
	period time.Duration
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(rdb *redis.Client, limit int64, period time.Duration) *RedisLimiter {
	if period <= 0 {
		period = time.Minute
	}
	return &RedisLimiter{rdb: rdb, limit: limit, period: period, prefix: "ratelimit", now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	start := l.now().Truncate(l.period)
	rkey := l.prefix + ":" + key + ":" + strconv.FormatInt(start.Unix(), 10)

	var incr *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, rkey)
		p.Expire(ctx, rkey, 2*l.period)
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	count := incr.Val()
	return Result{
		Allowed: count <= l.limit,
		Count:   count,
		ResetAt: start.Add(l.period),
	}, nil
}
