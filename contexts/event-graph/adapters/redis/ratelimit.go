// Package redisadapter implements the rate-limit counter on redis so the
// budget is shared across processes. Fixed one-minute windows keyed per
// subject; semantics match the in-process token bucket closely enough for
// the preview rate contract.
package redisadapter

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"inviter/contexts/event-graph/ports"
)

const window = time.Minute

type RateLimiter struct {
	client *redis.Client
	limit  int64
}

func NewRateLimiter(client *redis.Client, perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	return &RateLimiter{client: client, limit: int64(perMinute)}
}

func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	counterKey := "ratelimit:" + key

	count, err := r.client.Incr(ctx, counterKey).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, counterKey, window).Err(); err != nil {
			return false, err
		}
	}
	return count <= r.limit, nil
}

var _ ports.RateLimiter = (*RateLimiter)(nil)
