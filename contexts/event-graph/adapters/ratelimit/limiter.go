// Package ratelimit provides the in-process token-bucket limiter used when
// no shared counter backend is configured.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"inviter/contexts/event-graph/ports"
)

// TokenBucket keeps one rate.Limiter per subject key.
type TokenBucket struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	perSec   rate.Limit
	burst    int
}

// New builds a limiter allowing perMinute events per key with the given
// burst.
func New(perMinute float64, burst int) *TokenBucket {
	if perMinute <= 0 {
		perMinute = 10
	}
	if burst <= 0 {
		burst = int(perMinute)
	}
	return &TokenBucket{
		limiters: make(map[string]*rate.Limiter),
		perSec:   rate.Limit(perMinute / 60.0),
		burst:    burst,
	}
}

func (t *TokenBucket) Allow(_ context.Context, key string) (bool, error) {
	t.mu.Lock()
	limiter, ok := t.limiters[key]
	if !ok {
		// Bound the map; a full reset only refunds bursts, it never blocks
		// a legitimate caller.
		if len(t.limiters) > 65536 {
			t.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(t.perSec, t.burst)
		t.limiters[key] = limiter
	}
	t.mu.Unlock()
	return limiter.Allow(), nil
}

var _ ports.RateLimiter = (*TokenBucket)(nil)
