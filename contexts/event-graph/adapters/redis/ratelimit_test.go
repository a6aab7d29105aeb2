package redisadapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/require"
)

func TestAllowFirstHitStartsWindow(t *testing.T) {
	client, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(client, 2)

	mock.ExpectIncr("ratelimit:invite-preview:203.0.113.9").SetVal(1)
	mock.ExpectExpire("ratelimit:invite-preview:203.0.113.9", time.Minute).SetVal(true)

	allowed, err := limiter.Allow(context.Background(), "invite-preview:203.0.113.9")
	require.NoError(t, err)
	require.True(t, allowed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllowDeniesPastTheLimit(t *testing.T) {
	client, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(client, 2)

	// counts past the first hit do not reset the TTL
	mock.ExpectIncr("ratelimit:caller").SetVal(2)
	allowed, err := limiter.Allow(context.Background(), "caller")
	require.NoError(t, err)
	require.True(t, allowed)

	mock.ExpectIncr("ratelimit:caller").SetVal(3)
	allowed, err = limiter.Allow(context.Background(), "caller")
	require.NoError(t, err)
	require.False(t, allowed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllowSurfacesBackendErrors(t *testing.T) {
	client, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(client, 2)

	mock.ExpectIncr("ratelimit:caller").SetErr(errors.New("connection refused"))
	allowed, err := limiter.Allow(context.Background(), "caller")
	require.Error(t, err)
	require.False(t, allowed)
}
