package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenBucketBurstThenDeny(t *testing.T) {
	limiter := New(60, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "caller-a")
		require.NoError(t, err)
		require.True(t, allowed, "request %d within burst", i)
	}
	allowed, err := limiter.Allow(ctx, "caller-a")
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestTokenBucketKeysAreIndependent(t *testing.T) {
	limiter := New(60, 1)
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "caller-a")
	require.NoError(t, err)
	require.True(t, allowed)
	allowed, err = limiter.Allow(ctx, "caller-a")
	require.NoError(t, err)
	require.False(t, allowed)

	// a different key has its own bucket
	allowed, err = limiter.Allow(ctx, "caller-b")
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestTokenBucketDefaults(t *testing.T) {
	limiter := New(0, 0)
	allowed, err := limiter.Allow(context.Background(), "caller")
	require.NoError(t, err)
	require.True(t, allowed)
}
