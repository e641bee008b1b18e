//go:build integration

package bucket

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"execledger/pkg/testutil/containers"
)

func TestRedisBucketStore(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	client := rc.Client
	ctx := context.Background()
	require.NoError(t, client.FlushAll(ctx).Err())
	store := NewRedisBucketStore(client, "test:ratelimit:")

	for i := range testLimit {
		result, err := store.Allow(ctx, "caller", testLimit, testWindow)
		require.NoError(t, err)
		require.True(t, result.Allowed)
		require.Equal(t, testLimit-i-1, result.Remaining)
	}

	result, err := store.Allow(ctx, "caller", testLimit, testWindow)
	require.NoError(t, err)
	require.False(t, result.Allowed)
	require.Positive(t, result.RetryAfter)

	ttl, err := client.PTTL(ctx, "test:ratelimit:caller").Result()
	require.NoError(t, err)
	require.Positive(t, ttl)
	require.LessOrEqual(t, ttl, testWindow)

	result, err = store.Allow(ctx, "other", testLimit, testWindow)
	require.NoError(t, err)
	require.True(t, result.Allowed)
}
