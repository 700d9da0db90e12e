//go:build integration

package guard_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattiq/mailservice/internal/guard"
)

const testRedisURL = "redis://localhost:6379/0"

func newTestRedisClient(t *testing.T) redis.UniversalClient {
	t.Helper()

	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = testRedisURL
	}

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	require.NoError(t, client.Ping(context.Background()).Err(), "failed to connect to Redis")

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

func TestRedisStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := guard.NewRedisStore(newTestRedisClient(t), guard.WithPrefix("test-guard:"+t.Name()+":"))
	g := guard.New(store, time.Minute)

	key := guard.Key{OrderID: "r-1", Recipient: "a@example.com", Subject: "Hi"}
	t.Cleanup(func() { _ = g.Release(ctx, key.Fingerprint()) })

	fp, ok, err := g.Acquire(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = g.Acquire(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	suppress, err := g.ShouldSuppress(ctx, key)
	require.NoError(t, err)
	assert.True(t, suppress)

	require.NoError(t, g.Release(ctx, fp))
	suppress, err = g.ShouldSuppress(ctx, key)
	require.NoError(t, err)
	assert.False(t, suppress)
}

func TestRedisStore_Expiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := guard.NewRedisStore(newTestRedisClient(t), guard.WithPrefix("test-guard-exp:"))

	ok, err := store.Acquire(ctx, "k", 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		exists, err := store.Exists(ctx, "k")
		return err == nil && !exists
	}, 2*time.Second, 20*time.Millisecond)
}
