//go:build integration
// +build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisActionLock_AcquireAndRelease(t *testing.T) {
	client := startRedis(t)
	lock := NewRedisActionLock(client, "test:")
	ctx := context.Background()

	token, ok, err := lock.TryAcquire(ctx, "order-action:1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = lock.TryAcquire(ctx, "order-action:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lock.Release(ctx, "order-action:1", "not-the-owner"))
	exists, err := client.Exists(ctx, "test:order-action:1").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	require.NoError(t, lock.Release(ctx, "order-action:1", token))
	exists, err = client.Exists(ctx, "test:order-action:1").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists)
}

func TestRedisActionLock_TTL(t *testing.T) {
	client := startRedis(t)
	lock := NewRedisActionLock(client, "")
	ctx := context.Background()

	_, ok, err := lock.TryAcquire(ctx, "store-sync:1", 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		_, ok, err := lock.TryAcquire(ctx, "store-sync:1", time.Minute)
		return err == nil && ok
	}, 3*time.Second, 50*time.Millisecond)
}
