package cache_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/popeskul/wa-inbox/internal/cache"
)

func setupTestRedis(t *testing.T) *redis.Client {
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestIdempotencyStore(t *testing.T) {
	client := setupTestRedis(t)
	store := cache.NewIdempotencyStore(client, time.Hour)
	ctx := context.Background()

	companyA := uuid.New()
	companyB := uuid.New()

	t.Run("unknown id is not seen", func(t *testing.T) {
		seen, err := store.Seen(ctx, companyA, "wamid.1")
		require.NoError(t, err)
		assert.False(t, seen)
	})

	t.Run("marked id is seen with ttl", func(t *testing.T) {
		require.NoError(t, store.Mark(ctx, companyA, "wamid.2"))

		seen, err := store.Seen(ctx, companyA, "wamid.2")
		require.NoError(t, err)
		assert.True(t, seen)

		ttl, err := client.TTL(ctx, fmt.Sprintf("inbox:msg:%s:wamid.2", companyA)).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, 59*time.Minute)
	})

	t.Run("keys are per company", func(t *testing.T) {
		require.NoError(t, store.Mark(ctx, companyA, "wamid.3"))

		seen, err := store.Seen(ctx, companyB, "wamid.3")
		require.NoError(t, err)
		assert.False(t, seen)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, store.Ping(ctx))
	})
}

func TestIdempotencyStore_Unavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	store := cache.NewIdempotencyStore(client, time.Hour)

	_, err := store.Seen(context.Background(), uuid.New(), "x")
	assert.Error(t, err)
	assert.Error(t, store.Mark(context.Background(), uuid.New(), "x"))
}
