package repository_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/nikolayk812/storefront-cart/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func startPostgres(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	postgresContainer, err := postgres.Run(ctx, "postgres:17.6-alpine3.22",
		postgres.BasicWaitStrategies(),
		postgres.WithInitScripts(
			"migrations/01_kv_entries.up.sql"),
	)
	if err != nil {
		return nil, "", fmt.Errorf("postgres.Run: %w", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", fmt.Errorf("pc.ConnectionString: %w", err)
	}

	return postgresContainer, connStr, nil
}

func startRedis(ctx context.Context) (*tcredis.RedisContainer, string, error) {
	redisContainer, err := tcredis.Run(ctx, "redis:7.4-alpine")
	if err != nil {
		return nil, "", fmt.Errorf("redis.Run: %w", err)
	}

	connStr, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("rc.ConnectionString: %w", err)
	}

	return redisContainer, connStr, nil
}

// runKVContract checks the behaviour every KV backend has to share.
func runKVContract(t *testing.T, kv port.KVStore) {
	t.Helper()

	t.Run("get missing key: absent", func(t *testing.T) {
		_, ok, err := kv.Get(t.Context(), gofakeit.UUID())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set then get: ok", func(t *testing.T) {
		ctx := t.Context()
		key := gofakeit.UUID()
		value := []byte(`[{"id":"a1","title":"Red Bird"}]`)

		require.NoError(t, kv.Set(ctx, key, value))

		got, ok, err := kv.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, value, got)
	})

	t.Run("set overwrites: last writer wins", func(t *testing.T) {
		ctx := t.Context()
		key := gofakeit.UUID()

		require.NoError(t, kv.Set(ctx, key, []byte("first")))
		require.NoError(t, kv.Set(ctx, key, []byte("second")))

		got, ok, err := kv.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "second", string(got))
	})

	t.Run("delete: absent afterwards", func(t *testing.T) {
		ctx := t.Context()
		key := gofakeit.UUID()

		require.NoError(t, kv.Set(ctx, key, []byte("x")))
		require.NoError(t, kv.Delete(ctx, key))

		_, ok, err := kv.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)

		// deleting twice is not an error
		require.NoError(t, kv.Delete(ctx, key))
	})
}

// runWatchContract checks that a write to the watched key reaches fn.
func runWatchContract(t *testing.T, kv interface {
	port.KVStore
	port.Watcher
}) {
	t.Helper()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	key := gofakeit.UUID()
	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- kv.Watch(ctx, key, func() { calls.Add(1) })
	}()

	// a subscription may take a moment to become active, keep writing until heard
	require.Eventually(t, func() bool {
		if err := kv.Set(t.Context(), key, []byte(gofakeit.Word())); err != nil {
			return false
		}
		return calls.Load() > 0
	}, 10*time.Second, 100*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
