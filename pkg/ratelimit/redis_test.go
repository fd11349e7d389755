package ratelimit_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/docgate/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a throwaway Redis and returns a client for it.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

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
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
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

func TestRedisStore(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	t.Run("update get delete", func(t *testing.T) {
		s := ratelimit.NewRedisStore(client, "test:")

		_, ok, err := s.Get(ctx, "k1")
		require.NoError(t, err)
		require.False(t, ok)

		c, err := s.Update(ctx, "k1", time.Minute, func(c *ratelimit.Counter) error {
			c.Count++
			c.WindowStart = time.Unix(1700000000, 0).UTC()
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 1, c.Count)

		got, ok, err := s.Get(ctx, "k1")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, 1, got.Count)
		require.True(t, got.WindowStart.Equal(c.WindowStart))

		ttl, err := client.PTTL(ctx, "test:k1").Result()
		require.NoError(t, err)
		require.Greater(t, ttl, 50*time.Second)

		require.NoError(t, s.Delete(ctx, "k1"))
		_, ok, err = s.Get(ctx, "k1")
		require.NoError(t, err)
		require.False(t, ok)

		require.NoError(t, s.Ping(ctx))
	})

	t.Run("limiter never over-admits", func(t *testing.T) {
		p := testPolicy()
		p.MaxAttempts = 10

		l, err := ratelimit.New(ratelimit.Config{
			Store:   ratelimit.NewRedisStore(client, "concurrency:"),
			Policy:  p,
			Timeout: 5 * time.Second,
		})
		require.NoError(t, err)

		var allowed atomic.Int32
		var wg sync.WaitGroup
		for range 100 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := l.CheckAndLimit(ctx, "shared")
				if err == nil && res.Success {
					allowed.Add(1)
				}
			}()
		}
		wg.Wait()

		require.LessOrEqual(t, allowed.Load(), int32(10))
		require.Positive(t, allowed.Load())
	})

	t.Run("unreachable redis fails closed", func(t *testing.T) {
		dead := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
		t.Cleanup(func() { _ = dead.Close() })

		l, err := ratelimit.New(ratelimit.Config{
			Store:   ratelimit.NewRedisStore(dead, "dead:"),
			Policy:  testPolicy(),
			Timeout: 200 * time.Millisecond,
		})
		require.NoError(t, err)

		res, err := l.CheckAndLimit(ctx, "ip")
		require.ErrorIs(t, err, ratelimit.ErrStoreUnavailable)
		require.False(t, res.Success)
	})
}
