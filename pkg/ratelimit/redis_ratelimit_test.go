package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisRateLimiter(t *testing.T, limit int, window time.Duration) *RedisRateLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisRateLimiter(client, "test:ratelimit:", limit, window)
}

func TestRedisRateLimiter_Allow(t *testing.T) {
	limiter := setupRedisRateLimiter(t, 3, time.Minute)
	ctx := context.Background()

	t.Run("한도까지 허용", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			d, err := limiter.Allow(ctx, "player:alice")
			require.NoError(t, err)
			assert.True(t, d.Allowed, "request %d", i+1)
			assert.Equal(t, 2-i, d.Remaining)
		}
	})

	t.Run("초과 요청은 거부", func(t *testing.T) {
		d, err := limiter.Allow(ctx, "player:alice")
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, 3, d.Limit)
		assert.True(t, d.ResetTime.After(time.Now()))
	})

	t.Run("키별 독립", func(t *testing.T) {
		d, err := limiter.Allow(ctx, "player:bob")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})

	t.Run("Reset 후 다시 허용", func(t *testing.T) {
		require.NoError(t, limiter.Reset(ctx, "player:alice"))
		d, err := limiter.Allow(ctx, "player:alice")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})
}

func TestRedisRateLimiter_Refill(t *testing.T) {
	limiter := setupRedisRateLimiter(t, 2, 200*time.Millisecond)
	ctx := context.Background()

	limiter.Allow(ctx, "k")
	limiter.Allow(ctx, "k")
	d, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)
	require.False(t, d.Allowed)

	time.Sleep(150 * time.Millisecond)

	d, err = limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisRateLimiter_Concurrent(t *testing.T) {
	limiter := setupRedisRateLimiter(t, 10, time.Minute)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := limiter.Allow(ctx, "shared")
			if err == nil && d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, allowed)
}
