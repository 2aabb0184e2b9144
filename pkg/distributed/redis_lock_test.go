package distributed

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

// newTestRedis 테스트마다 독립된 miniredis
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisKeyLocker_SerializesCriticalSection(t *testing.T) {
	client := newTestRedis(t)
	locker := NewRedisKeyLocker(client, "test:lock:", 5*time.Second, 5*time.Second)

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inside   int
		maxSeen  int
		finished int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), "D9")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			mu.Lock()
			inside++
			maxSeen = max(maxSeen, inside)
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			inside--
			finished++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, workers, finished)
}

func TestRedisKeyLocker_MaxWaitAndIndependentKeys(t *testing.T) {
	client := newTestRedis(t)
	locker := NewRedisKeyLocker(client, "test:lock:", 5*time.Second, 80*time.Millisecond)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "HK10")
	require.NoError(t, err)
	defer unlock()

	start := time.Now()
	_, err = locker.Lock(ctx, "HK10")
	assert.ErrorIs(t, err, ErrLockNotAcquired)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)

	unlockOther, err := locker.Lock(ctx, "HK11")
	require.NoError(t, err)
	unlockOther()
}

func TestRedisKeyLocker_ContextCancelled(t *testing.T) {
	client := newTestRedis(t)
	locker := NewRedisKeyLocker(client, "test:lock:", 5*time.Second, 5*time.Second)

	unlock, err := locker.Lock(context.Background(), "Q9")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "Q9")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisKeyLocker_ExtendsWhileHeld(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ttl := 300 * time.Millisecond
	locker := NewRedisKeyLocker(client, "test:lock:", ttl, 50*time.Millisecond)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "D10")
	require.NoError(t, err)

	// 합쳐서 ttl 을 넘기지만 그 사이 연장이 한 번 돈다
	mr.FastForward(200 * time.Millisecond)
	time.Sleep(ttl)
	mr.FastForward(200 * time.Millisecond)

	assert.True(t, mr.Exists("test:lock:D10"))
	_, err = locker.Lock(ctx, "D10")
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	unlock()
	unlock()
	assert.False(t, mr.Exists("test:lock:D10"))
}

func TestRedisKeyLocker_UnlockKeepsForeignOwner(t *testing.T) {
	client := newTestRedis(t)
	locker := NewRedisKeyLocker(client, "test:lock:", 5*time.Second, 50*time.Millisecond)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "K9")
	require.NoError(t, err)

	// 만료 후 다른 인스턴스가 잡은 상황
	require.NoError(t, client.Set(ctx, "test:lock:K9", "other-instance", time.Minute).Err())
	unlock()

	owner, err := client.Get(ctx, "test:lock:K9").Result()
	require.NoError(t, err)
	assert.Equal(t, "other-instance", owner)
}
