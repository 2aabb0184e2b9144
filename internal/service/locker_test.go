package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalKeyLocker_SerializesSameKey(t *testing.T) {
	locker := NewLocalKeyLocker()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "D9")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
}

func TestLocalKeyLocker_KeysAreIndependent(t *testing.T) {
	locker := NewLocalKeyLocker()
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "D9")
	require.NoError(t, err)
	defer unlock()

	other, err := locker.Lock(ctx, "K9")
	require.NoError(t, err)
	other()
}

func TestLocalKeyLocker_WaitHonoursContext(t *testing.T) {
	locker := NewLocalKeyLocker()

	unlock, err := locker.Lock(context.Background(), "D9")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "D9")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// unlock 은 여러 번 불러도 한 번만 풀린다
	unlock()
	unlock()

	again, err := locker.Lock(context.Background(), "D9")
	require.NoError(t, err)
	again()
}

// timeoutLocker 항상 실패하는 락 (분산 락 대기 초과)
type timeoutLocker struct{}

func (timeoutLocker) Lock(context.Context, string) (func(), error) {
	return nil, context.DeadlineExceeded
}

func TestMatchmakingQueue_LockFailureIsStorageFault(t *testing.T) {
	env := newTestEnv(t)
	env.queue.locker = timeoutLocker{}

	_, err := env.crew.List(context.Background(), env.key(t, "D9"))
	assert.ErrorIs(t, err, ErrStorageFault)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "cause stays in the chain")
}
