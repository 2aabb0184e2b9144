package distributed

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("lock not acquired")

var (
	// 소유자 토큰이 같을 때만 지운다
	unlockScript = redis.NewScript(`
		if redis.call('GET', KEYS[1]) == ARGV[1] then
			return redis.call('DEL', KEYS[1])
		end
		return 0
	`)

	// 소유자 토큰이 같을 때만 TTL 을 다시 건다
	extendScript = redis.NewScript(`
		if redis.call('GET', KEYS[1]) == ARGV[1] then
			return redis.call('PEXPIRE', KEYS[1], ARGV[2])
		end
		return 0
	`)
)

const (
	minBackoff = 5 * time.Millisecond
	maxBackoff = 100 * time.Millisecond
)

// RedisKeyLocker 대기열 키 단위 분산 락. 여러 인스턴스가 같은 Redis 를 볼 때
// 참가/발차 임계 구역을 인스턴스 간에 직렬화한다.
//
// 잡고 있는 동안 ttl/3 마다 만료를 연장하므로 임계 구역이 ttl 보다 길어져도
// 락이 풀리지 않는다. 프로세스가 죽으면 ttl 뒤에 풀린다.
type RedisKeyLocker struct {
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	maxWait time.Duration
}

func NewRedisKeyLocker(client redis.UniversalClient, prefix string, ttl, maxWait time.Duration) *RedisKeyLocker {
	if prefix == "" {
		prefix = "{crew}:lock:"
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if maxWait <= 0 {
		maxWait = 5 * time.Second
	}
	return &RedisKeyLocker{client: client, prefix: prefix, ttl: ttl, maxWait: maxWait}
}

// Lock 지수 백오프로 maxWait 까지 재시도. 못 잡으면 ErrLockNotAcquired,
// ctx 가 먼저 끝나면 ctx.Err().
func (k *RedisKeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := k.prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(k.maxWait)
	backoff := minBackoff

	for {
		ok, err := k.client.SetNX(ctx, redisKey, token, k.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return k.hold(redisKey, token), nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrLockNotAcquired
		}
		wait := backoff/2 + rand.N(backoff/2+1)
		if wait > remaining {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// hold 연장 고루틴을 띄우고 해제 함수를 돌려준다. 해제는 여러 번 불러도 된다.
func (k *RedisKeyLocker) hold(redisKey, token string) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(k.ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), k.ttl/3)
				n, err := extendScript.Run(ctx, k.client, []string{redisKey}, token, k.ttl.Milliseconds()).Int()
				cancel()
				if err == nil && n == 0 {
					// 이미 다른 소유자에게 넘어갔다
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-stopped

			// 호출자 ctx 가 이미 취소됐어도 해제는 시도한다
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = unlockScript.Run(ctx, k.client, []string{redisKey}, token).Err()
		})
	}
}
