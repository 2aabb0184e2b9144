package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Decision 한 번의 허용 판정
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"reset_time"`
}

// Limiter 키(플레이어 ID, IP) 단위 요청 제한
type Limiter interface {
	Allow(ctx context.Context, key string) (*Decision, error)
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 프로세스 로컬 키별 토큰 버킷 (x/time/rate).
// window 당 limit 회, 버스트도 limit.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	every   rate.Limit
	idleTTL time.Duration
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter Stop 으로 정리 루프를 끝낸다
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		every:   rate.Every(window / time.Duration(limit)),
		idleTTL: 2 * window,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go rl.cleanupLoop(window)
	return rl
}

func (rl *RateLimiter) Allow(_ context.Context, key string) (*Decision, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.every, rl.limit)}
		rl.buckets[key] = b
	}
	b.lastSeen = now

	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)

	reset := now
	if tokens < 1 {
		reset = now.Add(time.Duration((1 - tokens) / float64(rl.every) * float64(time.Second)))
	}
	return &Decision{
		Allowed:   allowed,
		Limit:     rl.limit,
		Remaining: int(math.Max(0, math.Floor(tokens))),
		ResetTime: reset,
	}, nil
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(max(interval, time.Minute))
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

// cleanup idleTTL 동안 안 쓴 버킷은 이미 가득 찼으니 버린다
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-rl.idleTTL)
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// Reset 키의 버킷 삭제
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, key)
}

// Size 활성 버킷 수
func (rl *RateLimiter) Size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}
