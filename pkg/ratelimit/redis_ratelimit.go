package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript 토큰 리필과 소비를 원자적으로 처리
//
//	KEYS[1]  버킷 키 (HASH tokens, ts)
//	ARGV     limit, windowMillis, nowMillis
//	return   {allowed, remaining, resetMillis}
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])

	local state = redis.call('HMGET', key, 'tokens', 'ts')
	local tokens = tonumber(state[1])
	local last = tonumber(state[2])

	-- 첫 요청
	if tokens == nil then
		tokens = limit
		last = now
	end

	local rate = limit / window
	local elapsed = math.max(0, now - last)
	tokens = math.min(limit, tokens + elapsed * rate)

	local allowed = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	end

	redis.call('HSET', key, 'tokens', tokens, 'ts', now)
	redis.call('PEXPIRE', key, window * 2)

	local reset = now
	if tokens < 1 then
		reset = now + math.ceil((1 - tokens) / rate)
	end
	return {allowed, math.floor(tokens), reset}
`)

// RedisRateLimiter 인스턴스 간 공유되는 토큰 버킷
type RedisRateLimiter struct {
	client    redis.UniversalClient
	keyPrefix string
	limit     int
	window    time.Duration
}

// NewRedisRateLimiter window 당 limit 회
func NewRedisRateLimiter(client redis.UniversalClient, keyPrefix string, limit int, window time.Duration) *RedisRateLimiter {
	if keyPrefix == "" {
		keyPrefix = "ratelimit:"
	}
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisRateLimiter{
		client:    client,
		keyPrefix: keyPrefix,
		limit:     limit,
		window:    window,
	}
}

// Allow 토큰 하나 소비 시도
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (*Decision, error) {
	now := time.Now().UnixMilli()
	result, err := tokenBucketScript.Run(ctx, r.client,
		[]string{r.keyPrefix + key},
		r.limit, r.window.Milliseconds(), now,
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis script execution failed: %w", err)
	}
	if len(result) < 3 {
		return nil, fmt.Errorf("invalid script result")
	}

	return &Decision{
		Allowed:   result[0] == 1,
		Limit:     r.limit,
		Remaining: int(result[1]),
		ResetTime: time.UnixMilli(result[2]),
	}, nil
}

// Reset 특정 키의 버킷 삭제
func (r *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to reset rate limit: %w", err)
	}
	return nil
}
