package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCooldownRepository 이벤트 쿨다운을 TTL 키로 보관한다. 만료되면 키가 사라진다.
type RedisCooldownRepository struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisCooldownRepository(client redis.UniversalClient, prefix string) *RedisCooldownRepository {
	if prefix == "" {
		prefix = DefaultRedisQueuePrefix
	}
	return &RedisCooldownRepository{client: client, prefix: prefix, now: time.Now}
}

func (r *RedisCooldownRepository) cooldownKey(playerID string) string {
	return r.prefix + "cooldown:" + playerID
}

// SetCooldown until 이 이미 지났으면 기존 쿨다운만 지운다
func (r *RedisCooldownRepository) SetCooldown(ctx context.Context, playerID string, until time.Time) error {
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		if err := r.client.Del(ctx, r.cooldownKey(playerID)).Err(); err != nil {
			return fmt.Errorf("failed to clear cooldown: %w", err)
		}
		return nil
	}
	if err := r.client.Set(ctx, r.cooldownKey(playerID), until.UTC().UnixMilli(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cooldown: %w", err)
	}
	return nil
}

// CooldownUntil 쿨다운이 없으면 zero time
func (r *RedisCooldownRepository) CooldownUntil(ctx context.Context, playerID string) (time.Time, error) {
	ms, err := r.client.Get(ctx, r.cooldownKey(playerID)).Int64()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get cooldown: %w", err)
	}
	return time.UnixMilli(ms), nil
}
