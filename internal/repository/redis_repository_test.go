package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/576576/hadesstar-bot/internal/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisClient 테스트마다 독립된 miniredis
func setupRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func redisEntry(playerID string, key models.QueueKey) models.QueueEntry {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return models.QueueEntry{
		PlayerID:  playerID,
		Key:       key,
		JoinedAt:  now,
		ExpiresAt: now.Add(20 * time.Minute),
	}
}

func TestRedisQueueRepository_InsertAndList(t *testing.T) {
	repo := NewRedisQueueRepository(setupRedisClient(t), "")
	ctx := context.Background()
	d9 := models.QueueKey{Mode: models.ModeTrio, Level: 9, Capacity: 3}

	require.NoError(t, repo.Insert(ctx, redisEntry("alice", d9)))
	require.NoError(t, repo.Insert(ctx, redisEntry("bob", d9)))

	// 플레이어당 엔트리 하나
	err := repo.Insert(ctx, redisEntry("alice", d9.WithLevel(10)))
	assert.ErrorIs(t, err, ErrDuplicateEntry)

	entries, err := repo.ListByKey(ctx, d9)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "alice", entries[0].PlayerID)
	assert.Equal(t, "bob", entries[1].PlayerID)
	assert.True(t, entries[0].Key.Equal(d9))

	found, err := repo.FindByPlayer(ctx, "bob")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "D9", found.Key.String())

	missing, err := repo.FindByPlayer(ctx, "carol")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRedisQueueRepository_DeleteDropsEmptyKey(t *testing.T) {
	repo := NewRedisQueueRepository(setupRedisClient(t), "")
	ctx := context.Background()
	hk := models.QueueKey{Mode: models.ModeDuo, Level: 10, IsEvent: true, Capacity: 2}

	require.NoError(t, repo.Insert(ctx, redisEntry("alice", hk)))

	keys, err := repo.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "HK10", keys[0].String())
	assert.Equal(t, 2, keys[0].Capacity)

	deleted, err := repo.Delete(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, deleted)

	keys, err = repo.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRedisQueueRepository_ClearKeyAndReset(t *testing.T) {
	repo := NewRedisQueueRepository(setupRedisClient(t), "")
	ctx := context.Background()
	d9 := models.QueueKey{Mode: models.ModeTrio, Level: 9, Capacity: 3}
	s7 := models.QueueKey{Mode: models.ModeSolo, Level: 7, Capacity: 1}

	require.NoError(t, repo.Insert(ctx, redisEntry("alice", d9)))
	require.NoError(t, repo.Insert(ctx, redisEntry("bob", d9)))
	require.NoError(t, repo.Insert(ctx, redisEntry("carol", s7)))

	n, err := repo.ClearKey(ctx, d9)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	found, err := repo.FindByPlayer(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, found)

	// 비운 뒤 다시 들어올 수 있다
	require.NoError(t, repo.Insert(ctx, redisEntry("alice", d9)))

	require.NoError(t, repo.Reset(ctx))
	keys, err := repo.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
	found, err = repo.FindByPlayer(ctx, "carol")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestRedisQueueRepository_ConcurrentInsertSamePlayer(t *testing.T) {
	repo := NewRedisQueueRepository(setupRedisClient(t), "")
	ctx := context.Background()

	const attempts = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(level int) {
			defer wg.Done()
			key := models.QueueKey{Mode: models.ModeDuo, Level: level, Capacity: 2}
			if err := repo.Insert(ctx, redisEntry("alice", key)); err == nil {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}(models.MinLevel + i%models.LevelCount)
	}
	wg.Wait()

	assert.Equal(t, 1, inserted, "only one insert per player may succeed")
}

func TestRedisCooldownRepository(t *testing.T) {
	client := setupRedisClient(t)
	repo := NewRedisCooldownRepository(client, "")
	ctx := context.Background()

	until, err := repo.CooldownUntil(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, until.IsZero())

	want := time.Now().Add(20 * time.Minute).Truncate(time.Millisecond)
	require.NoError(t, repo.SetCooldown(ctx, "alice", want))

	until, err = repo.CooldownUntil(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, want.Equal(until), fmt.Sprintf("want %v got %v", want, until))

	ttl, err := client.TTL(ctx, repo.cooldownKey("alice")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 19*time.Minute)

	// 과거 시각은 쿨다운 해제
	require.NoError(t, repo.SetCooldown(ctx, "alice", time.Now().Add(-time.Second)))
	until, err = repo.CooldownUntil(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, until.IsZero())
}

func TestRedisCooldownRepository_ExpiresWithTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	repo := NewRedisCooldownRepository(client, "")
	ctx := context.Background()

	require.NoError(t, repo.SetCooldown(ctx, "bob", time.Now().Add(20*time.Minute)))
	mr.FastForward(19 * time.Minute)
	until, err := repo.CooldownUntil(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, until.IsZero())

	mr.FastForward(2 * time.Minute)
	until, err = repo.CooldownUntil(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, until.IsZero())
}
