package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/576576/hadesstar-bot/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisQueuePrefix 해시 태그로 모든 키를 한 슬롯에 둔다 (클러스터에서도 Lua 가 동작)
const DefaultRedisQueuePrefix = "{crew}:"

// redisQueueRecord players 해시 값. key 는 Lua 에서 cjson 으로 읽는다.
type redisQueueRecord struct {
	Key   string            `json:"key"`
	Entry models.QueueEntry `json:"entry"`
}

var (
	// KEYS: players, keyset, capacity, seq, members
	// ARGV: playerID, record, key, capacity
	insertScript = redis.NewScript(`
		if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 1 then
			return 0
		end
		local seq = redis.call('INCR', KEYS[4])
		redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
		redis.call('ZADD', KEYS[5], seq, ARGV[1])
		redis.call('ZADD', KEYS[2], 'NX', seq, ARGV[3])
		redis.call('HSET', KEYS[3], ARGV[3], ARGV[4])
		return 1
	`)

	// KEYS: players, keyset, capacity
	// ARGV: playerID, memberPrefix
	deleteScript = redis.NewScript(`
		local raw = redis.call('HGET', KEYS[1], ARGV[1])
		if not raw then
			return 0
		end
		local key = cjson.decode(raw).key
		local members = ARGV[2] .. key
		redis.call('HDEL', KEYS[1], ARGV[1])
		redis.call('ZREM', members, ARGV[1])
		if redis.call('ZCARD', members) == 0 then
			redis.call('DEL', members)
			redis.call('ZREM', KEYS[2], key)
			redis.call('HDEL', KEYS[3], key)
		end
		return 1
	`)

	// KEYS: players, keyset, capacity, members
	// ARGV: key
	clearScript = redis.NewScript(`
		local ids = redis.call('ZRANGE', KEYS[4], 0, -1)
		for _, id in ipairs(ids) do
			redis.call('HDEL', KEYS[1], id)
		end
		redis.call('DEL', KEYS[4])
		redis.call('ZREM', KEYS[2], ARGV[1])
		redis.call('HDEL', KEYS[3], ARGV[1])
		return #ids
	`)

	// KEYS: players, keyset, capacity
	// ARGV: memberPrefix
	resetScript = redis.NewScript(`
		local keys = redis.call('ZRANGE', KEYS[2], 0, -1)
		for _, key in ipairs(keys) do
			redis.call('DEL', ARGV[1] .. key)
		end
		redis.call('DEL', KEYS[1], KEYS[2], KEYS[3])
		return #keys
	`)
)

// RedisQueueRepository 여러 인스턴스가 공유하는 Redis 대기열 저장소.
//
//	<prefix>players        HASH  playerID -> record
//	<prefix>keys           ZSET  queueKey (score: 첫 엔트리 seq)
//	<prefix>capacity       HASH  queueKey -> capacity
//	<prefix>seq            STRING 삽입 순번
//	<prefix>members:<key>  ZSET  playerID (score: seq)
type RedisQueueRepository struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisQueueRepository(client redis.UniversalClient, prefix string) *RedisQueueRepository {
	if prefix == "" {
		prefix = DefaultRedisQueuePrefix
	}
	return &RedisQueueRepository{client: client, prefix: prefix}
}

func (r *RedisQueueRepository) playersKey() string  { return r.prefix + "players" }
func (r *RedisQueueRepository) keysetKey() string   { return r.prefix + "keys" }
func (r *RedisQueueRepository) capacityKey() string { return r.prefix + "capacity" }
func (r *RedisQueueRepository) seqKey() string      { return r.prefix + "seq" }
func (r *RedisQueueRepository) memberPrefix() string {
	return r.prefix + "members:"
}

func (r *RedisQueueRepository) membersKey(key string) string {
	return r.memberPrefix() + key
}

// Insert 플레이어 엔트리가 이미 있으면 ErrDuplicateEntry
func (r *RedisQueueRepository) Insert(ctx context.Context, entry models.QueueEntry) error {
	key := entry.Key.String()
	data, err := json.Marshal(redisQueueRecord{Key: key, Entry: entry})
	if err != nil {
		return fmt.Errorf("failed to marshal queue entry: %w", err)
	}

	inserted, err := insertScript.Run(ctx, r.client,
		[]string{r.playersKey(), r.keysetKey(), r.capacityKey(), r.seqKey(), r.membersKey(key)},
		entry.PlayerID, data, key, entry.Key.Capacity,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to insert queue entry: %w", err)
	}
	if inserted == 0 {
		return ErrDuplicateEntry
	}
	return nil
}

func (r *RedisQueueRepository) FindByPlayer(ctx context.Context, playerID string) (*models.QueueEntry, error) {
	raw, err := r.client.HGet(ctx, r.playersKey(), playerID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find queue entry: %w", err)
	}
	return decodeRecord(raw)
}

// ListByKey 삽입 순서대로
func (r *RedisQueueRepository) ListByKey(ctx context.Context, key models.QueueKey) ([]models.QueueEntry, error) {
	ids, err := r.client.ZRange(ctx, r.membersKey(key.String()), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list queue entries: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	values, err := r.client.HMGet(ctx, r.playersKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load queue entries: %w", err)
	}

	entries := make([]models.QueueEntry, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// ZRANGE 와 HMGET 사이에 삭제됨
			continue
		}
		entry, err := decodeRecord(raw)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

func (r *RedisQueueRepository) Delete(ctx context.Context, playerID string) (bool, error) {
	deleted, err := deleteScript.Run(ctx, r.client,
		[]string{r.playersKey(), r.keysetKey(), r.capacityKey()},
		playerID, r.memberPrefix(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to delete queue entry: %w", err)
	}
	return deleted == 1, nil
}

func (r *RedisQueueRepository) ClearKey(ctx context.Context, key models.QueueKey) (int, error) {
	k := key.String()
	n, err := clearScript.Run(ctx, r.client,
		[]string{r.playersKey(), r.keysetKey(), r.capacityKey(), r.membersKey(k)},
		k,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to clear queue: %w", err)
	}
	return n, nil
}

// Keys 엔트리가 있는 키를 처음 생긴 순서대로
func (r *RedisQueueRepository) Keys(ctx context.Context) ([]models.QueueKey, error) {
	raw, err := r.client.ZRange(ctx, r.keysetKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list queue keys: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	capacities, err := r.client.HMGet(ctx, r.capacityKey(), raw...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load queue capacities: %w", err)
	}

	keys := make([]models.QueueKey, 0, len(raw))
	for i, s := range raw {
		capacity := 0
		if v, ok := capacities[i].(string); ok {
			fmt.Sscanf(v, "%d", &capacity)
		}
		key, err := models.ParseStoredKey(s, capacity)
		if err != nil {
			return nil, err
		}
		key.Capacity = capacity
		keys = append(keys, key)
	}
	return keys, nil
}

func (r *RedisQueueRepository) Reset(ctx context.Context) error {
	err := resetScript.Run(ctx, r.client,
		[]string{r.playersKey(), r.keysetKey(), r.capacityKey()},
		r.memberPrefix(),
	).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to reset queues: %w", err)
	}
	return nil
}

func decodeRecord(raw string) (*models.QueueEntry, error) {
	var rec redisQueueRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal queue entry: %w", err)
	}
	return &rec.Entry, nil
}
