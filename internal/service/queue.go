package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/576576/hadesstar-bot/internal/models"
	"github.com/576576/hadesstar-bot/internal/repository"
	"go.uber.org/zap"
)

// MatchmakingQueue 키별 대기열. 만료는 읽기 시점에만 처리된다 (백그라운드 타이머 없음).
type MatchmakingQueue struct {
	store  QueueStore
	locker KeyLocker
	wait   time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewMatchmakingQueue MatchmakingQueue 생성
func NewMatchmakingQueue(store QueueStore, locker KeyLocker, wait time.Duration, logger *zap.Logger) *MatchmakingQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchmakingQueue{
		store:  store,
		locker: locker,
		wait:   wait,
		now:    time.Now,
		logger: logger,
	}
}

// lock 키 임계 구역 진입
func (q *MatchmakingQueue) lock(ctx context.Context, key models.QueueKey) (func(), error) {
	unlock, err := q.locker.Lock(ctx, key.String())
	if err != nil {
		return nil, storageFault("lock "+key.String(), err)
	}
	return unlock, nil
}

// Join 대기열 참가. 다른 대기열에 있으면 *AlreadyQueuedError, 같은 대기열이면 ErrAlreadyInThisQueue.
// 발차하지 않으므로 정원이 찬 키에는 넣지 않는다 (errQueueFull).
func (q *MatchmakingQueue) Join(ctx context.Context, key models.QueueKey, playerID string) (position, capacity int, err error) {
	unlock, err := q.lock(ctx, key)
	if err != nil {
		return 0, 0, err
	}
	defer unlock()

	occ, _, _, err := q.joinLocked(ctx, key, playerID)
	if err != nil {
		return 0, 0, err
	}
	return occ.Count(), key.Capacity, nil
}

// joinLocked 키 락을 잡은 상태에서 호출. 만료 엔트리를 먼저 정리한 뒤 추가한다.
// 두 번째 값은 플레이어의 엔트리 (새로 넣었거나 이미 있던 것).
func (q *MatchmakingQueue) joinLocked(ctx context.Context, key models.QueueKey, playerID string) (*models.Occupancy, *models.QueueEntry, []models.Eviction, error) {
	occ, evictions, err := q.listLocked(ctx, key)
	if err != nil {
		return nil, nil, evictions, err
	}
	if key.Capacity > 0 && occ.Count() >= key.Capacity && !slices.Contains(occ.Players, playerID) {
		return occ, nil, evictions, errQueueFull
	}

	now := q.now()
	entry := models.QueueEntry{
		PlayerID:  playerID,
		Key:       key,
		JoinedAt:  now,
		ExpiresAt: now.Add(q.wait),
	}
	if err := q.store.Insert(ctx, entry); err != nil {
		if !errors.Is(err, repository.ErrDuplicateEntry) {
			return nil, nil, evictions, storageFault("insert queue entry", err)
		}
		existing, ferr := q.store.FindByPlayer(ctx, playerID)
		if ferr != nil {
			return nil, nil, evictions, storageFault("find queue entry", ferr)
		}
		if existing != nil && existing.Key.Equal(key) {
			return occ, existing, evictions, ErrAlreadyInThisQueue
		}
		if existing == nil {
			// 방금 다른 경로로 빠졌다. 호출자가 다시 시도한다.
			return nil, nil, evictions, &AlreadyQueuedError{}
		}
		return nil, nil, evictions, &AlreadyQueuedError{Key: existing.Key}
	}

	occ.Players = append(occ.Players, playerID)
	if occ.ExpiresAt == nil {
		occ.ExpiresAt = &entry.ExpiresAt
	}
	return occ, &entry, evictions, nil
}

// removeLocked 키 락을 잡은 상태에서 방금 넣은 엔트리를 되돌린다
func (q *MatchmakingQueue) removeLocked(ctx context.Context, playerID string) error {
	if _, err := q.store.Delete(ctx, playerID); err != nil {
		return storageFault("delete queue entry", err)
	}
	return nil
}

// Leave 플레이어의 엔트리 제거. 없으면 nil.
func (q *MatchmakingQueue) Leave(ctx context.Context, playerID string) (*models.QueueKey, error) {
	entry, err := q.leave(ctx, playerID)
	if err != nil || entry == nil {
		return nil, err
	}
	return &entry.Key, nil
}

// leave 제거된 엔트리를 반환 (만료 여부 판단용)
func (q *MatchmakingQueue) leave(ctx context.Context, playerID string) (*models.QueueEntry, error) {
	// 락을 기다리는 사이 발차되거나 다른 키로 옮겨갈 수 있어 몇 번 다시 확인한다
	for attempt := 0; attempt < 3; attempt++ {
		entry, err := q.store.FindByPlayer(ctx, playerID)
		if err != nil {
			return nil, storageFault("find queue entry", err)
		}
		if entry == nil {
			return nil, nil
		}

		removed, err := q.removeIfUnder(ctx, entry.Key, playerID)
		if err != nil {
			return nil, err
		}
		if removed != nil {
			return removed, nil
		}
	}
	return nil, nil
}

func (q *MatchmakingQueue) removeIfUnder(ctx context.Context, key models.QueueKey, playerID string) (*models.QueueEntry, error) {
	unlock, err := q.lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := q.store.FindByPlayer(ctx, playerID)
	if err != nil {
		return nil, storageFault("find queue entry", err)
	}
	if current == nil || !current.Key.Equal(key) {
		return nil, nil
	}
	if _, err := q.store.Delete(ctx, playerID); err != nil {
		return nil, storageFault("delete queue entry", err)
	}
	return current, nil
}

// Current 플레이어의 현재 엔트리 (만료 포함)
func (q *MatchmakingQueue) Current(ctx context.Context, playerID string) (*models.QueueEntry, error) {
	entry, err := q.store.FindByPlayer(ctx, playerID)
	if err != nil {
		return nil, storageFault("find queue entry", err)
	}
	return entry, nil
}

// List 대기 순서대로 플레이어 목록. 만료 엔트리는 제거되어 evictions 로 보고된다.
func (q *MatchmakingQueue) List(ctx context.Context, key models.QueueKey) (*models.Occupancy, []models.Eviction, error) {
	unlock, err := q.lock(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	return q.listLocked(ctx, key)
}

func (q *MatchmakingQueue) listLocked(ctx context.Context, key models.QueueKey) (*models.Occupancy, []models.Eviction, error) {
	entries, err := q.store.ListByKey(ctx, key)
	if err != nil {
		return nil, nil, storageFault("list queue entries", err)
	}

	now := q.now()
	occ := &models.Occupancy{
		Key:      key,
		Players:  make([]string, 0, len(entries)),
		Capacity: key.Capacity,
	}
	var evictions []models.Eviction
	for _, e := range entries {
		if e.Expired(now) {
			if _, err := q.store.Delete(ctx, e.PlayerID); err != nil {
				return nil, evictions, storageFault("evict queue entry", err)
			}
			evictions = append(evictions, models.Eviction{
				PlayerID:  e.PlayerID,
				Key:       e.Key,
				ExpiresAt: e.ExpiresAt,
			})
			q.logger.Debug("Queue entry evicted",
				zap.String("player", e.PlayerID),
				zap.String("key", key.String()))
			continue
		}
		occ.Players = append(occ.Players, e.PlayerID)
		if occ.ExpiresAt == nil || e.ExpiresAt.Before(*occ.ExpiresAt) {
			expiresAt := e.ExpiresAt
			occ.ExpiresAt = &expiresAt
		}
	}
	return occ, evictions, nil
}

// Snapshot 여러 키의 현황. 각 키를 방문하면서 만료 엔트리를 정리한다.
func (q *MatchmakingQueue) Snapshot(ctx context.Context, keys []models.QueueKey) ([]models.Occupancy, []models.Eviction, error) {
	out := make([]models.Occupancy, 0, len(keys))
	var evictions []models.Eviction
	for _, key := range keys {
		occ, ev, err := q.List(ctx, key)
		evictions = append(evictions, ev...)
		if err != nil {
			return out, evictions, err
		}
		out = append(out, *occ)
	}
	return out, evictions, nil
}

// ActiveKeys 엔트리가 하나라도 있는 키 목록
func (q *MatchmakingQueue) ActiveKeys(ctx context.Context) ([]models.QueueKey, error) {
	keys, err := q.store.Keys(ctx)
	if err != nil {
		return nil, storageFault("list queue keys", err)
	}
	return keys, nil
}

// clearLocked 발차 시 키 전체를 한 번에 비운다
func (q *MatchmakingQueue) clearLocked(ctx context.Context, key models.QueueKey) error {
	if _, err := q.store.ClearKey(ctx, key); err != nil {
		return storageFault("clear queue key", err)
	}
	return nil
}

// Reset 모든 대기열 삭제 (관리자 작업)
func (q *MatchmakingQueue) Reset(ctx context.Context) error {
	if err := q.store.Reset(ctx); err != nil {
		return storageFault("reset queues", err)
	}
	return nil
}
