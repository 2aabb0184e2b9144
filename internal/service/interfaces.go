package service

import (
	"context"
	"time"

	"github.com/576576/hadesstar-bot/internal/models"
)

// QueueStore 대기열 엔트리 저장소. 플레이어 ID 가 기본 키라서 플레이어당 엔트리는 하나뿐이다.
type QueueStore interface {
	// Insert 플레이어가 이미 엔트리를 가지고 있으면 repository.ErrDuplicateEntry
	Insert(ctx context.Context, entry models.QueueEntry) error
	FindByPlayer(ctx context.Context, playerID string) (*models.QueueEntry, error)
	// ListByKey 삽입 순서대로
	ListByKey(ctx context.Context, key models.QueueKey) ([]models.QueueEntry, error)
	Delete(ctx context.Context, playerID string) (bool, error)
	ClearKey(ctx context.Context, key models.QueueKey) (int, error)
	Keys(ctx context.Context) ([]models.QueueKey, error)
	Reset(ctx context.Context) error
}

// LedgerStore 런/랭킹 저장소
type LedgerStore interface {
	NextRunID(ctx context.Context) (int64, error)
	CreateRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, runID int64) (*models.Run, error)
	// LatestUnscoredSolo 파트너 없는 미채점 런 중 가장 최근 것
	LatestUnscoredSolo(ctx context.Context, playerID string) (*models.Run, error)
	// MarkScored scored/share 가 기대값과 같을 때만 갱신 (compare-and-set)
	MarkScored(ctx context.Context, runID int64, expectScored bool, expectShare, score, share int64) (bool, error)
	// IncrementRank totalRuns/totalScore 에 원자적으로 더한다
	IncrementRank(ctx context.Context, deltas []models.RankDelta) ([]models.RankEntry, error)
	GetRank(ctx context.Context, playerID string) (*models.RankEntry, error)
	// TopRanks totalScore 내림차순, 동점은 먼저 기록된 순. limit <= 0 이면 전체.
	TopRanks(ctx context.Context, limit int, minScore *int64) ([]models.RankEntry, error)
	Reset(ctx context.Context) error
}

// PlayerDirectory 외부 플레이어 프로필 저장소 중 이 코어가 쓰는 부분
type PlayerDirectory interface {
	// GetEligibility 등록되지 않은 플레이어면 nil
	GetEligibility(ctx context.Context, playerID string) (*models.Eligibility, error)
	IncrementRunCount(ctx context.Context, playerID string, level int) error
	SetLastQueueLevel(ctx context.Context, playerID string, level int) error
}

// CooldownStore 이벤트 대기열 개인 쿨다운
type CooldownStore interface {
	SetCooldown(ctx context.Context, playerID string, until time.Time) error
	// CooldownUntil 쿨다운이 없으면 zero time
	CooldownUntil(ctx context.Context, playerID string) (time.Time, error)
}

// PermissionGate 관리자 권한 확인
type PermissionGate interface {
	IsAdmin(callerID string) bool
	IsSuperAdmin(callerID string) bool
}

// KeyLocker 대기열 키 단위 임계 구역
type KeyLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Notifier 발차/타임아웃 알림 (at-least-once, 실패해도 상태는 이미 확정)
type Notifier interface {
	NotifyLaunch(ctx context.Context, launch models.Launch)
	NotifyEviction(ctx context.Context, eviction models.Eviction)
}
