package service

import (
	"context"
	"errors"
	"time"

	"github.com/576576/hadesstar-bot/internal/models"
	"github.com/576576/hadesstar-bot/pkg/metrics"
	"go.uber.org/zap"
)

// maxJoinAttempts 자동 퇴장 후 재참가가 동시 요청과 겹칠 때 다시 시도하는 횟수
const maxJoinAttempts = 3

// JoinStatus 참가 결과 종류
type JoinStatus string

const (
	JoinStatusQueued         JoinStatus = "queued"
	JoinStatusAlreadyInQueue JoinStatus = "already_in_queue"
	JoinStatusLaunched       JoinStatus = "launched"
)

// JoinResult 참가 결과. 호출자가 문구로 렌더링한다.
type JoinResult struct {
	Status    JoinStatus        `json:"status"`
	Key       models.QueueKey   `json:"key"`
	Occupancy *models.Occupancy `json:"occupancy,omitempty"`
	// Previous 자동으로 빠져나온 이전 대기열
	Previous  *models.QueueKey  `json:"previous,omitempty"`
	// ExpiresAt 참가자 본인 엔트리의 만료 시각 (발차 시 nil)
	ExpiresAt *time.Time        `json:"expiresAt,omitempty"`
	Launch    *models.Launch    `json:"launch,omitempty"`
	Evictions []models.Eviction `json:"evictions,omitempty"`

	// pending 참가 전에 먼저 보낸 이전 멤버들
	pending []models.Launch
}

// QuitResult 퇴장 결과. TimedOut 이면 이미 대기 시간이 지난 엔트리였다.
type QuitResult struct {
	Key      models.QueueKey `json:"key"`
	TimedOut bool            `json:"timedOut"`
}

// CrewOptions 참가 정책
type CrewOptions struct {
	StrictProfile bool
	EventEnabled  bool
}

// CrewService 참가/퇴장 상태 전이와 자격 검사
type CrewService struct {
	queue       *MatchmakingQueue
	coordinator *LaunchCoordinator
	players     PlayerDirectory
	cooldowns   CooldownStore
	gate        PermissionGate
	notifier    Notifier
	opts        CrewOptions
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewCrewService CrewService 생성
func NewCrewService(
	queue *MatchmakingQueue,
	coordinator *LaunchCoordinator,
	players PlayerDirectory,
	cooldowns CooldownStore,
	gate PermissionGate,
	notifier Notifier,
	opts CrewOptions,
	m *metrics.Metrics,
	logger *zap.Logger,
) *CrewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = MultiNotifier{}
	}
	return &CrewService{
		queue:       queue,
		coordinator: coordinator,
		players:     players,
		cooldowns:   cooldowns,
		gate:        gate,
		notifier:    notifier,
		opts:        opts,
		metrics:     m,
		logger:      logger,
	}
}

// Join 대기열 참가. 다른 대기열에 있으면 먼저 빠져나온 뒤 참가하고, 정원이 차면 발차한다.
func (s *CrewService) Join(ctx context.Context, playerID string, key models.QueueKey) (*JoinResult, error) {
	result, err := s.join(ctx, playerID, key)
	if err != nil {
		var ne *NotEligibleError
		switch {
		case errors.As(err, &ne):
			s.metrics.Join(string(key.Mode), key.IsEvent, string(ne.Reason))
		case isStorageFault(err):
			s.metrics.Join(string(key.Mode), key.IsEvent, "storage_fault")
			s.logger.Error("Queue join failed",
				zap.String("player", playerID),
				zap.String("key", key.String()),
				zap.Error(err))
		default:
			s.metrics.Join(string(key.Mode), key.IsEvent, "error")
		}
		// 실패해도 이미 확정된 발차와 만료는 알린다
		if result != nil {
			s.publishResult(ctx, result)
		}
		return nil, err
	}

	s.metrics.Join(string(key.Mode), key.IsEvent, string(result.Status))
	s.publishResult(ctx, result)
	return result, nil
}

func (s *CrewService) join(ctx context.Context, playerID string, key models.QueueKey) (*JoinResult, error) {
	elig, err := s.players.GetEligibility(ctx, playerID)
	if err != nil {
		return nil, storageFault("get eligibility", err)
	}
	if elig == nil {
		return nil, &NotEligibleError{Reason: ReasonUnknownPlayer}
	}

	key, err = s.resolveLevel(ctx, playerID, key, elig)
	if err != nil {
		return nil, err
	}
	if err := s.checkEligibility(ctx, playerID, key, elig); err != nil {
		return nil, err
	}

	result := &JoinResult{Key: key}
	for attempt := 0; attempt < maxJoinAttempts; attempt++ {
		current, err := s.queue.Current(ctx, playerID)
		if err != nil {
			return nil, err
		}
		if current != nil && !current.Key.Equal(key) {
			left, err := s.queue.leave(ctx, playerID)
			if err != nil {
				return nil, err
			}
			if left != nil {
				if left.Expired(s.queue.now()) {
					result.Evictions = append(result.Evictions, evictionOf(left))
				} else {
					previous := left.Key
					result.Previous = &previous
				}
			}
		}

		err = s.joinAndLaunch(ctx, key, playerID, result)
		var aq *AlreadyQueuedError
		if errors.As(err, &aq) {
			continue
		}
		if err != nil {
			return result, err
		}
		return result, nil
	}

	current, err := s.queue.Current(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if current != nil {
		return nil, &AlreadyQueuedError{Key: current.Key}
	}
	return nil, &AlreadyQueuedError{Key: key}
}

// joinAndLaunch 참가와 발차를 한 임계 구역에서 처리한다
func (s *CrewService) joinAndLaunch(ctx context.Context, key models.QueueKey, playerID string, result *JoinResult) error {
	unlock, err := s.queue.lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	occ, mine, evictions, err := s.queue.joinLocked(ctx, key, playerID)
	result.addEvictions(playerID, evictions)
	if errors.Is(err, errQueueFull) {
		// 이전 발차가 실패해 정원이 찬 채 남은 멤버를 먼저 보낸다
		stale, lerr := s.coordinator.launchLocked(ctx, key, occ)
		if stale != nil {
			result.pending = append(result.pending, *stale)
		}
		if lerr != nil {
			return lerr
		}
		occ, mine, evictions, err = s.queue.joinLocked(ctx, key, playerID)
		result.addEvictions(playerID, evictions)
	}
	if errors.Is(err, ErrAlreadyInThisQueue) {
		result.Status = JoinStatusAlreadyInQueue
		result.Occupancy = occ
		result.ExpiresAt = &mine.ExpiresAt
		return nil
	}
	if err != nil {
		return err
	}

	result.Status = JoinStatusQueued
	result.Occupancy = occ
	result.ExpiresAt = &mine.ExpiresAt

	launch, err := s.coordinator.launchLocked(ctx, key, occ)
	if launch == nil && err != nil {
		// 발차 전에 실패하면 대기열은 그대로다. 본인 엔트리를 되돌려 정원 미만으로 둔다.
		if rerr := s.queue.removeLocked(ctx, playerID); rerr != nil {
			s.logger.Error("Failed to roll back queue entry",
				zap.String("player", playerID),
				zap.String("key", key.String()),
				zap.Error(rerr))
		}
		result.Occupancy = nil
		result.ExpiresAt = nil
		return err
	}
	if launch != nil {
		result.Status = JoinStatusLaunched
		result.Launch = launch
		result.ExpiresAt = nil
	}
	return err
}

func (r *JoinResult) addEvictions(playerID string, evictions []models.Eviction) {
	for _, ev := range evictions {
		// 자기 자신의 만료 엔트리는 바로 다시 참가하므로 알리지 않는다
		if ev.PlayerID != playerID {
			r.Evictions = append(r.Evictions, ev)
		}
	}
}

// resolveLevel 레벨 미지정 키를 마지막 사용 레벨 -> 라이선스 레벨 순으로 확정한다
func (s *CrewService) resolveLevel(ctx context.Context, playerID string, key models.QueueKey, elig *models.Eligibility) (models.QueueKey, error) {
	if key.HasLevel() {
		return key, nil
	}
	if models.IsValidLevel(elig.LastQueueLevel) {
		return key.WithLevel(elig.LastQueueLevel), nil
	}
	if !models.IsValidLevel(elig.LicenseLevel) {
		return key, &NotEligibleError{Reason: ReasonNoLevel, LicenseLevel: elig.LicenseLevel}
	}
	if err := s.players.SetLastQueueLevel(ctx, playerID, elig.LicenseLevel); err != nil {
		return key, storageFault("set last queue level", err)
	}
	elig.LastQueueLevel = elig.LicenseLevel
	return key.WithLevel(elig.LicenseLevel), nil
}

func (s *CrewService) checkEligibility(ctx context.Context, playerID string, key models.QueueKey, elig *models.Eligibility) error {
	if elig.LicenseLevel < key.Level {
		return &NotEligibleError{
			Reason:        ReasonUnderLeveled,
			RequiredLevel: key.Level,
			LicenseLevel:  elig.LicenseLevel,
		}
	}
	if s.opts.StrictProfile && !elig.ProfileComplete {
		return &NotEligibleError{Reason: ReasonProfileIncomplete}
	}
	if !key.IsEvent {
		return nil
	}
	if !s.opts.EventEnabled {
		return &NotEligibleError{Reason: ReasonEventDisabled}
	}
	until, err := s.cooldowns.CooldownUntil(ctx, playerID)
	if err != nil {
		return storageFault("get cooldown", err)
	}
	if until.After(s.queue.now()) {
		return &NotEligibleError{Reason: ReasonEventCooldown, CooldownUntil: &until}
	}
	return nil
}

// Quit 대기열에서 나간다. 대기 중이 아니면 ErrNotQueued.
func (s *CrewService) Quit(ctx context.Context, playerID string) (*QuitResult, error) {
	entry, err := s.queue.leave(ctx, playerID)
	if err != nil {
		s.logFault("Queue quit failed", playerID, err)
		return nil, err
	}
	if entry == nil {
		return nil, ErrNotQueued
	}

	if entry.Expired(s.queue.now()) {
		s.publish(ctx, nil, []models.Eviction{evictionOf(entry)})
		return &QuitResult{Key: entry.Key, TimedOut: true}, nil
	}
	return &QuitResult{Key: entry.Key}, nil
}

// List 한 대기열의 현황
func (s *CrewService) List(ctx context.Context, key models.QueueKey) (*models.Occupancy, error) {
	occ, evictions, err := s.queue.List(ctx, key)
	s.publish(ctx, nil, evictions)
	if err != nil {
		s.logFault("Queue list failed", "", err)
		return nil, err
	}
	return occ, nil
}

// Snapshot 사람이 있는 모든 대기열의 현황
func (s *CrewService) Snapshot(ctx context.Context) ([]models.Occupancy, error) {
	keys, err := s.queue.ActiveKeys(ctx)
	if err != nil {
		s.logFault("Queue snapshot failed", "", err)
		return nil, err
	}
	all, evictions, err := s.queue.Snapshot(ctx, keys)
	s.publish(ctx, nil, evictions)
	if err != nil {
		s.logFault("Queue snapshot failed", "", err)
		return nil, err
	}

	out := make([]models.Occupancy, 0, len(all))
	for _, occ := range all {
		if occ.Count() > 0 {
			out = append(out, occ)
		}
	}
	return out, nil
}

// Sweep 모든 대기열을 한 번 훑어 만료 엔트리를 정리한다. 정리된 수를 반환.
// 정원이 찬 채 남은 대기열은 다시 발차시킨다.
func (s *CrewService) Sweep(ctx context.Context) (int, error) {
	keys, err := s.queue.ActiveKeys(ctx)
	if err != nil {
		return 0, err
	}
	all, evictions, err := s.queue.Snapshot(ctx, keys)
	s.publish(ctx, nil, evictions)
	if err != nil {
		return len(evictions), err
	}

	swept := len(evictions)
	for _, occ := range all {
		if occ.Key.Capacity <= 0 || occ.Count() < occ.Key.Capacity {
			continue
		}
		launch, more, err := s.coordinator.TryLaunch(ctx, occ.Key)
		s.publish(ctx, launch, more)
		swept += len(more)
		if err != nil {
			s.logFault("Stale queue launch failed", "", err)
		}
	}
	return swept, nil
}

// ResetQueues 모든 대기열 삭제 (관리자)
func (s *CrewService) ResetQueues(ctx context.Context, callerID string) error {
	if !s.gate.IsAdmin(callerID) {
		return ErrForbidden
	}
	if err := s.queue.Reset(ctx); err != nil {
		s.logFault("Queue reset failed", callerID, err)
		return err
	}
	s.logger.Warn("All queues reset", zap.String("caller", callerID))
	return nil
}

// publishResult 참가 중 확정된 발차와 만료를 모두 알린다
func (s *CrewService) publishResult(ctx context.Context, result *JoinResult) {
	for i := range result.pending {
		s.publish(ctx, &result.pending[i], nil)
	}
	s.publish(ctx, result.Launch, result.Evictions)
}

// publish 상태 확정 후 알림. 임계 구역 밖에서 호출한다.
func (s *CrewService) publish(ctx context.Context, launch *models.Launch, evictions []models.Eviction) {
	s.metrics.Evictions(len(evictions))
	for _, ev := range evictions {
		s.notifier.NotifyEviction(ctx, ev)
	}
	if launch != nil {
		s.notifier.NotifyLaunch(ctx, *launch)
	}
}

func (s *CrewService) logFault(msg, playerID string, err error) {
	if !isStorageFault(err) {
		return
	}
	s.logger.Error(msg, zap.String("player", playerID), zap.Error(err))
}

func evictionOf(e *models.QueueEntry) models.Eviction {
	return models.Eviction{PlayerID: e.PlayerID, Key: e.Key, ExpiresAt: e.ExpiresAt}
}
