package service

import (
	"context"
	"time"

	"github.com/576576/hadesstar-bot/internal/models"
	"github.com/576576/hadesstar-bot/pkg/metrics"
	"go.uber.org/zap"
)

// LaunchCoordinator 정원이 찬 대기열을 발차시킨다
type LaunchCoordinator struct {
	queue     *MatchmakingQueue
	ledger    *EventLedger
	players   PlayerDirectory
	cooldowns CooldownStore
	cooldown  time.Duration
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewLaunchCoordinator LaunchCoordinator 생성
func NewLaunchCoordinator(
	queue *MatchmakingQueue,
	ledger *EventLedger,
	players PlayerDirectory,
	cooldowns CooldownStore,
	cooldown time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *LaunchCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LaunchCoordinator{
		queue:     queue,
		ledger:    ledger,
		players:   players,
		cooldowns: cooldowns,
		cooldown:  cooldown,
		metrics:   m,
		logger:    logger,
	}
}

// TryLaunch 키 락을 잡고 발차 조건을 확인한다. 발차가 실패해 정원이 찬 채 남은 대기열을 다시 보낼 때 쓴다.
func (c *LaunchCoordinator) TryLaunch(ctx context.Context, key models.QueueKey) (*models.Launch, []models.Eviction, error) {
	unlock, err := c.queue.lock(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	occ, evictions, err := c.queue.listLocked(ctx, key)
	if err != nil {
		return nil, evictions, err
	}
	launch, err := c.launchLocked(ctx, key, occ)
	return launch, evictions, err
}

// launchLocked 키 락을 잡은 상태에서 호출. occupancy < capacity 면 nil.
// 런 생성 -> 카운터 증가 -> 일괄 삭제 순서를 지킨다.
// 런 생성이나 쿨다운이 실패하면 대기열은 그대로 두고 (nil, err).
// 대기열을 비운 뒤의 카운터 실패는 되돌리지 않으므로 (launch, err) 를 함께 돌려준다.
func (c *LaunchCoordinator) launchLocked(ctx context.Context, key models.QueueKey, occ *models.Occupancy) (*models.Launch, error) {
	if key.Capacity <= 0 || occ.Count() < key.Capacity {
		return nil, nil
	}

	members := make([]string, len(occ.Players))
	copy(members, occ.Players)
	now := c.queue.now()

	launch := &models.Launch{
		Key:        key,
		Members:    members,
		Level:      key.Level,
		LaunchedAt: now,
	}

	if key.IsEvent {
		runID, err := c.ledger.CreateRun(ctx, members[0], members[1:], key.String(), key.Level)
		if err != nil {
			c.logger.Error("Failed to create run for launch",
				zap.String("key", key.String()),
				zap.Strings("members", members),
				zap.Error(err))
			c.metrics.StorageFault("create_run")
			return nil, err
		}
		launch.RunID = &runID

		until := now.Add(c.cooldown)
		for _, id := range members {
			if err := c.cooldowns.SetCooldown(ctx, id, until); err != nil {
				c.logger.Error("Failed to set event cooldown",
					zap.String("player", id),
					zap.Int64("runId", runID),
					zap.Error(err))
				c.metrics.StorageFault("set_cooldown")
				return nil, storageFault("set cooldown", err)
			}
		}
	}

	var counterErr error
	for _, id := range members {
		if err := c.players.IncrementRunCount(ctx, id, key.Level); err != nil {
			counterErr = storageFault("increment run count", err)
			c.logger.Error("Failed to increment run count",
				zap.String("player", id),
				zap.Int("level", key.Level),
				zap.Error(err))
			break
		}
		if err := c.players.SetLastQueueLevel(ctx, id, key.Level); err != nil {
			counterErr = storageFault("set last queue level", err)
			c.logger.Error("Failed to set last queue level",
				zap.String("player", id),
				zap.Int("level", key.Level),
				zap.Error(err))
			break
		}
	}

	// 카운터 갱신이 실패해도 대기열은 비운다. 남겨 두면 다음 join 에서 같은 멤버가 다시 발차된다.
	if err := c.queue.clearLocked(ctx, key); err != nil {
		c.logger.Error("Failed to clear launched queue",
			zap.String("key", key.String()),
			zap.Strings("members", members),
			zap.Error(err))
		c.metrics.StorageFault("clear_queue")
		return nil, err
	}
	c.metrics.Launch(string(key.Mode), key.Level, key.IsEvent)
	c.logger.Info("Crew launched",
		zap.String("key", key.String()),
		zap.Strings("members", members),
		zap.Int("level", key.Level))

	if counterErr != nil {
		c.metrics.StorageFault("run_counts")
		return launch, counterErr
	}
	return launch, nil
}
