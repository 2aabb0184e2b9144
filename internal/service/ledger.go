package service

import (
	"context"
	"fmt"

	"github.com/576576/hadesstar-bot/internal/models"
	"github.com/576576/hadesstar-bot/pkg/metrics"
	"go.uber.org/zap"
)

// maxOverwriteAttempts 슈퍼 관리자 덮어쓰기 중 동시 수정이 겹칠 때 다시 읽는 횟수
const maxOverwriteAttempts = 3

// EventLedger 런 기록과 점수 제출, 누적 랭킹
type EventLedger struct {
	store   LedgerStore
	gate    PermissionGate
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewEventLedger EventLedger 생성
func NewEventLedger(store LedgerStore, gate PermissionGate, m *metrics.Metrics, logger *zap.Logger) *EventLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventLedger{
		store:   store,
		gate:    gate,
		metrics: m,
		logger:  logger,
	}
}

// CreateRun 새 런 생성. 번호는 1000 부터 단조 증가한다.
func (l *EventLedger) CreateRun(ctx context.Context, initiatorID string, partnerIDs []string, queueType string, level int) (int64, error) {
	runID, err := l.store.NextRunID(ctx)
	if err != nil {
		return 0, storageFault("allocate run id", err)
	}

	partners := make([]string, len(partnerIDs))
	copy(partners, partnerIDs)
	run := &models.Run{
		RunID:       runID,
		InitiatorID: initiatorID,
		PartnerIDs:  partners,
		QueueType:   queueType,
		Level:       level,
	}
	if err := l.store.CreateRun(ctx, run); err != nil {
		return 0, storageFault("create run", err)
	}

	l.logger.Info("Run created",
		zap.Int64("runId", runID),
		zap.String("initiator", initiatorID),
		zap.Strings("partners", partners),
		zap.String("queueType", queueType))

	return runID, nil
}

// GetRun 런 조회
func (l *EventLedger) GetRun(ctx context.Context, runID int64) (*models.Run, error) {
	run, err := l.store.GetRun(ctx, runID)
	if err != nil {
		return nil, storageFault("get run", err)
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// SubmitScore 런 점수 제출. runRef 가 nil 이면 호출자의 가장 최근 미채점 솔로 런을 찾는다.
func (l *EventLedger) SubmitScore(ctx context.Context, callerID string, runRef *int64, score int64) (*models.RankUpdate, error) {
	update, err := l.submitScore(ctx, callerID, runRef, score)
	switch {
	case err == nil:
		l.metrics.Score("ok")
	case isStorageFault(err):
		l.metrics.Score("storage_fault")
		l.logger.Error("Score submission failed",
			zap.String("caller", callerID),
			zap.Int64p("runId", runRef),
			zap.Int64("score", score),
			zap.Error(err))
	default:
		l.metrics.Score("rejected")
	}
	return update, err
}

func (l *EventLedger) submitScore(ctx context.Context, callerID string, runRef *int64, score int64) (*models.RankUpdate, error) {
	if score < 0 {
		return nil, ErrInvalidScore
	}

	for attempt := 0; attempt < maxOverwriteAttempts; attempt++ {
		run, err := l.resolveRun(ctx, callerID, runRef)
		if err != nil {
			return nil, err
		}

		if !run.IsParticipant(callerID) && !l.gate.IsAdmin(callerID) {
			return nil, ErrForbiddenCrossPlayerAccess
		}
		overwrite := run.Scored
		if overwrite && !l.gate.IsSuperAdmin(callerID) {
			return nil, ErrRunAlreadyScored
		}

		participants := run.Participants()
		share := models.SplitScore(score, len(participants))

		ok, err := l.store.MarkScored(ctx, run.RunID, run.Scored, run.Share, score, share)
		if err != nil {
			return nil, storageFault("mark run scored", err)
		}
		if !ok {
			// 그 사이 다른 제출이 먼저 반영됨
			if !l.gate.IsSuperAdmin(callerID) {
				return nil, ErrRunAlreadyScored
			}
			// 덮어쓰기 대상이 바뀌었으니 다시 읽어 차이를 계산한다
			runRef = &run.RunID
			continue
		}

		deltas := make([]models.RankDelta, 0, len(participants))
		for _, id := range participants {
			d := models.RankDelta{PlayerID: id, Runs: 1, Score: share}
			if overwrite {
				d.Runs = 0
				d.Score = share - run.Share
			}
			deltas = append(deltas, d)
		}
		entries, err := l.store.IncrementRank(ctx, deltas)
		if err != nil {
			return nil, storageFault("increment rank", err)
		}

		l.logger.Info("Run scored",
			zap.Int64("runId", run.RunID),
			zap.String("caller", callerID),
			zap.Int64("score", score),
			zap.Int64("share", share),
			zap.Bool("overwrite", overwrite))

		return &models.RankUpdate{
			RunID:        run.RunID,
			Score:        score,
			Share:        share,
			Overwritten:  overwrite,
			Participants: entries,
		}, nil
	}
	return nil, ErrRunAlreadyScored
}

func (l *EventLedger) resolveRun(ctx context.Context, callerID string, runRef *int64) (*models.Run, error) {
	var (
		run *models.Run
		err error
	)
	if runRef != nil {
		run, err = l.store.GetRun(ctx, *runRef)
	} else {
		run, err = l.store.LatestUnscoredSolo(ctx, callerID)
	}
	if err != nil {
		return nil, storageFault("find run", err)
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// RankOf 플레이어 누적 기록. 없으면 (0, 0).
func (l *EventLedger) RankOf(ctx context.Context, playerID string) (models.RankEntry, error) {
	entry, err := l.store.GetRank(ctx, playerID)
	if err != nil {
		return models.RankEntry{}, storageFault("get rank", err)
	}
	if entry == nil {
		return models.RankEntry{PlayerID: playerID}, nil
	}
	return *entry, nil
}

// Top 점수 상위 n 명
func (l *EventLedger) Top(ctx context.Context, n int) ([]models.RankEntry, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidInput)
	}
	entries, err := l.store.TopRanks(ctx, n, nil)
	if err != nil {
		return nil, storageFault("top ranks", err)
	}
	return entries, nil
}

// LeaderboardAbove minScore 이상인 전체 순위
func (l *EventLedger) LeaderboardAbove(ctx context.Context, minScore int64) ([]models.RankEntry, error) {
	entries, err := l.store.TopRanks(ctx, 0, &minScore)
	if err != nil {
		return nil, storageFault("leaderboard", err)
	}
	return entries, nil
}

// Reset 시즌 종료 시 런/랭킹 전체 삭제. 런 번호는 이어진다.
func (l *EventLedger) Reset(ctx context.Context, callerID string) error {
	if !l.gate.IsSuperAdmin(callerID) {
		return ErrForbidden
	}
	if err := l.store.Reset(ctx); err != nil {
		l.logger.Error("Failed to reset ledger", zap.String("caller", callerID), zap.Error(err))
		return storageFault("reset ledger", err)
	}
	l.logger.Warn("Event ledger reset", zap.String("caller", callerID))
	return nil
}
