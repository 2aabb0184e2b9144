package service

import (
	"context"
	"fmt"

	"github.com/576576/hadesstar-bot/internal/models"
	"go.uber.org/zap"
)

// PlayerProfileStore 플레이어 프로필 등록/조회
type PlayerProfileStore interface {
	Upsert(ctx context.Context, playerID string, licenseLevel int, profileComplete bool) (*models.PlayerProfile, error)
	FindByID(ctx context.Context, playerID string) (*models.PlayerProfile, error)
}

// PlayerService 외부 프로필 동기화용 얇은 계층 (관리자가 라이선스 레벨을 반영)
type PlayerService struct {
	store  PlayerProfileStore
	gate   PermissionGate
	logger *zap.Logger
}

func NewPlayerService(store PlayerProfileStore, gate PermissionGate, logger *zap.Logger) *PlayerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlayerService{store: store, gate: gate, logger: logger}
}

// Upsert 플레이어 등록/갱신 (관리자)
func (s *PlayerService) Upsert(ctx context.Context, callerID, playerID string, req models.UpsertPlayerRequest) (*models.PlayerProfile, error) {
	if !s.gate.IsAdmin(callerID) {
		return nil, ErrForbidden
	}
	if playerID == "" {
		return nil, fmt.Errorf("%w: player id required", ErrInvalidInput)
	}
	if req.LicenseLevel != 0 && !models.IsValidLevel(req.LicenseLevel) {
		return nil, fmt.Errorf("%w: license level must be 0 or %d..%d", ErrInvalidInput, models.MinLevel, models.MaxLevel)
	}

	profile, err := s.store.Upsert(ctx, playerID, req.LicenseLevel, req.ProfileComplete)
	if err != nil {
		return nil, storageFault("upsert player", err)
	}

	s.logger.Info("Player profile updated",
		zap.String("player", playerID),
		zap.String("caller", callerID),
		zap.Int("licenseLevel", req.LicenseLevel))
	return profile, nil
}

// Get 프로필 조회. 없으면 ErrPlayerNotFound.
func (s *PlayerService) Get(ctx context.Context, playerID string) (*models.PlayerProfile, error) {
	profile, err := s.store.FindByID(ctx, playerID)
	if err != nil {
		return nil, storageFault("find player", err)
	}
	if profile == nil {
		return nil, ErrPlayerNotFound
	}
	return profile, nil
}
