package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/576576/hadesstar-bot/internal/models"
	"github.com/576576/hadesstar-bot/pkg/database"
	"github.com/lib/pq"
)

// PlayerRepository players 테이블. 대기열 코어는 run_counts, last_queue_level,
// event_cooldown_until 만 쓴다.
type PlayerRepository struct {
	db *database.DB
}

func NewPlayerRepository(db *database.DB) *PlayerRepository {
	return &PlayerRepository{db: db}
}

// Upsert 플레이어 등록/갱신
func (r *PlayerRepository) Upsert(ctx context.Context, playerID string, licenseLevel int, profileComplete bool) (*models.PlayerProfile, error) {
	query := `
		INSERT INTO players (player_id, license_level, profile_complete)
		VALUES ($1, $2, $3)
		ON CONFLICT (player_id) DO UPDATE SET
			license_level = EXCLUDED.license_level,
			profile_complete = EXCLUDED.profile_complete,
			updated_at = NOW()
		RETURNING player_id, license_level, run_counts, profile_complete, last_queue_level, created_at, updated_at
	`
	player, err := scanPlayer(r.db.QueryRowContext(ctx, query, playerID, licenseLevel, profileComplete))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert player: %w", err)
	}
	return player, nil
}

// FindByID 플레이어 조회
func (r *PlayerRepository) FindByID(ctx context.Context, playerID string) (*models.PlayerProfile, error) {
	query := `
		SELECT player_id, license_level, run_counts, profile_complete, last_queue_level, created_at, updated_at
		FROM players
		WHERE player_id = $1
	`
	player, err := scanPlayer(r.db.QueryRowContext(ctx, query, playerID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find player: %w", err)
	}
	return player, nil
}

// GetEligibility 참가 자격 값
func (r *PlayerRepository) GetEligibility(ctx context.Context, playerID string) (*models.Eligibility, error) {
	query := `
		SELECT license_level, profile_complete, last_queue_level
		FROM players
		WHERE player_id = $1
	`
	elig := &models.Eligibility{}
	err := r.db.QueryRowContext(ctx, query, playerID).Scan(
		&elig.LicenseLevel,
		&elig.ProfileComplete,
		&elig.LastQueueLevel,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get eligibility: %w", err)
	}
	return elig, nil
}

// IncrementRunCount 레벨별 발차 횟수 +1 (배열은 1부터 시작)
func (r *PlayerRepository) IncrementRunCount(ctx context.Context, playerID string, level int) error {
	if !models.IsValidLevel(level) {
		return fmt.Errorf("invalid level %d", level)
	}
	query := `
		UPDATE players
		SET run_counts[$2::INT] = run_counts[$2::INT] + 1, updated_at = NOW()
		WHERE player_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, playerID, level-models.MinLevel+1); err != nil {
		return fmt.Errorf("failed to increment run count: %w", err)
	}
	return nil
}

// SetLastQueueLevel 마지막 대기열 레벨 기록
func (r *PlayerRepository) SetLastQueueLevel(ctx context.Context, playerID string, level int) error {
	query := `
		UPDATE players
		SET last_queue_level = $2, updated_at = NOW()
		WHERE player_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, playerID, level); err != nil {
		return fmt.Errorf("failed to set last queue level: %w", err)
	}
	return nil
}

// SetCooldown 이벤트 대기열 쿨다운 (Redis 없이 운영할 때)
func (r *PlayerRepository) SetCooldown(ctx context.Context, playerID string, until time.Time) error {
	query := `
		UPDATE players
		SET event_cooldown_until = $2, updated_at = NOW()
		WHERE player_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, playerID, until.UTC()); err != nil {
		return fmt.Errorf("failed to set cooldown: %w", err)
	}
	return nil
}

// CooldownUntil 쿨다운 종료 시각 (없으면 zero)
func (r *PlayerRepository) CooldownUntil(ctx context.Context, playerID string) (time.Time, error) {
	var until sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT event_cooldown_until FROM players WHERE player_id = $1`, playerID,
	).Scan(&until)
	if err == sql.ErrNoRows || (err == nil && !until.Valid) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get cooldown: %w", err)
	}
	return until.Time, nil
}

func scanPlayer(row rowScanner) (*models.PlayerProfile, error) {
	player := &models.PlayerProfile{}
	var counts pq.Int64Array
	if err := row.Scan(
		&player.PlayerID,
		&player.LicenseLevel,
		&counts,
		&player.ProfileComplete,
		&player.LastQueueLevel,
		&player.CreatedAt,
		&player.UpdatedAt,
	); err != nil {
		return nil, err
	}
	for i := 0; i < len(counts) && i < models.LevelCount; i++ {
		player.RunCounts[i] = int(counts[i])
	}
	return player, nil
}
