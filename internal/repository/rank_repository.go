package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/576576/hadesstar-bot/internal/models"
)

// IncrementRank 참가자별 누적값에 더한다. 읽고 쓰지 않고 UPDATE ... + delta 로 처리해
// 동시 제출이 겹쳐도 값을 잃지 않는다.
func (r *LedgerRepository) IncrementRank(ctx context.Context, deltas []models.RankDelta) ([]models.RankEntry, error) {
	query := `
		INSERT INTO player_ranks (player_id, total_runs, total_score)
		VALUES ($1, $2, $3)
		ON CONFLICT (player_id) DO UPDATE SET
			total_runs = player_ranks.total_runs + EXCLUDED.total_runs,
			total_score = player_ranks.total_score + EXCLUDED.total_score,
			updated_at = NOW()
		RETURNING player_id, total_runs, total_score
	`

	entries := make([]models.RankEntry, 0, len(deltas))
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, d := range deltas {
			var entry models.RankEntry
			if err := tx.QueryRowContext(ctx, query, d.PlayerID, d.Runs, d.Score).Scan(
				&entry.PlayerID,
				&entry.TotalRuns,
				&entry.TotalScore,
			); err != nil {
				return fmt.Errorf("failed to increment rank: %w", err)
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// GetRank 플레이어 누적 기록
func (r *LedgerRepository) GetRank(ctx context.Context, playerID string) (*models.RankEntry, error) {
	entries, err := r.queryRanks(ctx, `
		SELECT player_id, total_runs, total_score
		FROM player_ranks
		WHERE player_id = $1
	`, playerID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// TopRanks total_score 내림차순, 동점은 먼저 기록된 플레이어 우선
func (r *LedgerRepository) TopRanks(ctx context.Context, limit int, minScore *int64) ([]models.RankEntry, error) {
	query := `
		SELECT player_id, total_runs, total_score
		FROM player_ranks
		WHERE ($1::BIGINT IS NULL OR total_score >= $1)
		ORDER BY total_score DESC, seq ASC
	`
	args := []interface{}{minScore}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return r.queryRanks(ctx, query, args...)
}

func (r *LedgerRepository) queryRanks(ctx context.Context, query string, args ...interface{}) ([]models.RankEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ranks: %w", err)
	}
	defer rows.Close()

	var entries []models.RankEntry
	for rows.Next() {
		var entry models.RankEntry
		if err := rows.Scan(&entry.PlayerID, &entry.TotalRuns, &entry.TotalScore); err != nil {
			return nil, fmt.Errorf("failed to scan rank: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
