package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/576576/hadesstar-bot/internal/models"
	"github.com/576576/hadesstar-bot/pkg/database"
	"github.com/lib/pq"
)

// LedgerRepository runs / player_ranks 테이블
type LedgerRepository struct {
	db *database.DB
}

func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// NextRunID run_id_seq 에서 다음 번호
func (r *LedgerRepository) NextRunID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.db.QueryRowContext(ctx, `SELECT nextval('run_id_seq')`).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to allocate run id: %w", err)
	}
	return id, nil
}

// CreateRun 런 저장 (scored = false)
func (r *LedgerRepository) CreateRun(ctx context.Context, run *models.Run) error {
	query := `
		INSERT INTO runs (run_id, initiator_id, partner_ids, queue_type, level)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		run.RunID,
		run.InitiatorID,
		pq.Array(run.PartnerIDs),
		run.QueueType,
		run.Level,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// GetRun 런 조회
func (r *LedgerRepository) GetRun(ctx context.Context, runID int64) (*models.Run, error) {
	query := `
		SELECT run_id, initiator_id, partner_ids, queue_type, level, score, share, scored
		FROM runs
		WHERE run_id = $1
	`
	run, err := scanRun(r.db.QueryRowContext(ctx, query, runID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// LatestUnscoredSolo 파트너 없는 미채점 런 중 가장 최근 것
func (r *LedgerRepository) LatestUnscoredSolo(ctx context.Context, playerID string) (*models.Run, error) {
	query := `
		SELECT run_id, initiator_id, partner_ids, queue_type, level, score, share, scored
		FROM runs
		WHERE initiator_id = $1
		  AND scored = FALSE
		  AND cardinality(partner_ids) = 0
		ORDER BY run_id DESC
		LIMIT 1
	`
	run, err := scanRun(r.db.QueryRowContext(ctx, query, playerID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find unscored run: %w", err)
	}
	return run, nil
}

// MarkScored scored/share 가 기대값일 때만 점수 기록
func (r *LedgerRepository) MarkScored(ctx context.Context, runID int64, expectScored bool, expectShare, score, share int64) (bool, error) {
	query := `
		UPDATE runs
		SET score = $4, share = $5, scored = TRUE, scored_at = NOW()
		WHERE run_id = $1 AND scored = $2 AND share = $3
	`
	result, err := r.db.ExecContext(ctx, query, runID, expectScored, expectShare, score, share)
	if err != nil {
		return false, fmt.Errorf("failed to mark run scored: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

// Reset 런/랭킹 삭제. 시퀀스는 다음 1000 단위로 올려 이전 번호와 겹치지 않게 한다.
func (r *LedgerRepository) Reset(ctx context.Context) error {
	floorQuery := `
		SELECT setval('run_id_seq',
			(SELECT CASE WHEN is_called THEN last_value ELSE last_value - 1 END FROM run_id_seq) / 1000 * 1000 + 1000,
			false)
	`
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `TRUNCATE runs, player_ranks`); err != nil {
			return fmt.Errorf("failed to truncate ledger: %w", err)
		}
		if _, err := tx.ExecContext(ctx, floorQuery); err != nil {
			return fmt.Errorf("failed to raise run id floor: %w", err)
		}
		return nil
	})
}

func scanRun(row rowScanner) (*models.Run, error) {
	run := &models.Run{}
	var partners pq.StringArray
	if err := row.Scan(
		&run.RunID,
		&run.InitiatorID,
		&partners,
		&run.QueueType,
		&run.Level,
		&run.Score,
		&run.Share,
		&run.Scored,
	); err != nil {
		return nil, err
	}
	run.PartnerIDs = []string(partners)
	if run.PartnerIDs == nil {
		run.PartnerIDs = []string{}
	}
	return run, nil
}
