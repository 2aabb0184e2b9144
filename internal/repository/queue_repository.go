package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/576576/hadesstar-bot/internal/models"
	"github.com/576576/hadesstar-bot/pkg/database"
)

// QueueRepository queue_entries 테이블 (player_id 기본 키)
type QueueRepository struct {
	db *database.DB
}

func NewQueueRepository(db *database.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

// Insert 대기열 엔트리 추가. 이미 엔트리가 있으면 ErrDuplicateEntry.
func (r *QueueRepository) Insert(ctx context.Context, entry models.QueueEntry) error {
	query := `
		INSERT INTO queue_entries (player_id, queue_key, capacity, joined_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (player_id) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query,
		entry.PlayerID,
		entry.Key.String(),
		entry.Key.Capacity,
		entry.JoinedAt.UTC(),
		entry.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert queue entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrDuplicateEntry
	}
	return nil
}

// FindByPlayer 플레이어의 엔트리 조회
func (r *QueueRepository) FindByPlayer(ctx context.Context, playerID string) (*models.QueueEntry, error) {
	query := `
		SELECT player_id, queue_key, capacity, joined_at, expires_at
		FROM queue_entries
		WHERE player_id = $1
	`
	entry, err := scanQueueEntry(r.db.QueryRowContext(ctx, query, playerID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find queue entry: %w", err)
	}
	return entry, nil
}

// ListByKey 키의 엔트리를 들어온 순서대로
func (r *QueueRepository) ListByKey(ctx context.Context, key models.QueueKey) ([]models.QueueEntry, error) {
	query := `
		SELECT player_id, queue_key, capacity, joined_at, expires_at
		FROM queue_entries
		WHERE queue_key = $1
		ORDER BY seq ASC
	`
	rows, err := r.db.QueryContext(ctx, query, key.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list queue entries: %w", err)
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// Delete 플레이어 엔트리 삭제
func (r *QueueRepository) Delete(ctx context.Context, playerID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM queue_entries WHERE player_id = $1`, playerID)
	if err != nil {
		return false, fmt.Errorf("failed to delete queue entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// ClearKey 키 전체를 한 문장으로 삭제
func (r *QueueRepository) ClearKey(ctx context.Context, key models.QueueKey) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM queue_entries WHERE queue_key = $1`, key.String())
	if err != nil {
		return 0, fmt.Errorf("failed to clear queue: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rows), nil
}

// Keys 엔트리가 있는 키 목록
func (r *QueueRepository) Keys(ctx context.Context) ([]models.QueueKey, error) {
	query := `
		SELECT queue_key, MAX(capacity)
		FROM queue_entries
		GROUP BY queue_key
		ORDER BY MIN(seq) ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue keys: %w", err)
	}
	defer rows.Close()

	var keys []models.QueueKey
	for rows.Next() {
		var (
			raw      string
			capacity int
		)
		if err := rows.Scan(&raw, &capacity); err != nil {
			return nil, fmt.Errorf("failed to scan queue key: %w", err)
		}
		key, err := models.ParseStoredKey(raw, capacity)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Reset 전체 삭제
func (r *QueueRepository) Reset(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM queue_entries`)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQueueEntry(row rowScanner) (*models.QueueEntry, error) {
	var (
		entry    models.QueueEntry
		raw      string
		capacity int
	)
	if err := row.Scan(&entry.PlayerID, &raw, &capacity, &entry.JoinedAt, &entry.ExpiresAt); err != nil {
		return nil, err
	}
	key, err := models.ParseStoredKey(raw, capacity)
	if err != nil {
		return nil, err
	}
	key.Capacity = capacity
	entry.Key = key
	return &entry, nil
}
