package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/576576/hadesstar-bot/pkg/logger"
	_ "github.com/lib/pq"
)

const connectTimeout = 5 * time.Second

// DB lib/pq 연결 풀
type DB struct {
	*sql.DB
}

// Connect 연결 후 ping 까지 확인한다
func Connect(databaseURL string) (*DB, error) {
	if databaseURL == "" {
		return nil, errors.New("database URL is empty")
	}

	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// 대기열 잠금은 짧은 트랜잭션 위주
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	db := &DB{sqlDB}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.Check(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}

	stats := sqlDB.Stats()
	logger.Debug("Database pool ready", "maxOpen", stats.MaxOpenConnections)
	return db, nil
}

// Check 헬스체크용 ping
func (db *DB) Check(ctx context.Context) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// WithTx fn 이 nil 을 반환하면 커밋, 아니면 롤백
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.Warn("Transaction rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
