package database

import (
	"context"
	"fmt"

	"github.com/576576/hadesstar-bot/pkg/logger"
)

// schema 순서대로 적용한다. 모든 문장은 여러 번 실행해도 안전해야 한다.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS players (
		player_id            TEXT PRIMARY KEY,
		license_level        INT NOT NULL DEFAULT 0,
		run_counts           INT[] NOT NULL DEFAULT '{0,0,0,0,0,0}',
		profile_complete     BOOLEAN NOT NULL DEFAULT FALSE,
		last_queue_level     INT NOT NULL DEFAULT 0,
		event_cooldown_until TIMESTAMPTZ,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS queue_entries (
		player_id  TEXT PRIMARY KEY,
		queue_key  TEXT NOT NULL,
		capacity   INT NOT NULL,
		seq        BIGSERIAL,
		joined_at  TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_queue_entries_key ON queue_entries (queue_key, seq)`,
	`CREATE SEQUENCE IF NOT EXISTS run_id_seq START WITH 1000 MINVALUE 1000`,
	`CREATE TABLE IF NOT EXISTS runs (
		run_id       BIGINT PRIMARY KEY,
		initiator_id TEXT NOT NULL,
		partner_ids  TEXT[] NOT NULL DEFAULT '{}',
		queue_type   TEXT NOT NULL,
		level        INT NOT NULL,
		score        BIGINT NOT NULL DEFAULT 0,
		share        BIGINT NOT NULL DEFAULT 0,
		scored       BOOLEAN NOT NULL DEFAULT FALSE,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		scored_at    TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_unscored ON runs (initiator_id, run_id DESC) WHERE scored = FALSE`,
	`CREATE TABLE IF NOT EXISTS player_ranks (
		player_id   TEXT PRIMARY KEY,
		total_runs  BIGINT NOT NULL DEFAULT 0,
		total_score BIGINT NOT NULL DEFAULT 0,
		seq         BIGSERIAL,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_player_ranks_score ON player_ranks (total_score DESC, seq ASC)`,
}

// Migrate 스키마 적용
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	logger.Info("Database schema applied", "statements", len(schema))
	return nil
}
