package models

import "time"

// QueueEntry 대기열에 올라간 플레이어 한 명. 플레이어당 최대 하나만 존재한다.
type QueueEntry struct {
	PlayerID  string    `db:"player_id" json:"playerId"`
	Key       QueueKey  `db:"queue_key" json:"key"`
	JoinedAt  time.Time `db:"joined_at" json:"joinedAt"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
}

// Expired now 기준 만료 여부 (expiresAt <= now)
func (e QueueEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// Eviction 대기 시간 초과로 제거된 엔트리 (호출자가 당사자에게 알린다)
type Eviction struct {
	PlayerID  string    `json:"playerId"`
	Key       QueueKey  `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Occupancy 대기열 현황
type Occupancy struct {
	Key       QueueKey   `json:"key"`
	Players   []string   `json:"players"`
	Capacity  int        `json:"capacity"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"` // 가장 먼저 만료되는 엔트리
}

// Count 현재 인원
func (o Occupancy) Count() int {
	return len(o.Players)
}

// Launch 정원이 찬 대기열의 발차 정보
type Launch struct {
	Key        QueueKey  `json:"key"`
	Members    []string  `json:"members"`
	Level      int       `json:"level"`
	RunID      *int64    `json:"runId,omitempty"`
	LaunchedAt time.Time `json:"launchedAt"`
}
