package models

// RankEntry 플레이어별 누적 기록. 덧셈 증분으로만 갱신된다.
type RankEntry struct {
	PlayerID   string `json:"playerId" db:"player_id"`
	TotalRuns  int64  `json:"totalRuns" db:"total_runs"`
	TotalScore int64  `json:"totalScore" db:"total_score"`
}

// RankDelta 증분 값
type RankDelta struct {
	PlayerID string
	Runs     int64
	Score    int64
}
