package models

import "time"

// PlayerProfile 플레이어 디렉터리 레코드
type PlayerProfile struct {
	PlayerID        string          `json:"playerId" db:"player_id"`
	LicenseLevel    int             `json:"licenseLevel" db:"license_level"`
	RunCounts       [LevelCount]int `json:"runCounts" db:"run_counts"`
	ProfileComplete bool            `json:"profileComplete" db:"profile_complete"`
	LastQueueLevel  int             `json:"lastQueueLevel" db:"last_queue_level"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}

// Eligibility 대기열 참가 자격 판정에 필요한 값. 0 은 "알 수 없음".
type Eligibility struct {
	LicenseLevel    int  `json:"licenseLevel"`
	ProfileComplete bool `json:"profileComplete"`
	LastQueueLevel  int  `json:"lastQueueLevel"`
}

// UpsertPlayerRequest 플레이어 등록/갱신 요청
type UpsertPlayerRequest struct {
	LicenseLevel    int  `json:"licenseLevel" binding:"min=0,max=12"`
	ProfileComplete bool `json:"profileComplete"`
}
