package models

// RunIDFloor 외부에 노출되는 런 번호의 시작값
const RunIDFloor int64 = 1000

// Run 발차(또는 솔로) 한 번에 대한 점수 제출 대상.
// Scored=false, Score=0 은 "점수 대기" 상태.
type Run struct {
	RunID       int64    `json:"runId" db:"run_id"`
	InitiatorID string   `json:"initiatorId" db:"initiator_id"`
	PartnerIDs  []string `json:"partnerIds" db:"partner_ids"`
	QueueType   string   `json:"queueType" db:"queue_type"`
	Level       int      `json:"level" db:"level"`
	Score       int64    `json:"score" db:"score"`
	Share       int64    `json:"share" db:"share"`
	Scored      bool     `json:"scored" db:"scored"`
}

// Participants initiator 를 포함한 전체 참가자 (순서 유지)
func (r *Run) Participants() []string {
	out := make([]string, 0, len(r.PartnerIDs)+1)
	out = append(out, r.InitiatorID)
	return append(out, r.PartnerIDs...)
}

// IsParticipant 참가자 여부
func (r *Run) IsParticipant(playerID string) bool {
	if r.InitiatorID == playerID {
		return true
	}
	for _, p := range r.PartnerIDs {
		if p == playerID {
			return true
		}
	}
	return false
}

// SplitScore 참가자 1인당 몫. 올림 나눗셈이라 합계가 제출 점수를 넘을 수 있다 (Trio 100 -> 34 x 3).
func SplitScore(score int64, participants int) int64 {
	if participants <= 1 {
		return score
	}
	n := int64(participants)
	return (score + n - 1) / n
}

// ScoreSubmission 점수 제출 요청
type ScoreSubmission struct {
	RunID *int64 `json:"runId"`
	Score int64  `json:"score" binding:"min=0"`
}

// RankUpdate 점수 반영 결과
type RankUpdate struct {
	RunID        int64       `json:"runId"`
	Score        int64       `json:"score"`
	Share        int64       `json:"share"`
	Overwritten  bool        `json:"overwritten"`
	Participants []RankEntry `json:"participants"`
}
