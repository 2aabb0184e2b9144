package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/576576/hadesstar-bot/internal/models"
)

// Common service errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	// ErrStorageFault 저장소 장애. 호출자에게는 "다시 시도" 로만 노출된다.
	ErrStorageFault = errors.New("storage fault")
)

// Queue errors
var (
	ErrAlreadyInThisQueue = errors.New("already in this queue")
	ErrNotQueued          = errors.New("not queued")
	ErrPlayerNotFound     = errors.New("player not found")

	// errQueueFull 이전 발차가 실패해 정원이 찬 채 남은 키
	errQueueFull = errors.New("queue full")
)

// Ledger errors
var (
	ErrRunNotFound                = errors.New("run not found")
	ErrRunAlreadyScored           = errors.New("run already scored")
	ErrForbiddenCrossPlayerAccess = errors.New("run belongs to other players")
	ErrInvalidScore               = errors.New("invalid score")
)

// AlreadyQueuedError 플레이어가 다른 대기열에 이미 있음
type AlreadyQueuedError struct {
	Key models.QueueKey
}

func (e *AlreadyQueuedError) Error() string {
	return fmt.Sprintf("already queued in %s", e.Key)
}

// IneligibleReason 참가 거절 사유
type IneligibleReason string

const (
	ReasonUnknownPlayer     IneligibleReason = "unknown_player"
	ReasonNoLevel           IneligibleReason = "no_level"
	ReasonUnderLeveled      IneligibleReason = "under_leveled"
	ReasonProfileIncomplete IneligibleReason = "profile_incomplete"
	ReasonEventDisabled     IneligibleReason = "event_disabled"
	ReasonEventCooldown     IneligibleReason = "event_cooldown"
)

// NotEligibleError 참가 자격 미달. 메시지를 만들 수 있도록 세부 값을 담는다.
type NotEligibleError struct {
	Reason        IneligibleReason `json:"reason"`
	RequiredLevel int              `json:"requiredLevel,omitempty"`
	LicenseLevel  int              `json:"licenseLevel,omitempty"`
	CooldownUntil *time.Time       `json:"cooldownUntil,omitempty"`
}

func (e *NotEligibleError) Error() string {
	switch e.Reason {
	case ReasonUnderLeveled:
		return fmt.Sprintf("not eligible: license level %d below required %d", e.LicenseLevel, e.RequiredLevel)
	case ReasonEventCooldown:
		if e.CooldownUntil != nil {
			return fmt.Sprintf("not eligible: event cooldown until %s", e.CooldownUntil.Format(time.RFC3339))
		}
	}
	return fmt.Sprintf("not eligible: %s", e.Reason)
}

// storageFault 저장소 에러를 ErrStorageFault 로 감싼다
func storageFault(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageFault, op, err)
}

// isStorageFault 저장소 장애 여부
func isStorageFault(err error) bool {
	return errors.Is(err, ErrStorageFault)
}
