package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// QueueMode 대기열 모드 (인원 구성)
type QueueMode string

const (
	ModeSolo   QueueMode = "solo"
	ModeDuo    QueueMode = "duo"
	ModeTrio   QueueMode = "trio"
	ModeQuad   QueueMode = "quad"
	ModeCustom QueueMode = "custom"
)

const (
	MinLevel = 7
	MaxLevel = 12

	// LevelCount perLevelRunCounts 슬롯 수 (7..12)
	LevelCount = MaxLevel - MinLevel + 1

	// EventPrefix 이벤트 대기열 접두사
	EventPrefix = "H"
)

// QueueKey 대기열 식별자. Level 0 은 "미지정" 으로 join 시점에 확정된다.
type QueueKey struct {
	Mode     QueueMode `json:"mode"`
	Code     string    `json:"code,omitempty"` // Custom 모드 코드
	Level    int       `json:"level,omitempty"`
	IsEvent  bool      `json:"isEvent"`
	Capacity int       `json:"capacity"`
}

var modeCodes = map[string]QueueMode{
	"S":    ModeSolo,
	"SOLO": ModeSolo,
	"K":    ModeDuo,
	"DUO":  ModeDuo,
	"D":    ModeTrio,
	"TRIO": ModeTrio,
	"Q":    ModeQuad,
	"QUAD": ModeQuad,
}

var modeCapacity = map[QueueMode]int{
	ModeSolo: 1,
	ModeDuo:  2,
	ModeTrio: 3,
	ModeQuad: 4,
}

var modeLetter = map[QueueMode]string{
	ModeSolo: "S",
	ModeDuo:  "K",
	ModeTrio: "D",
	ModeQuad: "Q",
}

var tokenPattern = regexp.MustCompile(`^([A-Z]+)([0-9]*)$`)

// QueueKeyResolver 채팅 토큰("D9", "HK", "S")을 QueueKey 로 변환
type QueueKeyResolver struct {
	// CustomCapacity 알 수 없는 모드 코드의 기본 정원 (0 = 비활성)
	CustomCapacity int
}

// NewQueueKeyResolver Resolver 생성
func NewQueueKeyResolver(customCapacity int) *QueueKeyResolver {
	return &QueueKeyResolver{CustomCapacity: customCapacity}
}

// Resolve 토큰 파싱. 해석할 수 없으면 nil 을 반환하며 호출자는 조용히 무시한다.
func (r *QueueKeyResolver) Resolve(token string) *QueueKey {
	token = strings.ToUpper(strings.TrimSpace(token))
	m := tokenPattern.FindStringSubmatch(token)
	if m == nil {
		return nil
	}
	code, digits := m[1], m[2]

	key := &QueueKey{}
	// "H" 단독은 이벤트 접두사가 아니라 모드 코드로 취급
	if strings.HasPrefix(code, EventPrefix) && len(code) > 1 {
		key.IsEvent = true
		code = code[1:]
	}

	if mode, ok := modeCodes[code]; ok {
		key.Mode = mode
		key.Capacity = modeCapacity[mode]
	} else {
		if r.CustomCapacity <= 0 {
			return nil
		}
		key.Mode = ModeCustom
		key.Code = code
		key.Capacity = r.CustomCapacity
	}

	if digits != "" {
		level, err := strconv.Atoi(digits)
		if err != nil || !IsValidLevel(level) {
			return nil
		}
		key.Level = level
	}

	return key
}

// IsValidLevel 7..12 범위 확인
func IsValidLevel(level int) bool {
	return level >= MinLevel && level <= MaxLevel
}

// HasLevel 레벨이 확정되었는지 여부
func (k QueueKey) HasLevel() bool {
	return k.Level != 0
}

// WithLevel 레벨을 확정한 복사본
func (k QueueKey) WithLevel(level int) QueueKey {
	k.Level = level
	return k
}

// Equal mode, level, event 플래그가 같으면 같은 대기열
func (k QueueKey) Equal(other QueueKey) bool {
	return k.Mode == other.Mode && k.Code == other.Code && k.Level == other.Level && k.IsEvent == other.IsEvent
}

// String 저장/표시용 정규 문자열 ("D9", "HK10", "HX7")
func (k QueueKey) String() string {
	var b strings.Builder
	if k.IsEvent {
		b.WriteString(EventPrefix)
	}
	if k.Mode == ModeCustom {
		b.WriteString(k.Code)
	} else {
		b.WriteString(modeLetter[k.Mode])
	}
	if k.HasLevel() {
		b.WriteString(strconv.Itoa(k.Level))
	}
	return b.String()
}

// ParseStoredKey 저장된 정규 문자열을 다시 QueueKey 로 복원
func ParseStoredKey(s string, customCapacity int) (QueueKey, error) {
	key := NewQueueKeyResolver(customCapacity).Resolve(s)
	if key == nil {
		return QueueKey{}, fmt.Errorf("invalid stored queue key %q", s)
	}
	return *key, nil
}
