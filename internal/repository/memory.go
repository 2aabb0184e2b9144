package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/576576/hadesstar-bot/internal/models"
)

// 메모리 저장소: STORAGE=memory 로 단일 인스턴스를 띄우거나 테스트할 때 쓴다.
// Postgres 구현과 같은 원자성(플레이어 기본 키, 조건부 채점, 증분 랭킹)을 보장한다.

type memoryQueueEntry struct {
	entry models.QueueEntry
	seq   int64
}

// MemoryQueueRepository 메모리 대기열 저장소
type MemoryQueueRepository struct {
	mu      sync.RWMutex
	entries map[string]memoryQueueEntry
	seq     int64
}

func NewMemoryQueueRepository() *MemoryQueueRepository {
	return &MemoryQueueRepository{entries: make(map[string]memoryQueueEntry)}
}

func (r *MemoryQueueRepository) Insert(_ context.Context, entry models.QueueEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[entry.PlayerID]; exists {
		return ErrDuplicateEntry
	}
	r.seq++
	r.entries[entry.PlayerID] = memoryQueueEntry{entry: entry, seq: r.seq}
	return nil
}

func (r *MemoryQueueRepository) FindByPlayer(_ context.Context, playerID string) (*models.QueueEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[playerID]
	if !ok {
		return nil, nil
	}
	entry := e.entry
	return &entry, nil
}

func (r *MemoryQueueRepository) ListByKey(_ context.Context, key models.QueueKey) ([]models.QueueEntry, error) {
	r.mu.RLock()
	matched := make([]memoryQueueEntry, 0)
	for _, e := range r.entries {
		if e.entry.Key.Equal(key) {
			matched = append(matched, e)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })
	out := make([]models.QueueEntry, len(matched))
	for i, e := range matched {
		out[i] = e.entry
	}
	return out, nil
}

func (r *MemoryQueueRepository) Delete(_ context.Context, playerID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[playerID]; !ok {
		return false, nil
	}
	delete(r.entries, playerID)
	return true, nil
}

func (r *MemoryQueueRepository) ClearKey(_ context.Context, key models.QueueKey) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, e := range r.entries {
		if e.entry.Key.Equal(key) {
			delete(r.entries, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryQueueRepository) Keys(_ context.Context) ([]models.QueueKey, error) {
	r.mu.RLock()
	first := make(map[string]memoryQueueEntry)
	for _, e := range r.entries {
		k := e.entry.Key.String()
		if cur, ok := first[k]; !ok || e.seq < cur.seq {
			first[k] = e
		}
	}
	r.mu.RUnlock()

	ordered := make([]memoryQueueEntry, 0, len(first))
	for _, e := range first {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].seq < ordered[j].seq })

	keys := make([]models.QueueKey, len(ordered))
	for i, e := range ordered {
		keys[i] = e.entry.Key
	}
	return keys, nil
}

func (r *MemoryQueueRepository) Reset(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]memoryQueueEntry)
	return nil
}

type memoryRank struct {
	entry models.RankEntry
	seq   int64
}

// MemoryLedgerRepository 메모리 런/랭킹 저장소
type MemoryLedgerRepository struct {
	mu      sync.RWMutex
	nextID  int64
	runs    map[int64]*models.Run
	ranks   map[string]*memoryRank
	rankSeq int64
}

func NewMemoryLedgerRepository() *MemoryLedgerRepository {
	return &MemoryLedgerRepository{
		nextID: models.RunIDFloor,
		runs:   make(map[int64]*models.Run),
		ranks:  make(map[string]*memoryRank),
	}
}

func (r *MemoryLedgerRepository) NextRunID(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	return id, nil
}

func (r *MemoryLedgerRepository) CreateRun(_ context.Context, run *models.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[run.RunID]; exists {
		return fmt.Errorf("run %d already exists", run.RunID)
	}
	stored := copyRun(run)
	r.runs[run.RunID] = stored
	return nil
}

func (r *MemoryLedgerRepository) GetRun(_ context.Context, runID int64) (*models.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[runID]
	if !ok {
		return nil, nil
	}
	return copyRun(run), nil
}

func (r *MemoryLedgerRepository) LatestUnscoredSolo(_ context.Context, playerID string) (*models.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *models.Run
	for _, run := range r.runs {
		if run.InitiatorID != playerID || run.Scored || len(run.PartnerIDs) > 0 {
			continue
		}
		if latest == nil || run.RunID > latest.RunID {
			latest = run
		}
	}
	if latest == nil {
		return nil, nil
	}
	return copyRun(latest), nil
}

func (r *MemoryLedgerRepository) MarkScored(_ context.Context, runID int64, expectScored bool, expectShare, score, share int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[runID]
	if !ok || run.Scored != expectScored || run.Share != expectShare {
		return false, nil
	}
	run.Score = score
	run.Share = share
	run.Scored = true
	return true, nil
}

func (r *MemoryLedgerRepository) IncrementRank(_ context.Context, deltas []models.RankDelta) ([]models.RankEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.RankEntry, 0, len(deltas))
	for _, d := range deltas {
		rank, ok := r.ranks[d.PlayerID]
		if !ok {
			r.rankSeq++
			rank = &memoryRank{entry: models.RankEntry{PlayerID: d.PlayerID}, seq: r.rankSeq}
			r.ranks[d.PlayerID] = rank
		}
		rank.entry.TotalRuns += d.Runs
		rank.entry.TotalScore += d.Score
		out = append(out, rank.entry)
	}
	return out, nil
}

func (r *MemoryLedgerRepository) GetRank(_ context.Context, playerID string) (*models.RankEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rank, ok := r.ranks[playerID]
	if !ok {
		return nil, nil
	}
	entry := rank.entry
	return &entry, nil
}

func (r *MemoryLedgerRepository) TopRanks(_ context.Context, limit int, minScore *int64) ([]models.RankEntry, error) {
	r.mu.RLock()
	ranks := make([]memoryRank, 0, len(r.ranks))
	for _, rank := range r.ranks {
		if minScore != nil && rank.entry.TotalScore < *minScore {
			continue
		}
		ranks = append(ranks, *rank)
	}
	r.mu.RUnlock()

	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].entry.TotalScore != ranks[j].entry.TotalScore {
			return ranks[i].entry.TotalScore > ranks[j].entry.TotalScore
		}
		return ranks[i].seq < ranks[j].seq
	})
	if limit > 0 && len(ranks) > limit {
		ranks = ranks[:limit]
	}

	out := make([]models.RankEntry, len(ranks))
	for i, rank := range ranks {
		out[i] = rank.entry
	}
	return out, nil
}

// Reset 런/랭킹 삭제. 다음 런 번호는 다음 1000 단위부터.
func (r *MemoryLedgerRepository) Reset(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs = make(map[int64]*models.Run)
	r.ranks = make(map[string]*memoryRank)
	r.nextID = (r.nextID-1)/models.RunIDFloor*models.RunIDFloor + models.RunIDFloor
	return nil
}

func copyRun(run *models.Run) *models.Run {
	c := *run
	c.PartnerIDs = append([]string{}, run.PartnerIDs...)
	return &c
}

// MemoryPlayerRepository 메모리 플레이어 디렉터리 (쿨다운 저장 포함)
type MemoryPlayerRepository struct {
	mu        sync.RWMutex
	players   map[string]*models.PlayerProfile
	cooldowns map[string]time.Time
}

func NewMemoryPlayerRepository() *MemoryPlayerRepository {
	return &MemoryPlayerRepository{
		players:   make(map[string]*models.PlayerProfile),
		cooldowns: make(map[string]time.Time),
	}
}

func (r *MemoryPlayerRepository) Upsert(_ context.Context, playerID string, licenseLevel int, profileComplete bool) (*models.PlayerProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	p, ok := r.players[playerID]
	if !ok {
		p = &models.PlayerProfile{PlayerID: playerID, CreatedAt: now}
		r.players[playerID] = p
	}
	p.LicenseLevel = licenseLevel
	p.ProfileComplete = profileComplete
	p.UpdatedAt = now
	out := *p
	return &out, nil
}

func (r *MemoryPlayerRepository) FindByID(_ context.Context, playerID string) (*models.PlayerProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.players[playerID]
	if !ok {
		return nil, nil
	}
	out := *p
	return &out, nil
}

func (r *MemoryPlayerRepository) GetEligibility(_ context.Context, playerID string) (*models.Eligibility, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.players[playerID]
	if !ok {
		return nil, nil
	}
	return &models.Eligibility{
		LicenseLevel:    p.LicenseLevel,
		ProfileComplete: p.ProfileComplete,
		LastQueueLevel:  p.LastQueueLevel,
	}, nil
}

func (r *MemoryPlayerRepository) IncrementRunCount(_ context.Context, playerID string, level int) error {
	if !models.IsValidLevel(level) {
		return fmt.Errorf("invalid level %d", level)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.players[playerID]; ok {
		p.RunCounts[level-models.MinLevel]++
		p.UpdatedAt = time.Now()
	}
	return nil
}

func (r *MemoryPlayerRepository) SetLastQueueLevel(_ context.Context, playerID string, level int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.players[playerID]; ok {
		p.LastQueueLevel = level
		p.UpdatedAt = time.Now()
	}
	return nil
}

func (r *MemoryPlayerRepository) SetCooldown(_ context.Context, playerID string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cooldowns[playerID] = until
	return nil
}

func (r *MemoryPlayerRepository) CooldownUntil(_ context.Context, playerID string) (time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cooldowns[playerID], nil
}
