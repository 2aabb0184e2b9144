package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/576576/hadesstar-bot/internal/models"
	"github.com/576576/hadesstar-bot/internal/repository"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu        sync.Mutex
	launches  []models.Launch
	evictions []models.Eviction
}

func (n *recordingNotifier) NotifyLaunch(_ context.Context, launch models.Launch) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.launches = append(n.launches, launch)
}

func (n *recordingNotifier) NotifyEviction(_ context.Context, eviction models.Eviction) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.evictions = append(n.evictions, eviction)
}

func (n *recordingNotifier) Launches() []models.Launch {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Launch(nil), n.launches...)
}

func (n *recordingNotifier) Evictions() []models.Eviction {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Eviction(nil), n.evictions...)
}

const (
	testWait     = 20 * time.Minute
	testCooldown = 20 * time.Minute
)

type testEnv struct {
	clock       *fakeClock
	players     *repository.MemoryPlayerRepository
	queueStore  *repository.MemoryQueueRepository
	ledgerStore *repository.MemoryLedgerRepository
	gate        *ConfigPermissionGate
	notifier    *recordingNotifier
	queue       *MatchmakingQueue
	ledger      *EventLedger
	crew        *CrewService
	resolver    *models.QueueKeyResolver
}

type envOption func(*envSettings)

type envSettings struct {
	opts      CrewOptions
	directory func(*repository.MemoryPlayerRepository) PlayerDirectory
	ledger    func(*repository.MemoryLedgerRepository) LedgerStore
}

func withOptions(opts CrewOptions) envOption {
	return func(s *envSettings) { s.opts = opts }
}

func withDirectory(wrap func(*repository.MemoryPlayerRepository) PlayerDirectory) envOption {
	return func(s *envSettings) { s.directory = wrap }
}

func withLedgerStore(wrap func(*repository.MemoryLedgerRepository) LedgerStore) envOption {
	return func(s *envSettings) { s.ledger = wrap }
}

// newTestEnv 메모리 저장소로 전체 구성. "admin" 은 관리자, "root" 는 슈퍼 관리자.
func newTestEnv(t *testing.T, options ...envOption) *testEnv {
	t.Helper()

	settings := envSettings{opts: CrewOptions{EventEnabled: true}}
	for _, o := range options {
		o(&settings)
	}

	env := &testEnv{
		clock:       newFakeClock(),
		players:     repository.NewMemoryPlayerRepository(),
		queueStore:  repository.NewMemoryQueueRepository(),
		ledgerStore: repository.NewMemoryLedgerRepository(),
		gate:        NewConfigPermissionGate([]string{"admin"}, []string{"root"}),
		notifier:    &recordingNotifier{},
		resolver:    models.NewQueueKeyResolver(0),
	}

	var directory PlayerDirectory = env.players
	if settings.directory != nil {
		directory = settings.directory(env.players)
	}

	var ledgerStore LedgerStore = env.ledgerStore
	if settings.ledger != nil {
		ledgerStore = settings.ledger(env.ledgerStore)
	}

	env.queue = NewMatchmakingQueue(env.queueStore, NewLocalKeyLocker(), testWait, nil)
	env.queue.now = env.clock.Now
	env.ledger = NewEventLedger(ledgerStore, env.gate, nil, nil)
	coordinator := NewLaunchCoordinator(env.queue, env.ledger, directory, env.players, testCooldown, nil, nil)
	env.crew = NewCrewService(env.queue, coordinator, directory, env.players, env.gate, env.notifier, settings.opts, nil, nil)
	return env
}

func (e *testEnv) register(t *testing.T, licenseLevel int, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := e.players.Upsert(context.Background(), id, licenseLevel, true)
		require.NoError(t, err)
	}
}

func (e *testEnv) key(t *testing.T, token string) models.QueueKey {
	t.Helper()
	key := e.resolver.Resolve(token)
	require.NotNil(t, key, token)
	return *key
}

func (e *testEnv) profile(t *testing.T, id string) *models.PlayerProfile {
	t.Helper()
	p, err := e.players.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func (e *testEnv) occupants(t *testing.T, token string) []string {
	t.Helper()
	occ, err := e.crew.List(context.Background(), e.key(t, token))
	require.NoError(t, err)
	return occ.Players
}

// seed 발차 없이 저장소에 바로 넣는다. 정원이 찬 채 남은 대기열을 만들 때 쓴다.
func (e *testEnv) seed(t *testing.T, token string, ids ...string) {
	t.Helper()
	key := e.key(t, token)
	now := e.clock.Now()
	for _, id := range ids {
		require.NoError(t, e.queueStore.Insert(context.Background(), models.QueueEntry{
			PlayerID:  id,
			Key:       key,
			JoinedAt:  now,
			ExpiresAt: now.Add(testWait),
		}))
	}
}
