package app

import (
	"context"
	"fmt"
	"time"

	"github.com/576576/hadesstar-bot/internal/api"
	"github.com/576576/hadesstar-bot/internal/api/handlers"
	"github.com/576576/hadesstar-bot/internal/config"
	"github.com/576576/hadesstar-bot/internal/models"
	"github.com/576576/hadesstar-bot/internal/repository"
	"github.com/576576/hadesstar-bot/internal/service"
	"github.com/576576/hadesstar-bot/internal/websocket"
	"github.com/576576/hadesstar-bot/pkg/database"
	"github.com/576576/hadesstar-bot/pkg/distributed"
	jwtutil "github.com/576576/hadesstar-bot/pkg/jwt"
	"github.com/576576/hadesstar-bot/pkg/logger"
	"github.com/576576/hadesstar-bot/pkg/metrics"
	"github.com/576576/hadesstar-bot/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
)

const (
	lockPrefix      = "{crew}:lock:"
	lockTTL         = 10 * time.Second
	lockMaxWait     = 5 * time.Second
	eventChannel    = "crew:events"
	rateLimitPrefix = "crew:ratelimit:"
)

// App 설정에 따라 조립된 서버 구성 요소
type App struct {
	Services api.Services

	db      *database.DB
	redis   redis.UniversalClient
	bus     *distributed.EventBus
	relay   *websocket.Relay
	sweeper *service.EvictionSweeper
	local   *ratelimit.RateLimiter
}

// playerBackend 플레이어 디렉터리 + 프로필 + 쿨다운
type playerBackend interface {
	service.PlayerDirectory
	service.PlayerProfileStore
	service.CooldownStore
}

// New 구성 요소 생성. 실패하면 이미 연 연결을 닫는다.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.Storage == config.StoragePostgres || cfg.QueueStore == config.StoragePostgres {
		a.db, err = database.Connect(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err = a.db.Migrate(ctx); err != nil {
			return nil, err
		}
		logger.Info("Database connection established")
	}

	if cfg.RedisURL != "" {
		opts, perr := redis.ParseURL(cfg.RedisURL)
		if perr != nil {
			return nil, fmt.Errorf("invalid redis url: %w", perr)
		}
		a.redis = redis.NewClient(opts)
		if err = a.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info("Redis connection established")
	}

	var (
		ledgerStore service.LedgerStore
		players     playerBackend
		queueStore  service.QueueStore
		cooldowns   service.CooldownStore
		locker      service.KeyLocker
	)

	switch cfg.Storage {
	case config.StoragePostgres:
		ledgerStore = repository.NewLedgerRepository(a.db)
		players = repository.NewPlayerRepository(a.db)
	default:
		ledgerStore = repository.NewMemoryLedgerRepository()
		players = repository.NewMemoryPlayerRepository()
	}

	switch cfg.QueueStore {
	case config.StoragePostgres:
		queueStore = repository.NewQueueRepository(a.db)
	case config.StorageRedis:
		queueStore = repository.NewRedisQueueRepository(a.redis, repository.DefaultRedisQueuePrefix)
	default:
		queueStore = repository.NewMemoryQueueRepository()
	}

	cooldowns = players
	if a.redis != nil {
		cooldowns = repository.NewRedisCooldownRepository(a.redis, "")
	}

	switch cfg.Locker {
	case config.LockerRedis:
		locker = distributed.NewRedisKeyLocker(a.redis, lockPrefix, lockTTL, lockMaxWait)
	default:
		locker = service.NewLocalKeyLocker()
	}

	m := metrics.New()
	gate := service.NewConfigPermissionGate(cfg.AdminIDs, cfg.SuperAdminIDs)
	resolver := models.NewQueueKeyResolver(cfg.CustomCapacity)

	hub := websocket.NewHub(logger.Named("websocket"))
	hub.AllowOrigins(cfg.AllowedOrigins)
	var notifier service.Notifier = websocket.NewNotifier(hub)
	if a.redis != nil {
		a.bus = distributed.NewEventBus(a.redis, eventChannel, logger.Named("eventbus"))
		a.relay = websocket.NewRelay(a.bus, hub, logger.Named("relay"))
		notifier = a.relay
	}

	queue := service.NewMatchmakingQueue(queueStore, locker, cfg.QueueWait, logger.Named("queue"))
	ledger := service.NewEventLedger(ledgerStore, gate, m, logger.Named("ledger"))
	coordinator := service.NewLaunchCoordinator(queue, ledger, players, cooldowns, cfg.EventCooldown, m, logger.Named("launch"))
	crew := service.NewCrewService(queue, coordinator, players, cooldowns, gate, notifier,
		service.CrewOptions{StrictProfile: cfg.StrictProfile, EventEnabled: cfg.EventEnabled},
		m, logger.Named("crew"))

	var limiter ratelimit.Limiter
	if cfg.RateLimitPerMinute > 0 {
		if a.redis != nil {
			limiter = ratelimit.NewRedisRateLimiter(a.redis, rateLimitPrefix, cfg.RateLimitPerMinute, time.Minute)
		} else {
			a.local = ratelimit.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
			limiter = a.local
		}
	}

	a.sweeper = service.NewEvictionSweeper(crew, cfg.SweepInterval, logger.Named("sweeper"))
	a.Services = api.Services{
		Crew:     crew,
		Ledger:   ledger,
		Players:  service.NewPlayerService(players, gate, logger.Named("players")),
		Resolver: resolver,
		Hub:      hub,
		JWT:      jwtutil.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration),
		Limiter:  limiter,
		Metrics:  m,
		Health:   a.healthChecks(),
	}
	return a, nil
}

func (a *App) healthChecks() []handlers.HealthCheck {
	var checks []handlers.HealthCheck
	if a.db != nil {
		checks = append(checks, handlers.HealthCheck{Name: "postgres", Check: a.db.Check})
	}
	if a.redis != nil {
		client := a.redis
		checks = append(checks, handlers.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})
	}
	return checks
}

// Start 허브와 이벤트 구독, 주기적 정리를 시작한다. ctx 가 끝나면 허브가 연결을 닫는다.
func (a *App) Start(ctx context.Context) {
	go a.Services.Hub.Run(ctx)
	if a.bus != nil {
		go func() {
			if err := a.bus.Start(ctx, a.relay.Handle); err != nil {
				logger.Error("Event bus stopped", "error", err)
			}
		}()
	}
	a.sweeper.Start()
}

// Close 역순으로 정리
func (a *App) Close() {
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	if a.bus != nil {
		a.bus.Stop()
	}
	if a.local != nil {
		a.local.Stop()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn("Failed to close redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logger.Warn("Failed to close database", "error", err)
		}
	}
}
