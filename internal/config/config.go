package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 저장소/락 선택지
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
	StorageRedis    = "redis"

	LockerLocal = "local"
	LockerRedis = "redis"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret     string
	JWTExpiration time.Duration

	// Queue
	QueueWait      time.Duration
	EventCooldown  time.Duration
	EventEnabled   bool
	StrictProfile  bool
	CustomCapacity int
	SweepInterval  time.Duration

	// Permissions
	AdminIDs      []string
	SuperAdminIDs []string

	// Backends
	Storage    string // 런/랭킹/플레이어 저장소
	QueueStore string // 대기열 엔트리 저장소 (기본값 Storage)
	Locker     string

	RateLimitPerMinute int

	// WebSocket Origin 허용 목록 (비어 있으면 전부 허용)
	AllowedOrigins []string
}

func Load() (*Config, error) {
	// .env 파일 로드 (있는 경우)
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		JWTSecret:          getEnv("JWT_SECRET", "your-secret-key"),
		JWTExpiration:      parseDuration(getEnv("JWT_EXPIRATION", "24h"), 24*time.Hour),
		QueueWait:          parseDuration(getEnv("QUEUE_WAIT", "20m"), 20*time.Minute),
		EventCooldown:      parseDuration(getEnv("EVENT_COOLDOWN", "20m"), 20*time.Minute),
		EventEnabled:       parseBool(getEnv("EVENT_ENABLED", "true")),
		StrictProfile:      parseBool(getEnv("STRICT_PROFILE", "false")),
		CustomCapacity:     parseInt(getEnv("CUSTOM_CAPACITY", "0")),
		SweepInterval:      parseDuration(getEnv("SWEEP_INTERVAL", "0"), 0),
		AdminIDs:           parseList(getEnv("ADMIN_IDS", "")),
		SuperAdminIDs:      parseList(getEnv("SUPER_ADMIN_IDS", "")),
		Storage:            strings.ToLower(getEnv("STORAGE", StoragePostgres)),
		Locker:             strings.ToLower(getEnv("LOCKER", LockerLocal)),
		RateLimitPerMinute: parseInt(getEnv("RATE_LIMIT_PER_MINUTE", "30")),
		AllowedOrigins:     parseList(getEnv("WS_ALLOWED_ORIGINS", "")),
	}
	cfg.QueueStore = strings.ToLower(getEnv("QUEUE_STORE", cfg.Storage))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 조합 검사
func (c *Config) Validate() error {
	switch c.Storage {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("invalid STORAGE %q", c.Storage)
	}
	switch c.QueueStore {
	case StoragePostgres, StorageMemory, StorageRedis:
	default:
		return fmt.Errorf("invalid QUEUE_STORE %q", c.QueueStore)
	}
	switch c.Locker {
	case LockerLocal, LockerRedis:
	default:
		return fmt.Errorf("invalid LOCKER %q", c.Locker)
	}

	if (c.Storage == StoragePostgres || c.QueueStore == StoragePostgres) && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for postgres storage")
	}
	if (c.Locker == LockerRedis || c.QueueStore == StorageRedis) && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required for redis locker or queue store")
	}
	// 메모리 대기열은 프로세스 하나에서만 의미가 있다
	if c.QueueStore == StorageMemory && c.Locker == LockerRedis {
		return fmt.Errorf("LOCKER=redis requires a shared QUEUE_STORE")
	}
	if c.QueueWait <= 0 {
		return fmt.Errorf("QUEUE_WAIT must be positive")
	}
	if c.CustomCapacity < 0 {
		return fmt.Errorf("CUSTOM_CAPACITY must not be negative")
	}
	return nil
}

// IsProduction ENV=production 여부
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "0" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

func parseInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// parseList 쉼표 구분 목록
func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
