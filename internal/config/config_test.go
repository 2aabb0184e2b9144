package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORAGE", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 20*time.Minute, cfg.QueueWait)
	assert.Equal(t, 20*time.Minute, cfg.EventCooldown)
	assert.True(t, cfg.EventEnabled)
	assert.False(t, cfg.StrictProfile)
	assert.Equal(t, 0, cfg.CustomCapacity)
	assert.Equal(t, time.Duration(0), cfg.SweepInterval)
	assert.Equal(t, StorageMemory, cfg.QueueStore)
	assert.Equal(t, LockerLocal, cfg.Locker)
	assert.Equal(t, 30, cfg.RateLimitPerMinute)
	assert.Empty(t, cfg.AdminIDs)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORAGE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/crew")
	t.Setenv("QUEUE_STORE", "redis")
	t.Setenv("LOCKER", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("QUEUE_WAIT", "5m")
	t.Setenv("EVENT_ENABLED", "false")
	t.Setenv("CUSTOM_CAPACITY", "5")
	t.Setenv("SWEEP_INTERVAL", "30s")
	t.Setenv("ADMIN_IDS", " alice, bob ,,")
	t.Setenv("SUPER_ADMIN_IDS", "root")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://bot.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.QueueWait)
	assert.False(t, cfg.EventEnabled)
	assert.Equal(t, 5, cfg.CustomCapacity)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, []string{"alice", "bob"}, cfg.AdminIDs)
	assert.Equal(t, []string{"root"}, cfg.SuperAdminIDs)
	assert.Equal(t, StorageRedis, cfg.QueueStore)
	assert.Equal(t, []string{"https://bot.example"}, cfg.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Storage:    StorageMemory,
			QueueStore: StorageMemory,
			Locker:     LockerLocal,
			QueueWait:  time.Minute,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"memory defaults", func(c *Config) {}, false},
		{"unknown storage", func(c *Config) { c.Storage = "mysql" }, true},
		{"redis ledger storage", func(c *Config) { c.Storage = StorageRedis }, true},
		{"postgres without url", func(c *Config) { c.Storage = StoragePostgres }, true},
		{"redis locker without url", func(c *Config) { c.Locker = LockerRedis }, true},
		{"redis locker over memory queue", func(c *Config) {
			c.Locker = LockerRedis
			c.RedisURL = "redis://localhost"
		}, true},
		{"redis queue store", func(c *Config) {
			c.QueueStore = StorageRedis
			c.Locker = LockerRedis
			c.RedisURL = "redis://localhost"
		}, false},
		{"zero wait", func(c *Config) { c.QueueWait = 0 }, true},
		{"negative capacity", func(c *Config) { c.CustomCapacity = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
