package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSugaredHelpersWriteKeyValues(t *testing.T) {
	prev := base
	t.Cleanup(func() { Set(prev) })

	core, logs := observer.New(zapcore.InfoLevel)
	Set(zap.New(core))

	Debug("hidden")
	Info("queued", "playerId", "alice", "key", "D9")
	Named("crew").Warn("slow lock", zap.Int("waitMs", 120))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "queued", entries[0].Message)
	assert.Equal(t, "alice", entries[0].ContextMap()["playerId"])
	assert.Equal(t, "crew", entries[1].LoggerName)
	assert.EqualValues(t, 120, entries[1].ContextMap()["waitMs"])
}

func TestInitLevels(t *testing.T) {
	prev := base
	t.Cleanup(func() { Set(prev) })

	Init("warn", "production")
	assert.False(t, base.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, base.Core().Enabled(zapcore.WarnLevel))

	Init("nonsense", "development")
	assert.True(t, base.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, base.Core().Enabled(zapcore.DebugLevel))
}
