package alloc

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLoggerDiscardsUnlessEnabled(t *testing.T) {
	t.Setenv(logEnv, "")
	cfg := DefaultConfig()
	require.NotNil(t, cfg.Logger)
	assert.False(t, cfg.Logger.Enabled(context.Background(), slog.LevelError), "silent by default")

	t.Setenv(logEnv, "1")
	assert.True(t, defaultLogger().Enabled(context.Background(), slog.LevelDebug))
}

func TestConfigWithDefaults(t *testing.T) {
	src := newCountingSource(-1)
	logger := slog.New(slog.DiscardHandler)

	cfg := Config{Source: src, Logger: logger, TableSlots: 3}.withDefaults()
	assert.Same(t, src, cfg.Source)
	assert.Same(t, logger, cfg.Logger)
	assert.Equal(t, uintptr(DefaultGrowthFloor), cfg.GrowthFloor)
	assert.Equal(t, 3, cfg.TableSlots)

	cfg = Config{}.withDefaults()
	assert.NotNil(t, cfg.Source)
	assert.NotNil(t, cfg.Logger)
}
