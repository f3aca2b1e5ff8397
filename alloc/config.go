package alloc

import (
	"log/slog"
	"os"
)

// DefaultGrowthFloor is the smallest mapped block the allocator creates.
const DefaultGrowthFloor = 16 << 20 // 16 MiB

// logEnv turns on debug logging for allocators without an explicit logger.
const logEnv = "FREELIST_LOG_ALLOC"

// Config tunes an Allocator. The zero value of every field selects its default.
type Config struct {
	// Source supplies raw memory. Default: OSMemory().
	Source MemorySource

	// GrowthFloor is rounded up to a power-of-two multiple of the page size to
	// give the growth increment. Default: DefaultGrowthFloor.
	GrowthFloor uintptr

	// TableSlots caps the number of mapped block slots per mapping table page.
	// Default: as many as fit in one page.
	TableSlots int

	// Logger receives debug records. Default: discard, or stderr text output
	// when FREELIST_LOG_ALLOC is set.
	Logger *slog.Logger
}

// DefaultConfig returns the configuration used by Default().
func DefaultConfig() Config {
	return Config{
		Source:      OSMemory(),
		GrowthFloor: DefaultGrowthFloor,
		Logger:      defaultLogger(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Source == nil {
		c.Source = d.Source
	}
	if c.GrowthFloor == 0 {
		c.GrowthFloor = d.GrowthFloor
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
	return c
}

func defaultLogger() *slog.Logger {
	if os.Getenv(logEnv) == "" {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})).
		With("component", "alloc")
}
