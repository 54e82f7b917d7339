package cache

import (
	"github.com/halvorsen/rehydra/logger"
)

// Config controls the dependencies and tunables a Cache is built with.
// The zero value is not meant to be used directly; pass nil to New to get
// DefaultConfig(), or set only the fields you care about and let
// mergeDefaults backfill the rest.
type Config struct {
	// Logger receives structured log entries for worker lifecycle events,
	// compute failures, and crashed-worker restarts. Defaults to
	// logger.GetGlobalLogger().
	Logger logger.Logger
	// Clock is the time source the store (TTL freshness) and the waiter hub
	// (Get deadlines) read from. Defaults to NewSystemClock(). Tests inject
	// a fake here. The scheduler does not use it: refresh-interval sleeps
	// and RefreshEvent timestamps always use the real time package clock.
	Clock Clock
	// EventBufferHint sizes the initial buffer of the unbounded event
	// channel returned by Cache.Events. Defaults to 16; it is a hint, not a
	// cap — the channel never blocks a publisher regardless of this value.
	EventBufferHint int
}

// DefaultConfig returns a Config with every field set to its default.
func DefaultConfig() *Config {
	return &Config{
		Logger:          logger.GetGlobalLogger(),
		Clock:           NewSystemClock(),
		EventBufferHint: 16,
	}
}

// mergeDefaults returns a copy of cfg with any zero-valued field backfilled
// from DefaultConfig(), leaving cfg itself untouched.
func (cfg *Config) mergeDefaults() *Config {
	def := DefaultConfig()
	merged := *cfg
	if merged.Logger == nil {
		merged.Logger = def.Logger
	}
	if merged.Clock == nil {
		merged.Clock = def.Clock
	}
	if merged.EventBufferHint <= 0 {
		merged.EventBufferHint = def.EventBufferHint
	}
	return &merged
}

// Validate reports whether cfg is usable. It is called after
// mergeDefaults, so by this point every field is already populated.
func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return ErrInvalidParameters("logger must not be nil")
	}
	if cfg.Clock == nil {
		return ErrInvalidParameters("clock must not be nil")
	}
	return nil
}
