package chsink

import (
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Config configures the ClickHouse connection and batching behavior a Sink
// uses to record cache.RefreshEvent history.
type Config struct {
	Hosts       []string
	Database    string
	Username    string
	Password    string
	DialTimeout time.Duration
	Settings    clickhouse.Settings

	Table string

	// FlushInterval is how often the batch writer flushes on a timer.
	FlushInterval time.Duration
	// FlushSize is the buffered row count that forces an immediate flush.
	FlushSize int
	// MinFlushSize is the minimum row count a timer-triggered flush
	// requires, unless MaxWaitTime has also elapsed. 0 disables the check
	// (every timer tick flushes whatever is buffered).
	MinFlushSize int
	// MaxWaitTime bounds how long a row can sit buffered before a
	// timer-triggered flush happens regardless of MinFlushSize. 0 disables
	// the override.
	MaxWaitTime time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Database:      "default",
		DialTimeout:   10 * time.Second,
		Table:         "cache_refresh_events",
		FlushInterval: 10 * time.Second,
		FlushSize:     5000,
		MinFlushSize:  500,
		MaxWaitTime:   60 * time.Second,
	}
}

func (c *Config) Validate() error {
	if len(c.Hosts) == 0 {
		return ErrInvalidConfig("hosts are required")
	}
	if c.Username == "" {
		return ErrInvalidConfig("username is required")
	}
	if c.Table == "" {
		return ErrInvalidConfig("table is required")
	}
	if c.FlushInterval <= 0 {
		return ErrInvalidConfig("flush_interval must be > 0")
	}
	if c.FlushSize <= 0 {
		return ErrInvalidConfig("flush_size must be > 0")
	}
	if c.MinFlushSize > c.FlushSize {
		return ErrInvalidConfig("min_flush_size cannot be greater than flush_size")
	}
	return nil
}
