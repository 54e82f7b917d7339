package configstore

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Config configures the MySQL connection configstore reads registration
// rows from at startup.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	LogLevel      string
	SlowThreshold time.Duration

	Charset string
	Loc     string
}

func (c *Config) dsn() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.Charset, c.Loc)
}

func DefaultConfig() *Config {
	return &Config{
		Port:            3306,
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 1800 * time.Second,
		ConnMaxIdleTime: 600 * time.Second,
		LogLevel:        "warn",
		SlowThreshold:   time.Second,
		Charset:         "utf8mb4",
		Loc:             "Local",
	}
}

func (c *Config) Validate() error {
	if c.Host == "" {
		return ErrInvalidConfig("host is required")
	}
	if c.Port <= 0 {
		return ErrInvalidConfig("port is required")
	}
	if c.User == "" {
		return ErrInvalidConfig("user is required")
	}
	if c.Database == "" {
		return ErrInvalidConfig("database is required")
	}

	validLogLevels := []string{"silent", "error", "warn", "info"}
	if !slices.ContainsFunc(validLogLevels, func(level string) bool {
		return strings.EqualFold(c.LogLevel, level)
	}) {
		return ErrInvalidConfig(fmt.Sprintf("log_level %q must be one of: %s", c.LogLevel, strings.Join(validLogLevels, ", ")))
	}
	return nil
}

func (c *Config) mergeDefaults() *Config {
	defaults := DefaultConfig()
	merged := *c
	if merged.Port == 0 {
		merged.Port = defaults.Port
	}
	if merged.MaxOpenConns == 0 {
		merged.MaxOpenConns = defaults.MaxOpenConns
	}
	if merged.MaxIdleConns == 0 {
		merged.MaxIdleConns = defaults.MaxIdleConns
	}
	if merged.ConnMaxLifetime == 0 {
		merged.ConnMaxLifetime = defaults.ConnMaxLifetime
	}
	if merged.ConnMaxIdleTime == 0 {
		merged.ConnMaxIdleTime = defaults.ConnMaxIdleTime
	}
	if merged.LogLevel == "" {
		merged.LogLevel = defaults.LogLevel
	}
	if merged.SlowThreshold == 0 {
		merged.SlowThreshold = defaults.SlowThreshold
	}
	if merged.Charset == "" {
		merged.Charset = defaults.Charset
	}
	if merged.Loc == "" {
		merged.Loc = defaults.Loc
	}
	return &merged
}
