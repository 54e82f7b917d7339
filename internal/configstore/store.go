// Package configstore loads operator-configured cache registrations
// (which keys to run, with what TTL and refresh interval) from MySQL at
// startup. It is adapted from a general-purpose database client: nothing
// here is the cache's own source of truth for computed values — the store
// is read once at startup by cmd/weathercache, never consulted by a
// running worker.
package configstore

import (
	"context"
	"strings"
	"time"

	"github.com/halvorsen/rehydra/logger"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"
)

// Registration is one operator-configured cache key, as stored in MySQL.
type Registration struct {
	ID             uint   `gorm:"primaryKey"`
	Key            string `gorm:"column:cache_key;uniqueIndex"`
	TTLSeconds     int64  `gorm:"column:ttl_seconds"`
	RefreshSeconds int64  `gorm:"column:refresh_seconds"`
	Enabled        bool   `gorm:"column:enabled"`
}

// TableName pins the gorm model to a fixed table name.
func (Registration) TableName() string { return "cache_registrations" }

// TTL returns the registration's TTL as a time.Duration.
func (r Registration) TTL() time.Duration { return time.Duration(r.TTLSeconds) * time.Second }

// RefreshInterval returns the registration's refresh interval as a
// time.Duration.
func (r Registration) RefreshInterval() time.Duration {
	return time.Duration(r.RefreshSeconds) * time.Second
}

// Store reads Registration rows from MySQL.
type Store struct {
	log logger.Logger
	db  *gorm.DB
}

// Open connects to MySQL and returns a Store.
func Open(log logger.Logger, cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.mergeDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var gormLevel glogger.LogLevel
	switch strings.ToLower(cfg.LogLevel) {
	case "silent":
		gormLevel = glogger.Silent
	case "error":
		gormLevel = glogger.Error
	case "info":
		gormLevel = glogger.Info
	default:
		gormLevel = glogger.Warn
	}

	db, err := gorm.Open(mysql.Open(cfg.dsn()), &gorm.Config{
		Logger: &zapGormLogger{logger: log, level: gormLevel, slowThreshold: cfg.SlowThreshold},
		PrepareStmt: true,
	})
	if err != nil {
		return nil, ErrConnection(err)
	}

	sqldb, err := db.DB()
	if err != nil {
		return nil, ErrConnection(err)
	}
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqldb.Ping(); err != nil {
		return nil, ErrConnection(err)
	}

	log.Info("configstore connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
	)
	return &Store{log: log, db: db}, nil
}

// Load returns every enabled registration row.
func (s *Store) Load(ctx context.Context) ([]Registration, error) {
	var regs []Registration
	if err := s.db.WithContext(ctx).Where("enabled = ?", true).Find(&regs).Error; err != nil {
		return nil, ErrQuery(err)
	}
	return regs, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqldb, err := s.db.DB()
	if err != nil {
		return ErrConnection(err)
	}
	return sqldb.Close()
}
