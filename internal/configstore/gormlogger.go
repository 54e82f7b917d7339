package configstore

import (
	"context"
	"fmt"
	"time"

	"github.com/halvorsen/rehydra/logger"
	"go.uber.org/zap"
	glogger "gorm.io/gorm/logger"
)

// zapGormLogger adapts logger.Logger to gorm's logger.Interface so every
// query configstore issues goes through the rest of the project's
// structured logging instead of gorm's own stdlib-backed default.
type zapGormLogger struct {
	logger        logger.Logger
	level         glogger.LogLevel
	slowThreshold time.Duration
}

func (g *zapGormLogger) LogMode(level glogger.LogLevel) glogger.Interface {
	return &zapGormLogger{logger: g.logger, level: level, slowThreshold: g.slowThreshold}
}

func (g *zapGormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if g.level >= glogger.Info {
		g.logger.Info(fmt.Sprintf(msg, data...), zap.String("component", "gorm"))
	}
}

func (g *zapGormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if g.level >= glogger.Warn {
		g.logger.Warn(fmt.Sprintf(msg, data...), zap.String("component", "gorm"))
	}
}

func (g *zapGormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if g.level >= glogger.Error {
		g.logger.Error(fmt.Sprintf(msg, data...), zap.String("component", "gorm"))
	}
}

func (g *zapGormLogger) Trace(_ context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if g.level <= glogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.String("component", "gorm"),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}

	switch {
	case err != nil && g.level >= glogger.Error:
		g.logger.Error("sql error", append(fields, zap.Error(err))...)
	case elapsed > g.slowThreshold && g.slowThreshold != 0 && g.level >= glogger.Warn:
		g.logger.Warn("slow sql", append(fields, zap.Duration("threshold", g.slowThreshold))...)
	case g.level >= glogger.Info:
		g.logger.Info("sql trace", fields...)
	}
}
