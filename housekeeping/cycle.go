package housekeeping

import (
	"runtime/debug"
	"time"

	"github.com/halvorsen/rehydra/cache"
	"github.com/halvorsen/rehydra/logger"
	"go.uber.org/zap"
)

// maintenanceCycle sweeps c's expired slots and logs an operational
// snapshot. A panic anywhere in the cycle is recovered and logged instead
// of taking down the cron runner's goroutine.
type maintenanceCycle struct {
	c   *cache.Cache
	log logger.Logger
}

func (m *maintenanceCycle) run() {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("cache maintenance cycle panicked",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())),
			)
		}
	}()

	start := time.Now()
	swept := m.c.Sweep()
	m.log.Info("cache housekeeping report",
		zap.Int("registered_keys", len(m.c.Keys())),
		zap.Int("fresh_values", len(m.c.Snapshot())),
		zap.Int("swept", swept),
		zap.Duration("duration", time.Since(start)),
	)
}
