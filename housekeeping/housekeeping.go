// Package housekeeping runs a cache.Cache's periodic maintenance cycle —
// sweeping expired slots, then logging an operational snapshot — on an
// ordinary wall-clock cron schedule. It is intentionally separate from the
// cache package's own per-key refresh scheduling, which runs on gap-based
// intervals anchored to each key's own compute history rather than the wall
// clock.
package housekeeping

import (
	"fmt"

	"github.com/halvorsen/rehydra/cache"
	"github.com/halvorsen/rehydra/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs one cache's maintenance cycle on a cron schedule.
type Scheduler struct {
	log  logger.Logger
	cron *cron.Cron
}

// NewScheduler returns a Scheduler. Call Schedule to attach a cache and a
// cron spec, then Start.
func NewScheduler(log logger.Logger) *Scheduler {
	return &Scheduler{
		log:  log,
		cron: cron.New(cron.WithSeconds()),
	}
}

// Schedule registers c's maintenance cycle — sweep, then report — to run on
// spec, a 6-field cron spec with seconds included.
func (s *Scheduler) Schedule(spec string, c *cache.Cache) error {
	cycle := &maintenanceCycle{c: c, log: s.log}
	if _, err := s.cron.AddFunc(spec, cycle.run); err != nil {
		return fmt.Errorf("housekeeping: failed to schedule maintenance cycle with spec %q: %w", spec, err)
	}
	s.log.Info("cache maintenance cycle scheduled", zap.String("spec", spec))
	return nil
}

// Start begins running scheduled cycles.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Close stops the scheduler and waits for any running cycle to finish.
func (s *Scheduler) Close() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
