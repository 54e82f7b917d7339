package cache

import "time"

// Clock is the monotonic time source the cache reads from. Production code
// uses NewSystemClock; tests inject a fake to exercise TTL and timeout
// boundaries deterministically, without real sleeps.
type Clock interface {
	// Now returns the current instant.
	Now() time.Time
	// NowSeconds returns the current instant as seconds since the clock's
	// epoch (an arbitrary fixed point, not necessarily the Unix epoch).
	NowSeconds() int64
	// AfterFunc schedules fn to run, in its own goroutine, once d has
	// elapsed on this clock. The returned Timer can cancel it first.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is the handle returned by Clock.AfterFunc. *time.Timer already
// satisfies it.
type Timer interface {
	// Stop cancels the timer, reporting whether this call stopped it (false
	// if it had already fired or been stopped).
	Stop() bool
}

// systemClock is a monotonic clock anchored at the instant it was created,
// so it stays correct across wall-clock adjustments (NTP, DST, manual
// changes) — unlike time.Now().Unix().
type systemClock struct {
	start time.Time
}

// NewSystemClock returns a Clock backed by the runtime's monotonic timer.
func NewSystemClock() Clock {
	return &systemClock{start: time.Now()}
}

func (c *systemClock) Now() time.Time {
	return c.start.Add(time.Since(c.start))
}

func (c *systemClock) NowSeconds() int64 {
	return int64(time.Since(c.start).Seconds())
}

func (c *systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
