package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/halvorsen/rehydra/logger"
)

// fakeClock is a manually-advanced Clock for deterministic tests. advance
// also fires any fakeTimer whose deadline has passed, in its own goroutine,
// matching time.AfterFunc's delivery semantics.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NowSeconds() int64 {
	return c.Now().Unix()
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{fireAt: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	due := append([]*fakeTimer(nil), c.timers...)
	c.mu.Unlock()

	for _, t := range due {
		if t.fire(now) {
			go t.fn()
		}
	}
}

// fakeTimer is the Timer fakeClock.AfterFunc returns.
type fakeTimer struct {
	mu      sync.Mutex
	fireAt  time.Time
	fn      func()
	fired   bool
	stopped bool
}

// fire marks the timer fired if now has reached its deadline and it has
// not already fired or been stopped, reporting whether the caller should
// run fn.
func (t *fakeTimer) fire(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired || t.stopped || now.Before(t.fireAt) {
		return false
	}
	t.fired = true
	return true
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func newTestLogger(t *testing.T) logger.Logger {
	log, err := logger.New(&logger.Config{Level: "debug", Encoding: "console"})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	return log
}

// countingFunc returns a Func that increments calls on every invocation and
// returns value, nil.
func countingFunc(calls *atomic.Int32, value any) Func {
	return func(_ context.Context) (any, error) {
		calls.Add(1)
		return value, nil
	}
}
