// Package cache implements a periodic self-rehydrating cache: callers
// register zero-argument compute functions under named keys, each with a
// time-to-live and a refresh interval, and the cache transparently
// recomputes each function on its own schedule while serving the most
// recently successful result to concurrent readers with bounded latency.
//
// The package follows the repository's conventions:
//   - Interface-free, concrete public types (Cache, Registration) for a
//     small, inspectable surface.
//   - Uses the logger.Logger interface for unified logging.
//   - Uses the routine package for panic-safe goroutine execution.
//   - Configuration with validation and defaults.
//   - Structured, wrapped errors.
//
// A single Cache instance owns one goroutine per registered key. Closing
// the Cache is equivalent to deregistering every key.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/halvorsen/rehydra/logger"
	"github.com/halvorsen/rehydra/routine"
	"go.uber.org/zap"
)

// Func is the compute function a caller registers under a key. It is
// "zero-argument" from the cache's point of view (no cache-specific
// parameters), but follows Go idiom by accepting a context so the worker
// loop can signal cancellation on teardown.
type Func func(ctx context.Context) (any, error)

// Cache is the public facade orchestrating the registry, store, scheduler,
// and waiter hub. The zero value is not usable; construct one with New.
type Cache struct {
	cfg *Config

	log   logger.Logger
	clock Clock

	registry *registry
	store    *store
	hub      *waiterHub
	sched    *scheduler
	events   *EventStream

	closeOnce sync.Once
}

// New creates a Cache, with the optional *Config overriding defaults (nil
// uses DefaultConfig()).
func New(cfg *Config) (*Cache, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.mergeDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := cfg.Logger
	clock := cfg.Clock

	st := newStore(clock)
	reg := newRegistry()
	hub := newWaiterHub(clock)
	events := newEventStream(cfg.EventBufferHint)
	runner := routine.New(log)
	sched := newScheduler(log, runner, st, hub, events)

	return &Cache{
		cfg:      cfg,
		log:      log,
		clock:    clock,
		registry: reg,
		store:    st,
		hub:      hub,
		sched:    sched,
		events:   events,
	}, nil
}

// RegisterFunc registers fn under key with the given ttl and
// refreshInterval, and starts its per-key worker.
//
// RegisterFunc returns once the worker has been started, not once the first
// result has landed — a concurrent Get may have to wait for that first
// compute to finish. It returns an InvalidParameters error if ttl <= 0,
// refreshInterval < 0, or refreshInterval >= ttl, and AlreadyRegistered if
// key is already registered (no state changes occur in that case).
func (c *Cache) RegisterFunc(key string, fn Func, ttl, refreshInterval time.Duration) error {
	reg := &Registration{
		Key:             key,
		Fn:              fn,
		TTL:             ttl,
		RefreshInterval: refreshInterval,
	}
	if err := c.registry.register(reg); err != nil {
		return err
	}
	c.sched.spawn(reg)
	c.log.Info("registered cache key",
		zap.String("key", key),
		zap.Duration("ttl", ttl),
		zap.Duration("refresh_interval", refreshInterval),
	)
	return nil
}

// Get returns the most recently cached value for key.
//
//  1. If the store holds a fresh value, it is returned immediately, even if
//     a recomputation is currently in flight (the "last stored value"
//     behavior).
//  2. Otherwise, if key is not registered, Get fails fast with
//     ErrNotRegistered.
//  3. Otherwise, Get subscribes to the next successful compute for key and
//     blocks up to timeout, returning ErrTimeout if none lands in time.
func (c *Cache) Get(key string, timeout time.Duration) (any, error) {
	if v, ok := c.store.get(key); ok {
		return v, nil
	}
	if _, ok := c.registry.get(key); !ok {
		return nil, ErrNotRegistered
	}

	w := c.hub.subscribe(key, timeout)

	// Close the race against a concurrent Deregister: if the key vanished
	// from the registry between our check above and the subscribe call, the
	// teardown's publishNotRegistered may already have run and drained an
	// empty waiter list for this key. Re-checking here and self-releasing
	// keeps the NotRegistered-before-Timeout guarantee tight.
	if _, ok := c.registry.get(key); !ok {
		c.hub.releaseNotRegistered(key, w)
	}

	return c.hub.await(w)
}

// Snapshot returns every currently fresh key/value pair.
func (c *Cache) Snapshot() map[string]any {
	return c.store.snapshot()
}

// Sweep deletes every expired slot from the underlying store and reports
// how many were removed. Nothing requires Sweep to ever be called — Get
// already treats an expired slot as a miss — but a periodic caller (see the
// housekeeping package) keeps the slot table from retaining dead entries
// for keys that are registered but no longer read.
func (c *Cache) Sweep() int {
	return c.store.clean()
}

// Keys returns every currently registered key, regardless of freshness.
func (c *Cache) Keys() []string {
	return c.registry.keys()
}

// Events returns a read-only stream of RefreshEvent values, one per compute
// attempt (success or failure) across every registered key. Observers that
// never drain this channel do not affect the per-key worker loops: see
// EventStream.
func (c *Cache) Events() <-chan RefreshEvent {
	return c.events.out()
}

// Deregister stops key's worker and releases any blocked Get calls for it
// with ErrNotRegistered. Deregistering an absent key returns
// ErrNotRegistered and is otherwise a no-op.
//
// If a compute for key is currently running, it is allowed to run to
// completion, but its result is never published: no write to the store, no
// wake of waiters subscribed before teardown.
func (c *Cache) Deregister(key string) error {
	if _, ok := c.registry.deregister(key); !ok {
		return ErrNotRegistered
	}
	c.sched.stop(key)
	c.hub.publishNotRegistered(key)
	c.log.Info("deregistered cache key", zap.String("key", key))
	return nil
}

// Close deregisters every currently registered key, stops their workers,
// and closes the event stream. It is safe to call more than once.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		for _, key := range c.registry.keys() {
			_ = c.Deregister(key)
		}
		c.events.close()
	})
}
