package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/halvorsen/rehydra/logger"
	"github.com/halvorsen/rehydra/routine"
	"go.uber.org/zap"
)

// workerStatus is the per-key worker state machine: Idle, Running,
// Sleeping, or Stopping.
type workerStatus int32

const (
	statusIdle workerStatus = iota
	statusRunning
	statusSleeping
	statusStopping
)

// worker drives one key's periodic recompute loop. Its fields are that
// key's WorkerState; the scheduler restarts worker.run on a recovered
// panic without replacing this struct, preserving WorkerState.
type worker struct {
	key string
	reg *Registration

	store  *store
	hub    *waiterHub
	events *EventStream
	exec   *executor
	log    logger.Logger

	status         atomic.Int32
	inFlightSince  atomic.Int64 // unix nanos, valid only while Running

	cancel  context.CancelFunc
	stopped chan struct{}
}

// scheduler owns one worker per registered key and the goroutine (via
// routine.Runner) that drives each worker's loop.
type scheduler struct {
	log    logger.Logger
	runner routine.Runner
	store  *store
	hub    *waiterHub
	events *EventStream

	mu      sync.Mutex
	workers map[string]*worker
}

func newScheduler(log logger.Logger, runner routine.Runner, st *store, hub *waiterHub, events *EventStream) *scheduler {
	return &scheduler{
		log:     log,
		runner:  runner,
		store:   st,
		hub:     hub,
		events:  events,
		workers: make(map[string]*worker),
	}
}

// spawn starts reg's worker goroutine, which triggers the first compute
// immediately (Idle -> Running). spawn itself does not wait for that
// compute to start or finish.
func (s *scheduler) spawn(reg *Registration) {
	ctx, cancel := context.WithCancel(context.Background())
	w := &worker{
		key:     reg.Key,
		reg:     reg,
		store:   s.store,
		hub:     s.hub,
		events:  s.events,
		exec:    newExecutor(),
		log:     s.log,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}

	s.mu.Lock()
	s.workers[reg.Key] = w
	s.mu.Unlock()

	s.runner.GoNamedWithContext(ctx, "cache-worker:"+reg.Key, func(ctx context.Context) {
		s.supervise(ctx, w)
	})
}

// supervise runs w.run in a loop, restarting it if it returns because of a
// recovered panic (a programming error inside the loop itself, as opposed
// to a compute failure, which executor.execute already converts into a
// plain error). Worker loops are supervised and restart on internal
// programming errors while preserving WorkerState, layered on top of
// routine.Runner's own panic recovery.
func (s *scheduler) supervise(ctx context.Context, w *worker) {
	// w.stopped must close exactly once, when the loop is actually done —
	// not on every crash-restart pass, or the second restart's own
	// close(w.stopped) would panic on an already-closed channel.
	defer close(w.stopped)
	for {
		crashed := s.runOnce(ctx, w)
		if !crashed {
			return
		}
		if workerStatus(w.status.Load()) == statusStopping || ctx.Err() != nil {
			return
		}
		s.log.Error("cache worker loop crashed, restarting", zap.String("key", w.key))
	}
}

// runOnce executes w.run under a recover and reports whether it returned
// because of a panic (true) or a normal exit (false).
func (s *scheduler) runOnce(ctx context.Context, w *worker) (crashed bool) {
	defer func() {
		if r := recover(); r != nil {
			crashed = true
		}
	}()
	w.run(ctx)
	return false
}

// stop marks key's worker Stopping. If the worker is Sleeping, the pending
// wake is cancelled and stop waits for its loop to exit. If it is Running,
// stop returns without waiting: the in-flight compute is allowed to finish
// in the background, but its result is never published.
func (s *scheduler) stop(key string) {
	s.mu.Lock()
	w, ok := s.workers[key]
	if ok {
		delete(s.workers, key)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	prev := workerStatus(w.status.Swap(int32(statusStopping)))
	w.cancel()
	if prev == statusRunning {
		return
	}
	<-w.stopped
}

// run is the per-key state machine: Idle -> Running -> {publish or retain}
// -> Sleeping -> Running -> ... until Stopping is observed.
func (w *worker) run(ctx context.Context) {
	for {
		if workerStatus(w.status.Load()) == statusStopping {
			return
		}

		w.status.Store(int32(statusRunning))
		w.inFlightSince.Store(time.Now().UnixNano())

		value, err := w.exec.execute(ctx, w.reg)

		if workerStatus(w.status.Load()) == statusStopping {
			// Teardown was requested while this compute was running:
			// suppress the publish entirely.
			return
		}

		if err == nil {
			w.store.put(w.key, value, w.reg.TTL)
			w.hub.publish(w.key, value)
			w.events.emit(RefreshEvent{Key: w.key, Value: value, At: time.Now()})
		} else {
			w.log.Warn("cache compute failed, retaining prior value",
				zap.String("key", w.key),
				zap.Error(err),
			)
			w.events.emit(RefreshEvent{Key: w.key, Err: err, At: time.Now()})
		}

		w.status.Store(int32(statusSleeping))

		select {
		case <-time.After(w.reg.RefreshInterval):
		case <-ctx.Done():
			return
		}
	}
}
