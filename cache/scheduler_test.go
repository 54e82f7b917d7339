package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/halvorsen/rehydra/routine"
)

func newTestScheduler(t *testing.T) (*scheduler, *store, *waiterHub, *EventStream) {
	log := newTestLogger(t)
	fc := newFakeClock()
	st := newStore(fc)
	hub := newWaiterHub(fc)
	events := newEventStream(4)
	runner := routine.New(log)
	return newScheduler(log, runner, st, hub, events), st, hub, events
}

func TestScheduler_SpawnPublishesFirstCompute(t *testing.T) {
	sched, st, _, _ := newTestScheduler(t)
	defer sched.stop("k")

	var calls atomic.Int32
	reg := &Registration{
		Key:             "k",
		Fn:              countingFunc(&calls, "v1"),
		TTL:             time.Hour,
		RefreshInterval: time.Hour,
	}
	sched.spawn(reg)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if v, ok := st.get("k"); ok {
			if v != "v1" {
				t.Fatalf("expected v1, got %v", v)
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for first compute to be published")
}

func TestScheduler_StopPreventsFurtherComputes(t *testing.T) {
	sched, st, _, _ := newTestScheduler(t)

	var calls atomic.Int32
	reg := &Registration{
		Key:             "k",
		Fn:              countingFunc(&calls, "v1"),
		TTL:             time.Hour,
		RefreshInterval: 10 * time.Millisecond,
	}
	sched.spawn(reg)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := st.get("k"); ok {
			break
		}
		time.Sleep(time.Millisecond)
	}

	sched.stop("k")
	observed := calls.Load()
	time.Sleep(50 * time.Millisecond)
	if calls.Load() > observed+1 {
		t.Errorf("expected no further computes after stop, calls went from %d to %d", observed, calls.Load())
	}
}

func TestScheduler_RestartsAfterComputePanicWithoutLosingTheKey(t *testing.T) {
	sched, st, _, _ := newTestScheduler(t)
	defer sched.stop("k")

	var attempts atomic.Int32
	reg := &Registration{
		Key: "k",
		Fn: func(_ context.Context) (any, error) {
			n := attempts.Add(1)
			if n == 1 {
				panic("first attempt blows up")
			}
			return "recovered", nil
		},
		TTL:             time.Hour,
		RefreshInterval: 5 * time.Millisecond,
	}
	sched.spawn(reg)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if v, ok := st.get("k"); ok {
			if v != "recovered" {
				t.Fatalf("expected %q, got %v", "recovered", v)
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for worker to recover from a compute panic and publish")
}

// TestScheduler_SuperviseRestartsOnWorkerRunPanic exercises supervise's own
// recover-and-restart loop, not executor.execute's. reg.Fn never panics
// here; instead w.store is left nil, so every successful compute panics
// inside worker.run itself, at w.store.put, one layer above where
// executor.execute's recover would have caught it.
func TestScheduler_SuperviseRestartsOnWorkerRunPanic(t *testing.T) {
	log := newTestLogger(t)
	fc := newFakeClock()
	hub := newWaiterHub(fc)
	events := newEventStream(4)

	var attempts atomic.Int32
	reg := &Registration{
		Key: "k",
		Fn: func(_ context.Context) (any, error) {
			attempts.Add(1)
			return "v", nil
		},
		TTL:             time.Hour,
		RefreshInterval: time.Hour,
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &worker{
		key:     reg.Key,
		reg:     reg,
		store:   nil, // corrupted on purpose: run()'s w.store.put panics
		hub:     hub,
		events:  events,
		exec:    newExecutor(),
		log:     log,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}

	sched := &scheduler{log: log, workers: map[string]*worker{w.key: w}}

	done := make(chan struct{})
	go func() {
		sched.supervise(ctx, w)
		close(done)
	}()

	// A nil store means run() crashes on every pass, so attempts keeps
	// climbing only if supervise keeps restarting the same *worker after
	// each recovered panic.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && attempts.Load() < 3 {
		time.Sleep(time.Millisecond)
	}
	if got := attempts.Load(); got < 3 {
		t.Fatalf("expected worker.run to be restarted and re-invoke Fn repeatedly, got %d attempts", got)
	}

	sched.mu.Lock()
	still := sched.workers[w.key]
	sched.mu.Unlock()
	if still != w {
		t.Fatal("expected the same *worker to still be registered after restarts, WorkerState was replaced")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for supervise to exit after ctx cancellation")
	}

	select {
	case <-w.stopped:
	default:
		t.Fatal("expected w.stopped to be closed exactly once after supervise exits")
	}
}
