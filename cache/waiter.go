package cache

import (
	"sync"
	"time"
)

// waiterResult is what a blocked Get eventually receives: either a
// successfully computed value, or one of ErrTimeout / ErrNotRegistered.
type waiterResult struct {
	value any
	err   error
}

// waiter is one blocked reader. Exactly one of {publish, teardown,
// deadline} releases it, enforced by once.
type waiter struct {
	ch    chan waiterResult
	timer Timer
	once  sync.Once
}

func (w *waiter) release(res waiterResult) {
	w.once.Do(func() {
		if w.timer != nil {
			w.timer.Stop()
		}
		w.ch <- res
	})
}

// waiterHub is the per-key set of pending readers blocked on a Get,
// realized as a concurrent map key -> list of waiters guarded by a
// single mutex: on publish, the list is atomically swapped out and then
// delivered to outside the lock.
type waiterHub struct {
	clock Clock

	mu      sync.Mutex
	waiters map[string][]*waiter
}

func newWaiterHub(clock Clock) *waiterHub {
	return &waiterHub{
		clock:   clock,
		waiters: make(map[string][]*waiter),
	}
}

// subscribe records a pending waiter for key and arms a timer for timeout,
// driven by the hub's injected Clock so tests can exercise the deadline
// deterministically instead of sleeping on wall time.
func (h *waiterHub) subscribe(key string, timeout time.Duration) *waiter {
	w := &waiter{ch: make(chan waiterResult, 1)}

	h.mu.Lock()
	h.waiters[key] = append(h.waiters[key], w)
	h.mu.Unlock()

	w.timer = h.clock.AfterFunc(timeout, func() {
		h.removeAndRelease(key, w, waiterResult{err: ErrTimeout})
	})
	return w
}

// await blocks until w is released and returns its outcome.
func (h *waiterHub) await(w *waiter) (any, error) {
	res := <-w.ch
	return res.value, res.err
}

// publish atomically drains every waiter currently pending for key and
// delivers them the same value. Waiters that subscribe after this call
// returns wait for the next publish (or their own deadline).
func (h *waiterHub) publish(key string, value any) {
	h.mu.Lock()
	ws := h.waiters[key]
	delete(h.waiters, key)
	h.mu.Unlock()

	for _, w := range ws {
		w.release(waiterResult{value: value})
	}
}

// publishNotRegistered drains every waiter pending for key and releases
// them with ErrNotRegistered. Used by Cache.Deregister's teardown.
func (h *waiterHub) publishNotRegistered(key string) {
	h.mu.Lock()
	ws := h.waiters[key]
	delete(h.waiters, key)
	h.mu.Unlock()

	for _, w := range ws {
		w.release(waiterResult{err: ErrNotRegistered})
	}
}

// releaseNotRegistered releases a single waiter w for key with
// ErrNotRegistered, removing it from the pending set if still present.
// Used by Cache.Get to close a narrow race against a concurrent
// Deregister (see cache.go).
func (h *waiterHub) releaseNotRegistered(key string, w *waiter) {
	h.mu.Lock()
	ws := h.waiters[key]
	for i, cand := range ws {
		if cand == w {
			h.waiters[key] = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	if len(h.waiters[key]) == 0 {
		delete(h.waiters, key)
	}
	h.mu.Unlock()

	w.release(waiterResult{err: ErrNotRegistered})
}

// removeAndRelease removes w from key's pending set (if still present) and
// releases it with res. Called by a waiter's own deadline timer.
func (h *waiterHub) removeAndRelease(key string, w *waiter, res waiterResult) {
	h.mu.Lock()
	ws := h.waiters[key]
	for i, cand := range ws {
		if cand == w {
			h.waiters[key] = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	if len(h.waiters[key]) == 0 {
		delete(h.waiters, key)
	}
	h.mu.Unlock()

	w.release(res)
}
