package cache

import (
	"context"
	"time"

	"github.com/smallnest/chanx"
)

// RefreshEvent describes the outcome of a single compute attempt for Key,
// successful or not. It is delivered on the channel returned by
// Cache.Events, in the order computes complete.
type RefreshEvent struct {
	Key   string
	Value any
	Err   error
	At    time.Time
}

// EventStream fans out every RefreshEvent onto an unbounded channel
// (github.com/smallnest/chanx) so that a slow or entirely absent observer
// never back-pressures the per-key worker loop that emits events — the
// same "no cache-owned lock or blocking call across unrelated keys"
// discipline the cache applies to user-function execution, extended here
// to observability. A nil *EventStream is a valid, inert no-op sender.
type EventStream struct {
	ch *chanx.UnboundedChan[RefreshEvent]
}

func newEventStream(bufferHint int) *EventStream {
	if bufferHint <= 0 {
		bufferHint = 16
	}
	return &EventStream{
		ch: chanx.NewUnboundedChan[RefreshEvent](context.Background(), bufferHint),
	}
}

// emit enqueues ev without blocking the caller on a slow consumer.
func (e *EventStream) emit(ev RefreshEvent) {
	if e == nil {
		return
	}
	e.ch.In <- ev
}

// out returns the consumer-facing side of the stream.
func (e *EventStream) out() <-chan RefreshEvent {
	if e == nil {
		return nil
	}
	return e.ch.Out
}

// close stops the stream's background fan-out goroutine.
func (e *EventStream) close() {
	if e == nil {
		return
	}
	close(e.ch.In)
}
