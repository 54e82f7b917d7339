package cache

import (
	"errors"
	"testing"
	"time"
)

func TestWaiterHub_PublishReleasesWaiter(t *testing.T) {
	hub := newWaiterHub(newFakeClock())
	w := hub.subscribe("k", time.Second)

	go hub.publish("k", "value")

	v, err := hub.await(w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "value" {
		t.Errorf("expected %q, got %v", "value", v)
	}
}

func TestWaiterHub_TimesOut(t *testing.T) {
	fc := newFakeClock()
	hub := newWaiterHub(fc)
	w := hub.subscribe("k", 20*time.Millisecond)

	fc.advance(20 * time.Millisecond)

	_, err := hub.await(w)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestWaiterHub_PublishNotRegistered(t *testing.T) {
	hub := newWaiterHub(newFakeClock())
	w := hub.subscribe("k", time.Second)

	go hub.publishNotRegistered("k")

	_, err := hub.await(w)
	if !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestWaiterHub_OnlyPendingWaitersAreDrained(t *testing.T) {
	fc := newFakeClock()
	hub := newWaiterHub(fc)
	w1 := hub.subscribe("k", time.Second)
	hub.publish("k", "first")
	if v, _ := hub.await(w1); v != "first" {
		t.Fatalf("expected %q, got %v", "first", v)
	}

	// w2 subscribes after the first publish drained the pending set, so it
	// should not see "first" — it waits for a future publish or its own
	// deadline.
	w2 := hub.subscribe("k", 20*time.Millisecond)
	fc.advance(20 * time.Millisecond)
	_, err := hub.await(w2)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout for the late subscriber, got %v", err)
	}
}

func TestWaiterHub_ReleaseIsExactlyOnce(t *testing.T) {
	hub := newWaiterHub(newFakeClock())
	w := hub.subscribe("k", 10*time.Millisecond)

	// The fake clock is never advanced, so the timeout timer cannot fire:
	// the first publish releases w, and the second must neither block nor
	// double-send on w.ch.
	hub.publish("k", "value")
	hub.publish("k", "value-again")

	_, err := hub.await(w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
