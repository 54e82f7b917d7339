package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExecutor_ReturnsFnResult(t *testing.T) {
	ex := newExecutor()
	reg := &Registration{
		Key: "k",
		Fn: func(_ context.Context) (any, error) {
			return 42, nil
		},
		TTL:             time.Second,
		RefreshInterval: 0,
	}

	v, err := ex.execute(context.Background(), reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 {
		t.Errorf("expected 42, got %v", v)
	}
}

func TestExecutor_PropagatesFnError(t *testing.T) {
	ex := newExecutor()
	wantErr := errors.New("boom")
	reg := &Registration{
		Key: "k",
		Fn: func(_ context.Context) (any, error) {
			return nil, wantErr
		},
	}

	_, err := ex.execute(context.Background(), reg)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
}

func TestExecutor_RecoversPanic(t *testing.T) {
	ex := newExecutor()
	reg := &Registration{
		Key: "k",
		Fn: func(_ context.Context) (any, error) {
			panic("compute blew up")
		},
	}

	_, err := ex.execute(context.Background(), reg)
	if err == nil {
		t.Fatal("expected a ComputeCrashedError, got nil")
	}
	var crashed *ComputeCrashedError
	if !errors.As(err, &crashed) {
		t.Fatalf("expected *ComputeCrashedError, got %T: %v", err, err)
	}
	if crashed.Key != "k" {
		t.Errorf("expected crashed.Key == %q, got %q", "k", crashed.Key)
	}
	if crashed.Panic != "compute blew up" {
		t.Errorf("expected crashed.Panic == %q, got %v", "compute blew up", crashed.Panic)
	}
}
