package cache

import (
	"context"
	"fmt"
	"runtime/debug"
)

// ComputeCrashedError wraps a recovered panic from a registration's
// compute function. It is never returned to Get — the scheduler treats it
// identically to any other compute error, logging it rather than
// propagating it to a blocked caller.
type ComputeCrashedError struct {
	Key     string
	Panic   any
	Stack   string
	wrapped error
}

func (e *ComputeCrashedError) Error() string {
	return fmt.Sprintf("cache: compute for key %q crashed: %v", e.Key, e.Panic)
}

func (e *ComputeCrashedError) Unwrap() error {
	return e.wrapped
}

// executor runs a single registration's compute function, converting a
// panic into a ComputeCrashedError instead of letting it propagate — the
// same panic-to-error conversion a scheduled-task recovery middleware
// performs for its jobs, applied here to cache compute functions.
type executor struct{}

func newExecutor() *executor { return &executor{} }

// execute invokes reg.Fn and returns its outcome unchanged, unless Fn
// panics, in which case the panic is converted to a ComputeCrashedError.
// execute never touches the store — publishing the result is the
// scheduler's responsibility.
func (executor) execute(ctx context.Context, reg *Registration) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ComputeCrashedError{
				Key:   reg.Key,
				Panic: r,
				Stack: string(debug.Stack()),
			}
		}
	}()
	return reg.Fn(ctx)
}
