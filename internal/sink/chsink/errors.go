package chsink

import "fmt"

var (
	// ErrBufferFull is returned when the sink's internal channel cannot
	// accept another row without blocking the caller.
	ErrBufferFull = fmt.Errorf("chsink: buffer is full, please retry later")
	// ErrClosed is returned by record after Close.
	ErrClosed = fmt.Errorf("chsink: sink is closed")
)

// ErrInvalidConfig reports a malformed Config.
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("chsink: invalid config: %s", msg)
}

// ErrConnection wraps a ClickHouse connection failure.
func ErrConnection(err error) error {
	return fmt.Errorf("chsink: connection failed: %w", err)
}

// ErrInsert wraps a batch-insert failure.
func ErrInsert(err error) error {
	return fmt.Errorf("chsink: insert failed: %w", err)
}
