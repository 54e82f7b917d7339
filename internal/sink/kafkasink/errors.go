package kafkasink

import "fmt"

// ErrInvalidConfig reports a malformed Config.
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("kafkasink: invalid config: %s", msg)
}

// ErrProduce wraps a producer-level send failure.
func ErrProduce(err error) error {
	return fmt.Errorf("kafkasink: produce failed: %w", err)
}
