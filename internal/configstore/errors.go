package configstore

import "fmt"

// ErrInvalidConfig reports a malformed Config.
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("configstore: invalid config: %s", msg)
}

// ErrConnection wraps a database connection failure.
func ErrConnection(err error) error {
	return fmt.Errorf("configstore: connection failed: %w", err)
}

// ErrQuery wraps a failure to load registration rows.
func ErrQuery(err error) error {
	return fmt.Errorf("configstore: query failed: %w", err)
}
