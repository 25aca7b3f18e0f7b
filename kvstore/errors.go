package kvstore

import "fmt"

// Predefined errors
var (
	// ErrClosed is returned when operations are attempted on a closed store
	ErrClosed = fmt.Errorf("kvstore: store is closed")
)

// Error constructors

// ErrInvalidConfig returns an error for an invalid configuration field
func ErrInvalidConfig(reason string) error {
	return fmt.Errorf("kvstore: invalid config: %s", reason)
}

// ErrConnection wraps a backend connection failure
func ErrConnection(err error) error {
	return fmt.Errorf("kvstore: connection failed: %w", err)
}

// ErrRead wraps a backend read failure
func ErrRead(key string, err error) error {
	return fmt.Errorf("kvstore: read %q failed: %w", key, err)
}

// ErrWrite wraps a backend write failure
func ErrWrite(key string, err error) error {
	return fmt.Errorf("kvstore: write %q failed: %w", key, err)
}
