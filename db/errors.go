package db

import "fmt"

var (
	// ErrConnectionNotEstablished is returned when the connection was never opened
	ErrConnectionNotEstablished = fmt.Errorf("db: database connection not established")
)

// ErrInvalidConfig returns an error for an invalid configuration field
func ErrInvalidConfig(reason string) error {
	return fmt.Errorf("db: invalid config: %s", reason)
}

// ErrConnection wraps a database connection failure
func ErrConnection(err error) error {
	return fmt.Errorf("db: connection failed: %w", err)
}
