package docstore

import "fmt"

// Predefined errors
var (
	// ErrNotFound is returned when the requested document does not exist
	ErrNotFound = fmt.Errorf("docstore: document not found")
	// ErrClosed is returned when operations are attempted on a closed store
	ErrClosed = fmt.Errorf("docstore: store is closed")
)

// Error constructors

// ErrInvalidConfig returns an error for an invalid configuration field
func ErrInvalidConfig(reason string) error {
	return fmt.Errorf("docstore: invalid config: %s", reason)
}

// ErrConnection wraps a backend connection failure
func ErrConnection(err error) error {
	return fmt.Errorf("docstore: connection failed: %w", err)
}

// ErrQuery wraps a backend query failure
func ErrQuery(collection string, err error) error {
	return fmt.Errorf("docstore: query %q failed: %w", collection, err)
}

// ErrWrite wraps a backend write failure
func ErrWrite(collection, id string, err error) error {
	return fmt.Errorf("docstore: write %q/%q failed: %w", collection, id, err)
}

// ErrUnknownOp returns an error for an unrecognized batch operation type
func ErrUnknownOp(op OpType) error {
	return fmt.Errorf("docstore: unknown batch operation %q", op)
}
