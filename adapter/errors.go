package adapter

import (
	"errors"
	"fmt"
)

// Predefined errors
var (
	// ErrTimeout is returned when a backend call exceeds its deadline
	ErrTimeout = errors.New("adapter: request timed out")
	// ErrOfflineUnavailable is returned for a read issued offline with no
	// cached data to serve
	ErrOfflineUnavailable = errors.New("adapter: offline and no cached data available")
	// ErrCacheMiss is returned for only-if-cached reads that find nothing
	ErrCacheMiss = errors.New("adapter: no cached response")
	// ErrClosed is returned when operations are attempted on a closed adapter
	ErrClosed = errors.New("adapter: adapter is closed")
)

// BackendError is a normalized backend failure: any non-2xx HTTP response or
// store-level error that is not a plain not-found.
type BackendError struct {
	// Status is the HTTP-semantics status code of the failure
	Status int
	// Code is the backend's own error code, when one was provided
	Code string
	// Message is a human-readable description
	Message string
}

func (e *BackendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("adapter: backend error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("adapter: backend error %d: %s", e.Status, e.Message)
}

// AsBackendError unwraps err into a *BackendError when possible.
func AsBackendError(err error) (*BackendError, bool) {
	var be *BackendError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// Error constructors

// ErrInvalidConfig returns an error for an invalid configuration field
func ErrInvalidConfig(reason string) error {
	return fmt.Errorf("adapter: invalid config: %s", reason)
}

// ErrUnknownKind returns an error for an unregistered adapter kind
func ErrUnknownKind(kind Kind) error {
	return fmt.Errorf("adapter: unknown adapter kind %q", kind)
}

// ErrQueue wraps an offline queue persistence failure
func ErrQueue(err error) error {
	return fmt.Errorf("adapter: offline queue: %w", err)
}

// ErrEncode wraps a payload serialization failure
func ErrEncode(err error) error {
	return fmt.Errorf("adapter: encode payload: %w", err)
}
