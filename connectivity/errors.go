package connectivity

import "fmt"

// ErrInvalidConfig returns an error for an invalid configuration field
func ErrInvalidConfig(reason string) error {
	return fmt.Errorf("connectivity: invalid config: %s", reason)
}
