package sched

import "fmt"

// ErrNilTask returns an error for a nil task function
func ErrNilTask(name string) error {
	return fmt.Errorf("sched: task %q has no function", name)
}

// ErrInvalidSpec wraps a cron spec parse failure
func ErrInvalidSpec(name, spec string, err error) error {
	return fmt.Errorf("sched: task %q has invalid spec %q: %w", name, spec, err)
}
