package accessor

import (
	"errors"
	"fmt"
)

var (
	// ErrMisconfiguredBounds is returned when a Clamped is built with
	// min > max or with a NaN bound.
	ErrMisconfiguredBounds = errors.New("accessor: misconfigured bounds")

	// ErrStore matches every *StoreError via errors.Is.
	ErrStore = errors.New("accessor: store error")

	// ErrEmptyKey is returned when a persisted accessor is given no key.
	ErrEmptyKey = errors.New("accessor: empty key")
)

// StoreError reports a failed call to the external store. It is always
// returned to the caller, never swallowed.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("accessor: store %s %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap exposes both ErrStore and the underlying store error.
func (e *StoreError) Unwrap() []error {
	if e == nil {
		return nil
	}
	return []error{ErrStore, e.Err}
}
