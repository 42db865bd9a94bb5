package extension

import "errors"

var (
	// ErrReadOnly is returned when a manager is mutated after MakeReadOnly.
	ErrReadOnly = errors.New("extension manager is read-only")
	// ErrMissingCapability is returned when no registered extension provides a
	// capability required by an activity tree.
	ErrMissingCapability = errors.New("required extension not registered")
)
