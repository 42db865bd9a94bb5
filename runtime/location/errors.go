package location

import "errors"

var (
	// ErrUnbound is returned when no enclosing scope declares a name.
	ErrUnbound = errors.New("location: name is not declared in any enclosing scope")

	// ErrDuplicate is returned when a scope declares the same name twice.
	ErrDuplicate = errors.New("location: name already declared in scope")

	// ErrReadOnly is returned when a location is written after its owning
	// instance stopped executing.
	ErrReadOnly = errors.New("location: owning instance is not executing")
)
