package activities

import "errors"

var (
	// ErrNilValues is returned when a ParallelForEach sequence evaluates to nil.
	ErrNilValues = errors.New("values evaluated to nil")
	// ErrDuplicateCase is returned when a Switch declares the same key twice.
	ErrDuplicateCase = errors.New("duplicate switch case")
)
