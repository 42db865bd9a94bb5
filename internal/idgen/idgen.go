package idgen

import "github.com/google/uuid"

// NewFunc returns a new globally unique identifier. It is a variable so tests
// can make identifiers predictable.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new globally unique identifier as string.
func New() string { return NewFunc() }
