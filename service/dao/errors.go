package dao

import "errors"

// Sentinel errors shared by every store implementation; test with errors.Is.
var (
	// ErrNotFound is returned for a key with no stored entity.
	ErrNotFound = errors.New("dao: not found")
	// ErrInvalidID is returned for an empty key.
	ErrInvalidID = errors.New("dao: invalid id")
	// ErrNilEntity is returned when saving a nil entity.
	ErrNilEntity = errors.New("dao: nil entity")
	// ErrConflict is returned when a unique value is already taken.
	ErrConflict = errors.New("dao: conflict")
)
