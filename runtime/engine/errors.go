package engine

import "errors"

var (
	// ErrNotPersistable is returned when the instance cannot be snapshotted in
	// its current state.
	ErrNotPersistable = errors.New("instance is not persistable")
	// ErrNoPersistZone is returned by RequestPersist inside a no-persist region.
	ErrNoPersistZone = errors.New("persistence requested inside no-persist zone")
	// ErrCancelNotRequested is returned by MarkCanceled when the instance was
	// never asked to cancel.
	ErrCancelNotRequested = errors.New("cancellation was not requested")
	// ErrInvalidTree is returned when an activity tree cannot be prepared.
	ErrInvalidTree = errors.New("invalid activity tree")
	// ErrNotExecuting is returned when a context is used after its instance completed.
	ErrNotExecuting = errors.New("activity instance is not executing")
	// ErrTerminated is the default termination reason.
	ErrTerminated = errors.New("workflow terminated")
)
