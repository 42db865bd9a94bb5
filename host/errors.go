package host

import "errors"

var (
	// ErrOperationInProgress is returned when another guarded operation runs.
	ErrOperationInProgress = errors.New("operation already in progress")
	// ErrNotIdle is returned when the scheduler has pending work.
	ErrNotIdle = errors.New("instance is not idle")
	// ErrAborted is returned for any operation on an aborted instance.
	ErrAborted = errors.New("instance was aborted")
	// ErrUnloaded is returned for any operation on an unloaded instance.
	ErrUnloaded = errors.New("instance was unloaded")
	// ErrNoDurability is returned by Persist when no durability hook is configured.
	ErrNoDurability = errors.New("durability hook not configured")
)
