package host

import (
	"context"

	"github.com/viant/actflow/runtime/async"
)

// Durability saves instance records. The returned future may complete
// before Persist returns or later.
type Durability interface {
	Persist(ctx context.Context, record *Record) *async.Future[struct{}]
}

// KeyAssociation maps external keys to instances.
type KeyAssociation interface {
	AssociateKeys(ctx context.Context, instanceID string, keys []string) error
	DisassociateKeys(ctx context.Context, instanceID string, keys []string) error
}

// PauseNotifier is told when a run stopped without completing.
type PauseNotifier interface {
	OnPaused(instanceID string, state State)
}

// FaultNotifier is told about unhandled activity faults.
type FaultNotifier interface {
	OnUnhandledFault(instanceID string, err error)
}

// AbortRequester is asked to abort an instance after a failed save.
type AbortRequester interface {
	RequestAbort(instanceID string, reason error)
}

// CompletionNotifier is told once the instance reached a terminal state.
type CompletionNotifier interface {
	OnCompleted(instanceID string, state State)
}
