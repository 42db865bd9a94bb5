package engine

import (
	"github.com/viant/actflow/runtime/location"
)

// Instance is one execution record of an activity.
type Instance struct {
	id              int64
	activity        Activity
	parent          *Instance
	env             *location.Environment
	state           State
	children        []*Instance
	cancelRequested bool
	markedCanceled  bool
	pending         int
	onComplete      *callback
	values          map[string]interface{}
}

// ID returns the sequence number of the instance within its workflow.
func (i *Instance) ID() int64 { return i.id }

// Activity returns the activity definition of the instance.
func (i *Instance) Activity() Activity { return i.activity }

// ActivityID returns the identity of the activity definition.
func (i *Instance) ActivityID() string { return IDOf(i.activity) }

// State returns the lifecycle state.
func (i *Instance) State() State { return i.state }

// Parent returns the parent instance, nil for the root.
func (i *Instance) Parent() *Instance { return i.parent }

// IsCancellationRequested reports whether cancellation was requested.
func (i *Instance) IsCancellationRequested() bool { return i.cancelRequested }

// Get returns the value of a name visible from the instance.
func (i *Instance) Get(name string) (interface{}, error) { return i.env.Get(name) }

// Children returns the executing children of the instance.
func (i *Instance) Children() []*Instance {
	return append([]*Instance(nil), i.children...)
}

func (i *Instance) isExecuting() bool { return i.state == Executing }

func (i *Instance) removeChild(child *Instance) {
	for k, candidate := range i.children {
		if candidate == child {
			i.children = append(i.children[:k], i.children[k+1:]...)
			return
		}
	}
}
