// Package progress aggregates activity counters of running workflow
// instances from their tracking records.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/viant/actflow/runtime/engine"
	"github.com/viant/actflow/tracking"
)

// Delta represents an incremental counter change derived from one tracking
// record.
type Delta struct {
	Started  int
	Closed   int
	Canceled int
	Faulted  int
	Resumed  int
}

// Progress keeps activity counters of a single workflow instance.
type Progress struct {
	InstanceID string
	// State is the workflow completion state, empty while it runs.
	State     string
	Started   int
	Closed    int
	Canceled  int
	Faulted   int
	Resumed   int
	UpdatedAt time.Time
}

// Finished returns the number of activities that reached a terminal state.
func (p Progress) Finished() int {
	return p.Closed + p.Canceled + p.Faulted
}

func (p *Progress) apply(d Delta) {
	p.Started += d.Started
	p.Closed += d.Closed
	p.Canceled += d.Canceled
	p.Faulted += d.Faulted
	p.Resumed += d.Resumed
}

// DeltaOf maps a tracking record to a counter change.
func DeltaOf(record *tracking.Record) Delta {
	switch record.Kind {
	case tracking.KindBookmark:
		return Delta{Resumed: 1}
	case tracking.KindActivity:
		switch record.State {
		case engine.Executing.String():
			return Delta{Started: 1}
		case engine.Closed.String():
			return Delta{Closed: 1}
		case engine.Canceled.String():
			return Delta{Canceled: 1}
		case engine.Faulted.String():
			return Delta{Faulted: 1}
		}
	}
	return Delta{}
}

// Tracker is a tracking participant keeping a Progress per instance. It is
// safe for concurrent use.
type Tracker struct {
	mux      sync.Mutex
	items    map[string]*Progress
	onChange func(Progress)
}

// Track applies record to the progress of its instance. The onChange callback
// is invoked with a copy outside the critical section.
func (t *Tracker) Track(ctx context.Context, record *tracking.Record) error {
	if record.InstanceID == "" {
		return nil
	}
	t.mux.Lock()
	item, ok := t.items[record.InstanceID]
	if !ok {
		item = &Progress{InstanceID: record.InstanceID}
		t.items[record.InstanceID] = item
	}
	item.apply(DeltaOf(record))
	if record.Kind == tracking.KindWorkflow {
		item.State = record.State
	}
	item.UpdatedAt = record.CreatedAt
	snapshot := *item
	cb := t.onChange
	t.mux.Unlock()
	if cb != nil {
		cb(snapshot)
	}
	return nil
}

// Snapshot returns a copy of the progress of instanceID.
func (t *Tracker) Snapshot(instanceID string) (Progress, bool) {
	t.mux.Lock()
	defer t.mux.Unlock()
	item, ok := t.items[instanceID]
	if !ok {
		return Progress{}, false
	}
	return *item, true
}

// Forget drops the progress of instanceID.
func (t *Tracker) Forget(instanceID string) {
	t.mux.Lock()
	defer t.mux.Unlock()
	delete(t.items, instanceID)
}

// OnChange registers a callback invoked after every update. Passing nil
// disables it.
func (t *Tracker) OnChange(cb func(Progress)) {
	t.mux.Lock()
	t.onChange = cb
	t.mux.Unlock()
}

// New creates a tracker
func New() *Tracker {
	return &Tracker{items: map[string]*Progress{}}
}

var _ tracking.Participant = (*Tracker)(nil)
