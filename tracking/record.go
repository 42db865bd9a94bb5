// Package tracking defines the records emitted while a workflow runs and the
// participants that receive them.
package tracking

import (
	"context"
	"time"

	"go.uber.org/multierr"
)

// Kind identifies a tracking record type.
type Kind string

const (
	KindWorkflow Kind = "workflowInstance"
	KindActivity Kind = "activityState"
	KindBookmark Kind = "bookmarkResumption"
	KindCustom   Kind = "custom"
)

// Record is a single tracking event.
type Record struct {
	Kind       Kind                   `json:"kind"`
	InstanceID string                 `json:"instanceId,omitempty"`
	ActivityID string                 `json:"activityId,omitempty"`
	Activity   string                 `json:"activity,omitempty"`
	Sequence   int64                  `json:"sequence,omitempty"`
	State      string                 `json:"state,omitempty"`
	Bookmark   string                 `json:"bookmark,omitempty"`
	Name       string                 `json:"name,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Error      string                 `json:"error,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
}

// Custom creates a custom record emitted by an activity.
func Custom(name string, data map[string]interface{}) *Record {
	return &Record{Kind: KindCustom, Name: name, Data: data}
}

// Participant receives tracking records.
type Participant interface {
	Track(ctx context.Context, record *Record) error
}

// Func adapts a function to Participant.
type Func func(ctx context.Context, record *Record) error

func (f Func) Track(ctx context.Context, record *Record) error { return f(ctx, record) }

// Multi fans a record out to several participants. Every participant sees
// the record even when an earlier one fails.
type Multi []Participant

func (m Multi) Track(ctx context.Context, record *Record) (err error) {
	for _, participant := range m {
		err = multierr.Append(err, participant.Track(ctx, record))
	}
	return err
}
