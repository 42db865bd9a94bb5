package host

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/viant/actflow/runtime/engine"
	"github.com/viant/actflow/runtime/persistence"
)

// State is the host visible state of an instance.
type State int

const (
	Idle State = iota
	Runnable
	Complete
	Aborted
)

var stateNames = map[State]string{
	Idle:     "idle",
	Runnable: "runnable",
	Complete: "complete",
	Aborted:  "aborted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for candidate, text := range stateNames {
		if text == name {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown instance state: %q", name)
}

// Record is the durable form of an instance.
type Record struct {
	InstanceID string              `json:"instanceId"`
	Workflow   string              `json:"workflow"`
	State      State               `json:"state"`
	Completion engine.State        `json:"completion"`
	Error      string              `json:"error,omitempty"`
	Keys       []string            `json:"keys,omitempty"`
	Executor   *engine.Snapshot    `json:"executor"`
	Values     *persistence.Record `json:"values,omitempty"`
	SavedAt    time.Time           `json:"savedAt"`
}
