package engine

import (
	"encoding/json"
	"fmt"
)

// State is the lifecycle state of an activity instance.
type State int

const (
	Executing State = iota
	Closed
	Canceled
	Faulted
)

var stateNames = map[State]string{
	Executing: "executing",
	Closed:    "closed",
	Canceled:  "canceled",
	Faulted:   "faulted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// IsTerminal reports whether s is Closed, Canceled or Faulted.
func (s State) IsTerminal() bool { return s != Executing }

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

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
	return fmt.Errorf("unknown state: %q", name)
}

// Yield describes why Run returned.
type Yield int

const (
	// YieldIdle means the work queue is empty and the workflow waits for input.
	YieldIdle Yield = iota
	// YieldPaused means a pause was requested or the run context ended.
	YieldPaused
	// YieldPersist means an activity requested persistence; the host must
	// call PersistCompleted before running again.
	YieldPersist
	// YieldComplete means the root instance reached a terminal state.
	YieldComplete
)

func (y Yield) String() string {
	switch y {
	case YieldIdle:
		return "idle"
	case YieldPaused:
		return "paused"
	case YieldPersist:
		return "persist"
	case YieldComplete:
		return "complete"
	}
	return "unknown"
}
