// Package criteria matches instance records against dao list parameters.
package criteria

import (
	"github.com/viant/actflow/host"
	"github.com/viant/actflow/service/dao"
)

const (
	// State matches the host state: idle, runnable, complete or aborted.
	State = "State"
	// Workflow matches the registered workflow name.
	Workflow = "Workflow"
	// Completion matches the root activity state.
	Completion = "Completion"
	// Key matches any associated key.
	Key = "Key"
)

// Match reports whether record satisfies every parameter. Unknown parameters
// are ignored.
func Match(record *host.Record, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter == nil {
			continue
		}
		switch parameter.Name {
		case State:
			if !matches(parameter.Value, record.State.String()) {
				return false
			}
		case Workflow:
			if !matches(parameter.Value, record.Workflow) {
				return false
			}
		case Completion:
			if !matches(parameter.Value, record.Completion.String()) {
				return false
			}
		case Key:
			found := false
			for _, key := range record.Keys {
				if matches(parameter.Value, key) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func matches(expected interface{}, actual string) bool {
	switch value := expected.(type) {
	case string:
		return value == actual
	case []string:
		for _, candidate := range value {
			if candidate == actual {
				return true
			}
		}
		return false
	}
	return true
}
