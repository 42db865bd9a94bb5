// Package persistence defines how extensions contribute state to a durable
// instance record and how that state is restored on load.
package persistence

import (
	"fmt"
	"strings"
)

// Name is a namespaced value name, rendered as {namespace}local.
type Name struct {
	Namespace string
	Local     string
}

// NewName creates a name
func NewName(namespace, local string) Name {
	return Name{Namespace: namespace, Local: local}
}

func (n Name) String() string {
	return "{" + n.Namespace + "}" + n.Local
}

// ParseName parses the textual form of a name.
func ParseName(text string) (Name, error) {
	if !strings.HasPrefix(text, "{") {
		return Name{Local: text}, nil
	}
	idx := strings.Index(text, "}")
	if idx == -1 {
		return Name{}, fmt.Errorf("invalid persistence name: %q", text)
	}
	return Name{Namespace: text[1:idx], Local: text[idx+1:]}, nil
}

// Values maps names to values.
type Values map[Name]interface{}

// Participant contributes values to a save and consumes them on load.
// CollectValues freezes the participant until a Notifier call releases it.
type Participant interface {
	CollectValues() (readWrite, writeOnly Values)
	PublishValues(readWrite Values) error
}

// Notifier is implemented by participants that need the outcome of a save.
type Notifier interface {
	OnSaveCompleted()
	OnSaveAborted()
}
