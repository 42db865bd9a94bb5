// Package bookmark implements resumption tokens that suspend a branch of an
// activity tree until external input arrives.
package bookmark

import (
	"github.com/viant/actflow/internal/idgen"
)

// Scope partitions bookmark names. A nil scope denotes the default scope.
type Scope struct {
	ID string `json:"id"`
}

// NewScope creates a scope with a unique identifier.
func NewScope() *Scope {
	return &Scope{ID: idgen.New()}
}

// Bookmark identifies a suspended branch.
type Bookmark struct {
	Name  string `json:"name"`
	Scope *Scope `json:"scope,omitempty"`
}

// New creates a bookmark reference in the optional scope.
func New(name string, scope ...*Scope) *Bookmark {
	ret := &Bookmark{Name: name}
	if len(scope) > 0 {
		ret.Scope = scope[0]
	}
	return ret
}

// Key is the map key of a bookmark.
type Key struct {
	Scope string
	Name  string
}

// Key returns the lookup key of the bookmark.
func (b *Bookmark) Key() Key {
	ret := Key{Name: b.Name}
	if b.Scope != nil {
		ret.Scope = b.Scope.ID
	}
	return ret
}

func (b *Bookmark) String() string {
	if b.Scope == nil || b.Scope.ID == "" {
		return b.Name
	}
	return b.Scope.ID + "/" + b.Name
}

// Result is the outcome of a resumption attempt. NotFound and NotReady are
// normal values callers branch on.
type Result int

const (
	Success Result = iota
	NotFound
	NotReady
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case NotFound:
		return "notFound"
	case NotReady:
		return "notReady"
	}
	return "unknown"
}

// Info describes a pending bookmark for introspection.
type Info struct {
	Bookmark   *Bookmark `json:"bookmark"`
	OwnerID    int64     `json:"ownerId"`
	ActivityID string    `json:"activityId"`
	Activity   string    `json:"activity,omitempty"`
}
