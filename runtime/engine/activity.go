package engine

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/viant/actflow/model"
	"github.com/viant/actflow/runtime/extension"
)

// Activity is a unit of work. Implementations embed Base.
type Activity interface {
	Execute(ctx *Context) error
	base() *Base
}

// Base carries the declarations shared by every activity.
type Base struct {
	DisplayName string          `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Variables   model.Variables `json:"variables,omitempty" yaml:"variables,omitempty"`
	Arguments   model.Arguments `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	id          string
}

func (b *Base) base() *Base { return b }

// ID returns the identity assigned by Prepare.
func (b *Base) ID() string { return b.id }

// Name returns the display name or the identity.
func (b *Base) Name() string {
	if b.DisplayName != "" {
		return b.DisplayName
	}
	return b.id
}

// Composite is implemented by activities with children.
type Composite interface {
	Children() []Activity
}

// Canceler overrides the default cancellation of an activity.
type Canceler interface {
	Cancel(ctx *Context) error
}

// Requirer declares extensions an activity needs at runtime.
type Requirer interface {
	RequiredExtensions() []extension.Capability
}

// Validator checks activity configuration during preparation.
type Validator interface {
	Validate() error
}

// Action is a child activity scheduled with an argument value bound to
// Argument in its environment. Type declares the argument slot type; the
// type of the scheduled value is used when nil.
type Action struct {
	Argument string
	Type     reflect.Type
	Handler  Activity
}

// ActionOwner is implemented by activities that schedule actions.
type ActionOwner interface {
	Actions() []*Action
}

// IDOf returns the identity of an activity.
func IDOf(activity Activity) string {
	if activity == nil {
		return ""
	}
	return activity.base().id
}

// NameOf returns the display name of an activity.
func NameOf(activity Activity) string {
	if activity == nil {
		return ""
	}
	return activity.base().Name()
}

// Tree is a prepared activity tree.
type Tree struct {
	Root     Activity
	byID     map[string]Activity
	actions  map[string]*Action
	required []extension.Capability
}

// Lookup returns the activity with the supplied identity.
func (t *Tree) Lookup(id string) Activity {
	return t.byID[id]
}

// actionOf returns the action whose handler has the supplied identity.
func (t *Tree) actionOf(id string) *Action {
	return t.actions[id]
}

// Len returns the number of activities in the tree.
func (t *Tree) Len() int { return len(t.byID) }

// RequiredExtensions returns the capabilities declared by the tree.
func (t *Tree) RequiredExtensions() []extension.Capability {
	return t.required
}

// Prepare assigns identities to every activity of root and collects the
// extensions they require. An activity can appear only once in a tree.
func Prepare(root Activity) (*Tree, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: root was nil", ErrInvalidTree)
	}
	ret := &Tree{Root: root, byID: map[string]Activity{}, actions: map[string]*Action{}}
	seen := map[*Base]bool{}
	tags := map[extension.Tag]bool{}
	type node struct {
		activity Activity
		id       string
	}
	queue := []node{{activity: root, id: "1"}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		b := current.activity.base()
		if seen[b] {
			return nil, fmt.Errorf("%w: activity %q is referenced more than once", ErrInvalidTree, b.Name())
		}
		seen[b] = true
		b.id = current.id
		ret.byID[current.id] = current.activity
		if validator, ok := current.activity.(Validator); ok {
			if err := validator.Validate(); err != nil {
				return nil, fmt.Errorf("%w: %v: %v", ErrInvalidTree, b.Name(), err)
			}
		}
		if requirer, ok := current.activity.(Requirer); ok {
			for _, capability := range requirer.RequiredExtensions() {
				if !tags[capability.Tag] {
					tags[capability.Tag] = true
					ret.required = append(ret.required, capability)
				}
			}
		}
		composite, ok := current.activity.(Composite)
		if !ok {
			continue
		}
		for i, child := range composite.Children() {
			if child == nil {
				return nil, fmt.Errorf("%w: %v has nil child at %d", ErrInvalidTree, b.Name(), i)
			}
			queue = append(queue, node{activity: child, id: current.id + "." + strconv.Itoa(i+1)})
		}
	}
	for _, activity := range ret.byID {
		owner, ok := activity.(ActionOwner)
		if !ok {
			continue
		}
		for _, action := range owner.Actions() {
			if action != nil && action.Handler != nil && IDOf(action.Handler) != "" {
				ret.actions[IDOf(action.Handler)] = action
			}
		}
	}
	return ret, nil
}
