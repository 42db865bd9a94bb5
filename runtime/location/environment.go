// Package location implements per-instance storage for variables and
// arguments. An Environment holds the slots declared by one activity instance
// and resolves names it does not declare by walking to the nearest ancestor
// environment that does.
package location

import (
	"fmt"
	"reflect"

	"github.com/viant/structology/conv"
)

// Location is a single named slot.
type Location struct {
	Name  string
	Type  reflect.Type
	value interface{}
}

// Value returns the current value of the location.
func (l *Location) Value() interface{} { return l.value }

// Environment is the slot array of one declaring instance.
type Environment struct {
	parent    *Environment
	owner     string
	names     map[string]int
	slots     []*Location
	writable  func() bool
	converter *conv.Converter
}

// Option configures an Environment
type Option func(e *Environment)

// WithWritable sets the predicate consulted before every write, typically
// "owning instance is executing".
func WithWritable(fn func() bool) Option {
	return func(e *Environment) {
		e.writable = fn
	}
}

// WithConverter sets the converter used by Restore.
func WithConverter(converter *conv.Converter) Option {
	return func(e *Environment) {
		e.converter = converter
	}
}

// New creates an environment whose unresolved names are looked up in parent.
func New(parent *Environment, owner string, options ...Option) *Environment {
	ret := &Environment{parent: parent, owner: owner, names: map[string]int{}}
	for _, opt := range options {
		opt(ret)
	}
	if ret.converter == nil && parent != nil {
		ret.converter = parent.converter
	}
	return ret
}

// Parent returns the enclosing environment.
func (e *Environment) Parent() *Environment { return e.parent }

// Owner returns the identity of the declaring activity.
func (e *Environment) Owner() string { return e.owner }

// Declare adds a slot, growing the slot array.
func (e *Environment) Declare(name string, aType reflect.Type, value interface{}) (*Location, error) {
	if _, ok := e.names[name]; ok {
		return nil, fmt.Errorf("%w: %q in %v", ErrDuplicate, name, e.owner)
	}
	loc := &Location{Name: name, Type: aType, value: value}
	e.names[name] = len(e.slots)
	e.slots = append(e.slots, loc)
	return loc, nil
}

// Declares reports whether this environment (not its ancestors) declares name.
func (e *Environment) Declares(name string) bool {
	_, ok := e.names[name]
	return ok
}

// Resolve returns the location bound to name together with its declaring environment.
func (e *Environment) Resolve(name string) (*Location, *Environment, error) {
	for env := e; env != nil; env = env.parent {
		if idx, ok := env.names[name]; ok {
			return env.slots[idx], env, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: %q", ErrUnbound, name)
}

// Get returns the value bound to name.
func (e *Environment) Get(name string) (interface{}, error) {
	loc, _, err := e.Resolve(name)
	if err != nil {
		return nil, err
	}
	return loc.value, nil
}

// Set writes the value bound to name; the declaring environment must be writable.
func (e *Environment) Set(name string, value interface{}) error {
	loc, owner, err := e.Resolve(name)
	if err != nil {
		return err
	}
	if owner.writable != nil && !owner.writable() {
		return fmt.Errorf("%w: %q declared by %v", ErrReadOnly, name, owner.owner)
	}
	loc.value = value
	return nil
}

// Locations returns the slots declared by this environment in declaration order.
func (e *Environment) Locations() []*Location {
	return append([]*Location(nil), e.slots...)
}

// Len returns the number of declared slots.
func (e *Environment) Len() int { return len(e.slots) }

// Restore assigns a value decoded from a snapshot, converting it to the
// declared type of the slot when one is known.
func (e *Environment) Restore(name string, raw interface{}) error {
	idx, ok := e.names[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnbound, name)
	}
	loc := e.slots[idx]
	if loc.Type == nil || raw == nil {
		loc.value = raw
		return nil
	}
	if reflect.TypeOf(raw) == loc.Type {
		loc.value = raw
		return nil
	}
	value, err := e.typedValue(loc.Type, raw)
	if err != nil {
		return fmt.Errorf("failed to restore %q as %v: %w", name, loc.Type, err)
	}
	loc.value = value
	return nil
}

// Convert converts value into the type of target, a non-nil pointer.
func (e *Environment) Convert(value interface{}, target interface{}) error {
	dest := reflect.ValueOf(target)
	if dest.Kind() != reflect.Ptr || dest.IsNil() {
		return fmt.Errorf("invalid conversion target: %T", target)
	}
	if value == nil {
		return nil
	}
	if src := reflect.ValueOf(value); src.Type().AssignableTo(dest.Elem().Type()) {
		dest.Elem().Set(src)
		return nil
	}
	return e.ensureConverter().Convert(value, target)
}

func (e *Environment) typedValue(aType reflect.Type, value interface{}) (interface{}, error) {
	isPtr := aType.Kind() == reflect.Ptr
	elem := aType
	if isPtr {
		elem = aType.Elem()
	}
	instance := reflect.New(elem)
	if err := e.ensureConverter().Convert(value, instance.Interface()); err != nil {
		return nil, err
	}
	if isPtr {
		return instance.Interface(), nil
	}
	return instance.Elem().Interface(), nil
}

func (e *Environment) ensureConverter() *conv.Converter {
	if e.converter == nil {
		e.converter = conv.NewConverter(conv.DefaultOptions())
	}
	return e.converter
}
