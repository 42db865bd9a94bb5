// Package extension composes host supplied capability objects for workflow
// instances.
package extension

import (
	"fmt"
	"reflect"
	"sync"
)

type provider struct {
	declared reflect.Type
	produce  func() interface{}
	mux      sync.Mutex
	match    reflect.Type
}

func (p *provider) matchType() reflect.Type {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.match != nil {
		return p.match
	}
	return p.declared
}

func (p *provider) newInstance() interface{} {
	value := p.produce()
	p.mux.Lock()
	if p.match == nil && value != nil {
		p.match = p.declared
		if concrete := reflect.TypeOf(value); concrete != p.declared {
			p.match = concrete
		}
	}
	p.mux.Unlock()
	return value
}

// Manager holds extension registrations of one host.
type Manager struct {
	mux        sync.Mutex
	readOnly   bool
	singletons []interface{}
	providers  []*provider
	closure    []interface{}
	closed     bool
}

// NewManager creates a manager
func NewManager() *Manager {
	return &Manager{}
}

// Add registers a singleton extension shared by every instance.
func (m *Manager) Add(extension interface{}) error {
	if extension == nil {
		return fmt.Errorf("extension was nil")
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.readOnly {
		return ErrReadOnly
	}
	m.singletons = append(m.singletons, extension)
	m.closed = false
	return nil
}

// AddFactory registers a per-instance extension of declared type T.
func AddFactory[T any](m *Manager, factory func() T) error {
	if factory == nil {
		return fmt.Errorf("factory was nil")
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.readOnly {
		return ErrReadOnly
	}
	m.providers = append(m.providers, &provider{
		declared: typeOf[T](),
		produce:  func() interface{} { return factory() },
	})
	return nil
}

// MakeReadOnly freezes the registrations.
func (m *Manager) MakeReadOnly() {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.readOnly = true
	m.ensureClosure()
}

// IsReadOnly reports whether the manager is frozen.
func (m *Manager) IsReadOnly() bool {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.readOnly
}

// Singletons returns the singleton extensions including every additional
// extension they contribute, each exactly once.
func (m *Manager) Singletons() []interface{} {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.ensureClosure()
	return append([]interface{}(nil), m.closure...)
}

func (m *Manager) ensureClosure() {
	if m.closed {
		return
	}
	m.closure = closure(m.singletons, newVisited())
	m.closed = true
}

// Validate checks that every required capability is provided, without
// producing any per-instance extension.
func (m *Manager) Validate(required []Capability) error {
	singletons := m.Singletons()
	m.mux.Lock()
	providers := append([]*provider(nil), m.providers...)
	m.mux.Unlock()
	var missing []Tag
outer:
	for _, capability := range required {
		for _, candidate := range singletons {
			if capability.Matches(reflect.TypeOf(candidate)) {
				continue outer
			}
		}
		for _, p := range providers {
			if capability.Matches(p.matchType()) {
				continue outer
			}
		}
		missing = append(missing, capability.Tag)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrMissingCapability, missing)
	}
	return nil
}

// NewCollection composes the extensions of a new workflow instance.
func (m *Manager) NewCollection() *Collection {
	m.mux.Lock()
	m.ensureClosure()
	singletons := append([]interface{}(nil), m.closure...)
	providers := append([]*provider(nil), m.providers...)
	m.mux.Unlock()

	visited := newVisited()
	ret := &Collection{cache: map[Tag][]interface{}{}}
	for _, item := range singletons {
		visited.add(item)
		ret.add(item, reflect.TypeOf(item))
	}
	for _, p := range providers {
		value := p.newInstance()
		if value == nil || !visited.add(value) {
			continue
		}
		ret.add(value, p.matchType())
		if aware, ok := value.(Aware); ok {
			for _, additional := range closure(aware.AdditionalExtensions(), visited) {
				ret.add(additional, reflect.TypeOf(additional))
			}
		}
	}
	return ret
}

// closure expands extensions with their additional extensions using a work
// queue; visited guards against cycles and duplicates.
func closure(extensions []interface{}, visited *visited) []interface{} {
	var ret []interface{}
	queue := append([]interface{}(nil), extensions...)
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if item == nil || !visited.add(item) {
			continue
		}
		ret = append(ret, item)
		if aware, ok := item.(Aware); ok {
			queue = append(queue, aware.AdditionalExtensions()...)
		}
	}
	return ret
}

type visited struct {
	seen map[interface{}]bool
}

func newVisited() *visited {
	return &visited{seen: map[interface{}]bool{}}
}

// add returns false when item was already seen. Values of non comparable
// types are always admitted.
func (v *visited) add(item interface{}) bool {
	if !reflect.TypeOf(item).Comparable() {
		return true
	}
	if v.seen[item] {
		return false
	}
	v.seen[item] = true
	return true
}
