// Package memory implements dao.Service in process memory.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/viant/actflow/service/dao"
)

// Store is a generic in-memory dao.Service. Entities are keyed by the
// supplied key selector and copied on Save and Load.
type Store[K comparable, T any] struct {
	mu          sync.RWMutex
	records     map[K]T
	order       map[K]int
	seq         int
	keySelector func(*T) K
	filter      dao.Filter[T]
}

// New creates a memory store.
func New[K comparable, T any](keySelector func(*T) K, filter dao.Filter[T]) *Store[K, T] {
	return &Store[K, T]{
		records:     make(map[K]T),
		order:       make(map[K]int),
		keySelector: keySelector,
		filter:      filter,
	}
}

// Save stores or overwrites a record.
func (s *Store[K, T]) Save(_ context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	key := s.keySelector(v)
	var zero K
	if key == zero {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.order[key]; !ok {
		s.seq++
		s.order[key] = s.seq
	}
	s.records[key] = *v
	return nil
}

// Load returns a record by key.
func (s *Store[K, T]) Load(_ context.Context, key K) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[key]
	if !ok {
		return nil, dao.ErrNotFound
	}
	return &v, nil
}

// Delete removes a record.
func (s *Store[K, T]) Delete(_ context.Context, key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return dao.ErrNotFound
	}
	delete(s.records, key)
	delete(s.order, key)
	return nil
}

// List returns matching records in insertion order.
func (s *Store[K, T]) List(_ context.Context, parameters ...*dao.Parameter) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]K, 0, len(s.records))
	for key := range s.records {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return s.order[keys[i]] < s.order[keys[j]] })
	out := make([]*T, 0, len(keys))
	for _, key := range keys {
		v := s.records[key]
		if s.filter != nil && !s.filter(&v, parameters) {
			continue
		}
		out = append(out, &v)
	}
	return out, nil
}

var _ dao.Service[string, struct{}] = (*Store[string, struct{}])(nil)
