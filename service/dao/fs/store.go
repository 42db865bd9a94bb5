// Package fs implements dao.Service over an afs storage URL, one JSON file
// per entity.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/viant/actflow/service/dao"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"go.uber.org/multierr"
)

// Store is a filesystem backed dao.Service
type Store[T any] struct {
	baseURL     string
	fs          afs.Service
	mu          sync.RWMutex
	keySelector func(*T) string
	filter      dao.Filter[T]
}

// New creates a store rooted at baseURL, creating the location when missing.
func New[T any](ctx context.Context, fs afs.Service, baseURL string, keySelector func(*T) string, filter dao.Filter[T]) (*Store[T], error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if exists, _ := fs.Exists(ctx, baseURL); !exists {
		if err := fs.Create(ctx, baseURL, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create base location %v: %w", baseURL, err)
		}
	}
	return &Store[T]{baseURL: baseURL, fs: fs, keySelector: keySelector, filter: filter}, nil
}

// Save persists an entity
func (s *Store[T]) Save(ctx context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	key := s.keySelector(v)
	if key == "" {
		return dao.ErrInvalidID
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %v: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	URL := s.entityURL(key)
	if err = s.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save %s: %w", URL, err)
	}
	return nil
}

// Load retrieves an entity
func (s *Store[T]) Load(ctx context.Context, key string) (*T, error) {
	if key == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	URL := s.entityURL(key)
	exists, err := s.fs.Exists(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to check %v: %w", URL, err)
	}
	if !exists {
		return nil, dao.ErrNotFound
	}
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read %v: %w", URL, err)
	}
	ret := new(T)
	if err = json.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %v: %w", URL, err)
	}
	return ret, nil
}

// Delete removes an entity
func (s *Store[T]) Delete(ctx context.Context, key string) error {
	if key == "" {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	URL := s.entityURL(key)
	if exists, _ := s.fs.Exists(ctx, URL); !exists {
		return dao.ErrNotFound
	}
	if err := s.fs.Delete(ctx, URL); err != nil {
		return fmt.Errorf("failed to delete %v: %w", URL, err)
	}
	return nil
}

// List returns matching entities ordered by key. Unreadable files are
// skipped and reported together in the returned error.
func (s *Store[T]) List(ctx context.Context, parameters ...*dao.Parameter) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objects, err := s.fs.List(ctx, s.baseURL, option.NewRecursive(false))
	if err != nil {
		return nil, fmt.Errorf("failed to list %v: %w", s.baseURL, err)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name() < objects[j].Name() })
	var ret []*T
	var errs error
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to read %v: %w", object.URL(), err))
			continue
		}
		v := new(T)
		if err = json.Unmarshal(data, v); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to unmarshal %v: %w", object.URL(), err))
			continue
		}
		if s.filter != nil && !s.filter(v, parameters) {
			continue
		}
		ret = append(ret, v)
	}
	return ret, errs
}

func (s *Store[T]) entityURL(key string) string {
	return path.Join(s.baseURL, key+".json")
}

var _ dao.Service[string, struct{}] = (*Store[struct{}])(nil)
