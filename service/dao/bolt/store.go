// Package bolt implements dao.Service over a bbolt bucket.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/viant/actflow/service/dao"
	"go.etcd.io/bbolt"
)

// Store keeps JSON encoded entities in one bucket of a bbolt database.
type Store[T any] struct {
	db          *bbolt.DB
	bucket      []byte
	keySelector func(*T) string
	filter      dao.Filter[T]
}

// Open opens (or creates) the database at path.
func Open(path string) (*bbolt.DB, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open %v: %w", path, err)
	}
	return db, nil
}

// New creates a store using bucket of db, creating the bucket when missing.
func New[T any](db *bbolt.DB, bucket string, keySelector func(*T) string, filter dao.Filter[T]) (*Store[T], error) {
	ret := &Store[T]{db: db, bucket: []byte(bucket), keySelector: keySelector, filter: filter}
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(ret.bucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket %v: %w", bucket, err)
	}
	return ret, nil
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
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %v: %w", key, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), data)
	})
}

// Load retrieves an entity
func (s *Store[T]) Load(ctx context.Context, key string) (*T, error) {
	if key == "" {
		return nil, dao.ErrInvalidID
	}
	var ret *T
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(s.bucket).Get([]byte(key))
		if data == nil {
			return dao.ErrNotFound
		}
		ret = new(T)
		if err := json.Unmarshal(data, ret); err != nil {
			return fmt.Errorf("failed to unmarshal %v: %w", key, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// Delete removes an entity
func (s *Store[T]) Delete(ctx context.Context, key string) error {
	if key == "" {
		return dao.ErrInvalidID
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		if bucket.Get([]byte(key)) == nil {
			return dao.ErrNotFound
		}
		return bucket.Delete([]byte(key))
	})
}

// List returns matching entities in key order.
func (s *Store[T]) List(ctx context.Context, parameters ...*dao.Parameter) ([]*T, error) {
	var ret []*T
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(k, data []byte) error {
			v := new(T)
			if err := json.Unmarshal(data, v); err != nil {
				return fmt.Errorf("failed to unmarshal %s: %w", k, err)
			}
			if s.filter == nil || s.filter(v, parameters) {
				ret = append(ret, v)
			}
			return nil
		})
	})
	return ret, err
}

var _ dao.Service[string, struct{}] = (*Store[struct{}])(nil)
