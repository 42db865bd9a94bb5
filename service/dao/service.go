// Package dao defines the generic data access contract implemented by the
// memory, fs and bolt stores.
package dao

import (
	"context"
)

// Service stores entities of type T under key K.
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error

	Load(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, id K) error

	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
}

// Filter reports whether t satisfies parameters.
type Filter[T any] func(t *T, parameters []*Parameter) bool
