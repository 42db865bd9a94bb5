// Package async models operations that may complete inline, before the
// initiating call returns, or later from another goroutine. Either way the
// result is delivered exactly once.
package async

import (
	"context"
	"sync"
)

// Future holds the eventual result of an operation.
type Future[T any] struct {
	mux         sync.Mutex
	done        chan struct{}
	completed   bool
	synchronous bool
	value       T
	err         error
	callbacks   []func(T, error)
}

// New creates a pending future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Completed creates a future that completed synchronously.
func Completed[T any](value T, err error) *Future[T] {
	ret := New[T]()
	ret.synchronous = true
	ret.Complete(value, err)
	return ret
}

// Complete resolves the future. Only the first call has an effect; it
// returns false for every later call.
func (f *Future[T]) Complete(value T, err error) bool {
	f.mux.Lock()
	if f.completed {
		f.mux.Unlock()
		return false
	}
	f.completed = true
	f.value, f.err = value, err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mux.Unlock()
	for _, fn := range callbacks {
		fn(value, err)
	}
	return true
}

// OnComplete registers fn to receive the result. fn runs inline when the
// future is already complete, otherwise on the completing goroutine.
func (f *Future[T]) OnComplete(fn func(T, error)) {
	f.mux.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, fn)
		f.mux.Unlock()
		return
	}
	value, err := f.value, f.err
	f.mux.Unlock()
	fn(value, err)
}

// Wait blocks until the future completes or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		f.mux.Lock()
		defer f.mux.Unlock()
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed once the future completes.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// IsCompleted reports whether a result is available.
func (f *Future[T]) IsCompleted() bool {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.completed
}

// CompletedSynchronously reports whether the result was available before the
// initiating call returned.
func (f *Future[T]) CompletedSynchronously() bool {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.synchronous
}
