package engine

import (
	"context"
	"fmt"

	"github.com/viant/actflow/model"
	"github.com/viant/actflow/runtime/bookmark"
	"github.com/viant/actflow/runtime/extension"
	"github.com/viant/actflow/tracking"
)

// Context is handed to an activity while one of its work items runs.
type Context struct {
	context.Context
	executor *Executor
	instance *Instance
}

// Instance returns the executing instance.
func (c *Context) Instance() *Instance { return c.instance }

// WorkflowID returns the identity of the workflow instance.
func (c *Context) WorkflowID() string { return c.executor.id }

func (c *Context) ensureExecuting() error {
	if !c.instance.isExecuting() {
		return fmt.Errorf("%w: %v (%v)", ErrNotExecuting, NameOf(c.instance.activity), c.instance.state)
	}
	return nil
}

// ScheduleActivity schedules a child activity. onComplete runs on this
// instance when the child reaches a terminal state.
func (c *Context) ScheduleActivity(activity Activity, onComplete CompletionCallback) (*Instance, error) {
	if err := c.ensureExecuting(); err != nil {
		return nil, err
	}
	return c.executor.schedule(c.instance, activity, nil, onComplete)
}

// ScheduleAction schedules the handler of action with argument bound to its
// declared argument name.
func (c *Context) ScheduleAction(action *Action, argument interface{}, onComplete CompletionCallback) (*Instance, error) {
	if err := c.ensureExecuting(); err != nil {
		return nil, err
	}
	if action == nil || action.Handler == nil {
		return nil, fmt.Errorf("action handler was nil")
	}
	return c.executor.schedule(c.instance, action.Handler, &actionArgument{name: action.Argument, typ: action.Type, value: argument}, onComplete)
}

// CancelChildren requests cancellation of every executing child.
func (c *Context) CancelChildren() {
	for i := len(c.instance.children) - 1; i >= 0; i-- {
		c.executor.requestCancel(c.instance.children[i], false)
	}
}

// CancelChild requests cancellation of one child.
func (c *Context) CancelChild(child *Instance) {
	if child != nil && child.parent == c.instance {
		c.executor.requestCancel(child, false)
	}
}

// MarkCanceled makes the instance complete as Canceled. It is only valid
// once cancellation was requested.
func (c *Context) MarkCanceled() error {
	if !c.instance.cancelRequested {
		return ErrCancelNotRequested
	}
	c.instance.markedCanceled = true
	return nil
}

// IsCancellationRequested reports whether the instance was asked to cancel.
func (c *Context) IsCancellationRequested() bool { return c.instance.cancelRequested }

// CreateBookmark suspends the instance until the bookmark is resumed or
// removed. An empty name creates an anonymous bookmark. callback may be nil.
func (c *Context) CreateBookmark(name string, callback BookmarkCallback, scope ...*bookmark.Scope) (*bookmark.Bookmark, error) {
	if err := c.ensureExecuting(); err != nil {
		return nil, err
	}
	var bmScope *bookmark.Scope
	if len(scope) > 0 {
		bmScope = scope[0]
	}
	var fn interface{}
	if callback != nil {
		fn = callback
	}
	rec, err := c.executor.bookmarks.Create(name, bmScope, c.instance.id, c.executor.callbacks.Name(fn), fn)
	if err != nil {
		return nil, err
	}
	return rec.Bookmark, nil
}

// RemoveBookmark removes a bookmark owned by the instance.
func (c *Context) RemoveBookmark(bm *bookmark.Bookmark) bool {
	return c.executor.bookmarks.Remove(bm, c.instance.id)
}

// RemoveAllBookmarks removes every bookmark owned by the instance.
func (c *Context) RemoveAllBookmarks() int {
	return c.executor.bookmarks.RemoveOwned(c.instance.id)
}

// RequestPersist blocks the instance on an internal bookmark and asks the
// host to persist. onPersisted runs once the host confirmed the save.
func (c *Context) RequestPersist(onPersisted BookmarkCallback) error {
	if err := c.ensureExecuting(); err != nil {
		return err
	}
	if c.executor.noPersist > 0 {
		return ErrNoPersistZone
	}
	return c.executor.requestPersist(c.instance, onPersisted)
}

// EnterNoPersist opens a region in which RequestPersist and snapshots fail.
func (c *Context) EnterNoPersist() { c.executor.noPersist++ }

// ExitNoPersist closes the innermost no-persist region.
func (c *Context) ExitNoPersist() {
	if c.executor.noPersist > 0 {
		c.executor.noPersist--
	}
}

// Get returns a variable or argument visible from the instance.
func (c *Context) Get(name string) (interface{}, error) { return c.instance.env.Get(name) }

// Set writes a variable or argument visible from the instance.
func (c *Context) Set(name string, value interface{}) error { return c.instance.env.Set(name, value) }

// Evaluate computes expr against the instance environment.
func (c *Context) Evaluate(expr model.Expression) (interface{}, error) {
	if expr == nil {
		return nil, nil
	}
	return expr(c.instance.env)
}

// Convert converts value into target, a non-nil pointer.
func (c *Context) Convert(value interface{}, target interface{}) error {
	return c.instance.env.Convert(value, target)
}

// Argument returns the value of a declared argument.
func (c *Context) Argument(name string) (interface{}, error) {
	if !c.instance.env.Declares(name) {
		return nil, fmt.Errorf("argument %q not declared by %v", name, NameOf(c.instance.activity))
	}
	return c.instance.env.Get(name)
}

// GetState copies instance private state into target; it reports false when
// key is not set.
func (c *Context) GetState(key string, target interface{}) (bool, error) {
	value, ok := c.instance.values[key]
	if !ok {
		return false, nil
	}
	return true, c.instance.env.Convert(value, target)
}

// SetState stores instance private state; it is part of the snapshot.
func (c *Context) SetState(key string, value interface{}) {
	if c.instance.values == nil {
		c.instance.values = map[string]interface{}{}
	}
	c.instance.values[key] = value
}

// Track emits a tracking record on behalf of the instance.
func (c *Context) Track(record *tracking.Record) {
	if record == nil {
		return
	}
	record.ActivityID = c.instance.ActivityID()
	record.Activity = NameOf(c.instance.activity)
	record.Sequence = c.instance.id
	c.executor.track(c, record)
}

// Extensions returns the extension collection of the workflow instance.
func (c *Context) Extensions() *extension.Collection { return c.executor.extensions }

// Extension returns the first extension providing T.
func Extension[T any](ctx *Context) (T, bool) {
	return extension.Find[T](ctx.executor.extensions)
}
