// Package engine runs activity trees: it owns the instance tree, the work
// queue and the bookmarks of one workflow instance.
package engine

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync/atomic"

	"github.com/viant/actflow/internal/clock"
	"github.com/viant/actflow/internal/idgen"
	"github.com/viant/actflow/model"
	"github.com/viant/actflow/runtime/bookmark"
	"github.com/viant/actflow/runtime/extension"
	"github.com/viant/actflow/runtime/location"
	"github.com/viant/actflow/tracking"
	"github.com/viant/structology/conv"
	"go.uber.org/zap"
)

type workKind int

const (
	executeWork workKind = iota
	completionWork
	bookmarkWork
	cancelWork
)

var workKindNames = []string{"execute", "completion", "bookmark", "cancel"}

type workItem struct {
	kind     workKind
	instance *Instance
	child    *Instance
	bookmark *bookmark.Bookmark
	value    interface{}
	callback *callback
}

type actionArgument struct {
	name  string
	typ   reflect.Type
	value interface{}
}

// Executor drives one workflow instance. It is not safe for concurrent use;
// the host serialises access, except for RequestPause.
type Executor struct {
	id         string
	tree       *Tree
	nextID     int64
	root       *Instance
	instances  map[int64]*Instance
	queue      []*workItem // front is the last element
	bookmarks  *bookmark.Manager
	extensions *extension.Collection
	callbacks  *CallbackCache
	converter  *conv.Converter
	logger     *zap.Logger
	tracker    tracking.Participant
	onFault    func(err error)
	inputs     map[string]interface{}

	pause            atomic.Bool
	persistBookmarks []*bookmark.Bookmark
	persistReported  bool
	noPersist        int

	completed      bool
	terminationErr error
}

func newExecutor(tree *Tree, options []Option) *Executor {
	ret := &Executor{
		tree:      tree,
		instances: map[int64]*Instance{},
		bookmarks: bookmark.NewManager(),
		logger:    zap.NewNop(),
	}
	for _, opt := range options {
		opt(ret)
	}
	if ret.id == "" {
		ret.id = idgen.New()
	}
	if ret.callbacks == nil {
		ret.callbacks = NewCallbackCache(0)
	}
	if ret.converter == nil {
		ret.converter = conv.NewConverter(conv.DefaultOptions())
	}
	return ret
}

// New creates an executor with the root of tree scheduled.
func New(tree *Tree, options ...Option) (*Executor, error) {
	if tree == nil || tree.Root == nil {
		return nil, fmt.Errorf("%w: tree was nil", ErrInvalidTree)
	}
	ret := newExecutor(tree, options)
	root, err := ret.schedule(nil, tree.Root, nil, nil)
	if err != nil {
		return nil, err
	}
	ret.root = root
	return ret, nil
}

// ID returns the workflow instance identity.
func (e *Executor) ID() string { return e.id }

// Tree returns the prepared activity tree.
func (e *Executor) Tree() *Tree { return e.tree }

// Root returns the root instance.
func (e *Executor) Root() *Instance { return e.root }

// Extensions returns the extension collection.
func (e *Executor) Extensions() *extension.Collection { return e.extensions }

// IsCompleted reports whether the root reached a terminal state.
func (e *Executor) IsCompleted() bool { return e.completed }

// State returns the state of the root instance.
func (e *Executor) State() State {
	if e.root == nil {
		return Executing
	}
	return e.root.state
}

// TerminationError returns the fault or termination reason, if any.
func (e *Executor) TerminationError() error { return e.terminationErr }

// IsIdle reports whether there is no pending work.
func (e *Executor) IsIdle() bool { return len(e.queue) == 0 }

// IsPersistRequested reports whether an activity waits for a save.
func (e *Executor) IsPersistRequested() bool { return len(e.persistBookmarks) > 0 }

// RequestPause asks Run to return at the next work item boundary. It may be
// called from any goroutine.
func (e *Executor) RequestPause() { e.pause.Store(true) }

// Run drains the work queue until it is empty, a pause or persistence is
// requested, or the workflow completes.
func (e *Executor) Run(ctx context.Context) Yield {
	for {
		if e.completed {
			return YieldComplete
		}
		if len(e.persistBookmarks) > 0 && !e.persistReported {
			e.persistReported = true
			return YieldPersist
		}
		if e.pause.CompareAndSwap(true, false) {
			return YieldPaused
		}
		if ctx.Err() != nil {
			return YieldPaused
		}
		item := e.pop()
		if item == nil {
			return YieldIdle
		}
		e.process(ctx, item)
	}
}

// PersistCompleted resumes the activities that requested persistence.
func (e *Executor) PersistCompleted() {
	pending := e.persistBookmarks
	e.persistBookmarks = nil
	e.persistReported = false
	for i := len(pending) - 1; i >= 0; i-- {
		e.resume(pending[i], nil, true)
	}
}

// ResumeBookmark schedules the callback of bm with value. NotFound is
// returned for unknown or already resumed bookmarks.
func (e *Executor) ResumeBookmark(bm *bookmark.Bookmark, value interface{}) bookmark.Result {
	if e.completed || bm == nil {
		return bookmark.NotFound
	}
	for _, pending := range e.persistBookmarks {
		if pending.Key() == bm.Key() {
			return bookmark.NotFound
		}
	}
	result := e.resume(bm, value, false)
	if result == bookmark.Success {
		e.track(context.Background(), &tracking.Record{Kind: tracking.KindBookmark, Bookmark: bm.String()})
	}
	return result
}

func (e *Executor) resume(bm *bookmark.Bookmark, value interface{}, internal bool) bookmark.Result {
	rec, result := e.bookmarks.Take(bm)
	if result != bookmark.Success {
		return result
	}
	owner, ok := e.instances[rec.OwnerID]
	if !ok || !owner.isExecuting() {
		return bookmark.NotFound
	}
	cb := &callback{name: rec.CallbackName}
	if fn, ok := rec.Callback.(BookmarkCallback); ok {
		cb.bookmark = fn
	}
	item := &workItem{kind: bookmarkWork, instance: owner, bookmark: rec.Bookmark, value: value, callback: cb}
	if internal {
		e.pushFront(item)
	} else {
		e.pushBack(item)
	}
	return bookmark.Success
}

// ScheduleCancel requests cancellation of the root instance.
func (e *Executor) ScheduleCancel() {
	if e.completed || e.root == nil {
		return
	}
	e.requestCancel(e.root, true)
}

// Terminate completes the workflow as Faulted with reason.
func (e *Executor) Terminate(reason error) {
	if e.completed {
		return
	}
	if reason == nil {
		reason = ErrTerminated
	}
	e.abortAll(reason)
}

// Bookmarks returns the pending external bookmarks.
func (e *Executor) Bookmarks() []*bookmark.Info {
	internal := map[bookmark.Key]bool{}
	for _, bm := range e.persistBookmarks {
		internal[bm.Key()] = true
	}
	var ret []*bookmark.Info
	for _, rec := range e.bookmarks.Records() {
		if internal[rec.Bookmark.Key()] {
			continue
		}
		info := &bookmark.Info{Bookmark: rec.Bookmark, OwnerID: rec.OwnerID}
		if owner, ok := e.instances[rec.OwnerID]; ok {
			info.ActivityID = owner.ActivityID()
			info.Activity = NameOf(owner.activity)
		}
		ret = append(ret, info)
	}
	return ret
}

// MappedVariables returns the values of every executing environment keyed
// by activityID/name.
func (e *Executor) MappedVariables() map[string]interface{} {
	ret := map[string]interface{}{}
	for _, inst := range e.sortedInstances() {
		if !inst.isExecuting() {
			continue
		}
		for _, loc := range inst.env.Locations() {
			ret[inst.ActivityID()+"/"+loc.Name] = loc.Value()
		}
	}
	return ret
}

// Outputs returns the values declared by the root environment.
func (e *Executor) Outputs() map[string]interface{} {
	ret := map[string]interface{}{}
	if e.root == nil {
		return ret
	}
	for _, loc := range e.root.env.Locations() {
		ret[loc.Name] = loc.Value()
	}
	return ret
}

func (e *Executor) sortedInstances() []*Instance {
	ret := make([]*Instance, 0, len(e.instances))
	for _, inst := range e.instances {
		ret = append(ret, inst)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].id < ret[j].id })
	return ret
}

// ---------------------------------------------------------------------------
// Work queue
// ---------------------------------------------------------------------------

func (e *Executor) pushFront(item *workItem) {
	item.instance.pending++
	e.queue = append(e.queue, item)
}

func (e *Executor) pushBack(item *workItem) {
	item.instance.pending++
	e.queue = append([]*workItem{item}, e.queue...)
}

func (e *Executor) pop() *workItem {
	if len(e.queue) == 0 {
		return nil
	}
	last := len(e.queue) - 1
	item := e.queue[last]
	e.queue[last] = nil
	e.queue = e.queue[:last]
	item.instance.pending--
	return item
}

// items returns queued work from front to back.
func (e *Executor) items() []*workItem {
	ret := make([]*workItem, 0, len(e.queue))
	for i := len(e.queue) - 1; i >= 0; i-- {
		ret = append(ret, e.queue[i])
	}
	return ret
}

// ---------------------------------------------------------------------------
// Scheduling
// ---------------------------------------------------------------------------

func (e *Executor) schedule(parent *Instance, activity Activity, arg *actionArgument, onComplete CompletionCallback) (*Instance, error) {
	if activity == nil {
		return nil, fmt.Errorf("activity was nil")
	}
	id := IDOf(activity)
	if id == "" || e.tree.Lookup(id) != activity {
		return nil, fmt.Errorf("%w: %v is not part of the prepared tree", ErrInvalidTree, NameOf(activity))
	}
	e.nextID++
	inst := &Instance{id: e.nextID, activity: activity, parent: parent, state: Executing}
	inst.env = e.newEnv(inst)
	if err := e.declare(inst, arg); err != nil {
		e.nextID--
		return nil, fmt.Errorf("failed to schedule %v: %w", NameOf(activity), err)
	}
	if onComplete != nil {
		inst.onComplete = &callback{name: e.callbacks.Name(onComplete), completion: onComplete}
	}
	e.instances[inst.id] = inst
	if parent != nil {
		parent.children = append(parent.children, inst)
	}
	e.pushFront(&workItem{kind: executeWork, instance: inst})
	return inst, nil
}

func (e *Executor) newEnv(inst *Instance) *location.Environment {
	var parentEnv *location.Environment
	if inst.parent != nil {
		parentEnv = inst.parent.env
	}
	return location.New(parentEnv, IDOf(inst.activity),
		location.WithConverter(e.converter),
		location.WithWritable(inst.isExecuting))
}

func (e *Executor) declare(inst *Instance, arg *actionArgument) error {
	env := inst.env
	var scope model.Env = env
	if inst.parent != nil {
		scope = inst.parent.env
	}
	if arg != nil && arg.name != "" {
		argType := arg.typ
		if argType == nil {
			argType = typeOfValue(arg.value)
		}
		if _, err := env.Declare(arg.name, argType, arg.value); err != nil {
			return err
		}
	}
	b := inst.activity.base()
	for _, argument := range b.Arguments {
		if env.Declares(argument.Name) {
			continue
		}
		var value interface{}
		var err error
		if input, ok := e.inputs[argument.Name]; ok && inst.parent == nil && argument.Direction == model.In {
			value = input
		} else if value, err = argument.Value(scope); err != nil {
			return fmt.Errorf("failed to evaluate argument %q: %w", argument.Name, err)
		}
		if _, err = env.Declare(argument.Name, argumentType(argument), value); err != nil {
			return err
		}
	}
	for _, variable := range b.Variables {
		value, err := variable.Value(env)
		if err != nil {
			return fmt.Errorf("failed to evaluate variable %q: %w", variable.Name, err)
		}
		if _, err = env.Declare(variable.Name, variableType(variable), value); err != nil {
			return err
		}
	}
	return nil
}

func typeOfValue(value interface{}) reflect.Type {
	if value == nil {
		return nil
	}
	return reflect.TypeOf(value)
}

func argumentType(argument *model.Argument) reflect.Type {
	if argument.Type != nil {
		return argument.Type
	}
	return typeOfValue(argument.Default)
}

func variableType(variable *model.Variable) reflect.Type {
	if variable.Type != nil {
		return variable.Type
	}
	return typeOfValue(variable.Default)
}

func (e *Executor) requestCancel(inst *Instance, external bool) {
	if !inst.isExecuting() || inst.cancelRequested {
		return
	}
	inst.cancelRequested = true
	item := &workItem{kind: cancelWork, instance: inst}
	if external {
		e.pushBack(item)
		return
	}
	e.pushFront(item)
}

func (e *Executor) requestPersist(inst *Instance, onPersisted BookmarkCallback) error {
	var fn interface{}
	if onPersisted != nil {
		fn = onPersisted
	}
	rec, err := e.bookmarks.Create("", nil, inst.id, e.callbacks.Name(fn), fn)
	if err != nil {
		return err
	}
	e.persistBookmarks = append(e.persistBookmarks, rec.Bookmark)
	e.persistReported = false
	return nil
}

// ---------------------------------------------------------------------------
// Processing
// ---------------------------------------------------------------------------

func (e *Executor) process(ctx context.Context, item *workItem) {
	if err := e.invoke(ctx, item); err != nil {
		e.fault(item.instance, err)
		return
	}
	if e.completed {
		return
	}
	e.tryComplete(item.instance)
}

func (e *Executor) invoke(ctx context.Context, item *workItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	inst := item.instance
	wctx := &Context{Context: ctx, executor: e, instance: inst}
	switch item.kind {
	case executeWork:
		if !inst.isExecuting() {
			return nil
		}
		if inst.cancelRequested {
			inst.markedCanceled = true
			return nil
		}
		e.trackState(wctx, inst)
		return inst.activity.Execute(wctx)
	case completionWork:
		delete(e.instances, item.child.id)
		if !inst.isExecuting() || item.callback.isEmpty() {
			return nil
		}
		return item.callback.completion(wctx, item.child)
	case bookmarkWork:
		if !inst.isExecuting() || item.callback.isEmpty() {
			return nil
		}
		return item.callback.bookmark(wctx, item.bookmark, item.value)
	case cancelWork:
		return e.cancel(wctx)
	}
	return fmt.Errorf("unsupported work item: %v", item.kind)
}

func (e *Executor) cancel(ctx *Context) error {
	inst := ctx.instance
	if !inst.isExecuting() {
		return nil
	}
	if canceler, ok := inst.activity.(Canceler); ok {
		return canceler.Cancel(ctx)
	}
	ctx.RemoveAllBookmarks()
	ctx.CancelChildren()
	inst.markedCanceled = true
	return nil
}

func (e *Executor) tryComplete(inst *Instance) {
	if !inst.isExecuting() || len(inst.children) > 0 || inst.pending > 0 {
		return
	}
	if e.bookmarks.Owned(inst.id) > 0 {
		return
	}
	e.complete(inst)
}

func (e *Executor) complete(inst *Instance) {
	state := Closed
	if inst.markedCanceled {
		state = Canceled
	}
	if state == Closed && inst.parent != nil {
		if err := e.copyOutputs(inst); err != nil {
			e.fault(inst, err)
			return
		}
	}
	inst.state = state
	e.trackState(context.Background(), inst)
	if inst.parent == nil {
		e.finish(state, nil)
		return
	}
	parent := inst.parent
	parent.removeChild(inst)
	e.pushFront(&workItem{kind: completionWork, instance: parent, child: inst, callback: inst.onComplete})
}

func (e *Executor) copyOutputs(inst *Instance) error {
	for _, argument := range inst.activity.base().Arguments {
		if argument.Direction != model.Out || argument.Target == "" {
			continue
		}
		value, err := inst.env.Get(argument.Name)
		if err != nil {
			return err
		}
		if err = inst.parent.env.Set(argument.Target, value); err != nil {
			return fmt.Errorf("failed to copy output %q to %q: %w", argument.Name, argument.Target, err)
		}
	}
	return nil
}

func (e *Executor) fault(inst *Instance, err error) {
	wrapped := fmt.Errorf("activity %v (%v) faulted: %w", NameOf(inst.activity), inst.ActivityID(), err)
	e.logger.Error("unhandled activity fault",
		zap.String("workflow", e.id),
		zap.String("activity", inst.ActivityID()),
		zap.Error(err))
	e.abortAll(wrapped)
	if e.onFault != nil {
		e.onFault(wrapped)
	}
}

func (e *Executor) abortAll(reason error) {
	for _, inst := range e.sortedInstances() {
		if inst.isExecuting() {
			inst.state = Faulted
			e.trackState(context.Background(), inst)
		}
	}
	for k := range e.queue {
		e.queue[k].instance.pending = 0
	}
	e.queue = nil
	e.bookmarks = bookmark.NewManager()
	e.persistBookmarks = nil
	e.noPersist = 0
	e.finish(Faulted, reason)
}

func (e *Executor) finish(state State, reason error) {
	e.completed = true
	e.root.state = state
	e.terminationErr = reason
	for id, inst := range e.instances {
		if inst != e.root {
			delete(e.instances, id)
		}
	}
	record := &tracking.Record{Kind: tracking.KindWorkflow, State: state.String()}
	if reason != nil {
		record.Error = reason.Error()
	}
	e.track(context.Background(), record)
}

// ---------------------------------------------------------------------------
// Tracking
// ---------------------------------------------------------------------------

func (e *Executor) trackState(ctx context.Context, inst *Instance) {
	if e.tracker == nil {
		return
	}
	e.track(ctx, &tracking.Record{
		Kind:       tracking.KindActivity,
		ActivityID: inst.ActivityID(),
		Activity:   NameOf(inst.activity),
		Sequence:   inst.id,
		State:      inst.state.String(),
	})
}

func (e *Executor) track(ctx context.Context, record *tracking.Record) {
	if e.tracker == nil {
		return
	}
	record.InstanceID = e.id
	if record.CreatedAt.IsZero() {
		record.CreatedAt = clock.Now()
	}
	if err := e.tracker.Track(ctx, record); err != nil {
		e.logger.Warn("failed to track record", zap.String("workflow", e.id), zap.String("kind", string(record.Kind)), zap.Error(err))
	}
}
