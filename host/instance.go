// Package host exposes the control surface of a workflow instance: guarded
// operations for hosts, asynchronous bookmark resumption for extensions, and
// the persistence cycle through host supplied hooks.
package host

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/viant/actflow/internal/clock"
	"github.com/viant/actflow/internal/idgen"
	"github.com/viant/actflow/metrics"
	"github.com/viant/actflow/runtime/async"
	"github.com/viant/actflow/runtime/bookmark"
	"github.com/viant/actflow/runtime/engine"
	"github.com/viant/actflow/runtime/extension"
	"github.com/viant/actflow/runtime/persistence"
	"github.com/viant/actflow/tracing"
	"github.com/viant/actflow/tracking"
	"go.uber.org/zap"
)

type resumption struct {
	bookmark *bookmark.Bookmark
	value    interface{}
	future   *async.Future[bookmark.Result]
}

// Instance is a hosted workflow instance. Guarded operations fail with
// ErrOperationInProgress while another one runs; RequestPause and
// ResumeBookmark never fail on contention.
type Instance struct {
	id       string
	workflow string
	tree     *engine.Tree
	executor *engine.Executor
	pipeline *persistence.Pipeline
	attached []extension.Attachable
	keys     []string

	busy     atomic.Bool
	mux      sync.Mutex
	pending  []*resumption
	aborted  bool
	reason   error
	unloaded bool
	done     bool
	state    State
	outcome  engine.State
	termErr  error

	durability         Durability
	keyAssociation     KeyAssociation
	tracker            tracking.Participant
	pauseNotifier      PauseNotifier
	faultNotifier      FaultNotifier
	abortRequester     AbortRequester
	completionNotifier CompletionNotifier
	logger             *zap.Logger
	metrics            *metrics.Metrics
	callbacks          *engine.CallbackCache
	inputs             map[string]interface{}
	persistOnIdle      bool
}

func newInstance(workflow string, tree *engine.Tree, options []Option) *Instance {
	ret := &Instance{workflow: workflow, tree: tree, logger: zap.NewNop()}
	for _, opt := range options {
		opt(ret)
	}
	if ret.callbacks == nil {
		ret.callbacks = engine.NewCallbackCache(0)
	}
	return ret
}

func (i *Instance) engineOptions(collection *extension.Collection) []engine.Option {
	return []engine.Option{
		engine.WithID(i.id),
		engine.WithExtensions(collection),
		engine.WithTracker(i.tracker),
		engine.WithLogger(i.logger),
		engine.WithCallbackCache(i.callbacks),
		engine.WithFaultHandler(i.onFault),
	}
}

// New creates an instance of tree. Required extensions are validated before
// anything is created.
func New(ctx context.Context, workflow string, tree *engine.Tree, manager *extension.Manager, options ...Option) (*Instance, error) {
	if err := manager.Validate(tree.RequiredExtensions()); err != nil {
		return nil, err
	}
	ret := newInstance(workflow, tree, options)
	if ret.id == "" {
		ret.id = idgen.New()
	}
	collection := manager.NewCollection()
	executor, err := engine.New(tree, append(ret.engineOptions(collection), engine.WithInputs(ret.inputs))...)
	if err != nil {
		return nil, err
	}
	ret.bind(executor, collection)
	ret.refresh()
	return ret, nil
}

// Load rebuilds an instance from record.
func Load(ctx context.Context, record *Record, tree *engine.Tree, manager *extension.Manager, options ...Option) (*Instance, error) {
	if record == nil || record.Executor == nil {
		return nil, fmt.Errorf("instance record was empty")
	}
	if err := manager.Validate(tree.RequiredExtensions()); err != nil {
		return nil, err
	}
	ctx, span := tracing.StartSpan(ctx, "actflow.load", "INTERNAL")
	span.WithAttributes(map[string]string{"instance": record.InstanceID, "workflow": record.Workflow})
	ret := newInstance(record.Workflow, tree, options)
	ret.id = record.InstanceID
	ret.keys = append(ret.keys, record.Keys...)
	collection := manager.NewCollection()
	executor, err := engine.Restore(tree, record.Executor, ret.engineOptions(collection)...)
	if err == nil {
		ret.executor = executor
		ret.pipeline = persistence.NewPipeline(extension.FindAll[persistence.Participant](collection)...)
		err = ret.pipeline.Load(record.Values)
	}
	tracing.EndSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("failed to load instance %v: %w", record.InstanceID, err)
	}
	ret.bind(executor, collection)
	ret.refresh()
	return ret, nil
}

func (i *Instance) bind(executor *engine.Executor, collection *extension.Collection) {
	i.executor = executor
	i.done = executor.IsCompleted()
	if i.pipeline == nil {
		i.pipeline = persistence.NewPipeline(extension.FindAll[persistence.Participant](collection)...)
	}
	i.attached = extension.FindAll[extension.Attachable](collection)
	for _, attachable := range i.attached {
		attachable.Attach(i)
	}
}

// ID returns the instance identity.
func (i *Instance) ID() string { return i.id }

// Workflow returns the registered workflow name.
func (i *Instance) Workflow() string { return i.workflow }

// ---------------------------------------------------------------------------
// Guard
// ---------------------------------------------------------------------------

func (i *Instance) enter() error {
	if !i.busy.CompareAndSwap(false, true) {
		return ErrOperationInProgress
	}
	return nil
}

// exit completes queued resumptions before releasing the guard.
func (i *Instance) exit(ctx context.Context) {
	for {
		i.drain(ctx)
		i.refresh()
		i.busy.Store(false)
		i.mux.Lock()
		waiting := len(i.pending)
		i.mux.Unlock()
		if waiting == 0 || !i.busy.CompareAndSwap(false, true) {
			return
		}
	}
}

func (i *Instance) drain(ctx context.Context) {
	for {
		i.mux.Lock()
		if len(i.pending) == 0 {
			i.mux.Unlock()
			return
		}
		next := i.pending[0]
		i.pending = i.pending[1:]
		i.mux.Unlock()
		next.future.Complete(i.resume(ctx, next.bookmark, next.value), nil)
	}
}

func (i *Instance) checkUsable() error {
	i.mux.Lock()
	defer i.mux.Unlock()
	if i.aborted {
		return fmt.Errorf("%w: %v", ErrAborted, i.reason)
	}
	if i.unloaded {
		return ErrUnloaded
	}
	return nil
}

func (i *Instance) refresh() {
	i.mux.Lock()
	defer i.mux.Unlock()
	i.outcome = i.executor.State()
	i.termErr = i.executor.TerminationError()
	switch {
	case i.aborted:
		i.state = Aborted
	case i.executor.IsCompleted():
		i.state = Complete
	case i.executor.IsIdle() && !i.executor.IsPersistRequested():
		i.state = Idle
	default:
		i.state = Runnable
	}
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// Run drains the scheduler. A persistence request is served through the
// durability hook before running continues.
func (i *Instance) Run(ctx context.Context) (err error) {
	if err = i.enter(); err != nil {
		return err
	}
	defer i.exit(ctx)
	if err = i.checkUsable(); err != nil {
		return err
	}
	return i.run(ctx)
}

func (i *Instance) run(ctx context.Context) (err error) {
	ctx, span := tracing.StartSpan(ctx, "actflow.run", "INTERNAL")
	span.WithAttributes(map[string]string{"instance": i.id, "workflow": i.workflow})
	defer func() { tracing.EndSpan(span, err) }()
	for {
		yield := i.executor.Run(ctx)
		i.metrics.Run(i.workflow, yield.String())
		switch yield {
		case engine.YieldPersist:
			if err = i.persistOrAbort(ctx); err != nil {
				return err
			}
			i.executor.PersistCompleted()
		case engine.YieldComplete:
			i.completed(ctx)
			return nil
		default:
			if yield == engine.YieldIdle && i.persistOnIdle && i.durability != nil {
				if err = i.persistOrAbort(ctx); err != nil {
					return err
				}
			}
			if i.pauseNotifier != nil {
				i.refresh()
				i.pauseNotifier.OnPaused(i.id, i.State())
			}
			return nil
		}
	}
}

// persistOrAbort saves the instance; a failed save aborts it.
func (i *Instance) persistOrAbort(ctx context.Context) error {
	err := i.persist(ctx)
	if err == nil {
		return nil
	}
	i.logger.Error("failed to persist instance", zap.String("instance", i.id), zap.Error(err))
	i.abort(err)
	if i.abortRequester != nil {
		i.abortRequester.RequestAbort(i.id, err)
	}
	return err
}

func (i *Instance) completed(ctx context.Context) {
	i.mux.Lock()
	if i.done {
		i.mux.Unlock()
		return
	}
	i.done = true
	i.mux.Unlock()
	state := i.executor.State()
	i.metrics.Completed(i.workflow, state.String())
	if i.keyAssociation != nil && len(i.keys) > 0 {
		if err := i.keyAssociation.DisassociateKeys(ctx, i.id, i.keys); err != nil {
			i.logger.Warn("failed to disassociate keys", zap.String("instance", i.id), zap.Error(err))
		}
	}
	if i.durability != nil {
		if err := i.persist(ctx); err != nil {
			i.logger.Warn("failed to persist completed instance", zap.String("instance", i.id), zap.Error(err))
		}
	}
	if i.completionNotifier != nil {
		i.completionNotifier.OnCompleted(i.id, Complete)
	}
}

// RequestPause asks a running scheduler to stop at the next work item.
func (i *Instance) RequestPause() {
	i.executor.RequestPause()
}

// ScheduleCancel requests cancellation of the root activity; Run performs it.
func (i *Instance) ScheduleCancel(ctx context.Context) error {
	if err := i.enter(); err != nil {
		return err
	}
	defer i.exit(ctx)
	if err := i.checkUsable(); err != nil {
		return err
	}
	i.executor.ScheduleCancel()
	return nil
}

// Terminate completes the instance as Faulted with reason.
func (i *Instance) Terminate(ctx context.Context, reason error) error {
	if err := i.enter(); err != nil {
		return err
	}
	defer i.exit(ctx)
	if err := i.checkUsable(); err != nil {
		return err
	}
	if i.executor.IsCompleted() {
		return nil
	}
	i.executor.Terminate(reason)
	i.completed(ctx)
	return nil
}

// ScheduleBookmarkResumption schedules bookmark name; Run delivers it.
func (i *Instance) ScheduleBookmarkResumption(ctx context.Context, name string, value interface{}, scope ...*bookmark.Scope) (bookmark.Result, error) {
	if err := i.enter(); err != nil {
		return bookmark.NotReady, err
	}
	defer i.exit(ctx)
	if err := i.checkUsable(); err != nil {
		return bookmark.NotReady, err
	}
	if !i.executor.IsIdle() {
		return bookmark.NotReady, ErrNotIdle
	}
	result := i.executor.ResumeBookmark(bookmark.New(name, scope...), value)
	i.metrics.Bookmark(result.String())
	return result, nil
}

// ResumeBookmark resumes bm and runs the scheduler. When another operation
// holds the guard the request is queued and completed by that operation.
func (i *Instance) ResumeBookmark(ctx context.Context, bm *bookmark.Bookmark, value interface{}) *async.Future[bookmark.Result] {
	if i.busy.CompareAndSwap(false, true) {
		result := i.resume(ctx, bm, value)
		i.exit(ctx)
		return async.Completed(result, nil)
	}
	future := async.New[bookmark.Result]()
	i.mux.Lock()
	i.pending = append(i.pending, &resumption{bookmark: bm, value: value, future: future})
	i.mux.Unlock()
	if i.busy.CompareAndSwap(false, true) {
		i.exit(ctx)
	}
	return future
}

// resume must be called with the guard held.
func (i *Instance) resume(ctx context.Context, bm *bookmark.Bookmark, value interface{}) (result bookmark.Result) {
	ctx, span := tracing.StartSpan(ctx, "actflow.resume", "INTERNAL")
	span.WithAttributes(map[string]string{"instance": i.id, "bookmark": bm.String()})
	defer func() {
		i.metrics.Bookmark(result.String())
		tracing.EndSpan(span, nil)
	}()
	if i.checkUsable() != nil {
		return bookmark.NotReady
	}
	if result = i.executor.ResumeBookmark(bm, value); result != bookmark.Success {
		return result
	}
	if err := i.run(ctx); err != nil {
		i.logger.Warn("run after resumption failed", zap.String("instance", i.id), zap.Error(err))
	}
	return result
}

// Abort stops the instance permanently. Extensions are detached and queued
// resumptions answer NotReady. Repeated calls are no-ops.
func (i *Instance) Abort(ctx context.Context, reason error) error {
	if err := i.enter(); err != nil {
		return err
	}
	defer i.exit(ctx)
	i.abort(reason)
	return nil
}

func (i *Instance) abort(reason error) {
	i.mux.Lock()
	if i.aborted {
		i.mux.Unlock()
		return
	}
	i.aborted = true
	i.reason = reason
	i.mux.Unlock()
	i.logger.Info("instance aborted", zap.String("instance", i.id), zap.Error(reason))
	i.detach()
}

func (i *Instance) detach() {
	for _, attachable := range i.attached {
		attachable.Attach(nil)
	}
}

// PrepareForSerialization collects the full instance record without saving it.
func (i *Instance) PrepareForSerialization(ctx context.Context) (*Record, error) {
	if err := i.enter(); err != nil {
		return nil, err
	}
	defer i.exit(ctx)
	if err := i.checkUsable(); err != nil {
		return nil, err
	}
	var ret *Record
	err := i.save(ctx, func(ctx context.Context, record *Record) error {
		ret = record
		return nil
	})
	return ret, err
}

// Persist saves the instance through the durability hook.
func (i *Instance) Persist(ctx context.Context) error {
	if err := i.enter(); err != nil {
		return err
	}
	defer i.exit(ctx)
	if err := i.checkUsable(); err != nil {
		return err
	}
	if i.durability == nil {
		return ErrNoDurability
	}
	return i.persist(ctx)
}

// Unload saves the instance and detaches it; later resumptions answer NotReady.
func (i *Instance) Unload(ctx context.Context) error {
	if err := i.enter(); err != nil {
		return err
	}
	defer i.exit(ctx)
	if err := i.checkUsable(); err != nil {
		return err
	}
	if i.durability != nil {
		if err := i.persist(ctx); err != nil {
			return err
		}
	}
	i.mux.Lock()
	i.unloaded = true
	i.mux.Unlock()
	i.detach()
	return nil
}

func (i *Instance) persist(ctx context.Context) error {
	if i.durability == nil {
		return nil
	}
	return i.save(ctx, func(ctx context.Context, record *Record) error {
		_, err := i.durability.Persist(ctx, record).Wait(ctx)
		return err
	})
}

func (i *Instance) save(ctx context.Context, store func(ctx context.Context, record *Record) error) (err error) {
	ctx, span := tracing.StartSpan(ctx, "actflow.persist", "CLIENT")
	span.WithAttributes(map[string]string{"instance": i.id, "workflow": i.workflow})
	started := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		i.metrics.Persist(outcome, time.Since(started))
		tracing.EndSpan(span, err)
	}()
	snapshot, err := i.executor.Snapshot()
	if err != nil {
		return err
	}
	return i.pipeline.Save(ctx, func(ctx context.Context, values *persistence.Record) error {
		i.refresh()
		record := &Record{
			InstanceID: i.id,
			Workflow:   i.workflow,
			State:      i.State(),
			Completion: i.executor.State(),
			Keys:       append([]string(nil), i.keys...),
			Executor:   snapshot,
			Values:     values,
			SavedAt:    clock.Now(),
		}
		if termErr := i.executor.TerminationError(); termErr != nil {
			record.Error = termErr.Error()
		}
		return store(ctx, record)
	})
}

// AssociateKeys maps external keys to the instance.
func (i *Instance) AssociateKeys(ctx context.Context, keys ...string) error {
	if err := i.enter(); err != nil {
		return err
	}
	defer i.exit(ctx)
	if err := i.checkUsable(); err != nil {
		return err
	}
	if i.keyAssociation != nil {
		if err := i.keyAssociation.AssociateKeys(ctx, i.id, keys); err != nil {
			return err
		}
	}
	i.keys = append(i.keys, keys...)
	return nil
}

// GetBookmarks returns pending bookmarks.
func (i *Instance) GetBookmarks(ctx context.Context) ([]*bookmark.Info, error) {
	if err := i.enter(); err != nil {
		return nil, err
	}
	defer i.exit(ctx)
	if err := i.checkUsable(); err != nil {
		return nil, err
	}
	return i.executor.Bookmarks(), nil
}

// GetMappedVariables returns the variables of every executing activity.
func (i *Instance) GetMappedVariables(ctx context.Context) (map[string]interface{}, error) {
	if err := i.enter(); err != nil {
		return nil, err
	}
	defer i.exit(ctx)
	if err := i.checkUsable(); err != nil {
		return nil, err
	}
	return i.executor.MappedVariables(), nil
}

// Outputs returns the root variables and arguments.
func (i *Instance) Outputs(ctx context.Context) (map[string]interface{}, error) {
	if err := i.enter(); err != nil {
		return nil, err
	}
	defer i.exit(ctx)
	return i.executor.Outputs(), nil
}

// State returns the host state observed at the end of the last operation.
func (i *Instance) State() State {
	i.mux.Lock()
	defer i.mux.Unlock()
	return i.state
}

// CompletionState returns the root activity state.
func (i *Instance) CompletionState() engine.State {
	i.mux.Lock()
	defer i.mux.Unlock()
	return i.outcome
}

// TerminationError returns the fault or termination reason.
func (i *Instance) TerminationError() error {
	i.mux.Lock()
	defer i.mux.Unlock()
	return i.termErr
}

// AbortReason returns the reason passed to Abort.
func (i *Instance) AbortReason() error {
	i.mux.Lock()
	defer i.mux.Unlock()
	return i.reason
}

func (i *Instance) onFault(err error) {
	if i.faultNotifier != nil {
		i.faultNotifier.OnUnhandledFault(i.id, err)
	}
}

var _ extension.Proxy = (*Instance)(nil)
