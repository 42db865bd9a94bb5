package actflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/viant/actflow/host"
	"github.com/viant/actflow/internal/clock"
	"github.com/viant/actflow/metrics"
	"github.com/viant/actflow/progress"
	"github.com/viant/actflow/runtime/bookmark"
	"github.com/viant/actflow/runtime/engine"
	"github.com/viant/actflow/runtime/extension"
	"github.com/viant/actflow/runtime/timer"
	"github.com/viant/actflow/service/dao"
	"github.com/viant/actflow/service/dao/bolt"
	"github.com/viant/actflow/service/dao/instance"
	"github.com/viant/actflow/service/messaging"
	qfs "github.com/viant/actflow/service/messaging/fs"
	qmemory "github.com/viant/actflow/service/messaging/memory"
	"github.com/viant/actflow/tracing"
	"github.com/viant/actflow/tracking"
	"github.com/viant/afs"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	// ErrUnknownWorkflow is returned for workflow names never registered.
	ErrUnknownWorkflow = errors.New("unknown workflow")
	// ErrWorkflowExists is returned when a name is registered twice.
	ErrWorkflowExists = errors.New("workflow already registered")
)

// Service hosts workflow instances over an instance store.
type Service struct {
	config     *Config
	fs         afs.Service
	store      *instance.Store
	logger     *zap.Logger
	metrics    *metrics.Metrics
	trackers   []tracking.Participant
	publisher  *tracking.Publisher
	progress   *progress.Tracker
	extensions []interface{}
	clock      clock.Clock
	callbacks  *engine.CallbackCache
	manager    *extension.Manager
	initErr    error
	closers    []func() error

	mux       sync.Mutex
	workflows map[string]*engine.Tree
	live      map[string]*host.Instance
	watchers  map[string]chan host.State
}

// New creates a service
func New(ctx context.Context, options ...Option) (*Service, error) {
	ret := &Service{
		config:    DefaultConfig(),
		workflows: map[string]*engine.Tree{},
		live:      map[string]*host.Instance{},
		watchers:  map[string]chan host.State{},
		progress:  progress.New(),
	}
	for _, option := range options {
		option(ret)
	}
	if ret.initErr != nil {
		return nil, ret.initErr
	}
	if err := ret.config.Validate(); err != nil {
		return nil, err
	}
	if err := ret.init(ctx); err != nil {
		_ = ret.closeResources()
		return nil, err
	}
	return ret, nil
}

func (s *Service) init(ctx context.Context) (err error) {
	if s.logger == nil {
		if s.logger, err = s.config.Logging.NewLogger(); err != nil {
			return err
		}
	}
	if s.fs == nil {
		s.fs = afs.New()
	}
	if s.clock == nil {
		s.clock = clock.System()
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.config.Tracing.Enabled {
		if err = tracing.Init(s.config.Tracing.ServiceName, s.config.Tracing.ServiceVersion, s.config.Tracing.OutputFile); err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
	}
	if err = s.initStore(ctx); err != nil {
		return err
	}
	if err = s.initTracking(ctx); err != nil {
		return err
	}
	s.callbacks = engine.NewCallbackCache(engine.DefaultCallbackCacheSize)
	s.manager = extension.NewManager()
	for _, item := range s.extensions {
		if err = s.manager.Add(item); err != nil {
			return err
		}
	}
	err = extension.AddFactory(s.manager, func() *timer.Extension {
		return timer.New(
			timer.WithClock(s.clock),
			timer.WithRetryInterval(s.config.Timer.RetryInterval),
			timer.WithLogger(s.logger),
			timer.WithMetrics(s.metrics))
	})
	if err != nil {
		return err
	}
	s.manager.MakeReadOnly()
	return nil
}

func (s *Service) initStore(ctx context.Context) (err error) {
	if s.store != nil {
		return nil
	}
	switch s.config.Store.Kind {
	case StoreFS:
		s.store, err = instance.NewFS(ctx, s.fs, s.config.Store.URL)
	case StoreBolt:
		db, openErr := bolt.Open(s.config.Store.URL)
		if openErr != nil {
			return openErr
		}
		s.closers = append(s.closers, db.Close)
		s.store, err = instance.NewBolt(db)
	default:
		s.store = instance.NewMemory()
	}
	return err
}

func (s *Service) initTracking(ctx context.Context) error {
	var queue messaging.Queue[tracking.Record]
	switch s.config.Tracking.Queue {
	case TrackingMemory:
		config := qmemory.DefaultConfig()
		if s.config.Tracking.Buffer > 0 {
			config.QueueBuffer = s.config.Tracking.Buffer
		}
		queue = qmemory.NewQueue[tracking.Record](config)
	case TrackingFS:
		config := qfs.DefaultConfig()
		config.BaseURL = s.config.Tracking.URL
		fsQueue, err := qfs.NewQueue[tracking.Record](ctx, s.fs, config)
		if err != nil {
			return err
		}
		queue = fsQueue
	default:
		return nil
	}
	s.publisher = tracking.NewPublisher(queue)
	s.trackers = append(s.trackers, s.publisher)
	return nil
}

// Register prepares root and registers it under name. Required extensions
// are checked here so that a missing one fails before any instance starts.
func (s *Service) Register(name string, root engine.Activity) error {
	tree, err := engine.Prepare(root)
	if err != nil {
		return err
	}
	if err = s.manager.Validate(tree.RequiredExtensions()); err != nil {
		return fmt.Errorf("workflow %v: %w", name, err)
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if _, ok := s.workflows[name]; ok {
		return fmt.Errorf("%w: %v", ErrWorkflowExists, name)
	}
	s.workflows[name] = tree
	return nil
}

// Workflows returns registered workflow names.
func (s *Service) Workflows() []string {
	s.mux.Lock()
	defer s.mux.Unlock()
	ret := make([]string, 0, len(s.workflows))
	for name := range s.workflows {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

func (s *Service) tree(name string) (*engine.Tree, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	tree, ok := s.workflows[name]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownWorkflow, name)
	}
	return tree, nil
}

func (s *Service) hostOptions(extra ...host.Option) []host.Option {
	observer := &observer{service: s}
	ret := []host.Option{
		host.WithDurability(s.store),
		host.WithKeyAssociation(s.store),
		host.WithLogger(s.logger),
		host.WithMetrics(s.metrics),
		host.WithCallbackCache(s.callbacks),
		host.WithPauseNotifier(observer),
		host.WithCompletionNotifier(observer),
		host.WithFaultNotifier(observer),
		host.WithAbortRequester(observer),
		host.WithPersistOnIdle(),
		host.WithTracker(append(tracking.Multi{s.progress}, s.trackers...)),
	}
	return append(ret, extra...)
}

// Start creates an instance of workflow, associates keys and runs it until
// it is idle or complete.
func (s *Service) Start(ctx context.Context, workflow string, inputs map[string]interface{}, keys ...string) (*host.Instance, error) {
	tree, err := s.tree(workflow)
	if err != nil {
		return nil, err
	}
	inst, err := host.New(ctx, workflow, tree, s.manager, s.hostOptions(host.WithInputs(inputs))...)
	if err != nil {
		return nil, err
	}
	s.mux.Lock()
	s.live[inst.ID()] = inst
	s.mux.Unlock()
	if len(keys) > 0 {
		if err = inst.AssociateKeys(ctx, keys...); err != nil {
			_ = inst.Abort(ctx, err)
			s.forget(inst.ID())
			return nil, err
		}
	}
	return inst, inst.Run(ctx)
}

// Instance returns the live instance of id, loading it from the store when needed.
func (s *Service) Instance(ctx context.Context, id string) (*host.Instance, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if inst, ok := s.live[id]; ok {
		return inst, nil
	}
	record, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load instance %v: %w", id, err)
	}
	tree, ok := s.workflows[record.Workflow]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownWorkflow, record.Workflow)
	}
	inst, err := host.Load(ctx, record, tree, s.manager, s.hostOptions()...)
	if err != nil {
		return nil, err
	}
	if inst.State() != host.Complete {
		s.live[id] = inst
	}
	return inst, nil
}

// Resume resumes bookmark name of instance id with value and runs the instance.
func (s *Service) Resume(ctx context.Context, id string, name string, value interface{}) (bookmark.Result, error) {
	inst, err := s.Instance(ctx, id)
	if err != nil {
		return bookmark.NotFound, err
	}
	result, err := inst.ResumeBookmark(ctx, bookmark.New(name), value).Wait(ctx)
	if err != nil {
		return bookmark.NotReady, err
	}
	if result == bookmark.NotFound {
		s.logger.Info("bookmark not found", zap.String("instance", id), zap.String("bookmark", name))
	}
	return result, nil
}

// ResumeByKey resumes the instance associated with key.
func (s *Service) ResumeByKey(ctx context.Context, key string, name string, value interface{}) (bookmark.Result, error) {
	id, err := s.store.Lookup(ctx, key)
	if err != nil {
		return bookmark.NotFound, fmt.Errorf("failed to lookup key %v: %w", key, err)
	}
	return s.Resume(ctx, id, name, value)
}

// Cancel cancels instance id and runs the cancellation.
func (s *Service) Cancel(ctx context.Context, id string) error {
	inst, err := s.Instance(ctx, id)
	if err != nil {
		return err
	}
	if err = inst.ScheduleCancel(ctx); err != nil {
		return err
	}
	return inst.Run(ctx)
}

// Terminate faults instance id with reason.
func (s *Service) Terminate(ctx context.Context, id string, reason error) error {
	inst, err := s.Instance(ctx, id)
	if err != nil {
		return err
	}
	return inst.Terminate(ctx, reason)
}

// Unload saves instance id and releases it from memory.
func (s *Service) Unload(ctx context.Context, id string) error {
	s.mux.Lock()
	inst, ok := s.live[id]
	s.mux.Unlock()
	if !ok {
		return nil
	}
	if err := inst.Unload(ctx); err != nil {
		return err
	}
	s.forget(id)
	return nil
}

// List returns stored instance records matching criteria parameters.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*host.Record, error) {
	return s.store.List(ctx, parameters...)
}

// ResumeDue loads idle stored instances whose timers are due so that their
// timers fire, waiting up to timeout for each to run. It returns the ids
// of the loaded instances.
func (s *Service) ResumeDue(ctx context.Context, timeout time.Duration) ([]string, error) {
	records, err := s.store.ListDue(ctx, s.clock.Now())
	if err != nil {
		return nil, err
	}
	var ret []string
	for _, record := range records {
		s.mux.Lock()
		_, loaded := s.live[record.InstanceID]
		s.mux.Unlock()
		if loaded {
			continue
		}
		notified := s.watch(record.InstanceID)
		if _, err = s.Instance(ctx, record.InstanceID); err != nil {
			s.unwatch(record.InstanceID)
			return ret, err
		}
		ret = append(ret, record.InstanceID)
		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		select {
		case <-notified:
		case <-waitCtx.Done():
			s.logger.Warn("due instance did not run", zap.String("instance", record.InstanceID))
		}
		cancel()
		s.unwatch(record.InstanceID)
	}
	return ret, nil
}

// Tracking returns the tracking publisher, nil when tracking is disabled.
func (s *Service) Tracking() *tracking.Publisher {
	return s.publisher
}

// RegisterMetrics registers the service metrics with reg.
func (s *Service) RegisterMetrics(reg prometheus.Registerer) error {
	return s.metrics.Register(reg)
}

// Close unloads live instances and releases store resources.
func (s *Service) Close(ctx context.Context) (err error) {
	s.mux.Lock()
	ids := make([]string, 0, len(s.live))
	for id := range s.live {
		ids = append(ids, id)
	}
	s.mux.Unlock()
	sort.Strings(ids)
	for _, id := range ids {
		err = multierr.Append(err, s.Unload(ctx, id))
	}
	return multierr.Append(err, s.closeResources())
}

func (s *Service) closeResources() (err error) {
	for _, closer := range s.closers {
		err = multierr.Append(err, closer())
	}
	s.closers = nil
	return err
}

// Progress returns activity counters of a live instance.
func (s *Service) Progress(id string) (progress.Progress, bool) {
	return s.progress.Snapshot(id)
}

func (s *Service) forget(id string) {
	s.progress.Forget(id)
	s.mux.Lock()
	defer s.mux.Unlock()
	delete(s.live, id)
}

func (s *Service) watch(id string) chan host.State {
	s.mux.Lock()
	defer s.mux.Unlock()
	ret := make(chan host.State, 1)
	s.watchers[id] = ret
	return ret
}

func (s *Service) unwatch(id string) {
	s.mux.Lock()
	defer s.mux.Unlock()
	delete(s.watchers, id)
}

func (s *Service) notify(id string, state host.State) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if ch, ok := s.watchers[id]; ok {
		select {
		case ch <- state:
		default:
		}
	}
}

// observer receives host notifications for a service.
type observer struct {
	service *Service
}

func (o *observer) OnPaused(instanceID string, state host.State) {
	o.service.notify(instanceID, state)
}

func (o *observer) OnCompleted(instanceID string, state host.State) {
	o.service.forget(instanceID)
	o.service.notify(instanceID, state)
}

func (o *observer) OnUnhandledFault(instanceID string, err error) {
	o.service.logger.Warn("unhandled fault", zap.String("instance", instanceID), zap.Error(err))
}

func (o *observer) RequestAbort(instanceID string, reason error) {
	o.service.logger.Error("instance aborted", zap.String("instance", instanceID), zap.Error(reason))
	o.service.forget(instanceID)
}
