package host

import (
	"github.com/viant/actflow/metrics"
	"github.com/viant/actflow/runtime/engine"
	"github.com/viant/actflow/tracking"
	"go.uber.org/zap"
)

// Option configures an Instance
type Option func(i *Instance)

// WithID sets the instance identity of a new instance.
func WithID(id string) Option {
	return func(i *Instance) {
		i.id = id
	}
}

// WithDurability sets the durability hook.
func WithDurability(durability Durability) Option {
	return func(i *Instance) {
		i.durability = durability
	}
}

// WithKeyAssociation sets the key association hook.
func WithKeyAssociation(keys KeyAssociation) Option {
	return func(i *Instance) {
		i.keyAssociation = keys
	}
}

// WithTracker sets the tracking participant.
func WithTracker(tracker tracking.Participant) Option {
	return func(i *Instance) {
		i.tracker = tracker
	}
}

// WithPauseNotifier sets the pause hook.
func WithPauseNotifier(notifier PauseNotifier) Option {
	return func(i *Instance) {
		i.pauseNotifier = notifier
	}
}

// WithFaultNotifier sets the unhandled fault hook.
func WithFaultNotifier(notifier FaultNotifier) Option {
	return func(i *Instance) {
		i.faultNotifier = notifier
	}
}

// WithAbortRequester sets the abort request hook.
func WithAbortRequester(requester AbortRequester) Option {
	return func(i *Instance) {
		i.abortRequester = requester
	}
}

// WithCompletionNotifier sets the completion hook.
func WithCompletionNotifier(notifier CompletionNotifier) Option {
	return func(i *Instance) {
		i.completionNotifier = notifier
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(i *Instance) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithMetrics sets the metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Instance) {
		i.metrics = m
	}
}

// WithCallbackCache sets the callback cache shared by instances of a service.
func WithCallbackCache(cache *engine.CallbackCache) Option {
	return func(i *Instance) {
		i.callbacks = cache
	}
}

// WithInputs sets the root arguments of a new instance.
func WithInputs(inputs map[string]interface{}) Option {
	return func(i *Instance) {
		i.inputs = inputs
	}
}

// WithPersistOnIdle saves the instance through the durability hook whenever
// a run leaves it idle.
func WithPersistOnIdle() Option {
	return func(i *Instance) {
		i.persistOnIdle = true
	}
}
