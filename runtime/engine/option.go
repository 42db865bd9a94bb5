package engine

import (
	"github.com/viant/actflow/runtime/extension"
	"github.com/viant/actflow/tracking"
	"github.com/viant/structology/conv"
	"go.uber.org/zap"
)

// Option configures an Executor
type Option func(e *Executor)

// WithID sets the workflow instance identity.
func WithID(id string) Option {
	return func(e *Executor) {
		e.id = id
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTracker sets the tracking participant.
func WithTracker(tracker tracking.Participant) Option {
	return func(e *Executor) {
		e.tracker = tracker
	}
}

// WithExtensions sets the extension collection of the workflow instance.
func WithExtensions(extensions *extension.Collection) Option {
	return func(e *Executor) {
		e.extensions = extensions
	}
}

// WithCallbackCache sets the shared callback cache.
func WithCallbackCache(cache *CallbackCache) Option {
	return func(e *Executor) {
		if cache != nil {
			e.callbacks = cache
		}
	}
}

// WithFaultHandler sets the function notified about unhandled faults.
func WithFaultHandler(fn func(err error)) Option {
	return func(e *Executor) {
		e.onFault = fn
	}
}

// WithInputs sets the values of the root in-arguments.
func WithInputs(inputs map[string]interface{}) Option {
	return func(e *Executor) {
		e.inputs = inputs
	}
}

// WithConverter sets the converter used to restore typed values.
func WithConverter(converter *conv.Converter) Option {
	return func(e *Executor) {
		if converter != nil {
			e.converter = converter
		}
	}
}
