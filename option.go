package actflow

import (
	"github.com/viant/actflow/internal/clock"
	"github.com/viant/actflow/metrics"
	"github.com/viant/actflow/service/dao/instance"
	"github.com/viant/actflow/tracing"
	"github.com/viant/actflow/tracking"
	"github.com/viant/afs"
	"go.uber.org/zap"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option configures a Service
type Option func(s *Service)

// WithConfig sets the configuration; nil keeps DefaultConfig.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithStore sets the instance store, overriding store configuration.
func WithStore(store *instance.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithFS sets the afs service used by fs stores and queues.
func WithFS(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// WithLogger sets the logger, overriding logging configuration.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracker adds a tracking participant.
func WithTracker(tracker tracking.Participant) Option {
	return func(s *Service) {
		s.trackers = append(s.trackers, tracker)
	}
}

// WithExtensions registers singleton extensions shared by every instance.
func WithExtensions(extensions ...interface{}) Option {
	return func(s *Service) {
		s.extensions = append(s.extensions, extensions...)
	}
}

// WithClock sets the clock used by timers.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom
// SpanExporter. The first successful initialisation wins.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		if err := tracing.InitWithExporter(serviceName, serviceVersion, exporter); err != nil {
			s.initErr = err
		}
	}
}
