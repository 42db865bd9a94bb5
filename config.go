package actflow

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/actflow/internal/yml"
	"github.com/viant/actflow/runtime/timer"
	"github.com/viant/afs"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Store kinds
const (
	StoreMemory = "memory"
	StoreFS     = "fs"
	StoreBolt   = "bolt"
)

// Tracking queue kinds
const (
	TrackingNone   = "none"
	TrackingMemory = "memory"
	TrackingFS     = "fs"
)

// Config is a serialisable representation of the service configuration. It
// can be loaded from YAML; zero fields inherit DefaultConfig values.
type Config struct {
	Store    StoreConfig    `json:"store" yaml:"store"`
	Timer    TimerConfig    `json:"timer" yaml:"timer"`
	Tracking TrackingConfig `json:"tracking" yaml:"tracking"`
	Tracing  TracingConfig  `json:"tracing" yaml:"tracing"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
}

// StoreConfig selects the instance store.
type StoreConfig struct {
	Kind string `json:"kind" yaml:"kind"`
	// URL is an afs base URL for fs or a file path for bolt.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// TimerConfig configures the durable timer extension.
type TimerConfig struct {
	RetryInterval time.Duration `json:"retryInterval" yaml:"retryInterval"`
}

// TrackingConfig selects where tracking records are published.
type TrackingConfig struct {
	Queue  string `json:"queue" yaml:"queue"`
	URL    string `json:"url,omitempty" yaml:"url,omitempty"`
	Buffer int    `json:"buffer,omitempty" yaml:"buffer,omitempty"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	ServiceName    string `json:"serviceName,omitempty" yaml:"serviceName,omitempty"`
	ServiceVersion string `json:"serviceVersion,omitempty" yaml:"serviceVersion,omitempty"`
	OutputFile     string `json:"outputFile,omitempty" yaml:"outputFile,omitempty"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `json:"level" yaml:"level"`
	Development bool   `json:"development,omitempty" yaml:"development,omitempty"`
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() *Config {
	return &Config{
		Store:    StoreConfig{Kind: StoreMemory},
		Timer:    TimerConfig{RetryInterval: timer.DefaultRetryInterval},
		Tracking: TrackingConfig{Queue: TrackingNone, Buffer: 1024},
		Tracing:  TracingConfig{ServiceName: "actflow", ServiceVersion: "0.1.0"},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// LoadConfig reads a YAML configuration from URL on top of DefaultConfig.
func LoadConfig(ctx context.Context, fs afs.Service, URL string) (*Config, error) {
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %v: %w", URL, err)
	}
	return DecodeConfig(data)
}

// DecodeConfig decodes YAML on top of DefaultConfig and validates the result.
// ${env.NAME} references are expanded before decoding.
func DecodeConfig(data []byte) (*Config, error) {
	ret := DefaultConfig()
	if err := yaml.Unmarshal([]byte(yml.ExpandEnv(string(data))), ret); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() (err error) {
	if c == nil {
		return nil
	}
	switch c.Store.Kind {
	case StoreMemory:
	case StoreFS, StoreBolt:
		if c.Store.URL == "" {
			err = multierr.Append(err, fmt.Errorf("store.url is required for %v store", c.Store.Kind))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("unsupported store.kind: %q", c.Store.Kind))
	}
	if c.Timer.RetryInterval <= 0 {
		err = multierr.Append(err, fmt.Errorf("timer.retryInterval must be > 0"))
	}
	switch c.Tracking.Queue {
	case TrackingNone, TrackingMemory:
	case TrackingFS:
		if c.Tracking.URL == "" {
			err = multierr.Append(err, fmt.Errorf("tracking.url is required for fs queue"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("unsupported tracking.queue: %q", c.Tracking.Queue))
	}
	if _, levelErr := zapcore.ParseLevel(c.Logging.Level); levelErr != nil {
		err = multierr.Append(err, fmt.Errorf("invalid logging.level: %w", levelErr))
	}
	return err
}

// NewLogger builds a zap logger from the logging settings.
func (c *LoggingConfig) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	config := zap.NewProductionConfig()
	if c.Development {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = zap.NewAtomicLevelAt(level)
	return config.Build()
}
