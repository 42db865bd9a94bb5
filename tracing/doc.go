// Package tracing wraps OpenTelemetry so that the engine and hosts can emit
// spans around runs, saves, loads and bookmark resumptions without importing
// the upstream packages directly.
package tracing
