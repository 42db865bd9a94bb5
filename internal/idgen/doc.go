// Package idgen wraps the UUID generator used for workflow instance ids,
// anonymous bookmark names and bookmark scopes so that it can be stubbed in
// tests. Callers must treat identifiers as opaque strings.
package idgen
