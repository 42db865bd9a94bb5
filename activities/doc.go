// Package activities provides control-flow activities built on the public
// scheduling contract of the engine: sequences, parallel branches, switches,
// persistence points, durable delays and bookmark waits.
package activities
