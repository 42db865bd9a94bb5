// Package metrics exposes prometheus collectors for workflow hosting.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

const namespace = "actflow"

// Metrics groups the collectors of one service. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	runs        *prometheus.CounterVec
	completions *prometheus.CounterVec
	bookmarks   *prometheus.CounterVec
	timers      *prometheus.CounterVec
	persist     *prometheus.HistogramVec
}

// New creates unregistered collectors.
func New() *Metrics {
	return &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "runs_total",
			Help:      "Total number of scheduler runs by yield reason.",
		}, []string{"workflow", "yield"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "completions_total",
			Help:      "Total number of workflow instances reaching a terminal state.",
		}, []string{"workflow", "state"}),
		bookmarks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "bookmark_resumptions_total",
			Help:      "Total number of bookmark resumptions by result.",
		}, []string{"result"}),
		timers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timer",
			Name:      "events_total",
			Help:      "Total number of durable timer events.",
		}, []string{"event"}),
		persist: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "save_duration_seconds",
			Help:      "Instance save duration in seconds by outcome.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"outcome"}),
	}
}

// Register registers every collector with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if m == nil || reg == nil {
		return nil
	}
	var err error
	for _, collector := range m.Collectors() {
		err = multierr.Append(err, reg.Register(collector))
	}
	return err
}

// Collectors returns the collectors of m.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.runs, m.completions, m.bookmarks, m.timers, m.persist}
}

// Run counts a scheduler run.
func (m *Metrics) Run(workflow, yield string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(workflow, yield).Inc()
}

// Completed counts a workflow reaching state.
func (m *Metrics) Completed(workflow, state string) {
	if m == nil {
		return
	}
	m.completions.WithLabelValues(workflow, state).Inc()
}

// Bookmark counts a bookmark resumption.
func (m *Metrics) Bookmark(result string) {
	if m == nil {
		return
	}
	m.bookmarks.WithLabelValues(result).Inc()
}

// Timer counts a timer event: registered, fired, retried, removed, canceled.
func (m *Metrics) Timer(event string) {
	if m == nil {
		return
	}
	m.timers.WithLabelValues(event).Inc()
}

// Persist observes a save.
func (m *Metrics) Persist(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.persist.WithLabelValues(outcome).Observe(elapsed.Seconds())
}
