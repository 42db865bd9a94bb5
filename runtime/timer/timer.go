// Package timer implements durable timers on top of bookmarks and the
// persistence pipeline.
package timer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/viant/actflow/internal/clock"
	"github.com/viant/actflow/metrics"
	"github.com/viant/actflow/runtime/bookmark"
	"github.com/viant/actflow/runtime/extension"
	"github.com/viant/actflow/runtime/persistence"
	"go.uber.org/zap"
)

// Namespace is the persistence namespace of the timer extension.
const Namespace = "urn:actflow/timer"

// Infinite is a timeout that never expires.
const Infinite = time.Duration(math.MaxInt64)

// DefaultRetryInterval is the delay before a NotReady resumption is retried.
const DefaultRetryInterval = time.Second

var (
	// TableName holds the pending timers.
	TableName = persistence.NewName(Namespace, "TimerTable")
	// NextExpirationName holds the earliest due time, for host diagnostics.
	NextExpirationName = persistence.NewName(Namespace, "NextExpirationTime")

	// ErrInvalidTimeout is returned for non-positive timeouts.
	ErrInvalidTimeout = errors.New("timeout must be positive")
	// ErrFrozen is returned when the table is mutated during a save.
	ErrFrozen = errors.New("timer table is frozen")
)

// Registrar is the capability activities use to arm durable timers.
type Registrar interface {
	RegisterTimer(timeout time.Duration, bm *bookmark.Bookmark) error
	CancelTimer(bm *bookmark.Bookmark)
}

// Extension is a per-instance durable timer table. One mutex guards the
// table and its frozen flag; it is shared by the scheduler facing calls and
// the timer goroutines.
type Extension struct {
	mux      sync.Mutex
	table    *Table
	deferred []*Entry
	proxy    extension.Proxy
	clock    clock.Clock
	retry    time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// Option configures the extension
type Option func(x *Extension)

// WithClock sets the clock.
func WithClock(c clock.Clock) Option {
	return func(x *Extension) {
		x.clock = c
	}
}

// WithRetryInterval sets the fixed retry delay for NotReady resumptions.
func WithRetryInterval(interval time.Duration) Option {
	return func(x *Extension) {
		if interval > 0 {
			x.retry = interval
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(x *Extension) {
		if logger != nil {
			x.logger = logger
		}
	}
}

// WithMetrics sets the metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(x *Extension) {
		x.metrics = m
	}
}

// New creates a timer extension
func New(options ...Option) *Extension {
	ret := &Extension{table: NewTable(), clock: clock.System(), retry: DefaultRetryInterval, logger: zap.NewNop()}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// Len returns the number of pending timers.
func (x *Extension) Len() int {
	x.mux.Lock()
	defer x.mux.Unlock()
	return x.table.Len()
}

// Entries returns a copy of the pending timers.
func (x *Extension) Entries() []Entry {
	x.mux.Lock()
	defer x.mux.Unlock()
	return x.table.snapshot()
}

// RegisterTimer arms a timer resuming bm after timeout. An Infinite timeout
// is accepted and never registered.
func (x *Extension) RegisterTimer(timeout time.Duration, bm *bookmark.Bookmark) error {
	if timeout == Infinite {
		return nil
	}
	if timeout <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTimeout, timeout)
	}
	if bm == nil {
		return fmt.Errorf("timer bookmark was nil")
	}
	x.mux.Lock()
	defer x.mux.Unlock()
	if x.table.frozen {
		return ErrFrozen
	}
	if previous := x.table.remove(bm); previous != nil {
		previous.stop()
	}
	entry := &Entry{DueTime: x.clock.Now().Add(timeout), Bookmark: bm, State: Registered, owner: x}
	x.table.add(entry)
	x.arm(entry, timeout)
	x.metrics.Timer("registered")
	return nil
}

// CancelTimer removes the timer of bm.
func (x *Extension) CancelTimer(bm *bookmark.Bookmark) {
	if bm == nil {
		return
	}
	x.mux.Lock()
	defer x.mux.Unlock()
	if entry := x.table.remove(bm); entry != nil {
		entry.stop()
		x.metrics.Timer("canceled")
	}
}

// Attach binds the extension to its workflow instance; nil detaches it and
// stops every armed timer. Pending entries are armed on attach.
func (x *Extension) Attach(proxy extension.Proxy) {
	x.mux.Lock()
	defer x.mux.Unlock()
	x.proxy = proxy
	now := x.clock.Now()
	for _, entry := range x.table.Entries() {
		entry.stop()
		if proxy != nil && !entry.firing {
			x.arm(entry, entry.DueTime.Sub(now))
		}
	}
}

// arm must be called with the lock held.
func (x *Extension) arm(entry *Entry, delay time.Duration) {
	if x.proxy == nil {
		return
	}
	if delay < 0 {
		delay = 0
	}
	entry.timer = x.clock.AfterFunc(delay, entry.fire)
}

// fire runs on the timer goroutine; entries restored from a record only fire
// once PublishValues reattached their owner.
func (e *Entry) fire() {
	if e.owner != nil {
		e.owner.fire(e)
	}
}

func (e *Entry) stop() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (x *Extension) fire(entry *Entry) {
	x.mux.Lock()
	if x.table.lookup(entry.Bookmark) != entry {
		x.mux.Unlock()
		return
	}
	entry.timer = nil
	if x.table.frozen {
		x.deferred = append(x.deferred, entry)
		x.mux.Unlock()
		return
	}
	proxy := x.proxy
	if proxy == nil {
		x.mux.Unlock()
		return
	}
	entry.State = Registered
	entry.firing = true
	x.mux.Unlock()

	x.metrics.Timer("fired")
	future := proxy.ResumeBookmark(context.Background(), entry.Bookmark, x.clock.Now())
	future.OnComplete(func(result bookmark.Result, err error) {
		x.resumed(entry, result, err)
	})
}

func (x *Extension) resumed(entry *Entry, result bookmark.Result, err error) {
	x.mux.Lock()
	defer x.mux.Unlock()
	if x.table.lookup(entry.Bookmark) != entry {
		return
	}
	entry.firing = false
	if err == nil && result != bookmark.NotReady {
		x.table.remove(entry.Bookmark)
		x.metrics.Timer("removed")
		return
	}
	if err != nil {
		x.logger.Warn("timer resumption failed", zap.String("bookmark", entry.Bookmark.String()), zap.Error(err))
	}
	entry.State = Retrying
	x.metrics.Timer("retried")
	x.arm(entry, x.retry)
}

// CollectValues freezes the table until the save completes or aborts.
func (x *Extension) CollectValues() (persistence.Values, persistence.Values) {
	x.mux.Lock()
	defer x.mux.Unlock()
	x.table.frozen = true
	readWrite, writeOnly := persistence.Values{}, persistence.Values{}
	if entries := x.table.snapshot(); len(entries) > 0 {
		readWrite[TableName] = entries
	}
	if next, ok := x.table.NextDue(); ok {
		writeOnly[NextExpirationName] = next
	}
	return readWrite, writeOnly
}

// PublishValues restores the table and reattaches every entry.
func (x *Extension) PublishValues(readWrite persistence.Values) error {
	var entries []Entry
	if value, ok := readWrite[TableName]; ok {
		if err := persistence.Decode(value, &entries); err != nil {
			return fmt.Errorf("failed to decode timer table: %w", err)
		}
	}
	x.mux.Lock()
	defer x.mux.Unlock()
	for _, entry := range x.table.entries {
		entry.stop()
	}
	x.table = NewTable()
	now := x.clock.Now()
	for i := range entries {
		entry := &Entry{DueTime: entries[i].DueTime, Bookmark: entries[i].Bookmark, State: entries[i].State, owner: x}
		if entry.Bookmark == nil {
			continue
		}
		x.table.add(entry)
		x.arm(entry, entry.DueTime.Sub(now))
	}
	return nil
}

// OnSaveCompleted thaws the table.
func (x *Extension) OnSaveCompleted() { x.thaw() }

// OnSaveAborted thaws the table.
func (x *Extension) OnSaveAborted() { x.thaw() }

func (x *Extension) thaw() {
	x.mux.Lock()
	if !x.table.frozen {
		x.mux.Unlock()
		return
	}
	x.table.frozen = false
	deferred := x.deferred
	x.deferred = nil
	x.mux.Unlock()
	for _, entry := range deferred {
		entry.fire()
	}
}

// IsFrozen reports whether a save is in progress.
func (x *Extension) IsFrozen() bool {
	x.mux.Lock()
	defer x.mux.Unlock()
	return x.table.frozen
}
