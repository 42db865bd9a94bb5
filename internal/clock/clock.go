package clock

import (
	"sort"
	"sync"
	"time"
)

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// Now is a thin wrapper around NowFunc.
func Now() time.Time { return NowFunc() }

// Timer is the part of *time.Timer the engine relies on.
type Timer interface {
	Stop() bool
}

// Clock supplies time and delayed callbacks to components that own timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

type system struct{}

func (system) Now() time.Time { return Now() }

func (system) AfterFunc(d time.Duration, fn func()) Timer { return time.AfterFunc(d, fn) }

// System returns the wall clock.
func System() Clock { return system{} }

// Manual is a Clock whose time only moves on Advance. Callbacks that become due
// run synchronously on the goroutine calling Advance, in due-time order.
type Manual struct {
	mux     sync.Mutex
	now     time.Time
	pending []*manualTimer
}

type manualTimer struct {
	clock   *Manual
	due     time.Time
	fn      func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	t.clock.mux.Lock()
	defer t.clock.mux.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// NewManual creates a manual clock starting at now.
func NewManual(now time.Time) *Manual {
	return &Manual{now: now}
}

func (m *Manual) Now() time.Time {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.now
}

func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	m.mux.Lock()
	defer m.mux.Unlock()
	t := &manualTimer{clock: m, due: m.now.Add(d), fn: fn}
	m.pending = append(m.pending, t)
	return t
}

// Pending returns the number of armed, not yet fired timers.
func (m *Manual) Pending() int {
	m.mux.Lock()
	defer m.mux.Unlock()
	count := 0
	for _, t := range m.pending {
		if !t.stopped {
			count++
		}
	}
	return count
}

// Advance moves the clock forward and fires every timer due by the new time.
func (m *Manual) Advance(d time.Duration) {
	m.mux.Lock()
	m.now = m.now.Add(d)
	var due, keep []*manualTimer
	for _, t := range m.pending {
		switch {
		case t.stopped:
		case !t.due.After(m.now):
			t.stopped = true
			due = append(due, t)
		default:
			keep = append(keep, t)
		}
	}
	m.pending = keep
	m.mux.Unlock()
	sort.SliceStable(due, func(i, j int) bool { return due[i].due.Before(due[j].due) })
	for _, t := range due {
		t.fn()
	}
}
