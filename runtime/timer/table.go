package timer

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/viant/actflow/internal/clock"
	"github.com/viant/actflow/runtime/bookmark"
)

// EntryState is the state of a pending timer.
type EntryState int

const (
	Registered EntryState = iota
	Retrying
)

func (s EntryState) String() string {
	if s == Retrying {
		return "retrying"
	}
	return "registered"
}

func (s EntryState) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *EntryState) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	switch text {
	case "registered":
		*s = Registered
	case "retrying":
		*s = Retrying
	default:
		return fmt.Errorf("unknown timer state: %q", text)
	}
	return nil
}

// Entry is a pending timer.
type Entry struct {
	DueTime  time.Time          `json:"dueTime"`
	Bookmark *bookmark.Bookmark `json:"bookmark"`
	State    EntryState         `json:"state"`
	owner    *Extension
	timer    clock.Timer
	// firing is set while a resumption is in flight; firing entries are
	// left out of saved records until the resumption answers NotReady.
	firing   bool
}

// Table holds pending timers keyed by bookmark.
type Table struct {
	entries map[bookmark.Key]*Entry
	frozen  bool
}

// NewTable creates an empty table
func NewTable() *Table {
	return &Table{entries: map[bookmark.Key]*Entry{}}
}

// Len returns the number of pending timers.
func (t *Table) Len() int { return len(t.entries) }

// IsFrozen reports whether a save is in progress.
func (t *Table) IsFrozen() bool { return t.frozen }

// Entries returns pending timers ordered by due time.
func (t *Table) Entries() []*Entry {
	ret := make([]*Entry, 0, len(t.entries))
	for _, entry := range t.entries {
		ret = append(ret, entry)
	}
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].DueTime.Equal(ret[j].DueTime) {
			return ret[i].Bookmark.String() < ret[j].Bookmark.String()
		}
		return ret[i].DueTime.Before(ret[j].DueTime)
	})
	return ret
}

// NextDue returns the earliest due time of the timers not being fired.
func (t *Table) NextDue() (time.Time, bool) {
	var ret time.Time
	found := false
	for _, entry := range t.entries {
		if entry.firing {
			continue
		}
		if !found || entry.DueTime.Before(ret) {
			ret, found = entry.DueTime, true
		}
	}
	return ret, found
}

func (t *Table) lookup(bm *bookmark.Bookmark) *Entry {
	return t.entries[bm.Key()]
}

func (t *Table) add(entry *Entry) {
	t.entries[entry.Bookmark.Key()] = entry
}

func (t *Table) remove(bm *bookmark.Bookmark) *Entry {
	key := bm.Key()
	ret := t.entries[key]
	delete(t.entries, key)
	return ret
}

// snapshot copies the entries not being fired for serialization.
func (t *Table) snapshot() []Entry {
	var ret []Entry
	for _, entry := range t.Entries() {
		if entry.firing {
			continue
		}
		ret = append(ret, Entry{DueTime: entry.DueTime, Bookmark: entry.Bookmark, State: entry.State})
	}
	return ret
}
