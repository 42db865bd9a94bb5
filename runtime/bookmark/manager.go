package bookmark

import (
	"fmt"
	"sort"

	"github.com/viant/actflow/internal/idgen"
)

// Record is a registered bookmark together with its owner and callback.
type Record struct {
	Bookmark *Bookmark `json:"bookmark"`
	OwnerID  int64     `json:"ownerId"`
	// CallbackName is the durable name of Callback; empty for bookmarks that
	// only block their owner.
	CallbackName string      `json:"callback,omitempty"`
	Callback     interface{} `json:"-"`
	seq          uint64
}

// Manager stores the bookmarks of one workflow instance. It is not safe for
// concurrent use; the executor serialises access.
type Manager struct {
	records map[Key]*Record
	seq     uint64
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{records: map[Key]*Record{}}
}

// Create registers a bookmark. An empty name creates an anonymous bookmark.
func (m *Manager) Create(name string, scope *Scope, ownerID int64, callbackName string, callback interface{}) (*Record, error) {
	if name == "" {
		name = idgen.New()
	}
	bm := &Bookmark{Name: name, Scope: scope}
	key := bm.Key()
	if _, ok := m.records[key]; ok {
		return nil, fmt.Errorf("%w: %v", ErrDuplicate, bm)
	}
	m.seq++
	ret := &Record{Bookmark: bm, OwnerID: ownerID, CallbackName: callbackName, Callback: callback, seq: m.seq}
	m.records[key] = ret
	return ret, nil
}

// Take removes and returns the record matching b. A bookmark is taken at most
// once; later calls yield NotFound.
func (m *Manager) Take(b *Bookmark) (*Record, Result) {
	if b == nil {
		return nil, NotFound
	}
	key := b.Key()
	ret, ok := m.records[key]
	if !ok {
		return nil, NotFound
	}
	delete(m.records, key)
	return ret, Success
}

// Lookup returns the record without consuming it.
func (m *Manager) Lookup(b *Bookmark) *Record {
	if b == nil {
		return nil
	}
	return m.records[b.Key()]
}

// Remove deletes the bookmark if it is owned by ownerID.
func (m *Manager) Remove(b *Bookmark, ownerID int64) bool {
	if b == nil {
		return false
	}
	key := b.Key()
	rec, ok := m.records[key]
	if !ok || rec.OwnerID != ownerID {
		return false
	}
	delete(m.records, key)
	return true
}

// RemoveOwned deletes every bookmark owned by ownerID and returns the count.
func (m *Manager) RemoveOwned(ownerID int64) int {
	count := 0
	for key, rec := range m.records {
		if rec.OwnerID == ownerID {
			delete(m.records, key)
			count++
		}
	}
	return count
}

// Owned returns the number of bookmarks owned by ownerID.
func (m *Manager) Owned(ownerID int64) int {
	count := 0
	for _, rec := range m.records {
		if rec.OwnerID == ownerID {
			count++
		}
	}
	return count
}

// Len returns the number of pending bookmarks.
func (m *Manager) Len() int { return len(m.records) }

// Records returns pending bookmarks in creation order.
func (m *Manager) Records() []*Record {
	ret := make([]*Record, 0, len(m.records))
	for _, rec := range m.records {
		ret = append(ret, rec)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].seq < ret[j].seq })
	return ret
}

// Restore replaces the content of the manager with records, keeping their order.
func (m *Manager) Restore(records []*Record) error {
	m.records = make(map[Key]*Record, len(records))
	m.seq = 0
	for _, rec := range records {
		if rec == nil || rec.Bookmark == nil {
			continue
		}
		key := rec.Bookmark.Key()
		if _, ok := m.records[key]; ok {
			return fmt.Errorf("%w: %v", ErrDuplicate, rec.Bookmark)
		}
		m.seq++
		rec.seq = m.seq
		m.records[key] = rec
	}
	return nil
}
