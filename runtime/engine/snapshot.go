package engine

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/viant/actflow/runtime/bookmark"
)

// Snapshot is the durable state of an executor.
type Snapshot struct {
	ID               string               `json:"id"`
	NextID           int64                `json:"nextId"`
	Completed        bool                 `json:"completed,omitempty"`
	TerminationError string               `json:"terminationError,omitempty"`
	Instances        []*InstanceSnapshot  `json:"instances"`
	Bookmarks        []*BookmarkSnapshot  `json:"bookmarks,omitempty"`
	Queue            []*WorkSnapshot      `json:"queue,omitempty"`
	Persist          []*bookmark.Bookmark `json:"persist,omitempty"`
}

// InstanceSnapshot is the durable state of an activity instance.
type InstanceSnapshot struct {
	ID              int64                  `json:"id"`
	ActivityID      string                 `json:"activityId"`
	ParentID        int64                  `json:"parentId,omitempty"`
	State           State                  `json:"state"`
	CancelRequested bool                   `json:"cancelRequested,omitempty"`
	MarkedCanceled  bool                   `json:"markedCanceled,omitempty"`
	Callback        string                 `json:"callback,omitempty"`
	Variables       []*Slot                `json:"variables,omitempty"`
	Values          map[string]interface{} `json:"values,omitempty"`
}

// Slot is a named environment value.
type Slot struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// BookmarkSnapshot is a pending bookmark.
type BookmarkSnapshot struct {
	Bookmark *bookmark.Bookmark `json:"bookmark"`
	OwnerID  int64              `json:"ownerId"`
	Callback string             `json:"callback,omitempty"`
}

// WorkSnapshot is a queued work item, front first.
type WorkSnapshot struct {
	Kind       string             `json:"kind"`
	InstanceID int64              `json:"instanceId"`
	ChildID    int64              `json:"childId,omitempty"`
	Bookmark   *bookmark.Bookmark `json:"bookmark,omitempty"`
	Value      interface{}        `json:"value,omitempty"`
	Callback   string             `json:"callback,omitempty"`
}

// Snapshot captures the executor state. It fails with ErrNotPersistable inside
// a no-persist zone or when a pending callback cannot be rebound on reload.
func (e *Executor) Snapshot() (*Snapshot, error) {
	if e.noPersist > 0 {
		return nil, fmt.Errorf("%w: inside no-persist zone", ErrNotPersistable)
	}
	ret := &Snapshot{ID: e.id, NextID: e.nextID, Completed: e.completed}
	if e.terminationErr != nil {
		ret.TerminationError = e.terminationErr.Error()
	}
	for _, inst := range e.sortedInstances() {
		snapshot := &InstanceSnapshot{
			ID:              inst.id,
			ActivityID:      inst.ActivityID(),
			State:           inst.state,
			CancelRequested: inst.cancelRequested,
			MarkedCanceled:  inst.markedCanceled,
			Values:          inst.values,
		}
		if inst.parent != nil {
			snapshot.ParentID = inst.parent.id
			name, err := e.durableName(inst.parent, inst.onComplete)
			if err != nil {
				return nil, err
			}
			snapshot.Callback = name
		}
		for _, loc := range inst.env.Locations() {
			snapshot.Variables = append(snapshot.Variables, &Slot{Name: loc.Name, Value: loc.Value()})
		}
		ret.Instances = append(ret.Instances, snapshot)
	}
	for _, rec := range e.bookmarks.Records() {
		owner, ok := e.instances[rec.OwnerID]
		if !ok {
			continue
		}
		name, err := e.durableName(owner, &callback{name: rec.CallbackName, bookmark: asBookmarkCallback(rec.Callback)})
		if err != nil {
			return nil, err
		}
		ret.Bookmarks = append(ret.Bookmarks, &BookmarkSnapshot{Bookmark: rec.Bookmark, OwnerID: rec.OwnerID, Callback: name})
	}
	for _, item := range e.items() {
		work := &WorkSnapshot{Kind: workKindNames[item.kind], InstanceID: item.instance.id, Bookmark: item.bookmark, Value: item.value}
		if item.child != nil {
			work.ChildID = item.child.id
		}
		if item.kind == bookmarkWork {
			name, err := e.durableName(item.instance, item.callback)
			if err != nil {
				return nil, err
			}
			work.Callback = name
		}
		ret.Queue = append(ret.Queue, work)
	}
	ret.Persist = append(ret.Persist, e.persistBookmarks...)
	return ret, nil
}

func (e *Executor) durableName(owner *Instance, cb *callback) (string, error) {
	if cb.isEmpty() {
		return "", nil
	}
	if !e.callbacks.Bindable(owner.activity, cb.name) {
		return "", fmt.Errorf("%w: callback %v of %v is not an exported method", ErrNotPersistable, cb.name, NameOf(owner.activity))
	}
	return cb.name, nil
}

func asBookmarkCallback(fn interface{}) BookmarkCallback {
	ret, _ := fn.(BookmarkCallback)
	return ret
}

// Restore rebuilds an executor of tree from snapshot. Pending persistence
// requests are treated as confirmed.
func Restore(tree *Tree, snapshot *Snapshot, options ...Option) (*Executor, error) {
	if tree == nil || snapshot == nil {
		return nil, fmt.Errorf("%w: tree and snapshot are required", ErrInvalidTree)
	}
	ret := newExecutor(tree, append([]Option{WithID(snapshot.ID)}, options...))
	ret.nextID = snapshot.NextID
	ret.completed = snapshot.Completed
	if snapshot.TerminationError != "" {
		ret.terminationErr = errors.New(snapshot.TerminationError)
	}
	instances := append([]*InstanceSnapshot(nil), snapshot.Instances...)
	sort.Slice(instances, func(i, j int) bool { return instances[i].ID < instances[j].ID })
	for _, item := range instances {
		if err := ret.restoreInstance(item); err != nil {
			return nil, err
		}
	}
	if ret.root == nil {
		return nil, fmt.Errorf("%w: snapshot has no root instance", ErrInvalidTree)
	}
	var records []*bookmark.Record
	for _, item := range snapshot.Bookmarks {
		owner, ok := ret.instances[item.OwnerID]
		if !ok {
			return nil, fmt.Errorf("bookmark %v owner %d not found", item.Bookmark, item.OwnerID)
		}
		record := &bookmark.Record{Bookmark: item.Bookmark, OwnerID: item.OwnerID, CallbackName: item.Callback}
		if item.Callback != "" {
			fn, ok := ret.callbacks.bindBookmark(owner.activity, item.Callback)
			if !ok {
				return nil, fmt.Errorf("%w: unable to bind %v on %v", ErrNotPersistable, item.Callback, NameOf(owner.activity))
			}
			record.Callback = fn
		}
		records = append(records, record)
	}
	if err := ret.bookmarks.Restore(records); err != nil {
		return nil, err
	}
	for _, work := range snapshot.Queue {
		item, err := ret.restoreWork(work)
		if err != nil {
			return nil, err
		}
		ret.pushBack(item)
	}
	ret.persistBookmarks = append(ret.persistBookmarks, snapshot.Persist...)
	ret.PersistCompleted()
	return ret, nil
}

func (e *Executor) restoreInstance(item *InstanceSnapshot) error {
	activity := e.tree.Lookup(item.ActivityID)
	if activity == nil {
		return fmt.Errorf("%w: activity %q not found", ErrInvalidTree, item.ActivityID)
	}
	inst := &Instance{
		id:              item.ID,
		activity:        activity,
		state:           item.State,
		cancelRequested: item.CancelRequested,
		markedCanceled:  item.MarkedCanceled,
		values:          item.Values,
	}
	if item.ParentID != 0 {
		parent, ok := e.instances[item.ParentID]
		if !ok {
			return fmt.Errorf("instance %d parent %d not found", item.ID, item.ParentID)
		}
		inst.parent = parent
		if item.Callback != "" {
			fn, ok := e.callbacks.bindCompletion(parent.activity, item.Callback)
			if !ok {
				return fmt.Errorf("%w: unable to bind %v on %v", ErrNotPersistable, item.Callback, NameOf(parent.activity))
			}
			inst.onComplete = &callback{name: item.Callback, completion: fn}
		}
		if inst.isExecuting() {
			parent.children = append(parent.children, inst)
		}
	} else {
		e.root = inst
	}
	inst.env = e.newEnv(inst)
	b := activity.base()
	action := e.tree.actionOf(item.ActivityID)
	for _, slot := range item.Variables {
		var slotType reflect.Type
		if action != nil && action.Argument == slot.Name {
			slotType = action.Type
		} else if argument := b.Arguments.Lookup(slot.Name); argument != nil {
			slotType = argumentType(argument)
		} else if variable := b.Variables.Lookup(slot.Name); variable != nil {
			slotType = variableType(variable)
		}
		if _, err := inst.env.Declare(slot.Name, slotType, nil); err != nil {
			return err
		}
		if err := inst.env.Restore(slot.Name, slot.Value); err != nil {
			return err
		}
	}
	e.instances[inst.id] = inst
	return nil
}

func (e *Executor) restoreWork(work *WorkSnapshot) (*workItem, error) {
	inst, ok := e.instances[work.InstanceID]
	if !ok {
		return nil, fmt.Errorf("work item instance %d not found", work.InstanceID)
	}
	ret := &workItem{instance: inst, bookmark: work.Bookmark, value: work.Value}
	switch work.Kind {
	case workKindNames[executeWork]:
		ret.kind = executeWork
	case workKindNames[cancelWork]:
		ret.kind = cancelWork
	case workKindNames[completionWork]:
		ret.kind = completionWork
		child, ok := e.instances[work.ChildID]
		if !ok {
			return nil, fmt.Errorf("completed instance %d not found", work.ChildID)
		}
		ret.child = child
		ret.callback = child.onComplete
	case workKindNames[bookmarkWork]:
		ret.kind = bookmarkWork
		ret.callback = &callback{name: work.Callback}
		if work.Callback != "" {
			fn, ok := e.callbacks.bindBookmark(inst.activity, work.Callback)
			if !ok {
				return nil, fmt.Errorf("%w: unable to bind %v on %v", ErrNotPersistable, work.Callback, NameOf(inst.activity))
			}
			ret.callback.bookmark = fn
		}
	default:
		return nil, fmt.Errorf("unsupported work item kind: %q", work.Kind)
	}
	return ret, nil
}
