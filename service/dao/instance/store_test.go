package instance

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/actflow/host"
	"github.com/viant/actflow/runtime/engine"
	"github.com/viant/actflow/runtime/persistence"
	"github.com/viant/actflow/runtime/timer"
	"github.com/viant/actflow/service/dao"
	"github.com/viant/actflow/service/dao/bolt"
	"github.com/viant/actflow/service/dao/criteria"
	"github.com/viant/afs"
)

func stores(t *testing.T) map[string]*Store {
	ctx := context.Background()
	fsStore, err := NewFS(ctx, afs.New(), "mem://localhost/actflow/"+t.Name())
	require.NoError(t, err)
	db, err := bolt.Open(filepath.Join(t.TempDir(), "actflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	boltStore, err := NewBolt(db)
	require.NoError(t, err)
	return map[string]*Store{"memory": NewMemory(), "fs": fsStore, "bolt": boltStore}
}

func record(id, workflow string, state host.State, wake *time.Time) *host.Record {
	ret := &host.Record{InstanceID: id, Workflow: workflow, State: state, Completion: engine.Executing, Executor: &engine.Snapshot{ID: id}}
	if wake != nil {
		data, _ := json.Marshal(wake)
		ret.Values = &persistence.Record{WriteOnly: map[string]json.RawMessage{timer.NextExpirationName.String(): data}}
	}
	return ret
}

func TestStore_Records(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Minute), now.Add(time.Hour)
	for name, store := range stores(t) {
		for _, item := range []*host.Record{
			record("a", "approval", host.Idle, &past),
			record("b", "approval", host.Idle, &future),
			record("c", "delay", host.Complete, nil),
			record("d", "delay", host.Runnable, &past),
		} {
			_, err := store.Persist(ctx, item).Wait(ctx)
			require.NoError(t, err, name)
		}

		loaded, err := store.Load(ctx, "a")
		require.NoError(t, err, name)
		assert.Equal(t, "approval", loaded.Workflow, name)
		assert.Equal(t, host.Idle, loaded.State, name)
		_, err = store.Load(ctx, "missing")
		assert.True(t, errors.Is(err, dao.ErrNotFound), name)

		var testCases = []struct {
			description string
			parameters  []*dao.Parameter
			expect      []string
		}{
			{description: "all", expect: []string{"a", "b", "c", "d"}},
			{description: "by state", parameters: []*dao.Parameter{dao.NewParameter(criteria.State, "idle")}, expect: []string{"a", "b"}},
			{description: "by workflow", parameters: []*dao.Parameter{dao.NewParameter(criteria.Workflow, "delay")}, expect: []string{"c", "d"}},
			{description: "any state", parameters: []*dao.Parameter{dao.NewParameter(criteria.State, "complete", "runnable")}, expect: []string{"c", "d"}},
		}
		for _, testCase := range testCases {
			records, err := store.List(ctx, testCase.parameters...)
			require.NoError(t, err, name+" "+testCase.description)
			assert.Equal(t, testCase.expect, ids(records), name+" "+testCase.description)
		}

		due, err := store.ListDue(ctx, now)
		require.NoError(t, err, name)
		assert.Equal(t, []string{"a"}, ids(due), name)
		wake, ok := NextWake(loaded)
		assert.True(t, ok, name)
		assert.True(t, wake.Equal(past), name)
	}
}

func TestStore_Keys(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		item := record("a", "approval", host.Idle, nil)
		item.Keys = []string{"order-1", "order-2"}
		_, err := store.Persist(ctx, item).Wait(ctx)
		require.NoError(t, err, name)
		require.NoError(t, store.AssociateKeys(ctx, "a", item.Keys), name)
		require.NoError(t, store.AssociateKeys(ctx, "a", []string{"order-1"}), name)
		err = store.AssociateKeys(ctx, "b", []string{"order-1"})
		assert.True(t, errors.Is(err, ErrKeyConflict), name)
		assert.True(t, errors.Is(err, dao.ErrConflict), name)

		id, err := store.Lookup(ctx, "order-2")
		require.NoError(t, err, name)
		assert.Equal(t, "a", id, name)

		records, err := store.List(ctx, dao.NewParameter(criteria.Key, "order-2"))
		require.NoError(t, err, name)
		assert.Equal(t, []string{"a"}, ids(records), name)

		require.NoError(t, store.Delete(ctx, "a"), name)
		_, err = store.Lookup(ctx, "order-1")
		assert.True(t, errors.Is(err, dao.ErrNotFound), name)
		assert.True(t, errors.Is(store.Delete(ctx, "a"), dao.ErrNotFound), name)
	}
}

func ids(records []*host.Record) []string {
	var ret []string
	for _, record := range records {
		ret = append(ret, record.InstanceID)
	}
	return ret
}
