package engine

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/actflow/model"
	"github.com/viant/actflow/runtime/bookmark"
)

func start(t *testing.T, root Activity, options ...Option) *Executor {
	tree, err := Prepare(root)
	require.NoError(t, err)
	ret, err := New(tree, options...)
	require.NoError(t, err)
	return ret
}

func TestExecutor_SingleTerminalState(t *testing.T) {
	var order []string
	step := func(name string) Activity {
		return &code{Base: Base{DisplayName: name}, fn: func(ctx *Context) error {
			order = append(order, name)
			return nil
		}}
	}
	exec := start(t, newSequence("main", nil, step("a"), step("b"), step("c")))
	ctx := context.Background()
	assert.Equal(t, YieldComplete, exec.Run(ctx))
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, Closed, exec.State())
	assert.True(t, exec.IsCompleted())
	assert.Equal(t, YieldComplete, exec.Run(ctx))
	exec.Terminate(errors.New("late"))
	assert.Equal(t, Closed, exec.State())
	assert.NoError(t, exec.TerminationError())
}

func TestExecutor_ResumeBookmark(t *testing.T) {
	root := newSequence("main", model.Variables{model.NewVariable("answer", "")},
		&wait{Bookmark: "approve", Result: "answer"})
	exec := start(t, root)
	ctx := context.Background()

	assert.Equal(t, YieldIdle, exec.Run(ctx))
	assert.Equal(t, bookmark.NotFound, exec.ResumeBookmark(bookmark.New("unknown"), nil))
	infos := exec.Bookmarks()
	require.Len(t, infos, 1)
	assert.Equal(t, "approve", infos[0].Bookmark.Name)
	assert.Equal(t, "1.1", infos[0].ActivityID)

	assert.Equal(t, bookmark.Success, exec.ResumeBookmark(bookmark.New("approve"), "yes"))
	assert.Equal(t, bookmark.NotFound, exec.ResumeBookmark(bookmark.New("approve"), "again"))
	assert.Equal(t, YieldComplete, exec.Run(ctx))
	assert.Equal(t, Closed, exec.State())
	assert.Equal(t, "yes", exec.Outputs()["answer"])
}

func TestExecutor_Faults(t *testing.T) {
	var testCases = []struct {
		description string
		fn          func(ctx *Context) error
		expect      string
	}{
		{description: "error", fn: func(ctx *Context) error { return errors.New("boom") }, expect: "boom"},
		{description: "panic", fn: func(ctx *Context) error { panic("crash") }, expect: "panic: crash"},
	}
	for _, testCase := range testCases {
		var notified []error
		exec := start(t, newSequence("main", nil, &wait{Bookmark: "other"}, &code{fn: testCase.fn}),
			WithFaultHandler(func(err error) { notified = append(notified, err) }))
		exec.Run(context.Background())
		require.Equal(t, bookmark.Success, exec.ResumeBookmark(bookmark.New("other"), nil), testCase.description)
		assert.Equal(t, YieldComplete, exec.Run(context.Background()), testCase.description)
		assert.Equal(t, Faulted, exec.State(), testCase.description)
		require.Error(t, exec.TerminationError(), testCase.description)
		assert.Contains(t, exec.TerminationError().Error(), testCase.expect, testCase.description)
		assert.Len(t, notified, 1, testCase.description)
	}
}

func TestExecutor_Cancel(t *testing.T) {
	exec := start(t, newSequence("main", nil, &wait{Bookmark: "never"}))
	ctx := context.Background()
	assert.Equal(t, YieldIdle, exec.Run(ctx))
	exec.ScheduleCancel()
	assert.Equal(t, YieldComplete, exec.Run(ctx))
	assert.Equal(t, Canceled, exec.State())
	assert.Empty(t, exec.Bookmarks())
}

func TestExecutor_Terminate(t *testing.T) {
	exec := start(t, newSequence("main", nil, &wait{Bookmark: "never"}))
	exec.Run(context.Background())
	reason := errors.New("operator")
	exec.Terminate(reason)
	assert.Equal(t, Faulted, exec.State())
	assert.Equal(t, reason, exec.TerminationError())
	assert.Equal(t, bookmark.NotFound, exec.ResumeBookmark(bookmark.New("never"), nil))
}

func TestExecutor_SnapshotRestore(t *testing.T) {
	root := newSequence("main", model.Variables{model.NewVariable("counter", 0), model.NewVariable("answer", "")},
		&code{fn: func(ctx *Context) error { return ctx.Set("counter", 41) }},
		&wait{Bookmark: "approve", Result: "answer"},
		&code{fn: func(ctx *Context) error {
			value, err := ctx.Get("counter")
			if err != nil {
				return err
			}
			return ctx.Set("counter", value.(int)+1)
		}})
	tree, err := Prepare(root)
	require.NoError(t, err)
	exec, err := New(tree, WithID("wf-1"))
	require.NoError(t, err)
	assert.Equal(t, YieldIdle, exec.Run(context.Background()))

	snapshot, err := exec.Snapshot()
	require.NoError(t, err)
	data, err := json.Marshal(snapshot)
	require.NoError(t, err)
	decoded := &Snapshot{}
	require.NoError(t, json.Unmarshal(data, decoded))

	restored, err := Restore(tree, decoded)
	require.NoError(t, err)
	assert.Equal(t, "wf-1", restored.ID())
	assert.Equal(t, exec.MappedVariables(), restored.MappedVariables())
	assert.Equal(t, bookmark.Success, restored.ResumeBookmark(bookmark.New("approve"), "ok"))
	assert.Equal(t, YieldComplete, restored.Run(context.Background()))
	assert.Equal(t, Closed, restored.State())
	assert.Equal(t, 42, restored.Outputs()["counter"])
	assert.Equal(t, "ok", restored.Outputs()["answer"])
}

func TestExecutor_SnapshotRestoresActionArgument(t *testing.T) {
	var testCases = []struct {
		description string
		item        interface{}
		argType     reflect.Type
	}{
		{description: "int", item: 3, argType: reflect.TypeOf(0)},
		{description: "uint8", item: uint8(7), argType: reflect.TypeOf(uint8(0))},
		{description: "string", item: "a", argType: reflect.TypeOf("")},
	}
	for _, testCase := range testCases {
		var observed interface{}
		body := newSequence("branch", nil,
			&wait{Bookmark: "next"},
			&code{fn: func(ctx *Context) error {
				var err error
				observed, err = ctx.Get("item")
				return err
			}})
		root := &fanOut[interface{}]{Items: []interface{}{testCase.item}, Body: &Action{Argument: "item", Type: testCase.argType, Handler: body}}
		tree, err := Prepare(root)
		require.NoError(t, err, testCase.description)
		exec, err := New(tree)
		require.NoError(t, err, testCase.description)
		require.Equal(t, YieldIdle, exec.Run(context.Background()), testCase.description)

		snapshot, err := exec.Snapshot()
		require.NoError(t, err, testCase.description)
		data, err := json.Marshal(snapshot)
		require.NoError(t, err, testCase.description)
		decoded := &Snapshot{}
		require.NoError(t, json.Unmarshal(data, decoded), testCase.description)

		restored, err := Restore(tree, decoded)
		require.NoError(t, err, testCase.description)
		require.Equal(t, bookmark.Success, restored.ResumeBookmark(bookmark.New("next"), nil), testCase.description)
		assert.Equal(t, YieldComplete, restored.Run(context.Background()), testCase.description)
		assert.Equal(t, Closed, restored.State(), testCase.description)
		assert.Equal(t, testCase.item, observed, testCase.description)
	}
}

func TestExecutor_SnapshotRejectsClosures(t *testing.T) {
	root := &code{fn: func(ctx *Context) error {
		_, err := ctx.CreateBookmark("closure", func(ctx *Context, bm *bookmark.Bookmark, value interface{}) error {
			return nil
		})
		return err
	}}
	exec := start(t, root)
	exec.Run(context.Background())
	_, err := exec.Snapshot()
	assert.True(t, errors.Is(err, ErrNotPersistable))
}

func TestExecutor_PersistRequest(t *testing.T) {
	var persisted bool
	root := newSequence("main", nil,
		&code{fn: func(ctx *Context) error { return ctx.RequestPersist(nil) }},
		&code{fn: func(ctx *Context) error { persisted = true; return nil }})
	exec := start(t, root)
	ctx := context.Background()
	assert.Equal(t, YieldPersist, exec.Run(ctx))
	assert.True(t, exec.IsPersistRequested())
	assert.False(t, persisted)
	assert.Empty(t, exec.Bookmarks(), "persist bookmark is internal")
	assert.Equal(t, YieldIdle, exec.Run(ctx))
	exec.PersistCompleted()
	assert.Equal(t, YieldComplete, exec.Run(ctx))
	assert.True(t, persisted)
}

func TestExecutor_NoPersistZone(t *testing.T) {
	root := &code{fn: func(ctx *Context) error {
		ctx.EnterNoPersist()
		defer ctx.ExitNoPersist()
		return ctx.RequestPersist(nil)
	}}
	exec := start(t, root)
	exec.Run(context.Background())
	assert.Equal(t, Faulted, exec.State())
	assert.True(t, errors.Is(exec.TerminationError(), ErrNoPersistZone))
}

func TestExecutor_RequestPause(t *testing.T) {
	exec := start(t, newSequence("main", nil, &code{}, &code{}))
	exec.RequestPause()
	assert.Equal(t, YieldPaused, exec.Run(context.Background()))
	assert.Equal(t, YieldComplete, exec.Run(context.Background()))
}

func TestPrepare(t *testing.T) {
	shared := &code{}
	_, err := Prepare(newSequence("main", nil, shared, shared))
	assert.True(t, errors.Is(err, ErrInvalidTree))

	child := &code{}
	tree, err := Prepare(newSequence("main", nil, &code{}, newSequence("inner", nil, child)))
	require.NoError(t, err)
	assert.Equal(t, "1.2.1", IDOf(child))
	assert.Equal(t, 4, tree.Len())
}
