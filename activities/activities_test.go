package activities

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/actflow/internal/clock"
	"github.com/viant/actflow/model"
	"github.com/viant/actflow/runtime/async"
	"github.com/viant/actflow/runtime/bookmark"
	"github.com/viant/actflow/runtime/engine"
	"github.com/viant/actflow/runtime/extension"
	"github.com/viant/actflow/runtime/timer"
	"github.com/viant/actflow/tracking"
)

type recorder struct {
	mux   sync.Mutex
	items []interface{}
}

func (r *recorder) step(name string) *Code {
	return NewCode(name, func(ctx *engine.Context) error {
		r.add(name)
		return nil
	})
}

func (r *recorder) add(item interface{}) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.items = append(r.items, item)
}

func start(t *testing.T, root engine.Activity, options ...engine.Option) *engine.Executor {
	tree, err := engine.Prepare(root)
	require.NoError(t, err)
	ret, err := engine.New(tree, options...)
	require.NoError(t, err)
	return ret
}

func TestParallel_WaitsForAllBranches(t *testing.T) {
	parallel := &Parallel{Branches: []engine.Activity{
		&WaitForBookmark{Bookmark: "a"},
		&WaitForBookmark{Bookmark: "b"},
		&WaitForBookmark{Bookmark: "c"},
	}}
	exec := start(t, parallel)
	ctx := context.Background()
	assert.Equal(t, engine.YieldIdle, exec.Run(ctx))
	assert.Len(t, exec.Bookmarks(), 3)

	for _, name := range []string{"a", "b"} {
		require.Equal(t, bookmark.Success, exec.ResumeBookmark(bookmark.New(name), nil))
	}
	assert.Equal(t, engine.YieldIdle, exec.Run(ctx))
	assert.Equal(t, engine.Executing, exec.State())

	require.Equal(t, bookmark.Success, exec.ResumeBookmark(bookmark.New("c"), nil))
	assert.Equal(t, engine.YieldComplete, exec.Run(ctx))
	assert.Equal(t, engine.Closed, exec.State())
}

func TestParallel_Cancel(t *testing.T) {
	parallel := &Parallel{Branches: []engine.Activity{
		&WaitForBookmark{Bookmark: "a"},
		&WaitForBookmark{Bookmark: "b"},
		&WaitForBookmark{Bookmark: "c"},
	}}
	exec := start(t, parallel)
	ctx := context.Background()
	exec.Run(ctx)
	require.Equal(t, bookmark.Success, exec.ResumeBookmark(bookmark.New("a"), nil))
	exec.Run(ctx)

	exec.ScheduleCancel()
	assert.Equal(t, engine.YieldComplete, exec.Run(ctx))
	assert.Equal(t, engine.Canceled, exec.State())
	assert.Empty(t, exec.Bookmarks())
}

func TestParallel_CompletionCondition(t *testing.T) {
	r := &recorder{}
	parallel := &Parallel{
		Base: engine.Base{Variables: model.Variables{model.NewVariable("done", false)}},
		Branches: []engine.Activity{
			NewCode("first", func(ctx *engine.Context) error {
				r.add("first")
				return ctx.Set("done", true)
			}),
			&WaitForBookmark{Bookmark: "b"},
			&WaitForBookmark{Bookmark: "c"},
		},
		CompletionCondition: model.Ref("done"),
	}
	exec := start(t, parallel)
	assert.Equal(t, engine.YieldComplete, exec.Run(context.Background()))
	assert.Equal(t, engine.Closed, exec.State())
	assert.Equal(t, []interface{}{"first"}, r.items)
	assert.Empty(t, exec.Bookmarks())
}

func TestParallel_BranchOrder(t *testing.T) {
	r := &recorder{}
	exec := start(t, &Parallel{Branches: []engine.Activity{r.step("a"), r.step("b"), r.step("c")}})
	assert.Equal(t, engine.YieldComplete, exec.Run(context.Background()))
	assert.Equal(t, []interface{}{"a", "b", "c"}, r.items)
}

func TestSwitch(t *testing.T) {
	var testCases = []struct {
		description  string
		value        interface{}
		withNull     bool
		withDefault  bool
		expect       []interface{}
		expectCustom bool
	}{
		{description: "default on miss", value: 3, withDefault: true, expect: []interface{}{"Z"}},
		{description: "exact match", value: 1, withDefault: true, expect: []interface{}{"X"}},
		{description: "string key text uses default", value: "1", withDefault: true, expect: []interface{}{"Z"}},
		{description: "other numeric type uses default", value: int64(2), withDefault: true, expect: []interface{}{"Z"}},
		{description: "string key text without default", value: "2", expectCustom: true},
		{description: "null case", value: nil, withNull: true, withDefault: true, expect: []interface{}{"N"}},
		{description: "null without case uses default", value: nil, withDefault: true, expect: []interface{}{"Z"}},
		{description: "miss without default", value: 3, expectCustom: true},
	}
	for _, testCase := range testCases {
		r := &recorder{}
		s := &Switch[int]{
			Expression: model.Literal(testCase.value),
			Cases: []*Case[int]{
				{Key: 1, Body: r.step("X")},
				{Key: 2, Body: r.step("Y")},
			},
		}
		if testCase.withNull {
			s.NullCase = r.step("N")
		}
		if testCase.withDefault {
			s.Default = r.step("Z")
		}
		var custom []*tracking.Record
		tracker := tracking.Func(func(ctx context.Context, record *tracking.Record) error {
			if record.Kind == tracking.KindCustom {
				custom = append(custom, record)
			}
			return nil
		})
		exec := start(t, s, engine.WithTracker(tracker))
		assert.Equal(t, engine.YieldComplete, exec.Run(context.Background()), testCase.description)
		assert.Equal(t, engine.Closed, exec.State(), testCase.description)
		assert.Equal(t, testCase.expect, r.items, testCase.description)
		if testCase.expectCustom {
			require.Len(t, custom, 1, testCase.description)
			assert.Equal(t, SwitchNotMatched, custom[0].Name, testCase.description)
		} else {
			assert.Empty(t, custom, testCase.description)
		}
	}
}

func TestSwitch_DuplicateCase(t *testing.T) {
	s := &Switch[string]{
		Expression: model.Literal("a"),
		Cases:      []*Case[string]{{Key: "a", Body: &Code{}}, {Key: "a", Body: &Code{}}},
	}
	_, err := engine.Prepare(s)
	assert.True(t, errors.Is(err, engine.ErrInvalidTree))
}

func TestParallelForEach(t *testing.T) {
	r := &recorder{}
	body := NewCode("body", func(ctx *engine.Context) error {
		item, err := ctx.Get("item")
		r.add(item)
		return err
	})
	forEach := &ParallelForEach[int]{
		Values: model.Literal([]int{1, 2, 3}),
		Body:   &engine.Action{Argument: "item", Handler: body},
	}
	exec := start(t, forEach)
	assert.Equal(t, engine.YieldComplete, exec.Run(context.Background()))
	assert.Equal(t, engine.Closed, exec.State())
	assert.Equal(t, []interface{}{1, 2, 3}, r.items)
}

func TestParallelForEach_NilValues(t *testing.T) {
	var values []string
	forEach := &ParallelForEach[string]{
		Values: model.Literal(values),
		Body:   &engine.Action{Argument: "item", Handler: &Code{}},
	}
	exec := start(t, forEach)
	exec.Run(context.Background())
	assert.Equal(t, engine.Faulted, exec.State())
	assert.True(t, errors.Is(exec.TerminationError(), ErrNilValues))
}

func TestSnapshotRestore_PendingBranch(t *testing.T) {
	var testCases = []struct {
		description string
		root        func(r *recorder) engine.Activity
		expect      []interface{}
	}{
		{
			description: "for each of strings",
			root: func(r *recorder) engine.Activity {
				return &ParallelForEach[string]{
					Values: model.Literal([]string{"a"}),
					Body:   &engine.Action{Argument: "item", Handler: pendingItem(r)},
				}
			},
			expect: []interface{}{"a"},
		},
		{
			description: "for each of ints",
			root: func(r *recorder) engine.Activity {
				return &ParallelForEach[int]{
					Values: model.Literal([]int{3}),
					Body:   &engine.Action{Argument: "item", Handler: pendingItem(r)},
				}
			},
			expect: []interface{}{3},
		},
		{
			description: "switch case",
			root: func(r *recorder) engine.Activity {
				return &Switch[string]{
					Expression: model.Literal("b"),
					Cases: []*Case[string]{
						{Key: "a", Body: r.step("A")},
						{Key: "b", Body: NewSequence("b", &WaitForBookmark{Bookmark: "next"}, r.step("B"))},
					},
					Default: r.step("Z"),
				}
			},
			expect: []interface{}{"B"},
		},
	}
	for _, testCase := range testCases {
		r := &recorder{}
		tree, err := engine.Prepare(testCase.root(r))
		require.NoError(t, err, testCase.description)
		exec, err := engine.New(tree)
		require.NoError(t, err, testCase.description)
		require.Equal(t, engine.YieldIdle, exec.Run(context.Background()), testCase.description)

		snapshot, err := exec.Snapshot()
		require.NoError(t, err, testCase.description)
		data, err := json.Marshal(snapshot)
		require.NoError(t, err, testCase.description)
		decoded := &engine.Snapshot{}
		require.NoError(t, json.Unmarshal(data, decoded), testCase.description)

		restored, err := engine.Restore(tree, decoded)
		require.NoError(t, err, testCase.description)
		require.Equal(t, bookmark.Success, restored.ResumeBookmark(bookmark.New("next"), nil), testCase.description)
		assert.Equal(t, engine.YieldComplete, restored.Run(context.Background()), testCase.description)
		assert.Equal(t, engine.Closed, restored.State(), testCase.description)
		assert.Equal(t, testCase.expect, r.items, testCase.description)
	}
}

// pendingItem waits on the "next" bookmark, then records the item argument.
func pendingItem(r *recorder) engine.Activity {
	return NewSequence("branch",
		&WaitForBookmark{Bookmark: "next"},
		NewCode("record", func(ctx *engine.Context) error {
			item, err := ctx.Get("item")
			r.add(item)
			return err
		}))
}

func TestPersist(t *testing.T) {
	r := &recorder{}
	exec := start(t, NewSequence("main", &Persist{}, r.step("after")))
	ctx := context.Background()
	assert.Equal(t, engine.YieldPersist, exec.Run(ctx))
	assert.Empty(t, r.items)
	exec.PersistCompleted()
	assert.Equal(t, engine.YieldComplete, exec.Run(ctx))
	assert.Equal(t, []interface{}{"after"}, r.items)
}

func TestPersist_InsideNoPersistScope(t *testing.T) {
	exec := start(t, &NoPersistScope{Body: NewSequence("inner", &Persist{})})
	exec.Run(context.Background())
	assert.Equal(t, engine.Faulted, exec.State())
	assert.True(t, errors.Is(exec.TerminationError(), engine.ErrNoPersistZone))
}

func TestNoPersistScope_SnapshotRejected(t *testing.T) {
	exec := start(t, &NoPersistScope{Body: &WaitForBookmark{Bookmark: "inside"}})
	exec.Run(context.Background())
	_, err := exec.Snapshot()
	assert.True(t, errors.Is(err, engine.ErrNotPersistable))

	require.Equal(t, bookmark.Success, exec.ResumeBookmark(bookmark.New("inside"), nil))
	assert.Equal(t, engine.YieldComplete, exec.Run(context.Background()))
	_, err = exec.Snapshot()
	assert.NoError(t, err)
}

type execProxy struct {
	exec *engine.Executor
}

func (p *execProxy) ID() string { return p.exec.ID() }

func (p *execProxy) ResumeBookmark(ctx context.Context, bm *bookmark.Bookmark, value interface{}) *async.Future[bookmark.Result] {
	return async.Completed(p.exec.ResumeBookmark(bm, value), nil)
}

func startWithTimer(t *testing.T, root engine.Activity) (*engine.Executor, *timer.Extension, *clock.Manual) {
	c := clock.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	timers := timer.New(timer.WithClock(c))
	manager := extension.NewManager()
	require.NoError(t, manager.Add(timers))
	manager.MakeReadOnly()
	tree, err := engine.Prepare(root)
	require.NoError(t, err)
	require.NoError(t, manager.Validate(tree.RequiredExtensions()))
	exec, err := engine.New(tree, engine.WithExtensions(manager.NewCollection()))
	require.NoError(t, err)
	timers.Attach(&execProxy{exec: exec})
	return exec, timers, c
}

func TestDelay(t *testing.T) {
	r := &recorder{}
	exec, timers, c := startWithTimer(t, NewSequence("main", NewDelay(time.Minute), r.step("after")))
	ctx := context.Background()
	assert.Equal(t, engine.YieldIdle, exec.Run(ctx))
	assert.Equal(t, 1, timers.Len())

	c.Advance(time.Minute)
	assert.Equal(t, 0, timers.Len())
	assert.Equal(t, engine.YieldComplete, exec.Run(ctx))
	assert.Equal(t, []interface{}{"after"}, r.items)
}

func TestDelay_ZeroAndInfinite(t *testing.T) {
	exec, timers, _ := startWithTimer(t, NewDelay(0))
	assert.Equal(t, engine.YieldComplete, exec.Run(context.Background()))
	assert.Equal(t, 0, timers.Len())

	exec, timers, _ = startWithTimer(t, NewDelay(timer.Infinite))
	assert.Equal(t, engine.YieldIdle, exec.Run(context.Background()))
	assert.Equal(t, 0, timers.Len())
	exec.ScheduleCancel()
	assert.Equal(t, engine.YieldComplete, exec.Run(context.Background()))
	assert.Equal(t, engine.Canceled, exec.State())
}

func TestDelay_Cancel(t *testing.T) {
	exec, timers, c := startWithTimer(t, NewDelay(time.Hour))
	exec.Run(context.Background())
	assert.Equal(t, 1, timers.Len())
	exec.ScheduleCancel()
	assert.Equal(t, engine.YieldComplete, exec.Run(context.Background()))
	assert.Equal(t, engine.Canceled, exec.State())
	assert.Equal(t, 0, timers.Len())
	assert.Equal(t, 0, c.Pending())
}

func TestDelay_MissingExtension(t *testing.T) {
	tree, err := engine.Prepare(NewDelay(time.Second))
	require.NoError(t, err)
	err = extension.NewManager().Validate(tree.RequiredExtensions())
	assert.True(t, errors.Is(err, extension.ErrMissingCapability))
}
