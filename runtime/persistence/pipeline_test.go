package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type participant struct {
	namespace string
	rw, wo    Values
	frozen    bool
	completed int
	aborted   int
	published Values
}

func (p *participant) CollectValues() (Values, Values) {
	p.frozen = true
	return p.rw, p.wo
}

func (p *participant) PublishValues(values Values) error {
	p.published = Values{}
	for name, value := range values {
		if name.Namespace == p.namespace {
			p.published[name] = value
		}
	}
	return nil
}

func (p *participant) OnSaveCompleted() { p.frozen = false; p.completed++ }

func (p *participant) OnSaveAborted() { p.frozen = false; p.aborted++ }

func TestPipeline_Save(t *testing.T) {
	var testCases = []struct {
		description   string
		second        Values
		storeErr      error
		expectErr     bool
		expectAborted int
	}{
		{description: "success", second: Values{NewName("b", "x"): 2}},
		{description: "store failure thaws", second: Values{NewName("b", "x"): 2}, storeErr: errors.New("io"), expectErr: true, expectAborted: 1},
		{description: "duplicate name aborts", second: Values{NewName("a", "x"): 2}, expectErr: true, expectAborted: 1},
	}
	for _, testCase := range testCases {
		first := &participant{namespace: "a", rw: Values{NewName("a", "x"): 1}, wo: Values{NewName("a", "next"): "soon"}}
		second := &participant{namespace: "b", rw: testCase.second}
		var stored *Record
		err := NewPipeline(first, second).Save(context.Background(), func(ctx context.Context, record *Record) error {
			stored = record
			return testCase.storeErr
		})
		for _, p := range []*participant{first, second} {
			assert.False(t, p.frozen, testCase.description)
			assert.Equal(t, 1, p.completed+p.aborted, testCase.description)
			assert.Equal(t, testCase.expectAborted, p.aborted, testCase.description)
		}
		if testCase.expectErr {
			assert.Error(t, err, testCase.description)
			continue
		}
		require.NoError(t, err, testCase.description)
		assert.Equal(t, 2, len(stored.ReadWrite), testCase.description)
		assert.Equal(t, json.RawMessage(`"soon"`), stored.WriteOnly["{a}next"], testCase.description)
	}
}

func TestPipeline_SavePanicAborts(t *testing.T) {
	p := &participant{namespace: "a", rw: Values{NewName("a", "x"): 1}}
	assert.Panics(t, func() {
		_ = NewPipeline(p).Save(context.Background(), func(ctx context.Context, record *Record) error {
			panic("store crashed")
		})
	})
	assert.False(t, p.frozen)
	assert.Equal(t, 1, p.aborted)
}

func TestPipeline_LoadSkipsWriteOnly(t *testing.T) {
	source := &participant{namespace: "a", rw: Values{NewName("a", "x"): 7}, wo: Values{NewName("a", "next"): "soon"}}
	var record *Record
	require.NoError(t, NewPipeline(source).Save(context.Background(), func(ctx context.Context, r *Record) error {
		record = r
		return nil
	}))
	data, err := json.Marshal(record)
	require.NoError(t, err)
	restored := &Record{}
	require.NoError(t, json.Unmarshal(data, restored))

	target := &participant{namespace: "a"}
	require.NoError(t, NewPipeline(target).Load(restored))
	require.Len(t, target.published, 1)
	var x int
	require.NoError(t, Decode(target.published[NewName("a", "x")], &x))
	assert.Equal(t, 7, x)
}

func TestParseName(t *testing.T) {
	name, err := ParseName("{urn:actflow/timer}TimerTable")
	require.NoError(t, err)
	assert.Equal(t, NewName("urn:actflow/timer", "TimerTable"), name)
	_, err = ParseName("{broken")
	assert.Error(t, err)
}
