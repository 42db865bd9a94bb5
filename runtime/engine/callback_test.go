package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallbackCache_Bindable(t *testing.T) {
	cache := NewCallbackCache(2)
	seq := &sequence{}
	other := &wait{}
	closure := func(ctx *Context, completed *Instance) error { return nil }
	fan := &fanOut[string]{}

	var testCases = []struct {
		description string
		owner       Activity
		fn          interface{}
		expect      bool
	}{
		{description: "exported method of owner", owner: seq, fn: CompletionCallback(seq.OnChildCompleted), expect: true},
		{description: "method of another type", owner: seq, fn: BookmarkCallback(other.OnResumed), expect: false},
		{description: "closure", owner: seq, fn: CompletionCallback(closure), expect: false},
		{description: "method promoted into generic owner", owner: fan, fn: fan.branches.completion(), expect: true},
		{description: "promoted method on unrelated owner", owner: seq, fn: fan.branches.completion(), expect: false},
	}
	for _, testCase := range testCases {
		name := cache.Name(testCase.fn)
		assert.NotEmpty(t, name, testCase.description)
		assert.Equal(t, testCase.expect, cache.Bindable(testCase.owner, name), testCase.description)
	}
	fn, ok := cache.bindCompletion(seq, cache.Name(CompletionCallback(seq.OnChildCompleted)))
	assert.True(t, ok)
	assert.NotNil(t, fn)
	fn, ok = cache.bindCompletion(fan, cache.Name(fan.branches.completion()))
	assert.True(t, ok)
	assert.NotNil(t, fn)
}
