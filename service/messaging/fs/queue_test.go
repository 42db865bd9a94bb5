package fs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/actflow/service/messaging"
	"github.com/viant/afs"
)

type payload struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

func newQueue(t *testing.T, baseURL string, maxRetries int) *Queue[payload] {
	queue, err := NewQueue[payload](context.Background(), afs.New(), QueueConfig{BaseURL: baseURL, MaxRetries: maxRetries, KeepCompleted: true})
	require.NoError(t, err)
	return queue
}

func TestQueue_Order(t *testing.T) {
	ctx := context.Background()
	queue := newQueue(t, "mem://localhost/queue/order", 1)
	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, queue.Publish(ctx, &payload{ID: id}))
	}
	pending, err := queue.Len(ctx, MessageStatePending)
	require.NoError(t, err)
	assert.Equal(t, 3, pending)

	for _, id := range []string{"1", "2", "3"} {
		message, err := queue.Consume(ctx)
		require.NoError(t, err)
		require.NotNil(t, message)
		assert.Equal(t, id, message.T().ID)
		require.NoError(t, message.Ack())
		assert.True(t, errors.Is(message.Ack(), messaging.ErrProcessed))
	}
	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Nil(t, message)

	var testCases = []struct {
		state  MessageState
		expect int
	}{
		{state: MessageStatePending, expect: 0},
		{state: MessageStateProcessing, expect: 0},
		{state: MessageStateCompleted, expect: 3},
	}
	for _, testCase := range testCases {
		actual, err := queue.Len(ctx, testCase.state)
		require.NoError(t, err)
		assert.Equal(t, testCase.expect, actual, string(testCase.state))
	}
}

func TestQueue_Retries(t *testing.T) {
	ctx := context.Background()
	queue := newQueue(t, "mem://localhost/queue/retry", 1)
	require.NoError(t, queue.Publish(ctx, &payload{ID: "x", Count: 7}))

	for i := 0; i < 2; i++ {
		message, err := queue.Consume(ctx)
		require.NoError(t, err)
		require.NotNil(t, message)
		assert.Equal(t, 7, message.T().Count)
		require.NoError(t, message.Nack(errors.New("failed")))
	}
	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Nil(t, message)
	failed, err := queue.Len(ctx, MessageStateFailed)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
}
