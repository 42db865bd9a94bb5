package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/actflow/service/messaging"
)

type payload struct {
	ID    string
	Count int
}

func TestQueue(t *testing.T) {
	queue := NewQueue[payload](DefaultConfig())
	ctx := context.Background()
	require.NoError(t, queue.Publish(ctx, &payload{ID: "test-1", Count: 1}))
	assert.Equal(t, 1, queue.Size())

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, &payload{ID: "test-1", Count: 1}, message.T())
	assert.NoError(t, message.Ack())
	assert.True(t, errors.Is(message.Ack(), messaging.ErrProcessed))
}

func TestQueue_Full(t *testing.T) {
	var testCases = []struct {
		description string
		block       bool
		expect      error
	}{
		{description: "non-blocking", expect: messaging.ErrFull},
		{description: "blocking", block: true, expect: context.DeadlineExceeded},
	}
	for _, testCase := range testCases {
		config := DefaultConfig()
		config.QueueBuffer = 1
		config.Block = testCase.block
		queue := NewQueue[payload](config)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		require.NoError(t, queue.Publish(ctx, &payload{ID: "1"}), testCase.description)
		err := queue.Publish(ctx, &payload{ID: "2"})
		cancel()
		assert.True(t, errors.Is(err, testCase.expect), testCase.description)
	}
}

func TestQueue_Retries(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = 2
	config.RetryDelay = time.Millisecond
	queue := NewQueue[payload](config)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, queue.Publish(ctx, &payload{ID: "retry"}))

	for i := 0; i <= config.MaxRetries; i++ {
		message, err := queue.Consume(ctx)
		require.NoError(t, err)
		require.NoError(t, message.Nack(fmt.Errorf("attempt %d", i)))
	}
	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, 1, queue.DLQSize())
	assert.Equal(t, "retry", queue.DeadLetters()[0].ID)
}

func TestQueue_Concurrency(t *testing.T) {
	queue := NewQueue[payload](DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	producers, perProducer := 10, 10

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(producer int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				assert.NoError(t, queue.Publish(ctx, &payload{ID: fmt.Sprintf("p%d-m%d", producer, j)}))
			}
		}(i)
	}
	seen := map[string]bool{}
	for len(seen) < producers*perProducer {
		message, err := queue.Consume(ctx)
		require.NoError(t, err)
		require.NoError(t, message.Ack())
		seen[message.T().ID] = true
	}
	wg.Wait()
	assert.Equal(t, 0, queue.Size())
}

func TestQueue_ContextCancellation(t *testing.T) {
	queue := NewQueue[payload](DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, queue.Publish(ctx, &payload{ID: "test"}))

	timeoutCtx, cancelTimeout := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancelTimeout()
	_, err := queue.Consume(timeoutCtx)
	assert.Error(t, err)
}
