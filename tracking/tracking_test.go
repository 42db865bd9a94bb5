package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/actflow/service/messaging"
	"github.com/viant/actflow/service/messaging/memory"
)

func TestPublisher(t *testing.T) {
	config := memory.DefaultConfig()
	config.QueueBuffer = 2
	publisher := NewPublisher(memory.NewQueue[Record](config))
	ctx := context.Background()

	require.NoError(t, publisher.Track(ctx, &Record{Kind: KindActivity, ActivityID: "1", State: "closed"}))
	require.NoError(t, publisher.Track(ctx, Custom("approved", map[string]interface{}{"by": "ops"})))
	assert.True(t, errors.Is(publisher.Track(ctx, &Record{Kind: KindWorkflow}), messaging.ErrFull))

	records := publisher.Drain(ctx, 10*time.Millisecond)
	require.Len(t, records, 2)
	assert.Equal(t, "1", records[0].ActivityID)
	assert.False(t, records[0].CreatedAt.IsZero())
	assert.Equal(t, KindCustom, records[1].Kind)
	assert.Equal(t, "ops", records[1].Data["by"])
}

func TestMulti(t *testing.T) {
	var seen []string
	failing := Func(func(ctx context.Context, record *Record) error { return errors.New("down") })
	recording := Func(func(ctx context.Context, record *Record) error {
		seen = append(seen, record.Name)
		return nil
	})
	var testCases = []struct {
		description string
		multi       Multi
		expectErr   bool
		expectSeen  int
	}{
		{description: "all succeed", multi: Multi{recording, recording}, expectSeen: 2},
		{description: "failure does not stop fan out", multi: Multi{failing, recording}, expectErr: true, expectSeen: 1},
		{description: "empty", multi: Multi{}},
	}
	for _, testCase := range testCases {
		seen = nil
		err := testCase.multi.Track(context.Background(), Custom("x", nil))
		assert.Equal(t, testCase.expectErr, err != nil, testCase.description)
		assert.Len(t, seen, testCase.expectSeen, testCase.description)
	}
}
