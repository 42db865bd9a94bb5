package tracking

import (
	"context"
	"time"

	"github.com/viant/actflow/internal/clock"
	"github.com/viant/actflow/service/messaging"
)

// Publisher is a Participant that forwards records to a queue.
type Publisher struct {
	queue messaging.Queue[Record]
}

// NewPublisher creates a queue backed participant.
func NewPublisher(queue messaging.Queue[Record]) *Publisher {
	return &Publisher{queue: queue}
}

// Track publishes record to the queue.
func (p *Publisher) Track(ctx context.Context, record *Record) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = clock.Now()
	}
	return p.queue.Publish(ctx, record)
}

// Consume returns the next record, acknowledging it.
func (p *Publisher) Consume(ctx context.Context) (*Record, error) {
	msg, err := p.queue.Consume(ctx)
	if err != nil || msg == nil {
		return nil, err
	}
	if err = msg.Ack(); err != nil {
		return nil, err
	}
	return msg.T(), nil
}

// Drain returns every record currently queued, waiting at most timeout for each.
func (p *Publisher) Drain(ctx context.Context, timeout time.Duration) []*Record {
	var ret []*Record
	for {
		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		record, err := p.Consume(waitCtx)
		cancel()
		if err != nil || record == nil {
			return ret
		}
		ret = append(ret, record)
	}
}
