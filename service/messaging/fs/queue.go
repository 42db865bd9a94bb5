// Package fs implements a durable messaging.Queue over an afs storage URL,
// one JSON file per message.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/viant/actflow/internal/clock"
	"github.com/viant/actflow/internal/idgen"
	"github.com/viant/actflow/service/messaging"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"
)

// MessageState represents the state of a message in the filesystem queue
type MessageState string

const (
	// MessageStatePending indicates a message is waiting to be processed
	MessageStatePending MessageState = "pending"
	// MessageStateProcessing indicates a message is being processed
	MessageStateProcessing MessageState = "processing"
	// MessageStateCompleted indicates a message was successfully processed
	MessageStateCompleted MessageState = "completed"
	// MessageStateFailed indicates a message exhausted its retries
	MessageStateFailed MessageState = "failed"
)

// Message is a filesystem queue message
type Message[T any] struct {
	ID        string       `json:"id"`
	Data      T            `json:"data"`
	State     MessageState `json:"state"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Retries   int          `json:"retries"`

	name      string
	queue     *Queue[T]
	processed bool
	mu        sync.Mutex
}

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.Data
}

// Ack moves the message to the completed directory, or deletes it when the
// queue does not keep completed messages.
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return messaging.ErrProcessed
	}
	m.processed = true
	m.State = MessageStateCompleted
	m.UpdatedAt = clock.Now()
	return m.queue.settle(context.Background(), m, m.queue.completedDir, m.queue.config.KeepCompleted)
}

// Nack returns the message to pending, or to the dead letter directory once
// retries are exhausted.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return messaging.ErrProcessed
	}
	m.processed = true
	if err != nil {
		m.Error = err.Error()
	}
	m.Retries++
	m.UpdatedAt = clock.Now()
	if m.Retries > m.queue.config.MaxRetries {
		m.State = MessageStateFailed
		return m.queue.settle(context.Background(), m, m.queue.dlqDir, true)
	}
	m.State = MessageStatePending
	return m.queue.settle(context.Background(), m, m.queue.pendingDir, true)
}

// QueueConfig holds configuration for filesystem queue
type QueueConfig struct {
	BaseURL       string
	MaxRetries    int
	KeepCompleted bool
}

// DefaultConfig returns a default queue configuration
func DefaultConfig() QueueConfig {
	return QueueConfig{
		BaseURL:    "mem://localhost/actflow/queue",
		MaxRetries: 3,
	}
}

// Queue implements a filesystem-based messaging.Queue. Messages are consumed
// in publish order.
type Queue[T any] struct {
	fs            afs.Service
	config        QueueConfig
	pendingDir    string
	processingDir string
	completedDir  string
	dlqDir        string
	sequence      uint64
	mu            sync.Mutex
}

// NewQueue creates a new filesystem-based queue
func NewQueue[T any](ctx context.Context, fs afs.Service, config QueueConfig) (*Queue[T], error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("queue base URL was empty")
	}
	q := &Queue[T]{
		fs:            fs,
		config:        config,
		pendingDir:    path.Join(config.BaseURL, "pending"),
		processingDir: path.Join(config.BaseURL, "processing"),
		completedDir:  path.Join(config.BaseURL, "completed"),
		dlqDir:        path.Join(config.BaseURL, "dlq"),
	}
	for _, dir := range []string{q.pendingDir, q.processingDir, q.completedDir, q.dlqDir} {
		if exists, _ := fs.Exists(ctx, dir); exists {
			continue
		}
		if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return q, nil
}

// Publish writes a new message to the pending directory
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	now := clock.Now()
	message := &Message[T]{ID: idgen.New(), Data: *t, State: MessageStatePending, CreatedAt: now, UpdatedAt: now}
	seq := atomic.AddUint64(&q.sequence, 1)
	message.name = fmt.Sprintf("%020d-%06d-%s.json", now.UnixNano(), seq%1000000, message.ID)
	return q.write(ctx, path.Join(q.pendingDir, message.name), message)
}

// Consume moves the oldest pending message to processing and returns it. It
// returns nil when no message is pending.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	objects, err := q.list(ctx, q.pendingDir)
	if err != nil || len(objects) == 0 {
		return nil, err
	}
	obj := objects[0]
	message, err := q.read(ctx, obj.URL())
	if err != nil {
		_ = q.fs.Move(ctx, obj.URL(), path.Join(q.dlqDir, "invalid-"+obj.Name()))
		return nil, err
	}
	message.name = obj.Name()
	message.queue = q
	message.State = MessageStateProcessing
	message.UpdatedAt = clock.Now()
	if err = q.write(ctx, path.Join(q.processingDir, message.name), message); err != nil {
		return nil, err
	}
	if err = q.fs.Delete(ctx, obj.URL()); err != nil {
		return nil, fmt.Errorf("failed to delete pending message %v: %w", obj.Name(), err)
	}
	return message, nil
}

// Len returns the number of messages in dir: pending, processing, completed or dlq.
func (q *Queue[T]) Len(ctx context.Context, state MessageState) (int, error) {
	dir := q.pendingDir
	switch state {
	case MessageStateProcessing:
		dir = q.processingDir
	case MessageStateCompleted:
		dir = q.completedDir
	case MessageStateFailed:
		dir = q.dlqDir
	}
	objects, err := q.list(ctx, dir)
	return len(objects), err
}

func (q *Queue[T]) settle(ctx context.Context, m *Message[T], dir string, keep bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if keep {
		if err := q.write(ctx, path.Join(dir, m.name), m); err != nil {
			return err
		}
	}
	processing := path.Join(q.processingDir, m.name)
	if exists, _ := q.fs.Exists(ctx, processing); exists {
		if err := q.fs.Delete(ctx, processing); err != nil {
			return fmt.Errorf("failed to delete processing message %v: %w", m.name, err)
		}
	}
	return nil
}

func (q *Queue[T]) list(ctx context.Context, dir string) ([]storage.Object, error) {
	objects, err := q.fs.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %v: %w", dir, err)
	}
	var ret []storage.Object
	for _, obj := range objects {
		if !obj.IsDir() && strings.HasSuffix(obj.Name(), ".json") {
			ret = append(ret, obj)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Name() < ret[j].Name() })
	return ret, nil
}

func (q *Queue[T]) write(ctx context.Context, URL string, message *Message[T]) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message %v: %w", message.ID, err)
	}
	return q.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data))
}

func (q *Queue[T]) read(ctx context.Context, URL string) (*Message[T], error) {
	data, err := q.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", URL, err)
	}
	message := &Message[T]{}
	if err = json.Unmarshal(data, message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message %s: %w", URL, err)
	}
	return message, nil
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
