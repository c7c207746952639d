// Package memory implements a channel-backed in-process queue with retry and
// dead-letter handling. It is the default transport for scheduler lifecycle
// events.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/runlet/runlet/internal/clock"
	"github.com/runlet/runlet/internal/idgen"
	"github.com/runlet/runlet/service/messaging"
)

// Config for the memory queue implementation.
type Config struct {
	MaxRetries  int
	RetryDelay  time.Duration
	DeadLetter  bool
	QueueBuffer int
}

// DefaultConfig returns a standard configuration for the memory queue.
func DefaultConfig() Config {
	return Config{
		MaxRetries:  3,
		RetryDelay:  100 * time.Millisecond,
		DeadLetter:  true,
		QueueBuffer: 128,
	}
}

// Message implements messaging.Message for the in-memory queue.
type Message[T any] struct {
	id        string
	payload   T
	queue     *Queue[T]
	attempts  int
	createdAt time.Time
	mu        sync.Mutex
	settled   bool
}

// T returns the message payload.
func (m *Message[T]) T() *T {
	return &m.payload
}

// Ack marks the message as processed.
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settled {
		return fmt.Errorf("message %s already settled", m.id)
	}
	m.settled = true
	return nil
}

// Nack reports a processing failure. The message is redelivered after the
// retry delay until the retry budget is exhausted, then parked on the dead
// letter queue when one is enabled.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settled {
		return fmt.Errorf("message %s already settled", m.id)
	}
	m.settled = true
	m.attempts++

	if m.attempts <= m.queue.config.MaxRetries {
		retry := &Message[T]{
			id:        m.id,
			payload:   m.payload,
			queue:     m.queue,
			attempts:  m.attempts,
			createdAt: clock.Now(),
		}
		time.AfterFunc(m.queue.config.RetryDelay, func() {
			select {
			case m.queue.messages <- retry:
			case <-m.queue.closed:
			}
		})
		return nil
	}
	if m.queue.config.DeadLetter {
		m.queue.dlqMu.Lock()
		m.queue.dlq = append(m.queue.dlq, m)
		m.queue.dlqMu.Unlock()
	}
	return nil
}

// Queue implements an in-memory messaging.Queue.
type Queue[T any] struct {
	config   Config
	messages chan *Message[T]
	closed   chan struct{}
	dlq      []*Message[T]
	dlqMu    sync.Mutex
	once     sync.Once
}

// NewQueue creates a new in-memory queue.
func NewQueue[T any](config Config) *Queue[T] {
	if config.QueueBuffer <= 0 {
		config.QueueBuffer = DefaultConfig().QueueBuffer
	}
	return &Queue[T]{
		config:   config,
		messages: make(chan *Message[T], config.QueueBuffer),
		closed:   make(chan struct{}),
	}
}

// Publish adds a new item to the queue.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	msg := &Message[T]{
		id:        idgen.New(),
		payload:   *t,
		queue:     q,
		createdAt: clock.Now(),
	}
	select {
	case q.messages <- msg:
		return nil
	case <-q.closed:
		return fmt.Errorf("queue is closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume retrieves a single item from the queue.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	select {
	case msg := <-q.messages:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Size returns the current number of messages in the queue.
func (q *Queue[T]) Size() int {
	return len(q.messages)
}

// DLQSize returns the number of messages on the dead letter queue.
func (q *Queue[T]) DLQSize() int {
	q.dlqMu.Lock()
	defer q.dlqMu.Unlock()
	return len(q.dlq)
}

// Close stops redelivery of nacked messages.
func (q *Queue[T]) Close() {
	q.once.Do(func() {
		close(q.closed)
	})
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
