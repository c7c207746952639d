// Package fs implements a filesystem-backed queue on top of viant/afs. Each
// message lives as a JSON envelope in a state directory (pending, processing,
// archive, dlq); publishing writes to pending, consuming moves the oldest
// envelope to processing, Ack archives it and Nack either requeues it or
// parks it on the dead letter directory once the retry budget is spent.
// It is used to persist scheduler lifecycle events across process restarts.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"

	"github.com/runlet/runlet/internal/clock"
	"github.com/runlet/runlet/internal/idgen"
	"github.com/runlet/runlet/service/messaging"
)

// Config holds configuration for the filesystem queue.
type Config struct {
	// BaseURL is the afs location holding the queue state directories.
	BaseURL string

	// MaxRetries is the number of redeliveries before a message is parked
	// on the dead letter directory.
	MaxRetries int
}

// DefaultConfig returns a default queue configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:    "/tmp/runlet/queue",
		MaxRetries: 3,
	}
}

// envelope is the serialised form of a queued message.
type envelope[T any] struct {
	ID        string    `json:"id"`
	Data      T         `json:"data"`
	Retries   int       `json:"retries"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message implements messaging.Message for the filesystem queue.
type Message[T any] struct {
	envelope[T]
	queue   *Queue[T]
	mu      sync.Mutex
	settled bool
}

// T returns the message payload.
func (m *Message[T]) T() *T {
	return &m.Data
}

// Ack archives the message.
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settled {
		return fmt.Errorf("message %s already settled", m.ID)
	}
	m.settled = true
	m.UpdatedAt = clock.Now()
	return m.queue.settle(context.Background(), m, m.queue.archiveDir)
}

// Nack requeues the message for redelivery, or parks it on the dead letter
// directory once the retry budget is exhausted.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settled {
		return fmt.Errorf("message %s already settled", m.ID)
	}
	m.settled = true
	m.Retries++
	m.UpdatedAt = clock.Now()
	dest := m.queue.pendingDir
	if m.Retries > m.queue.config.MaxRetries {
		dest = m.queue.dlqDir
	}
	return m.queue.settle(context.Background(), m, dest)
}

// Queue implements a filesystem-based messaging.Queue.
type Queue[T any] struct {
	fs            afs.Service
	config        Config
	pendingDir    string
	processingDir string
	archiveDir    string
	dlqDir        string
	mu            sync.Mutex
}

// NewQueue creates a filesystem-backed queue rooted at config.BaseURL.
func NewQueue[T any](fs afs.Service, config Config) (*Queue[T], error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	q := &Queue[T]{
		fs:            fs,
		config:        config,
		pendingDir:    path.Join(config.BaseURL, "pending"),
		processingDir: path.Join(config.BaseURL, "processing"),
		archiveDir:    path.Join(config.BaseURL, "archive"),
		dlqDir:        path.Join(config.BaseURL, "dlq"),
	}
	ctx := context.Background()
	for _, dir := range []string{q.pendingDir, q.processingDir, q.archiveDir, q.dlqDir} {
		if exists, _ := fs.Exists(ctx, dir); exists {
			continue
		}
		if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return q, nil
}

// Publish writes a new envelope into the pending directory. The filename
// embeds the creation timestamp so that listing yields oldest-first order.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	now := clock.Now()
	env := envelope[T]{
		ID:        idgen.New(),
		Data:      *t,
		CreatedAt: now,
		UpdatedAt: now,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	name := fmt.Sprintf("%020d-%s.json", now.UnixNano(), env.ID)
	return q.upload(ctx, path.Join(q.pendingDir, name), data)
}

// Consume retrieves the oldest pending envelope, moving it into the
// processing directory. It returns nil when the queue is empty.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	objects, err := q.fs.List(ctx, q.pendingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending messages: %w", err)
	}
	var oldest storage.Object
	for _, candidate := range objects {
		if candidate.IsDir() || !strings.HasSuffix(candidate.Name(), ".json") {
			continue
		}
		if oldest == nil || candidate.Name() < oldest.Name() {
			oldest = candidate
		}
	}
	if oldest == nil {
		return nil, nil
	}

	data, err := q.fs.DownloadWithURL(ctx, oldest.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", oldest.URL(), err)
	}
	var env envelope[T]
	if err := json.Unmarshal(data, &env); err != nil {
		// Corrupt envelope: park it so the queue can make progress.
		_ = q.fs.Move(ctx, oldest.URL(), path.Join(q.dlqDir, "invalid-"+oldest.Name()))
		return nil, fmt.Errorf("failed to decode message %s: %w", oldest.URL(), err)
	}

	if err := q.upload(ctx, path.Join(q.processingDir, oldest.Name()), data); err != nil {
		return nil, fmt.Errorf("failed to move message to processing: %w", err)
	}
	if err := q.fs.Delete(ctx, oldest.URL()); err != nil {
		return nil, fmt.Errorf("failed to delete pending message: %w", err)
	}
	return &Message[T]{envelope: env, queue: q}, nil
}

// settle moves a processing envelope to its final directory.
func (q *Queue[T]) settle(ctx context.Context, m *Message[T], destDir string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	data, err := json.Marshal(m.envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	name := fmt.Sprintf("%020d-%s.json", m.CreatedAt.UnixNano(), m.ID)
	if err := q.upload(ctx, path.Join(destDir, name), data); err != nil {
		return fmt.Errorf("failed to settle message %s: %w", m.ID, err)
	}
	processing := path.Join(q.processingDir, name)
	if exists, _ := q.fs.Exists(ctx, processing); exists {
		if err := q.fs.Delete(ctx, processing); err != nil {
			return fmt.Errorf("failed to delete processing message %s: %w", m.ID, err)
		}
	}
	return nil
}

func (q *Queue[T]) upload(ctx context.Context, location string, data []byte) error {
	return q.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewBuffer(data))
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
