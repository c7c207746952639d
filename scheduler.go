package runlet

import (
	"context"
	"fmt"
	"log"

	"github.com/runlet/runlet/future"
	"github.com/runlet/runlet/internal/idgen"
	"github.com/runlet/runlet/runtime/task"
	"github.com/runlet/runlet/schedctx"
	"github.com/runlet/runlet/service/event"
	fsqueue "github.com/runlet/runlet/service/messaging/fs"
	"github.com/runlet/runlet/service/pool"
	"github.com/runlet/runlet/tracing"
)

// Scheduler drives submitted futures to completion across a fixed pool of
// workers. Per-task mutual exclusion, wake coalescing and loss-free wakeups
// are enforced by the task cell's state machine, not by any lock held across
// user code.
type Scheduler struct {
	config   *Config
	contexts *schedctx.Manager
	pool     *pool.Pool
	events   *event.Service
	cancelFn context.CancelFunc
}

// New constructs a scheduler with workerCount workers and broadcasts a
// one-time closure to every worker installing the runtime context for the
// worker's lifetime. When the configuration names an events vendor and no
// event service was supplied via WithEventService, the service is built from
// the configuration. It fails when workerCount is zero or the pool cannot be
// constructed; no partially constructed scheduler is ever returned.
func New(contexts *schedctx.Manager, workerCount int, opts ...Option) (*Scheduler, error) {
	if contexts == nil {
		return nil, fmt.Errorf("context manager is required")
	}
	s := &Scheduler{
		config:   DefaultConfig(),
		contexts: contexts,
	}
	s.config.Pool.WorkerCount = workerCount
	for _, opt := range opts {
		opt(s)
	}
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	if s.events == nil && s.config.Events.Vendor != "" {
		var eventOpts []event.Option
		if s.config.Events.BaseURL != "" {
			fsConfig := fsqueue.DefaultConfig()
			fsConfig.BaseURL = s.config.Events.BaseURL
			eventOpts = append(eventOpts, event.WithFSConfig(fsConfig))
		}
		events, err := event.New(s.config.Events.Vendor, eventOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create event service: %w", err)
		}
		s.events = events
	}
	workerPool, err := pool.New(s.config.Pool)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	s.pool = workerPool

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelFn = cancel
	s.pool.Start(ctx)
	if err := s.pool.Broadcast(func(worker int, ctx context.Context) context.Context {
		return s.contexts.Install(ctx, s)
	}); err != nil {
		s.pool.Shutdown()
		return nil, fmt.Errorf("failed to install runtime context: %w", err)
	}
	return s, nil
}

// Submit accepts a future, wraps it in a fresh task cell and enqueues its
// first poll job. It returns immediately; the handle delivers the result.
func (s *Scheduler) Submit(ctx context.Context, f future.Future) (handle *task.Handle, err error) {
	ctx, span := tracing.StartSpan(ctx, "scheduler.Submit", "PRODUCER")
	defer tracing.EndSpan(span, err)
	if f == nil {
		err = fmt.Errorf("future cannot be nil")
		return nil, err
	}
	cell := task.NewCell(idgen.New(), f, s.enqueue)
	span.WithAttributes(map[string]string{"task.id": cell.ID()})
	s.publish(ctx, event.NewEvent(cell.ID(), event.KindSubmitted))
	// (new) -> Polling, enqueueing the initial poll job.
	cell.Wake()
	return cell.Handle(), nil
}

// enqueue submits one poll job for the cell, FIFO relative to other poll
// jobs. The job may run on any worker; FIFO submission does not pin it to
// the submitting goroutine.
func (s *Scheduler) enqueue(cell *task.Cell) {
	err := s.pool.SpawnFIFO(func(ctx context.Context) {
		ctx, span := tracing.StartSpan(ctx, "scheduler.poll", "CONSUMER")
		span.WithAttributes(map[string]string{"task.id": cell.ID()})
		if cell.Polls() > 0 {
			s.publish(ctx, event.NewEvent(cell.ID(), event.KindRescheduled))
		}
		cell.RunPoll(ctx)
		tracing.EndSpan(span, nil)
		if cell.Completed() {
			kind := event.KindCompleted
			if cell.Handle().Err() != nil {
				kind = event.KindFailed
			}
			s.publish(ctx, event.NewEvent(cell.ID(), kind).WithError(cell.Handle().Err()))
		}
	})
	if err != nil {
		log.Printf("failed to enqueue poll for task %s: %v", cell.ID(), err)
	}
}

// publish emits a lifecycle event when an event service is attached.
func (s *Scheduler) publish(ctx context.Context, e *event.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publisher().Publish(ctx, e); err != nil {
		log.Printf("failed to publish %s event for task %s: %v", e.Kind, e.TaskID, err)
	}
}

// Events returns the attached event service or nil.
func (s *Scheduler) Events() *event.Service {
	return s.events
}

// WorkerCount returns the number of pool workers.
func (s *Scheduler) WorkerCount() int {
	return s.pool.WorkerCount()
}

// Shutdown stops the worker pool and waits for in-flight polls to finish.
// Tasks that have not completed are simply no longer scheduled.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.cancelFn()
	s.pool.Shutdown()
	if s.events != nil {
		s.events.Stop()
	}
	return nil
}

var _ schedctx.Runtime = (*Scheduler)(nil)
