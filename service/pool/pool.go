// Package pool provides the fixed-size worker pool the scheduler runs poll
// jobs on. It exposes exactly two primitives: FIFO submission of a single
// job, and a broadcast executed once on every worker (used at startup to
// install the runtime context for the worker's lifetime). The pool holds no
// task-specific state.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned when submitting to a pool that has been shut down.
var ErrClosed = errors.New("worker pool is closed")

// Job is a unit of work executed on a worker. The context is the worker's
// base context, as shaped by any broadcast installation.
type Job func(ctx context.Context)

// Config represents worker pool configuration.
type Config struct {
	// WorkerCount is the number of workers executing jobs.
	WorkerCount int `json:"workers" yaml:"workers"`

	// QueueSize is the initial capacity of the FIFO job queue. The queue
	// grows beyond it; submission never blocks, so a worker re-enqueueing
	// from inside a job cannot deadlock the pool.
	QueueSize int `json:"queueSize" yaml:"queueSize"`
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		WorkerCount: 4,
		QueueSize:   256,
	}
}

// Pool is a fixed-size worker pool with a shared FIFO queue. Jobs are
// started in submission order; no completion order is guaranteed.
type Pool struct {
	config     Config
	mu         sync.Mutex
	queue      []Job
	signal     chan struct{}
	workers    []*worker
	workerWg   sync.WaitGroup
	shutdownCh chan struct{}
	once       sync.Once
}

type worker struct {
	id         int
	pool       *Pool
	ctx        context.Context
	cancelFn   context.CancelFunc
	base       context.Context
	broadcasts chan func(*worker)
}

// New creates a worker pool. It fails when the worker count is not positive;
// a zero-worker pool is a caller error, not a recoverable condition.
func New(config Config) (*Pool, error) {
	if config.WorkerCount <= 0 {
		return nil, fmt.Errorf("worker count must be positive, got %d", config.WorkerCount)
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}
	return &Pool{
		config:     config,
		queue:      make([]Job, 0, config.QueueSize),
		signal:     make(chan struct{}, config.WorkerCount),
		shutdownCh: make(chan struct{}),
	}, nil
}

// Start launches the worker goroutines.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.config.WorkerCount; i++ {
		workerCtx, cancel := context.WithCancel(ctx)
		w := &worker{
			id:         i,
			pool:       p,
			ctx:        workerCtx,
			cancelFn:   cancel,
			base:       workerCtx,
			broadcasts: make(chan func(*worker), 1),
		}
		p.workers = append(p.workers, w)
		p.workerWg.Add(1)
		go w.run()
	}
}

// run drains the FIFO queue, parking on the signal channel when it is empty.
func (w *worker) run() {
	defer w.pool.workerWg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}
		if job := w.pool.dequeue(); job != nil {
			job(w.base)
			continue
		}
		select {
		case <-w.ctx.Done():
			return
		case fn := <-w.broadcasts:
			fn(w)
		case <-w.pool.signal:
		}
	}
}

// dequeue pops the oldest queued job or nil when the queue is empty.
func (p *Pool) dequeue() Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return nil
	}
	job := p.queue[0]
	p.queue = p.queue[1:]
	return job
}

// SpawnFIFO submits a single job, FIFO relative to other SpawnFIFO calls.
// It never blocks, which keeps re-enqueueing from inside a running job safe.
func (p *Pool) SpawnFIFO(job Job) error {
	if job == nil {
		return fmt.Errorf("job cannot be nil")
	}
	select {
	case <-p.shutdownCh:
		return ErrClosed
	default:
	}
	p.mu.Lock()
	p.queue = append(p.queue, job)
	p.mu.Unlock()
	select {
	case p.signal <- struct{}{}:
	default:
	}
	return nil
}

// Broadcast runs fn once on every worker goroutine and waits until all have
// executed it. The context fn returns replaces the worker's base context for
// the rest of the worker's lifetime; returning the given context unchanged
// keeps it as is. Intended to be called once, at startup, before any job is
// submitted.
func (p *Pool) Broadcast(fn func(worker int, ctx context.Context) context.Context) error {
	if fn == nil {
		return fmt.Errorf("broadcast closure cannot be nil")
	}
	var wg sync.WaitGroup
	wg.Add(len(p.workers))
	for _, w := range p.workers {
		install := func(w *worker) {
			defer wg.Done()
			if next := fn(w.id, w.base); next != nil {
				w.base = next
			}
		}
		select {
		case w.broadcasts <- install:
		case <-p.shutdownCh:
			return ErrClosed
		}
	}
	wg.Wait()
	return nil
}

// WorkerCount returns the number of workers.
func (p *Pool) WorkerCount() int {
	return p.config.WorkerCount
}

// QueuedJobs returns the number of jobs waiting to be started.
func (p *Pool) QueuedJobs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Shutdown stops the pool and waits for workers to exit. In-flight jobs
// finish; queued jobs that have not started are discarded.
func (p *Pool) Shutdown() {
	p.once.Do(func() {
		close(p.shutdownCh)
	})
	for _, w := range p.workers {
		w.cancelFn()
	}
	p.workerWg.Wait()
}
