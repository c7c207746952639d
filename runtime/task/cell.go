// Package task implements the unit of scheduling: a cell combining a future,
// its atomic lifecycle state and the wakers bound to it. The cell's state
// machine is what guarantees a task is never polled concurrently, never
// misses a wake that races with an in-flight poll, and never schedules more
// than one re-poll for any number of such wakes.
package task

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"github.com/runlet/runlet/future"
)

// Lifecycle states. Only Completed is installed with a plain store; every
// other transition is a CAS so that no wake or poll outcome can be lost.
const (
	// stateIdle - parked, waiting for a wake; nobody holds the poll right.
	stateIdle int32 = iota
	// statePolling - a poll job is queued or running; wakes must not enqueue.
	statePolling
	// statePollingDirty - a wake arrived while polling; the worker finishing
	// the poll owns exactly one re-enqueue on behalf of all such wakes.
	statePollingDirty
	// stateCompleted - terminal; the future has been dropped.
	stateCompleted
)

// ScheduleFunc enqueues a poll job for the cell on the worker pool. It is
// installed by the scheduler at cell creation and must not block on the
// task's own progress.
type ScheduleFunc func(*Cell)

// Cell is the shared unit of scheduling for one submitted future.
type Cell struct {
	id       string
	state    atomic.Int32
	polls    atomic.Int64
	future   future.Future
	handle   *Handle
	schedule ScheduleFunc
}

// NewCell wraps a future into a cell in the Idle state. The first call to
// Wake moves it to Polling and enqueues the initial poll job.
func NewCell(id string, f future.Future, schedule ScheduleFunc) *Cell {
	return &Cell{
		id:       id,
		future:   f,
		handle:   newHandle(id),
		schedule: schedule,
	}
}

// ID returns the task identifier.
func (c *Cell) ID() string {
	return c.id
}

// Handle returns the completion handle for this task.
func (c *Cell) Handle() *Handle {
	return c.handle
}

// Completed reports whether the task reached its terminal state.
func (c *Cell) Completed() bool {
	return c.state.Load() == stateCompleted
}

// Polls returns how many times the future has been polled so far.
func (c *Cell) Polls() int64 {
	return c.polls.Load()
}

// Wake signals that the task may be able to make progress. It never blocks,
// is safe from any goroutine and is a no-op once the task completed. A wake
// that races with an in-flight poll is recorded so the polling worker
// re-enqueues the task instead of parking it.
func (c *Cell) Wake() {
	for {
		switch c.state.Load() {
		case stateIdle:
			if c.state.CompareAndSwap(stateIdle, statePolling) {
				c.schedule(c)
				return
			}
		case statePolling:
			if c.state.CompareAndSwap(statePolling, statePollingDirty) {
				return
			}
		case statePollingDirty, stateCompleted:
			return
		}
	}
}

// RunPoll executes one poll of the future. It must only be called by the
// worker that owns the Polling state, i.e. from the job enqueued via the
// cell's ScheduleFunc.
func (c *Cell) RunPoll(ctx context.Context) {
	result := c.pollOnce(ctx)
	if result.Ready() {
		c.complete(result.Value(), result.Err())
		return
	}
	// Pending: park the task unless a wake arrived while we were polling.
	if c.state.CompareAndSwap(statePolling, stateIdle) {
		return
	}
	// The state moved to PollingDirty under us; collapse every wake that
	// arrived during this poll into a single re-poll.
	if c.state.CompareAndSwap(statePollingDirty, statePolling) {
		c.schedule(c)
	}
}

// pollOnce invokes the future with a fresh waker, converting a panic into a
// failed result so the cell still reaches its terminal state and is never
// left wedged in Polling.
func (c *Cell) pollOnce(ctx context.Context) (result future.Result) {
	c.polls.Add(1)
	defer func() {
		if r := recover(); r != nil {
			result = future.Failed(fmt.Errorf("%w: %v\n%s", ErrPollPanic, r, debug.Stack()))
		}
	}()
	return c.future.Poll(ctx, newWaker(c))
}

// complete transitions the cell to its terminal state, drops the future and
// delivers the result. Exactly one party reaches this point: the worker that
// observed the future ready (or panicking).
func (c *Cell) complete(value interface{}, err error) {
	c.future = nil
	c.state.Store(stateCompleted)
	c.handle.complete(value, err)
}
