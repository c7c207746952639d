package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runlet/runlet/future"
)

// recorder collects enqueue requests so tests can drive the poll loop
// deterministically, standing in for the worker pool.
type recorder struct {
	mu    sync.Mutex
	cells []*Cell
}

func (r *recorder) schedule(c *Cell) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cells = append(r.cells, c)
}

func (r *recorder) next() *Cell {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.cells) == 0 {
		return nil
	}
	c := r.cells[0]
	r.cells = r.cells[1:]
	return c
}

func (r *recorder) scheduled() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cells)
}

func TestCell_SubmitEnqueuesExactlyOnce(t *testing.T) {
	rec := &recorder{}
	cell := NewCell("t1", future.ResolvedOf("done"), rec.schedule)

	cell.Wake()
	assert.Equal(t, 1, rec.scheduled())

	// A second wake while the poll job is queued must coalesce.
	cell.Wake()
	assert.Equal(t, 1, rec.scheduled())
}

func TestCell_CompletesAndDeliversValue(t *testing.T) {
	rec := &recorder{}
	cell := NewCell("t1", future.ResolvedOf(42), rec.schedule)
	cell.Wake()

	rec.next().RunPoll(context.Background())
	require.True(t, cell.Completed())

	value, err := cell.Handle().Wait(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestCell_WakeAfterCompletionIsNoOp(t *testing.T) {
	rec := &recorder{}
	var captured future.Waker
	cell := NewCell("t1", future.Fn(func(ctx context.Context, wake future.Waker) future.Result {
		captured = wake
		return future.ReadyOf(nil)
	}), rec.schedule)
	cell.Wake()
	rec.next().RunPoll(context.Background())
	require.True(t, cell.Completed())

	cell.Wake()
	captured.Wake()
	assert.Equal(t, 0, rec.scheduled())
}

func TestCell_NoLostWakeup(t *testing.T) {
	rec := &recorder{}
	polls := 0
	var captured *Waker
	cell := NewCell("t1", future.Fn(func(ctx context.Context, wake future.Waker) future.Result {
		polls++
		captured = wake.(*Waker)
		if polls == 1 {
			// Simulate a wake racing with this poll: it must be remembered,
			// not dropped, even though the task is mid-poll.
			wake.Wake()
			return future.Pending()
		}
		return future.ReadyOf(nil)
	}), rec.schedule)
	cell.Wake()

	rec.next().RunPoll(context.Background())
	// The in-poll wake obliges the finishing worker to re-enqueue.
	require.Equal(t, 1, rec.scheduled())

	rec.next().RunPoll(context.Background())
	assert.Equal(t, 2, polls)
	assert.True(t, cell.Completed())
	assert.NotNil(t, captured)
}

// Pending twice then ready, with two wakes arriving while the second poll is
// still executing: exactly three polls in total, the two racing wakes
// coalescing into a single re-poll.
func TestCell_WakesDuringPollCoalesce(t *testing.T) {
	rec := &recorder{}
	var polls atomic.Int32
	var wakerMu sync.Mutex
	var captured *Waker
	entered := make(chan struct{})
	release := make(chan struct{})

	cell := NewCell("t1", future.Fn(func(ctx context.Context, wake future.Waker) future.Result {
		n := polls.Add(1)
		wakerMu.Lock()
		captured = wake.(*Waker)
		wakerMu.Unlock()
		switch n {
		case 1:
			return future.Pending()
		case 2:
			entered <- struct{}{}
			<-release
			return future.Pending()
		default:
			return future.ReadyOf("done")
		}
	}), rec.schedule)

	cell.Wake()
	rec.next().RunPoll(context.Background()) // poll 1: pending, parks

	wakerMu.Lock()
	w := captured
	wakerMu.Unlock()
	w.Wake() // Idle -> Polling, enqueues poll 2
	require.Equal(t, 1, rec.scheduled())

	done := make(chan struct{})
	go func() {
		rec.next().RunPoll(context.Background())
		close(done)
	}()

	<-entered
	// Two wakes while poll 2 is executing: Polling -> PollingDirty, then
	// idempotent. Neither enqueues.
	w.Wake()
	w.Clone().Wake()
	assert.Equal(t, 0, rec.scheduled())
	close(release)
	<-done

	// The worker that finished poll 2 owns the single re-enqueue.
	require.Equal(t, 1, rec.scheduled())
	rec.next().RunPoll(context.Background())

	assert.Equal(t, int32(3), polls.Load())
	assert.True(t, cell.Completed())

	value, err := cell.Handle().Wait(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "done", value)
}

func TestCell_PanicDuringPollFailsTask(t *testing.T) {
	rec := &recorder{}
	cell := NewCell("t1", future.Fn(func(ctx context.Context, wake future.Waker) future.Result {
		panic("boom")
	}), rec.schedule)
	cell.Wake()
	rec.next().RunPoll(context.Background())

	require.True(t, cell.Completed())
	_, err := cell.Handle().Wait(context.Background())
	assert.True(t, errors.Is(err, ErrPollPanic))
	assert.Contains(t, err.Error(), "boom")

	// The terminal state holds: no further polls can be provoked.
	cell.Wake()
	assert.Equal(t, 0, rec.scheduled())
}

func TestCell_ConcurrentWakesEnqueueOnce(t *testing.T) {
	rec := &recorder{}
	pended := false
	var captured *Waker
	cell := NewCell("t1", future.Fn(func(ctx context.Context, wake future.Waker) future.Result {
		captured = wake.(*Waker)
		if !pended {
			pended = true
			return future.Pending()
		}
		return future.ReadyOf(nil)
	}), rec.schedule)
	cell.Wake()
	rec.next().RunPoll(context.Background()) // parked Idle

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			captured.Wake()
		}()
	}
	wg.Wait()

	// However many wakes raced, the task is scheduled exactly once.
	assert.Equal(t, 1, rec.scheduled())
	rec.next().RunPoll(context.Background())
	assert.True(t, cell.Completed())
}

func TestHandle_WaitHonoursContext(t *testing.T) {
	rec := &recorder{}
	cell := NewCell("t1", future.Fn(func(ctx context.Context, wake future.Waker) future.Result {
		return future.Pending()
	}), rec.schedule)
	cell.Wake()
	rec.next().RunPoll(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := cell.Handle().Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
