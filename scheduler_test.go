package runlet_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runlet/runlet"
	"github.com/runlet/runlet/future"
	"github.com/runlet/runlet/runtime/task"
	"github.com/runlet/runlet/schedctx"
	"github.com/runlet/runlet/service/event"
	"github.com/runlet/runlet/service/messaging"
)

func TestNew_Validation(t *testing.T) {
	testCases := []struct {
		name     string
		contexts *schedctx.Manager
		workers  int
	}{
		{name: "zero workers", contexts: schedctx.New(), workers: 0},
		{name: "negative workers", contexts: schedctx.New(), workers: -2},
		{name: "nil context manager", contexts: nil, workers: 4},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := runlet.New(tc.contexts, tc.workers)
			assert.Error(t, err)
		})
	}
}

func TestScheduler_SubmitResolved(t *testing.T) {
	sched, err := runlet.New(schedctx.New(), 2)
	require.NoError(t, err)
	defer sched.Shutdown(context.Background())

	handle, err := sched.Submit(context.Background(), future.ResolvedOf("hello"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	value, err := handle.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", value)
}

func TestScheduler_SubmitNilFuture(t *testing.T) {
	sched, err := runlet.New(schedctx.New(), 1)
	require.NoError(t, err)
	defer sched.Shutdown(context.Background())

	_, err = sched.Submit(context.Background(), nil)
	assert.Error(t, err)
}

// selfWaking completes after one pending step triggered by an immediate
// self-wake, recording overlap of poll calls for its own task.
type selfWaking struct {
	polls     atomic.Int32
	inPoll    atomic.Int32
	overlaps  *atomic.Int32
	completed atomic.Bool
}

func (f *selfWaking) Poll(ctx context.Context, wake future.Waker) future.Result {
	if f.inPoll.Add(1) > 1 {
		f.overlaps.Add(1)
	}
	defer f.inPoll.Add(-1)

	if f.polls.Add(1) == 1 {
		wake.Wake()
		return future.Pending()
	}
	f.completed.Store(true)
	return future.ReadyOf(nil)
}

func TestScheduler_SelfWakingLoad(t *testing.T) {
	sched, err := runlet.New(schedctx.New(), 4, runlet.WithQueueCapacity(2048))
	require.NoError(t, err)
	defer sched.Shutdown(context.Background())

	var overlaps atomic.Int32
	const tasks = 1000
	handles := make([]*task.Handle, 0, tasks)
	for i := 0; i < tasks; i++ {
		handle, err := sched.Submit(context.Background(), &selfWaking{overlaps: &overlaps})
		require.NoError(t, err)
		handles = append(handles, handle)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, handle := range handles {
		_, err := handle.Wait(ctx)
		require.NoError(t, err)
	}

	// The single-poller invariant: no task ever observed its own poll
	// running concurrently.
	assert.Equal(t, int32(0), overlaps.Load())
}

func TestScheduler_PanicDoesNotWedgeWorkers(t *testing.T) {
	sched, err := runlet.New(schedctx.New(), 2)
	require.NoError(t, err)
	defer sched.Shutdown(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	handle, err := sched.Submit(ctx, future.Fn(func(ctx context.Context, wake future.Waker) future.Result {
		panic("user code exploded")
	}))
	require.NoError(t, err)
	_, err = handle.Wait(ctx)
	assert.True(t, errors.Is(err, task.ErrPollPanic))

	// The scheduler keeps working after a task panicked.
	handle, err = sched.Submit(ctx, future.ResolvedOf("still alive"))
	require.NoError(t, err)
	value, err := handle.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "still alive", value)
}

func TestScheduler_WakeAfterCompletionIsNoOp(t *testing.T) {
	sched, err := runlet.New(schedctx.New(), 1)
	require.NoError(t, err)
	defer sched.Shutdown(context.Background())

	var polls atomic.Int32
	var mu sync.Mutex
	var captured future.Waker
	handle, err := sched.Submit(context.Background(), future.Fn(func(ctx context.Context, wake future.Waker) future.Result {
		polls.Add(1)
		mu.Lock()
		captured = wake
		mu.Unlock()
		return future.ReadyOf(nil)
	}))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = handle.Wait(ctx)
	require.NoError(t, err)

	mu.Lock()
	w := captured
	mu.Unlock()
	w.Wake()
	w.Wake()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), polls.Load())
}

func TestScheduler_WorkersObserveRuntimeContext(t *testing.T) {
	sched, err := runlet.New(schedctx.New(), 2)
	require.NoError(t, err)
	defer sched.Shutdown(context.Background())

	var observed atomic.Value
	handle, err := sched.Submit(context.Background(), future.Fn(func(ctx context.Context, wake future.Waker) future.Result {
		observed.Store(schedctx.FromContext(ctx) != nil)
		return future.ReadyOf(nil)
	}))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = handle.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, true, observed.Load())
}

func TestScheduler_SubtaskSpawnedFromPoll(t *testing.T) {
	sched, err := runlet.New(schedctx.New(), 2)
	require.NoError(t, err)
	defer sched.Shutdown(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// A future that uses the installed runtime context to spawn a sub-task.
	handle, err := sched.Submit(ctx, future.Fn(func(ctx context.Context, wake future.Waker) future.Result {
		rt := schedctx.FromContext(ctx)
		if rt == nil {
			return future.Failed(errors.New("no runtime installed"))
		}
		sub, err := rt.Submit(ctx, future.ResolvedOf("child"))
		if err != nil {
			return future.Failed(err)
		}
		return future.ReadyOf(sub)
	}))
	require.NoError(t, err)

	value, err := handle.Wait(ctx)
	require.NoError(t, err)
	sub, ok := value.(*task.Handle)
	require.True(t, ok)

	childValue, err := sub.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "child", childValue)
}

func TestScheduler_PublishesLifecycleEvents(t *testing.T) {
	events, err := event.New(messaging.VendorMemory)
	require.NoError(t, err)

	sched, err := runlet.New(schedctx.New(), 1, runlet.WithEventService(events))
	require.NoError(t, err)
	defer sched.Shutdown(context.Background())

	var mu sync.Mutex
	var kinds []event.Kind
	events.SetListener(func(e *event.Event) {
		mu.Lock()
		kinds = append(kinds, e.Kind)
		mu.Unlock()
	})

	handle, err := sched.Submit(context.Background(), future.ResolvedOf(nil))
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = handle.Wait(ctx)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(kinds) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []event.Kind{event.KindSubmitted, event.KindCompleted}, kinds)
}

func TestScheduler_EventServiceFromConfig(t *testing.T) {
	config := runlet.DefaultConfig()
	config.Events.Vendor = messaging.VendorMemory

	sched, err := runlet.New(schedctx.New(), 1, runlet.WithConfig(config))
	require.NoError(t, err)
	defer sched.Shutdown(context.Background())

	events := sched.Events()
	require.NotNil(t, events)

	var mu sync.Mutex
	var kinds []event.Kind
	events.SetListener(func(e *event.Event) {
		mu.Lock()
		kinds = append(kinds, e.Kind)
		mu.Unlock()
	})

	handle, err := sched.Submit(context.Background(), future.ResolvedOf(nil))
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = handle.Wait(ctx)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(kinds) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []event.Kind{event.KindSubmitted, event.KindCompleted}, kinds)
}
