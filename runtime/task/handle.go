package task

import "context"

// Handle delivers the result of a submitted task. It is the scheduler's
// counterpart to the future's completion: the poll loop completes the handle
// exactly once, when the cell reaches its terminal state.
type Handle struct {
	id    string
	done  chan struct{}
	value interface{}
	err   error
}

func newHandle(id string) *Handle {
	return &Handle{
		id:   id,
		done: make(chan struct{}),
	}
}

// ID returns the task identifier.
func (h *Handle) ID() string {
	return h.id
}

// Done returns a channel closed when the task completes.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the task completes or ctx is done.
func (h *Handle) Wait(ctx context.Context) (interface{}, error) {
	select {
	case <-h.done:
		return h.value, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Value returns the completion value. Valid only after Done is closed.
func (h *Handle) Value() interface{} {
	return h.value
}

// Err returns the completion error. Valid only after Done is closed.
func (h *Handle) Err() error {
	return h.err
}

// complete records the outcome and releases waiters. The cell's state
// machine guarantees a single caller.
func (h *Handle) complete(value interface{}, err error) {
	h.value = value
	h.err = err
	close(h.done)
}
