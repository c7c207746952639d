// Package future defines the unit of work driven by the scheduler: a
// polymorphic computation that is advanced step-wise via Poll. A poll either
// completes the computation or reports it is still pending, in which case the
// future must have arranged for the supplied Waker to be invoked once it can
// make progress again.
package future

import "context"

// Waker notifies the scheduler that a pending task may be able to make
// progress. Implementations are safe to call from any goroutine, any number
// of times, and after the owning task has completed.
type Waker interface {
	Wake()
}

// Future represents one submitted unit of asynchronous work.
type Future interface {
	// Poll advances the computation. When the returned Result is not ready
	// the future MUST have registered wake (or a clone of it) as the
	// mechanism by which it will be notified later; returning Pending
	// without doing so leaves the task parked forever.
	//
	// Poll is never invoked concurrently for the same future; the scheduler
	// enforces the single-poller invariant.
	Poll(ctx context.Context, wake Waker) Result
}

// Result is the outcome of a single poll.
type Result struct {
	ready bool
	value interface{}
	err   error
}

// Pending reports the future is not ready yet.
func Pending() Result {
	return Result{}
}

// ReadyOf completes the future with the given value.
func ReadyOf(value interface{}) Result {
	return Result{ready: true, value: value}
}

// Failed completes the future with an error.
func Failed(err error) Result {
	return Result{ready: true, err: err}
}

// Ready reports whether the future completed (with a value or an error).
func (r Result) Ready() bool {
	return r.ready
}

// Value returns the completion value; meaningful only when Ready.
func (r Result) Value() interface{} {
	return r.value
}

// Err returns the completion error; meaningful only when Ready.
func (r Result) Err() error {
	return r.err
}
