package task

import "errors"

var (
	// ErrPollPanic wraps a panic raised by a future during poll. The task is
	// completed with this error instead of crashing the worker.
	ErrPollPanic = errors.New("future panicked during poll")
)
