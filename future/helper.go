package future

import "context"

// Fn adapts a plain function to the Future interface.
type Fn func(ctx context.Context, wake Waker) Result

// Poll invokes the function.
func (f Fn) Poll(ctx context.Context, wake Waker) Result {
	return f(ctx, wake)
}

// ResolvedOf returns a future that is ready on its first poll.
func ResolvedOf(value interface{}) Future {
	return Fn(func(ctx context.Context, wake Waker) Result {
		return ReadyOf(value)
	})
}

// FailedOf returns a future that fails on its first poll.
func FailedOf(err error) Future {
	return Fn(func(ctx context.Context, wake Waker) Result {
		return Failed(err)
	})
}
