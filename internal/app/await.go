package app

import "context"

type result[T any] struct {
	val T
	err error
}

// async starts fn and hands its outcome back through a one-shot channel.
// The channel is buffered so an abandoned call never blocks its goroutine.
func async[T any](ctx context.Context, fn func(context.Context) (T, error)) <-chan result[T] {
	ch := make(chan result[T], 1)
	go func() {
		v, err := fn(ctx)
		ch <- result[T]{val: v, err: err}
	}()
	return ch
}

// await blocks until the call completes or ctx is done, whichever is first.
// A call that already finished wins over an expired context.
func await[T any](ctx context.Context, ch <-chan result[T]) (T, error) {
	select {
	case r := <-ch:
		return r.val, r.err
	default:
	}
	select {
	case r := <-ch:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
