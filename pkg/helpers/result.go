package helpers

import "context"

// Result is one item of a stream: a value, or the error that ended the stream.
type Result[T any] struct {
	value T
	err   error
}

func NewValueResult[T any](value T) Result[T] {
	return Result[T]{value: value}
}

func NewErrorResult[T any](err error) Result[T] {
	return Result[T]{err: err}
}

func (r Result[T]) Value() (T, error) {
	return r.value, r.err
}

func (r Result[T]) Err() error {
	return r.err
}

func (r Result[T]) Ok() bool {
	return r.err == nil
}

// SendResult delivers r on c unless ctx is done first. It reports whether r was delivered.
func SendResult[T any](ctx context.Context, c chan<- Result[T], r Result[T]) bool {
	select {
	case c <- r:
		return true
	case <-ctx.Done():
		return false
	}
}
