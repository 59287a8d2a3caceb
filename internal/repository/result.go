package repository

// Result holds either a value or the error that prevented producing it.
type Result[T any] struct {
	value T
	err   error
}

func Success[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Failure captures err as-is. A nil err still yields a failed result.
func Failure[T any](err error) Result[T] {
	if err == nil {
		err = errNilFailure
	}
	return Result[T]{err: err}
}

func (r Result[T]) IsSuccess() bool { return r.err == nil }

// Value returns the wrapped value and whether the result is a success.
func (r Result[T]) Value() (T, bool) { return r.value, r.err == nil }

func (r Result[T]) Err() error { return r.err }

// Get unwraps the result into Go's usual value, error pair.
func (r Result[T]) Get() (T, error) { return r.value, r.err }

// ValueOr returns the value on success and fallback otherwise.
func (r Result[T]) ValueOr(fallback T) T {
	if r.err != nil {
		return fallback
	}
	return r.value
}

func capture[T any](v T, err error) Result[T] {
	if err != nil {
		return Failure[T](err)
	}
	return Success(v)
}
