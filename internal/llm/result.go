package llm

// Result is the outcome of a provider call. Exactly one of Value or Err is
// meaningful; callers branch on Ok instead of catching failures.
type Result[T any] struct {
	Value T
	Err   error
}

func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

func Err[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

func (r Result[T]) Ok() bool {
	return r.Err == nil
}
