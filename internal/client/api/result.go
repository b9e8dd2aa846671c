package api

import "errors"

// Result is either a value or a classified error, never both.
type Result[T any] struct {
	value T
	err   *Error
}

func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

func Err[T any](kind ErrorKind, message string) Result[T] {
	return Result[T]{err: &Error{Kind: kind, Message: message}}
}

// Wrap turns a (value, error) pair into a Result. Errors that are not
// server errors are classified as KindUnknown.
func Wrap[T any](v T, err error) Result[T] {
	if err == nil {
		return Ok(v)
	}
	var e *Error
	if errors.As(err, &e) {
		return Result[T]{err: e}
	}
	return Result[T]{err: &Error{Kind: KindUnknown, Message: err.Error()}}
}

func (r Result[T]) IsOk() bool {
	return r.err == nil
}

// Value returns the value and whether the result is Ok.
func (r Result[T]) Value() (T, bool) {
	return r.value, r.err == nil
}

// Err returns the error of a failed result, nil otherwise.
func (r Result[T]) Err() *Error {
	return r.err
}

// Kind is KindUnknown for Ok results too; check IsOk first.
func (r Result[T]) Kind() ErrorKind {
	if r.err == nil {
		return KindUnknown
	}
	return r.err.Kind
}
