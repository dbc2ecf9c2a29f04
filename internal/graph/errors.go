package graph

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrShapeMismatch = errors.New("shape mismatch")
	ErrNotContiguous = errors.New("tensor is not contiguous")
	ErrContextFull   = errors.New("context capacity exceeded")
	ErrStaleTensor   = errors.New("tensor belongs to a reset context")
	ErrClosed        = errors.New("context is closed")
	ErrNotComputed   = errors.New("tensor has not been computed")
)

// Error describes a failed graph-building operation.
//
// Graph ops panic with *Error on misuse; Try turns such panics into
// ordinary returned errors.
type Error struct {
	Op      string // Operation that failed (e.g., "mulmat", "reshape")
	Err     error  // Underlying sentinel error
	Details string // Additional details
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Err, e.Details)
}

// Unwrap returns the underlying sentinel error.
func (e *Error) Unwrap() error {
	return e.Err
}

func fail(op string, err error, format string, args ...any) {
	panic(&Error{Op: op, Err: err, Details: fmt.Sprintf(format, args...)})
}

// Try runs fn and converts a graph *Error panic into a returned error.
// Panics of any other kind propagate unchanged.
//
// Example:
//
//	out, err := graph.Try(func() *graph.Tensor {
//	    return w.Mulmat(ctx, x).Add(ctx, b)
//	})
func Try[T any](fn func() T) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			gerr, ok := r.(*Error)
			if !ok {
				panic(r)
			}
			var zero T
			result, err = zero, gerr
		}
	}()
	return fn(), nil
}
