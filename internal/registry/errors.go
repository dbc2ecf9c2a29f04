package registry

import (
	"errors"
	"fmt"

	"github.com/born-ml/unity/internal/graph"
)

// Common errors.
var (
	ErrKeyNotFound    = errors.New("parameter not found")
	ErrDuplicateKey   = errors.New("parameter already registered")
	ErrUndeclaredKey  = errors.New("parameter not declared by schema")
	ErrTooManyEntries = errors.New("too many parameters")
	ErrInvalidKey     = errors.New("invalid parameter key")

	// ErrShapeMismatch is graph.ErrShapeMismatch, so shape failures from the
	// registry and from graph ops match the same errors.Is target.
	ErrShapeMismatch = graph.ErrShapeMismatch
)

// KeyError reports a failure tied to one parameter key.
type KeyError struct {
	Key     string // Offending key, as written
	Err     error  // Underlying sentinel error
	Details string // Additional details
}

// Error implements the error interface.
func (e *KeyError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%v: %q: %s", e.Err, e.Key, e.Details)
	}
	return fmt.Sprintf("%v: %q", e.Err, e.Key)
}

// Unwrap returns the underlying sentinel error.
func (e *KeyError) Unwrap() error {
	return e.Err
}
