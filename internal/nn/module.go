// Package nn builds transformer modules over a parameter registry.
//
// Every module comes as a set of functions:
//   - Size reports the bytes its parameters occupy, for pre-sizing an arena
//   - Init allocates and registers its parameters under a prefix
//   - Load binds a module descriptor to parameters already in a registry
//   - Forward appends the module's computation to a graph
//
// Module descriptors hold tensors owned by the registry; they never own
// storage of their own. Forward methods report misuse (missing keys, shape
// mismatches) as errors and return no tensor on failure.
package nn

import (
	"fmt"

	"github.com/born-ml/unity/internal/graph"
	"github.com/born-ml/unity/internal/registry"
	"github.com/born-ml/unity/internal/tensor"
)

// bytesOf returns the float32 storage size of a tensor with the given shape.
func bytesOf(shape ...int) int {
	return tensor.Shape(shape).NumElements() * tensor.Float32.Size()
}

// checkDims rejects non-positive dimensions.
func checkDims(module string, dims ...int) error {
	for _, d := range dims {
		if d <= 0 {
			return fmt.Errorf("%s: dimensions %v must be positive: %w", module, dims, graph.ErrShapeMismatch)
		}
	}
	return nil
}

// lookup fetches a parameter and checks its rank.
func lookup(reg *registry.Registry, key registry.Key, rank int) (*graph.Tensor, error) {
	t, err := reg.Lookup(key)
	if err != nil {
		return nil, err
	}
	if t.Rank() != rank {
		return nil, &registry.KeyError{
			Key:     key.String(),
			Err:     registry.ErrShapeMismatch,
			Details: fmt.Sprintf("expected rank %d, got %v", rank, t.Shape()),
		}
	}
	return t, nil
}

// lookupOptional is lookup that treats a missing key as absent.
func lookupOptional(reg *registry.Registry, key registry.Key, rank int) (*graph.Tensor, error) {
	if !reg.Has(key) {
		return nil, nil
	}
	return lookup(reg, key, rank)
}

// forward runs a graph-building function and wraps its error with the
// module name.
func forward(module string, fn func() *graph.Tensor) (*graph.Tensor, error) {
	out, err := graph.Try(fn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", module, err)
	}
	return out, nil
}
