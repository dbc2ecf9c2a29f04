package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/unity/internal/graph"
	"github.com/born-ml/unity/internal/registry"
)

// Linear is a fully connected layer: y = x @ W^T + b.
//
// Weight has shape (out, in). Bias, when present, has shape (out) and is
// broadcast over the sequence axis. A nil Bias means the layer has none;
// that is decided once when the descriptor is built, never per call.
type Linear struct {
	Weight *graph.Tensor
	Bias   *graph.Tensor
	In     int
	Out    int
}

// LinearSize returns the bytes needed by a Linear layer's parameters.
func LinearSize(in, out int, bias bool) int {
	n := bytesOf(out, in)
	if bias {
		n += bytesOf(out)
	}
	return n
}

// InitLinear registers the parameters of a Linear layer under prefix:
// prefix.weight (out, in) and, with bias, prefix.bias (out).
func InitLinear(reg *registry.Registry, prefix registry.Prefix, in, out int, bias bool) (*Linear, error) {
	if err := checkDims("linear", in, out); err != nil {
		return nil, err
	}

	w, err := reg.Alloc(prefix.Key(registry.Weight), out, in)
	if err != nil {
		return nil, err
	}

	l := &Linear{Weight: w, In: in, Out: out}
	if bias {
		if l.Bias, err = reg.Alloc(prefix.Key(registry.Bias), out); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// LoadLinear binds a Linear layer to parameters registered under prefix.
// The weight is required; the bias is optional.
func LoadLinear(reg *registry.Registry, prefix registry.Prefix) (*Linear, error) {
	w, err := lookup(reg, prefix.Key(registry.Weight), 2)
	if err != nil {
		return nil, err
	}

	l := &Linear{Weight: w, Out: w.Dim(0), In: w.Dim(1)}
	if l.Bias, err = lookupOptional(reg, prefix.Key(registry.Bias), 1); err != nil {
		return nil, err
	}
	if l.Bias != nil && l.Bias.Dim(0) != l.Out {
		return nil, &registry.KeyError{
			Key:     prefix.Key(registry.Bias).String(),
			Err:     registry.ErrShapeMismatch,
			Details: fmt.Sprintf("bias %v does not match weight %v", l.Bias.Shape(), w.Shape()),
		}
	}
	return l, nil
}

// Forward computes x @ W^T + b.
//
// x must be (in) or (seq, in); the result is (out) or (seq, out).
func (l *Linear) Forward(ctx *graph.Context, x *graph.Tensor) (*graph.Tensor, error) {
	return forward("linear", func() *graph.Tensor {
		return l.apply(ctx, x)
	})
}

func (l *Linear) apply(ctx *graph.Context, x *graph.Tensor) *graph.Tensor {
	y := l.Weight.Mulmat(ctx, x)
	if l.Bias != nil {
		y = y.Add(ctx, l.Bias)
	}
	return y
}

// Randomize fills the weight with Xavier values and the bias with small
// uniform values.
func (l *Linear) Randomize(rng *rand.Rand) error {
	if err := Xavier(rng, l.Weight, l.In, l.Out); err != nil {
		return err
	}
	if l.Bias != nil {
		return Uniform(rng, l.Bias, 1/math.Sqrt(float64(l.In)))
	}
	return nil
}

// LinearForward loads the Linear layer under prefix and applies it to x.
func LinearForward(ctx *graph.Context, reg *registry.Registry, prefix registry.Prefix, x *graph.Tensor) (*graph.Tensor, error) {
	l, err := LoadLinear(reg, prefix)
	if err != nil {
		return nil, err
	}
	return l.Forward(ctx, x)
}
