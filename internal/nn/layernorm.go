package nn

import (
	"fmt"

	"github.com/born-ml/unity/internal/graph"
	"github.com/born-ml/unity/internal/registry"
)

// Epsilon is added to the variance by LayerNorm.
const Epsilon = 1e-5

// LayerNorm applies Layer Normalization along the innermost dimension.
//
// Formula: Y = weight * (X - mean(X)) / sqrt(var(X) + eps) + bias
type LayerNorm struct {
	Weight *graph.Tensor // (dim)
	Bias   *graph.Tensor // (dim)
	Dim    int
}

// LayerNormSize returns the bytes needed by a LayerNorm's parameters.
func LayerNormSize(dim int) int {
	return 2 * bytesOf(dim)
}

// InitLayerNorm registers prefix.weight and prefix.bias, both (dim).
// The weight starts at ones and the bias at zeros.
func InitLayerNorm(reg *registry.Registry, prefix registry.Prefix, dim int) (*LayerNorm, error) {
	if err := checkDims("layer norm", dim); err != nil {
		return nil, err
	}

	w, err := reg.Alloc(prefix.Key(registry.Weight), dim)
	if err != nil {
		return nil, err
	}
	if err := Fill(w, 1); err != nil {
		return nil, err
	}
	b, err := reg.Alloc(prefix.Key(registry.Bias), dim)
	if err != nil {
		return nil, err
	}

	return &LayerNorm{Weight: w, Bias: b, Dim: dim}, nil
}

// LoadLayerNorm binds a LayerNorm to parameters registered under prefix.
func LoadLayerNorm(reg *registry.Registry, prefix registry.Prefix) (*LayerNorm, error) {
	w, err := lookup(reg, prefix.Key(registry.Weight), 1)
	if err != nil {
		return nil, err
	}
	b, err := lookup(reg, prefix.Key(registry.Bias), 1)
	if err != nil {
		return nil, err
	}
	if b.Dim(0) != w.Dim(0) {
		return nil, &registry.KeyError{
			Key:     prefix.Key(registry.Bias).String(),
			Err:     registry.ErrShapeMismatch,
			Details: fmt.Sprintf("bias %v does not match weight %v", b.Shape(), w.Shape()),
		}
	}
	return &LayerNorm{Weight: w, Bias: b, Dim: w.Dim(0)}, nil
}

// Forward normalizes x along its innermost dimension, which must equal Dim.
func (ln *LayerNorm) Forward(ctx *graph.Context, x *graph.Tensor) (*graph.Tensor, error) {
	return forward("layer norm", func() *graph.Tensor {
		return ln.apply(ctx, x)
	})
}

func (ln *LayerNorm) apply(ctx *graph.Context, x *graph.Tensor) *graph.Tensor {
	y := x.Norm(ctx, Epsilon)
	y = ln.Weight.Repeat(ctx, y).Mul(ctx, y)
	return y.Add(ctx, ln.Bias.Repeat(ctx, y))
}

// LayerNormForward loads the LayerNorm under prefix and applies it to x.
func LayerNormForward(ctx *graph.Context, reg *registry.Registry, prefix registry.Prefix, x *graph.Tensor) (*graph.Tensor, error) {
	ln, err := LoadLayerNorm(reg, prefix)
	if err != nil {
		return nil, err
	}
	return ln.Forward(ctx, x)
}
