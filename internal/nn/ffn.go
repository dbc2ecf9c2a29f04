package nn

import (
	"math/rand"

	"github.com/born-ml/unity/internal/graph"
	"github.com/born-ml/unity/internal/registry"
)

// FeedForward is the standard transformer feed-forward block:
//
//	output_proj(inner_layer_norm(relu(inner_proj(x))))
//
// InnerLayerNorm is nil when the block has no normalization stage.
type FeedForward struct {
	InnerProj      *Linear
	InnerLayerNorm *LayerNorm
	OutputProj     *Linear
}

// FeedForwardOption configures InitFeedForward.
type FeedForwardOption func(*feedForwardConfig)

type feedForwardConfig struct {
	innerLayerNorm bool
}

// WithInnerLayerNorm sets whether the block gets an inner LayerNorm.
// The default is true.
func WithInnerLayerNorm(enabled bool) FeedForwardOption {
	return func(c *feedForwardConfig) {
		c.innerLayerNorm = enabled
	}
}

// FeedForwardSize returns the bytes needed by a FeedForward block with an
// inner LayerNorm.
func FeedForwardSize(modelDim, innerDim int) int {
	return LayerNormSize(innerDim) + LinearSize(modelDim, innerDim, true) + LinearSize(innerDim, modelDim, true)
}

// InitFeedForward registers, in order, prefix.inner_proj, prefix.inner_layer_norm
// and prefix.output_proj.
func InitFeedForward(reg *registry.Registry, prefix registry.Prefix, modelDim, innerDim int, opts ...FeedForwardOption) (*FeedForward, error) {
	cfg := feedForwardConfig{innerLayerNorm: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	var (
		f   FeedForward
		err error
	)
	if f.InnerProj, err = InitLinear(reg, prefix.Join("inner_proj"), modelDim, innerDim, true); err != nil {
		return nil, err
	}
	if cfg.innerLayerNorm {
		if f.InnerLayerNorm, err = InitLayerNorm(reg, prefix.Join("inner_layer_norm"), innerDim); err != nil {
			return nil, err
		}
	}
	if f.OutputProj, err = InitLinear(reg, prefix.Join("output_proj"), innerDim, modelDim, true); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadFeedForward binds a FeedForward block to parameters registered under
// prefix. The inner LayerNorm is bound if prefix.inner_layer_norm.weight is
// registered.
func LoadFeedForward(reg *registry.Registry, prefix registry.Prefix) (*FeedForward, error) {
	var (
		f   FeedForward
		err error
	)
	if f.InnerProj, err = LoadLinear(reg, prefix.Join("inner_proj")); err != nil {
		return nil, err
	}
	if norm := prefix.Join("inner_layer_norm"); reg.Has(norm.Key(registry.Weight)) {
		if f.InnerLayerNorm, err = LoadLayerNorm(reg, norm); err != nil {
			return nil, err
		}
	}
	if f.OutputProj, err = LoadLinear(reg, prefix.Join("output_proj")); err != nil {
		return nil, err
	}
	return &f, nil
}

// Forward applies the block to x of shape (seq, model_dim).
func (f *FeedForward) Forward(ctx *graph.Context, x *graph.Tensor) (*graph.Tensor, error) {
	return forward("feed forward", func() *graph.Tensor {
		return f.apply(ctx, x)
	})
}

func (f *FeedForward) apply(ctx *graph.Context, x *graph.Tensor) *graph.Tensor {
	y := f.InnerProj.apply(ctx, x).RELU(ctx)
	if f.InnerLayerNorm != nil {
		y = f.InnerLayerNorm.apply(ctx, y)
	}
	return f.OutputProj.apply(ctx, y)
}

// Randomize fills both projections with random values.
func (f *FeedForward) Randomize(rng *rand.Rand) error {
	if err := f.InnerProj.Randomize(rng); err != nil {
		return err
	}
	return f.OutputProj.Randomize(rng)
}

// FeedForwardForward loads the FeedForward block under prefix and applies it to x.
func FeedForwardForward(ctx *graph.Context, reg *registry.Registry, prefix registry.Prefix, x *graph.Tensor) (*graph.Tensor, error) {
	f, err := LoadFeedForward(reg, prefix)
	if err != nil {
		return nil, err
	}
	return f.Forward(ctx, x)
}
