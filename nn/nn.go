// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand"

	"github.com/born-ml/unity/internal/nn"
	"github.com/born-ml/unity/graph"
	"github.com/born-ml/unity/registry"
)

// Epsilon is added to the variance by LayerNorm.
const Epsilon = nn.Epsilon

// Linear is a fully connected layer: y = x @ W^T + b.
type Linear = nn.Linear

// LayerNorm applies Layer Normalization along the innermost dimension.
type LayerNorm = nn.LayerNorm

// FeedForward is the standard transformer feed-forward block.
type FeedForward = nn.FeedForward

// FeedForwardOption configures InitFeedForward.
type FeedForwardOption = nn.FeedForwardOption

// MultiheadAttention implements scaled dot-product attention over several heads.
type MultiheadAttention = nn.MultiheadAttention

// Sizes

// LinearSize returns the bytes needed by a Linear layer's parameters.
func LinearSize(in, out int, bias bool) int { return nn.LinearSize(in, out, bias) }

// LayerNormSize returns the bytes needed by a LayerNorm's parameters.
func LayerNormSize(dim int) int { return nn.LayerNormSize(dim) }

// FeedForwardSize returns the bytes needed by a FeedForward block.
func FeedForwardSize(modelDim, innerDim int) int { return nn.FeedForwardSize(modelDim, innerDim) }

// MultiheadAttentionSize returns the bytes needed by a MultiheadAttention.
func MultiheadAttentionSize(modelDim, numHeads int) int {
	return nn.MultiheadAttentionSize(modelDim, numHeads)
}

// Init

// InitLinear registers prefix.weight (out, in) and, with bias, prefix.bias (out).
func InitLinear(reg *registry.Registry, prefix registry.Prefix, in, out int, bias bool) (*Linear, error) {
	return nn.InitLinear(reg, prefix, in, out, bias)
}

// InitLayerNorm registers prefix.weight and prefix.bias, both (dim).
func InitLayerNorm(reg *registry.Registry, prefix registry.Prefix, dim int) (*LayerNorm, error) {
	return nn.InitLayerNorm(reg, prefix, dim)
}

// InitFeedForward registers prefix.inner_proj, prefix.inner_layer_norm and prefix.output_proj.
func InitFeedForward(reg *registry.Registry, prefix registry.Prefix, modelDim, innerDim int, opts ...FeedForwardOption) (*FeedForward, error) {
	return nn.InitFeedForward(reg, prefix, modelDim, innerDim, opts...)
}

// WithInnerLayerNorm sets whether a FeedForward block gets an inner LayerNorm.
func WithInnerLayerNorm(enabled bool) FeedForwardOption {
	return nn.WithInnerLayerNorm(enabled)
}

// InitMultiheadAttention registers the q/k/v/output projections and
// bias_k/bias_v under prefix.
func InitMultiheadAttention(reg *registry.Registry, prefix registry.Prefix, modelDim, numHeads int) (*MultiheadAttention, error) {
	return nn.InitMultiheadAttention(reg, prefix, modelDim, numHeads)
}

// Load

// LoadLinear binds a Linear layer to parameters registered under prefix.
func LoadLinear(reg *registry.Registry, prefix registry.Prefix) (*Linear, error) {
	return nn.LoadLinear(reg, prefix)
}

// LoadLayerNorm binds a LayerNorm to parameters registered under prefix.
func LoadLayerNorm(reg *registry.Registry, prefix registry.Prefix) (*LayerNorm, error) {
	return nn.LoadLayerNorm(reg, prefix)
}

// LoadFeedForward binds a FeedForward block to parameters registered under prefix.
func LoadFeedForward(reg *registry.Registry, prefix registry.Prefix) (*FeedForward, error) {
	return nn.LoadFeedForward(reg, prefix)
}

// LoadMultiheadAttention binds a MultiheadAttention with numHeads heads.
func LoadMultiheadAttention(reg *registry.Registry, prefix registry.Prefix, numHeads int) (*MultiheadAttention, error) {
	return nn.LoadMultiheadAttention(reg, prefix, numHeads)
}

// Forward

// LinearForward loads the Linear layer under prefix and applies it to x.
func LinearForward(ctx *graph.Context, reg *registry.Registry, prefix registry.Prefix, x *graph.Tensor) (*graph.Tensor, error) {
	return nn.LinearForward(ctx, reg, prefix, x)
}

// LayerNormForward loads the LayerNorm under prefix and applies it to x.
func LayerNormForward(ctx *graph.Context, reg *registry.Registry, prefix registry.Prefix, x *graph.Tensor) (*graph.Tensor, error) {
	return nn.LayerNormForward(ctx, reg, prefix, x)
}

// FeedForwardForward loads the FeedForward block under prefix and applies it to x.
func FeedForwardForward(ctx *graph.Context, reg *registry.Registry, prefix registry.Prefix, x *graph.Tensor) (*graph.Tensor, error) {
	return nn.FeedForwardForward(ctx, reg, prefix, x)
}

// MultiheadAttentionForward loads the MultiheadAttention under prefix and applies it.
func MultiheadAttentionForward(ctx *graph.Context, reg *registry.Registry, prefix registry.Prefix, numHeads int,
	queries, keys, values, mask *graph.Tensor) (*graph.Tensor, error) {
	return nn.MultiheadAttentionForward(ctx, reg, prefix, numHeads, queries, keys, values, mask)
}

// Heads

// ReshapeToHeads views (seq, model_dim) as (num_heads, seq, head_dim).
func ReshapeToHeads(ctx *graph.Context, x *graph.Tensor, numHeads int) (*graph.Tensor, error) {
	return nn.ReshapeToHeads(ctx, x, numHeads)
}

// MergeHeads turns (num_heads, seq, head_dim) into a packed (seq, model_dim).
func MergeHeads(ctx *graph.Context, x *graph.Tensor) (*graph.Tensor, error) {
	return nn.MergeHeads(ctx, x)
}

// CausalMask returns an additive (n, n) mask hiding future positions.
func CausalMask(ctx *graph.Context, n int) (*graph.Tensor, error) {
	return nn.CausalMask(ctx, n)
}

// Initialization

// Xavier fills t from the Xavier/Glorot uniform distribution.
func Xavier(rng *rand.Rand, t *graph.Tensor, fanIn, fanOut int) error {
	return nn.Xavier(rng, t, fanIn, fanOut)
}

// Uniform fills t from U(-bound, bound).
func Uniform(rng *rand.Rand, t *graph.Tensor, bound float64) error {
	return nn.Uniform(rng, t, bound)
}

// Fill sets every element of t to v.
func Fill(t *graph.Tensor, v float32) error {
	return nn.Fill(t, v)
}
