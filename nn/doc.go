// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn builds transformer modules over a parameter registry.
//
// # Overview
//
// This package contains:
//   - Layers: Linear, LayerNorm
//   - Blocks: FeedForward, MultiheadAttention
//   - Head utilities: ReshapeToHeads, MergeHeads, CausalMask
//   - Initialization: Xavier, Uniform, Fill
//
// Every module has a Size function (parameter bytes), an Init function
// (registers parameters under a prefix), a Load function (binds a
// descriptor to registered parameters) and a Forward method.
//
// # Basic Usage
//
//	reg := registry.New(registry.Options{
//	    MaxBytes: nn.FeedForwardSize(64, 256) + nn.MultiheadAttentionSize(64, 8),
//	})
//	ffn, _ := nn.InitFeedForward(reg, "layer.ffn", 64, 256)
//	attn, _ := nn.InitMultiheadAttention(reg, "layer.self_attn", 64, 8)
//
//	ctx := graph.NewContext(graph.Options{Name: "scratch"})
//	x, _ := ctx.FromFloats(data, 10, 64)
//	h, err := ffn.Forward(ctx, x)
//	...
//	y, err := attn.Forward(ctx, h, h, h, nil) // (10, 64)
package nn
