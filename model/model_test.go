// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/unity/graph"
	"github.com/born-ml/unity/model"
	"github.com/born-ml/unity/nn"
	"github.com/born-ml/unity/registry"
)

func TestPublicAPI_EndToEnd(t *testing.T) {
	h, err := model.ParseHParams([]byte("model_dim: 64\ninner_dim: 256\nnum_heads: 8\nnum_layers: 1\n"))
	require.NoError(t, err)

	m, err := model.Build(h, model.Options{})
	require.NoError(t, err)
	defer m.Close()
	require.NoError(t, m.Randomize(11))

	ctx := graph.NewContext(graph.Options{Name: "scratch"})
	m.SetContext(ctx)

	data := make([]float32, 10*64)
	for i := range data {
		data[i] = float32(i%13) / 13
	}
	x, err := ctx.FromFloats(data, 10, 64)
	require.NoError(t, err)

	prefix := registry.Prefix("encoder.layers.0")
	ffn, err := nn.FeedForwardForward(ctx, m.Registry, prefix.Join("ffn"), x)
	require.NoError(t, err)
	out, err := nn.MultiheadAttentionForward(ctx, m.Registry, prefix.Join("self_attn"), h.NumHeads, ffn, ffn, ffn, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 64}, out.Shape())
	require.NoError(t, ctx.Compute(out))

	_, err = nn.LinearForward(ctx, m.Registry, "encoder.layers.9.ffn.inner_proj", x)
	assert.ErrorIs(t, err, registry.ErrKeyNotFound)
}
