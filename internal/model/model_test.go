package model

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/unity/internal/config"
	"github.com/born-ml/unity/internal/graph"
	"github.com/born-ml/unity/internal/loader"
	"github.com/born-ml/unity/internal/registry"
)

func smallHParams() config.HParams {
	return config.HParams{
		ModelDim:          64,
		InnerDim:          256,
		NumHeads:          8,
		NumLayers:         1,
		FFNInnerLayerNorm: true,
		MaxSeqLen:         32,
	}
}

func sequence(seq, dim int) []float32 {
	data := make([]float32, seq*dim)
	for i := range data {
		data[i] = float32(math.Sin(float64(i) * 0.37))
	}
	return data
}

func TestNew(t *testing.T) {
	m := New(Options{})
	defer m.Close()

	assert.NotEqual(t, [16]byte{}, [16]byte(m.ID))
	assert.Zero(t, m.Registry.Len())
	assert.Equal(t, config.HParams{}, m.HParams)
	assert.Nil(t, m.Context())

	_, err := m.Encode(nil, nil)
	assert.ErrorIs(t, err, ErrNoContext)
}

func TestSetContext(t *testing.T) {
	m := New(Options{})
	defer m.Close()

	a := graph.NewContext(graph.Options{Name: "a"})
	b := graph.NewContext(graph.Options{Name: "b"})

	assert.Nil(t, m.SetContext(a))
	assert.Same(t, a, m.SetContext(b))
	assert.Same(t, b, m.Context())
	// The previous context stays usable.
	assert.False(t, a.Closed())
}

func TestBuild(t *testing.T) {
	h := smallHParams()
	h.NumLayers = 2

	m, err := Build(h, Options{})
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, Size(h), m.Size())
	assert.Equal(t, m.Size(), m.Registry.Arch().Bytes())
	require.Len(t, m.Encoder.Layers, 2)

	for _, name := range []string{
		"encoder.layers.0.self_attn.q_proj.weight",
		"encoder.layers.0.self_attn.output_proj.bias",
		"encoder.layers.0.self_attn.bias_k",
		"encoder.layers.1.ffn.inner_layer_norm.weight",
		"encoder.layers.1.ffn_layer_norm.bias",
		"encoder.layers.1.self_attn_layer_norm.weight",
	} {
		key, err := registry.ParseKey(name)
		require.NoError(t, err)
		assert.True(t, m.Registry.Has(key), name)
	}
}

func TestBuild_InvalidHParams(t *testing.T) {
	h := smallHParams()
	h.NumHeads = 7

	_, err := Build(h, Options{})
	assert.ErrorIs(t, err, graph.ErrShapeMismatch)
}

func TestBuild_WithoutInnerLayerNorm(t *testing.T) {
	h := smallHParams()
	h.FFNInnerLayerNorm = false

	m, err := Build(h, Options{})
	require.NoError(t, err)
	defer m.Close()

	assert.Nil(t, m.Encoder.Layers[0].FFN.InnerLayerNorm)
	assert.Equal(t, Size(h), m.Size())
}

func TestRun(t *testing.T) {
	h := smallHParams()
	m, err := Build(h, Options{})
	require.NoError(t, err)
	defer m.Close()
	require.NoError(t, m.Randomize(1))

	scratch := graph.NewContext(graph.Options{Name: "scratch"})
	m.SetContext(scratch)

	const seq = 10
	out, err := m.Run(sequence(seq, h.ModelDim), seq, false)
	require.NoError(t, err)
	require.Len(t, out, seq*h.ModelDim)

	// The final LayerNorm has identity affine parameters, so every row is
	// normalized.
	for r := 0; r < seq; r++ {
		var mean float64
		for _, v := range out[r*h.ModelDim : (r+1)*h.ModelDim] {
			mean += float64(v)
		}
		assert.InDelta(t, 0, mean/float64(h.ModelDim), 1e-4)
	}

	// A reset context serves the next pass.
	scratch.Reset()
	again, err := m.Run(sequence(seq, h.ModelDim), seq, false)
	require.NoError(t, err)
	assert.InDeltaSlice(t, out, again, 1e-6)

	scratch.Reset()
	causal, err := m.Run(sequence(seq, h.ModelDim), seq, true)
	require.NoError(t, err)
	assert.Len(t, causal, seq*h.ModelDim)

	_, err = m.Run(sequence(h.MaxSeqLen+1, h.ModelDim), h.MaxSeqLen+1, false)
	assert.ErrorIs(t, err, graph.ErrShapeMismatch)
}

func TestRandomize_Deterministic(t *testing.T) {
	h := smallHParams()
	a, err := Build(h, Options{})
	require.NoError(t, err)
	defer a.Close()
	b, err := Build(h, Options{})
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Randomize(42))
	require.NoError(t, b.Randomize(42))

	wa, err := a.Encoder.Layers[0].SelfAttn.QProj.Weight.Floats()
	require.NoError(t, err)
	wb, err := b.Encoder.Layers[0].SelfAttn.QProj.Weight.Floats()
	require.NoError(t, err)
	assert.Equal(t, wa, wb)
}

func TestLoadWeights_RoundTrip(t *testing.T) {
	h := smallHParams()
	src, err := Build(h, Options{})
	require.NoError(t, err)
	defer src.Close()
	require.NoError(t, src.Randomize(3))

	path := filepath.Join(t.TempDir(), "encoder.safetensors")
	require.NoError(t, loader.Save(path, src.Registry, loader.F32, nil))

	r, err := loader.Open(path)
	require.NoError(t, err)
	defer r.Close()

	schema, err := loader.Schema(r)
	require.NoError(t, err)

	dst, err := Build(h, Options{Schema: schema})
	require.NoError(t, err)
	defer dst.Close()
	require.NoError(t, dst.LoadWeights(r))

	loaded, err := LoadEncoder(dst.Registry, h)
	require.NoError(t, err)

	want, err := src.Encoder.Layers[0].FFN.OutputProj.Weight.Floats()
	require.NoError(t, err)
	got, err := loaded.Layers[0].FFN.OutputProj.Weight.Floats()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestClose(t *testing.T) {
	m, err := Build(smallHParams(), Options{})
	require.NoError(t, err)
	ctx := graph.NewContext(graph.Options{})
	m.SetContext(ctx)

	m.Close()
	m.Close()

	assert.True(t, ctx.Closed())
	_, err = m.Encode(nil, nil)
	assert.ErrorIs(t, err, graph.ErrClosed)
	assert.ErrorIs(t, m.Randomize(1), graph.ErrClosed)
}
