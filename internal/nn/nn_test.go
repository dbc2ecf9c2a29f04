package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/unity/internal/graph"
	"github.com/born-ml/unity/internal/registry"
)

func newTestRegistry() *registry.Registry {
	return registry.New(registry.Options{Name: "test"})
}

func newScratch() *graph.Context {
	return graph.NewContext(graph.Options{Name: "scratch"})
}

func input(t *testing.T, ctx *graph.Context, data []float32, shape ...int) *graph.Tensor {
	t.Helper()
	x, err := ctx.FromFloats(data, shape...)
	require.NoError(t, err)
	return x
}

func ramp(n int, scale float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i%7-3) * scale
	}
	return out
}

func evaluate(t *testing.T, ctx *graph.Context, out *graph.Tensor) []float32 {
	t.Helper()
	require.NoError(t, ctx.Compute(out))
	got, err := out.Floats()
	require.NoError(t, err)
	return got
}

// identity sets w to the identity matrix.
func identity(t *testing.T, w *graph.Tensor) {
	t.Helper()
	n := w.Dim(0)
	data := make([]float32, n*w.Dim(1))
	for i := 0; i < n; i++ {
		data[i*w.Dim(1)+i] = 1
	}
	require.NoError(t, w.SetFloats(data))
}

func TestSizes(t *testing.T) {
	for din := 1; din <= 9; din += 4 {
		for dout := 1; dout <= 9; dout += 4 {
			assert.Equal(t, din*dout*4+dout*4, LinearSize(din, dout, true))
			assert.Equal(t, din*dout*4, LinearSize(din, dout, false))
		}
		assert.Equal(t, 2*din*4, LayerNormSize(din))
	}

	assert.Equal(t,
		LayerNormSize(256)+LinearSize(64, 256, true)+LinearSize(256, 64, true),
		FeedForwardSize(64, 256))
	assert.Equal(t, 4*LinearSize(64, 64, true)+2*64*4, MultiheadAttentionSize(64, 8))
}

func TestSizes_MatchRegistry(t *testing.T) {
	reg := newTestRegistry()

	_, err := InitFeedForward(reg, "ffn", 8, 32)
	require.NoError(t, err)
	_, err = InitMultiheadAttention(reg, "attn", 8, 2)
	require.NoError(t, err)

	assert.Equal(t, FeedForwardSize(8, 32)+MultiheadAttentionSize(8, 2), reg.Bytes())
	assert.Equal(t, reg.Bytes(), reg.Arch().Bytes())
}

func TestLinear(t *testing.T) {
	reg := newTestRegistry()
	l, err := InitLinear(reg, "proj", 3, 2, true)
	require.NoError(t, err)

	assert.True(t, reg.Has(registry.Prefix("proj").Key(registry.Weight)))
	assert.True(t, reg.Has(registry.Prefix("proj").Key(registry.Bias)))
	assert.Equal(t, []int{2, 3}, l.Weight.Shape())

	require.NoError(t, l.Weight.SetFloats([]float32{1, 0, 0, 0, 1, 1}))
	require.NoError(t, l.Bias.SetFloats([]float32{10, 20}))

	ctx := newScratch()

	t.Run("Vector", func(t *testing.T) {
		y, err := l.Forward(ctx, input(t, ctx, []float32{1, 2, 3}, 3))
		require.NoError(t, err)
		assert.Equal(t, []int{2}, y.Shape())
		assert.Equal(t, []float32{11, 25}, evaluate(t, ctx, y))
	})

	t.Run("Sequence", func(t *testing.T) {
		y, err := LinearForward(ctx, reg, "proj", input(t, ctx, []float32{1, 2, 3, 4, 5, 6}, 2, 3))
		require.NoError(t, err)
		assert.Equal(t, []int{2, 2}, y.Shape())
		assert.Equal(t, []float32{11, 25, 14, 31}, evaluate(t, ctx, y))
	})

	t.Run("WrongInnerDim", func(t *testing.T) {
		y, err := l.Forward(ctx, input(t, ctx, []float32{1, 2}, 2))
		assert.ErrorIs(t, err, graph.ErrShapeMismatch)
		assert.Nil(t, y)
	})
}

func TestLinear_NoBias(t *testing.T) {
	reg := newTestRegistry()
	_, err := InitLinear(reg, "proj", 2, 2, false)
	require.NoError(t, err)
	assert.False(t, reg.Has(registry.Prefix("proj").Key(registry.Bias)))
	assert.Equal(t, LinearSize(2, 2, false), reg.Bytes())

	l, err := LoadLinear(reg, "proj")
	require.NoError(t, err)
	assert.Nil(t, l.Bias)
	identity(t, l.Weight)

	ctx := newScratch()
	y, err := l.Forward(ctx, input(t, ctx, []float32{3, 4}, 2))
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 4}, evaluate(t, ctx, y))
}

func TestLinear_InvalidDims(t *testing.T) {
	_, err := InitLinear(newTestRegistry(), "proj", 0, 2, true)
	assert.ErrorIs(t, err, graph.ErrShapeMismatch)
}

func TestForward_KeyNotFound(t *testing.T) {
	reg := newTestRegistry()
	ctx := newScratch()
	x := input(t, ctx, []float32{1, 2}, 1, 2)

	_, err := LinearForward(ctx, reg, "missing", x)
	assert.ErrorIs(t, err, registry.ErrKeyNotFound)

	_, err = LayerNormForward(ctx, reg, "missing", x)
	assert.ErrorIs(t, err, registry.ErrKeyNotFound)

	_, err = FeedForwardForward(ctx, reg, "missing", x)
	assert.ErrorIs(t, err, registry.ErrKeyNotFound)

	_, err = MultiheadAttentionForward(ctx, reg, "missing", 1, x, x, x, nil)
	assert.ErrorIs(t, err, registry.ErrKeyNotFound)
}

func TestLayerNorm(t *testing.T) {
	reg := newTestRegistry()
	ln, err := InitLayerNorm(reg, "ln", 4)
	require.NoError(t, err)

	ctx := newScratch()

	t.Run("EqualValuesNormalizeToZero", func(t *testing.T) {
		x := input(t, ctx, []float32{7, 7, 7, 7, -2, -2, -2, -2}, 2, 4)
		y, err := ln.Forward(ctx, x)
		require.NoError(t, err)
		for _, v := range evaluate(t, ctx, y) {
			assert.False(t, math.IsNaN(float64(v)))
			assert.InDelta(t, 0, v, 1e-6)
		}
	})

	t.Run("Affine", func(t *testing.T) {
		require.NoError(t, ln.Weight.SetFloats([]float32{2, 2, 2, 2}))
		require.NoError(t, ln.Bias.SetFloats([]float32{1, 1, 1, 1}))

		x := input(t, ctx, []float32{1, 2, 3, 4}, 1, 4)
		y, err := LayerNormForward(ctx, reg, "ln", x)
		require.NoError(t, err)

		got := evaluate(t, ctx, y)
		var mean float32
		for _, v := range got {
			mean += v
		}
		assert.InDelta(t, 1, mean/4, 1e-5)
		assert.Less(t, got[0], got[3])
	})

	t.Run("WrongDim", func(t *testing.T) {
		_, err := ln.Forward(ctx, input(t, ctx, []float32{1, 2, 3}, 1, 3))
		assert.ErrorIs(t, err, graph.ErrShapeMismatch)
	})
}

func TestFeedForward_WithoutInnerLayerNorm(t *testing.T) {
	reg := newTestRegistry()
	_, err := InitFeedForward(reg, "ffn", 4, 8, WithInnerLayerNorm(false))
	require.NoError(t, err)

	for _, k := range reg.Keys() {
		assert.NotContains(t, k.String(), "inner_layer_norm")
	}
	assert.Equal(t, FeedForwardSize(4, 8)-LayerNormSize(8), reg.Bytes())

	f, err := LoadFeedForward(reg, "ffn")
	require.NoError(t, err)
	assert.Nil(t, f.InnerLayerNorm)

	ctx := newScratch()
	y, err := FeedForwardForward(ctx, reg, "ffn", input(t, ctx, ramp(12, 1), 3, 4))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, y.Shape())
	assert.Len(t, evaluate(t, ctx, y), 12)
}

func TestFeedForward_KeyOrder(t *testing.T) {
	reg := newTestRegistry()
	f, err := InitFeedForward(reg, "ffn", 4, 8)
	require.NoError(t, err)
	require.NotNil(t, f.InnerLayerNorm)

	var keys []string
	for _, k := range reg.Keys() {
		keys = append(keys, k.String())
	}
	assert.Equal(t, []string{
		"ffn.inner_proj.weight",
		"ffn.inner_proj.bias",
		"ffn.inner_layer_norm.weight",
		"ffn.inner_layer_norm.bias",
		"ffn.output_proj.weight",
		"ffn.output_proj.bias",
	}, keys)
}

func TestFeedForward_Forward(t *testing.T) {
	reg := newTestRegistry()
	f, err := InitFeedForward(reg, "ffn", 2, 2, WithInnerLayerNorm(false))
	require.NoError(t, err)
	identity(t, f.InnerProj.Weight)
	identity(t, f.OutputProj.Weight)

	ctx := newScratch()
	y, err := f.Forward(ctx, input(t, ctx, []float32{-1, 2, 3, -4}, 2, 2))
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 2, 3, 0}, evaluate(t, ctx, y))
}

func TestReshapeToHeads_RoundTrip(t *testing.T) {
	ctx := newScratch()
	data := ramp(6*8, 0.5)
	for i := range data {
		data[i] += float32(i)
	}
	x := input(t, ctx, data, 6, 8)

	heads, err := ReshapeToHeads(ctx, x, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 6, 2}, heads.Shape())
	assert.False(t, heads.IsContiguous())

	merged, err := MergeHeads(ctx, heads)
	require.NoError(t, err)
	assert.Equal(t, []int{6, 8}, merged.Shape())
	assert.Equal(t, data, evaluate(t, ctx, merged))

	// Head h of position s holds model columns [h*Dh, (h+1)*Dh).
	got := evaluate(t, ctx, heads)
	assert.Equal(t, data[1*8+2*2], got[(2*6+1)*2])
}

func TestReshapeToHeads_Errors(t *testing.T) {
	ctx := newScratch()

	_, err := ReshapeToHeads(ctx, input(t, ctx, make([]float32, 10), 2, 5), 2)
	assert.ErrorIs(t, err, graph.ErrShapeMismatch)

	_, err = ReshapeToHeads(ctx, input(t, ctx, make([]float32, 4), 4), 2)
	assert.ErrorIs(t, err, graph.ErrShapeMismatch)
}

func TestMultiheadAttention_Init(t *testing.T) {
	reg := newTestRegistry()
	m, err := InitMultiheadAttention(reg, "attn", 512, 16)
	require.NoError(t, err)

	assert.Equal(t, 32, m.HeadDim)
	assert.Equal(t, 16, m.NumHeads)
	assert.Equal(t, []int{16, 1, 32}, m.BiasK.Shape())
	assert.True(t, reg.Has(registry.Prefix("attn.output_proj").Key(registry.Weight)))
	assert.Equal(t, MultiheadAttentionSize(512, 16), reg.Bytes())

	ctx := newScratch()
	x := input(t, ctx, ramp(3*512, 0.01), 3, 512)
	y, err := m.Forward(ctx, x, x, x, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 512}, y.Shape())

	loaded, err := LoadMultiheadAttention(reg, "attn", 16)
	require.NoError(t, err)
	assert.Equal(t, 32, loaded.HeadDim)
	assert.Same(t, m.BiasV, loaded.BiasV)
}

func TestMultiheadAttention_NotDivisible(t *testing.T) {
	reg := newTestRegistry()
	_, err := InitMultiheadAttention(reg, "attn", 10, 3)
	assert.ErrorIs(t, err, graph.ErrShapeMismatch)
	assert.Zero(t, reg.Len())

	_, err = InitMultiheadAttention(reg, "attn", 8, 2)
	require.NoError(t, err)
	_, err = LoadMultiheadAttention(reg, "attn", 3)
	assert.ErrorIs(t, err, graph.ErrShapeMismatch)
}

// referenceAttention computes softmax(q k^T / sqrt(Dh) + mask) v per head
// directly on (seq, model_dim) rows.
func referenceAttention(x []float32, seq, dim, heads int, mask []float32) []float32 {
	hd := dim / heads
	scale := 1 / math.Sqrt(float64(hd))
	out := make([]float32, seq*dim)

	for h := 0; h < heads; h++ {
		for i := 0; i < seq; i++ {
			scores := make([]float64, seq)
			maxScore := math.Inf(-1)
			for j := 0; j < seq; j++ {
				var dot float64
				for d := 0; d < hd; d++ {
					dot += float64(x[i*dim+h*hd+d]) * float64(x[j*dim+h*hd+d])
				}
				scores[j] = dot * scale
				if mask != nil {
					scores[j] += float64(mask[i*seq+j])
				}
				maxScore = math.Max(maxScore, scores[j])
			}
			var sum float64
			for j := range scores {
				scores[j] = math.Exp(scores[j] - maxScore)
				sum += scores[j]
			}
			for j := range scores {
				for d := 0; d < hd; d++ {
					out[i*dim+h*hd+d] += float32(scores[j] / sum * float64(x[j*dim+h*hd+d]))
				}
			}
		}
	}
	return out
}

func TestMultiheadAttention_MatchesReference(t *testing.T) {
	const seq, dim, heads = 5, 6, 3

	reg := newTestRegistry()
	m, err := InitMultiheadAttention(reg, "attn", dim, heads)
	require.NoError(t, err)
	for _, l := range []*Linear{m.QProj, m.KProj, m.VProj, m.OutputProj} {
		identity(t, l.Weight)
	}

	data := ramp(seq*dim, 0.3)
	ctx := newScratch()
	x := input(t, ctx, data, seq, dim)

	t.Run("NoMask", func(t *testing.T) {
		y, err := m.Forward(ctx, x, x, x, nil)
		require.NoError(t, err)
		assert.InDeltaSlice(t, referenceAttention(data, seq, dim, heads, nil), evaluate(t, ctx, y), 1e-5)
	})

	t.Run("Causal", func(t *testing.T) {
		mask, err := CausalMask(ctx, seq)
		require.NoError(t, err)
		maskData, err := mask.Floats()
		require.NoError(t, err)

		y, err := m.Forward(ctx, x, x, x, mask)
		require.NoError(t, err)
		got := evaluate(t, ctx, y)
		assert.InDeltaSlice(t, referenceAttention(data, seq, dim, heads, maskData), got, 1e-5)

		// The first position only attends to itself.
		assert.InDeltaSlice(t, data[:dim], got[:dim], 1e-6)
	})

	t.Run("BadMask", func(t *testing.T) {
		mask := input(t, ctx, make([]float32, 4), 2, 2)
		_, err := m.Forward(ctx, x, x, x, mask)
		assert.ErrorIs(t, err, graph.ErrShapeMismatch)
	})
}

func TestEndToEnd_FeedForwardThenAttention(t *testing.T) {
	const modelDim, innerDim, numHeads, seq = 64, 256, 8, 10

	reg := registry.New(registry.Options{
		MaxBytes: FeedForwardSize(modelDim, innerDim) + MultiheadAttentionSize(modelDim, numHeads),
	})
	f, err := InitFeedForward(reg, "layer.ffn", modelDim, innerDim)
	require.NoError(t, err)
	m, err := InitMultiheadAttention(reg, "layer.self_attn", modelDim, numHeads)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	require.NoError(t, f.Randomize(rng))
	require.NoError(t, m.Randomize(rng))

	ctx := newScratch()
	x := input(t, ctx, ramp(seq*modelDim, 0.1), seq, modelDim)

	h, err := FeedForwardForward(ctx, reg, "layer.ffn", x)
	require.NoError(t, err)
	y, err := MultiheadAttentionForward(ctx, reg, "layer.self_attn", numHeads, h, h, h, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{seq, modelDim}, y.Shape())

	out := evaluate(t, ctx, y)
	require.Len(t, out, seq*modelDim)
	for _, v := range out {
		require.False(t, math.IsNaN(float64(v)) || math.IsInf(float64(v), 0))
	}
}

func TestCausalMask(t *testing.T) {
	ctx := newScratch()
	mask, err := CausalMask(ctx, 3)
	require.NoError(t, err)

	got, err := mask.Floats()
	require.NoError(t, err)
	inf := float32(math.Inf(-1))
	assert.Equal(t, []float32{0, inf, inf, 0, 0, inf, 0, 0, 0}, got)

	_, err = CausalMask(ctx, 0)
	assert.ErrorIs(t, err, graph.ErrShapeMismatch)
}
