package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/unity/internal/graph"
	"github.com/born-ml/unity/internal/registry"
)

// MultiheadAttention implements scaled dot-product attention over
// NumHeads parallel heads.
//
// Parameters under the module prefix:
//   - q_proj, k_proj, v_proj, output_proj: Linear (model_dim -> model_dim)
//   - bias_k, bias_v: (num_heads, 1, head_dim), registered for checkpoint
//     compatibility and not read by Forward
//
// NumHeads is fixed when the descriptor is built and is the only head count
// Forward uses.
type MultiheadAttention struct {
	QProj      *Linear
	KProj      *Linear
	VProj      *Linear
	OutputProj *Linear
	BiasK      *graph.Tensor
	BiasV      *graph.Tensor

	ModelDim int
	NumHeads int
	HeadDim  int
}

// MultiheadAttentionSize returns the bytes needed by a MultiheadAttention's
// parameters.
func MultiheadAttentionSize(modelDim, numHeads int) int {
	hd := 0
	if numHeads > 0 {
		hd = modelDim / numHeads
	}
	return 4*LinearSize(modelDim, modelDim, true) + 2*bytesOf(numHeads, 1, hd)
}

func headDim(modelDim, numHeads int) (int, error) {
	if err := checkDims("multihead attention", modelDim, numHeads); err != nil {
		return 0, err
	}
	if modelDim%numHeads != 0 {
		return 0, fmt.Errorf("multihead attention: model_dim %d is not divisible by %d heads: %w",
			modelDim, numHeads, graph.ErrShapeMismatch)
	}
	return modelDim / numHeads, nil
}

// InitMultiheadAttention registers the parameters of a MultiheadAttention
// under prefix. modelDim must be divisible by numHeads.
//
// Example:
//
//	attn, err := nn.InitMultiheadAttention(reg, "encoder.layers.0.self_attn", 512, 16)
//	// attn.HeadDim == 32
func InitMultiheadAttention(reg *registry.Registry, prefix registry.Prefix, modelDim, numHeads int) (*MultiheadAttention, error) {
	hd, err := headDim(modelDim, numHeads)
	if err != nil {
		return nil, err
	}

	m := &MultiheadAttention{ModelDim: modelDim, NumHeads: numHeads, HeadDim: hd}
	if m.QProj, err = InitLinear(reg, prefix.Join("q_proj"), modelDim, modelDim, true); err != nil {
		return nil, err
	}
	if m.KProj, err = InitLinear(reg, prefix.Join("k_proj"), modelDim, hd*numHeads, true); err != nil {
		return nil, err
	}
	if m.VProj, err = InitLinear(reg, prefix.Join("v_proj"), modelDim, modelDim, true); err != nil {
		return nil, err
	}
	if m.OutputProj, err = InitLinear(reg, prefix.Join("output_proj"), modelDim, modelDim, true); err != nil {
		return nil, err
	}
	if m.BiasK, err = reg.Alloc(prefix.Key(registry.BiasK), numHeads, 1, hd); err != nil {
		return nil, err
	}
	if m.BiasV, err = reg.Alloc(prefix.Key(registry.BiasV), numHeads, 1, hd); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadMultiheadAttention binds a MultiheadAttention with numHeads heads to
// parameters registered under prefix. bias_k and bias_v are optional.
func LoadMultiheadAttention(reg *registry.Registry, prefix registry.Prefix, numHeads int) (*MultiheadAttention, error) {
	var (
		m   MultiheadAttention
		err error
	)
	projs := []struct {
		name string
		dst  **Linear
	}{
		{"q_proj", &m.QProj},
		{"k_proj", &m.KProj},
		{"v_proj", &m.VProj},
		{"output_proj", &m.OutputProj},
	}
	for _, p := range projs {
		if *p.dst, err = LoadLinear(reg, prefix.Join(p.name)); err != nil {
			return nil, err
		}
	}

	m.ModelDim = m.QProj.In
	m.NumHeads = numHeads
	if m.HeadDim, err = headDim(m.ModelDim, numHeads); err != nil {
		return nil, err
	}
	for _, p := range projs {
		if l := *p.dst; l.In != m.ModelDim || l.Out != m.ModelDim {
			return nil, &registry.KeyError{
				Key:     prefix.Join(p.name).Key(registry.Weight).String(),
				Err:     registry.ErrShapeMismatch,
				Details: fmt.Sprintf("expected (%d, %d), got %v", m.ModelDim, m.ModelDim, l.Weight.Shape()),
			}
		}
	}

	if m.BiasK, err = lookupOptional(reg, prefix.Key(registry.BiasK), 3); err != nil {
		return nil, err
	}
	if m.BiasV, err = lookupOptional(reg, prefix.Key(registry.BiasV), 3); err != nil {
		return nil, err
	}
	return &m, nil
}

// Forward computes multi-head attention.
//
// Shapes:
//   - queries: (seq, model_dim)
//   - keys, values: (seq_k, model_dim)
//   - mask: additive (seq, seq_k), or nil for no masking
//
// Returns (seq, model_dim).
func (m *MultiheadAttention) Forward(ctx *graph.Context, queries, keys, values, mask *graph.Tensor) (*graph.Tensor, error) {
	return forward("multihead attention", func() *graph.Tensor {
		return m.apply(ctx, queries, keys, values, mask)
	})
}

func (m *MultiheadAttention) apply(ctx *graph.Context, queries, keys, values, mask *graph.Tensor) *graph.Tensor {
	// (S, D) -> (H, S, Dh)
	q := splitHeads(ctx, m.QProj.apply(ctx, queries), m.NumHeads).Permute(ctx, 1, 0, 2)
	k := splitHeads(ctx, m.KProj.apply(ctx, keys), m.NumHeads).Permute(ctx, 1, 0, 2)

	// (Sk, D) -> (Sk, Dh, H)
	v := splitHeads(ctx, m.VProj.apply(ctx, values), m.NumHeads).Permute(ctx, 0, 2, 1).Contiguous(ctx)

	attn := q.ScaledDotProductAttention(ctx, k, v, mask, 1/math.Sqrt(float64(m.HeadDim)))

	// (H, S, Dh) -> (S, D)
	return m.OutputProj.apply(ctx, mergeHeads(ctx, attn))
}

// Randomize fills all projections with random values. bias_k and bias_v
// are left untouched.
func (m *MultiheadAttention) Randomize(rng *rand.Rand) error {
	for _, l := range []*Linear{m.QProj, m.KProj, m.VProj, m.OutputProj} {
		if err := l.Randomize(rng); err != nil {
			return err
		}
	}
	return nil
}

// MultiheadAttentionForward loads the MultiheadAttention under prefix with
// numHeads heads and applies it.
func MultiheadAttentionForward(ctx *graph.Context, reg *registry.Registry, prefix registry.Prefix, numHeads int,
	queries, keys, values, mask *graph.Tensor) (*graph.Tensor, error) {
	m, err := LoadMultiheadAttention(reg, prefix, numHeads)
	if err != nil {
		return nil, err
	}
	return m.Forward(ctx, queries, keys, values, mask)
}
