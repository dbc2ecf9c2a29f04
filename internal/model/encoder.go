package model

import (
	"math/rand"

	"github.com/born-ml/unity/internal/config"
	"github.com/born-ml/unity/internal/graph"
	"github.com/born-ml/unity/internal/nn"
	"github.com/born-ml/unity/internal/registry"
)

// EncoderPrefix is the registry prefix of the encoder stack.
const EncoderPrefix registry.Prefix = "encoder"

// EncoderLayer is one post-norm transformer encoder layer:
//
//	x = self_attn_layer_norm(x + self_attn(x, x, x))
//	x = ffn_layer_norm(x + ffn(x))
type EncoderLayer struct {
	SelfAttn          *nn.MultiheadAttention
	SelfAttnLayerNorm *nn.LayerNorm
	FFN               *nn.FeedForward
	FFNLayerNorm      *nn.LayerNorm
}

// Encoder is a stack of encoder layers.
type Encoder struct {
	Layers []*EncoderLayer
}

// LayerPrefix returns the registry prefix of layer i.
func LayerPrefix(i int) registry.Prefix {
	return EncoderPrefix.Join("layers").Index(i)
}

// EncoderLayerSize returns the bytes needed by one encoder layer.
func EncoderLayerSize(h config.HParams) int {
	ffn := nn.FeedForwardSize(h.ModelDim, h.InnerDim)
	if !h.FFNInnerLayerNorm {
		ffn -= nn.LayerNormSize(h.InnerDim)
	}
	return nn.MultiheadAttentionSize(h.ModelDim, h.NumHeads) + ffn + 2*nn.LayerNormSize(h.ModelDim)
}

// EncoderSize returns the bytes needed by the whole encoder.
func EncoderSize(h config.HParams) int {
	return h.NumLayers * EncoderLayerSize(h)
}

// InitEncoder registers h.NumLayers encoder layers.
func InitEncoder(reg *registry.Registry, h config.HParams) (*Encoder, error) {
	e := &Encoder{Layers: make([]*EncoderLayer, h.NumLayers)}
	for i := range e.Layers {
		prefix := LayerPrefix(i)
		l := &EncoderLayer{}

		var err error
		if l.SelfAttn, err = nn.InitMultiheadAttention(reg, prefix.Join("self_attn"), h.ModelDim, h.NumHeads); err != nil {
			return nil, err
		}
		if l.SelfAttnLayerNorm, err = nn.InitLayerNorm(reg, prefix.Join("self_attn_layer_norm"), h.ModelDim); err != nil {
			return nil, err
		}
		if l.FFN, err = nn.InitFeedForward(reg, prefix.Join("ffn"), h.ModelDim, h.InnerDim,
			nn.WithInnerLayerNorm(h.FFNInnerLayerNorm)); err != nil {
			return nil, err
		}
		if l.FFNLayerNorm, err = nn.InitLayerNorm(reg, prefix.Join("ffn_layer_norm"), h.ModelDim); err != nil {
			return nil, err
		}
		e.Layers[i] = l
	}
	return e, nil
}

// LoadEncoder binds h.NumLayers encoder layers to parameters in reg.
func LoadEncoder(reg *registry.Registry, h config.HParams) (*Encoder, error) {
	e := &Encoder{Layers: make([]*EncoderLayer, h.NumLayers)}
	for i := range e.Layers {
		prefix := LayerPrefix(i)
		l := &EncoderLayer{}

		var err error
		if l.SelfAttn, err = nn.LoadMultiheadAttention(reg, prefix.Join("self_attn"), h.NumHeads); err != nil {
			return nil, err
		}
		if l.SelfAttnLayerNorm, err = nn.LoadLayerNorm(reg, prefix.Join("self_attn_layer_norm")); err != nil {
			return nil, err
		}
		if l.FFN, err = nn.LoadFeedForward(reg, prefix.Join("ffn")); err != nil {
			return nil, err
		}
		if l.FFNLayerNorm, err = nn.LoadLayerNorm(reg, prefix.Join("ffn_layer_norm")); err != nil {
			return nil, err
		}
		e.Layers[i] = l
	}
	return e, nil
}

// Forward runs x of shape (seq, model_dim) through every layer.
// mask is an additive (seq, seq) attention mask, or nil.
func (e *Encoder) Forward(ctx *graph.Context, x, mask *graph.Tensor) (*graph.Tensor, error) {
	var err error
	for _, l := range e.Layers {
		if x, err = l.Forward(ctx, x, mask); err != nil {
			return nil, err
		}
	}
	return x, nil
}

// Forward runs one layer.
func (l *EncoderLayer) Forward(ctx *graph.Context, x, mask *graph.Tensor) (*graph.Tensor, error) {
	attn, err := l.SelfAttn.Forward(ctx, x, x, x, mask)
	if err != nil {
		return nil, err
	}
	if x, err = residual(ctx, x, attn); err != nil {
		return nil, err
	}
	if x, err = l.SelfAttnLayerNorm.Forward(ctx, x); err != nil {
		return nil, err
	}

	ffn, err := l.FFN.Forward(ctx, x)
	if err != nil {
		return nil, err
	}
	if x, err = residual(ctx, x, ffn); err != nil {
		return nil, err
	}
	return l.FFNLayerNorm.Forward(ctx, x)
}

func residual(ctx *graph.Context, x, y *graph.Tensor) (*graph.Tensor, error) {
	return graph.Try(func() *graph.Tensor {
		return x.Add(ctx, y)
	})
}

// Randomize fills every projection with random values.
func (e *Encoder) Randomize(rng *rand.Rand) error {
	for _, l := range e.Layers {
		if err := l.SelfAttn.Randomize(rng); err != nil {
			return err
		}
		if err := l.FFN.Randomize(rng); err != nil {
			return err
		}
	}
	return nil
}
