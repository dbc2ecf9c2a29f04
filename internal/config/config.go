// Package config holds model hyperparameters.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/unity/internal/graph"
)

// MaxHParamsBytes is the maximum size of a serialized hyperparameter block.
const MaxHParamsBytes = 8 * 1024

// Common errors.
var (
	ErrHParamsTooLarge = errors.New("hyperparameter block exceeds maximum size")
	ErrInvalidHParams  = errors.New("invalid hyperparameters")
)

// HParams describes the shape of a transformer encoder.
type HParams struct {
	ModelDim          int  `yaml:"model_dim"`
	InnerDim          int  `yaml:"inner_dim"`
	NumHeads          int  `yaml:"num_heads"`
	NumLayers         int  `yaml:"num_layers"`
	FFNInnerLayerNorm bool `yaml:"ffn_inner_layer_norm"`
	MaxSeqLen         int  `yaml:"max_seq_len"`
}

// Defaults returns the hyperparameters of a 1024-wide, 24-layer encoder.
func Defaults() HParams {
	return HParams{
		ModelDim:          1024,
		InnerDim:          4096,
		NumHeads:          16,
		NumLayers:         24,
		FFNInnerLayerNorm: true,
		MaxSeqLen:         4096,
	}
}

// HeadDim returns ModelDim / NumHeads.
func (h HParams) HeadDim() int {
	if h.NumHeads == 0 {
		return 0
	}
	return h.ModelDim / h.NumHeads
}

// Validate checks that all dimensions are positive and that ModelDim
// splits evenly into NumHeads heads.
func (h HParams) Validate() error {
	fields := []struct {
		name  string
		value int
	}{
		{"model_dim", h.ModelDim},
		{"inner_dim", h.InnerDim},
		{"num_heads", h.NumHeads},
		{"num_layers", h.NumLayers},
		{"max_seq_len", h.MaxSeqLen},
	}
	for _, f := range fields {
		if f.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidHParams, f.name, f.value)
		}
	}
	if h.ModelDim%h.NumHeads != 0 {
		return fmt.Errorf("%w: model_dim %d is not divisible by num_heads %d: %w",
			ErrInvalidHParams, h.ModelDim, h.NumHeads, graph.ErrShapeMismatch)
	}
	return nil
}

// Parse decodes a YAML hyperparameter block on top of Defaults and
// validates the result. Unknown fields are rejected.
func Parse(data []byte) (HParams, error) {
	if len(data) > MaxHParamsBytes {
		return HParams{}, fmt.Errorf("%w: %d bytes (max %d)", ErrHParamsTooLarge, len(data), MaxHParamsBytes)
	}

	h := Defaults()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&h); err != nil && !errors.Is(err, io.EOF) {
		return HParams{}, fmt.Errorf("%w: %w", ErrInvalidHParams, err)
	}
	if err := h.Validate(); err != nil {
		return HParams{}, err
	}
	return h, nil
}

// Load reads and parses a YAML hyperparameter file.
func Load(path string) (HParams, error) {
	f, err := os.Open(path)
	if err != nil {
		return HParams{}, fmt.Errorf("failed to open hyperparameters: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxHParamsBytes+1))
	if err != nil {
		return HParams{}, fmt.Errorf("failed to read hyperparameters: %w", err)
	}

	h, err := Parse(data)
	if err != nil {
		return HParams{}, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

// Marshal encodes h as YAML.
func (h HParams) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(h)
	if err != nil {
		return nil, err
	}
	if len(data) > MaxHParamsBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrHParamsTooLarge, len(data), MaxHParamsBytes)
	}
	return data, nil
}
