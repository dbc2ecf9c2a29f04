// Package model ties hyperparameters, a parameter registry and a bound
// computation context into a single inference handle.
package model

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/born-ml/unity/internal/config"
	"github.com/born-ml/unity/internal/graph"
	"github.com/born-ml/unity/internal/loader"
	"github.com/born-ml/unity/internal/nn"
	"github.com/born-ml/unity/internal/registry"
)

// Common errors.
var (
	ErrNoContext = errors.New("no computation context bound")
	ErrNoEncoder = errors.New("model has no encoder")
)

// Model owns the parameters of one model instance for an inference session.
//
// Lifecycle:
//
//	m, err := model.Build(h)   // or model.New() and manual module init
//	defer m.Close()
//	m.SetContext(scratch)      // rebind before each pass
//	out, err := m.Encode(x, nil)
type Model struct {
	ID       uuid.UUID
	HParams  config.HParams
	Registry *registry.Registry
	Encoder  *Encoder

	ctx    *graph.Context
	closed bool
}

// Options configures New.
type Options struct {
	MaxBytes int                  // Parameter arena capacity; zero means unbounded
	Schema   *registry.Descriptor // Optional declaration registrations must match
}

// New allocates a model with an empty registry, zero hyperparameters and no
// bound context.
func New(opts Options) *Model {
	id := uuid.New()
	return &Model{
		ID: id,
		Registry: registry.New(registry.Options{
			Name:     "params-" + id.String()[:8],
			MaxBytes: opts.MaxBytes,
			Schema:   opts.Schema,
		}),
	}
}

// Build allocates a model sized for h and registers a transformer encoder.
func Build(h config.HParams, opts Options) (*Model, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxBytes == 0 {
		opts.MaxBytes = Size(h)
	}

	m := New(opts)
	m.HParams = h

	enc, err := InitEncoder(m.Registry, h)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("building encoder: %w", err)
	}
	m.Encoder = enc

	klog.V(1).InfoS("Built model", "id", m.ID, "layers", h.NumLayers, "params", m.Registry.Len(), "bytes", m.Registry.Bytes())
	return m, nil
}

// Size returns the parameter bytes of a model built from h.
func Size(h config.HParams) int {
	return EncoderSize(h)
}

// SetContext binds ctx for subsequent forward calls and returns the
// previously bound context. The previous context is not closed.
func (m *Model) SetContext(ctx *graph.Context) *graph.Context {
	prev := m.ctx
	m.ctx = ctx
	return prev
}

// Context returns the bound context, or nil.
func (m *Model) Context() *graph.Context {
	return m.ctx
}

// Size returns the bytes held by the model's parameters.
func (m *Model) Size() int {
	return m.Registry.Bytes()
}

// Close releases the bound context and the parameter arena.
// Closing twice is a no-op.
func (m *Model) Close() {
	if m.closed {
		return
	}
	m.closed = true
	if m.ctx != nil {
		m.ctx.Close()
		m.ctx = nil
	}
	m.Registry.Close()
	klog.V(2).InfoS("Closed model", "id", m.ID)
}

// Encode appends the encoder's forward pass over input to the bound
// context and returns the output tensor. Call Compute on the context to
// evaluate it.
func (m *Model) Encode(input, mask *graph.Tensor) (*graph.Tensor, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	return m.Encoder.Forward(m.ctx, input, mask)
}

// Run encodes a (seq, model_dim) sequence given as packed floats, computes
// the result and returns it.
func (m *Model) Run(data []float32, seq int, causal bool) ([]float32, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	if seq > m.HParams.MaxSeqLen {
		return nil, fmt.Errorf("sequence of %d tokens exceeds max_seq_len %d: %w", seq, m.HParams.MaxSeqLen, graph.ErrShapeMismatch)
	}

	x, err := m.ctx.FromFloats(data, seq, m.HParams.ModelDim)
	if err != nil {
		return nil, err
	}
	var mask *graph.Tensor
	if causal {
		if mask, err = nn.CausalMask(m.ctx, seq); err != nil {
			return nil, err
		}
	}

	out, err := m.Encode(x, mask)
	if err != nil {
		return nil, err
	}
	if err := m.ctx.Compute(out); err != nil {
		return nil, err
	}
	return out.Floats()
}

// LoadWeights copies weights for every registered parameter from r.
func (m *Model) LoadWeights(r *loader.Reader) error {
	if m.closed {
		return graph.ErrClosed
	}
	if err := loader.Load(m.Registry, r); err != nil {
		return err
	}
	klog.V(1).InfoS("Loaded weights", "id", m.ID, "params", m.Registry.Len())
	return nil
}

// Randomize fills the encoder's projections with deterministic random
// values derived from seed. LayerNorms keep their identity initialization.
func (m *Model) Randomize(seed int64) error {
	if m.closed {
		return graph.ErrClosed
	}
	if m.Encoder == nil {
		return ErrNoEncoder
	}
	//nolint:gosec // Using math/rand for weight initialization (not security-critical)
	return m.Encoder.Randomize(rand.New(rand.NewSource(seed)))
}

func (m *Model) ready() error {
	switch {
	case m.closed:
		return graph.ErrClosed
	case m.ctx == nil:
		return ErrNoContext
	case m.Encoder == nil:
		return ErrNoEncoder
	}
	return nil
}
