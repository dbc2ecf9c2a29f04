package registry

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"k8s.io/klog/v2"

	"github.com/born-ml/unity/internal/graph"
	"github.com/born-ml/unity/internal/tensor"
)

// Options configures a Registry.
type Options struct {
	Name     string         // Name used in logs
	MaxBytes int            // Arena capacity in bytes; zero means unbounded
	Schema   *Descriptor    // Optional declaration registrations must match
	Backend  tensor.Backend // Backend for the arena context; defaults to CPU
}

// Registry maps parameter keys to tensors.
//
// Parameters live in the registry's arena, a graph.Context that is never
// reset, so forward passes built in scratch contexts can read them across
// any number of resets. The registry is insert-only.
type Registry struct {
	ctx    *graph.Context
	params *orderedmap.OrderedMap[Key, *graph.Tensor]
	arch   *Descriptor
	schema *Descriptor
}

// New creates an empty registry.
func New(opts Options) *Registry {
	name := opts.Name
	if name == "" {
		name = "params"
	}
	return &Registry{
		ctx:    graph.NewContext(graph.Options{Name: name, MaxBytes: opts.MaxBytes, Backend: opts.Backend}),
		params: orderedmap.New[Key, *graph.Tensor](),
		arch:   NewDescriptor(),
		schema: opts.Schema,
	}
}

// Context returns the arena that owns the registry's parameters.
func (r *Registry) Context() *graph.Context {
	return r.ctx
}

// Alloc creates a zero-filled parameter of the given shape and registers it
// under key.
func (r *Registry) Alloc(key Key, shape ...int) (*graph.Tensor, error) {
	if err := r.admit(key, shape); err != nil {
		return nil, err
	}

	t, err := r.ctx.Empty(shape...)
	if err != nil {
		return nil, &KeyError{Key: key.String(), Err: err}
	}
	if err := r.insert(key, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Register adds an existing tensor under key. The tensor must be owned by
// the registry's arena.
func (r *Registry) Register(key Key, t *graph.Tensor) error {
	if t == nil {
		return &KeyError{Key: key.String(), Err: ErrKeyNotFound, Details: "nil tensor"}
	}
	if t.Context() != r.ctx {
		return &KeyError{Key: key.String(), Err: graph.ErrStaleTensor, Details: "tensor is not owned by the registry arena"}
	}
	if err := r.admit(key, t.Shape()); err != nil {
		return err
	}
	return r.insert(key, t)
}

// admit checks that key may be registered with shape.
func (r *Registry) admit(key Key, shape []int) error {
	if r.ctx.Closed() {
		return &KeyError{Key: key.String(), Err: graph.ErrClosed}
	}
	if !key.Param.Valid() {
		return &KeyError{Key: key.String(), Err: ErrInvalidKey}
	}
	if _, ok := r.params.Get(key); ok {
		return &KeyError{Key: key.String(), Err: ErrDuplicateKey}
	}
	if r.schema != nil {
		return r.schema.Check(key, shape)
	}
	return nil
}

func (r *Registry) insert(key Key, t *graph.Tensor) error {
	if err := r.arch.Declare(key, t.Shape()...); err != nil {
		return err
	}
	r.params.Set(key, t.SetName(key.String()))
	klog.V(5).InfoS("Registered parameter", "registry", r.ctx.Name(), "key", key, "shape", t.Shape())
	return nil
}

// Lookup returns the parameter registered under key.
func (r *Registry) Lookup(key Key) (*graph.Tensor, error) {
	t, ok := r.params.Get(key)
	if !ok {
		return nil, &KeyError{Key: key.String(), Err: ErrKeyNotFound}
	}
	return t, nil
}

// Has reports whether key is registered.
func (r *Registry) Has(key Key) bool {
	_, ok := r.params.Get(key)
	return ok
}

// Len returns the number of registered parameters.
func (r *Registry) Len() int {
	return r.params.Len()
}

// Keys returns the registered keys in registration order.
func (r *Registry) Keys() []Key {
	keys := make([]Key, 0, r.params.Len())
	for pair := r.params.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Arch returns the descriptor recording every registration.
func (r *Registry) Arch() *Descriptor {
	return r.arch
}

// Bytes returns the bytes held by registered parameters.
func (r *Registry) Bytes() int {
	return r.ctx.Bytes()
}

// Close releases the arena. Parameters become unusable.
func (r *Registry) Close() {
	r.ctx.Close()
}
