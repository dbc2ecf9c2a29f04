// Package graph builds lazy computation graphs over the tensor engine.
//
// A Context owns tensors. Operations on tensors only record nodes; Compute
// orders the reachable nodes and evaluates them through a tensor.Backend.
// Operations take the context that owns their result, so a graph built in a
// scratch context may freely read tensors owned by a long-lived one (for
// example, parameters held by a registry).
//
// Contexts are not safe for concurrent use.
package graph

import (
	"fmt"

	"k8s.io/klog/v2"

	"github.com/born-ml/unity/internal/backend/cpu"
	"github.com/born-ml/unity/internal/tensor"
)

// Options configures a Context. Zero limits mean unbounded.
type Options struct {
	Name       string         // Name used in logs
	MaxTensors int            // Maximum number of tensors (nodes) alive at once
	MaxBytes   int            // Maximum bytes of tensor data owned by the context
	Backend    tensor.Backend // Kernel backend; defaults to the CPU backend
}

// Context is an arena of tensors and the graph nodes that produce them.
type Context struct {
	opts    Options
	backend tensor.Backend

	gen     uint64
	closed  bool
	tensors int
	bytes   int
}

// NewContext creates a new context.
func NewContext(opts Options) *Context {
	backend := opts.Backend
	if backend == nil {
		backend = cpu.New()
	}
	return &Context{opts: opts, backend: backend}
}

// Name returns the context name.
func (c *Context) Name() string {
	return c.opts.Name
}

// Backend returns the kernel backend used by Compute.
func (c *Context) Backend() tensor.Backend {
	return c.backend
}

// NumTensors returns the number of tensors created since the last reset.
func (c *Context) NumTensors() int {
	return c.tensors
}

// Bytes returns the bytes of tensor data owned by the context.
func (c *Context) Bytes() int {
	return c.bytes
}

// Closed reports whether Close has been called.
func (c *Context) Closed() bool {
	return c.closed
}

// Reset discards every tensor created so far. Using one of them afterwards
// fails with ErrStaleTensor.
func (c *Context) Reset() {
	c.gen++
	c.tensors = 0
	c.bytes = 0
	klog.V(4).InfoS("Context reset", "context", c.opts.Name, "generation", c.gen)
}

// Close releases the context. Further use fails with ErrClosed.
// Closing twice is a no-op.
func (c *Context) Close() {
	if c.closed {
		return
	}
	c.Reset()
	c.closed = true
}

// Empty creates a zero-initialized tensor with the given shape.
// The name "empty" follows ggml; storage is always zeroed.
func (c *Context) Empty(shape ...int) (*Tensor, error) {
	return c.leaf("empty", nil, tensor.Shape(shape))
}

// Zeros creates a zero-filled tensor with the given shape.
func (c *Context) Zeros(shape ...int) (*Tensor, error) {
	return c.leaf("zeros", nil, tensor.Shape(shape))
}

// FromFloats creates a tensor holding a copy of data.
func (c *Context) FromFloats(data []float32, shape ...int) (*Tensor, error) {
	if len(data) != tensor.Shape(shape).NumElements() {
		return nil, &Error{
			Op:      "from_floats",
			Err:     ErrShapeMismatch,
			Details: fmt.Sprintf("shape %v requires %d elements, got %d", tensor.Shape(shape), tensor.Shape(shape).NumElements(), len(data)),
		}
	}
	return c.leaf("from_floats", data, tensor.Shape(shape))
}

func (c *Context) leaf(op string, data []float32, shape tensor.Shape) (t *Tensor, err error) {
	defer func() {
		if r := recover(); r != nil {
			gerr, ok := r.(*Error)
			if !ok {
				panic(r)
			}
			t, err = nil, gerr
		}
	}()

	if err := shape.Validate(); err != nil {
		fail(op, ErrShapeMismatch, "%v", err)
	}
	c.reserve(op, shape.NumElements()*tensor.Float32.Size())

	raw, _ := tensor.NewRaw(shape)
	if data != nil {
		copy(raw.Data(), data)
	}

	return &Tensor{
		ctx:    c,
		gen:    c.gen,
		op:     opLeaf,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		raw:    raw,
	}, nil
}

// reserve accounts for a new tensor holding n bytes of owned data.
func (c *Context) reserve(op string, n int) {
	if c.closed {
		fail(op, ErrClosed, "context %q", c.opts.Name)
	}
	if c.opts.MaxTensors > 0 && c.tensors+1 > c.opts.MaxTensors {
		fail(op, ErrContextFull, "context %q holds %d tensors (max %d)", c.opts.Name, c.tensors, c.opts.MaxTensors)
	}
	if c.opts.MaxBytes > 0 && c.bytes+n > c.opts.MaxBytes {
		fail(op, ErrContextFull, "context %q needs %d bytes, %d of %d in use", c.opts.Name, n, c.bytes, c.opts.MaxBytes)
	}
	c.tensors++
	c.bytes += n
}
