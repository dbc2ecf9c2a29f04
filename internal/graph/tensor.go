package graph

import (
	"fmt"

	"github.com/born-ml/unity/internal/tensor"
)

// Op identifies the operation that produces a tensor.
type Op int

// Graph operations.
const (
	opLeaf Op = iota
	opAdd
	opMul
	opMulmat
	opReLU
	opScale
	opNorm
	opSoftmax
	opRepeat
	opReshape
	opPermute
	opContiguous
	opSDPA
)

var opNames = [...]string{
	opLeaf:       "leaf",
	opAdd:        "add",
	opMul:        "mul",
	opMulmat:     "mulmat",
	opReLU:       "relu",
	opScale:      "scale",
	opNorm:       "norm",
	opSoftmax:    "softmax",
	opRepeat:     "repeat",
	opReshape:    "reshape",
	opPermute:    "permute",
	opContiguous: "contiguous",
	opSDPA:       "sdpa",
}

// String returns the operation name.
func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// IsView reports whether the operation aliases its source's storage.
func (o Op) IsView() bool {
	return o == opReshape || o == opPermute
}

// Tensor is a node of a computation graph.
//
// Leaf tensors own storage from the moment they are created. Every other
// tensor is a recipe until Compute evaluates it; views (Reshape, Permute)
// then alias their source's storage instead of copying.
type Tensor struct {
	ctx *Context
	gen uint64

	op  Op
	src []*Tensor

	shape  tensor.Shape
	stride []int
	name   string

	// Operation parameters.
	dims  []int
	eps   float32
	scale float32

	raw *tensor.Raw
}

// Context returns the context that owns the tensor.
func (t *Tensor) Context() *Context {
	return t.ctx
}

// Op returns the operation that produces the tensor.
func (t *Tensor) Op() Op {
	return t.op
}

// Sources returns the operands of the producing operation.
func (t *Tensor) Sources() []*Tensor {
	return t.src
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() []int {
	return t.shape.Clone()
}

// Dim returns the extent of dimension i.
func (t *Tensor) Dim(i int) int {
	return t.shape[i]
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int {
	return len(t.shape)
}

// Strides returns the tensor's element strides.
func (t *Tensor) Strides() []int {
	return append([]int(nil), t.stride...)
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return t.shape.NumElements()
}

// Bytes returns the logical size of the tensor data in bytes.
func (t *Tensor) Bytes() int {
	return t.NumElements() * tensor.Float32.Size()
}

// IsContiguous reports whether the tensor is laid out packed in row-major order.
func (t *Tensor) IsContiguous() bool {
	return tensor.IsPacked(t.shape, t.stride)
}

// Name returns the tensor's name.
func (t *Tensor) Name() string {
	return t.name
}

// SetName sets the tensor's name and returns the tensor.
func (t *Tensor) SetName(name string) *Tensor {
	t.name = name
	return t
}

// Computed reports whether the tensor holds data.
func (t *Tensor) Computed() bool {
	return t.raw != nil
}

// String describes the tensor.
func (t *Tensor) String() string {
	if t.name != "" {
		return fmt.Sprintf("%s %s%v", t.name, t.op, t.shape)
	}
	return fmt.Sprintf("%s%v", t.op, t.shape)
}

// Floats returns a copy of the tensor's elements in logical order.
func (t *Tensor) Floats() ([]float32, error) {
	if err := t.valid(); err != nil {
		return nil, &Error{Op: "floats", Err: err, Details: t.String()}
	}
	if t.raw == nil {
		return nil, &Error{Op: "floats", Err: ErrNotComputed, Details: t.String()}
	}
	return t.raw.Floats(), nil
}

// SetFloats overwrites the tensor's elements.
// The tensor must hold data and be contiguous.
func (t *Tensor) SetFloats(data []float32) error {
	if err := t.valid(); err != nil {
		return &Error{Op: "set_floats", Err: err, Details: t.String()}
	}
	if t.raw == nil {
		return &Error{Op: "set_floats", Err: ErrNotComputed, Details: t.String()}
	}
	if len(data) != t.NumElements() {
		return &Error{
			Op:      "set_floats",
			Err:     ErrShapeMismatch,
			Details: fmt.Sprintf("tensor %v holds %d elements, got %d", t.shape, t.NumElements(), len(data)),
		}
	}
	if !t.IsContiguous() {
		return &Error{Op: "set_floats", Err: ErrNotContiguous, Details: t.String()}
	}
	return t.raw.SetFloats(data)
}

// valid reports whether the tensor may still be used.
func (t *Tensor) valid() error {
	if t.ctx.closed {
		return ErrClosed
	}
	if t.gen != t.ctx.gen {
		return ErrStaleTensor
	}
	return nil
}
