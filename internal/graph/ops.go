package graph

import (
	"github.com/born-ml/unity/internal/tensor"
)

// Add returns t + b with NumPy-style broadcasting.
func (t *Tensor) Add(ctx *Context, b *Tensor) *Tensor {
	return t.binary(ctx, opAdd, b)
}

// Mul returns t * b element-wise with NumPy-style broadcasting.
func (t *Tensor) Mul(ctx *Context, b *Tensor) *Tensor {
	return t.binary(ctx, opMul, b)
}

func (t *Tensor) binary(ctx *Context, op Op, b *Tensor) *Tensor {
	check(op, t, b)
	shape, _, err := tensor.BroadcastShapes(t.shape, b.shape)
	if err != nil {
		fail(op.String(), ErrShapeMismatch, "%v", err)
	}
	return ctx.node(op, shape, nil, t, b)
}

// Mulmat returns x @ t^T, treating t as an (out, in) weight matrix.
//
// x must be (in) or (rows, in); the result is (out) or (rows, out).
// Both operands must be contiguous.
func (t *Tensor) Mulmat(ctx *Context, x *Tensor) *Tensor {
	check(opMulmat, t, x)
	if t.Rank() != 2 {
		fail("mulmat", ErrShapeMismatch, "weight must be 2D, got %v", t.shape)
	}
	if x.Rank() != 1 && x.Rank() != 2 {
		fail("mulmat", ErrShapeMismatch, "input must be 1D or 2D, got %v", x.shape)
	}
	if x.shape[x.Rank()-1] != t.shape[1] {
		fail("mulmat", ErrShapeMismatch, "%v @ %v^T", x.shape, t.shape)
	}
	if !t.IsContiguous() || !x.IsContiguous() {
		fail("mulmat", ErrNotContiguous, "%v @ %v^T", x.shape, t.shape)
	}

	shape := tensor.Shape{t.shape[0]}
	if x.Rank() == 2 {
		shape = tensor.Shape{x.shape[0], t.shape[0]}
	}
	return ctx.node(opMulmat, shape, nil, x, t)
}

// RELU returns max(0, t) element-wise.
func (t *Tensor) RELU(ctx *Context) *Tensor {
	check(opReLU, t)
	return ctx.node(opReLU, t.shape, nil, t)
}

// Scale returns t * s.
func (t *Tensor) Scale(ctx *Context, s float64) *Tensor {
	check(opScale, t)
	out := ctx.node(opScale, t.shape, nil, t)
	out.scale = float32(s)
	return out
}

// Norm normalizes t along its innermost dimension to zero mean and unit
// variance, with eps added to the variance.
func (t *Tensor) Norm(ctx *Context, eps float32) *Tensor {
	check(opNorm, t)
	out := ctx.node(opNorm, t.shape, nil, t)
	out.eps = eps
	return out
}

// Softmax applies softmax along the innermost dimension.
func (t *Tensor) Softmax(ctx *Context) *Tensor {
	check(opSoftmax, t)
	return ctx.node(opSoftmax, t.shape, nil, t)
}

// Repeat broadcasts t to the shape of like.
func (t *Tensor) Repeat(ctx *Context, like *Tensor) *Tensor {
	check(opRepeat, t, like)
	shape, _, err := tensor.BroadcastShapes(t.shape, like.shape)
	if err != nil || !shape.Equal(like.shape) {
		fail("repeat", ErrShapeMismatch, "cannot broadcast %v to %v", t.shape, like.shape)
	}
	return ctx.node(opRepeat, like.shape, nil, t)
}

// Reshape returns a view of t with a new shape.
// t must be contiguous and the element count must not change.
func (t *Tensor) Reshape(ctx *Context, shape ...int) *Tensor {
	check(opReshape, t)
	s := tensor.Shape(shape)
	if err := s.Validate(); err != nil {
		fail("reshape", ErrShapeMismatch, "%v", err)
	}
	if s.NumElements() != t.NumElements() {
		fail("reshape", ErrShapeMismatch, "cannot reshape %v into %v", t.shape, s)
	}
	if !t.IsContiguous() {
		fail("reshape", ErrNotContiguous, "%v (strides %v)", t.shape, t.stride)
	}
	return ctx.node(opReshape, s, s.ComputeStrides(), t)
}

// Permute returns a view of t whose dimension i is dimension dims[i] of t.
func (t *Tensor) Permute(ctx *Context, dims ...int) *Tensor {
	check(opPermute, t)
	shape, strides, err := tensor.PermuteLayout(t.shape, t.stride, dims)
	if err != nil {
		fail("permute", ErrShapeMismatch, "%v", err)
	}
	out := ctx.node(opPermute, shape, strides, t)
	out.dims = append([]int(nil), dims...)
	return out
}

// Contiguous returns a packed copy of t.
func (t *Tensor) Contiguous(ctx *Context) *Tensor {
	check(opContiguous, t)
	return ctx.node(opContiguous, t.shape, nil, t)
}

// ScaledDotProductAttention computes softmax(q k^T * scale + mask) v, with
// q being the receiver.
//
// Layouts:
//   - q: (heads, seq, head_dim)
//   - k: (heads, seq_k, head_dim)
//   - v: (seq_k, head_dim, heads)
//   - mask: additive (seq, seq_k), or nil
//
// Returns (heads, seq, head_dim).
func (t *Tensor) ScaledDotProductAttention(ctx *Context, k, v, mask *Tensor, scale float64) *Tensor {
	operands := []*Tensor{t, k, v}
	if mask != nil {
		operands = append(operands, mask)
	}
	check(opSDPA, operands...)

	if t.Rank() != 3 || k.Rank() != 3 || v.Rank() != 3 {
		fail("sdpa", ErrShapeMismatch, "expected 3D operands, got q%v k%v v%v", t.shape, k.shape, v.shape)
	}
	heads, seq, headDim := t.shape[0], t.shape[1], t.shape[2]
	seqK := k.shape[1]
	if k.shape[0] != heads || k.shape[2] != headDim {
		fail("sdpa", ErrShapeMismatch, "key %v does not match query %v", k.shape, t.shape)
	}
	if !v.shape.Equal(tensor.Shape{seqK, headDim, heads}) {
		fail("sdpa", ErrShapeMismatch, "value %v, want (%d, %d, %d)", v.shape, seqK, headDim, heads)
	}
	if mask != nil && !mask.shape.Equal(tensor.Shape{seq, seqK}) {
		fail("sdpa", ErrShapeMismatch, "mask %v, want (%d, %d)", mask.shape, seq, seqK)
	}

	out := ctx.node(opSDPA, tensor.Shape{heads, seq, headDim}, nil, operands...)
	out.scale = float32(scale)
	return out
}

// check validates the operands of op.
func check(op Op, operands ...*Tensor) {
	for _, t := range operands {
		if t == nil {
			fail(op.String(), ErrShapeMismatch, "nil operand")
		}
		if err := t.valid(); err != nil {
			fail(op.String(), err, "%s", t)
		}
	}
}

// node records a new tensor in c. A nil strides argument means the tensor
// owns packed storage; views pass their layout and own no data.
func (c *Context) node(op Op, shape tensor.Shape, strides []int, src ...*Tensor) *Tensor {
	owned := 0
	if strides == nil {
		owned = shape.NumElements() * tensor.Float32.Size()
		strides = shape.ComputeStrides()
	}
	c.reserve(op.String(), owned)

	return &Tensor{
		ctx:    c,
		gen:    c.gen,
		op:     op,
		src:    src,
		shape:  shape.Clone(),
		stride: strides,
	}
}
