package tensor

import (
	"fmt"
)

// Raw is the low-level tensor representation used by kernels.
//
// A Raw describes a window onto a float32 buffer: shape and strides (in
// elements) locate every logical element relative to offset. Views created
// with View or Permute share the buffer of their source, so no data moves
// until a kernel (or Contiguous) writes a fresh packed buffer.
type Raw struct {
	data   []float32 // Shared storage (base buffer, not offset-adjusted)
	shape  Shape     // Tensor dimensions
	stride []int     // Element strides per dimension
	offset int       // Element offset of the first logical element
}

// NewRaw allocates a zero-filled packed tensor with the given shape.
func NewRaw(shape Shape) (*Raw, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	return &Raw{
		data:   make([]float32, shape.NumElements()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
	}, nil
}

// FromFloats creates a packed tensor holding a copy of data.
func FromFloats(data []float32, shape Shape) (*Raw, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}

	r, err := NewRaw(shape)
	if err != nil {
		return nil, err
	}
	copy(r.data, data)
	return r, nil
}

// Shape returns the tensor's shape.
func (r *Raw) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's element strides.
func (r *Raw) Strides() []int {
	return r.stride
}

// Offset returns the element offset of the first logical element.
func (r *Raw) Offset() int {
	return r.offset
}

// DType returns the tensor's data type.
func (r *Raw) DType() DataType {
	return Float32
}

// NumElements returns the total number of elements.
func (r *Raw) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the logical size in bytes.
func (r *Raw) ByteSize() int {
	return r.NumElements() * Float32.Size()
}

// IsContiguous reports whether the elements are packed in row-major order.
func (r *Raw) IsContiguous() bool {
	return IsPacked(r.shape, r.stride)
}

// Data returns the packed element slice of a contiguous tensor.
// The slice aliases the tensor's storage.
//
// Panics if the tensor is not contiguous.
func (r *Raw) Data() []float32 {
	if !r.IsContiguous() {
		panic(fmt.Sprintf("tensor with shape %v and strides %v is not contiguous", r.shape, r.stride))
	}
	return r.data[r.offset : r.offset+r.NumElements()]
}

// Storage returns the whole shared buffer backing r.
// Kernels that honour strides index it with Index.
func (r *Raw) Storage() []float32 {
	return r.data
}

// Index returns the storage index of the element at the given coordinates.
func (r *Raw) Index(indices ...int) int {
	idx := r.offset
	for i, v := range indices {
		idx += v * r.stride[i]
	}
	return idx
}

// At returns the element at the given indices.
// Panics if indices are out of bounds.
func (r *Raw) At(indices ...int) float32 {
	if len(indices) != len(r.shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(r.shape), len(indices)))
	}
	for i, idx := range indices {
		if idx < 0 || idx >= r.shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", idx, i, r.shape[i]))
		}
	}
	return r.data[r.Index(indices...)]
}

// View returns a tensor sharing r's storage with a different layout.
// The caller guarantees that every addressed element lies inside the storage.
func (r *Raw) View(shape Shape, strides []int, offset int) *Raw {
	return &Raw{
		data:   r.data,
		shape:  shape.Clone(),
		stride: append([]int(nil), strides...),
		offset: offset,
	}
}

// Permute returns a view whose dimension i is dimension dims[i] of r.
func (r *Raw) Permute(dims ...int) (*Raw, error) {
	shape, strides, err := PermuteLayout(r.shape, r.stride, dims)
	if err != nil {
		return nil, err
	}
	return r.View(shape, strides, r.offset), nil
}

// Reshape returns a view of a contiguous tensor with a new shape.
func (r *Raw) Reshape(shape Shape) (*Raw, error) {
	if shape.NumElements() != r.NumElements() {
		return nil, fmt.Errorf("cannot reshape %v into %v", r.shape, shape)
	}
	if !r.IsContiguous() {
		return nil, fmt.Errorf("cannot reshape non-contiguous tensor %v (strides %v)", r.shape, r.stride)
	}
	return r.View(shape, shape.ComputeStrides(), r.offset), nil
}

// Floats returns a packed copy of the elements in logical order.
func (r *Raw) Floats() []float32 {
	out := make([]float32, r.NumElements())
	if r.IsContiguous() {
		copy(out, r.Data())
		return out
	}
	i := 0
	r.Each(func(idx int) {
		out[i] = r.data[idx]
		i++
	})
	return out
}

// Contiguous returns a packed copy of r.
func (r *Raw) Contiguous() *Raw {
	return &Raw{
		data:   r.Floats(),
		shape:  r.shape.Clone(),
		stride: r.shape.ComputeStrides(),
	}
}

// SetFloats overwrites the elements of a contiguous tensor.
func (r *Raw) SetFloats(data []float32) error {
	if len(data) != r.NumElements() {
		return fmt.Errorf("tensor %v holds %d elements, but %d values were provided", r.shape, r.NumElements(), len(data))
	}
	if !r.IsContiguous() {
		return fmt.Errorf("tensor %v is not contiguous", r.shape)
	}
	copy(r.Data(), data)
	return nil
}

// Each calls fn with the storage index of every element in logical order.
func (r *Raw) Each(fn func(idx int)) {
	EachIndex(r.shape, r.stride, r.offset, fn)
}

// EachIndex walks shape in row-major order and calls fn with the storage
// index computed from strides and offset.
func EachIndex(shape Shape, strides []int, offset int, fn func(idx int)) {
	n := shape.NumElements()
	if len(shape) == 0 {
		fn(offset)
		return
	}

	coords := make([]int, len(shape))
	idx := offset
	for k := 0; k < n; k++ {
		fn(idx)

		// Advance the odometer from the innermost dimension.
		for d := len(shape) - 1; d >= 0; d-- {
			coords[d]++
			idx += strides[d]
			if coords[d] < shape[d] {
				break
			}
			idx -= coords[d] * strides[d]
			coords[d] = 0
		}
	}
}

// PermuteLayout computes the shape and strides of a permuted view.
// Output dimension i takes dimension dims[i] of the input.
func PermuteLayout(shape Shape, strides []int, dims []int) (Shape, []int, error) {
	if len(dims) != len(shape) {
		return nil, nil, fmt.Errorf("permute: got %d axes for a rank %d tensor", len(dims), len(shape))
	}

	seen := make([]bool, len(shape))
	outShape := make(Shape, len(shape))
	outStrides := make([]int, len(shape))
	for i, d := range dims {
		if d < 0 || d >= len(shape) || seen[d] {
			return nil, nil, fmt.Errorf("permute: %v is not a permutation of %d axes", dims, len(shape))
		}
		seen[d] = true
		outShape[i] = shape[d]
		outStrides[i] = strides[d]
	}
	return outShape, outStrides, nil
}
