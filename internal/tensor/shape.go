package tensor

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxDims is the highest rank the engine supports.
const MaxDims = 4

// Shape represents the extents of a tensor, outermost first.
// The innermost (last) dimension is the fastest varying one in memory.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks that the shape has a supported rank and positive extents.
func (s Shape) Validate() error {
	if len(s) > MaxDims {
		return fmt.Errorf("rank %d exceeds the maximum of %d dimensions", len(s), MaxDims)
	}
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// String formats the shape as (d0, d1, ...).
func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = strconv.Itoa(d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// ComputeStrides calculates packed row-major strides (in elements) for the shape.
// stride[i] is the product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// IsPacked reports whether strides describe a packed row-major layout of shape.
// Dimensions of extent 1 never move the cursor, so their stride is ignored.
func IsPacked(shape Shape, strides []int) bool {
	if len(shape) != len(strides) {
		return false
	}
	expected := 1
	for i := len(shape) - 1; i >= 0; i-- {
		if shape[i] != 1 && strides[i] != expected {
			return false
		}
		expected *= shape[i]
	}
	return true
}

// BroadcastShapes implements NumPy-style broadcasting rules.
//
// Shapes are compared from the innermost dimension outwards; two extents are
// compatible when they are equal or one of them is 1, and missing leading
// dimensions count as 1.
//
// Returns the broadcasted shape, whether any broadcasting happened, and an
// error if the shapes are incompatible.
//
//	(3, 1) + (3, 5) → (3, 5), true, nil
//	(5)    + (3, 5) → (3, 5), true, nil
//	(3, 4) + (3, 5) → nil, false, error
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	maxLen := max(len(a), len(b))
	result := make(Shape, maxLen)
	needsBroadcast := len(a) != len(b)

	for i := 0; i < maxLen; i++ {
		aIdx := len(a) - 1 - i
		bIdx := len(b) - 1 - i

		aDim := 1
		if aIdx >= 0 {
			aDim = a[aIdx]
		}

		bDim := 1
		if bIdx >= 0 {
			bDim = b[bIdx]
		}

		switch {
		case aDim == bDim:
			result[maxLen-1-i] = aDim
		case aDim == 1:
			result[maxLen-1-i] = bDim
			needsBroadcast = true
		case bDim == 1:
			result[maxLen-1-i] = aDim
			needsBroadcast = true
		default:
			return nil, false, fmt.Errorf("shapes not compatible for broadcasting: %v vs %v (dimension %d: %d vs %d)",
				a, b, maxLen-1-i, aDim, bDim)
		}
	}

	return result, needsBroadcast, nil
}

// BroadcastStrides returns the strides that read r as if it had shape out.
// Broadcast dimensions get stride 0. out must be a valid broadcast target of
// r's shape (see BroadcastShapes).
func BroadcastStrides(r *Raw, out Shape) []int {
	strides := make([]int, len(out))
	offset := len(out) - len(r.shape)
	for i := range r.shape {
		if r.shape[i] != 1 {
			strides[offset+i] = r.stride[i]
		}
	}
	return strides
}
