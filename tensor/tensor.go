// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor exposes the storage layer of the kernel engine: shapes,
// strided float32 buffers and the Backend interface kernels implement.
package tensor

import (
	"github.com/born-ml/unity/internal/tensor"
)

// Shape represents the extents of a tensor, outermost first.
type Shape = tensor.Shape

// DataType represents runtime type information for tensors.
type DataType = tensor.DataType

// Float32 is the element type of every tensor.
const Float32 = tensor.Float32

// MaxDims is the highest rank the engine supports.
const MaxDims = tensor.MaxDims

// Raw is a strided view onto a float32 buffer.
type Raw = tensor.Raw

// Backend defines the kernels a compute backend provides.
type Backend = tensor.Backend

// NewRaw allocates a zero-filled packed tensor.
func NewRaw(shape Shape) (*Raw, error) {
	return tensor.NewRaw(shape)
}

// FromFloats creates a packed tensor holding a copy of data.
func FromFloats(data []float32, shape Shape) (*Raw, error) {
	return tensor.FromFloats(data, shape)
}

// BroadcastShapes implements NumPy-style broadcasting rules.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return tensor.BroadcastShapes(a, b)
}
