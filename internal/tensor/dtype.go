// Package tensor provides the storage layer of the kernel engine: shapes,
// strided float32 buffers and the Backend interface kernels implement.
package tensor

// DataType represents runtime type information for tensors.
//
// The engine computes in single precision throughout; narrower on-disk
// formats (F16, BF16) are widened by the loader before they reach a tensor.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32:
		return 4
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	default:
		return "unknown"
	}
}
