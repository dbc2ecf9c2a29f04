package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/unity/internal/tensor"
)

// Mulmat computes x @ w^T.
//
// w is a packed (N, K) weight; x is a packed (K) vector or (M, K) matrix.
// The result is (N) or (M, N). The product runs through SGEMM with w
// transposed in place, so weights keep their on-disk (out, in) layout.
func (cpu *CPUBackend) Mulmat(x, w *tensor.Raw) *tensor.Raw {
	ws := w.Shape()
	xs := x.Shape()
	if len(ws) != 2 {
		panic(fmt.Sprintf("mulmat: weight must be 2D, got %v", ws))
	}
	if !x.IsContiguous() || !w.IsContiguous() {
		panic("mulmat: operands must be contiguous")
	}

	n, k := ws[0], ws[1]
	var m int
	var outShape tensor.Shape
	switch len(xs) {
	case 1:
		m, outShape = 1, tensor.Shape{n}
	case 2:
		m, outShape = xs[0], tensor.Shape{xs[0], n}
	default:
		panic(fmt.Sprintf("mulmat: input must be 1D or 2D, got %v", xs))
	}
	if xs[len(xs)-1] != k {
		panic(fmt.Sprintf("mulmat: shape mismatch %v @ %v^T", xs, ws))
	}

	result := mustAlloc("mulmat", outShape)
	blas32.Gemm(blas.NoTrans, blas.Trans, 1,
		blas32.General{Rows: m, Cols: k, Stride: k, Data: x.Data()},
		blas32.General{Rows: n, Cols: k, Stride: k, Data: w.Data()},
		0,
		blas32.General{Rows: m, Cols: n, Stride: n, Data: result.Data()},
	)
	return result
}
