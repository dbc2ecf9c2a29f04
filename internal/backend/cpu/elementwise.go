package cpu

import (
	"fmt"

	"github.com/born-ml/unity/internal/tensor"
)

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.Raw) *tensor.Raw {
	return binary("add", a, b, func(x, y float32) float32 { return x + y })
}

// Mul performs element-wise multiplication with NumPy-style broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.Raw) *tensor.Raw {
	return binary("mul", a, b, func(x, y float32) float32 { return x * y })
}

// ReLU computes max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.Raw) *tensor.Raw {
	return unary("relu", x, func(v float32) float32 {
		if v > 0 {
			return v
		}
		return 0
	})
}

// Scale multiplies every element by s.
func (cpu *CPUBackend) Scale(x *tensor.Raw, s float32) *tensor.Raw {
	return unary("scale", x, func(v float32) float32 { return v * s })
}

// Repeat broadcasts x to shape.
func (cpu *CPUBackend) Repeat(x *tensor.Raw, shape tensor.Shape) *tensor.Raw {
	out, _, err := tensor.BroadcastShapes(x.Shape(), shape)
	if err != nil || !out.Equal(shape) {
		panic(fmt.Sprintf("repeat: cannot broadcast %v to %v", x.Shape(), shape))
	}

	result := mustAlloc("repeat", shape)
	dst := result.Data()
	src := x.Storage()
	i := 0
	tensor.EachIndex(shape, tensor.BroadcastStrides(x, shape), x.Offset(), func(idx int) {
		dst[i] = src[idx]
		i++
	})
	return result
}

func unary(op string, x *tensor.Raw, fn func(float32) float32) *tensor.Raw {
	result := mustAlloc(op, x.Shape())
	dst := result.Data()

	if x.IsContiguous() {
		for i, v := range x.Data() {
			dst[i] = fn(v)
		}
		return result
	}

	src := x.Storage()
	i := 0
	x.Each(func(idx int) {
		dst[i] = fn(src[idx])
		i++
	})
	return result
}

func binary(op string, a, b *tensor.Raw, fn func(x, y float32) float32) *tensor.Raw {
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	result := mustAlloc(op, outShape)
	dst := result.Data()

	// Fast path: same shape, both packed.
	if !needsBroadcast && a.IsContiguous() && b.IsContiguous() {
		ad, bd := a.Data(), b.Data()
		for i := range dst {
			dst[i] = fn(ad[i], bd[i])
		}
		return result
	}

	as, bs := a.Storage(), b.Storage()
	eachPair(outShape,
		tensor.BroadcastStrides(a, outShape), a.Offset(),
		tensor.BroadcastStrides(b, outShape), b.Offset(),
		func(i, ia, ib int) {
			dst[i] = fn(as[ia], bs[ib])
		})
	return result
}

// eachPair walks shape in row-major order, tracking two storage cursors.
func eachPair(shape tensor.Shape, sa []int, oa int, sb []int, ob int, fn func(i, ia, ib int)) {
	n := shape.NumElements()
	coords := make([]int, len(shape))
	ia, ib := oa, ob
	for i := 0; i < n; i++ {
		fn(i, ia, ib)

		for d := len(shape) - 1; d >= 0; d-- {
			coords[d]++
			ia += sa[d]
			ib += sb[d]
			if coords[d] < shape[d] {
				break
			}
			ia -= coords[d] * sa[d]
			ib -= coords[d] * sb[d]
			coords[d] = 0
		}
	}
}

func mustAlloc(op string, shape tensor.Shape) *tensor.Raw {
	r, err := tensor.NewRaw(shape)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return r
}
