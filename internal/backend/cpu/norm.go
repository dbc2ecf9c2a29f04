package cpu

import (
	"github.com/chewxy/math32"

	"github.com/born-ml/unity/internal/parallel"
	"github.com/born-ml/unity/internal/tensor"
)

// Norm normalizes every innermost row to zero mean and unit variance.
func (cpu *CPUBackend) Norm(x *tensor.Raw, eps float32) *tensor.Raw {
	result := x.Contiguous()
	rows, width := rowLayout(result.Shape())
	data := result.Data()

	parallel.Range(rows, cpu.cfg, func(lo, hi int) {
		for r := lo; r < hi; r++ {
			normRow(data[r*width:(r+1)*width], eps)
		}
	})
	return result
}

// Softmax applies softmax to every innermost row.
// Rows whose entries are all -inf produce zeros.
func (cpu *CPUBackend) Softmax(x *tensor.Raw) *tensor.Raw {
	result := x.Contiguous()
	rows, width := rowLayout(result.Shape())
	data := result.Data()

	parallel.Range(rows, cpu.cfg, func(lo, hi int) {
		for r := lo; r < hi; r++ {
			softmaxRow(data[r*width : (r+1)*width])
		}
	})
	return result
}

func rowLayout(shape tensor.Shape) (rows, width int) {
	if len(shape) == 0 {
		return 1, 1
	}
	width = shape[len(shape)-1]
	return shape.NumElements() / width, width
}

func normRow(row []float32, eps float32) {
	n := float32(len(row))

	var mean float32
	for _, v := range row {
		mean += v
	}
	mean /= n

	var variance float32
	for i, v := range row {
		d := v - mean
		row[i] = d
		variance += d * d
	}
	variance /= n

	inv := 1 / math32.Sqrt(variance+eps)
	for i := range row {
		row[i] *= inv
	}
}

func softmaxRow(row []float32) {
	maxVal := math32.Inf(-1)
	for _, v := range row {
		if v > maxVal {
			maxVal = v
		}
	}
	if math32.IsInf(maxVal, -1) {
		for i := range row {
			row[i] = 0
		}
		return
	}

	var sum float32
	for i, v := range row {
		e := math32.Exp(v - maxVal)
		row[i] = e
		sum += e
	}
	for i := range row {
		row[i] /= sum
	}
}
