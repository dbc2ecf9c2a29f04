package cpu

import (
	"fmt"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/unity/internal/tensor"
)

// ScaledDotProductAttention computes softmax(q k^T * scale + mask) v per head.
//
// q is (H, S, Dh), k is (H, Sk, Dh), v is (Sk, Dh, H) and mask is an
// additive (S, Sk) tensor or nil. Heads run concurrently.
func (cpu *CPUBackend) ScaledDotProductAttention(q, k, v, mask *tensor.Raw, scale float32) *tensor.Raw {
	qs, ks, vs := q.Shape(), k.Shape(), v.Shape()
	if len(qs) != 3 || len(ks) != 3 || len(vs) != 3 {
		panic(fmt.Sprintf("sdpa: expected 3D operands, got q%v k%v v%v", qs, ks, vs))
	}

	heads, seqQ, headDim := qs[0], qs[1], qs[2]
	seqK := ks[1]
	if ks[0] != heads || ks[2] != headDim {
		panic(fmt.Sprintf("sdpa: key shape %v does not match query %v", ks, qs))
	}
	if vs[0] != seqK || vs[1] != headDim || vs[2] != heads {
		panic(fmt.Sprintf("sdpa: value shape %v does not match (%d, %d, %d)", vs, seqK, headDim, heads))
	}
	if mask != nil && !mask.Shape().Equal(tensor.Shape{seqQ, seqK}) {
		panic(fmt.Sprintf("sdpa: mask shape %v does not match (%d, %d)", mask.Shape(), seqQ, seqK))
	}

	qd := q.Contiguous().Data()
	kd := k.Contiguous().Data()
	vd := v.Contiguous().Data()
	var md []float32
	if mask != nil {
		md = mask.Contiguous().Data()
	}

	result := mustAlloc("sdpa", tensor.Shape{heads, seqQ, headDim})
	out := result.Data()

	var g errgroup.Group
	if cpu.cfg.Enabled && cpu.cfg.Workers > 0 {
		g.SetLimit(cpu.cfg.Workers)
	} else {
		g.SetLimit(1)
	}

	for h := 0; h < heads; h++ {
		h := h
		g.Go(func() error {
			qh := qd[h*seqQ*headDim : (h+1)*seqQ*headDim]
			kh := kd[h*seqK*headDim : (h+1)*seqK*headDim]
			oh := out[h*seqQ*headDim : (h+1)*seqQ*headDim]

			scores := make([]float32, seqQ*seqK)
			blas32.Gemm(blas.NoTrans, blas.Trans, scale,
				blas32.General{Rows: seqQ, Cols: headDim, Stride: headDim, Data: qh},
				blas32.General{Rows: seqK, Cols: headDim, Stride: headDim, Data: kh},
				0,
				blas32.General{Rows: seqQ, Cols: seqK, Stride: seqK, Data: scores},
			)

			for i := 0; i < seqQ; i++ {
				row := scores[i*seqK : (i+1)*seqK]
				if md != nil {
					for j := range row {
						row[j] += md[i*seqK+j]
					}
				}
				softmaxRow(row)

				orow := oh[i*headDim : (i+1)*headDim]
				for j, p := range row {
					if p == 0 {
						continue
					}
					base := j * headDim * heads
					for d := range orow {
						orow[d] += p * vd[base+d*heads+h]
					}
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	return result
}
