package nn

import (
	"math"

	"github.com/born-ml/unity/internal/graph"
)

// CausalMask returns an additive (n, n) attention mask that hides future
// positions: entry (i, j) is 0 for j <= i and -inf otherwise.
func CausalMask(ctx *graph.Context, n int) (*graph.Tensor, error) {
	if err := checkDims("causal mask", n); err != nil {
		return nil, err
	}

	data := make([]float32, n*n)
	inf := float32(math.Inf(-1))
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			data[i*n+j] = inf
		}
	}
	return ctx.FromFloats(data, n, n)
}
