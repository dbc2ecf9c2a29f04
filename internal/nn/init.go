package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/unity/internal/graph"
)

// Xavier fills t with values drawn from the Xavier/Glorot uniform
// distribution U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out))).
func Xavier(rng *rand.Rand, t *graph.Tensor, fanIn, fanOut int) error {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))

	data := make([]float32, t.NumElements())
	for i := range data {
		data[i] = float32((rng.Float64()*2.0 - 1.0) * bound)
	}
	return t.SetFloats(data)
}

// Fill sets every element of t to v.
func Fill(t *graph.Tensor, v float32) error {
	data := make([]float32, t.NumElements())
	for i := range data {
		data[i] = v
	}
	return t.SetFloats(data)
}

// Uniform fills t with values drawn from U(-bound, bound).
func Uniform(rng *rand.Rand, t *graph.Tensor, bound float64) error {
	data := make([]float32, t.NumElements())
	for i := range data {
		data[i] = float32((rng.Float64()*2.0 - 1.0) * bound)
	}
	return t.SetFloats(data)
}
