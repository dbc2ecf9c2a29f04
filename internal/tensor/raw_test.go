package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i)
	}
	return out
}

func TestNewRaw_ZeroFilled(t *testing.T) {
	r, err := NewRaw(Shape{2, 3})
	require.NoError(t, err)

	assert.Equal(t, 6, r.NumElements())
	assert.Equal(t, 24, r.ByteSize())
	assert.Equal(t, []int{3, 1}, r.Strides())
	assert.True(t, r.IsContiguous())
	assert.Equal(t, make([]float32, 6), r.Floats())
}

func TestNewRaw_InvalidShape(t *testing.T) {
	_, err := NewRaw(Shape{2, 0})
	require.Error(t, err)

	_, err = NewRaw(Shape{1, 1, 1, 1, 1})
	require.Error(t, err)
}

func TestFromFloats_LengthMismatch(t *testing.T) {
	_, err := FromFloats([]float32{1, 2, 3}, Shape{2, 2})
	require.Error(t, err)
}

func TestRaw_PermuteIsView(t *testing.T) {
	r, err := FromFloats(seq(6), Shape{2, 3})
	require.NoError(t, err)

	p, err := r.Permute(1, 0)
	require.NoError(t, err)

	assert.Equal(t, Shape{3, 2}, p.Shape())
	assert.Equal(t, []int{1, 3}, p.Strides())
	assert.False(t, p.IsContiguous())
	assert.Equal(t, []float32{0, 3, 1, 4, 2, 5}, p.Floats())

	// Shared storage: writes through the source are visible in the view.
	r.Data()[1] = 42
	assert.Equal(t, float32(42), p.At(1, 0))
}

func TestRaw_PermuteRejectsInvalidAxes(t *testing.T) {
	r, err := NewRaw(Shape{2, 3, 4})
	require.NoError(t, err)

	_, err = r.Permute(0, 0, 1)
	require.Error(t, err)

	_, err = r.Permute(0, 1)
	require.Error(t, err)
}

func TestRaw_ReshapeRequiresContiguous(t *testing.T) {
	r, err := FromFloats(seq(6), Shape{2, 3})
	require.NoError(t, err)

	p, err := r.Permute(1, 0)
	require.NoError(t, err)

	_, err = p.Reshape(Shape{6})
	require.Error(t, err)

	c := p.Contiguous()
	assert.True(t, c.IsContiguous())

	flat, err := c.Reshape(Shape{6})
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 3, 1, 4, 2, 5}, flat.Floats())
}

func TestRaw_ReshapeElementCount(t *testing.T) {
	r, err := NewRaw(Shape{2, 3})
	require.NoError(t, err)

	_, err = r.Reshape(Shape{4})
	require.Error(t, err)
}

func TestRaw_HeadSplitRoundTrip(t *testing.T) {
	// (S=3, D=4) -> (S, H=2, Dh=2) -> (H, S, Dh) and back.
	r, err := FromFloats(seq(12), Shape{3, 4})
	require.NoError(t, err)

	split, err := r.Reshape(Shape{3, 2, 2})
	require.NoError(t, err)
	heads, err := split.Permute(1, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 3, 2}, heads.Shape())
	assert.Equal(t, float32(2), heads.At(1, 0, 0))

	back, err := heads.Permute(1, 0, 2)
	require.NoError(t, err)
	merged, err := back.Contiguous().Reshape(Shape{3, 4})
	require.NoError(t, err)
	assert.Equal(t, seq(12), merged.Floats())
}

func TestRaw_SetFloats(t *testing.T) {
	r, err := NewRaw(Shape{2, 2})
	require.NoError(t, err)

	require.NoError(t, r.SetFloats([]float32{1, 2, 3, 4}))
	assert.Equal(t, float32(3), r.At(1, 0))

	require.Error(t, r.SetFloats([]float32{1}))
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		a, b    Shape
		want    Shape
		wantErr bool
	}{
		{Shape{3, 1}, Shape{3, 5}, Shape{3, 5}, false},
		{Shape{5}, Shape{3, 5}, Shape{3, 5}, false},
		{Shape{3, 5}, Shape{3, 5}, Shape{3, 5}, false},
		{Shape{3, 4}, Shape{3, 5}, nil, true},
	}

	for _, tt := range tests {
		got, _, err := BroadcastShapes(tt.a, tt.b)
		if tt.wantErr {
			assert.Error(t, err, "%v vs %v", tt.a, tt.b)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestIsPacked_IgnoresUnitDims(t *testing.T) {
	assert.True(t, IsPacked(Shape{1, 4}, []int{0, 1}))
	assert.True(t, IsPacked(Shape{3, 1, 2}, []int{2, 7, 1}))
	assert.False(t, IsPacked(Shape{2, 3}, []int{1, 2}))
}

func TestDataType_Size(t *testing.T) {
	assert.Equal(t, 4, Float32.Size())
	assert.Equal(t, "float32", Float32.String())
}
