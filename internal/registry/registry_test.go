package registry

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/unity/internal/graph"
)

func TestPrefix_Join(t *testing.T) {
	assert.Equal(t, Prefix("encoder.layers.3.ffn"), Prefix("encoder").Join("layers").Index(3).Join("ffn"))
	assert.Equal(t, Prefix("ffn"), Prefix("").Join("ffn"))
	assert.Equal(t, "ffn.inner_proj.weight", Prefix("ffn").Join("inner_proj").Key(Weight).String())
	assert.Equal(t, "bias", Prefix("").Key(Bias).String())
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		in      string
		want    Key
		wantErr bool
	}{
		{"attn.q_proj.weight", Key{"attn.q_proj", Weight}, false},
		{"attn.bias_k", Key{"attn", BiasK}, false},
		{"weight", Key{}, true},
		{"attn.", Key{}, true},
		{"attn.running_mean", Key{}, true},
	}

	for _, tt := range tests {
		got, err := ParseKey(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidKey, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.in, got.String())
	}
}

func TestRegistry_AllocAndLookup(t *testing.T) {
	reg := New(Options{})
	key := Prefix("lin").Key(Weight)

	w, err := reg.Alloc(key, 4, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 3}, w.Shape())
	assert.Equal(t, "lin.weight", w.Name())

	got, err := reg.Lookup(key)
	require.NoError(t, err)
	assert.Same(t, w, got)
	assert.True(t, reg.Has(key))
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, 48, reg.Bytes())
}

func TestRegistry_LookupMissing(t *testing.T) {
	reg := New(Options{})

	_, err := reg.Lookup(Prefix("nope").Key(Weight))
	require.ErrorIs(t, err, ErrKeyNotFound)

	var kerr *KeyError
	require.True(t, errors.As(err, &kerr))
	assert.Equal(t, "nope.weight", kerr.Key)
}

func TestRegistry_DuplicateKey(t *testing.T) {
	reg := New(Options{})
	key := Prefix("ln").Key(Bias)

	_, err := reg.Alloc(key, 8)
	require.NoError(t, err)

	_, err = reg.Alloc(key, 8)
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_Register(t *testing.T) {
	reg := New(Options{})

	own, err := reg.Context().FromFloats([]float32{1, 2}, 2)
	require.NoError(t, err)
	require.NoError(t, reg.Register(Prefix("a").Key(Bias), own))

	foreign, err := graph.NewContext(graph.Options{}).Zeros(2)
	require.NoError(t, err)
	assert.ErrorIs(t, reg.Register(Prefix("b").Key(Bias), foreign), graph.ErrStaleTensor)
}

func TestRegistry_KeysInRegistrationOrder(t *testing.T) {
	reg := New(Options{})
	want := []Key{
		Prefix("z").Key(Weight),
		Prefix("a").Key(Weight),
		Prefix("m").Key(Bias),
	}
	for _, k := range want {
		_, err := reg.Alloc(k, 1)
		require.NoError(t, err)
	}

	if diff := cmp.Diff(want, reg.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}

	entries := reg.Arch().Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, want[1], entries[1].Key)
	assert.Equal(t, []int{1}, entries[1].Shape)
}

func TestRegistry_Schema(t *testing.T) {
	schema := NewDescriptor()
	key := Prefix("lin").Key(Weight)
	require.NoError(t, schema.Declare(key, 4, 3))

	reg := New(Options{Schema: schema})

	_, err := reg.Alloc(key, 3, 4)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	assert.ErrorIs(t, err, graph.ErrShapeMismatch)

	_, err = reg.Alloc(Prefix("lin").Key(Bias), 4)
	assert.ErrorIs(t, err, ErrUndeclaredKey)

	_, err = reg.Alloc(key, 4, 3)
	require.NoError(t, err)
}

func TestRegistry_Capacity(t *testing.T) {
	reg := New(Options{MaxBytes: 16})

	_, err := reg.Alloc(Prefix("a").Key(Weight), 4)
	require.NoError(t, err)

	_, err = reg.Alloc(Prefix("b").Key(Weight), 1)
	assert.ErrorIs(t, err, graph.ErrContextFull)
	assert.False(t, reg.Has(Prefix("b").Key(Weight)))
}

func TestRegistry_Close(t *testing.T) {
	reg := New(Options{})
	reg.Close()

	_, err := reg.Alloc(Prefix("a").Key(Weight), 1)
	assert.ErrorIs(t, err, graph.ErrClosed)
}

func TestDescriptor_TooManyEntries(t *testing.T) {
	d := NewDescriptor()
	base := Prefix("layers")
	for i := 0; i < MaxEntries; i++ {
		require.NoError(t, d.Declare(base.Index(i).Key(Weight), 1))
	}

	err := d.Declare(base.Index(MaxEntries).Key(Weight), 1)
	assert.ErrorIs(t, err, ErrTooManyEntries)
	assert.Equal(t, MaxEntries, d.Len())
	assert.Equal(t, MaxEntries*4, d.Bytes())
}

func TestRegistry_TooManyEntries(t *testing.T) {
	reg := New(Options{})
	base := Prefix("layers")
	for i := 0; i < MaxEntries; i++ {
		_, err := reg.Alloc(base.Index(i).Key(Bias), 1)
		require.NoError(t, err)
	}

	_, err := reg.Alloc(base.Index(MaxEntries).Key(Bias), 1)
	assert.ErrorIs(t, err, ErrTooManyEntries)
	assert.False(t, reg.Has(base.Index(MaxEntries).Key(Bias)))
}

func TestDescriptor_Lookup(t *testing.T) {
	d := NewDescriptor()
	key := Prefix("x").Key(BiasV)
	require.NoError(t, d.Declare(key, 2, 1, 3))

	shape, ok := d.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, []int{2, 1, 3}, shape)

	_, ok = d.Lookup(Prefix("x").Key(BiasK))
	assert.False(t, ok)

	assert.ErrorIs(t, d.Declare(key, 1), ErrDuplicateKey)
}
