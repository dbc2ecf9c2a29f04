package registry

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/born-ml/unity/internal/tensor"
)

// MaxEntries is the maximum number of parameters a Descriptor records.
const MaxEntries = 16 * 1024

// Entry is one declared parameter.
type Entry struct {
	Key   Key
	Shape []int
}

// Descriptor is an ordered record of parameter keys and shapes: the
// architecture of a model, independent of any weight values.
//
// A Registry records every registration into its own Descriptor. A
// Descriptor built elsewhere (for example from a weights file header)
// can be passed as Options.Schema to validate registrations.
type Descriptor struct {
	entries *orderedmap.OrderedMap[Key, []int]
}

// NewDescriptor creates an empty descriptor.
func NewDescriptor() *Descriptor {
	return &Descriptor{entries: orderedmap.New[Key, []int]()}
}

// Declare records key with shape.
func (d *Descriptor) Declare(key Key, shape ...int) error {
	if _, ok := d.entries.Get(key); ok {
		return &KeyError{Key: key.String(), Err: ErrDuplicateKey}
	}
	if d.entries.Len() >= MaxEntries {
		return &KeyError{Key: key.String(), Err: ErrTooManyEntries, Details: fmt.Sprintf("limit is %d", MaxEntries)}
	}
	d.entries.Set(key, append([]int(nil), shape...))
	return nil
}

// Lookup returns the shape declared for key.
func (d *Descriptor) Lookup(key Key) ([]int, bool) {
	shape, ok := d.entries.Get(key)
	if !ok {
		return nil, false
	}
	return append([]int(nil), shape...), true
}

// Len returns the number of declared parameters.
func (d *Descriptor) Len() int {
	return d.entries.Len()
}

// Entries returns the declared parameters in declaration order.
func (d *Descriptor) Entries() []Entry {
	out := make([]Entry, 0, d.entries.Len())
	for pair := d.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, Entry{Key: pair.Key, Shape: append([]int(nil), pair.Value...)})
	}
	return out
}

// Bytes returns the float32 storage size of all declared parameters.
func (d *Descriptor) Bytes() int {
	n := 0
	for pair := d.entries.Oldest(); pair != nil; pair = pair.Next() {
		n += tensor.Shape(pair.Value).NumElements() * tensor.Float32.Size()
	}
	return n
}

// Check validates key and shape against the declaration.
func (d *Descriptor) Check(key Key, shape []int) error {
	want, ok := d.entries.Get(key)
	if !ok {
		return &KeyError{Key: key.String(), Err: ErrUndeclaredKey}
	}
	if !tensor.Shape(want).Equal(shape) {
		return &KeyError{
			Key:     key.String(),
			Err:     ErrShapeMismatch,
			Details: fmt.Sprintf("declared %v, got %v", tensor.Shape(want), tensor.Shape(shape)),
		}
	}
	return nil
}
