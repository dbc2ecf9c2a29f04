package loader

import (
	"fmt"

	"k8s.io/klog/v2"

	"github.com/born-ml/unity/internal/registry"
	"github.com/born-ml/unity/internal/tensor"
)

// Load copies the weights for every parameter registered in reg from r.
//
// A registered key missing from the file is ErrKeyNotFound; a shape that
// differs from the registered one is ErrShapeMismatch. File tensors with no
// registered parameter are ignored. A file carrying a checksum is verified
// first.
func Load(reg *registry.Registry, r *Reader) error {
	if err := r.Verify(); err != nil {
		return err
	}

	used := make(map[string]bool, reg.Len())
	for _, key := range reg.Keys() {
		name := key.String()
		used[name] = true

		info, err := r.TensorInfo(name)
		if err != nil {
			return &registry.KeyError{Key: name, Err: registry.ErrKeyNotFound, Details: "not in weights file"}
		}

		t, err := reg.Lookup(key)
		if err != nil {
			return err
		}
		if !tensor.Shape(info.Shape).Equal(t.Shape()) {
			return &registry.KeyError{
				Key:     name,
				Err:     registry.ErrShapeMismatch,
				Details: fmt.Sprintf("file has %v, registered %v", tensor.Shape(info.Shape), tensor.Shape(t.Shape())),
			}
		}

		data, err := r.ReadFloats(name)
		if err != nil {
			return err
		}
		if err := t.SetFloats(data); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	for _, name := range r.TensorNames() {
		if !used[name] {
			klog.V(1).InfoS("Ignoring unregistered tensor", "name", name)
		}
	}
	klog.V(2).InfoS("Loaded weights", "tensors", reg.Len(), "bytes", reg.Bytes())
	return nil
}

// Schema derives a registry descriptor from the file header, for use as
// registry.Options.Schema. Tensor names that are not parameter keys are
// skipped.
func Schema(r *Reader) (*registry.Descriptor, error) {
	d := registry.NewDescriptor()
	for _, name := range r.TensorNames() {
		key, err := registry.ParseKey(name)
		if err != nil {
			klog.V(1).InfoS("Skipping tensor", "name", name, "err", err)
			continue
		}
		info, _ := r.TensorInfo(name)
		if err := d.Declare(key, info.Shape...); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Save writes every parameter of reg to path, in registration order.
func Save(path string, reg *registry.Registry, dtype DType, metadata map[string]string) error {
	tensors := make([]Tensor, 0, reg.Len())
	for _, key := range reg.Keys() {
		t, err := reg.Lookup(key)
		if err != nil {
			return err
		}
		data, err := t.Floats()
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		tensors = append(tensors, Tensor{Name: key.String(), Shape: t.Shape(), Data: data})
	}
	return Write(path, dtype, tensors, metadata)
}
