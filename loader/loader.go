// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package loader reads and writes model weights in the SafeTensors format.
//
// Example usage:
//
//	path, err := loader.Fetch(ctx, "gs://bucket/models/encoder.safetensors", cacheDir)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r, err := loader.Open(path)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	if err := loader.Load(reg, r); err != nil {
//	    log.Fatal(err)
//	}
package loader

import (
	"context"

	"github.com/born-ml/unity/internal/loader"
	"github.com/born-ml/unity/registry"
)

// Reader reads SafeTensors files.
type Reader = loader.Reader

// TensorInfo describes a tensor in a SafeTensors file.
type TensorInfo = loader.TensorInfo

// Tensor is a named tensor to be written.
type Tensor = loader.Tensor

// DType is a SafeTensors element type.
type DType = loader.DType

// Supported SafeTensors dtypes.
const (
	F32  = loader.F32
	F16  = loader.F16
	BF16 = loader.BF16
)

// Common errors.
var (
	ErrHeaderTooLarge   = loader.ErrHeaderTooLarge
	ErrTensorNotFound   = loader.ErrTensorNotFound
	ErrUnsupportedDType = loader.ErrUnsupportedDType
	ErrOutOfBounds      = loader.ErrOutOfBounds
	ErrUnsupportedURI   = loader.ErrUnsupportedURI
	ErrChecksumMismatch = loader.ErrChecksumMismatch
)

// MetadataChecksum is the metadata key holding the data section SHA-256.
const MetadataChecksum = loader.MetadataChecksum

// Open opens a SafeTensors file and parses its header.
func Open(path string) (*Reader, error) {
	return loader.Open(path)
}

// Load copies the weights for every parameter registered in reg from r.
func Load(reg *registry.Registry, r *Reader) error {
	return loader.Load(reg, r)
}

// Schema derives a registry descriptor from the file header.
func Schema(r *Reader) (*registry.Descriptor, error) {
	return loader.Schema(r)
}

// Save writes every parameter of reg to path.
func Save(path string, reg *registry.Registry, dtype DType, metadata map[string]string) error {
	return loader.Save(path, reg, dtype, metadata)
}

// Write writes tensors to path in SafeTensors format.
func Write(path string, dtype DType, tensors []Tensor, metadata map[string]string) error {
	return loader.Write(path, dtype, tensors, metadata)
}

// Fetch resolves a local path or gs://bucket/object URI to a local file.
func Fetch(ctx context.Context, uri, dir string) (string, error) {
	return loader.Fetch(ctx, uri, dir)
}
