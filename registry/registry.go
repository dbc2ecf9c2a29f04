// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package registry holds named parameters for a model.
//
// Parameters are addressed by typed keys (module path plus parameter role)
// that render as "module.path.param".
package registry

import (
	"github.com/born-ml/unity/internal/registry"
)

// Registry maps parameter keys to tensors.
type Registry = registry.Registry

// Options configures a Registry.
type Options = registry.Options

// Prefix is the dot-separated path of a module.
type Prefix = registry.Prefix

// Param names a parameter's role within its module.
type Param = registry.Param

// Key identifies a parameter.
type Key = registry.Key

// Descriptor is an ordered record of parameter keys and shapes.
type Descriptor = registry.Descriptor

// Entry is one declared parameter.
type Entry = registry.Entry

// KeyError reports a failure tied to one parameter key.
type KeyError = registry.KeyError

// Parameter roles.
const (
	Weight = registry.Weight
	Bias   = registry.Bias
	BiasK  = registry.BiasK
	BiasV  = registry.BiasV
)

// MaxEntries is the maximum number of parameters a Descriptor records.
const MaxEntries = registry.MaxEntries

// Common errors.
var (
	ErrKeyNotFound    = registry.ErrKeyNotFound
	ErrDuplicateKey   = registry.ErrDuplicateKey
	ErrUndeclaredKey  = registry.ErrUndeclaredKey
	ErrTooManyEntries = registry.ErrTooManyEntries
	ErrInvalidKey     = registry.ErrInvalidKey
	ErrShapeMismatch  = registry.ErrShapeMismatch
)

// New creates an empty registry.
func New(opts Options) *Registry {
	return registry.New(opts)
}

// NewDescriptor creates an empty descriptor.
func NewDescriptor() *Descriptor {
	return registry.NewDescriptor()
}

// ParseKey parses a "module.param" string.
func ParseKey(s string) (Key, error) {
	return registry.ParseKey(s)
}
