// Package cpu implements the CPU backend with BLAS-backed matrix multiplication.
package cpu

import (
	"github.com/born-ml/unity/internal/parallel"
	"github.com/born-ml/unity/internal/tensor"
)

// CPUBackend implements tensor kernels on CPU.
type CPUBackend struct {
	cfg parallel.Config
}

// New creates a new CPU backend that splits row-wise kernels across all CPUs.
func New() *CPUBackend {
	return &CPUBackend{cfg: parallel.DefaultConfig()}
}

// NewWithConfig creates a CPU backend with an explicit parallelism config.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{cfg: cfg}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Config returns the parallelism config used by row-wise kernels.
func (cpu *CPUBackend) Config() parallel.Config {
	return cpu.cfg
}

// Contiguous returns a packed copy of x.
func (cpu *CPUBackend) Contiguous(x *tensor.Raw) *tensor.Raw {
	return x.Contiguous()
}

var _ tensor.Backend = (*CPUBackend)(nil)
