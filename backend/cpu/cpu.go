// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for the kernel engine.
//
// Matrix products run through gonum's SGEMM; row-wise kernels (norm,
// softmax) and attention heads are spread across goroutines.
//
// Example:
//
//	import (
//	    "github.com/born-ml/unity/backend/cpu"
//	    "github.com/born-ml/unity/graph"
//	)
//
//	func main() {
//	    ctx := graph.NewContext(graph.Options{Backend: cpu.New()})
//	    defer ctx.Close()
//	}
package cpu

import (
	internalcpu "github.com/born-ml/unity/internal/backend/cpu"
	"github.com/born-ml/unity/internal/parallel"
	"github.com/born-ml/unity/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// ParallelConfig controls how kernels split work across goroutines.
type ParallelConfig = parallel.Config

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a CPU backend using every CPU.
func New() *Backend {
	return internalcpu.New()
}

// NewWithConfig creates a CPU backend with an explicit parallelism config.
func NewWithConfig(cfg ParallelConfig) *Backend {
	return internalcpu.NewWithConfig(cfg)
}

// DefaultParallelConfig returns defaults based on the CPU count.
func DefaultParallelConfig() ParallelConfig {
	return parallel.DefaultConfig()
}

// Sequential returns a config that runs every kernel on the calling goroutine.
func Sequential() ParallelConfig {
	return parallel.Sequential()
}
