// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package graph builds lazy computation graphs over the kernel engine.
//
// A Context owns tensors. Tensor operations record nodes and take the
// context that owns their result; Compute orders and evaluates the nodes
// reachable from its outputs.
//
// Example:
//
//	ctx := graph.NewContext(graph.Options{Name: "scratch"})
//	x, _ := ctx.FromFloats([]float32{1, 2, 3, 4}, 2, 2)
//	y, err := graph.Try(func() *graph.Tensor { return x.Add(ctx, x).RELU(ctx) })
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := ctx.Compute(y); err != nil {
//	    log.Fatal(err)
//	}
//	values, _ := y.Floats()
package graph

import (
	"github.com/born-ml/unity/internal/graph"
)

// Context is an arena of tensors and the graph nodes that produce them.
type Context = graph.Context

// Options configures a Context.
type Options = graph.Options

// Tensor is a node of a computation graph.
type Tensor = graph.Tensor

// Graph is the evaluation order of the nodes reachable from a set of outputs.
type Graph = graph.Graph

// Op identifies the operation that produces a tensor.
type Op = graph.Op

// Error describes a failed graph-building operation.
type Error = graph.Error

// Common errors.
var (
	ErrShapeMismatch = graph.ErrShapeMismatch
	ErrNotContiguous = graph.ErrNotContiguous
	ErrContextFull   = graph.ErrContextFull
	ErrStaleTensor   = graph.ErrStaleTensor
	ErrClosed        = graph.ErrClosed
	ErrNotComputed   = graph.ErrNotComputed
)

// NewContext creates a new context.
func NewContext(opts Options) *Context {
	return graph.NewContext(opts)
}

// Try runs fn and converts a graph *Error panic into a returned error.
func Try[T any](fn func() T) (T, error) {
	return graph.Try(fn)
}
