package nn

import (
	"fmt"

	"github.com/born-ml/unity/internal/graph"
)

// ReshapeToHeads splits x of shape (seq, model_dim) into num_heads heads.
//
// The result is a (num_heads, seq, head_dim) view of x; no data moves.
// Operations that need packed memory must call Contiguous on it first.
func ReshapeToHeads(ctx *graph.Context, x *graph.Tensor, numHeads int) (*graph.Tensor, error) {
	return forward("reshape to heads", func() *graph.Tensor {
		return splitHeads(ctx, x, numHeads).Permute(ctx, 1, 0, 2)
	})
}

// MergeHeads is the inverse of ReshapeToHeads: it turns (num_heads, seq,
// head_dim) into a packed (seq, num_heads*head_dim) tensor.
func MergeHeads(ctx *graph.Context, x *graph.Tensor) (*graph.Tensor, error) {
	return forward("merge heads", func() *graph.Tensor {
		return mergeHeads(ctx, x)
	})
}

// splitHeads reshapes (seq, model_dim) to (seq, num_heads, head_dim).
func splitHeads(ctx *graph.Context, x *graph.Tensor, numHeads int) *graph.Tensor {
	if x.Rank() != 2 {
		panic(&graph.Error{Op: "split heads", Err: graph.ErrShapeMismatch, Details: fmt.Sprintf("expected (seq, model_dim), got %v", x.Shape())})
	}
	seq, dim := x.Dim(0), x.Dim(1)
	if numHeads <= 0 || dim%numHeads != 0 {
		panic(&graph.Error{Op: "split heads", Err: graph.ErrShapeMismatch, Details: fmt.Sprintf("model_dim %d is not divisible by %d heads", dim, numHeads)})
	}
	return x.Reshape(ctx, seq, numHeads, dim/numHeads)
}

func mergeHeads(ctx *graph.Context, x *graph.Tensor) *graph.Tensor {
	if x.Rank() != 3 {
		panic(&graph.Error{Op: "merge heads", Err: graph.ErrShapeMismatch, Details: fmt.Sprintf("expected (heads, seq, head_dim), got %v", x.Shape())})
	}
	heads, seq, headDim := x.Dim(0), x.Dim(1), x.Dim(2)
	return x.Permute(ctx, 1, 0, 2).Contiguous(ctx).Reshape(ctx, seq, heads*headDim)
}
