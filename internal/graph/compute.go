package graph

import (
	"fmt"
	"time"

	"k8s.io/klog/v2"

	"github.com/born-ml/unity/internal/tensor"
)

// Graph is the evaluation order of the nodes reachable from a set of outputs.
// Every node appears after all of its sources.
type Graph struct {
	Nodes   []*Tensor
	Outputs []*Tensor
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.Nodes)
}

// Graph orders the nodes reachable from outputs.
func (c *Context) Graph(outputs ...*Tensor) (*Graph, error) {
	if c.closed {
		return nil, &Error{Op: "graph", Err: ErrClosed, Details: fmt.Sprintf("context %q", c.opts.Name)}
	}

	g := &Graph{Outputs: outputs}
	visited := make(map[*Tensor]bool)

	var visit func(t *Tensor) error
	visit = func(t *Tensor) error {
		if visited[t] {
			return nil
		}
		visited[t] = true
		if err := t.valid(); err != nil {
			return &Error{Op: "graph", Err: err, Details: t.String()}
		}
		for _, s := range t.src {
			if err := visit(s); err != nil {
				return err
			}
		}
		g.Nodes = append(g.Nodes, t)
		return nil
	}

	for _, out := range outputs {
		if out == nil {
			return nil, &Error{Op: "graph", Err: ErrShapeMismatch, Details: "nil output"}
		}
		if err := visit(out); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Compute evaluates outputs and every node they depend on.
// Nodes that already hold data are not evaluated again.
func (c *Context) Compute(outputs ...*Tensor) error {
	g, err := c.Graph(outputs...)
	if err != nil {
		return err
	}

	start := time.Now()
	evaluated := 0
	for _, t := range g.Nodes {
		if t.raw != nil {
			continue
		}
		if err := c.eval(t); err != nil {
			return err
		}
		evaluated++
		klog.V(4).InfoS("Computed node", "context", c.opts.Name, "op", t.op, "name", t.name, "shape", t.shape)
	}

	klog.V(2).InfoS("Computed graph", "context", c.opts.Name, "backend", c.backend.Name(),
		"nodes", g.Len(), "evaluated", evaluated, "elapsed", time.Since(start))
	return nil
}

// eval runs the kernel of a single node whose sources hold data.
// Kernel panics are reported as errors naming the node.
func (c *Context) eval(t *Tensor) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Op: t.op.String(), Err: fmt.Errorf("kernel failed: %v", r), Details: t.String()}
		}
	}()

	b := c.backend
	src := make([]*tensor.Raw, len(t.src))
	for i, s := range t.src {
		src[i] = s.raw
	}

	switch t.op {
	case opAdd:
		t.raw = b.Add(src[0], src[1])
	case opMul:
		t.raw = b.Mul(src[0], src[1])
	case opMulmat:
		t.raw = b.Mulmat(src[0], src[1])
	case opReLU:
		t.raw = b.ReLU(src[0])
	case opScale:
		t.raw = b.Scale(src[0], t.scale)
	case opNorm:
		t.raw = b.Norm(src[0], t.eps)
	case opSoftmax:
		t.raw = b.Softmax(src[0])
	case opRepeat:
		t.raw = b.Repeat(src[0], t.shape)
	case opContiguous:
		t.raw = b.Contiguous(src[0])
	case opReshape:
		t.raw = src[0].View(t.shape, t.stride, src[0].Offset())
	case opPermute:
		t.raw, err = src[0].Permute(t.dims...)
	case opSDPA:
		var mask *tensor.Raw
		if len(src) == 4 {
			mask = src[3]
		}
		t.raw = b.ScaledDotProductAttention(src[0], src[1], src[2], mask, t.scale)
	default:
		return &Error{Op: t.op.String(), Err: ErrNotComputed, Details: "leaf without data"}
	}
	return err
}
