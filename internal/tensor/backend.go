package tensor

// Backend defines the kernels a compute backend provides to the graph layer.
//
// Every kernel returns a freshly allocated packed tensor. Inputs may be
// strided views unless a kernel states otherwise; the graph layer checks
// shapes and contiguity before a kernel is reached, so kernels panic on
// misuse instead of returning errors.
//
// Implementations:
//   - CPU: Pure Go with BLAS-backed matrix multiplication
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting.
	Add(a, b *Raw) *Raw
	Mul(a, b *Raw) *Raw

	// Mulmat computes x @ w^T for a packed weight w of shape (N, K) and a
	// packed x of shape (K) or (M, K), producing (N) or (M, N).
	Mulmat(x, w *Raw) *Raw

	// Element-wise unary operations.
	ReLU(x *Raw) *Raw
	Scale(x *Raw, s float32) *Raw

	// Norm normalizes along the innermost dimension to zero mean and unit
	// variance: (x - mean) / sqrt(var + eps).
	Norm(x *Raw, eps float32) *Raw

	// Softmax along the innermost dimension.
	Softmax(x *Raw) *Raw

	// Repeat broadcasts x to shape.
	Repeat(x *Raw, shape Shape) *Raw

	// Contiguous returns a packed copy of x.
	Contiguous(x *Raw) *Raw

	// ScaledDotProductAttention computes softmax(q k^T * scale + mask) v per head.
	//
	// Layouts:
	//   - q: (heads, seq_q, head_dim)
	//   - k: (heads, seq_k, head_dim)
	//   - v: (seq_k, head_dim, heads)
	//   - mask: (seq_q, seq_k) additive, or nil
	//
	// Returns (heads, seq_q, head_dim).
	ScaledDotProductAttention(q, k, v, mask *Raw, scale float32) *Raw

	// Name returns the backend name.
	Name() string
}
