// Package optypes defines OpType, the enumeration of operations the runtime
// can execute.
//
// The set is deliberately small: the runtime is a control and data-binding
// layer, not a math library. Kernels for each OpType are registered in the
// kernels package (plain compute ops) and in the controlflow package (ops
// whose body is a nested subgraph).
package optypes

// OpType is the type of operation performed by a graph node.
type OpType int

//go:generate go tool enumer -type=OpType -output=gen_optype_enumer.go optypes.go

const (
	Invalid OpType = iota

	Identity
	Neg
	Add
	Concat

	// NonZeroRows selects the rows of a rank-2 tensor with at least one
	// non-zero element. Its output row count is data-dependent, so its
	// declared output shape carries a free dimension.
	NonZeroRows

	// NormalizeRows scales every row of a rank-2 tensor to unit L2 norm.
	// Rows are independent and processed in parallel.
	NormalizeRows

	// If executes one of its two subgraph attributes ("then_branch",
	// "else_branch") selected by a scalar boolean input.
	If
)
