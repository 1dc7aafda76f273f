// Package graphrt implements the execution core of a computational-graph
// runtime: a directed graph of operators over typed, multi-dimensional
// tensors, including operators whose body is itself a nested subgraph
// selected at run time.
//
// The root package holds the graph intermediate representation and its
// builder: a Graph owns named, shaped values and the nodes producing them,
// and can embed other Graphs as node attributes (see Graph.AddIf).
//
// The remaining pieces live in their own packages:
//
//   - types/shapes, types/tensors: shapes with free (symbolic) dimensions,
//     and the tensor values flowing through the graph.
//   - passes: graph rewrites applied before execution planning, notably
//     binding free dimensions to concrete sizes (FreeDimensionsPass).
//   - session: per-graph session state, the compiled feeds/fetches plan and
//     the subgraph executor.
//   - controlflow: the If kernel, driving nested-subgraph execution.
//   - kernels: the plain compute kernels.
//   - types/xsync: the worker pool, fan-out and cancellation primitives.
package graphrt

import "github.com/gomlx/graphrt/internal/utils"

// NormalizeIdentifier converts the name of an identifier (graph name, value
// name, node name) to a valid one: only letters, digits, and underscores are
// allowed.
//
// Invalid characters are replaced with underscores.
// If the name starts with a digit, it is prefixed with an underscore.
func NormalizeIdentifier(name string) string {
	return utils.NormalizeIdentifier(name)
}
