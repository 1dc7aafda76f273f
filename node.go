package graphrt

import (
	"fmt"

	"github.com/gomlx/graphrt/types/optypes"
	"github.com/gomlx/graphrt/types/shapes"
	"github.com/pkg/errors"
)

// Node is one operation in a Graph. Inputs, Outputs and ImplicitInputs name
// values in the owning graph's namespace; Attributes hold per-op
// configuration, including subgraphs for control-flow nodes.
type Node struct {
	Name   string
	OpType optypes.OpType

	// Inputs are the formal input value names, in positional order.
	Inputs []string

	// Outputs are the output value names, in positional order.
	Outputs []string

	// ImplicitInputs are enclosing-scope value names the node's subgraphs
	// may read. Empty for plain compute nodes.
	ImplicitInputs []string

	Attributes map[string]any

	graph *Graph
}

// Graph returns the graph owning the node.
func (n *Node) Graph() *Graph { return n.graph }

// OutputShapes returns the declared shapes of the node's outputs.
func (n *Node) OutputShapes() []shapes.Shape {
	result := make([]shapes.Shape, len(n.Outputs))
	for i, name := range n.Outputs {
		vi, _ := n.graph.Value(name)
		result[i] = vi.Shape
	}
	return result
}

// SubgraphAttr returns the subgraph held by the given attribute.
func (n *Node) SubgraphAttr(name string) (*Graph, error) {
	return GetAttr[*Graph](n, name)
}

// String implements fmt.Stringer.
func (n *Node) String() string {
	return fmt.Sprintf("%s(%q)", n.OpType, n.Name)
}

// GetAttr returns the node attribute under the given name, checking it has
// type T.
func GetAttr[T any](n *Node, name string) (value T, err error) {
	attr, found := n.Attributes[name]
	if !found {
		return value, errors.Errorf("node %s has no attribute %q", n, name)
	}
	value, ok := attr.(T)
	if !ok {
		return value, errors.Errorf("node %s attribute %q is a %T, not a %T", n, name, attr, value)
	}
	return value, nil
}

// nodeOutputName returns the value name of the i-th output of a
// multi-output node.
func nodeOutputName(nodeName string, i int) string {
	return fmt.Sprintf("%s_%d", nodeName, i)
}
