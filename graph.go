package graphrt

import (
	"slices"

	"github.com/gomlx/graphrt/shapeinference"
	"github.com/gomlx/graphrt/types/optypes"
	"github.com/gomlx/graphrt/types/shapes"
	"github.com/pkg/errors"
)

// ValueInfo is the declaration of a named, shaped value in a graph's value
// namespace: a graph input, an implicit input resolved from the enclosing
// scope, or a node output.
//
// The Shape may contain free dimensions; they are bound before execution
// either by the passes package (declared graph inputs) or by the producing
// operation itself (data-dependent outputs).
type ValueInfo struct {
	Name  string
	Shape shapes.Shape

	// Implicit marks a value this graph reads from its enclosing scope
	// without declaring it as a formal input.
	Implicit bool
}

// Graph holds a computation graph: its declared inputs and outputs, the
// nodes producing values, and the namespace of every value declared in its
// scope.
//
// Build a Graph with New, adding inputs (Input, Implicit) and nodes
// (AddNode, AddIf), and finish it with Return. Once returned a Graph is
// immutable and can be attached as a subgraph attribute of a node in an
// enclosing graph.
type Graph struct {
	// Name of the graph, normalized with NormalizeIdentifier.
	Name string

	inputs   []*ValueInfo
	implicit []*ValueInfo
	outputs  []*ValueInfo
	nodes    []*Node

	values     map[string]*ValueInfo
	valueNames []string // Insertion order; execution planning depends on it being stable.

	returned bool
}

// New creates a new, empty Graph with the given name.
func New(name string) *Graph {
	return &Graph{
		Name:   NormalizeIdentifier(name),
		values: make(map[string]*ValueInfo),
	}
}

func (g *Graph) addValue(name string, shape shapes.Shape, implicit bool) (*ValueInfo, error) {
	if g.returned {
		return nil, errors.Errorf("Graph.Return already called for %q", g.Name)
	}
	name = NormalizeIdentifier(name)
	if name == "" {
		return nil, errors.Errorf("graph %q: empty value name", g.Name)
	}
	if _, found := g.values[name]; found {
		return nil, errors.Errorf("graph %q: value %q declared more than once", g.Name, name)
	}
	vi := &ValueInfo{Name: name, Shape: shape, Implicit: implicit}
	g.values[name] = vi
	g.valueNames = append(g.valueNames, name)
	return vi, nil
}

// Input declares a formal input of the graph with the given name and shape.
// The shape may contain free dimensions.
//
// The order of Input calls matters: feeds are given in the same order at
// execution time.
func (g *Graph) Input(name string, shape shapes.Shape) (*ValueInfo, error) {
	vi, err := g.addValue(name, shape, false)
	if err != nil {
		return nil, err
	}
	g.inputs = append(g.inputs, vi)
	return vi, nil
}

// Implicit declares a value this graph reads from its enclosing scope
// without it being a formal input. Sibling subgraphs of the same node may
// reference different subsets of the enclosing scope's values.
func (g *Graph) Implicit(name string, shape shapes.Shape) (*ValueInfo, error) {
	vi, err := g.addValue(name, shape, true)
	if err != nil {
		return nil, err
	}
	g.implicit = append(g.implicit, vi)
	return vi, nil
}

// AddNode adds a node computing the given operation over the named input
// values, which must already be declared in the graph. Output shapes are
// inferred with the shapeinference package.
//
// The node's single output value is named after the node itself; nodes with
// multiple outputs name them "<name>_0", "<name>_1", ...
//
// Control-flow nodes are added with AddIf instead.
func (g *Graph) AddNode(op optypes.OpType, name string, inputs []string, attributes map[string]any) (*Node, error) {
	if op == optypes.If {
		return nil, errors.Errorf("graph %q: use Graph.AddIf to add %s nodes", g.Name, op)
	}
	inputShapes := make([]shapes.Shape, len(inputs))
	for i, input := range inputs {
		vi, found := g.values[input]
		if !found {
			return nil, errors.Errorf("graph %q: node %q input %q is not declared", g.Name, name, input)
		}
		inputShapes[i] = vi.Shape
	}
	outputShapes, err := shapeinference.OutputShapes(op, inputShapes, attributes)
	if err != nil {
		return nil, errors.WithMessagef(err, "graph %q: node %q", g.Name, name)
	}
	return g.addNode(op, name, inputs, nil, attributes, outputShapes)
}

// IfAttrThen and IfAttrElse are the attribute names holding the two
// subgraphs of an If node. Exactly these two branches must exist.
const (
	IfAttrThen = "then_branch"
	IfAttrElse = "else_branch"
)

// AddIf adds a conditional control-flow node: condition must name a scalar
// boolean value; thenBranch and elseBranch are the two alternative
// subgraphs, and implicitInputs names the enclosing-scope values the
// branches may read (each branch uses the subset it declared with
// Graph.Implicit).
//
// The node's declared outputs take their count and shapes from thenBranch;
// the branches' output counts are re-validated against each other when
// session state is built.
func (g *Graph) AddIf(name string, condition string, thenBranch, elseBranch *Graph, implicitInputs []string) (*Node, error) {
	condValue, found := g.values[condition]
	if !found {
		return nil, errors.Errorf("graph %q: If node %q condition %q is not declared", g.Name, name, condition)
	}
	if !condValue.Shape.Equal(shapes.Scalar[bool]()) {
		return nil, errors.Errorf("graph %q: If node %q condition must be a scalar bool, got %s",
			g.Name, name, condValue.Shape)
	}
	if thenBranch == nil || elseBranch == nil {
		return nil, errors.Errorf("graph %q: If node %q requires both branches", g.Name, name)
	}
	if !thenBranch.returned || !elseBranch.returned {
		return nil, errors.Errorf("graph %q: If node %q branches must be finished (Graph.Return) before being attached", g.Name, name)
	}
	for _, implicit := range implicitInputs {
		if _, found := g.values[implicit]; !found {
			return nil, errors.Errorf("graph %q: If node %q implicit input %q is not declared", g.Name, name, implicit)
		}
	}
	outputShapes := make([]shapes.Shape, len(thenBranch.outputs))
	for i, output := range thenBranch.outputs {
		outputShapes[i] = output.Shape.Clone()
	}
	attributes := map[string]any{
		IfAttrThen: thenBranch,
		IfAttrElse: elseBranch,
	}
	return g.addNode(optypes.If, name, []string{condition}, slices.Clone(implicitInputs), attributes, outputShapes)
}

func (g *Graph) addNode(op optypes.OpType, name string, inputs, implicitInputs []string,
	attributes map[string]any, outputShapes []shapes.Shape) (*Node, error) {
	name = NormalizeIdentifier(name)
	node := &Node{
		Name:           name,
		OpType:         op,
		Inputs:         slices.Clone(inputs),
		ImplicitInputs: implicitInputs,
		Attributes:     attributes,
		graph:          g,
	}
	node.Outputs = make([]string, len(outputShapes))
	for i, shape := range outputShapes {
		outputName := name
		if len(outputShapes) > 1 {
			outputName = nodeOutputName(name, i)
		}
		vi, err := g.addValue(outputName, shape, false)
		if err != nil {
			return nil, err
		}
		node.Outputs[i] = vi.Name
	}
	g.nodes = append(g.nodes, node)
	return node, nil
}

// Return declares the graph's outputs and finishes it: no more values or
// nodes can be added. There must be at least one output.
func (g *Graph) Return(outputNames ...string) error {
	if g.returned {
		return errors.Errorf("Graph.Return already called for %q", g.Name)
	}
	if len(outputNames) == 0 {
		return errors.Errorf("graph %q: Return requires at least one output", g.Name)
	}
	outputs := make([]*ValueInfo, len(outputNames))
	for i, name := range outputNames {
		vi, found := g.values[name]
		if !found {
			return errors.Errorf("graph %q: Return given value %q that is not declared", g.Name, name)
		}
		outputs[i] = vi
	}
	g.outputs = outputs
	g.returned = true
	return nil
}

// Inputs returns the graph's declared formal inputs, in declaration order.
func (g *Graph) Inputs() []*ValueInfo { return g.inputs }

// ImplicitInputs returns the values the graph reads from its enclosing
// scope, in declaration order.
func (g *Graph) ImplicitInputs() []*ValueInfo { return g.implicit }

// Outputs returns the graph's declared outputs, in Return order.
// It is nil until Return is called.
func (g *Graph) Outputs() []*ValueInfo { return g.outputs }

// Nodes returns the graph's nodes in insertion order, which is a valid
// execution order: node inputs always refer to previously declared values.
func (g *Graph) Nodes() []*Node { return g.nodes }

// Returned reports whether the graph was finished with Return.
func (g *Graph) Returned() bool { return g.returned }

// Value returns the ValueInfo declared under the given name, if any.
func (g *Graph) Value(name string) (*ValueInfo, bool) {
	vi, found := g.values[name]
	return vi, found
}

// HasValue reports whether the given name is declared in this graph's value
// namespace.
func (g *Graph) HasValue(name string) bool {
	_, found := g.values[name]
	return found
}

// ValueNames returns every value name declared in the graph, in insertion
// order. The order is stable and used to assign value indices in session
// state.
func (g *Graph) ValueNames() []string {
	return slices.Clone(g.valueNames)
}
