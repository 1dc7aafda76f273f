// Package session turns a finished graph into executable state and runs it.
//
// A State is built once per graph (recursively including any subgraphs held
// by control-flow nodes): it fixes the value-name to index mapping, resolves
// the memory location of every value, and instantiates one Kernel per node.
// Execution then reuses the State any number of times, concurrently.
//
// Data enters and leaves an execution through a FeedsFetchesPlan, which
// resolves feed and fetch locations once and records, per value, whether a
// cross-location copy is needed or the buffer can be handed over as-is.
package session

import (
	"github.com/gomlx/graphrt"
	"github.com/gomlx/graphrt/devices"
	"github.com/gomlx/graphrt/types/tensors"
	"github.com/gomlx/graphrt/types/xsync"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// LocationResolver decides where a graph value lives. It is consulted once
// per value at session-setup time, for the top-level graph and every
// subgraph.
type LocationResolver func(g *graphrt.Graph, valueName string) devices.Location

// Option configures NewState.
type Option func(*config)

type config struct {
	resolver LocationResolver
}

// WithLocationResolver sets the resolver deciding the memory location of
// each graph value. The default places everything in host memory.
//
// The resolver applies recursively to subgraph values as well.
func WithLocationResolver(resolver LocationResolver) Option {
	return func(c *config) { c.resolver = resolver }
}

// subgraphKey identifies one subgraph attribute of one node.
type subgraphKey struct {
	node *graphrt.Node
	attr string
}

// State is the executable form of a graph: value indices, value locations
// and per-node kernels, all resolved once. A State is immutable after
// NewState returns and safe for concurrent executions.
type State struct {
	id    uuid.UUID
	graph *graphrt.Graph

	valueToIndex map[string]int
	valueInfos   []*graphrt.ValueInfo
	locations    []devices.Location

	kernels   map[*graphrt.Node]Kernel
	subgraphs map[subgraphKey]*State
}

// NewState builds the executable state for a finished graph, recursively
// building states for the subgraphs of its control-flow nodes.
//
// Setup errors (unregistered operations, schema mismatches between sibling
// subgraphs) are reported here, wrapping ErrConfiguration, before any data
// flows.
func NewState(g *graphrt.Graph, options ...Option) (*State, error) {
	if g == nil {
		return nil, errors.WithMessage(ErrConfiguration, "NewState requires a graph")
	}
	if !g.Returned() {
		return nil, errors.WithMessagef(ErrConfiguration, "graph %q must be finished (Graph.Return) before building session state", g.Name)
	}
	c := &config{}
	for _, option := range options {
		option(c)
	}
	return newState(g, c)
}

func newState(g *graphrt.Graph, c *config) (*State, error) {
	names := g.ValueNames()
	st := &State{
		id:           uuid.New(),
		graph:        g,
		valueToIndex: make(map[string]int, len(names)),
		valueInfos:   make([]*graphrt.ValueInfo, len(names)),
		locations:    make([]devices.Location, len(names)),
		kernels:      make(map[*graphrt.Node]Kernel, len(g.Nodes())),
		subgraphs:    make(map[subgraphKey]*State),
	}
	for i, name := range names {
		st.valueToIndex[name] = i
		vi, _ := g.Value(name)
		st.valueInfos[i] = vi
		if c.resolver != nil {
			st.locations[i] = c.resolver(g, name)
		} else {
			st.locations[i] = devices.HostLocation()
		}
	}

	// Subgraph states are built before kernels: kernel constructors plan
	// their subgraph executions against the finished sub-states.
	for _, node := range g.Nodes() {
		for attrName, attr := range node.Attributes {
			sub, ok := attr.(*graphrt.Graph)
			if !ok {
				continue
			}
			subState, err := newState(sub, c)
			if err != nil {
				return nil, errors.WithMessagef(err, "building state for subgraph %q of node %s", attrName, node)
			}
			st.subgraphs[subgraphKey{node: node, attr: attrName}] = subState
		}
	}
	for _, node := range g.Nodes() {
		constructor, found := kernelConstructorFor(node.OpType)
		if !found {
			return nil, errors.WithMessagef(ErrConfiguration, "no kernel registered for %s", node)
		}
		kernel, err := constructor(node, st)
		if err != nil {
			return nil, errors.WithMessagef(err, "building kernel for %s", node)
		}
		st.kernels[node] = kernel
	}
	klog.V(1).Infof("session state %s built for graph %q: %d values, %d nodes, %d subgraphs",
		st.id, g.Name, len(names), len(g.Nodes()), len(st.subgraphs))
	return st, nil
}

// ID returns the unique id of this state, used in diagnostics.
func (st *State) ID() string { return st.id.String() }

// Graph returns the graph this state was built for.
func (st *State) Graph() *graphrt.Graph { return st.graph }

// NumValues returns the size of the graph's value namespace.
func (st *State) NumValues() int { return len(st.valueInfos) }

// ValueIndex returns the index assigned to the named value.
func (st *State) ValueIndex(name string) (int, bool) {
	i, found := st.valueToIndex[name]
	return i, found
}

// ValueByIndex returns the declaration of the value at the given index.
func (st *State) ValueByIndex(i int) *graphrt.ValueInfo { return st.valueInfos[i] }

// LocationOf returns the resolved memory location of the named value.
func (st *State) LocationOf(name string) (devices.Location, bool) {
	i, found := st.valueToIndex[name]
	if !found {
		return devices.Location{}, false
	}
	return st.locations[i], true
}

// LocationByIndex returns the resolved memory location of the value at the
// given index.
func (st *State) LocationByIndex(i int) devices.Location { return st.locations[i] }

// SubgraphState returns the session state built for the subgraph held by the
// given attribute of the given node.
func (st *State) SubgraphState(node *graphrt.Node, attrName string) (*State, error) {
	sub, found := st.subgraphs[subgraphKey{node: node, attr: attrName}]
	if !found {
		return nil, errors.WithMessagef(ErrConfiguration, "node %s has no subgraph state for attribute %q", node, attrName)
	}
	return sub, nil
}

// Executor returns an executor running this state's graph. The returned
// executor is stateless and safe for concurrent Execute calls.
func (st *State) Executor() Executor {
	return &graphExecutor{state: st}
}

// Run is the convenience entry point for top-level graphs: it feeds the
// graph's declared inputs by name, executes, and returns the graph outputs
// in Return order.
//
// terminate may be nil; if given, triggering it stops the execution with
// ErrCancelled at the next node boundary.
func (st *State) Run(feeds map[string]*tensors.Tensor, terminate *xsync.Latch) ([]*tensors.Tensor, error) {
	g := st.graph
	if len(g.ImplicitInputs()) > 0 {
		return nil, errors.WithMessagef(ErrConfiguration,
			"graph %q has implicit inputs and can only run as a subgraph", g.Name)
	}
	inputs := g.Inputs()
	feedNames := make([]string, len(inputs))
	feedValues := make([]*tensors.Tensor, len(inputs))
	feedLocations := make([]devices.Location, len(inputs))
	for i, input := range inputs {
		t, found := feeds[input.Name]
		if !found || t == nil {
			return nil, errors.WithMessagef(ErrExecution, "graph %q: input %q was not fed", g.Name, input.Name)
		}
		feedNames[i] = input.Name
		feedValues[i] = t
		feedLocations[i] = t.Location()
	}
	outputs := g.Outputs()
	fetchNames := make([]string, len(outputs))
	fetchLocations := make([]devices.Location, len(outputs))
	for i, output := range outputs {
		fetchNames[i] = output.Name
		loc, _ := st.LocationOf(output.Name)
		fetchLocations[i] = loc
	}
	plan, err := NewFeedsFetchesPlan(feedNames, fetchNames, st)
	if err != nil {
		return nil, err
	}
	if err := plan.FinalizeCopyInfo(feedLocations, fetchLocations); err != nil {
		return nil, err
	}
	fetches := make([]*tensors.Tensor, len(fetchNames))
	if err := st.Executor().Execute(plan, feedValues, fetches, nil, terminate); err != nil {
		return nil, err
	}
	return fetches, nil
}
