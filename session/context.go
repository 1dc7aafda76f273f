package session

import (
	"github.com/gomlx/graphrt"
	"github.com/gomlx/graphrt/devices"
	"github.com/gomlx/graphrt/types/shapes"
	"github.com/gomlx/graphrt/types/tensors"
	"github.com/gomlx/graphrt/types/xsync"
	"github.com/pkg/errors"
)

// frame holds the values of one execution of one graph, indexed by the
// state's value indices. Frames are per-execution; the State they run
// against is shared.
type frame struct {
	state  *State
	values []*tensors.Tensor
}

func newFrame(st *State) *frame {
	return &frame{state: st, values: make([]*tensors.Tensor, st.NumValues())}
}

func (fr *frame) get(name string) (*tensors.Tensor, error) {
	idx, found := fr.state.ValueIndex(name)
	if !found {
		return nil, errors.WithMessagef(ErrExecution, "graph %q has no value %q", fr.state.graph.Name, name)
	}
	t := fr.values[idx]
	if t == nil {
		return nil, errors.WithMessagef(ErrExecution, "value %q was not computed", name)
	}
	return t, nil
}

func (fr *frame) bind(name string, t *tensors.Tensor) error {
	idx, found := fr.state.ValueIndex(name)
	if !found {
		return errors.WithMessagef(ErrExecution, "graph %q has no value %q", fr.state.graph.Name, name)
	}
	if fr.values[idx] != nil {
		return errors.WithMessagef(ErrExecution, "value %q already bound", name)
	}
	fr.values[idx] = t
	return nil
}

// Context is what a Kernel sees during Compute: the node being executed,
// its bound inputs, and the output slots to fill. It is valid only for the
// duration of the Compute call.
type Context struct {
	node      *graphrt.Node
	state     *State
	frame     *frame
	terminate *xsync.Latch
}

// Node returns the node being executed.
func (ctx *Context) Node() *graphrt.Node { return ctx.node }

// State returns the session state the node executes in.
func (ctx *Context) State() *State { return ctx.state }

// Terminate returns the cancellation latch of the current execution, or nil.
// Long-running kernels, and kernels that execute subgraphs, should thread it
// through.
func (ctx *Context) Terminate() *xsync.Latch { return ctx.terminate }

// NumInputs returns the node's formal input count.
func (ctx *Context) NumInputs() int { return len(ctx.node.Inputs) }

// Input returns the tensor bound to the node's i-th formal input.
func (ctx *Context) Input(i int) (*tensors.Tensor, error) {
	if i < 0 || i >= len(ctx.node.Inputs) {
		return nil, errors.WithMessagef(ErrExecution, "node %s has no input #%d", ctx.node, i)
	}
	return ctx.frame.get(ctx.node.Inputs[i])
}

// NumImplicitInputs returns the node's implicit input count.
func (ctx *Context) NumImplicitInputs() int { return len(ctx.node.ImplicitInputs) }

// ImplicitInput returns the tensor bound to the node's i-th implicit input,
// an enclosing-scope value a subgraph may read.
func (ctx *Context) ImplicitInput(i int) (*tensors.Tensor, error) {
	if i < 0 || i >= len(ctx.node.ImplicitInputs) {
		return nil, errors.WithMessagef(ErrExecution, "node %s has no implicit input #%d", ctx.node, i)
	}
	return ctx.frame.get(ctx.node.ImplicitInputs[i])
}

// NumOutputs returns the node's output count.
func (ctx *Context) NumOutputs() int { return len(ctx.node.Outputs) }

// Output returns the tensor bound to the node's i-th output so far, or nil.
func (ctx *Context) Output(i int) *tensors.Tensor {
	if i < 0 || i >= len(ctx.node.Outputs) {
		return nil
	}
	idx, _ := ctx.state.ValueIndex(ctx.node.Outputs[i])
	return ctx.frame.values[idx]
}

// AllocateOutput allocates a tensor of the given (fully defined) shape at
// the output value's resolved location and binds it as the node's i-th
// output. It fails if the output is already bound, so an output can be
// allocated at most once per execution.
//
// The shape must be compatible with the output's declared shape: free
// declared dimensions accept any size, concrete ones must match.
func (ctx *Context) AllocateOutput(i int, shape shapes.Shape) (*tensors.Tensor, error) {
	if i < 0 || i >= len(ctx.node.Outputs) {
		return nil, errors.WithMessagef(ErrExecution, "node %s has no output #%d", ctx.node, i)
	}
	name := ctx.node.Outputs[i]
	idx, _ := ctx.state.ValueIndex(name)
	declared := ctx.state.ValueByIndex(idx).Shape
	if err := checkShapeBinds(declared, shape); err != nil {
		return nil, errors.WithMessagef(err, "node %s output #%d (%q)", ctx.node, i, name)
	}
	if ctx.frame.values[idx] != nil {
		return nil, errors.WithMessagef(ErrExecution, "node %s output #%d (%q) already bound", ctx.node, i, name)
	}
	t, err := tensors.New(shape, ctx.state.LocationByIndex(idx))
	if err != nil {
		return nil, errors.WithMessagef(err, "allocating node %s output #%d (%q)", ctx.node, i, name)
	}
	ctx.frame.values[idx] = t
	return t, nil
}

// SetOutput binds an existing tensor as the node's i-th output. It fails if
// the output is already bound or the tensor's shape is incompatible with the
// declared one.
func (ctx *Context) SetOutput(i int, t *tensors.Tensor) error {
	if i < 0 || i >= len(ctx.node.Outputs) {
		return errors.WithMessagef(ErrExecution, "node %s has no output #%d", ctx.node, i)
	}
	if t == nil {
		return errors.WithMessagef(ErrExecution, "node %s output #%d set to nil", ctx.node, i)
	}
	name := ctx.node.Outputs[i]
	idx, _ := ctx.state.ValueIndex(name)
	declared := ctx.state.ValueByIndex(idx).Shape
	if err := checkShapeBinds(declared, t.Shape()); err != nil {
		return errors.WithMessagef(err, "node %s output #%d (%q)", ctx.node, i, name)
	}
	return ctx.frame.bind(name, t)
}

// OutputLocation returns the resolved memory location of the node's i-th
// output value.
func (ctx *Context) OutputLocation(i int) devices.Location {
	idx, _ := ctx.state.ValueIndex(ctx.node.Outputs[i])
	return ctx.state.LocationByIndex(idx)
}

// SubgraphState returns the session state of the subgraph held by the given
// attribute of the current node.
func (ctx *Context) SubgraphState(attrName string) (*State, error) {
	return ctx.state.SubgraphState(ctx.node, attrName)
}

// checkShapeBinds verifies a concrete shape can bind a declared one: same
// dtype and rank, every concrete declared dimension matching, free declared
// dimensions accepting any size. The concrete shape must be fully defined.
func checkShapeBinds(declared, concrete shapes.Shape) error {
	if !concrete.IsFullyDefined() {
		return errors.WithMessagef(ErrExecution, "shape %s is not fully defined", concrete)
	}
	if declared.DType != concrete.DType {
		return errors.WithMessagef(ErrExecution, "dtype mismatch: declared %s, got %s", declared, concrete)
	}
	if declared.Rank() != concrete.Rank() {
		return errors.WithMessagef(ErrExecution, "rank mismatch: declared %s, got %s", declared, concrete)
	}
	for axis := range declared.Dimensions {
		if declared.Dimensions[axis].IsFree() {
			continue
		}
		if declared.Dimensions[axis].Size != concrete.Dimensions[axis].Size {
			return errors.WithMessagef(ErrExecution, "dimension mismatch on axis %d: declared %s, got %s",
				axis, declared, concrete)
		}
	}
	return nil
}
