// Package controlflow implements the control-flow kernels of the runtime,
// currently the conditional If operation. Importing it (usually for side
// effect) registers them with the session package:
//
//	import _ "github.com/gomlx/graphrt/controlflow"
package controlflow

import (
	"github.com/gomlx/graphrt"
	"github.com/gomlx/graphrt/devices"
	"github.com/gomlx/graphrt/session"
	"github.com/gomlx/graphrt/types/optypes"
	"github.com/gomlx/graphrt/types/shapes"
	"github.com/gomlx/graphrt/types/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

func init() {
	session.RegisterKernel(optypes.If, newIf)
}

// slotKind tags how one If output gets its buffer.
type slotKind int

const (
	// eagerSlot outputs have a fully defined declared shape: the buffer is
	// allocated up front, before the branch runs, and the branch writes into
	// it.
	eagerSlot slotKind = iota

	// delayedSlot outputs have a data-dependent shape: allocation is
	// deferred to a callback the branch execution invokes once the concrete
	// shape is known. The callback must run exactly once.
	delayedSlot
)

// outputSlot is the per-output allocation decision, fixed at setup time.
type outputSlot struct {
	kind slotKind

	// shape is the declared, fully defined shape. Only set for eager slots.
	shape shapes.Shape
}

// branchInfo is everything needed to run one branch subgraph: its session
// state, the execution plan with copy info resolved once, and the mapping
// from the plan's pruned feeds back to the node's implicit inputs.
type branchInfo struct {
	name string
	sub  *session.State
	plan *session.FeedsFetchesPlan

	// feedPositions[j] is the position in the node's implicit inputs of the
	// branch's j-th feed. Branches only get fed the implicit inputs they
	// declare; the pruning keeps the node's order.
	feedPositions []int
}

// ifKernel executes one of two subgraphs depending on a scalar boolean
// condition. All schema validation and execution planning happens once, in
// newIf; Compute only picks a branch and runs its plan.
type ifKernel struct {
	node  *graphrt.Node
	then  *branchInfo
	els   *branchInfo
	slots []outputSlot
}

func newIf(node *graphrt.Node, st *session.State) (session.Kernel, error) {
	k := &ifKernel{node: node}
	var err error
	if k.then, err = newBranchInfo(node, st, graphrt.IfAttrThen); err != nil {
		return nil, err
	}
	if k.els, err = newBranchInfo(node, st, graphrt.IfAttrElse); err != nil {
		return nil, err
	}

	k.slots = make([]outputSlot, len(node.Outputs))
	for i, shape := range node.OutputShapes() {
		if !shape.Ok() {
			return nil, errors.WithMessagef(session.ErrConfiguration,
				"node %s output #%d has no valid declared shape", node, i)
		}
		if shape.IsFullyDefined() {
			k.slots[i] = outputSlot{kind: eagerSlot, shape: shape}
		} else {
			k.slots[i] = outputSlot{kind: delayedSlot}
		}
	}
	return k, nil
}

func newBranchInfo(node *graphrt.Node, st *session.State, attrName string) (*branchInfo, error) {
	sub, err := st.SubgraphState(node, attrName)
	if err != nil {
		return nil, err
	}
	g := sub.Graph()
	if len(g.Inputs()) > 0 {
		return nil, errors.WithMessagef(session.ErrConfiguration,
			"node %s branch %q declares formal inputs; branches read enclosing values implicitly", node, attrName)
	}
	if len(g.Outputs()) != len(node.Outputs) {
		return nil, errors.WithMessagef(session.ErrConfiguration,
			"node %s branch %q produces %d outputs, node declares %d: branches must agree",
			node, attrName, len(g.Outputs()), len(node.Outputs))
	}

	// Prune: feed only the implicit inputs this branch declares, keeping the
	// node's order. A branch implicit that the node doesn't provide is
	// unresolvable.
	provided := make(map[string]int, len(node.ImplicitInputs))
	for pos, name := range node.ImplicitInputs {
		provided[name] = pos
	}
	reads := make(map[string]bool, len(g.ImplicitInputs()))
	for _, implicit := range g.ImplicitInputs() {
		if _, found := provided[implicit.Name]; !found {
			return nil, errors.WithMessagef(session.ErrConfiguration,
				"node %s branch %q reads %q, which the node does not provide as an implicit input",
				node, attrName, implicit.Name)
		}
		reads[implicit.Name] = true
	}
	var feedNames []string
	var feedPositions []int
	for pos, name := range node.ImplicitInputs {
		if reads[name] {
			feedNames = append(feedNames, name)
			feedPositions = append(feedPositions, pos)
		}
	}

	fetchNames := make([]string, len(g.Outputs()))
	for i, output := range g.Outputs() {
		fetchNames[i] = output.Name
	}
	plan, err := session.NewFeedsFetchesPlan(feedNames, fetchNames, sub)
	if err != nil {
		return nil, errors.WithMessagef(err, "node %s branch %q", node, attrName)
	}

	// Copy info is resolved here, once: feeds come from the enclosing
	// scope's value locations, fetches land at the node's output locations.
	feedLocations := make([]devices.Location, len(feedNames))
	for j, name := range feedNames {
		loc, found := st.LocationOf(name)
		if !found {
			return nil, errors.WithMessagef(session.ErrConfiguration,
				"node %s implicit input %q is not declared in the enclosing graph", node, name)
		}
		feedLocations[j] = loc
	}
	fetchLocations := make([]devices.Location, len(node.Outputs))
	for i, name := range node.Outputs {
		loc, found := st.LocationOf(name)
		if !found {
			return nil, errors.WithMessagef(session.ErrConfiguration,
				"node %s output %q is not declared in the enclosing graph", node, name)
		}
		fetchLocations[i] = loc
	}
	if err := plan.FinalizeCopyInfo(feedLocations, fetchLocations); err != nil {
		return nil, errors.WithMessagef(err, "node %s branch %q", node, attrName)
	}
	klog.V(1).Infof("node %s branch %q planned: %d of %d implicit inputs fed, %d outputs",
		node, attrName, len(feedNames), len(node.ImplicitInputs), len(fetchNames))
	return &branchInfo{name: attrName, sub: sub, plan: plan, feedPositions: feedPositions}, nil
}

func (k *ifKernel) Compute(ctx *session.Context) error {
	cond, err := ctx.Input(0)
	if err != nil {
		return err
	}
	take, err := tensors.ScalarValue[bool](cond)
	if err != nil {
		return errors.WithMessagef(err, "node %s condition", k.node)
	}
	branch := k.els
	if take {
		branch = k.then
	}
	klog.V(2).Infof("node %s: condition=%v, executing branch %q", k.node, take, branch.name)

	feeds := make([]*tensors.Tensor, len(branch.feedPositions))
	for j, pos := range branch.feedPositions {
		if feeds[j], err = ctx.ImplicitInput(pos); err != nil {
			return err
		}
	}

	// Eager outputs are allocated up front and handed to the execution as
	// pre-bound buffers. Delayed outputs get an allocator closed over this
	// invocation and the output index; Context.AllocateOutput rejects a
	// second allocation of the same output, so a double invocation fails the
	// execution rather than leaking a buffer.
	fetches := make([]*tensors.Tensor, len(k.slots))
	var allocators map[int]session.FetchAllocator
	for i, slot := range k.slots {
		switch slot.kind {
		case eagerSlot:
			if fetches[i], err = ctx.AllocateOutput(i, slot.shape); err != nil {
				return err
			}
		case delayedSlot:
			if allocators == nil {
				allocators = make(map[int]session.FetchAllocator)
			}
			index := i
			allocators[index] = func(shape shapes.Shape) (*tensors.Tensor, error) {
				return ctx.AllocateOutput(index, shape)
			}
		}
	}

	if err := branch.sub.Executor().Execute(branch.plan, feeds, fetches, allocators, ctx.Terminate()); err != nil {
		return errors.WithMessagef(err, "node %s branch %q", k.node, branch.name)
	}

	// Every delayed output must have been resolved exactly once. An empty
	// tensor is a valid resolution; no resolution at all is not.
	if i := firstUnresolvedDelayed(k.slots, ctx.Output); i >= 0 {
		return errors.WithMessagef(session.ErrExecution,
			"node %s branch %q never resolved deferred output #%d", k.node, branch.name, i)
	}
	return nil
}

// firstUnresolvedDelayed returns the index of the first delayed slot for
// which bound returns no tensor, or -1 when every delayed slot is resolved.
// Eager slots are never reported: they are bound before the branch runs.
func firstUnresolvedDelayed(slots []outputSlot, bound func(i int) *tensors.Tensor) int {
	for i, slot := range slots {
		if slot.kind == delayedSlot && bound(i) == nil {
			return i
		}
	}
	return -1
}
