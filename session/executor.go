package session

import (
	"github.com/gomlx/graphrt/types/shapes"
	"github.com/gomlx/graphrt/types/tensors"
	"github.com/gomlx/graphrt/types/xsync"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// FetchAllocator allocates the buffer for one fetched output whose shape is
// only known once the producing execution finishes. It is given the
// concrete, fully defined shape of the produced value.
type FetchAllocator func(shape shapes.Shape) (*tensors.Tensor, error)

// Executor runs a graph once per Execute call against a finalized
// FeedsFetchesPlan.
//
// feeds are the input tensors, parallel to the plan's feed names. fetches is
// parallel to the plan's fetch names and is filled in by Execute; a non-nil
// entry is a pre-allocated buffer the output is copied into. For a nil entry
// with an allocator in fetchAllocators (keyed by fetch position), allocation
// is deferred until the output's concrete shape is known; a nil entry
// without an allocator receives the produced tensor directly, copied only if
// the plan says so.
//
// fetchAllocators and terminate may be nil.
type Executor interface {
	Execute(plan *FeedsFetchesPlan, feeds []*tensors.Tensor, fetches []*tensors.Tensor,
		fetchAllocators map[int]FetchAllocator, terminate *xsync.Latch) error
}

// graphExecutor interprets the graph's nodes in declaration order, which is
// a valid topological order by construction.
type graphExecutor struct {
	state *State
}

func (e *graphExecutor) Execute(plan *FeedsFetchesPlan, feeds []*tensors.Tensor, fetches []*tensors.Tensor,
	fetchAllocators map[int]FetchAllocator, terminate *xsync.Latch) error {
	st := e.state
	g := st.graph
	if plan == nil || !plan.Finalized() {
		return errors.WithMessagef(ErrConfiguration, "executing graph %q requires a finalized FeedsFetchesPlan", g.Name)
	}
	if len(feeds) != plan.NumFeeds() {
		return errors.WithMessagef(ErrExecution, "graph %q: %d feeds given, plan has %d", g.Name, len(feeds), plan.NumFeeds())
	}
	if len(fetches) != plan.NumFetches() {
		return errors.WithMessagef(ErrExecution, "graph %q: %d fetch slots given, plan has %d", g.Name, len(fetches), plan.NumFetches())
	}

	fr := newFrame(st)
	if err := e.seedFeeds(plan, feeds, fr); err != nil {
		return err
	}

	for _, node := range g.Nodes() {
		if terminate != nil && terminate.Test() {
			return errors.WithMessagef(ErrCancelled, "graph %q stopped before node %s", g.Name, node)
		}
		kernel := st.kernels[node]
		ctx := &Context{node: node, state: st, frame: fr, terminate: terminate}
		if err := kernel.Compute(ctx); err != nil {
			return errors.WithMessagef(err, "graph %q: node %s failed", g.Name, node)
		}
		for i, name := range node.Outputs {
			idx, _ := st.ValueIndex(name)
			if fr.values[idx] == nil {
				return errors.WithMessagef(ErrExecution, "graph %q: node %s did not bind output #%d (%q)",
					g.Name, node, i, name)
			}
		}
	}

	return e.bindFetches(plan, fetches, fetchAllocators, fr)
}

// seedFeeds binds the fed tensors into the frame, copying across locations
// where the plan says a copy is needed and handing the buffer over
// otherwise.
func (e *graphExecutor) seedFeeds(plan *FeedsFetchesPlan, feeds []*tensors.Tensor, fr *frame) error {
	st := e.state
	for i, feed := range feeds {
		name := plan.feedNames[i]
		if feed == nil {
			return errors.WithMessagef(ErrExecution, "graph %q: feed %q is nil", st.graph.Name, name)
		}
		idx := plan.feedIndices[i]
		declared := st.ValueByIndex(idx).Shape
		if err := checkShapeBinds(declared, feed.Shape()); err != nil {
			return errors.WithMessagef(err, "graph %q: feed %q", st.graph.Name, name)
		}
		t := feed
		if spec := plan.feeds[i]; spec.NeedsCopy {
			klog.V(2).Infof("graph %q: copying feed %q from %s to %s", st.graph.Name, name, spec.Source, spec.Target)
			t = feed.CopyTo(spec.Target)
		}
		fr.values[idx] = t
	}
	return nil
}

// bindFetches moves the produced outputs into the caller's fetch slots:
// copying into pre-allocated buffers, invoking deferred allocators, or
// handing the produced tensor over when the plan allows aliasing.
func (e *graphExecutor) bindFetches(plan *FeedsFetchesPlan, fetches []*tensors.Tensor,
	fetchAllocators map[int]FetchAllocator, fr *frame) error {
	st := e.state
	for i := range fetches {
		name := plan.fetchNames[i]
		produced := fr.values[plan.fetchIndices[i]]
		if produced == nil {
			return errors.WithMessagef(ErrExecution, "graph %q: fetched value %q was not produced", st.graph.Name, name)
		}
		switch {
		case fetches[i] != nil:
			if err := fetches[i].CopyDataFrom(produced); err != nil {
				return errors.WithMessagef(ErrExecution,
					"graph %q: copying fetch %q into pre-allocated buffer: %s", st.graph.Name, name, err)
			}
		case fetchAllocators != nil && fetchAllocators[i] != nil:
			t, err := fetchAllocators[i](produced.Shape())
			if err != nil {
				return errors.WithMessagef(err, "graph %q: deferred allocation of fetch %q", st.graph.Name, name)
			}
			if t == nil {
				return errors.WithMessagef(ErrExecution, "graph %q: deferred allocator for fetch %q returned no tensor",
					st.graph.Name, name)
			}
			if err := t.CopyDataFrom(produced); err != nil {
				return errors.WithMessagef(ErrExecution,
					"graph %q: copying fetch %q into deferred buffer: %s", st.graph.Name, name, err)
			}
			klog.V(2).Infof("graph %q: fetch %q resolved by deferred allocation, shape %s",
				st.graph.Name, name, produced.Shape())
			fetches[i] = t
		default:
			if spec := plan.fetches[i]; spec.NeedsCopy {
				klog.V(2).Infof("graph %q: copying fetch %q from %s to %s", st.graph.Name, name, spec.Source, spec.Target)
				fetches[i] = produced.CopyTo(spec.Target)
			} else {
				fetches[i] = produced
			}
		}
	}
	return nil
}
