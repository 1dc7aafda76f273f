package session

import (
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/graphrt"
	"github.com/gomlx/graphrt/types/optypes"
)

// Kernel is the compiled, per-node implementation of an operation, created
// once per node when session state is built and invoked once per node
// execution.
type Kernel interface {
	Compute(ctx *Context) error
}

// KernelConstructor creates the kernel for one node. It runs at
// session-setup time, with the node's graph State (and, through it, the
// session states of any subgraph attributes) already built, so it is the
// place to validate the node's configuration and precompute per-node plans.
type KernelConstructor func(node *graphrt.Node, st *State) (Kernel, error)

var (
	muRegistry     sync.Mutex
	kernelRegistry = make(map[optypes.OpType]KernelConstructor)
)

// RegisterKernel registers the constructor used for nodes of the given
// operation. It is meant to be called from init() functions -- registering
// the same operation twice panics.
func RegisterKernel(op optypes.OpType, constructor KernelConstructor) {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	if _, found := kernelRegistry[op]; found {
		exceptions.Panicf("session.RegisterKernel: kernel for %s registered twice", op)
	}
	kernelRegistry[op] = constructor
}

func kernelConstructorFor(op optypes.OpType) (KernelConstructor, bool) {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	constructor, found := kernelRegistry[op]
	return constructor, found
}
