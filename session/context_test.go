package session

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/graphrt"
	"github.com/gomlx/graphrt/devices"
	"github.com/gomlx/graphrt/types/optypes"
	"github.com/gomlx/graphrt/types/shapes"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// dynamicOutputContext builds a Context for a single node whose output has a
// free leading dimension, without going through kernel registration.
func dynamicOutputContext() *Context {
	vi := &graphrt.ValueInfo{
		Name:  "out",
		Shape: shapes.MakeDims(dtypes.Float32, shapes.Free(), shapes.Dim(2)),
	}
	st := &State{
		id:           uuid.New(),
		graph:        graphrt.New("dynamic_output"),
		valueToIndex: map[string]int{"out": 0},
		valueInfos:   []*graphrt.ValueInfo{vi},
		locations:    []devices.Location{devices.HostLocation()},
	}
	node := &graphrt.Node{Name: "producer", OpType: optypes.NonZeroRows, Outputs: []string{"out"}}
	return &Context{node: node, state: st, frame: newFrame(st)}
}

func TestAllocateOutputAtMostOnce(t *testing.T) {
	ctx := dynamicOutputContext()
	first, err := ctx.AllocateOutput(0, shapes.Make(dtypes.Float32, 3, 2))
	require.NoError(t, err)
	require.NotNil(t, first)
	require.Same(t, first, ctx.Output(0))

	// A second allocation of the same output is an execution failure, not a
	// silent rebind: deferred-allocation callbacks run at most once.
	_, err = ctx.AllocateOutput(0, shapes.Make(dtypes.Float32, 1, 2))
	require.ErrorIs(t, err, ErrExecution)
	require.Same(t, first, ctx.Output(0))

	// SetOutput cannot rebind either.
	err = ctx.SetOutput(0, first.CopyTo(devices.HostLocation()))
	require.ErrorIs(t, err, ErrExecution)
	require.Same(t, first, ctx.Output(0))
}

func TestAllocateOutputShapeChecks(t *testing.T) {
	ctx := dynamicOutputContext()

	// The concrete shape must bind the declared one: concrete declared
	// dimensions must match, and the shape must be fully defined.
	_, err := ctx.AllocateOutput(0, shapes.Make(dtypes.Float32, 3, 5))
	require.ErrorIs(t, err, ErrExecution)
	_, err = ctx.AllocateOutput(0, shapes.MakeDims(dtypes.Float32, shapes.Free(), shapes.Dim(2)))
	require.ErrorIs(t, err, ErrExecution)
	_, err = ctx.AllocateOutput(0, shapes.Make(dtypes.Float64, 3, 2))
	require.ErrorIs(t, err, ErrExecution)
	require.Nil(t, ctx.Output(0))

	// Out-of-range output index.
	_, err = ctx.AllocateOutput(1, shapes.Make(dtypes.Float32, 3, 2))
	require.ErrorIs(t, err, ErrExecution)
}
