package passes_test

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/graphrt"
	"github.com/gomlx/graphrt/passes"
	"github.com/gomlx/graphrt/types/shapes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inputGraph returns an unfinished graph with a single input of the given
// shape.
func inputGraph(t *testing.T, shape shapes.Shape) *graphrt.Graph {
	g := graphrt.New("g")
	must.M1(g.Input("x", shape))
	return g
}

func TestFreeDimensionsPass(t *testing.T) {
	shape := shapes.MakeDims(dtypes.Float32,
		shapes.FreeWithDenotation("DATA_BATCH"),
		shapes.FreeWithDenotation("DATA_CHANNEL"),
		shapes.Dim(10))
	g := inputGraph(t, shape)

	pass := must.M1(passes.NewFreeDimensionsPass(
		passes.DimensionOverride{Denotation: "DATA_BATCH", Value: 1},
		passes.DimensionOverride{Denotation: "DATA_CHANNEL", Value: 42},
	))
	require.NoError(t, pass.Apply(g))

	got := g.Inputs()[0].Shape
	require.True(t, got.IsFullyDefined())
	assert.Equal(t, []int{1, 42, 10}, []int{got.Dim(0), got.Dim(1), got.Dim(2)})

	// Denotations survive the binding, for diagnostics.
	assert.Equal(t, "DATA_BATCH", got.Dimensions[0].Denotation)

	// Idempotent: a second application changes nothing.
	require.NoError(t, pass.Apply(g))
	assert.Equal(t, []int{1, 42, 10}, []int{got.Dim(0), got.Dim(1), got.Dim(2)})
}

func TestFreeDimensionsPassUnmatched(t *testing.T) {
	// An override with no matching denotation is a no-op, and concrete
	// dimensions are never touched even when their denotation matches.
	shape := shapes.MakeDims(dtypes.Float32,
		shapes.FreeWithDenotation("DATA_BATCH"),
		shapes.Dimension{Size: 8, Denotation: "DATA_CHANNEL"})
	g := inputGraph(t, shape)

	pass := must.M1(passes.NewFreeDimensionsPass(
		passes.DimensionOverride{Denotation: "DATA_CHANNEL", Value: 42},
		passes.DimensionOverride{Denotation: "NO_SUCH_TAG", Value: 7},
	))
	require.NoError(t, pass.Apply(g))

	got := g.Inputs()[0].Shape
	assert.True(t, got.Dimensions[0].IsFree())
	assert.Equal(t, 8, got.Dim(1))
}

func TestFreeDimensionsPassUndenotated(t *testing.T) {
	// Free dimensions without a denotation are never bound.
	shape := shapes.MakeDims(dtypes.Float32, shapes.Free(), shapes.Dim(4))
	g := inputGraph(t, shape)

	pass := must.M1(passes.NewFreeDimensionsPass(
		passes.DimensionOverride{Denotation: "DATA_BATCH", Value: 3}))
	require.NoError(t, pass.Apply(g))
	assert.True(t, g.Inputs()[0].Shape.Dimensions[0].IsFree())
}

func TestFreeDimensionsPassDuplicates(t *testing.T) {
	// Last write wins for repeated denotations.
	g := inputGraph(t, shapes.MakeDims(dtypes.Float32, shapes.FreeWithDenotation("DATA_BATCH")))
	pass := must.M1(passes.NewFreeDimensionsPass(
		passes.DimensionOverride{Denotation: "DATA_BATCH", Value: 3},
		passes.DimensionOverride{Denotation: "DATA_BATCH", Value: 5},
	))
	require.NoError(t, pass.Apply(g))
	assert.Equal(t, 5, g.Inputs()[0].Shape.Dim(0))
}

func TestFreeDimensionsPassRejectsBadOverrides(t *testing.T) {
	_, err := passes.NewFreeDimensionsPass(
		passes.DimensionOverride{Denotation: "DATA_BATCH", Value: -1})
	require.Error(t, err)

	_, err = passes.NewFreeDimensionsPass(
		passes.DimensionOverride{Denotation: "", Value: 1})
	require.Error(t, err)
}
