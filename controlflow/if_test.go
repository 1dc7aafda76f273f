package controlflow_test

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/graphrt"
	_ "github.com/gomlx/graphrt/controlflow"
	_ "github.com/gomlx/graphrt/kernels"
	"github.com/gomlx/graphrt/session"
	"github.com/gomlx/graphrt/types/optypes"
	"github.com/gomlx/graphrt/types/shapes"
	"github.com/gomlx/graphrt/types/tensors"
	"github.com/gomlx/graphrt/types/xsync"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var vec2 = shapes.Make(dtypes.Float32, 2)

// branchSelectionGraph builds a graph where the then-branch negates "a" and
// the else-branch passes "b" through. Each branch reads a different subset
// of the node's implicit inputs.
func branchSelectionGraph(t *testing.T) *graphrt.Graph {
	thenBranch := graphrt.New("then")
	must.M1(thenBranch.Implicit("a", vec2))
	must.M1(thenBranch.AddNode(optypes.Neg, "out", []string{"a"}, nil))
	require.NoError(t, thenBranch.Return("out"))

	elseBranch := graphrt.New("else")
	must.M1(elseBranch.Implicit("b", vec2))
	must.M1(elseBranch.AddNode(optypes.Identity, "out", []string{"b"}, nil))
	require.NoError(t, elseBranch.Return("out"))

	g := graphrt.New("main")
	must.M1(g.Input("cond", shapes.Scalar[bool]()))
	must.M1(g.Input("a", vec2))
	must.M1(g.Input("b", vec2))
	node := must.M1(g.AddIf("select", "cond", thenBranch, elseBranch, []string{"a", "b"}))
	require.NoError(t, g.Return(node.Outputs[0]))
	return g
}

func feedsFor(cond bool) map[string]*tensors.Tensor {
	return map[string]*tensors.Tensor{
		"cond": tensors.FromScalar(cond),
		"a":    must.M1(tensors.FromFlat(vec2, []float32{1, 2})),
		"b":    must.M1(tensors.FromFlat(vec2, []float32{10, 20})),
	}
}

func TestIfBranchSelection(t *testing.T) {
	g := branchSelectionGraph(t)
	st := must.M1(session.NewState(g))

	outputs, err := st.Run(feedsFor(true), nil)
	require.NoError(t, err)
	assert.Equal(t, []float32{-1, -2}, must.M1(tensors.Flat[float32](outputs[0])))

	outputs, err = st.Run(feedsFor(false), nil)
	require.NoError(t, err)
	assert.Equal(t, []float32{10, 20}, must.M1(tensors.Flat[float32](outputs[0])))
}

func TestIfOutputCountMismatch(t *testing.T) {
	thenBranch := graphrt.New("then")
	must.M1(thenBranch.Implicit("a", vec2))
	must.M1(thenBranch.AddNode(optypes.Neg, "out", []string{"a"}, nil))
	require.NoError(t, thenBranch.Return("out"))

	// The else-branch returns two outputs where then returns one.
	elseBranch := graphrt.New("else")
	must.M1(elseBranch.Implicit("a", vec2))
	must.M1(elseBranch.AddNode(optypes.Identity, "out1", []string{"a"}, nil))
	must.M1(elseBranch.AddNode(optypes.Neg, "out2", []string{"a"}, nil))
	require.NoError(t, elseBranch.Return("out1", "out2"))

	g := graphrt.New("main")
	must.M1(g.Input("cond", shapes.Scalar[bool]()))
	must.M1(g.Input("a", vec2))
	node := must.M1(g.AddIf("select", "cond", thenBranch, elseBranch, []string{"a"}))
	require.NoError(t, g.Return(node.Outputs[0]))

	// The mismatch is fatal at setup time, before anything executes.
	_, err := session.NewState(g)
	require.ErrorIs(t, err, session.ErrConfiguration)
}

func TestIfUnresolvableImplicitInput(t *testing.T) {
	thenBranch := graphrt.New("then")
	must.M1(thenBranch.Implicit("a", vec2))
	must.M1(thenBranch.AddNode(optypes.Neg, "out", []string{"a"}, nil))
	require.NoError(t, thenBranch.Return("out"))

	// The else-branch reads "c", which the node does not provide.
	elseBranch := graphrt.New("else")
	must.M1(elseBranch.Implicit("c", vec2))
	must.M1(elseBranch.AddNode(optypes.Identity, "out", []string{"c"}, nil))
	require.NoError(t, elseBranch.Return("out"))

	g := graphrt.New("main")
	must.M1(g.Input("cond", shapes.Scalar[bool]()))
	must.M1(g.Input("a", vec2))
	must.M1(g.Input("c", vec2))
	node := must.M1(g.AddIf("select", "cond", thenBranch, elseBranch, []string{"a"}))
	require.NoError(t, g.Return(node.Outputs[0]))

	_, err := session.NewState(g)
	require.ErrorIs(t, err, session.ErrConfiguration)
}

func TestIfConditionMustBeScalarBool(t *testing.T) {
	branch := graphrt.New("branch")
	must.M1(branch.Implicit("a", vec2))
	must.M1(branch.AddNode(optypes.Identity, "out", []string{"a"}, nil))
	require.NoError(t, branch.Return("out"))

	g := graphrt.New("main")
	must.M1(g.Input("cond", vec2)) // Not a scalar bool.
	must.M1(g.Input("a", vec2))
	_, err := g.AddIf("select", "cond", branch, branch, []string{"a"})
	require.Error(t, err)
}

func TestIfDelayedOutput(t *testing.T) {
	// Both branches produce a data-dependent row count, so the If output has
	// a free leading dimension and its allocation is deferred until the
	// chosen branch finishes.
	matrix := shapes.Make(dtypes.Float32, 3, 2)

	thenBranch := graphrt.New("then")
	must.M1(thenBranch.Implicit("m", matrix))
	must.M1(thenBranch.AddNode(optypes.NonZeroRows, "kept", []string{"m"}, nil))
	require.NoError(t, thenBranch.Return("kept"))

	elseBranch := graphrt.New("else")
	must.M1(elseBranch.Implicit("m", matrix))
	must.M1(elseBranch.AddNode(optypes.Identity, "all", []string{"m"}, nil))
	require.NoError(t, elseBranch.Return("all"))

	g := graphrt.New("main")
	must.M1(g.Input("cond", shapes.Scalar[bool]()))
	must.M1(g.Input("m", matrix))
	node := must.M1(g.AddIf("select", "cond", thenBranch, elseBranch, []string{"m"}))
	require.NoError(t, g.Return(node.Outputs[0]))
	selected, _ := g.Value(node.Outputs[0])
	require.True(t, selected.Shape.Dimensions[0].IsFree())

	st := must.M1(session.NewState(g))
	m := must.M1(tensors.FromFlat(matrix, []float32{0, 0, 1, 2, 0, 0}))

	outputs, err := st.Run(map[string]*tensors.Tensor{"cond": tensors.FromScalar(true), "m": m}, nil)
	require.NoError(t, err)
	require.Equal(t, shapes.Make(dtypes.Float32, 1, 2), outputs[0].Shape())
	assert.Equal(t, []float32{1, 2}, must.M1(tensors.Flat[float32](outputs[0])))

	// The else-branch produces the full matrix through the same deferred
	// allocation path: the free dimension binds to 3.
	outputs, err = st.Run(map[string]*tensors.Tensor{"cond": tensors.FromScalar(false), "m": m}, nil)
	require.NoError(t, err)
	require.Equal(t, shapes.Make(dtypes.Float32, 3, 2), outputs[0].Shape())
}

func TestIfDelayedOutputEmpty(t *testing.T) {
	// Resolving a deferred output with an empty tensor is a success, not an
	// unresolved output.
	matrix := shapes.Make(dtypes.Float32, 2, 2)

	thenBranch := graphrt.New("then")
	must.M1(thenBranch.Implicit("m", matrix))
	must.M1(thenBranch.AddNode(optypes.NonZeroRows, "kept", []string{"m"}, nil))
	require.NoError(t, thenBranch.Return("kept"))

	elseBranch := graphrt.New("else")
	must.M1(elseBranch.Implicit("m", matrix))
	must.M1(elseBranch.AddNode(optypes.NonZeroRows, "kept", []string{"m"}, nil))
	require.NoError(t, elseBranch.Return("kept"))

	g := graphrt.New("main")
	must.M1(g.Input("cond", shapes.Scalar[bool]()))
	must.M1(g.Input("m", matrix))
	node := must.M1(g.AddIf("select", "cond", thenBranch, elseBranch, []string{"m"}))
	require.NoError(t, g.Return(node.Outputs[0]))

	st := must.M1(session.NewState(g))
	zeros := must.M1(tensors.FromFlat(matrix, make([]float32, 4)))
	outputs, err := st.Run(map[string]*tensors.Tensor{"cond": tensors.FromScalar(true), "m": zeros}, nil)
	require.NoError(t, err)
	require.Equal(t, shapes.Make(dtypes.Float32, 0, 2), outputs[0].Shape())
	assert.Equal(t, 0, outputs[0].Size())
}

func TestIfNested(t *testing.T) {
	// An If branch containing another If: implicit inputs thread through two
	// scope levels.
	inner := func(name string) *graphrt.Graph {
		thenBranch := graphrt.New(name + "_then")
		must.M1(thenBranch.Implicit("a", vec2))
		must.M1(thenBranch.AddNode(optypes.Neg, "out", []string{"a"}, nil))
		require.NoError(t, thenBranch.Return("out"))

		elseBranch := graphrt.New(name + "_else")
		must.M1(elseBranch.Implicit("a", vec2))
		must.M1(elseBranch.AddNode(optypes.Identity, "out", []string{"a"}, nil))
		require.NoError(t, elseBranch.Return("out"))

		sub := graphrt.New(name)
		must.M1(sub.Implicit("inner_cond", shapes.Scalar[bool]()))
		must.M1(sub.Implicit("a", vec2))
		node := must.M1(sub.AddIf("pick", "inner_cond", thenBranch, elseBranch, []string{"inner_cond", "a"}))
		require.NoError(t, sub.Return(node.Outputs[0]))
		return sub
	}

	elseBranch := graphrt.New("outer_else")
	must.M1(elseBranch.Implicit("a", vec2))
	must.M1(elseBranch.AddNode(optypes.Identity, "out", []string{"a"}, nil))
	require.NoError(t, elseBranch.Return("out"))

	g := graphrt.New("main")
	must.M1(g.Input("cond", shapes.Scalar[bool]()))
	must.M1(g.Input("inner_cond", shapes.Scalar[bool]()))
	must.M1(g.Input("a", vec2))
	node := must.M1(g.AddIf("select", "cond", inner("inner_if"), elseBranch,
		[]string{"cond", "inner_cond", "a"}))
	require.NoError(t, g.Return(node.Outputs[0]))

	st := must.M1(session.NewState(g))
	feeds := map[string]*tensors.Tensor{
		"cond":       tensors.FromScalar(true),
		"inner_cond": tensors.FromScalar(true),
		"a":          must.M1(tensors.FromFlat(vec2, []float32{1, 2})),
	}
	outputs, err := st.Run(feeds, nil)
	require.NoError(t, err)
	assert.Equal(t, []float32{-1, -2}, must.M1(tensors.Flat[float32](outputs[0])))

	feeds["inner_cond"] = tensors.FromScalar(false)
	outputs, err = st.Run(feeds, nil)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, must.M1(tensors.Flat[float32](outputs[0])))
}

func TestIfEagerOutputShapeMismatch(t *testing.T) {
	// The node's eager output buffer takes its shape from the then-branch;
	// an else-branch producing a different concrete shape fails that
	// invocation with an execution error. The then-branch keeps working.
	vec3 := shapes.Make(dtypes.Float32, 3)

	thenBranch := graphrt.New("then")
	must.M1(thenBranch.Implicit("a", vec2))
	must.M1(thenBranch.AddNode(optypes.Identity, "out", []string{"a"}, nil))
	require.NoError(t, thenBranch.Return("out"))

	elseBranch := graphrt.New("else")
	must.M1(elseBranch.Implicit("b", vec3))
	must.M1(elseBranch.AddNode(optypes.Identity, "out", []string{"b"}, nil))
	require.NoError(t, elseBranch.Return("out"))

	g := graphrt.New("main")
	must.M1(g.Input("cond", shapes.Scalar[bool]()))
	must.M1(g.Input("a", vec2))
	must.M1(g.Input("b", vec3))
	node := must.M1(g.AddIf("select", "cond", thenBranch, elseBranch, []string{"a", "b"}))
	require.NoError(t, g.Return(node.Outputs[0]))

	st := must.M1(session.NewState(g))
	feeds := map[string]*tensors.Tensor{
		"cond": tensors.FromScalar(false),
		"a":    must.M1(tensors.FromFlat(vec2, []float32{1, 2})),
		"b":    must.M1(tensors.FromFlat(vec3, []float32{1, 2, 3})),
	}
	_, err := st.Run(feeds, nil)
	require.ErrorIs(t, err, session.ErrExecution)

	feeds["cond"] = tensors.FromScalar(true)
	outputs, err := st.Run(feeds, nil)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, must.M1(tensors.Flat[float32](outputs[0])))
}

func TestIfCancellationThreadsThrough(t *testing.T) {
	g := branchSelectionGraph(t)
	st := must.M1(session.NewState(g))
	terminate := xsync.NewLatch()
	terminate.Trigger()
	_, err := st.Run(feedsFor(true), terminate)
	require.ErrorIs(t, err, session.ErrCancelled)
}
