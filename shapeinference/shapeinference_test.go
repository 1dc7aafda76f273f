package shapeinference

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/graphrt/types/optypes"
	"github.com/gomlx/graphrt/types/shapes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnaryOp(t *testing.T) {
	shape := shapes.Make(dtypes.Float32, 2, 3)
	got, err := UnaryOp(optypes.Neg, shape)
	require.NoError(t, err)
	assert.True(t, got.Equal(shape))

	// NormalizeRows requires a rank-2 float operand.
	_, err = UnaryOp(optypes.NormalizeRows, shapes.Make(dtypes.Float32, 2))
	require.Error(t, err)
	_, err = UnaryOp(optypes.NormalizeRows, shapes.Make(dtypes.Int32, 2, 3))
	require.Error(t, err)

	_, err = UnaryOp(optypes.Add, shape)
	require.Error(t, err)
}

func TestBinaryOp(t *testing.T) {
	shape := shapes.Make(dtypes.Float32, 2, 3)
	got, err := BinaryOp(optypes.Add, shape, shape)
	require.NoError(t, err)
	assert.True(t, got.Equal(shape))

	// No broadcasting.
	_, err = BinaryOp(optypes.Add, shape, shapes.Make(dtypes.Float32, 1, 3))
	require.Error(t, err)

	// A free dimension only matches another free dimension.
	free := shapes.MakeDims(dtypes.Float32, shapes.Free(), shapes.Dim(3))
	got, err = BinaryOp(optypes.Add, free, free)
	require.NoError(t, err)
	assert.True(t, got.Dimensions[0].IsFree())
	_, err = BinaryOp(optypes.Add, free, shape)
	require.Error(t, err)
}

func TestConcat(t *testing.T) {
	a := shapes.Make(dtypes.Float32, 2, 3)
	b := shapes.Make(dtypes.Float32, 5, 3)
	got, err := Concat(0, []shapes.Shape{a, b})
	require.NoError(t, err)
	assert.Equal(t, 7, got.Dim(0))
	assert.Equal(t, 3, got.Dim(1))

	// Negative axis counts from the end.
	got, err = Concat(-1, []shapes.Shape{a, shapes.Make(dtypes.Float32, 2, 4)})
	require.NoError(t, err)
	assert.Equal(t, 7, got.Dim(1))

	// A free concatenation axis makes the output axis free.
	free := shapes.MakeDims(dtypes.Float32, shapes.FreeWithDenotation("DATA_BATCH"), shapes.Dim(3))
	got, err = Concat(0, []shapes.Shape{a, free})
	require.NoError(t, err)
	assert.True(t, got.Dimensions[0].IsFree())

	// Non-concatenation axes must match exactly.
	_, err = Concat(0, []shapes.Shape{a, shapes.Make(dtypes.Float32, 5, 4)})
	require.Error(t, err)
	_, err = Concat(0, []shapes.Shape{a, shapes.Make(dtypes.Float64, 5, 3)})
	require.Error(t, err)
	_, err = Concat(2, []shapes.Shape{a, b})
	require.Error(t, err)
}

func TestNonZeroRows(t *testing.T) {
	got, err := NonZeroRows(shapes.Make(dtypes.Int32, 5, 4))
	require.NoError(t, err)
	assert.True(t, got.Dimensions[0].IsFree())
	assert.Equal(t, 4, got.Dim(1))
	assert.Equal(t, dtypes.Int32, got.DType)

	_, err = NonZeroRows(shapes.Make(dtypes.Int32, 5))
	require.Error(t, err)
}

func TestOutputShapes(t *testing.T) {
	shape := shapes.Make(dtypes.Float32, 2, 3)
	got, err := OutputShapes(optypes.Identity, []shapes.Shape{shape}, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)

	_, err = OutputShapes(optypes.Concat, []shapes.Shape{shape, shape}, nil)
	require.Error(t, err) // Missing "axis" attribute.

	got, err = OutputShapes(optypes.Concat, []shapes.Shape{shape, shape}, map[string]any{"axis": 1})
	require.NoError(t, err)
	assert.Equal(t, 6, got[0].Dim(1))

	_, err = OutputShapes(optypes.If, []shapes.Shape{shape}, nil)
	require.Error(t, err)
}
