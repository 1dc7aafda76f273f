package tensors

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/graphrt/devices"
	"github.com/gomlx/graphrt/types/shapes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestFromFlat(t *testing.T) {
	tensor, err := FromFlat(shapes.Make(dtypes.Float32, 2, 3), []float32{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	require.Equal(t, devices.HostLocation(), tensor.Location())
	require.Equal(t, 6, tensor.Size())
	flat, err := Flat[float32](tensor)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, flat)

	// Wrong dtype access.
	_, err = Flat[int32](tensor)
	require.Error(t, err)

	// Flat size mismatch.
	_, err = FromFlat(shapes.Make(dtypes.Float32, 2, 3), []float32{1, 2})
	require.Error(t, err)

	// Not fully defined shape.
	_, err = FromFlat(shapes.MakeDims(dtypes.Float32, shapes.Free()), []float32{1})
	require.Error(t, err)
}

func TestFloat16(t *testing.T) {
	flat := []float16.Float16{float16.Fromfloat32(1.5), float16.Fromfloat32(-2)}
	tensor, err := FromFlat(shapes.Make(dtypes.Float16, 2), flat)
	require.NoError(t, err)
	require.Equal(t, dtypes.Float16, tensor.DType())
	back, err := Flat[float16.Float16](tensor)
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), back[0].Float32())
}

func TestFromAnyValue(t *testing.T) {
	tensor, err := FromAnyValue([][]int32{{1, 2}, {3, 4}})
	require.NoError(t, err)
	require.True(t, tensor.Shape().Equal(shapes.Make(dtypes.Int32, 2, 2)))
	flat, err := Flat[int32](tensor)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3, 4}, flat)

	scalar := FromScalar(true)
	v, err := ScalarValue[bool](scalar)
	require.NoError(t, err)
	assert.True(t, v)
}

func TestCopies(t *testing.T) {
	tensor, err := FromFlat(shapes.Make(dtypes.Float64, 3), []float64{1, 2, 3})
	require.NoError(t, err)

	onDevice := tensor.CopyTo(devices.OnDevice(0))
	require.Equal(t, devices.OnDevice(0), onDevice.Location())
	require.True(t, tensor.Equal(onDevice))

	// Device memory is not host addressable.
	_, err = Flat[float64](onDevice)
	require.Error(t, err)

	// The copy is deep.
	flat, err := Flat[float64](tensor)
	require.NoError(t, err)
	flat[0] = 100
	back := onDevice.CopyTo(devices.HostLocation())
	backFlat, err := Flat[float64](back)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, backFlat)

	// CopyDataFrom into preallocated storage.
	dst, err := New(shapes.Make(dtypes.Float64, 3), devices.HostLocation())
	require.NoError(t, err)
	require.NoError(t, dst.CopyDataFrom(back))
	require.True(t, dst.Equal(back))
	require.Error(t, dst.CopyDataFrom(FromScalar(1.0)))
}

func TestEmptyTensor(t *testing.T) {
	empty, err := New(shapes.Make(dtypes.Float32, 0, 4), devices.HostLocation())
	require.NoError(t, err)
	require.Equal(t, 0, empty.Size())
	flat, err := Flat[float32](empty)
	require.NoError(t, err)
	assert.Empty(t, flat)
}
