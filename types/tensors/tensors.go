// Package tensors implements the Tensor value used by the runtime: a typed,
// shaped, contiguous array plus the memory location it lives in.
//
// A Tensor exclusively owns its storage. Tensors are never duplicated
// silently: handing a tensor over by reference is only done when locations
// are compatible (see devices.Location.CanAlias), and every cross-location
// copy is an explicit Tensor.CopyTo call.
package tensors

import (
	"fmt"
	"reflect"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/graphrt/devices"
	"github.com/gomlx/graphrt/types/shapes"
	"github.com/pkg/errors"
)

// Tensor is an opaque handle to a typed, shaped, contiguous array and the
// memory location it lives in.
//
// The flat data is stored as a Go slice of the type matching the shape's
// DType. Use Flat for typed access.
type Tensor struct {
	shape    shapes.Shape
	location devices.Location
	flat     any
}

// New allocates a zero-initialized tensor of the given shape at the given
// location. The shape must be fully defined.
func New(shape shapes.Shape, location devices.Location) (*Tensor, error) {
	if !shape.Ok() {
		return nil, errors.New("tensors.New: invalid shape")
	}
	if !shape.IsFullyDefined() {
		return nil, errors.Errorf("tensors.New: shape %s is not fully defined, storage size is unknown", shape)
	}
	size := shape.Size()
	flatV := reflect.MakeSlice(reflect.SliceOf(shape.DType.GoType()), size, size)
	return &Tensor{shape: shape, location: location, flat: flatV.Interface()}, nil
}

// FromFlat creates a host tensor of the given shape from the flat values.
// The flat slice is taken over by the tensor, not copied.
func FromFlat[T dtypes.Supported](shape shapes.Shape, flat []T) (*Tensor, error) {
	return FromFlatOn(devices.HostLocation(), shape, flat)
}

// FromFlatOn creates a tensor at the given location from the flat values.
// The flat slice is taken over by the tensor, not copied.
func FromFlatOn[T dtypes.Supported](location devices.Location, shape shapes.Shape, flat []T) (*Tensor, error) {
	dtype := dtypes.FromGenericsType[T]()
	if dtype != shape.DType {
		return nil, errors.Errorf("tensors.FromFlat: flat values are %s, shape %s expects %s", dtype, shape, shape.DType)
	}
	if !shape.IsFullyDefined() {
		return nil, errors.Errorf("tensors.FromFlat: shape %s is not fully defined", shape)
	}
	if shape.Size() != len(flat) {
		return nil, errors.Errorf("tensors.FromFlat: flat values size %d doesn't match shape size %d (%s)", len(flat), shape.Size(), shape)
	}
	return &Tensor{shape: shape, location: location, flat: flat}, nil
}

// FromScalar creates a host scalar tensor from the given value.
func FromScalar[T dtypes.Supported](value T) *Tensor {
	t, err := FromFlat(shapes.Scalar[T](), []T{value})
	if err != nil {
		// Scalar shapes are always fully defined and sized 1.
		panic(err)
	}
	return t
}

// FromAnyValue creates a host tensor from a Go value: a POD scalar or
// (nested) slices of POD. The shape is derived with shapes.FromAnyValue.
func FromAnyValue(value any) (*Tensor, error) {
	shape, err := shapes.FromAnyValue(value)
	if err != nil {
		return nil, errors.WithMessagef(err, "tensors.FromAnyValue(%T)", value)
	}
	size := shape.Size()
	flatV := reflect.MakeSlice(reflect.SliceOf(shape.DType.GoType()), 0, size)
	flatV = flattenRecursive(flatV, reflect.ValueOf(value))
	return &Tensor{shape: shape, location: devices.HostLocation(), flat: flatV.Interface()}, nil
}

func flattenRecursive(flat, v reflect.Value) reflect.Value {
	if v.Kind() != reflect.Slice {
		return reflect.Append(flat, v)
	}
	for i := 0; i < v.Len(); i++ {
		flat = flattenRecursive(flat, v.Index(i))
	}
	return flat
}

// Flat returns the tensor's flat data as a []T.
// It fails if T doesn't match the tensor's dtype or if the tensor does not
// live in host-visible memory.
func Flat[T dtypes.Supported](t *Tensor) ([]T, error) {
	if t.location.Kind == devices.Device {
		return nil, errors.Errorf("tensors.Flat: tensor lives on %s, not addressable by the host -- copy it first", t.location)
	}
	flat, ok := t.flat.([]T)
	if !ok {
		return nil, errors.Errorf("tensors.Flat[%s]: tensor dtype is %s", dtypes.FromGenericsType[T](), t.DType())
	}
	return flat, nil
}

// ScalarValue returns the single element of a scalar tensor.
func ScalarValue[T dtypes.Supported](t *Tensor) (value T, err error) {
	if !t.shape.IsScalar() {
		return value, errors.Errorf("tensors.ScalarValue: tensor is %s, not a scalar", t.shape)
	}
	flat, err := Flat[T](t)
	if err != nil {
		return value, err
	}
	return flat[0], nil
}

// Shape of the tensor. Implements shapes.HasShape.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType of the tensor, a shortcut to Tensor.Shape().DType.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Location of the tensor's storage.
func (t *Tensor) Location() devices.Location { return t.location }

// Size returns the number of elements stored, the same as Shape().Size().
func (t *Tensor) Size() int { return t.shape.Size() }

// Memory returns the number of bytes used to store the tensor.
func (t *Tensor) Memory() uintptr { return t.shape.Memory() }

// CopyTo returns a copy of the tensor at the given location. The copy is
// always deep, even if the target location equals the current one.
func (t *Tensor) CopyTo(location devices.Location) *Tensor {
	flatV := reflect.ValueOf(t.flat)
	cloneV := reflect.MakeSlice(flatV.Type(), flatV.Len(), flatV.Len())
	reflect.Copy(cloneV, flatV)
	return &Tensor{shape: t.shape.Clone(), location: location, flat: cloneV.Interface()}
}

// CopyDataFrom copies the contents of src into t's existing storage.
// Shapes and dtypes must match exactly; t's location is unchanged.
func (t *Tensor) CopyDataFrom(src *Tensor) error {
	if !t.shape.Equal(src.shape) {
		return errors.Errorf("Tensor.CopyDataFrom: shape mismatch, %s vs %s", t.shape, src.shape)
	}
	reflect.Copy(reflect.ValueOf(t.flat), reflect.ValueOf(src.flat))
	return nil
}

// Equal reports whether two tensors have equal shape and contents, regardless
// of their locations.
func (t *Tensor) Equal(other *Tensor) bool {
	if !t.shape.Equal(other.shape) {
		return false
	}
	return reflect.DeepEqual(t.flat, other.flat)
}

// String implements fmt.Stringer. It does not print the data, only the shape,
// location and storage size.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor<%s on %s, %s>", t.shape, t.location,
		humanize.Bytes(uint64(t.shape.Memory())))
}
