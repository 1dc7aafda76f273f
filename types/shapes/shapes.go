// Package shapes defines Shape, Dimension and associated tools.
//
// Shape represents the dtype and dimensions of a tensor, or the declared
// shape of a graph value. Unlike a plain list of integer dimensions, each
// Dimension may be "free": its size is not fixed at graph-definition time.
// A free dimension optionally carries a denotation, a semantic tag (e.g.
// "DATA_BATCH") that identifies what the dimension means, and that can be
// used to bind it to a concrete size before execution (see the passes
// package).
//
// DType is the data type of the unit element of a tensor, an enumeration
// defined in github.com/gomlx/gopjrt/dtypes.
//
// Go float16 support uses the github.com/x448/float16 implementation.
package shapes

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// FreeSize is the sentinel size of a dimension that is not yet bound to a
// concrete value.
const FreeSize = -1

// Dimension is one axis of a Shape. It is exactly one of:
//
//   - concrete: Size >= 0;
//   - free, untagged: Size == FreeSize and no Denotation;
//   - free, tagged: Size == FreeSize and a non-empty Denotation.
//
// The Denotation is kept after a free dimension is bound to a concrete size,
// for diagnostics.
type Dimension struct {
	Size       int
	Denotation string
}

// Dim returns a concrete dimension of the given size.
func Dim(size int) Dimension {
	if size < 0 {
		exceptions.Panicf("shapes.Dim(%d): concrete dimensions cannot be negative", size)
	}
	return Dimension{Size: size}
}

// Free returns a free (unbound) dimension with no denotation.
func Free() Dimension {
	return Dimension{Size: FreeSize}
}

// FreeWithDenotation returns a free (unbound) dimension tagged with the given
// denotation.
func FreeWithDenotation(denotation string) Dimension {
	return Dimension{Size: FreeSize, Denotation: denotation}
}

// IsFree reports whether the dimension is not bound to a concrete size.
func (d Dimension) IsFree() bool { return d.Size < 0 }

// String implements fmt.Stringer: "7", "?" for a free dimension, and
// "?{DATA_BATCH}" / "7{DATA_BATCH}" when a denotation is attached.
func (d Dimension) String() string {
	size := "?"
	if !d.IsFree() {
		size = fmt.Sprintf("%d", d.Size)
	}
	if d.Denotation == "" {
		return size
	}
	return fmt.Sprintf("%s{%s}", size, d.Denotation)
}

// Shape represents the shape of a tensor or the declared shape of a graph
// value: a DType plus a list of Dimensions, any of which may be free.
//
// Use Make for fully concrete shapes, or MakeDims when free dimensions are
// involved. See the package documentation for an example.
type Shape struct {
	DType      dtypes.DType
	Dimensions []Dimension
}

// Make returns a concrete Shape with the given dimensions.
// It panics if any dimension is negative -- zero is valid, it denotes an
// empty tensor.
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	s := Shape{DType: dtype, Dimensions: make([]Dimension, len(dimensions))}
	for i, dim := range dimensions {
		if dim < 0 {
			exceptions.Panicf("shapes.Make(%s, %v): cannot create a shape with a negative dimension", dtype, dimensions)
		}
		s.Dimensions[i] = Dimension{Size: dim}
	}
	return s
}

// MakeDims returns a Shape from explicit Dimension values, which may include
// free dimensions.
func MakeDims(dtype dtypes.DType, dimensions ...Dimension) Shape {
	s := Shape{DType: dtype, Dimensions: make([]Dimension, len(dimensions))}
	copy(s.Dimensions, dimensions)
	return s
}

// Scalar returns a scalar (rank-0) Shape for the given type.
func Scalar[T dtypes.Supported]() Shape {
	return Shape{DType: dtypes.FromGenericsType[T]()}
}

// Invalid returns an invalid shape.
//
// Invalid().Ok() == false.
func Invalid() Shape {
	return Shape{DType: dtypes.InvalidDType}
}

// Ok returns whether this is a valid Shape. The zero value Shape{} is invalid.
func (s Shape) Ok() bool { return s.DType != dtypes.InvalidDType }

// Rank of the shape, that is, the number of dimensions.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape represents a scalar: no dimensions (rank==0).
func (s Shape) IsScalar() bool { return s.Ok() && s.Rank() == 0 }

// Dim returns the concrete size of the given axis. axis can take negative
// numbers, in which case it counts from the end -- axis=-1 is the last axis.
// It returns FreeSize for a free dimension and panics for an out-of-bounds axis.
func (s Shape) Dim(axis int) int {
	return s.Dimension(axis).Size
}

// Dimension returns the Dimension of the given axis, including its denotation.
// Like Dim, axis can be negative, counting from the end.
func (s Shape) Dimension(axis int) Dimension {
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += s.Rank()
	}
	if adjustedAxis < 0 || adjustedAxis >= s.Rank() {
		exceptions.Panicf("Shape.Dimension(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return s.Dimensions[adjustedAxis]
}

// IsFullyDefined reports whether every dimension is concrete.
// Only fully defined shapes can be allocated eagerly.
func (s Shape) IsFullyDefined() bool {
	for _, d := range s.Dimensions {
		if d.IsFree() {
			return false
		}
	}
	return s.Ok()
}

// Size returns the number of elements of DType needed for this shape, the
// product of all dimensions. It returns FreeSize if the shape is not fully
// defined.
func (s Shape) Size() int {
	size := 1
	for _, d := range s.Dimensions {
		if d.IsFree() {
			return FreeSize
		}
		size *= d.Size
	}
	return size
}

// Memory returns the bytes needed to store an array of the given shape.
// It panics if the shape is not fully defined.
func (s Shape) Memory() uintptr {
	size := s.Size()
	if size < 0 {
		exceptions.Panicf("Shape.Memory() called on not fully defined shape %s", s)
	}
	return s.DType.Memory() * uintptr(size)
}

// Shape returns a shallow copy of itself. It implements the HasShape interface.
func (s Shape) Shape() Shape { return s }

// HasShape is an interface for objects that have an associated Shape.
// Shape itself implements it, as does tensors.Tensor.
type HasShape interface {
	Shape() Shape
}

// Equal compares dtype, dimension sizes and free-ness. Denotations are
// documentation and do not participate in equality.
func (s Shape) Equal(s2 Shape) bool {
	if s.DType != s2.DType {
		return false
	}
	return s.EqualDimensions(s2)
}

// EqualDimensions compares dimension sizes only; dtypes can be different.
// A free dimension only equals another free dimension.
func (s Shape) EqualDimensions(s2 Shape) bool {
	if s.Rank() != s2.Rank() {
		return false
	}
	for i, d := range s.Dimensions {
		if d.Size != s2.Dimensions[i].Size {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the shape.
func (s Shape) Clone() (s2 Shape) {
	s2.DType = s.DType
	s2.Dimensions = make([]Dimension, len(s.Dimensions))
	copy(s2.Dimensions, s.Dimensions)
	return
}

// String implements fmt.Stringer, pretty-printing the shape, e.g.
// "(Float32)[?{DATA_BATCH} 10]".
func (s Shape) String() string {
	if !s.Ok() {
		return "(invalid shape)"
	}
	if s.Rank() == 0 {
		return fmt.Sprintf("(%s)", s.DType)
	}
	parts := make([]string, 0, s.Rank())
	for _, d := range s.Dimensions {
		parts = append(parts, d.String())
	}
	return fmt.Sprintf("(%s)[%s]", s.DType, strings.Join(parts, " "))
}
