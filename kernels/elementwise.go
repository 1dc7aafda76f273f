package kernels

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/graphrt"
	"github.com/gomlx/graphrt/session"
	"github.com/gomlx/graphrt/types/optypes"
	"github.com/gomlx/graphrt/types/tensors"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

func init() {
	session.RegisterKernel(optypes.Identity, newIdentity)
	session.RegisterKernel(optypes.Neg, newNeg)
	session.RegisterKernel(optypes.Add, newAdd)
}

// identity hands its input tensor over as its output, copying only when the
// output's resolved location cannot alias the input's.
type identity struct{}

func newIdentity(node *graphrt.Node, st *session.State) (session.Kernel, error) {
	return identity{}, nil
}

func (identity) Compute(ctx *session.Context) error {
	in, err := ctx.Input(0)
	if err != nil {
		return err
	}
	target := ctx.OutputLocation(0)
	if in.Location().CanAlias(target) {
		return ctx.SetOutput(0, in)
	}
	return ctx.SetOutput(0, in.CopyTo(target))
}

type neg struct{}

func newNeg(node *graphrt.Node, st *session.State) (session.Kernel, error) {
	return neg{}, nil
}

func (neg) Compute(ctx *session.Context) error {
	in, err := ctx.Input(0)
	if err != nil {
		return err
	}
	out, err := ctx.AllocateOutput(0, in.Shape())
	if err != nil {
		return err
	}
	switch in.DType() {
	case dtypes.Float32:
		return negFlat[float32](in, out)
	case dtypes.Float64:
		return negFlat[float64](in, out)
	case dtypes.Int32:
		return negFlat[int32](in, out)
	case dtypes.Int64:
		return negFlat[int64](in, out)
	}
	return unsupportedDType("Neg", in.DType())
}

func negFlat[T number](in, out *tensors.Tensor) error {
	src, dst, err := flatPair[T](in, out)
	if err != nil {
		return err
	}
	for i, v := range src {
		dst[i] = -v
	}
	return nil
}

type add struct{}

func newAdd(node *graphrt.Node, st *session.State) (session.Kernel, error) {
	return add{}, nil
}

func (add) Compute(ctx *session.Context) error {
	lhs, err := ctx.Input(0)
	if err != nil {
		return err
	}
	rhs, err := ctx.Input(1)
	if err != nil {
		return err
	}
	if !lhs.Shape().Equal(rhs.Shape()) {
		return errors.Errorf("Add operands must have matching shapes, got %s and %s", lhs.Shape(), rhs.Shape())
	}
	out, err := ctx.AllocateOutput(0, lhs.Shape())
	if err != nil {
		return err
	}
	switch lhs.DType() {
	case dtypes.Float32:
		return addFlat[float32](lhs, rhs, out)
	case dtypes.Float64:
		return addFloat64(lhs, rhs, out)
	case dtypes.Int32:
		return addFlat[int32](lhs, rhs, out)
	case dtypes.Int64:
		return addFlat[int64](lhs, rhs, out)
	}
	return unsupportedDType("Add", lhs.DType())
}

func addFlat[T number](lhs, rhs, out *tensors.Tensor) error {
	a, dst, err := flatPair[T](lhs, out)
	if err != nil {
		return err
	}
	b, err := tensors.Flat[T](rhs)
	if err != nil {
		return err
	}
	for i := range dst {
		dst[i] = a[i] + b[i]
	}
	return nil
}

func addFloat64(lhs, rhs, out *tensors.Tensor) error {
	a, dst, err := flatPair[float64](lhs, out)
	if err != nil {
		return err
	}
	b, err := tensors.Flat[float64](rhs)
	if err != nil {
		return err
	}
	copy(dst, a)
	floats.Add(dst, b)
	return nil
}
