package kernels

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/graphrt"
	"github.com/gomlx/graphrt/session"
	"github.com/gomlx/graphrt/shapeinference"
	"github.com/gomlx/graphrt/types/optypes"
	"github.com/gomlx/graphrt/types/shapes"
	"github.com/gomlx/graphrt/types/tensors"
)

func init() {
	session.RegisterKernel(optypes.Concat, newConcat)
}

// concat joins its inputs along one axis. The axis is fixed per node at
// setup time; the concrete output shape is recomputed per execution, since
// free input dimensions only resolve once the inputs are bound.
type concat struct {
	axis int
}

func newConcat(node *graphrt.Node, st *session.State) (session.Kernel, error) {
	axis, err := graphrt.GetAttr[int](node, "axis")
	if err != nil {
		return nil, err
	}
	return &concat{axis: axis}, nil
}

func (k *concat) Compute(ctx *session.Context) error {
	inputs := make([]*tensors.Tensor, ctx.NumInputs())
	inputShapes := make([]shapes.Shape, len(inputs))
	for i := range inputs {
		in, err := ctx.Input(i)
		if err != nil {
			return err
		}
		inputs[i] = in
		inputShapes[i] = in.Shape()
	}
	outputShape, err := shapeinference.Concat(k.axis, inputShapes)
	if err != nil {
		return err
	}
	out, err := ctx.AllocateOutput(0, outputShape)
	if err != nil {
		return err
	}
	axis, err := shapeinference.AdjustAxisToRank(k.axis, outputShape.Rank())
	if err != nil {
		return err
	}
	// Rows of the output viewed as (outer, inner): outer is the product of
	// the axes before the concatenation axis, inner everything from it on.
	outer := 1
	for a := range axis {
		outer *= outputShape.Dimensions[a].Size
	}
	switch out.DType() {
	case dtypes.Float32:
		return concatFlat[float32](inputs, out, outer)
	case dtypes.Float64:
		return concatFlat[float64](inputs, out, outer)
	case dtypes.Int32:
		return concatFlat[int32](inputs, out, outer)
	case dtypes.Int64:
		return concatFlat[int64](inputs, out, outer)
	}
	return unsupportedDType("Concat", out.DType())
}

func concatFlat[T number](inputs []*tensors.Tensor, out *tensors.Tensor, outer int) error {
	dst, err := tensors.Flat[T](out)
	if err != nil {
		return err
	}
	if outer == 0 {
		return nil
	}
	innerOut := len(dst) / outer
	offset := 0
	for _, in := range inputs {
		src, err := tensors.Flat[T](in)
		if err != nil {
			return err
		}
		inner := len(src) / outer
		for o := range outer {
			copy(dst[o*innerOut+offset:o*innerOut+offset+inner], src[o*inner:(o+1)*inner])
		}
		offset += inner
	}
	return nil
}
