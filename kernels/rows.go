package kernels

import (
	"math"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/graphrt"
	"github.com/gomlx/graphrt/session"
	"github.com/gomlx/graphrt/types/optypes"
	"github.com/gomlx/graphrt/types/shapes"
	"github.com/gomlx/graphrt/types/tensors"
	"github.com/gomlx/graphrt/types/xsync"
	"gonum.org/v1/gonum/floats"
)

func init() {
	session.RegisterKernel(optypes.NonZeroRows, newNonZeroRows)
	session.RegisterKernel(optypes.NormalizeRows, newNormalizeRows)
}

// rowsPool is the worker pool shared by the row-parallel kernels. Sized to
// the machine; kernels fan out onto it and block until their units drain.
var rowsPool = xsync.NewPool(0)

// rowsPerUnit is how many rows one fan-out unit processes. Coarse enough to
// amortize scheduling, fine enough to spread small batches over the pool.
const rowsPerUnit = 32

// nonZeroRows keeps the rows of a matrix that have at least one non-zero
// element. The output row count is data-dependent: its declared shape has a
// free leading dimension, bound here with the concrete count. Zero surviving
// rows produce an empty tensor, not an error.
type nonZeroRows struct{}

func newNonZeroRows(node *graphrt.Node, st *session.State) (session.Kernel, error) {
	return nonZeroRows{}, nil
}

func (nonZeroRows) Compute(ctx *session.Context) error {
	in, err := ctx.Input(0)
	if err != nil {
		return err
	}
	switch in.DType() {
	case dtypes.Float32:
		return nonZeroRowsFlat[float32](ctx, in)
	case dtypes.Float64:
		return nonZeroRowsFlat[float64](ctx, in)
	case dtypes.Int32:
		return nonZeroRowsFlat[int32](ctx, in)
	case dtypes.Int64:
		return nonZeroRowsFlat[int64](ctx, in)
	}
	return unsupportedDType("NonZeroRows", in.DType())
}

func nonZeroRowsFlat[T number](ctx *session.Context, in *tensors.Tensor) error {
	src, err := tensors.Flat[T](in)
	if err != nil {
		return err
	}
	rows := in.Shape().Dim(0)
	cols := in.Shape().Dim(1)
	var kept []int
	for row := range rows {
		for _, v := range src[row*cols : (row+1)*cols] {
			if v != 0 {
				kept = append(kept, row)
				break
			}
		}
	}
	out, err := ctx.AllocateOutput(0, shapes.Make(in.DType(), len(kept), cols))
	if err != nil {
		return err
	}
	dst, err := tensors.Flat[T](out)
	if err != nil {
		return err
	}
	for i, row := range kept {
		copy(dst[i*cols:(i+1)*cols], src[row*cols:(row+1)*cols])
	}
	return nil
}

// normalizeRows scales each row of a float matrix to unit L2 norm,
// processing blocks of rows in parallel on the shared pool. Zero-norm rows
// are left untouched.
type normalizeRows struct{}

func newNormalizeRows(node *graphrt.Node, st *session.State) (session.Kernel, error) {
	return normalizeRows{}, nil
}

func (normalizeRows) Compute(ctx *session.Context) error {
	in, err := ctx.Input(0)
	if err != nil {
		return err
	}
	out, err := ctx.AllocateOutput(0, in.Shape())
	if err != nil {
		return err
	}
	rows := in.Shape().Dim(0)
	cols := in.Shape().Dim(1)
	switch in.DType() {
	case dtypes.Float32:
		src, dst, err := flatPair[float32](in, out)
		if err != nil {
			return err
		}
		return xsync.Fanout(rowsPool, rows, rowsPerUnit, func(index int) error {
			for row := index; row < min(index+rowsPerUnit, rows); row++ {
				normalizeRowF32(src[row*cols:(row+1)*cols], dst[row*cols:(row+1)*cols])
			}
			return nil
		})
	case dtypes.Float64:
		src, dst, err := flatPair[float64](in, out)
		if err != nil {
			return err
		}
		return xsync.Fanout(rowsPool, rows, rowsPerUnit, func(index int) error {
			for row := index; row < min(index+rowsPerUnit, rows); row++ {
				normalizeRowF64(src[row*cols:(row+1)*cols], dst[row*cols:(row+1)*cols])
			}
			return nil
		})
	}
	return unsupportedDType("NormalizeRows", in.DType())
}

func normalizeRowF64(src, dst []float64) {
	copy(dst, src)
	norm := floats.Norm(dst, 2)
	if norm > 0 {
		floats.Scale(1/norm, dst)
	}
}

func normalizeRowF32(src, dst []float32) {
	var sum float64
	for _, v := range src {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		copy(dst, src)
		return
	}
	scale := float32(1 / norm)
	for i, v := range src {
		dst[i] = v * scale
	}
}
