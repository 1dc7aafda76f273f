// Package kernels implements the compute operations of the runtime and
// registers them with the session package. Importing it (usually for side
// effect) makes every non-control-flow operation executable:
//
//	import _ "github.com/gomlx/graphrt/kernels"
//
// Kernels compute on host-resident tensors; cross-location movement is the
// session executor's job, driven by its FeedsFetchesPlan.
package kernels

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/graphrt/types/tensors"
	"github.com/pkg/errors"
)

// number is the subset of dtypes the compute kernels operate on.
// It must stay a subset of dtypes.Supported.
type number interface {
	int32 | int64 | float32 | float64
}

// flatPair returns the flat data of an input/output tensor pair of the same
// dtype.
func flatPair[T number](in, out *tensors.Tensor) (src, dst []T, err error) {
	src, err = tensors.Flat[T](in)
	if err != nil {
		return nil, nil, err
	}
	dst, err = tensors.Flat[T](out)
	if err != nil {
		return nil, nil, err
	}
	return src, dst, nil
}

func unsupportedDType(op string, dtype dtypes.DType) error {
	return errors.Errorf("%s does not support dtype %s", op, dtype)
}
