// Package shapeinference calculates the declared output shape of operations
// and validates their inputs.
//
// It runs at graph-construction time, so it must handle free (symbolic)
// dimensions: where an output size depends on a free input dimension the
// free dimension is propagated, and where it depends on the data itself
// (NonZeroRows) the output dimension is emitted free, to be resolved only
// when the operation actually runs.
//
// Control-flow operations (optypes.If) are not handled here: their output
// shapes come from their subgraphs and are resolved by the graph builder.
package shapeinference

import (
	"github.com/gomlx/graphrt/internal/utils"
	"github.com/gomlx/graphrt/types/optypes"
	"github.com/gomlx/graphrt/types/shapes"
	"github.com/pkg/errors"
)

var (
	// UnaryOperations preserve the shape of their single operand.
	UnaryOperations = utils.SetWith(
		optypes.Identity,
		optypes.Neg,
		optypes.NormalizeRows,
	)

	// BinaryOperations take two operands of matching shapes.
	BinaryOperations = utils.SetWith(
		optypes.Add,
	)

	// RowsOperations require a rank-2 operand.
	RowsOperations = utils.SetWith(
		optypes.NonZeroRows,
		optypes.NormalizeRows,
	)

	// FloatOnlyOperations only operate on floating point operands.
	FloatOnlyOperations = utils.SetWith(
		optypes.NormalizeRows,
	)
)

// OutputShapes returns the declared output shapes for the given operation and
// input shapes. attributes are the node's attributes, consulted per-op
// (Concat reads "axis").
func OutputShapes(op optypes.OpType, inputs []shapes.Shape, attributes map[string]any) ([]shapes.Shape, error) {
	switch {
	case UnaryOperations.Has(op):
		if len(inputs) != 1 {
			return nil, errors.Errorf("op %s takes exactly one input, got %d", op, len(inputs))
		}
		output, err := UnaryOp(op, inputs[0])
		if err != nil {
			return nil, err
		}
		return []shapes.Shape{output}, nil

	case BinaryOperations.Has(op):
		if len(inputs) != 2 {
			return nil, errors.Errorf("op %s takes exactly two inputs, got %d", op, len(inputs))
		}
		output, err := BinaryOp(op, inputs[0], inputs[1])
		if err != nil {
			return nil, err
		}
		return []shapes.Shape{output}, nil

	case op == optypes.Concat:
		axis, ok := attributes["axis"].(int)
		if !ok {
			return nil, errors.Errorf("op %s requires an int \"axis\" attribute", op)
		}
		output, err := Concat(axis, inputs)
		if err != nil {
			return nil, err
		}
		return []shapes.Shape{output}, nil

	case op == optypes.NonZeroRows:
		if len(inputs) != 1 {
			return nil, errors.Errorf("op %s takes exactly one input, got %d", op, len(inputs))
		}
		output, err := NonZeroRows(inputs[0])
		if err != nil {
			return nil, err
		}
		return []shapes.Shape{output}, nil
	}
	return nil, errors.Errorf("shape inference not defined for op %s", op)
}

// UnaryOp returns the output shape for shape-preserving unary operations.
func UnaryOp(op optypes.OpType, operand shapes.Shape) (shapes.Shape, error) {
	if !UnaryOperations.Has(op) {
		return shapes.Invalid(), errors.Errorf("op %s is not a unary operation", op)
	}
	if !operand.Ok() {
		return shapes.Invalid(), errors.Errorf("op %s given an invalid operand shape", op)
	}
	if RowsOperations.Has(op) && operand.Rank() != 2 {
		return shapes.Invalid(), errors.Errorf("op %s requires a rank-2 operand, got %s", op, operand)
	}
	if FloatOnlyOperations.Has(op) && !operand.DType.IsFloat() {
		return shapes.Invalid(), errors.Errorf("op %s requires a float operand, got %s", op, operand)
	}
	return operand.Clone(), nil
}

// BinaryOp returns the output shape for element-wise binary operations.
// Operand shapes must match exactly -- there is no broadcasting; a free
// dimension only matches another free dimension.
func BinaryOp(op optypes.OpType, lhs, rhs shapes.Shape) (shapes.Shape, error) {
	if !BinaryOperations.Has(op) {
		return shapes.Invalid(), errors.Errorf("op %s is not a binary operation", op)
	}
	if !lhs.Ok() || !rhs.Ok() {
		return shapes.Invalid(), errors.Errorf("op %s given an invalid operand shape", op)
	}
	if !lhs.Equal(rhs) {
		return shapes.Invalid(), errors.Errorf("op %s operands must have matching shapes, got %s and %s", op, lhs, rhs)
	}
	return lhs.Clone(), nil
}

// Concat returns the shape of the concatenation of the operands along the
// given axis. The concatenation axis may be free on any operand, in which
// case it is free on the output; all other axes must match exactly.
func Concat(axis int, operands []shapes.Shape) (shapes.Shape, error) {
	if len(operands) == 0 {
		return shapes.Invalid(), errors.New("Concat requires at least one operand")
	}
	first := operands[0]
	adjustedAxis, err := AdjustAxisToRank(axis, first.Rank())
	if err != nil {
		return shapes.Invalid(), errors.WithMessagef(err, "Concat axis is invalid for shape %s", first)
	}
	output := first.Clone()
	for i, operand := range operands[1:] {
		if operand.DType != first.DType {
			return shapes.Invalid(), errors.Errorf("Concat operand #%d dtype %s doesn't match %s", i+1, operand.DType, first.DType)
		}
		if operand.Rank() != first.Rank() {
			return shapes.Invalid(), errors.Errorf("Concat operand #%d rank %d doesn't match %d", i+1, operand.Rank(), first.Rank())
		}
		for a := range first.Rank() {
			if a == adjustedAxis {
				if output.Dimensions[a].IsFree() || operand.Dimensions[a].IsFree() {
					output.Dimensions[a] = shapes.Free()
				} else {
					output.Dimensions[a] = shapes.Dim(output.Dimensions[a].Size + operand.Dimensions[a].Size)
				}
				continue
			}
			if operand.Dimensions[a].Size != first.Dimensions[a].Size {
				return shapes.Invalid(), errors.Errorf("Concat operand #%d shape %s doesn't match %s outside axis %d",
					i+1, operand, first, adjustedAxis)
			}
		}
	}
	return output, nil
}

// NonZeroRows returns the output shape of the NonZeroRows operation: the row
// count is data-dependent, so the leading output dimension is free.
func NonZeroRows(operand shapes.Shape) (shapes.Shape, error) {
	if operand.Rank() != 2 {
		return shapes.Invalid(), errors.Errorf("NonZeroRows requires a rank-2 operand, got %s", operand)
	}
	return shapes.MakeDims(operand.DType, shapes.Free(), operand.Dimensions[1]), nil
}

// AdjustAxisToRank converts a negative axis (counting from the end) to the
// corresponding non-negative axis, and validates it against the rank.
func AdjustAxisToRank(axis, rank int) (int, error) {
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += rank
	}
	if adjustedAxis < 0 || adjustedAxis >= rank {
		return -1, errors.Errorf("axis %d out-of-range for rank %d", axis, rank)
	}
	return adjustedAxis, nil
}
