// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package ops

// This file implements the element-wise binary operations with numpy-style broadcasting.

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/sprout-ml/sprout/types/dtypes"
	"github.com/sprout-ml/sprout/types/shapes"
	"github.com/sprout-ml/sprout/types/tensors"
)

// Add returns the element-wise sum of the two operands. Standard broadcasting rules apply.
func Add(lhs, rhs *tensors.Tensor) *tensors.Tensor {
	return binaryOp(opAdd, lhs, rhs)
}

// Sub returns the element-wise subtraction of the two operands. Standard broadcasting rules apply.
func Sub(lhs, rhs *tensors.Tensor) *tensors.Tensor {
	return binaryOp(opSub, lhs, rhs)
}

// Mul returns the element-wise product of the two operands. Standard broadcasting rules apply.
func Mul(lhs, rhs *tensors.Tensor) *tensors.Tensor {
	return binaryOp(opMul, lhs, rhs)
}

// Div returns the element-wise division of the two operands. Standard broadcasting rules apply.
//
// For integer dtypes it follows Go semantics: truncated division, and division by zero panics.
func Div(lhs, rhs *tensors.Tensor) *tensors.Tensor {
	return binaryOp(opDiv, lhs, rhs)
}

// Pow returns the element-wise exponentiation lhs^rhs. Standard broadcasting rules apply.
//
// For integer dtypes negative exponents truncate towards zero.
func Pow(lhs, rhs *tensors.Tensor) *tensors.Tensor {
	return binaryOp(opPow, lhs, rhs)
}

// Max returns the element-wise highest value among the two operands. Standard broadcasting rules
// apply.
func Max(lhs, rhs *tensors.Tensor) *tensors.Tensor {
	return binaryOp(opMax, lhs, rhs)
}

// Min returns the element-wise smallest value among the two operands. Standard broadcasting rules
// apply.
func Min(lhs, rhs *tensors.Tensor) *tensors.Tensor {
	return binaryOp(opMin, lhs, rhs)
}

// AddScalar returns x + scalar, with scalar converted to x's dtype.
func AddScalar(x *tensors.Tensor, scalar float64) *tensors.Tensor {
	return Add(x, Scalar(x.DType(), scalar))
}

// MulScalar returns x * scalar, with scalar converted to x's dtype.
func MulScalar(x *tensors.Tensor, scalar float64) *tensors.Tensor {
	return Mul(x, Scalar(x.DType(), scalar))
}

// DivScalar returns x / scalar, with scalar converted to x's dtype.
func DivScalar(x *tensors.Tensor, scalar float64) *tensors.Tensor {
	return Div(x, Scalar(x.DType(), scalar))
}

// PowScalar returns x^scalar, with scalar converted to x's dtype.
func PowScalar(x *tensors.Tensor, scalar float64) *tensors.Tensor {
	return Pow(x, Scalar(x.DType(), scalar))
}

// OneMinus returns 1 - x.
func OneMinus(x *tensors.Tensor) *tensors.Tensor {
	return Sub(Scalar(x.DType(), 1), x)
}

// binaryOp implements the shared plumbing of the element-wise binary operations: validation,
// broadcasting, kernel dispatch and tape recording.
func binaryOp(op opType, lhs, rhs *tensors.Tensor) *tensors.Tensor {
	lhs.AssertValid()
	rhs.AssertValid()
	checkSameDType(op, lhs, rhs)
	checkKernelDType(op, lhs.DType())
	output := tensors.FromShape(broadcastShapes(op, lhs.Shape(), rhs.Shape()))
	execBinary(op, lhs, rhs, output)
	recordOp(op, output, lhs, rhs)
	return output
}

func execBinary(op opType, lhs, rhs, output *tensors.Tensor) {
	switch output.DType() {
	case dtypes.Float32:
		execBinaryGeneric[float32](op, lhs, rhs, output)
	case dtypes.Float64:
		execBinaryGeneric[float64](op, lhs, rhs, output)
	case dtypes.Int8:
		execBinaryGeneric[int8](op, lhs, rhs, output)
	case dtypes.Int16:
		execBinaryGeneric[int16](op, lhs, rhs, output)
	case dtypes.Int32:
		execBinaryGeneric[int32](op, lhs, rhs, output)
	case dtypes.Int64:
		execBinaryGeneric[int64](op, lhs, rhs, output)
	case dtypes.Uint8:
		execBinaryGeneric[uint8](op, lhs, rhs, output)
	case dtypes.Uint16:
		execBinaryGeneric[uint16](op, lhs, rhs, output)
	case dtypes.Uint32:
		execBinaryGeneric[uint32](op, lhs, rhs, output)
	case dtypes.Uint64:
		execBinaryGeneric[uint64](op, lhs, rhs, output)
	default:
		exceptions.Panicf("%s: unsupported dtype %s", op, output.DType())
	}
}

func execBinaryGeneric[T dtypes.Number](op opType, lhs, rhs, output *tensors.Tensor) {
	execBinaryKernel(binaryFuncFor[T](op), lhs, rhs, output)
}

// execBinaryKernel runs fn element-wise over the broadcast operands, writing into output, whose
// shape must be the broadcast of the operands' shapes.
func execBinaryKernel[T dtypes.Number](fn func(a, b T) T, lhs, rhs, output *tensors.Tensor) {
	if lhs == rhs {
		// Nested accesses of the same tensor would deadlock on its mutex.
		rhs = rhs.Clone()
	}
	outputShape := output.Shape()
	tensors.ConstFlatData(lhs, func(lhsFlat []T) {
		tensors.ConstFlatData(rhs, func(rhsFlat []T) {
			tensors.MutableFlatData(output, func(outputFlat []T) {
				if lhs.Shape().EqualDimensions(rhs.Shape()) {
					// Fast path: no broadcasting needed.
					for ii, a := range lhsFlat {
						outputFlat[ii] = fn(a, rhsFlat[ii])
					}
					return
				}
				iter := newBroadcastIterator(outputShape,
					broadcastStrides(lhs.Shape(), outputShape),
					broadcastStrides(rhs.Shape(), outputShape))
				for ii := range outputFlat {
					lhsIdx, rhsIdx := iter.next()
					outputFlat[ii] = fn(lhsFlat[lhsIdx], rhsFlat[rhsIdx])
				}
			})
		})
	})
}

func binaryFuncFor[T dtypes.Number](op opType) func(a, b T) T {
	switch op {
	case opAdd:
		return func(a, b T) T { return a + b }
	case opSub:
		return func(a, b T) T { return a - b }
	case opMul:
		return func(a, b T) T { return a * b }
	case opDiv:
		return func(a, b T) T { return a / b }
	case opMax:
		return func(a, b T) T { return max(a, b) }
	case opMin:
		return func(a, b T) T { return min(a, b) }
	case opPow:
		return powFor[T]()
	}
	exceptions.Panicf("%s: no binary kernel registered", op)
	return nil
}

func powFor[T dtypes.Number]() func(a, b T) T {
	var zero T
	switch any(zero).(type) {
	case float32, float64:
		return func(a, b T) T { return T(math.Pow(float64(a), float64(b))) }
	}
	return intPow[T]
}

// intPow implements exponentiation by squaring for the integer dtypes. Negative exponents
// truncate towards zero, except for bases 1 and -1.
func intPow[T dtypes.Number](base, exp T) T {
	e := int64(exp)
	if e < 0 {
		switch int64(base) {
		case 1:
			return 1
		case -1:
			if e%2 == 0 {
				return 1
			}
			return base
		}
		return 0
	}
	result := T(1)
	for ; e > 0; e >>= 1 {
		if e&1 == 1 {
			result = result * base
		}
		base = base * base
	}
	return result
}

// broadcastIterator walks the flat indices of two broadcast operands in row-major order of the
// output shape, using per-axis counters and the operands' broadcast strides.
type broadcastIterator struct {
	dims               []int
	counters           []int
	strides0, strides1 []int
	idx0, idx1         int
}

func newBroadcastIterator(output shapes.Shape, strides0, strides1 []int) *broadcastIterator {
	return &broadcastIterator{
		dims:     output.Dimensions,
		counters: make([]int, output.Rank()),
		strides0: strides0,
		strides1: strides1,
	}
}

// next returns the operands' flat indices for the current position and moves to the next one.
func (it *broadcastIterator) next() (idx0, idx1 int) {
	idx0, idx1 = it.idx0, it.idx1
	for axis := len(it.dims) - 1; axis >= 0; axis-- {
		it.counters[axis]++
		it.idx0 += it.strides0[axis]
		it.idx1 += it.strides1[axis]
		if it.counters[axis] < it.dims[axis] {
			break
		}
		// Wrap around this axis and carry to the previous one.
		it.counters[axis] = 0
		it.idx0 -= it.strides0[axis] * it.dims[axis]
		it.idx1 -= it.strides1[axis] * it.dims[axis]
	}
	return
}
