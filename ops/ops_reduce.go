// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package ops

// This file implements the reduction operations.

import (
	"math"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/sprout-ml/sprout/types/dtypes"
	"github.com/sprout-ml/sprout/types/shapes"
	"github.com/sprout-ml/sprout/types/tensors"
	"github.com/sprout-ml/sprout/types/xslices"
)

// ReduceSum returns the sum of x over the given axes, which are removed from the shape. Negative
// axes count from the end. If no axes are given it reduces over all of them, returning a scalar.
func ReduceSum(x *tensors.Tensor, reduceAxes ...int) *tensors.Tensor {
	return reduceOp(opReduceSum, x, reduceAxes)
}

// ReduceMean returns the mean of x over the given axes, which are removed from the shape.
// Negative axes count from the end. If no axes are given it reduces over all of them, returning a
// scalar. Only defined for float dtypes.
func ReduceMean(x *tensors.Tensor, reduceAxes ...int) *tensors.Tensor {
	return reduceOp(opReduceMean, x, reduceAxes)
}

// ReduceMax returns the largest value of x over the given axes, which are removed from the shape.
// Negative axes count from the end. If no axes are given it reduces over all of them, returning a
// scalar.
func ReduceMax(x *tensors.Tensor, reduceAxes ...int) *tensors.Tensor {
	return reduceOp(opReduceMax, x, reduceAxes)
}

// ArgMax returns the index of the largest value of x along the given axis, as Int32. The axis is
// removed from the shape. Ties resolve to the first occurrence.
func ArgMax(x *tensors.Tensor, axis int) *tensors.Tensor {
	x.AssertValid()
	checkKernelDType(opArgMax, x.DType())
	adjusted := adjustAxis(opArgMax, axis, x.Rank())
	outputDims := slices.Delete(slices.Clone(x.Shape().Dimensions), adjusted, adjusted+1)
	output := tensors.FromShape(shapes.Make(dtypes.Int32, outputDims...))
	execArgMax(x, output, adjusted)
	recordOp(opArgMax, output, x)
	return output
}

func reduceOp(op opType, x *tensors.Tensor, reduceAxes []int) *tensors.Tensor {
	x.AssertValid()
	checkKernelDType(op, x.DType())
	if op == opReduceMean {
		checkFloatDType(op, x.DType())
	}
	rank := x.Rank()
	reduced := make([]bool, rank)
	if len(reduceAxes) == 0 {
		for axis := range reduced {
			reduced[axis] = true
		}
	} else {
		for _, axis := range reduceAxes {
			adjusted := adjustAxis(op, axis, rank)
			if reduced[adjusted] {
				exceptions.Panicf("%s: axis %d given more than once", op, axis)
			}
			reduced[adjusted] = true
		}
	}
	outputDims := make([]int, 0, rank)
	axes := make([]int, 0, rank)
	for axis, dim := range x.Shape().Dimensions {
		if reduced[axis] {
			axes = append(axes, axis)
		} else {
			outputDims = append(outputDims, dim)
		}
	}
	output := tensors.FromShape(shapes.Make(x.DType(), outputDims...))

	// outContrib gives, per input axis, the stride into the output's flat data: 0 for the axes
	// being reduced.
	outputStrides := output.Shape().Strides()
	outContrib := make([]int, rank)
	outAxis := 0
	for axis := range rank {
		if reduced[axis] {
			continue
		}
		outContrib[axis] = outputStrides[outAxis]
		outAxis++
	}
	execReduce(op, x, output, outContrib)
	if op == opReduceMean {
		normalizeMean(output, x.Shape().Size()/output.Shape().Size())
	}
	recordOpParams(op, output, axes, x)
	return output
}

func execReduce(op opType, x, output *tensors.Tensor, outContrib []int) {
	switch x.DType() {
	case dtypes.Float32:
		execReduceGeneric[float32](op, x, output, outContrib)
	case dtypes.Float64:
		execReduceGeneric[float64](op, x, output, outContrib)
	case dtypes.Int8:
		execReduceGeneric[int8](op, x, output, outContrib)
	case dtypes.Int16:
		execReduceGeneric[int16](op, x, output, outContrib)
	case dtypes.Int32:
		execReduceGeneric[int32](op, x, output, outContrib)
	case dtypes.Int64:
		execReduceGeneric[int64](op, x, output, outContrib)
	case dtypes.Uint8:
		execReduceGeneric[uint8](op, x, output, outContrib)
	case dtypes.Uint16:
		execReduceGeneric[uint16](op, x, output, outContrib)
	case dtypes.Uint32:
		execReduceGeneric[uint32](op, x, output, outContrib)
	case dtypes.Uint64:
		execReduceGeneric[uint64](op, x, output, outContrib)
	default:
		exceptions.Panicf("%s: unsupported dtype %s", op, x.DType())
	}
}

func execReduceGeneric[T dtypes.Number](op opType, x, output *tensors.Tensor, outContrib []int) {
	var fn func(a, b T) T
	switch op {
	case opReduceSum, opReduceMean:
		fn = func(a, b T) T { return a + b }
	case opReduceMax:
		fn = func(a, b T) T { return max(a, b) }
	default:
		exceptions.Panicf("%s: no reduce kernel registered", op)
	}
	tensors.ConstFlatData(x, func(xFlat []T) {
		tensors.MutableFlatData(output, func(outputFlat []T) {
			if op == opReduceMax {
				xslices.FillSlice(outputFlat, lowestFor[T]())
			}
			iter := newStridesIterator(x.Shape().Dimensions, outContrib)
			for _, v := range xFlat {
				outputIdx := iter.next()
				outputFlat[outputIdx] = fn(outputFlat[outputIdx], v)
			}
		})
	})
}

func execArgMax(x, output *tensors.Tensor, axis int) {
	switch x.DType() {
	case dtypes.Float32:
		execArgMaxGeneric[float32](x, output, axis)
	case dtypes.Float64:
		execArgMaxGeneric[float64](x, output, axis)
	case dtypes.Int8:
		execArgMaxGeneric[int8](x, output, axis)
	case dtypes.Int16:
		execArgMaxGeneric[int16](x, output, axis)
	case dtypes.Int32:
		execArgMaxGeneric[int32](x, output, axis)
	case dtypes.Int64:
		execArgMaxGeneric[int64](x, output, axis)
	case dtypes.Uint8:
		execArgMaxGeneric[uint8](x, output, axis)
	case dtypes.Uint16:
		execArgMaxGeneric[uint16](x, output, axis)
	case dtypes.Uint32:
		execArgMaxGeneric[uint32](x, output, axis)
	case dtypes.Uint64:
		execArgMaxGeneric[uint64](x, output, axis)
	default:
		exceptions.Panicf("%s: unsupported dtype %s", opArgMax, x.DType())
	}
}

func execArgMaxGeneric[T dtypes.Number](x, output *tensors.Tensor, axis int) {
	dims := x.Shape().Dimensions
	rank := len(dims)
	outputStrides := output.Shape().Strides()
	outContrib := make([]int, rank)
	axisOnly := make([]int, rank)
	axisOnly[axis] = 1
	outAxis := 0
	for a := range rank {
		if a == axis {
			continue
		}
		outContrib[a] = outputStrides[outAxis]
		outAxis++
	}
	tensors.ConstFlatData(x, func(xFlat []T) {
		tensors.MutableFlatData(output, func(outputFlat []int32) {
			best := make([]T, len(outputFlat))
			xslices.FillSlice(best, lowestFor[T]())
			outputIter := newStridesIterator(dims, outContrib)
			axisIter := newStridesIterator(dims, axisOnly)
			for _, v := range xFlat {
				outputIdx := outputIter.next()
				pos := axisIter.next()
				if v > best[outputIdx] {
					best[outputIdx] = v
					outputFlat[outputIdx] = int32(pos)
				}
			}
		})
	})
}

// lowestFor returns the smallest value of the numeric type, the identity for max-reductions.
func lowestFor[T dtypes.Number]() T {
	var zero T
	switch any(zero).(type) {
	case float32, float64:
		return T(math.Inf(-1))
	case int8:
		return any(int8(math.MinInt8)).(T)
	case int16:
		return any(int16(math.MinInt16)).(T)
	case int32:
		return any(int32(math.MinInt32)).(T)
	case int64:
		return any(int64(math.MinInt64)).(T)
	case int:
		return any(int(math.MinInt64)).(T)
	}
	return 0 // Unsigned dtypes.
}

func normalizeMean(output *tensors.Tensor, count int) {
	switch output.DType() {
	case dtypes.Float32:
		tensors.MutableFlatData(output, func(flat []float32) {
			scale := 1 / float32(count)
			for ii := range flat {
				flat[ii] *= scale
			}
		})
	case dtypes.Float64:
		tensors.MutableFlatData(output, func(flat []float64) {
			scale := 1 / float64(count)
			for ii := range flat {
				flat[ii] *= scale
			}
		})
	}
}
