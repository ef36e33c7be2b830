// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package ops

// This file implements softmax and one-hot encoding.

import (
	"math"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/sprout-ml/sprout/types/dtypes"
	"github.com/sprout-ml/sprout/types/shapes"
	"github.com/sprout-ml/sprout/types/tensors"
)

// Softmax returns the softmax of x over its last axis: exp(x) normalized to sum to 1. It is
// computed with the usual max-subtraction for numerical stability. Only defined for float dtypes,
// and x must have rank >= 1.
func Softmax(x *tensors.Tensor) *tensors.Tensor {
	return softmaxOp(opSoftmax, x)
}

// LogSoftmax returns the logarithm of the softmax of x over its last axis. It is numerically
// safer than taking Log(Softmax(x)) for large magnitude logits. Only defined for float dtypes,
// and x must have rank >= 1.
func LogSoftmax(x *tensors.Tensor) *tensors.Tensor {
	return softmaxOp(opLogSoftmax, x)
}

// OneHot returns indices expanded to one-hot vectors: a new last axis of the given depth, set to
// 1 at each index's position and 0 elsewhere. Indices must be of an integer dtype, and
// out-of-range indices yield all-zero rows. The result is of the given dtype.
func OneHot(indices *tensors.Tensor, depth int, dtype dtypes.DType) *tensors.Tensor {
	indices.AssertValid()
	if !indices.DType().IsInt() {
		exceptions.Panicf("OneHot: indices must be of an integer dtype, got %s", indices.DType())
	}
	if depth <= 0 {
		exceptions.Panicf("OneHot: depth must be positive, got %d", depth)
	}
	outputDims := append(slices.Clone(indices.Shape().Dimensions), depth)
	hot := tensors.FromShape(shapes.Make(dtypes.Float32, outputDims...))
	execOneHot(indices, hot, depth)
	output := hot
	if dtype != dtypes.Float32 {
		output = tensors.FromShape(shapes.Make(dtype, outputDims...))
		execConvert(hot, output)
	}
	recordOp(opOneHot, output, indices)
	return output
}

func softmaxOp(op opType, x *tensors.Tensor) *tensors.Tensor {
	x.AssertValid()
	checkFloatDType(op, x.DType())
	if x.Rank() < 1 {
		exceptions.Panicf("%s: x must have rank >= 1, got a scalar", op)
	}
	output := tensors.FromShape(x.Shape())
	switch x.DType() {
	case dtypes.Float32:
		execSoftmaxGeneric[float32](op, x, output)
	case dtypes.Float64:
		execSoftmaxGeneric[float64](op, x, output)
	}
	recordOp(op, output, x)
	return output
}

func execSoftmaxGeneric[T dtypes.GoFloat](op opType, x, output *tensors.Tensor) {
	rowLen := x.Shape().Dim(-1)
	tensors.ConstFlatData(x, func(xFlat []T) {
		tensors.MutableFlatData(output, func(outputFlat []T) {
			for start := 0; start < len(xFlat); start += rowLen {
				row := xFlat[start : start+rowLen]
				outputRow := outputFlat[start : start+rowLen]
				highest := float64(slices.Max(row))
				var sum float64
				for ii, v := range row {
					e := math.Exp(float64(v) - highest)
					outputRow[ii] = T(e)
					sum += e
				}
				if op == opLogSoftmax {
					logSum := math.Log(sum)
					for ii, v := range row {
						outputRow[ii] = T(float64(v) - highest - logSum)
					}
					continue
				}
				scale := T(1 / sum)
				for ii := range outputRow {
					outputRow[ii] *= scale
				}
			}
		})
	})
}

func execOneHot(indices, hot *tensors.Tensor, depth int) {
	switch indices.DType() {
	case dtypes.Int8:
		execOneHotGeneric[int8](indices, hot, depth)
	case dtypes.Int16:
		execOneHotGeneric[int16](indices, hot, depth)
	case dtypes.Int32:
		execOneHotGeneric[int32](indices, hot, depth)
	case dtypes.Int64:
		execOneHotGeneric[int64](indices, hot, depth)
	case dtypes.Uint8:
		execOneHotGeneric[uint8](indices, hot, depth)
	case dtypes.Uint16:
		execOneHotGeneric[uint16](indices, hot, depth)
	case dtypes.Uint32:
		execOneHotGeneric[uint32](indices, hot, depth)
	case dtypes.Uint64:
		execOneHotGeneric[uint64](indices, hot, depth)
	}
}

func execOneHotGeneric[T dtypes.Number](indices, hot *tensors.Tensor, depth int) {
	tensors.ConstFlatData(indices, func(indicesFlat []T) {
		tensors.MutableFlatData(hot, func(hotFlat []float32) {
			for ii, idx := range indicesFlat {
				pos := int64(idx)
				if pos >= 0 && pos < int64(depth) {
					hotFlat[ii*depth+int(pos)] = 1
				}
			}
		})
	})
}
