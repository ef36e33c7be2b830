// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package ops

// This file implements the operations that move or reinterpret data without arithmetic: reshapes,
// transpositions, broadcasts and dtype conversions.

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/sprout-ml/sprout/types/dtypes"
	"github.com/sprout-ml/sprout/types/shapes"
	"github.com/sprout-ml/sprout/types/tensors"
	"github.com/x448/float16"
)

// Reshape returns x reinterpreted with the given dimensions, which must hold the same total size.
// The data is copied, operations never alias their inputs.
func Reshape(x *tensors.Tensor, dimensions ...int) *tensors.Tensor {
	x.AssertValid()
	output := tensors.FromShape(shapes.Make(x.DType(), dimensions...))
	if output.Shape().Size() != x.Shape().Size() {
		exceptions.Panicf("Reshape: cannot reshape %s to dimensions %v, total sizes differ",
			x.Shape(), dimensions)
	}
	copyFlatBytes(x, output)
	recordOp(opReshape, output, x)
	return output
}

// ExpandAxes returns x with new axes of dimension 1 inserted at the given positions of the
// resulting shape. Negative positions count from the end of the resulting shape, and each
// position can only be given once.
func ExpandAxes(x *tensors.Tensor, axes ...int) *tensors.Tensor {
	x.AssertValid()
	newRank := x.Rank() + len(axes)
	inserted := make([]bool, newRank)
	for _, axis := range axes {
		adjusted := axis
		if adjusted < 0 {
			adjusted = newRank + adjusted
		}
		if adjusted < 0 || adjusted >= newRank {
			exceptions.Panicf("ExpandAxes: invalid axis %d for resulting rank %d", axis, newRank)
		}
		if inserted[adjusted] {
			exceptions.Panicf("ExpandAxes: axis %d given more than once", axis)
		}
		inserted[adjusted] = true
	}
	dims := make([]int, 0, newRank)
	next := 0
	for axis := range newRank {
		if inserted[axis] {
			dims = append(dims, 1)
		} else {
			dims = append(dims, x.Shape().Dim(next))
			next++
		}
	}
	return Reshape(x, dims...)
}

// Squeeze returns x with the given axes, which must have dimension 1, removed. Negative axes
// count from the end. If no axes are given, every axis of dimension 1 is removed.
func Squeeze(x *tensors.Tensor, axes ...int) *tensors.Tensor {
	x.AssertValid()
	rank := x.Rank()
	remove := make([]bool, rank)
	if len(axes) == 0 {
		for axis, dim := range x.Shape().Dimensions {
			remove[axis] = dim == 1
		}
	} else {
		for _, axis := range axes {
			adjusted := axis
			if adjusted < 0 {
				adjusted = rank + adjusted
			}
			if adjusted < 0 || adjusted >= rank {
				exceptions.Panicf("Squeeze: invalid axis %d for rank %d", axis, rank)
			}
			if x.Shape().Dim(adjusted) != 1 {
				exceptions.Panicf("Squeeze: axis %d of %s has dimension > 1", axis, x.Shape())
			}
			remove[adjusted] = true
		}
	}
	dims := make([]int, 0, rank)
	for axis, dim := range x.Shape().Dimensions {
		if !remove[axis] {
			dims = append(dims, dim)
		}
	}
	return Reshape(x, dims...)
}

// Transpose returns x with its axes permuted: axis ii of the result is axis permutations[ii] of
// x. If no permutation is given the axes are reversed, the usual matrix transpose.
func Transpose(x *tensors.Tensor, permutations ...int) *tensors.Tensor {
	x.AssertValid()
	rank := x.Rank()
	var perm []int
	if len(permutations) == 0 {
		perm = make([]int, rank)
		for axis := range perm {
			perm[axis] = rank - 1 - axis
		}
	} else {
		perm = slices.Clone(permutations)
	}
	if len(perm) != rank {
		exceptions.Panicf("Transpose: %d permutations given for rank %d", len(perm), rank)
	}
	seen := make([]bool, rank)
	dims := make([]int, rank)
	for outAxis, inAxis := range perm {
		adjusted := adjustAxis(opTranspose, inAxis, rank)
		if seen[adjusted] {
			exceptions.Panicf("Transpose: axis %d appears more than once in permutations %v",
				inAxis, permutations)
		}
		seen[adjusted] = true
		perm[outAxis] = adjusted
		dims[outAxis] = x.Shape().Dim(adjusted)
	}
	output := tensors.FromShape(shapes.Make(x.DType(), dims...))
	execGather(x, output, transposeStrides(x.Shape(), perm))
	recordOpParams(opTranspose, output, perm, x)
	return output
}

// BroadcastTo returns x broadcast to the given dimensions, following the standard broadcasting
// rules: dimensions are aligned on the right, and each axis of x must either match the target or
// have dimension 1.
func BroadcastTo(x *tensors.Tensor, dimensions ...int) *tensors.Tensor {
	x.AssertValid()
	output := tensors.FromShape(shapes.Make(x.DType(), dimensions...))
	if x.Rank() > output.Rank() {
		exceptions.Panicf("BroadcastTo: cannot broadcast %s to smaller rank dimensions %v",
			x.Shape(), dimensions)
	}
	rankDiff := output.Rank() - x.Rank()
	for axis, dim := range x.Shape().Dimensions {
		if dim != output.Shape().Dim(axis+rankDiff) && dim != 1 {
			exceptions.Panicf("BroadcastTo: cannot broadcast %s to dimensions %v", x.Shape(), dimensions)
		}
	}
	execGather(x, output, broadcastStrides(x.Shape(), output.Shape()))
	recordOp(opBroadcastTo, output, x)
	return output
}

// ConvertDType returns x converted to the given dtype.
//
// Conversions to Bool yield x != 0; conversions from Bool yield 0 or 1. Float16 is converted
// through Float32. Out-of-range values follow Go conversion semantics.
func ConvertDType(x *tensors.Tensor, dtype dtypes.DType) *tensors.Tensor {
	x.AssertValid()
	if !dtype.IsSupported() {
		exceptions.Panicf("ConvertDType: unsupported target dtype %s", dtype)
	}
	var output *tensors.Tensor
	if dtype == x.DType() {
		output = x.Clone()
	} else {
		output = tensors.FromShape(shapes.Make(dtype, x.Shape().Dimensions...))
		execConvert(x, output)
	}
	recordOp(opConvertDType, output, x)
	return output
}

// copyFlatBytes copies x's flat data into output. Both must have the same dtype and size.
func copyFlatBytes(x, output *tensors.Tensor) {
	x.ConstBytes(func(data []byte) {
		output.MutableBytes(func(outputData []byte) {
			copy(outputData, data)
		})
	})
}

// transposeStrides returns the strides to walk x's flat data in the row-major order of the
// transposed shape.
func transposeStrides(s shapes.Shape, perm []int) []int {
	xStrides := s.Strides()
	strides := make([]int, len(perm))
	for outAxis, inAxis := range perm {
		strides[outAxis] = xStrides[inAxis]
	}
	return strides
}

// execGather fills output walking its positions in row-major order and pulling from x's flat data
// through the given strides. It is dtype-agnostic, it only moves elements around.
func execGather(x, output *tensors.Tensor, strides []int) {
	switch x.DType() {
	case dtypes.Bool:
		execGatherGeneric[bool](x, output, strides)
	case dtypes.Float16:
		execGatherGeneric[float16.Float16](x, output, strides)
	case dtypes.Float32:
		execGatherGeneric[float32](x, output, strides)
	case dtypes.Float64:
		execGatherGeneric[float64](x, output, strides)
	case dtypes.Int8:
		execGatherGeneric[int8](x, output, strides)
	case dtypes.Int16:
		execGatherGeneric[int16](x, output, strides)
	case dtypes.Int32:
		execGatherGeneric[int32](x, output, strides)
	case dtypes.Int64:
		execGatherGeneric[int64](x, output, strides)
	case dtypes.Uint8:
		execGatherGeneric[uint8](x, output, strides)
	case dtypes.Uint16:
		execGatherGeneric[uint16](x, output, strides)
	case dtypes.Uint32:
		execGatherGeneric[uint32](x, output, strides)
	case dtypes.Uint64:
		execGatherGeneric[uint64](x, output, strides)
	default:
		exceptions.Panicf("unsupported dtype %s", x.DType())
	}
}

func execGatherGeneric[T dtypes.Supported](x, output *tensors.Tensor, strides []int) {
	tensors.ConstFlatData(x, func(xFlat []T) {
		tensors.MutableFlatData(output, func(outputFlat []T) {
			ii := 0
			for indices := range output.Shape().Iter() {
				pos := 0
				for axis, idx := range indices {
					pos += idx * strides[axis]
				}
				outputFlat[ii] = xFlat[pos]
				ii++
			}
		})
	})
}

func execConvert(x, output *tensors.Tensor) {
	switch x.DType() {
	case dtypes.Bool:
		execConvertFromBool(x, output)
	case dtypes.Float16:
		execConvertFromFloat16(x, output)
	case dtypes.Float32:
		execConvertFrom[float32](x, output)
	case dtypes.Float64:
		execConvertFrom[float64](x, output)
	case dtypes.Int8:
		execConvertFrom[int8](x, output)
	case dtypes.Int16:
		execConvertFrom[int16](x, output)
	case dtypes.Int32:
		execConvertFrom[int32](x, output)
	case dtypes.Int64:
		execConvertFrom[int64](x, output)
	case dtypes.Uint8:
		execConvertFrom[uint8](x, output)
	case dtypes.Uint16:
		execConvertFrom[uint16](x, output)
	case dtypes.Uint32:
		execConvertFrom[uint32](x, output)
	case dtypes.Uint64:
		execConvertFrom[uint64](x, output)
	default:
		exceptions.Panicf("ConvertDType: unsupported source dtype %s", x.DType())
	}
}

func execConvertFrom[From dtypes.Number](x, output *tensors.Tensor) {
	switch output.DType() {
	case dtypes.Bool:
		execConvertToBool[From](x, output)
	case dtypes.Float16:
		execConvertToFloat16[From](x, output)
	case dtypes.Float32:
		execConvertPair[From, float32](x, output)
	case dtypes.Float64:
		execConvertPair[From, float64](x, output)
	case dtypes.Int8:
		execConvertPair[From, int8](x, output)
	case dtypes.Int16:
		execConvertPair[From, int16](x, output)
	case dtypes.Int32:
		execConvertPair[From, int32](x, output)
	case dtypes.Int64:
		execConvertPair[From, int64](x, output)
	case dtypes.Uint8:
		execConvertPair[From, uint8](x, output)
	case dtypes.Uint16:
		execConvertPair[From, uint16](x, output)
	case dtypes.Uint32:
		execConvertPair[From, uint32](x, output)
	case dtypes.Uint64:
		execConvertPair[From, uint64](x, output)
	default:
		exceptions.Panicf("ConvertDType: unsupported target dtype %s", output.DType())
	}
}

func execConvertPair[From, To dtypes.Number](x, output *tensors.Tensor) {
	tensors.ConstFlatData(x, func(xFlat []From) {
		tensors.MutableFlatData(output, func(outputFlat []To) {
			for ii, v := range xFlat {
				outputFlat[ii] = To(v)
			}
		})
	})
}

func execConvertToBool[From dtypes.Number](x, output *tensors.Tensor) {
	tensors.ConstFlatData(x, func(xFlat []From) {
		tensors.MutableFlatData(output, func(outputFlat []bool) {
			for ii, v := range xFlat {
				outputFlat[ii] = v != 0
			}
		})
	})
}

func execConvertToFloat16[From dtypes.Number](x, output *tensors.Tensor) {
	tensors.ConstFlatData(x, func(xFlat []From) {
		tensors.MutableFlatData(output, func(outputFlat []float16.Float16) {
			for ii, v := range xFlat {
				outputFlat[ii] = float16.Fromfloat32(float32(v))
			}
		})
	})
}

func execConvertFromBool(x, output *tensors.Tensor) {
	// Route through Uint8 0s and 1s, then convert those to the target dtype.
	numeric := tensors.FromShape(shapes.Make(dtypes.Uint8, x.Shape().Dimensions...))
	tensors.ConstFlatData(x, func(xFlat []bool) {
		tensors.MutableFlatData(numeric, func(numericFlat []uint8) {
			for ii, v := range xFlat {
				if v {
					numericFlat[ii] = 1
				}
			}
		})
	})
	execConvertFrom[uint8](numeric, output)
}

func execConvertFromFloat16(x, output *tensors.Tensor) {
	// Widen to Float32 first, then convert to the target dtype.
	widened := tensors.FromShape(shapes.Make(dtypes.Float32, x.Shape().Dimensions...))
	tensors.ConstFlatData(x, func(xFlat []float16.Float16) {
		tensors.MutableFlatData(widened, func(widenedFlat []float32) {
			for ii, v := range xFlat {
				widenedFlat[ii] = v.Float32()
			}
		})
	})
	execConvertFrom[float32](widened, output)
}
