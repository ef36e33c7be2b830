// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package ops

// This file implements the matrix multiplication kernel.

import (
	"runtime"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/sprout-ml/sprout/types/dtypes"
	"github.com/sprout-ml/sprout/types/shapes"
	"github.com/sprout-ml/sprout/types/tensors"
)

// matMulSerialThreshold is the number of multiply-adds under which the kernel runs serially:
// below it the goroutine bookkeeping costs more than it saves.
const matMulSerialThreshold = 16 * 1024

// MatMul multiplies lhs by the matrix rhs, contracting lhs's last axis with rhs's first.
//
// lhs must have rank >= 2 and shape [..., k]; rhs must have rank 2 and shape [k, n]. The result
// has shape [..., n]: the leading axes of lhs are treated as a batch of rows. Both operands must
// have the same dtype.
//
// Larger multiplications are split row-wise over a workers pool, see SetMaxParallelism.
func MatMul(lhs, rhs *tensors.Tensor) *tensors.Tensor {
	lhs.AssertValid()
	rhs.AssertValid()
	checkSameDType(opMatMul, lhs, rhs)
	checkKernelDType(opMatMul, lhs.DType())
	if lhs.Rank() < 2 || rhs.Rank() != 2 {
		exceptions.Panicf("MatMul: lhs must have rank >= 2 and rhs rank 2, got %s and %s",
			lhs.Shape(), rhs.Shape())
	}
	contractDim := lhs.Shape().Dim(-1)
	if rhs.Shape().Dim(0) != contractDim {
		exceptions.Panicf("MatMul: contracting dimensions don't match, lhs is %s and rhs is %s",
			lhs.Shape(), rhs.Shape())
	}
	cols := rhs.Shape().Dim(1)
	outputDims := append(slices.Clone(lhs.Shape().Dimensions[:lhs.Rank()-1]), cols)
	output := tensors.FromShape(shapes.Make(lhs.DType(), outputDims...))
	rows := lhs.Shape().Size() / contractDim
	execMatMul(lhs, rhs, output, rows, contractDim, cols)
	recordOp(opMatMul, output, lhs, rhs)
	return output
}

func execMatMul(lhs, rhs, output *tensors.Tensor, rows, contractDim, cols int) {
	if lhs == rhs {
		// Nested accesses of the same tensor would deadlock on its mutex.
		rhs = rhs.Clone()
	}
	switch lhs.DType() {
	case dtypes.Float32:
		execMatMulGeneric[float32](lhs, rhs, output, rows, contractDim, cols)
	case dtypes.Float64:
		execMatMulGeneric[float64](lhs, rhs, output, rows, contractDim, cols)
	case dtypes.Int8:
		execMatMulGeneric[int8](lhs, rhs, output, rows, contractDim, cols)
	case dtypes.Int16:
		execMatMulGeneric[int16](lhs, rhs, output, rows, contractDim, cols)
	case dtypes.Int32:
		execMatMulGeneric[int32](lhs, rhs, output, rows, contractDim, cols)
	case dtypes.Int64:
		execMatMulGeneric[int64](lhs, rhs, output, rows, contractDim, cols)
	case dtypes.Uint8:
		execMatMulGeneric[uint8](lhs, rhs, output, rows, contractDim, cols)
	case dtypes.Uint16:
		execMatMulGeneric[uint16](lhs, rhs, output, rows, contractDim, cols)
	case dtypes.Uint32:
		execMatMulGeneric[uint32](lhs, rhs, output, rows, contractDim, cols)
	case dtypes.Uint64:
		execMatMulGeneric[uint64](lhs, rhs, output, rows, contractDim, cols)
	default:
		exceptions.Panicf("MatMul: unsupported dtype %s", lhs.DType())
	}
}

func execMatMulGeneric[T dtypes.Number](lhs, rhs, output *tensors.Tensor, rows, contractDim, cols int) {
	tensors.ConstFlatData(lhs, func(lhsFlat []T) {
		tensors.ConstFlatData(rhs, func(rhsFlat []T) {
			tensors.MutableFlatData(output, func(outputFlat []T) {
				if !pool.IsEnabled() || rows*contractDim*cols < matMulSerialThreshold {
					matMulRows(lhsFlat, rhsFlat, outputFlat, 0, rows, contractDim, cols)
					return
				}

				// Split the rows into ranges and let the pool workers drain them.
				parallelism := pool.MaxParallelism()
				if parallelism < 0 {
					parallelism = runtime.NumCPU()
				}
				rowsPerTask := max(1, rows/(2*parallelism))
				work := make(chan [2]int, rows/rowsPerTask+1)
				for start := 0; start < rows; start += rowsPerTask {
					work <- [2]int{start, min(start+rowsPerTask, rows)}
				}
				close(work)
				pool.Saturate(func() {
					for rowRange := range work {
						matMulRows(lhsFlat, rhsFlat, outputFlat, rowRange[0], rowRange[1], contractDim, cols)
					}
				})
			})
		})
	})
}

// matMulRows computes the output rows in [rowStart, rowEnd). The loop is ordered row/contraction/
// column so the inner loop walks both rhs and output contiguously.
func matMulRows[T dtypes.Number](lhsFlat, rhsFlat, outputFlat []T, rowStart, rowEnd, contractDim, cols int) {
	for row := rowStart; row < rowEnd; row++ {
		outputRow := outputFlat[row*cols : (row+1)*cols]
		lhsRow := lhsFlat[row*contractDim : (row+1)*contractDim]
		for k, a := range lhsRow {
			rhsRow := rhsFlat[k*cols : (k+1)*cols]
			for j, b := range rhsRow {
				outputRow[j] += a * b
			}
		}
	}
}
