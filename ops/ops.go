// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

// Package ops implements eager tensor operations: the numeric vocabulary used to write models.
//
// Every operation takes and returns tensors.Tensor values and executes immediately on the host CPU,
// so results can be inspected (printed, compared, asserted on) right after each call. Operations
// never mutate their inputs, they always allocate the output tensor.
//
// The usual categories are all here:
//
//   - Element-wise binary operations with numpy-style broadcasting: Add, Sub, Mul, Div, Pow, Max,
//     Min, and the scalar conveniences (AddScalar, MulScalar, ...).
//   - Element-wise unary operations: Neg, Abs, Exp, Log, Log1p, Sqrt, Tanh, Sigmoid, Relu, Gelu.
//   - Matrix multiplication: MatMul, parallelized with a workers pool for larger operands.
//   - Reductions: ReduceSum, ReduceMean, ReduceMax, ArgMax.
//   - Shape operations: Reshape, Transpose, ExpandAxes, Squeeze, BroadcastTo, ConvertDType.
//   - Softmax, LogSoftmax and OneHot.
//
// Binary operations require operands of the same DType: there are no implicit dtype conversions,
// use ConvertDType explicitly. Float16 is a storage-only dtype: kernels reject it, convert to
// Float32 to operate on the values.
//
// # Gradients
//
// The package also implements reverse-mode automatic differentiation on top of the eager
// operations, with a tape: create one with Record(), run the forward computation, and then ask the
// tape for the gradients of a scalar loss:
//
//	tape := ops.Record()
//	loss := ops.ReduceSum(ops.Mul(x, x))
//	grads := tape.Gradient(loss, x)
//
// While a tape is recording, every differentiable operation registers itself and its inputs;
// Gradient then walks the records backwards accumulating vector-Jacobian products. See the Tape
// documentation for the details, and StopGradient to cut the gradient flow.
package ops

import (
	"github.com/gomlx/exceptions"
	"github.com/sprout-ml/sprout/internal/workerspool"
	"github.com/sprout-ml/sprout/types/dtypes"
	"github.com/sprout-ml/sprout/types/shapes"
	"github.com/sprout-ml/sprout/types/tensors"
	"github.com/sprout-ml/sprout/types/xslices"
)

//go:generate go tool enumer -type=opType -trimprefix=op -output=gen_optype_enumer.go ops.go

// opType identifies each operation implemented by the package. It keys the VJP registration used
// by the gradient tape.
type opType int

const (
	opInvalid opType = iota
	opAdd
	opSub
	opMul
	opDiv
	opPow
	opMax
	opMin
	opNeg
	opAbs
	opExp
	opLog
	opLog1p
	opSqrt
	opTanh
	opSigmoid
	opRelu
	opGelu
	opMatMul
	opReduceSum
	opReduceMean
	opReduceMax
	opArgMax
	opReshape
	opTranspose
	opBroadcastTo
	opConvertDType
	opSoftmax
	opLogSoftmax
	opOneHot
)

// pool used to parallelize the larger kernels (MatMul in particular).
var pool = workerspool.New()

// SetMaxParallelism limits the number of goroutines used by the parallelized kernels.
// Set to 0 to disable parallelism, -1 for unlimited. Defaults to runtime.NumCPU().
func SetMaxParallelism(maxParallelism int) {
	pool.SetMaxParallelism(maxParallelism)
}

// checkKernelDType panics if the dtype has no kernel support for the given operation: Float16 is
// storage-only and Bool has no arithmetic.
func checkKernelDType(op opType, dtype dtypes.DType) {
	if dtype == dtypes.Float16 {
		exceptions.Panicf("%s: Float16 is a storage-only dtype, ConvertDType to Float32 first", op)
	}
	if dtype == dtypes.Bool {
		exceptions.Panicf("%s: not defined for Bool tensors", op)
	}
	if dtype == dtypes.InvalidDType {
		exceptions.Panicf("%s: invalid dtype", op)
	}
}

// checkFloatDType panics if the dtype is not Float32 or Float64: used by the operations only
// defined on continuous values (Exp, Log, Softmax, ...).
func checkFloatDType(op opType, dtype dtypes.DType) {
	if dtype != dtypes.Float32 && dtype != dtypes.Float64 {
		exceptions.Panicf("%s: only defined for Float32 and Float64, got %s", op, dtype)
	}
}

// checkSameDType panics if the operands of a binary operation have different dtypes.
// There are no implicit conversions, use ConvertDType.
func checkSameDType(op opType, lhs, rhs *tensors.Tensor) {
	if lhs.DType() != rhs.DType() {
		exceptions.Panicf("%s: operands have different dtypes (%s and %s) -- no implicit conversion, use ConvertDType",
			op, lhs.DType(), rhs.DType())
	}
}

// adjustAxis converts negative axes (counting from the end) and panics on out-of-range values.
func adjustAxis(op opType, axis, rank int) int {
	adjusted := axis
	if adjusted < 0 {
		adjusted = rank + adjusted
	}
	if adjusted < 0 || adjusted >= rank {
		exceptions.Panicf("%s: invalid axis %d for rank %d", op, axis, rank)
	}
	return adjusted
}

// broadcastShapes returns the numpy-style broadcast shape of the two operands: the dimensions are
// aligned on the right, and each pair must either match or one of them be 1.
func broadcastShapes(op opType, s0, s1 shapes.Shape) shapes.Shape {
	rank := max(s0.Rank(), s1.Rank())
	dims := make([]int, rank)
	for axis := 1; axis <= rank; axis++ {
		// Walk the axes from the end.
		dim0, dim1 := 1, 1
		if axis <= s0.Rank() {
			dim0 = s0.Dimensions[s0.Rank()-axis]
		}
		if axis <= s1.Rank() {
			dim1 = s1.Dimensions[s1.Rank()-axis]
		}
		if dim0 != dim1 && dim0 != 1 && dim1 != 1 {
			exceptions.Panicf("%s: shapes %s and %s are not broadcast-compatible", op, s0, s1)
		}
		dims[rank-axis] = max(dim0, dim1)
	}
	return shapes.Shape{DType: s0.DType, Dimensions: dims}
}

// broadcastStrides returns, for an operand of shape s, the strides to walk its flat data along
// each axis of the broadcast output shape: 0 for the axes being broadcast.
func broadcastStrides(s, output shapes.Shape) []int {
	strides := make([]int, output.Rank())
	operandStrides := s.Strides()
	rankDiff := output.Rank() - s.Rank()
	for axis := range output.Rank() {
		if axis < rankDiff {
			continue // Axis doesn't exist in the operand.
		}
		if s.Dimensions[axis-rankDiff] == 1 && output.Dimensions[axis] > 1 {
			continue // Axis is being broadcast.
		}
		strides[axis] = operandStrides[axis-rankDiff]
	}
	return strides
}

// stridesIterator walks a tensor of the given dimensions in row-major order, returning at each
// step the flat index induced by the given per-axis strides. With a tensor's natural strides it
// counts 0, 1, 2, ...; with zeroed entries it projects axes out, which is how the reduction
// kernels map positions between shapes -- they advance two of these in lockstep, which rules out
// a push-style shapes.Iter there.
type stridesIterator struct {
	dims     []int
	counters []int
	strides  []int
	idx      int
}

func newStridesIterator(dims, strides []int) *stridesIterator {
	return &stridesIterator{
		dims:     dims,
		counters: make([]int, len(dims)),
		strides:  strides,
	}
}

// next returns the flat index for the current position and moves to the next one.
func (it *stridesIterator) next() int {
	idx := it.idx
	for axis := len(it.dims) - 1; axis >= 0; axis-- {
		it.counters[axis]++
		it.idx += it.strides[axis]
		if it.counters[axis] < it.dims[axis] {
			break
		}
		// Wrap around this axis and carry to the previous one.
		it.counters[axis] = 0
		it.idx -= it.strides[axis] * it.dims[axis]
	}
	return idx
}

// Scalar returns a scalar tensor of the given dtype with the given value.
func Scalar(dtype dtypes.DType, value float64) *tensors.Tensor {
	t := tensors.FromShape(shapes.Make(dtype))
	t.MutableFlatData(func(flat any) {
		xslices.FillAnySlice(flat, dtypes.CastAsDType(value, dtype))
	})
	return t
}

// ZerosLike returns a zero-filled tensor with the same shape and dtype as x.
func ZerosLike(x *tensors.Tensor) *tensors.Tensor {
	return tensors.FromShape(x.Shape())
}

// OnesLike returns a one-filled tensor with the same shape and dtype as x.
func OnesLike(x *tensors.Tensor) *tensors.Tensor {
	return tensors.Ones(x.Shape())
}
