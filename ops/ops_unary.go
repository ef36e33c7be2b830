// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package ops

// This file implements the element-wise unary operations.

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/sprout-ml/sprout/types/dtypes"
	"github.com/sprout-ml/sprout/types/tensors"
)

// Neg returns the element-wise negation of x.
func Neg(x *tensors.Tensor) *tensors.Tensor {
	return unaryOp(opNeg, x)
}

// Abs returns the element-wise absolute value of x.
func Abs(x *tensors.Tensor) *tensors.Tensor {
	return unaryOp(opAbs, x)
}

// Exp returns the element-wise natural exponentiation of x. Only defined for float dtypes.
func Exp(x *tensors.Tensor) *tensors.Tensor {
	return unaryOp(opExp, x)
}

// Log returns the element-wise natural logarithm of x. Only defined for float dtypes.
func Log(x *tensors.Tensor) *tensors.Tensor {
	return unaryOp(opLog, x)
}

// Log1p returns the element-wise log(1+x), accurate for small x. Only defined for float dtypes.
func Log1p(x *tensors.Tensor) *tensors.Tensor {
	return unaryOp(opLog1p, x)
}

// Sqrt returns the element-wise square root of x. Only defined for float dtypes.
func Sqrt(x *tensors.Tensor) *tensors.Tensor {
	return unaryOp(opSqrt, x)
}

// Tanh returns the element-wise hyperbolic tangent of x. Only defined for float dtypes.
func Tanh(x *tensors.Tensor) *tensors.Tensor {
	return unaryOp(opTanh, x)
}

// Sigmoid returns the element-wise expression 1/(1+exp(-x)). Only defined for float dtypes.
func Sigmoid(x *tensors.Tensor) *tensors.Tensor {
	return unaryOp(opSigmoid, x)
}

// Relu returns the element-wise max(x, 0).
func Relu(x *tensors.Tensor) *tensors.Tensor {
	return unaryOp(opRelu, x)
}

// Gelu returns the element-wise gaussian error linear unit x*Φ(x), where Φ is the standard normal
// cumulative distribution, computed with the exact Erf formulation. Only defined for float dtypes.
func Gelu(x *tensors.Tensor) *tensors.Tensor {
	return unaryOp(opGelu, x)
}

// unaryOp implements the shared plumbing of the element-wise unary operations.
func unaryOp(op opType, x *tensors.Tensor) *tensors.Tensor {
	x.AssertValid()
	checkKernelDType(op, x.DType())
	switch op {
	case opNeg, opAbs, opRelu:
		// Defined on every numeric dtype.
	default:
		checkFloatDType(op, x.DType())
	}
	output := tensors.FromShape(x.Shape())
	execUnary(op, x, output)
	recordOp(op, output, x)
	return output
}

func execUnary(op opType, x, output *tensors.Tensor) {
	switch x.DType() {
	case dtypes.Float32:
		execUnaryKernel(unaryFloatFuncFor[float32](op), x, output)
	case dtypes.Float64:
		execUnaryKernel(unaryFloatFuncFor[float64](op), x, output)
	case dtypes.Int8:
		execUnaryKernel(unaryIntFuncFor[int8](op), x, output)
	case dtypes.Int16:
		execUnaryKernel(unaryIntFuncFor[int16](op), x, output)
	case dtypes.Int32:
		execUnaryKernel(unaryIntFuncFor[int32](op), x, output)
	case dtypes.Int64:
		execUnaryKernel(unaryIntFuncFor[int64](op), x, output)
	case dtypes.Uint8:
		execUnaryKernel(unaryIntFuncFor[uint8](op), x, output)
	case dtypes.Uint16:
		execUnaryKernel(unaryIntFuncFor[uint16](op), x, output)
	case dtypes.Uint32:
		execUnaryKernel(unaryIntFuncFor[uint32](op), x, output)
	case dtypes.Uint64:
		execUnaryKernel(unaryIntFuncFor[uint64](op), x, output)
	default:
		exceptions.Panicf("%s: unsupported dtype %s", op, x.DType())
	}
}

func execUnaryKernel[T dtypes.Number](fn func(T) T, x, output *tensors.Tensor) {
	tensors.ConstFlatData(x, func(xFlat []T) {
		tensors.MutableFlatData(output, func(outputFlat []T) {
			for ii, v := range xFlat {
				outputFlat[ii] = fn(v)
			}
		})
	})
}

func unaryFloatFuncFor[T dtypes.GoFloat](op opType) func(T) T {
	switch op {
	case opNeg:
		return func(x T) T { return -x }
	case opAbs:
		return func(x T) T { return T(math.Abs(float64(x))) }
	case opExp:
		return func(x T) T { return T(math.Exp(float64(x))) }
	case opLog:
		return func(x T) T { return T(math.Log(float64(x))) }
	case opLog1p:
		return func(x T) T { return T(math.Log1p(float64(x))) }
	case opSqrt:
		return func(x T) T { return T(math.Sqrt(float64(x))) }
	case opTanh:
		return func(x T) T { return T(math.Tanh(float64(x))) }
	case opSigmoid:
		return func(x T) T { return T(1 / (1 + math.Exp(-float64(x)))) }
	case opRelu:
		return func(x T) T { return max(x, 0) }
	case opGelu:
		return func(x T) T {
			v := float64(x)
			return T(0.5 * v * (1 + math.Erf(v/math.Sqrt2)))
		}
	}
	exceptions.Panicf("%s: no unary kernel registered", op)
	return nil
}

func unaryIntFuncFor[T dtypes.Number](op opType) func(T) T {
	switch op {
	case opNeg:
		return func(x T) T { return -x }
	case opAbs:
		return func(x T) T {
			if x < 0 {
				return -x
			}
			return x
		}
	case opRelu:
		return func(x T) T { return max(x, 0) }
	}
	exceptions.Panicf("%s: no integer unary kernel registered", op)
	return nil
}

// geluGrad returns the derivative of Gelu evaluated element-wise at x: Φ(x) + x*φ(x), with φ
// the standard normal density. Used by the gradient tape.
func geluGrad(x *tensors.Tensor) *tensors.Tensor {
	output := tensors.FromShape(x.Shape())
	switch x.DType() {
	case dtypes.Float32:
		execUnaryKernel(geluGradFunc[float32](), x, output)
	case dtypes.Float64:
		execUnaryKernel(geluGradFunc[float64](), x, output)
	default:
		exceptions.Panicf("Gelu gradient: unsupported dtype %s", x.DType())
	}
	return output
}

func geluGradFunc[T dtypes.GoFloat]() func(T) T {
	invSqrt2Pi := 1 / math.Sqrt(2*math.Pi)
	return func(x T) T {
		v := float64(x)
		cdf := 0.5 * (1 + math.Erf(v/math.Sqrt2))
		pdf := invSqrt2Pi * math.Exp(-0.5*v*v)
		return T(cdf + v*pdf)
	}
}
