// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package ops

// This file implements reverse-mode automatic differentiation over the recorded operations.
//
// Each operation's contribution is a VJP (vector-jacobian-product) function: given the adjoint of
// the operation's output (the gradient of the loss with respect to it), it returns the adjoint
// contribution to each input. Gradient walks the tape records backwards, which is already a
// reverse topological order, accumulating adjoints per tensor. The VJPs themselves are composed
// from the public operations, run after the tape is deactivated so they are not recorded.

import (
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/sprout-ml/sprout/types/dtypes"
	"github.com/sprout-ml/sprout/types/shapes"
	"github.com/sprout-ml/sprout/types/tensors"
)

// opRecord is one recorded operation: the output tensor it produced, its inputs and the
// parameters needed to differentiate it (reduced axes, permutations).
type opRecord struct {
	op     opType
	output *tensors.Tensor
	inputs []*tensors.Tensor
	params any
}

// Tape records the operations executed while it is active, so Gradient can replay them backwards.
// Create one with Record. Only one tape can be recording at a time, and each tape computes
// gradients once: Gradient deactivates the tape and releases its records.
type Tape struct {
	records  []opRecord
	consumed bool
}

var (
	muTape     sync.Mutex
	activeTape *Tape
)

// Record starts recording operations onto a new Tape. It panics if another tape is already
// recording: deactivate it first with Stop or Gradient.
func Record() *Tape {
	muTape.Lock()
	defer muTape.Unlock()
	if activeTape != nil {
		exceptions.Panicf("ops.Record: a tape is already recording, call Stop or Gradient on it first")
	}
	t := &Tape{}
	activeTape = t
	return t
}

// Stop deactivates the tape: operations executed after it are no longer recorded. It is a no-op
// if the tape is not the one recording.
func (t *Tape) Stop() {
	muTape.Lock()
	defer muTape.Unlock()
	if activeTape == t {
		activeTape = nil
	}
}

// NumRecords returns how many operations the tape has recorded so far.
func (t *Tape) NumRecords() int {
	muTape.Lock()
	defer muTape.Unlock()
	return len(t.records)
}

// Gradient returns the gradients of loss with respect to each of the targets, in the same order.
// The loss must be a Float32 or Float64 scalar produced while the tape was recording. Targets not
// connected to the loss get zero-valued gradients of their shape.
//
// Gradient deactivates the tape and releases its records: to compute gradients again, record a
// new tape.
func (t *Tape) Gradient(loss *tensors.Tensor, targets ...*tensors.Tensor) []*tensors.Tensor {
	t.Stop()
	if t.consumed {
		exceptions.Panicf("Tape.Gradient: tape was already used, create a new one with ops.Record")
	}
	t.consumed = true
	loss.AssertValid()
	if !loss.IsScalar() || (loss.DType() != dtypes.Float32 && loss.DType() != dtypes.Float64) {
		exceptions.Panicf("Tape.Gradient: loss must be a Float32 or Float64 scalar, got %s", loss.Shape())
	}
	if len(targets) == 0 {
		exceptions.Panicf("Tape.Gradient: no targets given")
	}

	// adjoints holds, for each tensor on the path, the gradient of the loss with respect to it.
	adjoints := make(map[*tensors.Tensor]*tensors.Tensor)
	adjoints[loss] = OnesLike(loss)
	for ii := len(t.records) - 1; ii >= 0; ii-- {
		rec := &t.records[ii]
		v, onPath := adjoints[rec.output]
		if !onPath {
			continue
		}
		vjp, registered := vjpRegistration[rec.op]
		if !registered {
			exceptions.Panicf("Tape.Gradient: %s has no registered gradient", rec.op)
		}
		for inputIdx, grad := range vjp(rec, v) {
			if grad == nil {
				continue
			}
			input := rec.inputs[inputIdx]
			if prev, accumulated := adjoints[input]; accumulated {
				adjoints[input] = Add(prev, grad)
			} else {
				adjoints[input] = grad
			}
		}
	}
	t.records = nil

	grads := make([]*tensors.Tensor, len(targets))
	for ii, target := range targets {
		target.AssertValid()
		if grad, found := adjoints[target]; found {
			grads[ii] = grad
		} else {
			grads[ii] = ZerosLike(target)
		}
	}
	return grads
}

// StopGradient returns a copy of x that no tape has seen: gradients stop flowing at it.
func StopGradient(x *tensors.Tensor) *tensors.Tensor {
	x.AssertValid()
	return x.Clone()
}

// recordOp appends the operation to the active tape, if any.
func recordOp(op opType, output *tensors.Tensor, inputs ...*tensors.Tensor) {
	recordOpParams(op, output, nil, inputs...)
}

func recordOpParams(op opType, output *tensors.Tensor, params any, inputs ...*tensors.Tensor) {
	muTape.Lock()
	defer muTape.Unlock()
	if activeTape == nil {
		return
	}
	activeTape.records = append(activeTape.records, opRecord{
		op:     op,
		output: output,
		inputs: inputs,
		params: params,
	})
}

// vjpFunc computes the adjoint contribution to each input of a recorded operation, given v, the
// adjoint of its output. A nil entry means no gradient flows to that input.
type vjpFunc func(rec *opRecord, v *tensors.Tensor) []*tensors.Tensor

var vjpRegistration = map[opType]vjpFunc{
	opAdd:          addVJP,
	opSub:          subVJP,
	opMul:          mulVJP,
	opDiv:          divVJP,
	opPow:          powVJP,
	opMax:          minMaxVJP,
	opMin:          minMaxVJP,
	opNeg:          negVJP,
	opAbs:          absVJP,
	opExp:          expVJP,
	opLog:          logVJP,
	opLog1p:        log1pVJP,
	opSqrt:         sqrtVJP,
	opTanh:         tanhVJP,
	opSigmoid:      sigmoidVJP,
	opRelu:         reluVJP,
	opGelu:         geluVJP,
	opMatMul:       matMulVJP,
	opReduceSum:    reduceSumVJP,
	opReduceMean:   reduceMeanVJP,
	opReduceMax:    reduceMaxVJP,
	opReshape:      reshapeVJP,
	opTranspose:    transposeVJP,
	opBroadcastTo:  broadcastToVJP,
	opConvertDType: convertDTypeVJP,
	opSoftmax:      softmaxVJP,
	opLogSoftmax:   logSoftmaxVJP,

	// Integer-valued outputs, gradients stop at them.
	opArgMax: nonDifferentiableVJP,
	opOneHot: nonDifferentiableVJP,
}

func nonDifferentiableVJP(_ *opRecord, _ *tensors.Tensor) []*tensors.Tensor {
	return nil
}

// reduceGradToShape sums grad over the axes that were broadcast so it matches the target operand
// shape. Element-wise operations broadcast their operands to the output shape, their VJPs undo it
// here.
func reduceGradToShape(grad *tensors.Tensor, target shapes.Shape) *tensors.Tensor {
	if grad.Shape().EqualDimensions(target) {
		return grad
	}
	rankDiff := grad.Rank() - target.Rank()
	var axes []int
	for axis := range grad.Rank() {
		if axis < rankDiff {
			axes = append(axes, axis)
			continue
		}
		if target.Dim(axis-rankDiff) == 1 && grad.Shape().Dim(axis) > 1 {
			axes = append(axes, axis)
		}
	}
	if len(axes) > 0 {
		grad = ReduceSum(grad, axes...)
	}
	if !grad.Shape().EqualDimensions(target) {
		grad = Reshape(grad, target.Dimensions...)
	}
	return grad
}

func addVJP(rec *opRecord, v *tensors.Tensor) []*tensors.Tensor {
	a, b := rec.inputs[0], rec.inputs[1]
	return []*tensors.Tensor{
		reduceGradToShape(v, a.Shape()),
		reduceGradToShape(v, b.Shape()),
	}
}

func subVJP(rec *opRecord, v *tensors.Tensor) []*tensors.Tensor {
	a, b := rec.inputs[0], rec.inputs[1]
	return []*tensors.Tensor{
		reduceGradToShape(v, a.Shape()),
		reduceGradToShape(Neg(v), b.Shape()),
	}
}

func mulVJP(rec *opRecord, v *tensors.Tensor) []*tensors.Tensor {
	a, b := rec.inputs[0], rec.inputs[1]
	return []*tensors.Tensor{
		reduceGradToShape(Mul(v, b), a.Shape()),
		reduceGradToShape(Mul(v, a), b.Shape()),
	}
}

func divVJP(rec *opRecord, v *tensors.Tensor) []*tensors.Tensor {
	a, b := rec.inputs[0], rec.inputs[1]
	return []*tensors.Tensor{
		reduceGradToShape(Div(v, b), a.Shape()),
		reduceGradToShape(Neg(Div(Mul(v, a), Mul(b, b))), b.Shape()),
	}
}

func powVJP(rec *opRecord, v *tensors.Tensor) []*tensors.Tensor {
	a, b := rec.inputs[0], rec.inputs[1]
	// d(a^b)/da = b * a^(b-1), d(a^b)/db = a^b * ln(a).
	return []*tensors.Tensor{
		reduceGradToShape(Mul(v, Mul(b, Pow(a, AddScalar(b, -1)))), a.Shape()),
		reduceGradToShape(Mul(v, Mul(rec.output, Log(a))), b.Shape()),
	}
}

func minMaxVJP(rec *opRecord, v *tensors.Tensor) []*tensors.Tensor {
	a, b := rec.inputs[0], rec.inputs[1]
	// The selected side takes the gradient; ties go to the first operand.
	var mask *tensors.Tensor
	if rec.op == opMax {
		mask = geqMask(a, b)
	} else {
		mask = leqMask(a, b)
	}
	return []*tensors.Tensor{
		reduceGradToShape(Mul(v, mask), a.Shape()),
		reduceGradToShape(Mul(v, OneMinus(mask)), b.Shape()),
	}
}

func negVJP(_ *opRecord, v *tensors.Tensor) []*tensors.Tensor {
	return []*tensors.Tensor{Neg(v)}
}

func absVJP(rec *opRecord, v *tensors.Tensor) []*tensors.Tensor {
	return []*tensors.Tensor{Mul(v, signMask(rec.inputs[0]))}
}

func expVJP(rec *opRecord, v *tensors.Tensor) []*tensors.Tensor {
	return []*tensors.Tensor{Mul(v, rec.output)}
}

func logVJP(rec *opRecord, v *tensors.Tensor) []*tensors.Tensor {
	return []*tensors.Tensor{Div(v, rec.inputs[0])}
}

func log1pVJP(rec *opRecord, v *tensors.Tensor) []*tensors.Tensor {
	return []*tensors.Tensor{Div(v, AddScalar(rec.inputs[0], 1))}
}

func sqrtVJP(rec *opRecord, v *tensors.Tensor) []*tensors.Tensor {
	return []*tensors.Tensor{Div(v, MulScalar(rec.output, 2))}
}

func tanhVJP(rec *opRecord, v *tensors.Tensor) []*tensors.Tensor {
	out := rec.output
	return []*tensors.Tensor{Mul(v, OneMinus(Mul(out, out)))}
}

func sigmoidVJP(rec *opRecord, v *tensors.Tensor) []*tensors.Tensor {
	out := rec.output
	return []*tensors.Tensor{Mul(v, Mul(out, OneMinus(out)))}
}

func reluVJP(rec *opRecord, v *tensors.Tensor) []*tensors.Tensor {
	return []*tensors.Tensor{Mul(v, stepMask(rec.inputs[0]))}
}

func geluVJP(rec *opRecord, v *tensors.Tensor) []*tensors.Tensor {
	return []*tensors.Tensor{Mul(v, geluGrad(rec.inputs[0]))}
}

func matMulVJP(rec *opRecord, v *tensors.Tensor) []*tensors.Tensor {
	a, b := rec.inputs[0], rec.inputs[1]
	// a is [..., k], b is [k, n] and v is [..., n].
	contractDim := a.Shape().Dim(-1)
	rows := a.Shape().Size() / contractDim
	cols := b.Shape().Dim(1)
	aMat := Reshape(a, rows, contractDim)
	vMat := Reshape(v, rows, cols)
	return []*tensors.Tensor{
		MatMul(v, Transpose(b)),
		MatMul(Transpose(aMat), vMat),
	}
}

func reduceSumVJP(rec *opRecord, v *tensors.Tensor) []*tensors.Tensor {
	x := rec.inputs[0]
	axes := rec.params.([]int)
	return []*tensors.Tensor{BroadcastTo(ExpandAxes(v, axes...), x.Shape().Dimensions...)}
}

func reduceMeanVJP(rec *opRecord, v *tensors.Tensor) []*tensors.Tensor {
	x := rec.inputs[0]
	axes := rec.params.([]int)
	count := x.Shape().Size() / rec.output.Shape().Size()
	grad := BroadcastTo(ExpandAxes(v, axes...), x.Shape().Dimensions...)
	return []*tensors.Tensor{DivScalar(grad, float64(count))}
}

func reduceMaxVJP(rec *opRecord, v *tensors.Tensor) []*tensors.Tensor {
	x := rec.inputs[0]
	axes := rec.params.([]int)
	// Positions holding the maximum take the gradient; ties each take a full copy.
	expandedOut := BroadcastTo(ExpandAxes(rec.output, axes...), x.Shape().Dimensions...)
	expandedV := BroadcastTo(ExpandAxes(v, axes...), x.Shape().Dimensions...)
	return []*tensors.Tensor{Mul(expandedV, eqMask(x, expandedOut))}
}

func reshapeVJP(rec *opRecord, v *tensors.Tensor) []*tensors.Tensor {
	x := rec.inputs[0]
	return []*tensors.Tensor{Reshape(v, x.Shape().Dimensions...)}
}

func transposeVJP(rec *opRecord, v *tensors.Tensor) []*tensors.Tensor {
	perm := rec.params.([]int)
	inverse := make([]int, len(perm))
	for outAxis, inAxis := range perm {
		inverse[inAxis] = outAxis
	}
	return []*tensors.Tensor{Transpose(v, inverse...)}
}

func broadcastToVJP(rec *opRecord, v *tensors.Tensor) []*tensors.Tensor {
	return []*tensors.Tensor{reduceGradToShape(v, rec.inputs[0].Shape())}
}

func convertDTypeVJP(rec *opRecord, v *tensors.Tensor) []*tensors.Tensor {
	return []*tensors.Tensor{ConvertDType(v, rec.inputs[0].DType())}
}

func softmaxVJP(rec *opRecord, v *tensors.Tensor) []*tensors.Tensor {
	s := rec.output
	dot := ReduceSum(Mul(v, s), -1)
	return []*tensors.Tensor{Mul(s, Sub(v, ExpandAxes(dot, -1)))}
}

func logSoftmaxVJP(rec *opRecord, v *tensors.Tensor) []*tensors.Tensor {
	sum := ReduceSum(v, -1)
	return []*tensors.Tensor{Sub(v, Mul(Exp(rec.output), ExpandAxes(sum, -1)))}
}

// Gradient mask kernels. Gradients only flow through float tensors, so these only dispatch on the
// float dtypes.

func geqMask(lhs, rhs *tensors.Tensor) *tensors.Tensor {
	return floatMask(lhs, rhs, geqKernel[float32], geqKernel[float64])
}

func leqMask(lhs, rhs *tensors.Tensor) *tensors.Tensor {
	return floatMask(lhs, rhs, leqKernel[float32], leqKernel[float64])
}

func eqMask(lhs, rhs *tensors.Tensor) *tensors.Tensor {
	return floatMask(lhs, rhs, eqKernel[float32], eqKernel[float64])
}

func geqKernel[T dtypes.GoFloat](a, b T) T {
	if a >= b {
		return 1
	}
	return 0
}

func leqKernel[T dtypes.GoFloat](a, b T) T {
	if a <= b {
		return 1
	}
	return 0
}

func eqKernel[T dtypes.GoFloat](a, b T) T {
	if a == b {
		return 1
	}
	return 0
}

func floatMask(lhs, rhs *tensors.Tensor, f32 func(a, b float32) float32, f64 func(a, b float64) float64) *tensors.Tensor {
	output := tensors.FromShape(broadcastShapes(opMul, lhs.Shape(), rhs.Shape()))
	switch lhs.DType() {
	case dtypes.Float32:
		execBinaryKernel(f32, lhs, rhs, output)
	case dtypes.Float64:
		execBinaryKernel(f64, lhs, rhs, output)
	default:
		exceptions.Panicf("gradient only defined for float dtypes, got %s", lhs.DType())
	}
	return output
}

func stepMask(x *tensors.Tensor) *tensors.Tensor {
	return floatUnaryMask(x,
		func(v float32) float32 {
			if v > 0 {
				return 1
			}
			return 0
		},
		func(v float64) float64 {
			if v > 0 {
				return 1
			}
			return 0
		})
}

func signMask(x *tensors.Tensor) *tensors.Tensor {
	return floatUnaryMask(x,
		func(v float32) float32 {
			if v > 0 {
				return 1
			} else if v < 0 {
				return -1
			}
			return 0
		},
		func(v float64) float64 {
			if v > 0 {
				return 1
			} else if v < 0 {
				return -1
			}
			return 0
		})
}

func floatUnaryMask(x *tensors.Tensor, f32 func(float32) float32, f64 func(float64) float64) *tensors.Tensor {
	output := tensors.FromShape(x.Shape())
	switch x.DType() {
	case dtypes.Float32:
		execUnaryKernel(f32, x, output)
	case dtypes.Float64:
		execUnaryKernel(f64, x, output)
	default:
		exceptions.Panicf("gradient only defined for float dtypes, got %s", x.DType())
	}
	return output
}
