// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package nn

import (
	"fmt"
	"sync"

	"github.com/gomlx/exceptions"

	"github.com/sprout-ml/sprout/ml/initializers"
	"github.com/sprout-ml/sprout/ops"
	"github.com/sprout-ml/sprout/types/dtypes"
	"github.com/sprout-ml/sprout/types/shapes"
	"github.com/sprout-ml/sprout/types/tensors"
)

// LayerNorm implements layer normalization over the trailing axis: values are
// shifted to zero mean and scaled to unit variance along the last axis, then
// multiplied by a learned gain and shifted by a learned offset, both shaped
// [inputDim].
//
// Like Dense, the layer builds lazily: the gain and offset variables are
// created on the first Call, sized by the input's trailing dimension.
//
// See "Layer Normalization", https://arxiv.org/abs/1607.06450.
type LayerNorm struct {
	// Gain and Offset are created at build time, shaped by the input's
	// trailing dimension, and initialized to ones and zeros respectively.
	Gain, Offset *Variable

	name      string
	epsilon   float64
	buildOnce sync.Once
}

// NewLayerNorm creates a LayerNorm layer normalizing over the trailing axis.
// Its variables are created lazily on the first Call.
func NewLayerNorm() *LayerNorm {
	return &LayerNorm{epsilon: 1e-3}
}

// WithName sets the layer name, used in error messages and as the scope of
// the layer's variables. It returns the layer, so calls can be cascaded.
func (ln *LayerNorm) WithName(name string) *LayerNorm {
	ln.assertNotBuilt("WithName")
	ln.name = name
	return ln
}

// WithEpsilon sets the small constant added to the variance to avoid dividing
// by zero. It defaults to 1e-3. It returns the layer, so calls can be cascaded.
func (ln *LayerNorm) WithEpsilon(epsilon float64) *LayerNorm {
	ln.assertNotBuilt("WithEpsilon")
	ln.epsilon = epsilon
	return ln
}

// String implements fmt.Stringer.
func (ln *LayerNorm) String() string {
	if ln.name == "" {
		return "LayerNorm"
	}
	return fmt.Sprintf("LayerNorm(%q)", ln.name)
}

// Build creates the gain and offset variables for inputs shaped like input --
// only the trailing dimension and the dtype matter. It is called automatically
// on the first Call, and validates compatibility if the layer is already
// built. It implements Builder.
func (ln *LayerNorm) Build(input shapes.Shape) {
	ln.buildOnce.Do(func() { ln.build(input) })
	ln.checkCompatible(input)
}

// Built returns whether the layer variables have been created. It implements Builder.
func (ln *LayerNorm) Built() bool { return ln.Gain != nil }

func (ln *LayerNorm) build(input shapes.Shape) {
	if input.Rank() < 1 {
		exceptions.Panicf("%s cannot normalize a scalar input %s", ln, input)
	}
	if input.DType != dtypes.Float32 && input.DType != dtypes.Float64 {
		exceptions.Panicf("%s requires a Float32 or Float64 input, got %s", ln, input)
	}
	normShape := shapes.Make(input.DType, input.Dim(-1))
	if ln.Gain == nil {
		ln.Gain = VariableWithShape("gain", normShape, initializers.One).SetScope(ln.name)
	}
	if ln.Offset == nil {
		ln.Offset = VariableWithShape("offset", normShape, initializers.Zero).SetScope(ln.name)
	}
}

func (ln *LayerNorm) checkCompatible(input shapes.Shape) {
	gShape := ln.Gain.Shape()
	if input.Rank() < 1 || input.Dim(-1) != gShape.Dim(0) || input.DType != gShape.DType {
		exceptions.Panicf(
			"%s was built for inputs with trailing dimension %d (gain shaped %s), it cannot take input shaped %s",
			ln, gShape.Dim(0), gShape, input)
	}
}

// Call normalizes x over its trailing axis and applies the learned gain and
// offset. The output has the same shape as x. On the first call it builds the
// layer variables. It implements Layer.
func (ln *LayerNorm) Call(x *tensors.Tensor) *tensors.Tensor {
	ln.buildOnce.Do(func() { ln.build(x.Shape()) })
	ln.checkCompatible(x.Shape())
	mean := ops.ExpandAxes(ops.ReduceMean(x, -1), -1)
	centered := ops.Sub(x, mean)
	variance := ops.ExpandAxes(ops.ReduceMean(ops.Mul(centered, centered), -1), -1)
	normalized := ops.Div(centered, ops.Sqrt(ops.AddScalar(variance, ln.epsilon)))
	normalized = ops.Mul(normalized, ln.Gain.Value())
	return ops.Add(normalized, ln.Offset.Value())
}

func (ln *LayerNorm) assertNotBuilt(option string) {
	if ln.Built() {
		exceptions.Panicf("%s is already built, %s can no longer be configured", ln, option)
	}
}
