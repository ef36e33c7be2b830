// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

// Package initializers builds initial values for model variables.
//
// An Initializer is just a function from a shape to a freshly allocated tensor. The random
// initializers take an explicit *rand.Rand so experiments can be made reproducible; passing nil
// uses a time-seeded generator.
package initializers

import (
	"math"
	"math/rand"
	"slices"
	"time"

	"github.com/gomlx/exceptions"
	"github.com/sprout-ml/sprout/ops"
	"github.com/sprout-ml/sprout/types/dtypes"
	"github.com/sprout-ml/sprout/types/shapes"
	"github.com/sprout-ml/sprout/types/tensors"
	"github.com/sprout-ml/sprout/types/xslices"
)

// Initializer builds the initial value for a variable of the given shape.
type Initializer = func(shape shapes.Shape) *tensors.Tensor

var (
	// Zero initializes variables with zero.
	Zero Initializer = func(shape shapes.Shape) *tensors.Tensor {
		return tensors.Zeros(shape)
	}

	// One initializes variables with one.
	One Initializer = func(shape shapes.Shape) *tensors.Tensor {
		return tensors.Ones(shape)
	}
)

// Constant returns an initializer that fills variables with the given value, converted to the
// variable's dtype.
func Constant(value float64) Initializer {
	return func(shape shapes.Shape) *tensors.Tensor {
		t := tensors.FromShape(shape)
		t.MutableFlatData(func(flat any) {
			xslices.FillAnySlice(flat, dtypes.CastAsDType(value, shape.DType))
		})
		return t
	}
}

// RandomNormal returns an initializer that draws values from a normal distribution with mean 0
// and the given standard deviation.
//
// Non-float variables are initialized with zero instead.
func RandomNormal(rng *rand.Rand, stddev float64) Initializer {
	rng = orTimeSeeded(rng)
	return func(shape shapes.Shape) *tensors.Tensor {
		if !randomizable(shape.DType) {
			return tensors.Zeros(shape)
		}
		return fillRandom(shape, func() float64 { return rng.NormFloat64() * stddev })
	}
}

// RandomUniform returns an initializer that draws values uniformly from [minValue, maxValue).
//
// Non-float variables are initialized with zero instead.
func RandomUniform(rng *rand.Rand, minValue, maxValue float64) Initializer {
	rng = orTimeSeeded(rng)
	return func(shape shapes.Shape) *tensors.Tensor {
		if !randomizable(shape.DType) {
			return tensors.Zeros(shape)
		}
		return fillRandom(shape, func() float64 { return rng.Float64()*(maxValue-minValue) + minValue })
	}
}

// GlorotUniform returns a Glorot uniform initializer, also called Xavier uniform initializer.
//
// It draws samples from a uniform distribution within [-limit, limit), where
// limit = sqrt(3 / ((fan_in + fan_out)/2)): fan_in is the number of input units in the weight
// tensor and fan_out the number of output units. It assumes variables of rank 2 are dense-layer
// weights and higher ranks are convolution kernels; biases (anything with rank <= 1) and
// non-float variables are initialized with zero.
func GlorotUniform(rng *rand.Rand) Initializer {
	rng = orTimeSeeded(rng)
	return func(shape shapes.Shape) *tensors.Tensor {
		if !randomizable(shape.DType) || shape.Rank() <= 1 {
			return tensors.Zeros(shape)
		}
		fanIn, fanOut := computeFanInFanOut(shape)
		scale := max(1.0, float64(fanIn+fanOut)/2.0)
		limit := math.Sqrt(3.0 / scale)
		return fillRandom(shape, func() float64 { return rng.Float64()*2*limit - limit })
	}
}

// XavierNormal returns an initializer that draws values from a normal distribution with mean 0
// and stddev sqrt(2 / (fanIn+fanOut)).
//
// Biases (anything with rank <= 1) and non-float variables are initialized with zero.
func XavierNormal(rng *rand.Rand) Initializer {
	rng = orTimeSeeded(rng)
	return func(shape shapes.Shape) *tensors.Tensor {
		if !randomizable(shape.DType) || shape.Rank() <= 1 {
			return tensors.Zeros(shape)
		}
		fanIn, fanOut := computeFanInFanOut(shape)
		scale := max(1.0, float64(fanIn+fanOut))
		stddev := math.Sqrt(2.0 / scale)
		return fillRandom(shape, func() float64 { return rng.NormFloat64() * stddev })
	}
}

// He returns the initializer that tries to preserve a variance of 1 through layers with Relu
// activations: a normal distribution with stddev sqrt(2 / fanIn).
//
// Biases (anything with rank <= 1) and non-float variables are initialized with zero.
//
// See https://arxiv.org/pdf/1502.01852
func He(rng *rand.Rand) Initializer {
	rng = orTimeSeeded(rng)
	return func(shape shapes.Shape) *tensors.Tensor {
		if !randomizable(shape.DType) || shape.Rank() <= 1 {
			return tensors.Zeros(shape)
		}
		fanIn, _ := computeFanInFanOut(shape)
		scale := max(1.0, float64(fanIn))
		stddev := math.Sqrt(2.0 / scale)
		return fillRandom(shape, func() float64 { return rng.NormFloat64() * stddev })
	}
}

// BroadcastTensorToShape returns an initializer that broadcasts the given base value to the
// requested variable shape, converting it to the variable's dtype if needed. The base value's
// dimensions must be a suffix of the variable's dimensions; a scalar base value works as a
// constant initializer.
func BroadcastTensorToShape(baseValue *tensors.Tensor) Initializer {
	return func(shape shapes.Shape) *tensors.Tensor {
		v := baseValue
		if v.DType() != shape.DType {
			v = ops.ConvertDType(v, shape.DType)
		}
		if v.Shape().Equal(shape) {
			return v.Clone()
		}
		if shape.Rank() < v.Rank() ||
			!slices.Equal(v.Shape().Dimensions, shape.Dimensions[shape.Rank()-v.Rank():]) {
			exceptions.Panicf("invalid BroadcastTensorToShape: variable being initialized has shape %s, "+
				"but base tensor has shape %s, which is not a suffix of it", shape, v.Shape())
		}
		return ops.BroadcastTo(v, shape.Dimensions...)
	}
}

// computeFanInFanOut of a variable expected to be the parameters of either a dense or a
// convolution layer.
func computeFanInFanOut(shape shapes.Shape) (fanIn, fanOut int) {
	rank := shape.Rank()
	switch rank {
	case 0: // Scalar.
		fanIn = 1
		fanOut = fanIn
	case 1: // 1D shape, like a bias term in a dense layer.
		fanIn = 0
		fanOut = fanIn
	case 2: // 2D shape, weights of a dense layer.
		fanIn = shape.Dimensions[0]
		fanOut = shape.Dimensions[1]
	default: // Assuming convolution kernels (2D, 3D, or more):
		receptiveFieldSize := 1
		for _, dim := range shape.Dimensions[:rank-2] {
			receptiveFieldSize *= dim
		}
		fanIn = shape.Dimensions[rank-2] * receptiveFieldSize
		fanOut = shape.Dimensions[rank-1] * receptiveFieldSize
	}
	return
}

// randomizable limits random initialization to the dtypes the kernels operate on; Float16
// variables are storage-only and start at zero.
func randomizable(dtype dtypes.DType) bool {
	return dtype == dtypes.Float32 || dtype == dtypes.Float64
}

func orTimeSeeded(rng *rand.Rand) *rand.Rand {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return rng
}

func fillRandom(shape shapes.Shape, sample func() float64) *tensors.Tensor {
	t := tensors.FromShape(shape)
	switch shape.DType {
	case dtypes.Float32:
		tensors.MutableFlatData(t, func(flat []float32) {
			for ii := range flat {
				flat[ii] = float32(sample())
			}
		})
	case dtypes.Float64:
		tensors.MutableFlatData(t, func(flat []float64) {
			for ii := range flat {
				flat[ii] = sample()
			}
		})
	}
	return t
}
