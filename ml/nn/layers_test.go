// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package nn

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprout-ml/sprout/ml/initializers"
	"github.com/sprout-ml/sprout/ops"
	"github.com/sprout-ml/sprout/types/dtypes"
	"github.com/sprout-ml/sprout/types/shapes"
	"github.com/sprout-ml/sprout/types/tensors"
)

func requireSame(t *testing.T, want, got *tensors.Tensor) {
	t.Helper()
	require.Truef(t, want.Equal(got), "wanted %s, got %s", want, got)
}

func requireClose(t *testing.T, want, got *tensors.Tensor) {
	t.Helper()
	require.Truef(t, want.InDelta(got, 1e-4), "wanted %s, got %s", want, got)
}

func TestDenseLazyBuild(t *testing.T) {
	layer := NewDense(4).WithName("hidden").WithInitializer(initializers.One)
	assert.False(t, layer.Built())

	// First call infers the weights shape from the input's trailing dimension.
	x := tensors.FromValue([][]float32{{1, 2, 3}, {4, 5, 6}})
	y := layer.Call(x)
	assert.True(t, layer.Built())
	assert.True(t, layer.Weights.Shape().Equal(shapes.Make(dtypes.Float32, 3, 4)))
	assert.True(t, layer.Bias.Shape().Equal(shapes.Make(dtypes.Float32, 4)))
	assert.Equal(t, "hidden/weights", layer.Weights.String())
	assert.Equal(t, "hidden/bias", layer.Bias.String())
	requireSame(t, tensors.FromValue([][]float32{{6, 6, 6, 6}, {15, 15, 15, 15}}), y)

	// Any batch size works once built, only the trailing dimension is frozen.
	y = layer.Call(tensors.FromScalarAndDimensions(float32(1), 5, 3))
	requireSame(t, tensors.FromScalarAndDimensions(float32(3), 5, 4), y)

	// A different trailing dimension, dtype or rank < 2 panics.
	require.Panics(t, func() { layer.Call(tensors.FromValue([][]float32{{1, 2}})) })
	require.Panics(t, func() { layer.Call(tensors.FromValue([][]float64{{1, 2, 3}})) })
	require.Panics(t, func() { layer.Call(tensors.FromValue([]float32{1, 2, 3})) })
}

func TestDenseNoBias(t *testing.T) {
	layer := NewDense(2).WithBias(false).WithInitializer(initializers.One)
	y := layer.Call(tensors.FromValue([][]float32{{1, 2, 3}}))
	assert.Nil(t, layer.Bias)
	requireSame(t, tensors.FromValue([][]float32{{6, 6}}), y)
}

func TestDenseEagerBuild(t *testing.T) {
	layer := NewDense(4).WithInputDim(3)
	assert.True(t, layer.Built())
	assert.True(t, layer.Weights.Shape().Equal(shapes.Make(dtypes.Float32, 3, 4)))

	// Options cannot be reconfigured once the weights exist.
	require.Panics(t, func() { layer.WithInitializer(initializers.Zero) })
	require.Panics(t, func() { layer.WithBias(false) })
	// Building again only validates: a different input dimension panics.
	require.Panics(t, func() { layer.Build(shapes.Make(dtypes.Float32, 5)) })
	layer.Build(shapes.Make(dtypes.Float32, 7, 3)) // Compatible, no-op.

	require.Panics(t, func() { NewDense(0) })
}

func TestDensePreexistingWeights(t *testing.T) {
	// Weights assigned before the first call (e.g. restored from a checkpoint)
	// are kept by the build, as long as they agree with the configured units.
	layer := NewDense(2).WithName("restored")
	weights, err := VariableWithValue("weights", [][]float32{{1, 0}, {0, 1}, {1, 1}})
	require.NoError(t, err)
	layer.Weights = weights
	y := layer.Call(tensors.FromValue([][]float32{{1, 2, 3}}))
	requireSame(t, tensors.FromValue([][]float32{{4, 5}}), y)

	// Mismatched pre-existing weights are rejected on build.
	wrongUnits := NewDense(4)
	wrongUnits.Weights = VariableWithShape("weights", shapes.Make(dtypes.Float32, 3, 2), initializers.One)
	require.Panics(t, func() { wrongUnits.Call(tensors.FromValue([][]float32{{1, 2, 3}})) })

	wrongRank := NewDense(2)
	wrongRank.Weights = VariableWithShape("weights", shapes.Make(dtypes.Float32, 2), initializers.One)
	require.Panics(t, func() { wrongRank.Call(tensors.FromValue([][]float32{{1, 2}})) })
}

func TestDenseConcurrentBuild(t *testing.T) {
	// Many goroutines racing on the first call must trigger exactly one build,
	// and every caller must see the same weights.
	layer := NewDense(3).WithName("shared").WithInitializer(initializers.One)
	x := tensors.FromValue([][]float32{{1, 2}, {3, 4}})

	const numGoroutines = 16
	outputs := make([]*tensors.Tensor, numGoroutines)
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for ii := range numGoroutines {
		go func() {
			defer wg.Done()
			outputs[ii] = layer.Call(x)
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, NumVariables(layer)) // One weights, one bias.
	assert.True(t, layer.Weights.Shape().Equal(shapes.Make(dtypes.Float32, 2, 3)))
	for _, y := range outputs {
		requireSame(t, outputs[0], y)
	}
}

func TestDenseDTypeFollowsInput(t *testing.T) {
	layer := NewDense(2).WithInitializer(initializers.One)
	y := layer.Call(tensors.FromValue([][]float64{{1, 2, 3}}))
	assert.Equal(t, dtypes.Float64, layer.Weights.DType())
	assert.Equal(t, dtypes.Float64, layer.Bias.DType())
	requireSame(t, tensors.FromValue([][]float64{{6, 6}}), y)
}

func TestDenseGradient(t *testing.T) {
	layer := NewDense(4).WithInitializer(initializers.One)
	x := tensors.FromValue([][]float32{{1, 2, 3}})

	tape := ops.Record()
	loss := ops.ReduceSum(layer.Call(x))
	grads := tape.Gradient(loss, layer.Weights.Value(), layer.Bias.Value())

	assert.Equal(t, float32(24), tensors.ToScalar[float32](loss))
	requireClose(t, tensors.FromValue([][]float32{{1, 1, 1, 1}, {2, 2, 2, 2}, {3, 3, 3, 3}}), grads[0])
	requireClose(t, tensors.FromValue([]float32{1, 1, 1, 1}), grads[1])
}

func TestLayerNorm(t *testing.T) {
	layer := NewLayerNorm().WithName("norm")
	assert.False(t, layer.Built())

	x := tensors.FromValue([][]float32{{1, 2, 3, 4}, {5, 5, 5, 5}})
	y := layer.Call(x)
	assert.True(t, layer.Built())
	assert.True(t, layer.Gain.Shape().Equal(shapes.Make(dtypes.Float32, 4)))
	assert.True(t, layer.Offset.Shape().Equal(shapes.Make(dtypes.Float32, 4)))
	assert.Equal(t, "norm/gain", layer.Gain.String())

	// Row 0 is normalized to zero mean, ~unit variance; the constant row 1
	// has zero variance and maps to the offset (zeros).
	requireClose(t, tensors.FromValue([][]float32{
		{-1.3411045, -0.4470348, 0.4470348, 1.3411045},
		{0, 0, 0, 0},
	}), y)

	// Gain scales and offset shifts the normalized values.
	layer.Gain.SetValue(tensors.FromValue([]float32{2, 2, 2, 2}))
	layer.Offset.SetValue(tensors.FromValue([]float32{0.5, 0.5, 0.5, 0.5}))
	y = layer.Call(tensors.FromValue([][]float32{{1, 2, 3, 4}}))
	requireClose(t, tensors.FromValue([][]float32{
		{2*-1.3411045 + 0.5, 2*-0.4470348 + 0.5, 2*0.4470348 + 0.5, 2*1.3411045 + 0.5},
	}), y)

	// Frozen to the trailing dimension it was built with.
	require.Panics(t, func() { layer.Call(tensors.FromValue([][]float32{{1, 2, 3}})) })
	// Only float dtypes can be normalized.
	require.Panics(t, func() { NewLayerNorm().Call(tensors.FromValue([][]int32{{1, 2}})) })
	// A scalar has no trailing axis.
	require.Panics(t, func() { NewLayerNorm().Build(shapes.Make(dtypes.Float32)) })
}

func TestLayerNormEpsilon(t *testing.T) {
	layer := NewLayerNorm().WithEpsilon(0)
	y := layer.Call(tensors.FromValue([][]float32{{1, 2, 3, 4}}))
	requireClose(t, tensors.FromValue([][]float32{
		{-1.3416408, -0.4472136, 0.4472136, 1.3416408},
	}), y)
	require.Panics(t, func() { layer.WithEpsilon(1e-5) }) // Already built.
}

func TestActivation(t *testing.T) {
	x := tensors.FromValue([][]float32{{-1, 0, 2}})

	relu := NewActivation(TypeRelu)
	requireSame(t, tensors.FromValue([][]float32{{0, 0, 2}}), relu.Call(x))
	assert.Equal(t, "Activation(Relu)", relu.String())

	// TypeNone is a no-op and returns the input unchanged.
	assert.Same(t, x, NewActivation(TypeNone).Call(x))

	requireClose(t, tensors.FromValue([]float32{0.76159415, 0}), Apply(TypeTanh, tensors.FromValue([]float32{1, 0})))
	requireClose(t, tensors.FromValue([]float32{0.5, 0.73105857}), Apply(TypeSigmoid, tensors.FromValue([]float32{0, 1})))

	require.Panics(t, func() { NewActivation(Type(99)) })
}

func TestActivationFromName(t *testing.T) {
	assert.Equal(t, TypeNone, FromName(""))
	assert.Equal(t, TypeRelu, FromName("relu"))
	assert.Equal(t, TypeRelu, FromName("Relu"))
	assert.Equal(t, TypeGelu, FromName("gelu"))
	assert.Equal(t, TypeTanh, FromName("Tanh"))
	require.Panics(t, func() { FromName("bogus") })

	assert.Equal(t, "Relu", TypeRelu.String())
	assert.Equal(t, []string{"None", "Relu", "Sigmoid", "Tanh", "Gelu"}, TypeStrings())
}

func TestSequential(t *testing.T) {
	model := NewSequential(
		NewDense(2).WithName("hidden").WithInitializer(initializers.One),
		NewActivation(TypeRelu),
		NewDense(1).WithName("output").WithInitializer(initializers.One),
	)
	assert.False(t, model.Built())
	assert.Equal(t, "Sequential(3 layers)", model.String())

	// The first layer sees the input's dimension, each following layer the
	// previous layer's output dimension.
	x := tensors.FromValue([][]float32{{1, -2, 3}, {1, -2, -3}})
	y := model.Call(x)
	assert.True(t, model.Built())
	hidden := model.Layers[0].(*Dense)
	output := model.Layers[2].(*Dense)
	assert.True(t, hidden.Weights.Shape().Equal(shapes.Make(dtypes.Float32, 3, 2)))
	assert.True(t, output.Weights.Shape().Equal(shapes.Make(dtypes.Float32, 2, 1)))

	// Row 0: 1-2+3=2 per hidden unit, relu keeps it, 2+2=4 out.
	// Row 1: 1-2-3=-4 per hidden unit, relu zeroes it, 0 out.
	requireSame(t, tensors.FromValue([][]float32{{4}, {0}}), y)

	require.Panics(t, func() { NewSequential(NewDense(2), nil) })
}

func TestSequentialBuild(t *testing.T) {
	model := NewSequential(
		NewDense(2).WithInitializer(initializers.One),
		NewLayerNorm(),
		NewDense(3),
	)
	// Rank-1 shapes are taken as [features], with an implied batch axis.
	model.Build(shapes.Make(dtypes.Float32, 5))
	assert.True(t, model.Built())
	assert.True(t, model.Layers[0].(*Dense).Weights.Shape().Equal(shapes.Make(dtypes.Float32, 5, 2)))
	assert.True(t, model.Layers[1].(*LayerNorm).Gain.Shape().Equal(shapes.Make(dtypes.Float32, 2)))
	assert.True(t, model.Layers[2].(*Dense).Weights.Shape().Equal(shapes.Make(dtypes.Float32, 2, 3)))

	// Building again validates, and panics on an incompatible shape.
	model.Build(shapes.Make(dtypes.Float32, 7, 5))
	require.Panics(t, func() { model.Build(shapes.Make(dtypes.Float32, 4)) })
}
