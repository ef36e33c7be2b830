// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package initializers

import (
	"math"
	"math/rand"
	"testing"

	"github.com/sprout-ml/sprout/types/dtypes"
	"github.com/sprout-ml/sprout/types/shapes"
	"github.com/sprout-ml/sprout/types/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func meanAndStddev(t *tensors.Tensor) (mean, stddev float64) {
	flat := tensors.CopyFlatData[float32](t)
	for _, v := range flat {
		mean += float64(v)
	}
	mean /= float64(len(flat))
	for _, v := range flat {
		d := float64(v) - mean
		stddev += d * d
	}
	stddev = math.Sqrt(stddev / float64(len(flat)))
	return
}

func TestZeroAndOne(t *testing.T) {
	shape := shapes.Make(dtypes.Float32, 2, 3)
	require.True(t, tensors.Zeros(shape).Equal(Zero(shape)))
	require.True(t, tensors.Ones(shape).Equal(One(shape)))
}

func TestConstant(t *testing.T) {
	got := Constant(2.5)(shapes.Make(dtypes.Float32, 3))
	require.True(t, tensors.FromValue([]float32{2.5, 2.5, 2.5}).Equal(got))

	// Converted to the variable dtype.
	gotInt := Constant(7)(shapes.Make(dtypes.Int32, 2))
	require.True(t, tensors.FromValue([]int32{7, 7}).Equal(gotInt))
}

func TestDeterminism(t *testing.T) {
	shape := shapes.Make(dtypes.Float32, 4, 5)
	a := RandomNormal(rand.New(rand.NewSource(42)), 1)(shape)
	b := RandomNormal(rand.New(rand.NewSource(42)), 1)(shape)
	require.True(t, a.Equal(b))

	c := RandomNormal(rand.New(rand.NewSource(43)), 1)(shape)
	require.False(t, a.Equal(c))
}

func TestRandomNormalStats(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	values := RandomNormal(rng, 2)(shapes.Make(dtypes.Float32, 100, 100))
	mean, stddev := meanAndStddev(values)
	assert.InDelta(t, 0, mean, 0.1)
	assert.InDelta(t, 2, stddev, 0.1)

	// Non-float variables fall back to zeros.
	zeros := RandomNormal(rng, 2)(shapes.Make(dtypes.Int32, 10))
	require.True(t, tensors.Zeros(shapes.Make(dtypes.Int32, 10)).Equal(zeros))
}

func TestRandomUniformRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	values := RandomUniform(rng, -1, 3)(shapes.Make(dtypes.Float64, 10_000))
	flat := tensors.CopyFlatData[float64](values)
	for _, v := range flat {
		require.GreaterOrEqual(t, v, -1.0)
		require.Less(t, v, 3.0)
	}
	var mean float64
	for _, v := range flat {
		mean += v
	}
	mean /= float64(len(flat))
	assert.InDelta(t, 1, mean, 0.1)
}

func TestGlorotUniform(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	init := GlorotUniform(rng)

	// Biases and non-floats are zero-initialized.
	bias := init(shapes.Make(dtypes.Float32, 8))
	require.True(t, tensors.Zeros(shapes.Make(dtypes.Float32, 8)).Equal(bias))
	ints := init(shapes.Make(dtypes.Int64, 2, 2))
	require.True(t, tensors.Zeros(shapes.Make(dtypes.Int64, 2, 2)).Equal(ints))

	// Weights are bounded by limit = sqrt(3 / ((fanIn+fanOut)/2)).
	weights := init(shapes.Make(dtypes.Float32, 4, 6))
	limit := math.Sqrt(3.0 / 5.0)
	for _, v := range tensors.CopyFlatData[float32](weights) {
		require.LessOrEqual(t, math.Abs(float64(v)), limit)
	}
}

func TestHe(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	weights := He(rng)(shapes.Make(dtypes.Float32, 100, 50))
	_, stddev := meanAndStddev(weights)
	assert.InDelta(t, math.Sqrt(2.0/100.0), stddev, 0.02)
}

func TestBroadcastTensorToShape(t *testing.T) {
	base := tensors.FromValue([]float32{1, 2, 3})
	init := BroadcastTensorToShape(base)
	got := init(shapes.Make(dtypes.Float32, 2, 3))
	require.True(t, tensors.FromValue([][]float32{{1, 2, 3}, {1, 2, 3}}).Equal(got))

	// Scalars act as constant initializers, with dtype conversion.
	gotInt := BroadcastTensorToShape(tensors.FromScalar(float32(4)))(shapes.Make(dtypes.Int32, 2, 2))
	require.True(t, tensors.FromValue([][]int32{{4, 4}, {4, 4}}).Equal(gotInt))

	// Matching shape returns a copy, not the base itself.
	same := init(shapes.Make(dtypes.Float32, 3))
	tensors.MutableFlatData(same, func(flat []float32) { flat[0] = 100 })
	require.True(t, tensors.FromValue([]float32{1, 2, 3}).Equal(base))

	require.Panics(t, func() { init(shapes.Make(dtypes.Float32, 3, 2)) })
}
