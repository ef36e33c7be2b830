// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package optimizers_test

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprout-ml/sprout/ml/nn"
	"github.com/sprout-ml/sprout/ml/train/optimizers"
	"github.com/sprout-ml/sprout/ops"
	"github.com/sprout-ml/sprout/types/tensors"
)

// quadraticLoss returns the loss x^2 summed over all elements of the variable,
// and its gradients, for one step: the minimum is at 0.
func quadraticLoss(v *nn.Variable) (loss float64, grads map[*nn.Variable]*tensors.Tensor) {
	tape := ops.Record()
	x := v.Value()
	lossT := ops.ReduceSum(ops.Mul(x, x))
	grad := tape.Gradient(lossT, x)[0]
	return float64(tensors.ToScalar[float32](lossT)), map[*nn.Variable]*tensors.Tensor{v: grad}
}

func optimize(t *testing.T, optimizer optimizers.Interface, steps int) (first, last float64) {
	t.Helper()
	v := nn.VariableWithShape("x", tensors.FromValue([]float32{1, -2, 3}).Shape(), nil)
	v.SetValue(tensors.FromValue([]float32{1, -2, 3}))
	for step := 0; step < steps; step++ {
		loss, grads := quadraticLoss(v)
		if step == 0 {
			first = loss
		}
		last = loss
		optimizer.Step(grads)
	}
	return
}

func TestSGD(t *testing.T) {
	optimizer := optimizers.StochasticGradientDescent().LearningRate(0.1).Done()
	first, last := optimize(t, optimizer, 50)
	assert.InDelta(t, 14.0, first, 1e-4)
	assert.Less(t, last, 1e-3)
}

func TestSGDWithMomentum(t *testing.T) {
	optimizer := optimizers.StochasticGradientDescent().LearningRate(0.05).Momentum(0.9).Done()
	_, last := optimize(t, optimizer, 100)
	assert.Less(t, last, 1e-2)

	require.Panics(t, func() { optimizers.StochasticGradientDescent().Momentum(1.0) })
}

func TestAdam(t *testing.T) {
	optimizer := optimizers.Adam().LearningRate(0.1).Done()
	first, last := optimize(t, optimizer, 200)
	assert.InDelta(t, 14.0, first, 1e-4)
	assert.Less(t, last, 1e-2)
}

func TestAdamax(t *testing.T) {
	optimizer := optimizers.Adam().LearningRate(0.1).Adamax().Done()
	_, last := optimize(t, optimizer, 200)
	assert.Less(t, last, 1e-2)
}

func TestAdamClear(t *testing.T) {
	optimizer := optimizers.Adam().Done()
	v := nn.VariableWithShape("x", tensors.FromValue([]float32{1}).Shape(), nil)
	_, grads := quadraticLoss(v)
	optimizer.Step(grads)
	optimizer.Clear()
	// After Clear the next step must behave like the first one (no stale moments).
	before := tensors.CopyFlatData[float32](v.Value())
	_, grads = quadraticLoss(v)
	optimizer.Step(grads)
	after := tensors.CopyFlatData[float32](v.Value())
	assert.NotEqual(t, before, after)
}

func TestByName(t *testing.T) {
	for _, name := range []string{"sgd", "adam", "adamw"} {
		assert.NotNil(t, optimizers.ByName(name))
	}
	require.Panics(t, func() { optimizers.ByName("no-such-optimizer") })
}

func TestGradientShapeMismatch(t *testing.T) {
	optimizer := optimizers.StochasticGradientDescent().Done()
	v := nn.VariableWithShape("x", tensors.FromValue([]float32{1, 2}).Shape(), nil)
	badGrad := tensors.FromValue([]float32{1, 2, 3})
	require.Panics(t, func() {
		optimizer.Step(map[*nn.Variable]*tensors.Tensor{v: badGrad})
	})
}

func TestNilGradient(t *testing.T) {
	optimizer := optimizers.StochasticGradientDescent().Done()
	v := nn.VariableWithShape("x", tensors.FromValue([]float32{1, 2}).Shape(), nil)
	err := exceptions.TryCatch[error](func() {
		optimizer.Step(map[*nn.Variable]*tensors.Tensor{v: nil})
	})
	require.ErrorContains(t, err, "nil gradient")
}
