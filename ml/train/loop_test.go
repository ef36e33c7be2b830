// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package train_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprout-ml/sprout/ml/nn"
	"github.com/sprout-ml/sprout/ml/train"
	"github.com/sprout-ml/sprout/ml/train/losses"
	"github.com/sprout-ml/sprout/ml/train/optimizers"
	"github.com/sprout-ml/sprout/types/tensors"
)

// linearProblem builds a synthetic y = x@w + b regression dataset.
func linearProblem(t *testing.T, numExamples int) *train.InMemoryDataset {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	inputs := make([][]float32, numExamples)
	labels := make([][]float32, numExamples)
	for ii := range inputs {
		x0, x1 := rng.Float32(), rng.Float32()
		inputs[ii] = []float32{x0, x1}
		labels[ii] = []float32{2*x0 - 3*x1 + 1}
	}
	ds, err := train.InMemoryFromData("linear", inputs, labels)
	require.NoError(t, err)
	return ds
}

func TestLoopRunStepsTrainsLazyModel(t *testing.T) {
	// The model is created without any input dimension: the weights only come
	// to exist in the first training step.
	model := nn.NewDense(1).WithName("regression")
	trainer := train.NewTrainer(model, losses.MeanSquaredError, optimizers.Adam().LearningRate(0.05).Done())
	loop := train.NewLoop(trainer)

	ds := linearProblem(t, 128)
	ds.BatchSize(16, true).WithRand(rand.New(rand.NewSource(7))).Shuffle().Infinite(true)

	require.False(t, model.Built())
	loss, err := loop.RunSteps(ds, 400)
	require.NoError(t, err)
	require.True(t, model.Built())
	assert.Equal(t, 400, loop.LoopStep)
	assert.Equal(t, 400, trainer.GlobalStep)
	assert.Less(t, float64(tensors.ToScalar[float32](loss)), 0.01)

	// Eval on a fresh finite pass.
	evalDS := linearProblem(t, 64).BatchSize(16, false)
	meanLoss, err := trainer.Eval(evalDS)
	require.NoError(t, err)
	assert.Less(t, meanLoss, 0.01)
}

func TestLoopRunStepsOnFiniteDatasetFails(t *testing.T) {
	model := nn.NewDense(1)
	trainer := train.NewTrainer(model, losses.MeanSquaredError, optimizers.StochasticGradientDescent().Done())
	loop := train.NewLoop(trainer)
	ds := linearProblem(t, 4).BatchSize(2, false) // Finite: ends after 2 steps.
	_, err := loop.RunSteps(ds, 100)
	require.ErrorContains(t, err, "reached Dataset end")
}

func TestLoopRunEpochs(t *testing.T) {
	model := nn.NewDense(1)
	trainer := train.NewTrainer(model, losses.MeanSquaredError, optimizers.Adam().Done())
	loop := train.NewLoop(trainer)
	ds := linearProblem(t, 32).BatchSize(8, false)
	_, err := loop.RunEpochs(ds, 3)
	require.NoError(t, err)
	// 4 batches per epoch, 3 epochs.
	assert.Equal(t, 12, loop.LoopStep)
	assert.Equal(t, 12, loop.EndStep)
	assert.Len(t, loop.TrainStepDurations, 12)
	assert.Greater(t, loop.MedianTrainStepDuration().Nanoseconds(), int64(0))
}

func TestLoopHooksOrder(t *testing.T) {
	model := nn.NewDense(1)
	trainer := train.NewTrainer(model, losses.MeanSquaredError, optimizers.StochasticGradientDescent().Done())
	loop := train.NewLoop(trainer)
	ds := linearProblem(t, 8).BatchSize(4, false).Infinite(true)

	var events []string
	loop.OnStart("second", 1, func(loop *train.Loop, ds train.Dataset) error {
		events = append(events, "start:second")
		return nil
	})
	loop.OnStart("first", -1, func(loop *train.Loop, ds train.Dataset) error {
		events = append(events, "start:first")
		return nil
	})
	loop.OnStep("step", 0, func(loop *train.Loop, loss *tensors.Tensor) error {
		require.True(t, loss.IsScalar())
		events = append(events, "step")
		return nil
	})
	loop.OnEnd("end", 0, func(loop *train.Loop, loss *tensors.Tensor) error {
		events = append(events, "end")
		return nil
	})

	_, err := loop.RunSteps(ds, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"start:first", "start:second", "step", "step", "end"}, events)
}

func TestLoopHookErrorsInterruptTraining(t *testing.T) {
	model := nn.NewDense(1)
	trainer := train.NewTrainer(model, losses.MeanSquaredError, optimizers.StochasticGradientDescent().Done())
	loop := train.NewLoop(trainer)
	ds := linearProblem(t, 8).BatchSize(4, false).Infinite(true)
	loop.OnStep("boom", 0, func(loop *train.Loop, loss *tensors.Tensor) error {
		return assert.AnError
	})
	_, err := loop.RunSteps(ds, 10)
	require.ErrorContains(t, err, `OnStep(hook "boom")`)
}

func TestTrainStepShapeErrorsAreReturned(t *testing.T) {
	model := nn.NewDense(1)
	trainer := train.NewTrainer(model, losses.MeanSquaredError, optimizers.StochasticGradientDescent().Done())
	// Train once with trailing dimension 2, then feed dimension 3: the layer
	// is frozen to the built shape, and the panic becomes an error.
	_, err := trainer.TrainStep(tensors.FromValue([][]float32{{1, 2}}), tensors.FromValue([][]float32{{1}}))
	require.NoError(t, err)
	_, err = trainer.TrainStep(tensors.FromValue([][]float32{{1, 2, 3}}), tensors.FromValue([][]float32{{1}}))
	require.Error(t, err)
}
