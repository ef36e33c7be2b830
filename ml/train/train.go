// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

// Package train provides the tools to train models: a Trainer that runs one
// gradient-descent step at a time, a Loop that drives it over a Dataset with
// attachable hooks, and an in-memory Dataset implementation.
//
// A model here is anything implementing nn.Layer -- including models whose
// layers create their weights lazily on the first call: the Trainer collects
// the trainable variables after each forward pass, so weights that only come
// into existence in the first step are picked up and optimized like any other.
//
// Typical usage:
//
//	model := ...                        // Anything implementing nn.Layer.
//	trainer := train.NewTrainer(model, losses.MeanSquaredError,
//		optimizers.Adam().Done())
//	loop := train.NewLoop(trainer)
//	commandline.AttachProgressBar(loop)
//	loss, err := loop.RunSteps(dataset, 1000)
package train

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/sprout-ml/sprout/ml/nn"
	"github.com/sprout-ml/sprout/ml/train/losses"
	"github.com/sprout-ml/sprout/ml/train/optimizers"
	"github.com/sprout-ml/sprout/ops"
	"github.com/sprout-ml/sprout/types/dtypes"
	"github.com/sprout-ml/sprout/types/tensors"
)

// Trainer runs the training steps of a model: forward pass, loss, gradients
// with an ops tape, and the optimizer update.
//
// The public attributes are meant for reading only.
type Trainer struct {
	// Model being trained.
	Model nn.Layer

	// Loss used to compare the model predictions with the dataset labels.
	Loss losses.Loss

	// Optimizer applied to the trainable variables at every step.
	Optimizer optimizers.Interface

	// GlobalStep counts the training steps executed so far.
	GlobalStep int
}

// NewTrainer constructs a Trainer for the given model, loss, and optimizer.
func NewTrainer(model nn.Layer, loss losses.Loss, optimizer optimizers.Interface) *Trainer {
	if model == nil || loss == nil || optimizer == nil {
		exceptions.Panicf("train.NewTrainer: model, loss and optimizer must all be set")
	}
	return &Trainer{
		Model:     model,
		Loss:      loss,
		Optimizer: optimizer,
	}
}

// TrainStep runs one training step on a batch: it computes the model
// predictions for the inputs, the loss against the labels, the gradients of
// every trainable variable, and lets the optimizer update them.
//
// It returns the scalar loss of the batch. Shape errors and other panics from
// the ops and nn layers are caught and returned as errors.
func (t *Trainer) TrainStep(inputs, labels *tensors.Tensor) (loss *tensors.Tensor, err error) {
	err = exceptions.TryCatch[error](func() {
		loss = t.trainStep(inputs, labels)
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "Trainer.TrainStep (GlobalStep=%d)", t.GlobalStep)
	}
	t.GlobalStep++
	return loss, nil
}

func (t *Trainer) trainStep(inputs, labels *tensors.Tensor) *tensors.Tensor {
	tape := ops.Record()
	defer tape.Stop()
	predictions := t.Model.Call(inputs)
	loss := t.Loss(labels, predictions)

	// Collect the trainable variables only after the forward pass: a lazy layer
	// may have just created its weights.
	trainableVars := nn.TrainableVariables(t.Model)
	if len(trainableVars) == 0 {
		exceptions.Panicf("model %T has no trainable variables to optimize", t.Model)
	}
	values := make([]*tensors.Tensor, len(trainableVars))
	for ii, v := range trainableVars {
		values[ii] = v.Value()
	}
	grads := tape.Gradient(loss, values...)
	gradsPerVariable := make(map[*nn.Variable]*tensors.Tensor, len(trainableVars))
	for ii, v := range trainableVars {
		gradsPerVariable[v] = grads[ii]
	}
	t.Optimizer.Step(gradsPerVariable)
	return loss
}

// EvalStep computes the loss of the model on a batch, without recording
// gradients and without updating any variable.
func (t *Trainer) EvalStep(inputs, labels *tensors.Tensor) (loss *tensors.Tensor, err error) {
	err = exceptions.TryCatch[error](func() {
		loss = t.Loss(labels, t.Model.Call(inputs))
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "Trainer.EvalStep")
	}
	return loss, nil
}

// Eval evaluates the mean loss of the model over one pass of the dataset.
// The dataset is reset at the end, so it can be reused.
func (t *Trainer) Eval(ds Dataset) (meanLoss float64, err error) {
	defer ds.Reset()
	var total float64
	var batches int
	for {
		inputs, labels, yieldErr := ds.Yield()
		if yieldErr != nil {
			if isEndOfDataset(yieldErr) {
				break
			}
			return 0, errors.WithMessagef(yieldErr, "Trainer.Eval: failed reading from Dataset %q", ds.Name())
		}
		loss, stepErr := t.EvalStep(inputs, labels)
		if stepErr != nil {
			return 0, stepErr
		}
		total += lossToFloat(loss)
		batches++
	}
	if batches == 0 {
		return 0, errors.Errorf("Trainer.Eval: Dataset %q yielded no batches", ds.Name())
	}
	return total / float64(batches), nil
}

// lossToFloat converts a scalar loss tensor to float64.
func lossToFloat(loss *tensors.Tensor) float64 {
	return tensors.ToScalar[float64](ops.ConvertDType(loss, dtypes.Float64))
}
