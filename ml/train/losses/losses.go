// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

// Package losses implements the standard losses used to train models. They all
// implement the Loss type used by train.Trainer, and can also be called
// directly by custom losses.
//
// Losses are compositions of differentiable ops operations, so recording them
// on a tape (ops.Record) makes their gradients available to the optimizers.
package losses

import (
	"github.com/gomlx/exceptions"

	"github.com/sprout-ml/sprout/ops"
	"github.com/sprout-ml/sprout/types/tensors"
)

// Loss is the signature used by train.Trainer to train models.
//
//   - labels comes from the dataset.
//   - predictions comes from the model.
//   - the returned loss must be a scalar, already reduced across the batch, so
//     it can be fed directly to Tape.Gradient.
type Loss = func(labels, predictions *tensors.Tensor) *tensors.Tensor

// MeanSquaredError returns the mean squared error between labels and
// predictions, reduced to a scalar over all elements.
//
// labels and predictions must have the same shape.
func MeanSquaredError(labels, predictions *tensors.Tensor) *tensors.Tensor {
	if !labels.Shape().Equal(predictions.Shape()) {
		exceptions.Panicf("MeanSquaredError: labels (%s) and predictions (%s) must have the same shape",
			labels.Shape(), predictions.Shape())
	}
	loss := ops.Sub(labels, predictions)
	loss = ops.Mul(loss, loss)
	return ops.ReduceMean(loss)
}

// MeanAbsoluteError returns the mean absolute error between labels and
// predictions, reduced to a scalar over all elements.
//
// labels and predictions must have the same shape.
func MeanAbsoluteError(labels, predictions *tensors.Tensor) *tensors.Tensor {
	if !labels.Shape().Equal(predictions.Shape()) {
		exceptions.Panicf("MeanAbsoluteError: labels (%s) and predictions (%s) must have the same shape",
			labels.Shape(), predictions.Shape())
	}
	return ops.ReduceMean(ops.Abs(ops.Sub(labels, predictions)))
}

// SoftmaxCrossEntropyWithLogits returns the cross-entropy between the softmax
// of the predictions (the logits) and the labels, averaged over the batch.
//
// predictions must be shaped [..., numClasses], with a float dtype. labels can
// be given in either form:
//
//   - a one-hot (or a probability distribution) tensor with the same shape and
//     dtype as predictions;
//   - an integer tensor with the shape of predictions minus the trailing axis,
//     holding the true class indices -- converted with ops.OneHot.
//
// Gradients do not flow into the labels.
func SoftmaxCrossEntropyWithLogits(labels, predictions *tensors.Tensor) *tensors.Tensor {
	if predictions.Rank() < 1 {
		exceptions.Panicf("SoftmaxCrossEntropyWithLogits: predictions must be shaped [..., numClasses], got %s",
			predictions.Shape())
	}
	numClasses := predictions.Shape().Dim(-1)
	if labels.DType().IsInt() {
		wantDims := predictions.Shape().Dimensions[:predictions.Rank()-1]
		if err := labels.Shape().CheckDims(wantDims...); err != nil {
			exceptions.Panicf(
				"SoftmaxCrossEntropyWithLogits: integer labels (%s) must be shaped like predictions (%s) minus the class axis",
				labels.Shape(), predictions.Shape())
		}
		labels = ops.OneHot(labels, numClasses, predictions.DType())
	} else if !labels.Shape().Equal(predictions.Shape()) {
		exceptions.Panicf("SoftmaxCrossEntropyWithLogits: labels (%s) and predictions (%s) must have the same shape",
			labels.Shape(), predictions.Shape())
	}
	labels = ops.StopGradient(labels)
	logProbabilities := ops.LogSoftmax(predictions)
	crossEntropy := ops.Neg(ops.ReduceSum(ops.Mul(labels, logProbabilities), -1))
	return ops.ReduceMean(crossEntropy)
}
