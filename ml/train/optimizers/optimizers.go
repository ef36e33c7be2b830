// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

// Package optimizers implements gradient-descent optimizers that update model
// variables in place, from the gradients computed by an ops.Tape. They all
// implement optimizers.Interface, and are used by train.Trainer -- or can be
// driven by hand:
//
//	tape := ops.Record()
//	loss := ...forward pass and loss...
//	vars := nn.TrainableVariables(model)
//	grads := tape.Gradient(loss, xslices.Map(vars, (*nn.Variable).Value)...)
//	optimizer.Step(gradsByVar(vars, grads))
package optimizers

import (
	"github.com/gomlx/exceptions"

	"github.com/sprout-ml/sprout/ml/nn"
	"github.com/sprout-ml/sprout/ops"
	"github.com/sprout-ml/sprout/types/tensors"
)

// Interface implemented by the optimizers.
type Interface interface {
	// Step applies one update to the variables, given the gradient of the loss
	// with respect to each of them. Each gradient must have the same shape as
	// its variable's value.
	//
	// Optimizers with internal state (momentum, moments) create it lazily, the
	// first time they see each variable.
	Step(grads map[*nn.Variable]*tensors.Tensor)

	// Clear drops all internal optimizer state, as if the optimizer was newly
	// created. Used to reset training, or to release memory before inference.
	Clear()
}

// KnownOptimizers maps optimizer names to their default constructors. Handy
// for command-line flags; for hyperparameter control use the builders
// (StochasticGradientDescent, Adam) directly.
var KnownOptimizers = map[string]func() Interface{
	"sgd":   func() Interface { return StochasticGradientDescent().Done() },
	"adam":  func() Interface { return Adam().Done() },
	"adamw": func() Interface { return Adam().WeightDecay(0.004).Done() },
}

// ByName returns a default-configured optimizer given its name, or panics if
// one does not exist. See KnownOptimizers.
func ByName(name string) Interface {
	builder, found := KnownOptimizers[name]
	if !found {
		names := make([]string, 0, len(KnownOptimizers))
		for optName := range KnownOptimizers {
			names = append(names, optName)
		}
		exceptions.Panicf("unknown optimizer %q, valid values are %v", name, names)
	}
	return builder()
}

// SGDDefaultLearningRate is used by StochasticGradientDescent if no learning
// rate is configured.
const SGDDefaultLearningRate = 0.01

// StochasticGradientDescent returns the configuration for a plain SGD
// optimizer, optionally with momentum. Set the hyperparameters and then call
// Done to build the optimizers.Interface:
//
//	optimizer := optimizers.StochasticGradientDescent().
//		LearningRate(0.1).Momentum(0.9).Done()
func StochasticGradientDescent() *SGDConfig {
	return &SGDConfig{
		learningRate: SGDDefaultLearningRate,
	}
}

// SGDConfig holds the configuration for an SGD optimizer. Create it with
// StochasticGradientDescent, and once configured call Done.
type SGDConfig struct {
	learningRate float64
	momentum     float64
}

// LearningRate sets the learning rate. Defaults to SGDDefaultLearningRate.
func (c *SGDConfig) LearningRate(value float64) *SGDConfig {
	c.learningRate = value
	return c
}

// Momentum sets the momentum constant: 0 (the default) disables momentum, and
// typical values are in [0.9, 0.99). The velocity of each variable is kept as
// optimizer state.
func (c *SGDConfig) Momentum(value float64) *SGDConfig {
	if value < 0 || value >= 1 {
		exceptions.Panicf("SGD momentum must be in [0, 1), got %g", value)
	}
	c.momentum = value
	return c
}

// Done builds the SGD optimizer with the current configuration.
func (c *SGDConfig) Done() Interface {
	return &sgd{
		config:     c,
		velocities: make(map[*nn.Variable]*tensors.Tensor),
	}
}

// sgd implements SGD (optionally with momentum) as an optimizers.Interface.
type sgd struct {
	config     *SGDConfig
	velocities map[*nn.Variable]*tensors.Tensor
}

// Step implements optimizers.Interface.
func (o *sgd) Step(grads map[*nn.Variable]*tensors.Tensor) {
	for v, grad := range grads {
		checkGradient(v, grad)
		step := grad
		if o.config.momentum > 0 {
			velocity, found := o.velocities[v]
			if !found {
				velocity = ops.ZerosLike(grad)
			}
			velocity = ops.Add(ops.MulScalar(velocity, o.config.momentum), grad)
			o.velocities[v] = velocity
			step = velocity
		}
		v.SetValue(ops.Sub(v.Value(), ops.MulScalar(step, o.config.learningRate)))
	}
}

// Clear implements optimizers.Interface.
func (o *sgd) Clear() {
	o.velocities = make(map[*nn.Variable]*tensors.Tensor)
}

// checkGradient panics if the gradient doesn't match the variable it is meant
// to update.
func checkGradient(v *nn.Variable, grad *tensors.Tensor) {
	v.AssertValid()
	if grad == nil {
		exceptions.Panicf("optimizer got a nil gradient for variable %q shaped %s", v, v.Shape())
	}
	if !grad.Shape().Equal(v.Shape()) {
		exceptions.Panicf("optimizer got gradient shaped %s for variable %q shaped %s",
			grad.Shape(), v, v.Shape())
	}
	if !grad.DType().IsFloat() {
		exceptions.Panicf("optimizer requires float gradients, got %s for variable %q", grad.DType(), v)
	}
}
