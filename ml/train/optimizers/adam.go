// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package optimizers

import (
	"math"

	"github.com/sprout-ml/sprout/ml/nn"
	"github.com/sprout-ml/sprout/ops"
	"github.com/sprout-ml/sprout/types/tensors"
)

// AdamDefaultLearningRate is used by Adam if no learning rate is configured.
const AdamDefaultLearningRate = 0.001

// Adam optimization is a stochastic gradient descent method based on adaptive
// estimation of first-order and second-order moments of the gradients.
// According to [Kingma et al., 2014](http://arxiv.org/abs/1412.6980), the
// method is "computationally efficient, has little memory requirement,
// invariant to diagonal rescaling of gradients, and is well suited for
// problems that are large in terms of data/parameters".
//
// It returns a configuration object used to set the hyperparameters; once
// configured call Done, and it returns an optimizers.Interface.
func Adam() *AdamConfig {
	return &AdamConfig{
		learningRate: AdamDefaultLearningRate,
		beta1:        0.9,
		beta2:        0.999,
		epsilon:      1e-7,
	}
}

// AdamConfig holds the configuration for an Adam optimizer. Create it with
// Adam, and once configured call Done.
type AdamConfig struct {
	learningRate float64
	beta1, beta2 float64
	epsilon      float64
	adamax       bool    // Works as Adamax.
	weightDecay  float64 // Works as AdamW.
}

// LearningRate sets the learning rate. Defaults to AdamDefaultLearningRate.
func (c *AdamConfig) LearningRate(value float64) *AdamConfig {
	c.learningRate = value
	return c
}

// Betas sets the two moving-average constants (exponential decays). They
// default to 0.9 and 0.999.
func (c *AdamConfig) Betas(beta1, beta2 float64) *AdamConfig {
	c.beta1, c.beta2 = beta1, beta2
	return c
}

// Epsilon used on the denominator as a small constant for stability.
func (c *AdamConfig) Epsilon(epsilon float64) *AdamConfig {
	c.epsilon = epsilon
	return c
}

// Adamax configures Adam to use the L-infinity norm (== max, which gives the
// name) for the second moment, instead of L2, as described in the Adam paper.
func (c *AdamConfig) Adamax() *AdamConfig {
	c.adamax = true
	return c
}

// WeightDecay configures the optimizer to work as AdamW, with the given static
// weight decay. This is because L2 regularization doesn't work well with Adam.
func (c *AdamConfig) WeightDecay(weightDecay float64) *AdamConfig {
	c.weightDecay = weightDecay
	return c
}

// Done builds the Adam optimizer with the current configuration.
func (c *AdamConfig) Done() Interface {
	return &adam{
		config:  c,
		moments: make(map[*nn.Variable]*adamMoments),
	}
}

// adamMoments is the per-variable state: moving averages of the gradient and
// of its square (or its max, for Adamax).
type adamMoments struct {
	m1, m2 *tensors.Tensor
}

// adam implements the Adam algorithm as an optimizers.Interface.
type adam struct {
	config  *AdamConfig
	steps   int
	moments map[*nn.Variable]*adamMoments
}

// Step implements optimizers.Interface.
func (o *adam) Step(grads map[*nn.Variable]*tensors.Tensor) {
	o.steps++
	// The moments start zero-initialized, the debias terms correct for the
	// bias towards zero of the first steps.
	debias1 := 1.0 / (1.0 - math.Pow(o.config.beta1, float64(o.steps)))
	debias2 := 1.0 / (1.0 - math.Pow(o.config.beta2, float64(o.steps)))
	for v, grad := range grads {
		checkGradient(v, grad)
		o.applyAdam(v, grad, debias1, debias2)
	}
}

func (o *adam) applyAdam(v *nn.Variable, grad *tensors.Tensor, debias1, debias2 float64) {
	c := o.config
	moments, found := o.moments[v]
	if !found {
		moments = &adamMoments{m1: ops.ZerosLike(grad), m2: ops.ZerosLike(grad)}
		o.moments[v] = moments
	}

	moments.m1 = ops.Add(ops.MulScalar(moments.m1, c.beta1), ops.MulScalar(grad, 1-c.beta1))
	debiasedM1 := ops.MulScalar(moments.m1, debias1)

	var denominator *tensors.Tensor
	if c.adamax {
		// L-infinity norm of the gradients.
		moments.m2 = ops.Max(ops.MulScalar(moments.m2, c.beta2), ops.Abs(grad))
		denominator = ops.AddScalar(moments.m2, c.epsilon)
	} else {
		moments.m2 = ops.Add(ops.MulScalar(moments.m2, c.beta2), ops.MulScalar(ops.Mul(grad, grad), 1-c.beta2))
		denominator = ops.AddScalar(ops.Sqrt(ops.MulScalar(moments.m2, debias2)), c.epsilon)
	}

	stepDirection := ops.Div(debiasedM1, denominator)
	if c.weightDecay > 0 {
		stepDirection = ops.Add(stepDirection, ops.MulScalar(v.Value(), c.weightDecay))
	}
	v.SetValue(ops.Sub(v.Value(), ops.MulScalar(stepDirection, c.learningRate)))
}

// Clear implements optimizers.Interface.
func (o *adam) Clear() {
	o.steps = 0
	o.moments = make(map[*nn.Variable]*adamMoments)
}
