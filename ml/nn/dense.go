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

// Dense performs a dense (linear) transformation:
//
//	y = x @ weights + bias
//
// weights has shape [inputDim, units] and bias shape [units] -- x's last axis
// contracts with weights' first axis, any leading axes of x are treated as
// batch.
//
// The weights are created lazily: the first Call infers inputDim (and the
// dtype) from the input, so the layer can be declared knowing only the number
// of units it outputs:
//
//	layer := nn.NewDense(4).WithName("hidden")
//	y := layer.Call(x)
//
// Once built, the input dimension is frozen, and calling the layer with a
// different trailing dimension panics. To build eagerly instead, use
// WithInputDim (or Build with the input shape, for dtypes other than Float32).
type Dense struct {
	// Weights and Bias are created at build time. Bias is nil if the layer
	// is configured with WithBias(false).
	Weights *Variable
	Bias    *Variable

	name        string
	units       int
	useBias     bool
	initializer VariableInitializer
	buildOnce   sync.Once
}

// NewDense creates a Dense layer with the given number of output units.
//
// The layer has a bias and initializes its weights with
// initializers.GlorotUniform by default -- see WithBias and WithInitializer.
// Weights are only created when the layer is built, lazily on the first Call
// or eagerly with WithInputDim or Build.
func NewDense(units int) *Dense {
	if units <= 0 {
		exceptions.Panicf("NewDense: units must be > 0, got %d", units)
	}
	return &Dense{
		units:   units,
		useBias: true,
	}
}

// WithName sets the layer name, used in error messages and as the scope of
// the layer's variables. It returns the layer, so calls can be cascaded.
func (d *Dense) WithName(name string) *Dense {
	d.assertNotBuilt("WithName")
	d.name = name
	return d
}

// WithBias configures whether the layer adds a bias term. Default is true.
// It returns the layer, so calls can be cascaded.
func (d *Dense) WithBias(useBias bool) *Dense {
	d.assertNotBuilt("WithBias")
	d.useBias = useBias
	return d
}

// WithInitializer sets the initializer used to create the weights -- see the
// ml/initializers package for the usual choices. The bias, if used, is always
// initialized with zeros. The default is initializers.GlorotUniform.
// It returns the layer, so calls can be cascaded.
func (d *Dense) WithInitializer(initializer VariableInitializer) *Dense {
	d.assertNotBuilt("WithInitializer")
	d.initializer = initializer
	return d
}

// WithInputDim builds the layer immediately for the given input dimension,
// with dtype Float32, instead of waiting for the first Call. Configure any
// other options before it. For other dtypes use Build with a full shape.
// It returns the layer, so calls can be cascaded.
func (d *Dense) WithInputDim(dim int) *Dense {
	d.Build(shapes.Make(dtypes.Float32, dim))
	return d
}

// String implements fmt.Stringer.
func (d *Dense) String() string {
	if d.name == "" {
		return fmt.Sprintf("Dense(%d units)", d.units)
	}
	return fmt.Sprintf("Dense(%q, %d units)", d.name, d.units)
}

// Build creates the layer weights for inputs shaped like input: weights get
// shape [input.Dim(-1), units], with the same dtype as the input. Only the
// trailing dimension and the dtype of input are looked at.
//
// Build is called automatically on the first Call. Building an already built
// layer only validates that input is compatible with the existing weights,
// and panics otherwise. It implements Builder.
func (d *Dense) Build(input shapes.Shape) {
	d.buildOnce.Do(func() { d.build(input) })
	d.checkCompatible(input)
}

// Built returns whether the layer weights have been created. It implements Builder.
func (d *Dense) Built() bool { return d.Weights != nil }

func (d *Dense) build(input shapes.Shape) {
	if input.Rank() < 1 {
		exceptions.Panicf("%s cannot infer its weights shape from a scalar input %s", d, input)
	}
	inputDim := input.Dim(-1)
	if d.Weights == nil {
		initializer := d.initializer
		if initializer == nil {
			initializer = initializers.GlorotUniform(nil)
		}
		d.Weights = VariableWithShape("weights", shapes.Make(input.DType, inputDim, d.units), initializer).
			SetScope(d.name)
	} else if err := shapes.CheckDims(d.Weights, shapes.UncheckedAxis, d.units); err != nil {
		// Weights restored from a checkpoint must agree with the configuration.
		exceptions.Panicf("%s found pre-existing weights shaped %s, wanted [inputDim, %d]: %v",
			d, d.Weights.Shape(), d.units, err)
	}
	if d.useBias && d.Bias == nil {
		d.Bias = VariableWithShape("bias", shapes.Make(input.DType, d.units), initializers.Zero).
			SetScope(d.name)
	}
}

// checkCompatible panics if input doesn't match the dimension and dtype the
// layer was built with.
func (d *Dense) checkCompatible(input shapes.Shape) {
	wShape := d.Weights.Shape()
	if input.Rank() < 1 || input.Dim(-1) != wShape.Dim(0) || input.DType != wShape.DType {
		exceptions.Panicf(
			"%s was built for inputs with trailing dimension %d (weights shaped %s), it cannot take input shaped %s",
			d, wShape.Dim(0), wShape, input)
	}
}

// Call applies the layer to x, shaped [..., inputDim], and returns a tensor
// shaped [..., units]. On the first call it builds the layer weights, using
// x's trailing dimension as inputDim. It implements Layer.
func (d *Dense) Call(x *tensors.Tensor) *tensors.Tensor {
	if x.Rank() < 2 {
		exceptions.Panicf("%s requires an input of rank at least 2, got x.shape=%s", d, x.Shape())
	}
	d.buildOnce.Do(func() { d.build(x.Shape()) })
	d.checkCompatible(x.Shape())
	y := ops.MatMul(x, d.Weights.Value())
	if d.Bias != nil {
		y = ops.Add(y, d.Bias.Value())
	}
	return y
}

func (d *Dense) assertNotBuilt(option string) {
	if d.Built() {
		exceptions.Panicf("%s is already built, %s can no longer be configured", d, option)
	}
}
