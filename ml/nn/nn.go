// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

// Package nn provides neural network layers whose weights are created lazily,
// on the first call, with shapes inferred from the input.
//
// The central type is the Layer interface: anything with a
// `Call(x *tensors.Tensor) *tensors.Tensor` method. Layers that own weights
// hold them as exported *Variable fields, so they are automatically found by
// NamedVariables and friends, and saved/restored by the checkpoints package.
//
// # Lazy building
//
// In most models the only dimension one really cares about is the number of
// outputs of each layer -- the input dimension is whatever the previous layer
// (or the data) happens to produce. Layers in this package therefore defer
// creating their weights until the first Call, when the input's trailing
// dimension (and dtype) is known:
//
//	layer := nn.NewDense(4)              // No weights yet.
//	y := layer.Call(x)                   // x is [batch, 3]: builds weights [3, 4].
//	fmt.Println(layer.Weights.Shape())   // -> (Float32)[3 4]
//
// After the first call the layer is frozen to that input dimension, and calling
// it with a different trailing dimension panics. Layers implementing the
// optional Builder interface can also be built explicitly, either directly with
// Build or for a whole model with BuildLayers -- handy to print a model summary
// before training, or when loading a checkpoint.
//
// # Models are plain Go values
//
// There is no model base class to inherit from: a model is any Go value
// (usually a struct) holding layers and/or *Variable fields. Composition is
// plain Go composition, and the reflection walkers (Variables, NamedVariables,
// TrainableVariables) discover the weights wherever they live, so optimizers
// and checkpointing work on user-defined structs as well as on the layers
// provided here:
//
//	type MLP struct {
//		Hidden, Output *nn.Dense
//		Act            *nn.Activation
//	}
//
//	func (m *MLP) Call(x *tensors.Tensor) *tensors.Tensor {
//		return m.Output.Call(m.Act.Call(m.Hidden.Call(x)))
//	}
//
// See the examples directory for a complete model built this way, trained with
// the ml/train package.
package nn

import (
	"github.com/sprout-ml/sprout/types/shapes"
	"github.com/sprout-ml/sprout/types/tensors"
)

// Layer is the interface implemented by all neural network layers: a forward
// transformation of one tensor into another.
//
// Call never mutates x. Layers with lazy weights create them on the first
// Call -- see the package documentation.
type Layer interface {
	Call(x *tensors.Tensor) *tensors.Tensor
}

// Builder is the optional interface of layers that create their weights
// lazily and support being built explicitly, before the first Call.
//
// Build takes the shape of the inputs the layer will be called with -- only
// the dtype and the trailing dimension matter. Building an already built
// layer only validates that the shape is compatible, it never re-initializes
// the weights.
type Builder interface {
	Build(input shapes.Shape)
	Built() bool
}
