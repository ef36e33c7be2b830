// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package nn

import (
	"fmt"

	"github.com/gomlx/exceptions"

	"github.com/sprout-ml/sprout/types/shapes"
	"github.com/sprout-ml/sprout/types/tensors"
)

// Sequential chains layers, calling them in order, the output of one feeding
// the input of the next:
//
//	model := nn.NewSequential(
//		nn.NewDense(32).WithName("hidden"),
//		nn.NewActivation(nn.TypeRelu),
//		nn.NewDense(1).WithName("output"),
//	)
//	y := model.Call(x)
//
// Lazy layers inside a Sequential build themselves as usual on the first
// Call. Notice only the trailing dimension of the first layer's input needs
// to be known to build the whole chain: each layer's output determines the
// next layer's input shape.
type Sequential struct {
	// Layers are called in order. Exported so the reflection walkers (see
	// NamedVariables) find the variables of the enclosed layers.
	Layers []Layer
}

// NewSequential creates a Sequential with the given layers. More layers can
// be appended with Add.
func NewSequential(layers ...Layer) *Sequential {
	s := &Sequential{}
	return s.Add(layers...)
}

// Add appends layers to the chain. It returns the Sequential, so calls can be
// cascaded.
func (s *Sequential) Add(layers ...Layer) *Sequential {
	for ii, layer := range layers {
		if layer == nil {
			exceptions.Panicf("Sequential.Add: layer #%d is nil", len(s.Layers)+ii)
		}
	}
	s.Layers = append(s.Layers, layers...)
	return s
}

// String implements fmt.Stringer.
func (s *Sequential) String() string {
	return fmt.Sprintf("Sequential(%d layers)", len(s.Layers))
}

// Call applies the layers in order and returns the final output.
// It implements Layer.
func (s *Sequential) Call(x *tensors.Tensor) *tensors.Tensor {
	for _, layer := range s.Layers {
		x = layer.Call(x)
	}
	return x
}

// Build runs a forward pass on a zeros tensor shaped like input, which builds
// every enclosed lazy layer with the input shape it will actually see -- each
// layer's output shape determines the next layer's input shape. It implements
// Builder.
//
// input should include the batch axis; as a convenience a rank-1 shape is
// taken as [features] and gets a size-1 batch axis prepended.
func (s *Sequential) Build(input shapes.Shape) {
	if input.Rank() == 1 {
		input = shapes.Make(input.DType, 1, input.Dim(0))
	}
	s.Call(tensors.Zeros(input))
}

// Built returns whether every enclosed layer implementing Builder has been
// built. It implements Builder.
func (s *Sequential) Built() bool {
	for _, layer := range s.Layers {
		if builder, ok := layer.(Builder); ok && !builder.Built() {
			return false
		}
	}
	return true
}
