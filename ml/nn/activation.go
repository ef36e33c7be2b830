// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package nn

import (
	"fmt"

	"github.com/gomlx/exceptions"

	"github.com/sprout-ml/sprout/ops"
	"github.com/sprout-ml/sprout/types/tensors"
)

// Type is an enum with the supported activation functions.
//
// It converts to and from strings (e.g.: TypeRelu <-> "Relu"), see FromName.
type Type int

const (
	TypeNone Type = iota
	TypeRelu
	TypeSigmoid
	TypeTanh
	TypeGelu
)

//go:generate go tool enumer -type=Type -trimprefix=Type -output=gen_type_enumer.go activation.go

// Apply the given activation type to x.
// The TypeNone activation is a no-op.
//
// See TypeValues for valid values.
func Apply(activation Type, x *tensors.Tensor) *tensors.Tensor {
	switch activation {
	case TypeNone:
		return x
	case TypeRelu:
		return ops.Relu(x)
	case TypeSigmoid:
		return ops.Sigmoid(x)
	case TypeTanh:
		return ops.Tanh(x)
	case TypeGelu:
		return ops.Gelu(x)
	default:
		exceptions.Panicf("Apply got invalid activation value %d: options are %v", activation, TypeValues())
	}
	return nil
}

// FromName converts the name of an activation to its type.
// It panics with a helpful message if name is invalid.
//
// An empty string is converted to TypeNone. Lookup is case-insensitive, so
// both "relu" and "Relu" work.
func FromName(activationName string) Type {
	if activationName == "" {
		return TypeNone
	}
	activation, err := TypeString(activationName)
	if err != nil {
		exceptions.Panicf("invalid activation name %q: options are %v", activationName, TypeValues())
	}
	return activation
}

// Activation is a stateless layer applying an activation function
// element-wise. It owns no variables, so there is nothing to build.
type Activation struct {
	activation Type
}

// NewActivation creates an Activation layer for the given activation type.
//
//	hidden := nn.NewActivation(nn.TypeRelu)
//
// Use FromName to create one from the activation name.
func NewActivation(activation Type) *Activation {
	if !activation.IsAType() {
		exceptions.Panicf("NewActivation got invalid activation value %d: options are %v",
			activation, TypeValues())
	}
	return &Activation{activation: activation}
}

// String implements fmt.Stringer.
func (a *Activation) String() string {
	return fmt.Sprintf("Activation(%s)", a.activation)
}

// Call applies the activation to x element-wise. It implements Layer.
func (a *Activation) Call(x *tensors.Tensor) *tensors.Tensor {
	return Apply(a.activation, x)
}
