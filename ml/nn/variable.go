// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package nn

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/sprout-ml/sprout/types/dtypes"
	"github.com/sprout-ml/sprout/types/shapes"
	"github.com/sprout-ml/sprout/types/tensors"
)

// Variable holds a weight (or any other state) of a model, typically learned
// during training, but it can also be used for large constants.
//
// Variables are created with VariableWithValue or VariableWithShape, or
// indirectly by layers when they build themselves.
//
// Always use it by reference (pointer), never by value: the reflection
// walkers (see NamedVariables) report an error for a Variable held by value,
// since a copy would no longer be updated by the optimizers.
type Variable struct {
	name, scope string

	// trainable indicates whether the variable is trainable.
	// If set to false, it won't be touched by optimizers of a model.
	trainable bool

	shape shapes.Shape
	value *tensors.Tensor
}

// VariableInitializer builds a concrete value to initialize a variable of the
// given shape. The ml/initializers package provides the usual ones.
type VariableInitializer = func(shape shapes.Shape) *tensors.Tensor

// anyValueToTensor converts a value to a tensor, if it's not yet a tensor.
//
// See tensors.FromAnyValue for the conversion rules.
func anyValueToTensor(value any) *tensors.Tensor {
	if tensorValue, ok := value.(*tensors.Tensor); ok {
		return tensorValue
	}
	return tensors.FromAnyValue(value)
}

// VariableWithValue creates a variable initialized with the given value.
//
// The value given must be concrete: either a tensor or a normal Go value that
// can be converted to a tensor. See tensors.FromAnyValue.
//
// By default, variables are marked as trainable.
//
// See also VariableWithShape.
func VariableWithValue(name string, value any) (*Variable, error) {
	var valueT *tensors.Tensor
	err := exceptions.TryCatch[error](func() { valueT = anyValueToTensor(value) })
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to parse value %v for variable %q", value, name)
	}
	return &Variable{
		name:      name,
		shape:     valueT.Shape(),
		value:     valueT,
		trainable: true, // By default variables are trainable.
	}, nil
}

// VariableWithShape creates a variable with the given shape, initialized by
// calling the given initializer -- a nil initializer initializes with zeros.
//
// By default, variables are marked as trainable.
func VariableWithShape(name string, shape shapes.Shape, initializer VariableInitializer) *Variable {
	if !shape.Ok() {
		exceptions.Panicf("VariableWithShape: invalid shape given for variable %q", name)
	}
	var value *tensors.Tensor
	if initializer == nil {
		value = tensors.Zeros(shape)
	} else {
		value = initializer(shape)
	}
	if !value.Shape().Equal(shape) {
		exceptions.Panicf(
			"VariableWithShape: initializer for variable %q returned shape %s, wanted %s",
			name, value.Shape(), shape)
	}
	return &Variable{
		name:      name,
		shape:     shape.Clone(),
		value:     value,
		trainable: true,
	}
}

// Name of the variable within its scope.
func (v *Variable) Name() string {
	if v == nil {
		return "<nil>"
	}
	return v.name
}

// Scope is an optional prefix for the variable name that gives context to
// where it is being used -- layers set it to the layer name when building
// their variables.
//
// Scopes are not obligatory, they are left empty during the variable creation.
func (v *Variable) Scope() string {
	return v.scope
}

// SetScope of a variable. It returns itself, so calls can be cascaded.
func (v *Variable) SetScope(scope string) *Variable {
	v.scope = scope
	return v
}

// String returns the name, and if defined, prefixed with the scope.
func (v *Variable) String() string {
	if v == nil || !v.Shape().Ok() {
		return "INVALID (NIL) VARIABLE"
	}
	if v.scope == "" {
		return v.name
	}
	return fmt.Sprintf("%s/%s", v.scope, v.name)
}

// IsValid returns whether the variable is holding a valid value.
func (v *Variable) IsValid() bool {
	if v == nil {
		return false
	}
	return v.shape.Ok()
}

// AssertValid panics if the variable is in an invalid state: if it's nil, or if its shape is not yet set.
func (v *Variable) AssertValid() {
	if v == nil {
		exceptions.Panicf("nn.Variable is nil")
	}
	if !v.Shape().Ok() {
		exceptions.Panicf("nn.Variable has no shape")
	}
}

// Shape returns the variable shape.
func (v *Variable) Shape() shapes.Shape {
	if v == nil {
		return shapes.Shape{}
	}
	return v.shape
}

// DType returns the variable DType.
func (v *Variable) DType() dtypes.DType {
	if v == nil {
		return dtypes.InvalidDType
	}
	return v.shape.DType
}

// SetTrainable sets the variable trainable status. Returns itself, so calls can be cascaded.
func (v *Variable) SetTrainable(trainable bool) *Variable {
	v.AssertValid()
	v.trainable = trainable
	return v
}

// IsTrainable returns whether the variable should be updated during training.
func (v *Variable) IsTrainable() bool {
	v.AssertValid()
	return v.trainable
}

// Value returns the tensor holding the variable value. Use this to manipulate
// the value in Go.
//
// WARNING: memory management here is tricky: a call to SetValue will
// trigger the current value to be deallocated, and what was returned
// by a previous call to Value to become invalid.
func (v *Variable) Value() *tensors.Tensor {
	v.AssertValid()
	return v.value
}

// SetValue updates the tensor holding the variable value.
//
// This does not allow changes in shape -- you will need to create a new
// variable for that. The shape is part of the identity of a variable, and
// layers rely on it staying stable once built.
//
// NOTE: Because often variables are large, the previous value is immediately
// freed (as opposed to waiting for a garbage collection). If the previous
// value is used somewhere else, use SetValuePreservingPrevious.
func (v *Variable) SetValue(value *tensors.Tensor) {
	if !value.Shape().Equal(v.shape) {
		exceptions.Panicf("variable %q cannot have its value (%s) changed to a new shape (%s)",
			v, v.shape, value.Shape())
	}
	if v.value != nil {
		v.value.FinalizeAll()
	}
	v.SetValuePreservingPrevious(value)
}

// SetValuePreservingPrevious updates the tensor holding the variable's value while not freeing the previous value.
//
// If the previous value is not used, use SetValue instead that will free it immediately.
func (v *Variable) SetValuePreservingPrevious(value *tensors.Tensor) {
	v.value = value
	v.shape = value.Shape()
}

// Finalize the variable immediately freeing the associated value.
//
// The variable is left in an unusable state, only do this if you are sure this variable is no longer in use.
func (v *Variable) Finalize() {
	if v.value != nil {
		v.value.FinalizeAll()
		v.value = nil
	}
	v.shape = shapes.Invalid()
}
