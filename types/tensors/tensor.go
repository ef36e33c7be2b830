// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implements a `Tensor`, a representation of a multi-dimensional array.
//
// Tensors are multidimensional arrays (from scalar with 0 dimensions, to arbitrarily large dimensions),
// defined by their shape (a data type and its axes' dimensions) and their actual content, stored as a
// flat (1D) slice of the shape's DType on the host CPU.
//
// The main use of tensors is as input and output of the ops package, and as the storage of layer
// variables (see the nn package).
//
// There are various ways to construct a Tensor:
//
//   - FromShape(shape shapes.Shape): creates a tensor with the given shape, and zero values.
//
//   - FromScalarAndDimensions[T dtypes.Supported](value T, dimensions ...int): creates a Tensor with the
//     given dimensions, filled with the scalar value given. `T` must be one of the supported types.
//
//   - FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int): creates a Tensor with
//     the given dimensions, and set the flattened values with the given data. Example:
//
//     t := FromFlatDataAndDimensions([]int8{1, 2, 3, 4}, 2, 2) // Tensor with [[1,2], [3,4]]
//
//   - FromValue[S MultiDimensionSlice](value S): Generic conversion, works with the scalar supported
//     `DType`s as well as with any arbitrary multidimensional slice of them. Slices of rank > 1 must be
//     regular, that is all the sub-slices must have the same shape. Example:
//
//     t := FromValue([][]float32{{1, 2}, {3, 5}, {7, 11}})
//
//   - FromAnyValue(value any): same as FromValue but non-generic, it takes an anonymous type `any`. The
//     exception is if `value` is already a tensor, then it is a no-op and it returns the tensor itself.
//
//   - Zeros(shape) and Ones(shape): conveniences for constant-filled tensors.
//
// Access to the flat data is mediated by accessor methods (ConstFlatData, MutableFlatData and their
// generic counterparts) that hold the Tensor's lock for the duration of the access, so a Tensor can be
// safely shared among goroutines.
package tensors

import (
	"reflect"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"github.com/sprout-ml/sprout/types/dtypes"
	"github.com/sprout-ml/sprout/types/shapes"
	"github.com/sprout-ml/sprout/types/xslices"
)

// Tensor represents a multidimensional array (from scalar with 0 dimensions, to arbitrarily large
// dimensions), defined by its shape -- a data type (dtypes.DType) and its axes' dimensions -- and its
// content, always stored as a flat slice of the shape's DType.
//
// The main use of tensors is as input and output of the ops package, and as the storage of layer
// variables.
//
// More details in the package documentation.
type Tensor struct {
	// shape of the tensor, considered immutable -- it is only changed when the Tensor is finalized.
	shape shapes.Shape

	// mu protects flat, which is accessed through the ConstFlatData/MutableFlatData accessors.
	mu   sync.Mutex
	flat any
}

// newTensor returns a Tensor object initialized only with the shape, but no actual storage yet.
// The returned tensor is invalid until the flat data is associated to it.
func newTensor(shape shapes.Shape) *Tensor {
	return &Tensor{shape: shape}
}

// Shape of the Tensor, includes the DType.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType returns the DType of the tensor's shape.
// It is a shortcut to `Tensor.Shape().DType`.
func (t *Tensor) DType() dtypes.DType {
	return t.shape.DType
}

// Rank returns the rank of the tensor's shape.
// It is a shortcut to `Tensor.Shape().Rank()`.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// IsScalar returns whether the tensor represents a scalar value.
// It is a shortcut to `Tensor.Shape().IsScalar()`.
func (t *Tensor) IsScalar() bool { return t.shape.IsScalar() }

// Size returns the number of elements in the tensor.
// It is a shortcut to `Tensor.Shape().Size()`.
func (t *Tensor) Size() int { return t.shape.Size() }

// Memory returns the number of bytes used to store the tensor. An alias to Tensor.Shape().Memory().
func (t *Tensor) Memory() uintptr { return t.shape.Memory() }

// Ok returns whether the Tensor is in a valid state: it is not nil, its shape is valid and it hasn't
// been finalized.
func (t *Tensor) Ok() bool {
	return t != nil && t.shape.Ok() && t.flat != nil
}

// AssertValid panics if the tensor is nil, if its shape is invalid or if it was already finalized.
func (t *Tensor) AssertValid() {
	if t == nil {
		panic(errors.New("Tensor is nil"))
	}
	if !t.shape.Ok() {
		panic(errors.New("Tensor shape is invalid"))
	}
	if t.flat == nil {
		panic(errors.New("Tensor was already finalized"))
	}
}

// FinalizeAll immediately frees the tensor data and leaves the Tensor in an invalid state.
// The shape is cleared also.
// Usually one simply lets the garbage collector do its job, but this allows an immediate release of
// larger tensors. It is safe to call it more than once.
//
// It's the caller's responsibility to make sure the tensor data is not being accessed elsewhere.
func (t *Tensor) FinalizeAll() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flat = nil
	t.shape = shapes.Invalid()
}

// Clone returns a deep copy of the Tensor.
func (t *Tensor) Clone() *Tensor {
	t.AssertValid()
	clone := FromShape(t.shape)
	t.ConstBytes(func(fromData []byte) {
		clone.MutableBytes(func(toData []byte) {
			copy(toData, fromData)
		})
	})
	return clone
}

// CopyFrom copies the contents of the other tensor into t. The shapes must be equal.
func (t *Tensor) CopyFrom(other *Tensor) {
	t.AssertValid()
	other.AssertValid()
	if t == other {
		return
	}
	if !t.shape.Equal(other.shape) {
		exceptions.Panicf("Tensor.CopyFrom() with incompatible shapes: got %s, want %s", other.shape, t.shape)
	}
	other.ConstBytes(func(fromData []byte) {
		t.MutableBytes(func(toData []byte) {
			copy(toData, fromData)
		})
	})
}

// Equal checks whether t == other.
// If they are the same pointer they are considered equal.
// If the shapes are different it returns false.
// If either are invalid (nil or finalized) it panics.
//
// Slow implementation: fine for small tensors, but write something specialized for the DType if speed
// is needed.
func (t *Tensor) Equal(other *Tensor) bool {
	t.AssertValid()
	other.AssertValid()

	if t == other {
		return true
	}
	if !t.shape.Equal(other.shape) {
		return false
	}
	equal := true // Set to false at the first difference.
	t.ConstFlatData(func(flat0 any) {
		other.ConstFlatData(func(flat1 any) {
			t0V := reflect.ValueOf(flat0)
			t1V := reflect.ValueOf(flat1)
			for ii := range t0V.Len() {
				if !t0V.Index(ii).Equal(t1V.Index(ii)) {
					equal = false
					return
				}
			}
		})
	})
	return equal
}

// InDelta checks whether Abs(t - other) < delta for every element.
// If they are the same pointer they are considered equal.
// If the shapes are different it returns false.
// If either are invalid (nil or finalized) it panics.
//
// Slow implementation: fine for small tensors, but write something specialized for the DType if speed
// is needed.
func (t *Tensor) InDelta(other *Tensor, delta float64) bool {
	t.AssertValid()
	other.AssertValid()

	if t == other {
		return true
	}
	if !t.shape.Equal(other.shape) {
		return false
	}
	inDelta := true
	t.ConstFlatData(func(flat0 any) {
		other.ConstFlatData(func(flat1 any) {
			inDelta = xslices.SlicesInDelta(flat0, flat1, delta)
		})
	})
	return inDelta
}
