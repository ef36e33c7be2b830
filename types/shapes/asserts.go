// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"github.com/pkg/errors"
)

// UncheckedAxis marks an axis whose dimension CheckDims accepts without checking.
const UncheckedAxis = int(-1)

// HasShape is implemented by values with an associated Shape: tensors.Tensor,
// nn.Variable and Shape itself.
type HasShape interface {
	Shape() Shape
}

// CheckDims verifies the shape has the given rank and dimensions. Axes given
// as UncheckedAxis accept any dimension.
func (s Shape) CheckDims(dimensions ...int) error {
	if s.Rank() != len(dimensions) {
		return errors.Errorf("shape %s has rank %d, wanted rank %d (dimensions %v)",
			s, s.Rank(), len(dimensions), dimensions)
	}
	for axis, want := range dimensions {
		if want != UncheckedAxis && s.Dimensions[axis] != want {
			return errors.Errorf("shape %s has dimension %d on axis %d, wanted %v",
				s, s.Dimensions[axis], axis, dimensions)
		}
	}
	return nil
}

// CheckDims verifies shaped has the given rank and dimensions. Axes given as
// UncheckedAxis accept any dimension.
func CheckDims(shaped HasShape, dimensions ...int) error {
	return shaped.Shape().CheckDims(dimensions...)
}
