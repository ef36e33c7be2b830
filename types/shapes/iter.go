// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import "iter"

// Iter iterates over every index of the shape in row-major order, the last
// axis changing the fastest. A scalar shape yields a single empty index.
//
// The yielded slice is reused between iterations: don't modify it, and copy it
// if it must outlive the loop body.
func (s Shape) Iter() iter.Seq[[]int] {
	return func(yield func([]int) bool) {
		if !s.Ok() {
			return
		}
		for _, dim := range s.Dimensions {
			if dim <= 0 {
				return
			}
		}
		indices := make([]int, s.Rank())
		for remaining := s.Size(); remaining > 0; remaining-- {
			if !yield(indices) {
				return
			}
			// Increment as an N-digit counter, carrying overflows leftwards.
			for axis := s.Rank() - 1; axis >= 0; axis-- {
				indices[axis]++
				if indices[axis] < s.Dimensions[axis] {
					break
				}
				indices[axis] = 0
			}
		}
	}
}
