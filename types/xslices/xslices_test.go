// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package xslices

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAt(t *testing.T) {
	s := []int{10, 20, 30}
	assert.Equal(t, 10, At(s, 0))
	assert.Equal(t, 30, At(s, -1))
	assert.Equal(t, 20, At(s, -2))
	assert.Equal(t, 30, Last(s))

	SetAt(s, -1, 33)
	assert.Equal(t, 33, s[2])
	SetLast(s, 35)
	assert.Equal(t, 35, s[2])
}

func TestCopy(t *testing.T) {
	s := []float32{1, 2, 3}
	s2 := Copy(s)
	s2[0] = 100
	assert.Equal(t, float32(1), s[0])
	assert.Nil(t, Copy[int](nil))
}

func TestFillSlice(t *testing.T) {
	s := make([]float64, 1000)
	FillSlice(s, 3.14)
	for _, v := range s {
		require.Equal(t, 3.14, v)
	}
	assert.Equal(t, []int{7, 7, 7}, SliceWithValue(3, 7))
}

func TestIota(t *testing.T) {
	assert.Equal(t, []float64{3, 4}, Iota(3.0, 2))
	assert.Equal(t, []int{0, 1, 2, 3}, Iota(0, 4))
}

func TestSortedKeys(t *testing.T) {
	m := map[string]int{"banana": 1, "apple": 2, "cherry": 3}
	assert.Equal(t, []string{"apple", "banana", "cherry"}, SortedKeys(m))
}

func TestMap(t *testing.T) {
	double := func(x int) int { return 2 * x }
	assert.Equal(t, []int{2, 4, 6}, Map([]int{1, 2, 3}, double))

	in := Iota(0, 100)
	want := Map(in, double)
	assert.Equal(t, want, MapParallel(in, double))
}

func TestMaxMin(t *testing.T) {
	assert.Equal(t, 7, Max([]int{3, 7, 1}))
	assert.Equal(t, 1, Min([]int{3, 7, 1}))
	assert.Equal(t, 0, Max[int](nil))
}

func TestSlicesInDelta(t *testing.T) {
	assert.True(t, SlicesInDelta([][]float32{{1, 2}, {3, 4}}, [][]float32{{1, 2}, {3, 4.00001}}, 1e-3))
	assert.False(t, SlicesInDelta([][]float32{{1, 2}, {3, 4}}, [][]float32{{1, 2}, {3, 5}}, 1e-3))
	assert.False(t, SlicesInDelta([]float32{1, 2}, []float32{1, 2, 3}, 1e-3))
	assert.False(t, SlicesInDelta([]float32{1}, []float64{1}, 0))
}

func TestSliceToGoStr(t *testing.T) {
	assert.Equal(t, "[][]int{{1, 2}, {3, 4}}", SliceToGoStr([][]int{{1, 2}, {3, 4}}))
}
