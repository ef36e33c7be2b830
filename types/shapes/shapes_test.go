// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/sprout-ml/sprout/types/dtypes"
)

func TestShape(t *testing.T) {
	invalidShape := Invalid()
	require.False(t, invalidShape.Ok())

	shape0 := Make(Float64)
	require.True(t, shape0.Ok())
	require.True(t, shape0.IsScalar())
	require.Equal(t, 0, shape0.Rank())
	require.Len(t, shape0.Dimensions, 0)
	require.Equal(t, 1, shape0.Size())
	require.Equal(t, 8, int(shape0.Memory()))
	require.Equal(t, "(Float64)", shape0.String())

	shape1 := Make(Float32, 4, 3, 2)
	require.True(t, shape1.Ok())
	require.False(t, shape1.IsScalar())
	require.Equal(t, 3, shape1.Rank())
	require.Len(t, shape1.Dimensions, 3)
	require.Equal(t, 4*3*2, shape1.Size())
	require.Equal(t, 4*4*3*2, int(shape1.Memory()))
	require.Equal(t, "(Float32)[4 3 2]", shape1.String())

	require.Panics(t, func() { Make(Float32, 2, 0) })
	require.Panics(t, func() { Make(Float32, -1) })
}

func TestDim(t *testing.T) {
	shape := Make(Float32, 4, 3, 2)
	require.Equal(t, 4, shape.Dim(0))
	require.Equal(t, 3, shape.Dim(1))
	require.Equal(t, 2, shape.Dim(2))
	require.Equal(t, 4, shape.Dim(-3))
	require.Equal(t, 3, shape.Dim(-2))
	require.Equal(t, 2, shape.Dim(-1))
	require.Panics(t, func() { _ = shape.Dim(3) })
	require.Panics(t, func() { _ = shape.Dim(-4) })
}

func TestEqual(t *testing.T) {
	require.True(t, Make(Float32, 2, 3).Equal(Make(Float32, 2, 3)))
	require.False(t, Make(Float32, 2, 3).Equal(Make(Float64, 2, 3)))
	require.False(t, Make(Float32, 2, 3).Equal(Make(Float32, 3, 2)))
	require.True(t, Make(Float32, 2, 3).EqualDimensions(Make(Float64, 2, 3)))
	require.True(t, Scalar[float32]().Equal(Make(Float32)))
}

func TestClone(t *testing.T) {
	shape := Make(Int64, 5, 7)
	clone := shape.Clone()
	require.True(t, shape.Equal(clone))
	clone.Dimensions[0] = 11
	require.Equal(t, 5, shape.Dimensions[0])
}

func TestGobSerialization(t *testing.T) {
	shape := Make(Float64, 3, 1, 4)
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	require.NoError(t, shape.GobSerialize(enc))

	dec := gob.NewDecoder(&buf)
	recovered, err := GobDeserialize(dec)
	require.NoError(t, err)
	require.True(t, shape.Equal(recovered))
}

func TestIter(t *testing.T) {
	var got [][]int
	for indices := range Make(Int32, 2, 3).Iter() {
		got = append(got, append([]int{}, indices...))
	}
	want := [][]int{{0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 1}, {1, 2}}
	require.Equal(t, want, got)

	// Axes of dimension 1 stay pinned at index 0.
	got = nil
	for indices := range Make(Float32, 1, 2, 1).Iter() {
		got = append(got, append([]int{}, indices...))
	}
	require.Equal(t, [][]int{{0, 0, 0}, {0, 1, 0}}, got)

	count := 0
	for indices := range Scalar[float64]().Iter() {
		require.Len(t, indices, 0)
		count++
	}
	require.Equal(t, 1, count)
}

func TestCheckDims(t *testing.T) {
	shape := Make(Float32, 4, 3)
	require.NoError(t, shape.CheckDims(4, 3))
	require.NoError(t, shape.CheckDims(4, UncheckedAxis))
	require.Error(t, shape.CheckDims(4))
	require.Error(t, shape.CheckDims(3, 4))

	require.NoError(t, CheckDims(shape, UncheckedAxis, 3))
	require.Error(t, CheckDims(shape, UncheckedAxis, 7))
	require.NoError(t, CheckDims(Scalar[float32]()))
}
