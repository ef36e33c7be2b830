// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"bytes"
	"encoding/gob"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/sprout-ml/sprout/types/dtypes"
	"github.com/sprout-ml/sprout/types/shapes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cmpShapes(t *testing.T, shape, wantShape shapes.Shape, err error) {
	if err != nil {
		t.Fatalf("Failed to get shape (wanted %q) from value: %v", wantShape, err)
	}
	if !wantShape.Equal(shape) {
		t.Fatalf("Invalid shape %q, wanted %q", shape, wantShape)
	}
}

func TestFromValue(t *testing.T) {
	wantShape := shapes.Shape{DType: dtypes.Float32, Dimensions: []int{3, 2}}
	shape, err := shapeForValue([][]float32{{0, 0}, {1, 1}, {2, 2}})
	cmpShapes(t, shape, wantShape, err)

	wantShape = shapes.Shape{DType: dtypes.Float64, Dimensions: []int{1, 1, 1}}
	shape, err = shapeForValue([][][]float64{{{1}}})
	cmpShapes(t, shape, wantShape, err)

	if strconv.IntSize == 64 {
		wantShape = shapes.Shape{DType: dtypes.Int64, Dimensions: nil}
	} else {
		wantShape = shapes.Shape{DType: dtypes.Int32, Dimensions: nil}
	}
	shape, err = shapeForValue(5)
	cmpShapes(t, shape, wantShape, err)

	// Irregular sub-slices are an error.
	_, err = shapeForValue([][]float32{{0}, {1, 1}})
	require.Error(t, err)
	require.Panics(t, func() {
		FromValue([][]float32{{0}, {1, 1}})
	})

	// Values round-trip.
	{
		want := [][]float32{{1, 2, 3}, {10, 11, 12}}
		var tensor *Tensor
		require.NotPanics(t, func() { tensor = FromValue(want) })
		assert.Equal(t, want, tensor.Value())
	}
	{
		want := [][][]int32{{{1}, {2}}, {{3}, {4}}}
		var tensor *Tensor
		require.NotPanics(t, func() { tensor = FromValue(want) })
		assert.Equal(t, want, tensor.Value())
	}
	{
		// Go int is stored as int64 (or int32 on 32-bit platforms).
		var tensor *Tensor
		require.NotPanics(t, func() { tensor = FromValue(5) })
		if strconv.IntSize == 64 {
			assert.Equal(t, int64(5), tensor.Value())
		} else {
			assert.Equal(t, int32(5), tensor.Value())
		}
	}
	{
		want := []bool{true, false, true}
		var tensor *Tensor
		require.NotPanics(t, func() { tensor = FromValue(want) })
		assert.Equal(t, want, tensor.Value())
	}

	// FromAnyValue on a Tensor is a no-op.
	{
		tensor := FromValue([]float64{1, 2})
		require.Equal(t, tensor, FromAnyValue(tensor))
	}
}

func TestConstructors(t *testing.T) {
	{
		tensor := FromShape(shapes.Make(dtypes.Float64, 2, 3))
		require.Equal(t, [][]float64{{0, 0, 0}, {0, 0, 0}}, tensor.Value())
	}
	{
		tensor := Zeros(shapes.Make(dtypes.Int32, 2))
		require.Equal(t, []int32{0, 0}, tensor.Value())
	}
	{
		tensor := Ones(shapes.Make(dtypes.Float32, 2, 2))
		require.Equal(t, [][]float32{{1, 1}, {1, 1}}, tensor.Value())
	}
	{
		tensor := Ones(shapes.Make(dtypes.Int8, 3))
		require.Equal(t, []int8{1, 1, 1}, tensor.Value())
	}
	{
		tensor := FromScalarAndDimensions(float32(0.5), 1, 3)
		require.Equal(t, [][]float32{{0.5, 0.5, 0.5}}, tensor.Value())
	}
	{
		tensor := FromScalar(uint8(3))
		require.True(t, tensor.IsScalar())
		require.Equal(t, uint8(3), tensor.Value())
	}
	{
		tensor := FromFlatDataAndDimensions([]int8{1, 2, 3, 4}, 2, 2)
		require.Equal(t, [][]int8{{1, 2}, {3, 4}}, tensor.Value())
	}
	{
		// Go int flat data gets copied over byte-wise.
		tensor := FromFlatDataAndDimensions([]int{1, 2, 3, 4}, 2, 2)
		if strconv.IntSize == 64 {
			require.Equal(t, [][]int64{{1, 2}, {3, 4}}, tensor.Value())
		}
	}
	require.Panics(t, func() {
		FromFlatDataAndDimensions([]float32{1, 2, 3}, 2, 2)
	})
}

func TestAccessors(t *testing.T) {
	tensor := FromValue([][]float32{{1, 2}, {3, 4}})
	require.Equal(t, dtypes.Float32, tensor.DType())
	require.Equal(t, 2, tensor.Rank())
	require.Equal(t, 4, tensor.Size())
	require.Equal(t, uintptr(4*4), tensor.Memory())
	require.Equal(t, []int{2, 1}, tensor.LayoutStrides())

	ConstFlatData(tensor, func(flat []float32) {
		require.Equal(t, []float32{1, 2, 3, 4}, flat)
	})

	// Generic access with the wrong dtype panics.
	require.Panics(t, func() {
		ConstFlatData(tensor, func(flat []float64) {})
	})

	MutableFlatData(tensor, func(flat []float32) {
		flat[3] = 40
	})
	require.Equal(t, [][]float32{{1, 2}, {3, 40}}, tensor.Value())

	AssignFlatData(tensor, []float32{5, 6, 7, 8})
	require.Equal(t, [][]float32{{5, 6}, {7, 8}}, tensor.Value())
	require.Panics(t, func() {
		AssignFlatData(tensor, []float32{5, 6})
	})

	require.Equal(t, []float32{5, 6, 7, 8}, CopyFlatData[float32](tensor))

	tensor.ConstBytes(func(data []byte) {
		require.Len(t, data, 4*4)
	})

	scalar := FromScalar(int32(17))
	require.Equal(t, int32(17), ToScalar[int32](scalar))
	require.Panics(t, func() {
		ToScalar[int32](tensor) // Not a scalar.
	})
}

func TestEqualAndInDelta(t *testing.T) {
	tensor := FromValue([][]float64{{1, 2}, {3, 4}})
	require.True(t, tensor.Equal(tensor))
	require.True(t, tensor.Equal(FromValue([][]float64{{1, 2}, {3, 4}})))
	require.False(t, tensor.Equal(FromValue([][]float64{{1, 2}, {3, 5}})))
	require.False(t, tensor.Equal(FromValue([]float64{1, 2, 3, 4})))

	require.True(t, tensor.InDelta(FromValue([][]float64{{1.01, 2}, {3, 3.99}}), 0.1))
	require.False(t, tensor.InDelta(FromValue([][]float64{{1.5, 2}, {3, 4}}), 0.1))
	require.False(t, tensor.InDelta(FromValue([]float64{1, 2, 3, 4}), 0.1))
}

func TestCloneAndCopyFrom(t *testing.T) {
	tensor := FromValue([]int64{1, 2, 3})
	clone := tensor.Clone()
	require.True(t, tensor.Equal(clone))

	// Mutating the clone must not affect the original.
	MutableFlatData(clone, func(flat []int64) { flat[0] = 100 })
	require.Equal(t, []int64{1, 2, 3}, tensor.Value())
	require.Equal(t, []int64{100, 2, 3}, clone.Value())

	tensor.CopyFrom(clone)
	require.Equal(t, []int64{100, 2, 3}, tensor.Value())
	require.Panics(t, func() {
		tensor.CopyFrom(FromValue([]int64{1, 2}))
	})
}

func TestFinalize(t *testing.T) {
	tensor := FromValue([]float32{1, 2})
	require.True(t, tensor.Ok())
	tensor.FinalizeAll()
	require.False(t, tensor.Ok())
	require.Panics(t, func() { tensor.AssertValid() })
	require.NotPanics(t, func() { tensor.FinalizeAll() }) // Idempotent.
}

func TestSerialization(t *testing.T) {
	{
		values := [][]float64{{1, 2}, {3, 5}, {7, 11}}
		var tensor *Tensor
		require.NotPanics(t, func() { tensor = FromValue(values) })
		buf := &bytes.Buffer{}
		enc := gob.NewEncoder(buf)
		require.NoError(t, tensor.GobSerialize(enc))

		dec := gob.NewDecoder(buf)
		tensor, err := GobDeserialize(dec)
		require.NoError(t, err)
		require.Equal(t, values, tensor.Value().([][]float64))
	}

	// Save and Load round-trip.
	{
		values := []int32{2, 3, 5, 7, 11, 13}
		tensor := FromFlatDataAndDimensions(values, 3, 2)
		fileName := filepath.Join(t.TempDir(), "tensor.bin")
		require.NoError(t, tensor.Save(fileName))

		loaded, err := Load(fileName)
		require.NoError(t, err)
		require.True(t, tensor.Equal(loaded))
	}

	// Load of a missing file returns an error.
	{
		_, err := Load(filepath.Join(t.TempDir(), "missing.bin"))
		require.Error(t, err)
	}
}

func TestSummary(t *testing.T) {
	require.Equal(t, "float32(7)", FromScalar(float32(7)).String())
	require.Equal(t, "[3]int32{1, 2, 3}", FromValue([]int32{1, 2, 3}).String())
	require.Equal(t, "[2][2]float32{\n {1.5, 2},\n {3, 4}}",
		FromValue([][]float32{{1.5, 2}, {3, 4}}).String())

	// Long rows get an ellipsis.
	require.Equal(t, "[10]float64{1, 2, 3, ..., 8, 9, 10}",
		FromValue([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}).String())

	// Many rows get an ellipsis.
	var flat []int32
	for ii := int32(0); ii < 16; ii++ {
		flat = append(flat, ii)
	}
	require.Equal(t,
		"[8][2]int32{\n {0, 1},\n {2, 3},\n {4, 5},\n ...,\n {10, 11},\n {12, 13},\n {14, 15}}",
		FromFlatDataAndDimensions(flat, 8, 2).String())
}

func TestGoStr(t *testing.T) {
	require.Equal(t, "float32(7)", FromScalar(float32(7)).GoStr())
	require.Equal(t, "(Float32)[2 2]: [][]float32{{1, 2}, {3, 4}}",
		FromValue([][]float32{{1, 2}, {3, 4}}).GoStr())
}
