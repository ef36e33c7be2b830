// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"testing"

	"github.com/sprout-ml/sprout/types/dtypes"
	"github.com/sprout-ml/sprout/types/shapes"
	"github.com/sprout-ml/sprout/types/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireSame(t *testing.T, want, got *tensors.Tensor) {
	t.Helper()
	require.Truef(t, want.Equal(got), "wanted %s, got %s", want, got)
}

func requireClose(t *testing.T, want, got *tensors.Tensor) {
	t.Helper()
	require.Truef(t, want.InDelta(got, 1e-4), "wanted %s, got %s", want, got)
}

func TestAdd(t *testing.T) {
	x := tensors.FromValue([][]float32{{1, 2, 3}, {4, 5, 6}})
	y := tensors.FromValue([][]float32{{10, 20, 30}, {40, 50, 60}})
	requireSame(t, tensors.FromValue([][]float32{{11, 22, 33}, {44, 55, 66}}), Add(x, y))

	// Broadcasting a vector over the rows.
	row := tensors.FromValue([]float32{100, 200, 300})
	requireSame(t, tensors.FromValue([][]float32{{101, 202, 303}, {104, 205, 306}}), Add(x, row))

	// Broadcasting on both sides: [2, 1] + [1, 3] -> [2, 3].
	col := tensors.FromValue([][]float32{{1}, {2}})
	plane := tensors.FromValue([][]float32{{10, 20, 30}})
	requireSame(t, tensors.FromValue([][]float32{{11, 21, 31}, {12, 22, 32}}), Add(col, plane))

	// Scalars broadcast everywhere.
	requireSame(t, tensors.FromValue([][]float32{{2, 3, 4}, {5, 6, 7}}), Add(x, tensors.FromScalar(float32(1))))

	// Same tensor on both sides must work.
	requireSame(t, tensors.FromValue([][]float32{{2, 4, 6}, {8, 10, 12}}), Add(x, x))

	// No implicit dtype conversion.
	require.Panics(t, func() { Add(x, tensors.FromValue([]float64{1, 2, 3})) })
	// Incompatible dimensions.
	require.Panics(t, func() { Add(x, tensors.FromValue([]float32{1, 2})) })
	// Float16 is storage-only.
	f16 := ConvertDType(x, dtypes.Float16)
	require.Panics(t, func() { Add(f16, f16) })
}

func TestSubMulDiv(t *testing.T) {
	x := tensors.FromValue([]float64{10, 20, 30})
	y := tensors.FromValue([]float64{1, 2, 3})
	requireSame(t, tensors.FromValue([]float64{9, 18, 27}), Sub(x, y))
	requireSame(t, tensors.FromValue([]float64{10, 40, 90}), Mul(x, y))
	requireSame(t, tensors.FromValue([]float64{10, 10, 10}), Div(x, y))

	// Integer division truncates.
	requireSame(t, tensors.FromValue([]int32{3, 2}),
		Div(tensors.FromValue([]int32{7, 5}), tensors.FromValue([]int32{2, 2})))
}

func TestPow(t *testing.T) {
	requireClose(t, tensors.FromValue([]float32{8, 2, 1}),
		Pow(tensors.FromValue([]float32{2, 4, 7}), tensors.FromValue([]float32{3, 0.5, 0})))

	// Integer exponentiation, negative exponents truncate towards zero.
	requireSame(t, tensors.FromValue([]int64{81, 1, 0, -1}),
		Pow(tensors.FromValue([]int64{3, 5, 2, -1}), tensors.FromValue([]int64{4, 0, -1, -3})))
}

func TestMaxMin(t *testing.T) {
	x := tensors.FromValue([]float32{1, 5, 3})
	y := tensors.FromValue([]float32{4, 2, 3})
	requireSame(t, tensors.FromValue([]float32{4, 5, 3}), Max(x, y))
	requireSame(t, tensors.FromValue([]float32{1, 2, 3}), Min(x, y))
}

func TestScalarConveniences(t *testing.T) {
	x := tensors.FromValue([]float32{1, 2, 3})
	requireSame(t, tensors.FromValue([]float32{11, 12, 13}), AddScalar(x, 10))
	requireSame(t, tensors.FromValue([]float32{2, 4, 6}), MulScalar(x, 2))
	requireSame(t, tensors.FromValue([]float32{0.5, 1, 1.5}), DivScalar(x, 2))
	requireSame(t, tensors.FromValue([]float32{1, 4, 9}), PowScalar(x, 2))
	requireSame(t, tensors.FromValue([]float32{0, -1, -2}), OneMinus(x))

	scalar := Scalar(dtypes.Float64, 3.5)
	require.Equal(t, 3.5, tensors.ToScalar[float64](scalar))
	requireSame(t, tensors.FromValue([]float32{0, 0, 0}), ZerosLike(x))
	requireSame(t, tensors.FromValue([]float32{1, 1, 1}), OnesLike(x))
}

func TestUnary(t *testing.T) {
	x := tensors.FromValue([]float32{-2, 0, 3})
	requireSame(t, tensors.FromValue([]float32{2, 0, -3}), Neg(x))
	requireSame(t, tensors.FromValue([]float32{2, 0, 3}), Abs(x))
	requireSame(t, tensors.FromValue([]float32{0, 0, 3}), Relu(x))

	// Integer dtypes too.
	xi := tensors.FromValue([]int32{-2, 0, 3})
	requireSame(t, tensors.FromValue([]int32{2, 0, -3}), Neg(xi))
	requireSame(t, tensors.FromValue([]int32{2, 0, 3}), Abs(xi))
	requireSame(t, tensors.FromValue([]int32{0, 0, 3}), Relu(xi))

	requireClose(t, tensors.FromValue([]float64{1, 2.7182818}), Exp(tensors.FromValue([]float64{0, 1})))
	requireClose(t, tensors.FromValue([]float64{0, 0.6931472}), Log(tensors.FromValue([]float64{1, 2})))
	requireClose(t, tensors.FromValue([]float64{0, 0.6931472}), Log1p(tensors.FromValue([]float64{0, 1})))
	requireClose(t, tensors.FromValue([]float64{2, 3}), Sqrt(tensors.FromValue([]float64{4, 9})))
	requireClose(t, tensors.FromValue([]float64{-0.7615942, 0.4621172}), Tanh(tensors.FromValue([]float64{-1, 0.5})))
	requireClose(t, tensors.FromValue([]float64{0.2689414, 0.5, 0.8807971}),
		Sigmoid(tensors.FromValue([]float64{-1, 0, 2})))
	requireClose(t, tensors.FromValue([]float64{-0.1586553, 0, 0.8413447, 1.9544997}),
		Gelu(tensors.FromValue([]float64{-1, 0, 1, 2})))

	// Transcendentals are float-only.
	require.Panics(t, func() { Exp(xi) })
	require.Panics(t, func() { Sqrt(xi) })
}

func TestMatMul(t *testing.T) {
	a := tensors.FromValue([][]float32{{1, 2, 3}, {4, 5, 6}})
	b := tensors.FromValue([][]float32{{7, 8}, {9, 10}, {11, 12}})
	requireSame(t, tensors.FromValue([][]float32{{58, 64}, {139, 154}}), MatMul(a, b))

	// Leading axes of lhs are a batch: [2, 2, 2] x [2, 2] -> [2, 2, 2].
	batch := tensors.FromValue([][][]float32{{{1, 0}, {0, 1}}, {{2, 0}, {0, 2}}})
	m := tensors.FromValue([][]float32{{1, 2}, {3, 4}})
	requireSame(t, tensors.FromValue([][][]float32{{{1, 2}, {3, 4}}, {{2, 4}, {6, 8}}}), MatMul(batch, m))

	require.Panics(t, func() { MatMul(a, tensors.FromValue([][]float32{{1, 2}, {3, 4}})) })
	require.Panics(t, func() { MatMul(tensors.FromValue([]float32{1, 2}), m) })
}

func TestMatMulParallel(t *testing.T) {
	// Large enough to cross the serial threshold: multiplying by the identity must return the
	// input unchanged.
	const dim = 48
	x := tensors.FromShape(shapes.Make(dtypes.Float32, dim, dim))
	tensors.MutableFlatData(x, func(flat []float32) {
		for ii := range flat {
			flat[ii] = float32(ii%17) - 8
		}
	})
	eye := tensors.FromShape(shapes.Make(dtypes.Float32, dim, dim))
	tensors.MutableFlatData(eye, func(flat []float32) {
		for ii := range dim {
			flat[ii*dim+ii] = 1
		}
	})
	requireSame(t, x, MatMul(x, eye))

	// Same result with parallelism disabled.
	prev := pool.MaxParallelism()
	pool.SetMaxParallelism(0)
	defer pool.SetMaxParallelism(prev)
	requireSame(t, x, MatMul(x, eye))
}

func TestReduceSum(t *testing.T) {
	x := tensors.FromValue([][]float32{{1, 2, 3}, {4, 5, 6}})
	requireSame(t, tensors.FromValue([]float32{5, 7, 9}), ReduceSum(x, 0))
	requireSame(t, tensors.FromValue([]float32{6, 15}), ReduceSum(x, 1))
	requireSame(t, tensors.FromValue([]float32{6, 15}), ReduceSum(x, -1))
	requireSame(t, tensors.FromScalar(float32(21)), ReduceSum(x))
	requireSame(t, tensors.FromScalar(float32(21)), ReduceSum(x, 0, 1))
	require.Panics(t, func() { ReduceSum(x, 1, -1) })
	require.Panics(t, func() { ReduceSum(x, 2) })

	// Ints sum too.
	requireSame(t, tensors.FromScalar(int64(10)), ReduceSum(tensors.FromValue([]int64{1, 2, 3, 4})))
}

func TestReduceMean(t *testing.T) {
	x := tensors.FromValue([][]float32{{1, 2, 3}, {4, 5, 6}})
	requireClose(t, tensors.FromValue([]float32{2.5, 3.5, 4.5}), ReduceMean(x, 0))
	requireClose(t, tensors.FromValue([]float32{2, 5}), ReduceMean(x, -1))
	requireClose(t, tensors.FromScalar(float32(3.5)), ReduceMean(x))
	require.Panics(t, func() { ReduceMean(tensors.FromValue([]int32{1, 2})) })
}

func TestReduceMax(t *testing.T) {
	x := tensors.FromValue([][]float32{{1, 7, 3}, {4, 5, -6}})
	requireSame(t, tensors.FromValue([]float32{4, 7, 3}), ReduceMax(x, 0))
	requireSame(t, tensors.FromValue([]float32{7, 5}), ReduceMax(x, 1))
	requireSame(t, tensors.FromScalar(float32(7)), ReduceMax(x))

	// All-negative values must not be beaten by the init value.
	requireSame(t, tensors.FromScalar(float32(-1)), ReduceMax(tensors.FromValue([]float32{-5, -1, -3})))
	requireSame(t, tensors.FromScalar(int8(-3)),
		ReduceMax(tensors.FromFlatDataAndDimensions([]int8{-5, -3, -4}, 3)))
}

func TestArgMax(t *testing.T) {
	x := tensors.FromValue([][]float32{{1, 7, 3}, {4, 5, -6}})
	requireSame(t, tensors.FromValue([]int32{1, 1}), ArgMax(x, 1))
	requireSame(t, tensors.FromValue([]int32{1, 0, 0}), ArgMax(x, 0))
	// Ties resolve to the first occurrence.
	requireSame(t, tensors.FromValue([]int32{0}), ArgMax(tensors.FromValue([][]float32{{5, 5, 5}}), -1))
}

func TestReshape(t *testing.T) {
	x := tensors.FromValue([][]float32{{1, 2, 3}, {4, 5, 6}})
	requireSame(t, tensors.FromValue([][]float32{{1, 2}, {3, 4}, {5, 6}}), Reshape(x, 3, 2))
	requireSame(t, tensors.FromValue([]float32{1, 2, 3, 4, 5, 6}), Reshape(x, 6))
	require.Panics(t, func() { Reshape(x, 4, 2) })

	// The output owns its data: mutating it must not touch x.
	y := Reshape(x, 6)
	tensors.MutableFlatData(y, func(flat []float32) { flat[0] = 100 })
	requireSame(t, tensors.FromValue([][]float32{{1, 2, 3}, {4, 5, 6}}), x)
}

func TestExpandAxesAndSqueeze(t *testing.T) {
	x := tensors.FromValue([]float32{1, 2, 3})
	assert.Equal(t, []int{1, 3}, ExpandAxes(x, 0).Shape().Dimensions)
	assert.Equal(t, []int{3, 1}, ExpandAxes(x, -1).Shape().Dimensions)
	assert.Equal(t, []int{1, 3, 1}, ExpandAxes(x, 0, 2).Shape().Dimensions)
	require.Panics(t, func() { ExpandAxes(x, 0, 0) })

	y := tensors.FromValue([][][]float32{{{1, 2, 3}}})
	assert.Equal(t, []int{3}, Squeeze(y).Shape().Dimensions)
	assert.Equal(t, []int{1, 3}, Squeeze(y, 0).Shape().Dimensions)
	require.Panics(t, func() { Squeeze(y, 2) })
}

func TestTranspose(t *testing.T) {
	x := tensors.FromValue([][]float32{{1, 2, 3}, {4, 5, 6}})
	requireSame(t, tensors.FromValue([][]float32{{1, 4}, {2, 5}, {3, 6}}), Transpose(x))

	// Explicit permutation on rank-3.
	y := tensors.FromValue([][][]float32{{{1, 2}, {3, 4}}, {{5, 6}, {7, 8}}})
	yT := Transpose(y, 1, 0, 2)
	requireSame(t, tensors.FromValue([][][]float32{{{1, 2}, {5, 6}}, {{3, 4}, {7, 8}}}), yT)

	require.Panics(t, func() { Transpose(x, 0, 0) })
	require.Panics(t, func() { Transpose(x, 0) })
}

func TestBroadcastTo(t *testing.T) {
	row := tensors.FromValue([]float32{1, 2, 3})
	requireSame(t, tensors.FromValue([][]float32{{1, 2, 3}, {1, 2, 3}}), BroadcastTo(row, 2, 3))

	col := tensors.FromValue([][]float32{{1}, {2}})
	requireSame(t, tensors.FromValue([][]float32{{1, 1, 1}, {2, 2, 2}}), BroadcastTo(col, 2, 3))

	scalar := tensors.FromScalar(float32(7))
	requireSame(t, tensors.FromValue([][]float32{{7, 7}, {7, 7}}), BroadcastTo(scalar, 2, 2))

	require.Panics(t, func() { BroadcastTo(row, 2, 4) })
	require.Panics(t, func() { BroadcastTo(tensors.FromValue([][]float32{{1, 2}, {3, 4}}), 2) })
}

func TestConvertDType(t *testing.T) {
	x := tensors.FromValue([]float32{1.7, -2.3, 0})
	requireSame(t, tensors.FromValue([]int32{1, -2, 0}), ConvertDType(x, dtypes.Int32))
	requireSame(t, tensors.FromValue([]bool{true, true, false}), ConvertDType(x, dtypes.Bool))
	requireSame(t, tensors.FromValue([]float64{1, 0, 1}),
		ConvertDType(tensors.FromValue([]bool{true, false, true}), dtypes.Float64))
	requireSame(t, tensors.FromValue([]float32{42, -7}),
		ConvertDType(tensors.FromValue([]int64{42, -7}), dtypes.Float32))

	// Float16 keeps exactly representable values through a round trip.
	f16 := ConvertDType(tensors.FromValue([]float32{1.5, -2, 0.25}), dtypes.Float16)
	require.Equal(t, dtypes.Float16, f16.DType())
	requireSame(t, tensors.FromValue([]float32{1.5, -2, 0.25}), ConvertDType(f16, dtypes.Float32))

	// Identity conversion still copies.
	same := ConvertDType(x, dtypes.Float32)
	tensors.MutableFlatData(same, func(flat []float32) { flat[0] = 99 })
	requireSame(t, tensors.FromValue([]float32{1.7, -2.3, 0}), x)
}

func TestSoftmax(t *testing.T) {
	x := tensors.FromValue([][]float32{{1, 2, 3}})
	requireClose(t, tensors.FromValue([][]float32{{0.0900306, 0.2447285, 0.665241}}), Softmax(x))
	requireClose(t, tensors.FromValue([][]float32{{-2.407606, -1.407606, -0.407606}}), LogSoftmax(x))

	// Rows are normalized independently, and large logits must not overflow.
	big := tensors.FromValue([][]float32{{1000, 1000}, {-1000, 1000}})
	requireClose(t, tensors.FromValue([][]float32{{0.5, 0.5}, {0, 1}}), Softmax(big))

	require.Panics(t, func() { Softmax(tensors.FromScalar(float32(1))) })
	require.Panics(t, func() { Softmax(tensors.FromValue([]int32{1, 2})) })
}

func TestOneHot(t *testing.T) {
	indices := tensors.FromValue([]int32{0, 2, 1})
	requireSame(t, tensors.FromValue([][]float32{{1, 0, 0}, {0, 0, 1}, {0, 1, 0}}),
		OneHot(indices, 3, dtypes.Float32))

	// Out-of-range indices yield all-zero rows.
	requireSame(t, tensors.FromValue([][]float64{{0, 1}, {0, 0}}),
		OneHot(tensors.FromValue([]int64{1, 5}), 2, dtypes.Float64))

	// Scalar indices become a vector.
	requireSame(t, tensors.FromValue([]float32{0, 1, 0, 0}),
		OneHot(tensors.FromScalar(int32(1)), 4, dtypes.Float32))

	require.Panics(t, func() { OneHot(tensors.FromValue([]float32{1}), 2, dtypes.Float32) })
	require.Panics(t, func() { OneHot(indices, 0, dtypes.Float32) })
}

func TestOpsDoNotAliasInputs(t *testing.T) {
	x := tensors.FromValue([]float32{1, 2, 3})
	y := Add(x, Scalar(dtypes.Float32, 0))
	tensors.MutableFlatData(y, func(flat []float32) { flat[0] = 50 })
	requireSame(t, tensors.FromValue([]float32{1, 2, 3}), x)

	z := Transpose(tensors.FromValue([][]float32{{1, 2}, {3, 4}}))
	w := BroadcastTo(x, 2, 3)
	tensors.MutableFlatData(z, func(flat []float32) { flat[0] = -1 })
	tensors.MutableFlatData(w, func(flat []float32) { flat[0] = -1 })
	requireSame(t, tensors.FromValue([]float32{1, 2, 3}), x)
}
