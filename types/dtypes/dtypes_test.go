// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package dtypes

import (
	"math"
	"testing"

	"github.com/x448/float16"
)

func TestDType_HighestLowestValues(t *testing.T) {
	if !math.IsInf(Float64.HighestValue().(float64), 1) {
		t.Fatal("expected Float64.HighestValue() to be +Inf")
	}
	if !math.IsInf(float64(Float32.LowestValue().(float32)), -1) {
		t.Fatal("expected Float32.LowestValue() to be -Inf")
	}
	if Float16.LowestValue().(float16.Float16) != float16.Inf(-1) {
		t.Fatal("expected Float16.LowestValue() to be -Inf")
	}
	if Uint32.LowestValue().(uint32) != 0 {
		t.Fatalf("expected Uint32.LowestValue() to be 0, got %v", Uint32.LowestValue())
	}
	if Int8.HighestValue().(int8) != math.MaxInt8 {
		t.Fatalf("expected Int8.HighestValue() to be %d, got %v", math.MaxInt8, Int8.HighestValue())
	}
}

func TestNames(t *testing.T) {
	if Float32.String() != "Float32" {
		t.Fatalf("expected Float32.String() to be \"Float32\", got %q", Float32.String())
	}
	for _, name := range []string{"Float16", "float16"} {
		dtype, err := DTypeString(name)
		if err != nil {
			t.Fatalf("DTypeString(%q) failed: %v", name, err)
		}
		if dtype != Float16 {
			t.Fatalf("expected DTypeString(%q) to be Float16, got %v", name, dtype)
		}
	}
	if _, err := DTypeString("Quaternion"); err == nil {
		t.Fatal("expected DTypeString(\"Quaternion\") to fail")
	}
}

func TestFromAny(t *testing.T) {
	if FromAny(int64(7)) != Int64 {
		t.Fatalf("expected FromAny(int64(7)) to be Int64, got %v", FromAny(int64(7)))
	}
	if FromAny(float32(13)) != Float32 {
		t.Fatalf("expected FromAny(float32(13)) to be Float32, got %v", FromAny(float32(13)))
	}
	if FromAny(float16.Fromfloat32(3.0)) != Float16 {
		t.Fatalf("expected FromAny(float16.Fromfloat32(3.0)) to be Float16, got %v", FromAny(float16.Fromfloat32(3.0)))
	}
	if FromAny(nil) != InvalidDType {
		t.Fatalf("expected FromAny(nil) to be InvalidDType, got %v", FromAny(nil))
	}
}

func TestFromGenericsType(t *testing.T) {
	if FromGenericsType[float64]() != Float64 {
		t.Fatalf("expected FromGenericsType[float64]() to be Float64, got %v", FromGenericsType[float64]())
	}
	if FromGenericsType[uint16]() != Uint16 {
		t.Fatalf("expected FromGenericsType[uint16]() to be Uint16, got %v", FromGenericsType[uint16]())
	}
	if FromGenericsType[bool]() != Bool {
		t.Fatalf("expected FromGenericsType[bool]() to be Bool, got %v", FromGenericsType[bool]())
	}
}

func TestSize(t *testing.T) {
	if Int64.Size() != 8 {
		t.Fatalf("expected Int64.Size() to be 8, got %d", Int64.Size())
	}
	if Float32.Size() != 4 {
		t.Fatalf("expected Float32.Size() to be 4, got %d", Float32.Size())
	}
	if Float16.Size() != 2 {
		t.Fatalf("expected Float16.Size() to be 2, got %d", Float16.Size())
	}
}

func TestSizeForDimensions(t *testing.T) {
	if Int64.SizeForDimensions(2, 3) != 2*3*8 {
		t.Fatalf("expected Int64.SizeForDimensions(2, 3) to be %d, got %d", 2*3*8, Int64.SizeForDimensions(2, 3))
	}
	if Float32.SizeForDimensions() != 4 {
		t.Fatalf("expected Float32.SizeForDimensions() to be 4, got %d", Float32.SizeForDimensions())
	}
}
