// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package nn

import (
	"cmp"
	"fmt"
	"iter"
	"reflect"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/sprout-ml/sprout/types/sets"
	"github.com/sprout-ml/sprout/types/shapes"
	"github.com/sprout-ml/sprout/types/xslices"
)

// PathAndVariable refers to a variable within a model value, at the "Path"
// location. See details in NamedVariables.
type PathAndVariable struct {
	Path     string
	Variable *Variable
}

var (
	variableType = reflect.TypeFor[Variable]()
	builderType  = reflect.TypeFor[Builder]()
)

// NamedVariables returns an iterator over the model's non-nil variables,
// performing a "depth first search" into the model, in a deterministic order
// (always the same for the same contents).
//
// Struct fields are iterated in the order they are defined in the struct.
// Maps are iterated in alphabetic order of their keys. Pointers visited once
// are not visited again, so cycles (and diamond sharing) are safe: a shared
// variable is yielded only at the first path that reaches it.
//
// It yields PathAndVariable objects, with the path to the variable within the
// model structure, and its variable pointer. A model can be any Go value:
// variables are found through exported struct fields, slices, arrays, maps
// (with string or number keys), interfaces and pointers, however they are
// nested. The layers in this package expose their variables as exported
// fields, so a model made of layers needs no extra wiring:
//
//	type Block struct { Hidden, Output *nn.Dense }
//	type Model struct { Blocks []*Block }
//	...
//	NamedVariables(model) -> { "Blocks[0].Hidden.Weights", ... }, { "Blocks[0].Hidden.Bias", ... }, ...
//
// It may yield an error if the model is invalid: a Variable included by value
// (as opposed to by reference/pointer); a Variable in an unexported field;
// invalid map keys (only maps with string and number keys are accepted).
func NamedVariables(model any) iter.Seq2[PathAndVariable, error] {
	return func(yield func(PathAndVariable, error) bool) {
		seen := sets.Make[uintptr]()
		var iterStruct func(v reflect.Value, path string) bool
		var iterSliceOrArray func(v reflect.Value, pathPrefix string) bool
		var iterMap func(v reflect.Value, pathPrefix string) bool
		var iterValue func(v reflect.Value, path string) bool

		// Helper to check if the pointer was already visited to avoid cycles.
		checkPtr := func(pointer uintptr) bool {
			if seen.Has(pointer) {
				return false
			}
			seen.Insert(pointer)
			return true
		}

		// Iterate over the values of a map, in alphabetic order of the keys.
		iterMap = func(v reflect.Value, pathPrefix string) bool {
			if v.IsNil() {
				return true
			}
			originalKeys := v.MapKeys()
			stringKeys := make([]string, len(originalKeys))
			for ii, k := range originalKeys {
				str, err := mapKeyToString(k)
				if err != nil {
					return yield(PathAndVariable{}, errors.WithMessagef(err, "at path %q", pathPrefix))
				}
				stringKeys[ii] = str
			}
			// Sort both keys at the same time, by the stringKeys.
			indices := xslices.Iota(0, len(originalKeys))
			slices.SortFunc(indices, func(i, j int) int { return cmp.Compare(stringKeys[i], stringKeys[j]) })
			for _, index := range indices {
				value := v.MapIndex(originalKeys[index])
				newPath := fmt.Sprintf("%s[%s]", pathPrefix, stringKeys[index])
				if !iterValue(value, newPath) {
					return false
				}
			}
			return true
		}

		// Iterate over the values of a slice or array.
		iterSliceOrArray = func(v reflect.Value, pathPrefix string) bool {
			for ii := 0; ii < v.Len(); ii++ {
				newPath := fmt.Sprintf("%s[%d]", pathPrefix, ii)
				if !iterValue(v.Index(ii), newPath) {
					return false
				}
			}
			return true
		}

		// Iterate over the fields of a struct, in the order they are declared.
		iterStruct = func(v reflect.Value, path string) bool {
			t := v.Type()
			numFields := t.NumField()
			for fieldIdx := range numFields {
				field := v.Field(fieldIdx)
				newPath := path
				if path != "" {
					newPath += "."
				}
				newPath += t.Field(fieldIdx).Name
				if !iterValue(field, newPath) {
					return false
				}
			}
			return true
		}

		// Iterate over one value.
		iterValue = func(v reflect.Value, path string) bool {
			switch v.Kind() {
			case reflect.Ptr:
				if v.IsNil() {
					return true
				}
				if !checkPtr(v.Pointer()) {
					return true
				}
				elem := v.Elem()
				if elem.Type() == variableType {
					if !v.CanInterface() {
						return yield(PathAndVariable{},
							errors.Errorf("model has a Variable in an unexported field, at path %q -- export the field so it can be reached", path))
					}
					return yield(PathAndVariable{Path: path, Variable: v.Interface().(*Variable)}, nil)
				}
				return iterValue(elem, path)

			case reflect.Interface:
				if v.IsNil() {
					return true
				}
				return iterValue(v.Elem(), path)

			case reflect.Struct:
				if v.Type() == variableType {
					return yield(PathAndVariable{},
						errors.Errorf("model has a Variable held by value, at path %q -- always use *Variable, by reference", path))
				}
				return iterStruct(v, path)

			case reflect.Slice, reflect.Array:
				return iterSliceOrArray(v, path)

			case reflect.Map:
				return iterMap(v, path)

			default:
				return true
			}
		}

		// Start recursive descent from root.
		iterValue(reflect.ValueOf(model), "")
	}
}

// mapKeyToString converts a map key to the string used in variable paths.
// Only string and number keys are supported.
func mapKeyToString(k reflect.Value) (string, error) {
	switch k.Kind() {
	case reflect.String:
		return k.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fmt.Sprintf("%d", k.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fmt.Sprintf("%d", k.Uint()), nil
	default:
		return "", errors.Errorf("map key type %v not supported", k.Type())
	}
}

// Variables returns an iterator over the model's non-nil variables, in the
// same deterministic order as NamedVariables, but without the paths.
//
// It panics if the model is invalid -- see NamedVariables for the error cases.
func Variables(model any) iter.Seq[*Variable] {
	return func(yield func(*Variable) bool) {
		for pv, err := range NamedVariables(model) {
			if err != nil {
				exceptions.Panicf("nn.Variables: %v", err)
			}
			if !yield(pv.Variable) {
				return
			}
		}
	}
}

// TrainableVariables returns the model's trainable variables, in the
// deterministic order of NamedVariables. This is what optimizers update.
func TrainableVariables(model any) []*Variable {
	var trainable []*Variable
	for v := range Variables(model) {
		if v.IsTrainable() {
			trainable = append(trainable, v)
		}
	}
	return trainable
}

// NumVariables returns the number of non-nil variables in the model.
func NumVariables(model any) int {
	count := 0
	for range Variables(model) {
		count++
	}
	return count
}

// NumParams returns the summed-up size (number of scalar parameters) of all
// the model's variables. It ignores the DType, so a Float64 parameter counts
// as much as a Uint8 one.
func NumParams(model any) int {
	total := 0
	for v := range Variables(model) {
		total += v.Shape().Size()
	}
	return total
}

// Memory returns the total number of bytes summed across all the model's
// variables. It does not include associated pointers and structures, just the
// bytes used by the raw data.
//
// Example:
//
//	fmt.Printf("Model memory usage: %s\n", humanize.Bytes(uint64(nn.Memory(model))))
func Memory(model any) uintptr {
	total := uintptr(0)
	for v := range Variables(model) {
		total += v.Shape().Memory()
	}
	return total
}

// BuildLayers builds every not-yet-built Builder found in the model, walking
// it the same way NamedVariables does, and calling Build(input) on each. Once
// a Builder is found the walk does not descend into it: the builder owns
// building its internals (e.g. a Sequential builds its enclosed layers with
// the shapes they will actually see).
//
// All top-level builders found are built with the same input shape, so this
// is meant for models whose builders all take the model input -- a single
// layer, a Sequential, or a wrapper struct around one pipeline. Models with
// several stages of different dimensions should instead build the stages
// individually, or just let the first Call do the building.
//
// It panics if an unbuilt Builder is found in an unexported field.
func BuildLayers(model any, input shapes.Shape) {
	seen := sets.Make[uintptr]()
	var visit func(v reflect.Value, path string)
	visit = func(v reflect.Value, path string) {
		switch v.Kind() {
		case reflect.Ptr:
			if v.IsNil() || seen.Has(v.Pointer()) {
				return
			}
			seen.Insert(v.Pointer())
			if v.Type().Implements(builderType) {
				if !v.CanInterface() {
					exceptions.Panicf(
						"nn.BuildLayers: layer at path %q is in an unexported field, it cannot be reached to be built", path)
				}
				builder := v.Interface().(Builder)
				if !builder.Built() {
					builder.Build(input)
				}
				return
			}
			visit(v.Elem(), path)

		case reflect.Interface:
			if v.IsNil() {
				return
			}
			visit(v.Elem(), path)

		case reflect.Struct:
			t := v.Type()
			for fieldIdx := range t.NumField() {
				newPath := path
				if path != "" {
					newPath += "."
				}
				newPath += t.Field(fieldIdx).Name
				visit(v.Field(fieldIdx), newPath)
			}

		case reflect.Slice, reflect.Array:
			for ii := 0; ii < v.Len(); ii++ {
				visit(v.Index(ii), fmt.Sprintf("%s[%d]", path, ii))
			}

		case reflect.Map:
			if v.IsNil() {
				return
			}
			originalKeys := v.MapKeys()
			stringKeys := make([]string, len(originalKeys))
			for ii, k := range originalKeys {
				str, err := mapKeyToString(k)
				if err != nil {
					exceptions.Panicf("nn.BuildLayers: %v at path %q", err, path)
				}
				stringKeys[ii] = str
			}
			indices := xslices.Iota(0, len(originalKeys))
			slices.SortFunc(indices, func(i, j int) int { return cmp.Compare(stringKeys[i], stringKeys[j]) })
			for _, index := range indices {
				visit(v.MapIndex(originalKeys[index]), fmt.Sprintf("%s[%s]", path, stringKeys[index]))
			}

		default:
		}
	}
	visit(reflect.ValueOf(model), "")
}
