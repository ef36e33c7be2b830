// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package checkpoints

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/sprout-ml/sprout/ml/nn"
	"github.com/sprout-ml/sprout/types/tensors"
)

// This file restores stored variables into a model by path: the inverse of the
// walk done by nn.NamedVariables. Paths look like "Blocks[0].Hidden.Weights",
// with struct fields separated by "." and slice indices or map keys within
// "[...]".

// restoreVariable sets the value of the variable at sv.Path in the model.
//
// If the slot at the path holds nil -- the layer owning it was not yet built --
// a new variable is created there with the stored name, scope and trainable
// flag: layers find and validate it when they build. If a variable already
// exists, its value is replaced, which requires the shapes to match.
func restoreVariable(model any, sv *serializedVar, value *tensors.Tensor) error {
	slot, err := resolveVariableSlot(model, sv.Path)
	if err != nil {
		return errors.WithMessagef(err, "variable %q", sv.Path)
	}
	existing := slot.current()
	if existing == nil {
		newVar, err := nn.VariableWithValue(sv.Name, value)
		if err != nil {
			return errors.WithMessagef(err, "variable %q", sv.Path)
		}
		newVar.SetScope(sv.Scope)
		newVar.SetTrainable(sv.Trainable)
		if err = slot.assign(newVar); err != nil {
			return errors.WithMessagef(err, "variable %q", sv.Path)
		}
		return nil
	}
	if !existing.Shape().Equal(value.Shape()) {
		return errors.Errorf("variable %q has shape %s in the model, but shape %s in the checkpoint",
			sv.Path, existing.Shape(), value.Shape())
	}
	existing.SetValue(value)
	existing.SetTrainable(sv.Trainable)
	return nil
}

// pathStep is one element of a parsed variable path: either a struct field
// name, or a slice index / map key (within brackets in the path).
type pathStep struct {
	field string
	key   string
	isKey bool
}

func (s pathStep) String() string {
	if s.isKey {
		return "[" + s.key + "]"
	}
	return s.field
}

// parseVarPath splits a path like "Blocks[0].Hidden.Weights" into its steps.
func parseVarPath(path string) ([]pathStep, error) {
	var steps []pathStep
	rest := path
	for rest != "" {
		if rest[0] == '.' {
			rest = rest[1:]
			continue
		}
		if rest[0] == '[' {
			closing := strings.IndexByte(rest, ']')
			if closing < 0 {
				return nil, errors.Errorf("path %q has an unclosed '['", path)
			}
			steps = append(steps, pathStep{key: rest[1:closing], isKey: true})
			rest = rest[closing+1:]
			continue
		}
		end := strings.IndexAny(rest, ".[")
		if end < 0 {
			end = len(rest)
		}
		steps = append(steps, pathStep{field: rest[:end]})
		rest = rest[end:]
	}
	if len(steps) == 0 {
		return nil, errors.Errorf("path %q is empty", path)
	}
	return steps, nil
}

// variableSlot points at the place in the model that holds (or will hold) a
// *nn.Variable. For slots inside a map, assignment goes through SetMapIndex,
// since map values are not addressable.
type variableSlot struct {
	value  reflect.Value // The *nn.Variable slot itself.
	mapVal reflect.Value // Set if the slot is a map entry.
	mapKey reflect.Value
}

var variablePtrType = reflect.TypeFor[*nn.Variable]()

// current returns the variable currently in the slot, or nil.
func (s *variableSlot) current() *nn.Variable {
	if !s.value.IsValid() || s.value.IsNil() {
		return nil
	}
	return s.value.Interface().(*nn.Variable)
}

// assign stores the variable in the slot.
func (s *variableSlot) assign(v *nn.Variable) error {
	if s.mapVal.IsValid() {
		s.mapVal.SetMapIndex(s.mapKey, reflect.ValueOf(v))
		return nil
	}
	if !s.value.CanSet() {
		return errors.Errorf("slot is not settable -- is it in an unexported field?")
	}
	s.value.Set(reflect.ValueOf(v))
	return nil
}

// resolveVariableSlot walks the model following the path, and returns the slot
// of type *nn.Variable it ends at.
func resolveVariableSlot(model any, path string) (*variableSlot, error) {
	steps, err := parseVarPath(path)
	if err != nil {
		return nil, err
	}
	v := reflect.ValueOf(model)
	slot := &variableSlot{}
	for stepIdx, step := range steps {
		// Dereference pointers and interfaces before applying the step -- but
		// never dereference the *nn.Variable slot itself.
		for (v.Kind() == reflect.Ptr && v.Type() != variablePtrType) || v.Kind() == reflect.Interface {
			if v.IsNil() {
				return nil, errors.Errorf("model is nil at %q -- the enclosing layer or block must exist before loading",
					joinSteps(steps[:stepIdx]))
			}
			v = v.Elem()
		}
		slot.mapVal, slot.mapKey = reflect.Value{}, reflect.Value{}
		if step.isKey {
			switch v.Kind() {
			case reflect.Slice, reflect.Array:
				index, err := strconv.Atoi(step.key)
				if err != nil {
					return nil, errors.Errorf("path step %q indexes a %s, but is not a number", step, v.Kind())
				}
				if index < 0 || index >= v.Len() {
					return nil, errors.Errorf("index %d out of range at %q -- the model has only %d elements there",
						index, joinSteps(steps[:stepIdx]), v.Len())
				}
				v = v.Index(index)
			case reflect.Map:
				if v.IsNil() {
					return nil, errors.Errorf("model has a nil map at %q", joinSteps(steps[:stepIdx]))
				}
				key, entry, err := findMapEntry(v, step.key)
				if err != nil {
					return nil, errors.WithMessagef(err, "at %q", joinSteps(steps[:stepIdx]))
				}
				slot.mapVal, slot.mapKey = v, key
				v = entry
			default:
				return nil, errors.Errorf("path step %q expects a slice, array or map, the model has %s", step, v.Kind())
			}
		} else {
			if v.Kind() != reflect.Struct {
				return nil, errors.Errorf("path step %q expects a struct, the model has %s", step, v.Kind())
			}
			field := v.FieldByName(step.field)
			if !field.IsValid() {
				return nil, errors.Errorf("model struct %s has no field %q -- was the model structure changed since the checkpoint was saved?",
					v.Type(), step.field)
			}
			v = field
		}
	}
	if v.Type() != variablePtrType {
		return nil, errors.Errorf("path resolves to a %s, want *nn.Variable", v.Type())
	}
	slot.value = v
	return slot, nil
}

// findMapEntry finds the map key whose path representation matches keyStr.
func findMapEntry(m reflect.Value, keyStr string) (key, entry reflect.Value, err error) {
	keyType := m.Type().Key()
	switch keyType.Kind() {
	case reflect.String:
		key = reflect.ValueOf(keyStr).Convert(keyType)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intKey, atoiErr := strconv.ParseInt(keyStr, 10, 64)
		if atoiErr != nil {
			return key, entry, errors.Errorf("map key %q is not a number, map has %s keys", keyStr, keyType)
		}
		key = reflect.ValueOf(intKey).Convert(keyType)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		uintKey, atoiErr := strconv.ParseUint(keyStr, 10, 64)
		if atoiErr != nil {
			return key, entry, errors.Errorf("map key %q is not a number, map has %s keys", keyStr, keyType)
		}
		key = reflect.ValueOf(uintKey).Convert(keyType)
	default:
		return key, entry, errors.Errorf("map key type %s not supported in variable paths", keyType)
	}
	entry = m.MapIndex(key)
	if !entry.IsValid() {
		// The entry may legitimately not exist yet: return its zero value, the
		// caller assigns through SetMapIndex.
		entry = reflect.Zero(m.Type().Elem())
	}
	return key, entry, nil
}

// joinSteps renders a step prefix back into path notation, for error messages.
func joinSteps(steps []pathStep) string {
	var sb strings.Builder
	for ii, step := range steps {
		if !step.isKey && ii > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(step.String())
	}
	if sb.Len() == 0 {
		return "(model root)"
	}
	return sb.String()
}
