// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package checkpoints

import (
	"github.com/pkg/errors"

	"github.com/sprout-ml/sprout/types/tensors"
)

// SavedVariable is one variable read from a checkpoint, detached from any
// model. See Inspect.
type SavedVariable struct {
	// Path of the variable in the model it was saved from.
	Path string

	// Name and Scope of the nn.Variable.
	Name, Scope string

	// Trainable marks whether the variable was updated by optimizers.
	Trainable bool

	// Value of the variable.
	Value *tensors.Tensor
}

// Inventory is the contents of one checkpoint, as returned by Inspect.
type Inventory struct {
	// Dir with the checkpoints, and the BaseName of the checkpoint inspected
	// (the most recent one in Dir).
	Dir, BaseName string

	// Variables stored in the checkpoint, in the deterministic model walk
	// order they were saved in.
	Variables []SavedVariable
}

// Inspect reads the most recent checkpoint in the directory without needing
// the model it was saved from: it returns every stored variable with its path,
// shape and value. This is what tools like sprout_inspect build on.
func Inspect(dir string) (*Inventory, error) {
	checkpoints, err := listCheckpointsInDir(dir)
	if err != nil {
		return nil, err
	}
	if len(checkpoints) == 0 {
		return nil, errors.Errorf("no checkpoint found in %q", dir)
	}
	baseName := checkpoints[len(checkpoints)-1]
	serialized, data, err := readCheckpoint(dir, baseName)
	if err != nil {
		return nil, err
	}
	inventory := &Inventory{Dir: dir, BaseName: baseName}
	for _, sv := range serialized.Variables {
		value, err := tensorFromStored(&sv, data)
		if err != nil {
			return nil, errors.WithMessagef(err, "checkpoint %q", baseName)
		}
		inventory.Variables = append(inventory.Variables, SavedVariable{
			Path:      sv.Path,
			Name:      sv.Name,
			Scope:     sv.Scope,
			Trainable: sv.Trainable,
			Value:     value,
		})
	}
	return inventory, nil
}
