// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"encoding/gob"
	"os"
	"reflect"

	"github.com/pkg/errors"
	"github.com/sprout-ml/sprout/types/shapes"
)

// GobSerialize the Tensor in binary format.
//
// It returns an error for I/O errors.
// It panics for invalid tensors.
func (t *Tensor) GobSerialize(encoder *gob.Encoder) (err error) {
	if t == nil {
		panic(errors.New("Tensor is nil"))
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.AssertValid()
	err = t.shape.GobSerialize(encoder)
	if err != nil {
		return
	}
	err = encoder.Encode(t.flat)
	if err != nil {
		err = errors.Wrapf(err, "failed to write Tensor data")
	}
	return
}

// GobDeserialize a Tensor from the decoder.
func GobDeserialize(decoder *gob.Decoder) (t *Tensor, err error) {
	shape, err := shapes.GobDeserialize(decoder)
	if err != nil {
		err = errors.WithMessagef(err, "failed to deserialize Tensor shape")
		return
	}
	flatPtrV := reflect.New(reflect.SliceOf(shape.DType.GoType()))
	err = decoder.Decode(flatPtrV.Interface())
	if err != nil {
		err = errors.Wrapf(err, "failed to deserialize Tensor data")
		return
	}
	flatV := flatPtrV.Elem()
	if flatV.Len() != shape.Size() {
		err = errors.Errorf("deserialized Tensor data has %d values, but shape %s requires %d values",
			flatV.Len(), shape, shape.Size())
		return
	}
	// Build new tensor using the data returned by the decoder, to avoid a copy.
	t = newTensor(shape)
	t.flat = flatV.Interface()
	return
}

// Save the Tensor to the given file path, in binary (gob) format.
//
// It returns an error for I/O errors.
// It may panic if the tensor is invalid (nil or already finalized).
func (t *Tensor) Save(filePath string) (err error) {
	t.AssertValid()
	var f *os.File
	f, err = os.Create(filePath)
	if err != nil {
		err = errors.Wrapf(err, "creating %q to save tensor", filePath)
		return
	}
	enc := gob.NewEncoder(f)
	err = t.GobSerialize(enc)
	if err != nil {
		err = errors.WithMessagef(err, "saving Tensor to %q", filePath)
		_ = f.Close()
		return
	}
	err = f.Close()
	if err != nil {
		err = errors.Wrapf(err, "closing file %q, where tensor was saved", filePath)
		return
	}
	return
}

// Load a Tensor from the file path given, in the format used by Tensor.Save.
func Load(filePath string) (t *Tensor, err error) {
	f, err := os.Open(filePath)
	if err != nil {
		err = errors.Wrapf(err, "opening %q to load Tensor", filePath)
		return
	}
	dec := gob.NewDecoder(f)
	t, err = GobDeserialize(dec)
	if err != nil {
		err = errors.WithMessagef(err, "loading Tensor from %q", filePath)
		_ = f.Close()
		return
	}
	_ = f.Close()
	return
}
