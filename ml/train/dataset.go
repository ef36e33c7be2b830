// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package train

import (
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/sprout-ml/sprout/types/tensors"
	"github.com/sprout-ml/sprout/types/xslices"
)

// Dataset is the interface through which Loop and Trainer consume data.
type Dataset interface {
	// Name identifies the dataset in error messages and reports.
	Name() string

	// Yield returns the next batch of inputs and labels. It returns io.EOF at
	// the end of an epoch -- and any other error interrupts training.
	Yield() (inputs, labels *tensors.Tensor, err error)

	// Reset restarts the dataset from the beginning. Yield can be called again
	// after it returned io.EOF.
	Reset()
}

// isEndOfDataset returns whether the error signals a normal end of the dataset.
func isEndOfDataset(err error) bool {
	return errors.Is(err, io.EOF)
}

// InMemoryDataset holds a fixed set of examples in two tensors (inputs and
// labels, matched on their leading axis) and yields them in batches. By
// default it yields the examples in order and ends (io.EOF) after one pass --
// see Shuffle, BatchSize and Infinite.
//
// It implements train.Dataset. It is not safe for concurrent use.
type InMemoryDataset struct {
	name           string
	inputs, labels *tensors.Tensor
	numExamples    int

	batchSize      int
	dropIncomplete bool
	shuffle        bool
	infinite       bool
	rng            *rand.Rand

	order []int // Yield order of the examples, re-shuffled at each epoch.
	next  int   // Position in order of the next example to yield.
}

// InMemoryFromData creates an InMemoryDataset from the given inputs and labels:
// tensors (or Go slices, converted with tensors.FromAnyValue) whose leading
// axis enumerates the examples. Both must have the same number of examples.
func InMemoryFromData(name string, inputs, labels any) (ds *InMemoryDataset, err error) {
	var inputsT, labelsT *tensors.Tensor
	err = exceptions.TryCatch[error](func() {
		inputsT = tensors.FromAnyValue(inputs)
		labelsT = tensors.FromAnyValue(labels)
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "InMemoryFromData(%q): failed to convert data to tensors", name)
	}
	if inputsT.Rank() == 0 || labelsT.Rank() == 0 {
		return nil, errors.Errorf("InMemoryFromData(%q): inputs and labels must have a leading examples axis, got %s and %s",
			name, inputsT.Shape(), labelsT.Shape())
	}
	if inputsT.Shape().Dim(0) != labelsT.Shape().Dim(0) {
		return nil, errors.Errorf("InMemoryFromData(%q): inputs have %d examples, labels have %d",
			name, inputsT.Shape().Dim(0), labelsT.Shape().Dim(0))
	}
	ds = &InMemoryDataset{
		name:        name,
		inputs:      inputsT,
		labels:      labelsT,
		numExamples: inputsT.Shape().Dim(0),
		batchSize:   1,
	}
	ds.Reset()
	return ds, nil
}

// Name implements train.Dataset.
func (ds *InMemoryDataset) Name() string { return ds.name }

// NumExamples stored in the dataset.
func (ds *InMemoryDataset) NumExamples() int { return ds.numExamples }

// BatchSize configures the datasets to yield batches of the given size.
// dropIncompleteBatch configures whether a last smaller batch is yielded or
// dropped, when the number of examples is not divisible by the batch size.
//
// It returns the dataset, so calls can be cascaded.
func (ds *InMemoryDataset) BatchSize(batchSize int, dropIncompleteBatch bool) *InMemoryDataset {
	if batchSize <= 0 {
		exceptions.Panicf("InMemoryDataset(%q).BatchSize: batchSize must be > 0, got %d", ds.name, batchSize)
	}
	ds.batchSize = batchSize
	ds.dropIncomplete = dropIncompleteBatch
	return ds
}

// Shuffle configures the dataset to yield the examples in random order,
// reshuffled at every epoch. See WithRand to make it deterministic.
//
// It returns the dataset, so calls can be cascaded.
func (ds *InMemoryDataset) Shuffle() *InMemoryDataset {
	ds.shuffle = true
	ds.shuffleLocked()
	return ds
}

// WithRand sets the random number generator used by Shuffle, for
// reproducibility. The default is time-seeded.
//
// It returns the dataset, so calls can be cascaded.
func (ds *InMemoryDataset) WithRand(rng *rand.Rand) *InMemoryDataset {
	ds.rng = rng
	if ds.shuffle {
		ds.shuffleLocked()
	}
	return ds
}

// Infinite configures whether the dataset loops indefinitely, instead of
// ending (io.EOF) after each pass over the examples. Infinite datasets are
// what Loop.RunSteps expects.
//
// It returns the dataset, so calls can be cascaded.
func (ds *InMemoryDataset) Infinite(infinite bool) *InMemoryDataset {
	ds.infinite = infinite
	return ds
}

// Reset implements train.Dataset.
func (ds *InMemoryDataset) Reset() {
	ds.next = 0
	if ds.order == nil {
		ds.order = xslices.Iota(0, ds.numExamples)
	}
	if ds.shuffle {
		ds.shuffleLocked()
	}
}

func (ds *InMemoryDataset) shuffleLocked() {
	if ds.rng == nil {
		ds.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if ds.order == nil {
		ds.order = xslices.Iota(0, ds.numExamples)
	}
	ds.rng.Shuffle(ds.numExamples, func(i, j int) {
		ds.order[i], ds.order[j] = ds.order[j], ds.order[i]
	})
}

// Yield implements train.Dataset.
func (ds *InMemoryDataset) Yield() (inputs, labels *tensors.Tensor, err error) {
	remaining := ds.numExamples - ds.next
	if remaining <= 0 || (remaining < ds.batchSize && ds.dropIncomplete) {
		if !ds.infinite {
			return nil, nil, io.EOF
		}
		ds.Reset()
		remaining = ds.numExamples
	}
	take := min(ds.batchSize, remaining)
	indices := ds.order[ds.next : ds.next+take]
	ds.next += take
	inputs = gatherExamples(ds.inputs, indices)
	labels = gatherExamples(ds.labels, indices)
	return
}

// String implements fmt.Stringer.
func (ds *InMemoryDataset) String() string {
	return fmt.Sprintf("InMemoryDataset(%q, %d examples)", ds.name, ds.numExamples)
}

// gatherExamples copies the rows (leading-axis entries) of t selected by
// indices into a new tensor. Rows are contiguous in the row-major flat data,
// so each is copied as a block of bytes.
func gatherExamples(t *tensors.Tensor, indices []int) *tensors.Tensor {
	shape := t.Shape().Clone()
	shape.Dimensions[0] = len(indices)
	output := tensors.FromShape(shape)
	bytesPerRow := int(t.Shape().Memory()) / t.Shape().Dim(0)
	t.ConstBytes(func(data []byte) {
		output.MutableBytes(func(outputData []byte) {
			for ii, index := range indices {
				copy(outputData[ii*bytesPerRow:(ii+1)*bytesPerRow],
					data[index*bytesPerRow:(index+1)*bytesPerRow])
			}
		})
	})
	return output
}
