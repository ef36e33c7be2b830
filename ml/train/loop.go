// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

package train

import (
	"math"
	"slices"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/sprout-ml/sprout/types/tensors"
)

// Priority for hooks, the lowest values are run first. Defaults to 0, but
// negative values are ok.
type Priority int

// OnStartFn is the type of OnStart hooks.
type OnStartFn func(loop *Loop, ds Dataset) error

// OnStepFn is the type of OnStep hooks. loss is the batch loss of the step
// just executed.
type OnStepFn func(loop *Loop, loss *tensors.Tensor) error

// OnEndFn is the type of OnEnd hooks. loss is the batch loss of the last step.
type OnEndFn func(loop *Loop, loss *tensors.Tensor) error

// Loop runs a training loop, invoking Trainer.TrainStep every step, and
// calling the appropriate hooks.
//
// In itself it doesn't do much, but one can attach functionality to it, like
// progress bars (commandline.AttachProgressBar), checkpointing or
// early-stopping strategies. It is simple and flexible to allow arbitrary
// tools to hook into the training loop.
//
// The public attributes are meant for reading only, don't change them.
type Loop struct {
	// Trainer associated with this loop.
	Trainer *Trainer

	// LoopStep currently being executed. Defaults to 0.
	LoopStep int

	// StartStep is the value of LoopStep at the start of a run. If
	// Loop.RunSteps is called multiple times, it is reset to the last LoopStep
	// of the previous run, so the loop picks up where it left off.
	StartStep int

	// EndStep is one-past the last step to be executed. It is -1 while the end
	// is not known, when running over a finite dataset with RunEpochs.
	EndStep int

	// Epoch is set when running Loop.RunEpochs to the current running epoch,
	// starting from 0.
	Epoch int

	// TrainStepDurations collected during training, one entry per step.
	TrainStepDurations []time.Duration

	// Registered hooks.
	onStart *priorityHooks[*hookWithName[OnStartFn]]
	onStep  *priorityHooks[*hookWithName[OnStepFn]]
	onEnd   *priorityHooks[*hookWithName[OnEndFn]]
}

// NewLoop creates a new training loop for the trainer.
func NewLoop(trainer *Trainer) *Loop {
	return &Loop{
		Trainer: trainer,
		onStart: newPriorityHooks[*hookWithName[OnStartFn]](),
		onStep:  newPriorityHooks[*hookWithName[OnStepFn]](),
		onEnd:   newPriorityHooks[*hookWithName[OnEndFn]](),
	}
}

// start of loop, called by all looping methods. It calls the OnStart hooks.
func (loop *Loop) start(ds Dataset) (err error) {
	loop.onStart.Enumerate(func(hook *hookWithName[OnStartFn]) {
		if err != nil {
			// After the first error stop.
			return
		}
		err = hook.fn(loop, ds)
		if err != nil {
			err = errors.WithMessagef(err, "OnStart(hook %q)", hook.name)
		}
	})
	return
}

// step of loop, called by all looping methods. It calls the OnStep hooks.
func (loop *Loop) step(inputs, labels *tensors.Tensor) (loss *tensors.Tensor, err error) {
	startTime := time.Now()
	loss, err = loop.Trainer.TrainStep(inputs, labels)
	loop.TrainStepDurations = append(loop.TrainStepDurations, time.Since(startTime))
	if err != nil {
		return nil, err
	}
	loop.onStep.Enumerate(func(hook *hookWithName[OnStepFn]) {
		if err != nil {
			return
		}
		err = hook.fn(loop, loss)
		if err != nil {
			err = errors.WithMessagef(err, "OnStep(hook %q)", hook.name)
		}
	})
	if err != nil {
		return nil, err
	}
	batchLoss := lossToFloat(loss)
	if math.IsNaN(batchLoss) {
		return nil, errors.Errorf("batch loss is NaN, training interrupted")
	}
	if math.IsInf(batchLoss, 0) {
		return nil, errors.Errorf("batch loss is infinity (%f), training interrupted", batchLoss)
	}
	return loss, nil
}

// end of loop, called by all looping methods. It calls the OnEnd hooks.
func (loop *Loop) end(loss *tensors.Tensor) (err error) {
	loop.onEnd.Enumerate(func(hook *hookWithName[OnEndFn]) {
		if err != nil {
			return
		}
		err = hook.fn(loop, loss)
		if err != nil {
			err = errors.WithMessagef(err, "OnEnd(hook %q)", hook.name)
		}
	})
	return
}

// RunSteps runs that many steps. StartStep and EndStep are adjusted to the
// current LoopStep, so it can be called multiple times, and it will simply
// pick up where it left off last time.
//
// It returns the loss of the last batch.
func (loop *Loop) RunSteps(ds Dataset, steps int) (loss *tensors.Tensor, err error) {
	if steps == 0 {
		return nil, nil
	}
	loop.StartStep = loop.LoopStep
	loop.EndStep = loop.LoopStep + steps
	if err = loop.start(ds); err != nil {
		return nil, err
	}
	loop.TrainStepDurations = make([]time.Duration, 0, steps)
	for loop.LoopStep = loop.StartStep; loop.LoopStep < loop.EndStep; loop.LoopStep++ {
		inputs, labels, err := ds.Yield()
		if err != nil {
			if isEndOfDataset(err) {
				return nil, errors.Errorf(
					"reached Dataset end after %d steps (requested %d steps) -- did you mean to use "+
						"an Infinite dataset, or Loop.RunEpochs instead of Loop.RunSteps?",
					loop.LoopStep-loop.StartStep, steps)
			}
			return nil, errors.WithMessagef(err, "Loop.RunSteps(%d): failed reading from Dataset", steps)
		}
		loss, err = loop.step(inputs, labels)
		if err != nil {
			return nil, errors.WithMessagef(err, "Loop.RunSteps(%d): failed TrainStep(LoopStep=%d)", steps, loop.LoopStep)
		}
	}
	if err = loop.end(loss); err != nil {
		return nil, errors.WithMessagef(err, "Loop.RunSteps(%d): failed end (LoopStep=%d)", steps, loop.LoopStep)
	}
	return loss, nil
}

// RunEpochs runs that many full passes over the dataset, which must be finite
// (Yield returns io.EOF at the end of each pass). Dataset.Reset is called
// after each epoch (including the last). EndStep starts as -1 and is adjusted
// after the first epoch, when one knows how many steps there are going to be.
//
// It returns the loss of the last batch.
func (loop *Loop) RunEpochs(ds Dataset, epochs int) (loss *tensors.Tensor, err error) {
	loop.StartStep = loop.LoopStep
	loop.EndStep = -1
	loop.Epoch = 0
	if err = loop.start(ds); err != nil {
		return nil, err
	}
	loop.TrainStepDurations = nil
	for loop.Epoch = 0; loop.Epoch < epochs; loop.Epoch++ {
		yieldsPerEpoch := 0
		for {
			inputs, labels, err := ds.Yield()
			if err != nil {
				if isEndOfDataset(err) {
					// End of epoch: estimate the new EndStep.
					loop.EndStep = loop.LoopStep + yieldsPerEpoch*(epochs-loop.Epoch-1)
					break
				}
				return nil, errors.WithMessagef(err, "Loop.RunEpochs(%d): failed reading from Dataset (LoopStep=%d)",
					epochs, loop.LoopStep)
			}
			yieldsPerEpoch++
			loss, err = loop.step(inputs, labels)
			if err != nil {
				return nil, errors.WithMessagef(err, "Loop.RunEpochs(%d): failed TrainStep(LoopStep=%d)", epochs, loop.LoopStep)
			}
			loop.LoopStep++
		}
		ds.Reset()
	}
	if err = loop.end(loss); err != nil {
		return nil, errors.WithMessagef(err, "Loop.RunEpochs(%d): failed end (LoopStep=%d)", epochs, loop.LoopStep)
	}
	return loss, nil
}

// MedianTrainStepDuration returns the median duration of each training step.
// It returns 1 millisecond if no training step was recorded, to avoid
// potential division by 0.
func (loop *Loop) MedianTrainStepDuration() time.Duration {
	if len(loop.TrainStepDurations) == 0 {
		return time.Millisecond
	}
	times := slices.Clone(loop.TrainStepDurations)
	slices.Sort(times)
	return times[len(times)/2]
}

// OnStart adds a hook with the given priority and name (for error reporting)
// to the start of a loop run.
func (loop *Loop) OnStart(name string, priority Priority, fn OnStartFn) {
	loop.onStart.Add(priority, &hookWithName[OnStartFn]{name: name, fn: fn})
}

// OnStep adds a hook with the given priority and name (for error reporting) to
// each step of a loop: fn is called after each Trainer.TrainStep.
func (loop *Loop) OnStep(name string, priority Priority, fn OnStepFn) {
	loop.onStep.Add(priority, &hookWithName[OnStepFn]{name: name, fn: fn})
}

// OnEnd adds a hook with the given priority and name (for error reporting) to
// the end of a loop run, after the last call to Trainer.TrainStep.
func (loop *Loop) OnEnd(name string, priority Priority, fn OnEndFn) {
	loop.onEnd.Add(priority, &hookWithName[OnEndFn]{name: name, fn: fn})
}

// hookWithName stores a hook name and function.
type hookWithName[F any] struct {
	name string
	fn   F
}

// priorityHooks organizes hooks of type H per priority.
type priorityHooks[H any] struct {
	hooks map[Priority][]H
}

func newPriorityHooks[H any]() *priorityHooks[H] {
	return &priorityHooks[H]{hooks: make(map[Priority][]H)}
}

// Add hook at the given priority.
func (h *priorityHooks[H]) Add(priority Priority, hook H) {
	h.hooks[priority] = append(h.hooks[priority], hook)
}

// Enumerate calls fn for all registered hooks in priority order. Hooks with
// the same priority run in registration order.
func (h *priorityHooks[H]) Enumerate(fn func(hook H)) {
	keys := make([]Priority, 0, len(h.hooks))
	for key := range h.hooks {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, key := range keys {
		for _, hook := range h.hooks[key] {
			fn(hook)
		}
	}
}
