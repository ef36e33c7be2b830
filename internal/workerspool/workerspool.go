// Copyright 2026 The Sprout Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool provides a pool of goroutine workers with a soft limit on parallelism.
//
// It is used by the ops package to parallelize the larger numeric kernels (matrix multiplication in
// particular) without oversubscribing the CPU when several operations run concurrently.
package workerspool

import (
	"runtime"
	"sync"
)

// Pool coordinates a maximum number of concurrently running tasks.
//
// The limit is a soft target: the number of goroutines alive can be higher, because of tasks
// temporarily waiting on each other.
type Pool struct {
	// maxParallelism is a soft target on the limit of parallel work to do.
	maxParallelism int

	mu         sync.Mutex
	cond       sync.Cond // Signaled whenever numRunning is decreased.
	numRunning int
}

// New returns a new Pool of workers with the default parallelism (runtime.NumCPU()).
func New() *Pool {
	w := &Pool{}
	w.maxParallelism = runtime.NumCPU()
	w.cond = sync.Cond{L: &w.mu}
	return w
}

// IsEnabled returns whether parallelism is enabled (maxParallelism is != 0).
func (w *Pool) IsEnabled() bool {
	return w.maxParallelism != 0
}

// MaxParallelism is a soft target for parallelism (the limit of goroutines is higher than this).
// If set to 0 parallelism is disabled.
// If set to -1 parallelism is unlimited.
func (w *Pool) MaxParallelism() int {
	return w.maxParallelism
}

// SetMaxParallelism sets the maxParallelism.
//
// Only change the parallelism before any workers start running. If changed during the execution
// the behavior is undefined.
func (w *Pool) SetMaxParallelism(maxParallelism int) {
	w.maxParallelism = maxParallelism
}

const goroutineToParallelismRatio = 2

// lockedIsFull returns whether all available workers are in use.
//
// It must be called with Pool.mu acquired.
func (w *Pool) lockedIsFull() bool {
	if w.maxParallelism == 0 {
		return true
	} else if w.maxParallelism < 0 {
		return false
	}
	return w.numRunning >= goroutineToParallelismRatio*w.maxParallelism
}

// WaitToStart waits until there is a worker available, and then runs the task on a separate
// goroutine. It doesn't wait for the task to finish.
//
// If parallelism is disabled (maxParallelism is 0), it runs the task inline instead, and only
// returns when it is finished.
func (w *Pool) WaitToStart(task func()) {
	if w.maxParallelism < 0 {
		go task()
		return

	} else if w.maxParallelism == 0 {
		// No parallelism, run inline.
		task()
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for w.lockedIsFull() {
		w.cond.Wait()
	}
	w.lockedRunTaskInGoroutine(task)
}

// lockedRunTaskInGoroutine runs the task and keeps tabs on w.numRunning.
//
// It must be called with Pool.mu acquired.
func (w *Pool) lockedRunTaskInGoroutine(task func()) {
	w.numRunning++
	go func() {
		task()
		w.mu.Lock()
		w.numRunning--
		w.cond.Signal()
		w.mu.Unlock()
	}()
}

// Saturate starts as many copies of task as the pool's parallelism allows, and waits until all of
// them return.
//
// It is meant for tasks that consume work items from a shared channel: each copy of the task loops
// until the channel is drained, so the work gets split among the available workers.
//
// If parallelism is disabled, the task is run once, inline.
func (w *Pool) Saturate(task func()) {
	numTasks := w.maxParallelism
	if numTasks == 0 {
		task()
		return
	}
	if numTasks < 0 {
		numTasks = runtime.NumCPU()
	}
	var wg sync.WaitGroup
	for range numTasks {
		wg.Add(1)
		w.WaitToStart(func() {
			defer wg.Done()
			task()
		})
	}
	wg.Wait()
}
