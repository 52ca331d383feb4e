// Mgmt
// Copyright (C) 2013-2023+ James Shubin and the project contributors
// Written by James Shubin <james@shubin.ca> and the project contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package dflow

import (
	"context"
	"runtime"

	"github.com/yuhangwang/dflow/util/semaphore"
)

// Scheduler is the abstract "start(thunk)" interface from spec.md §6: an
// asynchronous, at-most-once invoker of a parameterless thunk, responsible
// for isolating thunk panics so one failing method can't poison the rest.
type Scheduler interface {
	// Start asynchronously invokes fn. It must not block the caller on
	// fn's completion.
	Start(fn func())
}

// WorkerPool is the default Scheduler: a bounded-concurrency pool backed by
// util/semaphore, the same counting-semaphore idiom the teacher uses to cap
// concurrent resource convergence.
type WorkerPool struct {
	sem *semaphore.Semaphore
}

// NewWorkerPool creates a pool that runs at most concurrency thunks at
// once. A concurrency of 0 defaults to runtime.NumCPU(), matching spec.md
// §5's "configured concurrency cap (default: number of CPU cores)".
func NewWorkerPool(concurrency int) *WorkerPool {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &WorkerPool{sem: semaphore.New(concurrency)}
}

// Start returns at once: fn runs on its own goroutine once that goroutine
// acquires a slot (it is dropped if the pool is closed first). A panic in
// fn is recovered and discarded, so it cannot crash the process; it is not
// logged and does not become a Failed message.
func (p *WorkerPool) Start(fn func()) {
	go func() {
		if err := p.sem.Acquire(context.Background()); err != nil {
			return
		}
		defer p.sem.Release()
		defer func() {
			_ = recover()
		}()
		fn()
	}()
}

// Close releases the pool's semaphore, unblocking anything still waiting
// for a slot.
func (p *WorkerPool) Close() {
	p.sem.Close()
}
