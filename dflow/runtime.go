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
	"sync"
	"time"

	"github.com/yuhangwang/dflow/mdmap"
)

// ProgressEvent is one sample on the Runtime's progress stream, per
// spec.md §4.4: "the runtime publishes (v, i, p) on its progress stream."
type ProgressEvent struct {
	Vertex   *Vertex
	Index    mdmap.Index
	Fraction float64
}

// handleKey is the cancellation map's key. Keyed by value (vertex pointer
// plus the index's string rendering), per spec.md §9's "use keys by value
// not by reference".
type handleKey struct {
	v   *Vertex
	idx string
}

// handle is one in-flight (or pending-delay) unit of work for a slice.
type handle struct {
	cancel context.CancelFunc
	timer  *time.Timer // non-nil only for a pending Delay
}

// DelayFunc computes the debounce interval the runtime waits before posting
// Start for a freshly-minted CanStart(t). The default, per spec.md §9's
// open question, is always zero.
type DelayFunc func(v *Vertex, idx mdmap.Index, t TimeIndex) time.Duration

// ZeroDelay is the default DelayFunc: it posts Start immediately.
func ZeroDelay(*Vertex, mdmap.Index, TimeIndex) time.Duration { return 0 }

// Runtime is Component F: it executes Actions emitted by Analyse via a
// Scheduler, keeps the (vertex, index) -> cancellation-handle map described
// in spec.md §4.4/§9, and posts Start/Iteration/Succeeded/Failed messages
// back to whoever drives the state machine (normally the Engine façade).
type Runtime struct {
	scheduler   Scheduler
	delay       DelayFunc
	post        func(Message)
	progress    func(ProgressEvent)
	execObserve func(vertex, action string, seconds float64)

	mu      sync.Mutex
	handles map[handleKey]*handle
}

// NewRuntime creates a Runtime. post is called (from arbitrary worker
// goroutines) whenever the runtime needs to feed a message back into the
// state machine; progress is called for every reported fraction. Both must
// be safe to call concurrently and must not block for long, since they run
// on the method's own goroutine.
func NewRuntime(scheduler Scheduler, post func(Message), progress func(ProgressEvent)) *Runtime {
	return &Runtime{
		scheduler:   scheduler,
		delay:       ZeroDelay,
		post:        post,
		progress:    progress,
		execObserve: func(string, string, float64) {},
		handles:     make(map[handleKey]*handle),
	}
}

// SetDelayFunc overrides the debounce policy used for ActionDelay.
func (r *Runtime) SetDelayFunc(fn DelayFunc) {
	if fn == nil {
		fn = ZeroDelay
	}
	r.delay = fn
}

// SetExecObserver installs a callback invoked with the wall-clock duration
// of each ActionExecute/ActionReproduce, from dispatch to its terminal
// Succeeded/Failed post, labeled by vertex name and "execute"/"reproduce".
func (r *Runtime) SetExecObserver(fn func(vertex, action string, seconds float64)) {
	if fn == nil {
		fn = func(string, string, float64) {}
	}
	r.execObserve = fn
}

func key(v *Vertex, idx mdmap.Index) handleKey {
	return handleKey{v: v, idx: idx.String()}
}

// cancelLocked cancels and forgets any existing handle for key k. Caller
// must hold r.mu.
func (r *Runtime) cancelLocked(k handleKey) {
	if h, ok := r.handles[k]; ok {
		if h.timer != nil {
			h.timer.Stop()
		}
		if h.cancel != nil {
			h.cancel()
		}
		delete(r.handles, k)
	}
}

// Perform executes one Action, per the dispatch table in spec.md §4.4.
func (r *Runtime) Perform(state State, a Action) {
	switch a.Kind {
	case ActionDelay:
		r.doDelay(a)
	case ActionExecute:
		r.doExecute(state, a)
	case ActionReproduce:
		r.doReproduce(state, a)
	case ActionStopMethod:
		r.doStop(a)
	case ActionRemove:
		r.doRemove(a)
	}
}

func (r *Runtime) doDelay(a Action) {
	k := key(a.Vertex, a.Index)
	r.mu.Lock()
	r.cancelLocked(k)
	ctx, cancel := context.WithCancel(context.Background())
	t := a.Time
	timer := time.AfterFunc(r.delay(a.Vertex, a.Index, a.Time), func() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		r.post(&Start{Vertex: a.Vertex, Index: a.Index, CanStartTime: &t})
	})
	r.handles[k] = &handle{cancel: cancel, timer: timer}
	r.mu.Unlock()
}

func (r *Runtime) doExecute(state State, a Action) {
	k := key(a.Vertex, a.Index)
	r.mu.Lock()
	r.cancelLocked(k)
	ctx, cancel := context.WithCancel(context.Background())
	r.handles[k] = &handle{cancel: cancel}
	r.mu.Unlock()

	inputs, ok := assembleInputs(state, a.Vertex, a.Index)
	if !ok {
		// Inputs went stale between the transition that emitted this
		// action and now; reclassification will have already (or will
		// shortly) moved the slice back to Incomplete, so there is
		// nothing useful to run.
		return
	}
	checkpoint := a.Checkpoint
	startTime := a.Time
	method := a.Vertex.Method

	r.scheduler.Start(func() {
		began := time.Now()
		observe := func() { r.execObserve(a.Vertex.Name, "execute", time.Since(began).Seconds()) }

		progress := ProgressFunc(func(f float64) {
			r.progress(ProgressEvent{Vertex: a.Vertex, Index: a.Index, Fraction: f})
		})
		seq, err := method.Execute(ctx, progress, inputs, checkpoint)
		if err != nil {
			observe()
			r.post(&Failed{Vertex: a.Vertex, Index: a.Index, StartTime: startTime, Err: err})
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			res, more, err := seq.Next(ctx)
			if err != nil {
				observe()
				r.post(&Failed{Vertex: a.Vertex, Index: a.Index, StartTime: startTime, Err: err})
				return
			}
			if !more {
				observe()
				r.post(&Succeeded{
					Vertex: a.Vertex, Index: a.Index, StartTime: startTime,
					Result: SucceededResult{HasData: false},
				})
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			r.post(&Iteration{
				Vertex: a.Vertex, Index: a.Index,
				Outputs: res.Outputs, Checkpoint: res.Checkpoint, StartTime: startTime,
			})
		}
	})
}

func (r *Runtime) doReproduce(state State, a Action) {
	k := key(a.Vertex, a.Index)
	r.mu.Lock()
	r.cancelLocked(k)
	ctx, cancel := context.WithCancel(context.Background())
	r.handles[k] = &handle{cancel: cancel}
	r.mu.Unlock()

	inputs, ok := assembleInputs(state, a.Vertex, a.Index)
	if !ok {
		return
	}
	checkpoint := a.Checkpoint
	startTime := a.Time
	method := a.Vertex.Method

	r.scheduler.Start(func() {
		began := time.Now()
		outputs, err := method.Reproduce(ctx, inputs, checkpoint)
		r.execObserve(a.Vertex.Name, "reproduce", time.Since(began).Seconds())
		if err != nil {
			r.post(&Failed{Vertex: a.Vertex, Index: a.Index, StartTime: startTime, Err: err})
			return
		}
		r.post(&Succeeded{
			Vertex: a.Vertex, Index: a.Index, StartTime: startTime,
			Result: SucceededResult{HasData: true, Outputs: outputs, Checkpoint: checkpoint},
		})
	})
}

func (r *Runtime) doStop(a Action) {
	r.mu.Lock()
	r.cancelLocked(key(a.Vertex, a.Index))
	r.mu.Unlock()
}

// doRemove cancels every handle belonging to the removed vertex, regardless
// of index.
func (r *Runtime) doRemove(a Action) {
	r.mu.Lock()
	for k := range r.handles {
		if k.v == a.Vertex {
			r.cancelLocked(k)
		}
	}
	r.mu.Unlock()
}

// Close cancels every outstanding handle, used on engine teardown per
// spec.md §9 ("ensure disposal on engine teardown").
func (r *Runtime) Close() {
	r.mu.Lock()
	for k := range r.handles {
		r.cancelLocked(k)
	}
	r.mu.Unlock()
}
