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
)

// StateChange bundles one transition's resulting State with the changes
// that produced it, the shape the Engine's changes stream publishes.
type StateChange struct {
	State   State
	Changes map[*Vertex]*VertexChanges
	// Kind names the Message that produced this transition, per
	// messageKind, for metrics labeling.
	Kind string
}

// Engine is Component G: it wires the state machine (D) through the change
// analyser (E) into the runtime (F), feeds the runtime's outgoing messages
// back into the state machine (closing D→E→F→D), and exposes observable
// streams for state, changes, and progress, per spec.md §4.5.
//
// Modeled on the teacher's dage.Engine: a single internal message channel
// serialises every external Alter and internal completion signal, and the
// processing loop runs on its own goroutine started by Run (here: Start).
type Engine struct {
	Logf func(format string, v ...interface{})

	runtime *Runtime

	mu    sync.Mutex
	state State

	msgChan chan Message

	stateChan    chan State
	progressChan chan ProgressEvent

	subsMu      sync.Mutex
	changesSubs []chan StateChange

	startedChan chan struct{}
	startOnce   sync.Once

	closedChan  chan struct{}
	closeOnce   sync.Once
	stoppedChan chan struct{} // closed once loop has exited, any cause
}

// NewEngine constructs a suspended Engine over the given initial state and
// scheduler. No changes are emitted until Start is called, matching
// spec.md §4.1's "the machine is created suspended".
func NewEngine(initial State, scheduler Scheduler) *Engine {
	e := &Engine{
		state:        initial,
		msgChan:      make(chan Message, 64),
		stateChan:    make(chan State, 1),
		progressChan: make(chan ProgressEvent, 64),
		startedChan:  make(chan struct{}),
		closedChan:   make(chan struct{}),
		stoppedChan:  make(chan struct{}),
		Logf:         func(string, ...interface{}) {},
	}
	e.runtime = NewRuntime(scheduler, e.post, e.reportProgress)
	return e
}

// post enqueues a message generated by the runtime back onto the single
// serialisation point, per spec.md §5 ("Runtime... initiates concurrent
// work but does not read/write shared state... except via the message
// queue").
func (e *Engine) post(m Message) {
	select {
	case e.msgChan <- m:
	case <-e.closedChan:
	}
}

func (e *Engine) reportProgress(ev ProgressEvent) {
	select {
	case e.progressChan <- ev:
	case <-e.closedChan:
	default:
		// Progress is best-effort; a full channel means no one is
		// listening right now, and dropping a sample is harmless.
	}
}

// Start transitions the suspended engine to active: the processing
// goroutine begins consuming e.msgChan, and a Bootstrap message is enqueued
// so the installed snapshot's initial reclassification runs without waiting
// for an external message — per spec.md §4.1/§4.5, activating a suspended
// machine must emit the installed graph's change set (roots with no inputs
// become CanStart) on its own. Calling it more than once has no further
// effect.
func (e *Engine) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		close(e.startedChan)
		go e.loop(ctx)
		e.msgChan <- &Bootstrap{}
	})
}

func (e *Engine) loop(ctx context.Context) {
	defer e.stop()
	for {
		select {
		case <-ctx.Done():
			e.runtime.Close()
			return
		case <-e.closedChan:
			e.runtime.Close()
			return
		case m := <-e.msgChan:
			e.mu.Lock()
			next, changes := Transition(e.state, m)
			e.state = next
			cur := e.state
			e.mu.Unlock()

			if len(changes) > 0 {
				e.Logf("transition produced %d vertex change(s)", len(changes))
				e.publish(StateChange{State: cur, Changes: changes, Kind: messageKind(m)})
				// Best-effort: stateChan holds one snapshot; while it is
				// full, newer snapshots are dropped rather than the loop
				// blocking on it.
				select {
				case e.stateChan <- cur:
				default:
				}
				for _, action := range Analyse(cur, changes) {
					e.runtime.Perform(cur, action)
				}
			}
		}
	}
}

// publish fans sc out to every registered subscriber. Each subscriber's
// channel is sized to absorb bursts (see Changes), but a subscriber that
// falls permanently behind sees tuples silently dropped rather than the
// loop blocking on it — per spec.md §5's "a subscriber sees exactly one
// tuple per input message", this only holds for a subscriber that keeps up.
func (e *Engine) publish(sc StateChange) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for _, ch := range e.changesSubs {
		select {
		case ch <- sc:
		default:
		}
	}
}

// stop closes every registered subscriber channel and marks the loop
// stopped, atomically with respect to Changes so a subscription racing the
// loop's exit either lands before this closes it, or is rejected outright
// instead of leaking an unread channel.
func (e *Engine) stop() {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for _, ch := range e.changesSubs {
		close(ch)
	}
	close(e.stoppedChan)
}

// SetExecuteObserver installs a callback invoked with the wall-clock
// duration of each Execute/Reproduce action the engine's runtime performs.
// Call it before Start.
func (e *Engine) SetExecuteObserver(fn func(vertex, action string, seconds float64)) {
	e.runtime.SetExecObserver(fn)
}

// State returns the engine's current immutable snapshot.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Changes registers a new subscription to the (state, changes) stream and
// returns its channel, one tuple per non-empty transition. Every
// subscriber — not just the first — receives every tuple, so multiple
// independent consumers (checkpoint persistence, metrics) can each call
// Changes() once and observe the full stream. Call it once per consumer
// before Start and hold onto the returned channel, rather than calling it
// again on every receive: each call mints a fresh, independent
// subscription. The channel is closed when the engine's processing loop
// exits.
func (e *Engine) Changes() <-chan StateChange {
	ch := make(chan StateChange, 64)
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	select {
	case <-e.stoppedChan:
		close(ch)
		return ch
	default:
	}
	e.changesSubs = append(e.changesSubs, ch)
	return ch
}

// Progress returns the observable stream of (vertex, index, fraction)
// samples.
func (e *Engine) Progress() <-chan ProgressEvent { return e.progressChan }

// AlterAsync posts an Alter message and returns a channel that receives at
// most one error (nil on success) once the alteration has been applied and
// its changes computed, per spec.md §4.5.
func (e *Engine) AlterAsync(a *Alter) <-chan error {
	if a.Reply == nil {
		a.Reply = make(chan error, 1)
	}
	<-e.startedChan
	select {
	case e.msgChan <- a:
	case <-e.closedChan:
		reply := make(chan error, 1)
		reply <- context.Canceled
		close(reply)
		return reply
	}
	return a.Reply
}

// Post enqueues any message (typically used by tests or an external driver
// replaying a persisted message log) once the engine has started.
func (e *Engine) Post(m Message) {
	<-e.startedChan
	select {
	case e.msgChan <- m:
	case <-e.closedChan:
	}
}

// Close stops the processing loop and cancels every outstanding runtime
// handle. Safe to call more than once.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.closedChan)
	})
}
