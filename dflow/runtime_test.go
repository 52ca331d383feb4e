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
	"testing"
	"time"

	"github.com/yuhangwang/dflow/mdmap"
)

// countingSeq yields `total` iterations, each carrying its 1-indexed
// iteration count as both output and checkpoint, then terminates.
type countingSeq struct {
	total, n int
}

func (s *countingSeq) Next(ctx context.Context) (IterationResult, bool, error) {
	if s.n >= s.total {
		return IterationResult{}, false, nil
	}
	s.n++
	return IterationResult{Outputs: []Artefact{s.n}, Checkpoint: s.n}, true, nil
}

// counter is an iterative Method: Execute yields total checkpoints in
// sequence (simulating a long-running computation with resumable
// progress), and Reproduce regenerates the output for a given checkpoint
// directly, as spec.md §8's iterative-checkpoint scenario requires of a
// CompleteStarted slice recovered with only a checkpoint on hand.
type counter struct{ total int }

func (c counter) Name() string { return "counter" }
func (c counter) Execute(ctx context.Context, _ Progress, _ []Artefact, checkpoint Checkpoint) (Sequence, error) {
	n := 0
	if checkpoint != nil {
		n = checkpoint.(int)
	}
	return &countingSeq{total: c.total, n: n}, nil
}
func (c counter) Reproduce(ctx context.Context, _ []Artefact, checkpoint Checkpoint) ([]Artefact, error) {
	return []Artefact{checkpoint.(int)}, nil
}
func (counter) NumInputs() int  { return 0 }
func (counter) NumOutputs() int { return 1 }

// TestEngineDrivesIterativeCheckpoints exercises spec.md §8's iterative
// scenario: Started -> Continues(1) -> Continues(2) -> ... -> Complete,
// with each Continues slice carrying the checkpoint the method yielded.
func TestEngineDrivesIterativeCheckpoints(t *testing.T) {
	v := &Vertex{Name: "C", Method: counter{total: 3}}
	g := NewGraph("iterative")
	if err := g.AddVertex(v); err != nil {
		t.Fatalf("AddVertex: %v", err)
	}

	pool := NewWorkerPool(1)
	e := NewEngine(NewState(g), pool)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)
	defer e.Close()

	// Start's own Bootstrap message drives the initial reclassification;
	// C has no inputs and becomes CanStart on its own.

	var sawContinues bool
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out; last status: %+v", e.State().Flow.Get(v, mdmap.Index{}).Status)
		case <-time.After(5 * time.Millisecond):
			st := e.State().Flow.Get(v, mdmap.Index{}).Status
			if st.Kind == KindContinues {
				sawContinues = true
			}
			if st.Kind == KindComplete {
				if !sawContinues {
					t.Fatalf("expected to observe at least one Continues status before Complete")
				}
				if len(st.Output) != 1 || st.Output[0] != 3 {
					t.Fatalf("want final output [3], got %#v", st.Output)
				}
				if st.Checkpoint != 3 {
					t.Fatalf("want final checkpoint 3, got %#v", st.Checkpoint)
				}
				return
			}
		}
	}
}

// blockingMethod runs until ctx is cancelled, signalling cancelledCh when
// that happens, so a test can observe that Remove actually tore down the
// in-flight execution rather than letting it run to completion.
type blockingMethod struct {
	cancelledCh chan struct{}
}

func (m *blockingMethod) Name() string { return "blocking" }
func (m *blockingMethod) Execute(ctx context.Context, _ Progress, _ []Artefact, _ Checkpoint) (Sequence, error) {
	return &blockingSeq{ctx: ctx, cancelledCh: m.cancelledCh}, nil
}
func (m *blockingMethod) Reproduce(context.Context, []Artefact, Checkpoint) ([]Artefact, error) {
	return nil, nil
}
func (*blockingMethod) NumInputs() int  { return 0 }
func (*blockingMethod) NumOutputs() int { return 1 }

type blockingSeq struct {
	ctx         context.Context
	cancelledCh chan struct{}
}

func (s *blockingSeq) Next(ctx context.Context) (IterationResult, bool, error) {
	<-s.ctx.Done()
	close(s.cancelledCh)
	return IterationResult{}, false, s.ctx.Err()
}

// TestAlterRemoveCancelsRunningSlice exercises spec.md §8's
// cancellation-on-remove scenario: removing a vertex while its slice is
// Started must cancel the runtime handle, and no Succeeded for that slice
// should ever reach the state machine (the vertex isn't even in the graph
// to look up anymore).
func TestAlterRemoveCancelsRunningSlice(t *testing.T) {
	cancelledCh := make(chan struct{})
	v := &Vertex{Name: "Blocker", Method: &blockingMethod{cancelledCh: cancelledCh}}
	g := NewGraph("cancel")
	if err := g.AddVertex(v); err != nil {
		t.Fatalf("AddVertex: %v", err)
	}

	pool := NewWorkerPool(1)
	e := NewEngine(NewState(g), pool)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)
	defer e.Close()

	// Start's own Bootstrap message drives Blocker to CanStart -> Start ->
	// Execute without an external nudge.

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for Blocker to start")
		case <-time.After(5 * time.Millisecond):
			if e.State().Flow.Get(v, mdmap.Index{}).Status.Kind == KindStarted {
				goto started
			}
		}
	}
started:

	reply := e.AlterAsync(&Alter{Remove: []*Vertex{v}})
	select {
	case err := <-reply:
		if err != nil {
			t.Fatalf("Alter: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for Alter reply")
	}

	select {
	case <-cancelledCh:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the running method to observe cancellation")
	}

	if _, ok := e.State().Graph.Vertex("Blocker"); ok {
		t.Fatalf("expected Blocker to be gone from the graph after remove")
	}
}
