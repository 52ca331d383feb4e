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

// oneShotSeq yields a single (outputs, nil) result then terminates.
type oneShotSeq struct {
	outputs []Artefact
	done    bool
}

func (s *oneShotSeq) Next(ctx context.Context) (IterationResult, bool, error) {
	if s.done {
		return IterationResult{}, false, nil
	}
	s.done = true
	return IterationResult{Outputs: s.outputs}, true, nil
}

// doubler is a real Method: it multiplies its single int input by two.
type doubler struct{}

func (doubler) Name() string { return "doubler" }
func (doubler) Execute(ctx context.Context, _ Progress, inputs []Artefact, _ Checkpoint) (Sequence, error) {
	n := inputs[0].(int)
	return &oneShotSeq{outputs: []Artefact{n * 2}}, nil
}
func (doubler) Reproduce(ctx context.Context, inputs []Artefact, _ Checkpoint) ([]Artefact, error) {
	n := inputs[0].(int)
	return []Artefact{n * 2}, nil
}
func (doubler) NumInputs() int  { return 1 }
func (doubler) NumOutputs() int { return 1 }

// constant is a real Method with no inputs that always emits the same
// value.
type constant struct{ v Artefact }

func (c constant) Name() string { return "constant" }
func (c constant) Execute(ctx context.Context, _ Progress, _ []Artefact, _ Checkpoint) (Sequence, error) {
	return &oneShotSeq{outputs: []Artefact{c.v}}, nil
}
func (c constant) Reproduce(ctx context.Context, _ []Artefact, _ Checkpoint) ([]Artefact, error) {
	return []Artefact{c.v}, nil
}
func (constant) NumInputs() int  { return 0 }
func (constant) NumOutputs() int { return 1 }

func TestEngineRunsTwoVertexChainToCompletion(t *testing.T) {
	a := &Vertex{Name: "A", Method: constant{v: 21}}
	b := &Vertex{Name: "B", Method: doubler{}}
	g := NewGraph("chain")
	g.AddVertex(a)
	g.AddVertex(b)
	g.AddEdge(a, b, &Edge{OutputIndex: 0, PortIndex: 0, Kind: OneToOne})

	pool := NewWorkerPool(2)
	e := NewEngine(NewState(g), pool)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)
	defer e.Close()

	// Start's own Bootstrap message drives the initial reclassification: A
	// has no inputs and becomes CanStart, the Delay action posts Start,
	// Execute runs constant{21}, then reclassification promotes B, runs
	// doubler, completes.

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for B to complete; last state: %+v", e.State().Flow.Get(b, mdmap.Index{}).Status)
		case <-time.After(5 * time.Millisecond):
			st := e.State().Flow.Get(b, mdmap.Index{}).Status
			if st.Kind == KindComplete {
				if len(st.Output) != 1 || st.Output[0] != 42 {
					t.Fatalf("B: want output [42], got %#v", st.Output)
				}
				return
			}
		}
	}
}
