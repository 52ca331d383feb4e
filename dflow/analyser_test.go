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
	"testing"

	"github.com/yuhangwang/dflow/mdmap"
)

func TestAnalyseCanStartProducesDelay(t *testing.T) {
	a := vertex("A", 0, 1)
	g := mustGraph(t, func(g *Graph) { g.AddVertex(a) })
	state := NewState(g)
	state, changes := Transition(state, &Bootstrap{})

	actions := Analyse(state, changes)
	if len(actions) != 1 || actions[0].Kind != ActionDelay {
		t.Fatalf("want a single Delay action, got %+v", actions)
	}
	if actions[0].Vertex != a {
		t.Fatalf("action targets wrong vertex")
	}
}

func TestAnalyseStartedProducesExecute(t *testing.T) {
	a := vertex("A", 0, 1)
	g := mustGraph(t, func(g *Graph) { g.AddVertex(a) })
	state := NewState(g)
	state, _ = Transition(state, &Bootstrap{})
	t1 := state.Flow.Get(a, mdmap.Index{}).Status.Time

	state, changes := Transition(state, &Start{Vertex: a, Index: mdmap.Index{}, CanStartTime: &t1})
	actions := Analyse(state, changes)
	if len(actions) != 1 || actions[0].Kind != ActionExecute {
		t.Fatalf("want a single Execute action, got %+v", actions)
	}
}

func TestAnalyseContinuesToCompleteProducesStopMethod(t *testing.T) {
	a := vertex("A", 0, 1)
	g := mustGraph(t, func(g *Graph) { g.AddVertex(a) })
	state := NewState(g)
	state, _ = Transition(state, &Bootstrap{})
	t1 := state.Flow.Get(a, mdmap.Index{}).Status.Time
	state, _ = Transition(state, &Start{Vertex: a, Index: mdmap.Index{}, CanStartTime: &t1})
	started := state.Flow.Get(a, mdmap.Index{}).Status.Time

	state, _ = Transition(state, &Iteration{
		Vertex: a, Index: mdmap.Index{}, StartTime: started,
		Outputs: []Artefact{1}, Checkpoint: "c1",
	})
	state, changes := Transition(state, &Succeeded{
		Vertex: a, Index: mdmap.Index{}, StartTime: started,
		Result: SucceededResult{HasData: false},
	})
	actions := Analyse(state, changes)
	found := false
	for _, act := range actions {
		if act.Kind == ActionStopMethod && act.Vertex == a {
			found = true
		}
	}
	if !found {
		t.Fatalf("want a StopMethod action when Continues completes, got %+v", actions)
	}
}

func TestAnalyseRemoveProducesRemove(t *testing.T) {
	a := vertex("A", 0, 1)
	g := mustGraph(t, func(g *Graph) { g.AddVertex(a) })
	state := NewState(g)
	reply := make(chan error, 1)
	state, changes := Transition(state, &Alter{Remove: []*Vertex{a}, Reply: reply})
	<-reply

	actions := Analyse(state, changes)
	if len(actions) != 1 || actions[0].Kind != ActionRemove || actions[0].Vertex != a {
		t.Fatalf("want a single Remove action, got %+v", actions)
	}
}
