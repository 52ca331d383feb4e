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

package pgraph

import (
	"fmt"
	"testing"

	"github.com/kylelemons/godebug/pretty"
)

type nv string

func (n nv) String() string { return string(n) }

type ne string

func (n ne) String() string { return string(n) }

func TestTopologicalSortBasic(t *testing.T) {
	g := NewGraph("t")
	a, b, c := nv("a"), nv("b"), nv("c")
	g.AddEdge(a, b, ne("ab"))
	g.AddEdge(b, c, ne("bc"))

	result, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pos := map[Vertex]int{}
	for i, v := range result {
		pos[v] = i
	}
	if pos[a] > pos[b] || pos[b] > pos[c] {
		t.Errorf("bad order: %v", result)
	}
}

func TestTopologicalSortCycle(t *testing.T) {
	g := NewGraph("t")
	a, b := nv("a"), nv("b")
	g.AddEdge(a, b, ne("ab"))
	g.AddEdge(b, a, ne("ba"))

	if _, err := g.TopologicalSort(); err == nil {
		t.Errorf("expected a cycle error, got none")
	}
}

func TestInOutDegree(t *testing.T) {
	g := NewGraph("t")
	a, b, c := nv("a"), nv("b"), nv("c")
	g.AddEdge(a, b, ne("ab"))
	g.AddEdge(a, c, ne("ac"))

	in := g.InDegree()
	out := g.OutDegree()

	if in[b] != 1 || in[c] != 1 || in[a] != 0 {
		t.Errorf("bad in-degree: %v", in)
	}
	if out[a] != 2 {
		t.Errorf("bad out-degree: %v", out)
	}

	if diff := pretty.Compare(map[Vertex]int{a: 0, b: 1, c: 1}, in); diff != "" {
		t.Errorf("in-degree diff: %s", diff)
	}
}

func TestReachability(t *testing.T) {
	g := NewGraph("t")
	a, b, c, d := nv("a"), nv("b"), nv("c"), nv("d")
	g.AddEdge(a, b, ne("ab"))
	g.AddEdge(b, c, ne("bc"))
	g.AddEdge(a, d, ne("ad"))

	path := g.Reachability(a, c)
	want := []Vertex{a, b, c}
	if fmt.Sprint(path) != fmt.Sprint(want) {
		t.Errorf("got %v, want %v", path, want)
	}

	if got := g.Reachability(c, a); len(got) != 0 {
		t.Errorf("expected no path, got %v", got)
	}
}

func TestTxnRollback(t *testing.T) {
	g := NewGraph("t")
	a, b := nv("a"), nv("b")
	g.AddVertex(a)

	failing := &failingEdge{}
	err := g.Txn().
		AddVertex(b).
		AddEdge(a, b, failing).
		Commit()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !g.HasVertex(b) {
		t.Errorf("expected b to be added")
	}

	// A txn where one op is queued to fail should leave the graph
	// untouched by the ops that ran before it.
	c := nv("c")
	txn := g.Txn().AddVertex(c)
	txn.ops = append(txn.ops, &erroringOp{})
	if err := txn.Commit(); err == nil {
		t.Fatalf("expected an error")
	}
	if g.HasVertex(c) {
		t.Errorf("expected c to be rolled back")
	}
}

type failingEdge struct{}

func (f *failingEdge) String() string { return "failing" }

type erroringOp struct{}

func (e *erroringOp) String() string    { return "erroringOp" }
func (e *erroringOp) do(g *Graph) error { return fmt.Errorf("boom") }
func (e *erroringOp) undo(g *Graph) error {
	return nil
}
