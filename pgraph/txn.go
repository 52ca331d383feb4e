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

import "fmt"

// op is a single queued graph mutation with its inverse, used so a Txn can
// roll itself back if a later op in the same batch fails.
type op interface {
	fmt.Stringer
	do(*Graph) error
	undo(*Graph) error
}

type opAddVertex struct{ v Vertex }

func (o *opAddVertex) String() string      { return "addVertex(" + o.v.String() + ")" }
func (o *opAddVertex) do(g *Graph) error   { g.AddVertex(o.v); return nil }
func (o *opAddVertex) undo(g *Graph) error { g.DeleteVertex(o.v); return nil }

type opDeleteVertex struct{ v Vertex }

func (o *opDeleteVertex) String() string    { return "deleteVertex(" + o.v.String() + ")" }
func (o *opDeleteVertex) do(g *Graph) error { g.DeleteVertex(o.v); return nil }
func (o *opDeleteVertex) undo(g *Graph) error {
	g.AddVertex(o.v)
	return nil
}

type opAddEdge struct {
	v1, v2 Vertex
	e      Edge
}

func (o *opAddEdge) String() string {
	return "addEdge(" + o.v1.String() + " -> " + o.v2.String() + ")"
}
func (o *opAddEdge) do(g *Graph) error   { g.AddEdge(o.v1, o.v2, o.e); return nil }
func (o *opAddEdge) undo(g *Graph) error { g.DeleteEdge(o.v1, o.v2); return nil }

type opDeleteEdge struct {
	v1, v2 Vertex
	prev   Edge // the edge we removed, so undo can restore it
}

func (o *opDeleteEdge) String() string {
	return "deleteEdge(" + o.v1.String() + " -> " + o.v2.String() + ")"
}
func (o *opDeleteEdge) do(g *Graph) error {
	o.prev = g.FindEdge(o.v1, o.v2)
	g.DeleteEdge(o.v1, o.v2)
	return nil
}
func (o *opDeleteEdge) undo(g *Graph) error {
	if o.prev == nil {
		return nil
	}
	g.AddEdge(o.v1, o.v2, o.prev)
	return nil
}

// Txn batches a set of graph mutations so that they either all apply or, if
// one of them errors, all of the ones that already ran are undone. This is
// the primitive that a dataflow Alter message is built on: a graph change is
// never observed half-applied.
type Txn struct {
	graph *Graph
	ops   []op
}

// Txn starts a new transaction against g.
func (g *Graph) Txn() *Txn {
	return &Txn{graph: g}
}

// AddVertex queues a vertex addition.
func (t *Txn) AddVertex(v Vertex) *Txn {
	t.ops = append(t.ops, &opAddVertex{v: v})
	return t
}

// AddEdge queues an edge addition.
func (t *Txn) AddEdge(v1, v2 Vertex, e Edge) *Txn {
	t.ops = append(t.ops, &opAddEdge{v1: v1, v2: v2, e: e})
	return t
}

// DeleteVertex queues a vertex removal.
func (t *Txn) DeleteVertex(v Vertex) *Txn {
	t.ops = append(t.ops, &opDeleteVertex{v: v})
	return t
}

// DeleteEdge queues an edge removal.
func (t *Txn) DeleteEdge(v1, v2 Vertex) *Txn {
	t.ops = append(t.ops, &opDeleteEdge{v1: v1, v2: v2})
	return t
}

// Commit applies every queued op in order. If one fails, every op that ran
// before it is undone in reverse order and the error is returned; the graph
// is left exactly as it was before Commit was called.
func (t *Txn) Commit() error {
	applied := make([]op, 0, len(t.ops))
	for _, o := range t.ops {
		if err := o.do(t.graph); err != nil {
			for i := len(applied) - 1; i >= 0; i-- {
				_ = applied[i].undo(t.graph)
			}
			return fmt.Errorf("pgraph: txn failed at %s: %w", o, err)
		}
		applied = append(applied, o)
	}
	t.ops = nil
	return nil
}
