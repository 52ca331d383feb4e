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

// Package dflow implements a dataflow execution engine: a runtime that
// evaluates a DAG of methods connected by typed artefact edges, including
// vectorized scatter/reduce/collect fan-out, iterative methods with
// resumable checkpoints, and live graph alteration while running.
//
// The package is organized the way the teacher's dage engine is: one
// mid-sized package holding the graph, the per-vertex state, the pure
// transition/analysis functions, and the concurrent runtime that drives
// them, rather than splitting each into its own tiny package.
package dflow

import (
	"fmt"

	"github.com/yuhangwang/dflow/pgraph"
)

// ConnectionKind describes how values flow across an edge between two
// vertices.
type ConnectionKind int

const (
	// OneToOne passes a single artefact straight through, index for
	// index.
	OneToOne ConnectionKind = iota
	// Scatter fans a single artefact out into one slice per element,
	// adding one dimension to the downstream vertex's index.
	Scatter
	// Reduce is the inverse of Scatter: it gathers every sibling slice
	// produced under one scatter branch into a single artefact.
	Reduce
	// Collect feeds an array input port from several edges: each Collect
	// edge supplies one element taken at the downstream slice's own
	// index, and the elements are ordered by the edges' CollectIndex.
	Collect
)

// String renders the connection kind for logs and Graphviz labels.
func (k ConnectionKind) String() string {
	switch k {
	case OneToOne:
		return "one-to-one"
	case Scatter:
		return "scatter"
	case Reduce:
		return "reduce"
	case Collect:
		return "collect"
	default:
		return fmt.Sprintf("ConnectionKind(%d)", int(k))
	}
}

// Vertex is one method instance in the graph. It implements pgraph.Vertex.
type Vertex struct {
	// Name uniquely identifies this vertex within a graph.
	Name string
	// Method is the execute/reproduce contract this vertex runs.
	Method Method
}

// String satisfies pgraph.Vertex and is used as this vertex's identity for
// debug output; vertex identity in the graph is itself (pointer equality),
// not this string.
func (v *Vertex) String() string {
	return v.Name
}

// Edge connects two vertices at a positional input port on the downstream
// side, with a connection kind describing how the dimensionality changes.
type Edge struct {
	// OutputIndex is the index into the upstream method's output list
	// that this edge reads from.
	OutputIndex int
	// PortIndex is the index into the downstream method's input list that
	// this edge feeds.
	PortIndex int
	Kind      ConnectionKind
	// CollectIndex is this edge's position within its Collect port; only
	// meaningful when Kind == Collect, since several Collect edges share
	// one input port.
	CollectIndex int
}

// String satisfies pgraph.Edge.
func (e *Edge) String() string {
	if e.Kind == Collect {
		return fmt.Sprintf("in%d[%d]:%s", e.PortIndex, e.CollectIndex, e.Kind)
	}
	return fmt.Sprintf("in%d:%s", e.PortIndex, e.Kind)
}

// Graph wraps pgraph.Graph with the domain-specific vertex/edge types used
// by the engine, and keeps a by-name index for O(1) vertex lookup (callers
// such as the config loader resolve a vertex name to its *Vertex this way;
// Alter messages themselves carry *Vertex pointers).
type Graph struct {
	g        *pgraph.Graph
	byName   map[string]*Vertex
}

// NewGraph creates an empty, named dataflow graph.
func NewGraph(name string) *Graph {
	return &Graph{
		g:      pgraph.NewGraph(name),
		byName: make(map[string]*Vertex),
	}
}

// Name returns the graph's name.
func (g *Graph) Name() string { return g.g.Name() }

// Vertex looks up a vertex by name.
func (g *Graph) Vertex(name string) (*Vertex, bool) {
	v, ok := g.byName[name]
	return v, ok
}

// Vertices returns every vertex in the graph.
func (g *Graph) Vertices() []*Vertex {
	out := make([]*Vertex, 0, len(g.byName))
	for _, v := range g.byName {
		out = append(out, v)
	}
	return out
}

// AddVertex adds v to the graph. It is an error to add two vertices with
// the same name.
func (g *Graph) AddVertex(v *Vertex) error {
	if _, exists := g.byName[v.Name]; exists {
		return fmt.Errorf("dflow: duplicate vertex name %q", v.Name)
	}
	g.g.AddVertex(v)
	g.byName[v.Name] = v
	return nil
}

// DeleteVertex removes v and any edges touching it.
func (g *Graph) DeleteVertex(v *Vertex) {
	g.g.DeleteVertex(v)
	delete(g.byName, v.Name)
}

// AddEdge connects from -> to, feeding to's input port e.PortIndex.
func (g *Graph) AddEdge(from, to *Vertex, e *Edge) {
	g.g.AddEdge(from, to, e)
}

// DeleteEdge removes the edge from -> to, if any.
func (g *Graph) DeleteEdge(from, to *Vertex) {
	g.g.DeleteEdge(from, to)
}

// Incoming returns the upstream vertices feeding v, each paired with the
// edge that connects them.
func (g *Graph) Incoming(v *Vertex) map[*Vertex]*Edge {
	out := make(map[*Vertex]*Edge)
	for _, uv := range g.g.IncomingGraphVertices(v) {
		u := uv.(*Vertex)
		out[u] = g.g.FindEdge(u, v).(*Edge)
	}
	return out
}

// Outgoing returns the downstream vertices v feeds, each paired with the
// connecting edge.
func (g *Graph) Outgoing(v *Vertex) map[*Vertex]*Edge {
	out := make(map[*Vertex]*Edge)
	for _, dv := range g.g.OutgoingGraphVertices(v) {
		d := dv.(*Vertex)
		out[d] = g.g.FindEdge(v, d).(*Edge)
	}
	return out
}

// TopologicalSort returns vertices in dependency order, or an error if the
// graph has a cycle.
func (g *Graph) TopologicalSort() ([]*Vertex, error) {
	order, err := g.g.TopologicalSort()
	if err != nil {
		return nil, err
	}
	out := make([]*Vertex, len(order))
	for i, v := range order {
		out[i] = v.(*Vertex)
	}
	return out, nil
}

// Graphviz renders the graph's vertices and edges as DOT. Slice statuses
// are not included.
func (g *Graph) Graphviz() string {
	return g.g.Graphviz()
}

// pg exposes the underlying pgraph.Graph for packages (Txn construction)
// that need direct access to it.
func (g *Graph) pg() *pgraph.Graph { return g.g }
