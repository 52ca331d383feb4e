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

// Package pgraph implements a small directed-graph library: vertices and
// edges are opaque interface values, so the same graph machinery backs both
// the dataflow engine's method graph and any debug/filter views of it.
//
// The shape (TopologicalSort, IncomingGraphVertices/OutgoingGraphVertices,
// Reachability, DFS) follows the venerable pattern of computing everything
// from the Adjacency map on demand rather than maintaining separate
// incremental indexes; graphs here are expected to be modified relatively
// rarely compared to how often they're walked.
package pgraph

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/iancoleman/strcase"
)

// Vertex is the minimum interface a graph node must implement. Anything
// comparable (usable as a map key) and able to name itself works.
type Vertex interface {
	fmt.Stringer
}

// Edge is the minimum interface a graph edge must implement.
type Edge interface {
	fmt.Stringer
}

// Graph is a directed graph of Vertex nodes connected by Edge values. The
// zero value is not ready to use; call NewGraph.
type Graph struct {
	name string

	mutex     *sync.RWMutex
	adjacency map[Vertex]map[Vertex]Edge
}

// NewGraph creates an empty, named graph.
func NewGraph(name string) *Graph {
	return &Graph{
		name:      name,
		mutex:     &sync.RWMutex{},
		adjacency: make(map[Vertex]map[Vertex]Edge),
	}
}

// Name returns the graph's name.
func (g *Graph) Name() string { return g.name }

// NormalizeName converts a free-form vertex label into snake_case.
func NormalizeName(s string) string {
	return strcase.ToSnake(s)
}

// Copy returns a shallow copy of the graph: vertices and edges are shared,
// but the adjacency structure is independent, so mutating the copy never
// affects the original.
func (g *Graph) Copy() *Graph {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	newGraph := NewGraph(g.name)
	for v1, x := range g.adjacency {
		if _, exists := newGraph.adjacency[v1]; !exists {
			newGraph.adjacency[v1] = make(map[Vertex]Edge)
		}
		for v2, e := range x {
			newGraph.adjacency[v1][v2] = e
		}
	}
	return newGraph
}

// AddVertex adds v to the graph if it isn't already present.
func (g *Graph) AddVertex(v Vertex) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.addVertex(v)
}

func (g *Graph) addVertex(v Vertex) {
	if _, exists := g.adjacency[v]; !exists {
		g.adjacency[v] = make(map[Vertex]Edge)
	}
}

// DeleteVertex removes v and any edges touching it.
func (g *Graph) DeleteVertex(v Vertex) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	delete(g.adjacency, v)
	for k := range g.adjacency {
		delete(g.adjacency[k], v)
	}
}

// AddEdge adds a directed edge v1 -> v2, adding either endpoint if missing.
func (g *Graph) AddEdge(v1, v2 Vertex, e Edge) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.addVertex(v1)
	g.addVertex(v2)
	g.adjacency[v1][v2] = e
}

// DeleteEdge removes the edge v1 -> v2, if any.
func (g *Graph) DeleteEdge(v1, v2 Vertex) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	if _, exists := g.adjacency[v1]; exists {
		delete(g.adjacency[v1], v2)
	}
}

// HasVertex returns whether v is present in the graph.
func (g *Graph) HasVertex(v Vertex) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	_, exists := g.adjacency[v]
	return exists
}

// FindEdge returns the edge from v1 to v2, or nil if none exists.
func (g *Graph) FindEdge(v1, v2 Vertex) Edge {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	m, exists := g.adjacency[v1]
	if !exists {
		return nil
	}
	return m[v2]
}

// NumVertices returns the number of vertices in the graph.
func (g *Graph) NumVertices() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.adjacency)
}

// Vertices returns all the vertices in the graph, in no particular order.
func (g *Graph) Vertices() []Vertex {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	result := make([]Vertex, 0, len(g.adjacency))
	for v := range g.adjacency {
		result = append(result, v)
	}
	return result
}

// VerticesSorted returns all vertices sorted by their String() form, useful
// for deterministic debug output and tests.
func (g *Graph) VerticesSorted() []Vertex {
	vs := g.Vertices()
	sort.Slice(vs, func(i, j int) bool { return vs[i].String() < vs[j].String() })
	return vs
}

// Adjacency returns the raw adjacency map. Callers must not mutate it.
func (g *Graph) Adjacency() map[Vertex]map[Vertex]Edge {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.adjacency
}

// IncomingGraphVertices returns every vertex with an edge pointing at v.
func (g *Graph) IncomingGraphVertices(v Vertex) []Vertex {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	var s []Vertex
	for k := range g.adjacency {
		if _, exists := g.adjacency[k][v]; exists {
			s = append(s, k)
		}
	}
	return s
}

// OutgoingGraphVertices returns every vertex that v has an edge pointing at.
func (g *Graph) OutgoingGraphVertices(v Vertex) []Vertex {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	var s []Vertex
	for k := range g.adjacency[v] {
		s = append(s, k)
	}
	return s
}

// GraphVertices returns the union of IncomingGraphVertices and
// OutgoingGraphVertices for v.
func (g *Graph) GraphVertices(v Vertex) []Vertex {
	var s []Vertex
	s = append(s, g.IncomingGraphVertices(v)...)
	s = append(s, g.OutgoingGraphVertices(v)...)
	return s
}

// InDegree returns, for every vertex, the count of edges pointing at it.
func (g *Graph) InDegree() map[Vertex]int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	result := make(map[Vertex]int)
	for k := range g.adjacency {
		result[k] = 0
	}
	for k := range g.adjacency {
		for z := range g.adjacency[k] {
			result[z]++
		}
	}
	return result
}

// OutDegree returns, for every vertex, the count of edges it points away
// with.
func (g *Graph) OutDegree() map[Vertex]int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	result := make(map[Vertex]int)
	for k := range g.adjacency {
		result[k] = 0
		for range g.adjacency[k] {
			result[k]++
		}
	}
	return result
}

// TopologicalSort returns vertices in dependency order using Kahn's
// algorithm. It returns an error if the graph has a cycle.
func (g *Graph) TopologicalSort() ([]Vertex, error) {
	indegree := g.InDegree()
	adjacency := g.Adjacency()

	var L []Vertex
	var S []Vertex
	remaining := make(map[Vertex]int)

	for v, d := range indegree {
		if d == 0 {
			S = append(S, v)
		} else {
			remaining[v] = d
		}
	}

	for len(S) > 0 {
		last := len(S) - 1
		v := S[last]
		S = S[:last]
		L = append(L, v)
		for n := range adjacency[v] {
			if remaining[n] > 0 {
				remaining[n]--
				if remaining[n] == 0 {
					S = append(S, n)
				}
			}
		}
	}

	for _, in := range remaining {
		if in > 0 {
			return nil, fmt.Errorf("pgraph: graph has at least one cycle")
		}
	}

	return L, nil
}

// Reachability finds one shortest path (of possibly several) in a DAG from a
// to b, inclusive of both endpoints. It returns an empty slice if no path
// exists. Giving it a non-DAG can recurse forever.
func (g *Graph) Reachability(a, b Vertex) []Vertex {
	if a == nil || b == nil {
		return nil
	}
	vertices := g.OutgoingGraphVertices(a)
	if len(vertices) == 0 {
		return []Vertex{}
	}
	if contains(b, vertices) {
		return []Vertex{a, b}
	}
	collected := make([][]Vertex, len(vertices))
	pick := -1
	for i, v := range vertices {
		collected[i] = g.Reachability(v, b)
		if l := len(collected[i]); l > 0 {
			if pick < 0 || l < len(collected[pick]) {
				pick = i
			}
		}
	}
	if pick < 0 {
		return []Vertex{}
	}
	result := []Vertex{a}
	result = append(result, collected[pick]...)
	return result
}

// DFS returns a depth-first discovery order starting from start.
func (g *Graph) DFS(start Vertex) []Vertex {
	if !g.HasVertex(start) {
		return nil
	}
	var discovered []Vertex
	stack := []Vertex{start}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !contains(v, discovered) {
			discovered = append(discovered, v)
			stack = append(stack, g.GraphVertices(v)...)
		}
	}
	return discovered
}

// FilterGraph builds a new graph containing only edges where at least one
// endpoint is in vertices.
func (g *Graph) FilterGraph(name string, vertices []Vertex) *Graph {
	out := NewGraph(name)
	for v1, x := range g.Adjacency() {
		for v2, e := range x {
			if contains(v1, vertices) || contains(v2, vertices) {
				out.AddEdge(v1, v2, e)
			}
		}
	}
	return out
}

func contains(needle Vertex, haystack []Vertex) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

// Reverse returns a new slice with vs in reverse order.
func Reverse(vs []Vertex) []Vertex {
	out := make([]Vertex, len(vs))
	for i, v := range vs {
		out[len(vs)-1-i] = v
	}
	return out
}

// String renders the graph as a multi-line summary of its edges, sorted for
// determinism.
func (g *Graph) String() string {
	lines := []string{}
	for v1, x := range g.Adjacency() {
		for v2, e := range x {
			lines = append(lines, fmt.Sprintf("%s -> %s [%s]", v1, v2, e))
		}
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}
