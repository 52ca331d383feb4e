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

import "github.com/yuhangwang/dflow/mdmap"

// VertexState is the full per-slice record. It holds only the slice's
// status; any output and checkpoint data live inside that status.
type VertexState struct {
	Status VertexStatus
}

// FlowState maps each vertex to the MdMap of its slices. NewState and
// Alter seed every vertex they add with a slice at index [], so a vertex
// is absent only if it is not in the graph; Get still defaults a missing
// vertex or index to Incomplete(UnassignedInputs).
type FlowState map[*Vertex]*mdmap.MdMap[VertexState]

// Get returns the state at (v, idx), defaulting to Incomplete(UnassignedInputs)
// if the vertex or index has no entry yet.
func (fs FlowState) Get(v *Vertex, idx mdmap.Index) VertexState {
	m, ok := fs[v]
	if !ok {
		return VertexState{Status: Incomplete(UnassignedInputs)}
	}
	vs, ok := m.Find(idx)
	if !ok {
		return VertexState{Status: Incomplete(UnassignedInputs)}
	}
	return vs
}

// Set returns a new FlowState with (v, idx) bound to vs. The receiver map
// itself is shallow-copied; the per-vertex MdMap is persistent, so unrelated
// vertices' entries are shared with the original.
func (fs FlowState) Set(v *Vertex, idx mdmap.Index, vs VertexState) FlowState {
	out := make(FlowState, len(fs))
	for k, val := range fs {
		out[k] = val
	}
	m, ok := out[v]
	if !ok {
		m = mdmap.New[VertexState]()
	}
	out[v] = m.Add(idx, vs)
	return out
}

// Remove returns a new FlowState with every slice of v gone.
func (fs FlowState) Remove(v *Vertex) FlowState {
	out := make(FlowState, len(fs))
	for k, val := range fs {
		if k == v {
			continue
		}
		out[k] = val
	}
	return out
}

// Slices returns every (index, state) pair recorded for v.
func (fs FlowState) Slices(v *Vertex) []mdmap.Entry[VertexState] {
	m, ok := fs[v]
	if !ok {
		return nil
	}
	return m.ToSeq()
}

// State is the full engine snapshot: the graph, every slice's status, and
// the logical clock.
type State struct {
	Graph     *Graph
	Flow      FlowState
	TimeIndex TimeIndex
}

// NewState returns the initial, empty state for a graph: every vertex,
// whatever its rank, gets a single Incomplete(UnassignedInputs) slice at
// index [].
func NewState(g *Graph) State {
	flow := make(FlowState)
	for _, v := range g.Vertices() {
		flow = flow.Set(v, mdmap.Index{}, VertexState{Status: Incomplete(UnassignedInputs)})
	}
	return State{Graph: g, Flow: flow, TimeIndex: 0}
}
