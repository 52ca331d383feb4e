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
	"sort"

	"github.com/yuhangwang/dflow/mdmap"
)

// portValue is the per-port result of input assembly (§4.3): either the
// port has no resolvable value yet (Available == false), or it has exactly
// the artefact that should be handed to the method at that position.
type portValue struct {
	Available bool
	Value     Artefact
}

// assembleInputs computes, for slice (v, idx), whether every input port is
// available, and if so the ordered artefact list ready to hand to the
// method. It never mutates state.
func assembleInputs(state State, v *Vertex, idx mdmap.Index) ([]Artefact, bool) {
	n := v.Method.NumInputs()
	values := make([]portValue, n)

	incoming := state.Graph.Incoming(v)
	// Group collect edges by port, everything else is looked up directly.
	collectByPort := make(map[int][]struct {
		src *Vertex
		e   *Edge
	})
	for src, e := range incoming {
		if e.Kind == Collect {
			collectByPort[e.PortIndex] = append(collectByPort[e.PortIndex], struct {
				src *Vertex
				e   *Edge
			}{src, e})
			continue
		}
		if e.PortIndex < 0 || e.PortIndex >= n {
			continue
		}
		values[e.PortIndex] = portForEdge(state, src, e, idx)
	}
	for port, edges := range collectByPort {
		if port < 0 || port >= n {
			continue
		}
		values[port] = portForCollect(state, edges, idx)
	}

	out := make([]Artefact, n)
	for i, pv := range values {
		if !pv.Available {
			return nil, false
		}
		out[i] = pv.Value
	}
	return out, true
}

func sourceOutput(state State, src *Vertex, srcIdx mdmap.Index, outputIndex int) (Artefact, bool) {
	vs := state.Flow.Get(src, srcIdx)
	if !vs.Status.HasOutput() {
		return nil, false
	}
	if outputIndex < 0 || outputIndex >= len(vs.Status.Output) {
		return nil, false
	}
	return vs.Status.Output[outputIndex], true
}

func portForEdge(state State, src *Vertex, e *Edge, idx mdmap.Index) portValue {
	switch e.Kind {
	case OneToOne:
		val, ok := sourceOutput(state, src, idx, e.OutputIndex)
		if !ok {
			return portValue{}
		}
		return portValue{Available: true, Value: val}

	case Scatter:
		if len(idx) == 0 {
			return portValue{}
		}
		prefix, last := idx[:len(idx)-1], idx[len(idx)-1]
		val, ok := sourceOutput(state, src, prefix, e.OutputIndex)
		if !ok {
			return portValue{}
		}
		arr, ok := val.([]Artefact)
		if !ok || last < 0 || last >= len(arr) {
			return portValue{}
		}
		return portValue{Available: true, Value: arr[last]}

	case Reduce:
		// The source has rank len(idx)+1; gather every sibling slice
		// under this prefix, in order, requiring a contiguous 0..n-1
		// run with no gaps.
		m, exists := state.Flow[src]
		if !exists {
			return portValue{}
		}
		sub := m.StartingWith(idx)
		entries := sub.ToSeq()
		// entries are 1-dim indices [0],[1],... under this prefix
		values := make([]Artefact, 0, len(entries))
		seen := map[int]Artefact{}
		for _, ent := range entries {
			if len(ent.Index) != 1 {
				continue
			}
			if !ent.Value.Status.HasOutput() {
				return portValue{}
			}
			if e.OutputIndex >= len(ent.Value.Status.Output) {
				return portValue{}
			}
			seen[ent.Index[0]] = ent.Value.Status.Output[e.OutputIndex]
		}
		if len(seen) == 0 {
			return portValue{}
		}
		for i := 0; i < len(seen); i++ {
			v, ok := seen[i]
			if !ok {
				return portValue{} // gap
			}
			values = append(values, v)
		}
		return portValue{Available: true, Value: values}

	default:
		return portValue{}
	}
}

func portForCollect(state State, edges []struct {
	src *Vertex
	e   *Edge
}, idx mdmap.Index) portValue {
	sort.Slice(edges, func(i, j int) bool { return edges[i].e.CollectIndex < edges[j].e.CollectIndex })
	values := make([]Artefact, len(edges))
	for i, ce := range edges {
		val, ok := sourceOutput(state, ce.src, idx, ce.e.OutputIndex)
		if !ok {
			return portValue{}
		}
		values[i] = val
	}
	return portValue{Available: true, Value: values}
}

// allInputsAvailable is a cheap boolean wrapper around assembleInputs, used
// by downstream reclassification where the actual artefacts aren't needed
// yet.
func allInputsAvailable(state State, v *Vertex, idx mdmap.Index) bool {
	_, ok := assembleInputs(state, v, idx)
	return ok
}
