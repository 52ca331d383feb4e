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
	"fmt"

	"github.com/yuhangwang/dflow/mdmap"
	"github.com/yuhangwang/dflow/util/errwrap"
)

// builder accumulates one transition's state and changes. It is discarded
// after Transition returns; nothing here is shared across calls, which is
// what lets Transition be a pure function over its State argument.
type builder struct {
	state   State
	changes map[*Vertex]*VertexChanges
	// nextTime is the single time_index value this whole transition will
	// stamp onto every CanStart/Started status it creates, and will
	// commit to state.TimeIndex if the transition turns out non-empty.
	// One message bumps the clock once, however many cascading
	// reclassifications it triggers, matching the worked examples in
	// spec.md §8.
	nextTime TimeIndex
}

func (b *builder) changeFor(v *Vertex, kind ChangeKind) *VertexChanges {
	c, ok := b.changes[v]
	if !ok {
		c = newVertexChanges(kind)
		b.changes[v] = c
	}
	return c
}

func (b *builder) setStatus(v *Vertex, idx mdmap.Index, status VertexStatus) {
	old := b.state.Flow.Get(v, idx).Status
	b.state.Flow = b.state.Flow.Set(v, idx, VertexState{Status: status})
	if old.Kind == status.Kind && fmt.Sprint(old) == fmt.Sprint(status) {
		return
	}
	b.changeFor(v, ChangeModified).recordModified(idx, old, status)
}

// Transition is the pure state-machine step described in spec.md §4.1: it
// consumes the current State and one Message, and produces the next State
// together with the set of VertexChanges that transition induced. It never
// mutates its arguments.
func Transition(state State, msg Message) (State, map[*Vertex]*VertexChanges) {
	b := &builder{state: state, changes: make(map[*Vertex]*VertexChanges), nextTime: state.TimeIndex + 1}

	switch m := msg.(type) {
	case *Alter:
		applyAlter(b, m)
	case *Start:
		applyStart(b, m)
	case *Iteration:
		applyIteration(b, m)
	case *Succeeded:
		applySucceeded(b, m)
	case *Failed:
		applyFailed(b, m)
	case *Stop:
		applyStop(b, m)
	}

	reclassify(b)

	if len(b.changes) == 0 {
		// No-op transitions (e.g. a stale message) must not advance the
		// clock, matching the idempotence property for empty alters and
		// the stale-suppression property for late completions.
		return state, b.changes
	}
	b.state.TimeIndex = b.nextTime
	return b.state, b.changes
}

func applyStart(b *builder, m *Start) {
	vs := b.state.Flow.Get(m.Vertex, m.Index)
	if vs.Status.Kind != KindCanStart {
		return
	}
	if m.CanStartTime != nil && *m.CanStartTime != vs.Status.Time {
		return // stale
	}
	b.setStatus(m.Vertex, m.Index, Started(b.nextTime))
}

func applyIteration(b *builder, m *Iteration) {
	vs := b.state.Flow.Get(m.Vertex, m.Index)
	var startTime TimeIndex
	var iterations int
	switch vs.Status.Kind {
	case KindStarted:
		startTime = vs.Status.Time
	case KindContinues:
		startTime = vs.Status.Time
		iterations = vs.Status.Iterations
	default:
		return
	}
	if startTime != m.StartTime {
		return // stale
	}
	b.setStatus(m.Vertex, m.Index, Continues(iterations+1, m.Outputs, m.Checkpoint, startTime))
	propagateShape(b, m.Vertex, m.Index, m.Outputs)
}

func applySucceeded(b *builder, m *Succeeded) {
	vs := b.state.Flow.Get(m.Vertex, m.Index)
	var startTime TimeIndex
	switch vs.Status.Kind {
	case KindStarted, KindCompleteStarted:
		startTime = vs.Status.Time
	case KindContinues:
		startTime = vs.Status.Time
	default:
		return
	}
	if startTime != m.StartTime {
		return // stale
	}

	var outputs []Artefact
	var checkpoint Checkpoint
	if m.Result.HasData {
		outputs = m.Result.Outputs
		checkpoint = m.Result.Checkpoint
	} else {
		outputs = vs.Status.Output
		checkpoint = vs.Status.Checkpoint
	}

	b.setStatus(m.Vertex, m.Index, Complete(checkpoint, outputs))
	if outputs != nil {
		propagateShape(b, m.Vertex, m.Index, outputs)
	}
}

func applyFailed(b *builder, m *Failed) {
	vs := b.state.Flow.Get(m.Vertex, m.Index)
	if !vs.Status.IsRunning() {
		return
	}
	if vs.Status.Time != m.StartTime {
		return // stale
	}
	b.setStatus(m.Vertex, m.Index, IncompleteFailed(m.Err))
}

func applyStop(b *builder, m *Stop) {
	vs := b.state.Flow.Get(m.Vertex, m.Index)
	if !vs.Status.IsRunning() {
		return
	}
	b.setStatus(m.Vertex, m.Index, Incomplete(Stopped))
}

// propagateShape creates freshly-known slices when a Scatter edge's source
// just produced (or updated) an array-typed output, per spec.md §4.1 phase
// 2. It also drops slices beyond a shrunk array's new length; anything
// nested further downstream of a dropped slice is left in the flow state
// inert rather than recursively pruned (TODO: recursive prune once nested
// scatter-of-scatter graphs need bounded memory).
func propagateShape(b *builder, v *Vertex, idx mdmap.Index, outputs []Artefact) {
	for target, e := range b.state.Graph.Outgoing(v) {
		if e.Kind != Scatter {
			continue
		}
		if e.OutputIndex >= len(outputs) {
			continue
		}
		arr, ok := outputs[e.OutputIndex].([]Artefact)
		if !ok {
			continue
		}
		existing := b.state.Flow.Slices(target)
		seen := map[string]bool{}
		for _, ent := range existing {
			if len(ent.Index) == len(idx)+1 && idx.Equal(ent.Index[:len(idx)]) {
				seen[ent.Index.String()] = true
			}
		}
		changes := b.changeFor(target, ChangeShapeChanged)
		for i := range arr {
			childIdx := append(append(mdmap.Index{}, idx...), i)
			if !seen[childIdx.String()] {
				b.state.Flow = b.state.Flow.Set(target, childIdx, VertexState{Status: Incomplete(UnassignedInputs)})
				changes.New = append(changes.New, childIdx)
			}
		}
		for _, ent := range existing {
			if len(ent.Index) != len(idx)+1 || !idx.Equal(ent.Index[:len(idx)]) {
				continue
			}
			last := ent.Index[len(ent.Index)-1]
			if last >= len(arr) {
				b.state.Flow[target] = b.state.Flow[target].Remove(ent.Index)
				changes.Removed = append(changes.Removed, ent.Index)
			}
		}

		// NewState seeds every vertex at rank-0 [] regardless of its real
		// rank (state.go). A scatter target's real rank is len(idx)+1, so
		// as soon as its first real child index exists, the seeded []
		// entry is a leftover that never agrees with invariant 1's
		// shape/rank pairing; prune it once we know better.
		if phantom, ok := b.state.Flow[target].Find(mdmap.Index{}); ok && phantom.Status.Kind == KindIncomplete && phantom.Status.Reason == UnassignedInputs {
			b.state.Flow[target] = b.state.Flow[target].Remove(mdmap.Index{})
			changes.Removed = append(changes.Removed, mdmap.Index{})
		}
	}
}

// reclassify is phase 3 of spec.md §4.1: walk the graph in topological
// order and move every slice between the "waiting on inputs" and
// "CanStart" halves of the lattice as input availability changes.
func reclassify(b *builder) {
	order, err := b.state.Graph.TopologicalSort()
	if err != nil {
		return // a cyclic alter is rejected before this point; be defensive
	}
	for _, v := range order {
		for _, ent := range b.state.Flow.Slices(v) {
			idx, status := ent.Index, ent.Value.Status
			available := allInputsAvailable(b.state, v, idx)

			switch status.Kind {
			case KindIncomplete:
				if (status.Reason == UnassignedInputs || status.Reason == OutdatedInputs) && available {
					b.setStatus(v, idx, CanStart(b.nextTime))
				}
			case KindCanStart, KindStarted, KindContinues, KindCompleteStarted, KindComplete:
				if !available {
					b.setStatus(v, idx, Incomplete(OutdatedInputs))
				}
			}
		}
	}
}

// applyAlter applies an atomic graph mutation batch: disconnects and
// removals first, then the merge graph, then new connections, each step
// using the domain Graph's thin wrapper over pgraph.Txn so that a failure
// partway through rolls the whole batch back and leaves State unchanged.
func applyAlter(b *builder, m *Alter) {
	defer func() {
		if m.Reply != nil {
			close(m.Reply)
		}
	}()

	oldByName := b.state.Graph.byName
	newGraph := &Graph{g: b.state.Graph.pg().Copy(), byName: copyByName(oldByName)}

	if m.Merge != nil {
		for _, v := range m.Merge.Vertices() {
			newGraph.byName[v.Name] = v
		}
	}
	if err := validateAlterEndpoints(newGraph, oldByName, m); err != nil {
		if m.Reply != nil {
			m.Reply <- fmt.Errorf("dflow: alter rejected: %w", err)
		}
		return
	}

	txn := newGraph.pg().Txn()

	for _, ae := range m.Disconnect {
		txn.DeleteEdge(ae.From, ae.To)
	}
	for _, v := range m.Remove {
		txn.DeleteVertex(v)
	}
	if m.Merge != nil {
		for _, v := range m.Merge.Vertices() {
			txn.AddVertex(v)
		}
		for v1, x := range m.Merge.pg().Adjacency() {
			for v2, e := range x {
				txn.AddEdge(v1, v2, e)
			}
		}
	}
	for _, ae := range m.Connect {
		txn.AddEdge(ae.From, ae.To, ae.Edge)
	}

	if err := txn.Commit(); err != nil {
		if m.Reply != nil {
			m.Reply <- fmt.Errorf("dflow: alter rejected: %w", err)
		}
		return
	}

	if _, err := newGraph.pg().TopologicalSort(); err != nil {
		if m.Reply != nil {
			m.Reply <- fmt.Errorf("dflow: alter rejected: %w", err)
		}
		return
	}

	for _, v := range m.Remove {
		delete(newGraph.byName, v.Name)
		b.state.Flow = b.state.Flow.Remove(v)
		b.changeFor(v, ChangeRemoved)
	}
	if m.Merge != nil {
		for _, v := range m.Merge.Vertices() {
			newGraph.byName[v.Name] = v
		}
	}

	b.state.Graph = newGraph
	if m.Merge != nil {
		for _, v := range m.Merge.Vertices() {
			b.state.Flow = b.state.Flow.Set(v, mdmap.Index{}, VertexState{Status: Incomplete(UnassignedInputs)})
			b.changeFor(v, ChangeNew).New = append(b.changeFor(v, ChangeNew).New, mdmap.Index{})
		}
	}
	if len(m.Disconnect) > 0 || len(m.Connect) > 0 {
		for _, ae := range append(append([]AlterEdge{}, m.Disconnect...), m.Connect...) {
			if c, ok := b.changes[ae.To]; ok {
				c.ConnectionChanged = true
			} else {
				b.changeFor(ae.To, ChangeModified).ConnectionChanged = true
			}
		}
	}
}

// validateAlterEndpoints checks that every vertex named by m's
// Disconnect/Connect/Remove edges is actually present in newGraph (either
// already live, or freshly added via m.Merge), collecting every problem
// found rather than stopping at the first one, so a caller building a batch
// by hand sees every mistake in one reply instead of fixing them one at a
// time against txn.Commit's single error.
func validateAlterEndpoints(newGraph *Graph, oldByName map[string]*Vertex, m *Alter) error {
	var err error
	have := func(v *Vertex) bool {
		found, ok := newGraph.byName[v.Name]
		return ok && found == v
	}
	if m.Merge != nil {
		removed := make(map[*Vertex]bool, len(m.Remove))
		for _, v := range m.Remove {
			removed[v] = true
		}
		for _, v := range m.Merge.Vertices() {
			if live, ok := oldByName[v.Name]; ok && live != v && !removed[live] {
				err = errwrap.Append(err, fmt.Errorf("dflow: alter: merge: vertex name %q already in use", v.Name))
			}
		}
	}
	for _, v := range m.Remove {
		if !have(v) {
			err = errwrap.Append(err, fmt.Errorf("dflow: alter: remove: vertex %q is not in the graph", v.Name))
		}
	}
	for _, ae := range append(append([]AlterEdge{}, m.Disconnect...), m.Connect...) {
		if !have(ae.From) {
			err = errwrap.Append(err, fmt.Errorf("dflow: alter: edge %q->%q: vertex %q is not in the graph", ae.From.Name, ae.To.Name, ae.From.Name))
		}
		if !have(ae.To) {
			err = errwrap.Append(err, fmt.Errorf("dflow: alter: edge %q->%q: vertex %q is not in the graph", ae.From.Name, ae.To.Name, ae.To.Name))
		}
	}
	return err
}

func copyByName(m map[string]*Vertex) map[string]*Vertex {
	out := make(map[string]*Vertex, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
