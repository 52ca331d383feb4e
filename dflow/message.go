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

// Message is anything the state machine can consume: either an external
// graph alteration or an internal message posted back by the runtime.
type Message interface {
	isMessage()
}

// AlterEdge names one (from, to, port) connection to add or remove as part
// of an Alter batch.
type AlterEdge struct {
	From, To *Vertex
	Edge     *Edge
}

// Alter is an atomic graph mutation batch: disconnects and removals are
// applied first, then the merge graph is added, then new connections, all
// before a single downstream reclassification pass runs. Reply, if
// non-nil, is closed once the alteration (successful or not) has been
// applied and its changes computed.
type Alter struct {
	Disconnect []AlterEdge
	Remove     []*Vertex
	Merge      *Graph // vertices/edges to add; may be nil
	Connect    []AlterEdge
	Reply      chan error
}

func (*Alter) isMessage() {}

// Start requests that a CanStart slice begin executing. If CanStartTime is
// non-nil, the message is dropped unless it still matches the slice's
// current CanStart time (the slice may have been re-debounced since).
type Start struct {
	Vertex        *Vertex
	Index         mdmap.Index
	CanStartTime  *TimeIndex
}

func (*Start) isMessage() {}

// Iteration reports one yielded (outputs, checkpoint) pair from a running
// method. StartTime must match the slice's current Started/Continues time
// or the message is stale and dropped.
type Iteration struct {
	Vertex    *Vertex
	Index     mdmap.Index
	Outputs   []Artefact
	Checkpoint Checkpoint
	StartTime TimeIndex
}

func (*Iteration) isMessage() {}

// SucceededResult discriminates a terminal Succeeded message: either one
// final iteration's data, or a plain "no more iterations" signal for a
// method that already reported its last output via Iteration.
type SucceededResult struct {
	HasData    bool
	Outputs    []Artefact
	Checkpoint Checkpoint
}

// Succeeded is the terminal success message for a slice. StartTime must
// match or the message is dropped as stale.
type Succeeded struct {
	Vertex    *Vertex
	Index     mdmap.Index
	StartTime TimeIndex
	Result    SucceededResult
}

func (*Succeeded) isMessage() {}

// Failed is the terminal failure message for a slice. StartTime must match
// or the message is dropped as stale.
type Failed struct {
	Vertex    *Vertex
	Index     mdmap.Index
	StartTime TimeIndex
	Err       error
}

func (*Failed) isMessage() {}

// Stop requests cancellation of a running slice.
type Stop struct {
	Vertex *Vertex
	Index  mdmap.Index
}

func (*Stop) isMessage() {}

// Bootstrap carries no payload; it exists purely to drive the initial
// reclassification pass an Engine must run on Start, per spec.md §4.1/§4.5
// ("activating a suspended machine emits the installed snapshot's change
// set"). Transition's switch has no case for it, so it updates nothing
// itself — reclassify still runs unconditionally after the switch, which is
// the only effect Start needs.
type Bootstrap struct{}

func (*Bootstrap) isMessage() {}

// messageKind names a Message's concrete type for metrics labels and logs.
func messageKind(m Message) string {
	switch m.(type) {
	case *Alter:
		return "Alter"
	case *Start:
		return "Start"
	case *Iteration:
		return "Iteration"
	case *Succeeded:
		return "Succeeded"
	case *Failed:
		return "Failed"
	case *Stop:
		return "Stop"
	case *Bootstrap:
		return "Bootstrap"
	default:
		return "Unknown"
	}
}
