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

import "fmt"

// IncompleteReason tags why a slice has not yet started.
type IncompleteReason int

const (
	// UnassignedInputs means at least one input port has nothing
	// connected to it yet, or the slice doesn't exist upstream yet.
	UnassignedInputs IncompleteReason = iota
	// OutdatedInputs means inputs were available once but an upstream
	// change invalidated them.
	OutdatedInputs
	// ExecutionFailed means the method raised during execute/reproduce.
	ExecutionFailed
	// Stopped means a Stop message cancelled this slice; it stays
	// stopped until its inputs change.
	Stopped
	// TransientInputs means an upstream output was Partial and cannot
	// be reproduced, so this slice can never become ready.
	TransientInputs
)

func (r IncompleteReason) String() string {
	switch r {
	case UnassignedInputs:
		return "UnassignedInputs"
	case OutdatedInputs:
		return "OutdatedInputs"
	case ExecutionFailed:
		return "ExecutionFailed"
	case Stopped:
		return "Stopped"
	case TransientInputs:
		return "TransientInputs"
	default:
		return fmt.Sprintf("IncompleteReason(%d)", int(r))
	}
}

// StatusKind discriminates the VertexStatus variant. VertexStatus itself
// carries the payload each kind needs (time, checkpoint, output, ...); kind
// plus payload together form the tagged variant the design notes call for.
type StatusKind int

const (
	KindIncomplete StatusKind = iota
	KindCanStart
	KindStarted
	KindContinues
	KindComplete
	KindCompleteStarted
	KindPaused
	KindPausedContinues
	KindPausedInherited
)

func (k StatusKind) String() string {
	switch k {
	case KindIncomplete:
		return "Incomplete"
	case KindCanStart:
		return "CanStart"
	case KindStarted:
		return "Started"
	case KindContinues:
		return "Continues"
	case KindComplete:
		return "Complete"
	case KindCompleteStarted:
		return "CompleteStarted"
	case KindPaused:
		return "Paused"
	case KindPausedContinues:
		return "PausedContinues"
	case KindPausedInherited:
		return "PausedInherited"
	default:
		return fmt.Sprintf("StatusKind(%d)", int(k))
	}
}

// TimeIndex is the logical monotonic counter described in spec.md §3; it is
// advanced once per non-empty transition and stamped onto CanStart/Started
// statuses so that late messages referencing a stale stamp can be dropped.
type TimeIndex uint64

// VertexStatus is the tagged-variant status of one vertex slice.
type VertexStatus struct {
	Kind   StatusKind
	Reason IncompleteReason // valid when Kind == KindIncomplete
	Err    error            // valid when Reason == ExecutionFailed

	Time TimeIndex // CanStartTime/StartTime, valid for CanStart/Started/Continues/CompleteStarted

	Iterations int        // valid for Continues: number of checkpoints emitted so far
	Checkpoint Checkpoint // valid for Continues/Complete/CompleteStarted when present
	Output     []Artefact // last known output, valid for Continues/Complete/CompleteStarted when present
}

// String renders the status for logs.
func (s VertexStatus) String() string {
	switch s.Kind {
	case KindIncomplete:
		if s.Reason == ExecutionFailed && s.Err != nil {
			return fmt.Sprintf("Incomplete(%s: %v)", s.Reason, s.Err)
		}
		return fmt.Sprintf("Incomplete(%s)", s.Reason)
	case KindCanStart:
		return fmt.Sprintf("CanStart(%d)", s.Time)
	case KindStarted:
		return fmt.Sprintf("Started(%d)", s.Time)
	case KindContinues:
		return fmt.Sprintf("Continues(%d, %d)", s.Iterations, s.Time)
	case KindComplete:
		return "Complete"
	case KindCompleteStarted:
		return fmt.Sprintf("CompleteStarted(%d)", s.Time)
	case KindPaused:
		return "Paused"
	case KindPausedContinues:
		return "PausedContinues"
	case KindPausedInherited:
		return "PausedInherited"
	default:
		return "VertexStatus(?)"
	}
}

// Incomplete builds an Incomplete status for the given reason.
func Incomplete(reason IncompleteReason) VertexStatus {
	return VertexStatus{Kind: KindIncomplete, Reason: reason}
}

// IncompleteFailed builds an Incomplete(ExecutionFailed) status.
func IncompleteFailed(err error) VertexStatus {
	return VertexStatus{Kind: KindIncomplete, Reason: ExecutionFailed, Err: err}
}

// CanStart builds a CanStart(t) status.
func CanStart(t TimeIndex) VertexStatus {
	return VertexStatus{Kind: KindCanStart, Time: t}
}

// Started builds a Started(t) status.
func Started(t TimeIndex) VertexStatus {
	return VertexStatus{Kind: KindStarted, Time: t}
}

// Continues builds a Continues(k, output, t) status.
func Continues(k int, output []Artefact, cp Checkpoint, t TimeIndex) VertexStatus {
	return VertexStatus{Kind: KindContinues, Iterations: k, Output: output, Checkpoint: cp, Time: t}
}

// Complete builds a Complete(checkpoint?, output) status.
func Complete(cp Checkpoint, output []Artefact) VertexStatus {
	return VertexStatus{Kind: KindComplete, Checkpoint: cp, Output: output}
}

// CompleteStarted builds a CompleteStarted(checkpoint?, output, t) status.
func CompleteStarted(cp Checkpoint, output []Artefact, t TimeIndex) VertexStatus {
	return VertexStatus{Kind: KindCompleteStarted, Checkpoint: cp, Output: output, Time: t}
}

// IsRunning reports whether the slice currently has a worker in flight.
func (s VertexStatus) IsRunning() bool {
	return s.Kind == KindStarted || s.Kind == KindContinues || s.Kind == KindCompleteStarted
}

// HasOutput reports whether s carries a usable (non-partial) output tuple.
func (s VertexStatus) HasOutput() bool {
	return (s.Kind == KindContinues || s.Kind == KindComplete || s.Kind == KindCompleteStarted) && s.Output != nil
}
