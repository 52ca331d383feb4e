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

// ActionKind discriminates an Action variant.
type ActionKind int

const (
	// ActionDelay means a slice moved to CanStart(t); the runtime may wait
	// out a debounce interval before posting Start.
	ActionDelay ActionKind = iota
	// ActionExecute means a slice moved to Started(t) or
	// CompleteStarted(nil-checkpoint, t); run the method now.
	ActionExecute
	// ActionReproduce means a slice moved to CompleteStarted with a
	// non-nil checkpoint; call the method's Reproduce entry point.
	ActionReproduce
	// ActionStopMethod means a slice left a running state; cancel its
	// handle.
	ActionStopMethod
	// ActionRemove means a vertex was removed from the graph; cancel
	// every slice's handle.
	ActionRemove
)

func (k ActionKind) String() string {
	switch k {
	case ActionDelay:
		return "Delay"
	case ActionExecute:
		return "Execute"
	case ActionReproduce:
		return "Reproduce"
	case ActionStopMethod:
		return "StopMethod"
	case ActionRemove:
		return "Remove"
	default:
		return "Action(?)"
	}
}

// Action is one imperative directive the runtime must carry out, per
// spec.md §4.2.
type Action struct {
	Kind  ActionKind
	Vertex *Vertex
	Index  mdmap.Index
	Time   TimeIndex

	// Checkpoint is populated for ActionReproduce (the CompleteStarted
	// checkpoint) and for the ActionExecute that resumes a Complete slice
	// moving to Continues (its prior checkpoint); it is nil otherwise.
	Checkpoint Checkpoint
}

// Analyse is the pure change-analyser (Component E): it maps one
// transition's change set onto the list of Actions the runtime must take,
// following the old→new status rules tabulated in spec.md §4.2. Modified
// slices are classified from the old/new statuses `changes` carries; newly
// created slices have no old status, so their current status is read from
// state. No history beyond the single pair is consulted.
func Analyse(state State, changes map[*Vertex]*VertexChanges) []Action {
	var actions []Action
	for v, c := range changes {
		switch c.Kind {
		case ChangeRemoved:
			actions = append(actions, Action{Kind: ActionRemove, Vertex: v})
			continue
		case ChangeNew:
			for _, idx := range c.New {
				st := state.Flow.Get(v, idx).Status
				actions = append(actions, actionsForTransition(v, idx, VertexStatus{}, st, true)...)
			}
		case ChangeShapeChanged:
			for _, idx := range c.New {
				st := state.Flow.Get(v, idx).Status
				actions = append(actions, actionsForTransition(v, idx, VertexStatus{}, st, true)...)
			}
			for _, idx := range c.Modified {
				old, new := c.OldStatus[idx.String()], c.NewStatus[idx.String()]
				actions = append(actions, actionsForTransition(v, idx, old, new, false)...)
			}
			for _, idx := range c.Removed {
				actions = append(actions, Action{Kind: ActionStopMethod, Vertex: v, Index: idx})
			}
		case ChangeModified:
			for _, idx := range c.Modified {
				old, new := c.OldStatus[idx.String()], c.NewStatus[idx.String()]
				actions = append(actions, actionsForTransition(v, idx, old, new, false)...)
			}
		}
	}
	return actions
}

// actionsForTransition implements the per-cell rule table in spec.md §4.2.
// freshlyCreated is true for slices appearing for the first time (New),
// where "old" carries no meaningful status and every rule keyed on "_ →
// new" applies.
func actionsForTransition(v *Vertex, idx mdmap.Index, old, new VertexStatus, freshlyCreated bool) []Action {
	switch new.Kind {
	case KindCanStart:
		if freshlyCreated || old.Kind != KindCanStart || old.Time != new.Time {
			return []Action{{Kind: ActionDelay, Vertex: v, Index: idx, Time: new.Time}}
		}
		return nil

	case KindStarted:
		if freshlyCreated || old.Kind == KindCanStart {
			return []Action{{Kind: ActionExecute, Vertex: v, Index: idx, Time: new.Time}}
		}
		return nil

	case KindCompleteStarted:
		if new.Checkpoint == nil {
			return []Action{{Kind: ActionExecute, Vertex: v, Index: idx, Time: new.Time}}
		}
		return []Action{{Kind: ActionReproduce, Vertex: v, Index: idx, Time: new.Time, Checkpoint: new.Checkpoint}}

	case KindContinues:
		if !freshlyCreated && old.Kind == KindComplete && old.Checkpoint != nil {
			return []Action{{Kind: ActionExecute, Vertex: v, Index: idx, Time: new.Time, Checkpoint: old.Checkpoint}}
		}
		return nil

	case KindComplete:
		if !freshlyCreated && old.Kind == KindContinues {
			return []Action{{Kind: ActionStopMethod, Vertex: v, Index: idx}}
		}
		return nil

	case KindIncomplete:
		if !freshlyCreated && new.Reason == Stopped && old.Kind == KindStarted {
			return []Action{{Kind: ActionStopMethod, Vertex: v, Index: idx}}
		}
		if !freshlyCreated && old.IsRunning() {
			return []Action{{Kind: ActionStopMethod, Vertex: v, Index: idx}}
		}
		return nil

	default:
		return nil
	}
}
