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

// ChangeKind discriminates a VertexChanges variant.
type ChangeKind int

const (
	// ChangeNew means the vertex is appearing in the flow state for the
	// first time (initial graph load, or a new slice set created by
	// shape propagation).
	ChangeNew ChangeKind = iota
	// ChangeRemoved means the vertex was removed from the graph.
	ChangeRemoved
	// ChangeShapeChanged means a scatter/reduce axis's shape became
	// known or changed, so slices were created or dropped.
	ChangeShapeChanged
	// ChangeModified means one or more existing slices changed status
	// without any shape change.
	ChangeModified
)

// String renders the change kind for metrics labels and logs.
func (k ChangeKind) String() string {
	switch k {
	case ChangeNew:
		return "new"
	case ChangeRemoved:
		return "removed"
	case ChangeShapeChanged:
		return "shape_changed"
	case ChangeModified:
		return "modified"
	default:
		return "unknown"
	}
}

// VertexChanges describes what happened to one vertex's slices during a
// single transition.
type VertexChanges struct {
	Kind ChangeKind

	// New holds the freshly created slice indices, valid for ChangeNew
	// and the newly-added indices of ChangeShapeChanged.
	New []mdmap.Index

	// Removed holds slice indices dropped by a shrinking shape, valid
	// for ChangeShapeChanged.
	Removed []mdmap.Index

	// Modified holds every slice index whose status changed, valid for
	// ChangeModified and ChangeShapeChanged.
	Modified []mdmap.Index

	// Old and New per-slice statuses for every index in Modified, keyed
	// the same way; used by the analyser to look up the transition.
	OldStatus map[string]VertexStatus
	NewStatus map[string]VertexStatus

	ConnectionChanged bool
}

func newVertexChanges(kind ChangeKind) *VertexChanges {
	return &VertexChanges{
		Kind:      kind,
		OldStatus: make(map[string]VertexStatus),
		NewStatus: make(map[string]VertexStatus),
	}
}

func (c *VertexChanges) recordModified(idx mdmap.Index, old, new VertexStatus) {
	key := idx.String()
	c.Modified = append(c.Modified, idx)
	c.OldStatus[key] = old
	c.NewStatus[key] = new
}
