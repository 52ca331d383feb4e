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

// Package store persists per-slice checkpoints so an engine can be
// restarted and restored via spec.md §6's "Persisted state layout": the
// engine accepts an initial DataFlowState at construction, and
// MethodVertexData may carry Partial outputs signalling that Reproduce is
// required. The core state machine and runtime (package dflow) are
// themselves non-durable per spec.md §1's Non-goals ("durable storage of
// state" is out of scope for the core); this package is the external
// collaborator that supplies it.
package store

import "context"

// Record is one persisted slice: the vertex/index are named by string
// since a Store may outlive any particular in-memory *dflow.Vertex, and
// Partial is true when Output is incomplete and a Reproduce call (using
// Checkpoint) is required to restore it.
type Record struct {
	Vertex     string
	Index      []int
	Checkpoint []byte
	Output     [][]byte
	Partial    bool
}

// Store is the persistence interface every backend implements. Keys are
// (vertex, index) pairs rendered by the caller; the store itself is
// oblivious to dflow's internal types so that package dflow never needs to
// import package store.
type Store interface {
	Save(ctx context.Context, r Record) error
	Load(ctx context.Context, vertex string, index []int) (Record, bool, error)
	LoadAll(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, vertex string, index []int) error
}
