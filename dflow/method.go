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

import "context"

// Artefact is an opaque value flowing along an edge. The engine never
// inspects it; it is typed only by the method's own port descriptors.
type Artefact interface{}

// Checkpoint is opaque, method-defined state sufficient to resume or
// reproduce an iteration.
type Checkpoint interface{}

// IterationResult is one element of the lazy sequence execute() produces:
// a full output tuple plus the checkpoint that identifies it.
type IterationResult struct {
	Outputs    []Artefact
	Checkpoint Checkpoint
}

// Progress accepts a value in [0,1] describing how far a single execution
// has gotten. Implementations must tolerate being called from the
// goroutine running the method's execute/reproduce body.
type Progress interface {
	Report(fraction float64)
}

// ProgressFunc adapts a plain function to Progress.
type ProgressFunc func(float64)

// Report implements Progress.
func (f ProgressFunc) Report(fraction float64) { f(fraction) }

// Sequence is the lazy sequence of iteration results that execute()
// produces. Next blocks until either a result is ready, the sequence is
// exhausted (ok=false, err=nil), or it fails (err!=nil). Implementations
// must honour ctx.Done() between iterations: once cancelled, Next should
// return promptly.
type Sequence interface {
	Next(ctx context.Context) (IterationResult, bool, error)
}

// Method is the execute/reproduce contract a vertex runs. Two Methods are
// considered the same vertex identity only via the Vertex that wraps them;
// Method itself need not be comparable.
type Method interface {
	// Name identifies the method kind, used in logs and Graphviz labels.
	Name() string

	// Execute begins an execution of the method given its resolved
	// inputs and an optional checkpoint to resume from. It must honour
	// ctx's cancellation between yields, and must yield at least one
	// result before an unconditional success.
	Execute(ctx context.Context, progress Progress, inputs []Artefact, checkpoint Checkpoint) (Sequence, error)

	// Reproduce synchronously regenerates the outputs that Execute would
	// have produced when it emitted checkpoint, bit-identical. Used to
	// restore a CompleteStarted slice whose output data was only
	// partially persisted.
	Reproduce(ctx context.Context, inputs []Artefact, checkpoint Checkpoint) ([]Artefact, error)

	// NumInputs and NumOutputs describe the method's port arity, used by
	// the graph to validate edges.
	NumInputs() int
	NumOutputs() int
}
