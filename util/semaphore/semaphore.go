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

// Package semaphore implements a small counting semaphore used by the
// scheduler to bound concurrent method executions.
package semaphore

import (
	"context"
	"fmt"
)

// Semaphore is a counting semaphore. It must be created with New before use.
type Semaphore struct {
	slots  chan struct{}
	closed chan struct{}
}

// New creates a semaphore with the given number of available slots. A size
// of zero gives no free slots, so Acquire blocks until the context is
// cancelled or the semaphore is closed.
func New(size int) *Semaphore {
	return &Semaphore{
		slots:  make(chan struct{}, size),
		closed: make(chan struct{}),
	}
}

// Close releases anyone blocked in Acquire, and after it Release no longer
// panics on an unmatched call. Calling it more than
// once panics, matching the rest of dflow's closed-channel-as-signal idiom.
func (obj *Semaphore) Close() {
	close(obj.closed)
}

// Acquire takes one slot, blocking until one is free, the context is
// cancelled, or the semaphore is closed.
func (obj *Semaphore) Acquire(ctx context.Context) error {
	select {
	case obj.slots <- struct{}{}:
		return nil
	case <-obj.closed:
		return fmt.Errorf("semaphore: closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees one slot. It panics if called more times than Acquire
// succeeded, since that indicates a bug in the caller's bookkeeping.
func (obj *Semaphore) Release() {
	select {
	case <-obj.slots:
	case <-obj.closed:
	default:
		panic("semaphore: Release > Acquire")
	}
}
