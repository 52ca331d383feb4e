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

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

func sliceKey(vertex string, index []int) string {
	return fmt.Sprintf("%s%v", vertex, index)
}

// Memory is an in-process Store, useful for tests and for engines that
// only need Reproduce-on-crash semantics within a single process
// lifetime.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

// Save implements Store.
func (m *Memory) Save(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[sliceKey(r.Vertex, r.Index)] = r
	return nil
}

// Load implements Store.
func (m *Memory) Load(_ context.Context, vertex string, index []int) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[sliceKey(vertex, index)]
	return r, ok, nil
}

// LoadAll implements Store. Records are returned sorted by key for
// deterministic restore ordering.
func (m *Memory) LoadAll(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.records))
	for k := range m.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.records[k])
	}
	return out, nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, vertex string, index []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, sliceKey(vertex, index))
	return nil
}
