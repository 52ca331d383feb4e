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

// Package mdmap implements a persistent, multi-dimensional index-to-value
// map. A vertex in the dataflow graph can be replicated across an arbitrary
// number of dimensions (once per scatter, nested scatters add more
// dimensions still), and MdMap is the structure that holds "one value per
// index vector" for a vertex's artefacts without forcing every vertex to
// agree on how many dimensions it has.
//
// The map is persistent: every mutating operation returns a new MdMap and
// leaves the receiver untouched, sharing any unmodified sub-trees with the
// original. This is what lets the state machine hand out the previous
// State to a concurrently-running analyser while a newer State is being
// built from an incoming message, with no locking between the two.
package mdmap

import (
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// Index is a multi-dimensional index into an MdMap. []int{} is the index of
// a scalar (unscattered) vertex; []int{2, 0} is the first element produced
// by an inner scatter nested inside index 2 of an outer scatter.
type Index []int

// String renders an index the way the engine logs and debug dumps it, e.g.
// "[2,0]".
func (idx Index) String() string {
	out := "["
	for i, v := range idx {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%d", v)
	}
	return out + "]"
}

// Equal reports whether two indices name the same slot.
func (idx Index) Equal(other Index) bool {
	if len(idx) != len(other) {
		return false
	}
	for i := range idx {
		if idx[i] != other[i] {
			return false
		}
	}
	return true
}

// node is one level of the index trie. A node either holds a value (leaf, at
// the end of an index) or a set of children keyed by the next index
// component, or both (a vertex can have a value at a prefix as well as
// children below it, though the engine never produces that shape itself).
type node[T any] struct {
	hasValue bool
	value    T
	children map[int]*node[T]
}

func emptyNode[T any]() *node[T] {
	return &node[T]{children: make(map[int]*node[T])}
}

// MdMap is a persistent map from Index to a value of type T.
type MdMap[T any] struct {
	root *node[T]
}

// New returns an empty MdMap.
func New[T any]() *MdMap[T] {
	return &MdMap[T]{root: emptyNode[T]()}
}

// Add returns a new MdMap with idx bound to val. The receiver is unchanged.
func (m *MdMap[T]) Add(idx Index, val T) *MdMap[T] {
	return &MdMap[T]{root: addAt(m.root, idx, val)}
}

func addAt[T any](n *node[T], idx Index, val T) *node[T] {
	if n == nil {
		n = emptyNode[T]()
	}
	if len(idx) == 0 {
		return &node[T]{hasValue: true, value: val, children: n.children}
	}
	head, rest := idx[0], idx[1:]
	newChildren := make(map[int]*node[T], len(n.children)+1)
	for k, v := range n.children {
		newChildren[k] = v
	}
	newChildren[head] = addAt(n.children[head], rest, val)
	return &node[T]{hasValue: n.hasValue, value: n.value, children: newChildren}
}

// Find returns the value at idx, if any.
func (m *MdMap[T]) Find(idx Index) (T, bool) {
	n := m.root
	for _, head := range idx {
		if n == nil {
			var zero T
			return zero, false
		}
		n = n.children[head]
	}
	if n == nil || !n.hasValue {
		var zero T
		return zero, false
	}
	return n.value, true
}

// Remove returns a new MdMap with idx unbound. The receiver is unchanged.
// It is a no-op (structurally, a copy) if idx was not present.
func (m *MdMap[T]) Remove(idx Index) *MdMap[T] {
	newRoot, _ := removeAt(m.root, idx)
	if newRoot == nil {
		newRoot = emptyNode[T]()
	}
	return &MdMap[T]{root: newRoot}
}

func removeAt[T any](n *node[T], idx Index) (*node[T], bool) {
	if n == nil {
		return nil, false
	}
	if len(idx) == 0 {
		if len(n.children) == 0 {
			return nil, true
		}
		return &node[T]{children: n.children}, true
	}
	head, rest := idx[0], idx[1:]
	child, removed := removeAt(n.children[head], rest)
	if !removed {
		return n, false
	}
	newChildren := make(map[int]*node[T], len(n.children))
	for k, v := range n.children {
		newChildren[k] = v
	}
	if child == nil {
		delete(newChildren, head)
	} else {
		newChildren[head] = child
	}
	if len(newChildren) == 0 && !n.hasValue {
		return nil, true
	}
	return &node[T]{hasValue: n.hasValue, value: n.value, children: newChildren}, true
}

// Entry pairs an Index with its value, as returned by ToSeq.
type Entry[T any] struct {
	Index Index
	Value T
}

// ToSeq flattens the map into a slice of entries, sorted by index for
// determinism.
func (m *MdMap[T]) ToSeq() []Entry[T] {
	var out []Entry[T]
	collect(m.root, nil, &out)
	sort.Slice(out, func(i, j int) bool {
		return indexLess(out[i].Index, out[j].Index)
	})
	return out
}

func collect[T any](n *node[T], prefix Index, out *[]Entry[T]) {
	if n == nil {
		return
	}
	if n.hasValue {
		idx := make(Index, len(prefix))
		copy(idx, prefix)
		*out = append(*out, Entry[T]{Index: idx, Value: n.value})
	}
	keys := make([]int, 0, len(n.children))
	for k := range n.children {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		collect(n.children[k], append(prefix, k), out)
	}
}

func indexLess(a, b Index) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// StartingWith returns the sub-map of every entry whose index begins with
// prefix, with prefix stripped from the returned indices. This is how a
// reduce edge gathers every slice produced under one scatter branch.
func (m *MdMap[T]) StartingWith(prefix Index) *MdMap[T] {
	n := m.root
	for _, head := range prefix {
		if n == nil {
			return New[T]()
		}
		n = n.children[head]
	}
	if n == nil {
		n = emptyNode[T]()
	}
	return &MdMap[T]{root: n}
}

// Len returns the number of bound indices.
func (m *MdMap[T]) Len() int {
	return len(m.ToSeq())
}

// Shape reports one past the largest top-level index (i.e. the scatter
// width of the first dimension), based on the top-level children only;
// deeper dimensions are not measured. It returns 0 for an empty map.
func (m *MdMap[T]) Shape() int {
	max := -1
	for k := range m.root.children {
		if k > max {
			max = k
		}
	}
	return max + 1
}

// Map returns a new MdMap with fn applied to every value, preserving
// indices.
func Map[T, U any](m *MdMap[T], fn func(Index, T) U) *MdMap[U] {
	out := New[U]()
	for _, e := range m.ToSeq() {
		out = out.Add(e.Index, fn(e.Index, e.Value))
	}
	return out
}

// Fingerprint computes a blake2b digest of the map's indices and of each
// value as rendered by renderValue, so two maps with the same entries
// produce the same digest.
func (m *MdMap[T]) Fingerprint(renderValue func(T) []byte) [32]byte {
	h, _ := blake2b.New256(nil)
	for _, e := range m.ToSeq() {
		h.Write([]byte(e.Index.String()))
		h.Write(renderValue(e.Value))
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
