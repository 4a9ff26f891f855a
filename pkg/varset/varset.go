// Copyright SDKit Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package varset provides compact, bitset-backed sets of variable
// identifiers, used by model stages (C6) for visited/in-progress marking
// during topological sort and cycle detection — a cheaper alternative to
// map[ident.Canonical]struct{} once a model's variable count is interned to
// small integers. Variable analysis (C5) keeps its dependency sets as
// plain maps and does not use this package.
package varset

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/sdkit/engine/pkg/ident"
)

// Interner assigns each canonical identifier encountered a stable, dense
// integer index, so a Set can be backed by a bitset instead of a map.
type Interner struct {
	indexOf map[ident.Canonical]uint
	names   []ident.Canonical
}

// NewInterner constructs an empty Interner.
func NewInterner() *Interner {
	return &Interner{indexOf: make(map[ident.Canonical]uint)}
}

// Intern returns name's index, assigning a fresh one on first use.
func (n *Interner) Intern(name ident.Canonical) uint {
	if i, ok := n.indexOf[name]; ok {
		return i
	}
	i := uint(len(n.names))
	n.indexOf[name] = i
	n.names = append(n.names, name)
	return i
}

// Lookup returns the index already assigned to name, if any, without
// interning it.
func (n *Interner) Lookup(name ident.Canonical) (uint, bool) {
	i, ok := n.indexOf[name]
	return i, ok
}

// Name returns the identifier interned at index i.
func (n *Interner) Name(i uint) ident.Canonical {
	return n.names[i]
}

// Len returns the number of distinct identifiers interned so far.
func (n *Interner) Len() int {
	return len(n.names)
}

// Set is a bitset of interned variable indices.
type Set struct {
	bits *bitset.BitSet
}

// NewSet constructs an empty Set.
func NewSet() *Set {
	return &Set{bits: bitset.New(0)}
}

// Add marks i as present.
func (s *Set) Add(i uint) {
	s.bits.Set(i)
}

// Remove clears i.
func (s *Set) Remove(i uint) {
	s.bits.Clear(i)
}

// Has reports whether i is present.
func (s *Set) Has(i uint) bool {
	return s.bits.Test(i)
}

// Union returns a new Set containing every index present in s or o.
func (s *Set) Union(o *Set) *Set {
	return &Set{bits: s.bits.Union(o.bits)}
}

// Intersection returns a new Set containing every index present in both s
// and o.
func (s *Set) Intersection(o *Set) *Set {
	return &Set{bits: s.bits.Intersection(o.bits)}
}

// Count returns the number of indices present.
func (s *Set) Count() uint {
	return s.bits.Count()
}

// Each calls fn once per present index, in ascending order.
func (s *Set) Each(fn func(i uint)) {
	for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
		fn(i)
	}
}

// Names resolves every present index back to its canonical identifier via
// interner.
func (s *Set) Names(interner *Interner) []ident.Canonical {
	out := make([]ident.Canonical, 0, s.Count())
	s.Each(func(i uint) {
		out = append(out, interner.Name(i))
	})
	return out
}

// FromNames interns and sets every name in names against interner,
// returning the resulting Set.
func FromNames(interner *Interner, names map[ident.Canonical]bool) *Set {
	s := NewSet()
	for name := range names {
		s.Add(interner.Intern(name))
	}
	return s
}
