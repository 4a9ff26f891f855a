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

// Package dims implements §3.2/§4.2: named and indexed dimensions,
// subdimension relations, subscript iteration and dimension matching.
package dims

import (
	"fmt"
	"strconv"

	"github.com/sdkit/engine/pkg/ident"
)

// Kind distinguishes a Named dimension (an ordered list of element names)
// from an Indexed one (implicit elements "1".."n").
type Kind int

const (
	// Named dimensions carry explicit element names.
	Named Kind = iota
	// Indexed dimensions have elements 1..=n with no names of their own.
	Indexed
)

// Dimension is one of Named{elements, reverse index, maps_to} or
// Indexed{size}, per §3.2.
type Dimension struct {
	Name Canonical
	Kind Kind

	// Named-only fields.
	elements []Canonical          // ordered list of element names
	index    map[Canonical]int    // element -> 1-based position
	mapsTo   Canonical             // optional; "" if absent

	// Indexed-only field.
	size int
}

// Canonical is a local alias kept distinct from ident.Canonical at call
// sites that only ever deal in dimension/element names; it is the exact
// same underlying type.
type Canonical = ident.Canonical

// NewNamed constructs a Named dimension from an ordered element list.
func NewNamed(name Canonical, elements []Canonical) *Dimension {
	idx := make(map[Canonical]int, len(elements))
	for i, e := range elements {
		idx[e] = i + 1
	}
	return &Dimension{Name: name, Kind: Named, elements: elements, index: idx}
}

// NewIndexed constructs an Indexed dimension of the given positive size.
func NewIndexed(name Canonical, size int) *Dimension {
	return &Dimension{Name: name, Kind: Indexed, size: size}
}

// SetMapsTo records that this Named dimension maps to another dimension
// (§4.2), used when resolving cross-dimension element aliases.
func (d *Dimension) SetMapsTo(target Canonical) {
	d.mapsTo = target
}

// MapsTo returns the dimension this one maps to, and whether one was set.
func (d *Dimension) MapsTo() (Canonical, bool) {
	return d.mapsTo, d.mapsTo != ""
}

// Size returns the number of elements/positions in this dimension.
func (d *Dimension) Size() int {
	if d.Kind == Indexed {
		return d.size
	}
	return len(d.elements)
}

// Elements returns the ordered element names. For an Indexed dimension this
// synthesizes "1".."n".
func (d *Dimension) Elements() []Canonical {
	if d.Kind == Named {
		return d.elements
	}
	out := make([]Canonical, d.size)
	for i := 0; i < d.size; i++ {
		out[i] = Canonical(strconv.Itoa(i + 1))
	}
	return out
}

// Position returns the 1-based position of an element name within this
// dimension, or ok=false if it is not a member.
func (d *Dimension) Position(elem Canonical) (int, bool) {
	if d.Kind == Indexed {
		n, err := strconv.Atoi(string(elem))
		if err != nil || n < 1 || n > d.size {
			return 0, false
		}
		return n, true
	}
	p, ok := d.index[elem]
	return p, ok
}

// subdimRelation memoizes a (child, parent) -> parent_offsets[i] relation.
type subdimRelation struct {
	parentOffsets []int
	isContiguous  bool
}

// Table owns the full set of dimensions declared by a project (§3.2),
// lazily memoizing subdimension relations between them.
type Table struct {
	byName map[Canonical]*Dimension
	subdim map[[2]Canonical]*subdimRelation
}

// NewTable constructs an empty dimension table.
func NewTable() *Table {
	return &Table{
		byName: make(map[Canonical]*Dimension),
		subdim: make(map[[2]Canonical]*subdimRelation),
	}
}

// Add registers a dimension in the table, keyed by its canonical name.
func (t *Table) Add(d *Dimension) {
	t.byName[d.Name] = d
}

// Lookup returns the dimension with the given canonical name.
func (t *Table) Lookup(name Canonical) (*Dimension, bool) {
	d, ok := t.byName[name]
	return d, ok
}

// IsSubdimension determines whether child is a subdimension of parent: every
// element of child appears, in order, somewhere within parent. The relation
// is computed once and memoized.
func (t *Table) IsSubdimension(child, parent Canonical) (offsets []int, contiguous bool, ok bool) {
	key := [2]Canonical{child, parent}
	if rel, found := t.subdim[key]; found {
		return rel.parentOffsets, rel.isContiguous, true
	}

	cd, cok := t.byName[child]
	pd, pok := t.byName[parent]
	if !cok || !pok || cd.Kind != Named || pd.Kind != Named {
		return nil, false, false
	}

	offs := make([]int, 0, len(cd.elements))
	for _, e := range cd.elements {
		pos, ok := pd.Position(e)
		if !ok {
			return nil, false, false
		}
		offs = append(offs, pos-1)
	}

	contig := true
	for i := 1; i < len(offs); i++ {
		if offs[i] != offs[i-1]+1 {
			contig = false
			break
		}
	}

	rel := &subdimRelation{parentOffsets: offs, isContiguous: contig}
	t.subdim[key] = rel

	return rel.parentOffsets, rel.isContiguous, true
}

// SubscriptIterator yields every subscript tuple over the product of a list
// of dimensions, in row-major order (§4.2). For a Named dimension it yields
// element names; for Indexed, "1","2",...,"n".
type SubscriptIterator struct {
	dims    []*Dimension
	cursors []int
	done    bool
	total   int
	emitted int
}

// NewSubscriptIterator constructs an iterator over the cartesian product of
// dims. An empty dims list yields exactly one (empty) tuple.
func NewSubscriptIterator(dims []*Dimension) *SubscriptIterator {
	total := 1
	for _, d := range dims {
		total *= d.Size()
	}
	return &SubscriptIterator{
		dims:    dims,
		cursors: make([]int, len(dims)),
		total:   total,
	}
}

// HasNext reports whether there are more tuples to visit.
func (it *SubscriptIterator) HasNext() bool {
	return !it.done && it.emitted < it.total
}

// Next returns the next subscript tuple and advances the iterator. The
// returned slice is the tuple's element names in dimension order.
func (it *SubscriptIterator) Next() []Canonical {
	tuple := make([]Canonical, len(it.dims))
	for i, d := range it.dims {
		tuple[i] = d.Elements()[it.cursors[i]]
	}

	it.emitted++
	// advance cursors, row-major (rightmost dimension varies fastest)
	for i := len(it.dims) - 1; i >= 0; i-- {
		it.cursors[i]++
		if it.cursors[i] < it.dims[i].Size() {
			break
		}
		it.cursors[i] = 0
		if i == 0 {
			it.done = true
		}
	}
	if len(it.dims) == 0 {
		it.done = true
	}

	return tuple
}

// Collect drains the iterator into a slice of all tuples, each joined with
// "," into the canonical subscript-key form used by Arrayed equations.
func (it *SubscriptIterator) Collect() []string {
	var out []string
	for it.HasNext() {
		out = append(out, JoinKey(it.Next()))
	}
	return out
}

// JoinKey joins a subscript tuple into the comma-separated key used to index
// Arrayed equation maps (§3.4).
func JoinKey(tuple []Canonical) string {
	if len(tuple) == 0 {
		return ""
	}
	s := string(tuple[0])
	for _, e := range tuple[1:] {
		s += "," + string(e)
	}
	return s
}

// Mapping is the result of matching a source dimension list against a target
// dimension list (§4.2): for each source dimension index, which target index
// it was matched to.
type Mapping struct {
	// SourceToTarget[i] is the target dimension index that source dimension i
	// was matched against.
	SourceToTarget []int
}

// MatchDimensions performs the two-pass match described in §4.2: pass 1,
// every source dimension with an exact-name hit in target reserves that
// target slot; pass 2, remaining source dims of kind Indexed match any
// remaining target Indexed dim of the same size. Named dims never match by
// size alone. Returns ok=false if any source dimension could not be matched.
func MatchDimensions(source, target []*Dimension) (Mapping, bool) {
	used := make([]bool, len(target))
	matched := make([]int, len(source))
	for i := range matched {
		matched[i] = -1
	}

	// pass 1: exact name match
	for i, s := range source {
		for j, tgt := range target {
			if used[j] {
				continue
			}
			if s.Name == tgt.Name {
				matched[i] = j
				used[j] = true
				break
			}
		}
	}

	// pass 2: indexed dims match any remaining indexed target of same size
	for i, s := range source {
		if matched[i] != -1 {
			continue
		}
		if s.Kind != Indexed {
			return Mapping{}, false
		}
		for j, tgt := range target {
			if used[j] || tgt.Kind != Indexed {
				continue
			}
			if tgt.Size() == s.Size() {
				matched[i] = j
				used[j] = true
				break
			}
		}
		if matched[i] == -1 {
			return Mapping{}, false
		}
	}

	return Mapping{SourceToTarget: matched}, true
}

// Invert produces the reverse mapping target->source, valid when the
// original mapping is a bijection between equally-sized named dimension
// lists (§8.1's dimension-matching symmetry property).
func (m Mapping) Invert(targetLen int) Mapping {
	inv := make([]int, targetLen)
	for i := range inv {
		inv[i] = -1
	}
	for src, tgt := range m.SourceToTarget {
		inv[tgt] = src
	}
	return Mapping{SourceToTarget: inv}
}

// FindDimensionReordering returns the permutation of source onto target when
// both dimension-name lists are equal as multisets (§4.2), or ok=false
// otherwise. perm[i] is the index in source of the dimension that should
// occupy position i in target's ordering.
func FindDimensionReordering(source, target []Canonical) (perm []int, ok bool) {
	if len(source) != len(target) {
		return nil, false
	}

	used := make([]bool, len(source))
	perm = make([]int, len(target))

	for i, t := range target {
		found := false
		for j, s := range source {
			if used[j] {
				continue
			}
			if s == t {
				perm[i] = j
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}

	return perm, true
}

// String implements fmt.Stringer for debug output.
func (d *Dimension) String() string {
	if d.Kind == Named {
		return fmt.Sprintf("%s{%d named elements}", d.Name, len(d.elements))
	}
	return fmt.Sprintf("%s{indexed, size=%d}", d.Name, d.size)
}
