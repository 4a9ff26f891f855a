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
package stages

import (
	"sort"

	"github.com/sdkit/engine/pkg/ident"
	"github.com/sdkit/engine/pkg/varset"
)

// TopoSort orders nodes so that every dependency of a node (per deps)
// precedes it, breaking ties by canonical-name order for determinism
// (§3.7's "canonical-identifier sort order" convention extends naturally
// to runlist ordering). Entries in deps that are not themselves members of
// nodes are treated as already-satisfied external values (e.g. TIME, or a
// cross-module reference already represented by its owning Module node)
// and contribute no edge. If a cycle is found among nodes, ok is false and
// cycle holds the back-edge that closed it (the dependency already on the
// DFS stack, then the node that depends on it).
//
// DFS color state (white/gray/black) is tracked as two varset.Sets over
// each node's interned index rather than a map, the same bitset-backed
// visited-marking varset.Set was built for.
func TopoSort(nodes []ident.Canonical, deps map[ident.Canonical][]ident.Canonical) (order []ident.Canonical, cycle []ident.Canonical, ok bool) {
	interner := varset.NewInterner()
	for _, n := range nodes {
		interner.Intern(n)
	}

	onStack := varset.NewSet()
	done := varset.NewSet()

	var visit func(n ident.Canonical) bool
	visit = func(n ident.Canonical) bool {
		i, _ := interner.Lookup(n)
		onStack.Add(i)
		ds := append([]ident.Canonical(nil), deps[n]...)
		sort.Slice(ds, func(i, j int) bool { return ds[i] < ds[j] })

		for _, d := range ds {
			di, isNode := interner.Lookup(d)
			if !isNode {
				continue
			}
			switch {
			case done.Has(di):
				continue
			case onStack.Has(di):
				cycle = []ident.Canonical{d, n}
				return false
			default:
				if !visit(d) {
					return false
				}
			}
		}
		onStack.Remove(i)
		done.Add(i)
		order = append(order, n)
		return true
	}

	sorted := append([]ident.Canonical(nil), nodes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	for _, n := range sorted {
		i, _ := interner.Lookup(n)
		if done.Has(i) {
			continue
		}
		if !visit(n) {
			return nil, cycle, false
		}
	}
	return order, nil, true
}
