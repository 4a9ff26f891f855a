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

// Package stages implements model-stage analysis (§4.5, C6): per-input-set
// dependency graphs and topological orderings (runlist_initials,
// runlist_flows, runlist_stocks), cycle detection (stock-breaks-cycle
// exception), and recursive module enumeration.
package stages

import (
	"sort"
	"strings"

	"github.com/sdkit/engine/pkg/ident"
	"github.com/sdkit/engine/pkg/model"
)

// InputSetKey identifies a distinct module input-set: the sorted set of
// child-side (Dst) identifiers bound as module inputs for one
// instantiation. The root model's input-set is always the empty key. Two
// instantiations of the same child model with the same bound Dst names
// compile to the same module-table entry even if their Src expressions
// differ, since Src is evaluated fresh per call site but does not change
// which IsModuleInput guards resolve true (§4.5).
type InputSetKey string

// MakeInputSetKey canonicalizes a binding list's Dst names into a stable
// key.
func MakeInputSetKey(dsts []ident.Canonical) InputSetKey {
	if len(dsts) == 0 {
		return ""
	}
	sorted := append([]ident.Canonical(nil), dsts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	parts := make([]string, len(sorted))
	for i, d := range sorted {
		parts[i] = string(d)
	}
	return InputSetKey(strings.Join(parts, ","))
}

// InputSet builds the boolean membership map AnalyzeVariable expects from
// a binding list's Dst names.
func InputSet(dsts []ident.Canonical) map[ident.Canonical]bool {
	out := make(map[ident.Canonical]bool, len(dsts))
	for _, d := range dsts {
		out[d] = true
	}
	return out
}

// ModuleInstance is one distinct (model, input-set) compilation unit
// (§4.5's "module table").
type ModuleInstance struct {
	ModelName ident.Canonical
	Key       InputSetKey
	BoundSet  map[ident.Canonical]bool
	// Bindings is a representative binding list for this instance (the
	// first Module variable discovered instantiating ModelName under Key);
	// enough to resolve each ModuleInputRef's Src expression in a parent
	// scope at compile time.
	Bindings []model.InputBinding
}

// EnumerateModules walks the project from its root model, recursively
// collecting every reachable child model together with the distinct
// input-sets it is instantiated under (§4.5 "Enumerate modules").
func EnumerateModules(p *model.Project) map[ident.Canonical][]*ModuleInstance {
	result := make(map[ident.Canonical][]*ModuleInstance)
	seen := make(map[string]bool)

	var walk func(modelName ident.Canonical, key InputSetKey, boundSet map[ident.Canonical]bool, bindings []model.InputBinding)
	walk = func(modelName ident.Canonical, key InputSetKey, boundSet map[ident.Canonical]bool, bindings []model.InputBinding) {
		sig := string(modelName) + "\x00" + string(key)
		if seen[sig] {
			return
		}
		seen[sig] = true
		result[modelName] = append(result[modelName], &ModuleInstance{
			ModelName: modelName,
			Key:       key,
			BoundSet:  boundSet,
			Bindings:  bindings,
		})

		m, ok := p.Models[modelName]
		if !ok {
			return
		}
		for _, name := range sortedVariableNames(m) {
			mod, ok := m.Variables[name].(*model.Module)
			if !ok {
				continue
			}
			dsts := make([]ident.Canonical, len(mod.Inputs))
			for i, b := range mod.Inputs {
				dsts[i] = b.Dst
			}
			walk(mod.ModelName, MakeInputSetKey(dsts), InputSet(dsts), mod.Inputs)
		}
	}

	if _, ok := p.Models[p.RootModel]; ok {
		walk(p.RootModel, "", map[ident.Canonical]bool{}, nil)
	}
	return result
}

func sortedVariableNames(m *model.Model) []ident.Canonical {
	names := make([]ident.Canonical, 0, len(m.Variables))
	for name := range m.Variables {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
