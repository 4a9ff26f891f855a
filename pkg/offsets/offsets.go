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

// Package offsets implements the flat state-vector offset planner (§3.7,
// §4.6, C7): it assigns every variable of every module instantiation a
// stable (offset, size) span within one contiguous root-module float
// array, recursing into sub-modules and reserving the root's four
// implicit time slots.
package offsets

import (
	"sort"

	"github.com/sdkit/engine/pkg/errors"
	"github.com/sdkit/engine/pkg/ident"
	"github.com/sdkit/engine/pkg/model"
	"github.com/sdkit/engine/pkg/stages"
)

// Reserved root slots (§3.7).
const (
	SlotTime         = 0
	SlotDt           = 1
	SlotInitialTime  = 2
	SlotFinalTime    = 3
	reservedRootSize = 4
)

// Entry is one variable's assigned span.
type Entry struct {
	Offset int
	Size   int
}

// ModuleTable is the (model, input-set) -> (variable -> Entry) map
// produced by Plan, plus the module's own total flattened size (needed by
// the parent when it, in turn, assigns a span for the Module variable that
// instantiates this entry).
type ModuleTable struct {
	ModelName ident.Canonical
	Key       stages.InputSetKey
	Offsets   map[ident.Canonical]Entry
	// Base is the absolute offset this instantiation's variables start
	// from (its first variable's Entry.Offset - reservedRootSize-adjusted
	// at the root); child ModuleTables nested below record their own
	// Base relative to the same shared root array.
	Base int
	Size int
}

// Plan computes §4.6's offset table for every reachable (model, input-set)
// pair starting from the project's root model, in one pass over
// stages.EnumerateModules's output. The root module's table additionally
// reserves the four implicit time slots at offsets 0-3.
func Plan(p *model.Project) (map[string]*ModuleTable, *errors.Error) {
	instancesByModel := stages.EnumerateModules(p)
	tables := make(map[string]*ModuleTable)

	rootInstances := instancesByModel[p.RootModel]
	if len(rootInstances) == 0 {
		return nil, errors.New(errors.KindModel, errors.NotSimulatable, string(p.RootModel), "root model not found")
	}

	cursor := reservedRootSize
	root := rootInstances[0]
	if _, _, err := planOne(p, root.ModelName, root.Key, root.BoundSet, &cursor, instancesByModel, tables); err != nil {
		return nil, err
	}

	return tables, nil
}

// TableKey builds the map key Plan's result is indexed by, so other
// packages (the compiler) can look up a specific (model, input-set)
// instantiation's ModuleTable without reimplementing the encoding.
func TableKey(modelName ident.Canonical, key stages.InputSetKey) string {
	return string(modelName) + "\x00" + string(key)
}

// planOne assigns offsets for one (model, input-set) instantiation,
// advancing *cursor past every slot it consumes, and recording the result
// in tables. Returns the assigned ModuleTable and its total size.
func planOne(
	p *model.Project,
	modelName ident.Canonical,
	key stages.InputSetKey,
	boundSet map[ident.Canonical]bool,
	cursor *int,
	instancesByModel map[ident.Canonical][]*stages.ModuleInstance,
	tables map[string]*ModuleTable,
) (*ModuleTable, int, *errors.Error) {
	sig := TableKey(modelName, key)
	if existing, ok := tables[sig]; ok {
		return existing, existing.Size, nil
	}

	m, ok := p.Models[modelName]
	if !ok {
		return nil, 0, errors.New(errors.KindModel, errors.NotSimulatable, string(modelName), "model not found")
	}

	base := *cursor
	mt := &ModuleTable{ModelName: modelName, Key: key, Base: base, Offsets: make(map[ident.Canonical]Entry)}
	tables[sig] = mt

	for _, name := range sortedNames(m) {
		v := m.Variables[name]

		if mod, isModule := v.(*model.Module); isModule {
			dsts := make([]ident.Canonical, len(mod.Inputs))
			for i, b := range mod.Inputs {
				dsts[i] = b.Dst
			}
			childKey := stages.MakeInputSetKey(dsts)
			childBound := stages.InputSet(dsts)

			preOffset := *cursor
			_, childSize, err := planOne(p, mod.ModelName, childKey, childBound, cursor, instancesByModel, tables)
			if err != nil {
				return nil, 0, err
			}
			mt.Offsets[name] = Entry{Offset: preOffset, Size: childSize}
			continue
		}

		size := variableSize(v, p)
		mt.Offsets[name] = Entry{Offset: *cursor, Size: size}
		*cursor += size
	}

	mt.Size = *cursor - base
	return mt, mt.Size, nil
}

func variableSize(v model.Variable, p *model.Project) int {
	var dimNames []ident.Canonical
	switch vv := v.(type) {
	case *model.Stock:
		dimNames = vv.Initial.DimNames
	case *model.Var:
		dimNames = vv.Current.DimNames
		if len(dimNames) == 0 {
			dimNames = vv.Initial.DimNames
		}
	}
	if len(dimNames) == 0 {
		return 1
	}
	size := 1
	for _, dn := range dimNames {
		d, ok := p.Dimensions.Lookup(dn)
		if !ok {
			return 1
		}
		size *= d.Size()
	}
	return size
}

func sortedNames(m *model.Model) []ident.Canonical {
	names := make([]ident.Canonical, 0, len(m.Variables))
	for name := range m.Variables {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
