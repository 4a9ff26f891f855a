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

// Package results implements §4.10/§6.2 (C11): the flattened-name index
// over a simulation's raw state-vector slab, and the naming scheme itself
// (scalar root "x", sub-module "m.x" display / "m·x" canonical, arrayed
// "y[a,1]" in row-major subscript-iterator order).
package results

import (
	"fmt"
	"math"

	"github.com/sdkit/engine/pkg/dims"
	"github.com/sdkit/engine/pkg/ident"
	"github.com/sdkit/engine/pkg/model"
	"github.com/sdkit/engine/pkg/offsets"
	"github.com/sdkit/engine/pkg/stages"
)

// Results is the full output of one simulation run (§6.2): the raw
// step_count x step_size slab plus a flattened-name -> offset index for
// cheap per-variable series extraction.
type Results struct {
	Offsets   map[string]int
	Data      []float64
	StepSize  int
	StepCount int
	Specs     model.SimSpecs
}

// At reads variable name at step k: data[k*step_size + offsets[name]]
// (§6.2). Returns NaN if name is unknown or k is out of range.
func (r *Results) At(name string, k int) float64 {
	off, ok := r.Offsets[name]
	if !ok || k < 0 || k >= r.StepCount {
		return math.NaN()
	}
	return r.Data[k*r.StepSize+off]
}

// Count returns the number of saved steps.
func (r *Results) Count() int { return r.StepCount }

// Time returns the simulation time stamped on saved step k.
func (r *Results) Time(k int) float64 {
	if k < 0 || k >= r.StepCount {
		return math.NaN()
	}
	return r.Data[k*r.StepSize+offsets.SlotTime]
}

// Series returns every saved step's value for name, in time order.
func (r *Results) Series(name string) []float64 {
	off, ok := r.Offsets[name]
	if !ok {
		return nil
	}
	out := make([]float64, r.StepCount)
	for k := 0; k < r.StepCount; k++ {
		out[k] = r.Data[k*r.StepSize+off]
	}
	return out
}

// Names returns every flattened name the results index carries, unsorted
// (callers that need stable output order should sort the result).
func (r *Results) Names() []string {
	out := make([]string, 0, len(r.Offsets))
	for n := range r.Offsets {
		out = append(out, n)
	}
	return out
}

// BuildNames walks the project's offset-planned module tree starting from
// its root instantiation, producing the flattened-name -> absolute-offset
// map §4.10 describes. It is the one place that turns the offset planner's
// per-module, per-variable Entry spans into the dotted/bracketed flat names
// a Results index is keyed by.
func BuildNames(p *model.Project, tables map[string]*offsets.ModuleTable) map[string]int {
	out := make(map[string]int)
	root, ok := tables[offsets.TableKey(p.RootModel, "")]
	if !ok {
		return out
	}
	walkNames(p, tables, root, "", out)
	return out
}

func walkNames(p *model.Project, tables map[string]*offsets.ModuleTable, mt *offsets.ModuleTable, prefix string, out map[string]int) {
	m, ok := p.Models[mt.ModelName]
	if !ok {
		return
	}

	for name, entry := range mt.Offsets {
		v := m.Variables[name]
		display := ident.ToSourceRepr(name)
		full := display
		if prefix != "" {
			full = prefix + "." + display
		}

		if mod, isModule := v.(*model.Module); isModule {
			dsts := make([]ident.Canonical, len(mod.Inputs))
			for i, b := range mod.Inputs {
				dsts[i] = b.Dst
			}
			childKey := stages.MakeInputSetKey(dsts)
			childTable, ok := tables[offsets.TableKey(mod.ModelName, childKey)]
			if !ok {
				continue
			}
			walkNames(p, tables, childTable, full, out)
			continue
		}

		dimNames := variableDimNames(v)
		if len(dimNames) == 0 {
			out[full] = entry.Offset
			continue
		}

		dimList := make([]*dims.Dimension, 0, len(dimNames))
		for _, dn := range dimNames {
			d, ok := p.Dimensions.Lookup(dn)
			if !ok {
				out[full] = entry.Offset
				continue
			}
			dimList = append(dimList, d)
		}
		if len(dimList) != len(dimNames) {
			continue
		}

		it := dims.NewSubscriptIterator(dimList)
		flat := 0
		for it.HasNext() {
			tuple := it.Next()
			key := fmt.Sprintf("%s[%s]", full, dims.JoinKey(tuple))
			out[key] = entry.Offset + flat
			flat++
		}
	}
}

// variableDimNames mirrors offsets.variableSize's own small switch (kept
// private to that package): the DimNames of whichever equation actually
// carries them, so Results' arrayed naming lines up with the same spans
// the planner sized.
func variableDimNames(v model.Variable) []ident.Canonical {
	switch vv := v.(type) {
	case *model.Stock:
		return vv.Initial.DimNames
	case *model.Var:
		if len(vv.Current.DimNames) > 0 {
			return vv.Current.DimNames
		}
		return vv.Initial.DimNames
	}
	return nil
}
