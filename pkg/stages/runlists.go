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
	"strings"

	"github.com/sdkit/engine/pkg/errors"
	"github.com/sdkit/engine/pkg/ident"
	"github.com/sdkit/engine/pkg/model"
	"github.com/sdkit/engine/pkg/variable"
)

// Runlists is the Stage 1 output for one model under one input-set (§4.5):
// three topological orderings over the model's own (non-dotted) variable
// names. Dotted cross-module references are localized to the owning
// Module's own name before ordering (a module's whole flows list executes
// atomically when its EvalModule node runs).
type Runlists struct {
	Initials []ident.Canonical
	Flows    []ident.Canonical
	Stocks   []ident.Canonical
}

// BuildRunlists runs Stage 1 for one model instantiated under inputSet,
// returning the three runlists, the per-variable Analysis used to build
// them (needed again by the compiler), or a CircularDependency Error if
// either graph has a cycle among non-stock nodes.
func BuildRunlists(m *model.Model, scope *variable.ModelScope, inputSet map[ident.Canonical]bool) (*Runlists, map[ident.Canonical]*variable.Analysis, *errors.Error) {
	analyses := make(map[ident.Canonical]*variable.Analysis, len(m.Variables))

	var stockNames []ident.Canonical
	var flowNodes []ident.Canonical
	var initNodes []ident.Canonical
	flowDeps := make(map[ident.Canonical][]ident.Canonical)
	initDeps := make(map[ident.Canonical][]ident.Canonical)

	for _, name := range sortedVariableNames(m) {
		v := m.Variables[name]
		a := variable.AnalyzeVariable(scope, v, inputSet)
		analyses[name] = a

		initNodes = append(initNodes, name)
		initDeps[name] = localize(a.InitialDeps, m)

		if _, isStock := v.(*model.Stock); isStock {
			stockNames = append(stockNames, name)
			continue
		}
		flowNodes = append(flowNodes, name)
		flowDeps[name] = localize(a.CurrentDeps, m)
	}

	flowOrder, flowCycle, flowOK := TopoSort(flowNodes, flowDeps)
	if !flowOK {
		return nil, analyses, errors.New(errors.KindModel, errors.CircularDependency, string(m.Name), cycleDetails(flowCycle))
	}

	initOrder, initCycle, initOK := TopoSort(initNodes, initDeps)
	if !initOK {
		return nil, analyses, errors.New(errors.KindModel, errors.CircularDependency, string(m.Name), cycleDetails(initCycle))
	}

	sort.Slice(stockNames, func(i, j int) bool { return stockNames[i] < stockNames[j] })

	return &Runlists{Initials: initOrder, Flows: flowOrder, Stocks: stockNames}, analyses, nil
}

// localize rewrites each dependency name in deps to the owning Module's own
// name when it is a dotted cross-module reference (e.g. "births·value"
// becomes "births"), and drops any name that is neither a local variable
// nor a locally-owned module (it is resolved in an enclosing scope and is
// always already available, e.g. a bare TIME/DT read or a parent-scope
// Src expression feeding a module input).
func localize(deps map[ident.Canonical]bool, m *model.Model) []ident.Canonical {
	seen := make(map[ident.Canonical]bool, len(deps))
	var out []ident.Canonical
	for name := range deps {
		owner := name
		if head, _, ok := ident.SplitAtDot(name); ok {
			owner = head
		}
		if _, ok := m.Variables[owner]; !ok {
			continue
		}
		if !seen[owner] {
			seen[owner] = true
			out = append(out, owner)
		}
	}
	return out
}

func cycleDetails(cycle []ident.Canonical) string {
	parts := make([]string, len(cycle))
	for i, c := range cycle {
		parts[i] = string(c)
	}
	return strings.Join(parts, " -> ")
}
