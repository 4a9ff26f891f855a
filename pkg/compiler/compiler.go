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

// Package compiler implements Stage 2 of §4.5/C8: it walks every reachable
// (model, input-set) instantiation's runlists and lowers each variable's
// analyzed Expr3 into a bytecode.Node tree with every name substituted for
// a resolved offset, producing one CompiledModule per instantiation.
package compiler

import (
	"sort"
	"strings"

	"github.com/sdkit/engine/pkg/ast"
	"github.com/sdkit/engine/pkg/bytecode"
	"github.com/sdkit/engine/pkg/dims"
	"github.com/sdkit/engine/pkg/errors"
	"github.com/sdkit/engine/pkg/ident"
	"github.com/sdkit/engine/pkg/model"
	"github.com/sdkit/engine/pkg/offsets"
	"github.com/sdkit/engine/pkg/stages"
	"github.com/sdkit/engine/pkg/variable"
)

// CompiledVariable is one variable's compiled statement lists: at most one
// runs in the initials phase, one set runs in the flows phase (or a single
// EvalModule for a Module variable), and stocks additionally carry an
// update statement run in the stocks phase.
type CompiledVariable struct {
	Name     ident.Canonical
	Initials []bytecode.Node
	Flows    []bytecode.Node
	Stocks   []bytecode.Node
}

// CompiledModule is the bytecode form of one (model, input-set)
// instantiation (§4.7's "compiled module"): three ordered statement lists
// mirroring Runlists, plus the temp buffer sizes its expressions need.
type CompiledModule struct {
	ModelName ident.Canonical
	Key       stages.InputSetKey
	Base      int
	Size      int

	Initials []bytecode.Node
	Flows    []bytecode.Node
	Stocks   []bytecode.Node

	// InputOrder is the sorted Dst-name order EvalModule.Args must be
	// evaluated and passed in, matching ModuleInput(k)'s index space.
	InputOrder []ident.Canonical

	TempSizes map[int]int
}

// Program is every compiled module reachable from the project's root,
// keyed by offsets.TableKey(modelName, key).
type Program struct {
	Tables  map[string]*offsets.ModuleTable
	Modules map[string]*CompiledModule
	RootKey string
}

// Compile runs Stage 1 (variable analysis + runlists) and Stage 2 (offset
// planning + bytecode lowering) for every reachable module instantiation.
func Compile(p *model.Project) (*Program, *errors.Error) {
	instancesByModel := stages.EnumerateModules(p)
	tables, err := offsets.Plan(p)
	if err != nil {
		return nil, err
	}

	prog := &Program{
		Tables:  tables,
		Modules: make(map[string]*CompiledModule),
	}

	for modelName, instances := range instancesByModel {
		m, ok := p.Models[modelName]
		if !ok {
			return nil, errors.New(errors.KindModel, errors.NotSimulatable, string(modelName), "model not found")
		}
		for _, inst := range instances {
			sig := offsets.TableKey(modelName, inst.Key)
			mt, ok := tables[sig]
			if !ok {
				return nil, errors.New(errors.KindModel, errors.NotSimulatable, sig, "no offset table planned for instantiation")
			}

			scope := variable.NewModelScope(m, p.Dimensions)
			lists, analyses, rlErr := stages.BuildRunlists(m, scope, inst.BoundSet)
			if rlErr != nil {
				return nil, rlErr
			}

			cm, cErr := compileModule(p, tables, m, mt, inst, lists, analyses)
			if cErr != nil {
				return nil, cErr
			}
			prog.Modules[sig] = cm
		}
	}

	prog.RootKey = offsets.TableKey(p.RootModel, "")
	return prog, nil
}

func compileModule(
	p *model.Project,
	tables map[string]*offsets.ModuleTable,
	m *model.Model,
	mt *offsets.ModuleTable,
	inst *stages.ModuleInstance,
	lists *stages.Runlists,
	analyses map[ident.Canonical]*variable.Analysis,
) (*CompiledModule, *errors.Error) {
	cm := &CompiledModule{
		ModelName:  m.Name,
		Key:        inst.Key,
		Base:       mt.Base,
		Size:       mt.Size,
		InputOrder: sortedInputOrder(inst.Key),
		TempSizes:  make(map[int]int),
	}

	c := &ctx{p: p, tables: tables, mt: mt, inst: inst}

	for _, name := range lists.Initials {
		v := m.Variables[name]
		stmts, err := c.compileInitial(name, v, analyses[name])
		if err != nil {
			return nil, err
		}
		cm.Initials = append(cm.Initials, stmts...)
	}

	for _, name := range lists.Flows {
		v := m.Variables[name]
		stmts, err := c.compileFlow(name, v, analyses[name])
		if err != nil {
			return nil, err
		}
		cm.Flows = append(cm.Flows, stmts...)
	}

	for _, name := range lists.Stocks {
		stock := m.Variables[name].(*model.Stock)
		stmts, err := c.compileStockUpdate(name, stock, analyses[name])
		if err != nil {
			return nil, err
		}
		cm.Stocks = append(cm.Stocks, stmts...)
	}

	// A Module variable never appears in lists.Stocks (only genuine Stocks
	// do), but its child instantiation still owns stocks of its own that
	// must advance every step; dispatch the child's stocks phase once per
	// module variable, after the local stock updates.
	for _, mod := range sortedModuleVars(m) {
		node, err := c.compileEvalModule(mod, bytecode.PhaseStocks)
		if err != nil {
			return nil, err
		}
		cm.Stocks = append(cm.Stocks, node)
	}

	for _, n := range cm.Initials {
		collectTempSizes(n, cm.TempSizes)
	}
	for _, n := range cm.Flows {
		collectTempSizes(n, cm.TempSizes)
	}
	for _, n := range cm.Stocks {
		collectTempSizes(n, cm.TempSizes)
	}

	return cm, nil
}

// sortedModuleVars returns m's Module variables in sorted-name order, the
// same stable order compileModule already uses everywhere else.
func sortedModuleVars(m *model.Model) []*model.Module {
	var names []ident.Canonical
	for name, v := range m.Variables {
		if _, ok := v.(*model.Module); ok {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	out := make([]*model.Module, len(names))
	for i, n := range names {
		out[i] = m.Variables[n].(*model.Module)
	}
	return out
}

// sortedInputOrder recovers the sorted Dst-name order from an
// InputSetKey, matching stages.MakeInputSetKey's own sort so
// ModuleInput(k) indices line up with EvalModule.Args at the call site.
func sortedInputOrder(key stages.InputSetKey) []ident.Canonical {
	if key == "" {
		return nil
	}
	parts := strings.Split(string(key), ",")
	out := make([]ident.Canonical, len(parts))
	for i, s := range parts {
		out[i] = ident.Canonical(s)
	}
	return out
}

// ctx carries the per-instantiation state every compile* helper needs.
type ctx struct {
	p      *model.Project
	tables map[string]*offsets.ModuleTable
	mt     *offsets.ModuleTable
	inst   *stages.ModuleInstance
}

func (c *ctx) inputIndex(name ident.Canonical) (int, bool) {
	for i, n := range sortedInputOrder(c.inst.Key) {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// compileInitial produces the initials-phase statement(s) for one variable.
func (c *ctx) compileInitial(name ident.Canonical, v model.Variable, a *variable.Analysis) ([]bytecode.Node, *errors.Error) {
	entry, ok := c.mt.Offsets[name]
	if !ok {
		return nil, errors.ForVariable(errors.UnknownDependency, string(c.mt.ModelName), string(name), "no offset assigned")
	}
	rel := entry.Offset - c.mt.Base

	switch vv := v.(type) {
	case *model.Stock:
		return c.compileAssignments(vv.Initial, a.Lowered.Initial, a.Lowered.ArrayedInitial, rel)
	case *model.Var:
		if a.Lowered.Initial == nil && len(a.Lowered.ArrayedInitial) == 0 {
			// no separate initial lowering; reuse the current equation's
			// form (scalar fallback already copied in AnalyzeVariable, and
			// Arrayed falls back to Lowered.Arrayed below).
			return c.compileAssignments(vv.Current, a.Lowered.Current, a.Lowered.Arrayed, rel)
		}
		if vv.Initial.Kind == model.Arrayed {
			return c.compileAssignments(vv.Initial, nil, a.Lowered.ArrayedInitial, rel)
		}
		return c.compileAssignments(vv.Initial, a.Lowered.Initial, nil, rel)
	case *model.Module:
		node, err := c.compileEvalModule(vv, bytecode.PhaseInitials)
		if err != nil {
			return nil, err
		}
		return []bytecode.Node{node}, nil
	}
	return nil, nil
}

// compileFlow produces the flows-phase statement(s) for one non-stock
// variable. A Module variable compiles to a single EvalModule dispatch; a
// variable with no lowered Current (an empty-equation module-input
// placeholder) emits nothing, since reads of it are substituted for
// ModuleInput(k) directly at the use site.
func (c *ctx) compileFlow(name ident.Canonical, v model.Variable, a *variable.Analysis) ([]bytecode.Node, *errors.Error) {
	switch vv := v.(type) {
	case *model.Module:
		node, err := c.compileEvalModule(vv, bytecode.PhaseFlows)
		if err != nil {
			return nil, err
		}
		return []bytecode.Node{node}, nil
	case *model.Var:
		entry, ok := c.mt.Offsets[name]
		if !ok {
			return nil, errors.ForVariable(errors.UnknownDependency, string(c.mt.ModelName), string(name), "no offset assigned")
		}
		rel := entry.Offset - c.mt.Base
		return c.compileAssignments(vv.Current, a.Lowered.Current, a.Lowered.Arrayed, rel)
	}
	return nil, nil
}

// compileAssignments emits the assignment statement(s) for eq, in one of
// three shapes depending on eq.Kind (§4.2's three Equation kinds):
//
//   - Scalar: a single AssignCurr at rel.
//   - ApplyToAll: the SAME compiled expression tree evaluated once per flat
//     index of the variable's dimensions (one AssignCurr with Count set, so
//     the VM re-evaluates it per index rather than the compiler emitting
//     Count copies of an identical tree).
//   - Arrayed: one AssignCurr per entry, each at rel+(that entry's flat
//     index), found by mapping its canonical subscript key through the
//     model's dimension table.
//
// Any temp buffer the expression materializes (a reduction's argument, via
// ast.materialize) is hoisted into its own AssignTemp statement immediately
// before the statement that consumes it.
func (c *ctx) compileAssignments(eq model.Equation, scalar ast.Expr3, arrayed []ast.Expr3, rel int) ([]bytecode.Node, *errors.Error) {
	switch eq.Kind {
	case model.ApplyToAll:
		if scalar == nil {
			return nil, nil
		}
		count, err := c.applyToAllSize(eq.DimNames)
		if err != nil {
			return nil, err
		}
		prefix, node, sErr := c.compileExprStatement(scalar)
		if sErr != nil {
			return nil, sErr
		}
		return append(prefix, &bytecode.AssignCurr{Offset: rel, Value: node, Count: count}), nil

	case model.Arrayed:
		// Map each entry's canonical subscript key to its flat row-major
		// index via the model's dimension table, then emit one assignment
		// per index in that order.
		dimList := make([]*dims.Dimension, len(eq.DimNames))
		for i, dn := range eq.DimNames {
			d, ok := c.p.Dimensions.Lookup(dn)
			if !ok {
				return nil, errors.New(errors.KindModel, errors.BadDimensionName, string(dn), "dimension not found during compilation")
			}
			dimList[i] = d
		}
		it := dims.NewSubscriptIterator(dimList)
		keyToFlat := make(map[string]int)
		flat := 0
		for it.HasNext() {
			keyToFlat[dims.JoinKey(it.Next())] = flat
			flat++
		}

		var out []bytecode.Node
		for i, e3 := range arrayed {
			if i >= len(eq.Entries) {
				break
			}
			idx, ok := keyToFlat[eq.Entries[i].Subscript]
			if !ok {
				continue
			}
			prefix, node, err := c.compileExprStatement(e3)
			if err != nil {
				return nil, err
			}
			out = append(out, prefix...)
			out = append(out, &bytecode.AssignCurr{Offset: rel + idx, Value: node})
		}
		return out, nil

	default: // model.Scalar
		if scalar == nil {
			return nil, nil
		}
		prefix, node, err := c.compileExprStatement(scalar)
		if err != nil {
			return nil, err
		}
		return append(prefix, &bytecode.AssignCurr{Offset: rel, Value: node}), nil
	}
}

// applyToAllSize computes the flat element count an ApplyToAll equation's
// dimension list spans, the product of each named dimension's size.
func (c *ctx) applyToAllSize(dimNames []ident.Canonical) (int, *errors.Error) {
	size := 1
	for _, dn := range dimNames {
		d, ok := c.p.Dimensions.Lookup(dn)
		if !ok {
			return 0, errors.New(errors.KindModel, errors.BadDimensionName, string(dn), "dimension not found during compilation")
		}
		size *= d.Size()
	}
	return size, nil
}

// compileStockUpdate builds next = curr + dt*(sum(inflows) - sum(outflows)),
// clamped to zero when non_negative, per element of the stock's bounds
// (§4.7 "Stock update").
func (c *ctx) compileStockUpdate(name ident.Canonical, s *model.Stock, a *variable.Analysis) ([]bytecode.Node, *errors.Error) {
	entry, ok := c.mt.Offsets[name]
	if !ok {
		return nil, errors.ForVariable(errors.UnknownDependency, string(c.mt.ModelName), string(name), "no offset assigned")
	}
	rel := entry.Offset - c.mt.Base

	size := entry.Size
	var out []bytecode.Node
	for i := 0; i < size; i++ {
		cur, err := c.stockReadAt(rel, i)
		if err != nil {
			return nil, err
		}

		inflow, err := c.sumFlowsAt(s.Inflows, i, false)
		if err != nil {
			return nil, err
		}
		outflow, err := c.sumFlowsAt(s.Outflows, i, s.NonNegative)
		if err != nil {
			return nil, err
		}

		net := &bytecode.Op2{Op: ast.Sub, Left: inflow, Right: outflow}
		delta := &bytecode.Op2{Op: ast.Mul, Left: &bytecode.Dt{}, Right: net}
		next := bytecode.Node(&bytecode.Op2{Op: ast.Add, Left: cur, Right: delta})
		if s.NonNegative {
			next = &bytecode.App{Fn: ast.MaxFn, Args: []bytecode.Node{next, &bytecode.Const{Value: 0}}}
		}
		out = append(out, &bytecode.AssignNext{Offset: rel + i, Value: next})
	}
	return out, nil
}

func (c *ctx) stockReadAt(rel, i int) (bytecode.Node, *errors.Error) {
	return &bytecode.Var{Offset: rel + i}, nil
}

// sumFlowsAt sums a stock's inflow/outflow list's i-th element, clamping
// each addend at zero first when nonNegative is set (the outflow side of a
// non_negative stock update).
func (c *ctx) sumFlowsAt(names []ident.Canonical, i int, clampEach bool) (bytecode.Node, *errors.Error) {
	var sum bytecode.Node = &bytecode.Const{Value: 0}
	for _, name := range names {
		read, err := c.resolveRead(name)
		if err != nil {
			return nil, err
		}
		var term bytecode.Node = offsetBy(read, i)
		if clampEach {
			term = &bytecode.App{Fn: ast.MaxFn, Args: []bytecode.Node{term, &bytecode.Const{Value: 0}}}
		}
		sum = &bytecode.Op2{Op: ast.Add, Left: sum, Right: term}
	}
	return sum, nil
}

// offsetBy adjusts a resolved Var/ModuleInput read by a flat-index offset i
// (for an arrayed inflow/outflow target); scalar targets pass i == 0.
func offsetBy(n bytecode.Node, i int) bytecode.Node {
	if i == 0 {
		return n
	}
	switch v := n.(type) {
	case *bytecode.Var:
		return &bytecode.Var{Offset: v.Offset + i, VarBounds: v.VarBounds}
	default:
		return n
	}
}

// compileEvalModule builds a Module variable's EvalModule statement for the
// given phase: one Var(src_off) argument per Dst binding, in the same
// sorted order the child's ModuleInput(k) indices expect (evaluated and
// re-latched into the child's input slots on every dispatch, regardless of
// phase, since it's cheap and the child may read a bound input from any of
// its three runlists), plus ChildBase resolved from this module variable's
// own offset entry.
func (c *ctx) compileEvalModule(mod *model.Module, phase bytecode.Phase) (bytecode.Node, *errors.Error) {
	dsts := make([]ident.Canonical, len(mod.Inputs))
	bySrc := make(map[ident.Canonical]ident.Canonical, len(mod.Inputs))
	for i, b := range mod.Inputs {
		dsts[i] = b.Dst
		bySrc[b.Dst] = b.Src
	}
	key := stages.MakeInputSetKey(dsts)
	order := sortedInputOrder(key)

	args := make([]bytecode.Node, len(order))
	for i, dst := range order {
		src := bySrc[dst]
		node, err := c.resolveRead(src)
		if err != nil {
			return nil, err
		}
		args[i] = node
	}

	childBase, _, err := resolveOffset(c.p, c.tables, c.mt, mod.Name)
	if err != nil {
		return nil, err
	}

	return &bytecode.EvalModule{
		ChildIdent: mod.Name,
		ChildModel: mod.ModelName,
		InputSet:   key,
		ChildBase:  childBase,
		Phase:      phase,
		Args:       args,
	}, nil
}

// resolveRead resolves a bare identifier (a stock inflow/outflow name or a
// module input's Src expression) to a bytecode read node: ModuleInput(k)
// when name is bound as this instantiation's own input, a local Var
// otherwise, recursing through a dotted module·var path via the child's own
// offset table when name crosses into a locally-instantiated sub-module.
func (c *ctx) resolveRead(name ident.Canonical) (bytecode.Node, *errors.Error) {
	if c.inst.BoundSet[name] {
		idx, ok := c.inputIndex(name)
		if !ok {
			return nil, errors.ForVariable(errors.BadModuleInputDst, string(c.mt.ModelName), string(name), "bound input missing from sorted order")
		}
		return &bytecode.ModuleInput{Index: idx}, nil
	}
	rel, _, err := resolveOffset(c.p, c.tables, c.mt, name)
	if err != nil {
		return nil, err
	}
	return &bytecode.Var{Offset: rel}, nil
}

// resolveOffset resolves name (possibly a dotted module·var path) to an
// offset relative to mt's own Base, recursing into a nested module's own
// table when the path crosses a Module variable. The returned offset is
// still relative to mt.Base even after recursion: a nested module's
// contribution is (that module's own offset within mt) + (the tail's
// offset within the nested module's table), both of which are fixed at
// compile time regardless of which absolute base the nested module runs
// at when this bytecode is reused across instantiation sites.
func resolveOffset(p *model.Project, tables map[string]*offsets.ModuleTable, mt *offsets.ModuleTable, name ident.Canonical) (int, int, *errors.Error) {
	head, tail, dotted := ident.SplitAtDot(name)
	if !dotted {
		entry, ok := mt.Offsets[name]
		if !ok {
			return 0, 0, errors.ForVariable(errors.UnknownDependency, string(mt.ModelName), string(name), "unresolved identifier")
		}
		return entry.Offset - mt.Base, entry.Size, nil
	}

	m, ok := p.Models[mt.ModelName]
	if !ok {
		return 0, 0, errors.New(errors.KindModel, errors.NotSimulatable, string(mt.ModelName), "model not found")
	}
	modVar, ok := m.Variables[head].(*model.Module)
	if !ok {
		return 0, 0, errors.ForVariable(errors.ExpectedModule, string(mt.ModelName), string(head), "dotted reference head is not a module")
	}
	headEntry, ok := mt.Offsets[head]
	if !ok {
		return 0, 0, errors.ForVariable(errors.UnknownDependency, string(mt.ModelName), string(head), "module variable has no offset")
	}

	dsts := make([]ident.Canonical, len(modVar.Inputs))
	for i, b := range modVar.Inputs {
		dsts[i] = b.Dst
	}
	childKey := stages.MakeInputSetKey(dsts)
	childTable, ok := tables[offsets.TableKey(modVar.ModelName, childKey)]
	if !ok {
		return 0, 0, errors.New(errors.KindModel, errors.NotSimulatable, string(modVar.ModelName), "no offset table for nested instantiation")
	}

	tailRel, tailSize, err := resolveOffset(p, tables, childTable, tail)
	if err != nil {
		return 0, 0, err
	}
	return (headEntry.Offset - mt.Base) + tailRel, tailSize, nil
}

// collectTempSizes walks a compiled statement, recording the maximum
// observed size for every AssignTemp id it finds (§4.7 "Temp sizing").
func collectTempSizes(n bytecode.Node, sizes map[int]int) {
	switch v := n.(type) {
	case nil:
		return
	case *bytecode.AssignTemp:
		size := v.TempBounds.FlatSize()
		if size > sizes[v.ID] {
			sizes[v.ID] = size
		}
		collectTempSizes(v.Value, sizes)
	case *bytecode.AssignCurr:
		collectTempSizes(v.Value, sizes)
	case *bytecode.AssignNext:
		collectTempSizes(v.Value, sizes)
	case *bytecode.Op1:
		collectTempSizes(v.Arg, sizes)
	case *bytecode.Op2:
		collectTempSizes(v.Left, sizes)
		collectTempSizes(v.Right, sizes)
	case *bytecode.If:
		collectTempSizes(v.Cond, sizes)
		collectTempSizes(v.Then, sizes)
		collectTempSizes(v.Else, sizes)
	case *bytecode.App:
		for _, a := range v.Args {
			collectTempSizes(a, sizes)
		}
	case *bytecode.Subscript:
		for _, idx := range v.Indices {
			collectTempSizes(idx, sizes)
		}
	case *bytecode.EvalModule:
		for _, a := range v.Args {
			collectTempSizes(a, sizes)
		}
	}
}
