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
package variable

import (
	"strings"

	"github.com/sdkit/engine/pkg/ast"
	"github.com/sdkit/engine/pkg/errors"
	"github.com/sdkit/engine/pkg/ident"
	"github.com/sdkit/engine/pkg/model"
)

// Lowered holds the L3 form(s) of one variable's equation(s), ready for the
// compiler (C8). A Stock carries Initial (and, separately, the flow
// expressions referenced by name live on the inflow/outflow variables
// themselves). A Var carries Current and, if present, Initial.
type Lowered struct {
	Current ast.Expr3 // nil for a pure Stock analysis (see Initial)
	Initial ast.Expr3
	// Arrayed holds one lowered Expr3 per entry of the Current equation's
	// Entries, in entry order, when that equation is model.Arrayed; empty
	// otherwise. ArrayedInitial is the same for a separately-specified
	// Initial equation's own Entries; empty when the variable has no
	// separate initial (the compiler falls back to Arrayed, mirroring the
	// scalar Current/Initial fallback).
	Arrayed        []ast.Expr3
	ArrayedInitial []ast.Expr3
}

// Analysis is the per-variable output of variable analysis (§4.4).
// CurrentDeps feeds the runlist_flows graph; InitialDeps feeds
// runlist_initials; Deps is their union, kept for callers that don't need
// the distinction.
type Analysis struct {
	Name        ident.Canonical
	Lowered     Lowered
	Deps        map[ident.Canonical]bool
	CurrentDeps map[ident.Canonical]bool
	InitialDeps map[ident.Canonical]bool
	NonNegative bool
	Errors      []*errors.EquationError
}

// AnalyzeVariable lowers v's equation(s) against scope and extracts its
// dependency set. inputSet is the canonical-name set of variables bound as
// module inputs in the active instantiation (possibly nil for the root
// model, which always has the empty input-set); it is used to prune
// IsModuleInput guards before dependencies are collected (§4.4).
func AnalyzeVariable(scope *ModelScope, v model.Variable, inputSet map[ident.Canonical]bool) *Analysis {
	a := &Analysis{
		Name:        v.Ident(),
		Deps:        make(map[ident.Canonical]bool),
		CurrentDeps: make(map[ident.Canonical]bool),
		InitialDeps: make(map[ident.Canonical]bool),
	}

	switch vv := v.(type) {
	case *model.Stock:
		a.NonNegative = vv.NonNegative
		a.lowerEquation(scope, vv.Initial, inputSet, true)
	case *model.Var:
		a.NonNegative = vv.NonNegative
		if vv.Current.IsZero() && vv.IsTableOnly {
			// table-only variables have no RHS of their own beyond the lookup
			// input, which is itself a separate Var's Current; nothing to lower.
			break
		}
		a.lowerEquation(scope, vv.Current, inputSet, false)
		if !vv.Initial.IsZero() {
			a.lowerEquation(scope, vv.Initial, inputSet, true)
		} else {
			for name := range a.CurrentDeps {
				a.InitialDeps[name] = true
			}
		}
	case *model.Module:
		// A module's "equation" is its input bindings, each a reference to a
		// parent-scope identifier; there is no expression to lower, but the
		// bindings themselves are dependencies on the parent side, for both
		// graphs.
		for _, b := range vv.Inputs {
			a.Deps[b.Src] = true
			a.CurrentDeps[b.Src] = true
			a.InitialDeps[b.Src] = true
		}
	}

	return a
}

func (a *Analysis) lowerEquation(scope *ModelScope, eq model.Equation, inputSet map[ident.Canonical]bool, isInitial bool) {
	switch eq.Kind {
	case model.Scalar, model.ApplyToAll:
		if eq.Expr == nil {
			a.Errors = append(a.Errors, errors.NewEquationError(errors.EmptyEquation, errors.Span{}, "missing required equation"))
			return
		}
		for _, d := range eq.DimNames {
			scope.Unbind(d)
		}
		alloc := &ast.TempAllocator{}
		e3, errs := ast.Lower(eq.Expr, scope.dims, scope, alloc)
		a.Errors = append(a.Errors, errs...)
		e3 = ast.PruneModuleInputGuards(e3, inputSet)
		a.collectDeps(e3, isInitial)
		if isInitial {
			a.Lowered.Initial = e3
		} else {
			a.Lowered.Current = e3
		}

	case model.Arrayed:
		for _, entry := range eq.Entries {
			elems := strings.Split(entry.Subscript, ",")
			if len(elems) == len(eq.DimNames) {
				for i, d := range eq.DimNames {
					scope.Bind(d, ident.Canonical(strings.TrimSpace(elems[i])))
				}
			}

			target := entry.Expr
			if isInitial {
				target = entry.Initial
			}
			if target == nil {
				for _, d := range eq.DimNames {
					scope.Unbind(d)
				}
				continue
			}

			alloc := &ast.TempAllocator{}
			e3, errs := ast.Lower(target, scope.dims, scope, alloc)
			a.Errors = append(a.Errors, errs...)
			e3 = ast.PruneModuleInputGuards(e3, inputSet)
			a.collectDeps(e3, isInitial)
			if isInitial {
				a.Lowered.ArrayedInitial = append(a.Lowered.ArrayedInitial, e3)
			} else {
				a.Lowered.Arrayed = append(a.Lowered.Arrayed, e3)
			}

			for _, d := range eq.DimNames {
				scope.Unbind(d)
			}
		}
	}
}

// collectDeps walks e3, adding every Var3 reference's name to a.Deps and,
// depending on which equation this walk originated from, to a.CurrentDeps
// or a.InitialDeps. Dimension names never appear as Var3 (only as
// SubIndex2/dims.Table entries), and pruned IsModuleInputPred3 guards have
// already been replaced with constants by the time this runs, so
// dead-branch dependencies are naturally excluded.
func (a *Analysis) collectDeps(e3 ast.Expr3, isInitial bool) {
	add := func(name ident.Canonical) {
		a.Deps[name] = true
		if isInitial {
			a.InitialDeps[name] = true
		} else {
			a.CurrentDeps[name] = true
		}
	}

	switch n := e3.(type) {
	case nil:
		return
	case *ast.Var3:
		add(n.Name)
	case *ast.StaticSubscript3:
		a.collectDeps(n.Target, isInitial)
	case *ast.Subscript3:
		a.collectDeps(n.Target, isInitial)
		for _, idx := range n.Indices {
			a.collectDeps(idx, isInitial)
		}
	case *ast.TempArray3:
		if asn := n.Assign(); asn != nil {
			a.collectDeps(asn.Value, isInitial)
		}
	case *ast.AssignTemp3:
		a.collectDeps(n.Value, isInitial)
	case *ast.UnaryOp3:
		a.collectDeps(n.Arg, isInitial)
	case *ast.BinaryOp3:
		a.collectDeps(n.Left, isInitial)
		a.collectDeps(n.Right, isInitial)
	case *ast.If3:
		a.collectDeps(n.Cond, isInitial)
		a.collectDeps(n.Then, isInitial)
		a.collectDeps(n.Else, isInitial)
	case *ast.App3:
		for _, arg := range n.Args {
			a.collectDeps(arg, isInitial)
		}
	case *ast.IsModuleInputPred3:
		add(n.VarName)
	}
}
