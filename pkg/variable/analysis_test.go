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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sdkit/engine/pkg/ast"
	"github.com/sdkit/engine/pkg/dims"
	"github.com/sdkit/engine/pkg/ident"
	"github.com/sdkit/engine/pkg/model"
)

// TestAnalyzeScalarDeps reproduces Scenario A's (§8.2 Teacup) stock: the
// net-inflow expression depends on one aux variable.
func TestAnalyzeScalarDeps(t *testing.T) {
	table := dims.NewTable()
	m := model.NewModel("main")
	m.AddVariable(&model.Var{
		Name: "cooling_rate",
		Current: model.Equation{
			Kind: model.Scalar,
			Expr: &ast.BinaryOp0{
				Op:    ast.Mul,
				Left:  &ast.UnaryOp0{Op: ast.Neg, Arg: &ast.Ident0{Raw: "teacup_temperature"}},
				Right: &ast.Const0{Value: 0.1},
			},
		},
	})
	m.AddVariable(&model.Stock{
		Name:     "teacup_temperature",
		Initial:  model.Equation{Kind: model.Scalar, Expr: &ast.Const0{Value: 120}},
		Inflows:  nil,
		Outflows: []ident.Canonical{"cooling_rate"},
	})

	scope := NewModelScope(m, table)
	a := AnalyzeVariable(scope, m.Variables["cooling_rate"], nil)

	assert.Empty(t, a.Errors)
	assert.True(t, a.Deps["teacup_temperature"])
	assert.NotNil(t, a.Lowered.Current)
}

// TestAnalyzeModuleInputGuardPruned reproduces §4.4's dead-branch-pruning
// rule: an IsModuleInput guard bound by inputSet must not surface the dead
// branch's dependency.
func TestAnalyzeModuleInputGuardPruned(t *testing.T) {
	table := dims.NewTable()
	m := model.NewModel("child")
	m.AddVariable(&model.Var{
		Name: "effective_rate",
		Current: model.Equation{
			Kind: model.Scalar,
			Expr: &ast.If0{
				Cond: &ast.UntypedBuiltinFn0{Name: "ISMODULEINPUT", Args: []ast.Expr0{&ast.Ident0{Raw: "rate"}}},
				Then: &ast.Ident0{Raw: "rate"},
				Else: &ast.Ident0{Raw: "default_rate"},
			},
		},
	})
	m.AddVariable(&model.Var{Name: "rate", Current: model.Equation{Kind: model.Scalar, Expr: &ast.Const0{Value: 1}}})
	m.AddVariable(&model.Var{Name: "default_rate", Current: model.Equation{Kind: model.Scalar, Expr: &ast.Const0{Value: 2}}})

	scope := NewModelScope(m, table)

	boundIn := AnalyzeVariable(scope, m.Variables["effective_rate"], map[ident.Canonical]bool{"rate": true})
	assert.True(t, boundIn.Deps["rate"])
	assert.False(t, boundIn.Deps["default_rate"])

	boundOut := AnalyzeVariable(scope, m.Variables["effective_rate"], map[ident.Canonical]bool{})
	assert.False(t, boundOut.Deps["rate"])
	assert.True(t, boundOut.Deps["default_rate"])
}

func TestAnalyzeEmptyEquationReportsError(t *testing.T) {
	table := dims.NewTable()
	m := model.NewModel("main")
	m.AddVariable(&model.Var{Name: "broken", Current: model.Equation{Kind: model.Scalar}})

	scope := NewModelScope(m, table)
	a := AnalyzeVariable(scope, m.Variables["broken"], nil)
	assert.NotEmpty(t, a.Errors)
}

func TestAnalyzeModuleDepsFromInputBindings(t *testing.T) {
	table := dims.NewTable()
	m := model.NewModel("main")
	mod := &model.Module{
		Name:      "sub",
		ModelName: "child",
		Inputs:    []model.InputBinding{{Src: "parent_rate", Dst: "rate"}},
	}
	m.AddVariable(mod)

	scope := NewModelScope(m, table)
	a := AnalyzeVariable(scope, mod, nil)
	assert.True(t, a.Deps["parent_rate"])
}
