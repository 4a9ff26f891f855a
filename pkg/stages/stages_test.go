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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sdkit/engine/pkg/ast"
	"github.com/sdkit/engine/pkg/dims"
	"github.com/sdkit/engine/pkg/errors"
	"github.com/sdkit/engine/pkg/ident"
	"github.com/sdkit/engine/pkg/model"
	"github.com/sdkit/engine/pkg/variable"
)

func ref(name string) ast.Expr0 { return &ast.Ident0{Raw: name} }

// TestScenarioECycleDetected reproduces §8.2 Scenario E: a = b + 1, b = a *
// 2 must report CircularDependency.
func TestScenarioECycleDetected(t *testing.T) {
	table := dims.NewTable()
	m := model.NewModel("main")
	m.AddVariable(&model.Var{Name: "a", Current: model.Equation{Kind: model.Scalar, Expr: &ast.BinaryOp0{Op: ast.Add, Left: ref("b"), Right: &ast.Const0{Value: 1}}}})
	m.AddVariable(&model.Var{Name: "b", Current: model.Equation{Kind: model.Scalar, Expr: &ast.BinaryOp0{Op: ast.Mul, Left: ref("a"), Right: &ast.Const0{Value: 2}}}})

	scope := variable.NewModelScope(m, table)
	_, _, errOut := BuildRunlists(m, scope, nil)

	if !assert.NotNil(t, errOut) {
		return
	}
	assert.Equal(t, errors.CircularDependency, errOut.Code)
}

// TestScenarioFStockBreaksCycle reproduces §8.2 Scenario F: level (stock)
// <- add (flow) = target - level must NOT be reported as a cycle, since
// the stock reads current and assigns next.
func TestScenarioFStockBreaksCycle(t *testing.T) {
	table := dims.NewTable()
	m := model.NewModel("main")
	m.AddVariable(&model.Stock{
		Name:    "level",
		Initial: model.Equation{Kind: model.Scalar, Expr: &ast.Const0{Value: 0}},
		Inflows: []ident.Canonical{"add"},
	})
	m.AddVariable(&model.Var{
		Name:   "add",
		IsFlow: true,
		Current: model.Equation{
			Kind: model.Scalar,
			Expr: &ast.BinaryOp0{Op: ast.Sub, Left: ref("target"), Right: ref("level")},
		},
	})
	m.AddVariable(&model.Var{Name: "target", Current: model.Equation{Kind: model.Scalar, Expr: &ast.Const0{Value: 10}}})

	scope := variable.NewModelScope(m, table)
	lists, _, errOut := BuildRunlists(m, scope, nil)

	if !assert.Nil(t, errOut) {
		return
	}
	assert.Equal(t, []ident.Canonical{"target", "add"}, lists.Flows)
	assert.Equal(t, []ident.Canonical{"level"}, lists.Stocks)
}

func TestFlowOrderRespectsDependency(t *testing.T) {
	table := dims.NewTable()
	m := model.NewModel("main")
	m.AddVariable(&model.Var{
		Name:    "add",
		IsFlow:  true,
		Current: model.Equation{Kind: model.Scalar, Expr: &ast.BinaryOp0{Op: ast.Sub, Left: ref("target"), Right: &ast.Const0{Value: 0}}},
	})
	m.AddVariable(&model.Var{Name: "target", Current: model.Equation{Kind: model.Scalar, Expr: &ast.Const0{Value: 10}}})

	scope := variable.NewModelScope(m, table)
	lists, _, errOut := BuildRunlists(m, scope, nil)
	assert.Nil(t, errOut)

	targetIdx, addIdx := -1, -1
	for i, n := range lists.Flows {
		if n == "target" {
			targetIdx = i
		}
		if n == "add" {
			addIdx = i
		}
	}
	assert.True(t, targetIdx < addIdx, "target must be ordered before add")
}

// TestScenarioCModuleEnumeration reproduces §8.2 Scenario C's module
// discovery: "births" instantiates "birth_engine" with one input binding.
func TestScenarioCModuleEnumeration(t *testing.T) {
	table := dims.NewTable()
	p := model.NewProject("teacup", model.SimSpecs{})
	p.Dimensions = table

	main := model.NewModel("main")
	main.AddVariable(&model.Stock{Name: "population", Initial: model.Equation{Kind: model.Scalar, Expr: &ast.Const0{Value: 100}}, Inflows: []ident.Canonical{"births·value"}})
	main.AddVariable(&model.Module{
		Name:      "births",
		ModelName: "birth_engine",
		Inputs:    []model.InputBinding{{Src: "population", Dst: "stock_level"}},
	})
	p.AddModel(main)

	child := model.NewModel("birth_engine")
	child.AddVariable(&model.Var{Name: "stock_level", Current: model.Equation{Kind: model.Scalar}})
	child.AddVariable(&model.Var{Name: "rate", Current: model.Equation{Kind: model.Scalar, Expr: &ast.Const0{Value: 0.05}}})
	child.AddVariable(&model.Var{Name: "value", IsFlow: true, Current: model.Equation{Kind: model.Scalar, Expr: &ast.BinaryOp0{Op: ast.Mul, Left: ref("stock_level"), Right: ref("rate")}}})
	p.AddModel(child)

	instances := EnumerateModules(p)
	assert.Len(t, instances["main"], 1)
	assert.Len(t, instances["birth_engine"], 1)
	assert.Equal(t, MakeInputSetKey([]ident.Canonical{"stock_level"}), instances["birth_engine"][0].Key)
}
