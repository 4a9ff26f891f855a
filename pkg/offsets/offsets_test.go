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
package offsets

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sdkit/engine/pkg/ast"
	"github.com/sdkit/engine/pkg/dims"
	"github.com/sdkit/engine/pkg/ident"
	"github.com/sdkit/engine/pkg/model"
	"github.com/sdkit/engine/pkg/stages"
)

func teacupProject() *model.Project {
	p := model.NewProject("teacup", model.SimSpecs{Start: 0, Stop: 30, Dt: model.Dt{Value: 0.125}})
	main := model.NewModel("main")
	main.AddVariable(&model.Stock{Name: "teacup_temperature", Initial: model.Equation{Kind: model.Scalar, Expr: &ast.Const0{Value: 180}}})
	main.AddVariable(&model.Var{Name: "room_temperature", Current: model.Equation{Kind: model.Scalar, Expr: &ast.Const0{Value: 70}}})
	main.AddVariable(&model.Var{Name: "characteristic_time", Current: model.Equation{Kind: model.Scalar, Expr: &ast.Const0{Value: 10}}})
	main.AddVariable(&model.Var{Name: "heat_loss", IsFlow: true, Current: model.Equation{Kind: model.Scalar, Expr: &ast.Const0{Value: 0}}})
	p.AddModel(main)
	return p
}

func TestPlanReservesRootSlots(t *testing.T) {
	p := teacupProject()
	tables, err := Plan(p)
	if !assert.Nil(t, err) {
		return
	}
	mt, ok := tables["main\x00"]
	if !assert.True(t, ok) {
		return
	}

	for _, name := range []ident.Canonical{"teacup_temperature", "room_temperature", "characteristic_time", "heat_loss"} {
		entry, ok := mt.Offsets[name]
		if !assert.True(t, ok, "missing offset for %s", name) {
			continue
		}
		assert.GreaterOrEqual(t, entry.Offset, reservedRootSize)
		assert.Equal(t, 1, entry.Size)
	}
}

// TestPlanScenarioCFlatNaming reproduces §8.2 Scenario C's flattened
// naming: population, births (whose span covers the entire child model).
func TestPlanScenarioCFlatNaming(t *testing.T) {
	p := model.NewProject("main", model.SimSpecs{})
	main := model.NewModel("main")
	main.AddVariable(&model.Stock{Name: "population", Initial: model.Equation{Kind: model.Scalar, Expr: &ast.Const0{Value: 100}}, Inflows: []ident.Canonical{"births·value"}})
	main.AddVariable(&model.Module{Name: "births", ModelName: "birth_engine", Inputs: []model.InputBinding{{Src: "population", Dst: "stock_level"}}})
	p.AddModel(main)

	child := model.NewModel("birth_engine")
	child.AddVariable(&model.Var{Name: "stock_level", Current: model.Equation{Kind: model.Scalar}})
	child.AddVariable(&model.Var{Name: "rate", Current: model.Equation{Kind: model.Scalar, Expr: &ast.Const0{Value: 0.05}}})
	child.AddVariable(&model.Var{Name: "value", IsFlow: true, Current: model.Equation{Kind: model.Scalar, Expr: &ast.Const0{Value: 0}}})
	p.AddModel(child)

	tables, err := Plan(p)
	if !assert.Nil(t, err) {
		return
	}

	mainTable := tables[TableKey("main", "")]
	if !assert.NotNil(t, mainTable) {
		return
	}
	births := mainTable.Offsets["births"]
	assert.Equal(t, 3, births.Size, "birth_engine has 3 scalar variables")

	childTable := tables[TableKey("birth_engine", stages.MakeInputSetKey([]ident.Canonical{"stock_level"}))]
	if !assert.NotNil(t, childTable) {
		return
	}
	assert.Equal(t, births.Offset, childTable.Base)
	assert.Len(t, childTable.Offsets, 3)
}

func TestArrayedVariableSizeIsProductOfDims(t *testing.T) {
	p := model.NewProject("main", model.SimSpecs{})
	p.Dimensions.Add(dims.NewNamed("zones", []ident.Canonical{"north", "south", "east"}))

	main := model.NewModel("main")
	main.AddVariable(&model.Var{
		Name:    "flow_per_zone",
		Current: model.Equation{Kind: model.ApplyToAll, DimNames: []ident.Canonical{"zones"}, Expr: &ast.Const0{Value: 0}},
	})
	p.AddModel(main)

	tables, err := Plan(p)
	if !assert.Nil(t, err) {
		return
	}
	mt := tables[TableKey("main", "")]
	entry := mt.Offsets["flow_per_zone"]
	assert.Equal(t, 3, entry.Size)
}
