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

package vm_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sdkit/engine/pkg/ast"
	"github.com/sdkit/engine/pkg/config"
	"github.com/sdkit/engine/pkg/dims"
	"github.com/sdkit/engine/pkg/ident"
	"github.com/sdkit/engine/pkg/model"
	"github.com/sdkit/engine/pkg/vm"
)

func ref(name string) ast.Expr0 { return &ast.Ident0{Raw: name} }

// TestScenarioATeacupCooling reproduces §8.2 Scenario A end to end: the
// teacup's temperature must track the analytic cooling curve
// room + (initial-room)*exp(-t/tau).
func TestScenarioATeacupCooling(t *testing.T) {
	p := model.NewProject("teacup", model.SimSpecs{Start: 0, Stop: 10, Dt: model.Dt{Value: 0.125}, Method: model.Euler})
	main := model.NewModel("main")
	main.AddVariable(&model.Stock{
		Name:     "teacup_temperature",
		Initial:  model.Equation{Kind: model.Scalar, Expr: &ast.Const0{Value: 180}},
		Outflows: []ident.Canonical{"heat_loss"},
	})
	main.AddVariable(&model.Var{Name: "room_temperature", Current: model.Equation{Kind: model.Scalar, Expr: &ast.Const0{Value: 70}}})
	main.AddVariable(&model.Var{Name: "characteristic_time", Current: model.Equation{Kind: model.Scalar, Expr: &ast.Const0{Value: 10}}})
	main.AddVariable(&model.Var{
		Name:   "heat_loss",
		IsFlow: true,
		Current: model.Equation{
			Kind: model.Scalar,
			Expr: &ast.BinaryOp0{
				Op:    ast.Div,
				Left:  &ast.BinaryOp0{Op: ast.Sub, Left: ref("teacup_temperature"), Right: ref("room_temperature")},
				Right: ref("characteristic_time"),
			},
		},
	})
	p.AddModel(main)

	m, verr := vm.New(p)
	if !assert.Nil(t, verr) {
		return
	}
	res, verr := m.Run(config.Default())
	if !assert.Nil(t, verr) {
		return
	}

	got := res.At("teacup_temperature", res.StepCount-1)
	want := 70 + 110*math.Exp(-10.0/10.0)
	assert.InDelta(t, want, got, 0.5, "euler approximation of the analytic cooling curve at t=10")
}

// TestScenarioBDynamicSubscript reproduces §8.2 Scenario B: an Arrayed
// variable indexed by a computed expression, including the out-of-range
// case once the computed index walks past the dimension's size.
func TestScenarioBDynamicSubscript(t *testing.T) {
	p := model.NewProject("levels", model.SimSpecs{Start: 0, Stop: 3, Dt: model.Dt{Value: 1}, Method: model.Euler})
	p.Dimensions.Add(dims.NewIndexed("zones", 3))

	main := model.NewModel("main")
	main.AddVariable(&model.Var{
		Name: "levels",
		Current: model.Equation{
			Kind:     model.Arrayed,
			DimNames: []ident.Canonical{"zones"},
			Entries: []model.ArrayedEntry{
				{Subscript: "1", Expr: &ast.Const0{Value: 9}},
				{Subscript: "2", Expr: &ast.Const0{Value: 7}},
				{Subscript: "3", Expr: &ast.Const0{Value: 5}},
			},
		},
	})
	main.AddVariable(&model.Var{
		Name: "picked",
		Current: model.Equation{
			Kind: model.Scalar,
			Expr: &ast.Subscript0{
				Target: ref("levels"),
				Indices: []ast.Expr0{
					&ast.BinaryOp0{
						Op: ast.Add,
						Left: &ast.UntypedBuiltinFn0{
							Name: "INT",
							Args: []ast.Expr0{
								&ast.BinaryOp0{Op: ast.Mod, Left: &ast.UntypedBuiltinFn0{Name: "TIME"}, Right: &ast.Const0{Value: 5}},
							},
						},
						Right: &ast.Const0{Value: 1},
					},
				},
			},
		},
	})
	p.AddModel(main)

	m, verr := vm.New(p)
	if !assert.Nil(t, verr) {
		return
	}
	res, verr := m.Run(config.Default())
	if !assert.Nil(t, verr) {
		return
	}

	assert.Equal(t, 9.0, res.At("picked", 0))
	assert.Equal(t, 7.0, res.At("picked", 1))
	assert.Equal(t, 5.0, res.At("picked", 2))
	assert.True(t, math.IsNaN(res.At("picked", 3)), "index 4 is out of zones' 1..3 range")
}

// TestScenarioCModuleInput reproduces §8.2 Scenario C: a child module
// instantiation reads its bound input and feeds a stock's inflow.
func TestScenarioCModuleInput(t *testing.T) {
	p := model.NewProject("main", model.SimSpecs{Start: 0, Stop: 1, Dt: model.Dt{Value: 1}, Method: model.Euler})

	main := model.NewModel("main")
	main.AddVariable(&model.Stock{
		Name:    "population",
		Initial: model.Equation{Kind: model.Scalar, Expr: &ast.Const0{Value: 100}},
		Inflows: []ident.Canonical{"births·value"},
	})
	main.AddVariable(&model.Module{
		Name:      "births",
		ModelName: "birth_engine",
		Inputs:    []model.InputBinding{{Src: "population", Dst: "stock_level"}},
	})
	p.AddModel(main)

	child := model.NewModel("birth_engine")
	child.AddVariable(&model.Var{Name: "stock_level", Current: model.Equation{Kind: model.Scalar}})
	child.AddVariable(&model.Var{Name: "rate", Current: model.Equation{Kind: model.Scalar, Expr: &ast.Const0{Value: 0.05}}})
	child.AddVariable(&model.Var{
		Name:   "value",
		IsFlow: true,
		Current: model.Equation{
			Kind: model.Scalar,
			Expr: &ast.BinaryOp0{Op: ast.Mul, Left: ref("stock_level"), Right: ref("rate")},
		},
	})
	p.AddModel(child)

	m, verr := vm.New(p)
	if !assert.Nil(t, verr) {
		return
	}
	res, verr := m.Run(config.Default())
	if !assert.Nil(t, verr) {
		return
	}

	assert.Equal(t, 100.0, res.At("population", 0))
	assert.Equal(t, 105.0, res.At("population", res.StepCount-1), "100 + dt(1) * rate(0.05) * population(100)")
}

// TestScenarioDSumReduction exercises an ApplyToAll array materialized into
// a temp buffer and reduced by SUM, the case the temp-hoisting fix in
// pkg/compiler's expression compiler targets directly.
func TestScenarioDSumReduction(t *testing.T) {
	p := model.NewProject("main", model.SimSpecs{Start: 0, Stop: 0, Dt: model.Dt{Value: 1}, Method: model.Euler})
	p.Dimensions.Add(dims.NewIndexed("zones", 3))

	main := model.NewModel("main")
	main.AddVariable(&model.Var{
		Name:    "flow_per_zone",
		Current: model.Equation{Kind: model.ApplyToAll, DimNames: []ident.Canonical{"zones"}, Expr: &ast.Const0{Value: 20}},
	})
	main.AddVariable(&model.Var{
		Name: "total_flow",
		Current: model.Equation{
			Kind: model.Scalar,
			Expr: &ast.UntypedBuiltinFn0{Name: "SUM", Args: []ast.Expr0{ref("flow_per_zone")}},
		},
	})
	p.AddModel(main)

	m, verr := vm.New(p)
	if !assert.Nil(t, verr) {
		return
	}
	res, verr := m.Run(config.Default())
	if !assert.Nil(t, verr) {
		return
	}

	assert.Equal(t, 60.0, res.At("total_flow", 0))
}

// TestRK4TracksAnalyticCoolingCurve confirms an RK4 run over the teacup
// model tracks the analytic cooling curve far more tightly than Euler at
// the same dt, and that the reserved time slots survive the 4-stage blend
// unperturbed.
func TestRK4TracksAnalyticCoolingCurve(t *testing.T) {
	p := model.NewProject("teacup", model.SimSpecs{Start: 0, Stop: 10, Dt: model.Dt{Value: 0.5}, Method: model.RK4})
	main := model.NewModel("main")
	main.AddVariable(&model.Stock{
		Name:     "teacup_temperature",
		Initial:  model.Equation{Kind: model.Scalar, Expr: &ast.Const0{Value: 180}},
		Outflows: []ident.Canonical{"heat_loss"},
	})
	main.AddVariable(&model.Var{Name: "room_temperature", Current: model.Equation{Kind: model.Scalar, Expr: &ast.Const0{Value: 70}}})
	main.AddVariable(&model.Var{Name: "characteristic_time", Current: model.Equation{Kind: model.Scalar, Expr: &ast.Const0{Value: 10}}})
	main.AddVariable(&model.Var{
		Name:   "heat_loss",
		IsFlow: true,
		Current: model.Equation{
			Kind: model.Scalar,
			Expr: &ast.BinaryOp0{
				Op:    ast.Div,
				Left:  &ast.BinaryOp0{Op: ast.Sub, Left: ref("teacup_temperature"), Right: ref("room_temperature")},
				Right: ref("characteristic_time"),
			},
		},
	})
	p.AddModel(main)

	m, verr := vm.New(p)
	if !assert.Nil(t, verr) {
		return
	}
	res, verr := m.Run(config.Default())
	if !assert.Nil(t, verr) {
		return
	}

	got := res.At("teacup_temperature", res.StepCount-1)
	want := 70 + 110*math.Exp(-1.0)
	assert.InDelta(t, want, got, 0.01, "rk4 must track the analytic curve far tighter than euler's dt=0.5")
}
