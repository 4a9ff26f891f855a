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
package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sdkit/engine/pkg/ast"
	"github.com/sdkit/engine/pkg/bytecode"
	"github.com/sdkit/engine/pkg/dims"
	"github.com/sdkit/engine/pkg/ident"
	"github.com/sdkit/engine/pkg/model"
	"github.com/sdkit/engine/pkg/offsets"
)

func ref(name string) ast.Expr0 { return &ast.Ident0{Raw: name} }

// teacupProject reproduces §8.2 Scenario A: a single stock cooling toward
// room temperature, driven by one flow variable.
func teacupProject() *model.Project {
	p := model.NewProject("teacup", model.SimSpecs{Start: 0, Stop: 30, Dt: model.Dt{Value: 0.125}})
	main := model.NewModel("main")
	main.AddVariable(&model.Stock{
		Name:    "teacup_temperature",
		Initial: model.Equation{Kind: model.Scalar, Expr: &ast.Const0{Value: 180}},
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
				Op:   ast.Div,
				Left: &ast.BinaryOp0{Op: ast.Sub, Left: ref("teacup_temperature"), Right: ref("room_temperature")},
				Right: ref("characteristic_time"),
			},
		},
	})
	p.AddModel(main)
	return p
}

func TestCompileTeacupStockUpdate(t *testing.T) {
	p := teacupProject()
	prog, err := Compile(p)
	if !assert.Nil(t, err) {
		return
	}

	cm, ok := prog.Modules[offsets.TableKey("main", "")]
	if !assert.True(t, ok) {
		return
	}

	if !assert.Len(t, cm.Stocks, 1) {
		return
	}
	upd, ok := cm.Stocks[0].(*bytecode.AssignNext)
	if !assert.True(t, ok, "stock update must compile to AssignNext") {
		return
	}

	net, ok := upd.Value.(*bytecode.Op2)
	if !assert.True(t, ok) {
		return
	}
	assert.Equal(t, ast.Add, net.Op, "teacup_temperature has no inflow: next = curr + dt*(0 - heat_loss)")

	delta, ok := net.Right.(*bytecode.Op2)
	if !assert.True(t, ok) {
		return
	}
	assert.Equal(t, ast.Mul, delta.Op)
	_, isDt := delta.Left.(*bytecode.Dt)
	assert.True(t, isDt, "stock update must scale the net flow by dt")

	// heat_loss's own flow-phase statement resolves teacup_temperature and
	// room_temperature as ordinary Var reads, and characteristic_time the
	// same way.
	if !assert.Len(t, cm.Flows, 3) {
		return
	}
}

func TestCompileApplyToAllEmitsOneSharedAssignCurr(t *testing.T) {
	p := model.NewProject("main", model.SimSpecs{})
	p.Dimensions.Add(dims.NewNamed("zones", []ident.Canonical{"north", "south", "east"}))

	main := model.NewModel("main")
	main.AddVariable(&model.Var{
		Name:    "flow_per_zone",
		Current: model.Equation{Kind: model.ApplyToAll, DimNames: []ident.Canonical{"zones"}, Expr: &ast.Const0{Value: 5}},
	})
	p.AddModel(main)

	prog, err := Compile(p)
	if !assert.Nil(t, err) {
		return
	}
	cm := prog.Modules[offsets.TableKey("main", "")]
	if !assert.NotNil(t, cm) {
		return
	}
	if !assert.Len(t, cm.Flows, 1, "one shared AssignCurr, repeated Count times by the VM") {
		return
	}

	a, ok := cm.Flows[0].(*bytecode.AssignCurr)
	if !assert.True(t, ok) {
		return
	}
	assert.Equal(t, 3, a.Count, "one evaluation per zone")
	c, ok := a.Value.(*bytecode.Const)
	if assert.True(t, ok) {
		assert.Equal(t, 5.0, c.Value)
	}
}

// TestCompileScenarioCModuleInput reproduces §8.2 Scenario C: the child
// model's bound input reads compile to ModuleInput(0), and the parent's
// Module variable compiles to a single EvalModule dispatch over a Var read
// of the Src binding.
func TestCompileScenarioCModuleInput(t *testing.T) {
	p := model.NewProject("main", model.SimSpecs{})

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

	prog, err := Compile(p)
	if !assert.Nil(t, err) {
		return
	}

	mainCM := prog.Modules[offsets.TableKey("main", "")]
	if !assert.NotNil(t, mainCM) {
		return
	}
	if !assert.Len(t, mainCM.Flows, 1, "births compiles to a single EvalModule") {
		return
	}
	evm, ok := mainCM.Flows[0].(*bytecode.EvalModule)
	if !assert.True(t, ok) {
		return
	}
	assert.Equal(t, ident.Canonical("births"), evm.ChildIdent)
	assert.Equal(t, ident.Canonical("birth_engine"), evm.ChildModel)
	if !assert.Len(t, evm.Args, 1) {
		return
	}
	argVar, ok := evm.Args[0].(*bytecode.Var)
	assert.True(t, ok, "EvalModule.Args evaluates Src reads in the parent frame")
	_ = argVar

	childCM := prog.Modules[offsets.TableKey("birth_engine", evm.InputSet)]
	if !assert.NotNil(t, childCM) {
		return
	}
	// stock_level is a bound module-input placeholder: it contributes no
	// statement of its own, so only rate and value's assignments remain.
	if !assert.Len(t, childCM.Flows, 2) {
		return
	}

	// value's AssignCurr wraps a Mul of ModuleInput(0) (stock_level) and a
	// Var read of rate.
	found := false
	for _, n := range childCM.Flows {
		a, ok := n.(*bytecode.AssignCurr)
		if !ok {
			continue
		}
		op2, ok := a.Value.(*bytecode.Op2)
		if !ok {
			continue
		}
		if _, ok := op2.Left.(*bytecode.ModuleInput); ok {
			found = true
		}
	}
	assert.True(t, found, "value's equation must read stock_level as ModuleInput(0)")
}

func TestCompileTimeBuiltinsLowerToRootSlotReads(t *testing.T) {
	p := model.NewProject("main", model.SimSpecs{})
	main := model.NewModel("main")
	main.AddVariable(&model.Var{
		Name: "elapsed",
		Current: model.Equation{
			Kind: model.Scalar,
			Expr: &ast.BinaryOp0{
				Op:    ast.Sub,
				Left:  &ast.UntypedBuiltinFn0{Name: "TIME"},
				Right: &ast.UntypedBuiltinFn0{Name: "STARTTIME"},
			},
		},
	})
	p.AddModel(main)

	prog, err := Compile(p)
	if !assert.Nil(t, err) {
		return
	}
	cm := prog.Modules[offsets.TableKey("main", "")]
	if !assert.NotNil(t, cm) {
		return
	}
	if !assert.Len(t, cm.Flows, 1) {
		return
	}
	a, ok := cm.Flows[0].(*bytecode.AssignCurr)
	if !assert.True(t, ok) {
		return
	}
	op2, ok := a.Value.(*bytecode.Op2)
	if !assert.True(t, ok) {
		return
	}
	left, ok := op2.Left.(*bytecode.TimeRef)
	if assert.True(t, ok) {
		assert.Equal(t, offsets.SlotTime, left.Slot)
	}
	right, ok := op2.Right.(*bytecode.TimeRef)
	if assert.True(t, ok) {
		assert.Equal(t, offsets.SlotInitialTime, right.Slot)
	}
}
