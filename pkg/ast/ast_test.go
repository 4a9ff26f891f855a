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
package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sdkit/engine/pkg/dims"
	"github.com/sdkit/engine/pkg/ident"
)

// mapScope is a minimal Scope used only by this package's tests; the real
// scope implementation lives in pkg/variable, built from a model's actual
// variable table.
type mapScope struct {
	vars  map[ident.Canonical]*ArrayBounds
	table *dims.Table
}

func (s *mapScope) Variable(name ident.Canonical) (*ArrayBounds, bool) {
	b, ok := s.vars[name]
	return b, ok
}

func (s *mapScope) Dimension(name ident.Canonical) (*dims.Dimension, bool) {
	return s.table.Lookup(name)
}

func (s *mapScope) SubscriptBinding(ident.Canonical) (ident.Canonical, bool) {
	return "", false
}

// TestSumReductionMaterializesTemp reproduces Scenario D (§8.2): SUM over an
// arrayed variable must materialize into a temp buffer feeding App(Sum,
// TempArray(id, bounds)).
func TestSumReductionMaterializesTemp(t *testing.T) {
	table := dims.NewTable()
	zones := dims.NewNamed("zones", []ident.Canonical{"north", "south", "east"})
	table.Add(zones)

	bounds := &ArrayBounds{DimNames: []ident.Canonical{"zones"}, Dims: []int{3}}
	scope := &mapScope{
		vars:  map[ident.Canonical]*ArrayBounds{"flow_per_zone": bounds},
		table: table,
	}

	e0 := &UntypedBuiltinFn0{Name: "SUM", Args: []Expr0{&Ident0{Raw: "flow_per_zone"}}}

	alloc := &TempAllocator{}
	e3, errs := Lower(e0, table, scope, alloc)
	assert.Empty(t, errs)

	app, ok := e3.(*App3)
	if !assert.True(t, ok, "expected App3, got %T", e3) {
		return
	}
	assert.Equal(t, Sum, app.Fn)
	assert.True(t, app.Bounds().IsScalar())

	temp, ok := app.Args[0].(*TempArray3)
	if !assert.True(t, ok, "expected TempArray3 arg, got %T", app.Args[0]) {
		return
	}
	assert.Equal(t, 3, temp.Bounds().Dims[0])
	assert.NotNil(t, temp.Assign(), "materialized temp must carry its AssignTemp3")
}

// TestStaticSubscriptCollapsesLiteralIndices covers the StaticSubscript3
// fast path (§4.3).
func TestStaticSubscriptCollapsesLiteralIndices(t *testing.T) {
	table := dims.NewTable()
	letters := dims.NewNamed("letters", []ident.Canonical{"a", "b", "c"})
	table.Add(letters)

	bounds := &ArrayBounds{DimNames: []ident.Canonical{"letters"}, Dims: []int{3}}
	scope := &mapScope{
		vars:  map[ident.Canonical]*ArrayBounds{"constants": bounds},
		table: table,
	}

	e0 := &Subscript0{Target: &Ident0{Raw: "constants"}, Indices: []Expr0{&Const0{Value: 2}}}
	alloc := &TempAllocator{}
	e3, errs := Lower(e0, table, scope, alloc)
	assert.Empty(t, errs)

	static, ok := e3.(*StaticSubscript3)
	if !assert.True(t, ok, "expected StaticSubscript3, got %T", e3) {
		return
	}
	assert.Equal(t, 1, static.FlatIndex)

	if v, ok := static.Target.(*Var3); assert.True(t, ok) {
		assert.Equal(t, ident.Canonical("constants"), v.Name)
	}
}

// TestComputedSubscriptOutOfRangeStaysDynamic ensures a computed index
// (Scenario B's `aux[INT(TIME MOD 5)+1]`) is not collapsed to a static
// subscript, so out-of-range handling happens at runtime (NaN, not error).
func TestComputedSubscriptOutOfRangeStaysDynamic(t *testing.T) {
	table := dims.NewTable()
	letters := dims.NewNamed("letters", []ident.Canonical{"a", "b", "c"})
	table.Add(letters)

	bounds := &ArrayBounds{DimNames: []ident.Canonical{"letters"}, Dims: []int{3}}
	scope := &mapScope{
		vars:  map[ident.Canonical]*ArrayBounds{"aux": bounds},
		table: table,
	}

	e0 := &Subscript0{
		Target: &Ident0{Raw: "aux"},
		Indices: []Expr0{
			&BinaryOp0{Op: Add, Left: &UntypedBuiltinFn0{Name: "INT", Args: []Expr0{&UntypedBuiltinFn0{Name: "TIME"}}}, Right: &Const0{Value: 1}},
		},
	}
	alloc := &TempAllocator{}
	e3, errs := Lower(e0, table, scope, alloc)
	assert.Empty(t, errs)

	_, ok := e3.(*Subscript3)
	assert.True(t, ok, "expected dynamic Subscript3, got %T", e3)
}

func TestCantSubscriptScalarReportsError(t *testing.T) {
	table := dims.NewTable()
	scope := &mapScope{vars: map[ident.Canonical]*ArrayBounds{"x": nil}, table: table}

	e0 := &Subscript0{Target: &Ident0{Raw: "x"}, Indices: []Expr0{&Const0{Value: 1}}}
	alloc := &TempAllocator{}
	_, errs := Lower(e0, table, scope, alloc)
	assert.NotEmpty(t, errs)
}

func TestPruneModuleInputGuardsDropsDeadBranch(t *testing.T) {
	e3 := &If3{
		Cond: &IsModuleInputPred3{VarName: "stock_level"},
		Then: &Const3{Value: 1},
		Else: &Const3{Value: 2},
	}

	boundIn := PruneModuleInputGuards(e3, map[ident.Canonical]bool{"stock_level": true})
	c, ok := boundIn.(*Const3)
	assert.True(t, ok)
	assert.Equal(t, 1.0, c.Value)

	boundOut := PruneModuleInputGuards(e3, map[ident.Canonical]bool{})
	c2, ok := boundOut.(*Const3)
	assert.True(t, ok)
	assert.Equal(t, 2.0, c2.Value)
}
