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
	"math"

	"github.com/sdkit/engine/pkg/ast"
	"github.com/sdkit/engine/pkg/bytecode"
	"github.com/sdkit/engine/pkg/errors"
	"github.com/sdkit/engine/pkg/model"
	"github.com/sdkit/engine/pkg/offsets"
)

// compileExpr lowers one Expr3 subtree into a bytecode.Node, substituting
// every Var3 name for a resolved offset (or a ModuleInput read, when the
// name is bound as this instantiation's own input) and every TIME-family
// builtin call for the fixed root-slot read it actually is.
func (c *ctx) compileExpr(e ast.Expr3) (bytecode.Node, *errors.Error) {
	switch n := e.(type) {
	case nil:
		return nil, nil

	case *ast.Const3:
		return &bytecode.Const{Value: n.Value}, nil

	case *ast.Var3:
		if c.inst.BoundSet[n.Name] {
			idx, ok := c.inputIndex(n.Name)
			if !ok {
				return nil, errors.ForVariable(errors.BadModuleInputDst, string(c.mt.ModelName), string(n.Name), "bound input missing from sorted order")
			}
			return &bytecode.ModuleInput{Index: idx}, nil
		}
		rel, _, err := resolveOffset(c.p, c.tables, c.mt, n.Name)
		if err != nil {
			return nil, err
		}
		return &bytecode.Var{Offset: rel, VarBounds: n.VarBounds}, nil

	case *ast.ModuleInputRef3:
		return &bytecode.ModuleInput{Index: n.Index}, nil

	case *ast.StaticSubscript3:
		return c.compileStaticSubscript(n)

	case *ast.Subscript3:
		return c.compileSubscript(n)

	case *ast.TempArray3:
		return &bytecode.TempArray{ID: n.ID, ArrBounds: n.ArrBounds}, nil

	case *ast.TempArrayElement3:
		return &bytecode.TempArrayElement{ID: n.ID, FlatIndex: n.FlatIndex}, nil

	case *ast.AssignTemp3:
		value, err := c.compileExpr(n.Value)
		if err != nil {
			return nil, err
		}
		return &bytecode.AssignTemp{ID: n.ID, Value: value, TempBounds: n.Bounds}, nil

	case *ast.UnaryOp3:
		arg, err := c.compileExpr(n.Arg)
		if err != nil {
			return nil, err
		}
		return &bytecode.Op1{Op: n.Op, Arg: arg}, nil

	case *ast.BinaryOp3:
		left, err := c.compileExpr(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := c.compileExpr(n.Right)
		if err != nil {
			return nil, err
		}
		return &bytecode.Op2{Op: n.Op, Left: left, Right: right, ResBounds: n.ResBounds}, nil

	case *ast.If3:
		cond, err := c.compileExpr(n.Cond)
		if err != nil {
			return nil, err
		}
		then, err := c.compileExpr(n.Then)
		if err != nil {
			return nil, err
		}
		els, err := c.compileExpr(n.Else)
		if err != nil {
			return nil, err
		}
		return &bytecode.If{Cond: cond, Then: then, Else: els, ResBounds: n.ResBounds}, nil

	case *ast.IsModuleInputPred3:
		// Unreachable: every IsModuleInputPred3 is resolved to a Const3 (and
		// its enclosing If3 dead branch pruned) by ast.PruneModuleInputGuards
		// before the compiler ever sees this tree (§4.4). Treated as "not
		// bound" defensively rather than panicking.
		return &bytecode.Const{Value: 0}, nil

	case *ast.App3:
		return c.compileApp(n)

	default:
		return &bytecode.Const{Value: math.NaN()}, nil
	}
}

// compileExprStatement compiles e3 into its statement form: zero or more
// AssignTemp prefix statements materializing any temp buffer e3 reads
// (e.g. a SUM's array argument, per ast.materialize), followed by the
// compiled value of e3 itself. Callers prepend prefix to whatever
// AssignCurr/AssignNext statement consumes value.
func (c *ctx) compileExprStatement(e3 ast.Expr3) ([]bytecode.Node, bytecode.Node, *errors.Error) {
	var prefix []bytecode.Node
	if err := c.collectTempAssigns(e3, make(map[int]bool), &prefix); err != nil {
		return nil, nil, err
	}
	value, err := c.compileExpr(e3)
	if err != nil {
		return nil, nil, err
	}
	return prefix, value, nil
}

// collectTempAssigns walks e3 looking for *ast.TempArray3 nodes that carry
// their own materializing AssignTemp3 (n.Assign() != nil), compiling each
// one exactly once (by ID) into an AssignTemp statement appended to *out,
// in the order they are first encountered — deepest/earliest-needed first,
// since a temp's own Value may itself reference another temp.
func (c *ctx) collectTempAssigns(e ast.Expr3, seen map[int]bool, out *[]bytecode.Node) *errors.Error {
	switch n := e.(type) {
	case nil:
		return nil

	case *ast.TempArray3:
		if seen[n.ID] {
			return nil
		}
		seen[n.ID] = true
		a := n.Assign()
		if a == nil {
			return nil
		}
		if err := c.collectTempAssigns(a.Value, seen, out); err != nil {
			return err
		}
		node, err := c.compileExpr(a)
		if err != nil {
			return err
		}
		*out = append(*out, node)
		return nil

	case *ast.StaticSubscript3:
		return c.collectTempAssigns(n.Target, seen, out)

	case *ast.Subscript3:
		if err := c.collectTempAssigns(n.Target, seen, out); err != nil {
			return err
		}
		for _, idx := range n.Indices {
			if err := c.collectTempAssigns(idx, seen, out); err != nil {
				return err
			}
		}
		return nil

	case *ast.AssignTemp3:
		return c.collectTempAssigns(n.Value, seen, out)

	case *ast.UnaryOp3:
		return c.collectTempAssigns(n.Arg, seen, out)

	case *ast.BinaryOp3:
		if err := c.collectTempAssigns(n.Left, seen, out); err != nil {
			return err
		}
		return c.collectTempAssigns(n.Right, seen, out)

	case *ast.If3:
		if err := c.collectTempAssigns(n.Cond, seen, out); err != nil {
			return err
		}
		if err := c.collectTempAssigns(n.Then, seen, out); err != nil {
			return err
		}
		return c.collectTempAssigns(n.Else, seen, out)

	case *ast.App3:
		for _, a := range n.Args {
			if err := c.collectTempAssigns(a, seen, out); err != nil {
				return err
			}
		}
		return nil

	default:
		return nil
	}
}

// compileTimeBuiltin maps the four TIME-family nullary builtins to their
// fixed root-slot read, returning ok == false for every other BuiltinFn.
func compileTimeBuiltin(fn ast.BuiltinFn) (bytecode.Node, bool) {
	switch fn {
	case ast.Time:
		return &bytecode.TimeRef{Slot: offsets.SlotTime}, true
	case ast.Starttime:
		return &bytecode.TimeRef{Slot: offsets.SlotInitialTime}, true
	case ast.Finaltime:
		return &bytecode.TimeRef{Slot: offsets.SlotFinalTime}, true
	case ast.Timestep:
		return &bytecode.Dt{}, true
	default:
		return nil, false
	}
}

func (c *ctx) compileApp(n *ast.App3) (bytecode.Node, *errors.Error) {
	if node, ok := compileTimeBuiltin(n.Fn); ok {
		return node, nil
	}

	if n.Fn == ast.Lookup {
		return c.compileLookup(n)
	}

	args := make([]bytecode.Node, len(n.Args))
	for i, a := range n.Args {
		node, err := c.compileExpr(a)
		if err != nil {
			return nil, err
		}
		args[i] = node
	}
	return &bytecode.App{Fn: n.Fn, Args: args, ResBounds: n.ResBounds}, nil
}

// compileLookup resolves LOOKUP(table, x): Args[0] names the variable
// carrying the GraphicalFunction to evaluate against (never evaluated as an
// expression itself), Args[1] is the input value.
func (c *ctx) compileLookup(n *ast.App3) (bytecode.Node, *errors.Error) {
	if len(n.Args) < 2 {
		return nil, errors.New(errors.KindVariable, errors.BadBuiltinArgs, string(c.mt.ModelName), "LOOKUP requires a table and an input expression")
	}
	tableRef, ok := n.Args[0].(*ast.Var3)
	if !ok {
		return nil, errors.New(errors.KindVariable, errors.BadTable, string(c.mt.ModelName), "LOOKUP's first argument must name a table variable")
	}
	m := c.p.Models[c.mt.ModelName]
	tv, ok := m.Variables[tableRef.Name].(*model.Var)
	if !ok || tv.Table == nil {
		return nil, errors.ForVariable(errors.BadTable, string(c.mt.ModelName), string(tableRef.Name), "not a graphical-function variable")
	}

	x, err := c.compileExpr(n.Args[1])
	if err != nil {
		return nil, err
	}
	return &bytecode.App{Fn: ast.Lookup, Args: []bytecode.Node{x}, ResBounds: n.ResBounds, Table: tv.Table.Compile()}, nil
}

func (c *ctx) compileStaticSubscript(n *ast.StaticSubscript3) (bytecode.Node, *errors.Error) {
	switch t := n.Target.(type) {
	case *ast.Var3:
		rel, _, err := resolveOffset(c.p, c.tables, c.mt, t.Name)
		if err != nil {
			return nil, err
		}
		return &bytecode.StaticSubscript{Offset: rel, FlatIndex: n.FlatIndex, ResBounds: n.ResBounds}, nil
	case *ast.TempArray3:
		return &bytecode.TempArrayElement{ID: t.ID, FlatIndex: n.FlatIndex}, nil
	default:
		// Unreachable: L2->L3 lowering only ever subscripts a bare Var3 or a
		// materialized TempArray3 (lowerSubscript in ast/lower23.go).
		return &bytecode.Const{Value: math.NaN()}, nil
	}
}

func (c *ctx) compileSubscript(n *ast.Subscript3) (bytecode.Node, *errors.Error) {
	indices := make([]bytecode.Node, len(n.Indices))
	for i, idx := range n.Indices {
		node, err := c.compileExpr(idx)
		if err != nil {
			return nil, err
		}
		indices[i] = node
	}

	switch t := n.Target.(type) {
	case *ast.Var3:
		rel, _, err := resolveOffset(c.p, c.tables, c.mt, t.Name)
		if err != nil {
			return nil, err
		}
		return &bytecode.Subscript{Offset: rel, Indices: indices, SrcBounds: t.VarBounds, ResBounds: n.ResBounds}, nil
	case *ast.TempArray3:
		return &bytecode.Subscript{FromTemp: true, TempID: t.ID, Indices: indices, SrcBounds: t.ArrBounds, ResBounds: n.ResBounds}, nil
	default:
		return &bytecode.Const{Value: math.NaN()}, nil
	}
}
