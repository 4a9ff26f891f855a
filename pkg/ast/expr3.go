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

import "github.com/sdkit/engine/pkg/ident"

// Expr3 is the lowered expression stage (§3.5/§4.3 L2->L3): temporary
// arrays have been materialized for every array-producing subexpression
// consumed by a reduction or a subscript, and literal-integer subscripts
// have collapsed to the StaticSubscript3 fast path. This is the shape the
// compiler (C8) walks to produce bytecode, substituting Var3 names for
// resolved offsets.
type Expr3 interface {
	isExpr3()
	Bounds() *ArrayBounds
}

// Const3 is a literal numeric constant.
type Const3 struct {
	Value float64
}

func (*Const3) isExpr3()          {}
func (*Const3) Bounds() *ArrayBounds { return nil }

// Var3 references a resolved variable by canonical name; offset resolution
// happens in the compiler (C8), not here.
type Var3 struct {
	Name      ident.Canonical
	VarBounds *ArrayBounds
}

func (*Var3) isExpr3()          {}
func (n *Var3) Bounds() *ArrayBounds { return n.VarBounds }

// ModuleInputRef3 reads the k-th input binding of the module currently being
// evaluated (substituted for a Var3 reference to a variable flagged as a
// module input, once the compiler knows the active input-set).
type ModuleInputRef3 struct {
	Index     int
	VarBounds *ArrayBounds
}

func (*ModuleInputRef3) isExpr3()          {}
func (n *ModuleInputRef3) Bounds() *ArrayBounds { return n.VarBounds }

// StaticSubscript3 is the compile-time-resolved subscript fast path: every
// index in the original Subscript2 was a literal, so the flat offset into
// Target is known without further indirection.
type StaticSubscript3 struct {
	Target    Expr3
	FlatIndex int
	ResBounds *ArrayBounds
}

func (*StaticSubscript3) isExpr3()          {}
func (n *StaticSubscript3) Bounds() *ArrayBounds { return n.ResBounds }

// Subscript3 is a dynamic subscript: at least one index is a runtime
// expression. An out-of-range computed index evaluates to NaN (§4.8), never
// an error.
type Subscript3 struct {
	Target    Expr3
	Indices   []Expr3 // one entry per subscripted dimension; nil entry == "whole dimension" (apply-to-all position)
	ResBounds *ArrayBounds
}

func (*Subscript3) isExpr3()          {}
func (n *Subscript3) Bounds() *ArrayBounds { return n.ResBounds }

// TempArray3 references a whole materialized temp buffer by id. When
// produced by the L2->L3 materialize step it also carries the AssignTemp3
// that fills it, so the compiler can emit the assignment immediately before
// the first read without a separate bookkeeping pass.
type TempArray3 struct {
	ID        int
	ArrBounds *ArrayBounds
	assign    *AssignTemp3
}

func (*TempArray3) isExpr3()          {}
func (n *TempArray3) Bounds() *ArrayBounds { return n.ArrBounds }

// Assign returns the AssignTemp3 that materializes this temp buffer, or nil
// if this TempArray3 was constructed as a bare reference (e.g. by the
// compiler itself, after having already emitted the assignment).
func (n *TempArray3) Assign() *AssignTemp3 {
	return n.assign
}

// TempArrayElement3 reads a single (compile-time-known) element of a temp
// buffer.
type TempArrayElement3 struct {
	ID        int
	FlatIndex int
}

func (*TempArrayElement3) isExpr3()          {}
func (*TempArrayElement3) Bounds() *ArrayBounds { return nil }

// AssignTemp3 evaluates Value — itself an array-bounds-shaped expression —
// once per flat index of Bounds, writing each result into temp buffer ID.
// Its own "value" when referenced elsewhere is the materialized
// TempArray3(ID, Bounds), never AssignTemp3 itself; downstream nodes read
// the temp directly.
type AssignTemp3 struct {
	ID     int
	Value  Expr3
	Bounds *ArrayBounds
}

func (*AssignTemp3) isExpr3()          {}
func (n *AssignTemp3) Bounds() *ArrayBounds { return n.Bounds }

// IsModuleInputPred3 mirrors IsModuleInputPred2; survives L2->L3 unresolved
// and is only collapsed to a Const3 (with dead-branch pruning of the
// enclosing If3) once the active input-set is known (§4.4), by
// PruneModuleInputGuards.
type IsModuleInputPred3 struct {
	VarName ident.Canonical
}

func (*IsModuleInputPred3) isExpr3()          {}
func (*IsModuleInputPred3) Bounds() *ArrayBounds { return nil }

// UnaryOp3 mirrors UnaryOp2.
type UnaryOp3 struct {
	Op  Op1
	Arg Expr3
}

func (*UnaryOp3) isExpr3()          {}
func (*UnaryOp3) Bounds() *ArrayBounds { return nil }

// BinaryOp3 mirrors BinaryOp2; elementwise when ResBounds is non-scalar,
// broadcasting any scalar operand.
type BinaryOp3 struct {
	Op        Op2
	Left      Expr3
	Right     Expr3
	ResBounds *ArrayBounds
}

func (*BinaryOp3) isExpr3()          {}
func (n *BinaryOp3) Bounds() *ArrayBounds { return n.ResBounds }

// If3 mirrors If2.
type If3 struct {
	Cond, Then, Else Expr3
	ResBounds        *ArrayBounds
}

func (*If3) isExpr3()          {}
func (n *If3) Bounds() *ArrayBounds { return n.ResBounds }

// App3 is a resolved, lowered builtin call.
type App3 struct {
	Fn        BuiltinFn
	Args      []Expr3
	ResBounds *ArrayBounds
	// Table is set only for Fn == Lookup and carries the compiled lookup
	// table to evaluate against (§4.9); nil otherwise.
	Table interface{}
}

func (*App3) isExpr3()          {}
func (n *App3) Bounds() *ArrayBounds { return n.ResBounds }
