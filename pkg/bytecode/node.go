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

// Package bytecode is the compiled form the VM (C9) walks (§4.7): unlike
// Expr3, every name has been substituted for a resolved offset into the
// flat state vector. The VM is a tree-walker, not a flat-instruction
// interpreter, so Node is still a tree — "bytecode" here means "no more
// names, only offsets."
package bytecode

import (
	"github.com/sdkit/engine/pkg/ast"
	"github.com/sdkit/engine/pkg/ident"
	"github.com/sdkit/engine/pkg/stages"
)

// Node is one compiled expression or statement (§4.7's table).
type Node interface {
	isNode()
	Bounds() *ast.ArrayBounds
}

// Const pushes a literal value.
type Const struct{ Value float64 }

func (*Const) isNode()             {}
func (*Const) Bounds() *ast.ArrayBounds { return nil }

// Var reads curr[module_base+Offset].
type Var struct {
	Offset    int
	VarBounds *ast.ArrayBounds
}

func (*Var) isNode()             {}
func (n *Var) Bounds() *ast.ArrayBounds { return n.VarBounds }

// Dt reads curr[1] (the root's reserved dt slot).
type Dt struct{}

func (*Dt) isNode()             {}
func (*Dt) Bounds() *ast.ArrayBounds { return nil }

// TimeRef reads one of the other three reserved root slots (time,
// initial_time, final_time); Slot is the absolute root offset (0, 2, or
// 3). Folded into the same family as Dt since both are root-slot reads
// resolved identically by the VM, just at a different fixed offset.
type TimeRef struct{ Slot int }

func (*TimeRef) isNode()             {}
func (*TimeRef) Bounds() *ast.ArrayBounds { return nil }

// Subscript indexes into a variable's span (or, when FromTemp is set, a
// temp buffer's elements) with at least one dynamic index; out-of-range
// evaluates to NaN (§4.8).
type Subscript struct {
	Offset    int // state-vector offset; ignored when FromTemp
	FromTemp  bool
	TempID    int // temp buffer id; meaningful only when FromTemp
	Indices   []Node // nil entry: whole-dimension (apply-to-all) position
	SrcBounds *ast.ArrayBounds
	ResBounds *ast.ArrayBounds
}

func (*Subscript) isNode()             {}
func (n *Subscript) Bounds() *ast.ArrayBounds { return n.ResBounds }

// StaticSubscript is the compile-time-resolved fast path: FlatIndex is
// already known.
type StaticSubscript struct {
	Offset    int
	FlatIndex int
	ResBounds *ast.ArrayBounds
}

func (*StaticSubscript) isNode()             {}
func (n *StaticSubscript) Bounds() *ast.ArrayBounds { return n.ResBounds }

// TempArray references a whole materialized temp buffer by id.
type TempArray struct {
	ID        int
	ArrBounds *ast.ArrayBounds
}

func (*TempArray) isNode()             {}
func (n *TempArray) Bounds() *ast.ArrayBounds { return n.ArrBounds }

// TempArrayElement reads one compile-time-known element of a temp buffer.
type TempArrayElement struct {
	ID        int
	FlatIndex int
}

func (*TempArrayElement) isNode()             {}
func (*TempArrayElement) Bounds() *ast.ArrayBounds { return nil }

// AssignTemp evaluates Value once per flat index of TempBounds, writing
// into temp buffer ID.
type AssignTemp struct {
	ID         int
	Value      Node
	TempBounds *ast.ArrayBounds
}

func (*AssignTemp) isNode()             {}
func (n *AssignTemp) Bounds() *ast.ArrayBounds { return n.TempBounds }

// AssignCurr writes curr[module_base+Offset] = Value (§4.7). Offset is
// relative to the owning variable's base; for an Arrayed variable the
// compiler emits one AssignCurr per flat index, each with Offset+i. For an
// ApplyToAll variable, Count > 1 shares one compiled Value across every
// flat index: the VM re-evaluates Value once per i in [0,Count), adding i
// to every Var read's offset along the way (mirroring the compiler's
// offsetBy helper at compile time).
type AssignCurr struct {
	Offset int
	Value  Node
	Count  int
}

func (*AssignCurr) isNode()             {}
func (*AssignCurr) Bounds() *ast.ArrayBounds { return nil }

// AssignNext writes next[module_base+Offset] = Value (stock updates).
type AssignNext struct {
	Offset int
	Value  Node
}

func (*AssignNext) isNode()             {}
func (*AssignNext) Bounds() *ast.ArrayBounds { return nil }

// Op1 is a unary arithmetic/logic node.
type Op1 struct {
	Op  ast.Op1
	Arg Node
}

func (*Op1) isNode()             {}
func (*Op1) Bounds() *ast.ArrayBounds { return nil }

// Op2 is a binary arithmetic/logic/compare node.
type Op2 struct {
	Op        ast.Op2
	Left      Node
	Right     Node
	ResBounds *ast.ArrayBounds
}

func (*Op2) isNode()             {}
func (n *Op2) Bounds() *ast.ArrayBounds { return n.ResBounds }

// If is a conditional node.
type If struct {
	Cond, Then, Else Node
	ResBounds        *ast.ArrayBounds
}

func (*If) isNode()             {}
func (n *If) Bounds() *ast.ArrayBounds { return n.ResBounds }

// App is a typed builtin call. Table is populated only for Fn ==
// ast.Lookup, carrying the compiled *builtins.Table (kept as interface{}
// here to avoid a bytecode -> builtins -> model import cycle; the VM
// type-asserts it back).
type App struct {
	Fn        ast.BuiltinFn
	Args      []Node
	ResBounds *ast.ArrayBounds
	Table     interface{}
}

func (*App) isNode()             {}
func (n *App) Bounds() *ast.ArrayBounds { return n.ResBounds }

// Phase selects which runlist of a child module instantiation an
// EvalModule dispatch runs.
type Phase int

// The three phases a module instantiation can be dispatched for, mirroring
// stages.Runlists' three lists.
const (
	PhaseInitials Phase = iota
	PhaseFlows
	PhaseStocks
)

// EvalModule recursively dispatches into a child module instantiation:
// looks up (ChildModel, InputSet) in the module table, pushes ChildBase (the
// child's own absolute base offset, already made relative to the parent's
// base at compile time), and runs the requested runlist Phase. Args carries
// one compiled expression per input binding, evaluated in the parent's
// frame and written to the child's ModuleInput slots before the child phase
// runs; Args is re-evaluated on every dispatch, whatever the Phase, since
// the child's Initials and Stocks runlists may read a bound input too.
type EvalModule struct {
	ChildIdent ident.Canonical
	ChildModel ident.Canonical
	InputSet   stages.InputSetKey
	ChildBase  int
	Phase      Phase
	Args       []Node
}

func (*EvalModule) isNode()             {}
func (*EvalModule) Bounds() *ast.ArrayBounds { return nil }

// ModuleInput reads the k-th input binding of the module currently being
// evaluated.
type ModuleInput struct{ Index int }

func (*ModuleInput) isNode()             {}
func (*ModuleInput) Bounds() *ast.ArrayBounds { return nil }
