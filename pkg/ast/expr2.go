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

// Expr2 is the typed, array-aware expression stage (§3.5/§4.3 L1->L2):
// identifiers are canonicalized, builtin calls are resolved to the typed
// BuiltinFn enum and arity/type-checked, and every array-producing node
// carries its inferred ArrayBounds.
type Expr2 interface {
	isExpr2()
	// Bounds returns the inferred shape of this node's value, or nil for a
	// scalar.
	Bounds() *ArrayBounds
}

// Const2 is a literal numeric constant; always scalar.
type Const2 struct {
	Value float64
}

func (*Const2) isExpr2()          {}
func (*Const2) Bounds() *ArrayBounds { return nil }

// Var2 references a resolved variable (possibly arrayed) by canonical
// identifier, resolved per §4.3 step 2(a)/(b): either a variable in the
// current model, or a dotted path into a sub-model.
type Var2 struct {
	Name       ident.Canonical
	VarBounds  *ArrayBounds
}

func (*Var2) isExpr2()          {}
func (n *Var2) Bounds() *ArrayBounds { return n.VarBounds }

// SubIndexKind distinguishes the four legal forms of a single subscript
// position (§4.1/§4.3).
type SubIndexKind int

// Subscript index kinds.
const (
	// IndexLiteral is a compile-time-known 1-based integer position.
	IndexLiteral SubIndexKind = iota
	// IndexElement names a specific dimension element (e.g. x["north"]).
	IndexElement
	// IndexDimension names a whole dimension, meaning "this position
	// iterates"; only legal inside an ApplyToAll equation or a reduction
	// argument.
	IndexDimension
	// IndexComputed is an arbitrary scalar expression (e.g. x[INT(TIME)+1]).
	IndexComputed
)

// SubIndex2 is one element of a Subscript2's index list.
type SubIndex2 struct {
	Kind     SubIndexKind
	Literal  int
	Element  ident.Canonical
	DimName  ident.Canonical
	Computed Expr2
}

// Subscript2 indexes an array-valued expression, reducing Target's bounds
// along each scalar/range/dim-position index (§4.3 step 4).
type Subscript2 struct {
	Target     Expr2
	Indices    []SubIndex2
	ResBounds  *ArrayBounds
}

func (*Subscript2) isExpr2()          {}
func (n *Subscript2) Bounds() *ArrayBounds { return n.ResBounds }

// IsModuleInputPred2 is the ISMODULEINPUT(ident) predicate (§4.9): whether
// ident names a variable bound as a module input in the instantiation under
// analysis. Resolved to a constant during L2->L3 once the input-set is
// known (§4.4); always scalar.
type IsModuleInputPred2 struct {
	VarName ident.Canonical
}

func (*IsModuleInputPred2) isExpr2()          {}
func (*IsModuleInputPred2) Bounds() *ArrayBounds { return nil }

// App2 is a resolved call to a typed builtin function.
type App2 struct {
	Fn        BuiltinFn
	Args      []Expr2
	ResBounds *ArrayBounds
}

func (*App2) isExpr2()          {}
func (n *App2) Bounds() *ArrayBounds { return n.ResBounds }

// UnaryOp2 mirrors UnaryOp1 but over typed operands; always scalar (no unary
// operator is defined over arrays in this engine).
type UnaryOp2 struct {
	Op  Op1
	Arg Expr2
}

func (*UnaryOp2) isExpr2()          {}
func (*UnaryOp2) Bounds() *ArrayBounds { return nil }

// BinaryOp2 requires matching bounds between Left and Right after two-pass
// dimension matching (§4.3 step 4); a scalar operand broadcasts against an
// array operand (stride 0). ResBounds is the (possibly broadcast) result
// shape.
type BinaryOp2 struct {
	Op        Op2
	Left      Expr2
	Right     Expr2
	ResBounds *ArrayBounds
}

func (*BinaryOp2) isExpr2()          {}
func (n *BinaryOp2) Bounds() *ArrayBounds { return n.ResBounds }

// If2 requires Then and Else to share bounds; Cond is always scalar.
type If2 struct {
	Cond, Then, Else Expr2
	ResBounds        *ArrayBounds
}

func (*If2) isExpr2()          {}
func (n *If2) Bounds() *ArrayBounds { return n.ResBounds }
