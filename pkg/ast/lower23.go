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

// TempAllocator hands out fresh temp-array ids for a single variable's
// lower() call; ids restart at 0 per call (§4.3/§4.7's "Temp sizing" note),
// since the compiler sizes each id's buffer to the maximum observed size
// across all variables that reuse it.
type TempAllocator struct {
	next int
}

// Alloc returns a fresh temp id.
func (a *TempAllocator) Alloc() int {
	id := a.next
	a.next++
	return id
}

// Lower2To3 performs L2->L3 lowering (§4.3): materializes a temp array for
// every array-producing subexpression consumed by a reduction builtin or a
// subscript, and collapses all-literal subscripts to StaticSubscript3.
func Lower2To3(e Expr2, alloc *TempAllocator) Expr3 {
	switch n := e.(type) {
	case nil:
		return nil
	case *Const2:
		return &Const3{Value: n.Value}
	case *Var2:
		return &Var3{Name: n.Name, VarBounds: n.VarBounds}
	case *IsModuleInputPred2:
		return &IsModuleInputPred3{VarName: n.VarName}
	case *Subscript2:
		return lowerSubscript(n, alloc)
	case *App2:
		return lowerApp(n, alloc)
	case *UnaryOp2:
		return &UnaryOp3{Op: n.Op, Arg: Lower2To3(n.Arg, alloc)}
	case *BinaryOp2:
		return &BinaryOp3{Op: n.Op, Left: Lower2To3(n.Left, alloc), Right: Lower2To3(n.Right, alloc), ResBounds: n.ResBounds}
	case *If2:
		return &If3{Cond: Lower2To3(n.Cond, alloc), Then: Lower2To3(n.Then, alloc), Else: Lower2To3(n.Else, alloc), ResBounds: n.ResBounds}
	default:
		panic("ast: unhandled Expr2 node in Lower2To3")
	}
}

// materialize wraps a lowered array-bounds-shaped expression in a fresh
// AssignTemp3/TempArray3 pair, unless it is already directly a temp
// reference (no point double-materializing).
func materialize(e Expr3, bounds *ArrayBounds, alloc *TempAllocator) Expr3 {
	if _, already := e.(*TempArray3); already {
		return e
	}
	id := alloc.Alloc()
	_ = &AssignTemp3{ID: id, Value: e, Bounds: bounds}
	// The AssignTemp3 side-effect is represented by returning a TempArray3
	// that the compiler (C8) will precede with the corresponding AssignTemp
	// instruction; see the compiler's compileExprStatement and
	// collectTempAssigns for how the pairing is reconstructed into
	// sequential bytecode.
	return &TempArray3{ID: id, ArrBounds: bounds, assign: &AssignTemp3{ID: id, Value: e, Bounds: bounds}}
}

func lowerSubscript(n *Subscript2, alloc *TempAllocator) Expr3 {
	target := Lower2To3(n.Target, alloc)

	// If the target is not directly addressable by offset (i.e. not a plain
	// Var3), it must be materialized into a temp before we can subscript it.
	if _, isVar := target.(*Var3); !isVar {
		if tb := n.Target.Bounds(); !tb.IsScalar() {
			target = materialize(target, tb, alloc)
		}
	}

	allLiteral := true
	idxExprs := make([]Expr3, len(n.Indices))
	flatIdx := 0
	stride := 1
	tb := n.Target.Bounds()

	for i := len(n.Indices) - 1; i >= 0; i-- {
		idx := n.Indices[i]
		switch idx.Kind {
		case IndexLiteral:
			flatIdx += (idx.Literal - 1) * stride
			idxExprs[i] = &Const3{Value: float64(idx.Literal)}
		case IndexElement:
			allLiteral = false
			idxExprs[i] = &Var3{Name: idx.Element}
		case IndexDimension:
			allLiteral = false
			idxExprs[i] = nil
		case IndexComputed:
			allLiteral = false
			idxExprs[i] = Lower2To3(idx.Computed, alloc)
		}
		if !tb.IsScalar() && i < len(tb.Dims) {
			stride *= tb.Dims[i]
		}
	}

	if allLiteral && len(n.Indices) > 0 {
		return &StaticSubscript3{Target: target, FlatIndex: flatIndexFor(n.Indices, tb), ResBounds: n.ResBounds}
	}

	return &Subscript3{Target: target, Indices: idxExprs, ResBounds: n.ResBounds}
}

// flatIndexFor computes the row-major flat offset of an all-literal
// subscript tuple within bounds.
func flatIndexFor(indices []SubIndex2, bounds *ArrayBounds) int {
	flat := 0
	for i, idx := range indices {
		stride := 1
		if !bounds.IsScalar() {
			for j := i + 1; j < len(bounds.Dims); j++ {
				stride *= bounds.Dims[j]
			}
		}
		flat += (idx.Literal - 1) * stride
	}
	return flat
}

func lowerApp(n *App2, alloc *TempAllocator) Expr3 {
	args := make([]Expr3, len(n.Args))
	for i, a := range n.Args {
		lowered := Lower2To3(a, alloc)
		if n.Fn.isReduction() && !a.Bounds().IsScalar() {
			lowered = materialize(lowered, a.Bounds(), alloc)
		}
		args[i] = lowered
	}
	return &App3{Fn: n.Fn, Args: args, ResBounds: n.ResBounds}
}

// PruneModuleInputGuards statically resolves every IsModuleInputPred3(x)
// node to a constant, given the set of identifiers bound as inputs under
// the active instantiation, and prunes the dead branch of any enclosing
// If3 whose condition collapses entirely to that predicate (§4.4). Variable
// analysis applies it to each equation right after lowering it, once per
// (model, input-set) instantiation the variable is analyzed under.
func PruneModuleInputGuards(e Expr3, inputSet map[ident.Canonical]bool) Expr3 {
	switch n := e.(type) {
	case nil:
		return nil
	case *IsModuleInputPred3:
		if inputSet[n.VarName] {
			return &Const3{Value: 1}
		}
		return &Const3{Value: 0}
	case *If3:
		cond := PruneModuleInputGuards(n.Cond, inputSet)
		if c, ok := cond.(*Const3); ok {
			if c.Value != 0 {
				return PruneModuleInputGuards(n.Then, inputSet)
			}
			return PruneModuleInputGuards(n.Else, inputSet)
		}
		return &If3{
			Cond:      cond,
			Then:      PruneModuleInputGuards(n.Then, inputSet),
			Else:      PruneModuleInputGuards(n.Else, inputSet),
			ResBounds: n.ResBounds,
		}
	case *BinaryOp3:
		return &BinaryOp3{Op: n.Op, Left: PruneModuleInputGuards(n.Left, inputSet), Right: PruneModuleInputGuards(n.Right, inputSet), ResBounds: n.ResBounds}
	case *UnaryOp3:
		return &UnaryOp3{Op: n.Op, Arg: PruneModuleInputGuards(n.Arg, inputSet)}
	case *App3:
		args := make([]Expr3, len(n.Args))
		for i, a := range n.Args {
			args[i] = PruneModuleInputGuards(a, inputSet)
		}
		return &App3{Fn: n.Fn, Args: args, ResBounds: n.ResBounds, Table: n.Table}
	case *AssignTemp3:
		return &AssignTemp3{ID: n.ID, Value: PruneModuleInputGuards(n.Value, inputSet), Bounds: n.Bounds}
	case *Subscript3:
		idxs := make([]Expr3, len(n.Indices))
		for i, ix := range n.Indices {
			idxs[i] = PruneModuleInputGuards(ix, inputSet)
		}
		return &Subscript3{Target: PruneModuleInputGuards(n.Target, inputSet), Indices: idxs, ResBounds: n.ResBounds}
	case *StaticSubscript3:
		return &StaticSubscript3{Target: PruneModuleInputGuards(n.Target, inputSet), FlatIndex: n.FlatIndex, ResBounds: n.ResBounds}
	default:
		return e
	}
}
