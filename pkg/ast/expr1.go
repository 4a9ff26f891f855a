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

import "github.com/sdkit/engine/pkg/dims"

// Expr1 is the constified expression stage (§3.5/§4.3 L0->L1): SIZE(Dim) and
// related dimension literals are folded to their integer cardinality where
// they appear as scalar operands. Identifier text is otherwise left
// unchanged (still raw, not yet canonicalized).
type Expr1 interface {
	isExpr1()
}

// Const1 is a literal numeric constant, including one folded from SIZE(Dim).
type Const1 struct {
	Value float64
}

func (*Const1) isExpr1() {}

// Ident1 is a raw identifier carried through unchanged from Expr0.
type Ident1 struct {
	Raw string
}

func (*Ident1) isExpr1() {}

// Subscript1 mirrors Subscript0.
type Subscript1 struct {
	Target  Expr1
	Indices []Expr1
}

func (*Subscript1) isExpr1() {}

// UntypedBuiltinFn1 mirrors UntypedBuiltinFn0 for calls that were not folded
// (i.e. every builtin except a SIZE(Dim) appearing in scalar position).
type UntypedBuiltinFn1 struct {
	Name string
	Args []Expr1
}

func (*UntypedBuiltinFn1) isExpr1() {}

// UnaryOp1 mirrors UnaryOp0.
type UnaryOp1 struct {
	Op  Op1
	Arg Expr1
}

func (*UnaryOp1) isExpr1() {}

// BinaryOp1 mirrors BinaryOp0.
type BinaryOp1 struct {
	Op    Op2
	Left  Expr1
	Right Expr1
}

func (*BinaryOp1) isExpr1() {}

// If1 mirrors If0.
type If1 struct {
	Cond, Then, Else Expr1
}

func (*If1) isExpr1() {}

// Lower0To1 folds SIZE(Dim) into its cardinality wherever Dim names a known
// dimension in the table and SIZE appears directly (i.e. in a scalar
// operand position); every other node is carried across unchanged in shape.
func Lower0To1(e Expr0, table *dims.Table) Expr1 {
	switch n := e.(type) {
	case nil:
		return nil
	case *Const0:
		return &Const1{Value: n.Value}
	case *Ident0:
		return &Ident1{Raw: n.Raw}
	case *Subscript0:
		idxs := make([]Expr1, len(n.Indices))
		for i, ix := range n.Indices {
			idxs[i] = Lower0To1(ix, table)
		}
		return &Subscript1{Target: Lower0To1(n.Target, table), Indices: idxs}
	case *UntypedBuiltinFn0:
		if upper(n.Name) == "SIZE" && len(n.Args) == 1 {
			if id, ok := n.Args[0].(*Ident0); ok {
				if d, found := table.Lookup(dims.Canonical(canonLower(id.Raw))); found {
					return &Const1{Value: float64(d.Size())}
				}
			}
		}
		args := make([]Expr1, len(n.Args))
		for i, a := range n.Args {
			args[i] = Lower0To1(a, table)
		}
		return &UntypedBuiltinFn1{Name: n.Name, Args: args}
	case *UnaryOp0:
		return &UnaryOp1{Op: n.Op, Arg: Lower0To1(n.Arg, table)}
	case *BinaryOp0:
		return &BinaryOp1{Op: n.Op, Left: Lower0To1(n.Left, table), Right: Lower0To1(n.Right, table)}
	case *If0:
		return &If1{Cond: Lower0To1(n.Cond, table), Then: Lower0To1(n.Then, table), Else: Lower0To1(n.Else, table)}
	default:
		panic("ast: unhandled Expr0 node in Lower0To1")
	}
}

// canonLower is a best-effort lowercase used only to probe the dimension
// table for a SIZE(Dim) literal fold; it does not need to replicate every
// canonicalization rule since dimension names rarely contain punctuation,
// but it does lowercase and trim so "DimA" and " DimA " both resolve.
func canonLower(raw string) string {
	b := []byte(raw)
	n := 0
	start := 0
	end := len(b)
	for start < end && (b[start] == ' ' || b[start] == '\t') {
		start++
	}
	for end > start && (b[end-1] == ' ' || b[end-1] == '\t') {
		end--
	}
	out := make([]byte, 0, end-start)
	for _, c := range b[start:end] {
		if c >= 'A' && c <= 'Z' {
			c = c - ('A' - 'a')
		}
		out = append(out, c)
		n++
	}
	return string(out)
}
