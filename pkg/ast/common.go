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

// Package ast implements the four-stage expression lowering pipeline of
// §3.5/§4.3: Expr0 (parsed) -> Expr1 (constified) -> Expr2 (typed,
// array-aware) -> Expr3 (lowered, temp-materialized). Each stage is its own
// Go type so a pass can assume every invariant established by earlier passes
// without runtime shape checks; mirrors the teacher's HIR/MIR/AIR split in
// pkg/ir/hir, pkg/ir/mir, pkg/ir/air.
package ast

import "github.com/sdkit/engine/pkg/ident"

// Op1 is the closed set of unary operators.
type Op1 int

// Unary operator kinds.
const (
	Neg Op1 = iota
	Not
)

// Op2 is the closed set of binary operators (arithmetic, logic, compare).
type Op2 int

// Binary operator kinds.
const (
	Add Op2 = iota
	Sub
	Mul
	Div
	Mod
	Pow
	Eq
	Neq
	Lt
	Lte
	Gt
	Gte
	And
	Or
)

// BuiltinFn is the closed, typed builtin table of §4.9. UntypedBuiltinFn
// names (raw text from Expr0) are resolved to one of these during L1->L2.
type BuiltinFn int

// The builtin functions named in §4.9.
const (
	Abs BuiltinFn = iota
	Arccos
	Arcsin
	Arctan
	Cos
	Exp
	Inf
	IntFn
	IsModuleInput
	Ln
	Log10
	Lookup
	MaxFn
	Mean
	MinFn
	Pi
	Pulse
	Ramp
	Rank
	Safediv
	Sign
	Sin
	Size
	Sqrt
	Stddev
	Step
	Sum
	Tan
	Time
	Timestep
	Starttime
	Finaltime
)

// builtinNames maps each builtin's canonical (upper-case, as written in
// equations) spelling to its BuiltinFn, used for resolving an
// UntypedBuiltinFn name.
var builtinNames = map[string]BuiltinFn{
	"ABS": Abs, "ARCCOS": Arccos, "ARCSIN": Arcsin, "ARCTAN": Arctan,
	"COS": Cos, "EXP": Exp, "INF": Inf, "INT": IntFn,
	"ISMODULEINPUT": IsModuleInput, "LN": Ln, "LOG10": Log10, "LOOKUP": Lookup,
	"MAX": MaxFn, "MEAN": Mean, "MIN": MinFn, "PI": Pi, "PULSE": Pulse,
	"RAMP": Ramp, "RANK": Rank, "SAFEDIV": Safediv, "SIGN": Sign, "SIN": Sin,
	"SIZE": Size, "SQRT": Sqrt, "STDDEV": Stddev, "STEP": Step, "SUM": Sum,
	"TAN": Tan, "TIME": Time, "TIMESTEP": Timestep, "STARTTIME": Starttime,
	"FINALTIME": Finaltime,
}

// ResolveBuiltin performs the case-insensitive name match to the typed
// builtin table described in §4.3 step 3. ok is false for an unknown name.
func ResolveBuiltin(name string) (BuiltinFn, bool) {
	fn, ok := builtinNames[upper(name)]
	return fn, ok
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

// isReduction reports whether a builtin consumes an array argument and
// produces (by default) a scalar, per §4.3 step 4: SUM, MEAN, STDDEV, RANK,
// SIZE. RANK with a rank argument instead preserves its argument's bounds;
// that refinement is applied by the L2 bounds inferencer, not here.
func (b BuiltinFn) isReduction() bool {
	switch b {
	case Sum, Mean, Stddev, Rank, Size:
		return true
	default:
		return false
	}
}

// ArrayBounds is the inferred shape of an array-producing L2+ node: parallel
// slices of dimension names and their sizes (§3.6).
type ArrayBounds struct {
	DimNames []ident.Canonical
	Dims     []int
}

// IsScalar reports whether these bounds describe a scalar (no dimensions).
func (b *ArrayBounds) IsScalar() bool {
	return b == nil || len(b.Dims) == 0
}

// FlatSize returns the product of all dimension sizes (1 for a scalar).
func (b *ArrayBounds) FlatSize() int {
	if b.IsScalar() {
		return 1
	}
	n := 1
	for _, d := range b.Dims {
		n *= d
	}
	return n
}

// Equal reports whether two bounds describe the same shape (same dimension
// names, in the same order, with the same sizes).
func (b *ArrayBounds) Equal(o *ArrayBounds) bool {
	if b.IsScalar() && o.IsScalar() {
		return true
	}
	if b.IsScalar() != o.IsScalar() {
		return false
	}
	if len(b.Dims) != len(o.Dims) {
		return false
	}
	for i := range b.Dims {
		if b.Dims[i] != o.Dims[i] || b.DimNames[i] != o.DimNames[i] {
			return false
		}
	}
	return true
}
