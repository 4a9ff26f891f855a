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
	"github.com/sdkit/engine/pkg/dims"
	"github.com/sdkit/engine/pkg/errors"
	"github.com/sdkit/engine/pkg/ident"
)

// Scope is the resolution environment a single equation is lowered within
// (§4.3 L1->L2 step 2): it knows the variables of the enclosing model (and,
// by canonical dotted path, variables of reachable sub-models), the
// project's dimension table, and which dimension elements are currently
// bound by an enclosing ApplyToAll iteration (so a bare dimension-name index
// inside its own apply-to-all body resolves to "the current element"
// instead of "iterate").
type Scope interface {
	// Variable resolves a canonical identifier (local or module·-qualified)
	// to the bounds of the variable it names.
	Variable(name ident.Canonical) (bounds *ArrayBounds, ok bool)
	// Dimension resolves a canonical identifier to a declared dimension.
	Dimension(name ident.Canonical) (*dims.Dimension, bool)
	// SubscriptBinding returns the element currently bound to dim within an
	// enclosing ApplyToAll body, if any.
	SubscriptBinding(dim ident.Canonical) (ident.Canonical, bool)
}

// Resolver performs L1->L2 lowering for a single equation string's Expr1
// tree, accumulating EquationErrors rather than aborting on the first one
// (§7's propagation policy).
type Resolver struct {
	scope  Scope
	errors []*errors.EquationError
}

// NewResolver constructs a Resolver bound to the given scope.
func NewResolver(scope Scope) *Resolver {
	return &Resolver{scope: scope}
}

// Errors returns every EquationError accumulated while resolving.
func (r *Resolver) Errors() []*errors.EquationError {
	return r.errors
}

func (r *Resolver) fail(code errors.Code, msg string) {
	r.errors = append(r.errors, errors.NewEquationError(code, errors.Span{}, msg))
}

// Resolve lowers e1 to Expr2, canonicalizing identifiers, resolving
// builtins, and inferring ArrayBounds (§4.3 L1->L2).
func (r *Resolver) Resolve(e1 Expr1) Expr2 {
	switch n := e1.(type) {
	case nil:
		return nil
	case *Const1:
		return &Const2{Value: n.Value}
	case *Ident1:
		return r.resolveIdent(n.Raw)
	case *Subscript1:
		return r.resolveSubscript(n)
	case *UntypedBuiltinFn1:
		return r.resolveBuiltin(n)
	case *UnaryOp1:
		return &UnaryOp2{Op: n.Op, Arg: r.Resolve(n.Arg)}
	case *BinaryOp1:
		return r.resolveBinary(n)
	case *If1:
		return r.resolveIf(n)
	default:
		panic("ast: unhandled Expr1 node in Resolve")
	}
}

func (r *Resolver) resolveIdent(raw string) Expr2 {
	name := ident.Canonicalize(ident.Raw(raw))

	if bounds, ok := r.scope.Variable(name); ok {
		return &Var2{Name: name, VarBounds: bounds}
	}

	if _, ok := r.scope.Dimension(name); ok {
		// A bare dimension name is only legal as a reduction argument or a
		// positional subscript; callers that expect a value (not a Subscript2
		// index) reaching here is an error.
		r.fail(errors.DimensionInScalarContext, "dimension name used where a value was expected: "+string(name))
		return &Const2{Value: 0}
	}

	r.fail(errors.UnknownDependency, "unknown identifier: "+string(name))
	return &Const2{Value: 0}
}

func (r *Resolver) resolveSubIndex(e1 Expr1) SubIndex2 {
	if id, ok := e1.(*Ident1); ok {
		name := ident.Canonicalize(ident.Raw(id.Raw))
		if d, ok := r.scope.Dimension(name); ok {
			if elem, bound := r.scope.SubscriptBinding(name); bound {
				return SubIndex2{Kind: IndexElement, Element: elem}
			}
			_ = d
			return SubIndex2{Kind: IndexDimension, DimName: name}
		}
		// Not a dimension name: could still be an element name of some
		// dimension (e.g. x["north"]) or a scalar variable used as an index.
		return SubIndex2{Kind: IndexElement, Element: name}
	}
	if c, ok := e1.(*Const1); ok {
		return SubIndex2{Kind: IndexLiteral, Literal: int(c.Value)}
	}
	return SubIndex2{Kind: IndexComputed, Computed: r.Resolve(e1)}
}

func (r *Resolver) resolveSubscript(n *Subscript1) Expr2 {
	target := r.Resolve(n.Target)
	indices := make([]SubIndex2, len(n.Indices))
	for i, ix := range n.Indices {
		indices[i] = r.resolveSubIndex(ix)
	}

	tb := target.Bounds()
	if tb.IsScalar() {
		r.fail(errors.CantSubscriptScalar, "cannot subscript a scalar expression")
		return &Subscript2{Target: target, Indices: indices, ResBounds: nil}
	}

	var resDims []int
	var resNames []ident.Canonical
	for i, idx := range indices {
		if i >= len(tb.Dims) {
			break
		}
		if idx.Kind == IndexDimension {
			resDims = append(resDims, tb.Dims[i])
			resNames = append(resNames, tb.DimNames[i])
		}
	}
	// Trailing unsubscripted dimensions remain in the result.
	for i := len(indices); i < len(tb.Dims); i++ {
		resDims = append(resDims, tb.Dims[i])
		resNames = append(resNames, tb.DimNames[i])
	}

	var rb *ArrayBounds
	if len(resDims) > 0 {
		rb = &ArrayBounds{DimNames: resNames, Dims: resDims}
	}

	return &Subscript2{Target: target, Indices: indices, ResBounds: rb}
}

func (r *Resolver) resolveBuiltin(n *UntypedBuiltinFn1) Expr2 {
	if upper(n.Name) == "ISMODULEINPUT" && len(n.Args) == 1 {
		if id, ok := n.Args[0].(*Ident1); ok {
			return &IsModuleInputPred2{VarName: ident.Canonicalize(ident.Raw(id.Raw))}
		}
	}

	fn, ok := ResolveBuiltin(n.Name)
	if !ok {
		r.fail(errors.UnknownBuiltin, "unknown builtin: "+n.Name)
		fn = unresolvedBuiltin
	}

	args := make([]Expr2, len(n.Args))
	for i, a := range n.Args {
		args[i] = r.Resolve(a)
	}

	var bounds *ArrayBounds
	if fn.isReduction() {
		if fn == Rank && len(args) > 1 {
			bounds = args[0].Bounds()
		}
		// else: scalar result
	} else if len(args) > 0 {
		bounds = args[0].Bounds()
	}

	return &App2{Fn: fn, Args: args, ResBounds: bounds}
}

// unresolvedBuiltin is used as a placeholder builtin when resolution fails,
// so downstream passes still have a well-formed (if meaningless) node to
// walk rather than needing to special-case a nil BuiltinFn.
const unresolvedBuiltin BuiltinFn = -1

func (r *Resolver) resolveBinary(n *BinaryOp1) Expr2 {
	left := r.Resolve(n.Left)
	right := r.Resolve(n.Right)

	lb, rb := left.Bounds(), right.Bounds()
	var result *ArrayBounds

	switch {
	case lb.IsScalar() && rb.IsScalar():
		result = nil
	case lb.IsScalar():
		result = rb
	case rb.IsScalar():
		result = lb
	default:
		if !lb.Equal(rb) {
			if _, ok := dims.FindDimensionReordering(lb.DimNames, rb.DimNames); !ok {
				r.fail(errors.MismatchedDimensions, "binary operator requires matching array bounds")
			}
		}
		result = lb
	}

	return &BinaryOp2{Op: n.Op, Left: left, Right: right, ResBounds: result}
}

func (r *Resolver) resolveIf(n *If1) Expr2 {
	cond := r.Resolve(n.Cond)
	then := r.Resolve(n.Then)
	els := r.Resolve(n.Else)

	if !then.Bounds().Equal(els.Bounds()) {
		r.fail(errors.MismatchedDimensions, "if-branches must have matching array bounds")
	}

	return &If2{Cond: cond, Then: then, Else: els, ResBounds: then.Bounds()}
}
