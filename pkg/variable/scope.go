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

// Package variable implements variable analysis (§4.4, C5): the concrete
// ast.Scope backed by a real model's variable table, identifier-set
// (dependency) extraction from a lowered equation, the effective
// non_negative flag, and equation-error surfacing.
package variable

import (
	"github.com/sdkit/engine/pkg/ast"
	"github.com/sdkit/engine/pkg/dims"
	"github.com/sdkit/engine/pkg/ident"
	"github.com/sdkit/engine/pkg/model"
)

// ModelScope resolves identifiers against one model's variable table and
// the project's shared dimension table. ApplyToAll and Arrayed equations
// bind their dimension names to the current element while being lowered;
// Bind/Unbind toggle that per equation.
type ModelScope struct {
	m       *model.Model
	dims    *dims.Table
	bounds  map[ident.Canonical]*ast.ArrayBounds
	binding map[ident.Canonical]ident.Canonical
}

// NewModelScope builds a scope over m, precomputing every variable's
// ArrayBounds from its equation's declared dimension names.
func NewModelScope(m *model.Model, table *dims.Table) *ModelScope {
	s := &ModelScope{
		m:       m,
		dims:    table,
		bounds:  make(map[ident.Canonical]*ast.ArrayBounds),
		binding: make(map[ident.Canonical]ident.Canonical),
	}
	for name, v := range m.Variables {
		s.bounds[name] = boundsOf(v, table)
	}
	return s
}

func boundsOf(v model.Variable, table *dims.Table) *ast.ArrayBounds {
	var dimNames []ident.Canonical
	switch vv := v.(type) {
	case *model.Stock:
		dimNames = vv.Initial.DimNames
	case *model.Var:
		dimNames = vv.Current.DimNames
	default:
		return nil
	}
	if len(dimNames) == 0 {
		return nil
	}
	sizes := make([]int, len(dimNames))
	for i, dn := range dimNames {
		d, ok := table.Lookup(dn)
		if !ok {
			return nil
		}
		sizes[i] = d.Size()
	}
	return &ast.ArrayBounds{DimNames: dimNames, Dims: sizes}
}

// Variable implements ast.Scope.
func (s *ModelScope) Variable(name ident.Canonical) (*ast.ArrayBounds, bool) {
	b, ok := s.bounds[name]
	return b, ok
}

// Dimension implements ast.Scope.
func (s *ModelScope) Dimension(name ident.Canonical) (*dims.Dimension, bool) {
	return s.dims.Lookup(name)
}

// SubscriptBinding implements ast.Scope.
func (s *ModelScope) SubscriptBinding(dim ident.Canonical) (ident.Canonical, bool) {
	elem, ok := s.binding[dim]
	return elem, ok
}

// Bind records that dim is currently iterating over elem, for the duration
// of lowering one ApplyToAll/Arrayed element's expression.
func (s *ModelScope) Bind(dim, elem ident.Canonical) {
	s.binding[dim] = elem
}

// Unbind clears a prior Bind.
func (s *ModelScope) Unbind(dim ident.Canonical) {
	delete(s.binding, dim)
}
