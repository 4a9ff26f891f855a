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

// Package model is the plain-data tree a caller builds (from XMILE, MDL,
// JSON, or protobuf) and hands to the engine (§6.1, C3). It owns L0
// expressions only; every later stage (ast.Expr1..3, bytecode, offsets)
// derives from it without mutating it.
package model

import (
	"github.com/sdkit/engine/pkg/ast"
	"github.com/sdkit/engine/pkg/dims"
	"github.com/sdkit/engine/pkg/ident"
)

// IntegrationMethod selects the VM's numerical integrator (§4.8).
type IntegrationMethod int

// Integration methods.
const (
	Euler IntegrationMethod = iota
	RK2
	RK4
)

func (m IntegrationMethod) String() string {
	switch m {
	case RK2:
		return "rk2"
	case RK4:
		return "rk4"
	default:
		return "euler"
	}
}

// Dt is the time-step specification: either an absolute step or the
// reciprocal of a save-steps-per-unit-time count.
type Dt struct {
	Value       float64
	IsReciprocal bool
}

// Resolve returns the absolute dt value in time units.
func (d Dt) Resolve() float64 {
	if d.IsReciprocal && d.Value != 0 {
		return 1 / d.Value
	}
	return d.Value
}

// SimSpecs is the simulation time window and integration configuration
// (§6.1). A Model may override its parent Project's SimSpecs; nil means
// inherit.
type SimSpecs struct {
	Start     float64
	Stop      float64
	Dt        Dt
	SaveStep  float64 // 0 means "every dt"
	Method    IntegrationMethod
	TimeUnits string
}

// EffectiveSaveStep returns SaveStep if set, else the resolved Dt.
func (s SimSpecs) EffectiveSaveStep() float64 {
	if s.SaveStep > 0 {
		return s.SaveStep
	}
	return s.Dt.Resolve()
}

// Project is the root of the data model: it owns every Model by canonical
// name and the shared dimension table (§3.2/§3.3 Ownership).
type Project struct {
	Name       string
	SimSpecs   SimSpecs
	Dimensions *dims.Table
	Units      []string
	Models     map[ident.Canonical]*Model
	// RootModel is the canonical name of the model simulation starts from
	// (conventionally "main").
	RootModel ident.Canonical
}

// NewProject constructs an empty Project with an initialized dimension
// table and model map.
func NewProject(name string, specs SimSpecs) *Project {
	return &Project{
		Name:       name,
		SimSpecs:   specs,
		Dimensions: dims.NewTable(),
		Models:     make(map[ident.Canonical]*Model),
		RootModel:  "main",
	}
}

// AddModel registers a model by its canonical name, overwriting any prior
// model of the same name.
func (p *Project) AddModel(m *Model) {
	p.Models[m.Name] = m
}

// Model owns its Variables by canonical ident (§3.3 Ownership).
type Model struct {
	Name      ident.Canonical
	SimSpecs  *SimSpecs // nil: inherit the Project's
	Variables map[ident.Canonical]Variable
}

// NewModel constructs an empty Model.
func NewModel(name ident.Canonical) *Model {
	return &Model{Name: name, Variables: make(map[ident.Canonical]Variable)}
}

// AddVariable registers v under its own Ident, overwriting any prior
// variable of the same name.
func (m *Model) AddVariable(v Variable) {
	m.Variables[v.Ident()] = v
}

// Variable is the common interface of Stock, Var, and Module (§3.3).
type Variable interface {
	Ident() ident.Canonical
	Documentation() string
	isVariable()
}

// Stock is a level variable: accumulates its net inflow over time.
type Stock struct {
	Name        ident.Canonical
	Initial     Equation
	Inflows     []ident.Canonical
	Outflows    []ident.Canonical
	NonNegative bool
	Units       string
	Doc         string
}

func (s *Stock) Ident() ident.Canonical  { return s.Name }
func (s *Stock) Documentation() string   { return s.Doc }
func (*Stock) isVariable()               {}

// Var is an aux or flow variable (§3.3). IsFlow distinguishes a rate
// variable (whose offset feeds a Stock's net-inflow bytecode) from a plain
// auxiliary; IsTableOnly marks a variable whose only content is its
// GraphicalFunction (equation, if present, is the table input expression).
type Var struct {
	Name        ident.Canonical
	Current     Equation
	Initial     Equation // nil: flows without a separate initial reuse Current
	Table       *GraphicalFunction
	NonNegative bool
	IsFlow      bool
	IsTableOnly bool
	Units       string
	Doc         string
}

func (v *Var) Ident() ident.Canonical { return v.Name }
func (v *Var) Documentation() string  { return v.Doc }
func (*Var) isVariable()              {}

// InputBinding wires a child module's input to an expression evaluated in
// the parent's scope (§3.3).
type InputBinding struct {
	Src ident.Canonical // identifier in the parent model
	Dst ident.Canonical // identifier in the child model
}

// Module is a child model instantiation (§3.3). The project owns the
// actual child Model; Module references it by canonical name only.
type Module struct {
	Name      ident.Canonical
	ModelName ident.Canonical
	Inputs    []InputBinding
	Units     string
	Doc       string
}

func (m *Module) Ident() ident.Canonical { return m.Name }
func (m *Module) Documentation() string  { return m.Doc }
func (*Module) isVariable()              {}

// EquationKind distinguishes the three equation shapes of §3.4.
type EquationKind int

// Equation kinds.
const (
	Scalar EquationKind = iota
	ApplyToAll
	Arrayed
)

// ArrayedEntry is one element-tuple's expression within an Arrayed
// equation; Subscript is the comma-joined canonical element-name key
// (§3.4/dims.JoinKey).
type ArrayedEntry struct {
	Subscript string
	Expr      ast.Expr0
	Initial   ast.Expr0 // nil: no per-element override
	Table     *GraphicalFunction
}

// Equation is an Ast<Expr0> (§3.4): Scalar carries Expr/Initial directly;
// ApplyToAll and Arrayed carry DimNames plus, respectively, a single shared
// Expr or a per-element-tuple Entries slice.
type Equation struct {
	Kind     EquationKind
	DimNames []ident.Canonical // empty for Scalar
	Expr     ast.Expr0         // Scalar, ApplyToAll
	Initial  ast.Expr0         // Scalar, ApplyToAll: optional separate initial
	Entries  []ArrayedEntry    // Arrayed only
}

// IsZero reports whether the Equation was left unset (a Module or
// table-only Var often has no Current equation of its own).
func (e Equation) IsZero() bool {
	return e.Kind == Scalar && e.Expr == nil && len(e.Entries) == 0
}
