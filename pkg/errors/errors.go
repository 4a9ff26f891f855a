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

// Package errors implements the two error taxonomies of §7: structural
// Errors (reported at project/model/variable granularity) and span-qualified
// EquationErrors (reported within a single equation string). Both share one
// closed Code enumeration so callers can switch on error kind regardless of
// which taxonomy produced it.
package errors

import (
	"fmt"

	"go.uber.org/multierr"
)

// Code is the closed taxonomy of error kinds produced anywhere in the engine.
type Code int

// The primary members of the Code enum, per §7.
const (
	InvalidToken Code = iota
	UnrecognizedEof
	UnrecognizedToken
	ExtraToken
	UnknownBuiltin
	BadBuiltinArgs
	EmptyEquation
	BadModuleInputSrc
	BadModuleInputDst
	NotSimulatable
	BadTable
	BadSimSpecs
	CircularDependency
	DuplicateVariable
	UnknownDependency
	VariablesHaveErrors
	BadDimensionName
	MismatchedDimensions
	ArrayReferenceNeedsExplicitSubscripts
	CantSubscriptScalar
	DimensionInScalarContext
	ExpectedNumber
	ExpectedInteger
	DuplicateUnit
	UnitMismatch
	ExpectedModule
	ExpectedIdent
	Generic
)

var codeNames = [...]string{
	"InvalidToken", "UnrecognizedEof", "UnrecognizedToken", "ExtraToken",
	"UnknownBuiltin", "BadBuiltinArgs", "EmptyEquation", "BadModuleInputSrc",
	"BadModuleInputDst", "NotSimulatable", "BadTable", "BadSimSpecs",
	"CircularDependency", "DuplicateVariable", "UnknownDependency",
	"VariablesHaveErrors", "BadDimensionName", "MismatchedDimensions",
	"ArrayReferenceNeedsExplicitSubscripts", "CantSubscriptScalar",
	"DimensionInScalarContext", "ExpectedNumber", "ExpectedInteger",
	"DuplicateUnit", "UnitMismatch", "ExpectedModule", "ExpectedIdent",
	"Generic",
}

// String renders the Code's name, e.g. Code.String() == "CircularDependency".
func (c Code) String() string {
	if int(c) < 0 || int(c) >= len(codeNames) {
		return "Unknown"
	}
	return codeNames[c]
}

// Kind distinguishes which level of the project an Error was reported at.
type Kind int

// The four Kinds of structural Error, per §7.
const (
	KindImport Kind = iota
	KindModel
	KindSimulation
	KindVariable
)

func (k Kind) String() string {
	switch k {
	case KindImport:
		return "Import"
	case KindModel:
		return "Model"
	case KindSimulation:
		return "Simulation"
	case KindVariable:
		return "Variable"
	default:
		return "Unknown"
	}
}

// Error is a structural issue at import/model/variable level. It carries a
// Code, the Kind of entity it was reported against, and an optional free-text
// Details string for additional context (e.g. the offending identifier).
type Error struct {
	Kind    Kind
	Code    Code
	Model   string
	Ident   string
	Details string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Ident != "" {
		return fmt.Sprintf("%s[%s]: %s: %s", e.Kind, e.Model, e.Ident, e.msg())
	}
	if e.Model != "" {
		return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Model, e.msg())
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg())
}

func (e *Error) msg() string {
	if e.Details != "" {
		return fmt.Sprintf("%s (%s)", e.Code, e.Details)
	}
	return e.Code.String()
}

// New constructs a model/project-level Error.
func New(kind Kind, code Code, model string, details string) *Error {
	return &Error{Kind: kind, Code: code, Model: model, Details: details}
}

// ForVariable constructs a variable-level Error.
func ForVariable(code Code, model, ident, details string) *Error {
	return &Error{Kind: KindVariable, Code: code, Model: model, Ident: ident, Details: details}
}

// Span identifies a half-open byte range [Start, End) within an equation
// source string, mirroring the teacher's source.Span.
type Span struct {
	Start int
	End   int
}

// Length returns the number of bytes spanned.
func (s Span) Length() int {
	return s.End - s.Start
}

// EquationError is a span-qualified failure discovered while resolving or
// type-checking a single equation string (§4.3-§4.4). Unlike Error, it always
// carries the (start, end) byte offsets into the original equation text so a
// caller can underline the offending substring.
type EquationError struct {
	Code    Code
	Span    Span
	Message string
}

// Error implements the error interface.
func (e *EquationError) Error() string {
	return fmt.Sprintf("%d:%d: %s: %s", e.Span.Start, e.Span.End, e.Code, e.Message)
}

// NewEquationError constructs an EquationError for the given span.
func NewEquationError(code Code, span Span, message string) *EquationError {
	return &EquationError{Code: code, Span: span, Message: message}
}

// Tree is the errors tree surfaced to UIs: a collection of Errors (possibly
// empty) reported for a single project. It aggregates with multierr so
// per-variable analysis can keep going after one variable fails (§7's
// propagation policy) and the caller still gets every failure back, not just
// the first.
type Tree struct {
	err error
}

// Add folds another Error into the tree. A nil err is a no-op, matching
// multierr.Append's convention so callers can call Add unconditionally.
func (t *Tree) Add(err *Error) {
	if err == nil {
		return
	}
	t.err = multierr.Append(t.err, err)
}

// AddAll folds every EquationError belonging to a single variable into the
// tree as VariablesHaveErrors-coded Errors carrying the equation error's
// message as Details, preserving the offending variable and model names.
func (t *Tree) AddAll(model, ident string, eqErrs []*EquationError) {
	for _, e := range eqErrs {
		t.Add(ForVariable(VariablesHaveErrors, model, ident, e.Error()))
	}
}

// Errors returns every Error accumulated so far, in the order they were
// added (multierr.Errors preserves insertion order).
func (t *Tree) Errors() []*Error {
	if t.err == nil {
		return nil
	}
	flat := multierr.Errors(t.err)
	out := make([]*Error, 0, len(flat))
	for _, e := range flat {
		if ee, ok := e.(*Error); ok {
			out = append(out, ee)
		}
	}
	return out
}

// HasErrors reports whether any Error has been recorded.
func (t *Tree) HasErrors() bool {
	return t.err != nil
}

// Err returns the aggregated multierr error, or nil if the tree is empty.
// Useful for returning a single `error` value from a function that otherwise
// has nothing else to report.
func (t *Tree) Err() error {
	return t.err
}
