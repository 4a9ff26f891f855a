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
package main

import (
	"fmt"

	"github.com/segmentio/encoding/json"

	"github.com/sdkit/engine/pkg/ast"
	"github.com/sdkit/engine/pkg/dims"
	"github.com/sdkit/engine/pkg/ident"
	"github.com/sdkit/engine/pkg/model"
)

// projectFile is the on-disk JSON form of a model.Project (§6.1): a plain
// data description decoded with segmentio/encoding/json, the same fast
// drop-in codec the teacher reaches for over JSON blobs it round-trips
// often (binfile's own constraint-set format).
type projectFile struct {
	Name       string               `json:"name"`
	RootModel  string               `json:"root_model"`
	SimSpecs   simSpecsJSON         `json:"sim_specs"`
	Dimensions []dimensionJSON      `json:"dimensions"`
	Models     map[string]modelJSON `json:"models"`
}

type simSpecsJSON struct {
	Start        float64 `json:"start"`
	Stop         float64 `json:"stop"`
	Dt           float64 `json:"dt"`
	DtReciprocal bool    `json:"dt_reciprocal"`
	SaveStep     float64 `json:"save_step"`
	Method       string  `json:"method"`
	TimeUnits    string  `json:"time_units"`
}

func (s simSpecsJSON) toModel() model.SimSpecs {
	return model.SimSpecs{
		Start:     s.Start,
		Stop:      s.Stop,
		Dt:        model.Dt{Value: s.Dt, IsReciprocal: s.DtReciprocal},
		SaveStep:  s.SaveStep,
		Method:    parseMethod(s.Method),
		TimeUnits: s.TimeUnits,
	}
}

func parseMethod(s string) model.IntegrationMethod {
	switch s {
	case "rk2":
		return model.RK2
	case "rk4":
		return model.RK4
	default:
		return model.Euler
	}
}

type dimensionJSON struct {
	Name     string   `json:"name"`
	Kind     string   `json:"kind"` // "named" or "indexed"
	Elements []string `json:"elements,omitempty"`
	Size     int      `json:"size,omitempty"`
}

type modelJSON struct {
	SimSpecs  *simSpecsJSON `json:"sim_specs,omitempty"`
	Variables []variableJSON `json:"variables"`
}

// variableJSON is a tagged union over model.Stock/model.Var/model.Module,
// discriminated by Kind.
type variableJSON struct {
	Kind        string          `json:"kind"` // "stock", "var", "module"
	Name        string          `json:"name"`
	Doc         string          `json:"doc,omitempty"`
	Units       string          `json:"units,omitempty"`
	NonNegative bool            `json:"non_negative,omitempty"`

	// Stock.
	Initial  *equationJSON     `json:"initial,omitempty"`
	Inflows  []string          `json:"inflows,omitempty"`
	Outflows []string          `json:"outflows,omitempty"`

	// Var.
	Current     *equationJSON `json:"current,omitempty"`
	IsFlow      bool          `json:"is_flow,omitempty"`
	IsTableOnly bool          `json:"is_table_only,omitempty"`

	// Module.
	ModelName string            `json:"model,omitempty"`
	Inputs    []inputBindingJSON `json:"inputs,omitempty"`
}

type inputBindingJSON struct {
	Src string `json:"src"`
	Dst string `json:"dst"`
}

type equationJSON struct {
	Kind    string          `json:"kind"` // "scalar", "apply_to_all", "arrayed"
	Dims    []string        `json:"dims,omitempty"`
	Expr    *exprJSON       `json:"expr,omitempty"`
	Initial *exprJSON       `json:"initial,omitempty"`
	Entries []arrayedEntryJSON `json:"entries,omitempty"`
}

type arrayedEntryJSON struct {
	Subscript string    `json:"subscript"`
	Expr      *exprJSON `json:"expr"`
	Initial   *exprJSON `json:"initial,omitempty"`
}

// exprJSON is a tagged union over ast.Expr0's variants, discriminated by Op.
type exprJSON struct {
	Op    string      `json:"op"`
	Value float64     `json:"value,omitempty"`
	Name  string      `json:"name,omitempty"`
	Arg   *exprJSON   `json:"arg,omitempty"`
	Left  *exprJSON   `json:"left,omitempty"`
	Right *exprJSON   `json:"right,omitempty"`
	Cond  *exprJSON   `json:"cond,omitempty"`
	Then  *exprJSON   `json:"then,omitempty"`
	Else  *exprJSON   `json:"else,omitempty"`
	Args  []*exprJSON `json:"args,omitempty"`

	Target  *exprJSON   `json:"target,omitempty"`
	Indices []*exprJSON `json:"indices,omitempty"`
}

var binOps = map[string]ast.Op2{
	"add": ast.Add, "sub": ast.Sub, "mul": ast.Mul, "div": ast.Div, "mod": ast.Mod, "pow": ast.Pow,
	"eq": ast.Eq, "neq": ast.Neq, "lt": ast.Lt, "lte": ast.Lte, "gt": ast.Gt, "gte": ast.Gte,
	"and": ast.And, "or": ast.Or,
}

var unOps = map[string]ast.Op1{"neg": ast.Neg, "not": ast.Not}

func (e *exprJSON) toExpr0() (ast.Expr0, error) {
	if e == nil {
		return nil, nil
	}
	switch e.Op {
	case "const":
		return &ast.Const0{Value: e.Value}, nil
	case "ident":
		return &ast.Ident0{Raw: e.Name}, nil
	case "un":
		op, ok := unOps[e.Name]
		if !ok {
			return nil, fmt.Errorf("unknown unary op %q", e.Name)
		}
		arg, err := e.Arg.toExpr0()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp0{Op: op, Arg: arg}, nil
	case "bin":
		op, ok := binOps[e.Name]
		if !ok {
			return nil, fmt.Errorf("unknown binary op %q", e.Name)
		}
		left, err := e.Left.toExpr0()
		if err != nil {
			return nil, err
		}
		right, err := e.Right.toExpr0()
		if err != nil {
			return nil, err
		}
		return &ast.BinaryOp0{Op: op, Left: left, Right: right}, nil
	case "if":
		cond, err := e.Cond.toExpr0()
		if err != nil {
			return nil, err
		}
		then, err := e.Then.toExpr0()
		if err != nil {
			return nil, err
		}
		els, err := e.Else.toExpr0()
		if err != nil {
			return nil, err
		}
		return &ast.If0{Cond: cond, Then: then, Else: els}, nil
	case "call":
		args := make([]ast.Expr0, len(e.Args))
		for i, a := range e.Args {
			arg, err := a.toExpr0()
			if err != nil {
				return nil, err
			}
			args[i] = arg
		}
		return &ast.UntypedBuiltinFn0{Name: e.Name, Args: args}, nil
	case "subscript":
		target, err := e.Target.toExpr0()
		if err != nil {
			return nil, err
		}
		indices := make([]ast.Expr0, len(e.Indices))
		for i, idx := range e.Indices {
			v, err := idx.toExpr0()
			if err != nil {
				return nil, err
			}
			indices[i] = v
		}
		return &ast.Subscript0{Target: target, Indices: indices}, nil
	default:
		return nil, fmt.Errorf("unknown expression op %q", e.Op)
	}
}

func (eq *equationJSON) toEquation() (model.Equation, error) {
	if eq == nil {
		return model.Equation{}, nil
	}
	dimNames := make([]ident.Canonical, len(eq.Dims))
	for i, d := range eq.Dims {
		dimNames[i] = ident.Canonical(d)
	}

	expr, err := eq.Expr.toExpr0()
	if err != nil {
		return model.Equation{}, err
	}
	initial, err := eq.Initial.toExpr0()
	if err != nil {
		return model.Equation{}, err
	}

	switch eq.Kind {
	case "apply_to_all":
		return model.Equation{Kind: model.ApplyToAll, DimNames: dimNames, Expr: expr, Initial: initial}, nil
	case "arrayed":
		entries := make([]model.ArrayedEntry, len(eq.Entries))
		for i, en := range eq.Entries {
			eExpr, err := en.Expr.toExpr0()
			if err != nil {
				return model.Equation{}, err
			}
			eInit, err := en.Initial.toExpr0()
			if err != nil {
				return model.Equation{}, err
			}
			entries[i] = model.ArrayedEntry{Subscript: en.Subscript, Expr: eExpr, Initial: eInit}
		}
		return model.Equation{Kind: model.Arrayed, DimNames: dimNames, Entries: entries}, nil
	default:
		return model.Equation{Kind: model.Scalar, Expr: expr, Initial: initial}, nil
	}
}

func canonicalSlice(ss []string) []ident.Canonical {
	out := make([]ident.Canonical, len(ss))
	for i, s := range ss {
		out[i] = ident.Canonical(s)
	}
	return out
}

func (v *variableJSON) toVariable() (model.Variable, error) {
	switch v.Kind {
	case "stock":
		initial, err := v.Initial.toEquation()
		if err != nil {
			return nil, err
		}
		return &model.Stock{
			Name: ident.Canonical(v.Name), Initial: initial,
			Inflows: canonicalSlice(v.Inflows), Outflows: canonicalSlice(v.Outflows),
			NonNegative: v.NonNegative, Units: v.Units, Doc: v.Doc,
		}, nil
	case "module":
		inputs := make([]model.InputBinding, len(v.Inputs))
		for i, b := range v.Inputs {
			inputs[i] = model.InputBinding{Src: ident.Canonical(b.Src), Dst: ident.Canonical(b.Dst)}
		}
		return &model.Module{
			Name: ident.Canonical(v.Name), ModelName: ident.Canonical(v.ModelName),
			Inputs: inputs, Units: v.Units, Doc: v.Doc,
		}, nil
	default:
		current, err := v.Current.toEquation()
		if err != nil {
			return nil, err
		}
		initial, err := v.Initial.toEquation()
		if err != nil {
			return nil, err
		}
		return &model.Var{
			Name: ident.Canonical(v.Name), Current: current, Initial: initial,
			NonNegative: v.NonNegative, IsFlow: v.IsFlow, IsTableOnly: v.IsTableOnly,
			Units: v.Units, Doc: v.Doc,
		}, nil
	}
}

// loadProject decodes a projectFile from bytes and builds the model.Project
// it describes.
func loadProject(data []byte) (*model.Project, error) {
	var pf projectFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("decoding project: %w", err)
	}

	p := model.NewProject(pf.Name, pf.SimSpecs.toModel())
	if pf.RootModel != "" {
		p.RootModel = ident.Canonical(pf.RootModel)
	}

	for _, d := range pf.Dimensions {
		switch d.Kind {
		case "indexed":
			p.Dimensions.Add(dims.NewIndexed(ident.Canonical(d.Name), d.Size))
		default:
			p.Dimensions.Add(dims.NewNamed(ident.Canonical(d.Name), canonicalSlice(d.Elements)))
		}
	}

	for name, mj := range pf.Models {
		m := model.NewModel(ident.Canonical(name))
		if mj.SimSpecs != nil {
			specs := mj.SimSpecs.toModel()
			m.SimSpecs = &specs
		}
		for _, vj := range mj.Variables {
			v, err := vj.toVariable()
			if err != nil {
				return nil, fmt.Errorf("model %s variable %s: %w", name, vj.Name, err)
			}
			m.AddVariable(v)
		}
		p.AddModel(m)
	}

	return p, nil
}
