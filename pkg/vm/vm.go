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

// Package vm implements the tree-walking bytecode interpreter of §4.8 (C9):
// a flat curr/next state vector shared by every module instantiation, a
// recursive evaluator over compiler.Program's bytecode.Node trees, and the
// Euler/RK2/RK4 step integrators built on top of it.
package vm

import (
	"math"

	"github.com/sdkit/engine/pkg/ast"
	"github.com/sdkit/engine/pkg/builtins"
	"github.com/sdkit/engine/pkg/bytecode"
	"github.com/sdkit/engine/pkg/compiler"
	"github.com/sdkit/engine/pkg/errors"
	"github.com/sdkit/engine/pkg/model"
	"github.com/sdkit/engine/pkg/offsets"
	"github.com/sdkit/engine/pkg/results"
)

// VM holds one project's compiled program and the derived constants Run
// needs on every step: the flat state-vector size and the flattened
// name->offset index results.Results is built from.
type VM struct {
	p         *model.Project
	prog      *compiler.Program
	root      *compiler.CompiledModule
	rootTable *offsets.ModuleTable
	size      int
	names     map[string]int
}

// New compiles p (stages.EnumerateModules + offsets.Plan + bytecode
// lowering, via compiler.Compile) and sizes the flat state vector from the
// root module's own Base+Size, per §4.6: that span covers every variable of
// every reachable instantiation since they are all laid out, recursively,
// within the same array.
func New(p *model.Project) (*VM, *errors.Error) {
	prog, err := compiler.Compile(p)
	if err != nil {
		return nil, err
	}
	rootTable, ok := prog.Tables[prog.RootKey]
	if !ok {
		return nil, errors.New(errors.KindSimulation, errors.NotSimulatable, string(p.RootModel), "root module not planned")
	}
	root, ok := prog.Modules[prog.RootKey]
	if !ok {
		return nil, errors.New(errors.KindSimulation, errors.NotSimulatable, string(p.RootModel), "root module not compiled")
	}

	return &VM{
		p:         p,
		prog:      prog,
		root:      root,
		rootTable: rootTable,
		size:      rootTable.Base + rootTable.Size,
		names:     results.BuildNames(p, prog.Tables),
	}, nil
}

// frame is the execution context of one module instantiation's currently
// running phase: curr/next are the WHOLE flat state vector (shared by every
// nested module), base is this instantiation's absolute offset into it, and
// inputs carries the evaluated-once-per-dispatch argument values a child's
// ModuleInput reads resolve against. temps holds this dispatch's own
// materialized-array scratch buffers, keyed by AssignTemp id.
type frame struct {
	curr, next []float64
	base       int
	inputs     []float64
	temps      map[int][]float64
}

func newFrame(curr, next []float64, base int, inputs []float64) *frame {
	return &frame{curr: curr, next: next, base: base, inputs: inputs, temps: make(map[int][]float64)}
}

// exec runs one compiled statement against fr, recursing into a child
// module instantiation for an EvalModule dispatch.
func (vm *VM) exec(n bytecode.Node, fr *frame) *errors.Error {
	switch s := n.(type) {
	case *bytecode.AssignTemp:
		size := s.TempBounds.FlatSize()
		buf := fr.temps[s.ID]
		if len(buf) < size {
			buf = make([]float64, size)
			fr.temps[s.ID] = buf
		}
		for i := 0; i < size; i++ {
			buf[i] = vm.eval(s.Value, fr, i)
		}
		return nil

	case *bytecode.AssignCurr:
		count := s.Count
		if count < 1 {
			count = 1
		}
		for i := 0; i < count; i++ {
			fr.curr[fr.base+s.Offset+i] = vm.eval(s.Value, fr, i)
		}
		return nil

	case *bytecode.AssignNext:
		fr.next[fr.base+s.Offset] = vm.eval(s.Value, fr, 0)
		return nil

	case *bytecode.EvalModule:
		return vm.runEvalModule(s, fr)
	}
	return nil
}

// runEvalModule dispatches into a child module instantiation: looks up its
// compiled form by (ChildModel, InputSet), evaluates Args in the PARENT
// frame to latch the child's ModuleInput slots, and runs the requested
// Phase's statement list against a fresh child frame sharing the same
// underlying curr/next arrays at ChildBase (relative to the parent's own
// base, per bytecode.EvalModule's doc comment).
func (vm *VM) runEvalModule(ev *bytecode.EvalModule, fr *frame) *errors.Error {
	sig := offsets.TableKey(ev.ChildModel, ev.InputSet)
	childCM, ok := vm.prog.Modules[sig]
	if !ok {
		return errors.New(errors.KindSimulation, errors.NotSimulatable, string(ev.ChildModel), "no compiled module for instantiation "+sig)
	}

	inputs := make([]float64, len(ev.Args))
	for i, a := range ev.Args {
		inputs[i] = vm.eval(a, fr, 0)
	}

	child := newFrame(fr.curr, fr.next, fr.base+ev.ChildBase, inputs)

	var stmts []bytecode.Node
	switch ev.Phase {
	case bytecode.PhaseInitials:
		stmts = childCM.Initials
	case bytecode.PhaseFlows:
		stmts = childCM.Flows
	case bytecode.PhaseStocks:
		stmts = childCM.Stocks
	}
	for _, st := range stmts {
		if err := vm.exec(st, child); err != nil {
			return err
		}
	}
	return nil
}

// eval evaluates a single expression node against fr. idx is the flat index
// of the enclosing ApplyToAll/AssignTemp repetition (0 outside one): it is
// added to every Var read's offset and threaded into dynamic subscript
// resolution, mirroring the compiler's offsetBy helper at compile time
// (§4.8).
func (vm *VM) eval(n bytecode.Node, fr *frame, idx int) float64 {
	switch v := n.(type) {
	case *bytecode.Const:
		return v.Value

	case *bytecode.Var:
		return fr.curr[fr.base+v.Offset+idx]

	case *bytecode.Dt:
		return fr.curr[offsets.SlotDt]

	case *bytecode.TimeRef:
		return fr.curr[v.Slot]

	case *bytecode.StaticSubscript:
		return fr.curr[fr.base+v.Offset+v.FlatIndex]

	case *bytecode.TempArrayElement:
		buf := fr.temps[v.ID]
		if v.FlatIndex < 0 || v.FlatIndex >= len(buf) {
			return math.NaN()
		}
		return buf[v.FlatIndex]

	case *bytecode.TempArray:
		buf := fr.temps[v.ID]
		if len(buf) == 0 {
			return math.NaN()
		}
		return buf[0]

	case *bytecode.Subscript:
		return vm.evalSubscript(v, fr, idx)

	case *bytecode.Op1:
		x := vm.eval(v.Arg, fr, idx)
		switch v.Op {
		case ast.Neg:
			return -x
		case ast.Not:
			return boolToF(x == 0)
		}
		return math.NaN()

	case *bytecode.Op2:
		return vm.evalOp2(v, fr, idx)

	case *bytecode.If:
		if vm.eval(v.Cond, fr, idx) != 0 {
			return vm.eval(v.Then, fr, idx)
		}
		return vm.eval(v.Else, fr, idx)

	case *bytecode.App:
		return vm.evalApp(v, fr, idx)

	case *bytecode.ModuleInput:
		if v.Index < 0 || v.Index >= len(fr.inputs) {
			return math.NaN()
		}
		return fr.inputs[v.Index]
	}
	return math.NaN()
}

func (vm *VM) evalOp2(n *bytecode.Op2, fr *frame, idx int) float64 {
	l := vm.eval(n.Left, fr, idx)
	r := vm.eval(n.Right, fr, idx)
	switch n.Op {
	case ast.Add:
		return l + r
	case ast.Sub:
		return l - r
	case ast.Mul:
		return l * r
	case ast.Div:
		if r == 0 {
			return math.NaN()
		}
		return l / r
	case ast.Mod:
		return math.Mod(l, r)
	case ast.Pow:
		return math.Pow(l, r)
	case ast.Eq:
		return boolToF(l == r)
	case ast.Neq:
		return boolToF(l != r)
	case ast.Lt:
		return boolToF(l < r)
	case ast.Lte:
		return boolToF(l <= r)
	case ast.Gt:
		return boolToF(l > r)
	case ast.Gte:
		return boolToF(l >= r)
	case ast.And:
		return boolToF(l != 0 && r != 0)
	case ast.Or:
		return boolToF(l != 0 || r != 0)
	}
	return math.NaN()
}

// evalSubscript computes the row-major flat index of a dynamic subscript
// expression (§4.2's iteration order) from its per-dimension Indices (nil
// meaning "use the enclosing ApplyToAll repetition's own position", idx),
// then reads either the referenced variable's span or a temp buffer at that
// index. An out-of-range computed position evaluates to NaN (§4.8).
func (vm *VM) evalSubscript(n *bytecode.Subscript, fr *frame, idx int) float64 {
	bounds := n.SrcBounds
	if bounds == nil || len(bounds.Dims) == 0 {
		return math.NaN()
	}

	flat := 0
	for i, size := range bounds.Dims {
		pos := idx
		if i < len(n.Indices) && n.Indices[i] != nil {
			pos = int(vm.eval(n.Indices[i], fr, idx)) - 1
		}
		if pos < 0 || pos >= size {
			return math.NaN()
		}
		flat = flat*size + pos
	}

	if n.FromTemp {
		buf := fr.temps[n.TempID]
		if flat >= len(buf) {
			return math.NaN()
		}
		return buf[flat]
	}
	off := fr.base + n.Offset + flat
	if off < 0 || off >= len(fr.curr) {
		return math.NaN()
	}
	return fr.curr[off]
}

// evalArray evaluates n as a flat array value, for the reduction builtins
// (SUM/MEAN/STDDEV/RANK/SIZE) and MAX/MIN's single-argument form: a
// TempArray reads the whole materialized buffer, a bounded Var reads its
// whole span, anything else degrades to a one-element array of its scalar
// value.
func (vm *VM) evalArray(n bytecode.Node, fr *frame) []float64 {
	switch v := n.(type) {
	case *bytecode.TempArray:
		return fr.temps[v.ID]
	case *bytecode.Var:
		if v.VarBounds.IsScalar() {
			return []float64{vm.eval(n, fr, 0)}
		}
		size := v.VarBounds.FlatSize()
		start := fr.base + v.Offset
		if start < 0 || start+size > len(fr.curr) {
			return nil
		}
		return fr.curr[start : start+size]
	default:
		return []float64{vm.eval(n, fr, 0)}
	}
}

// evalApp evaluates a typed builtin call (§4.9). PULSE/RAMP/STEP take the
// current simulation time implicitly from the root's reserved time slot,
// matching the user-facing builtin signatures (PULSE(start,width) etc.)
// rather than builtins' own explicit-time Go signatures.
func (vm *VM) evalApp(n *bytecode.App, fr *frame, idx int) float64 {
	arg := func(i int) float64 { return vm.eval(n.Args[i], fr, idx) }
	now := fr.curr[offsets.SlotTime]

	switch n.Fn {
	case ast.Abs:
		return math.Abs(arg(0))
	case ast.Arccos:
		return math.Acos(arg(0))
	case ast.Arcsin:
		return math.Asin(arg(0))
	case ast.Arctan:
		return math.Atan(arg(0))
	case ast.Cos:
		return math.Cos(arg(0))
	case ast.Exp:
		return math.Exp(arg(0))
	case ast.Inf:
		return math.Inf(1)
	case ast.IntFn:
		return math.Trunc(arg(0))
	case ast.IsModuleInput:
		// Resolved to a Const at compile time in every case this engine
		// produces; reached only if a future lowering pass leaves one
		// unresolved, so default to "not a module input".
		return 0

	case ast.Ln:
		return math.Log(arg(0))
	case ast.Log10:
		return math.Log10(arg(0))
	case ast.Lookup:
		table, _ := n.Table.(*builtins.Table)
		if table == nil {
			return math.NaN()
		}
		return table.Eval(arg(0))

	case ast.MaxFn:
		if len(n.Args) == 2 {
			return math.Max(arg(0), arg(1))
		}
		return builtins.Max(vm.evalArray(n.Args[0], fr))
	case ast.MinFn:
		if len(n.Args) == 2 {
			return math.Min(arg(0), arg(1))
		}
		return builtins.Min(vm.evalArray(n.Args[0], fr))

	case ast.Mean:
		return builtins.Mean(vm.evalArray(n.Args[0], fr))
	case ast.Pi:
		return math.Pi
	case ast.Pulse:
		return builtins.Pulse(now, arg(0), arg(1))
	case ast.Ramp:
		return builtins.Ramp(now, arg(0), arg(1), arg(2))
	case ast.Rank:
		values := vm.evalArray(n.Args[0], fr)
		return builtins.Rank(values, int(arg(1))-1)
	case ast.Safediv:
		def := 0.0
		if len(n.Args) == 3 {
			def = arg(2)
		}
		return builtins.SafeDiv(arg(0), arg(1), def)
	case ast.Sign:
		x := arg(0)
		switch {
		case x > 0:
			return 1
		case x < 0:
			return -1
		default:
			return 0
		}
	case ast.Sin:
		return math.Sin(arg(0))
	case ast.Size:
		return float64(len(vm.evalArray(n.Args[0], fr)))
	case ast.Sqrt:
		return math.Sqrt(arg(0))
	case ast.Stddev:
		return builtins.Stddev(vm.evalArray(n.Args[0], fr))
	case ast.Step:
		return builtins.Step(now, arg(0), arg(1))
	case ast.Sum:
		return builtins.Sum(vm.evalArray(n.Args[0], fr))
	case ast.Tan:
		return math.Tan(arg(0))
	case ast.Time:
		return fr.curr[offsets.SlotTime]
	case ast.Timestep:
		return fr.curr[offsets.SlotDt]
	case ast.Starttime:
		return fr.curr[offsets.SlotInitialTime]
	case ast.Finaltime:
		return fr.curr[offsets.SlotFinalTime]
	}
	return math.NaN()
}

func boolToF(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
