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

package vm

import (
	"math"

	"github.com/sdkit/engine/pkg/config"
	"github.com/sdkit/engine/pkg/diag"
	"github.com/sdkit/engine/pkg/errors"
	"github.com/sdkit/engine/pkg/model"
	"github.com/sdkit/engine/pkg/offsets"
	"github.com/sdkit/engine/pkg/results"
)

// Run drives the full simulation loop (§4.8's step phases): one initials
// pass at t=start, then dt-sized Euler/RK2/RK4 steps from start to stop,
// downsampling to save_step via save_every = max(1, round(save_step/dt)),
// always keeping step 0 and the final step (§4.10).
func (vm *VM) Run(cfg config.EngineConfig) (*results.Results, *errors.Error) {
	specs := cfg.Apply(vm.effectiveSpecs())
	dt := specs.Dt.Resolve()
	if dt <= 0 {
		return nil, errors.New(errors.KindSimulation, errors.BadSimSpecs, string(vm.p.RootModel), "dt must resolve to a positive value")
	}
	start, stop := specs.Start, specs.Stop
	if stop < start {
		return nil, errors.New(errors.KindSimulation, errors.BadSimSpecs, string(vm.p.RootModel), "stop must not precede start")
	}

	saveEvery := int(math.Round(specs.EffectiveSaveStep() / dt))
	if saveEvery < 1 {
		saveEvery = 1
	}
	totalSteps := int(math.Round((stop - start) / dt))

	diag.Stage("vm", "running %s from %.6g to %.6g dt=%.6g method=%s", vm.p.RootModel, start, stop, dt, specs.Method)

	curr := make([]float64, vm.size)
	curr[offsets.SlotTime] = start
	curr[offsets.SlotDt] = dt
	curr[offsets.SlotInitialTime] = start
	curr[offsets.SlotFinalTime] = stop

	initFrame := newFrame(curr, curr, vm.rootTable.Base, nil)
	for _, st := range vm.root.Initials {
		if err := vm.exec(st, initFrame); err != nil {
			return nil, err
		}
	}
	if err := vm.runFlows(curr, curr); err != nil {
		return nil, err
	}

	var data []float64
	stepCount := 0
	save := func() {
		data = append(data, curr...)
		stepCount++
	}
	save()

	for k := 1; k <= totalSteps; k++ {
		t := curr[offsets.SlotTime]
		next, err := vm.stepState(specs.Method, curr, t, dt)
		if err != nil {
			return nil, err
		}
		curr = next
		// Flows were last evaluated against the pre-step state to compute
		// the stock update; refresh them against the committed state so
		// a saved step's aux/flow values line up with its own stocks and
		// time, not the previous step's.
		if err := vm.runFlows(curr, curr); err != nil {
			return nil, err
		}
		diag.Step(curr[offsets.SlotTime], dt, "step %d/%d", k, totalSteps)

		if k == totalSteps || k%saveEvery == 0 {
			save()
		}
	}

	return &results.Results{
		Offsets:   vm.names,
		Data:      data,
		StepSize:  vm.size,
		StepCount: stepCount,
		Specs:     specs,
	}, nil
}

// effectiveSpecs returns the root model's own SimSpecs override if it has
// one, else the project's.
func (vm *VM) effectiveSpecs() model.SimSpecs {
	if m, ok := vm.p.Models[vm.p.RootModel]; ok && m.SimSpecs != nil {
		return *m.SimSpecs
	}
	return vm.p.SimSpecs
}

func (vm *VM) runFlows(curr, next []float64) *errors.Error {
	fr := newFrame(curr, next, vm.rootTable.Base, nil)
	for _, st := range vm.root.Flows {
		if err := vm.exec(st, fr); err != nil {
			return err
		}
	}
	return nil
}

func (vm *VM) runStocks(curr, next []float64) *errors.Error {
	fr := newFrame(curr, next, vm.rootTable.Base, nil)
	for _, st := range vm.root.Stocks {
		if err := vm.exec(st, fr); err != nil {
			return err
		}
	}
	return nil
}

func (vm *VM) stepState(method model.IntegrationMethod, curr []float64, t, dt float64) ([]float64, *errors.Error) {
	switch method {
	case model.RK2:
		return vm.stepRK2(curr, t, dt)
	case model.RK4:
		return vm.stepRK4(curr, t, dt)
	default:
		return vm.applyEuler(curr, t, dt)
	}
}

// applyEuler computes one full Euler step from state s at time t: it copies
// s into a scratch buffer (never mutating s itself, since RK2/RK4 need the
// original state to compute h*f(state) = E(state) - state afterward), runs
// the flows phase over the copy, then the stocks phase writing into a
// second copy, and stamps the result's time slot at t+dt.
func (vm *VM) applyEuler(s []float64, t, dt float64) ([]float64, *errors.Error) {
	work := append([]float64(nil), s...)
	work[offsets.SlotTime] = t
	work[offsets.SlotDt] = dt

	next := append([]float64(nil), work...)
	if err := vm.runFlows(work, next); err != nil {
		return nil, err
	}
	if err := vm.runStocks(work, next); err != nil {
		return nil, err
	}
	next[offsets.SlotTime] = t + dt
	return next, nil
}

// stepRK2 builds the midpoint method from two Euler evaluations, using the
// "Euler-as-primitive" identity h*f(y) = E(y) - y: e1 = E(curr) gives the
// first slope, y2 = curr + (e1-curr)/2 is the midpoint state, and e2 =
// E(y2) gives the midpoint slope; the final state is curr + (e2-y2).
func (vm *VM) stepRK2(curr []float64, t, dt float64) ([]float64, *errors.Error) {
	e1, err := vm.applyEuler(curr, t, dt)
	if err != nil {
		return nil, err
	}
	y2 := addScaled(curr, diffVec(e1, curr), 0.5)

	e2, err := vm.applyEuler(y2, t+dt/2, dt)
	if err != nil {
		return nil, err
	}
	out := addScaled(curr, diffVec(e2, y2), 1.0)
	out[offsets.SlotTime] = t + dt
	out[offsets.SlotDt] = dt
	return out, nil
}

// stepRK4 builds the classic fourth-order tableau the same way: four
// Euler-derived slope estimates hk1..hk4, combined as curr +
// (hk1+2*hk2+2*hk3+hk4)/6.
func (vm *VM) stepRK4(curr []float64, t, dt float64) ([]float64, *errors.Error) {
	e1, err := vm.applyEuler(curr, t, dt)
	if err != nil {
		return nil, err
	}
	hk1 := diffVec(e1, curr)

	y2 := addScaled(curr, hk1, 0.5)
	e2, err := vm.applyEuler(y2, t+dt/2, dt)
	if err != nil {
		return nil, err
	}
	hk2 := diffVec(e2, y2)

	y3 := addScaled(curr, hk2, 0.5)
	e3, err := vm.applyEuler(y3, t+dt/2, dt)
	if err != nil {
		return nil, err
	}
	hk3 := diffVec(e3, y3)

	y4 := addScaled(curr, hk3, 1.0)
	e4, err := vm.applyEuler(y4, t+dt, dt)
	if err != nil {
		return nil, err
	}
	hk4 := diffVec(e4, y4)

	out := make([]float64, len(curr))
	for i := range curr {
		out[i] = curr[i] + (hk1[i]+2*hk2[i]+2*hk3[i]+hk4[i])/6
	}
	out[offsets.SlotTime] = t + dt
	out[offsets.SlotDt] = dt
	return out, nil
}

func diffVec(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

func addScaled(base, delta []float64, scale float64) []float64 {
	out := make([]float64, len(base))
	for i := range base {
		out[i] = base[i] + scale*delta[i]
	}
	return out
}
