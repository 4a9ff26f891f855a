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
package model

import "testing"

func TestDtResolve(t *testing.T) {
	d := Dt{Value: 4, IsReciprocal: true}
	if got := d.Resolve(); got != 0.25 {
		t.Errorf("Resolve() = %v, want 0.25", got)
	}

	d2 := Dt{Value: 0.125}
	if got := d2.Resolve(); got != 0.125 {
		t.Errorf("Resolve() = %v, want 0.125", got)
	}
}

func TestEffectiveSaveStep(t *testing.T) {
	specs := SimSpecs{Dt: Dt{Value: 0.25}}
	if got := specs.EffectiveSaveStep(); got != 0.25 {
		t.Errorf("EffectiveSaveStep() = %v, want dt 0.25", got)
	}

	specs.SaveStep = 1
	if got := specs.EffectiveSaveStep(); got != 1 {
		t.Errorf("EffectiveSaveStep() = %v, want explicit save_step 1", got)
	}
}

func TestProjectOwnsModels(t *testing.T) {
	p := NewProject("teacup", SimSpecs{Start: 0, Stop: 30, Dt: Dt{Value: 0.125}})
	m := NewModel("main")
	m.AddVariable(&Stock{Name: "teacup_temperature"})
	p.AddModel(m)

	got, ok := p.Models["main"]
	if !ok {
		t.Fatal("expected main model to be registered")
	}
	if _, ok := got.Variables["teacup_temperature"]; !ok {
		t.Fatal("expected stock to be registered under its ident")
	}
}

func TestEquationIsZero(t *testing.T) {
	var e Equation
	if !e.IsZero() {
		t.Error("zero-value Equation should report IsZero")
	}
}
