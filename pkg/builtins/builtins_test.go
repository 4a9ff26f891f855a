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
package builtins

import (
	"math"
	"testing"
)

func TestSafeDiv(t *testing.T) {
	if got := SafeDiv(10, 2, -1); got != 5 {
		t.Errorf("SafeDiv(10,2,-1) = %v, want 5", got)
	}
	if got := SafeDiv(10, 0, -1); got != -1 {
		t.Errorf("SafeDiv(10,0,-1) = %v, want -1", got)
	}
}

func TestPulse(t *testing.T) {
	cases := []struct {
		time, start, width float64
		want               float64
	}{
		{0, 5, 2, 0},
		{5, 5, 2, 1},
		{6, 5, 2, 1},
		{7, 5, 2, 0},
		{5, 5, 0, 1},
		{5.1, 5, 0, 0},
	}
	for _, c := range cases {
		if got := Pulse(c.time, c.start, c.width); got != c.want {
			t.Errorf("Pulse(%v,%v,%v) = %v, want %v", c.time, c.start, c.width, got, c.want)
		}
	}
}

func TestRamp(t *testing.T) {
	if got := Ramp(0, 2, 5, 10); got != 0 {
		t.Errorf("Ramp before start = %v, want 0", got)
	}
	if got := Ramp(7, 2, 5, 10); got != 4 {
		t.Errorf("Ramp(7,2,5,10) = %v, want 4", got)
	}
	if got := Ramp(20, 2, 5, 10); got != 10 {
		t.Errorf("Ramp past end = %v, want 10 (frozen)", got)
	}
}

func TestStep(t *testing.T) {
	if got := Step(4, 3, 5); got != 0 {
		t.Errorf("Step before start = %v, want 0", got)
	}
	if got := Step(5, 3, 5); got != 3 {
		t.Errorf("Step at start = %v, want 3", got)
	}
}

func TestReductions(t *testing.T) {
	vs := []float64{1, 2, 3, 4}
	if got := Sum(vs); got != 10 {
		t.Errorf("Sum = %v, want 10", got)
	}
	if got := Mean(vs); got != 2.5 {
		t.Errorf("Mean = %v, want 2.5", got)
	}
	if got := Max(vs); got != 4 {
		t.Errorf("Max = %v, want 4", got)
	}
	if got := Min(vs); got != 1 {
		t.Errorf("Min = %v, want 1", got)
	}
	if got := Rank(vs, 0); got != 1 {
		t.Errorf("Rank(vs,0) = %v, want 1", got)
	}
	if got := Rank(vs, 3); got != 4 {
		t.Errorf("Rank(vs,3) = %v, want 4", got)
	}
}

func TestMeanOfEmptyIsNaN(t *testing.T) {
	if got := Mean(nil); !math.IsNaN(got) {
		t.Errorf("Mean(nil) = %v, want NaN", got)
	}
}

func TestLookupContinuous(t *testing.T) {
	tbl := NewTable(Continuous, 0, 0, []float64{0, 1, 2}, []float64{0, 10, 10})
	if got := tbl.Eval(0.5); got != 5 {
		t.Errorf("Eval(0.5) = %v, want 5", got)
	}
	if got := tbl.Eval(-1); got != 0 {
		t.Errorf("Eval below range should clamp flat, got %v", got)
	}
	if got := tbl.Eval(5); got != 10 {
		t.Errorf("Eval above range should clamp flat, got %v", got)
	}
}

func TestLookupExtrapolate(t *testing.T) {
	tbl := NewTable(Extrapolate, 0, 0, []float64{0, 1, 2}, []float64{0, 10, 20})
	if got := tbl.Eval(3); got != 30 {
		t.Errorf("Eval(3) extrapolated = %v, want 30", got)
	}
}

func TestLookupDiscrete(t *testing.T) {
	tbl := NewTable(Discrete, 0, 0, []float64{0, 1, 2}, []float64{5, 6, 7})
	if got := tbl.Eval(0.5); got != 5 {
		t.Errorf("Eval(0.5) discrete = %v, want 5 (segment value)", got)
	}
	if got := tbl.Eval(1.9); got != 6 {
		t.Errorf("Eval(1.9) discrete = %v, want 6", got)
	}
}

func TestLookupEvenlySpacedXPoints(t *testing.T) {
	tbl := NewTable(Continuous, 0, 10, nil, []float64{0, 5, 10, 15, 20})
	if len(tbl.X) != 5 || tbl.X[1] != 2.5 {
		t.Fatalf("expected evenly spaced x points, got %v", tbl.X)
	}
	if got := tbl.Eval(5); got != 10 {
		t.Errorf("Eval(5) = %v, want 10", got)
	}
}

func TestLookupNaNInput(t *testing.T) {
	tbl := NewTable(Continuous, 0, 0, []float64{0, 1}, []float64{0, 1})
	if got := tbl.Eval(math.NaN()); !math.IsNaN(got) {
		t.Errorf("Eval(NaN) = %v, want NaN", got)
	}
}
