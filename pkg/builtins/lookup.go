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

// Package builtins implements the runtime built-in functions of §4.9 (C10):
// PULSE/RAMP/STEP, LOOKUP table semantics, SAFEDIV, and the array reduction
// builtins SUM/MEAN/STDDEV/RANK.
package builtins

import (
	"math"
	"sort"
)

// TableKind is the interpolation mode of a lookup table (§4.9).
type TableKind int

// Lookup table kinds.
const (
	// Continuous is piecewise-linear between points, flat beyond the ends.
	Continuous TableKind = iota
	// Discrete is a step function: the value of segment [x_i, x_{i+1}).
	Discrete
	// Extrapolate is Continuous but linearly extended beyond either end.
	Extrapolate
)

// Table is a compiled lookup (graphical function) table. X values must be
// monotone non-decreasing; Eval uses binary search against them.
type Table struct {
	Kind TableKind
	X    []float64
	Y    []float64
}

// NewTable constructs a Table. If xPoints is empty, x-values are implied
// evenly spaced across [xMin, xMax] (the original_source-derived rule
// documented in SPEC_FULL.md §4: a GraphicalFunction's x_points are
// optional).
func NewTable(kind TableKind, xMin, xMax float64, xPoints, yPoints []float64) *Table {
	x := xPoints
	if len(x) == 0 && len(yPoints) > 1 {
		x = make([]float64, len(yPoints))
		step := (xMax - xMin) / float64(len(yPoints)-1)
		for i := range x {
			x[i] = xMin + step*float64(i)
		}
	}
	return &Table{Kind: kind, X: x, Y: yPoints}
}

// Eval evaluates the table at x per §4.9's semantics. A NaN input always
// produces a NaN output.
func (t *Table) Eval(x float64) float64 {
	if math.IsNaN(x) || len(t.X) == 0 {
		return math.NaN()
	}
	if len(t.X) == 1 {
		return t.Y[0]
	}

	i := sort.SearchFloat64s(t.X, x)

	switch t.Kind {
	case Discrete:
		return t.evalDiscrete(x, i)
	case Extrapolate:
		return t.evalContinuous(x, i, true)
	default:
		return t.evalContinuous(x, i, false)
	}
}

// evalDiscrete returns the value of the segment [x_i, x_{i+1}) containing x.
func (t *Table) evalDiscrete(x float64, i int) float64 {
	n := len(t.X)
	if i >= n {
		return t.Y[n-1]
	}
	if t.X[i] == x {
		return t.Y[i]
	}
	if i == 0 {
		return t.Y[0]
	}
	return t.Y[i-1]
}

// evalContinuous interpolates linearly between bracketing points. When
// extrapolate is false, x beyond either end clamps flat to the nearest
// endpoint value; when true, the outermost segment is extended linearly.
func (t *Table) evalContinuous(x float64, i int, extrapolate bool) float64 {
	n := len(t.X)

	if i == 0 {
		if t.X[0] == x {
			return t.Y[0]
		}
		if !extrapolate {
			return t.Y[0]
		}
		return t.interp(0, 1, x)
	}
	if i >= n {
		if !extrapolate {
			return t.Y[n-1]
		}
		return t.interp(n-2, n-1, x)
	}
	if t.X[i] == x {
		return t.Y[i]
	}
	return t.interp(i-1, i, x)
}

func (t *Table) interp(lo, hi int, x float64) float64 {
	x0, x1 := t.X[lo], t.X[hi]
	y0, y1 := t.Y[lo], t.Y[hi]
	if x1 == x0 {
		return y0
	}
	frac := (x - x0) / (x1 - x0)
	return y0 + frac*(y1-y0)
}
