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
	"sort"
)

// SafeDiv implements SAFEDIV(a, b, default): a/b unless b is zero, in which
// case default is returned (0 if default was omitted by the caller).
func SafeDiv(a, b, defaultValue float64) float64 {
	if b == 0 {
		return defaultValue
	}
	return a / b
}

// Pulse implements PULSE(start, width): 1 during [start, start+width), 0
// otherwise. width <= 0 degenerates to a single-instant pulse at start.
func Pulse(time, start, width float64) float64 {
	if width <= 0 {
		if time == start {
			return 1
		}
		return 0
	}
	if time >= start && time < start+width {
		return 1
	}
	return 0
}

// PulseTrain implements PULSE TRAIN(start, width, interval, end): repeats
// Pulse(start, width) every interval until end.
func PulseTrain(time, start, width, interval, end float64) float64 {
	if time < start || time >= end || interval <= 0 {
		return Pulse(time, start, width)
	}
	elapsed := math.Mod(time-start, interval)
	if width <= 0 {
		return boolToF(elapsed == 0)
	}
	return boolToF(elapsed < width)
}

// Ramp implements RAMP(slope, start, end): 0 before start, slope*(t-start)
// between start and end, frozen at the end value thereafter. end <= start
// means the ramp never stops rising.
func Ramp(time, slope, start, end float64) float64 {
	if time < start {
		return 0
	}
	if end > start && time > end {
		return slope * (end - start)
	}
	return slope * (time - start)
}

// Step implements STEP(height, start): 0 before start, height from start on.
func Step(time, height, start float64) float64 {
	if time < start {
		return 0
	}
	return height
}

func boolToF(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Sum reduces a flat temp buffer to the sum of its elements (§4.9).
func Sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// Mean reduces a flat temp buffer to its arithmetic mean. An empty slice
// yields NaN rather than dividing by zero.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return Sum(values) / float64(len(values))
}

// Stddev reduces a flat temp buffer to its population standard deviation.
func Stddev(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	mean := Mean(values)
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

// Max reduces a flat temp buffer to its maximum element.
func Max(values []float64) float64 {
	return fold(values, math.Inf(-1), math.Max)
}

// Min reduces a flat temp buffer to its minimum element.
func Min(values []float64) float64 {
	return fold(values, math.Inf(1), math.Min)
}

func fold(values []float64, identity float64, op func(a, b float64) float64) float64 {
	result := identity
	for _, v := range values {
		result = op(result, v)
	}
	if len(values) == 0 {
		return math.NaN()
	}
	return result
}

// Rank implements RANK(values, index): the 1-based rank of values[index]
// within values, ascending (rank 1 is the smallest element). Ties resolve by
// original position, matching a stable sort.
func Rank(values []float64, index int) float64 {
	if index < 0 || index >= len(values) {
		return math.NaN()
	}

	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return values[order[a]] < values[order[b]]
	})

	for rank, i := range order {
		if i == index {
			return float64(rank + 1)
		}
	}
	return math.NaN()
}
