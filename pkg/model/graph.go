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

import "github.com/sdkit/engine/pkg/builtins"

// Scale is the domain or range bound of a GraphicalFunction (§6.1).
type Scale struct {
	Min, Max float64
}

// GraphicalFunction is the raw input-schema shape of a lookup table
// (§6.1): XPoints is optional, per the original_source-derived rule that
// evenly-spaced x-values are implied from XScale when omitted.
type GraphicalFunction struct {
	Kind    builtins.TableKind
	XScale  Scale
	YScale  Scale
	XPoints []float64
	YPoints []float64
}

// Compile lowers a GraphicalFunction into the builtins.Table the VM
// evaluates against.
func (g GraphicalFunction) Compile() *builtins.Table {
	return builtins.NewTable(g.Kind, g.XScale.Min, g.XScale.Max, g.XPoints, g.YPoints)
}
