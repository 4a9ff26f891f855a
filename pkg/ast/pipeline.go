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
package ast

import (
	"github.com/sdkit/engine/pkg/dims"
	"github.com/sdkit/engine/pkg/errors"
)

// Lower runs the full Expr0 -> Expr1 -> Expr2 -> Expr3 pipeline for a single
// equation, returning the lowered tree and any EquationErrors accumulated
// along the way. alloc assigns the temp ids of this one call (§4.7's "Temp
// sizing" note); pkg/variable passes a fresh *TempAllocator for each
// equation it lowers (and for each entry of an Arrayed equation), so ids
// are unique only within a single Lower call.
func Lower(e0 Expr0, table *dims.Table, scope Scope, alloc *TempAllocator) (Expr3, []*errors.EquationError) {
	e1 := Lower0To1(e0, table)
	resolver := NewResolver(scope)
	e2 := resolver.Resolve(e1)
	e3 := Lower2To3(e2, alloc)
	return e3, resolver.Errors()
}
