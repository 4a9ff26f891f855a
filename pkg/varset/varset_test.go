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
package varset

import (
	"testing"

	"github.com/sdkit/engine/pkg/ident"
)

func TestInternerStableIndices(t *testing.T) {
	in := NewInterner()
	a := in.Intern("stock_level")
	b := in.Intern("inflow")
	a2 := in.Intern("stock_level")
	if a != a2 {
		t.Errorf("re-interning the same name should return the same index")
	}
	if a == b {
		t.Errorf("distinct names should get distinct indices")
	}
	if in.Name(a) != ident.Canonical("stock_level") {
		t.Errorf("Name(%d) = %v, want stock_level", a, in.Name(a))
	}
}

func TestSetUnionAndIntersection(t *testing.T) {
	s1 := NewSet()
	s1.Add(1)
	s1.Add(3)

	s2 := NewSet()
	s2.Add(3)
	s2.Add(5)

	u := s1.Union(s2)
	if !u.Has(1) || !u.Has(3) || !u.Has(5) {
		t.Errorf("union missing expected members")
	}

	i := s1.Intersection(s2)
	if !i.Has(3) || i.Has(1) || i.Has(5) {
		t.Errorf("intersection should contain only the shared member 3")
	}
}

func TestFromNamesAndNames(t *testing.T) {
	in := NewInterner()
	deps := map[ident.Canonical]bool{"a": true, "b": true}
	s := FromNames(in, deps)

	names := s.Names(in)
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %d", len(names))
	}
}
