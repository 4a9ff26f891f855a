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
	"sort"

	"github.com/spf13/cobra"

	"github.com/sdkit/engine/pkg/ident"
	"github.com/sdkit/engine/pkg/model"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <project.json>",
	Short: "Print a project's models and variables without running it.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handle := readProjectArg(args)
		p := handle.project

		fmt.Printf("project %q (root model %q)\n", p.Name, p.RootModel)
		fmt.Printf("  sim: start=%g stop=%g dt=%g method=%s\n", p.SimSpecs.Start, p.SimSpecs.Stop, p.SimSpecs.Dt.Resolve(), p.SimSpecs.Method)

		modelNames := make([]string, 0, len(p.Models))
		for name := range p.Models {
			modelNames = append(modelNames, string(name))
		}
		sort.Strings(modelNames)

		for _, mn := range modelNames {
			m := p.Models[ident.Canonical(mn)]
			printModel(m)
		}
	},
}

func printModel(m *model.Model) {
	fmt.Printf("model %q\n", m.Name)
	names := make([]string, 0, len(m.Variables))
	for name := range m.Variables {
		names = append(names, string(name))
	}
	sort.Strings(names)

	for _, name := range names {
		v := m.Variables[ident.Canonical(name)]
		switch vv := v.(type) {
		case *model.Stock:
			fmt.Printf("  stock    %-24s inflows=%v outflows=%v\n", vv.Name, vv.Inflows, vv.Outflows)
		case *model.Module:
			fmt.Printf("  module   %-24s -> %s\n", vv.Name, vv.ModelName)
		case *model.Var:
			kind := "aux"
			if vv.IsFlow {
				kind = "flow"
			}
			fmt.Printf("  %-8s %-24s %s\n", kind, vv.Name, equationKindName(vv.Current.Kind))
		}
	}
}

func equationKindName(k model.EquationKind) string {
	switch k {
	case model.ApplyToAll:
		return "apply_to_all"
	case model.Arrayed:
		return "arrayed"
	default:
		return "scalar"
	}
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
