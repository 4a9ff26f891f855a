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
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sdkit/engine/pkg/ident"
	"github.com/sdkit/engine/pkg/offsets"
)

var offsetsCmd = &cobra.Command{
	Use:   "offsets <project.json>",
	Short: "Print the planned module/variable offset table without running the model.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handle := readProjectArg(args)

		tables, err := offsets.Plan(handle.project)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		keys := make([]string, 0, len(tables))
		for k := range tables {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			mt := tables[k]
			fmt.Printf("%s  base=%-5d size=%-5d\n", k, mt.Base, mt.Size)
			names := make([]ident.Canonical, 0, len(mt.Offsets))
			for n := range mt.Offsets {
				names = append(names, n)
			}
			sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
			for _, n := range names {
				e := mt.Offsets[n]
				fmt.Printf("    %-28s offset=%-5d size=%-5d\n", n, e.Offset, e.Size)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(offsetsCmd)
}
