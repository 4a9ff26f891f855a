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
	"strings"

	"github.com/segmentio/encoding/json"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sdkit/engine/pkg/config"
	"github.com/sdkit/engine/pkg/vm"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <project.json>",
	Short: "Compile and run a model, printing its results.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handle := readProjectArg(args)

		m, verr := vm.New(handle.project)
		if verr != nil {
			fmt.Println(verr)
			os.Exit(1)
		}
		res, verr := m.Run(config.Default())
		if verr != nil {
			fmt.Println(verr)
			os.Exit(1)
		}

		if GetFlag(cmd, "json") {
			enc := json.NewEncoder(os.Stdout)
			if err := enc.Encode(map[string]any{
				"names":      res.Names(),
				"step_count": res.StepCount,
			}); err != nil {
				fmt.Println(err)
				os.Exit(1)
			}
			return
		}

		only := GetString(cmd, "variable")
		printResultsTable(res, only)
	},
}

// printResultsTable renders a save-step x variable table, truncating columns
// to fit the terminal width the way the teacher's inspector views size
// themselves against the real tty (x/term.GetSize) rather than assuming 80
// columns.
func printResultsTable(res resultsLike, only string) {
	names := res.Names()
	sort.Strings(names)
	if only != "" {
		filtered := names[:0]
		for _, n := range names {
			if strings.Contains(n, only) {
				filtered = append(filtered, n)
			}
		}
		names = filtered
	}

	width := 120
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}

	colWidth := 14
	maxCols := (width - 8) / colWidth
	if maxCols < 1 {
		maxCols = 1
	}
	if len(names) > maxCols {
		fmt.Printf("(%d variables; showing first %d to fit a %d-column terminal)\n", len(names), maxCols, width)
		names = names[:maxCols]
	}

	fmt.Printf("%-8s", "time")
	for _, n := range names {
		fmt.Printf("%*s", colWidth, truncate(n, colWidth))
	}
	fmt.Println()

	for k := 0; k < res.Count(); k++ {
		fmt.Printf("%-8.4g", res.Time(k))
		for _, n := range names {
			fmt.Printf("%*.6g", colWidth, res.At(n, k))
		}
		fmt.Println()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// resultsLike narrows *results.Results to what the table printer needs, so
// it can be unit-tested against a fake.
type resultsLike interface {
	Names() []string
	At(name string, k int) float64
	Time(k int) float64
	Count() int
}

func init() {
	simulateCmd.Flags().Bool("json", false, "emit a JSON summary instead of a table")
	simulateCmd.Flags().String("variable", "", "only show variable names containing this substring")
	rootCmd.AddCommand(simulateCmd)
}
