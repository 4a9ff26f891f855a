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

// Command sdengine is the engine's CLI: a cobra root command with one
// subcommand per operation (simulate, inspect, offsets), mirroring the
// teacher's pkg/cmd layout (one file per subcommand, a shared root.go/util.go).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sdkit/engine/pkg/diag"
)

var rootCmd = &cobra.Command{
	Use:   "sdengine",
	Short: "A system-dynamics simulation engine.",
	Long:  "sdengine compiles and runs system-dynamics models described in a JSON project file.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		diag.SetVerbose(GetFlag(cmd, "verbose"))
	},
}

// Execute adds all child commands to the root command and runs it. Called
// once from main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose step tracing")
}
