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

// Package config carries the engine's compile/run-time options, mirroring
// the teacher's corset.CompilationConfig (pkg/corset/compiler.go): a small,
// flat options struct threaded through the pipeline instead of a pile of
// function parameters. The sdengine CLI passes Default(); no command-line
// flag sets any of these options.
package config

import "github.com/sdkit/engine/pkg/model"

// EngineConfig mirrors CompilationConfig's role: integration method and
// default dt override the project's own SimSpecs when set (zero-value
// means "use the project's own"). DebugAssertions and Verbose are carried
// alongside them but are not read by the VM.
type EngineConfig struct {
	// Method overrides the project's SimSpecs.Method when non-nil.
	Method *model.IntegrationMethod
	// DefaultDt overrides the project's SimSpecs.Dt when non-zero.
	DefaultDt float64
	// DebugAssertions is not read by the VM; setting it adds no runtime
	// shape/range checks.
	DebugAssertions bool
	// Verbose is not read by Run; step logging is turned on through
	// diag.SetVerbose instead.
	Verbose bool
}

// Default returns the zero-override configuration: run exactly what the
// project's own SimSpecs specify.
func Default() EngineConfig {
	return EngineConfig{}
}

// Apply overrides specs's Method/Dt with any non-zero EngineConfig field,
// returning the effective SimSpecs the VM should actually run.
func (c EngineConfig) Apply(specs model.SimSpecs) model.SimSpecs {
	out := specs
	if c.Method != nil {
		out.Method = *c.Method
	}
	if c.DefaultDt != 0 {
		out.Dt = model.Dt{Value: c.DefaultDt}
	}
	return out
}
