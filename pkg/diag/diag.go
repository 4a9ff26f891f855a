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

// Package diag wraps a package-level logrus logger (the teacher's
// package-level log.SetLevel/log.Debug call-through pattern, used
// throughout pkg/cmd and pkg/ir/mir) so the compiler stages and VM can log
// step-by-step tracing without threading a logger through every call.
package diag

import (
	log "github.com/sirupsen/logrus"
)

// SetVerbose turns on Trace-level logging (Stage's Debug lines and Step's
// per-step Trace lines), mirroring the teacher's "--verbose" cobra flag
// wired through cmd_util.GetFlag.
func SetVerbose(verbose bool) {
	if verbose {
		log.SetLevel(log.TraceLevel)
		return
	}
	log.SetLevel(log.InfoLevel)
}

// Stage logs a Debug-level model-stage progress line (toposort, offset
// planning, compilation), e.g. Stage("offsets", "planned %d tables", n).
func Stage(stage, format string, args ...interface{}) {
	log.WithField("stage", stage).Debugf(format, args...)
}

// Step logs a Trace-level VM step trace; it gates the format work behind
// log.IsLevelEnabled so a non-verbose run never builds the message.
func Step(t, dt float64, format string, args ...interface{}) {
	if !log.IsLevelEnabled(log.TraceLevel) {
		return
	}
	log.WithFields(log.Fields{"t": t, "dt": dt}).Tracef(format, args...)
}

// Warn logs a Warn-level diagnostic (e.g. a dropped/unreachable module
// instantiation), mirroring the teacher's log.Warnf("*** ...") pattern.
func Warn(format string, args ...interface{}) {
	log.Warnf(format, args...)
}
