// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package diag

import "go.uber.org/multierr"

// Appender accumulates diagnostics across a pass, or across the whole
// pipeline, the way build/fmterr.Appender accumulates positional errors
// across a parse or a build. Unlike that Appender, entries here are
// deduplicated on (Severity, Origin, Message) so a pass revisiting the
// same call-graph node twice (spec §4.1's shared-function rewriting)
// does not report the same diagnostic twice.
type Appender struct {
	diags []*Diagnostic
	seen  map[[3]string]bool
	stack []string
}

// NewAppender returns an empty Appender.
func NewAppender() *Appender {
	return &Appender{seen: map[[3]string]bool{}}
}

// Push records the name of the pass currently running, for diagnostics
// raised without an explicit Origin.Func (mirrors fmterr.Appender.Push).
func (a *Appender) Push(pass string) { a.stack = append(a.stack, pass) }

// Pop undoes the most recent Push.
func (a *Appender) Pop() {
	if len(a.stack) == 0 {
		return
	}
	a.stack = a.stack[:len(a.stack)-1]
}

func (a *Appender) currentPass() string {
	if len(a.stack) == 0 {
		return ""
	}
	return a.stack[len(a.stack)-1]
}

// Append records d, deduplicating against every diagnostic already
// recorded. It returns whether d was newly recorded (false means it was
// a duplicate and nothing changed).
func (a *Appender) Append(d *Diagnostic) bool {
	if d.Origin.Func == "" {
		d.Origin.Func = a.currentPass()
	}
	k := key(d)
	if a.seen[k] {
		return false
	}
	a.seen[k] = true
	a.diags = append(a.diags, d)
	return true
}

// Appendf is Append for the common case of formatting a message with a
// severity and origin inline.
func (a *Appender) Appendf(severity Severity, origin Origin, format string, args ...any) bool {
	return a.Append(New(severity, origin, format, args...))
}

// Userf appends a User diagnostic.
func (a *Appender) Userf(origin Origin, format string, args ...any) {
	a.Append(Userf(origin, format, args...))
}

// Warningf appends a non-aborting User warning.
func (a *Appender) Warningf(origin Origin, format string, args ...any) {
	a.Append(Warningf(origin, format, args...))
}

// Internalf appends an Internal diagnostic and returns a sentinel error
// so the call site can write `return nil, appender.Internalf(...)` and
// have the pipeline driver abort immediately, matching the uassert/
// iassert abort-on-detection discipline of original_source/src/error.h.
func (a *Appender) Internalf(origin Origin, format string, args ...any) error {
	d := Internalf(origin, format, args...)
	a.Append(d)
	return d
}

// Temporaryf is Internalf for reachable-but-unimplemented paths.
func (a *Appender) Temporaryf(origin Origin, format string, args ...any) error {
	d := Temporaryf(origin, format, args...)
	a.Append(d)
	return d
}

// Diagnostics returns every diagnostic recorded so far, in append order.
func (a *Appender) Diagnostics() []*Diagnostic { return a.diags }

// Failed reports whether any recorded diagnostic should abort the
// pipeline: every Internal and Temporary diagnostic does, and every User
// diagnostic that is not a warning bit does. A User warning alone never
// makes Failed report true (spec §7).
func (a *Appender) Failed() bool {
	for _, d := range a.diags {
		if d.Fails() {
			return true
		}
	}
	return false
}

// Err folds every diagnostic that Fails into a single multi-error using
// go.uber.org/multierr; it returns nil if nothing recorded fails. Warnings are omitted from the
// returned error but remain available from Diagnostics.
func (a *Appender) Err() error {
	var err error
	for _, d := range a.diags {
		if d.Fails() {
			err = multierr.Append(err, d)
		}
	}
	return err
}

// Warnings returns every recorded warning, in append order.
func (a *Appender) Warnings() []*Diagnostic {
	var out []*Diagnostic
	for _, d := range a.diags {
		if d.Warning {
			out = append(out, d)
		}
	}
	return out
}
