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

// Package diag provides the typed, position-aware error reporting used
// throughout the lowering pipeline (spec §6.3, §7). It generalizes
// build/fmterr (an Appender accumulating position-tagged errors over a
// go/token.FileSet) to the three severities of
// original_source/src/error.h (User, Internal, Temporary) and to this
// IR's own notion of position (ir.Pos plus an enclosing function name),
// rather than go/token.Pos.
package diag

import (
	"fmt"

	"github.com/pkg/errors"
)

// Severity classifies a diagnostic per spec §7's table.
type Severity int

// Recognized severities.
const (
	// User: the program is rejected (type mismatch, redeclared variable,
	// shape mismatch, unsupported construct). Reported with a source
	// location; aborts the pipeline unless the warning bit is set.
	User Severity = iota
	// Internal: a broken compiler invariant. Reported with
	// file/function/line; always aborts.
	Internal
	// Temporary: a reachable path that is not yet implemented. Reported;
	// always aborts.
	Temporary
)

func (s Severity) String() string {
	switch s {
	case Internal:
		return "internal error"
	case Temporary:
		return "not yet implemented"
	default:
		return "error"
	}
}

// Origin locates a diagnostic. For User diagnostics it names a source
// line/column; for Internal and Temporary diagnostics it names the pass
// function and line that detected the broken invariant, per spec §7.
type Origin struct {
	Func string
	File string
	Line int
	Col  int
}

func (o Origin) String() string {
	if o.Func == "" {
		if o.Line == 0 {
			return ""
		}
		return fmt.Sprintf("%d:%d", o.Line, o.Col)
	}
	return fmt.Sprintf("%s (%s:%d)", o.Func, o.File, o.Line)
}

// Diagnostic is one record in the ordered, deduplicated sequence spec
// §6.3 asks the pipeline to produce.
type Diagnostic struct {
	Severity Severity
	Origin   Origin
	Message  string
	Warning  bool
}

// Error implements the error interface so a *Diagnostic can be returned
// directly from a pass and recognized by the pipeline driver.
func (d *Diagnostic) Error() string {
	prefix := d.Severity.String()
	if d.Warning {
		prefix = "warning"
	}
	if o := d.Origin.String(); o != "" {
		return fmt.Sprintf("%s: %s: %s", prefix, o, d.Message)
	}
	return fmt.Sprintf("%s: %s", prefix, d.Message)
}

// Fails reports whether this diagnostic should abort the pipeline: every
// Internal and Temporary diagnostic does, and every User diagnostic that
// is not a warning does (spec §7).
func (d *Diagnostic) Fails() bool {
	if d.Severity != User {
		return true
	}
	return !d.Warning
}

func key(d *Diagnostic) [3]string {
	return [3]string{d.Severity.String(), d.Origin.String(), d.Message}
}

// New returns a diagnostic with the given severity, origin and message.
func New(severity Severity, origin Origin, format string, a ...any) *Diagnostic {
	return &Diagnostic{Severity: severity, Origin: origin, Message: fmt.Sprintf(format, a...)}
}

// Userf returns a User diagnostic, the "program rejects input" kind of
// spec §7's table.
func Userf(origin Origin, format string, a ...any) *Diagnostic {
	return New(User, origin, format, a...)
}

// Warningf returns a User diagnostic with the warning bit set: it is
// accumulated and emitted but never aborts the pipeline (spec §7).
func Warningf(origin Origin, format string, a ...any) *Diagnostic {
	d := New(User, origin, format, a...)
	d.Warning = true
	return d
}

// Internalf returns an Internal diagnostic: a broken compiler invariant
// (e.g. Undefined storage surviving inference), matching
// original_source/src/error.h's ierror.
func Internalf(origin Origin, format string, a ...any) *Diagnostic {
	return New(Internal, origin, format, a...)
}

// Temporaryf returns a Temporary diagnostic: a reachable but unimplemented
// path, matching original_source/src/error.h's terror.
func Temporaryf(origin Origin, format string, a ...any) *Diagnostic {
	return New(Temporary, origin, format, a...)
}

// Wrap prefixes an arbitrary error with a pass name, the way
// build/fmterr.PrefixWith annotates an error with positional context,
// using github.com/pkg/errors so the original error (and, if present, its
// stack trace) is preserved under Unwrap/Cause.
func Wrap(err error, pass string) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "pass %q", pass)
}
