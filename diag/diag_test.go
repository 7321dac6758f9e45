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

import "testing"

func TestAppenderDeduplicates(t *testing.T) {
	a := NewAppender()
	origin := Origin{Line: 4, Col: 2}
	first := a.Append(Userf(origin, "undeclared variable %q", "x"))
	second := a.Append(Userf(origin, "undeclared variable %q", "x"))
	if !first {
		t.Fatalf("first Append of a new diagnostic should return true")
	}
	if second {
		t.Fatalf("second Append of an identical diagnostic should be deduplicated")
	}
	if got, want := len(a.Diagnostics()), 1; got != want {
		t.Fatalf("Diagnostics() len = %d, want %d", got, want)
	}
}

func TestAppenderFailedIgnoresWarnings(t *testing.T) {
	a := NewAppender()
	a.Warningf(Origin{}, "unused index variable %q", "j")
	if a.Failed() {
		t.Fatalf("Failed() = true after only a warning was recorded")
	}
	if err := a.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil after only a warning was recorded", err)
	}
	if got, want := len(a.Warnings()), 1; got != want {
		t.Fatalf("Warnings() len = %d, want %d", got, want)
	}
}

func TestAppenderFailedOnUserError(t *testing.T) {
	a := NewAppender()
	a.Userf(Origin{Line: 1}, "shape mismatch")
	if !a.Failed() {
		t.Fatalf("Failed() = false, want true after a non-warning User diagnostic")
	}
	if err := a.Err(); err == nil {
		t.Fatalf("Err() = nil, want non-nil after a non-warning User diagnostic")
	}
}

func TestAppenderInternalfAlwaysFails(t *testing.T) {
	a := NewAppender()
	err := a.Internalf(Origin{Func: "storage.Infer"}, "undefined storage for %q survived inference", "x")
	if err == nil {
		t.Fatalf("Internalf() returned nil error")
	}
	if !a.Failed() {
		t.Fatalf("Failed() = false after Internalf")
	}
}

func TestAppenderPushPopNamesOrigin(t *testing.T) {
	a := NewAppender()
	a.Push("lower.flatten")
	a.Userf(Origin{Line: 3}, "nested index expression")
	a.Pop()
	got := a.Diagnostics()[0].Origin.Func
	if got != "lower.flatten" {
		t.Fatalf("Origin.Func = %q, want %q", got, "lower.flatten")
	}
}

func TestSeverityString(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{User, "error"},
		{Internal, "internal error"},
		{Temporary, "not yet implemented"},
	}
	for _, tc := range tests {
		if got := tc.severity.String(); got != tc.want {
			t.Errorf("Severity(%d).String() = %q, want %q", tc.severity, got, tc.want)
		}
	}
}
