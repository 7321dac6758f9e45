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

package ir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gx-org/backend/dtype"
)

// lenComponent is the scalar kind produced by Length, matching the
// backend's default integer kind for indices and lengths.
var lenComponent = dtype.Int64

func formatAny(v any) string {
	return fmt.Sprintf("%v", v)
}

func itoa(i int) string { return strconv.Itoa(i) }

func joinStrings(ss []string) string { return strings.Join(ss, ", ") }

func exprList(head string, args []Expr) string {
	ss := make([]string, len(args))
	for i, a := range args {
		ss[i] = a.String()
	}
	return exprListStrings(head, ss)
}

func exprListStrings(head string, args []string) string {
	return head + "(" + joinStrings(args) + ")"
}

// indent adds a tabulation to the start of every line of s, matching
// build/ir/string.go's own indent convention.
func indent(s string) string {
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "\t" + line
	}
	return strings.Join(lines, "\n")
}
