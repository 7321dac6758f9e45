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

// Package printer renders an ir.Func back to source-like text (spec
// §6.4), grounded on original_source/src/ir_printer.cpp for the surface
// shape (signature line, indented body, one statement per line) and on
// build/ir/string.go's per-node String() convention: every ir.Node
// already knows how to print itself, so printer only adds the
// function-level envelope and the call-graph traversal.
package printer

import (
	"fmt"
	"io"
	"strings"

	gxfmt "github.com/simit-lang/midend/base/fmt"
	"github.com/simit-lang/midend/ir"
	"github.com/simit-lang/midend/ir/visit"
)

// Print writes fn's signature and body to w. External and Intrinsic
// functions print as a bare signature, since they have no body.
func Print(w io.Writer, fn *ir.Func) {
	fmt.Fprint(w, signature(fn))
	if fn.Opaque() {
		fmt.Fprint(w, "\n")
		return
	}
	fmt.Fprintf(w, " {\n%s}\n", gxfmt.Indent(fn.Body.String()))
	if fn.Storage != nil {
		if s := fn.Storage.String(); s != "" {
			fmt.Fprintf(w, "// storage: %s\n", s)
		}
	}
}

// PrintCallGraph writes fn and, transitively, every distinct Internal
// function reachable from it through Call nodes, separated by blank
// lines, mirroring original_source/src/ir_printer.cpp's
// IRPrinterCallGraph.
func PrintCallGraph(w io.Writer, fn *ir.Func) {
	first := true
	visit.WalkCallGraph(fn, func(f *ir.Func) {
		if !first {
			fmt.Fprint(w, "\n")
		}
		first = false
		Print(w, f)
	})
}

func signature(fn *ir.Func) string {
	args := make([]string, len(fn.Args))
	for i, a := range fn.Args {
		args[i] = a.Name + " " + a.Type().String()
	}
	results := make([]string, len(fn.Results))
	for i, r := range fn.Results {
		results[i] = r.Name + " " + r.Type().String()
	}
	sig := fmt.Sprintf("%s func %s(%s)", fn.Kind.String(), fn.Name, strings.Join(args, ", "))
	if len(results) > 0 {
		sig += " (" + strings.Join(results, ", ") + ")"
	}
	return sig
}
