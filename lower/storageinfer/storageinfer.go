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

// Package storageinfer is the pipeline-facing wrapper around
// storage.Infer: a rewrite-call-graph step that populates a function's
// Storage field, mirroring the source's func.setStorage(getStorage(func))
// step in lower.cpp.
package storageinfer

import (
	"github.com/simit-lang/midend/diag"
	"github.com/simit-lang/midend/ir"
	"github.com/simit-lang/midend/storage"
)

// Run infers fn's storage map and returns a copy of fn carrying it.
// Diagnostics raised during inference (redeclaration, unsupported
// assembles, broken invariants) are appended to appender; Run itself
// only returns the sentinel error Infer produced, if any.
func Run(fn *ir.Func, appender *diag.Appender) (*ir.Func, error) {
	if fn.Opaque() {
		return fn, nil
	}
	m, err := storage.Infer(fn, appender)
	if err != nil {
		return nil, err
	}
	return fn.WithStorage(m), nil
}
