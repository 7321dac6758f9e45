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

// Package lower holds the state and helpers shared by the lowering
// passes (flatten, temps, storageinfer, maps, indexlower, access, gpu)
// without giving any one of them package-level mutable state of its own.
package lower

import "fmt"

// NameGen is a monotone counter scoped to one function, generating names
// for the temporaries that flatten, maps and indexlower introduce. It is
// the "shared mutable state... a monotone name-generator" of spec §5:
// owned exclusively by the pipeline driver, one instance per function
// being lowered, and threaded explicitly into every pass that can
// introduce a temporary rather than kept as state internal to a pass.
type NameGen struct {
	next int
}

// NewNameGen returns a generator starting at zero.
func NewNameGen() *NameGen {
	return &NameGen{}
}

// Fresh returns a new name built from prefix, guaranteed distinct from
// every other name this generator has produced.
func (g *NameGen) Fresh(prefix string) string {
	g.next++
	return fmt.Sprintf("%s%d", prefix, g.next)
}
