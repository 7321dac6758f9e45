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

// Package storage assigns a physical layout to every tensor variable of
// a function (spec §3.5, §4.4). It imports ir, never the reverse: a
// storage.Map is attached to an *ir.Func through the ir.StorageMap
// interface so the ir package itself stays ignorant of layout concerns,
// the way build/ir keeps backend-specific concerns (api/values) out of
// its own node definitions.
package storage

import (
	"sort"
	"strings"

	"github.com/simit-lang/midend/base/ordered"
	"github.com/simit-lang/midend/ir"
)

// Descriptor is the tagged union of physical layouts a tensor variable
// can be assigned, grounded on original_source/src/storage.cpp's
// TensorStorage::Kind enumeration.
type Descriptor interface {
	descriptor()
	String() string
}

// DenseRowMajor lays a tensor out as a flat row-major array. NeedsInit
// reports whether the backend must zero-fill the allocation before first
// use (spec §4.4 rule 2): false only when the variable's defining
// assignment is a literal.
type DenseRowMajor struct {
	NeedsInit bool
}

func (DenseRowMajor) descriptor() {}
func (d DenseRowMajor) String() string {
	if d.NeedsInit {
		return "dense-row-major (needs-init)"
	}
	return "dense-row-major"
}

// SystemReduced is a sparse system tensor compressed against a target set
// and, transitively, a neighbour set reached during map lowering
// (spec §4.4 rule 4, §4.6.3's "compressed index arrays").
type SystemReduced struct {
	Target     *ir.SetType
	Neighbours *ir.SetType
}

func (SystemReduced) descriptor() {}
func (d SystemReduced) String() string {
	if d.Neighbours == nil {
		return "system-reduced(" + d.Target.Name + ")"
	}
	return "system-reduced(" + d.Target.Name + ", " + d.Neighbours.Name + ")"
}

// SystemDiagonal is a system tensor all of whose non-scalar indices
// coincide (a map with no neighbour set): only the diagonal is stored
// (spec §4.4 rule 4, §4.7's SystemDiagonal offset rule).
type SystemDiagonal struct {
	Target *ir.SetType
}

func (SystemDiagonal) descriptor() {}
func (d SystemDiagonal) String() string { return "system-diagonal(" + d.Target.Name + ")" }

// SystemNone marks a system tensor that provably needs no backing
// storage (e.g. a map result immediately consumed and never materialized).
type SystemNone struct{}

func (SystemNone) descriptor()      {}
func (SystemNone) String() string { return "system-none" }

// Undefined is the placeholder assigned before inference runs. A non-
// scalar variable left Undefined once inference completes is an Internal
// diagnostic (spec §4.4 rule 5).
type Undefined struct{}

func (Undefined) descriptor()      {}
func (Undefined) String() string { return "undefined" }

var (
	_ Descriptor = DenseRowMajor{}
	_ Descriptor = SystemReduced{}
	_ Descriptor = SystemDiagonal{}
	_ Descriptor = SystemNone{}
	_ Descriptor = Undefined{}
)

// Map is the function-wide assignment of a Descriptor to every tensor
// variable, grounded on storage.cpp's Storage class (there a map keyed on
// Var wrapping a PIMPL'd TensorStorage::Content, here a plain ordered map
// of immutable Descriptor values per SPEC_FULL.md §9's PIMPL note).
type Map struct {
	entries *ordered.Map[*ir.Var, Descriptor]
}

// NewMap returns an empty storage map.
func NewMap() *Map {
	return &Map{entries: ordered.NewMap[*ir.Var, Descriptor]()}
}

// Has reports whether v already carries a storage entry.
func (m *Map) Has(v *ir.Var) bool {
	_, ok := m.entries.Load(v)
	return ok
}

// Get returns the descriptor assigned to v, or Undefined{} if none.
func (m *Map) Get(v *ir.Var) Descriptor {
	d, ok := m.entries.Load(v)
	if !ok {
		return Undefined{}
	}
	return d
}

// Add records the descriptor for v. Overwriting an existing entry for the
// same variable is a caller bug; callers that need to detect
// redeclaration should check Has first. (Infer instead detects
// redeclaration by name while collecting declared variables, before any
// Add, and reports it as a User diagnostic.)
func (m *Map) Add(v *ir.Var, d Descriptor) {
	m.entries.Store(v, d)
}

// String renders the map with variables sorted by name so that cfg.Verbose
// printing (SPEC_FULL.md's pipeline.Config) is reproducible independent of
// inference's internal traversal order.
func (m *Map) String() string {
	names := make([]*ir.Var, 0, m.entries.Size())
	for v := range m.entries.Keys() {
		names = append(names, v)
	}
	sort.Slice(names, func(i, j int) bool { return names[i].Name < names[j].Name })

	var b strings.Builder
	for _, v := range names {
		d, _ := m.entries.Load(v)
		if d.String() == "" {
			continue // scalarNoStorage: spec §4.4 rule 1, nothing to print.
		}
		b.WriteString(v.Name)
		b.WriteString(": ")
		b.WriteString(d.String())
		b.WriteString("\n")
	}
	return b.String()
}

var _ ir.StorageMap = (*Map)(nil)
