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

// Node is implemented by every member of the IR: types, expressions,
// statements, variables and functions.
type Node interface {
	// node marks a structure as a node structure.
	// It prevents external implementations of the interface, and prevents
	// arbitrary structures outside this package from being used as nodes.
	node()
}

// Pos is a source position, recorded on nodes that came from concrete
// syntax so diagnostics can point back at it. A zero Pos means the node
// was synthesized by a pass (e.g. a flatten-introduced temporary) and has
// no source location.
type Pos struct {
	Line, Col int
}

// Valid reports whether the position refers to real source text.
func (p Pos) Valid() bool { return p.Line > 0 }

// Var is a named, typed storage location: a global, a function argument or
// result, or a local declared by a VarDecl.
type Var struct {
	Name string
	Typ  Type
	Pos  Pos
}

// NewVar returns a variable of the given name and type.
func NewVar(name string, typ Type) *Var {
	return &Var{Name: name, Typ: typ}
}

func (*Var) node() {}

// Type of the variable.
func (v *Var) Type() Type { return v.Typ }

func (v *Var) String() string { return v.Name }

// ReduceOp is the reduction operator carried by an index variable
// (spec §3.3).
type ReduceOp int

// Reduction operators.
const (
	// Free index variables are enumerated on an index expression's
	// left-hand side.
	Free ReduceOp = iota
	// Sum reduces by addition; such variables never appear on the
	// left-hand side (the GLOSSARY's "reducible variable").
	Sum
)

func (r ReduceOp) String() string {
	if r == Sum {
		return "+"
	}
	return ""
}

// IndexVar binds a name to a domain and a reduction operator (spec §3.3).
// Two occurrences are the same variable iff their names and domains match.
type IndexVar struct {
	Name      string
	Domain    []Domain
	Reduction ReduceOp
}

// NewIndexVar returns a free or reducible index variable over the given
// concatenated domains.
func NewIndexVar(name string, reduction ReduceOp, domain ...Domain) *IndexVar {
	return &IndexVar{Name: name, Domain: domain, Reduction: reduction}
}

func (*IndexVar) node() {}

// Reducible reports whether the variable has a non-Free reduction
// operator, i.e. whether it is the GLOSSARY's "reducible variable".
func (v *IndexVar) Reducible() bool { return v.Reduction != Free }

// SameAs reports whether two index-variable occurrences denote the same
// variable: same name, and domains equal element-wise by identity (set
// domains) or value (range domains).
func (v *IndexVar) SameAs(o *IndexVar) bool {
	if v.Name != o.Name || len(v.Domain) != len(o.Domain) {
		return false
	}
	for i, d := range v.Domain {
		if !domainEqual(d, o.Domain[i]) {
			return false
		}
	}
	return true
}

func domainEqual(a, b Domain) bool {
	switch at := a.(type) {
	case *RangeDomain:
		bt, ok := b.(*RangeDomain)
		return ok && at.N == bt.N
	case *SetDomain:
		bt, ok := b.(*SetDomain)
		return ok && at.Set == bt.Set
	default:
		return false
	}
}

func (v *IndexVar) String() string { return v.Name }

// FirstDomain returns the first of the index variable's concatenated
// domains, used by dense-loop emission (spec §4.6.4) which ranges over
// domain0(iv).
func (v *IndexVar) FirstDomain() Domain {
	if len(v.Domain) == 0 {
		return nil
	}
	return v.Domain[0]
}
