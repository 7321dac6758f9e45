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

// Package ir is the intermediate representation consumed and produced by
// the lowering pipeline. The tree is built by an external frontend; this
// package only defines the node shapes and the invariants the rest of the
// compiler relies on.
//
// Nodes are immutable by construction: every node is built through a
// constructor that fixes its fields once and for all, so that passes can
// share unchanged subtrees across rewrites (see the visit package).
package ir

import (
	"fmt"
	"strings"

	"github.com/gx-org/backend/dtype"
)

// Type is the type of an expression or a variable.
type Type interface {
	Node

	// Kind of the type.
	Kind() Kind

	// String representation of the type.
	String() string
}

// Kind distinguishes the broad category of a Type.
type Kind int

// Kinds of type recognized by the middle-end.
const (
	InvalidKind Kind = iota
	ScalarKind
	TensorKind
	ElementKind
	SetKind
	TupleKind
)

func (k Kind) String() string {
	switch k {
	case ScalarKind:
		return "scalar"
	case TensorKind:
		return "tensor"
	case ElementKind:
		return "element"
	case SetKind:
		return "set"
	case TupleKind:
		return "tuple"
	default:
		return "invalid"
	}
}

// ScalarType is a dimensionless Int, Float or Bool per spec §3.1.
// The component kind is the backend's own dtype.Kind, the one point where
// the backend's scalar vocabulary is allowed to appear in the IR.
type ScalarType struct {
	Component dtype.Kind
}

// NewScalarType returns the scalar type for a backend component kind.
func NewScalarType(component dtype.Kind) *ScalarType {
	return &ScalarType{Component: component}
}

func (*ScalarType) node()    {}
func (*ScalarType) Kind() Kind { return ScalarKind }

// String representation of the type.
func (s *ScalarType) String() string { return s.Component.String() }

// Domain is either a range [0,n) or a named set. It is the building block
// of a TensorType's ordered list of index domains (spec §3.1).
type Domain interface {
	Node
	domain()
	String() string
}

// RangeDomain is a dense range [0,N).
type RangeDomain struct {
	N int
}

func (*RangeDomain) node()   {}
func (*RangeDomain) domain() {}

func (d *RangeDomain) String() string { return fmt.Sprintf("[0,%d)", d.N) }

// SetDomain names a user-declared set as an index domain.
type SetDomain struct {
	Set *SetType
}

func (*SetDomain) node()   {}
func (*SetDomain) domain() {}

func (d *SetDomain) String() string { return d.Set.Name }

// IsSet reports whether a domain names a set rather than a dense range.
func IsSet(d Domain) bool {
	_, ok := d.(*SetDomain)
	return ok
}

// TensorType is an ordered list of index domains plus a scalar component
// type (spec §3.1). A tensor of order 0 is a scalar; a tensor is an
// element tensor iff every domain is a range.
type TensorType struct {
	Domains   []Domain
	Component dtype.Kind
}

// NewTensorType returns the tensor type with the given domains and
// component kind.
func NewTensorType(component dtype.Kind, domains ...Domain) *TensorType {
	return &TensorType{Domains: domains, Component: component}
}

func (*TensorType) node()    {}
func (*TensorType) Kind() Kind { return TensorKind }

// Order is the number of index domains, i.e. the rank of the tensor.
func (t *TensorType) Order() int { return len(t.Domains) }

// IsScalar reports whether the tensor has order 0.
func (t *TensorType) IsScalar() bool { return len(t.Domains) == 0 }

// IsElement reports whether every domain is a range (no set domain),
// per spec §3.1 and the GLOSSARY's "Element tensor".
func (t *TensorType) IsElement() bool {
	for _, d := range t.Domains {
		if IsSet(d) {
			return false
		}
	}
	return true
}

// IsSystem reports whether the tensor has order >= 2 and at least one
// domain is a set, per the GLOSSARY's "System tensor".
func (t *TensorType) IsSystem() bool {
	if t.Order() < 2 {
		return false
	}
	return !t.IsElement()
}

// String representation of the type.
func (t *TensorType) String() string {
	if t.IsScalar() {
		return t.Component.String()
	}
	domains := make([]string, len(t.Domains))
	for i, d := range t.Domains {
		domains[i] = d.String()
	}
	return fmt.Sprintf("tensor%s(%s)", strings.Join(domains, ""), t.Component.String())
}

// Field is one named field of an ElementType, itself tensor-typed.
type Field struct {
	Name string
	Type *TensorType
}

// ElementType is a named record of tensor-typed fields (spec §3.1).
type ElementType struct {
	Name   string
	Fields []*Field
}

// NewElementType returns a named record type with the given fields.
func NewElementType(name string, fields ...*Field) *ElementType {
	return &ElementType{Name: name, Fields: fields}
}

func (*ElementType) node()    {}
func (*ElementType) Kind() Kind { return ElementKind }

func (t *ElementType) String() string { return t.Name }

// Field looks up a field by name, returning nil if absent.
func (t *ElementType) Field(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// SetType is a homogeneous collection of elements, optionally carrying a
// fixed arity of endpoint references into other sets (an edge set),
// per spec §3.1.
type SetType struct {
	Name      string
	Element   *ElementType
	Endpoints []*SetType
}

// NewSetType returns a vertex set of the given element type.
func NewSetType(name string, element *ElementType) *SetType {
	return &SetType{Name: name, Element: element}
}

// NewEdgeSetType returns an edge set with a fixed arity of endpoints into
// other sets.
func NewEdgeSetType(name string, element *ElementType, endpoints ...*SetType) *SetType {
	return &SetType{Name: name, Element: element, Endpoints: endpoints}
}

func (*SetType) node()    {}
func (*SetType) Kind() Kind { return SetKind }

// IsEdgeSet reports whether the set carries endpoint references.
func (t *SetType) IsEdgeSet() bool { return len(t.Endpoints) > 0 }

func (t *SetType) String() string { return t.Name }

// TupleType is a fixed-arity product, used for edge endpoints (spec §3.1).
type TupleType struct {
	Elems []Type
}

// NewTupleType returns the tuple type over the given element types.
func NewTupleType(elems ...Type) *TupleType {
	return &TupleType{Elems: elems}
}

func (*TupleType) node()    {}
func (*TupleType) Kind() Kind { return TupleKind }

func (t *TupleType) String() string {
	elems := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		elems[i] = e.String()
	}
	return fmt.Sprintf("(%s)", strings.Join(elems, ", "))
}

var (
	_ Type = (*ScalarType)(nil)
	_ Type = (*TensorType)(nil)
	_ Type = (*ElementType)(nil)
	_ Type = (*SetType)(nil)
	_ Type = (*TupleType)(nil)
)
