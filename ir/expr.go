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

import "go/token"

// Expr is an expression that returns a typed result (spec §3.2). Every
// expression carries a defined/undefined bit modelling "missing".
type Expr interface {
	Node
	// Type of the value produced by the expression.
	Type() Type
	// Defined reports whether the expression denotes a present value.
	// An undefined expression models the "missing" bit of spec §3.2.
	Defined() bool
	String() string
}

// ----------------------------------------------------------------------------
// Literals and references.

// Literal is a compile-time constant scalar.
type Literal struct {
	Typ   *ScalarType
	Value any // bool, int64 or float64, matching Typ.Component.
}

// NewLiteral returns a defined scalar literal.
func NewLiteral(typ *ScalarType, value any) *Literal {
	return &Literal{Typ: typ, Value: value}
}

func (*Literal) node()        {}
func (*Literal) Defined() bool { return true }
func (l *Literal) Type() Type   { return l.Typ }
func (l *Literal) String() string {
	return formatAny(l.Value)
}

// VarRef is a reference to a variable.
type VarRef struct {
	Var *Var
}

// NewVarRef returns a reference to var.
func NewVarRef(v *Var) *VarRef { return &VarRef{Var: v} }

func (*VarRef) node()        {}
func (*VarRef) Defined() bool { return true }
func (r *VarRef) Type() Type   { return r.Var.Type() }
func (r *VarRef) String() string { return r.Var.Name }

// UndefinedExpr models a statically-known-missing value of a given type.
type UndefinedExpr struct {
	Typ Type
}

// NewUndefined returns the undefined expression of type typ.
func NewUndefined(typ Type) *UndefinedExpr { return &UndefinedExpr{Typ: typ} }

func (*UndefinedExpr) node()         {}
func (*UndefinedExpr) Defined() bool  { return false }
func (u *UndefinedExpr) Type() Type    { return u.Typ }
func (u *UndefinedExpr) String() string { return "undefined" }

// ----------------------------------------------------------------------------
// Field and tensor access.

// FieldRead reads a field of an element-typed expression (e.f).
type FieldRead struct {
	X     Expr
	Field *Field
}

// NewFieldRead returns x.Field.Name.
func NewFieldRead(x Expr, field *Field) *FieldRead {
	return &FieldRead{X: x, Field: field}
}

func (*FieldRead) node()        {}
func (*FieldRead) Defined() bool { return true }
func (f *FieldRead) Type() Type   { return f.Field.Type }
func (f *FieldRead) String() string {
	return f.X.String() + "." + f.Field.Name
}

// TensorRead reads a scalar component out of a tensor variable at concrete
// integer-valued coordinates: T(i1,...,ik). Only present before access
// lowering (spec §4.7); none survive in the output of lower().
type TensorRead struct {
	Tensor  Expr
	Indices []Expr
	Typ     Type
}

// NewTensorRead returns tensor(indices...).
func NewTensorRead(tensor Expr, typ Type, indices ...Expr) *TensorRead {
	return &TensorRead{Tensor: tensor, Indices: indices, Typ: typ}
}

func (*TensorRead) node()        {}
func (*TensorRead) Defined() bool { return true }
func (t *TensorRead) Type() Type   { return t.Typ }
func (t *TensorRead) String() string {
	return exprList(t.Tensor.String(), t.Indices)
}

// TupleRead reads the i-th component of a tuple-typed expression.
type TupleRead struct {
	X     Expr
	Index int
	Typ   Type
}

// NewTupleRead returns x[index].
func NewTupleRead(x Expr, index int, typ Type) *TupleRead {
	return &TupleRead{X: x, Index: index, Typ: typ}
}

func (*TupleRead) node()        {}
func (*TupleRead) Defined() bool { return true }
func (t *TupleRead) Type() Type   { return t.Typ }
func (t *TupleRead) String() string {
	return t.X.String() + "#" + itoa(t.Index)
}

// IndexedTensor is a syntactic occurrence T(α1,...,αk) of a tensor inside
// an index expression, where the tensor operand is a plain variable
// reference once the body has been flattened (spec §4.2). Before
// flattening, Tensor may be an arbitrary expression.
type IndexedTensor struct {
	Tensor  Expr
	Indices []*IndexVar
	Typ     Type
}

// NewIndexedTensor returns tensor(indices...) for use inside an
// IndexExpr's right-hand side.
func NewIndexedTensor(tensor Expr, typ Type, indices ...*IndexVar) *IndexedTensor {
	return &IndexedTensor{Tensor: tensor, Indices: indices, Typ: typ}
}

func (*IndexedTensor) node()        {}
func (*IndexedTensor) Defined() bool { return true }
func (t *IndexedTensor) Type() Type   { return t.Typ }

// TensorVar returns the underlying variable when Tensor is a bare
// reference, i.e. when the node satisfies the flattened-leaf invariant of
// spec §4.2's output.
func (t *IndexedTensor) TensorVar() (*Var, bool) {
	ref, ok := t.Tensor.(*VarRef)
	if !ok {
		return nil, false
	}
	return ref.Var, true
}

func (t *IndexedTensor) String() string {
	names := make([]string, len(t.Indices))
	for i, iv := range t.Indices {
		names[i] = iv.Name
	}
	return exprListStrings(t.Tensor.String(), names)
}

// IndexExpr is a statement's right-hand side, binding a tensor to an
// expression quantified over free and reducible index variables
// (spec §3.2, §3.3).
type IndexExpr struct {
	Free       []*IndexVar
	Reducible  []*IndexVar
	RHS        Expr
	Typ        Type
}

// NewIndexExpr returns the index expression (free...) <reducible...> rhs.
func NewIndexExpr(typ Type, free, reducible []*IndexVar, rhs Expr) *IndexExpr {
	return &IndexExpr{Free: free, Reducible: reducible, RHS: rhs, Typ: typ}
}

func (*IndexExpr) node()        {}
func (*IndexExpr) Defined() bool { return true }
func (e *IndexExpr) Type() Type   { return e.Typ }

func (e *IndexExpr) String() string {
	free := make([]string, len(e.Free))
	for i, iv := range e.Free {
		free[i] = iv.Name
	}
	s := "(" + joinStrings(free) + ")"
	for _, iv := range e.Reducible {
		s += " " + reducibleString(iv)
	}
	return s + " " + e.RHS.String()
}

func reducibleString(iv *IndexVar) string {
	return "reducible(" + iv.Name + ")"
}

// ----------------------------------------------------------------------------
// Arithmetic and calls.

// UnaryExpr applies a unary operator to X.
type UnaryExpr struct {
	Op  token.Token
	X   Expr
	Typ Type
}

// NewUnaryExpr returns op x.
func NewUnaryExpr(op token.Token, x Expr, typ Type) *UnaryExpr {
	return &UnaryExpr{Op: op, X: x, Typ: typ}
}

func (*UnaryExpr) node()        {}
func (*UnaryExpr) Defined() bool { return true }
func (u *UnaryExpr) Type() Type   { return u.Typ }
func (u *UnaryExpr) String() string { return u.Op.String() + u.X.String() }

// BinaryExpr applies a binary operator to X and Y.
type BinaryExpr struct {
	Op   token.Token
	X, Y Expr
	Typ  Type
}

// NewBinaryExpr returns x op y.
func NewBinaryExpr(op token.Token, x, y Expr, typ Type) *BinaryExpr {
	return &BinaryExpr{Op: op, X: x, Y: y, Typ: typ}
}

func (*BinaryExpr) node()        {}
func (*BinaryExpr) Defined() bool { return true }
func (b *BinaryExpr) Type() Type   { return b.Typ }
func (b *BinaryExpr) String() string {
	return b.X.String() + " " + b.Op.String() + " " + b.Y.String()
}

// Call invokes a fixed intrinsic or a (possibly internal) function.
type Call struct {
	Callee *Func
	Args   []Expr
	Typ    Type
}

// NewCall returns callee(args...).
func NewCall(callee *Func, typ Type, args ...Expr) *Call {
	return &Call{Callee: callee, Args: args, Typ: typ}
}

func (*Call) node()        {}
func (*Call) Defined() bool { return true }
func (c *Call) Type() Type   { return c.Typ }
func (c *Call) String() string {
	return exprList(c.Callee.Name, c.Args)
}

// Length returns the cardinality of a set.
type Length struct {
	Set *SetType
}

// NewLength returns len(set).
func NewLength(set *SetType) *Length { return &Length{Set: set} }

func (*Length) node()        {}
func (*Length) Defined() bool { return true }
func (l *Length) Type() Type   { return &ScalarType{Component: lenComponent} }
func (l *Length) String() string { return "len(" + l.Set.Name + ")" }

// Map expands over a set with a reduction operator (spec §4.5). It is
// replaced by an explicit loop during map lowering; none survive the
// output of lower().
type Map struct {
	Fn         *Func
	Target     *SetType
	Neighbours *PathExpr // nil if the map has no neighbour set.
	Reduce     ReduceOp
	Results    []*Var
	Typ        Type
}

// NewMap returns a map of fn over target, with an optional neighbour
// path expression, combining per-element results into results using
// reduce.
func NewMap(fn *Func, target *SetType, neighbours *PathExpr, reduce ReduceOp, typ Type, results ...*Var) *Map {
	return &Map{Fn: fn, Target: target, Neighbours: neighbours, Reduce: reduce, Typ: typ, Results: results}
}

func (*Map) node()        {}
func (*Map) Defined() bool { return true }
func (m *Map) Type() Type   { return m.Typ }
func (m *Map) String() string {
	s := "map " + m.Fn.Name + " to " + m.Target.Name
	if m.Neighbours != nil {
		s += " with " + m.Neighbours.String()
	}
	if m.Reduce != Free {
		s += " reduce " + m.Reduce.String()
	}
	return s
}

// PathExpr qualifies a map's neighbour set by a sequence of
// (set, endpoint-index) hops, restricting which endpoints of an edge set
// participate in the reduction. This supplements the distilled spec with
// the source compiler's path expressions (see SPEC_FULL.md).
type PathExpr struct {
	Hops []PathHop
}

// PathHop is one (set, endpoint-index) step of a path expression.
type PathHop struct {
	Set      *SetType
	Endpoint int
}

func (*PathExpr) node() {}

// Direct reports whether the path is a single endpoint selector, the only
// shape fully lowered today (see SPEC_FULL.md's supplemented features).
func (p *PathExpr) Direct() bool { return len(p.Hops) == 1 }

func (p *PathExpr) String() string {
	if len(p.Hops) == 0 {
		return ""
	}
	s := p.Hops[0].Set.Name
	for _, h := range p.Hops[1:] {
		s += "." + h.Set.Name
	}
	return s
}

var (
	_ Expr = (*Literal)(nil)
	_ Expr = (*VarRef)(nil)
	_ Expr = (*UndefinedExpr)(nil)
	_ Expr = (*FieldRead)(nil)
	_ Expr = (*TensorRead)(nil)
	_ Expr = (*TupleRead)(nil)
	_ Expr = (*IndexedTensor)(nil)
	_ Expr = (*IndexExpr)(nil)
	_ Expr = (*UnaryExpr)(nil)
	_ Expr = (*BinaryExpr)(nil)
	_ Expr = (*Call)(nil)
	_ Expr = (*Length)(nil)
	_ Expr = (*Map)(nil)
)
