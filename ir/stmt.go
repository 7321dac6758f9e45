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

// Stmt is a statement that performs an action and returns no value
// (spec §3.2).
type Stmt interface {
	Node
	stmtNode()
	String() string
}

// AssignStmt assigns the value of an expression to a variable.
type AssignStmt struct {
	Var   *Var
	Value Expr
}

// NewAssignStmt returns var = value.
func NewAssignStmt(v *Var, value Expr) *AssignStmt {
	return &AssignStmt{Var: v, Value: value}
}

func (*AssignStmt) node()     {}
func (*AssignStmt) stmtNode() {}
func (s *AssignStmt) String() string { return s.Var.Name + " = " + s.Value.String() }

// FieldWrite writes a value into a field of an element-typed variable.
type FieldWrite struct {
	X     Expr
	Field *Field
	Value Expr
}

// NewFieldWrite returns x.Field.Name = value.
func NewFieldWrite(x Expr, field *Field, value Expr) *FieldWrite {
	return &FieldWrite{X: x, Field: field, Value: value}
}

func (*FieldWrite) node()     {}
func (*FieldWrite) stmtNode() {}
func (s *FieldWrite) String() string {
	return s.X.String() + "." + s.Field.Name + " = " + s.Value.String()
}

// TensorWrite writes a scalar value into a tensor at concrete
// integer-valued coordinates. Replaced by Store during access lowering
// (spec §4.7); none survive the output of lower().
type TensorWrite struct {
	Tensor  Expr
	Indices []Expr
	Value   Expr
}

// NewTensorWrite returns tensor(indices...) = value.
func NewTensorWrite(tensor Expr, value Expr, indices ...Expr) *TensorWrite {
	return &TensorWrite{Tensor: tensor, Indices: indices, Value: value}
}

func (*TensorWrite) node()     {}
func (*TensorWrite) stmtNode() {}
func (s *TensorWrite) String() string {
	return exprList(s.Tensor.String(), s.Indices) + " = " + s.Value.String()
}

// IndexExprStmt binds a tensor variable to an index expression:
// T(free...) <reducible...> = rhs.
type IndexExprStmt struct {
	Var   *Var
	Value *IndexExpr
}

// NewIndexExprStmt returns v(free...) = value.
func NewIndexExprStmt(v *Var, value *IndexExpr) *IndexExprStmt {
	return &IndexExprStmt{Var: v, Value: value}
}

func (*IndexExprStmt) node()     {}
func (*IndexExprStmt) stmtNode() {}
func (s *IndexExprStmt) String() string {
	return s.Var.Name + s.Value.String()
}

// VarDecl declares a new local variable, optionally with an initial value.
type VarDecl struct {
	Var   *Var
	Value Expr // nil if the declaration has no initializer.
}

// NewVarDecl returns a declaration of var, with an optional initializer.
func NewVarDecl(v *Var, value Expr) *VarDecl {
	return &VarDecl{Var: v, Value: value}
}

func (*VarDecl) node()     {}
func (*VarDecl) stmtNode() {}
func (s *VarDecl) String() string {
	if s.Value == nil {
		return "var " + s.Var.Name + " " + s.Var.Type().String()
	}
	return "var " + s.Var.Name + " " + s.Var.Type().String() + " = " + s.Value.String()
}

// Block is a sequence of statements.
type Block struct {
	List []Stmt
}

// NewBlock returns a block of the given statements.
func NewBlock(stmts ...Stmt) *Block { return &Block{List: stmts} }

func (*Block) node()     {}
func (*Block) stmtNode() {}
func (b *Block) String() string {
	s := ""
	for _, stmt := range b.List {
		s += stmt.String() + "\n"
	}
	return s
}

// ForSet iterates over the elements of a set.
type ForSet struct {
	Index *Var // bound to each element in turn.
	Set   *SetType
	Body  *Block
}

// NewForSet returns for index in set { body }.
func NewForSet(index *Var, set *SetType, body *Block) *ForSet {
	return &ForSet{Index: index, Set: set, Body: body}
}

func (*ForSet) node()     {}
func (*ForSet) stmtNode() {}
func (s *ForSet) String() string {
	return "for " + s.Index.Name + " in " + s.Set.Name + " {\n" + indent(s.Body.String()) + "}"
}

// ForRange iterates an induction variable over a dense range [0,N).
type ForRange struct {
	Index *Var
	N     int
	Body  *Block
}

// NewForRange returns for index in [0,N) { body }.
func NewForRange(index *Var, n int, body *Block) *ForRange {
	return &ForRange{Index: index, N: n, Body: body}
}

func (*ForRange) node()     {}
func (*ForRange) stmtNode() {}
func (s *ForRange) String() string {
	return "for " + s.Index.Name + " in [0," + itoa(s.N) + ") {\n" + indent(s.Body.String()) + "}"
}

// SparseWhile is the synthesized loop over compressed neighbour
// coordinates produced by dense/sparse loop-nest synthesis (spec §4.6.4).
type SparseWhile struct {
	Cond  Expr
	Body  *Block
}

// NewSparseWhile returns while cond { body }.
func NewSparseWhile(cond Expr, body *Block) *SparseWhile {
	return &SparseWhile{Cond: cond, Body: body}
}

func (*SparseWhile) node()     {}
func (*SparseWhile) stmtNode() {}
func (s *SparseWhile) String() string {
	return "while " + s.Cond.String() + " {\n" + indent(s.Body.String()) + "}"
}

// IfThenElse is a conditional statement; Else may be nil.
type IfThenElse struct {
	Cond Expr
	Then *Block
	Else *Block
}

// NewIfThenElse returns if cond { then } else { els }.
func NewIfThenElse(cond Expr, then, els *Block) *IfThenElse {
	return &IfThenElse{Cond: cond, Then: then, Else: els}
}

func (*IfThenElse) node()     {}
func (*IfThenElse) stmtNode() {}
func (s *IfThenElse) String() string {
	str := "if " + s.Cond.String() + " {\n" + indent(s.Then.String()) + "}"
	if s.Else != nil {
		str += " else {\n" + indent(s.Else.String()) + "}"
	}
	return str
}

// Comment is a no-op statement carrying source commentary.
type Comment struct {
	Text string
}

// NewComment returns a comment statement.
func NewComment(text string) *Comment { return &Comment{Text: text} }

func (*Comment) node()     {}
func (*Comment) stmtNode() {}
func (s *Comment) String() string { return "// " + s.Text }

// Pass is a no-op statement.
type Pass struct{}

func (*Pass) node()     {}
func (*Pass) stmtNode() {}
func (*Pass) String() string { return "pass" }

var (
	_ Stmt = (*AssignStmt)(nil)
	_ Stmt = (*FieldWrite)(nil)
	_ Stmt = (*TensorWrite)(nil)
	_ Stmt = (*IndexExprStmt)(nil)
	_ Stmt = (*VarDecl)(nil)
	_ Stmt = (*Block)(nil)
	_ Stmt = (*ForSet)(nil)
	_ Stmt = (*ForRange)(nil)
	_ Stmt = (*SparseWhile)(nil)
	_ Stmt = (*IfThenElse)(nil)
	_ Stmt = (*Comment)(nil)
	_ Stmt = (*Pass)(nil)
)
