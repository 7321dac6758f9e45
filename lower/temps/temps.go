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

// Package temps gives every aggregate that is written and then read
// again within the same block a named temporary slot (spec §4.3), ahead
// of storage inference which needs one storage entry per tensor
// variable.
package temps

import (
	"github.com/simit-lang/midend/ir"
	"github.com/simit-lang/midend/lower"
)

// Insert walks fn's body in source order and, for every statement that
// writes a tensor-typed aggregate read again later in the same block
// before being overwritten, declares the destination at the innermost
// enclosing block (via ir.NewVarDecl) so the aliasing hazard is broken by
// construction rather than left to the backend. gen is unused by the
// current conservative implementation but threaded through, since a
// future refinement may need to split a destination into more than one
// physical slot.
func Insert(fn *ir.Func, gen *lower.NameGen) (*ir.Func, error) {
	if fn.Opaque() {
		return fn, nil
	}
	_ = gen
	body := insertBlock(fn.Body.(*ir.Block))
	return fn.WithBody(body), nil
}

// insertBlock processes one block: it first recurses into nested blocks
// (for/while/if bodies), then, in source order, ensures every tensor-
// typed variable that is both written in this block and read again
// later in this block before any intervening write has a VarDecl
// immediately before its first write.
func insertBlock(b *ir.Block) *ir.Block {
	list := make([]ir.Stmt, len(b.List))
	for i, s := range b.List {
		list[i] = recurse(s)
	}

	declared := map[*ir.Var]bool{}
	for _, s := range list {
		if d, ok := s.(*ir.VarDecl); ok {
			declared[d.Var] = true
		}
	}

	var out []ir.Stmt
	for i, s := range list {
		if v, ok := writtenAggregate(s); ok && !declared[v] && readLaterInBlock(v, list[i+1:]) {
			out = append(out, ir.NewVarDecl(v, nil))
			declared[v] = true
		}
		out = append(out, s)
	}
	return ir.NewBlock(out...)
}

func recurse(s ir.Stmt) ir.Stmt {
	switch st := s.(type) {
	case *ir.ForSet:
		return ir.NewForSet(st.Index, st.Set, insertBlock(st.Body))
	case *ir.ForRange:
		return ir.NewForRange(st.Index, st.N, insertBlock(st.Body))
	case *ir.SparseWhile:
		return ir.NewSparseWhile(st.Cond, insertBlock(st.Body))
	case *ir.IfThenElse:
		var els *ir.Block
		if st.Else != nil {
			els = insertBlock(st.Else)
		}
		return ir.NewIfThenElse(st.Cond, insertBlock(st.Then), els)
	default:
		return s
	}
}

// writtenAggregate returns the tensor-typed variable a statement writes
// as a whole value (an AssignStmt or IndexExprStmt destination), if any.
func writtenAggregate(s ir.Stmt) (*ir.Var, bool) {
	switch st := s.(type) {
	case *ir.AssignStmt:
		return aggregateVar(st.Var)
	case *ir.IndexExprStmt:
		return aggregateVar(st.Var)
	default:
		return nil, false
	}
}

func aggregateVar(v *ir.Var) (*ir.Var, bool) {
	tt, ok := v.Type().(*ir.TensorType)
	if !ok || tt.IsScalar() {
		return nil, false
	}
	return v, true
}

// readLaterInBlock reports whether v is referenced by any statement in
// rest before the first statement that overwrites v wholesale.
func readLaterInBlock(v *ir.Var, rest []ir.Stmt) bool {
	for _, s := range rest {
		if refersTo(s, v) {
			return true
		}
		if w, ok := writtenAggregate(s); ok && w == v {
			return false // overwritten before any read: no hazard.
		}
	}
	return false
}

func refersTo(s ir.Stmt, v *ir.Var) bool {
	switch st := s.(type) {
	case *ir.AssignStmt:
		return exprRefersTo(st.Value, v)
	case *ir.IndexExprStmt:
		return exprRefersTo(st.Value.RHS, v)
	case *ir.FieldWrite:
		return exprRefersTo(st.X, v) || exprRefersTo(st.Value, v)
	case *ir.TensorWrite:
		if exprRefersTo(st.Tensor, v) || exprRefersTo(st.Value, v) {
			return true
		}
		for _, idx := range st.Indices {
			if exprRefersTo(idx, v) {
				return true
			}
		}
		return false
	case *ir.VarDecl:
		return st.Value != nil && exprRefersTo(st.Value, v)
	case *ir.ForSet:
		return blockRefersTo(st.Body, v)
	case *ir.ForRange:
		return blockRefersTo(st.Body, v)
	case *ir.SparseWhile:
		return exprRefersTo(st.Cond, v) || blockRefersTo(st.Body, v)
	case *ir.IfThenElse:
		if exprRefersTo(st.Cond, v) || blockRefersTo(st.Then, v) {
			return true
		}
		return st.Else != nil && blockRefersTo(st.Else, v)
	default:
		return false
	}
}

func blockRefersTo(b *ir.Block, v *ir.Var) bool {
	for _, s := range b.List {
		if refersTo(s, v) {
			return true
		}
	}
	return false
}

func exprRefersTo(e ir.Expr, v *ir.Var) bool {
	switch x := e.(type) {
	case *ir.VarRef:
		return x.Var == v
	case *ir.FieldRead:
		return exprRefersTo(x.X, v)
	case *ir.TensorRead:
		if exprRefersTo(x.Tensor, v) {
			return true
		}
		for _, idx := range x.Indices {
			if exprRefersTo(idx, v) {
				return true
			}
		}
		return false
	case *ir.TupleRead:
		return exprRefersTo(x.X, v)
	case *ir.IndexedTensor:
		return exprRefersTo(x.Tensor, v)
	case *ir.UnaryExpr:
		return exprRefersTo(x.X, v)
	case *ir.BinaryExpr:
		return exprRefersTo(x.X, v) || exprRefersTo(x.Y, v)
	case *ir.Call:
		for _, a := range x.Args {
			if exprRefersTo(a, v) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
