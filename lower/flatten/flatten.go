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

// Package flatten lifts nested index expressions into named temporaries
// so that every index expression's right-hand side becomes a leaf-level
// arithmetic combination of IndexedTensor nodes over plain variable
// references (spec §4.2).
package flatten

import (
	"github.com/gx-org/backend/dtype"
	"github.com/simit-lang/midend/ir"
	"github.com/simit-lang/midend/lower"
)

// Flatten rewrites fn's body so that every ir.IndexExpr's RHS is leaf-
// level, introducing one temporary per nested IndexedTensor whose own
// tensor operand is not a bare variable reference. gen is the function's
// shared name generator (spec §5); the caller threads the same *NameGen
// into temps and indexlower afterwards.
func Flatten(fn *ir.Func, gen *lower.NameGen) (*ir.Func, error) {
	if fn.Opaque() {
		return fn, nil
	}
	f := &flattener{gen: gen}
	body := f.block(fn.Body.(*ir.Block))
	return fn.WithBody(body), nil
}

type flattener struct {
	gen *lower.NameGen
}

// block rewrites every statement of b in source order, recursing into
// nested blocks (for/while/if bodies) and splicing in the temporaries an
// IndexExprStmt needs immediately before it.
func (f *flattener) block(b *ir.Block) *ir.Block {
	var out []ir.Stmt
	for _, s := range b.List {
		out = append(out, f.stmt(s)...)
	}
	return ir.NewBlock(out...)
}

// stmt returns the statements that should replace s: usually just s
// itself (rewritten), preceded by any temporaries it needed lifted out.
func (f *flattener) stmt(s ir.Stmt) []ir.Stmt {
	switch st := s.(type) {
	case *ir.IndexExprStmt:
		var pre []ir.Stmt
		rhs := f.expr(st.Value.RHS, &pre)
		value := ir.NewIndexExpr(st.Value.Type(), st.Value.Free, st.Value.Reducible, rhs)
		return append(pre, ir.NewIndexExprStmt(st.Var, value))
	case *ir.ForSet:
		return []ir.Stmt{ir.NewForSet(st.Index, st.Set, f.block(st.Body))}
	case *ir.ForRange:
		return []ir.Stmt{ir.NewForRange(st.Index, st.N, f.block(st.Body))}
	case *ir.SparseWhile:
		return []ir.Stmt{ir.NewSparseWhile(st.Cond, f.block(st.Body))}
	case *ir.IfThenElse:
		var els *ir.Block
		if st.Else != nil {
			els = f.block(st.Else)
		}
		return []ir.Stmt{ir.NewIfThenElse(st.Cond, f.block(st.Then), els)}
	default:
		return []ir.Stmt{s}
	}
}

// expr rewrites e post-order, appending to pre the IndexExprStmt of any
// temporary it introduces along the way, in the order they must run.
func (f *flattener) expr(e ir.Expr, pre *[]ir.Stmt) ir.Expr {
	switch x := e.(type) {
	case *ir.BinaryExpr:
		lhs := f.expr(x.X, pre)
		rhs := f.expr(x.Y, pre)
		if lhs == x.X && rhs == x.Y {
			return x
		}
		return ir.NewBinaryExpr(x.Op, lhs, rhs, x.Typ)
	case *ir.UnaryExpr:
		operand := f.expr(x.X, pre)
		if operand == x.X {
			return x
		}
		return ir.NewUnaryExpr(x.Op, operand, x.Typ)
	case *ir.Call:
		args := make([]ir.Expr, len(x.Args))
		changed := false
		for i, a := range x.Args {
			args[i] = f.expr(a, pre)
			if args[i] != a {
				changed = true
			}
		}
		if !changed {
			return x
		}
		return ir.NewCall(x.Callee, x.Typ, args...)
	case *ir.IndexedTensor:
		return f.indexedTensor(x, pre)
	default:
		return e
	}
}

// indexedTensor handles the one place flattening actually fires: an
// IndexedTensor whose tensor operand is itself a computed expression
// rather than a plain variable reference (spec §4.2's "not another index
// expression or computed expression"). Its own tensor subexpression is
// flattened first (post-order), then lifted into a fresh temporary
// indexed by x's declared indices, with any index variable used inside
// the subexpression but absent from those indices becoming the
// temporary's reducible variable (matching S5: k is summed away because
// it does not appear in the (i,j) the product is read back at).
func (f *flattener) indexedTensor(x *ir.IndexedTensor, pre *[]ir.Stmt) ir.Expr {
	if _, ok := x.Tensor.(*ir.VarRef); ok {
		return x // already leaf-level.
	}

	var innerPre []ir.Stmt
	subexpr := f.expr(x.Tensor, &innerPre)
	*pre = append(*pre, innerPre...)

	free := x.Indices
	reducible := reducibleVarsOf(subexpr, free)

	component := componentOf(x.Typ)
	domains := make([]ir.Domain, len(free))
	for i, iv := range free {
		domains[i] = iv.FirstDomain()
	}
	tempType := ir.NewTensorType(component, domains...)
	t := ir.NewVar(f.gen.Fresh("t"), tempType)

	indexExpr := ir.NewIndexExpr(tempType, free, reducible, subexpr)
	*pre = append(*pre, ir.NewIndexExprStmt(t, indexExpr))

	return ir.NewIndexedTensor(ir.NewVarRef(t), x.Typ, free...)
}

// reducibleVarsOf collects, in first-encountered order, every distinct
// index variable used by an IndexedTensor leaf of subexpr that is not
// among free.
func reducibleVarsOf(subexpr ir.Expr, free []*ir.IndexVar) []*ir.IndexVar {
	isFree := func(iv *ir.IndexVar) bool {
		for _, f := range free {
			if f.SameAs(iv) {
				return true
			}
		}
		return false
	}
	var out []*ir.IndexVar
	seen := func(iv *ir.IndexVar) bool {
		for _, o := range out {
			if o.SameAs(iv) {
				return true
			}
		}
		return false
	}
	var walk func(ir.Expr)
	walk = func(e ir.Expr) {
		switch x := e.(type) {
		case *ir.IndexedTensor:
			for _, iv := range x.Indices {
				if !isFree(iv) && !seen(iv) {
					out = append(out, ir.NewIndexVar(iv.Name, ir.Sum, iv.Domain...))
				}
			}
		case *ir.BinaryExpr:
			walk(x.X)
			walk(x.Y)
		case *ir.UnaryExpr:
			walk(x.X)
		case *ir.Call:
			for _, a := range x.Args {
				walk(a)
			}
		}
	}
	walk(subexpr)
	return out
}

func componentOf(t ir.Type) dtype.Kind {
	switch tt := t.(type) {
	case *ir.TensorType:
		return tt.Component
	case *ir.ScalarType:
		return tt.Component
	default:
		return dtype.Invalid
	}
}
