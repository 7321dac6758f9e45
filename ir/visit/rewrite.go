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

package visit

import "github.com/simit-lang/midend/ir"

// Rewriter is visited once per node and returns the node's replacement
// plus the Rewriter to use for its children. Returning the node
// unchanged for every call makes Rewrite the identity transform.
type Rewriter interface {
	Rewrite(n ir.Node) (result ir.Node, w Rewriter)
}

// Rewrite performs a top-down rewrite of n: r.Rewrite is called on n
// first, then the children of the node it returns are rewritten with the
// returned Rewriter (none if it is nil); that node is reconstructed only
// if at least one child changed (by pointer), and otherwise it is
// returned unchanged.
// This is what preserves sharing across passes (spec §3.6) and is what
// makes rewrite(f) idempotent over an idempotent pass (spec §8 property
// 4): a second pass over an unchanged tree reconstructs nothing and
// returns the same pointers all the way up.
func Rewrite(r Rewriter, n ir.Node) ir.Node {
	if n == nil {
		return nil
	}
	result, w := r.Rewrite(n)
	if w == nil {
		return result
	}
	return rewriteChildren(w, result)
}

// rewriteChildren rewrites the children of n (which may be the node
// substituted by a prior Rewrite call) and reconstructs n only if a
// child actually changed.
func rewriteChildren(w Rewriter, n ir.Node) ir.Node {
	switch t := n.(type) {
	case *ir.TensorType:
		domains, changed := rewriteDomains(w, t.Domains)
		if !changed {
			return t
		}
		return &ir.TensorType{Domains: domains, Component: t.Component}
	case *ir.SetDomain:
		set := Rewrite(w, t.Set)
		if set == ir.Node(t.Set) {
			return t
		}
		return &ir.SetDomain{Set: set.(*ir.SetType)}

	case *ir.FieldRead:
		x := Rewrite(w, t.X)
		if x == ir.Node(t.X) {
			return t
		}
		return ir.NewFieldRead(x.(ir.Expr), t.Field)
	case *ir.TensorRead:
		tensor := Rewrite(w, t.Tensor)
		indices, changed := rewriteExprs(w, t.Indices)
		if tensor == ir.Node(t.Tensor) && !changed {
			return t
		}
		return ir.NewTensorRead(tensor.(ir.Expr), t.Typ, indices...)
	case *ir.TupleRead:
		x := Rewrite(w, t.X)
		if x == ir.Node(t.X) {
			return t
		}
		return ir.NewTupleRead(x.(ir.Expr), t.Index, t.Typ)
	case *ir.IndexedTensor:
		tensor := Rewrite(w, t.Tensor)
		if tensor == ir.Node(t.Tensor) {
			return t
		}
		return ir.NewIndexedTensor(tensor.(ir.Expr), t.Typ, t.Indices...)
	case *ir.IndexExpr:
		rhs := Rewrite(w, t.RHS)
		if rhs == ir.Node(t.RHS) {
			return t
		}
		return ir.NewIndexExpr(t.Typ, t.Free, t.Reducible, rhs.(ir.Expr))
	case *ir.UnaryExpr:
		x := Rewrite(w, t.X)
		if x == ir.Node(t.X) {
			return t
		}
		return ir.NewUnaryExpr(t.Op, x.(ir.Expr), t.Typ)
	case *ir.BinaryExpr:
		x := Rewrite(w, t.X)
		y := Rewrite(w, t.Y)
		if x == ir.Node(t.X) && y == ir.Node(t.Y) {
			return t
		}
		return ir.NewBinaryExpr(t.Op, x.(ir.Expr), y.(ir.Expr), t.Typ)
	case *ir.Call:
		args, changed := rewriteExprs(w, t.Args)
		if !changed {
			return t
		}
		return ir.NewCall(t.Callee, t.Typ, args...)
	case *ir.Load:
		offset := Rewrite(w, t.Offset)
		if offset == ir.Node(t.Offset) {
			return t
		}
		return ir.NewLoad(t.Tensor, offset.(ir.Expr), t.Typ)

	case *ir.AssignStmt:
		v := Rewrite(w, t.Value)
		if v == ir.Node(t.Value) {
			return t
		}
		return ir.NewAssignStmt(t.Var, v.(ir.Expr))
	case *ir.FieldWrite:
		x := Rewrite(w, t.X)
		v := Rewrite(w, t.Value)
		if x == ir.Node(t.X) && v == ir.Node(t.Value) {
			return t
		}
		return ir.NewFieldWrite(x.(ir.Expr), t.Field, v.(ir.Expr))
	case *ir.TensorWrite:
		tensor := Rewrite(w, t.Tensor)
		indices, changed := rewriteExprs(w, t.Indices)
		v := Rewrite(w, t.Value)
		if tensor == ir.Node(t.Tensor) && !changed && v == ir.Node(t.Value) {
			return t
		}
		return ir.NewTensorWrite(tensor.(ir.Expr), v.(ir.Expr), indices...)
	case *ir.IndexExprStmt:
		v := Rewrite(w, t.Value)
		if v == ir.Node(t.Value) {
			return t
		}
		return ir.NewIndexExprStmt(t.Var, v.(*ir.IndexExpr))
	case *ir.VarDecl:
		if t.Value == nil {
			return t
		}
		v := Rewrite(w, t.Value)
		if v == ir.Node(t.Value) {
			return t
		}
		return ir.NewVarDecl(t.Var, v.(ir.Expr))
	case *ir.Block:
		list, changed := rewriteStmts(w, t.List)
		if !changed {
			return t
		}
		return ir.NewBlock(list...)
	case *ir.ForSet:
		body := Rewrite(w, t.Body)
		if body == ir.Node(t.Body) {
			return t
		}
		return ir.NewForSet(t.Index, t.Set, body.(*ir.Block))
	case *ir.ForRange:
		body := Rewrite(w, t.Body)
		if body == ir.Node(t.Body) {
			return t
		}
		return ir.NewForRange(t.Index, t.N, body.(*ir.Block))
	case *ir.SparseWhile:
		cond := Rewrite(w, t.Cond)
		body := Rewrite(w, t.Body)
		if cond == ir.Node(t.Cond) && body == ir.Node(t.Body) {
			return t
		}
		return ir.NewSparseWhile(cond.(ir.Expr), body.(*ir.Block))
	case *ir.IfThenElse:
		cond := Rewrite(w, t.Cond)
		then := Rewrite(w, t.Then)
		var els ir.Node
		if t.Else != nil {
			els = Rewrite(w, t.Else)
		}
		if cond == ir.Node(t.Cond) && then == ir.Node(t.Then) && els == nodeOrNil(t.Else) {
			return t
		}
		var elsBlock *ir.Block
		if els != nil {
			elsBlock = els.(*ir.Block)
		}
		return ir.NewIfThenElse(cond.(ir.Expr), then.(*ir.Block), elsBlock)
	case *ir.Store:
		offset := Rewrite(w, t.Offset)
		v := Rewrite(w, t.Value)
		if offset == ir.Node(t.Offset) && v == ir.Node(t.Value) {
			return t
		}
		return ir.NewStore(t.Tensor, offset.(ir.Expr), v.(ir.Expr))
	case *ir.GPUFor:
		body := Rewrite(w, t.Body)
		if body == ir.Node(t.Body) {
			return t
		}
		return ir.NewGPUFor(t.Dim, t.Index, t.Set, body.(*ir.Block))

	default:
		// Leaf node, or a node deliberately opaque to generic rewriting
		// (e.g. *ir.Map, rewritten wholesale by lower/maps): unchanged.
		return t
	}
}

func nodeOrNil(b *ir.Block) ir.Node {
	if b == nil {
		return nil
	}
	return b
}

func rewriteExprs(w Rewriter, exprs []ir.Expr) ([]ir.Expr, bool) {
	changed := false
	out := make([]ir.Expr, len(exprs))
	for i, e := range exprs {
		r := Rewrite(w, e).(ir.Expr)
		if r != e {
			changed = true
		}
		out[i] = r
	}
	if !changed {
		return exprs, false
	}
	return out, true
}

func rewriteStmts(w Rewriter, stmts []ir.Stmt) ([]ir.Stmt, bool) {
	changed := false
	out := make([]ir.Stmt, len(stmts))
	for i, s := range stmts {
		r := Rewrite(w, s).(ir.Stmt)
		if r != s {
			changed = true
		}
		out[i] = r
	}
	if !changed {
		return stmts, false
	}
	return out, true
}

func rewriteDomains(w Rewriter, domains []ir.Domain) ([]ir.Domain, bool) {
	changed := false
	out := make([]ir.Domain, len(domains))
	for i, d := range domains {
		r := Rewrite(w, d).(ir.Domain)
		if r != d {
			changed = true
		}
		out[i] = r
	}
	if !changed {
		return domains, false
	}
	return out, true
}
