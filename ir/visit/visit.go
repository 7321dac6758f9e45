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

// Package visit provides the traversal skeleton over the IR: a Visitor
// in the shape of go/ast.Visitor, and a Walk function that performs the
// single "accept" dispatch spec §4.1 asks every node to expose.
//
// build/ir/ir.go's own doc comment states that its IR "is modeled after
// the go/ast package"; this package takes that literally
// and gives every node the go/ast.Walk traversal convention (one free
// function doing a type switch and descending in declared order) instead
// of forty near-identical Accept(v) methods repeating the same dispatch.
// Node.node() already closes the Node interface to this package's
// recognized shapes, so the type switch in Walk covers every node kind: a
// new node kind that forgets to extend it is caught at run time (the
// default case panics rather than silently skipping children).
package visit

import "github.com/simit-lang/midend/ir"

// Visitor is visited once per node. Returning a non-nil Visitor continues
// the descent into the node's children using that Visitor; returning nil
// stops the descent into this node's children.
type Visitor interface {
	Visit(n ir.Node) (w Visitor)
}

// Walk is the single traversal entry point for the whole IR (spec §4.1):
// it visits n, and if the returned Visitor is non-nil, walks n's children
// in declared order.
func Walk(v Visitor, n ir.Node) {
	if n == nil {
		return
	}
	w := v.Visit(n)
	if w == nil {
		return
	}
	for _, child := range children(n) {
		Walk(w, child)
	}
}

// children returns the direct child nodes of n in declared order. This is
// the one place that must be kept in sync with the node shapes in the ir
// package.
func children(n ir.Node) []ir.Node {
	switch t := n.(type) {
	// Types.
	case *ir.TensorType:
		cs := make([]ir.Node, len(t.Domains))
		for i, d := range t.Domains {
			cs[i] = d
		}
		return cs
	case *ir.SetDomain:
		return []ir.Node{t.Set}

	// Expressions.
	case *ir.FieldRead:
		return []ir.Node{t.X}
	case *ir.TensorRead:
		cs := []ir.Node{t.Tensor}
		for _, idx := range t.Indices {
			cs = append(cs, idx)
		}
		return cs
	case *ir.TupleRead:
		return []ir.Node{t.X}
	case *ir.IndexedTensor:
		cs := []ir.Node{t.Tensor}
		for _, iv := range t.Indices {
			cs = append(cs, iv)
		}
		return cs
	case *ir.IndexExpr:
		cs := make([]ir.Node, 0, len(t.Free)+len(t.Reducible)+1)
		for _, iv := range t.Free {
			cs = append(cs, iv)
		}
		for _, iv := range t.Reducible {
			cs = append(cs, iv)
		}
		cs = append(cs, t.RHS)
		return cs
	case *ir.UnaryExpr:
		return []ir.Node{t.X}
	case *ir.BinaryExpr:
		return []ir.Node{t.X, t.Y}
	case *ir.Call:
		cs := make([]ir.Node, len(t.Args))
		for i, a := range t.Args {
			cs[i] = a
		}
		return cs
	case *ir.Map:
		return nil
	case *ir.Load:
		return []ir.Node{t.Offset}
	case *ir.ThreadIndex:
		return nil

	// Statements.
	case *ir.AssignStmt:
		return []ir.Node{t.Value}
	case *ir.FieldWrite:
		return []ir.Node{t.X, t.Value}
	case *ir.TensorWrite:
		cs := []ir.Node{t.Tensor}
		for _, idx := range t.Indices {
			cs = append(cs, idx)
		}
		cs = append(cs, t.Value)
		return cs
	case *ir.IndexExprStmt:
		return []ir.Node{t.Value}
	case *ir.VarDecl:
		if t.Value == nil {
			return nil
		}
		return []ir.Node{t.Value}
	case *ir.Block:
		cs := make([]ir.Node, len(t.List))
		for i, s := range t.List {
			cs[i] = s
		}
		return cs
	case *ir.ForSet:
		return []ir.Node{t.Body}
	case *ir.ForRange:
		return []ir.Node{t.Body}
	case *ir.SparseWhile:
		return []ir.Node{t.Cond, t.Body}
	case *ir.IfThenElse:
		if t.Else == nil {
			return []ir.Node{t.Cond, t.Then}
		}
		return []ir.Node{t.Cond, t.Then, t.Else}
	case *ir.Store:
		return []ir.Node{t.Offset, t.Value}
	case *ir.GPUFor:
		return []ir.Node{t.Body}

	// Leaves: no children.
	case *ir.ScalarType, *ir.RangeDomain, *ir.ElementType, *ir.SetType,
		*ir.TupleType, *ir.Literal, *ir.VarRef, *ir.UndefinedExpr,
		*ir.Length, *ir.IndexVar, *ir.Var, *ir.Comment, *ir.Barrier, *ir.Pass:
		return nil
	default:
		panic("visit: unrecognized node kind, children() is out of sync with package ir")
	}
}
