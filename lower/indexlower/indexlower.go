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

// Package indexlower expands an index-expression statement into the
// explicit loop nest that computes it (spec §4.6): a reachability graph
// over the statement's index variables (reach.go), a DFS loop-nest built
// from that graph (loopnest.go), induction and coordinate induction
// variables for every loop (induction.go), reverse-order emission of
// dense for loops and sparse merge-style while loops (emit.go), and
// accumulator handling for reducible variables (reduce.go).
//
// Lower assumes its input has already been flattened (lower/flatten) so
// every IndexedTensor's Tensor operand is a bare variable reference.
package indexlower

import (
	"github.com/gx-org/backend/dtype"
	"github.com/simit-lang/midend/diag"
	"github.com/simit-lang/midend/ir"
	"github.com/simit-lang/midend/lower"
	"github.com/simit-lang/midend/storage"
)

// Coords maps a TensorRead emitted by Lower to the coordinate induction
// variable that addresses it, for every read of a SystemReduced tensor
// inside a Sparse loop. Access lowering (spec §4.7, lower/access) consults
// it instead of recomputing a row-major offset for these reads.
type Coords map[*ir.TensorRead]*ir.Var

// Lower rewrites every IndexExprStmt in fn's body into a loop nest, in
// source order, recursing into nested blocks.
func Lower(fn *ir.Func, gen *lower.NameGen, appender *diag.Appender) (*ir.Func, Coords, error) {
	if fn.Opaque() {
		return fn, nil, nil
	}
	sm, _ := fn.Storage.(*storage.Map)
	l := &lowerer{gen: gen, appender: appender, sm: sm, coords: Coords{}}
	body, err := l.block(fn.Body.(*ir.Block))
	if err != nil {
		return nil, nil, err
	}
	return fn.WithBody(body), l.coords, nil
}

type lowerer struct {
	gen      *lower.NameGen
	appender *diag.Appender
	sm       *storage.Map
	coords   Coords
}

func (l *lowerer) block(b *ir.Block) (*ir.Block, error) {
	var out []ir.Stmt
	for _, s := range b.List {
		stmts, err := l.stmt(s)
		if err != nil {
			return nil, err
		}
		out = append(out, stmts...)
	}
	return ir.NewBlock(out...), nil
}

func (l *lowerer) stmt(s ir.Stmt) ([]ir.Stmt, error) {
	switch st := s.(type) {
	case *ir.IndexExprStmt:
		return l.lowerStmt(st)
	case *ir.ForSet:
		body, err := l.block(st.Body)
		if err != nil {
			return nil, err
		}
		return []ir.Stmt{ir.NewForSet(st.Index, st.Set, body)}, nil
	case *ir.ForRange:
		body, err := l.block(st.Body)
		if err != nil {
			return nil, err
		}
		return []ir.Stmt{ir.NewForRange(st.Index, st.N, body)}, nil
	case *ir.SparseWhile:
		body, err := l.block(st.Body)
		if err != nil {
			return nil, err
		}
		return []ir.Stmt{ir.NewSparseWhile(st.Cond, body)}, nil
	case *ir.IfThenElse:
		then, err := l.block(st.Then)
		if err != nil {
			return nil, err
		}
		var els *ir.Block
		if st.Else != nil {
			els, err = l.block(st.Else)
			if err != nil {
				return nil, err
			}
		}
		return []ir.Stmt{ir.NewIfThenElse(st.Cond, then, els)}, nil
	default:
		return []ir.Stmt{s}, nil
	}
}

// lowerStmt runs the §4.6 pipeline on one index-expression statement.
func (l *lowerer) lowerStmt(st *ir.IndexExprStmt) ([]ir.Stmt, error) {
	if bad := firstUnflattenedUse(st.Value.RHS); bad != nil {
		return nil, l.appender.Internalf(diag.Origin{Func: "indexlower.Lower"},
			"index-expression lowering requires a flattened right-hand side, found %v with a non-variable tensor operand", bad)
	}
	g := buildReachGraph(st.Value.RHS)
	sparseVars := classifySparse(g, l.sm)
	root := buildLoopNest(g, st.Value.Free, sparseVars)

	nodeByName := map[string]*loopNode{}
	var all []*loopNode
	if root != nil {
		all = preorder(root)
		for _, n := range all {
			nodeByName[n.Name] = n
		}
	}
	ind := allocateInduction(all, l.gen, g.uses, l.sm)

	ctx := &emitCtx{ind: ind, nodeByName: nodeByName, stmt: st, gen: l.gen, coords: l.coords}
	if root == nil {
		return []ir.Stmt{ctx.leaf(nil)}, nil
	}
	return ctx.emitLoop(root, nil), nil
}

// firstUnflattenedUse returns the first IndexedTensor in e whose Tensor
// operand is not a bare variable reference, or nil if e already
// satisfies lower/flatten's output invariant (spec §4.2).
func firstUnflattenedUse(e ir.Expr) *ir.IndexedTensor {
	switch x := e.(type) {
	case *ir.IndexedTensor:
		if _, ok := x.TensorVar(); !ok {
			return x
		}
		return nil
	case *ir.BinaryExpr:
		if bad := firstUnflattenedUse(x.X); bad != nil {
			return bad
		}
		return firstUnflattenedUse(x.Y)
	case *ir.UnaryExpr:
		return firstUnflattenedUse(x.X)
	case *ir.Call:
		for _, a := range x.Args {
			if bad := firstUnflattenedUse(a); bad != nil {
				return bad
			}
		}
		return nil
	default:
		return nil
	}
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
