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

package indexlower

import (
	"go/token"

	"github.com/gx-org/backend/dtype"
	"github.com/simit-lang/midend/ir"
	"github.com/simit-lang/midend/lower"
)

// reduceScope tracks the accumulator for one maximal chain of reducible
// loops (spec §4.6.5). acc is indexed by the free variables that are
// descendants of the chain's outermost loop (freeDesc, in DFS order);
// every other variable underneath the chain, reducible or free, is
// summed away into acc before it is ever written to the result.
type reduceScope struct {
	acc       *ir.Var
	freeDesc  []*loopNode
	component dtype.Kind
}

// newReduceScope allocates the accumulator for the reduction rooted at
// node: a scalar if node's subtree has no free descendant, otherwise a
// tensor indexed by those descendants' domains.
func newReduceScope(node *loopNode, dstComponent dtype.Kind, gen *lower.NameGen) *reduceScope {
	desc := freeDescendants(node)
	var typ ir.Type = ir.NewScalarType(dstComponent)
	if len(desc) > 0 {
		domains := make([]ir.Domain, len(desc))
		for i, d := range desc {
			domains[i] = d.Var.FirstDomain()
		}
		typ = ir.NewTensorType(dstComponent, domains...)
	}
	return &reduceScope{
		acc:       ir.NewVar(gen.Fresh("acc"), typ),
		freeDesc:  desc,
		component: dstComponent,
	}
}

// zeroFill returns the statement(s) that initialise the accumulator to
// the reduction's neutral element before its outermost loop runs.
func (s *reduceScope) zeroFill(gen *lower.NameGen) ir.Stmt {
	neutral := ir.NeutralElement(ir.Sum, s.component)
	if len(s.freeDesc) == 0 {
		return ir.NewAssignStmt(s.acc, neutral)
	}
	return wrapNestedLoops(s.freeDesc, gen, func(idxs []ir.Expr) ir.Stmt {
		return ir.NewTensorWrite(ir.NewVarRef(s.acc), neutral, idxs...)
	})
}

// writeBack returns the statement(s) that copy the accumulator into dst
// after the reduction's outermost loop exits, addressing dst with the
// variables outside the reduction (resolved through outer) followed by
// the accumulator's own freeDesc loop variables.
func (s *reduceScope) writeBack(dst *ir.Var, free []*ir.IndexVar, outer func(*ir.IndexVar) ir.Expr, gen *lower.NameGen) ir.Stmt {
	if len(s.freeDesc) == 0 {
		idxs := resolveAll(free, outer, nil)
		if len(idxs) == 0 {
			return ir.NewAssignStmt(dst, ir.NewVarRef(s.acc))
		}
		return ir.NewTensorWrite(ir.NewVarRef(dst), ir.NewVarRef(s.acc), idxs...)
	}
	return wrapNestedLoops(s.freeDesc, gen, func(idxs []ir.Expr) ir.Stmt {
		override := map[string]ir.Expr{}
		for i, d := range s.freeDesc {
			override[d.Name] = idxs[i]
		}
		dstIdxs := resolveAll(free, outer, override)
		accRead := accumulatorRead(s.acc, idxs, s.component)
		return ir.NewTensorWrite(ir.NewVarRef(dst), accRead, dstIdxs...)
	})
}

// accumulate returns the statement that folds value into the
// accumulator, addressed by the current values of s.freeDesc's own
// induction variables (resolved through current).
func (s *reduceScope) accumulate(value ir.Expr, current func(*loopNode) ir.Expr) ir.Stmt {
	if len(s.freeDesc) == 0 {
		sum := ir.NewBinaryExpr(token.ADD, ir.NewVarRef(s.acc), value, s.acc.Type())
		return ir.NewAssignStmt(s.acc, sum)
	}
	idxs := make([]ir.Expr, len(s.freeDesc))
	for i, d := range s.freeDesc {
		idxs[i] = current(d)
	}
	read := accumulatorRead(s.acc, idxs, s.component)
	sum := ir.NewBinaryExpr(token.ADD, read, value, ir.NewScalarType(s.component))
	return ir.NewTensorWrite(ir.NewVarRef(s.acc), sum, idxs...)
}

func accumulatorRead(acc *ir.Var, idxs []ir.Expr, component dtype.Kind) ir.Expr {
	return ir.NewTensorRead(ir.NewVarRef(acc), ir.NewScalarType(component), idxs...)
}

// resolveAll resolves each declared free variable's current coordinate
// expression, preferring override (variables bound by a just-built copy
// loop) and falling back to outer (variables bound by an enclosing
// index-lowering loop).
func resolveAll(vars []*ir.IndexVar, outer func(*ir.IndexVar) ir.Expr, override map[string]ir.Expr) []ir.Expr {
	var out []ir.Expr
	for _, v := range vars {
		if override != nil {
			if e, ok := override[v.Name]; ok {
				out = append(out, e)
				continue
			}
		}
		out = append(out, outer(v))
	}
	return out
}

// wrapNestedLoops builds one fresh loop per variable in vars (outermost
// first) and calls body with the loops' induction-variable references,
// in vars order, to produce the innermost statement.
func wrapNestedLoops(vars []*loopNode, gen *lower.NameGen, body func(idxs []ir.Expr) ir.Stmt) ir.Stmt {
	idxVars := make([]*ir.Var, len(vars))
	idxExprs := make([]ir.Expr, len(vars))
	for i, v := range vars {
		idxVars[i] = ir.NewVar(gen.Fresh(v.Name), inductionType(v.Var))
		idxExprs[i] = ir.NewVarRef(idxVars[i])
	}
	inner := body(idxExprs)
	for i := len(vars) - 1; i >= 0; i-- {
		inner = wrapOneLoop(vars[i].Var, idxVars[i], ir.NewBlock(inner))
	}
	return inner
}

func wrapOneLoop(iv *ir.IndexVar, induction *ir.Var, body *ir.Block) ir.Stmt {
	switch d := iv.FirstDomain().(type) {
	case *ir.SetDomain:
		return ir.NewForSet(induction, d.Set, body)
	case *ir.RangeDomain:
		return ir.NewForRange(induction, d.N, body)
	default:
		return ir.NewForRange(induction, 0, body)
	}
}
