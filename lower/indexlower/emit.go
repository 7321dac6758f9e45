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

	"github.com/simit-lang/midend/ir"
	"github.com/simit-lang/midend/lower"
)

// emitCtx carries everything the recursive emitter needs to turn a loop
// nest into statements: the per-node induction/coordinate variables, a
// lookup from variable name back to its node (so any IndexVar occurrence
// in the statement's free list or RHS can be resolved to "its current
// value"), the statement being lowered, and a name generator for
// synthesized accumulators and copy loops.
type emitCtx struct {
	ind        map[*loopNode]*inductionInfo
	nodeByName map[string]*loopNode
	stmt       *ir.IndexExprStmt
	gen        *lower.NameGen
	// coords accumulates, for every TensorRead substitute() addresses by
	// a coordinate induction variable rather than a merged value, that
	// variable, so access lowering (spec §4.7) can find it again.
	coords map[*ir.TensorRead]*ir.Var
}

func (c *emitCtx) current(n *loopNode) ir.Expr {
	return ir.NewVarRef(c.ind[n].Induction)
}

func (c *emitCtx) outer(iv *ir.IndexVar) ir.Expr {
	n, ok := c.nodeByName[iv.Name]
	if !ok {
		return ir.NewVarRef(ir.NewVar(iv.Name, inductionType(iv)))
	}
	return c.current(n)
}

// emitLoop returns the statement(s) node contributes at its nesting
// level: its own loop (with a recursively built body), preceded and
// followed by accumulator init/copy when node is the outermost loop of
// a reduction (spec §4.6.5).
func (c *emitCtx) emitLoop(node *loopNode, scope *reduceScope) []ir.Stmt {
	if isReductionRoot(node) && scope == nil {
		component := componentOf(c.stmt.Var.Type())
		newScope := newReduceScope(node, component, c.gen)
		body := c.buildBody(node, newScope)
		loop := c.wrapLoop(node, body)
		writeBack := newScope.writeBack(c.stmt.Var, c.stmt.Value.Free, c.outer, c.gen)
		return []ir.Stmt{newScope.zeroFill(c.gen), loop, writeBack}
	}
	body := c.buildBody(node, scope)
	return []ir.Stmt{c.wrapLoop(node, body)}
}

// buildBody returns the block that node's own loop wraps: either the
// recursively emitted loops of its children, or, at a leaf, the
// statement that computes and deposits this iteration's value.
func (c *emitCtx) buildBody(node *loopNode, scope *reduceScope) *ir.Block {
	if len(node.Children) == 0 {
		return ir.NewBlock(c.leaf(scope))
	}
	var stmts []ir.Stmt
	for _, child := range node.Children {
		stmts = append(stmts, c.emitLoop(child, scope)...)
	}
	return ir.NewBlock(stmts...)
}

// leaf computes the statement's RHS for the current combination of
// induction variables and either accumulates it into scope (inside a
// reduction) or writes it straight into the destination tensor.
func (c *emitCtx) leaf(scope *reduceScope) ir.Stmt {
	value := c.substitute(c.stmt.Value.RHS)
	if scope != nil {
		return scope.accumulate(value, c.current)
	}
	idxs := resolveAll(c.stmt.Value.Free, c.outer, nil)
	if len(idxs) == 0 {
		return ir.NewAssignStmt(c.stmt.Var, value)
	}
	return ir.NewTensorWrite(ir.NewVarRef(c.stmt.Var), value, idxs...)
}

// substitute replaces every IndexedTensor leaf of e with a TensorRead
// addressed by the current values of its index variables, the
// conversion that §4.6.4's emission performs implicitly as each loop is
// materialized. An index position backed by a Sparse loop whose induction.go
// allocated this exact tensor use a coordinate induction variable is
// addressed by that coordinate, not by the loop's merged minimum: the
// minimum is what co-occurring dense tensors read, but the SystemReduced
// tensor itself walks its own compressed index array position.
func (c *emitCtx) substitute(e ir.Expr) ir.Expr {
	switch x := e.(type) {
	case *ir.IndexedTensor:
		idxs := make([]ir.Expr, len(x.Indices))
		var coordVar *ir.Var
		for i, iv := range x.Indices {
			idxs[i] = c.outer(iv)
			node, ok := c.nodeByName[iv.Name]
			if !ok || node.Kind != sparse {
				continue
			}
			if v, ok := c.ind[node].coordFor(x); ok {
				idxs[i] = ir.NewVarRef(v)
				coordVar = v
			}
		}
		read := ir.NewTensorRead(x.Tensor, x.Typ, idxs...)
		if coordVar != nil {
			c.coords[read] = coordVar
		}
		return read
	case *ir.BinaryExpr:
		return ir.NewBinaryExpr(x.Op, c.substitute(x.X), c.substitute(x.Y), x.Typ)
	case *ir.UnaryExpr:
		return ir.NewUnaryExpr(x.Op, c.substitute(x.X), x.Typ)
	case *ir.Call:
		args := make([]ir.Expr, len(x.Args))
		for i, a := range x.Args {
			args[i] = c.substitute(a)
		}
		return ir.NewCall(x.Callee, x.Typ, args...)
	default:
		return e
	}
}

// wrapLoop materializes node's own loop construct around body: a dense
// for loop over its variable's first domain, or a sparse while loop that
// advances its coordinate induction variables, per spec §4.6.4.
func (c *emitCtx) wrapLoop(node *loopNode, body *ir.Block) ir.Stmt {
	info := c.ind[node]
	if node.Kind == dense {
		return wrapOneLoop(node.Var, info.Induction, body)
	}
	return c.wrapSparseWhile(node, info, body)
}

// wrapSparseWhile builds the merge-style while loop of spec §4.6.4: the
// condition is the conjunction of every coordinate's in-range test; the
// body first takes the left-most minimum of the coordinates (so ties
// break towards the earliest-declared tensor use), runs the caller's
// body, then advances every coordinate that matched the minimum.
func (c *emitCtx) wrapSparseWhile(node *loopNode, info *inductionInfo, body *ir.Block) ir.Stmt {
	if len(info.Coords) == 0 {
		// No SystemReduced use actually backs this variable (e.g. it was
		// marked Sparse only by a tensor whose storage could not be
		// resolved); fall back to a dense loop over its first domain.
		return wrapOneLoop(node.Var, info.Induction, body)
	}
	coords := make([]*ir.Var, len(info.Coords))
	for i, b := range info.Coords {
		coords[i] = b.Var
	}

	cond := ir.Expr(ir.NewBinaryExpr(token.LSS, ir.NewVarRef(coords[0]), rowEndCall(), ir.BoolType()))
	for _, coord := range coords[1:] {
		cmp := ir.NewBinaryExpr(token.LSS, ir.NewVarRef(coord), rowEndCall(), ir.BoolType())
		cond = ir.NewBinaryExpr(token.LAND, cond, cmp, ir.BoolType())
	}

	var pre []ir.Stmt
	pre = append(pre, ir.NewAssignStmt(info.Induction, ir.NewVarRef(coords[0])))
	for _, coord := range coords[1:] {
		pre = append(pre, ir.NewIfThenElse(
			ir.NewBinaryExpr(token.LSS, ir.NewVarRef(coord), ir.NewVarRef(info.Induction), ir.BoolType()),
			ir.NewBlock(ir.NewAssignStmt(info.Induction, ir.NewVarRef(coord))),
			nil,
		))
	}

	var post []ir.Stmt
	for _, coord := range coords {
		post = append(post, ir.NewIfThenElse(
			ir.NewBinaryExpr(token.EQL, ir.NewVarRef(coord), ir.NewVarRef(info.Induction), ir.BoolType()),
			ir.NewBlock(ir.NewAssignStmt(coord, ir.NewBinaryExpr(token.ADD, ir.NewVarRef(coord), ir.IntLiteral(1), ir.IntType()))),
			nil,
		))
	}

	full := append(append(pre, body.List...), post...)
	return ir.NewSparseWhile(cond, ir.NewBlock(full...))
}

// rowEndFn is the intrinsic marker standing in for "the length of the
// compressed neighbour run this coordinate walks". No pass replaces it:
// access lowering rebuilds calls unchanged, so the lowered output still
// contains it as a call to this intrinsic.
var rowEndFn = ir.NewOpaqueFunc("$rowEnd", ir.Intrinsic, nil, []*ir.Var{ir.NewVar("stop", ir.IntType())})

func rowEndCall() ir.Expr {
	return ir.NewCall(rowEndFn, ir.IntType())
}
