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

// Package gpu annotates a function's outer set loops for device sharding
// (spec §4.8), the last pass of the pipeline and only run when
// pipeline.Config.Backend == ir.Gpu.
package gpu

import (
	"github.com/simit-lang/midend/diag"
	"github.com/simit-lang/midend/ir"
	"github.com/simit-lang/midend/ir/visit"
)

// Shard rewrites fn's ir.ForSet loops into ir.GPUFor loops, one per entry
// of dims, assigned in the order loops are encountered by a depth-first,
// pre-order walk of fn's body: the first ForSet found is sharded over
// dims[0], the next over dims[1], and so on, including a ForSet nested
// inside an already-sharded loop (nested sharding across distinct
// dimensions, spec §4.8). A sharded loop's induction variable is rebound
// throughout its body to a synthetic ir.ThreadIndex read, and an
// ir.Barrier is appended after the body. Requesting the same dimension
// twice, or assigning a variable inside a shard and using it outside
// that shard (spec §9 open question 1 - see DESIGN.md), is a User
// diagnostic.
func Shard(fn *ir.Func, dims []ir.ShardDim, appender *diag.Appender) (*ir.Func, error) {
	if fn.Opaque() || len(dims) == 0 {
		return fn, nil
	}
	if dup, ok := duplicateDim(dims); ok {
		d := diag.Userf(diag.Origin{Func: "gpu.Shard"},
			"shard dimension %v requested more than once", dup)
		appender.Append(d)
		return nil, d
	}

	r := &shardRewriter{dims: dims, bindings: map[*ir.Var]ir.ShardDim{}}
	body := visit.Rewrite(r, fn.Body).(*ir.Block)

	checker := &escapeChecker{appender: appender, assignedIn: map[*ir.Var]ir.ShardDim{}}
	if err := checker.block(body); err != nil {
		return nil, err
	}
	return fn.WithBody(body), nil
}

func duplicateDim(dims []ir.ShardDim) (ir.ShardDim, bool) {
	seen := map[ir.ShardDim]bool{}
	for _, d := range dims {
		if seen[d] {
			return d, true
		}
		seen[d] = true
	}
	return 0, false
}

// shardRewriter assigns the next unused dimension to every ForSet it
// encounters until dims is exhausted, and substitutes every later
// reference to a sharded loop's induction variable with its thread-index
// read.
type shardRewriter struct {
	dims     []ir.ShardDim
	next     int
	bindings map[*ir.Var]ir.ShardDim
}

func (r *shardRewriter) Rewrite(n ir.Node) (ir.Node, visit.Rewriter) {
	switch t := n.(type) {
	case *ir.ForSet:
		if r.next >= len(r.dims) {
			return t, r
		}
		dim := r.dims[r.next]
		r.next++
		r.bindings[t.Index] = dim
		body := visit.Rewrite(r, t.Body).(*ir.Block)
		sharded := ir.NewBlock(append(append([]ir.Stmt{}, body.List...), &ir.Barrier{})...)
		return ir.NewGPUFor(dim, t.Index, t.Set, sharded), nil
	case *ir.VarRef:
		if dim, ok := r.bindings[t.Var]; ok {
			return ir.NewThreadIndex(dim), nil
		}
		return t, nil
	default:
		return n, r
	}
}

// escapeChecker implements the conservative rejection of spec §9 open
// question 1: a variable first assigned inside a shard and referenced
// outside it is a User diagnostic. It walks the rewritten body once, in
// source order, accumulating which shard (if any) first assigned each
// variable and flagging the first out-of-shard reference to one.
type escapeChecker struct {
	appender   *diag.Appender
	assignedIn map[*ir.Var]ir.ShardDim
	dimStack   []ir.ShardDim
}

func (c *escapeChecker) inShard() (ir.ShardDim, bool) {
	if len(c.dimStack) == 0 {
		return 0, false
	}
	return c.dimStack[len(c.dimStack)-1], true
}

func (c *escapeChecker) recordAssign(v *ir.Var) {
	dim, ok := c.inShard()
	if !ok {
		return
	}
	if _, seen := c.assignedIn[v]; !seen {
		c.assignedIn[v] = dim
	}
}

func (c *escapeChecker) checkUse(v *ir.Var) error {
	if _, ok := c.inShard(); ok {
		return nil
	}
	dim, seen := c.assignedIn[v]
	if !seen {
		return nil
	}
	d := diag.Userf(diag.Origin{Func: "gpu.Shard"},
		"%q is first assigned inside a shard over dimension %v but used outside it", v.Name, dim)
	c.appender.Append(d)
	return d
}

func (c *escapeChecker) block(b *ir.Block) error {
	for _, s := range b.List {
		if err := c.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *escapeChecker) stmt(s ir.Stmt) error {
	switch st := s.(type) {
	case *ir.GPUFor:
		c.dimStack = append(c.dimStack, st.Dim)
		err := c.block(st.Body)
		c.dimStack = c.dimStack[:len(c.dimStack)-1]
		return err
	case *ir.ForSet:
		return c.block(st.Body)
	case *ir.ForRange:
		return c.block(st.Body)
	case *ir.SparseWhile:
		if err := c.expr(st.Cond); err != nil {
			return err
		}
		return c.block(st.Body)
	case *ir.IfThenElse:
		if err := c.expr(st.Cond); err != nil {
			return err
		}
		if err := c.block(st.Then); err != nil {
			return err
		}
		if st.Else != nil {
			return c.block(st.Else)
		}
		return nil
	case *ir.AssignStmt:
		c.recordAssign(st.Var)
		return c.expr(st.Value)
	case *ir.VarDecl:
		if st.Value != nil {
			c.recordAssign(st.Var)
			return c.expr(st.Value)
		}
		return nil
	case *ir.TensorWrite:
		if v, ok := asVar(st.Tensor); ok {
			if _, inS := c.inShard(); inS {
				c.recordAssign(v)
			} else if err := c.checkUse(v); err != nil {
				return err
			}
		}
		for _, idx := range st.Indices {
			if err := c.expr(idx); err != nil {
				return err
			}
		}
		return c.expr(st.Value)
	case *ir.Store:
		if err := c.checkUse(st.Tensor); err != nil {
			return err
		}
		if err := c.expr(st.Offset); err != nil {
			return err
		}
		return c.expr(st.Value)
	default:
		return nil
	}
}

func (c *escapeChecker) expr(e ir.Expr) error {
	switch x := e.(type) {
	case *ir.VarRef:
		return c.checkUse(x.Var)
	case *ir.BinaryExpr:
		if err := c.expr(x.X); err != nil {
			return err
		}
		return c.expr(x.Y)
	case *ir.UnaryExpr:
		return c.expr(x.X)
	case *ir.Call:
		for _, a := range x.Args {
			if err := c.expr(a); err != nil {
				return err
			}
		}
		return nil
	case *ir.TensorRead:
		if err := c.expr(x.Tensor); err != nil {
			return err
		}
		for _, idx := range x.Indices {
			if err := c.expr(idx); err != nil {
				return err
			}
		}
		return nil
	case *ir.Load:
		if err := c.checkUse(x.Tensor); err != nil {
			return err
		}
		return c.expr(x.Offset)
	default:
		return nil
	}
}

func asVar(e ir.Expr) (*ir.Var, bool) {
	ref, ok := e.(*ir.VarRef)
	if !ok {
		return nil, false
	}
	return ref.Var, true
}
