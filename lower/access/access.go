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

// Package access replaces every remaining ir.TensorRead/ir.TensorWrite
// with an ir.Load/ir.Store addressed by a computed integer offset, the
// last rewrite before a function is backend-ready (spec §4.7). The
// offset polynomial it builds depends on the variable's storage.Descriptor:
//
//   - DenseRowMajor: the standard row-major polynomial
//     sum_k(i_k * prod_{l>k} d_l) over the tensor type's domains.
//   - SystemDiagonal: a single coordinate, after checking that every
//     index operand is structurally the same expression (the frontend
//     does not guarantee this, so a mismatch is a User diagnostic rather
//     than an Internal one).
//   - SystemReduced: the coordinate induction variable lower/indexlower
//     already allocated for the enclosing sparse loop, looked up through
//     a side table keyed by the TensorRead node it substituted in place
//     of the original IndexedTensor use.
package access

import (
	"go/token"

	"github.com/simit-lang/midend/diag"
	"github.com/simit-lang/midend/ir"
	"github.com/simit-lang/midend/storage"
)

// Coords is the side table lower/indexlower leaves behind: for every
// TensorRead it substituted in place of a SystemReduced tensor's use
// inside a Sparse loop, the coordinate induction variable that walks
// that use's compressed index array.
type Coords map[*ir.TensorRead]*ir.Var

// Lower rewrites fn's body, replacing TensorRead/TensorWrite with
// Load/Store according to sm. coords may be nil if fn has no
// SystemReduced access (e.g. it never went through a sparse loop).
func Lower(fn *ir.Func, sm *storage.Map, coords Coords, appender *diag.Appender) (*ir.Func, error) {
	if fn.Opaque() {
		return fn, nil
	}
	l := &lowerer{sm: sm, coords: coords, appender: appender}
	body, err := l.block(fn.Body.(*ir.Block))
	if err != nil {
		return nil, err
	}
	return fn.WithBody(body), nil
}

type lowerer struct {
	sm       *storage.Map
	coords   Coords
	appender *diag.Appender
}

func (l *lowerer) block(b *ir.Block) (*ir.Block, error) {
	var out []ir.Stmt
	for _, s := range b.List {
		st, err := l.stmt(s)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return ir.NewBlock(out...), nil
}

func (l *lowerer) stmt(s ir.Stmt) (ir.Stmt, error) {
	switch st := s.(type) {
	case *ir.TensorWrite:
		v, ok := asVar(st.Tensor)
		if !ok {
			return nil, l.appender.Internalf(diag.Origin{Func: "access.Lower"},
				"tensor write to a non-variable target %v", st.Tensor)
		}
		offset, err := l.offset(v, st.Indices, nil)
		if err != nil {
			return nil, err
		}
		value, err := l.expr(st.Value)
		if err != nil {
			return nil, err
		}
		return ir.NewStore(v, offset, value), nil
	case *ir.AssignStmt:
		value, err := l.expr(st.Value)
		if err != nil {
			return nil, err
		}
		return ir.NewAssignStmt(st.Var, value), nil
	case *ir.VarDecl:
		if st.Value == nil {
			return st, nil
		}
		value, err := l.expr(st.Value)
		if err != nil {
			return nil, err
		}
		return ir.NewVarDecl(st.Var, value), nil
	case *ir.ForSet:
		body, err := l.block(st.Body)
		if err != nil {
			return nil, err
		}
		return ir.NewForSet(st.Index, st.Set, body), nil
	case *ir.ForRange:
		body, err := l.block(st.Body)
		if err != nil {
			return nil, err
		}
		return ir.NewForRange(st.Index, st.N, body), nil
	case *ir.SparseWhile:
		body, err := l.block(st.Body)
		if err != nil {
			return nil, err
		}
		return ir.NewSparseWhile(l.exprOrOrig(st.Cond), body), nil
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
		return ir.NewIfThenElse(l.exprOrOrig(st.Cond), then, els), nil
	default:
		return s, nil
	}
}

func (l *lowerer) exprOrOrig(e ir.Expr) ir.Expr {
	rewritten, err := l.expr(e)
	if err != nil {
		return e
	}
	return rewritten
}

// expr rewrites any TensorRead reachable inside e; every other node is
// returned unchanged since, by this point in the pipeline, only
// arithmetic, calls and tensor reads can still enclose one.
func (l *lowerer) expr(e ir.Expr) (ir.Expr, error) {
	switch x := e.(type) {
	case *ir.TensorRead:
		v, ok := asVar(x.Tensor)
		if !ok {
			return nil, l.appender.Internalf(diag.Origin{Func: "access.Lower"},
				"tensor read of a non-variable target %v", x.Tensor)
		}
		offset, err := l.offset(v, x.Indices, x)
		if err != nil {
			return nil, err
		}
		return ir.NewLoad(v, offset, x.Typ), nil
	case *ir.BinaryExpr:
		left, err := l.expr(x.X)
		if err != nil {
			return nil, err
		}
		right, err := l.expr(x.Y)
		if err != nil {
			return nil, err
		}
		return ir.NewBinaryExpr(x.Op, left, right, x.Typ), nil
	case *ir.UnaryExpr:
		operand, err := l.expr(x.X)
		if err != nil {
			return nil, err
		}
		return ir.NewUnaryExpr(x.Op, operand, x.Typ), nil
	case *ir.Call:
		args := make([]ir.Expr, len(x.Args))
		for i, a := range x.Args {
			r, err := l.expr(a)
			if err != nil {
				return nil, err
			}
			args[i] = r
		}
		return ir.NewCall(x.Callee, x.Typ, args...), nil
	default:
		return e, nil
	}
}

func asVar(e ir.Expr) (*ir.Var, bool) {
	ref, ok := e.(*ir.VarRef)
	if !ok {
		return nil, false
	}
	return ref.Var, true
}

// offset computes the flat integer offset for a read/write of v at
// indices, branching on v's storage descriptor (spec §4.7). read is the
// TensorRead node being addressed, used to look up a SystemReduced
// variable's coordinate in l.coords; it is nil for a TensorWrite target,
// which never needs that lookup since a SystemReduced tensor is only
// ever produced by a map assembly, never written through an index
// expression's own write-back.
func (l *lowerer) offset(v *ir.Var, indices []ir.Expr, read *ir.TensorRead) (ir.Expr, error) {
	tt, ok := v.Type().(*ir.TensorType)
	if !ok {
		return nil, l.appender.Internalf(diag.Origin{Func: "access.Lower"},
			"variable %q accessed as a tensor has non-tensor type %v", v.Name, v.Type())
	}
	if l.sm == nil {
		return nil, l.appender.Internalf(diag.Origin{Func: "access.Lower"},
			"no storage map available to lower accesses to %q", v.Name)
	}
	switch d := l.sm.Get(v).(type) {
	case storage.DenseRowMajor:
		return rowMajorOffset(tt, indices), nil
	case storage.SystemDiagonal:
		if !allSame(indices) {
			d := diag.Userf(diag.Origin{Func: "access.Lower"},
				"%q is stored diagonally but is accessed with distinct index variables", v.Name)
			l.appender.Append(d)
			return nil, d
		}
		return indices[0], nil
	case storage.SystemReduced:
		_ = d
		if read != nil {
			if coord, ok := l.coords[read]; ok {
				return ir.NewVarRef(coord), nil
			}
		}
		return nil, l.appender.Internalf(diag.Origin{Func: "access.Lower"},
			"%q is system-reduced but no coordinate variable was recorded for this use", v.Name)
	default:
		return nil, l.appender.Internalf(diag.Origin{Func: "access.Lower"},
			"%q has no resolved storage descriptor (%v)", v.Name, d)
	}
}

// rowMajorOffset builds sum_k(i_k * prod_{l>k} d_l), the strides computed
// from the tensor type's own domains so both Int and set-valued (via an
// intrinsic cardinality call) dimensions are handled uniformly.
func rowMajorOffset(tt *ir.TensorType, indices []ir.Expr) ir.Expr {
	n := len(tt.Domains)
	if n == 0 {
		return ir.IntLiteral(0)
	}
	strides := make([]ir.Expr, n)
	strides[n-1] = ir.IntLiteral(1)
	for k := n - 2; k >= 0; k-- {
		strides[k] = foldedMul(strides[k+1], dimSize(tt.Domains[k+1]))
	}
	var total ir.Expr = ir.NewBinaryExpr(token.MUL, indices[0], strides[0], ir.IntType())
	for k := 1; k < n; k++ {
		term := ir.NewBinaryExpr(token.MUL, indices[k], strides[k], ir.IntType())
		total = ir.NewBinaryExpr(token.ADD, total, term, ir.IntType())
	}
	return total
}

// foldedMul multiplies two stride factors, using ir.FoldInt to collapse the
// product to a single literal when every domain feeding it is a
// RangeDomain (so x and y are both literal-only). A set-valued domain's
// size is an ir.NewLength call that FoldInt cannot evaluate, in which case
// the unevaluated product is kept in the offset expression as is.
func foldedMul(x, y ir.Expr) ir.Expr {
	product := ir.NewBinaryExpr(token.MUL, x, y, ir.IntType())
	if v, err := ir.FoldInt[int64](product); err == nil {
		return ir.IntLiteral(v)
	}
	return product
}

func dimSize(d ir.Domain) ir.Expr {
	switch dd := d.(type) {
	case *ir.RangeDomain:
		return ir.IntLiteral(int64(dd.N))
	case *ir.SetDomain:
		return ir.NewLength(dd.Set)
	default:
		return ir.IntLiteral(1)
	}
}

// allSame reports whether every index expression is structurally
// identical to the first, the statically-checkable half of
// SystemDiagonal's "all indices coincide" invariant.
func allSame(indices []ir.Expr) bool {
	for _, idx := range indices[1:] {
		if !sameExpr(indices[0], idx) {
			return false
		}
	}
	return true
}

func sameExpr(a, b ir.Expr) bool {
	ra, ok1 := a.(*ir.VarRef)
	rb, ok2 := b.(*ir.VarRef)
	if ok1 && ok2 {
		return ra.Var == rb.Var
	}
	return a.String() == b.String()
}
