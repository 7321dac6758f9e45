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
	"testing"

	"github.com/gx-org/backend/dtype"
	"github.com/simit-lang/midend/diag"
	"github.com/simit-lang/midend/ir"
	"github.com/simit-lang/midend/lower"
	"github.com/simit-lang/midend/storage"
)

func matVarType() *ir.ScalarType { return ir.NewScalarType(dtype.Float64) }

// TestLowerDenseMatrixVectorProduct lowers y(i) = +k A(i,k)*x(k): a
// single free variable i, a single reducible variable k, both dense.
// Expected shape: for i { acc = 0; for k { acc = acc + A(i,k)*x(k) }; y(i) = acc }.
func TestLowerDenseMatrixVectorProduct(t *testing.T) {
	n, m := &ir.RangeDomain{N: 4}, &ir.RangeDomain{N: 3}
	i := ir.NewIndexVar("i", ir.Free, n)
	k := ir.NewIndexVar("k", ir.Sum, m)

	A := ir.NewVar("A", ir.NewTensorType(dtype.Float64, n, m))
	x := ir.NewVar("x", ir.NewTensorType(dtype.Float64, m))
	y := ir.NewVar("y", ir.NewTensorType(dtype.Float64, n))

	rhs := ir.NewBinaryExpr(token.MUL,
		ir.NewIndexedTensor(ir.NewVarRef(A), matVarType(), i, k),
		ir.NewIndexedTensor(ir.NewVarRef(x), matVarType(), k),
		matVarType(),
	)
	idxExpr := ir.NewIndexExpr(y.Type(), []*ir.IndexVar{i}, []*ir.IndexVar{k}, rhs)
	stmt := ir.NewIndexExprStmt(y, idxExpr)
	fn := ir.NewFunc("f", []*ir.Var{A, x}, []*ir.Var{y}, ir.NewBlock(stmt), ir.NewEnvironment())

	out, _, err := Lower(fn, lower.NewNameGen(), diag.NewAppender())
	if err != nil {
		t.Fatalf("Lower() error = %v", err)
	}
	body := out.Body.(*ir.Block)
	if len(body.List) != 1 {
		t.Fatalf("got %d top-level statements, want 1 (the i loop)", len(body.List))
	}
	iLoop, ok := body.List[0].(*ir.ForRange)
	if !ok || iLoop.N != 4 {
		t.Fatalf("top statement = %#v, want ForRange over [0,4)", body.List[0])
	}
	if len(iLoop.Body.List) != 3 {
		t.Fatalf("i-loop body has %d statements, want 3 (zero-fill, k-loop, write-back)", len(iLoop.Body.List))
	}
	if _, ok := iLoop.Body.List[0].(*ir.AssignStmt); !ok {
		t.Fatalf("first i-loop statement = %#v, want the accumulator zero-fill", iLoop.Body.List[0])
	}
	kLoop, ok := iLoop.Body.List[1].(*ir.ForRange)
	if !ok || kLoop.N != 3 {
		t.Fatalf("second i-loop statement = %#v, want ForRange over [0,3)", iLoop.Body.List[1])
	}
	if len(kLoop.Body.List) != 1 {
		t.Fatalf("k-loop body has %d statements, want 1 (the accumulate)", len(kLoop.Body.List))
	}
	if _, ok := kLoop.Body.List[0].(*ir.AssignStmt); !ok {
		t.Fatalf("k-loop body statement = %#v, want the accumulator update", kLoop.Body.List[0])
	}
	write, ok := iLoop.Body.List[2].(*ir.TensorWrite)
	if !ok {
		t.Fatalf("third i-loop statement = %#v, want TensorWrite into y", iLoop.Body.List[2])
	}
	if ref, ok := write.Tensor.(*ir.VarRef); !ok || ref.Var != y {
		t.Fatalf("write-back targets %v, want y", write.Tensor)
	}
}

// TestLowerMatMulSandwich lowers the post-flatten matmul term t(i,j) =
// +k A(i,k)*B(k,j): the reducible variable k sits between the two free
// variables i and j in the reachability graph, forcing the generalized
// array accumulator (indexed by j) described in reduce.go.
func TestLowerMatMulSandwich(t *testing.T) {
	ni, nk, nj := &ir.RangeDomain{N: 2}, &ir.RangeDomain{N: 2}, &ir.RangeDomain{N: 2}
	i := ir.NewIndexVar("i", ir.Free, ni)
	k := ir.NewIndexVar("k", ir.Sum, nk)
	j := ir.NewIndexVar("j", ir.Free, nj)

	A := ir.NewVar("A", ir.NewTensorType(dtype.Float64, ni, nk))
	B := ir.NewVar("B", ir.NewTensorType(dtype.Float64, nk, nj))
	tt := ir.NewVar("t", ir.NewTensorType(dtype.Float64, ni, nj))

	rhs := ir.NewBinaryExpr(token.MUL,
		ir.NewIndexedTensor(ir.NewVarRef(A), matVarType(), i, k),
		ir.NewIndexedTensor(ir.NewVarRef(B), matVarType(), k, j),
		matVarType(),
	)
	idxExpr := ir.NewIndexExpr(tt.Type(), []*ir.IndexVar{i, j}, []*ir.IndexVar{k}, rhs)
	stmt := ir.NewIndexExprStmt(tt, idxExpr)
	fn := ir.NewFunc("f", []*ir.Var{A, B}, []*ir.Var{tt}, ir.NewBlock(stmt), ir.NewEnvironment())

	out, _, err := Lower(fn, lower.NewNameGen(), diag.NewAppender())
	if err != nil {
		t.Fatalf("Lower() error = %v", err)
	}
	body := out.Body.(*ir.Block)
	if len(body.List) != 1 {
		t.Fatalf("got %d top-level statements, want 1 (the i loop)", len(body.List))
	}
	iLoop, ok := body.List[0].(*ir.ForRange)
	if !ok {
		t.Fatalf("top statement = %#v, want ForRange", body.List[0])
	}
	// i -> k -> j, k reducible with a free descendant j: the accumulator
	// is allocated and zeroed before the k loop, not the i loop, and
	// copied into t right after the k loop exits.
	if len(iLoop.Body.List) != 3 {
		t.Fatalf("i-loop body has %d statements, want 3 (zero-fill, k-loop, write-back)", len(iLoop.Body.List))
	}
	kLoop, ok := iLoop.Body.List[1].(*ir.ForRange)
	if !ok {
		t.Fatalf("second i-loop statement = %#v, want ForRange (the k loop)", iLoop.Body.List[1])
	}
	jLoop, ok := kLoop.Body.List[0].(*ir.ForRange)
	if !ok {
		t.Fatalf("k-loop body statement = %#v, want ForRange (the j loop)", kLoop.Body.List[0])
	}
	if len(jLoop.Body.List) != 1 {
		t.Fatalf("j-loop body has %d statements, want 1 (the accumulate)", len(jLoop.Body.List))
	}
	writeBack, ok := iLoop.Body.List[2].(*ir.ForRange)
	if !ok {
		t.Fatalf("third i-loop statement = %#v, want ForRange (the write-back copy loop over j)", iLoop.Body.List[2])
	}
	if len(writeBack.Body.List) != 1 {
		t.Fatalf("write-back loop body has %d statements, want 1", len(writeBack.Body.List))
	}
	if _, ok := writeBack.Body.List[0].(*ir.TensorWrite); !ok {
		t.Fatalf("write-back loop body statement = %#v, want TensorWrite", writeBack.Body.List[0])
	}
}

// TestLowerSparseCoordinateMerge lowers y(i) = +k A(i,k)*x(k) where A is
// SystemReduced over k: the k loop must become a SparseWhile with one
// coordinate induction variable and the left-most-wins min computation.
func TestLowerSparseCoordinateMerge(t *testing.T) {
	vertices := ir.NewSetType("V", ir.NewElementType("Vertex"))
	n := &ir.RangeDomain{N: 4}
	i := ir.NewIndexVar("i", ir.Free, n)
	k := ir.NewIndexVar("k", ir.Sum, &ir.SetDomain{Set: vertices})

	A := ir.NewVar("A", ir.NewTensorType(dtype.Float64, n, &ir.SetDomain{Set: vertices}))
	x := ir.NewVar("x", ir.NewTensorType(dtype.Float64, &ir.SetDomain{Set: vertices}))
	y := ir.NewVar("y", ir.NewTensorType(dtype.Float64, n))

	rhs := ir.NewBinaryExpr(token.MUL,
		ir.NewIndexedTensor(ir.NewVarRef(A), matVarType(), i, k),
		ir.NewIndexedTensor(ir.NewVarRef(x), matVarType(), k),
		matVarType(),
	)
	idxExpr := ir.NewIndexExpr(y.Type(), []*ir.IndexVar{i}, []*ir.IndexVar{k}, rhs)
	stmt := ir.NewIndexExprStmt(y, idxExpr)
	fn := ir.NewFunc("f", []*ir.Var{A, x}, []*ir.Var{y}, ir.NewBlock(stmt), ir.NewEnvironment())

	sm := storage.NewMap()
	sm.Add(A, storage.SystemReduced{Target: vertices, Neighbours: vertices})

	out, coords, err := Lower(fn.WithStorage(sm), lower.NewNameGen(), diag.NewAppender())
	if err != nil {
		t.Fatalf("Lower() error = %v", err)
	}
	iLoop := out.Body.(*ir.Block).List[0].(*ir.ForRange)
	kLoop, ok := iLoop.Body.List[1].(*ir.SparseWhile)
	if !ok {
		t.Fatalf("second i-loop statement = %#v, want SparseWhile", iLoop.Body.List[1])
	}
	if _, ok := kLoop.Cond.(*ir.BinaryExpr); !ok {
		t.Fatalf("sparse while condition = %#v, want a comparison", kLoop.Cond)
	}
	if len(kLoop.Body.List) == 0 {
		t.Fatalf("sparse while body is empty")
	}
	if _, ok := kLoop.Body.List[0].(*ir.AssignStmt); !ok {
		t.Fatalf("first sparse-while statement = %#v, want the min assignment", kLoop.Body.List[0])
	}
	last := kLoop.Body.List[len(kLoop.Body.List)-1]
	if _, ok := last.(*ir.IfThenElse); !ok {
		t.Fatalf("last sparse-while statement = %#v, want the coordinate advance", last)
	}

	// A is SystemReduced over k, x is not: the accumulate statement's
	// multiply must read A through its own coordinate variable while
	// still reading x through the merged minimum.
	accumulate, ok := kLoop.Body.List[1].(*ir.AssignStmt)
	if !ok {
		t.Fatalf("middle sparse-while statement = %#v, want the accumulate", kLoop.Body.List[1])
	}
	sum, ok := accumulate.Value.(*ir.BinaryExpr)
	if !ok {
		t.Fatalf("accumulate value = %#v, want acc + (A(i,k)*x(k))", accumulate.Value)
	}
	mul, ok := sum.Y.(*ir.BinaryExpr)
	if !ok {
		t.Fatalf("accumulate addend = %#v, want a multiply", sum.Y)
	}
	aRead, ok := mul.X.(*ir.TensorRead)
	if !ok {
		t.Fatalf("left operand = %#v, want TensorRead of A", mul.X)
	}
	xRead, ok := mul.Y.(*ir.TensorRead)
	if !ok {
		t.Fatalf("right operand = %#v, want TensorRead of x", mul.Y)
	}
	if len(coords) != 1 {
		t.Fatalf("got %d coordinate bindings, want 1 (A's use only)", len(coords))
	}
	if _, ok := coords[aRead]; !ok {
		t.Fatalf("coords has no entry for A's read %v", aRead)
	}
	if _, ok := coords[xRead]; ok {
		t.Fatalf("coords unexpectedly has an entry for x's dense read %v", xRead)
	}
}
