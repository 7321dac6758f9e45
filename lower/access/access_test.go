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

package access

import (
	"testing"

	"github.com/gx-org/backend/dtype"
	"github.com/simit-lang/midend/diag"
	"github.com/simit-lang/midend/ir"
	"github.com/simit-lang/midend/storage"
)

// TestLowerDenseRowMajor checks the row-major offset polynomial for a
// two-dimensional dense tensor: A[i][j] -> A[i*3 + j].
func TestLowerDenseRowMajor(t *testing.T) {
	n, m := &ir.RangeDomain{N: 2}, &ir.RangeDomain{N: 3}
	A := ir.NewVar("A", ir.NewTensorType(dtype.Float64, n, m))
	i := ir.NewVar("i", ir.IntType())
	j := ir.NewVar("j", ir.IntType())

	read := ir.NewTensorRead(ir.NewVarRef(A), ir.NewScalarType(dtype.Float64), ir.NewVarRef(i), ir.NewVarRef(j))
	out := ir.NewVar("out", ir.NewScalarType(dtype.Float64))
	stmt := ir.NewAssignStmt(out, read)
	fn := ir.NewFunc("f", []*ir.Var{A, i, j}, []*ir.Var{out}, ir.NewBlock(stmt), ir.NewEnvironment())

	sm := storage.NewMap()
	sm.Add(A, storage.DenseRowMajor{NeedsInit: true})

	rewritten, err := Lower(fn, sm, nil, diag.NewAppender())
	if err != nil {
		t.Fatalf("Lower() error = %v", err)
	}
	assign, ok := rewritten.Body.(*ir.Block).List[0].(*ir.AssignStmt)
	if !ok {
		t.Fatalf("statement = %#v, want AssignStmt", rewritten.Body.(*ir.Block).List[0])
	}
	load, ok := assign.Value.(*ir.Load)
	if !ok {
		t.Fatalf("assigned value = %#v, want Load", assign.Value)
	}
	if load.Tensor != A {
		t.Fatalf("load targets %v, want A", load.Tensor)
	}
	offset, ok := load.Offset.(*ir.BinaryExpr)
	if !ok {
		t.Fatalf("offset = %#v, want a sum of two products", load.Offset)
	}
	if offset.Op.String() != "+" {
		t.Fatalf("offset top operator = %v, want +", offset.Op)
	}
}

// TestLowerSystemDiagonalMismatch checks that accessing a diagonal
// tensor with two distinct index variables is a User diagnostic, not an
// Internal one, since the frontend does not statically guarantee it.
func TestLowerSystemDiagonalMismatch(t *testing.T) {
	vertices := ir.NewSetType("V", ir.NewElementType("Vertex"))
	D := ir.NewVar("D", ir.NewTensorType(dtype.Float64, &ir.SetDomain{Set: vertices}, &ir.SetDomain{Set: vertices}))
	i := ir.NewVar("i", ir.NewElementType("Vertex"))
	j := ir.NewVar("j", ir.NewElementType("Vertex"))

	read := ir.NewTensorRead(ir.NewVarRef(D), ir.NewScalarType(dtype.Float64), ir.NewVarRef(i), ir.NewVarRef(j))
	out := ir.NewVar("out", ir.NewScalarType(dtype.Float64))
	stmt := ir.NewAssignStmt(out, read)
	fn := ir.NewFunc("f", []*ir.Var{D, i, j}, []*ir.Var{out}, ir.NewBlock(stmt), ir.NewEnvironment())

	sm := storage.NewMap()
	sm.Add(D, storage.SystemDiagonal{Target: vertices})

	appender := diag.NewAppender()
	_, err := Lower(fn, sm, nil, appender)
	if err == nil {
		t.Fatalf("Lower() succeeded, want a User diagnostic for mismatched diagonal indices")
	}
}

// TestLowerSystemDiagonalMatch checks the matching case: the diagonal
// offset is the single shared index expression, not a polynomial.
func TestLowerSystemDiagonalMatch(t *testing.T) {
	vertices := ir.NewSetType("V", ir.NewElementType("Vertex"))
	D := ir.NewVar("D", ir.NewTensorType(dtype.Float64, &ir.SetDomain{Set: vertices}, &ir.SetDomain{Set: vertices}))
	i := ir.NewVar("i", ir.NewElementType("Vertex"))

	read := ir.NewTensorRead(ir.NewVarRef(D), ir.NewScalarType(dtype.Float64), ir.NewVarRef(i), ir.NewVarRef(i))
	out := ir.NewVar("out", ir.NewScalarType(dtype.Float64))
	stmt := ir.NewAssignStmt(out, read)
	fn := ir.NewFunc("f", []*ir.Var{D, i}, []*ir.Var{out}, ir.NewBlock(stmt), ir.NewEnvironment())

	sm := storage.NewMap()
	sm.Add(D, storage.SystemDiagonal{Target: vertices})

	rewritten, err := Lower(fn, sm, nil, diag.NewAppender())
	if err != nil {
		t.Fatalf("Lower() error = %v", err)
	}
	load := rewritten.Body.(*ir.Block).List[0].(*ir.AssignStmt).Value.(*ir.Load)
	ref, ok := load.Offset.(*ir.VarRef)
	if !ok || ref.Var != i {
		t.Fatalf("offset = %#v, want a bare reference to i", load.Offset)
	}
}

// TestLowerSystemReducedUsesCoordTable checks that a SystemReduced
// tensor read is addressed by the coordinate variable recorded in the
// Coords side table, not recomputed as a row-major polynomial.
func TestLowerSystemReducedUsesCoordTable(t *testing.T) {
	vertices := ir.NewSetType("V", ir.NewElementType("Vertex"))
	n := &ir.RangeDomain{N: 4}
	A := ir.NewVar("A", ir.NewTensorType(dtype.Float64, n, &ir.SetDomain{Set: vertices}))
	i := ir.NewVar("i", ir.IntType())
	coord := ir.NewVar("coord_A", ir.IntType())

	read := ir.NewTensorRead(ir.NewVarRef(A), ir.NewScalarType(dtype.Float64), ir.NewVarRef(i), ir.NewVarRef(coord))
	out := ir.NewVar("out", ir.NewScalarType(dtype.Float64))
	stmt := ir.NewAssignStmt(out, read)
	fn := ir.NewFunc("f", []*ir.Var{A, i, coord}, []*ir.Var{out}, ir.NewBlock(stmt), ir.NewEnvironment())

	sm := storage.NewMap()
	sm.Add(A, storage.SystemReduced{Target: vertices, Neighbours: vertices})
	coords := Coords{read: coord}

	rewritten, err := Lower(fn, sm, coords, diag.NewAppender())
	if err != nil {
		t.Fatalf("Lower() error = %v", err)
	}
	load := rewritten.Body.(*ir.Block).List[0].(*ir.AssignStmt).Value.(*ir.Load)
	ref, ok := load.Offset.(*ir.VarRef)
	if !ok || ref.Var != coord {
		t.Fatalf("offset = %#v, want a bare reference to coord_A", load.Offset)
	}
}

// TestLowerSystemReducedWithoutCoordIsInternal checks that a missing
// Coords entry for a SystemReduced read is an Internal diagnostic: by
// the time access runs, lower/indexlower must have already recorded one
// for every such read.
func TestLowerSystemReducedWithoutCoordIsInternal(t *testing.T) {
	vertices := ir.NewSetType("V", ir.NewElementType("Vertex"))
	n := &ir.RangeDomain{N: 4}
	A := ir.NewVar("A", ir.NewTensorType(dtype.Float64, n, &ir.SetDomain{Set: vertices}))
	i := ir.NewVar("i", ir.IntType())
	coord := ir.NewVar("coord_A", ir.IntType())

	read := ir.NewTensorRead(ir.NewVarRef(A), ir.NewScalarType(dtype.Float64), ir.NewVarRef(i), ir.NewVarRef(coord))
	out := ir.NewVar("out", ir.NewScalarType(dtype.Float64))
	stmt := ir.NewAssignStmt(out, read)
	fn := ir.NewFunc("f", []*ir.Var{A, i, coord}, []*ir.Var{out}, ir.NewBlock(stmt), ir.NewEnvironment())

	sm := storage.NewMap()
	sm.Add(A, storage.SystemReduced{Target: vertices, Neighbours: vertices})

	_, err := Lower(fn, sm, nil, diag.NewAppender())
	if err == nil {
		t.Fatalf("Lower() succeeded, want an Internal diagnostic for the missing coordinate binding")
	}
}
