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

// Package reparse rebuilds the handful of seed-test trees of spec §8 from
// scratch, independently of whatever built the tree under test. There is
// no parser in this repository (spec.md's Non-goals), so "reparsing" an
// ir.Func printed by the printer package means reconstructing it a second
// time from the same seed description and checking the two constructions
// print identically - the round-trip property (8.6) without a lexer.
package reparse

import (
	"go/token"

	"github.com/gx-org/backend/dtype"
	"github.com/simit-lang/midend/ir"
	"github.com/simit-lang/midend/storage"
)

func scalarType() *ir.ScalarType { return ir.NewScalarType(dtype.Float64) }

// S1 rebuilds seed S1: C(i,j) = B(i,j) + A(i,j) over element tensors of
// shape [2,3].
func S1() *ir.Func {
	n, m := &ir.RangeDomain{N: 2}, &ir.RangeDomain{N: 3}
	i := ir.NewIndexVar("i", ir.Free, n)
	j := ir.NewIndexVar("j", ir.Free, m)

	mat := ir.NewTensorType(dtype.Float64, n, m)
	a := ir.NewVar("A", mat)
	b := ir.NewVar("B", mat)
	c := ir.NewVar("C", mat)

	rhs := ir.NewBinaryExpr(token.ADD,
		ir.NewIndexedTensor(ir.NewVarRef(b), scalarType(), i, j),
		ir.NewIndexedTensor(ir.NewVarRef(a), scalarType(), i, j),
		scalarType(),
	)
	stmt := ir.NewIndexExprStmt(c, ir.NewIndexExpr(mat, []*ir.IndexVar{i, j}, nil, rhs))
	return ir.NewFunc("elementwiseAdd", []*ir.Var{a, b}, []*ir.Var{c}, ir.NewBlock(stmt), ir.NewEnvironment())
}

// S2 rebuilds seed S2: y(i) = A(i,j) * x(j) with A SystemReduced over a
// vertex set, y and x dense. It also returns the storage map S2 requires,
// since no storage inference rule derives A's layout and inference fails
// without it.
func S2() (*ir.Func, *storage.Map) {
	vertices := ir.NewSetType("V", ir.NewElementType("Vertex"))
	n := &ir.RangeDomain{N: 4}
	i := ir.NewIndexVar("i", ir.Free, n)
	j := ir.NewIndexVar("j", ir.Sum, &ir.SetDomain{Set: vertices})

	a := ir.NewVar("A", ir.NewTensorType(dtype.Float64, n, &ir.SetDomain{Set: vertices}))
	x := ir.NewVar("x", ir.NewTensorType(dtype.Float64, &ir.SetDomain{Set: vertices}))
	y := ir.NewVar("y", ir.NewTensorType(dtype.Float64, n))

	rhs := ir.NewBinaryExpr(token.MUL,
		ir.NewIndexedTensor(ir.NewVarRef(a), scalarType(), i, j),
		ir.NewIndexedTensor(ir.NewVarRef(x), scalarType(), j),
		scalarType(),
	)
	stmt := ir.NewIndexExprStmt(y, ir.NewIndexExpr(y.Type(), []*ir.IndexVar{i}, []*ir.IndexVar{j}, rhs))
	fn := ir.NewFunc("matVec", []*ir.Var{a, x}, []*ir.Var{y}, ir.NewBlock(stmt), ir.NewEnvironment())

	sm := storage.NewMap()
	sm.Add(a, storage.SystemReduced{Target: vertices, Neighbours: vertices})
	return fn, sm
}

// S5 rebuilds seed S5: C(i,j) = (A(i,k)*B(k,j)) + D(i,j), the
// flattening fixture.
func S5() *ir.Func {
	n := &ir.RangeDomain{N: 4}
	i := ir.NewIndexVar("i", ir.Free, n)
	j := ir.NewIndexVar("j", ir.Free, n)
	k := ir.NewIndexVar("k", ir.Free, n)

	matType := ir.NewTensorType(dtype.Float64, n, n)
	a := ir.NewVar("A", matType)
	b := ir.NewVar("B", matType)
	d := ir.NewVar("D", matType)
	c := ir.NewVar("C", matType)

	product := ir.NewBinaryExpr(token.MUL,
		ir.NewIndexedTensor(ir.NewVarRef(a), matType, i, k),
		ir.NewIndexedTensor(ir.NewVarRef(b), matType, k, j),
		matType,
	)
	nested := ir.NewIndexedTensor(product, matType, i, j)
	rhs := ir.NewBinaryExpr(token.ADD,
		nested,
		ir.NewIndexedTensor(ir.NewVarRef(d), matType, i, j),
		matType,
	)
	stmt := ir.NewIndexExprStmt(c, ir.NewIndexExpr(matType, []*ir.IndexVar{i, j}, nil, rhs))
	return ir.NewFunc("matmulAdd", []*ir.Var{a, b, d}, []*ir.Var{c}, ir.NewBlock(stmt), ir.NewEnvironment())
}

// S6 rebuilds seed S6: map F to Cells with F writing a scalar-per-cell
// into y(i), built with the identity (Free) reduction, which lowers the
// same way reduce + does for a per-cell result.
func S6() *ir.Func {
	cellType := ir.NewElementType("Cell", &ir.Field{Name: "mass", Type: ir.NewTensorType(dtype.Float64)})
	cells := ir.NewSetType("Cells", cellType)

	elemParam := ir.NewVar("c", cellType)
	scalarResult := ir.NewVar("r", scalarType())
	fnBody := ir.NewBlock(ir.NewAssignStmt(scalarResult, ir.NewFieldRead(ir.NewVarRef(elemParam), cellType.Field("mass"))))
	perCell := ir.NewFunc("perCell", []*ir.Var{elemParam}, []*ir.Var{scalarResult}, fnBody, ir.NewEnvironment())

	tensorOverCells := ir.NewTensorType(dtype.Float64, &ir.SetDomain{Set: cells})
	y := ir.NewVar("y", tensorOverCells)

	mp := ir.NewMap(perCell, cells, nil, ir.Free, tensorOverCells, y)
	body := ir.NewBlock(ir.NewAssignStmt(y, mp))
	return ir.NewFunc("mapPerCell", nil, []*ir.Var{y}, body, ir.NewEnvironment())
}
