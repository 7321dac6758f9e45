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

package maps

import (
	"testing"

	"github.com/gx-org/backend/dtype"
	"github.com/simit-lang/midend/diag"
	"github.com/simit-lang/midend/ir"
	"github.com/simit-lang/midend/lower"
)

// TestLowerIdentityReduction reproduces seed S6 with the map built under
// the identity (Free) reduction: map F to Cells with F writing a
// scalar-per-cell into y(i) lowers to an explicit
// for i in Cells { y(i) = F.body(Cells(i)); }, the same loop a reduce +
// map into a per-cell y lowers to.
func TestLowerIdentityReduction(t *testing.T) {
	cellType := ir.NewElementType("Cell", &ir.Field{Name: "mass", Type: ir.NewTensorType(dtype.Float64)})
	cells := ir.NewSetType("Cells", cellType)

	elemParam := ir.NewVar("c", cellType)
	scalarResult := ir.NewVar("r", ir.NewScalarType(dtype.Float64))
	fnBody := ir.NewBlock(ir.NewAssignStmt(scalarResult, ir.NewFieldRead(ir.NewVarRef(elemParam), cellType.Field("mass"))))
	fn := ir.NewFunc("perCell", []*ir.Var{elemParam}, []*ir.Var{scalarResult}, fnBody, ir.NewEnvironment())

	tensorOverCells := ir.NewTensorType(dtype.Float64, &ir.SetDomain{Set: cells})
	y := ir.NewVar("y", tensorOverCells)

	mp := ir.NewMap(fn, cells, nil, ir.Free, tensorOverCells, y)
	body := ir.NewBlock(ir.NewAssignStmt(y, mp))
	outer := ir.NewFunc("mapPerCell", nil, []*ir.Var{y}, body, ir.NewEnvironment())

	out, err := Lower(outer, lower.NewNameGen(), diag.NewAppender())
	if err != nil {
		t.Fatalf("Lower() error = %v", err)
	}
	got := out.Body.(*ir.Block)
	if len(got.List) != 1 {
		t.Fatalf("got %d statements, want 1 (the for loop)", len(got.List))
	}
	forSet, ok := got.List[0].(*ir.ForSet)
	if !ok {
		t.Fatalf("statement is %T, want *ir.ForSet", got.List[0])
	}
	if forSet.Set != cells {
		t.Fatalf("for loop ranges over %v, want Cells", forSet.Set)
	}
	if len(forSet.Body.List) != 1 {
		t.Fatalf("for body has %d statements, want 1", len(forSet.Body.List))
	}
	write, ok := forSet.Body.List[0].(*ir.TensorWrite)
	if !ok {
		t.Fatalf("for body statement is %T, want *ir.TensorWrite", forSet.Body.List[0])
	}
	field, ok := write.Value.(*ir.FieldRead)
	if !ok {
		t.Fatalf("write value is %T, want *ir.FieldRead", write.Value)
	}
	ref, ok := field.X.(*ir.VarRef)
	if !ok || ref.Var != forSet.Index {
		t.Fatalf("field read operand was not substituted with the loop's induction variable")
	}
}

// TestLowerMapBindsNeighbourEndpoint reproduces the graph-map shape spec
// §4.5 describes and SPEC_FULL.md's supplemented-features section
// promises: a map over an edge set whose function takes a second,
// neighbour parameter bound through a direct (length-1) path expression
// onto one of the edge's endpoints.
func TestLowerMapBindsNeighbourEndpoint(t *testing.T) {
	vertexType := ir.NewElementType("Vertex", &ir.Field{Name: "mass", Type: ir.NewScalarType(dtype.Float64)})
	vertices := ir.NewSetType("V", vertexType)
	edgeType := ir.NewElementType("Edge")
	edges := ir.NewEdgeSetType("E", edgeType, vertices, vertices)

	edgeParam := ir.NewVar("e", edgeType)
	neighbourParam := ir.NewVar("n", vertexType)
	scalarResult := ir.NewVar("r", ir.NewScalarType(dtype.Float64))
	fnBody := ir.NewBlock(ir.NewAssignStmt(scalarResult, ir.NewFieldRead(ir.NewVarRef(neighbourParam), vertexType.Field("mass"))))
	fn := ir.NewFunc("perEdge", []*ir.Var{edgeParam, neighbourParam}, []*ir.Var{scalarResult}, fnBody, ir.NewEnvironment())

	tensorOverEdges := ir.NewTensorType(dtype.Float64, &ir.SetDomain{Set: edges})
	y := ir.NewVar("y", tensorOverEdges)

	neighbours := &ir.PathExpr{Hops: []ir.PathHop{{Set: vertices, Endpoint: 1}}}
	mp := ir.NewMap(fn, edges, neighbours, ir.Free, tensorOverEdges, y)
	body := ir.NewBlock(ir.NewAssignStmt(y, mp))
	outer := ir.NewFunc("mapPerEdge", nil, []*ir.Var{y}, body, ir.NewEnvironment())

	out, err := Lower(outer, lower.NewNameGen(), diag.NewAppender())
	if err != nil {
		t.Fatalf("Lower() error = %v", err)
	}
	got := out.Body.(*ir.Block)
	forSet, ok := got.List[0].(*ir.ForSet)
	if !ok {
		t.Fatalf("statement is %T, want *ir.ForSet", got.List[0])
	}
	write, ok := forSet.Body.List[0].(*ir.TensorWrite)
	if !ok {
		t.Fatalf("for body statement is %T, want *ir.TensorWrite", forSet.Body.List[0])
	}
	field, ok := write.Value.(*ir.FieldRead)
	if !ok {
		t.Fatalf("write value is %T, want *ir.FieldRead", write.Value)
	}
	tupleRead, ok := field.X.(*ir.TupleRead)
	if !ok {
		t.Fatalf("field read operand is %T, want *ir.TupleRead (the bound neighbour endpoint)", field.X)
	}
	if tupleRead.Index != 1 {
		t.Fatalf("TupleRead.Index = %d, want 1 (the path expression's endpoint)", tupleRead.Index)
	}
	ref, ok := tupleRead.X.(*ir.VarRef)
	if !ok || ref.Var != forSet.Index {
		t.Fatalf("TupleRead operand was not the loop's induction variable")
	}
}

// TestLowerMapLongNeighbourPathIsTemporary reproduces spec §4.5's
// acknowledged gap: a path expression longer than one hop is not yet
// lowered and must surface as a Temporary diagnostic rather than silently
// dropping the neighbour binding.
func TestLowerMapLongNeighbourPathIsTemporary(t *testing.T) {
	vertexType := ir.NewElementType("Vertex")
	vertices := ir.NewSetType("V", vertexType)
	edgeType := ir.NewElementType("Edge")
	edges := ir.NewEdgeSetType("E", edgeType, vertices, vertices)

	edgeParam := ir.NewVar("e", edgeType)
	neighbourParam := ir.NewVar("n", vertexType)
	scalarResult := ir.NewVar("r", ir.NewScalarType(dtype.Float64))
	fnBody := ir.NewBlock(ir.NewAssignStmt(scalarResult, ir.NewVarRef(scalarResult)))
	fn := ir.NewFunc("perEdge", []*ir.Var{edgeParam, neighbourParam}, []*ir.Var{scalarResult}, fnBody, ir.NewEnvironment())

	tensorOverEdges := ir.NewTensorType(dtype.Float64, &ir.SetDomain{Set: edges})
	y := ir.NewVar("y", tensorOverEdges)

	neighbours := &ir.PathExpr{Hops: []ir.PathHop{
		{Set: vertices, Endpoint: 0},
		{Set: vertices, Endpoint: 1},
	}}
	mp := ir.NewMap(fn, edges, neighbours, ir.Free, tensorOverEdges, y)
	body := ir.NewBlock(ir.NewAssignStmt(y, mp))
	outer := ir.NewFunc("mapPerEdge", nil, []*ir.Var{y}, body, ir.NewEnvironment())

	_, err := Lower(outer, lower.NewNameGen(), diag.NewAppender())
	if err == nil {
		t.Fatalf("Lower() error = nil, want a Temporary diagnostic for a multi-hop path expression")
	}
	d, ok := err.(*diag.Diagnostic)
	if !ok || d.Severity != diag.Temporary {
		t.Fatalf("Lower() error = %v, want a *diag.Diagnostic with Severity Temporary", err)
	}
}
