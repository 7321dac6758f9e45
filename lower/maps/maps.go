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

// Package maps expands an ir.Map over a set into an explicit ir.ForSet
// iteration with the mapped function's body inlined and its per-element
// results combined using the map's reduction operator (spec §4.5).
package maps

import (
	"go/token"

	"github.com/gx-org/backend/dtype"
	"github.com/simit-lang/midend/diag"
	"github.com/simit-lang/midend/ir"
	"github.com/simit-lang/midend/ir/visit"
	"github.com/simit-lang/midend/lower"
)

// Lower rewrites every ir.Map assigned to a variable in fn's body into an
// explicit ir.ForSet, in source order, recursing into nested blocks.
func Lower(fn *ir.Func, gen *lower.NameGen, appender *diag.Appender) (*ir.Func, error) {
	if fn.Opaque() {
		return fn, nil
	}
	l := &lowerer{gen: gen, appender: appender}
	body, err := l.block(fn.Body.(*ir.Block))
	if err != nil {
		return nil, err
	}
	return fn.WithBody(body), nil
}

type lowerer struct {
	gen      *lower.NameGen
	appender *diag.Appender
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
	case *ir.AssignStmt:
		mp, ok := st.Value.(*ir.Map)
		if !ok {
			return []ir.Stmt{s}, nil
		}
		return l.lowerMap(mp)
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

// lowerMap expands one map into a for loop over its target set, per
// spec §4.5: "map F to S with N reduce op" becomes a loop whose induction
// variable ranges over S, F's body inlined with its element parameter
// substituted by the induction variable, and per-iteration results
// combined into the map's outputs using op. Only the right-hand side that
// F's body assigns to its first result is inlined into the loop; the
// body's other statements are not emitted, and further results are not
// combined.
func (l *lowerer) lowerMap(mp *ir.Map) ([]ir.Stmt, error) {
	if mp.Fn.Opaque() {
		return nil, l.appender.Temporaryf(diag.Origin{Func: "maps.Lower"},
			"map of an opaque function %q has no body to inline", mp.Fn.Name)
	}
	if callsItself(mp.Fn) {
		return nil, l.appender.Temporaryf(diag.Origin{Func: "maps.Lower"},
			"map of a recursive function %q is not supported", mp.Fn.Name)
	}
	if len(mp.Fn.Args) == 0 {
		return nil, l.appender.Internalf(diag.Origin{Func: "maps.Lower"},
			"mapped function %q takes no element parameter", mp.Fn.Name)
	}
	if len(mp.Fn.Results) == 0 {
		return nil, l.appender.Internalf(diag.Origin{Func: "maps.Lower"},
			"mapped function %q has no result to combine", mp.Fn.Name)
	}

	index := ir.NewVar(l.gen.Fresh("i"), mp.Target.Element)
	elemParam := mp.Fn.Args[0]
	body := visit.Rewrite(substVar{from: elemParam, to: ir.NewVarRef(index)}, mp.Fn.Body).(*ir.Block)

	if len(mp.Fn.Args) > 1 {
		neighbourExpr, err := l.neighbourExpr(mp, index)
		if err != nil {
			return nil, err
		}
		neighbourParam := mp.Fn.Args[1]
		body = visit.Rewrite(substVar{from: neighbourParam, to: neighbourExpr}, body).(*ir.Block)
	}
	perElement := body

	value, err := resultExpr(perElement, mp.Fn.Results[0])
	if err != nil {
		return nil, l.appender.Internalf(diag.Origin{Func: "maps.Lower"}, "%v", err)
	}

	var loopBody *ir.Block
	var after []ir.Stmt
	dst := firstOrDefault(mp.Results, mp.Fn.Results[0])

	reduce := mp.Reduce
	if tt, ok := dst.Type().(*ir.TensorType); ok && len(tt.Domains) == 1 {
		if sd, ok := tt.Domains[0].(*ir.SetDomain); ok && sd.Set == mp.Target {
			// A result indexed by the target set gets exactly one value per
			// element, so there is nothing to combine (seed S6).
			reduce = ir.Free
		}
	}

	switch reduce {
	case ir.Sum:
		acc := ir.NewVar(l.gen.Fresh("acc"), dst.Type())
		component := componentOf(dst.Type())
		loopBody = ir.NewBlock(
			ir.NewAssignStmt(acc, ir.NewBinaryExpr(token.ADD, ir.NewVarRef(acc), value, dst.Type())),
		)
		after = []ir.Stmt{ir.NewAssignStmt(dst, ir.NewVarRef(acc))}
		forLoop := ir.NewForSet(index, mp.Target, loopBody)
		init := ir.NewAssignStmt(acc, ir.NeutralElement(ir.Sum, component))
		return append([]ir.Stmt{init, forLoop}, after...), nil
	default:
		// Free/identity reduction, or any reduction into a result indexed
		// per element (seed S6): the loop body simply writes y(i) = value.
		loopBody = ir.NewBlock(ir.NewTensorWrite(ir.NewVarRef(dst), value, ir.NewVarRef(index)))
		return []ir.Stmt{ir.NewForSet(index, mp.Target, loopBody)}, nil
	}
}

// neighbourExpr returns the expression binding a mapped function's
// second parameter: the neighbour element reached from the current
// target-set element index through mp.Neighbours, spec §4.5's "binds
// each iteration's arguments from S and its neighbours via N". An edge
// set's element is a tuple of its endpoints (ir.TupleType's own doc
// comment), so the hop's endpoint is read with ir.TupleRead the same way
// any other tuple component would be.
func (l *lowerer) neighbourExpr(mp *ir.Map, index *ir.Var) (ir.Expr, error) {
	if mp.Neighbours == nil {
		return nil, l.appender.Internalf(diag.Origin{Func: "maps.Lower"},
			"mapped function %q takes a neighbour parameter but map %q has no neighbour set", mp.Fn.Name, mp.Target.Name)
	}
	if !mp.Neighbours.Direct() {
		return nil, l.appender.Temporaryf(diag.Origin{Func: "maps.Lower"},
			"path expressions longer than one hop are not yet supported (%s)", mp.Neighbours.String())
	}
	hop := mp.Neighbours.Hops[0]
	neighbourParam := mp.Fn.Args[1]
	return ir.NewTupleRead(ir.NewVarRef(index), hop.Endpoint, neighbourParam.Type()), nil
}

func firstOrDefault(results []*ir.Var, fallback *ir.Var) *ir.Var {
	if len(results) > 0 {
		return results[0]
	}
	return fallback
}

// resultExpr returns the right-hand side expression that fn's (now
// element-substituted) body assigns to result, the value lowerMap writes
// or accumulates for each set element.
func resultExpr(body *ir.Block, result *ir.Var) (ir.Expr, error) {
	for _, s := range body.List {
		switch st := s.(type) {
		case *ir.AssignStmt:
			if st.Var == result {
				return st.Value, nil
			}
		case *ir.IndexExprStmt:
			if st.Var == result {
				return st.Value.RHS, nil
			}
		}
	}
	return nil, errNoResultStatement{result: result.Name}
}

type errNoResultStatement struct{ result string }

func (e errNoResultStatement) Error() string {
	return "mapped function body never assigns its declared result " + e.result
}

// substVar replaces every VarRef to from with to, leaving every other
// node untouched; it implements visit.Rewriter.
type substVar struct {
	from *ir.Var
	to   ir.Expr
}

func (s substVar) Rewrite(n ir.Node) (ir.Node, visit.Rewriter) {
	if ref, ok := n.(*ir.VarRef); ok && ref.Var == s.from {
		return s.to, nil
	}
	return n, s
}

func callsItself(fn *ir.Func) bool {
	found := false
	visit.Walk(selfCallDetector{target: fn, found: &found}, fn.Body)
	return found
}

type selfCallDetector struct {
	target *ir.Func
	found  *bool
}

func (d selfCallDetector) Visit(n ir.Node) visit.Visitor {
	if call, ok := n.(*ir.Call); ok && call.Callee == d.target {
		*d.found = true
	}
	return d
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
