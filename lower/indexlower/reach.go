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

import "github.com/simit-lang/midend/ir"

// reachGraph is the undirected graph G of spec §4.6.1: vertices are index
// variables (keyed by name, since flatten and the frontend may mint
// distinct *ir.IndexVar values denoting the same variable across an
// index expression), edges connect any two variables that co-occur in
// some tensor subscript tuple. uses collects, per variable name, every
// IndexedTensor occurrence that names it (IndexUses).
type reachGraph struct {
	order []string
	canon map[string]*ir.IndexVar
	adj   map[string][]string
	uses  map[string][]*ir.IndexedTensor
}

func newReachGraph() *reachGraph {
	return &reachGraph{
		canon: map[string]*ir.IndexVar{},
		adj:   map[string][]string{},
		uses:  map[string][]*ir.IndexedTensor{},
	}
}

func (g *reachGraph) touch(v *ir.IndexVar) {
	if _, ok := g.canon[v.Name]; !ok {
		g.canon[v.Name] = v
		g.order = append(g.order, v.Name)
	}
}

func (g *reachGraph) addEdge(a, b *ir.IndexVar) {
	if a.Name == b.Name {
		return
	}
	g.touch(a)
	g.touch(b)
	if !hasEdge(g.adj[a.Name], b.Name) {
		g.adj[a.Name] = append(g.adj[a.Name], b.Name)
	}
	if !hasEdge(g.adj[b.Name], a.Name) {
		g.adj[b.Name] = append(g.adj[b.Name], a.Name)
	}
}

func hasEdge(adj []string, name string) bool {
	for _, n := range adj {
		if n == name {
			return true
		}
	}
	return false
}

// buildReachGraph walks the (already flattened, leaf-level) right-hand
// side of an index expression collecting IndexTupleUses and constructing
// G: the complete graph over each IndexedTensor's tuple of index
// variables, unioned across every tuple that occurs.
func buildReachGraph(rhs ir.Expr) *reachGraph {
	g := newReachGraph()
	var walk func(ir.Expr)
	walk = func(e ir.Expr) {
		switch x := e.(type) {
		case *ir.IndexedTensor:
			for _, iv := range x.Indices {
				g.touch(iv)
				g.uses[iv.Name] = append(g.uses[iv.Name], x)
			}
			for a := 0; a < len(x.Indices); a++ {
				for b := a + 1; b < len(x.Indices); b++ {
					g.addEdge(x.Indices[a], x.Indices[b])
				}
			}
		case *ir.BinaryExpr:
			walk(x.X)
			walk(x.Y)
		case *ir.UnaryExpr:
			walk(x.X)
		case *ir.Call:
			for _, a := range x.Args {
				walk(a)
			}
		}
	}
	walk(rhs)
	return g
}
