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

// loopKind is the storage-pattern axis of spec §4.6.2: a loop is Sparse,
// walking a compressed neighbour list under its DFS parent, when its
// variable has a SystemReduced user and the loop has a parent; every other
// loop, including every root of the nest, is Dense. This is independent of
// whether the variable is free or reducible (the summation axis, spec
// §4.6.5).
type loopKind int

const (
	dense loopKind = iota
	sparse
)

// loopNode is one level of the loop nest: the index variable it binds,
// its storage-pattern kind, and its position in the DFS spanning forest.
type loopNode struct {
	Name     string
	Var      *ir.IndexVar
	Kind     loopKind
	Parent   *loopNode
	Children []*loopNode
}

// buildLoopNest runs the DFS of spec §4.6.2 over G, starting from each
// free variable in declared order. Graph components not reachable from
// any free variable (a tensor subscripted solely by reducible variables
// sharing no tuple with a free one) are chained onto the end of the
// previous tree rather than started as independent top-level roots, so
// that "the visit order defines the enclosing-to-innermost loop order"
// holds for the statement as a whole and not just within one component.
func buildLoopNest(g *reachGraph, free []*ir.IndexVar, sparseVars map[string]bool) *loopNode {
	visited := map[string]bool{}
	var root *loopNode
	var tail *loopNode

	attach := func(start string) {
		var parent *loopNode
		if tail != nil {
			parent = tail
		}
		n := dfs(g, start, parent, visited, sparseVars)
		if parent != nil {
			parent.Children = append(parent.Children, n)
		} else {
			root = n
		}
		tail = deepestLast(n)
	}

	for _, f := range free {
		if visited[f.Name] {
			continue
		}
		attach(f.Name)
	}
	for _, name := range g.order {
		if visited[name] {
			continue
		}
		attach(name)
	}
	return root
}

func dfs(g *reachGraph, name string, parent *loopNode, visited map[string]bool, sparseVars map[string]bool) *loopNode {
	visited[name] = true
	kind := dense
	if sparseVars[name] && parent != nil {
		kind = sparse
	}
	n := &loopNode{Name: name, Var: g.canon[name], Kind: kind, Parent: parent}
	for _, nb := range g.adj[name] {
		if visited[nb] {
			continue
		}
		child := dfs(g, nb, n, visited, sparseVars)
		n.Children = append(n.Children, child)
	}
	return n
}

// deepestLast follows the last child at every level, the attachment
// point for the next disconnected component.
func deepestLast(n *loopNode) *loopNode {
	for len(n.Children) > 0 {
		n = n.Children[len(n.Children)-1]
	}
	return n
}

// preorder returns every node of the tree rooted at n in DFS preorder.
func preorder(n *loopNode) []*loopNode {
	if n == nil {
		return nil
	}
	out := []*loopNode{n}
	for _, c := range n.Children {
		out = append(out, preorder(c)...)
	}
	return out
}

// freeDescendants returns, in DFS preorder, every free-variable node in
// n's subtree (n itself included if it is free).
func freeDescendants(n *loopNode) []*loopNode {
	var out []*loopNode
	for _, d := range preorder(n) {
		if !d.Var.Reducible() {
			out = append(out, d)
		}
	}
	return out
}

// isReductionRoot reports whether n is the outermost variable of a
// maximal chain of reducible loops: n itself sums, and its parent (if
// any) does not.
func isReductionRoot(n *loopNode) bool {
	if !n.Var.Reducible() {
		return false
	}
	return n.Parent == nil || !n.Parent.Var.Reducible()
}
