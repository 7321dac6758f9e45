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

package visit

import "github.com/simit-lang/midend/ir"

// RewriteFunc rewrites a single function's body with r and returns the
// (possibly new, possibly unchanged) function.
func RewriteFunc(r Rewriter, fn *ir.Func) *ir.Func {
	if fn.Opaque() {
		return fn
	}
	body := Rewrite(r, fn.Body)
	if body == fn.Body {
		return fn
	}
	return fn.WithBody(body.(ir.Stmt))
}

// FuncRewriter builds the Rewriter used to rewrite one function's body.
// Pipeline passes that need no additional per-call state can ignore the
// *ir.Func argument.
type FuncRewriter func(fn *ir.Func) Rewriter

// RewriteCallGraph applies rewrite to fn and, transitively, to the body
// of every distinct Internal function reachable from fn through Call
// nodes, visiting each such function exactly once. This generalizes
// original_source/src/lower/lower.cpp's rewriteCallGraph helper (there a
// C++ IRRewriterCallGraph subclass) into a Go closure over Rewriter.
//
// rewrite is applied bottom-up: a callee's body is rewritten, and the
// result handed to rewrite, before the caller's own body (which embeds
// calls to the callee) is processed.
func RewriteCallGraph(fn *ir.Func, newRewriter FuncRewriter, rewrite func(*ir.Func) (*ir.Func, error)) (*ir.Func, error) {
	visited := map[*ir.Func]*ir.Func{}
	return rewriteCallGraph(fn, newRewriter, rewrite, visited)
}

func rewriteCallGraph(fn *ir.Func, newRewriter FuncRewriter, rewrite func(*ir.Func) (*ir.Func, error), visited map[*ir.Func]*ir.Func) (*ir.Func, error) {
	if done, ok := visited[fn]; ok {
		return done, nil
	}
	if fn.Opaque() {
		visited[fn] = fn
		return fn, nil
	}

	// Resolve and rewrite every distinct internal callee first, in the
	// order their Call nodes are first encountered (matches source order
	// in the uncommon case where that matters for diagnostics ordering).
	callees := collectInternalCallees(fn)
	calleeSubst := map[*ir.Func]*ir.Func{}
	for _, callee := range callees {
		newCallee, err := rewriteCallGraph(callee, newRewriter, rewrite, visited)
		if err != nil {
			return nil, err
		}
		if newCallee != callee {
			calleeSubst[callee] = newCallee
		}
	}

	body := fn.Body
	if len(calleeSubst) > 0 {
		body = Rewrite(substituteCallees(calleeSubst), body).(ir.Stmt)
	}
	working := fn
	if body != fn.Body {
		working = fn.WithBody(body)
	}

	rewritten := RewriteFunc(newRewriter(working), working)
	result, err := rewrite(rewritten)
	if err != nil {
		return nil, err
	}
	visited[fn] = result
	return result, nil
}

// collectInternalCallees returns, in first-encountered order, every
// distinct Internal function called from fn's body.
func collectInternalCallees(fn *ir.Func) []*ir.Func {
	var order []*ir.Func
	seen := map[*ir.Func]bool{}
	Walk(calleeCollector{seen: seen, order: &order}, fn.Body)
	return order
}

type calleeCollector struct {
	seen  map[*ir.Func]bool
	order *[]*ir.Func
}

func (c calleeCollector) Visit(n ir.Node) Visitor {
	if call, ok := n.(*ir.Call); ok && call.Callee.Kind == ir.Internal {
		if !c.seen[call.Callee] {
			c.seen[call.Callee] = true
			*c.order = append(*c.order, call.Callee)
		}
	}
	return c
}

// substituteCallees returns a Rewriter that replaces Call nodes targeting
// a function in subst with a Call to its replacement.
func substituteCallees(subst map[*ir.Func]*ir.Func) Rewriter {
	return calleeSubstituter{subst: subst}
}

type calleeSubstituter struct {
	subst map[*ir.Func]*ir.Func
}

func (s calleeSubstituter) Rewrite(n ir.Node) (ir.Node, Rewriter) {
	call, ok := n.(*ir.Call)
	if !ok {
		return n, s
	}
	newCallee, ok := s.subst[call.Callee]
	if !ok {
		return n, s
	}
	return ir.NewCall(newCallee, call.Typ, call.Args...), s
}

// WalkCallGraph visits fn and, transitively, every distinct Internal
// function reachable from it, exactly once each, generalizing
// lower.cpp's visitCallGraph.
func WalkCallGraph(fn *ir.Func, visitRule func(*ir.Func)) {
	visited := map[*ir.Func]bool{}
	walkCallGraph(fn, visitRule, visited)
}

func walkCallGraph(fn *ir.Func, visitRule func(*ir.Func), visited map[*ir.Func]bool) {
	if visited[fn] {
		return
	}
	visited[fn] = true
	if !fn.Opaque() {
		for _, callee := range collectInternalCallees(fn) {
			walkCallGraph(callee, visitRule, visited)
		}
	}
	visitRule(fn)
}
