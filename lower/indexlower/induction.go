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
	"strings"

	"github.com/simit-lang/midend/ir"
	"github.com/simit-lang/midend/lower"
	"github.com/simit-lang/midend/storage"
)

// inductionInfo is what spec §4.6.3 allocates for one loop: the integer
// induction variable itself and, for a Sparse loop, one coordinate
// induction variable per SystemReduced tensor use of that loop's
// variable, keyed by the IndexedTensor occurrence it walks.
type inductionInfo struct {
	Induction *ir.Var
	// Coords holds one coordinate induction variable per SystemReduced
	// tensor use of this loop's variable, in the order those uses were
	// first discovered (tuple declaration order, spec §4.6.1).
	Coords []coordBinding
}

// coordBinding associates a coordinate induction variable with the
// specific IndexedTensor occurrence it walks, so substitution can tell
// "this read is of the SystemReduced tensor itself, address it by its
// own compressed-array pointer" apart from "this read merely shares the
// loop variable, address it by the merged coordinate value".
type coordBinding struct {
	Use *ir.IndexedTensor
	Var *ir.Var
}

func (info *inductionInfo) coordFor(use *ir.IndexedTensor) (*ir.Var, bool) {
	for _, b := range info.Coords {
		if b.Use == use {
			return b.Var, true
		}
	}
	return nil, false
}

// classifySparse reports every index variable with a SystemReduced user,
// found by inspecting, for every tensor use of each variable, the
// underlying variable's storage descriptor. dfs makes the loop of such a
// variable Sparse only when that loop has a parent in the nest.
func classifySparse(g *reachGraph, sm *storage.Map) map[string]bool {
	out := map[string]bool{}
	if sm == nil {
		return out
	}
	for name, uses := range g.uses {
		for _, t := range uses {
			v, ok := t.TensorVar()
			if !ok {
				continue
			}
			if _, isReduced := sm.Get(v).(storage.SystemReduced); isReduced {
				out[name] = true
				break
			}
		}
	}
	return out
}

// allocateInduction walks nodes (in any order) allocating one integer
// induction variable per loop and, for Sparse loops, one coordinate
// induction variable per SystemReduced tensor use, named by
// concatenating the tensor's index-variable names and its own name
// (spec §4.6.3).
func allocateInduction(nodes []*loopNode, gen *lower.NameGen, uses map[string][]*ir.IndexedTensor, sm *storage.Map) map[*loopNode]*inductionInfo {
	out := map[*loopNode]*inductionInfo{}
	for _, n := range nodes {
		info := &inductionInfo{
			Induction: ir.NewVar(gen.Fresh(n.Name), inductionType(n.Var)),
		}
		if n.Kind == sparse {
			for _, t := range uses[n.Name] {
				v, ok := t.TensorVar()
				if !ok {
					continue
				}
				if sm != nil {
					if _, isReduced := sm.Get(v).(storage.SystemReduced); !isReduced {
						continue
					}
				}
				info.Coords = append(info.Coords, coordBinding{
					Use: t,
					Var: ir.NewVar(gen.Fresh(coordName(t, v)), ir.IntType()),
				})
			}
		}
		out[n] = info
	}
	return out
}

// coordName concatenates the tensor's index-variable names and its own
// variable name, per spec §4.6.3.
func coordName(t *ir.IndexedTensor, v *ir.Var) string {
	var b strings.Builder
	for _, iv := range t.Indices {
		b.WriteString(iv.Name)
		b.WriteString("_")
	}
	b.WriteString(v.Name)
	return b.String()
}

// inductionType picks the domain-appropriate type for iv's loop variable:
// the element type when the domain is a set, Int otherwise.
func inductionType(iv *ir.IndexVar) ir.Type {
	if d, ok := iv.FirstDomain().(*ir.SetDomain); ok {
		return d.Set.Element
	}
	return ir.IntType()
}
