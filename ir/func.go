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

package ir

// FuncKind distinguishes a function with a body to lower from one that is
// opaque to rewriting (spec §3.4).
type FuncKind int

// Kinds of function.
const (
	// Internal functions have a body and are rewritten by every pass.
	Internal FuncKind = iota
	// External functions are implemented outside the DSL (e.g. by the
	// runtime) and have no body.
	External
	// Intrinsic functions are part of the fixed intrinsic set and have no
	// body.
	Intrinsic
)

func (k FuncKind) String() string {
	switch k {
	case External:
		return "external"
	case Intrinsic:
		return "intrinsic"
	default:
		return "internal"
	}
}

// Environment is the set of global variables visible to a function
// (spec §3.4).
type Environment struct {
	Globals []*Var
}

// NewEnvironment returns an environment exposing the given globals.
func NewEnvironment(globals ...*Var) *Environment {
	return &Environment{Globals: globals}
}

func (*Environment) node() {}

// Lookup finds a global by name.
func (e *Environment) Lookup(name string) (*Var, bool) {
	for _, g := range e.Globals {
		if g.Name == name {
			return g, true
		}
	}
	return nil, false
}

// Func is a compiled unit: a name, an ordered argument list, an ordered
// result list, a body, an environment of globals, a kind, and a storage
// map (spec §3.4). External and Intrinsic functions have Body == nil and
// are opaque to rewriting (spec §4.1).
//
// A Func is immutable once built: every pass that changes a function
// returns a new *Func via With* rather than mutating the receiver, which
// is what makes "no pass mutates its input" (spec §2) hold structurally.
type Func struct {
	Name    string
	Args    []*Var
	Results []*Var
	Body    Stmt
	Env     *Environment
	Kind    FuncKind
	Storage StorageMap
}

// StorageMap is the minimal interface the ir package needs from a
// function's storage map: enough to print it, without ir depending on the
// storage package (storage depends
// on ir, not the other way around, per SPEC_FULL.md).
type StorageMap interface {
	String() string
}

// NewFunc returns an Internal function with the given shape and no
// storage map assigned yet.
func NewFunc(name string, args, results []*Var, body Stmt, env *Environment) *Func {
	return &Func{Name: name, Args: args, Results: results, Body: body, Env: env, Kind: Internal}
}

// NewOpaqueFunc returns an External or Intrinsic function: a signature
// with no body.
func NewOpaqueFunc(name string, kind FuncKind, args, results []*Var) *Func {
	if kind == Internal {
		panic("ir: NewOpaqueFunc called with kind Internal")
	}
	return &Func{Name: name, Args: args, Results: results, Kind: kind}
}

func (*Func) node() {}

// WithBody returns a copy of f with a new body, used by every rewrite
// pass to produce a new function without mutating f.
func (f *Func) WithBody(body Stmt) *Func {
	nf := *f
	nf.Body = body
	return &nf
}

// WithStorage returns a copy of f with a new storage map.
func (f *Func) WithStorage(storage StorageMap) *Func {
	nf := *f
	nf.Storage = storage
	return &nf
}

// Opaque reports whether the function has no body to rewrite
// (spec §4.1: "an External or Intrinsic function... is opaque to
// rewriting").
func (f *Func) Opaque() bool { return f.Kind != Internal }

func (f *Func) String() string {
	return f.Kind.String() + " func " + f.Name
}

// Backend selects which lowering pipeline branch runs (spec §9, replacing
// the source's global kBackend with an explicit configuration value).
type Backend int

// Recognized backends.
const (
	Cpu Backend = iota
	Gpu
)

func (b Backend) String() string {
	if b == Gpu {
		return "gpu"
	}
	return "cpu"
}
