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

// Package pipeline composes every lowering pass into the fixed ordered
// sequence of spec §2/§4, mirroring original_source/src/lower/lower.cpp's
// top-level lower() driver: one rewriteCallGraph per pass, stopping at the
// first pass whose diagnostics fail rather than letting a later pass see
// a partially mutated function.
package pipeline

import (
	"io"

	"github.com/simit-lang/midend/diag"
	"github.com/simit-lang/midend/ir"
	"github.com/simit-lang/midend/ir/visit"
	"github.com/simit-lang/midend/lower"
	"github.com/simit-lang/midend/lower/access"
	"github.com/simit-lang/midend/lower/flatten"
	"github.com/simit-lang/midend/lower/gpu"
	"github.com/simit-lang/midend/lower/indexlower"
	"github.com/simit-lang/midend/lower/maps"
	"github.com/simit-lang/midend/lower/storageinfer"
	"github.com/simit-lang/midend/lower/temps"
	"github.com/simit-lang/midend/printer"
	"github.com/simit-lang/midend/storage"
)

// GPUConfig selects which outer loops are sharded for the Gpu backend
// (spec §4.8, §9).
type GPUConfig struct {
	ShardDims []ir.ShardDim
}

// Config selects the backend and controls tracing, replacing the
// source's global kBackend (spec §9) with an explicit value threaded
// through the driver rather than read from a package-level variable.
type Config struct {
	Backend ir.Backend
	GPU     *GPUConfig
	// Verbose prints fn's call graph through printer.PrintCallGraph
	// after every pass, the way the source's lower() calls
	// printCallGraph when its own verbose flag is set.
	Verbose bool
	// Trace receives the printed call graph after each pass when
	// Verbose is set; nil disables printing even if Verbose is true.
	Trace io.Writer
}

// Lower runs fn through every pass in order, returning the final
// function and the Appender accumulating every diagnostic raised along
// the way (spec §5, §6.4). It stops after the first pass whose
// diagnostics Failed(), without running any later pass; the returned
// *ir.Func is then the last successfully produced one, and the caller
// should treat a non-nil Failed() Appender as "do not trust this fn".
func Lower(fn *ir.Func, cfg Config) (*ir.Func, *diag.Appender) {
	appender := diag.NewAppender()
	gen := lower.NewNameGen()

	fn = runPass(fn, appender, "flatten", func(f *ir.Func) (*ir.Func, error) {
		return flatten.Flatten(f, gen)
	}, cfg)
	if appender.Failed() {
		return fn, appender
	}

	fn = runPass(fn, appender, "temps", func(f *ir.Func) (*ir.Func, error) {
		return temps.Insert(f, gen)
	}, cfg)
	if appender.Failed() {
		return fn, appender
	}

	fn = runPass(fn, appender, "storageinfer", func(f *ir.Func) (*ir.Func, error) {
		return storageinfer.Run(f, appender)
	}, cfg)
	if appender.Failed() {
		return fn, appender
	}

	fn = runPass(fn, appender, "maps", func(f *ir.Func) (*ir.Func, error) {
		return maps.Lower(f, gen, appender)
	}, cfg)
	if appender.Failed() {
		return fn, appender
	}

	coordsByFunc := map[*ir.Func]indexlower.Coords{}
	fn = runPass(fn, appender, "indexlower", func(f *ir.Func) (*ir.Func, error) {
		newF, coords, err := indexlower.Lower(f, gen, appender)
		if err != nil {
			return nil, err
		}
		coordsByFunc[newF] = coords
		return newF, nil
	}, cfg)
	if appender.Failed() {
		return fn, appender
	}

	fn = runPass(fn, appender, "access", func(f *ir.Func) (*ir.Func, error) {
		sm, _ := f.Storage.(*storage.Map)
		return access.Lower(f, sm, access.Coords(coordsByFunc[f]), appender)
	}, cfg)
	if appender.Failed() {
		return fn, appender
	}

	if cfg.Backend == ir.Gpu {
		dims := dimsOf(cfg.GPU)
		fn = runPass(fn, appender, "gpu", func(f *ir.Func) (*ir.Func, error) {
			return gpu.Shard(f, dims, appender)
		}, cfg)
	}
	return fn, appender
}

func dimsOf(cfg *GPUConfig) []ir.ShardDim {
	if cfg == nil {
		return nil
	}
	return cfg.ShardDims
}

// runPass runs one pass across fn's whole call graph via
// visit.RewriteCallGraph, prefixing diagnostics raised without an
// explicit origin with name (diag.Appender.Push/Pop), and prints the
// resulting call graph through printer.PrintCallGraph when cfg.Verbose.
// A pass error is itself appended as an Internal diagnostic if it did
// not already append one (an unexpected Go error rather than a
// *diag.Diagnostic), so Failed() always reflects every abort.
func runPass(fn *ir.Func, appender *diag.Appender, name string, pass func(*ir.Func) (*ir.Func, error), cfg Config) *ir.Func {
	appender.Push(name)
	defer appender.Pop()

	result, err := visit.RewriteCallGraph(fn, identityRewriter, pass)
	if err != nil {
		if _, ok := err.(*diag.Diagnostic); !ok {
			appender.Internalf(diag.Origin{Func: name}, "%v", diag.Wrap(err, name))
		}
		return fn
	}
	if cfg.Verbose && cfg.Trace != nil {
		printer.PrintCallGraph(cfg.Trace, result)
	}
	return result
}

func identityRewriter(*ir.Func) visit.Rewriter { return identity{} }

// identity is a no-op visit.Rewriter: runPass only needs
// visit.RewriteCallGraph for its call-graph traversal and memoization,
// not for any node-level rewriting of its own, since every pass already
// does its own body rewrite before returning.
type identity struct{}

func (identity) Rewrite(n ir.Node) (ir.Node, visit.Rewriter) { return n, nil }
