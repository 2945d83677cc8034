// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package graph

import (
	"github.com/saferwall/dcegraph/internal/log"
)

// AssemblyGraph is the mutable builder for a symbol reference graph. Record*
// and MergeAssembly calls accumulate state; Done runs graph completion
// exactly once and returns a read-only Reporter over the result. Every
// Record* and MergeAssembly call after Done returns ErrFinalized; a repeated
// Done returns the same Reporter.
type AssemblyGraph struct {
	arena    *Arena
	registry *Registry
	logger   *log.Helper

	rootAssemblies           map[string]struct{}
	testMethodAttributes     map[string]struct{}
	reflectionMarkerAttrs    map[string]struct{}
	reflectionSymbols        map[string]map[string]struct{} // assembly -> symbol name

	assembliesSinceTrim int

	// cachedLayers and cachedDiagramEdges are computed once during
	// completion, before derived-link synthesis adds virtual-dispatch edges
	// that would otherwise fold the assembly dependency graph back on
	// itself.
	cachedLayers       [][]string
	cachedDiagramEdges []diagramEdge

	finalized bool
	reporter  *Reporter
}

// Option configures a new AssemblyGraph.
type Option func(*AssemblyGraph)

// WithLogger overrides the graph's logger. Without this option, a graph logs
// nothing.
func WithLogger(logger *log.Helper) Option {
	return func(g *AssemblyGraph) { g.logger = logger }
}

// New returns an empty, mutable AssemblyGraph.
func New(opts ...Option) *AssemblyGraph {
	g := &AssemblyGraph{
		arena:                 NewArena(),
		registry:              NewRegistry(),
		rootAssemblies:        make(map[string]struct{}),
		testMethodAttributes:  make(map[string]struct{}),
		reflectionMarkerAttrs: make(map[string]struct{}),
		reflectionSymbols:     make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RecordRootAssembly names an assembly whose public surface is considered
// reachable regardless of whether anything else in the scanned set
// references it (an executable's own entry assembly, a plugin host's
// extension-point assembly, and so on).
func (g *AssemblyGraph) RecordRootAssembly(name string) error {
	if g.finalized {
		return ErrFinalized
	}
	g.rootAssemblies[name] = struct{}{}
	if asm := g.registry.Lookup(name); asm != nil {
		asm.root = true
	}
	return nil
}

// RecordTestMethodAttribute names a custom attribute full name (e.g.
// "Xunit.FactAttribute") that marks a method as a test entry point, and
// therefore a root, whenever it is applied.
func (g *AssemblyGraph) RecordTestMethodAttribute(fullName string) error {
	if g.finalized {
		return ErrFinalized
	}
	g.testMethodAttributes[fullName] = struct{}{}
	return nil
}

// RecordReflectionMarkerAttribute names a custom attribute full name (e.g.
// a DI framework's [Inject]) that marks whatever it is applied to, and
// everything that symbol's declaring type exposes, as reachable through
// reflection.
func (g *AssemblyGraph) RecordReflectionMarkerAttribute(fullName string) error {
	if g.finalized {
		return ErrFinalized
	}
	g.reflectionMarkerAttrs[fullName] = struct{}{}
	return nil
}

// RecordReflectionSymbol names a specific symbol (by assembly and canonical
// name) known from outside the binaries themselves to be reached
// reflectively, e.g. from a config file naming a type to instantiate.
func (g *AssemblyGraph) RecordReflectionSymbol(assemblyName, symbolName string) error {
	if g.finalized {
		return ErrFinalized
	}
	if g.reflectionSymbols[assemblyName] == nil {
		g.reflectionSymbols[assemblyName] = make(map[string]struct{})
	}
	g.reflectionSymbols[assemblyName][symbolName] = struct{}{}
	return nil
}

// MergeAssembly ingests one binary. It returns merged == false, err == nil
// when the assembly name was already merged (a legitimate duplicate, not an
// error); the duplicate sighting is still recorded for reporting.
func (g *AssemblyGraph) MergeAssembly(bin BinaryHandle) (merged bool, err error) {
	if g.finalized {
		return false, ErrFinalized
	}
	merged, err = g.mergeAssembly(bin)
	if g.logger != nil {
		if err != nil {
			g.logger.Errorf("merge %s: %v", bin.AssemblyName(), err)
		} else if !merged {
			g.logger.Debugf("merge %s: duplicate, recorded", bin.AssemblyName())
		} else {
			g.logger.Infof("merge %s: %d types", bin.AssemblyName(), len(bin.Types()))
		}
	}
	return merged, err
}

func (g *AssemblyGraph) isTestMethodAttribute(fullName string) bool {
	_, ok := g.testMethodAttributes[fullName]
	return ok
}

func (g *AssemblyGraph) isReflectionMarkerAttribute(fullName string) bool {
	_, ok := g.reflectionMarkerAttrs[fullName]
	return ok
}

// Done freezes the graph, running completion exactly once, and returns a
// Reporter over the result. It is idempotent: a second call returns the same
// Reporter without re-running completion.
func (g *AssemblyGraph) Done() (*Reporter, error) {
	if g.reporter != nil {
		return g.reporter, nil
	}
	g.finalized = true
	g.complete()
	g.reporter = newReporter(g)
	return g.reporter, nil
}
