// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package graph

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
)

// SymbolEntry is one row in a dead/alive report: a symbol's name, its most
// precise kind label (a Type's own TypeKind rather than the generic "Type"),
// and its declared access tier.
type SymbolEntry struct {
	Name   string
	Kind   string
	Access string
}

// AliveEntry is one row in the alive or alive-by-test report: a symbol plus
// the sorted names of the other live symbols that keep it reachable.
type AliveEntry struct {
	SymbolEntry
	Dependents []string
}

// AssemblyDeadReport is the per-assembly dead-symbols projection.
type AssemblyDeadReport struct {
	Assembly   string
	DeadTypes  []SymbolEntry
	DeadMembers []SymbolEntry
}

// AssemblyAliveReport is the per-assembly alive (or alive-by-test)
// projection.
type AssemblyAliveReport struct {
	Assembly     string
	AliveTypes   []AliveEntry
	AliveMembers []AliveEntry
}

// AssemblyPublicReport is the per-assembly needlessly-public projection.
type AssemblyPublicReport struct {
	Assembly string
	Types    []SymbolEntry
	Members  []SymbolEntry
}

// DuplicateAssemblyReport is one assembly name that was merged more than
// once.
type DuplicateAssemblyReport struct {
	Assembly   string
	Version    string
	Duplicates []DuplicateObservation
}

// NeedlessIVTReport is one assembly's InternalsVisibleTo grants that no
// referencer actually exercises.
type NeedlessIVTReport struct {
	Assembly string
	Needless []string
}

// diagramEdge is one directed assembly-to-assembly dependency edge, as drawn
// in the Mermaid dependency diagram.
type diagramEdge struct {
	from string
	to   string
}

// Reporter is the read-only view over a finalized AssemblyGraph. Every
// method is a pure projection: none of them mutate the graph.
type Reporter struct {
	g *AssemblyGraph
}

func newReporter(g *AssemblyGraph) *Reporter {
	return &Reporter{g: g}
}

func entryFor(sym *Symbol) SymbolEntry {
	return SymbolEntry{Name: sym.name, Kind: sym.kindLabel(), Access: sym.access.String()}
}

func (r *Reporter) loadedNonSystemAssembliesSorted() []*Assembly {
	var out []*Assembly
	for _, asm := range r.g.registry.All() {
		if asm.loaded && !asm.system {
			out = append(out, asm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func (r *Reporter) loadedAssembliesSorted() []*Assembly {
	var out []*Assembly
	for _, asm := range r.g.registry.All() {
		if asm.loaded {
			out = append(out, asm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func (r *Reporter) sortedSymbols(ids map[SymbolID]struct{}) []*Symbol {
	out := make([]*Symbol, 0, len(ids))
	for id := range ids {
		out = append(out, r.g.arena.Get(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// CollectDeadSymbols returns, per loaded non-system assembly with at least
// one finding, every Type that is neither hidden nor marked, and within
// every marked Type, every non-Type member that is neither hidden nor
// marked.
func (r *Reporter) CollectDeadSymbols() []AssemblyDeadReport {
	var out []AssemblyDeadReport
	for _, asm := range r.loadedNonSystemAssembliesSorted() {
		rep := AssemblyDeadReport{Assembly: asm.name}
		for _, sym := range r.sortedSymbols(asm.symbols) {
			if sym.kind != KindType {
				continue
			}
			if !sym.hide && !sym.marked {
				rep.DeadTypes = append(rep.DeadTypes, entryFor(sym))
			}
			if sym.marked {
				for _, member := range r.sortedSymbols(sym.typ.members) {
					if member.kind != KindType && !member.hide && !member.marked {
						rep.DeadMembers = append(rep.DeadMembers, entryFor(member))
					}
				}
			}
		}
		if len(rep.DeadTypes) > 0 || len(rep.DeadMembers) > 0 {
			out = append(out, rep)
		}
	}
	return out
}

func (r *Reporter) dependentsOf(sym *Symbol, filter func(*Symbol) bool) []string {
	var names []string
	for refID := range sym.referencers {
		ref := r.g.arena.Get(refID)
		if !ref.marked {
			continue
		}
		if filter != nil && !filter(ref) {
			continue
		}
		names = append(names, ref.name)
	}
	sort.Strings(names)
	return names
}

func (r *Reporter) collectAlive(filter func(*Symbol) bool) []AssemblyAliveReport {
	var out []AssemblyAliveReport
	for _, asm := range r.loadedAssembliesSorted() {
		rep := AssemblyAliveReport{Assembly: asm.name}
		for _, sym := range r.sortedSymbols(asm.symbols) {
			if sym.kind != KindType || !sym.marked {
				continue
			}
			if deps := r.dependentsOf(sym, filter); filter == nil || len(deps) > 0 {
				rep.AliveTypes = append(rep.AliveTypes, AliveEntry{SymbolEntry: entryFor(sym), Dependents: deps})
			}
			for _, member := range r.sortedSymbols(sym.typ.members) {
				if member.kind == KindType || !member.marked {
					continue
				}
				deps := r.dependentsOf(member, filter)
				if filter != nil && len(deps) == 0 {
					continue
				}
				rep.AliveMembers = append(rep.AliveMembers, AliveEntry{SymbolEntry: entryFor(member), Dependents: deps})
			}
		}
		if len(rep.AliveTypes) > 0 || len(rep.AliveMembers) > 0 {
			out = append(out, rep)
		}
	}
	return out
}

// CollectAliveSymbols returns, per loaded assembly, every marked Type (and
// its marked members), each annotated with the sorted set of marked
// referencer names that keep it alive.
func (r *Reporter) CollectAliveSymbols() []AssemblyAliveReport {
	return r.collectAlive(nil)
}

// CollectAliveByTest returns the same projection as CollectAliveSymbols but
// restricted to dependents that are themselves test methods, dropping any
// entry with no such dependent.
func (r *Reporter) CollectAliveByTest() []AssemblyAliveReport {
	return r.collectAlive(func(s *Symbol) bool {
		return s.kind == KindMethod && s.method != nil && s.method.isTestMethod
	})
}

// CollectNeedlesslyPublic returns, per loaded non-system assembly with at
// least one finding, every symbol that is public, not hidden, not a root,
// and referenced (if at all) only from within its own assembly.
func (r *Reporter) CollectNeedlesslyPublic() []AssemblyPublicReport {
	var out []AssemblyPublicReport
	for _, asm := range r.loadedNonSystemAssembliesSorted() {
		rep := AssemblyPublicReport{Assembly: asm.name}
		for _, sym := range r.sortedSymbols(asm.symbols) {
			if sym.hide || sym.root || !sym.isPublic {
				continue
			}
			onlyLocal := true
			for refID := range sym.referencers {
				if r.g.arena.Get(refID).assembly != sym.assembly {
					onlyLocal = false
					break
				}
			}
			if !onlyLocal {
				continue
			}
			entry := entryFor(sym)
			if sym.kind == KindType {
				rep.Types = append(rep.Types, entry)
			} else {
				rep.Members = append(rep.Members, entry)
			}
		}
		if len(rep.Types) > 0 || len(rep.Members) > 0 {
			out = append(out, rep)
		}
	}
	return out
}

// CollectUnreferencedAssemblies returns the sorted names of every loaded
// assembly with zero marked symbols.
func (r *Reporter) CollectUnreferencedAssemblies() []string {
	var out []string
	for _, asm := range r.loadedAssembliesSorted() {
		anyMarked := false
		for id := range asm.symbols {
			if r.g.arena.Get(id).marked {
				anyMarked = true
				break
			}
		}
		if !anyMarked {
			out = append(out, asm.name)
		}
	}
	return out
}

// CollectUnanalyzedAssemblies returns the sorted names of every assembly
// that was referenced but never loaded, excluding system assemblies and
// assemblies with no recorded symbols at all (pure phantom references).
func (r *Reporter) CollectUnanalyzedAssemblies() []string {
	var out []string
	for _, asm := range r.g.registry.All() {
		if asm.loaded || asm.system || asm.name == unhomedAssemblyName {
			continue
		}
		if len(asm.symbols) == 0 {
			continue
		}
		out = append(out, asm.name)
	}
	sort.Strings(out)
	return out
}

// CollectDuplicateAssemblies returns every loaded assembly that was merged
// from more than one binary, most-recent version first within the entry.
func (r *Reporter) CollectDuplicateAssemblies() []DuplicateAssemblyReport {
	var out []DuplicateAssemblyReport
	for _, asm := range r.loadedAssembliesSorted() {
		if len(asm.duplicates) == 0 {
			continue
		}
		dups := make([]DuplicateObservation, len(asm.duplicates))
		copy(dups, asm.duplicates)
		sort.Slice(dups, func(i, j int) bool {
			return compareAssemblyVersions(dups[i].Version, dups[j].Version) > 0
		})
		out = append(out, DuplicateAssemblyReport{Assembly: asm.name, Version: asm.version, Duplicates: dups})
	}
	return out
}

// compareAssemblyVersions orders two CLR assembly version strings
// (Major.Minor.Build.Revision) by normalizing them to the three-part form
// golang.org/x/mod/semver understands, falling back to an ordinal string
// compare for anything that does not parse as a dotted numeric version.
func compareAssemblyVersions(a, b string) int {
	na, oka := normalizeClrVersion(a)
	nb, okb := normalizeClrVersion(b)
	if oka && okb {
		return semver.Compare(na, nb)
	}
	return strings.Compare(a, b)
}

func normalizeClrVersion(v string) (string, bool) {
	parts := strings.Split(v, ".")
	if len(parts) < 2 || len(parts) > 4 {
		return "", false
	}
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	return "v" + strings.Join(parts[:3], "."), true
}

// CollectNeedlessInternalsVisibleTo returns, per loaded non-system assembly
// that grants InternalsVisibleTo, the sorted names of every grantee that
// never actually references a non-public symbol of the granting assembly.
func (r *Reporter) CollectNeedlessInternalsVisibleTo() []NeedlessIVTReport {
	var out []NeedlessIVTReport
	for _, asm := range r.loadedNonSystemAssembliesSorted() {
		if len(asm.internalsVisibleTo) == 0 {
			continue
		}
		var grantees []string
		for name := range asm.internalsVisibleTo {
			grantees = append(grantees, name)
		}
		sort.Strings(grantees)

		var needless []string
		for _, granteeName := range grantees {
			grantee := r.g.registry.Lookup(granteeName)
			if grantee == nil || !grantee.loaded {
				continue
			}
			if !r.granteeUsesInternals(asm, grantee) {
				needless = append(needless, granteeName)
			}
		}
		if len(needless) > 0 {
			out = append(out, NeedlessIVTReport{Assembly: asm.name, Needless: needless})
		}
	}
	return out
}

func (r *Reporter) granteeUsesInternals(owner, grantee *Assembly) bool {
	for symID := range owner.symbols {
		sym := r.g.arena.Get(symID)
		if sym.isPublic {
			continue
		}
		for refID := range sym.referencers {
			if r.g.arena.Get(refID).assembly == grantee.id {
				return true
			}
		}
	}
	return false
}

// AssemblyLayerCake returns the reverse-topological dependency layers
// computed during graph completion, before derived-link synthesis. Layer 0
// is the foundation (depended upon by everything else); the last layer
// holds the assemblies nothing else depends on. Unloaded assemblies are
// excluded from the returned names but were still used to compute the
// ordering.
func (r *Reporter) AssemblyLayerCake() [][]string {
	return r.g.cachedLayers
}

// DependencyDiagram renders the assembly dependency graph computed during
// completion as a Mermaid stateDiagram-v2 document.
func (r *Reporter) DependencyDiagram() string {
	var b strings.Builder
	b.WriteString("stateDiagram-v2\n")
	for _, e := range r.g.cachedDiagramEdges {
		fmt.Fprintf(&b, "    %s --> %s\n", mermaidSafe(e.from), mermaidSafe(e.to))
	}
	return b.String()
}

func mermaidSafe(name string) string {
	return strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(name)
}

// computeLayerCakeAndDiagram builds the full assembly dependency graph
// (including unloaded assemblies, so transitive dependencies propagate
// through them) and peels it into layers by iteratively removing assemblies
// with no remaining dependents. The raw peel order puts the least-depended-
// upon assemblies (typically an entry-point executable) first; that is
// reversed before caching so layer 0 is the foundation and cross-assembly
// edges run from higher-indexed (consumer) layers to lower-indexed
// (foundation) layers, matching the diagram's intuitive reading order.
func (g *AssemblyGraph) computeLayerCakeAndDiagram() {
	dependsOn := make(map[AssemblyID]map[AssemblyID]struct{})
	dependents := make(map[AssemblyID]map[AssemblyID]struct{})
	var allIDs []AssemblyID

	for _, asm := range g.registry.All() {
		if asm.name == unhomedAssemblyName {
			continue
		}
		allIDs = append(allIDs, asm.id)
		dependsOn[asm.id] = make(map[AssemblyID]struct{})
	}
	for _, asm := range g.registry.All() {
		if asm.name == unhomedAssemblyName {
			continue
		}
		for symID := range asm.symbols {
			sym := g.arena.Get(symID)
			for refID := range sym.referencedSymbols {
				ref := g.arena.Get(refID)
				if ref.assembly == asm.id || ref.assembly == invalidAssembly {
					continue
				}
				if g.registry.Get(ref.assembly).name == unhomedAssemblyName {
					continue
				}
				dependsOn[asm.id][ref.assembly] = struct{}{}
			}
		}
	}
	for id, deps := range dependsOn {
		for dep := range deps {
			if dependents[dep] == nil {
				dependents[dep] = make(map[AssemblyID]struct{})
			}
			dependents[dep][id] = struct{}{}
		}
	}

	remaining := make(map[AssemblyID]struct{}, len(allIDs))
	for _, id := range allIDs {
		remaining[id] = struct{}{}
	}

	var peelOrder [][]AssemblyID
	for len(remaining) > 0 {
		var layer []AssemblyID
		for id := range remaining {
			if len(dependents[id]) == 0 {
				layer = append(layer, id)
			}
		}
		if len(layer) == 0 {
			// A residual cycle (should not occur given the graph's
			// invariants, but peeling the rest as one layer keeps this
			// terminating and every assembly accounted for).
			for id := range remaining {
				layer = append(layer, id)
			}
		}
		sort.Slice(layer, func(i, j int) bool { return g.registry.Get(layer[i]).name < g.registry.Get(layer[j]).name })
		peelOrder = append(peelOrder, layer)
		for _, id := range layer {
			delete(remaining, id)
			for _, dep := range sortedAssemblyIDs(dependsOn[id]) {
				delete(dependents[dep], id)
			}
		}
	}

	g.cachedLayers = nil
	for i := len(peelOrder) - 1; i >= 0; i-- {
		var names []string
		for _, id := range peelOrder[i] {
			if g.registry.Get(id).loaded {
				names = append(names, g.registry.Get(id).name)
			}
		}
		if len(names) > 0 {
			g.cachedLayers = append(g.cachedLayers, names)
		}
	}

	g.cachedDiagramEdges = nil
	var ids []AssemblyID
	for _, id := range allIDs {
		if g.registry.Get(id).loaded {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return g.registry.Get(ids[i]).name < g.registry.Get(ids[j]).name })
	for _, id := range ids {
		targets := sortedAssemblyIDs(dependsOn[id])
		for _, tID := range targets {
			if g.registry.Get(tID).loaded {
				g.cachedDiagramEdges = append(g.cachedDiagramEdges, diagramEdge{from: g.registry.Get(id).name, to: g.registry.Get(tID).name})
			}
		}
	}
}

// WhyLive explains why a marked symbol survived the reachability sweep: it
// returns the chain of symbol names from a root down to symbolName, each
// entry referencing the next. The bool result is false only when no symbol
// with that name was ever merged into the graph; a dead symbol that exists
// returns (nil, true) since it has no live chain to report.
func (r *Reporter) WhyLive(symbolName string) ([]string, bool) {
	sym := r.findSymbolByName(symbolName)
	if sym == nil {
		return nil, false
	}
	if !sym.marked {
		return nil, true
	}
	if sym.root {
		return []string{sym.name}, true
	}

	// BFS backward from sym through its referencers (the symbols that call
	// or mention it) until a root symbol is reached. visited maps a symbol
	// to the neighbor discovered immediately before it, i.e. one step closer
	// to sym, so walking from the discovered root back through visited
	// yields the chain in root-to-sym order directly.
	visited := map[SymbolID]SymbolID{sym.id: invalidSymbol}
	queue := []SymbolID{sym.id}
	root := invalidSymbol

	for len(queue) > 0 && root == invalidSymbol {
		cur := queue[0]
		queue = queue[1:]
		for refID := range r.g.arena.Get(cur).referencers {
			if _, seen := visited[refID]; seen {
				continue
			}
			visited[refID] = cur
			if r.g.arena.Get(refID).root {
				root = refID
				break
			}
			queue = append(queue, refID)
		}
	}

	if root == invalidSymbol {
		return []string{sym.name}, true
	}

	var chain []string
	for id := root; id != invalidSymbol; id = visited[id] {
		chain = append(chain, r.g.arena.Get(id).name)
	}
	return chain, true
}

// findSymbolByName returns the first symbol in the arena whose canonical
// name matches, preferring a marked one if more than one assembly declares
// a same-named symbol (the common case for --whylive: the caller is asking
// about the live copy).
func (r *Reporter) findSymbolByName(name string) *Symbol {
	var unmarked *Symbol
	for i := 1; i <= r.g.arena.Len(); i++ {
		sym := r.g.arena.Get(SymbolID(i))
		if sym.name != name {
			continue
		}
		if sym.marked {
			return sym
		}
		if unmarked == nil {
			unmarked = sym
		}
	}
	return unmarked
}

func sortedAssemblyIDs(ids map[AssemblyID]struct{}) []AssemblyID {
	out := make([]AssemblyID, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
