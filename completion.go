// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package graph

import "sort"

// wellKnownSystemMembers seeds method symbols the runtime invokes implicitly
// (enumerator protocol, disposal, async state machines, object identity)
// onto system types that were referenced but never loaded, so that
// application code overriding or implementing them is not mistaken for dead.
// It only fires for a type symbol that already exists (something in the
// scanned set named it); it never manufactures an otherwise-unreferenced
// system type out of nothing.
var wellKnownSystemMembers = map[string][]string{
	"System.IDisposable":                     {"Dispose()"},
	"System.Collections.IEnumerable":         {"GetEnumerator()"},
	"System.Collections.IEnumerator":         {"MoveNext()", "get_Current()", "Reset()"},
	"System.Runtime.CompilerServices.IAsyncStateMachine": {"MoveNext()", "SetStateMachine(IAsyncStateMachine)"},
	"System.Object":                          {"ToString()", "GetHashCode()", "Equals(Object)"},
}

// complete runs the one-shot, idempotent finalization pass: it must only
// ever be invoked once per graph, from Done.
func (g *AssemblyGraph) complete() {
	g.arena.TrimExcess()
	g.seedSystemTypes()
	g.computeLayerCakeAndDiagram()
	g.resolveUnhomedReferences()
	g.synthesizeDerivedLinks()
	g.propagateReflectionTargets()
	g.seedRootAssemblySurface()
	g.markRoots()
	g.preserveConstantHolders()
}

// seedRootAssemblySurface marks every public symbol of a root assembly as a
// root, regardless of whether RecordRootAssembly was called before or after
// that assembly was merged.
func (g *AssemblyGraph) seedRootAssemblySurface() {
	for _, asm := range g.registry.All() {
		if !asm.loaded || !asm.root {
			continue
		}
		for symID := range asm.symbols {
			sym := g.arena.Get(symID)
			if sym.isPublic {
				sym.root = true
			}
		}
	}
}

func (g *AssemblyGraph) seedSystemTypes() {
	for _, asm := range g.registry.All() {
		if asm.loaded || !asm.system {
			continue
		}
		idx := g.registry.indexes[asm.id]
		for typeName, members := range wellKnownSystemMembers {
			id, ok := idx[symbolKey{name: typeName, kind: KindType}]
			if !ok {
				continue
			}
			typeSym := g.arena.Get(id)
			for _, memberName := range members {
				memberID := g.registry.Intern(g.arena, asm.id, memberName, KindMethod)
				memberSym := g.arena.Get(memberID)
				memberSym.method.isOverridable = true
				typeSym.typ.members[memberID] = struct{}{}
			}
		}
	}
}

// resolveUnhomedReferences attempts to redirect every placeholder symbol
// recorded in the unhomed pseudo-assembly onto a real, loaded method symbol
// of the same canonical name. Assemblies are searched in name order so the
// result does not depend on merge order. The pseudo-assembly is always
// dropped from the registry afterward, whether or not every placeholder
// resolved: a leftover unresolved placeholder is simply an unreachable node
// with no owning assembly, which every report already ignores.
func (g *AssemblyGraph) resolveUnhomedReferences() {
	unhomed := g.registry.Lookup(unhomedAssemblyName)
	if unhomed == nil {
		return
	}

	loadedByName := g.sortedLoadedAssemblyNames()

	for placeholderID := range unhomed.symbols {
		placeholder := g.arena.Get(placeholderID)
		for _, asmName := range loadedByName {
			asm := g.registry.Lookup(asmName)
			idx := g.registry.indexes[asm.id]
			if realID, ok := idx[symbolKey{name: placeholder.name, kind: KindMethod}]; ok {
				g.arena.Redirect(placeholderID, realID)
				break
			}
		}
	}
	g.registry.Remove(unhomedAssemblyName)
}

func (g *AssemblyGraph) sortedLoadedAssemblyNames() []string {
	var names []string
	for _, asm := range g.registry.All() {
		if asm.loaded {
			names = append(names, asm.name)
		}
	}
	sort.Strings(names)
	return names
}

// synthesizeDerivedLinks adds the virtual-dispatch and interface-
// implementation edges that run from an interface or overridable base member
// (or, for an ancestor in an unloaded assembly, the ancestor type itself)
// down to each matching implementation or override: a call through a base
// reference reaches every override that could execute. No edge runs from an
// override back to its ancestor.
func (g *AssemblyGraph) synthesizeDerivedLinks() {
	for _, asm := range g.registry.All() {
		if !asm.loaded {
			continue
		}
		for symID := range asm.symbols {
			sym := g.arena.Get(symID)
			if sym.kind != KindType || sym.typ == nil {
				continue
			}
			switch {
			case sym.typ.kind == TypeKindInterface:
				g.linkInterfaceMembers(sym)
			default:
				g.linkOverrideMembers(sym)
			}
		}
	}

	// Unloaded interface and base-class types cannot tell us their own
	// member signatures, so the link is conservatively drawn from the type
	// itself to every member of each derived type that looks like an
	// implementation or override: a same-name/arity match is unknowable
	// without the ancestor's member list, so any override-flagged or
	// publicly-exposed member is treated as a plausible dispatch target.
	for _, asm := range g.registry.All() {
		if asm.loaded {
			continue
		}
		for symID := range asm.symbols {
			sym := g.arena.Get(symID)
			if sym.kind != KindType || sym.typ == nil {
				continue
			}
			for derivedID := range sym.typ.derivedTypes {
				derived := g.arena.Get(derivedID)
				if derived.typ == nil {
					continue
				}
				for memberID := range derived.typ.members {
					member := g.arena.Get(memberID)
					if member.kind == KindMethod && (member.method.isOverride || member.isPublic) {
						g.addReference(symID, memberID)
					}
				}
			}
		}
	}
}

func (g *AssemblyGraph) linkInterfaceMembers(iface *Symbol) {
	for ifaceMemberID := range iface.typ.members {
		ifaceMember := g.arena.Get(ifaceMemberID)
		if ifaceMember.kind != KindMethod {
			continue
		}
		for derivedID := range iface.typ.derivedTypes {
			derived := g.arena.Get(derivedID)
			if derived.typ == nil {
				continue
			}
			for memberID := range derived.typ.members {
				if similarSignature(ifaceMember, g.arena.Get(memberID)) {
					g.addReference(ifaceMemberID, memberID)
				}
			}
		}
	}
}

func (g *AssemblyGraph) linkOverrideMembers(base *Symbol) {
	for baseMemberID := range base.typ.members {
		baseMember := g.arena.Get(baseMemberID)
		if baseMember.kind != KindMethod || !baseMember.method.isOverridable {
			continue
		}
		for derivedID := range base.typ.derivedTypes {
			derived := g.arena.Get(derivedID)
			if derived.typ == nil {
				continue
			}
			for memberID := range derived.typ.members {
				member := g.arena.Get(memberID)
				if member.kind == KindMethod && member.method.isOverride && similarSignature(baseMember, member) {
					g.addReference(baseMemberID, memberID)
				}
			}
		}
	}
}

func (g *AssemblyGraph) propagateReflectionTargets() {
	for _, asm := range g.registry.All() {
		marks, ok := g.reflectionSymbols[asm.name]
		if ok {
			idx := g.registry.indexes[asm.id]
			for symName := range marks {
				for kind := KindType; kind <= KindEvent; kind++ {
					if id, found := idx[symbolKey{name: symName, kind: kind}]; found {
						g.arena.Get(id).reflectionTarget = true
					}
				}
			}
		}
	}

	arenaLen := g.arena.Len()
	for i := 1; i <= arenaLen; i++ {
		sym := g.arena.Get(SymbolID(i))
		if sym.kind == KindType && sym.reflectionTarget && sym.typ != nil {
			for memberID := range sym.typ.members {
				g.arena.Get(memberID).reflectionTarget = true
			}
		}
	}
}

func (g *AssemblyGraph) markRoots() {
	arenaLen := g.arena.Len()
	for i := 1; i <= arenaLen; i++ {
		sym := g.arena.Get(SymbolID(i))
		if sym.root || sym.reflectionTarget {
			g.mark(sym)
		}
	}
}

func (g *AssemblyGraph) preserveConstantHolders() {
	arenaLen := g.arena.Len()
	for i := 1; i <= arenaLen; i++ {
		sym := g.arena.Get(SymbolID(i))
		if sym.kind == KindType && sym.typ != nil && sym.typ.declaresConstants && !sym.marked {
			g.mark(sym)
		}
	}
}
