// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package graph

import "strings"

// systemAssemblyPrefixes are the well-known framework/runtime name prefixes
// used to classify an assembly as "system" for reporting purposes. An
// assembly is a system assembly if its name equals one of systemAssemblyNames
// or starts with one of these prefixes.
var systemAssemblyPrefixes = []string{
	"System",
	"Microsoft.",
	"Windows.",
}

var systemAssemblyNames = map[string]struct{}{
	"mscorlib":     {},
	"netstandard":  {},
	"WindowsBase":  {},
}

func isSystemAssemblyName(name string) bool {
	if _, ok := systemAssemblyNames[name]; ok {
		return true
	}
	for _, prefix := range systemAssemblyPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// symbolKey is the per-assembly interning key: a symbol is unique within an
// assembly by its canonical name and entity kind.
type symbolKey struct {
	name string
	kind Kind
}

// Registry owns every Assembly and, for each, the (name, kind) -> SymbolID
// index used to intern symbols without duplicating them across merge calls.
type Registry struct {
	byName     map[string]AssemblyID
	assemblies []*Assembly // index 0 reserved, mirrors Arena
	indexes    []map[symbolKey]SymbolID
}

// NewRegistry returns an empty Registry with its sentinel slot reserved.
func NewRegistry() *Registry {
	return &Registry{
		byName:     make(map[string]AssemblyID),
		assemblies: make([]*Assembly, 1),
		indexes:    make([]map[symbolKey]SymbolID, 1),
	}
}

// GetOrCreate returns the Assembly named name, creating an unloaded stub for
// it (and classifying it as system, if applicable) if this is the first time
// it has been named by any merge or reference resolution.
func (r *Registry) GetOrCreate(name string) *Assembly {
	if id, ok := r.byName[name]; ok {
		return r.assemblies[id]
	}
	id := AssemblyID(len(r.assemblies))
	asm := newAssembly(id, name)
	asm.system = isSystemAssemblyName(name)
	r.byName[name] = id
	r.assemblies = append(r.assemblies, asm)
	r.indexes = append(r.indexes, make(map[symbolKey]SymbolID))
	return asm
}

// Lookup returns the Assembly named name, or nil if it has never been
// referenced.
func (r *Registry) Lookup(name string) *Assembly {
	id, ok := r.byName[name]
	if !ok {
		return nil
	}
	return r.assemblies[id]
}

// Get dereferences an AssemblyID.
func (r *Registry) Get(id AssemblyID) *Assembly {
	return r.assemblies[id]
}

// All returns every assembly ever referenced, in registration order. Index 0
// (the sentinel) is excluded.
func (r *Registry) All() []*Assembly {
	return r.assemblies[1:]
}

// Remove drops an assembly from the name index entirely. It is used once, to
// discard the unhomed pseudo-assembly once graph completion has finished
// attempting to resolve its placeholder entries.
func (r *Registry) Remove(name string) {
	delete(r.byName, name)
}

// Intern returns the existing SymbolID for (assembly, name, kind) if one was
// already allocated, or allocates a new one in arena otherwise. This is the
// single choke point that guarantees a symbol's identity is stable across
// however many times it is referenced before, during, or after its owning
// assembly is merged.
func (r *Registry) Intern(arena *Arena, assembly AssemblyID, name string, kind Kind) SymbolID {
	key := symbolKey{name: name, kind: kind}
	idx := r.indexes[assembly]
	if id, ok := idx[key]; ok {
		return id
	}
	id := arena.Add(assembly, name, kind)
	idx[key] = id
	r.assemblies[assembly].symbols[id] = struct{}{}
	return id
}

// RecordInternalsVisibleTo notes that assembly "from" declared an
// InternalsVisibleTo attribute naming "to".
func (r *Registry) RecordInternalsVisibleTo(from AssemblyID, to string) {
	r.assemblies[from].internalsVisibleTo[to] = struct{}{}
}

// RecordDuplicate appends a duplicate sighting to an already-loaded
// assembly.
func (r *Registry) RecordDuplicate(name, path, version string) {
	asm := r.GetOrCreate(name)
	asm.duplicates = append(asm.duplicates, DuplicateObservation{Path: path, Version: version})
}
