// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package graph

// Arena is the dense, pointer-free backing store for every Symbol in a
// graph. Index 0 is reserved so the zero SymbolID means "no symbol" rather
// than aliasing the first real entry.
type Arena struct {
	symbols []*Symbol
}

// NewArena returns an empty Arena with its sentinel slot reserved.
func NewArena() *Arena {
	return &Arena{symbols: make([]*Symbol, 1)}
}

// Add allocates a new Symbol in assembly with the given name and kind and
// returns its handle.
func (a *Arena) Add(assembly AssemblyID, name string, kind Kind) SymbolID {
	id := SymbolID(len(a.symbols))
	a.symbols = append(a.symbols, newSymbol(id, assembly, name, kind))
	return id
}

// Get dereferences id. It panics on an out-of-range id, mirroring slice
// indexing semantics, and returns nil for the sentinel id 0: callers own the
// invariant that every id they hold came from this arena.
func (a *Arena) Get(id SymbolID) *Symbol {
	return a.symbols[id]
}

// Len returns the number of real (non-sentinel) symbols allocated so far.
func (a *Arena) Len() int {
	return len(a.symbols) - 1
}

// Redirect aliases id's storage slot onto target's, so any edge already
// recorded against id transparently resolves to target's Symbol from then
// on. It is used once, during unhomed-reference resolution, to fold a
// placeholder method symbol into the real symbol it turned out to name.
func (a *Arena) Redirect(id, target SymbolID) {
	a.symbols[id] = a.symbols[target]
}

// TrimExcess best-effort compacts every symbol's edge sets by reallocating
// them at their current size. Go maps expose no shrink-to-fit primitive, so
// this is the idiomatic approximation of the arena's periodic compaction
// step: it bounds the overhead accumulated from Go's map growth strategy
// without changing any observable edge.
func (a *Arena) TrimExcess() {
	for _, s := range a.symbols[1:] {
		s.referencedSymbols = compactSet(s.referencedSymbols)
		s.referencers = compactSet(s.referencers)
		if s.typ != nil {
			s.typ.members = compactSet(s.typ.members)
			s.typ.baseTypes = compactSet(s.typ.baseTypes)
			s.typ.interfacesImplemented = compactSet(s.typ.interfacesImplemented)
			s.typ.derivedTypes = compactSet(s.typ.derivedTypes)
		}
	}
}

func compactSet(in map[SymbolID]struct{}) map[SymbolID]struct{} {
	if len(in) == 0 {
		return in
	}
	out := make(map[SymbolID]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}
