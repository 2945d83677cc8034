// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package graph

// mark propagates liveness from sym through every symbol it references,
// depth-first, stopping at symbols already marked. This is the graph's only
// mark-sweep primitive; completion calls it from roots, reflection targets,
// and constant holders.
func (g *AssemblyGraph) mark(sym *Symbol) {
	if sym.marked {
		return
	}
	sym.marked = true
	for ref := range sym.referencedSymbols {
		g.mark(g.arena.Get(ref))
	}
}
