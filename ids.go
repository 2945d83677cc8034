// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package graph

// SymbolID is a dense handle into the Arena. The zero value denotes "no
// symbol" so a SymbolID can be used directly as a map/slice element without a
// separate presence flag.
type SymbolID uint32

// AssemblyID is a dense handle into the Registry, with the same zero-value
// convention as SymbolID.
type AssemblyID uint32

// invalidSymbol is the sentinel returned where no symbol applies.
const invalidSymbol SymbolID = 0

// invalidAssembly is the sentinel returned where no assembly applies.
const invalidAssembly AssemblyID = 0

// unhomedAssemblyName is the distinguished pseudo-assembly that temporarily
// homes method references whose declaring type could not be resolved to a
// real module at merge time.
const unhomedAssemblyName = "$$UNHOMED$$"
