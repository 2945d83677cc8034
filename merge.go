// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package graph

import "strings"

const internalsVisibleToAttribute = "System.Runtime.CompilerServices.InternalsVisibleToAttribute"

// mergeAssembly ingests one binary, defining every type and member it
// declares and recording every direct reference it makes. It is the only
// place new Symbols and Assemblies come into existence outside of forward
// references created while resolving another assembly's operands.
func (g *AssemblyGraph) mergeAssembly(bin BinaryHandle) (merged bool, err error) {
	name := bin.AssemblyName()
	version := bin.AssemblyVersion()

	asm := g.registry.GetOrCreate(name)
	if asm.loaded {
		g.registry.RecordDuplicate(name, bin.Path(), version)
		return false, nil
	}

	asm.version = version
	if _, ok := g.rootAssemblies[name]; ok {
		asm.root = true
	}

	for _, t := range bin.Types() {
		g.defineType(asm, t, bin)
	}
	asm.loaded = true

	g.assembliesSinceTrim++
	if g.assembliesSinceTrim >= trimInterval {
		g.arena.TrimExcess()
		g.assembliesSinceTrim = 0
	}
	return true, nil
}

// trimInterval is how many merged assemblies accumulate between arena
// compaction passes.
const trimInterval = 256

func (g *AssemblyGraph) addReference(from, to SymbolID) {
	if from == invalidSymbol || to == invalidSymbol || from == to {
		return
	}
	fromSym := g.arena.Get(from)
	toSym := g.arena.Get(to)
	fromSym.referencedSymbols[to] = struct{}{}
	toSym.referencers[from] = struct{}{}
}

// resolveTypeRef interns (or creates a forward-reference stub for) the
// symbol a *TypeInfo value names, creating its declaring assembly on demand.
func (g *AssemblyGraph) resolveTypeRef(t *TypeInfo) SymbolID {
	if t == nil {
		return invalidSymbol
	}
	asm := g.registry.GetOrCreate(t.AssemblyName)
	return g.registry.Intern(g.arena, asm.id, canonicalTypeName(t), KindType)
}

func (g *AssemblyGraph) resolveAttributeType(a AttributeRef) SymbolID {
	asm := g.registry.GetOrCreate(a.AssemblyName)
	return g.registry.Intern(g.arena, asm.id, a.TypeFullName, KindType)
}

// resolveEntity interns the symbol an IL operand resolved to, or reports it
// as unhomed when the reader could not determine a declaring assembly.
func (g *AssemblyGraph) resolveEntity(e *EntityRef) (id SymbolID, unhomed bool) {
	if e == nil {
		return invalidSymbol, false
	}
	if e.AssemblyName == "" {
		return invalidSymbol, true
	}
	asm := g.registry.GetOrCreate(e.AssemblyName)
	name := e.Name
	if e.Kind == KindMethod {
		name = canonicalEntityName(e)
	}
	return g.registry.Intern(g.arena, asm.id, name, e.Kind), false
}

func (g *AssemblyGraph) recordUnhomed(from SymbolID, e *EntityRef) {
	unhomedAsm := g.registry.GetOrCreate(unhomedAssemblyName)
	sig := canonicalEntityName(e)
	id := g.registry.Intern(g.arena, unhomedAsm.id, sig, KindMethod)
	g.addReference(from, id)
}

// applyDefineRules sets the visibility/hide bookkeeping common to every
// symbol kind, regardless of whether this is the symbol's first definition
// or a redefinition arriving after earlier forward references created it.
func (g *AssemblyGraph) applyDefineRules(sym *Symbol, asm *Assembly, access Access, compilerGenerated, angleBracketName bool) {
	sym.access = access
	sym.isPublic = access == AccessPublic || access == AccessProtected
	sym.hide = compilerGenerated || angleBracketName
}

func isAngleBracketName(name string) bool {
	return strings.HasPrefix(name, "<")
}

func (g *AssemblyGraph) defineType(asm *Assembly, t *TypeInfo, bin BinaryHandle) SymbolID {
	id := g.registry.Intern(g.arena, asm.id, canonicalTypeName(t), KindType)
	sym := g.arena.Get(id)
	g.applyDefineRules(sym, asm, t.Accessibility, t.IsCompilerGenerated, isAngleBracketName(t.ReflectionName))
	sym.typ.kind = t.Kind

	for _, bt := range t.BaseTypes {
		g.addReference(id, g.resolveTypeRef(bt))
	}
	for _, ta := range t.TypeArguments {
		g.addReference(id, g.resolveTypeRef(ta))
	}
	if t.DeclaringType != nil {
		g.addReference(id, g.resolveTypeRef(t.DeclaringType))
	}
	for _, tp := range t.TypeParameters {
		for _, c := range tp.Constraints {
			g.addReference(id, g.resolveTypeRef(c))
		}
		for _, a := range tp.Attributes {
			g.addReference(id, g.resolveAttributeType(a))
		}
	}
	for _, a := range t.Attributes {
		g.addReference(id, g.resolveAttributeType(a))
	}

	for _, ancestor := range t.AllBaseTypeDefs {
		ancID := g.resolveTypeRef(ancestor)
		ancSym := g.arena.Get(ancID)
		if ancestor.Kind == TypeKindInterface {
			sym.typ.interfacesImplemented[ancID] = struct{}{}
		} else {
			sym.typ.baseTypes[ancID] = struct{}{}
		}
		if ancSym.typ != nil {
			ancSym.typ.derivedTypes[id] = struct{}{}
		}
	}

	if t.IsModulePseudoType {
		for _, attr := range bin.ModuleAttributes() {
			if attr.TypeFullName == internalsVisibleToAttribute {
				target := attr.Argument
				if i := strings.IndexByte(target, ','); i >= 0 {
					target = target[:i]
				}
				g.registry.RecordInternalsVisibleTo(asm.id, strings.TrimSpace(target))
				continue
			}
			g.addReference(id, g.resolveAttributeType(attr))
		}
	}

	for _, m := range t.Methods {
		g.defineMethod(asm, sym, m, accessorOwner{})
	}
	for _, f := range t.Fields {
		g.defineField(asm, sym, f)
	}
	for _, p := range t.Properties {
		g.defineProperty(asm, sym, p)
	}
	for _, e := range t.Events {
		g.defineEvent(asm, sym, e)
	}

	// Types whose only declared members are const fields still need to
	// survive reachability sweeps as a constant holder, recorded here so
	// completion's preservation pass does not need to re-walk fields.
	for _, f := range t.Fields {
		if f.IsConst {
			sym.typ.declaresConstants = true
			break
		}
	}

	return id
}

func (g *AssemblyGraph) defineField(asm *Assembly, declType *Symbol, f *FieldInfo) {
	if f.IsConst {
		return
	}
	id := g.registry.Intern(g.arena, asm.id, f.ReflectionName, KindField)
	sym := g.arena.Get(id)
	g.applyDefineRules(sym, asm, f.Accessibility, f.IsCompilerGenerated, isAngleBracketName(f.ReflectionName))
	declType.typ.members[id] = struct{}{}
	g.addReference(id, declType.id)
	g.addReference(id, g.resolveTypeRef(f.FieldType))
	for _, a := range f.Attributes {
		g.addReference(id, g.resolveAttributeType(a))
	}
}

func (g *AssemblyGraph) defineProperty(asm *Assembly, declType *Symbol, p *PropertyInfo) {
	id := g.registry.Intern(g.arena, asm.id, p.ReflectionName, KindProperty)
	sym := g.arena.Get(id)
	g.applyDefineRules(sym, asm, p.Accessibility, p.IsCompilerGenerated, isAngleBracketName(p.ReflectionName))
	declType.typ.members[id] = struct{}{}
	g.addReference(id, declType.id)
	for _, a := range p.Attributes {
		g.addReference(id, g.resolveAttributeType(a))
	}
	if p.Getter != nil {
		getterID := g.defineMethod(asm, declType, p.Getter, accessorOwner{property: id, event: invalidSymbol})
		g.addReference(getterID, id)
	}
	if p.Setter != nil {
		setterID := g.defineMethod(asm, declType, p.Setter, accessorOwner{property: id, event: invalidSymbol})
		g.addReference(setterID, id)
	}
}

func (g *AssemblyGraph) defineEvent(asm *Assembly, declType *Symbol, e *EventInfo) {
	id := g.registry.Intern(g.arena, asm.id, e.ReflectionName, KindEvent)
	sym := g.arena.Get(id)
	g.applyDefineRules(sym, asm, e.Accessibility, e.IsCompilerGenerated, isAngleBracketName(e.ReflectionName))
	declType.typ.members[id] = struct{}{}
	g.addReference(id, declType.id)
	for _, a := range e.Attributes {
		g.addReference(id, g.resolveAttributeType(a))
	}
	if e.AddMethod != nil {
		addID := g.defineMethod(asm, declType, e.AddMethod, accessorOwner{property: invalidSymbol, event: id})
		g.addReference(addID, id)
	}
	if e.RemoveMethod != nil {
		removeID := g.defineMethod(asm, declType, e.RemoveMethod, accessorOwner{property: invalidSymbol, event: id})
		g.addReference(removeID, id)
	}
}

func (g *AssemblyGraph) defineMethod(asm *Assembly, declType *Symbol, m *MethodInfo, owner accessorOwner) SymbolID {
	canonical := canonicalMethodName(m)
	id := g.registry.Intern(g.arena, asm.id, canonical, KindMethod)
	sym := g.arena.Get(id)
	g.applyDefineRules(sym, asm, m.Accessibility, m.IsCompilerGenerated, isAngleBracketName(m.ReflectionName))

	hasOwner := owner.property != invalidSymbol || owner.event != invalidSymbol
	if hasOwner {
		sym.hide = false
		sym.method.owner = owner
		sym.method.hasOwner = true
	}
	if declType.typ.kind == TypeKindDelegate && (m.ReflectionName == "BeginInvoke" || m.ReflectionName == "EndInvoke") {
		sym.hide = true
	}
	sym.method.parameterCount = len(m.Parameters)
	sym.method.isOverridable = m.IsVirtual || m.IsOverride || m.IsAbstract
	sym.method.isOverride = m.IsOverride

	declType.typ.members[id] = struct{}{}
	g.addReference(id, declType.id)

	for _, attr := range m.Attributes {
		if g.isTestMethodAttribute(attr.TypeFullName) {
			sym.method.isTestMethod = true
			sym.root = true
		}
		if g.isReflectionMarkerAttribute(attr.TypeFullName) {
			sym.reflectionTarget = true
		}
		g.addReference(id, g.resolveAttributeType(attr))
	}

	for _, ta := range m.TypeArguments {
		g.addReference(id, g.resolveTypeRef(ta))
	}
	for _, tp := range m.TypeParameters {
		for _, c := range tp.Constraints {
			g.addReference(id, g.resolveTypeRef(c))
		}
		for _, a := range tp.Attributes {
			g.addReference(id, g.resolveAttributeType(a))
		}
	}
	for _, p := range m.Parameters {
		g.addReference(id, g.resolveTypeRef(p.TypeRef))
		for _, a := range p.Attributes {
			g.addReference(id, g.resolveAttributeType(a))
		}
	}
	if m.ReturnType != nil {
		g.addReference(id, g.resolveTypeRef(m.ReturnType))
	}
	for _, a := range m.ReturnAttributes {
		g.addReference(id, g.resolveAttributeType(a))
	}

	if m.HasBody {
		for _, instr := range m.Instructions {
			if instr.OperandKind == OperandNone || instr.Entity == nil {
				continue
			}
			refID, unhomed := g.resolveEntity(instr.Entity)
			if unhomed {
				g.recordUnhomed(id, instr.Entity)
				continue
			}
			g.addReference(id, refID)
		}
		for _, local := range m.Locals {
			g.addReference(id, g.resolveTypeRef(local))
		}
		for _, ct := range m.ExceptionCatchTypes {
			g.addReference(id, g.resolveTypeRef(ct))
		}
	}

	if m.ReflectionName == "Main" && m.IsStatic {
		sym.root = true
	}

	return id
}
