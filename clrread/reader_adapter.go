// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clrread

import (
	"strings"

	graph "github.com/saferwall/dcegraph"
)

// TypeAttributes visibility mask and flag bits, ECMA-335 §II.23.1.15. Only
// the bits the symbol graph cares about (visibility, abstract, interface)
// are named.
const (
	tdVisibilityMask   = 0x00000007
	tdNotPublic        = 0x00000000
	tdPublic           = 0x00000001
	tdNestedPublic     = 0x00000002
	tdNestedPrivate    = 0x00000003
	tdNestedFamily     = 0x00000004
	tdNestedAssembly   = 0x00000005
	tdNestedFamANDAssem = 0x00000006
	tdNestedFamORAssem = 0x00000007
	tdInterface        = 0x00000020
	tdAbstract         = 0x00000080
)

// MethodAttributes access mask and flag bits, ECMA-335 §II.23.1.10.
const (
	mdMemberAccessMask = 0x0007
	mdPrivate          = 0x0001
	mdFamANDAssem      = 0x0002
	mdAssem            = 0x0003
	mdFamily           = 0x0004
	mdFamORAssem       = 0x0005
	mdPublic           = 0x0006
	mdStatic           = 0x0010
	mdVirtual          = 0x0020
	mdNewSlot          = 0x0100
	mdAbstract         = 0x0400
	mdSpecialName      = 0x0800
)

// FieldAttributes access mask, ECMA-335 §II.23.1.5. Shares the same
// three-bit encoding as MethodAttributes.
const (
	fdFieldAccessMask = 0x0007
	fdLiteral         = 0x0040
)

var (
	systemValueTypeName       = "System.ValueType"
	systemEnumTypeName        = "System.Enum"
	systemDelegateTypeName    = "System.MulticastDelegate"
	internalsVisibleToTypeRef = "System.Runtime.CompilerServices.InternalsVisibleToAttribute"
)

// Binary adapts a parsed clrread.File into the reader.BinaryHandle that the
// symbol graph consumes. It resolves ECMA-335 metadata tables and heap
// offsets into the assembly-relative shape the graph's merge pass expects.
//
// IL operand resolution and method signatures are read structurally (tables
// and coded indices) but instruction bodies are not disassembled: Instructions
// is always left empty. A full opcode decoder is future work; until then,
// method bodies contribute no IL-reference edges, only their declared
// signature, attributes, and overridability.
type Binary struct {
	pe   *File
	path string

	strings func(uint32) string
	types   []*graph.TypeInfo
}

// NewBinary builds a Binary over an already-parsed CLR assembly. pe must
// have already had its CLR metadata tables populated (File.Parse).
func NewBinary(pe *File, path string) *Binary {
	b := &Binary{pe: pe, path: path}
	b.strings = b.heapString
	b.build()
	return b
}

func (b *Binary) heapString(off uint32) string {
	heap := b.pe.CLR.MetadataStreams["#Strings"]
	if heap == nil || int(off) >= len(heap) {
		return ""
	}
	end := int(off)
	for end < len(heap) && heap[end] != 0 {
		end++
	}
	return string(heap[off:end])
}

// blobString reads the compressed-length-prefixed UTF-8 string that custom
// attribute fixed constructor arguments use for a System.String parameter.
// Multi-byte compressed lengths and non-string arguments are not decoded.
func (b *Binary) blobString(off uint32) string {
	heap := b.pe.CLR.MetadataStreams["#Blob"]
	if heap == nil || int(off) >= len(heap) {
		return ""
	}
	// Custom attribute blobs begin with a 2-byte prolog (0x0001), followed
	// by the fixed arguments. A single-byte compressed length covers the
	// common case of a short assembly-name argument.
	pos := int(off) + 2
	if pos >= len(heap) {
		return ""
	}
	length := int(heap[pos])
	pos++
	if length&0x80 != 0 || pos+length > len(heap) {
		return ""
	}
	return string(heap[pos : pos+length])
}

// tableContent returns the Content of a parsed metadata table, or nil if the
// table's MaskValid bit was unset and it was never parsed at all.
func (b *Binary) tableContent(tableIdx int) interface{} {
	table, ok := b.pe.CLR.MetadataTables[tableIdx]
	if !ok || table == nil {
		return nil
	}
	return table.Content
}

func (b *Binary) assemblyRow() (AssemblyTableRow, bool) {
	rows, _ := b.tableContent(Assembly).([]AssemblyTableRow)
	if len(rows) == 0 {
		return AssemblyTableRow{}, false
	}
	return rows[0], true
}

// AssemblyName implements reader.BinaryHandle.
func (b *Binary) AssemblyName() string {
	row, ok := b.assemblyRow()
	if !ok {
		return ""
	}
	return b.strings(row.Name)
}

// AssemblyVersion implements reader.BinaryHandle.
func (b *Binary) AssemblyVersion() string {
	row, ok := b.assemblyRow()
	if !ok {
		return "0.0.0.0"
	}
	return joinVersion(row.MajorVersion, row.MinorVersion, row.BuildNumber, row.RevisionNumber)
}

func joinVersion(major, minor, build, revision uint16) string {
	var sb strings.Builder
	writeUint16(&sb, major)
	sb.WriteByte('.')
	writeUint16(&sb, minor)
	sb.WriteByte('.')
	writeUint16(&sb, build)
	sb.WriteByte('.')
	writeUint16(&sb, revision)
	return sb.String()
}

func writeUint16(sb *strings.Builder, v uint16) {
	if v == 0 {
		sb.WriteByte('0')
		return
	}
	var digits [5]byte
	i := len(digits)
	for v > 0 {
		i--
		digits[i] = byte('0' + v%10)
		v /= 10
	}
	sb.Write(digits[i:])
}

// Path implements reader.BinaryHandle.
func (b *Binary) Path() string { return b.path }

// Types implements reader.BinaryHandle.
func (b *Binary) Types() []*graph.TypeInfo { return b.types }

// ModuleAttributes implements reader.BinaryHandle. It walks the
// CustomAttribute table for rows parented on the Module row (table row 0,
// tag 0 of HasCustomAttribute), resolving InternalsVisibleTo grants.
func (b *Binary) ModuleAttributes() []graph.AttributeRef {
	caRows, _ := b.tableContent(CustomAttribute).([]CustomAttributeTableRow)
	var attrs []graph.AttributeRef
	for _, ca := range caRows {
		table, row := decodeCodedIndex(idxHasCustomAttributes, ca.Parent)
		if table != Module || row != 1 {
			continue
		}
		typeName := b.resolveCustomAttributeTypeName(ca.Type)
		attrs = append(attrs, graph.AttributeRef{
			AssemblyName: b.AssemblyName(),
			TypeFullName: typeName,
			Argument:     b.blobString(ca.Value),
		})
	}
	return attrs
}

// Close implements reader.BinaryHandle.
func (b *Binary) Close() error { return b.pe.Close() }

// decodeCodedIndex splits a raw coded-index value into the ECMA-335 table
// tag and 1-based row number it packs, given the same codedidx description
// used to size and read it.
func decodeCodedIndex(cidx codedidx, value uint32) (table int, row uint32) {
	if value == 0 {
		return -1, 0
	}
	mask := uint32(1)<<cidx.tagbits - 1
	tag := value & mask
	row = value >> cidx.tagbits
	if int(tag) >= len(cidx.idx) {
		return -1, row
	}
	return cidx.idx[int(tag)], row
}

func (b *Binary) resolveCustomAttributeTypeName(value uint32) string {
	table, row := decodeCodedIndex(idxCustomAttributeType, value)
	if row == 0 {
		return ""
	}
	switch table {
	case MethodDef:
		rows, _ := b.tableContent(MethodDef).([]MethodDefTableRow)
		if int(row-1) >= len(rows) {
			return ""
		}
		// The declaring type's name is not threaded through from MethodDef
		// rows; the constructor's own name is sufficient to recognize the
		// InternalsVisibleTo attribute, which is all ModuleAttributes needs.
		return attributeNameFromCtor(b.strings(rows[row-1].Name))
	case MemberRef:
		rows, _ := b.tableContent(MemberRef).([]MemberRefTableRow)
		if int(row-1) >= len(rows) {
			return ""
		}
		memberRow := rows[row-1]
		parentTable, parentRow := decodeCodedIndex(idxMemberRefParent, memberRow.Class)
		if parentTable == TypeRef {
			return b.typeRefFullName(parentRow)
		}
		return attributeNameFromCtor(b.strings(memberRow.Name))
	}
	return ""
}

func attributeNameFromCtor(ctorName string) string {
	if ctorName == ".ctor" {
		return internalsVisibleToTypeRef
	}
	return ctorName
}

func (b *Binary) typeRefFullName(row uint32) string {
	rows, _ := b.tableContent(TypeRef).([]TypeRefTableRow)
	if row == 0 || int(row-1) >= len(rows) {
		return ""
	}
	r := rows[row-1]
	ns := b.strings(r.TypeNamespace)
	name := b.strings(r.TypeName)
	if ns == "" {
		return name
	}
	return ns + "." + name
}

// build walks the TypeDef table and constructs the graph-facing TypeInfo
// slice, resolving each type's field and method row ranges from its own
// FieldList/MethodList and the next row's (ECMA-335 §II.22.37).
func (b *Binary) build() {
	typeDefs, _ := b.tableContent(TypeDef).([]TypeDefTableRow)
	fields, _ := b.tableContent(Field).([]FieldTableRow)
	methods, _ := b.tableContent(MethodDef).([]MethodDefTableRow)
	params, _ := b.tableContent(Param).([]ParamTableRow)

	asmName := b.AssemblyName()
	b.types = make([]*graph.TypeInfo, 0, len(typeDefs))

	for i, t := range typeDefs {
		fieldEnd := len(fields)
		methodEnd := len(methods)
		if i+1 < len(typeDefs) {
			fieldEnd = int(typeDefs[i+1].FieldList) - 1
			methodEnd = int(typeDefs[i+1].MethodList) - 1
		}

		ns := b.strings(t.TypeNamespace)
		name := b.strings(t.TypeName)
		reflName := name
		if ns != "" {
			reflName = ns + "." + name
		}

		ti := &graph.TypeInfo{
			AssemblyName:        asmName,
			ReflectionName:      reflName,
			Namespace:           ns,
			IsModulePseudoType:  name == "<Module>",
			IsCompilerGenerated: strings.HasPrefix(name, "<"),
			Accessibility:       typeAccessibility(t.Flags),
		}

		baseName := ""
		if baseRef := b.resolveTypeDefOrRef(t.Extends); baseRef != nil {
			baseName = baseRef.ReflectionName
			ti.BaseTypes = append(ti.BaseTypes, baseRef)
			ti.AllBaseTypeDefs = append(ti.AllBaseTypeDefs, baseRef)
		}
		ti.Kind = classifyTypeKind(t.Flags, baseName)

		if int(t.FieldList-1) < len(fields) {
			for fi := int(t.FieldList - 1); fi >= 0 && fi < fieldEnd && fi < len(fields); fi++ {
				ti.Fields = append(ti.Fields, b.fieldInfo(fields[fi]))
			}
		}
		if int(t.MethodList-1) < len(methods) {
			for mi := int(t.MethodList - 1); mi >= 0 && mi < methodEnd && mi < len(methods); mi++ {
				paramEnd := len(params)
				if mi+1 < len(methods) {
					paramEnd = int(methods[mi+1].ParamList) - 1
				}
				ti.Methods = append(ti.Methods, b.methodInfo(methods[mi], params, paramEnd))
			}
		}

		b.types = append(b.types, ti)
	}
}

func (b *Binary) fieldInfo(row FieldTableRow) *graph.FieldInfo {
	name := b.strings(row.Name)
	return &graph.FieldInfo{
		ReflectionName:      name,
		Accessibility:       accessFromThreeBitMask(uint32(row.Flags) & fdFieldAccessMask),
		IsCompilerGenerated: strings.HasPrefix(name, "<"),
		IsConst:             row.Flags&fdLiteral != 0,
	}
}

// methodInfo builds a MethodInfo for one MethodDef row. paramEnd is the
// exclusive end of this method's slice of the Param table, resolved by the
// caller from the next MethodDef row's ParamList (or the table length for
// the last method), mirroring how TypeDef's FieldList/MethodList ranges are
// resolved.
func (b *Binary) methodInfo(row MethodDefTableRow, params []ParamTableRow, paramEnd int) *graph.MethodInfo {
	name := b.strings(row.Name)
	mi := &graph.MethodInfo{
		ReflectionName:      name,
		Accessibility:       accessFromThreeBitMask(uint32(row.Flags) & mdMemberAccessMask),
		IsStatic:            row.Flags&mdStatic != 0,
		IsVirtual:           row.Flags&mdVirtual != 0,
		IsAbstract:          row.Flags&mdAbstract != 0,
		IsOverride:          row.Flags&mdVirtual != 0 && row.Flags&mdNewSlot == 0,
		IsCompilerGenerated: strings.HasPrefix(name, "<"),
		HasBody:             row.Flags&mdAbstract == 0 && row.RVA != 0,
	}

	// Per-parameter type names require parsing the method's signature blob,
	// which this adapter does not decode; each parameter is recorded with
	// an empty type reference so parameter COUNT still participates in
	// canonical method naming and override-arity matching. The return slot
	// that occupies Param.Sequence == 0 is excluded from the count.
	if row.ParamList > 0 {
		for pi := int(row.ParamList - 1); pi >= 0 && pi < paramEnd && pi < len(params); pi++ {
			if params[pi].Sequence == 0 {
				continue
			}
			mi.Parameters = append(mi.Parameters, graph.ParameterInfo{})
		}
	}
	return mi
}

func typeAccessibility(flags uint32) graph.Access {
	switch flags & tdVisibilityMask {
	case tdPublic, tdNestedPublic:
		return graph.AccessPublic
	case tdNestedFamily, tdNestedFamORAssem:
		return graph.AccessProtected
	case tdNestedAssembly:
		return graph.AccessInternal
	case tdNestedPrivate:
		return graph.AccessPrivate
	default:
		return graph.AccessInternal
	}
}

func accessFromThreeBitMask(bits uint32) graph.Access {
	switch bits {
	case mdPublic:
		return graph.AccessPublic
	case mdFamily, mdFamORAssem:
		return graph.AccessProtected
	case mdAssem, mdFamANDAssem:
		return graph.AccessInternal
	default:
		return graph.AccessPrivate
	}
}

func classifyTypeKind(flags uint32, baseReflectionName string) graph.TypeKind {
	switch {
	case flags&tdInterface != 0:
		return graph.TypeKindInterface
	case baseReflectionName == systemEnumTypeName:
		return graph.TypeKindEnum
	case baseReflectionName == systemValueTypeName:
		return graph.TypeKindStruct
	case baseReflectionName == systemDelegateTypeName:
		return graph.TypeKindDelegate
	default:
		return graph.TypeKindClass
	}
}

// resolveTypeDefOrRef resolves a TypeDefOrRef coded index to a minimal
// TypeInfo stub carrying only the assembly and reflection name the graph's
// interning needs; it is never a type's own full definition.
func (b *Binary) resolveTypeDefOrRef(value uint32) *graph.TypeInfo {
	table, row := decodeCodedIndex(idxTypeDefOrRef, value)
	if row == 0 {
		return nil
	}
	switch table {
	case TypeDef:
		rows, _ := b.tableContent(TypeDef).([]TypeDefTableRow)
		if int(row-1) >= len(rows) {
			return nil
		}
		r := rows[row-1]
		ns := b.strings(r.TypeNamespace)
		name := b.strings(r.TypeName)
		if ns != "" {
			name = ns + "." + name
		}
		return &graph.TypeInfo{AssemblyName: b.AssemblyName(), ReflectionName: name}
	case TypeRef:
		rows, _ := b.tableContent(TypeRef).([]TypeRefTableRow)
		if int(row-1) >= len(rows) {
			return nil
		}
		r := rows[row-1]
		ns := b.strings(r.TypeNamespace)
		name := b.strings(r.TypeName)
		if ns != "" {
			name = ns + "." + name
		}
		return &graph.TypeInfo{AssemblyName: b.resolutionScopeAssemblyName(r.ResolutionScope), ReflectionName: name}
	}
	return nil
}

// resolutionScopeAssemblyName resolves the assembly a TypeRef's
// ResolutionScope names. Only AssemblyRef scopes identify an assembly by
// name directly; Module/ModuleRef/TypeRef scopes mean "this assembly" or a
// nested TypeRef, both of which are approximated as the current assembly
// since the symbol graph keys only on assembly name, not module identity.
func (b *Binary) resolutionScopeAssemblyName(value uint32) string {
	table, row := decodeCodedIndex(idxResolutionScope, value)
	if table == AssemblyRef && row > 0 {
		rows, _ := b.tableContent(AssemblyRef).([]AssemblyRefTableRow)
		if int(row-1) < len(rows) {
			return b.strings(rows[row-1].Name)
		}
	}
	return b.AssemblyName()
}
