// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package graph

// This file defines the boundary between the graph engine and whatever reads
// compiled assemblies off disk. A concrete implementation of BinaryHandle
// lives in the clrread package; anything satisfying this interface (a test
// fixture, a future reader for a different bytecode format) can be merged
// into a graph with no change to the core.

// OperandKind classifies the token kind an IL instruction operand resolved
// to, mirroring the CLR's Field/Method/Type/Tok distinction.
type OperandKind uint8

// Operand kinds.
const (
	OperandNone OperandKind = iota
	OperandField
	OperandMethod
	OperandType
	OperandToken
)

// AttributeRef names a custom attribute application. Argument carries the
// first constructor string argument when one was present (only meaningful
// today for InternalsVisibleToAttribute); it is empty otherwise.
type AttributeRef struct {
	AssemblyName string
	TypeFullName string
	Argument     string
}

// EntityRef is how the reader reports the resolved target of an IL operand:
// enough structure for the core to intern the right symbol in the right
// assembly without the reader having to know anything about canonical naming
// rules. AssemblyName is empty when the reader could not determine which
// module declares the entity; the core treats that as an unhomed reference.
type EntityRef struct {
	Kind                Kind
	AssemblyName        string
	DeclaringTypeName   string
	Name                string
	ParameterTypeNames  []string // only populated when Kind == KindMethod
}

// Instruction is one decoded IL instruction whose operand referenced another
// entity. Instructions with no cross-entity operand (e.g. arithmetic,
// branches) are not reported by the reader at all.
type Instruction struct {
	OperandKind OperandKind
	Entity      *EntityRef
}

// ParameterInfo describes one method or indexer parameter.
type ParameterInfo struct {
	TypeRef    *TypeInfo
	Attributes []AttributeRef
}

// TypeParameterInfo describes one generic type or method parameter.
type TypeParameterInfo struct {
	Name        string
	Constraints []*TypeInfo
	Attributes  []AttributeRef
}

// TypeInfo describes one type definition, or a resolved reference to a type
// declared in another assembly.
type TypeInfo struct {
	AssemblyName        string
	ReflectionName      string
	Namespace           string
	Kind                TypeKind
	IsModulePseudoType  bool
	IsCompilerGenerated bool
	Accessibility       Access
	DeclaringType       *TypeInfo
	BaseTypes           []*TypeInfo // directly-listed base class and interfaces
	AllBaseTypeDefs     []*TypeInfo // full transitive ancestor set
	TypeArguments       []*TypeInfo
	TypeParameters      []*TypeParameterInfo
	Attributes          []AttributeRef

	Methods    []*MethodInfo
	Fields     []*FieldInfo
	Properties []*PropertyInfo
	Events     []*EventInfo
}

// MethodInfo describes one method, constructor, or property/event accessor.
type MethodInfo struct {
	ReflectionName   string
	Parameters       []ParameterInfo
	ReturnType       *TypeInfo
	ReturnAttributes []AttributeRef
	TypeArguments    []*TypeInfo
	TypeParameters   []*TypeParameterInfo
	Accessibility    Access

	IsStatic            bool
	IsVirtual           bool
	IsOverride          bool
	IsAbstract          bool
	IsCompilerGenerated bool

	Attributes []AttributeRef

	HasBody             bool
	Instructions        []Instruction
	Locals              []*TypeInfo
	ExceptionCatchTypes []*TypeInfo
}

// FieldInfo describes one field. Const fields are recorded on their
// declaring type as "declares constants" but never become their own symbol.
type FieldInfo struct {
	ReflectionName      string
	FieldType           *TypeInfo
	IsConst             bool
	Accessibility       Access
	IsCompilerGenerated bool
	Attributes          []AttributeRef
}

// PropertyInfo describes one property and its accessor methods.
type PropertyInfo struct {
	ReflectionName      string
	Getter              *MethodInfo
	Setter              *MethodInfo
	Accessibility       Access
	IsCompilerGenerated bool
	Attributes          []AttributeRef
}

// EventInfo describes one event and its accessor methods.
type EventInfo struct {
	ReflectionName      string
	AddMethod           *MethodInfo
	RemoveMethod        *MethodInfo
	Accessibility       Access
	IsCompilerGenerated bool
	Attributes          []AttributeRef
}

// BinaryHandle is the reader's yield for one compiled assembly: exactly the
// shape the merge pass needs and nothing about how it was parsed off disk.
type BinaryHandle interface {
	// AssemblyName is the CLR assembly's simple name.
	AssemblyName() string
	// AssemblyVersion is the four-part CLR assembly version string.
	AssemblyVersion() string
	// Path is the on-disk location the binary was read from, used only for
	// duplicate-assembly reporting.
	Path() string
	// Types returns every type definition in the assembly, including the
	// <Module> pseudo-type.
	Types() []*TypeInfo
	// ModuleAttributes returns assembly- and module-level custom attributes,
	// including any InternalsVisibleToAttribute applications.
	ModuleAttributes() []AttributeRef
	// Close releases any resources (mmap, file handle) held by the reader.
	Close() error
}
