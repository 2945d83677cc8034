// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package graph

// Kind distinguishes the entity a Symbol represents. It is deliberately flat
// (no sub-kinds for accessors) because accessor methods are ordinary Method
// symbols that happen to carry an accessorOwner back-reference.
type Kind uint8

// Symbol kinds.
const (
	KindType Kind = iota
	KindMethod
	KindField
	KindProperty
	KindEvent
)

// String returns the human-readable report label for k.
func (k Kind) String() string {
	switch k {
	case KindType:
		return "Type"
	case KindMethod:
		return "Method"
	case KindField:
		return "Field"
	case KindProperty:
		return "Property"
	case KindEvent:
		return "Event"
	default:
		return "Unknown"
	}
}

// Access is the CLR member-visibility tier, ordered from least to most
// visible so callers may compare tiers with plain operators.
type Access uint8

// Visibility tiers, as exposed by the reader on every declared member.
const (
	AccessPrivate Access = iota
	AccessPrivateProtected
	AccessInternal
	AccessProtectedInternal
	AccessProtected
	AccessPublic
)

// String returns the report label for a.
func (a Access) String() string {
	switch a {
	case AccessPrivate:
		return "private"
	case AccessPrivateProtected:
		return "private protected"
	case AccessInternal:
		return "internal"
	case AccessProtectedInternal:
		return "protected internal"
	case AccessProtected:
		return "protected"
	case AccessPublic:
		return "public"
	default:
		return "unknown"
	}
}

// TypeKind further classifies a Type symbol.
type TypeKind uint8

// Type kinds.
const (
	TypeKindClass TypeKind = iota
	TypeKindStruct
	TypeKindInterface
	TypeKindEnum
	TypeKindDelegate
)

// String returns the report label for k.
func (k TypeKind) String() string {
	switch k {
	case TypeKindClass:
		return "class"
	case TypeKindStruct:
		return "struct"
	case TypeKindInterface:
		return "interface"
	case TypeKindEnum:
		return "enum"
	case TypeKindDelegate:
		return "delegate"
	default:
		return "unknown"
	}
}

// accessorOwner points a synthesized property/event accessor method back to
// the member it backs, so merge and report code can treat the accessor as a
// first-class Method while still answering "whose getter is this".
type accessorOwner struct {
	property SymbolID
	event    SymbolID
}

// typePayload holds the fields that only make sense on a Type symbol.
type typePayload struct {
	kind                  TypeKind
	members               map[SymbolID]struct{}
	baseTypes             map[SymbolID]struct{}
	interfacesImplemented map[SymbolID]struct{}
	derivedTypes          map[SymbolID]struct{}
	declaresConstants     bool
}

func newTypePayload() *typePayload {
	return &typePayload{
		members:               make(map[SymbolID]struct{}),
		baseTypes:             make(map[SymbolID]struct{}),
		interfacesImplemented: make(map[SymbolID]struct{}),
		derivedTypes:          make(map[SymbolID]struct{}),
	}
}

// methodPayload holds the fields that only make sense on a Method symbol.
type methodPayload struct {
	parameterCount    int
	isOverridable     bool // virtual, abstract, or override
	isOverride        bool
	isTestMethod      bool
	owner             accessorOwner
	hasOwner          bool
}

func newMethodPayload() *methodPayload {
	return &methodPayload{}
}

// Symbol is a single node in the reference graph: a type, method, field,
// property, or event drawn from exactly one assembly.
type Symbol struct {
	id       SymbolID
	assembly AssemblyID
	name     string // canonical name, unique within (assembly, kind)
	kind     Kind
	access   Access

	hide             bool
	isPublic         bool
	root             bool
	reflectionTarget bool
	marked           bool

	referencedSymbols map[SymbolID]struct{}
	referencers       map[SymbolID]struct{}

	typ    *typePayload
	method *methodPayload
}

func newSymbol(id SymbolID, assembly AssemblyID, name string, kind Kind) *Symbol {
	s := &Symbol{
		id:                id,
		assembly:          assembly,
		name:              name,
		kind:              kind,
		referencedSymbols: make(map[SymbolID]struct{}),
		referencers:       make(map[SymbolID]struct{}),
	}
	switch kind {
	case KindType:
		s.typ = newTypePayload()
	case KindMethod:
		s.method = newMethodPayload()
	}
	return s
}

// ID returns the symbol's handle.
func (s *Symbol) ID() SymbolID { return s.id }

// Name returns the symbol's canonical name.
func (s *Symbol) Name() string { return s.name }

// Kind returns the symbol's entity kind.
func (s *Symbol) Kind() Kind { return s.kind }

// Access returns the symbol's declared visibility.
func (s *Symbol) Access() Access { return s.access }

// Assembly returns the handle of the assembly that declares this symbol.
func (s *Symbol) Assembly() AssemblyID { return s.assembly }

// Marked reports whether the reachability pass proved this symbol alive.
func (s *Symbol) Marked() bool { return s.marked }

// Hide reports whether this symbol is excluded from dead/alive reporting
// entirely (compiler-generated plumbing, delegate Begin/EndInvoke, and
// similar noise).
func (s *Symbol) Hide() bool { return s.hide }

// kindLabel returns the most precise kind string for report output: a
// Type's own TypeKind rather than the generic "Type".
func (s *Symbol) kindLabel() string {
	if s.kind == KindType && s.typ != nil {
		return s.typ.kind.String()
	}
	return s.kind.String()
}
