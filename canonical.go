// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package graph

import "strings"

// canonicalTypeName is a type's interning key: its reflection name, which
// the reader is expected to have already fully qualified (namespace,
// enclosing type, and generic arity marker included).
func canonicalTypeName(t *TypeInfo) string {
	return t.ReflectionName
}

// canonicalMethodName builds a method's interning key: its reflection name
// followed by the parenthesized list of its parameter types' reflection
// names. Building this centrally, rather than trusting the reader to hand
// back an already-joined string, keeps the one rule that lets two
// assemblies' independently-compiled references to the same method agree on
// its name in exactly one place.
func canonicalMethodName(m *MethodInfo) string {
	var b strings.Builder
	b.WriteString(m.ReflectionName)
	b.WriteByte('(')
	for i, p := range m.Parameters {
		if i > 0 {
			b.WriteString(", ")
		}
		if p.TypeRef != nil {
			b.WriteString(p.TypeRef.ReflectionName)
		}
	}
	b.WriteByte(')')
	return b.String()
}

// canonicalEntityName applies the same rule as canonicalMethodName to an
// EntityRef resolved from an IL operand, where parameter type names arrive
// pre-flattened to strings rather than as TypeInfo values.
func canonicalEntityName(e *EntityRef) string {
	if e.Kind != KindMethod {
		return e.Name
	}
	var b strings.Builder
	b.WriteString(e.Name)
	b.WriteByte('(')
	for i, p := range e.ParameterTypeNames {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p)
	}
	b.WriteByte(')')
	return b.String()
}

// similarSignature reports whether two Method symbols plausibly override or
// implement one another: same unparenthesized name and same parameter count.
// It deliberately does not compare parameter types, since override
// signatures across assemblies may reference the same type through
// differently-spelled (but equivalent) reflection names.
func similarSignature(a, b *Symbol) bool {
	if a.kind != KindMethod || b.kind != KindMethod {
		return false
	}
	aName, aParen := splitMethodName(a.name)
	bName, bParen := splitMethodName(b.name)
	if aName != bName {
		return false
	}
	return a.method != nil && b.method != nil && a.method.parameterCount == b.method.parameterCount && aParen == bParen
}

func splitMethodName(canonical string) (name string, hasParens bool) {
	if i := strings.IndexByte(canonical, '('); i >= 0 {
		return canonical[:i], true
	}
	return canonical, false
}
