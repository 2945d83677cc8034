// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clrread

import "testing"

func TestJoinVersion(t *testing.T) {
	tests := []struct {
		major, minor, build, revision uint16
		want                          string
	}{
		{1, 0, 0, 0, "1.0.0.0"},
		{0, 0, 0, 0, "0.0.0.0"},
		{12, 34, 5678, 9, "12.34.5678.9"},
		{65535, 1, 1, 1, "65535.1.1.1"},
	}
	for _, tt := range tests {
		got := joinVersion(tt.major, tt.minor, tt.build, tt.revision)
		if got != tt.want {
			t.Errorf("joinVersion(%d,%d,%d,%d) = %q, want %q", tt.major, tt.minor, tt.build, tt.revision, got, tt.want)
		}
	}
}

func TestDecodeCodedIndex(t *testing.T) {
	tests := []struct {
		name      string
		cidx      codedidx
		value     uint32
		wantTable int
		wantRow   uint32
	}{
		{"null reference", idxTypeDefOrRef, 0, -1, 0},
		{"TypeDef tag", idxTypeDefOrRef, (5 << 2) | 0, TypeDef, 5},
		{"TypeRef tag", idxTypeDefOrRef, (7 << 2) | 1, TypeRef, 7},
		{"TypeSpec tag", idxTypeDefOrRef, (1 << 2) | 2, TypeSpec, 1},
		{"AssemblyRef scope", idxResolutionScope, (3 << 2) | 2, AssemblyRef, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, row := decodeCodedIndex(tt.cidx, tt.value)
			if table != tt.wantTable || row != tt.wantRow {
				t.Errorf("decodeCodedIndex(%v, %#x) = (%d, %d), want (%d, %d)",
					tt.cidx, tt.value, table, row, tt.wantTable, tt.wantRow)
			}
		})
	}
}

func TestTypeAccessibility(t *testing.T) {
	tests := []struct {
		flags uint32
		want  string
	}{
		{tdPublic, "public"},
		{tdNestedPublic, "public"},
		{tdNotPublic, "internal"},
		{tdNestedPrivate, "private"},
		{tdNestedFamily, "protected"},
		{tdNestedAssembly, "internal"},
	}
	for _, tt := range tests {
		got := typeAccessibility(tt.flags).String()
		if got != tt.want {
			t.Errorf("typeAccessibility(%#x) = %s, want %s", tt.flags, got, tt.want)
		}
	}
}

func TestAccessFromThreeBitMask(t *testing.T) {
	tests := []struct {
		bits uint32
		want string
	}{
		{mdPublic, "public"},
		{mdFamily, "protected"},
		{mdFamORAssem, "protected"},
		{mdAssem, "internal"},
		{mdFamANDAssem, "internal"},
		{mdPrivate, "private"},
	}
	for _, tt := range tests {
		got := accessFromThreeBitMask(tt.bits).String()
		if got != tt.want {
			t.Errorf("accessFromThreeBitMask(%#x) = %s, want %s", tt.bits, got, tt.want)
		}
	}
}

func TestClassifyTypeKind(t *testing.T) {
	tests := []struct {
		name     string
		flags    uint32
		baseName string
		want     string
	}{
		{"interface flag wins", tdInterface, systemValueTypeName, "interface"},
		{"enum base", 0, systemEnumTypeName, "enum"},
		{"struct base", 0, systemValueTypeName, "struct"},
		{"delegate base", 0, systemDelegateTypeName, "delegate"},
		{"plain class", 0, "App.Base", "class"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyTypeKind(tt.flags, tt.baseName).String()
			if got != tt.want {
				t.Errorf("classifyTypeKind(%#x, %q) = %s, want %s", tt.flags, tt.baseName, got, tt.want)
			}
		})
	}
}

func TestAttributeNameFromCtor(t *testing.T) {
	if got := attributeNameFromCtor(".ctor"); got != internalsVisibleToTypeRef {
		t.Errorf("attributeNameFromCtor(.ctor) = %q, want %q", got, internalsVisibleToTypeRef)
	}
	if got := attributeNameFromCtor("SomeOtherName"); got != "SomeOtherName" {
		t.Errorf("attributeNameFromCtor passthrough = %q, want %q", got, "SomeOtherName")
	}
}
