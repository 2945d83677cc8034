// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package graph

import "testing"

// fakeBinary is a synthetic BinaryHandle for tests: exactly the shape the
// merge pass needs, built in memory rather than read off disk.
type fakeBinary struct {
	name    string
	version string
	path    string
	types   []*TypeInfo
	closed  bool
}

func (f *fakeBinary) AssemblyName() string           { return f.name }
func (f *fakeBinary) AssemblyVersion() string         { return f.version }
func (f *fakeBinary) Path() string                    { return f.path }
func (f *fakeBinary) Types() []*TypeInfo              { return f.types }
func (f *fakeBinary) ModuleAttributes() []AttributeRef { return nil }
func (f *fakeBinary) Close() error                    { f.closed = true; return nil }

func newFakeBinary(name, version string, types ...*TypeInfo) *fakeBinary {
	return &fakeBinary{name: name, version: version, path: name + ".dll", types: types}
}

func publicClass(assembly, name string) *TypeInfo {
	return &TypeInfo{
		AssemblyName:   assembly,
		ReflectionName: name,
		Kind:           TypeKindClass,
		Accessibility:  AccessPublic,
	}
}

func TestMergeAssemblyDuplicateDetection(t *testing.T) {
	g := New()
	bin := newFakeBinary("App", "1.0.0.0", publicClass("App", "App.Program"))

	merged, err := g.MergeAssembly(bin)
	if err != nil || !merged {
		t.Fatalf("first merge: merged=%v err=%v, want true, nil", merged, err)
	}

	merged, err = g.MergeAssembly(bin)
	if err != nil {
		t.Fatalf("duplicate merge returned error: %v", err)
	}
	if merged {
		t.Fatal("duplicate merge reported merged=true, want false")
	}

	if _, err := g.Done(); err != nil {
		t.Fatalf("Done: %v", err)
	}
}

func TestOperationsAfterDoneReturnErrFinalized(t *testing.T) {
	g := New()
	if _, err := g.Done(); err != nil {
		t.Fatalf("Done: %v", err)
	}

	if err := g.RecordRootAssembly("App"); err != ErrFinalized {
		t.Errorf("RecordRootAssembly after Done = %v, want ErrFinalized", err)
	}
	if _, err := g.MergeAssembly(newFakeBinary("App", "1.0.0.0")); err != ErrFinalized {
		t.Errorf("MergeAssembly after Done did not return ErrFinalized")
	}
}

func TestDoneIsIdempotent(t *testing.T) {
	g := New()
	g.MergeAssembly(newFakeBinary("App", "1.0.0.0", publicClass("App", "App.Program")))

	r1, err := g.Done()
	if err != nil {
		t.Fatalf("first Done: %v", err)
	}
	r2, err := g.Done()
	if err != nil {
		t.Fatalf("second Done: %v", err)
	}
	if r1 != r2 {
		t.Error("second Done returned a different Reporter")
	}
}
