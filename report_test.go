// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package graph

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"
)

// loadGoldenFile reads a named file out of a txtar archive under testdata/.
func loadGoldenFile(t *testing.T, archivePath, fileName string) string {
	t.Helper()
	raw, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("read %s: %v", archivePath, err)
	}
	ar := txtar.Parse(raw)
	for _, f := range ar.Files {
		if f.Name == fileName {
			return string(f.Data)
		}
	}
	t.Fatalf("%s: no file named %q", archivePath, fileName)
	return ""
}

// newLibAndApp builds a two-assembly fixture: Lib declares an unreferenced
// public type (Dead) and one referenced from App (Used); App is recorded as
// a root assembly and its Main method is the only thing that reaches Used.
func newLibAndApp() (lib, app *fakeBinary) {
	dead := publicClass("Lib", "Lib.Dead")
	used := publicClass("Lib", "Lib.Used")
	lib = newFakeBinary("Lib", "1.0.0.0", dead, used)

	program := publicClass("App", "App.Program")
	program.Methods = []*MethodInfo{
		{
			ReflectionName: "Main",
			IsStatic:       true,
			Accessibility:  AccessPublic,
			HasBody:        true,
			Instructions: []Instruction{
				{
					OperandKind: OperandType,
					Entity: &EntityRef{
						Kind:         KindType,
						AssemblyName: "Lib",
						Name:         "Lib.Used",
					},
				},
			},
		},
	}
	app = newFakeBinary("App", "1.0.0.0", program)
	return lib, app
}

func buildLibAndApp(t *testing.T) *Reporter {
	t.Helper()
	lib, app := newLibAndApp()

	g := New()
	if err := g.RecordRootAssembly("App"); err != nil {
		t.Fatalf("RecordRootAssembly: %v", err)
	}
	if _, err := g.MergeAssembly(lib); err != nil {
		t.Fatalf("merge Lib: %v", err)
	}
	if _, err := g.MergeAssembly(app); err != nil {
		t.Fatalf("merge App: %v", err)
	}
	r, err := g.Done()
	if err != nil {
		t.Fatalf("Done: %v", err)
	}
	return r
}

func findAssembly(reports []AssemblyDeadReport, name string) (AssemblyDeadReport, bool) {
	for _, rep := range reports {
		if rep.Assembly == name {
			return rep, true
		}
	}
	return AssemblyDeadReport{}, false
}

func hasType(entries []SymbolEntry, name string) bool {
	for _, e := range entries {
		if e.Name == name {
			return true
		}
	}
	return false
}

func TestCollectDeadSymbols(t *testing.T) {
	r := buildLibAndApp(t)

	libReport, ok := findAssembly(r.CollectDeadSymbols(), "Lib")
	if !ok {
		t.Fatal("no dead-symbols report for Lib")
	}
	if !hasType(libReport.DeadTypes, "Lib.Dead") {
		t.Errorf("Lib dead types = %v, want Lib.Dead present", libReport.DeadTypes)
	}
	if hasType(libReport.DeadTypes, "Lib.Used") {
		t.Errorf("Lib.Used reported dead, want it marked alive by App.Program.Main")
	}

	if _, ok := findAssembly(r.CollectDeadSymbols(), "App"); ok {
		t.Error("App has a dead-symbols report, want none: its only type is the root's own entry point")
	}
}

func TestCollectNeedlesslyPublic(t *testing.T) {
	r := buildLibAndApp(t)

	var libPublic AssemblyPublicReport
	for _, rep := range r.CollectNeedlesslyPublic() {
		if rep.Assembly == "Lib" {
			libPublic = rep
		}
	}
	if !hasType(libPublic.Types, "Lib.Dead") {
		t.Errorf("Lib needlessly-public types = %v, want Lib.Dead present", libPublic.Types)
	}
	if hasType(libPublic.Types, "Lib.Used") {
		t.Error("Lib.Used reported needlessly public, want it excluded: referenced from App")
	}

	for _, rep := range r.CollectNeedlesslyPublic() {
		if rep.Assembly == "App" {
			t.Error("App has a needlessly-public report, want none: App.Program is root")
		}
	}
}

func TestCollectUnreferencedAssemblies(t *testing.T) {
	r := buildLibAndApp(t)
	got := r.CollectUnreferencedAssemblies()
	if len(got) != 0 {
		t.Errorf("CollectUnreferencedAssemblies = %v, want empty: both assemblies have marked symbols", got)
	}
}

func TestCollectUnreferencedAssembliesWithAnOrphan(t *testing.T) {
	lib, app := newLibAndApp()
	orphan := newFakeBinary("Orphan", "1.0.0.0", publicClass("Orphan", "Orphan.Nothing"))

	g := New()
	g.RecordRootAssembly("App")
	g.MergeAssembly(lib)
	g.MergeAssembly(app)
	g.MergeAssembly(orphan)
	r, err := g.Done()
	if err != nil {
		t.Fatalf("Done: %v", err)
	}

	got := r.CollectUnreferencedAssemblies()
	if len(got) != 1 || got[0] != "Orphan" {
		t.Errorf("CollectUnreferencedAssemblies = %v, want [Orphan]", got)
	}
}

func TestAssemblyLayerCake(t *testing.T) {
	r := buildLibAndApp(t)
	got := r.AssemblyLayerCake()
	want := [][]string{{"Lib"}, {"App"}}
	if len(got) != len(want) {
		t.Fatalf("AssemblyLayerCake = %v, want %v", got, want)
	}
	for i := range want {
		if len(got[i]) != len(want[i]) || got[i][0] != want[i][0] {
			t.Errorf("layer %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDependencyDiagram(t *testing.T) {
	r := buildLibAndApp(t)
	got := r.DependencyDiagram()
	want := loadGoldenFile(t, "testdata/dependency_diagram.txtar", "mermaid")
	if got != want {
		t.Errorf("DependencyDiagram = %q, want %q", got, want)
	}
}

func TestDumpJSONAndText(t *testing.T) {
	r := buildLibAndApp(t)

	var jsonBuf bytes.Buffer
	if err := r.Dump(&jsonBuf, FormatJSON); err != nil {
		t.Fatalf("Dump(JSON): %v", err)
	}
	if !strings.Contains(jsonBuf.String(), "Lib.Dead") {
		t.Errorf("JSON dump missing Lib.Dead: %s", jsonBuf.String())
	}

	var textBuf bytes.Buffer
	if err := r.Dump(&textBuf, FormatText); err != nil {
		t.Fatalf("Dump(text): %v", err)
	}
	if !strings.Contains(textBuf.String(), "Lib.Dead") {
		t.Errorf("text dump missing Lib.Dead: %s", textBuf.String())
	}

	var mermaidBuf bytes.Buffer
	if err := r.Dump(&mermaidBuf, FormatMermaid); err != nil {
		t.Fatalf("Dump(mermaid): %v", err)
	}
	want := loadGoldenFile(t, "testdata/dependency_diagram.txtar", "mermaid")
	if mermaidBuf.String() != want {
		t.Errorf("mermaid dump = %q, want %q", mermaidBuf.String(), want)
	}
}
