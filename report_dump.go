// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
)

// Format selects the rendering Dump produces.
type Format uint8

// Supported dump formats.
const (
	FormatText Format = iota
	FormatJSON
	FormatMermaid
)

// dumpDocument is the single JSON shape Dump emits for FormatJSON, gathering
// every report projection in one document so a driver need only call Dump
// once per scan.
type dumpDocument struct {
	Dead                 []AssemblyDeadReport      `json:"dead_symbols"`
	Alive                []AssemblyAliveReport     `json:"alive_symbols"`
	AliveByTest          []AssemblyAliveReport     `json:"alive_by_test"`
	NeedlesslyPublic     []AssemblyPublicReport    `json:"needlessly_public"`
	UnreferencedAssembly []string                  `json:"unreferenced_assemblies"`
	UnanalyzedAssembly   []string                  `json:"unanalyzed_assemblies"`
	DuplicateAssembly    []DuplicateAssemblyReport `json:"duplicate_assemblies"`
	NeedlessIVT          []NeedlessIVTReport       `json:"needless_internals_visible_to"`
	AssemblyLayerCake    [][]string                `json:"assembly_layer_cake"`
}

// Dump renders the report projections to w in the requested format.
// FormatMermaid renders only the dependency diagram; FormatJSON renders the
// full document; FormatText renders every section except the alive and
// alive-by-test reports.
func (r *Reporter) Dump(w io.Writer, format Format) error {
	if format == FormatMermaid {
		_, err := io.WriteString(w, r.DependencyDiagram())
		return err
	}

	doc := dumpDocument{
		Dead:                 r.CollectDeadSymbols(),
		Alive:                r.CollectAliveSymbols(),
		AliveByTest:          r.CollectAliveByTest(),
		NeedlesslyPublic:     r.CollectNeedlesslyPublic(),
		UnreferencedAssembly: r.CollectUnreferencedAssemblies(),
		UnanalyzedAssembly:   r.CollectUnanalyzedAssemblies(),
		DuplicateAssembly:    r.CollectDuplicateAssemblies(),
		NeedlessIVT:          r.CollectNeedlessInternalsVisibleTo(),
		AssemblyLayerCake:    r.AssemblyLayerCake(),
	}

	if format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	return dumpText(w, doc)
}

func dumpText(w io.Writer, doc dumpDocument) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "DEAD SYMBOLS")
	for _, rep := range doc.Dead {
		fmt.Fprintf(tw, "  %s\n", rep.Assembly)
		for _, e := range rep.DeadTypes {
			fmt.Fprintf(tw, "    type\t%s\t%s\t%s\n", e.Name, e.Kind, e.Access)
		}
		for _, e := range rep.DeadMembers {
			fmt.Fprintf(tw, "    member\t%s\t%s\t%s\n", e.Name, e.Kind, e.Access)
		}
	}

	fmt.Fprintln(tw, "NEEDLESSLY PUBLIC")
	for _, rep := range doc.NeedlesslyPublic {
		fmt.Fprintf(tw, "  %s\n", rep.Assembly)
		for _, e := range rep.Types {
			fmt.Fprintf(tw, "    type\t%s\t%s\n", e.Name, e.Access)
		}
		for _, e := range rep.Members {
			fmt.Fprintf(tw, "    member\t%s\t%s\n", e.Name, e.Access)
		}
	}

	fmt.Fprintln(tw, "UNREFERENCED ASSEMBLIES")
	for _, name := range doc.UnreferencedAssembly {
		fmt.Fprintf(tw, "  %s\n", name)
	}

	fmt.Fprintln(tw, "UNANALYZED ASSEMBLIES")
	for _, name := range doc.UnanalyzedAssembly {
		fmt.Fprintf(tw, "  %s\n", name)
	}

	fmt.Fprintln(tw, "DUPLICATE ASSEMBLIES")
	for _, rep := range doc.DuplicateAssembly {
		fmt.Fprintf(tw, "  %s (kept %s)\n", rep.Assembly, rep.Version)
		for _, d := range rep.Duplicates {
			fmt.Fprintf(tw, "    %s\t%s\n", d.Version, d.Path)
		}
	}

	fmt.Fprintln(tw, "NEEDLESS INTERNALSVISIBLETO")
	for _, rep := range doc.NeedlessIVT {
		fmt.Fprintf(tw, "  %s\t%v\n", rep.Assembly, rep.Needless)
	}

	fmt.Fprintln(tw, "ASSEMBLY LAYER CAKE")
	for i, layer := range doc.AssemblyLayerCake {
		fmt.Fprintf(tw, "  L%d\t%v\n", i, layer)
	}

	return tw.Flush()
}
