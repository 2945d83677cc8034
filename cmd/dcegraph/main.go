// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Command dcegraph scans a directory of compiled .NET assemblies, builds a
// symbol reference graph over them, and reports what a mark-and-sweep
// reachability pass from a configurable root set proves dead.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	graph "github.com/saferwall/dcegraph"
	"github.com/saferwall/dcegraph/clrread"
	"github.com/saferwall/dcegraph/internal/config"
	"github.com/saferwall/dcegraph/internal/log"

	"github.com/spf13/cobra"
)

// version is overwritten at release build time with -ldflags.
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "dcegraph",
		Short: "Find dead code across a set of compiled .NET assemblies",
		Long:  "dcegraph builds a symbol reference graph over a directory of managed executables and reports what is unreachable from a root set, brought to you by Saferwall.",
	}
	root.AddCommand(newScanCommand())
	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("dcegraph", version)
		},
	}
}

type scanFlags struct {
	configPath    string
	rootAssembly  []string
	testAttr      []string
	reflectAttr   []string
	format        string
	concurrency   int
	continueOnErr bool
	whyLive       string
}

func newScanCommand() *cobra.Command {
	flags := &scanFlags{}

	cmd := &cobra.Command{
		Use:   "scan <directory>",
		Short: "Scan a directory tree of assemblies and report dead code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", "path to a YAML scan configuration file")
	cmd.Flags().StringArrayVar(&flags.rootAssembly, "root", nil, "name of an assembly whose public surface is always reachable (repeatable)")
	cmd.Flags().StringArrayVar(&flags.testAttr, "test-attr", nil, "full name of a test-method attribute (repeatable)")
	cmd.Flags().StringArrayVar(&flags.reflectAttr, "reflect-attr", nil, "full name of a reflection-marker attribute (repeatable)")
	cmd.Flags().StringVar(&flags.format, "format", "text", "output format: text, json, or mermaid")
	cmd.Flags().IntVarP(&flags.concurrency, "jobs", "j", 32, "maximum number of assemblies read in parallel")
	cmd.Flags().BoolVar(&flags.continueOnErr, "continue-on-load-errors", true, "keep scanning when one assembly fails to parse")
	cmd.Flags().StringVar(&flags.whyLive, "whylive", "", "print the root-to-symbol chain explaining why the named symbol survived the sweep, instead of the full report")

	return cmd
}

func runScan(root string, flags *scanFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.RootAssemblies = append(cfg.RootAssemblies, flags.rootAssembly...)
	cfg.TestMethodAttributes = append(cfg.TestMethodAttributes, flags.testAttr...)
	cfg.ReflectionMarkerAttributes = append(cfg.ReflectionMarkerAttributes, flags.reflectAttr...)

	format, err := parseFormat(flags.format)
	if err != nil {
		return err
	}

	logger := log.NewHelper(log.NewFilter(log.NewStdLogger(os.Stderr), log.FilterLevel(log.LevelWarn)))

	paths, err := walkAssemblies(root)
	if err != nil {
		return fmt.Errorf("walk %s: %w", root, err)
	}

	binaries, err := readAssemblies(paths, flags.concurrency, flags.continueOnErr, logger)
	if err != nil {
		return err
	}

	g := graph.New(graph.WithLogger(logger))
	for _, name := range cfg.RootAssemblies {
		g.RecordRootAssembly(name)
	}
	for _, attr := range cfg.TestMethodAttributes {
		g.RecordTestMethodAttribute(attr)
	}
	for _, attr := range cfg.ReflectionMarkerAttributes {
		g.RecordReflectionMarkerAttribute(attr)
	}
	for _, sym := range cfg.ReflectionSymbols {
		g.RecordReflectionSymbol(sym.Assembly, sym.Symbol)
	}

	for _, bin := range binaries {
		if _, err := g.MergeAssembly(bin); err != nil {
			return fmt.Errorf("merge %s: %w", bin.Path(), err)
		}
	}
	for _, bin := range binaries {
		bin.Close()
	}

	reporter, err := g.Done()
	if err != nil {
		return err
	}

	if flags.whyLive != "" {
		return printWhyLive(os.Stdout, reporter, flags.whyLive)
	}

	return reporter.Dump(os.Stdout, format)
}

// printWhyLive reports the root-to-symbol chain that kept symbolName out of
// the dead set, or explains why none exists.
func printWhyLive(w io.Writer, reporter *graph.Reporter, symbolName string) error {
	chain, found := reporter.WhyLive(symbolName)
	if !found {
		fmt.Fprintf(w, "%s: no such symbol in the graph\n", symbolName)
		return nil
	}
	if chain == nil {
		fmt.Fprintf(w, "%s: dead, not reachable from any root\n", symbolName)
		return nil
	}
	fmt.Fprintln(w, strings.Join(chain, "\n  references "))
	return nil
}

func parseFormat(s string) (graph.Format, error) {
	switch s {
	case "text", "":
		return graph.FormatText, nil
	case "json":
		return graph.FormatJSON, nil
	case "mermaid":
		return graph.FormatMermaid, nil
	default:
		return 0, fmt.Errorf("unknown format %q: want text, json, or mermaid", s)
	}
}

// walkAssemblies collects every .dll/.exe under root, grounded on the
// teacher CLI's own recursive file-list walk.
func walkAssemblies(root string) ([]string, error) {
	var paths []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".dll", ".exe":
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

// readAssemblies parses every path concurrently, bounded by concurrency,
// and returns the resulting BinaryHandles in no particular order. Parsing
// is the only part of a scan parallelized: the graph itself performs its
// merge pass single-threaded, so readAssemblies returns before any
// MergeAssembly call is made.
func readAssemblies(paths []string, concurrency int, continueOnErr bool, logger *log.Helper) ([]graph.BinaryHandle, error) {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	var (
		mu    sync.Mutex
		out   []graph.BinaryHandle
		group errgroup.Group
		sem   = make(chan struct{}, concurrency)
	)

	for _, p := range paths {
		path := p
		group.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			bin, err := readOne(path)
			if err != nil {
				if continueOnErr {
					logger.Warnf("skip %s: %v", path, err)
					return nil
				}
				return fmt.Errorf("%s: %w", path, err)
			}

			mu.Lock()
			out = append(out, bin)
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func readOne(path string) (graph.BinaryHandle, error) {
	pe, err := clrread.New(path, &clrread.Options{})
	if err != nil {
		return nil, err
	}
	if err := pe.Parse(); err != nil {
		pe.Close()
		return nil, err
	}
	return clrread.NewBinary(pe, path), nil
}
