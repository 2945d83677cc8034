// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package graph implements a symbol reference graph and mark-and-sweep
// reachability engine for collections of compiled .NET assemblies.
//
// It is organized as five cooperating components:
//
//   - Arena (arena.go): dense storage of every declared symbol behind a
//     32-bit handle space.
//   - Registry (registry.go): per-assembly symbol index keyed by
//     (name, kind), plus InternalsVisibleTo bookkeeping and duplicate
//     assembly tracking.
//   - Merge pass (merge.go): ingests one binary at a time through the
//     reader boundary (reader.go) and records direct references.
//   - Graph completion (completion.go): a single-shot, idempotent pass that
//     resolves forward references, synthesizes virtual-dispatch and
//     interface-implementation edges, propagates reflection markers, and
//     performs the mark-and-sweep reachability walk.
//   - Reachability & reports (reachability.go, report.go): the
//     mark-propagation primitive and the eight report projections over the
//     finalized graph.
//
// The builder API (builder.go) is the only way external code populates an
// AssemblyGraph; once Done is called, the graph is frozen and only the
// Reporter it returns may be queried.
package graph
