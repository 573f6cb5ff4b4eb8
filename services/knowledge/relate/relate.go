// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package relate extracts the typed edges of the knowledge graph:
// imports resolved against the module set, cross-module calls,
// extends/implements from class headers, and endpoint-to-handler
// links. It also computes per-module fan-in/fan-out.
//
// Everything is conservative: an import that does not resolve to a
// module in the graph, or a call whose target name is ambiguous, is
// dropped rather than guessed.
package relate

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/atlas/services/knowledge"
	"github.com/AleutianAI/atlas/services/knowledge/ast"
	"github.com/AleutianAI/atlas/services/knowledge/scan"
)

// Source pairs a built module with its normalizer output. Definitions
// may be nil for modules the normalizer produced nothing for.
type Source struct {
	Module      *knowledge.Module
	Definitions *ast.Definitions
}

// Extract builds the edge list and fan statistics for a repository.
//
// Description:
//
//	Resolves each module's imports against the graph's own module set,
//	emits calls edges for unambiguous cross-module call targets, scans
//	class headers (from source, under root) for extends/implements,
//	and links endpoints to their handler symbols. Duplicate edges
//	(same from, to, type) collapse; duplicate calls accumulate weight.
//
// Inputs:
//
//	root - Repository root, used to read class headers
//	sources - Built modules paired with their definitions
//	symbols - All built symbols (preliminary pass is fine)
//	endpoints - All detected endpoints
//
// Outputs:
//
//	[]knowledge.Edge - Edges in first-seen order
//	map[string]knowledge.FanStats - Per-module fan over imports+calls
func Extract(root string, sources []Source, symbols []knowledge.Symbol, endpoints []knowledge.Endpoint) ([]knowledge.Edge, map[string]knowledge.FanStats) {
	res := newResolver(sources)
	names := newSymbolIndex(symbols)
	set := newEdgeSet()

	for _, src := range sources {
		if src.Definitions == nil {
			continue
		}
		mod := src.Module
		language, _ := scan.LanguageForPath(mod.Path)
		dir := pathDir(mod.Path)

		for _, raw := range importStatements(language, src.Definitions) {
			target := res.resolve(language, dir, raw)
			if target == "" || target == mod.ID {
				continue
			}
			set.add(mod.ID, target, knowledge.EdgeImports)
		}

		for _, call := range src.Definitions.Calls {
			symID := names.resolveCall(call.Function)
			if symID == "" || knowledge.ModuleIDFromRef(symID) == mod.ID {
				continue
			}
			set.add(mod.ID, symID, knowledge.EdgeCalls)
		}
	}

	extractHeritage(root, sources, names, set)
	extractEndpointEdges(endpoints, names, set)

	return set.edges, fanStats(set.edges)
}

// importStatements picks the raw statements import resolution reads:
// include directives for C-family and ASP sources, import statements
// everywhere else.
func importStatements(language string, defs *ast.Definitions) []string {
	switch language {
	case scan.LangC, scan.LangCPP, scan.LangASP:
		return defs.Includes
	default:
		return defs.Imports
	}
}

// extractHeritage reads each class-bearing module's source and emits
// extends/implements edges for parents that resolve to exactly one
// known symbol.
func extractHeritage(root string, sources []Source, names *symbolIndex, set *edgeSet) {
	for _, src := range sources {
		defs := src.Definitions
		if defs == nil || (len(defs.Classes) == 0 && len(defs.Interfaces) == 0) {
			continue
		}
		language, _ := scan.LanguageForPath(src.Module.Path)
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(src.Module.Path)))
		if err != nil {
			continue
		}
		for _, clause := range parseHeritage(language, string(data)) {
			childID := knowledge.SymbolID(src.Module.ID, clause.child)
			if !names.byID[childID] {
				continue
			}
			parentID := names.resolveUnique(normalizeParent(clause.parent))
			if parentID == "" || parentID == childID {
				continue
			}
			set.add(childID, parentID, clause.typ)
		}
	}
}

// extractEndpointEdges links each endpoint to its handler symbol when
// the handler name resolves within the handling module.
func extractEndpointEdges(endpoints []knowledge.Endpoint, names *symbolIndex, set *edgeSet) {
	for _, ep := range endpoints {
		if ep.Handler == "" || ep.HandlerModuleID == "" {
			continue
		}
		symID := names.handlerInModule(ep.HandlerModuleID, ep.Handler)
		if symID == "" {
			continue
		}
		set.add(ep.ID, symID, knowledge.EdgeHandles)
	}
}

// ===== Edge dedupe =====

type edgeSet struct {
	edges []knowledge.Edge
	index map[string]int
}

func newEdgeSet() *edgeSet {
	return &edgeSet{index: make(map[string]int)}
}

func (s *edgeSet) add(from, to string, typ knowledge.EdgeType) {
	key := from + "\x00" + to + "\x00" + string(typ)
	if i, ok := s.index[key]; ok {
		if typ == knowledge.EdgeCalls {
			s.edges[i].Weight++
		}
		return
	}
	s.index[key] = len(s.edges)
	s.edges = append(s.edges, knowledge.Edge{From: from, To: to, Type: typ, Weight: 1})
}

// ===== Fan statistics =====

// fanStats counts distinct dependency partners per module over imports
// and calls edges. Self-references never count.
func fanStats(edges []knowledge.Edge) map[string]knowledge.FanStats {
	in := make(map[string]map[string]bool)
	out := make(map[string]map[string]bool)
	for _, e := range edges {
		if e.Type != knowledge.EdgeImports && e.Type != knowledge.EdgeCalls {
			continue
		}
		fromMod := knowledge.ModuleIDFromRef(e.From)
		toMod := knowledge.ModuleIDFromRef(e.To)
		if fromMod == "" || toMod == "" || fromMod == toMod {
			continue
		}
		markDep(out, fromMod, toMod)
		markDep(in, toMod, fromMod)
	}

	stats := make(map[string]knowledge.FanStats, len(in)+len(out))
	for id, partners := range in {
		st := stats[id]
		st.FanIn = len(partners)
		stats[id] = st
	}
	for id, partners := range out {
		st := stats[id]
		st.FanOut = len(partners)
		stats[id] = st
	}
	return stats
}

func markDep(sets map[string]map[string]bool, key, partner string) {
	if sets[key] == nil {
		sets[key] = make(map[string]bool)
	}
	sets[key][partner] = true
}

// ===== Symbol index =====

type symbolIndex struct {
	byID     map[string]bool
	byName   map[string][]string
	byModule map[string][]knowledge.Symbol
}

func newSymbolIndex(symbols []knowledge.Symbol) *symbolIndex {
	ix := &symbolIndex{
		byID:     make(map[string]bool, len(symbols)),
		byName:   make(map[string][]string),
		byModule: make(map[string][]knowledge.Symbol),
	}
	for _, sym := range symbols {
		ix.byID[sym.ID] = true
		ix.byName[sym.Name] = append(ix.byName[sym.Name], sym.ID)
		ix.byModule[sym.ModuleID] = append(ix.byModule[sym.ModuleID], sym)
	}
	return ix
}

// resolveUnique returns the symbol ID for name iff exactly one symbol
// carries it.
func (ix *symbolIndex) resolveUnique(name string) string {
	if ids := ix.byName[name]; len(ids) == 1 {
		return ids[0]
	}
	return ""
}

// resolveCall resolves a call target as written. Dotted targets fall
// back to their final segment, still requiring uniqueness.
func (ix *symbolIndex) resolveCall(target string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return ""
	}
	if id := ix.resolveUnique(target); id != "" {
		return id
	}
	if i := strings.LastIndex(target, "."); i >= 0 && i < len(target)-1 {
		return ix.resolveUnique(target[i+1:])
	}
	return ""
}

// handlerInModule finds the symbol for an endpoint handler: the exact
// name first, then a unique "Class.handler" method in the module.
func (ix *symbolIndex) handlerInModule(moduleID, handler string) string {
	exact := knowledge.SymbolID(moduleID, handler)
	if ix.byID[exact] {
		return exact
	}
	suffix := "." + handler
	found := ""
	for _, sym := range ix.byModule[moduleID] {
		if !strings.HasSuffix(sym.Name, suffix) {
			continue
		}
		if found != "" {
			return ""
		}
		found = sym.ID
	}
	return found
}

// pathDir is path.Dir for forward-slash module paths, with "" for
// root-level files.
func pathDir(relPath string) string {
	i := strings.LastIndex(relPath, "/")
	if i < 0 {
		return ""
	}
	return relPath[:i]
}
