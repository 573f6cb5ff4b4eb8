// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package query answers structured questions over one loaded
// knowledge graph: tag and path lookups, symbol search, dependency
// neighborhoods, and bounded impact closures.
//
// # Design Principles
//
// Every operation has two implementations: an in-memory walk over the
// loaded document and a Cypher query against the graph database. When
// a database backend is attached the database path runs first and any
// error falls back to the in-memory path, so callers see one behavior
// regardless of infrastructure state. Outputs are plain documents
// either way, sorted by ID for deterministic responses.
//
// # Thread Safety
//
// An Engine is immutable after New and safe for concurrent use.
package query

import (
	"context"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/AleutianAI/atlas/services/knowledge"
)

// Dependencies describes one module's direct neighborhood over
// imports and calls edges.
type Dependencies struct {
	// Callers are the modules that import or call into the module.
	Callers []knowledge.Module `json:"callers"`

	// Callees are the modules the module imports or calls into.
	Callees []knowledge.Module `json:"callees"`

	// FanIn counts distinct caller module IDs, known or not.
	FanIn int `json:"fan_in_count"`

	// FanOut counts distinct callee module IDs, known or not.
	FanOut int `json:"fan_out_count"`
}

// Impact is the set of modules reachable from a seed set within a
// depth bound, following edges in both directions.
type Impact struct {
	// Modules are the reached modules that exist in the document.
	Modules []knowledge.Module `json:"impacted_modules"`

	// ModuleIDs are all reached IDs, including seeds that do not
	// resolve to a known module.
	ModuleIDs []string `json:"impacted_module_ids"`

	// Files are the paths of Modules, in the same order.
	Files []string `json:"impacted_files"`

	// Depth echoes the traversal bound.
	Depth int `json:"depth_reached"`
}

// Backend is the graph-database side of the query surface. *DBEngine
// implements it; the Engine treats every method as best-effort and
// falls back to its in-memory path on error.
type Backend interface {
	ModulesByTag(ctx context.Context, projectID, tag string) ([]knowledge.Module, error)
	ModulesByKind(ctx context.Context, projectID, kind string) ([]knowledge.Module, error)
	ModulesByPathPattern(ctx context.Context, projectID, pattern string) ([]knowledge.Module, error)
	ModulesByFilename(ctx context.Context, projectID, filename string) ([]knowledge.Module, error)
	EndpointsByPath(ctx context.Context, projectID, pattern string) ([]knowledge.Endpoint, error)
	EndpointsByModule(ctx context.Context, projectID, moduleID string) ([]knowledge.Endpoint, error)
	SymbolsByName(ctx context.Context, projectID, pattern string) ([]knowledge.Symbol, error)
	Dependencies(ctx context.Context, projectID, moduleID string) (*Dependencies, error)
	ImpactedModules(ctx context.Context, projectID string, seedIDs []string, depth int) (*Impact, error)
	EntryPointModules(ctx context.Context, projectID string) ([]knowledge.Module, error)
	AppComponentModules(ctx context.Context, projectID string) ([]knowledge.Module, error)
}

// Engine queries one knowledge graph.
type Engine struct {
	graph     *knowledge.Graph
	db        Backend // nil when no database is attached
	projectID string
	logger    *slog.Logger

	moduleByID   map[string]*knowledge.Module
	symbolByID   map[string]*knowledge.Symbol
	endpointByID map[string]*knowledge.Endpoint
}

// New builds an Engine over graph. db may be nil; logger may be nil
// for slog.Default().
func New(graph *knowledge.Graph, db Backend, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		graph:        graph,
		db:           db,
		projectID:    graph.Project.ID,
		logger:       logger,
		moduleByID:   make(map[string]*knowledge.Module, len(graph.Modules)),
		symbolByID:   make(map[string]*knowledge.Symbol, len(graph.Symbols)),
		endpointByID: make(map[string]*knowledge.Endpoint, len(graph.Endpoints)),
	}
	for i := range graph.Modules {
		e.moduleByID[graph.Modules[i].ID] = &graph.Modules[i]
	}
	for i := range graph.Symbols {
		e.symbolByID[graph.Symbols[i].ID] = &graph.Symbols[i]
	}
	for i := range graph.Endpoints {
		e.endpointByID[graph.Endpoints[i].ID] = &graph.Endpoints[i]
	}
	return e
}

// Graph returns the underlying document.
func (e *Engine) Graph() *knowledge.Graph { return e.graph }

// ModuleByID returns the module with the given ID, or nil.
func (e *Engine) ModuleByID(id string) *knowledge.Module { return e.moduleByID[id] }

// SymbolByID returns the symbol with the given ID, or nil.
func (e *Engine) SymbolByID(id string) *knowledge.Symbol { return e.symbolByID[id] }

// EndpointByID returns the endpoint with the given ID, or nil.
func (e *Engine) EndpointByID(id string) *knowledge.Endpoint { return e.endpointByID[id] }

// useDB reports whether the database path should be tried.
func (e *Engine) useDB() bool {
	return e.db != nil && e.projectID != ""
}

// fallback logs a failed database query before the in-memory path runs.
func (e *Engine) fallback(op string, err error) {
	e.logger.Warn("graph database query failed, using in-memory path",
		"query", op, "project_id", e.projectID, "error", err)
}

// ===== Module lookups =====

// ModulesByTag returns modules whose kind tags contain tag,
// case-insensitively.
func (e *Engine) ModulesByTag(ctx context.Context, tag string) []knowledge.Module {
	if e.useDB() {
		if modules, err := e.db.ModulesByTag(ctx, e.projectID, tag); err == nil {
			return modules
		} else {
			e.fallback("modules_by_tag", err)
		}
	}

	needle := strings.ToLower(tag)
	var out []knowledge.Module
	for _, m := range e.graph.Modules {
		for _, kind := range m.Kinds {
			if strings.Contains(strings.ToLower(kind), needle) {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

// ModulesByKind returns modules carrying exactly the given kind tag,
// case-insensitively.
func (e *Engine) ModulesByKind(ctx context.Context, kind string) []knowledge.Module {
	if e.useDB() {
		if modules, err := e.db.ModulesByKind(ctx, e.projectID, kind); err == nil {
			return modules
		} else {
			e.fallback("modules_by_kind", err)
		}
	}

	needle := strings.ToLower(kind)
	var out []knowledge.Module
	for _, m := range e.graph.Modules {
		for _, k := range m.Kinds {
			if strings.ToLower(k) == needle {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

// ModulesByPathPattern returns modules whose path matches the
// *-wildcard pattern anywhere, case-insensitively. The pattern is
// compiled as a regular expression with * expanded to .*; other
// regex metacharacters pass through.
func (e *Engine) ModulesByPathPattern(ctx context.Context, pattern string) ([]knowledge.Module, error) {
	if e.useDB() {
		if modules, err := e.db.ModulesByPathPattern(ctx, e.projectID, pattern); err == nil {
			return modules, nil
		} else {
			e.fallback("modules_by_path_pattern", err)
		}
	}

	re, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}
	var out []knowledge.Module
	for _, m := range e.graph.Modules {
		if re.MatchString(m.Path) {
			out = append(out, m)
		}
	}
	return out, nil
}

// ModulesByFilename returns modules whose basename contains filename,
// case-insensitively.
func (e *Engine) ModulesByFilename(ctx context.Context, filename string) []knowledge.Module {
	if e.useDB() {
		if modules, err := e.db.ModulesByFilename(ctx, e.projectID, filename); err == nil {
			return modules
		} else {
			e.fallback("modules_by_filename", err)
		}
	}

	needle := strings.ToLower(filename)
	var out []knowledge.Module
	for _, m := range e.graph.Modules {
		if strings.Contains(strings.ToLower(path.Base(m.Path)), needle) {
			out = append(out, m)
		}
	}
	return out
}

// entryPointNames is the closed basename set of conventional program
// entry files, lowercased for comparison.
var entryPointNames = map[string]bool{
	"main.ts": true, "main.js": true, "main.tsx": true, "main.jsx": true,
	"index.ts": true, "index.js": true, "index.tsx": true, "index.jsx": true,
	"app.py": true, "main.py": true, "__main__.py": true,
	"main.java": true, "application.java": true,
	"program.cs": true, "main.cs": true,
	"main.cpp": true, "main.c": true,
}

// EntryPointModules returns modules whose basename is a conventional
// program entry file.
func (e *Engine) EntryPointModules(ctx context.Context) []knowledge.Module {
	if e.useDB() {
		if modules, err := e.db.EntryPointModules(ctx, e.projectID); err == nil {
			return modules
		} else {
			e.fallback("entry_point_modules", err)
		}
	}

	var out []knowledge.Module
	for _, m := range e.graph.Modules {
		if entryPointNames[strings.ToLower(path.Base(m.Path))] {
			out = append(out, m)
		}
	}
	return out
}

// appComponentNames is the closed basename set of root application
// component files, lowercased for comparison.
var appComponentNames = map[string]bool{
	"app.component.ts": true, "app.component.js": true,
	"app.component.tsx": true, "app.component.jsx": true,
	"app.tsx": true, "app.jsx": true, "app.ts": true, "app.js": true,
	"appcomponent.tsx": true, "appcomponent.jsx": true,
	"main.component.ts": true, "root.component.ts": true,
}

// AppComponentModules returns modules that look like the root
// application component: a known basename, or a path mentioning both
// "app" and "component".
func (e *Engine) AppComponentModules(ctx context.Context) []knowledge.Module {
	if e.useDB() {
		if modules, err := e.db.AppComponentModules(ctx, e.projectID); err == nil {
			return modules
		} else {
			e.fallback("app_component_modules", err)
		}
	}

	var out []knowledge.Module
	for _, m := range e.graph.Modules {
		lower := strings.ToLower(m.Path)
		if appComponentNames[path.Base(lower)] {
			out = append(out, m)
		} else if strings.Contains(lower, "app") && strings.Contains(lower, "component") {
			out = append(out, m)
		}
	}
	return out
}

// ===== Endpoint and symbol lookups =====

// EndpointsByPath returns endpoints whose route path matches the
// *-wildcard pattern anywhere, case-insensitively.
func (e *Engine) EndpointsByPath(ctx context.Context, pattern string) ([]knowledge.Endpoint, error) {
	if e.useDB() {
		if endpoints, err := e.db.EndpointsByPath(ctx, e.projectID, pattern); err == nil {
			return endpoints, nil
		} else {
			e.fallback("endpoints_by_path", err)
		}
	}

	re, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}
	var out []knowledge.Endpoint
	for _, ep := range e.graph.Endpoints {
		if re.MatchString(ep.Path) {
			out = append(out, ep)
		}
	}
	return out, nil
}

// EndpointsByModule returns the endpoints handled by a module.
func (e *Engine) EndpointsByModule(ctx context.Context, moduleID string) []knowledge.Endpoint {
	if e.useDB() {
		if endpoints, err := e.db.EndpointsByModule(ctx, e.projectID, moduleID); err == nil {
			return endpoints
		} else {
			e.fallback("endpoints_by_module", err)
		}
	}

	var out []knowledge.Endpoint
	for _, ep := range e.graph.Endpoints {
		if ep.HandlerModuleID == moduleID {
			out = append(out, ep)
		}
	}
	return out
}

// SymbolsByName returns symbols whose name matches the *-wildcard
// pattern anywhere, case-insensitively.
func (e *Engine) SymbolsByName(ctx context.Context, pattern string) ([]knowledge.Symbol, error) {
	if e.useDB() {
		if symbols, err := e.db.SymbolsByName(ctx, e.projectID, pattern); err == nil {
			return symbols, nil
		} else {
			e.fallback("symbols_by_name", err)
		}
	}

	re, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}
	var out []knowledge.Symbol
	for _, s := range e.graph.Symbols {
		if re.MatchString(s.Name) {
			out = append(out, s)
		}
	}
	return out, nil
}

// ===== Dependency queries =====

// Dependencies returns the modules directly importing or calling into
// moduleID (callers) and those it imports or calls into (callees).
// Only imports and calls edges count; symbol endpoints collapse to
// their owning module.
func (e *Engine) Dependencies(ctx context.Context, moduleID string) *Dependencies {
	if e.useDB() {
		if deps, err := e.db.Dependencies(ctx, e.projectID, moduleID); err == nil {
			return deps
		} else {
			e.fallback("dependencies", err)
		}
	}

	callers := make(map[string]bool)
	callees := make(map[string]bool)
	for _, edge := range e.graph.Edges {
		if edge.Type != knowledge.EdgeImports && edge.Type != knowledge.EdgeCalls {
			continue
		}
		from := knowledge.ModuleIDFromRef(edge.From)
		to := knowledge.ModuleIDFromRef(edge.To)
		if from == "" || to == "" {
			continue
		}
		if from == moduleID {
			callees[to] = true
		} else if to == moduleID {
			callers[from] = true
		}
	}

	return &Dependencies{
		Callers: e.modulesFromIDSet(callers),
		Callees: e.modulesFromIDSet(callees),
		FanIn:   len(callers),
		FanOut:  len(callees),
	}
}

// ImpactedModules returns every module reachable from the seeds
// within depth hops, walking edges in both directions. Seeds that do
// not resolve to known modules still appear in ModuleIDs.
func (e *Engine) ImpactedModules(ctx context.Context, seedIDs []string, depth int) *Impact {
	if e.useDB() {
		if impact, err := e.db.ImpactedModules(ctx, e.projectID, seedIDs, depth); err == nil {
			return impact
		} else {
			e.fallback("impacted_modules", err)
		}
	}

	// Module-level adjacency in both directions, over every edge
	// whose endpoints resolve to modules.
	neighbors := make(map[string][]string)
	link := func(a, b string) {
		neighbors[a] = append(neighbors[a], b)
	}
	for _, edge := range e.graph.Edges {
		from := knowledge.ModuleIDFromRef(edge.From)
		to := knowledge.ModuleIDFromRef(edge.To)
		if from == "" || to == "" || from == to {
			continue
		}
		link(from, to)
		link(to, from)
	}

	type item struct {
		id    string
		depth int
	}
	impacted := make(map[string]bool, len(seedIDs))
	visited := make(map[string]bool)
	queue := make([]item, 0, len(seedIDs))
	for _, id := range seedIDs {
		impacted[id] = true
		queue = append(queue, item{id, 0})
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur.id] || cur.depth > depth {
			continue
		}
		visited[cur.id] = true
		impacted[cur.id] = true
		for _, next := range neighbors[cur.id] {
			if !visited[next] {
				queue = append(queue, item{next, cur.depth + 1})
			}
		}
	}

	ids := make([]string, 0, len(impacted))
	for id := range impacted {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	modules := make([]knowledge.Module, 0, len(ids))
	files := make([]string, 0, len(ids))
	for _, id := range ids {
		if m := e.moduleByID[id]; m != nil {
			modules = append(modules, *m)
			if m.Path != "" {
				files = append(files, m.Path)
			}
		}
	}

	return &Impact{
		Modules:   modules,
		ModuleIDs: ids,
		Files:     files,
		Depth:     depth,
	}
}

// modulesFromIDSet resolves an ID set to known modules, sorted by ID.
func (e *Engine) modulesFromIDSet(ids map[string]bool) []knowledge.Module {
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	out := make([]knowledge.Module, 0, len(sorted))
	for _, id := range sorted {
		if m := e.moduleByID[id]; m != nil {
			out = append(out, *m)
		}
	}
	return out
}

// compilePattern turns a *-wildcard pattern into an unanchored
// case-insensitive regexp.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + strings.ReplaceAll(pattern, "*", ".*"))
}
