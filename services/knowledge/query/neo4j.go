// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package query

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/AleutianAI/atlas/services/knowledge"
	"github.com/AleutianAI/atlas/services/knowledge/store"
)

// maxTraversalDepth bounds the variable-length pattern interpolated
// into impact queries. The length position cannot be parameterized.
const maxTraversalDepth = 10

// DBEngine runs the query surface as Cypher against the graph
// database the store writes. Construct it from an open GraphStore:
//
//	engine := query.NewDBEngine(gs.Driver(), gs.Database(), logger)
type DBEngine struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

var _ Backend = (*DBEngine)(nil)

// NewDBEngine wraps an existing driver. logger may be nil.
func NewDBEngine(driver neo4j.DriverWithContext, database string, logger *slog.Logger) *DBEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &DBEngine{driver: driver, database: database, logger: logger}
}

// cypherPattern converts a *-wildcard pattern to the anchored-match
// regex form Cypher's =~ expects, with substring semantics.
func cypherPattern(pattern string) string {
	return "(?i).*" + strings.ReplaceAll(pattern, "*", ".*") + ".*"
}

// read runs one read transaction and collects its records.
func (d *DBEngine) read(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	sess := d.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: d.database})
	defer sess.Close(ctx)

	result, err := sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*neo4j.Record), nil
}

func (d *DBEngine) readModules(ctx context.Context, cypher string, params map[string]any) ([]knowledge.Module, error) {
	records, err := d.read(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	modules := make([]knowledge.Module, 0, len(records))
	for _, rec := range records {
		if props := store.NodeProps(rec, "mod"); props != nil {
			modules = append(modules, store.ModuleFromProps(props))
		}
	}
	return modules, nil
}

// ===== Module lookups =====

func (d *DBEngine) ModulesByTag(ctx context.Context, projectID, tag string) ([]knowledge.Module, error) {
	return d.readModules(ctx, `
		MATCH (proj:Project {id: $project_id})-[:HAS_MODULE]->(mod:Module)
		WHERE any(k IN mod.kind WHERE toLower(k) CONTAINS toLower($tag))
		RETURN mod
		ORDER BY mod.id
	`, map[string]any{"project_id": projectID, "tag": tag})
}

func (d *DBEngine) ModulesByKind(ctx context.Context, projectID, kind string) ([]knowledge.Module, error) {
	return d.readModules(ctx, `
		MATCH (proj:Project {id: $project_id})-[:HAS_MODULE]->(mod:Module)
		WHERE any(k IN mod.kind WHERE toLower(k) = toLower($kind))
		RETURN mod
		ORDER BY mod.id
	`, map[string]any{"project_id": projectID, "kind": kind})
}

func (d *DBEngine) ModulesByPathPattern(ctx context.Context, projectID, pattern string) ([]knowledge.Module, error) {
	return d.readModules(ctx, `
		MATCH (proj:Project {id: $project_id})-[:HAS_MODULE]->(mod:Module)
		WHERE mod.path =~ $pattern
		RETURN mod
		ORDER BY mod.id
	`, map[string]any{"project_id": projectID, "pattern": cypherPattern(pattern)})
}

func (d *DBEngine) ModulesByFilename(ctx context.Context, projectID, filename string) ([]knowledge.Module, error) {
	return d.readModules(ctx, `
		MATCH (proj:Project {id: $project_id})-[:HAS_MODULE]->(mod:Module)
		WHERE toLower(last(split(mod.path, '/'))) CONTAINS toLower($filename)
		RETURN mod
		ORDER BY mod.id
	`, map[string]any{"project_id": projectID, "filename": filename})
}

func (d *DBEngine) EntryPointModules(ctx context.Context, projectID string) ([]knowledge.Module, error) {
	names := make([]any, 0, len(entryPointNames))
	for name := range entryPointNames {
		names = append(names, name)
	}
	return d.readModules(ctx, `
		MATCH (proj:Project {id: $project_id})-[:HAS_MODULE]->(mod:Module)
		WHERE toLower(last(split(mod.path, '/'))) IN $names
		RETURN mod
		ORDER BY mod.id
	`, map[string]any{"project_id": projectID, "names": names})
}

func (d *DBEngine) AppComponentModules(ctx context.Context, projectID string) ([]knowledge.Module, error) {
	names := make([]any, 0, len(appComponentNames))
	for name := range appComponentNames {
		names = append(names, name)
	}
	return d.readModules(ctx, `
		MATCH (proj:Project {id: $project_id})-[:HAS_MODULE]->(mod:Module)
		WHERE toLower(last(split(mod.path, '/'))) IN $names
		   OR (toLower(mod.path) CONTAINS 'app' AND toLower(mod.path) CONTAINS 'component')
		RETURN mod
		ORDER BY mod.id
	`, map[string]any{"project_id": projectID, "names": names})
}

// ===== Endpoint and symbol lookups =====

func (d *DBEngine) EndpointsByPath(ctx context.Context, projectID, pattern string) ([]knowledge.Endpoint, error) {
	records, err := d.read(ctx, `
		MATCH (proj:Project {id: $project_id})-[:HAS_ENDPOINT]->(end:Endpoint)
		WHERE end.path =~ $pattern
		RETURN end
		ORDER BY end.id
	`, map[string]any{"project_id": projectID, "pattern": cypherPattern(pattern)})
	if err != nil {
		return nil, err
	}
	return collectEndpoints(records), nil
}

func (d *DBEngine) EndpointsByModule(ctx context.Context, projectID, moduleID string) ([]knowledge.Endpoint, error) {
	records, err := d.read(ctx, `
		MATCH (proj:Project {id: $project_id})-[:HAS_ENDPOINT]->(end:Endpoint)
		WHERE end.handlerModuleId = $module_id
		RETURN end
		ORDER BY end.id
	`, map[string]any{"project_id": projectID, "module_id": moduleID})
	if err != nil {
		return nil, err
	}
	return collectEndpoints(records), nil
}

func (d *DBEngine) SymbolsByName(ctx context.Context, projectID, pattern string) ([]knowledge.Symbol, error) {
	records, err := d.read(ctx, `
		MATCH (proj:Project {id: $project_id})-[:HAS_SYMBOL]->(sym:Symbol)
		WHERE sym.name =~ $pattern
		RETURN sym
		ORDER BY sym.id
	`, map[string]any{"project_id": projectID, "pattern": cypherPattern(pattern)})
	if err != nil {
		return nil, err
	}
	symbols := make([]knowledge.Symbol, 0, len(records))
	for _, rec := range records {
		if props := store.NodeProps(rec, "sym"); props != nil {
			symbols = append(symbols, store.SymbolFromProps(props))
		}
	}
	return symbols, nil
}

func collectEndpoints(records []*neo4j.Record) []knowledge.Endpoint {
	endpoints := make([]knowledge.Endpoint, 0, len(records))
	for _, rec := range records {
		if props := store.NodeProps(rec, "end"); props != nil {
			endpoints = append(endpoints, store.EndpointFromProps(props))
		}
	}
	return endpoints
}

// ===== Dependency queries =====

// Dependencies resolves callers and callees over IMPORTS and CALLS
// relationships, collapsing symbol endpoints to their owning module.
func (d *DBEngine) Dependencies(ctx context.Context, projectID, moduleID string) (*Dependencies, error) {
	callers, err := d.readModules(ctx, `
		MATCH (a)-[r:IMPORTS|CALLS]->(b)
		WHERE (a:Module OR a:Symbol) AND (b:Module OR b:Symbol)
		  AND (b.id = $module_id OR (b:Symbol AND b.moduleId = $module_id))
		WITH DISTINCT CASE WHEN a:Symbol THEN a.moduleId ELSE a.id END AS peer_id
		MATCH (proj:Project {id: $project_id})-[:HAS_MODULE]->(mod:Module {id: peer_id})
		RETURN DISTINCT mod
		ORDER BY mod.id
	`, map[string]any{"project_id": projectID, "module_id": moduleID})
	if err != nil {
		return nil, err
	}

	callees, err := d.readModules(ctx, `
		MATCH (a)-[r:IMPORTS|CALLS]->(b)
		WHERE (a:Module OR a:Symbol) AND (b:Module OR b:Symbol)
		  AND (a.id = $module_id OR (a:Symbol AND a.moduleId = $module_id))
		WITH DISTINCT CASE WHEN b:Symbol THEN b.moduleId ELSE b.id END AS peer_id
		MATCH (proj:Project {id: $project_id})-[:HAS_MODULE]->(mod:Module {id: peer_id})
		RETURN DISTINCT mod
		ORDER BY mod.id
	`, map[string]any{"project_id": projectID, "module_id": moduleID})
	if err != nil {
		return nil, err
	}

	return &Dependencies{
		Callers: callers,
		Callees: callees,
		FanIn:   len(callers),
		FanOut:  len(callees),
	}, nil
}

// ImpactedModules walks typed relationships in both directions up to
// depth hops. The depth interpolates into the variable-length pattern
// (Cypher cannot parameterize it), clamped to a sane bound.
func (d *DBEngine) ImpactedModules(ctx context.Context, projectID string, seedIDs []string, depth int) (*Impact, error) {
	seeds := make([]any, 0, len(seedIDs))
	for _, id := range seedIDs {
		seeds = append(seeds, id)
	}
	params := map[string]any{"project_id": projectID, "seed_ids": seeds}

	cypher := `
		MATCH (proj:Project {id: $project_id})-[:HAS_MODULE]->(mod:Module)
		WHERE mod.id IN $seed_ids
		RETURN DISTINCT mod`
	if depth > 0 {
		if depth > maxTraversalDepth {
			depth = maxTraversalDepth
		}
		cypher += fmt.Sprintf(`
		UNION
		MATCH (start)
		WHERE (start:Module OR start:Symbol) AND start.id IN $seed_ids
		MATCH (start)-[:IMPORTS|CALLS|EXTENDS|IMPLEMENTS|DEPENDS_ON*1..%d]-(other)
		WHERE (other:Module OR other:Symbol)
		WITH DISTINCT CASE WHEN other:Symbol THEN other.moduleId ELSE other.id END AS peer_id
		MATCH (proj:Project {id: $project_id})-[:HAS_MODULE]->(mod:Module {id: peer_id})
		RETURN DISTINCT mod`, depth)
	}

	modules, err := d.readModules(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].ID < modules[j].ID })

	idSet := make(map[string]bool, len(modules)+len(seedIDs))
	for _, id := range seedIDs {
		idSet[id] = true
	}
	files := make([]string, 0, len(modules))
	for _, m := range modules {
		idSet[m.ID] = true
		if m.Path != "" {
			files = append(files, m.Path)
		}
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return &Impact{
		Modules:   modules,
		ModuleIDs: ids,
		Files:     files,
		Depth:     depth,
	}, nil
}
