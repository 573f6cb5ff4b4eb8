// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diagram

import (
	"context"

	"github.com/AleutianAI/atlas/services/knowledge"
)

// graphData is the module/edge selection a renderer draws. ModuleIDs is
// in discovery order and Edges are deduplicated by endpoint pair.
type graphData struct {
	ModuleIDs []string
	Edges     []graphEdge
	Info      map[string]moduleInfo

	// Focused-diagram fields; zero for standard graphs.
	Targets   []string
	Direction string
	Focused   bool
}

type graphEdge struct {
	From string
	To   string
	Type string
}

// moduleInfo carries the per-node display attributes. Fan counts are
// only populated for focused graphs.
type moduleInfo struct {
	Path     string
	Kinds    []string
	FanIn    int
	FanOut   int
	IsTarget bool
}

// dependencyGraph selects seedIDs expanded to depth, or every module
// when seedIDs is nil, plus the imports/calls edges between them.
func (g *Generator) dependencyGraph(ctx context.Context, seedIDs []string, depth int) graphData {
	var moduleIDs []string
	if seedIDs == nil {
		modules := g.engine.Graph().Modules
		moduleIDs = make([]string, 0, len(modules))
		for _, m := range modules {
			moduleIDs = append(moduleIDs, m.ID)
		}
	} else {
		moduleIDs = g.engine.ImpactedModules(ctx, seedIDs, depth).ModuleIDs
	}

	included := make(map[string]bool, len(moduleIDs))
	for _, id := range moduleIDs {
		included[id] = true
	}

	var edges []graphEdge
	for _, e := range g.engine.Graph().Edges {
		if e.Type != knowledge.EdgeImports && e.Type != knowledge.EdgeCalls {
			continue
		}
		from := knowledge.ModuleIDFromRef(e.From)
		to := knowledge.ModuleIDFromRef(e.To)
		if from == "" || to == "" || !included[from] || !included[to] {
			continue
		}
		edges = append(edges, graphEdge{From: from, To: to, Type: string(e.Type)})
	}

	info := make(map[string]moduleInfo, len(moduleIDs))
	for _, id := range moduleIDs {
		if m := g.engine.ModuleByID(id); m != nil {
			info[id] = moduleInfo{Path: m.Path, Kinds: m.Kinds}
		}
	}

	return graphData{ModuleIDs: moduleIDs, Edges: edges, Info: info}
}

// focusedGraph builds the neighborhood of the target modules. Callers
// are drawn as calls edges and callees as imports edges; depth beyond 1
// expands through the impact traversal and pulls in the graph edges
// between every reached pair.
func (g *Generator) focusedGraph(ctx context.Context, targets []knowledge.Module, depth int, direction string) graphData {
	targetIDs := make([]string, 0, len(targets))
	for _, m := range targets {
		if m.ID != "" {
			targetIDs = append(targetIDs, m.ID)
		}
	}
	if len(targetIDs) == 0 {
		return graphData{
			ModuleIDs: []string{},
			Info:      map[string]moduleInfo{},
			Targets:   []string{},
			Direction: direction,
			Focused:   true,
		}
	}

	reached := make(map[string]bool, len(targetIDs))
	var order []string
	add := func(id string) {
		if id != "" && !reached[id] {
			reached[id] = true
			order = append(order, id)
		}
	}
	for _, id := range targetIDs {
		add(id)
	}

	var edges []graphEdge
	edgeSeen := make(map[[2]string]bool)
	addEdge := func(e graphEdge) {
		key := [2]string{e.From, e.To}
		if !edgeSeen[key] {
			edgeSeen[key] = true
			edges = append(edges, e)
		}
	}

	for _, id := range targetIDs {
		deps := g.engine.Dependencies(ctx, id)
		if direction == directionBoth || direction == directionIncoming {
			for _, caller := range deps.Callers {
				if caller.ID == "" || caller.ID == id {
					continue
				}
				add(caller.ID)
				addEdge(graphEdge{From: caller.ID, To: id, Type: string(knowledge.EdgeCalls)})
			}
		}
		if direction == directionBoth || direction == directionOutgoing {
			for _, callee := range deps.Callees {
				if callee.ID == "" || callee.ID == id {
					continue
				}
				add(callee.ID)
				addEdge(graphEdge{From: id, To: callee.ID, Type: string(knowledge.EdgeImports)})
			}
		}
	}

	if depth > 1 {
		for _, id := range g.engine.ImpactedModules(ctx, order, depth-1).ModuleIDs {
			add(id)
		}
		for _, e := range g.engine.Graph().Edges {
			if e.Type != knowledge.EdgeImports && e.Type != knowledge.EdgeCalls {
				continue
			}
			from := knowledge.ModuleIDFromRef(e.From)
			to := knowledge.ModuleIDFromRef(e.To)
			if from == "" || to == "" || !reached[from] || !reached[to] {
				continue
			}
			addEdge(graphEdge{From: from, To: to, Type: string(e.Type)})
		}
	}

	isTarget := make(map[string]bool, len(targetIDs))
	for _, id := range targetIDs {
		isTarget[id] = true
	}
	info := make(map[string]moduleInfo, len(order))
	for _, id := range order {
		mi := moduleInfo{Path: id, IsTarget: isTarget[id]}
		if m := g.engine.ModuleByID(id); m != nil {
			deps := g.engine.Dependencies(ctx, id)
			mi.Path = m.Path
			mi.Kinds = m.Kinds
			mi.FanIn = deps.FanIn
			mi.FanOut = deps.FanOut
		}
		info[id] = mi
	}

	return graphData{
		ModuleIDs: order,
		Edges:     edges,
		Info:      info,
		Targets:   targetIDs,
		Direction: direction,
		Focused:   true,
	}
}
