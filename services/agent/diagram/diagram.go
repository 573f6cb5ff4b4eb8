// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diagram renders dependency and architecture diagrams from the
// knowledge graph.
//
// # Design Principles
//
//   - Diagram selection is keyword-driven. Architecture requests summarize
//     the whole graph through the LLM; everything else is drawn directly
//     from edges, so dependency diagrams work without a model configured.
//   - Rendering degrades instead of failing: a headless browser, then the
//     mmdc CLI, then the mermaid.ink service, and finally the raw mermaid
//     code block.
//   - Node identity inside a diagram is positional (M0, M1, ...) so output
//     is stable for a given graph and request.
//
// # Thread Safety
//
// Generator is safe for concurrent use.
package diagram

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/AleutianAI/atlas/services/agent/intent"
	"github.com/AleutianAI/atlas/services/knowledge/query"
	"github.com/AleutianAI/atlas/services/llm"
)

// Diagram types, in selection order.
const (
	TypeArchitecture = "architecture"
	TypeFocused      = "focused_dependency"
	TypeModule       = "module"
	TypeDependency   = "dependency"
)

// Output formats.
const (
	FormatMermaid = "mermaid"
	FormatDot     = "dot"
	FormatText    = "text"
)

const (
	// defaultDepth bounds graph traversal when the message names none.
	defaultDepth = 2

	// defaultResolution doubles the base viewport so labels stay crisp.
	defaultResolution = 2

	// maxTargetPaths caps the target paths echoed in metadata.
	maxTargetPaths = 5
)

var (
	depthRe      = regexp.MustCompile(`(?:depth|level)\s*[:\s]*(\d+)`)
	modIDRe      = regexp.MustCompile(`mod:[^\s]+`)
	modulePathRe = regexp.MustCompile(`[a-zA-Z0-9_/\\-]+\.(?:tsx|ts|jsx|js|py)\b`)
)

// Result is the diagram payload returned to the orchestrator. Content is
// the displayable form: a markdown image for rendered mermaid, otherwise
// the diagram source itself.
type Result struct {
	DiagramType     string   `json:"diagram_type"`
	Format          string   `json:"format"`
	Content         string   `json:"content"`
	MermaidCode     string   `json:"mermaid_code,omitempty"`
	ModulesIncluded []string `json:"modules_included"`
	Metadata        Metadata `json:"metadata"`
}

// Metadata describes how a diagram was produced. Render fields are only
// meaningful for the mermaid format; focus fields only for focused
// dependency diagrams.
type Metadata struct {
	Depth       int    `json:"depth,omitempty"`
	EdgeCount   int    `json:"edge_count"`
	ModuleCount int    `json:"module_count"`
	GeneratedBy string `json:"generated_by,omitempty"`

	RenderInfo

	TargetModules     []string `json:"target_modules,omitempty"`
	TargetModulePaths []string `json:"target_module_paths,omitempty"`
	Direction         string   `json:"direction,omitempty"`
	IsFocused         bool     `json:"is_focused,omitempty"`
}

// Generator builds diagrams for one knowledge graph.
type Generator struct {
	engine   *query.Engine
	client   llm.LLMClient
	logger   *slog.Logger
	renderer renderer
}

// NewGenerator returns a Generator over engine. client may be nil;
// architecture requests then degrade to plain dependency diagrams.
func NewGenerator(engine *query.Engine, client llm.LLMClient, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		engine:   engine,
		client:   client,
		logger:   logger,
		renderer: newChainRenderer(logger),
	}
}

// Generate builds the diagram a message asks for. It never fails: an
// unavailable LLM or renderer degrades to plainer output.
func (g *Generator) Generate(ctx context.Context, in intent.Intent, message string) *Result {
	lower := strings.ToLower(message)

	parsed := parseQuery(message)
	targets := g.findModules(ctx, parsed)

	diagramType, seedIDs := g.selectType(ctx, in, lower, message, len(targets) > 0)
	format := selectFormat(lower)
	depth := parseDepth(lower)

	if diagramType == TypeArchitecture {
		if res := g.architectureResult(ctx, message); res != nil {
			return res
		}
		g.logger.Warn("architecture diagram unavailable, falling back to dependency diagram")
		diagramType = TypeDependency
	}

	var graph graphData
	if diagramType == TypeFocused {
		graph = g.focusedGraph(ctx, targets, depth, parsed.Direction)
	} else {
		graph = g.dependencyGraph(ctx, seedIDs, depth)
	}

	var content, mermaidCode string
	var info RenderInfo
	switch format {
	case FormatDot:
		content = renderDOT(graph)
	case FormatMermaid:
		mermaidCode = renderMermaid(graph)
		content, info = g.renderer.Render(ctx, mermaidCode, defaultResolution)
	default:
		content = renderTextTree(graph)
	}

	meta := Metadata{
		Depth:       depth,
		EdgeCount:   len(graph.Edges),
		ModuleCount: len(graph.ModuleIDs),
		RenderInfo:  info,
	}
	if diagramType == TypeFocused {
		meta.TargetModules = graph.Targets
		meta.Direction = graph.Direction
		meta.IsFocused = true
		for i, m := range targets {
			if i == maxTargetPaths {
				break
			}
			meta.TargetModulePaths = append(meta.TargetModulePaths, m.Path)
		}
	}

	return &Result{
		DiagramType:     diagramType,
		Format:          format,
		Content:         content,
		MermaidCode:     mermaidCode,
		ModulesIncluded: graph.ModuleIDs,
		Metadata:        meta,
	}
}

// selectType picks the diagram type and, for the module type, the seed
// module ID. Architecture wins on architecture-ish wording or an explicit
// intent hint; a successful target search wins next, so "diagram for
// login.service.ts" focuses on that module rather than drawing the whole
// graph.
func (g *Generator) selectType(ctx context.Context, in intent.Intent, lower, message string, hasTargets bool) (string, []string) {
	architecture := in.DiagramType == TypeArchitecture ||
		strings.Contains(lower, "architecture") ||
		strings.Contains(lower, "project") ||
		strings.Contains(lower, "structure")

	switch {
	case architecture:
		return TypeArchitecture, nil
	case hasTargets:
		return TypeFocused, nil
	case strings.Contains(lower, "module"):
		if id := g.extractModule(ctx, message); id != "" {
			return TypeModule, []string{id}
		}
		return TypeDependency, nil
	default:
		return TypeDependency, nil
	}
}

func selectFormat(lower string) string {
	switch {
	case strings.Contains(lower, "mermaid"):
		return FormatMermaid
	case strings.Contains(lower, "dot") || strings.Contains(lower, "graphviz"):
		return FormatDot
	default:
		return FormatMermaid
	}
}

func parseDepth(lower string) int {
	if !strings.Contains(lower, "depth") && !strings.Contains(lower, "level") {
		return defaultDepth
	}
	m := depthRe.FindStringSubmatch(lower)
	if m == nil {
		return defaultDepth
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return defaultDepth
	}
	return n
}

// extractModule resolves the module a message names: an explicit mod: ID
// (taken verbatim, known or not), then a file path scanned against module
// paths, then the full target search. Empty when nothing matches.
func (g *Generator) extractModule(ctx context.Context, message string) string {
	if id := modIDRe.FindString(message); id != "" {
		return id
	}

	if p := modulePathRe.FindString(message); p != "" {
		for _, m := range g.engine.Graph().Modules {
			if strings.Contains(m.Path, p) || strings.HasSuffix(m.Path, p) {
				return m.ID
			}
		}
	}

	if targets := g.findModules(ctx, parseQuery(message)); len(targets) > 0 {
		return targets[0].ID
	}
	return ""
}
