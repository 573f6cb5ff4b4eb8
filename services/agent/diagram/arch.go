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
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/AleutianAI/atlas/services/knowledge"
	"github.com/AleutianAI/atlas/services/llm"
)

const (
	// archTemperature keeps layer assignment conservative; the model has
	// real module data and should not improvise structure.
	archTemperature = float32(0.3)
	archMaxTokens   = 4000

	criticalModuleCap = 10
	archFeatureCap    = 10
)

var (
	fencedMermaidRe = regexp.MustCompile("(?s)```(?:mermaid)?\\s*\\n(.*?)\\n```")
	fenceOpenRe     = regexp.MustCompile("^```[a-z]*\\s*\\n")
	fenceCloseRe    = regexp.MustCompile("\\n```\\s*$")

	mermaidHeaderRe = regexp.MustCompile(`(?i)^\s*(?:graph|flowchart|classDiagram|erDiagram|sequenceDiagram|stateDiagram|gantt|pie|gitgraph|journey|requirement)`)
)

// archModule is the per-module slice of the architecture prompt.
type archModule struct {
	ID   string `json:"id"`
	Path string `json:"path"`
	Name string `json:"name"`
}

// criticalModule is a high fan-in module surfaced to the LLM.
type criticalModule struct {
	Path  string `json:"path"`
	FanIn int    `json:"fan_in"`
}

// architectureData summarizes the graph for the architecture prompt.
type architectureData struct {
	ModulesByKind map[string][]archModule
	TotalModules  int
	EntryPoints   []string
	Critical      []criticalModule
	EdgeTypes     map[string]int
	Features      []string
}

// architectureResult produces the LLM-designed architecture diagram, or
// nil when no LLM is configured or generation failed; the caller then
// falls back to a dependency diagram.
func (g *Generator) architectureResult(ctx context.Context, message string) *Result {
	if g.client == nil {
		g.logger.Warn("no LLM configured for architecture diagram")
		return nil
	}

	code, err := g.architectureMermaid(ctx, message)
	if err != nil {
		g.logger.Warn("architecture diagram generation failed", "error", err)
		return nil
	}

	content, info := g.renderer.Render(ctx, code, defaultResolution)
	return &Result{
		DiagramType:     TypeArchitecture,
		Format:          FormatMermaid,
		Content:         content,
		MermaidCode:     code,
		ModulesIncluded: []string{},
		Metadata:        Metadata{GeneratedBy: "llm", RenderInfo: info},
	}
}

func (g *Generator) architectureMermaid(ctx context.Context, message string) (string, error) {
	prompt := architecturePrompt(g.collectArchitectureData(ctx), message)

	temp := archTemperature
	maxTokens := archMaxTokens
	out, err := g.client.Generate(ctx, prompt, llm.GenerationParams{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("architecture diagram generation: %w", err)
	}

	code := stripFences(strings.TrimSpace(out))
	if !mermaidHeaderRe.MatchString(code) {
		code = "graph TD\n" + code
	}
	return strings.TrimSpace(code), nil
}

func (g *Generator) collectArchitectureData(ctx context.Context) architectureData {
	graph := g.engine.Graph()

	data := architectureData{
		ModulesByKind: make(map[string][]archModule),
		TotalModules:  len(graph.Modules),
		EdgeTypes:     make(map[string]int),
	}

	for _, m := range graph.Modules {
		for _, kind := range m.Kinds {
			data.ModulesByKind[kind] = append(data.ModulesByKind[kind], archModule{
				ID:   m.ID,
				Path: m.Path,
				Name: path.Base(m.Path),
			})
		}
	}

	for _, m := range g.engine.EntryPointModules(ctx) {
		data.EntryPoints = append(data.EntryPoints, m.Path)
	}

	data.Critical = g.criticalModules(criticalModuleCap)

	for _, e := range graph.Edges {
		data.EdgeTypes[string(e.Type)]++
	}

	for i, f := range graph.Features {
		if i == archFeatureCap {
			break
		}
		data.Features = append(data.Features, f.Name)
	}

	return data
}

// criticalModules ranks modules by fan-in over imports and calls edges,
// counting ties in ID order so the prompt is stable.
func (g *Generator) criticalModules(limit int) []criticalModule {
	fanIn := make(map[string]int)
	for _, e := range g.engine.Graph().Edges {
		if e.Type != knowledge.EdgeImports && e.Type != knowledge.EdgeCalls {
			continue
		}
		from := knowledge.ModuleIDFromRef(e.From)
		to := knowledge.ModuleIDFromRef(e.To)
		if to == "" || to == from {
			continue
		}
		fanIn[to]++
	}

	ids := make([]string, 0, len(fanIn))
	for id := range fanIn {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if fanIn[ids[i]] != fanIn[ids[j]] {
			return fanIn[ids[i]] > fanIn[ids[j]]
		}
		return ids[i] < ids[j]
	})

	var critical []criticalModule
	for _, id := range ids {
		if len(critical) == limit {
			break
		}
		m := g.engine.ModuleByID(id)
		if m == nil {
			continue
		}
		critical = append(critical, criticalModule{Path: m.Path, FanIn: fanIn[id]})
	}
	return critical
}

func architecturePrompt(data architectureData, message string) string {
	var b strings.Builder
	b.WriteString("You are an expert software architect. Analyze the codebase structure and generate a comprehensive Mermaid architecture diagram.\n\n")
	b.WriteString("Codebase Summary:\n")
	fmt.Fprintf(&b, "- Total Modules: %d\n", data.TotalModules)
	fmt.Fprintf(&b, "- Modules by Kind:\n%s\n\n", jsonBlock(data.ModulesByKind))
	fmt.Fprintf(&b, "- Entry Points: %d\n%s\n\n", len(data.EntryPoints), jsonBlock(data.EntryPoints))
	fmt.Fprintf(&b, "- Critical Modules (High Fan-in): %d\n%s\n\n", len(data.Critical), jsonBlock(data.Critical))
	fmt.Fprintf(&b, "- Dependency Patterns:\n%s\n\n", jsonBlock(data.EdgeTypes))
	fmt.Fprintf(&b, "- Features: %d\n%s\n\n", len(data.Features), jsonBlock(data.Features))
	fmt.Fprintf(&b, "User Request: %s\n\n", message)
	b.WriteString(`Generate a Mermaid architecture diagram (graph TD format) that shows:
1. High-level architectural layers (e.g., Controllers, Services, Data Access, Entities, etc.)
2. Key modules/components in each layer (limit to most important ones)
3. Relationships and data flow between layers
4. Entry points and critical modules
5. Clear, readable structure with proper grouping

Requirements:
- Use Mermaid graph TD syntax
- Group related modules into subgraphs or layers
- Use descriptive labels (shorten long paths)
- Show data flow direction with arrows
- Keep the diagram readable (limit to ~20-30 key modules)
- Use appropriate node shapes and styling

Return ONLY the Mermaid code, no explanations or markdown formatting.`)
	return b.String()
}

func jsonBlock(v any) string {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(out)
}

// stripFences unwraps a markdown code block if the model added one
// despite instructions.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if m := fencedMermaidRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	s = fenceOpenRe.ReplaceAllString(s, "")
	return fenceCloseRe.ReplaceAllString(s, "")
}
