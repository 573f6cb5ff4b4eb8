// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package answer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/atlas/services/knowledge"
)

func (h *Handler) entryFileAnswer(ctx context.Context, question string) string {
	entries := h.engine.EntryPointModules(ctx)
	if len(entries) == 0 {
		return "No entry point files found in this project. Entry points are typically " +
			"files like main.ts, index.ts, app.py, or main.py that serve as the " +
			"application's starting point."
	}

	prompt := fmt.Sprintf(`You are a helpful assistant answering questions about a codebase. The user is asking about entry files.

%s

User question: %s

Provide a clear, detailed answer about the entry files in this project. Identify which file is the main entry point and explain its purpose.`,
		h.entryFileContext(ctx), question)
	if out, ok := h.render(ctx, prompt); ok {
		return out
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d entry point file(s):\n\n", len(entries))
	for _, mod := range entries {
		fmt.Fprintf(&b, "- %s\n", mod.Path)
		if mod.ModuleSummary != "" {
			fmt.Fprintf(&b, "  %s\n", mod.ModuleSummary)
		}
	}
	return b.String()
}

func (h *Handler) appComponentAnswer(ctx context.Context, question string) string {
	components := h.engine.AppComponentModules(ctx)
	if len(components) == 0 {
		return "No app component files found in this project. App components are " +
			"typically files like app.component.ts, App.tsx, or App.jsx that serve " +
			"as the root component of the application."
	}

	prompt := fmt.Sprintf(`You are a helpful assistant answering questions about a codebase. The user is asking about app components.

%s

User question: %s

Provide a clear, detailed answer about the app component(s) in this project. Identify the main/root component and explain its structure and purpose.`,
		h.appComponentContext(ctx), question)
	if out, ok := h.render(ctx, prompt); ok {
		return out
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d app component file(s):\n\n", len(components))
	for _, mod := range components {
		fmt.Fprintf(&b, "- %s\n", mod.Path)
		if mod.ModuleSummary != "" {
			fmt.Fprintf(&b, "  %s\n", mod.ModuleSummary)
		}
		if len(mod.Exports) > 0 {
			fmt.Fprintf(&b, "  Exports %d symbols\n", len(mod.Exports))
		}
	}
	return b.String()
}

func (h *Handler) featuresAnswer(ctx context.Context, question string) string {
	features := h.engine.Graph().Features
	if len(features) == 0 {
		return "No features found in this project. Features are typically organized " +
			"areas of functionality in the codebase."
	}

	prompt := fmt.Sprintf(`You are a helpful assistant answering questions about a codebase. The user is asking about features.

%s

User question: %s

Provide a clear, detailed answer about the features in this project. List and describe each feature area and what functionality it provides.`,
		h.featuresContext(), question)
	if out, ok := h.render(ctx, prompt); ok {
		return out
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d feature(s):\n\n", len(features))
	for _, feat := range features {
		fmt.Fprintf(&b, "- %s", nameOr(feat.Name, "Unknown"))
		if feat.Path != "" {
			fmt.Fprintf(&b, " (%s)", feat.Path)
		}
		fmt.Fprintf(&b, " - %d modules\n", len(feat.ModuleIDs))
	}
	return b.String()
}

// projectSummary is deterministic: one sentence from graph counts.
func (h *Handler) projectSummary() string {
	g := h.engine.Graph()
	base := fmt.Sprintf("Project %s with %d modules", nameOr(g.Project.Name, "Unknown"), len(g.Modules))

	var details []string
	if len(g.Project.Languages) > 0 {
		details = append(details, "written in "+strings.Join(g.Project.Languages, ", "))
	}
	if len(g.Endpoints) > 0 {
		details = append(details, fmt.Sprintf("with %d API endpoints", len(g.Endpoints)))
	}
	if len(g.Features) > 0 {
		details = append(details, fmt.Sprintf("organized into %d feature areas", len(g.Features)))
	}
	if len(details) > 0 {
		return fmt.Sprintf("%s. %s.", base, strings.Join(details, ", "))
	}
	return base
}

func (h *Handler) dependenciesAnswer(ctx context.Context, moduleID string) string {
	if moduleID != "" {
		mod := h.engine.ModuleByID(moduleID)
		if mod == nil {
			return fmt.Sprintf("Module %s not found.", moduleID)
		}
		deps := h.engine.Dependencies(ctx, moduleID)

		var b strings.Builder
		fmt.Fprintf(&b, "Module %s:\n", mod.Path)
		if len(deps.Callees) > 0 {
			fmt.Fprintf(&b, "\nDependencies (%d):\n", len(deps.Callees))
			for _, callee := range first(deps.Callees, 10) {
				fmt.Fprintf(&b, "  - %s\n", callee.Path)
			}
		}
		if len(deps.Callers) > 0 {
			fmt.Fprintf(&b, "\nUsed by (%d):\n", len(deps.Callers))
			for _, caller := range first(deps.Callers, 10) {
				fmt.Fprintf(&b, "  - %s\n", caller.Path)
			}
		}
		return b.String()
	}

	// Project-wide: import-edge totals and the heaviest importers.
	g := h.engine.Graph()
	importEdges := 0
	counts := make(map[string]int)
	for _, e := range g.Edges {
		if e.Type != knowledge.EdgeImports {
			continue
		}
		importEdges++
		if id := knowledge.ModuleIDFromRef(e.From); id != "" {
			counts[id]++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Project has %d modules with %d dependency relationships.\n", len(g.Modules), importEdges)
	b.WriteString("\nTop modules by dependencies:\n")
	for _, d := range first(sortedDegrees(counts, 0), 10) {
		if mod := h.engine.ModuleByID(d.id); mod != nil {
			fmt.Fprintf(&b, "  - %s: %d dependencies\n", mod.Path, d.n)
		}
	}
	return b.String()
}

func (h *Handler) explainModule(ctx context.Context, moduleID string) string {
	mod := h.engine.ModuleByID(moduleID)
	if mod == nil {
		return fmt.Sprintf("Module %s not found.", moduleID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Module: %s\n", mod.Path)
	if len(mod.Kinds) > 0 {
		fmt.Fprintf(&b, "Type: %s\n", strings.Join(mod.Kinds, ", "))
	}
	if mod.ModuleSummary != "" {
		fmt.Fprintf(&b, "\nSummary: %s\n", mod.ModuleSummary)
	}
	if len(mod.Exports) > 0 {
		fmt.Fprintf(&b, "\nExports %d symbols:\n", len(mod.Exports))
		for _, symbolID := range first(mod.Exports, 10) {
			if sym := h.engine.SymbolByID(symbolID); sym != nil {
				fmt.Fprintf(&b, "  - %s %s\n", sym.Kind, sym.Name)
			}
		}
	}

	deps := h.engine.Dependencies(ctx, moduleID)
	if len(deps.Callees) > 0 {
		fmt.Fprintf(&b, "\nDepends on %d modules", len(deps.Callees))
	}
	if len(deps.Callers) > 0 {
		fmt.Fprintf(&b, "\nUsed by %d modules", len(deps.Callers))
	}
	return b.String()
}

func (h *Handler) listModules() string {
	mods := h.engine.Graph().Modules
	if len(mods) == 0 {
		return "No modules found in the project."
	}

	byKind := make(map[string][]knowledge.Module)
	for _, mod := range mods {
		kind := "other"
		if len(mod.Kinds) > 0 {
			kind = mod.Kinds[0]
		}
		byKind[kind] = append(byKind[kind], mod)
	}
	kinds := make([]string, 0, len(byKind))
	for kind := range byKind {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	var b strings.Builder
	fmt.Fprintf(&b, "Project contains %d modules:\n\n", len(mods))
	for _, kind := range kinds {
		group := byKind[kind]
		fmt.Fprintf(&b, "%s (%d):\n", strings.ToUpper(kind), len(group))
		for _, mod := range first(group, 20) {
			fmt.Fprintf(&b, "  - %s\n", mod.Path)
		}
		if len(group) > 20 {
			fmt.Fprintf(&b, "  ... and %d more\n", len(group)-20)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (h *Handler) listEndpoints() string {
	endpoints := h.engine.Graph().Endpoints
	if len(endpoints) == 0 {
		return "No API endpoints found in the project."
	}

	byMethod := make(map[string][]knowledge.Endpoint)
	for _, ep := range endpoints {
		method := ep.Method
		if method == "" {
			method = "UNKNOWN"
		}
		byMethod[method] = append(byMethod[method], ep)
	}
	methods := make([]string, 0, len(byMethod))
	for method := range byMethod {
		methods = append(methods, method)
	}
	sort.Strings(methods)

	var b strings.Builder
	fmt.Fprintf(&b, "Project has %d API endpoints:\n\n", len(endpoints))
	for _, method := range methods {
		group := byMethod[method]
		fmt.Fprintf(&b, "%s:\n", method)
		for _, ep := range first(group, 20) {
			fmt.Fprintf(&b, "  - %s", ep.Path)
			if ep.Handler != "" {
				fmt.Fprintf(&b, " (%s)", ep.Handler)
			}
			b.WriteString("\n")
		}
		if len(group) > 20 {
			fmt.Fprintf(&b, "  ... and %d more\n", len(group)-20)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (h *Handler) generalAnswer(ctx context.Context, question string) string {
	if h.client == nil {
		return "I can answer questions about the project structure, but LLM is not " +
			"available for detailed analysis."
	}

	info := h.fullProjectContext(ctx)
	lower := strings.ToLower(question)
	if containsAny(lower, "entry", "main file", "startup", "entry point", "entry file") {
		info += "\n\n" + h.entryFileContext(ctx)
	}
	if containsAny(lower, "app component", "root component", "main component") {
		info += "\n\n" + h.appComponentContext(ctx)
	}
	if containsAny(lower, "features", "feature", "what features") {
		info += "\n\n" + h.featuresContext()
	}

	prompt := fmt.Sprintf(`You are a helpful assistant answering questions about a codebase. Use the following comprehensive project information to answer the user's question.

%s

User question: %s

Provide a clear, concise, and accurate answer based on the complete project structure and knowledge graph.
- If asked about entry files, identify and describe the main entry point files
- If asked about app components, identify and describe the root/app component files
- If asked about features, list and describe the feature areas
- Use the module summaries and exports information when relevant
- If the question cannot be answered from the available information, say so explicitly.`,
		info, question)
	out, ok := h.render(ctx, prompt)
	if !ok {
		return "I encountered an error while processing your question. Please try " +
			"rephrasing it or ask about specific modules or dependencies."
	}
	return out
}
