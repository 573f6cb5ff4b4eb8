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

// Context assembly limits. The key-module list is what keeps LLM prompts
// bounded on large repositories.
const (
	keyModuleCap   = 30
	highImpactCap  = 10
	featureListCap = 10
	fanThreshold   = 3
)

func (h *Handler) entryFileContext(ctx context.Context) string {
	entries := h.engine.EntryPointModules(ctx)
	if len(entries) == 0 {
		return "No entry point files found (main.ts, index.ts, app.py, etc.)."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Entry Point Files (%d):\n", len(entries))
	for _, mod := range entries {
		fmt.Fprintf(&b, "\n- %s", mod.Path)
		if len(mod.Kinds) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(mod.Kinds, ", "))
		}
		if mod.ModuleSummary != "" {
			fmt.Fprintf(&b, "\n  Summary: %s", mod.ModuleSummary)
		}
		if len(mod.Exports) > 0 {
			fmt.Fprintf(&b, "\n  Exports: %d symbols", len(mod.Exports))
		}
	}
	return b.String()
}

func (h *Handler) appComponentContext(ctx context.Context) string {
	components := h.engine.AppComponentModules(ctx)
	if len(components) == 0 {
		return "No app component files found (app.component.ts, App.tsx, etc.)."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "App Component Files (%d):\n", len(components))
	for _, mod := range components {
		fmt.Fprintf(&b, "\n- %s", mod.Path)
		if len(mod.Kinds) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(mod.Kinds, ", "))
		}
		if mod.ModuleSummary != "" {
			fmt.Fprintf(&b, "\n  Summary: %s", mod.ModuleSummary)
		}
		if len(mod.Exports) > 0 {
			fmt.Fprintf(&b, "\n  Exports: %d symbols", len(mod.Exports))
			for _, symbolID := range first(mod.Exports, 5) {
				if sym := h.engine.SymbolByID(symbolID); sym != nil {
					fmt.Fprintf(&b, "\n    - %s %s", sym.Kind, sym.Name)
				}
			}
		}
	}
	return b.String()
}

func (h *Handler) featuresContext() string {
	features := h.engine.Graph().Features
	if len(features) == 0 {
		return "No features found in the project."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Features (%d):\n", len(features))
	for _, feat := range features {
		fmt.Fprintf(&b, "\n- %s", nameOr(feat.Name, "Unknown"))
		if feat.Path != "" {
			fmt.Fprintf(&b, " (%s)", feat.Path)
		}
		fmt.Fprintf(&b, "\n  Modules: %d", len(feat.ModuleIDs))
		for _, moduleID := range first(feat.ModuleIDs, 5) {
			if mod := h.engine.ModuleByID(moduleID); mod != nil {
				fmt.Fprintf(&b, "\n    - %s", mod.Path)
			}
		}
		if len(feat.ModuleIDs) > 5 {
			fmt.Fprintf(&b, "\n    ... and %d more", len(feat.ModuleIDs)-5)
		}
	}
	return b.String()
}

// fullProjectContext assembles the bounded project overview used for
// general questions: header counts, entry points, app components,
// features, then the prioritized key-module list.
func (h *Handler) fullProjectContext(ctx context.Context) string {
	g := h.engine.Graph()
	importEdges := 0
	for _, e := range g.Edges {
		if e.Type == knowledge.EdgeImports {
			importEdges++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", nameOr(g.Project.Name, "Unknown"))
	fmt.Fprintf(&b, "Languages: %s\n", strings.Join(g.Project.Languages, ", "))
	fmt.Fprintf(&b, "Total Modules: %d\n", len(g.Modules))
	fmt.Fprintf(&b, "Total Endpoints: %d\n", len(g.Endpoints))
	fmt.Fprintf(&b, "Total Dependencies: %d\n", importEdges)
	fmt.Fprintf(&b, "Total Features: %d\n", len(g.Features))

	entries := h.engine.EntryPointModules(ctx)
	if len(entries) > 0 {
		fmt.Fprintf(&b, "\nEntry Points (%d):\n", len(entries))
		for _, mod := range first(entries, 5) {
			fmt.Fprintf(&b, "  - %s\n", mod.Path)
		}
	}
	components := h.engine.AppComponentModules(ctx)
	if len(components) > 0 {
		fmt.Fprintf(&b, "\nApp Components (%d):\n", len(components))
		for _, mod := range first(components, 5) {
			fmt.Fprintf(&b, "  - %s\n", mod.Path)
		}
	}
	if len(g.Features) > 0 {
		fmt.Fprintf(&b, "\nFeatures (%d):\n", len(g.Features))
		for _, feat := range first(g.Features, featureListCap) {
			fmt.Fprintf(&b, "  - %s (%d modules)\n", nameOr(feat.Name, "Unknown"), len(feat.ModuleIDs))
		}
	}

	key := h.keyModules(ctx, entries, components)
	if len(key) > 0 {
		fmt.Fprintf(&b, "\nKey Modules (%d):\n", len(key))
		for _, mod := range key {
			fmt.Fprintf(&b, "  - %s", mod.Path)
			if len(mod.Kinds) > 0 {
				fmt.Fprintf(&b, " (%s)", strings.Join(mod.Kinds, ", "))
			}
			switch {
			case mod.ModuleSummary != "":
				fmt.Fprintf(&b, " - %s", truncate(mod.ModuleSummary, 100))
			case len(mod.Exports) > 0:
				fmt.Fprintf(&b, " (%d exports)", len(mod.Exports))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// keyModules picks the modules worth showing an LLM, in priority order:
// entry points, app components, high-impact modules (import degree above
// fanThreshold, heaviest first), feature modules, then top modules by
// export count until the cap.
func (h *Handler) keyModules(ctx context.Context, entries, components []knowledge.Module) []knowledge.Module {
	g := h.engine.Graph()
	out := make([]knowledge.Module, 0, keyModuleCap)
	seen := make(map[string]bool, keyModuleCap)
	add := func(mods ...knowledge.Module) {
		for _, mod := range mods {
			if len(out) >= keyModuleCap {
				return
			}
			if seen[mod.ID] {
				continue
			}
			seen[mod.ID] = true
			out = append(out, mod)
		}
	}

	add(entries...)
	add(components...)

	for _, d := range first(sortedDegrees(importDegrees(g), fanThreshold), highImpactCap) {
		if mod := h.engine.ModuleByID(d.id); mod != nil {
			add(*mod)
		}
	}

	var featureIDs []string
	featureSeen := make(map[string]bool)
	for _, feat := range g.Features {
		for _, id := range feat.ModuleIDs {
			if !featureSeen[id] {
				featureSeen[id] = true
				featureIDs = append(featureIDs, id)
			}
		}
	}
	for _, id := range first(featureIDs, featureListCap) {
		if mod := h.engine.ModuleByID(id); mod != nil {
			add(*mod)
		}
	}

	byExports := make([]knowledge.Module, len(g.Modules))
	copy(byExports, g.Modules)
	sort.SliceStable(byExports, func(i, j int) bool {
		return len(byExports[i].Exports) > len(byExports[j].Exports)
	})
	add(byExports...)

	return out
}
