// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package edit

import (
	"log/slog"
	"path"
	"strings"

	"github.com/AleutianAI/atlas/services/knowledge"
)

const (
	maxRelatedModules = 3
	maxPatternHints   = 5
	maxImportHints    = 5
	maxTypeHints      = 3
)

// editContext mines the knowledge graph for conventions around an
// existing file: its module is found by exact path, then by basename.
// Empty when the graph is nil or the file is unknown to it.
func editContext(g *knowledge.Graph, rel string) string {
	if g == nil {
		return ""
	}
	norm := strings.ReplaceAll(rel, "\\", "/")

	var m *knowledge.Module
	for i := range g.Modules {
		if g.Modules[i].Path == norm {
			m = &g.Modules[i]
			break
		}
	}
	if m == nil {
		base := path.Base(norm)
		for i := range g.Modules {
			if path.Base(g.Modules[i].Path) == base {
				m = &g.Modules[i]
				break
			}
		}
	}
	if m == nil {
		return ""
	}

	return contextParts(g, m, relatedByEdges(g, m.ID))
}

// createContext mines conventions for a file that does not exist yet:
// modules in or around the target directory stand in for it, falling
// back to modules with the same extension.
func createContext(g *knowledge.Graph, rel string) string {
	if g == nil {
		return ""
	}
	norm := strings.ReplaceAll(rel, "\\", "/")

	parent := path.Dir(norm)
	if parent == "." {
		parent = ""
	}

	var related []*knowledge.Module
	for i := range g.Modules {
		mp := path.Dir(g.Modules[i].Path)
		if strings.Contains(mp, parent) || strings.Contains(parent, mp) {
			related = append(related, &g.Modules[i])
			if len(related) == maxRelatedModules {
				break
			}
		}
	}
	if len(related) == 0 {
		ext := path.Ext(norm)
		for i := range g.Modules {
			if path.Ext(g.Modules[i].Path) == ext {
				related = append(related, &g.Modules[i])
				if len(related) == maxRelatedModules {
					break
				}
			}
		}
	}
	if len(related) == 0 {
		return ""
	}

	paths := make([]string, len(related))
	for i, m := range related {
		paths[i] = m.Path
	}
	return contextParts(g, related[0], paths)
}

// contextParts renders the prompt context block for a module: the
// framework, its code patterns, related module paths, import paths,
// the naming convention of its symbols, and up to three signatures.
func contextParts(g *knowledge.Graph, m *knowledge.Module, related []string) string {
	var parts []string

	if len(g.Project.Frameworks) > 0 && g.Project.Frameworks[0] != "" {
		parts = append(parts, "- Framework: "+g.Project.Frameworks[0])
	}

	if cp := m.CodePatterns; cp != nil {
		var hints []string
		for _, d := range cp.Decorators {
			if len(hints) == maxPatternHints {
				break
			}
			hints = append(hints, "@"+d)
		}
		for _, h := range cp.LifecycleHooks {
			if len(hints) == maxPatternHints {
				break
			}
			hints = append(hints, h)
		}
		if len(hints) > 0 {
			parts = append(parts, "- Code patterns: "+strings.Join(hints, ", "))
		}
	}

	if len(related) > 0 {
		if len(related) > maxRelatedModules {
			related = related[:maxRelatedModules]
		}
		parts = append(parts, "- Related modules: "+strings.Join(related, ", "))
	}

	if imports := importPaths(g, m); len(imports) > 0 {
		parts = append(parts, "- Import patterns: "+strings.Join(imports, ", "))
	}

	syms := moduleSymbols(g, m.ID)
	if naming := namingConvention(syms); naming != "" {
		parts = append(parts, "- Naming convention: "+naming)
	}
	if types := typeHints(syms); len(types) > 0 {
		parts = append(parts, "- Type information: "+strings.Join(types, ", "))
	}

	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n") + "\n"
}

// relatedByEdges collects the paths of modules directly connected to
// id by any edge type, in edge order.
func relatedByEdges(g *knowledge.Graph, id string) []string {
	byID := make(map[string]*knowledge.Module, len(g.Modules))
	for i := range g.Modules {
		byID[g.Modules[i].ID] = &g.Modules[i]
	}

	seen := make(map[string]bool)
	var related []string
	for _, edge := range g.Edges {
		from := knowledge.ModuleIDFromRef(edge.From)
		to := knowledge.ModuleIDFromRef(edge.To)

		var other string
		switch {
		case from == id && to != id:
			other = to
		case to == id && from != id:
			other = from
		default:
			continue
		}

		m := byID[other]
		if m == nil || seen[other] {
			continue
		}
		seen[other] = true
		related = append(related, m.Path)
		if len(related) == maxRelatedModules {
			break
		}
	}
	return related
}

// importPaths resolves a module's import IDs to paths, up to the hint
// cap.
func importPaths(g *knowledge.Graph, m *knowledge.Module) []string {
	byID := make(map[string]string, len(g.Modules))
	for i := range g.Modules {
		byID[g.Modules[i].ID] = g.Modules[i].Path
	}

	var out []string
	for _, id := range m.Imports {
		if len(out) == maxImportHints {
			break
		}
		if p, ok := byID[id]; ok {
			out = append(out, p)
		} else {
			out = append(out, strings.TrimPrefix(id, "mod:"))
		}
	}
	return out
}

func moduleSymbols(g *knowledge.Graph, moduleID string) []knowledge.Symbol {
	var syms []knowledge.Symbol
	for _, s := range g.Symbols {
		if s.ModuleID == moduleID {
			syms = append(syms, s)
		}
	}
	return syms
}

// namingConvention infers the dominant symbol naming style of a
// module. Method names count by their member part.
func namingConvention(syms []knowledge.Symbol) string {
	var snake, camel, pascal int
	for _, s := range syms {
		name := s.Name
		if i := strings.LastIndex(name, "."); i >= 0 {
			name = name[i+1:]
		}
		if name == "" {
			continue
		}

		hasUnderscore := strings.Contains(name, "_")
		first := rune(name[0])
		switch {
		case hasUnderscore && strings.ToLower(name) == name:
			snake++
		case first >= 'a' && first <= 'z' && name != strings.ToLower(name):
			camel++
		case first >= 'A' && first <= 'Z':
			pascal++
		}
	}

	switch {
	case snake > camel && snake > pascal:
		return "snake_case"
	case camel > snake && camel > pascal:
		return "camelCase"
	case pascal > snake && pascal > camel:
		return "PascalCase"
	default:
		return ""
	}
}

// typeHints renders up to three exported symbol signatures.
func typeHints(syms []knowledge.Symbol) []string {
	var out []string
	for _, s := range syms {
		if !s.IsExported || s.Signature == "" {
			continue
		}
		out = append(out, s.Name+": "+s.Signature)
		if len(out) == maxTypeHints {
			break
		}
	}
	return out
}

// Framework instruction blocks. Flask and Angular get explicit rules
// because mixed-corpus models reliably confuse them with React; every
// other framework gets the generic block.
const flaskInstruction = `
CRITICAL FRAMEWORK REQUIREMENT: This is a FLASK project. You MUST:
- Use .py file extensions
- Use Flask route decorators: @app.route()
- Use Flask imports: from flask import Flask, request, jsonify
- Follow Flask file structure: routes/, services/, models/
- Use Flask Blueprint for route organization: from flask import Blueprint
- Use Flask request/response patterns: request.json, jsonify()

REMEMBER: Use Python/Flask syntax, NOT Angular/React. Example: routes/auth.py is correct, not auth.component.ts.

`

const angularInstruction = `
CRITICAL FRAMEWORK REQUIREMENT: This is an ANGULAR project. You MUST:
- Use .ts file extensions for components (NOT .tsx)
- Use Angular component syntax: @Component decorator
- Use Angular imports: @angular/core, @angular/common, etc.
- Follow Angular file structure: component.ts, component.html, component.css

`

// frameworkInstruction renders the framework block for the project's
// primary framework, empty when none is known.
func frameworkInstruction(g *knowledge.Graph, logger *slog.Logger) string {
	if g == nil || len(g.Project.Frameworks) == 0 {
		return ""
	}
	primary := g.Project.Frameworks[0]
	if primary == "" || strings.EqualFold(primary, "unknown") {
		return ""
	}
	logger.Debug("detected framework", "framework", primary, "all", g.Project.Frameworks)

	switch strings.ToLower(primary) {
	case "flask":
		return flaskInstruction
	case "angular":
		return angularInstruction
	default:
		var b strings.Builder
		b.WriteString("\nCRITICAL FRAMEWORK REQUIREMENT: This is a " + strings.ToUpper(primary) + " project.\n")
		b.WriteString("You MUST use " + primary + " syntax, patterns, and conventions.\n")
		b.WriteString("- Use " + primary + " component syntax (e.g., @Component for Angular, not React JSX)\n")
		b.WriteString("- Use " + primary + " imports (e.g., @angular/core for Angular, not react)\n")
		b.WriteString("- Follow " + primary + " file structure and naming conventions\n\n")
		return b.String()
	}
}
