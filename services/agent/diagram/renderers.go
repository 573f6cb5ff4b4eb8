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
	"fmt"
	"maps"
	"strings"
)

const (
	maxLabelLen     = 30
	treeNameLen     = 40
	treeMaxDepth    = 3
	treeMaxChildren = 5
	treeMaxRoots    = 5
	flatRootCap     = 10
)

// kindOrder fixes subgraph ordering in focused diagrams. Kinds outside
// this list render as flat nodes after the subgraphs.
var kindOrder = []string{"controller", "service", "entity", "repository", "component", "module", "other"}

// kindClasses maps a module kind to its mermaid classDef.
var kindClasses = map[string]string{
	"service":    "serviceModule",
	"controller": "controllerModule",
	"entity":     "entityModule",
	"repository": "repositoryModule",
}

const mermaidClassDefs = `  classDef targetModule fill:#ff6b6b,stroke:#c92a2a,stroke-width:3px,color:#fff
  classDef serviceModule fill:#4ecdc4,stroke:#26a69a,stroke-width:2px
  classDef controllerModule fill:#95e1d3,stroke:#6ab5b8,stroke-width:2px
  classDef entityModule fill:#ffeaa7,stroke:#fdcb6e,stroke-width:2px
  classDef repositoryModule fill:#a29bfe,stroke:#6c5ce7,stroke-width:2px
  classDef defaultModule fill:#dfe6e9,stroke:#b2bec3,stroke-width:1px
`

const mermaidLegend = `  subgraph Legend["Legend"]
    direction LR
    L1["Target Module"]:::targetModule
    L2["Service"]:::serviceModule
    L3["Controller"]:::controllerModule
    L4["Entity"]:::entityModule
    L5["Repository"]:::repositoryModule
  end
`

// renderMermaid emits graph TD mermaid source. Focused graphs get kind
// subgraphs, node coloring, edge labels, and a legend; standard graphs
// stay plain so large module sets remain legible.
func renderMermaid(g graphData) string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	if g.Focused {
		b.WriteString(mermaidClassDefs)
		b.WriteString("\n")
	}

	targets := make(map[string]bool, len(g.Targets))
	for _, id := range g.Targets {
		targets[id] = true
	}

	nodeIDs := make(map[string]string, len(g.ModuleIDs))
	var classLines []string
	assign := func(moduleID string) string {
		nodeID := fmt.Sprintf("M%d", len(nodeIDs))
		nodeIDs[moduleID] = nodeID
		return nodeID
	}
	classify := func(nodeID, moduleID, kind string) {
		class := "defaultModule"
		if targets[moduleID] {
			class = "targetModule"
		} else if c, ok := kindClasses[kind]; ok {
			class = c
		}
		classLines = append(classLines, fmt.Sprintf("  class %s %s\n", nodeID, class))
	}
	label := func(id string) string {
		return displayName(g.Info[id].Path, id)
	}

	if g.Focused {
		byKind := make(map[string][]string)
		for _, id := range g.ModuleIDs {
			kind := "other"
			if info, ok := g.Info[id]; ok && len(info.Kinds) > 0 {
				kind = strings.ToLower(info.Kinds[0])
			}
			byKind[kind] = append(byKind[kind], id)
		}

		for _, kind := range kindOrder {
			ids := byKind[kind]
			if len(ids) == 0 {
				continue
			}
			fmt.Fprintf(&b, "  subgraph %s\n", subgraphLabel(kind))
			for _, id := range ids {
				nodeID := assign(id)
				fmt.Fprintf(&b, "    %s[\"%s\"]\n", nodeID, label(id))
				classify(nodeID, id, kind)
			}
			b.WriteString("  end\n\n")
		}

		// Kinds outside kindOrder land here.
		for _, id := range g.ModuleIDs {
			if _, ok := nodeIDs[id]; ok {
				continue
			}
			nodeID := assign(id)
			fmt.Fprintf(&b, "  %s[\"%s\"]\n", nodeID, label(id))
			classify(nodeID, id, "")
		}
	} else {
		for _, id := range g.ModuleIDs {
			fmt.Fprintf(&b, "  %s[\"%s\"]\n", assign(id), label(id))
		}
	}

	b.WriteString("\n")

	for _, e := range g.Edges {
		from, okFrom := nodeIDs[e.From]
		to, okTo := nodeIDs[e.To]
		if !okFrom || !okTo {
			continue
		}
		if g.Focused && (e.Type == "imports" || e.Type == "calls" || e.Type == "extends") {
			fmt.Fprintf(&b, "  %s -->|\"%s\"| %s\n", from, edgeLabel(e.Type), to)
		} else {
			fmt.Fprintf(&b, "  %s --> %s\n", from, to)
		}
	}

	if g.Focused {
		for _, line := range classLines {
			b.WriteString(line)
		}

		b.WriteString("\n")
		b.WriteString(mermaidLegend)

		switch g.Direction {
		case directionIncoming:
			b.WriteString("\n  note1[\"Incoming dependencies (callers)\"]\n")
		case directionOutgoing:
			b.WriteString("\n  note1[\"Outgoing dependencies (callees)\"]\n")
		}
	}

	return b.String()
}

// displayName shortens a module path for a diagram label and escapes
// quote characters mermaid would misparse.
func displayName(path, fallback string) string {
	name := path
	if name == "" {
		name = fallback
	}
	if len(name) > maxLabelLen {
		if i := strings.LastIndex(name, "/"); i >= 0 {
			name = ".../" + name[i+1:]
		} else {
			name = name[:maxLabelLen] + "..."
		}
	}
	name = strings.ReplaceAll(name, `"`, "&quot;")
	return strings.ReplaceAll(name, "'", "&#39;")
}

func subgraphLabel(kind string) string {
	return strings.ToUpper(kind[:1]) + kind[1:] + "s"
}

func edgeLabel(edgeType string) string {
	return strings.ToUpper(edgeType[:1]) + edgeType[1:]
}

// renderTextTree draws the graph as an ASCII tree rooted at modules
// nothing else points to.
func renderTextTree(g graphData) string {
	if len(g.ModuleIDs) == 0 {
		return "No modules found to diagram."
	}

	children := make(map[string][]string)
	incoming := make(map[string]bool)
	for _, e := range g.Edges {
		children[e.From] = append(children[e.From], e.To)
		incoming[e.To] = true
	}

	var roots []string
	for _, id := range g.ModuleIDs {
		if !incoming[id] {
			roots = append(roots, id)
		}
	}
	if len(roots) == 0 {
		// Fully cyclic graph; show a slice of it.
		roots = g.ModuleIDs
		if len(roots) > flatRootCap {
			roots = roots[:flatRootCap]
		}
	}

	var b strings.Builder
	b.WriteString("Dependency Diagram\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")

	shown := roots
	if len(shown) > treeMaxRoots {
		shown = shown[:treeMaxRoots]
	}
	for i, root := range shown {
		last := i == len(roots)-1 || i >= treeMaxRoots-1
		writeTree(&b, g, children, root, "", last, map[string]bool{}, 0)
		if i < len(roots)-1 {
			b.WriteString("\n")
		}
	}

	if len(g.ModuleIDs) > len(roots) {
		fmt.Fprintf(&b, "\n... and %d more modules\n", len(g.ModuleIDs)-len(roots))
	}

	return b.String()
}

// writeTree prints node and its children, bounded by depth and child
// caps. Each child branch gets its own copy of visited so diamonds are
// shown on both paths while cycles still terminate.
func writeTree(b *strings.Builder, g graphData, children map[string][]string, node, prefix string, isLast bool, visited map[string]bool, depth int) {
	if depth > treeMaxDepth || visited[node] {
		return
	}
	visited[node] = true

	glyph := "├── "
	if isLast {
		glyph = "└── "
	}
	b.WriteString(prefix + glyph + treeName(g, node) + "\n")

	kids := children[node]
	if len(kids) > treeMaxChildren {
		kids = kids[:treeMaxChildren]
	}
	childPrefix := prefix + "│   "
	if isLast {
		childPrefix = prefix + "    "
	}
	for i, kid := range kids {
		last := i == len(kids)-1 || i >= treeMaxChildren-1
		writeTree(b, g, children, kid, childPrefix, last, maps.Clone(visited), depth+1)
	}
}

func treeName(g graphData, id string) string {
	name := g.Info[id].Path
	if name == "" {
		name = id
	}
	if len(name) > treeNameLen {
		parts := strings.Split(name, "/")
		if len(parts) > 2 {
			return ".../" + strings.Join(parts[len(parts)-2:], "/")
		}
	}
	return name
}

var dotIDReplacer = strings.NewReplacer(":", "_", "/", "_", ".", "_")

// renderDOT emits the graph in Graphviz DOT form.
func renderDOT(g graphData) string {
	var b strings.Builder
	b.WriteString("digraph Dependencies {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=rounded];\n\n")

	for _, id := range g.ModuleIDs {
		name := g.Info[id].Path
		if name == "" {
			name = id
		}
		label := strings.ReplaceAll(name, `"`, `\"`)
		if len(label) > maxLabelLen {
			if i := strings.LastIndex(label, "/"); i >= 0 {
				label = ".../" + label[i+1:]
			}
		}
		fmt.Fprintf(&b, "  \"%s\" [label=\"%s\"];\n", dotIDReplacer.Replace(id), label)
	}

	b.WriteString("\n")

	for _, e := range g.Edges {
		fmt.Fprintf(&b, "  \"%s\" -> \"%s\";\n", dotIDReplacer.Replace(e.From), dotIDReplacer.Replace(e.To))
	}

	b.WriteString("}\n")
	return b.String()
}
