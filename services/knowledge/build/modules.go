// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package build

import (
	"strings"

	"github.com/AleutianAI/atlas/services/knowledge"
	"github.com/AleutianAI/atlas/services/knowledge/ast"
)

// kindOrder fixes the emission order of module kind tags so builds are
// deterministic regardless of detection order.
var kindOrder = []string{
	knowledge.KindController,
	knowledge.KindService,
	knowledge.KindEntity,
	knowledge.KindRepository,
	knowledge.KindComponent,
	knowledge.KindModule,
	knowledge.KindTest,
	knowledge.KindUtil,
}

// newModule builds the Module entry for one parsed file. Exports and
// Imports start empty and are populated by later passes; both stay
// non-nil so the document never serializes null arrays.
func newModule(p *parsedFile) knowledge.Module {
	return knowledge.Module{
		ID:            knowledge.ModuleID(p.file.RelPath),
		Path:          p.file.RelPath,
		Kinds:         moduleKinds(p.file.RelPath, p.defs),
		LOC:           p.loc,
		Hash:          p.hash,
		Exports:       []string{},
		Imports:       []string{},
		CodePatterns:  p.defs.CodePatterns,
		UIElements:    p.defs.UIElements,
		FileStructure: p.defs.FileStructure,
	}
}

// moduleKinds tags a module from its path and its decorators. A module
// can carry several tags (a service spec file is both service and
// test). The result is never nil and follows kindOrder.
func moduleKinds(relPath string, defs *ast.Definitions) []string {
	found := make(map[string]bool, 4)

	lower := strings.ToLower(relPath)
	base := lower
	if i := strings.LastIndexByte(lower, '/'); i >= 0 {
		base = lower[i+1:]
	}
	stem := base
	if i := strings.LastIndexByte(stem, '.'); i > 0 {
		stem = stem[:i]
	}

	if isTestPath(lower, base, stem) {
		found[knowledge.KindTest] = true
	}

	for _, name := range decoratorNames(defs) {
		switch strings.ToLower(name) {
		case "controller", "restcontroller", "apicontroller":
			found[knowledge.KindController] = true
		case "injectable", "service":
			found[knowledge.KindService] = true
		case "entity", "table", "document", "mappedsuperclass":
			found[knowledge.KindEntity] = true
		case "repository":
			found[knowledge.KindRepository] = true
		case "component":
			found[knowledge.KindComponent] = true
		case "ngmodule", "module":
			found[knowledge.KindModule] = true
		}
	}

	if strings.Contains(stem, "controller") || strings.Contains(stem, "handler") || strings.HasSuffix(stem, "views") || stem == "views" || stem == "routes" || stem == "urls" {
		found[knowledge.KindController] = true
	}
	if strings.Contains(stem, "service") {
		found[knowledge.KindService] = true
	}
	if strings.Contains(stem, "entity") || strings.Contains(stem, "model") || strings.Contains(stem, "schema") {
		found[knowledge.KindEntity] = true
	}
	if strings.Contains(stem, "repository") || strings.HasSuffix(stem, "_repo") || strings.HasSuffix(stem, ".repo") || strings.Contains(stem, "dao") {
		found[knowledge.KindRepository] = true
	}
	if strings.Contains(stem, "component") {
		found[knowledge.KindComponent] = true
	}
	if strings.Contains(stem, "module") {
		found[knowledge.KindModule] = true
	}
	if strings.Contains(stem, "util") || strings.Contains(stem, "helper") || strings.Contains(stem, "common") {
		found[knowledge.KindUtil] = true
	}

	kinds := make([]string, 0, len(found))
	for _, k := range kindOrder {
		if found[k] {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// isTestPath reports whether a path denotes a test module, by folder
// segment or by filename convention.
func isTestPath(lowerPath, base, stem string) bool {
	for _, seg := range strings.Split(lowerPath, "/") {
		switch seg {
		case "test", "tests", "__tests__", "spec", "specs", "testing":
			return true
		}
	}
	if strings.Contains(base, ".spec.") || strings.Contains(base, ".test.") {
		return true
	}
	if strings.HasPrefix(base, "test_") {
		return true
	}
	return strings.HasSuffix(stem, "_test") || strings.HasSuffix(stem, "_tests") ||
		stem == "test" || stem == "tests"
}

// decoratorNames collects decorator and annotation names from the
// definitions: the pattern pass (already bare names) and raw class
// annotations ("@Entity(name=...)" becomes "Entity").
func decoratorNames(defs *ast.Definitions) []string {
	var names []string
	if defs.CodePatterns != nil {
		names = append(names, defs.CodePatterns.Decorators...)
	}
	for _, cls := range defs.Classes {
		for _, ann := range cls.Annotations {
			name := strings.TrimSpace(ann)
			name = strings.TrimPrefix(name, "@")
			name = strings.TrimPrefix(name, "[") // csharp attribute
			if i := strings.IndexAny(name, "(]"); i >= 0 {
				name = name[:i]
			}
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}
