// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package plan

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/atlas/services/knowledge"
)

// Frameworks the planner recognizes.
const (
	frameworkAngular = "angular"
	frameworkReact   = "react"
	frameworkVue     = "vue"
	frameworkNest    = "nestjs"
	frameworkFlask   = "flask"
	frameworkUnknown = "unknown"
)

// detectFramework resolves the project framework: the graph's detection
// wins, and a structural scan of the repo root decides when the graph is
// absent or undecided.
func detectFramework(g *knowledge.Graph, repoPath string) string {
	if g != nil && len(g.Project.Frameworks) > 0 {
		if fw := strings.ToLower(g.Project.Frameworks[0]); fw != "" && fw != frameworkUnknown {
			return fw
		}
	}
	if repoPath != "" {
		return structuralFramework(repoPath)
	}
	return frameworkUnknown
}

// structuralFramework fingerprints the repo root. Only root-level files
// are inspected, so nested checkouts under cloned_repos never leak their
// framework into the decision.
func structuralFramework(root string) string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return frameworkUnknown
	}

	present := make(map[string]bool, len(entries))
	var pyFiles []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		present[e.Name()] = true
		if strings.HasSuffix(e.Name(), ".py") {
			pyFiles = append(pyFiles, e.Name())
		}
	}

	if present["angular.json"] {
		return frameworkAngular
	}

	if present["package.json"] {
		if data, err := os.ReadFile(filepath.Join(root, "package.json")); err == nil {
			pkg := string(data)
			switch {
			case strings.Contains(pkg, `"@nestjs/core"`):
				return frameworkNest
			case strings.Contains(pkg, `"@angular/core"`):
				return frameworkAngular
			case strings.Contains(pkg, `"vue"`):
				return frameworkVue
			case strings.Contains(pkg, `"react"`):
				return frameworkReact
			}
		}
	}

	if present["requirements.txt"] {
		if data, err := os.ReadFile(filepath.Join(root, "requirements.txt")); err == nil {
			if strings.Contains(strings.ToLower(string(data)), "flask") {
				return frameworkFlask
			}
		}
	}

	for _, name := range pyFiles {
		data, err := os.ReadFile(filepath.Join(root, name))
		if err != nil {
			continue
		}
		src := string(data)
		if strings.Contains(src, "from flask") || strings.Contains(src, "import flask") {
			return frameworkFlask
		}
	}

	return frameworkUnknown
}

// enforceFrameworkFiles rewrites a task's file list to honor the
// framework's file conventions. Angular files are always .ts, never the
// React/Vue extensions a model trained on mixed corpora tends to emit;
// Flask repos have no Angular component files at all.
func enforceFrameworkFiles(t *Task, framework string) {
	switch framework {
	case frameworkAngular:
		for i, f := range t.Files {
			for _, ext := range []string{".tsx", ".jsx", ".vue"} {
				if strings.HasSuffix(f, ext) {
					t.Files[i] = strings.TrimSuffix(f, ext) + ".ts"
					break
				}
			}
		}
	case frameworkFlask:
		kept := t.Files[:0]
		for _, f := range t.Files {
			if strings.HasSuffix(f, ".component.ts") {
				continue
			}
			kept = append(kept, f)
		}
		t.Files = kept
	}
}
