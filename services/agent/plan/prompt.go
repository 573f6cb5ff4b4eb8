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
	"fmt"
	"strings"

	"github.com/AleutianAI/atlas/services/agent/impact"
	"github.com/AleutianAI/atlas/services/agent/intent"
	"github.com/AleutianAI/atlas/services/knowledge"
)

const (
	// maxContextModules caps the modules mined for project conventions.
	maxContextModules = 5

	maxPatternHints = 5
	maxStyleHints   = 3

	maxSummaryLen = 100
)

// exampleFiles gives the prompt's example JSON framework-correct paths:
// two source files and one test reference per framework.
var exampleFiles = map[string][3]string{
	frameworkAngular: {
		"src/app/user/user.component.ts",
		"src/app/user/user.service.ts",
		"src/app/user/user.component.spec.ts - should render the new field",
	},
	frameworkReact: {
		"src/components/User.tsx",
		"src/hooks/useUser.ts",
		"src/components/User.test.tsx - renders the new field",
	},
	frameworkVue: {
		"src/components/User.vue",
		"src/stores/user.ts",
		"tests/unit/User.spec.ts - renders the new field",
	},
	frameworkNest: {
		"src/user/user.controller.ts",
		"src/user/user.service.ts",
		"src/user/user.service.spec.ts - creates a user",
	},
	frameworkFlask: {
		"app/routes/user.py",
		"app/models/user.py",
		"tests/test_user.py - test_create_user",
	},
}

var defaultExampleFiles = [3]string{
	"path/to/file1.py",
	"path/to/file2.ts",
	"tests/test_file1.py - test_new_functionality",
}

func planPrompt(in intent.Intent, imp impact.Result, constraints []string, g *knowledge.Graph, framework string) string {
	risk := imp.RiskScore
	if risk == "" {
		risk = impact.RiskMedium
	}

	var b strings.Builder
	b.WriteString("You are a code-change planner. Given the following information, produce a detailed, step-by-step plan for implementing the requested changes.\n\n")
	fmt.Fprintf(&b, "Intent: %s\n", in.Description)
	fmt.Fprintf(&b, "Intent Type: %s\n", nameOr(in.Label, "unknown"))
	fmt.Fprintf(&b, "Risk Level: %s\n\n", risk)

	fmt.Fprintf(&b, "Impacted Modules (%d total):\n", len(imp.ImpactedModules))
	b.WriteString(moduleSummaries(g, imp.ImpactedModules))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Impacted Files: %d files\n", len(imp.ImpactedFiles))
	fmt.Fprintf(&b, "Affected Tests: %d test files\n\n", len(imp.AffectedTests))

	b.WriteString("Constraints:\n")
	if len(constraints) == 0 {
		b.WriteString("- None specified\n")
	} else {
		for _, c := range constraints {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	b.WriteString(projectContext(g, imp.ImpactedModules, framework))

	b.WriteString(`
Produce a numbered plan of code edits with:
1. Files to modify (relative path from repo root)
2. Specific changes (add field, update method signature, call new function, etc.)
3. Tests to add/change (file path + test name/description)
4. Migration steps if database changes are required
5. CI changes if needed

For each task, provide:
- task: Clear description of what to do
- files: Array of file paths to modify
- changes: Array of specific change descriptions
- tests: Array of test files and test descriptions
- notes: Any important notes (migrations, breaking changes, etc.)
- estimated_time: Rough time estimate (e.g., "15min", "1h")

Return a JSON object with this structure:
`)
	b.WriteString(examplePlanJSON(framework))
	b.WriteString("\n\nBe specific, actionable, and consider the constraints. Order tasks logically (dependencies first).")

	return b.String()
}

// moduleSummaries quotes up to maxPromptModules impacted modules with
// their kinds and summaries.
func moduleSummaries(g *knowledge.Graph, ids []string) string {
	if g == nil || len(ids) == 0 {
		return "No modules found"
	}

	byID := make(map[string]*knowledge.Module, len(g.Modules))
	for i := range g.Modules {
		byID[g.Modules[i].ID] = &g.Modules[i]
	}

	var lines []string
	count := 0
	for _, id := range ids {
		if count == maxPromptModules {
			break
		}
		m := byID[id]
		if m == nil {
			continue
		}
		count++
		lines = append(lines, fmt.Sprintf("%d. %s (%s)", count, m.Path, strings.Join(m.Kinds, ", ")))
		if m.ModuleSummary != "" {
			lines = append(lines, "   Summary: "+truncate(m.ModuleSummary, maxSummaryLen))
		}
	}

	if count == 0 {
		return "No modules found"
	}
	return strings.Join(lines, "\n")
}

// projectContext mines the impacted modules for the project's
// conventions so the model plans in the repo's own style. Empty when the
// graph offers nothing.
func projectContext(g *knowledge.Graph, ids []string, framework string) string {
	if g == nil {
		return ""
	}

	byID := make(map[string]*knowledge.Module, len(g.Modules))
	for i := range g.Modules {
		byID[g.Modules[i].ID] = &g.Modules[i]
	}

	var patterns, importStyles, componentStyles []string
	seen := 0
	for _, id := range ids {
		if seen == maxContextModules {
			break
		}
		m := byID[id]
		if m == nil {
			continue
		}
		seen++
		cp := m.CodePatterns
		if cp == nil {
			continue
		}
		for _, d := range cp.Decorators {
			patterns = appendHint(patterns, "@"+d, maxPatternHints)
		}
		for _, h := range cp.LifecycleHooks {
			patterns = appendHint(patterns, h, maxPatternHints)
		}
		if cp.ImportStyle != "" {
			importStyles = appendHint(importStyles, cp.ImportStyle, maxStyleHints)
		}
		if cp.ComponentType != "" {
			componentStyles = appendHint(componentStyles, cp.ComponentType, maxStyleHints)
		}
	}

	var parts []string
	if framework != frameworkUnknown {
		parts = append(parts, "Framework: "+framework)
	}
	if len(g.Project.Languages) > 0 {
		parts = append(parts, "Languages: "+strings.Join(g.Project.Languages, ", "))
	}
	if len(patterns) > 0 {
		parts = append(parts, "Code Patterns: "+strings.Join(patterns, ", "))
	}
	if len(importStyles) > 0 {
		parts = append(parts, "Import Style: "+strings.Join(importStyles, ", "))
	}
	if len(componentStyles) > 0 {
		parts = append(parts, "Component Style: "+strings.Join(componentStyles, ", "))
	}
	if len(parts) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\nProject Context (from knowledge graph):\n")
	for _, part := range parts {
		b.WriteString("- " + part + "\n")
	}
	b.WriteString("\nIMPORTANT: Follow the project's framework patterns, import styles, and naming conventions shown above when planning changes.\n")
	return b.String()
}

// appendHint adds hint to hints when new and under limit.
func appendHint(hints []string, hint string, limit int) []string {
	if len(hints) >= limit {
		return hints
	}
	for _, h := range hints {
		if h == hint {
			return hints
		}
	}
	return append(hints, hint)
}

func examplePlanJSON(framework string) string {
	files, ok := exampleFiles[framework]
	if !ok {
		files = defaultExampleFiles
	}
	return fmt.Sprintf(`{
  "tasks": [
    {
      "task": "Description of task",
      "files": ["%s", "%s"],
      "changes": ["Add field X to class Y", "Update method Z to handle new case"],
      "tests": ["%s"],
      "notes": "Migration required: add column to database",
      "estimated_time": "30min"
    }
  ],
  "total_estimated_time": "2h",
  "migration_required": false
}`, files[0], files[1], files[2])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
