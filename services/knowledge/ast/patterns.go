// Copyright (C) 2025 Aleutian AI
//
// This program is licensed under the GNU Affero General Public License v3.
// See the LICENSE.txt file for details.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"regexp"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/atlas/services/knowledge"
)

// Framework lifecycle hooks, matched case-insensitively as substrings
// of method, function, and call text. Matches are reported in this
// lowercase form.
var (
	angularHooks = []string{
		"ngoninit", "ngondestroy", "ngafterviewinit", "ngafterviewchecked",
		"ngaftercontentinit", "ngaftercontentchecked", "ngonchanges", "ngdocheck",
	}
	reactHooks = []string{
		"usestate", "useeffect", "usecallback", "usememo", "useref", "usecontext",
	}
	vueHooks = []string{
		"onmounted", "onunmounted", "onupdated", "onbeforemount", "onbeforeunmount",
	}
)

// Import path classification. Quoted paths beginning with ./ or ../
// (or their backslash forms) are relative; any other quoted path is
// absolute. Unquoted imports (python, java) match neither and leave
// the style at its default.
var (
	relativeImportRe = regexp.MustCompile(`(?:from|import)\s+['"]\.\.?[/\\]`)
	absoluteImportRe = regexp.MustCompile(`(?:from|import)\s+['"][^./]`)
)

// extractCodePatterns derives per-file conventions from a parsed tree:
// import and export style, decorator names, dominant component type,
// lifecycle hooks, and state-management library.
func extractCodePatterns(root *sitter.Node, source []byte, path string) *knowledge.CodePatterns {
	patterns := &knowledge.CodePatterns{
		ImportStyle:     "mixed",
		ExportStyle:     "mixed",
		StateManagement: "none",
	}
	if root == nil {
		return patterns
	}

	var (
		imports        []string
		exports        []string
		decorators     []string
		componentTypes []string
		stateImports   []string
	)
	hookSet := make(map[string]bool)

	visit(root, func(node *sitter.Node) {
		switch node.Type() {
		case "import_statement", "import_from_statement", "import_declaration", "using_directive":
			text := nodeText(node, source)
			if text == "" {
				return
			}
			imports = append(imports, text)
			lower := strings.ToLower(text)
			switch {
			case strings.Contains(lower, "rxjs") || strings.Contains(lower, "observable"):
				stateImports = append(stateImports, "rxjs")
			case strings.Contains(lower, "redux"):
				stateImports = append(stateImports, "redux")
			case strings.Contains(lower, "mobx"):
				stateImports = append(stateImports, "mobx")
			}

		case "export_statement":
			if text := nodeText(node, source); text != "" {
				exports = append(exports, text)
			}

		case "decorator":
			name := strings.TrimSpace(nodeText(node, source))
			name = strings.TrimPrefix(name, "@")
			if i := strings.Index(name, "("); i >= 0 {
				name = name[:i]
			}
			name = strings.TrimSpace(name)
			if name != "" && !containsString(decorators, name) {
				decorators = append(decorators, name)
			}

		case "class_declaration":
			componentTypes = append(componentTypes, "class")
			if hasChildOfType(node, "export") {
				if text := nodeText(node, source); text != "" {
					exports = append(exports, text)
				}
			}

		case "function_declaration":
			text := strings.ToLower(nodeText(node, source))
			if strings.Contains(text, "component") || strings.Contains(text, "react") {
				componentTypes = append(componentTypes, "function")
			}
			if hasChildOfType(node, "export") {
				if t := nodeText(node, source); t != "" {
					exports = append(exports, t)
				}
			}

		case "arrow_function":
			parent := node.Parent()
			if parent != nil && parent.Type() == "variable_declarator" {
				name := nodeText(parent.ChildByFieldName("name"), source)
				if name != "" && (isUpperFirst(name) || strings.Contains(strings.ToLower(name), "component")) {
					componentTypes = append(componentTypes, "arrow")
				}
			}
		}

		switch node.Type() {
		case "method_definition", "function_declaration", "call_expression":
			lower := strings.ToLower(nodeText(node, source))
			for _, hooks := range [][]string{angularHooks, reactHooks, vueHooks} {
				for _, hook := range hooks {
					if strings.Contains(lower, hook) {
						hookSet[hook] = true
					}
				}
			}
		}
	})

	var relative, absolute int
	for _, imp := range imports {
		switch {
		case relativeImportRe.MatchString(imp):
			relative++
		case absoluteImportRe.MatchString(imp):
			absolute++
		}
	}
	switch {
	case absolute > 0 && relative > 0:
		patterns.ImportStyle = "mixed"
	case absolute > 0:
		patterns.ImportStyle = "absolute"
	case relative > 0:
		patterns.ImportStyle = "relative"
	}

	var named, defaults int
	for _, exp := range exports {
		lower := strings.ToLower(exp)
		switch {
		case strings.Contains(lower, "export default"):
			defaults++
		case strings.Contains(lower, "export"):
			named++
		}
	}
	switch {
	case named > 0 && defaults > 0:
		patterns.ExportStyle = "mixed"
	case defaults > 0:
		patterns.ExportStyle = "default"
	case named > 0:
		patterns.ExportStyle = "named"
	}

	patterns.Decorators = decorators
	patterns.ComponentType = mostCommon(componentTypes)
	patterns.StateManagement = mostCommonOr(stateImports, "none")

	if len(hookSet) > 0 {
		hooks := make([]string, 0, len(hookSet))
		for hook := range hookSet {
			hooks = append(hooks, hook)
		}
		sort.Strings(hooks)
		patterns.LifecycleHooks = hooks
	}

	return patterns
}

// mostCommon returns the most frequent value, first-seen winning ties.
// Empty input yields "".
func mostCommon(values []string) string {
	return mostCommonOr(values, "")
}

// mostCommonOr returns the most frequent value, or fallback when the
// input is empty. Ties go to the value seen first.
func mostCommonOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	counts := make(map[string]int, 4)
	var order []string
	for _, v := range values {
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	best := order[0]
	for _, v := range order[1:] {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return best
}

// containsString reports whether list contains s.
func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// isUpperFirst reports whether the first character is an ASCII
// uppercase letter (PascalCase heuristic for component names).
func isUpperFirst(s string) bool {
	return s != "" && s[0] >= 'A' && s[0] <= 'Z'
}
