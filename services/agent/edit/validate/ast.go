// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validate

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// astScanner walks a tree-sitter parse of the proposed content looking
// for dangerous call sites. Matching on the AST instead of raw text
// keeps patterns inside comments and string literals from firing.
//
// Thread Safety: scan is safe for concurrent use; parsers are created
// per call.
type astScanner struct {
	goPatterns []DangerousPattern
	pyPatterns []DangerousPattern
	jsPatterns []DangerousPattern
}

func newASTScanner() *astScanner {
	return &astScanner{
		goPatterns: goPatterns(),
		pyPatterns: pythonPatterns(),
		jsPatterns: javascriptPatterns(),
	}
}

// scan parses source as language and reports every pattern match.
// Unknown languages produce no findings.
func (s *astScanner) scan(ctx context.Context, source []byte, language, filePath string) ([]Warning, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	lang := grammarFor(language)
	if lang == nil {
		return nil, nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", language, err)
	}
	defer tree.Close()

	return s.walk(tree.RootNode(), source, s.patternsFor(language), filePath, language), nil
}

// grammarFor returns the tree-sitter grammar for language, nil when
// the language is not parsed.
func grammarFor(language string) *sitter.Language {
	switch language {
	case "go":
		return golang.GetLanguage()
	case "python":
		return python.GetLanguage()
	case "javascript":
		return javascript.GetLanguage()
	case "typescript":
		return typescript.GetLanguage()
	default:
		return nil
	}
}

func (s *astScanner) patternsFor(language string) []DangerousPattern {
	switch language {
	case "go":
		return s.goPatterns
	case "python":
		return s.pyPatterns
	case "javascript", "typescript":
		return s.jsPatterns
	default:
		return nil
	}
}

func (s *astScanner) walk(node *sitter.Node, source []byte, patterns []DangerousPattern, filePath, language string) []Warning {
	if node == nil {
		return nil
	}

	warnings := s.match(node, source, patterns, filePath, language)
	for i := uint32(0); i < node.ChildCount(); i++ {
		warnings = append(warnings, s.walk(node.Child(int(i)), source, patterns, filePath, language)...)
	}
	return warnings
}

func (s *astScanner) match(node *sitter.Node, source []byte, patterns []DangerousPattern, filePath, language string) []Warning {
	nodeType := node.Type()

	var warnings []Warning
	for _, p := range patterns {
		if p.NodeType != "" && p.NodeType != nodeType {
			continue
		}

		callee := calleeName(node, source, language)
		if callee == "" || !nameMatches(callee, p.FuncNames) {
			continue
		}

		warnings = append(warnings, Warning{
			Type:       p.WarnType,
			Pattern:    p.Name,
			File:       filePath,
			Line:       int(node.StartPoint().Row) + 1,
			Severity:   p.Severity,
			Message:    p.Message,
			Suggestion: p.Suggestion,
			Blocking:   p.Blocking,
		})
	}
	return warnings
}

// calleeName extracts the name a pattern should be matched against:
// the function part of calls, the constructor of new expressions, the
// left side of innerHTML-style assignments, and __proto__ accesses.
func calleeName(node *sitter.Node, source []byte, language string) string {
	text := func(n *sitter.Node) string {
		return string(source[n.StartByte():n.EndByte()])
	}

	switch node.Type() {
	case "call_expression", "call":
		if fn := node.ChildByFieldName("function"); fn != nil {
			return text(fn)
		}
	case "new_expression":
		if cons := node.ChildByFieldName("constructor"); cons != nil {
			return text(cons)
		}
	case "assignment_expression":
		if language != "javascript" && language != "typescript" {
			return ""
		}
		if left := node.ChildByFieldName("left"); left != nil {
			name := text(left)
			if strings.HasSuffix(name, "innerHTML") || strings.HasSuffix(name, "outerHTML") {
				return strings.TrimPrefix(name, ".")
			}
		}
	case "member_expression":
		content := text(node)
		if strings.Contains(content, "__proto__") || strings.Contains(content, "constructor.prototype") {
			return "__proto__"
		}
	}
	return ""
}

// nameMatches reports whether callee matches any pattern name exactly,
// as a dotted suffix ("os.system" matches "system"), or by containment
// ("exec.CommandContext" matches "exec.Command").
func nameMatches(callee string, names []string) bool {
	for _, n := range names {
		if callee == n || strings.HasSuffix(callee, "."+n) || strings.Contains(callee, n) {
			return true
		}
	}
	return false
}

// scanSQLConcat flags query strings assembled by concatenation. This
// is a line heuristic rather than an AST pass; the mix of languages
// and query builders makes a structural check too narrow.
func scanSQLConcat(source []byte, filePath string) []Warning {
	var warnings []Warning
	for i, line := range strings.Split(string(source), "\n") {
		if !sqlConcatLine(line) {
			continue
		}
		warnings = append(warnings, Warning{
			Type:       WarnTypeSQLInjection,
			Pattern:    "SQL string concatenation",
			File:       filePath,
			Line:       i + 1,
			Severity:   SeverityHigh,
			Message:    "Potential SQL injection: query built with string concatenation",
			Suggestion: "Use parameterized queries with placeholders.",
			Blocking:   false,
		})
	}
	return warnings
}

func sqlConcatLine(line string) bool {
	lower := strings.ToLower(line)

	hasKeyword := strings.Contains(lower, "select ") ||
		strings.Contains(lower, "insert ") ||
		strings.Contains(lower, "update ") ||
		strings.Contains(lower, "delete ") ||
		strings.Contains(lower, "where ")
	if !hasKeyword {
		return false
	}

	return strings.Contains(line, "+") ||
		strings.Contains(line, "fmt.Sprintf") ||
		strings.Contains(line, `f"`) || strings.Contains(line, "f'") ||
		strings.Contains(line, "${") ||
		strings.Contains(line, "%s") || strings.Contains(line, "%v")
}
