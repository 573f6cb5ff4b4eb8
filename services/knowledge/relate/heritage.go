// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package relate

import (
	"regexp"
	"strings"

	"github.com/AleutianAI/atlas/services/knowledge"
	"github.com/AleutianAI/atlas/services/knowledge/scan"
)

// heritageClause is one inheritance or implementation relation read
// from a class or interface header.
type heritageClause struct {
	child  string
	parent string
	typ    knowledge.EdgeType
}

var (
	// classExtendsRe covers TypeScript, JavaScript, and Java.
	classExtendsRe    = regexp.MustCompile(`class\s+(\w+)(?:<[^>]*>)?\s+extends\s+([\w.]+)`)
	classImplementsRe = regexp.MustCompile(`class\s+(\w+)(?:<[^>]*>)?[^{\n]*\bimplements\s+([^{\n]+)`)
	ifaceExtendsRe    = regexp.MustCompile(`interface\s+(\w+)(?:<[^>]*>)?\s+extends\s+([^{\n]+)`)
	pyClassRe         = regexp.MustCompile(`class\s+(\w+)\s*\(([^)]*)\)`)
	csClassBaseListRe = regexp.MustCompile(`class\s+(\w+)(?:<[^>]*>)?\s*:\s*([^\r\n{]+)`)
)

// parseHeritage reads class and interface headers from source text.
// The parse is line-regex based: the normalizers do not retain
// heritage clauses, so the extractor reads them from the file the way
// the endpoint detectors read routes.
func parseHeritage(language, content string) []heritageClause {
	switch language {
	case scan.LangTypeScript, scan.LangJavaScript, scan.LangJava:
		return scriptHeritage(content)
	case scan.LangPython:
		return pythonHeritage(content)
	case scan.LangCSharp:
		return csharpHeritage(content)
	}
	return nil
}

func scriptHeritage(content string) []heritageClause {
	var clauses []heritageClause
	for _, m := range classExtendsRe.FindAllStringSubmatch(content, -1) {
		clauses = append(clauses, heritageClause{m[1], m[2], knowledge.EdgeExtends})
	}
	for _, m := range classImplementsRe.FindAllStringSubmatch(content, -1) {
		for _, parent := range splitParentList(m[2]) {
			clauses = append(clauses, heritageClause{m[1], parent, knowledge.EdgeImplements})
		}
	}
	for _, m := range ifaceExtendsRe.FindAllStringSubmatch(content, -1) {
		for _, parent := range splitParentList(m[2]) {
			clauses = append(clauses, heritageClause{m[1], parent, knowledge.EdgeExtends})
		}
	}
	return clauses
}

func pythonHeritage(content string) []heritageClause {
	var clauses []heritageClause
	for _, m := range pyClassRe.FindAllStringSubmatch(content, -1) {
		for _, base := range splitParentList(m[2]) {
			// Keyword arguments (metaclass=...) and the implicit root
			// are not inheritance.
			if base == "object" || strings.Contains(base, "=") || strings.HasPrefix(base, "*") {
				continue
			}
			clauses = append(clauses, heritageClause{m[1], base, knowledge.EdgeExtends})
		}
	}
	return clauses
}

// csharpHeritage splits the base list after ":". C# does not separate
// the base class from interfaces syntactically; the conventional
// I-prefix decides which relation each entry gets.
func csharpHeritage(content string) []heritageClause {
	var clauses []heritageClause
	for _, m := range csClassBaseListRe.FindAllStringSubmatch(content, -1) {
		for _, parent := range splitParentList(m[2]) {
			typ := knowledge.EdgeExtends
			if looksLikeInterface(parent) {
				typ = knowledge.EdgeImplements
			}
			clauses = append(clauses, heritageClause{m[1], parent, typ})
		}
	}
	return clauses
}

func looksLikeInterface(name string) bool {
	name = normalizeParent(name)
	return len(name) >= 2 && name[0] == 'I' && name[1] >= 'A' && name[1] <= 'Z'
}

// splitParentList splits a comma-separated parent list, trimming
// whitespace and dropping empties.
func splitParentList(list string) []string {
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeParent reduces a parent reference to a bare name: generic
// arguments stripped, qualification dropped to the final segment.
func normalizeParent(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.IndexAny(name, "<[("); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSpace(name)
}
