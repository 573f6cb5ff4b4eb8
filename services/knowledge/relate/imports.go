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
	"path"
	"regexp"
	"strings"

	"github.com/AleutianAI/atlas/services/knowledge/scan"
)

// Specifier extraction from raw import statement text.
var (
	jsFromRe     = regexp.MustCompile(`from\s+['"]([^'"]+)['"]`)
	jsBareRe     = regexp.MustCompile(`import\s+['"]([^'"]+)['"]`)
	jsRequireRe  = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]`)
	pyFromRe     = regexp.MustCompile(`^\s*from\s+([.\w]+)\s+import`)
	pyImportRe   = regexp.MustCompile(`^\s*import\s+([\w.]+)`)
	javaImportRe = regexp.MustCompile(`import\s+(?:static\s+)?([\w.*]+)`)
	includeRe    = regexp.MustCompile(`#include\s+"([^"]+)"`)
)

// scriptExts are the extensions tried when resolving a TypeScript or
// JavaScript specifier, in preference order.
var scriptExts = []string{".ts", ".tsx", ".js", ".jsx"}

// sourceRoots are the prefixes tried for non-relative specifiers.
// Java additionally tries its conventional tree.
var (
	sourceRoots     = []string{"", "src"}
	javaSourceRoots = []string{"", "src", "src/main/java"}
)

// resolver resolves import specifiers against the graph's own module
// set. The module set is exactly the file set the scanner admitted,
// so no filesystem probing is needed and results are deterministic.
type resolver struct {
	byPath map[string]string
}

func newResolver(sources []Source) *resolver {
	byPath := make(map[string]string, len(sources))
	for _, src := range sources {
		byPath[src.Module.Path] = src.Module.ID
	}
	return &resolver{byPath: byPath}
}

// resolve maps one raw import statement to a module ID, or "" when the
// import does not name a module in the graph (package imports, stdlib,
// unresolvable paths).
func (r *resolver) resolve(language, dir, raw string) string {
	switch language {
	case scan.LangTypeScript, scan.LangJavaScript:
		spec := scriptSpecifier(raw)
		if spec == "" {
			return ""
		}
		return r.lookup(scriptCandidates(dir, spec))
	case scan.LangPython:
		spec := pythonSpecifier(raw)
		if spec == "" {
			return ""
		}
		return r.lookup(pythonCandidates(dir, spec))
	case scan.LangJava:
		if m := javaImportRe.FindStringSubmatch(raw); m != nil {
			return r.lookup(javaCandidates(m[1]))
		}
	case scan.LangC, scan.LangCPP:
		if m := includeRe.FindStringSubmatch(raw); m != nil {
			return r.lookup([]string{path.Join(dir, m[1]), m[1]})
		}
	case scan.LangASP:
		// ASP includes are stored as bare paths by the normalizer.
		return r.lookup([]string{path.Join(dir, raw), raw})
	}
	return ""
}

// lookup returns the first candidate that names a module, after path
// cleaning. Candidates escaping the repository root are skipped.
func (r *resolver) lookup(candidates []string) string {
	for _, cand := range candidates {
		cand = path.Clean(cand)
		if cand == "" || cand == "." || cand == ".." || strings.HasPrefix(cand, "../") {
			continue
		}
		if id, ok := r.byPath[cand]; ok {
			return id
		}
	}
	return ""
}

// ===== TypeScript / JavaScript =====

func scriptSpecifier(raw string) string {
	if m := jsFromRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	if m := jsRequireRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	if m := jsBareRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

// scriptCandidates builds the resolution sequence for a specifier:
// the path as written, each known extension appended, then index files
// in the named directory. Relative specifiers resolve against the
// importer's directory; bare specifiers try the source roots.
func scriptCandidates(dir, spec string) []string {
	var out []string
	expand := func(base string) {
		out = append(out, base)
		for _, ext := range scriptExts {
			out = append(out, base+ext)
		}
		for _, ext := range scriptExts {
			out = append(out, base+"/index"+ext)
		}
	}
	if strings.HasPrefix(spec, ".") {
		expand(path.Join(dir, spec))
		return out
	}
	for _, root := range sourceRoots {
		expand(path.Join(root, spec))
	}
	return out
}

// ===== Python =====

func pythonSpecifier(raw string) string {
	if m := pyFromRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	if m := pyImportRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

// pythonCandidates maps a dotted specifier to file candidates. A
// leading dot run anchors the walk at the importer's package: one dot
// is the current package, each further dot one level up.
func pythonCandidates(dir, spec string) []string {
	if strings.HasPrefix(spec, ".") {
		dots := 0
		for dots < len(spec) && spec[dots] == '.' {
			dots++
		}
		base := dir
		for i := 1; i < dots; i++ {
			base = path.Join(base, "..")
		}
		rest := strings.ReplaceAll(spec[dots:], ".", "/")
		if rest == "" {
			return []string{path.Join(base, "__init__.py")}
		}
		target := path.Join(base, rest)
		return []string{target + ".py", path.Join(target, "__init__.py")}
	}

	rel := strings.ReplaceAll(spec, ".", "/")
	var out []string
	for _, root := range sourceRoots {
		base := path.Join(root, rel)
		out = append(out, base+".py", base+"/__init__.py")
	}
	return out
}

// ===== Java =====

func javaCandidates(spec string) []string {
	spec = strings.TrimSuffix(spec, ".*")
	rel := strings.ReplaceAll(spec, ".", "/") + ".java"
	out := make([]string, 0, len(javaSourceRoots))
	for _, root := range javaSourceRoots {
		out = append(out, path.Join(root, rel))
	}
	return out
}
