// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package endpoint detects HTTP endpoints with framework-specific route
// detectors: Flask and FastAPI decorators, Django URL configurations,
// Express route registrations, NestJS controllers, Spring mappings, and
// ASP.NET Core attributes.
//
// Detection is regex-based and best-effort: a route the detectors miss
// is absent from the graph, never an error. Paths are reported with a
// leading slash regardless of how the framework writes them.
package endpoint

import (
	"regexp"
	"strings"

	"github.com/AleutianAI/atlas/services/knowledge"
	"github.com/AleutianAI/atlas/services/knowledge/scan"
)

// handlerLookahead is how many lines below a route declaration the
// detectors search for the handler's name. Decorator stacks between
// the route and the function are skipped implicitly because they never
// match the signature patterns.
const handlerLookahead = 5

// detector extracts one framework's endpoints from a single file.
type detector func(content, moduleID string) []knowledge.Endpoint

var detectors = map[string]detector{
	"flask":       extractFlask,
	"fastapi":     extractFastAPI,
	"django":      extractDjango,
	"express":     extractExpress,
	"nestjs":      extractNest,
	"spring-boot": extractSpring,
	"aspnet":      extractASPNET,
}

// frameworksByLanguage lists the detectors applicable to each source
// language, most specific first.
var frameworksByLanguage = map[string][]string{
	scan.LangPython:     {"flask", "fastapi", "django"},
	scan.LangTypeScript: {"nestjs", "express"},
	scan.LangJavaScript: {"express"},
	scan.LangJava:       {"spring-boot"},
	scan.LangCSharp:     {"aspnet"},
}

// Extract detects the HTTP endpoints declared in one module's source.
//
// Description:
//
//	Picks the detectors for the file's language, preferring the ones
//	matching the project's detected frameworks and falling back to
//	every detector for the language when none match. Duplicate routes
//	(same method and path) collapse to the first occurrence.
//
// Inputs:
//
//	path - File path, used only for language dispatch
//	source - File contents
//	moduleID - Owning module ID; stamped as the handler module
//	frameworks - Project-level framework names (see meta)
//
// Outputs:
//
//	[]knowledge.Endpoint - Endpoints in source order, nil when none.
func Extract(path string, source []byte, moduleID string, frameworks []string) []knowledge.Endpoint {
	language, _ := scan.LanguageForPath(path)
	candidates := candidateFrameworks(language, frameworks)
	if len(candidates) == 0 {
		return nil
	}

	content := string(source)
	var endpoints []knowledge.Endpoint
	seen := make(map[string]bool)
	for _, framework := range candidates {
		for _, ep := range detectors[framework](content, moduleID) {
			if seen[ep.ID] {
				continue
			}
			seen[ep.ID] = true
			endpoints = append(endpoints, ep)
		}
	}
	return endpoints
}

// candidateFrameworks intersects the project's frameworks with the
// language's detector set, keeping detector order. An empty
// intersection tries every detector for the language.
func candidateFrameworks(language string, frameworks []string) []string {
	known := frameworksByLanguage[language]
	if len(known) == 0 {
		return nil
	}
	var selected []string
	for _, name := range known {
		for _, have := range frameworks {
			if have == name {
				selected = append(selected, name)
				break
			}
		}
	}
	if len(selected) == 0 {
		return known
	}
	return selected
}

func newEndpoint(moduleID, framework, method, path, handler string) knowledge.Endpoint {
	return knowledge.Endpoint{
		ID:              knowledge.EndpointID(moduleID, method, path),
		Path:            path,
		Method:          method,
		HandlerModuleID: moduleID,
		Handler:         handler,
		Framework:       framework,
	}
}

// nextMatch returns the first capture of re within the lookahead
// window starting at lines[start], or "".
func nextMatch(lines []string, start int, re *regexp.Regexp) string {
	for i := start; i < len(lines) && i < start+handlerLookahead; i++ {
		if m := re.FindStringSubmatch(lines[i]); m != nil {
			return m[1]
		}
	}
	return ""
}

// joinRoutePaths joins a controller base path and a method sub-path
// into a single slash-normalized route.
func joinRoutePaths(base, sub string) string {
	base = strings.Trim(base, "/")
	sub = strings.Trim(sub, "/")
	switch {
	case base == "" && sub == "":
		return "/"
	case base == "":
		return "/" + sub
	case sub == "":
		return "/" + base
	}
	return "/" + base + "/" + sub
}

// ensureLeadingSlash normalizes single-segment routes ("orders/" in a
// Django urlconf) to the slash-prefixed form the graph stores.
func ensureLeadingSlash(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}

// ===== Flask / FastAPI =====

var (
	flaskRouteRe   = regexp.MustCompile(`@\w+\.route\(\s*['"]([^'"]+)['"]([^)]*)\)`)
	flaskMethodsRe = regexp.MustCompile(`methods\s*=\s*\[([^\]]*)\]`)
	quotedWordRe   = regexp.MustCompile(`['"](\w+)['"]`)
	pyDefRe        = regexp.MustCompile(`^\s*(?:async\s+)?def\s+(\w+)`)

	// pyMethodDecoratorRe matches the @app.get("/x") decorator shape
	// shared by FastAPI and Flask 2.x shorthand routes.
	pyMethodDecoratorRe = regexp.MustCompile(`@\w+\.(get|post|put|delete|patch|head|options)\(\s*['"]([^'"]+)['"]`)
)

func extractFlask(content, moduleID string) []knowledge.Endpoint {
	lines := strings.Split(content, "\n")
	var endpoints []knowledge.Endpoint
	for i, line := range lines {
		if m := pyMethodDecoratorRe.FindStringSubmatch(line); m != nil {
			method := strings.ToUpper(m[1])
			path := ensureLeadingSlash(m[2])
			handler := nextMatch(lines, i+1, pyDefRe)
			endpoints = append(endpoints, newEndpoint(moduleID, "flask", method, path, handler))
			continue
		}
		m := flaskRouteRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		path := ensureLeadingSlash(m[1])
		handler := nextMatch(lines, i+1, pyDefRe)

		methods := []string{"GET"}
		if mm := flaskMethodsRe.FindStringSubmatch(m[2]); mm != nil {
			if names := quotedWordRe.FindAllStringSubmatch(mm[1], -1); len(names) > 0 {
				methods = methods[:0]
				for _, name := range names {
					methods = append(methods, strings.ToUpper(name[1]))
				}
			}
		}
		for _, method := range methods {
			endpoints = append(endpoints, newEndpoint(moduleID, "flask", method, path, handler))
		}
	}
	return endpoints
}

func extractFastAPI(content, moduleID string) []knowledge.Endpoint {
	lines := strings.Split(content, "\n")
	var endpoints []knowledge.Endpoint
	for i, line := range lines {
		m := pyMethodDecoratorRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		method := strings.ToUpper(m[1])
		path := ensureLeadingSlash(m[2])
		handler := nextMatch(lines, i+1, pyDefRe)
		endpoints = append(endpoints, newEndpoint(moduleID, "fastapi", method, path, handler))
	}
	return endpoints
}

// ===== Django =====

var djangoPathRe = regexp.MustCompile(`\b(?:re_)?path\(\s*r?['"]([^'"]*)['"]\s*,\s*([\w.]+)`)

// extractDjango reads path()/re_path() entries. The urlpatterns guard
// keeps unrelated path(...) calls in ordinary modules from producing
// junk routes.
func extractDjango(content, moduleID string) []knowledge.Endpoint {
	if !strings.Contains(content, "urlpatterns") {
		return nil
	}
	var endpoints []knowledge.Endpoint
	for _, m := range djangoPathRe.FindAllStringSubmatch(content, -1) {
		endpoints = append(endpoints, newEndpoint(moduleID, "django", "", ensureLeadingSlash(m[1]), m[2]))
	}
	return endpoints
}

// ===== Express =====

// expressRouteRe captures method, path, and optionally a single named
// handler. Inline closures and middleware chains leave the handler
// empty.
var expressRouteRe = regexp.MustCompile(`\b(?:app|router|server)\.(get|post|put|delete|patch|all)\(\s*['"]([^'"]+)['"](?:\s*,\s*([A-Za-z_$][\w$.]*)\s*\))?`)

func extractExpress(content, moduleID string) []knowledge.Endpoint {
	var endpoints []knowledge.Endpoint
	for _, m := range expressRouteRe.FindAllStringSubmatch(content, -1) {
		method := strings.ToUpper(m[1])
		path := ensureLeadingSlash(m[2])
		endpoints = append(endpoints, newEndpoint(moduleID, "express", method, path, m[3]))
	}
	return endpoints
}

// ===== NestJS =====

var (
	nestControllerRe = regexp.MustCompile(`@Controller\(\s*(?:['"]([^'"]*)['"])?`)
	nestRouteRe      = regexp.MustCompile(`@(Get|Post|Put|Delete|Patch|Head|Options|All)\(\s*(?:['"]([^'"]*)['"])?`)
	tsMethodRe       = regexp.MustCompile(`^\s*(?:public\s+|private\s+|protected\s+)?(?:async\s+)?(\w+)\s*\(`)
)

func extractNest(content, moduleID string) []knowledge.Endpoint {
	lines := strings.Split(content, "\n")
	var endpoints []knowledge.Endpoint
	base := ""
	for i, line := range lines {
		if m := nestControllerRe.FindStringSubmatch(line); m != nil {
			base = m[1]
			continue
		}
		m := nestRouteRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		method := strings.ToUpper(m[1])
		path := joinRoutePaths(base, m[2])
		handler := nextMatch(lines, i+1, tsMethodRe)
		endpoints = append(endpoints, newEndpoint(moduleID, "nestjs", method, path, handler))
	}
	return endpoints
}

// ===== Spring =====

var (
	springMappingRe = regexp.MustCompile(`@(Get|Post|Put|Delete|Patch|Request)Mapping(?:\(\s*(?:value\s*=\s*|path\s*=\s*)?['"]([^'"]*)['"])?`)
	springMethodRe  = regexp.MustCompile(`method\s*=\s*RequestMethod\.(\w+)`)
	javaClassRe     = regexp.MustCompile(`\bclass\s+\w+`)
	javaMethodRe    = regexp.MustCompile(`^\s*(?:public|protected|private)\s+(?:static\s+)?[\w<>,?\[\]\s]+?\s+(\w+)\s*\(`)
)

// extractSpring treats a @RequestMapping seen before the class keyword
// as the controller base path. Method-level @RequestMapping without a
// method attribute reports an empty method (any verb).
func extractSpring(content, moduleID string) []knowledge.Endpoint {
	lines := strings.Split(content, "\n")
	var endpoints []knowledge.Endpoint
	base := ""
	seenClass := false
	for i, line := range lines {
		if !seenClass && javaClassRe.MatchString(line) {
			seenClass = true
		}
		m := springMappingRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		kind, sub := m[1], m[2]
		if kind == "Request" && !seenClass {
			base = sub
			continue
		}
		method := ""
		if kind == "Request" {
			if mm := springMethodRe.FindStringSubmatch(line); mm != nil {
				method = strings.ToUpper(mm[1])
			}
		} else {
			method = strings.ToUpper(kind)
		}
		path := joinRoutePaths(base, sub)
		handler := nextMatch(lines, i+1, javaMethodRe)
		endpoints = append(endpoints, newEndpoint(moduleID, "spring-boot", method, path, handler))
	}
	return endpoints
}

// ===== ASP.NET Core =====

var (
	aspControllerRe = regexp.MustCompile(`class\s+(\w+)Controller`)
	aspRouteRe      = regexp.MustCompile(`\[Route\(\s*"([^"]*)"\s*\)\]`)
	aspHTTPRe       = regexp.MustCompile(`\[Http(Get|Post|Put|Delete|Patch)(?:\(\s*"([^"]*)"\s*\))?\]`)
	csMethodRe      = regexp.MustCompile(`^\s*public\s+(?:async\s+)?[\w<>\[\]?]+\s+(\w+)\s*\(`)
)

// extractASPNET resolves the [controller] route token from the class
// name. A [Route] attribute after the class declaration applies to the
// next [HttpX] attribute that carries no path of its own.
func extractASPNET(content, moduleID string) []knowledge.Endpoint {
	token := ""
	if m := aspControllerRe.FindStringSubmatch(content); m != nil {
		token = strings.ToLower(m[1])
	}
	expand := func(path string) string {
		return strings.ReplaceAll(path, "[controller]", token)
	}

	lines := strings.Split(content, "\n")
	var endpoints []knowledge.Endpoint
	base := ""
	pending := ""
	seenClass := false
	for i, line := range lines {
		if !seenClass && aspControllerRe.MatchString(line) {
			seenClass = true
		}
		if m := aspRouteRe.FindStringSubmatch(line); m != nil {
			if seenClass {
				pending = m[1]
			} else {
				base = m[1]
			}
			continue
		}
		m := aspHTTPRe.FindStringSubmatch(line)
		if m == nil {
			if csMethodRe.MatchString(line) {
				pending = ""
			}
			continue
		}
		method := strings.ToUpper(m[1])
		sub := m[2]
		if sub == "" && pending != "" {
			sub = pending
		}
		pending = ""
		path := joinRoutePaths(expand(base), expand(sub))
		handler := nextMatch(lines, i+1, csMethodRe)
		endpoints = append(endpoints, newEndpoint(moduleID, "aspnet", method, path, handler))
	}
	return endpoints
}
