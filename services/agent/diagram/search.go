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
	"context"
	"path"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/AleutianAI/atlas/services/knowledge"
)

// Traversal directions for focused dependency diagrams.
const (
	directionBoth     = "both"
	directionIncoming = "incoming"
	directionOutgoing = "outgoing"
)

// Strategy confidences. A module keeps the confidence of the first
// strategy that finds it, and results are ranked highest first.
const (
	confFilename = 100
	confKind     = 80
	confPath     = 60
	confFeature  = 50
	confTag      = 40
	confSymbol   = 30
)

var (
	// filePatternRe matches a bare filename; longest extensions first so
	// "app.tsx" is not cut to "app.ts".
	filePatternRe = regexp.MustCompile(`(?i)[a-zA-Z0-9_\-]+\.(?:tsx|ts|jsx|js|py|java|cs|cpp|c)\b`)

	// incomingDirRe reads "what files depend on X" as a fan-in question.
	incomingDirRe = regexp.MustCompile(`(?:what|which|show).*(?:files?|modules?|components?).*(?:depends?|calls?|uses?).*on`)

	// outgoingDirRe reads "what does X depend on" as a fan-out question.
	outgoingDirRe = regexp.MustCompile(`(?:what|which|show).*(?:does|do).*(?:depends?|calls?|uses?).*on`)

	queryWordRe = regexp.MustCompile(`\b[a-zA-Z][a-zA-Z0-9_]*\b`)
)

// moduleKindKeywords maps wording to module kind tags, in match order.
var moduleKindKeywords = []struct {
	kind     string
	keywords []string
}{
	{"service", []string{"service", "services"}},
	{"controller", []string{"controller", "controllers", "ctrl"}},
	{"component", []string{"component", "components"}},
	{"entity", []string{"entity", "entities", "model", "models"}},
	{"repository", []string{"repository", "repositories", "repo", "repos"}},
	{"module", []string{"module", "modules"}},
	{"util", []string{"util", "utils", "utility", "utilities"}},
	{"helper", []string{"helper", "helpers"}},
	{"middleware", []string{"middleware"}},
	{"guard", []string{"guard", "guards"}},
	{"interceptor", []string{"interceptor", "interceptors"}},
	{"decorator", []string{"decorator", "decorators"}},
	{"pipe", []string{"pipe", "pipes"}},
	{"directive", []string{"directive", "directives"}},
}

// featureKeywords are feature-folder names common enough to recognize in
// free text.
var featureKeywords = []string{
	"login", "auth", "authentication", "user", "payment", "order",
	"product", "cart", "checkout", "admin", "dashboard", "profile",
}

// queryStopWords are words that carry no search signal, including the
// structural vocabulary of diagram requests themselves.
var queryStopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "should": true,
	"could": true, "may": true, "might": true, "must": true, "can": true,
	"what": true, "which": true, "where": true, "when": true, "why": true,
	"how": true, "show": true, "create": true, "generate": true,
	"make": true, "get": true,
	"file": true, "files": true, "module": true, "modules": true,
	"component": true, "components": true,
	"depend": true, "depends": true, "dependency": true, "dependencies": true,
	"diagram": true, "map": true,
	"of": true, "on": true, "in": true, "at": true, "to": true,
	"for": true, "with": true, "from": true, "by": true,
}

// parsedQuery is the structured reading of a diagram request.
type parsedQuery struct {
	SearchTerms  []string
	FilePattern  string
	ModuleKinds  []string
	FeatureNames []string
	Direction    string
}

// parseQuery extracts module search hints from free text: a filename, a
// dependency direction, module kinds, feature names, and residual search
// terms.
func parseQuery(message string) parsedQuery {
	lower := strings.ToLower(message)
	q := parsedQuery{Direction: directionBoth}

	q.FilePattern = filePatternRe.FindString(message)

	switch {
	case incomingDirRe.MatchString(lower):
		q.Direction = directionIncoming
	case outgoingDirRe.MatchString(lower):
		q.Direction = directionOutgoing
	case strings.Contains(lower, "depend on") || strings.Contains(lower, "depends on"):
		if strings.Contains(lower, "what") || strings.Contains(lower, "which") {
			q.Direction = directionOutgoing
		}
	}

	for _, kk := range moduleKindKeywords {
		if containsAny(lower, kk.keywords) && !slices.Contains(q.ModuleKinds, kk.kind) {
			q.ModuleKinds = append(q.ModuleKinds, kk.kind)
		}
	}

	for _, feature := range featureKeywords {
		if strings.Contains(lower, feature) && !slices.Contains(q.FeatureNames, feature) {
			q.FeatureNames = append(q.FeatureNames, feature)
		}
	}

	for _, word := range queryWordRe.FindAllString(lower, -1) {
		if len(word) <= 2 || queryStopWords[word] {
			continue
		}
		if slices.Contains(q.ModuleKinds, word) ||
			slices.Contains(q.FeatureNames, word) ||
			slices.Contains(q.SearchTerms, word) {
			continue
		}
		q.SearchTerms = append(q.SearchTerms, word)
	}

	if q.FilePattern != "" {
		base := strings.ToLower(strings.TrimSuffix(q.FilePattern, path.Ext(q.FilePattern)))
		if !slices.Contains(q.SearchTerms, base) {
			q.SearchTerms = append(q.SearchTerms, base)
		}
	}

	return q
}

// scoredModule pairs a found module with its strategy confidence.
type scoredModule struct {
	module     knowledge.Module
	confidence int
}

// findModules resolves a parsed query to candidate modules. Strategies
// run most specific first; the stable sort keeps same-confidence results
// in discovery order.
func (g *Generator) findModules(ctx context.Context, q parsedQuery) []knowledge.Module {
	var found []scoredModule
	seen := make(map[string]bool)
	add := func(m knowledge.Module, confidence int) {
		if m.ID == "" || seen[m.ID] {
			return
		}
		seen[m.ID] = true
		found = append(found, scoredModule{module: m, confidence: confidence})
	}

	if q.FilePattern != "" {
		for _, m := range g.engine.ModulesByFilename(ctx, q.FilePattern) {
			add(m, confFilename)
		}
	}

	for _, kind := range q.ModuleKinds {
		modules := g.engine.ModulesByKind(ctx, kind)
		if len(q.SearchTerms) > 0 {
			modules = filterByTerms(modules, q.SearchTerms)
		}
		for _, m := range modules {
			add(m, confKind)
		}
	}

	for _, term := range q.SearchTerms {
		if slices.Contains(q.ModuleKinds, term) {
			continue
		}
		for _, m := range g.engine.ModulesByTag(ctx, term) {
			add(m, confTag)
		}
	}

	for _, term := range q.SearchTerms {
		modules, err := g.engine.ModulesByPathPattern(ctx, "*"+term+"*")
		if err != nil {
			g.logger.Debug("path pattern search failed", "term", term, "error", err)
			continue
		}
		for _, m := range modules {
			add(m, confPath)
		}
	}

	for _, term := range q.SearchTerms {
		symbols, err := g.engine.SymbolsByName(ctx, "*"+term+"*")
		if err != nil {
			g.logger.Debug("symbol search failed", "term", term, "error", err)
			continue
		}
		for _, s := range symbols {
			if m := g.engine.ModuleByID(s.ModuleID); m != nil {
				add(*m, confSymbol)
			}
		}
	}

	for _, feature := range q.FeatureNames {
		modules, err := g.engine.ModulesByPathPattern(ctx, "*"+feature+"*")
		if err != nil {
			g.logger.Debug("feature search failed", "feature", feature, "error", err)
			continue
		}
		for _, m := range modules {
			add(m, confFeature)
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].confidence > found[j].confidence
	})

	modules := make([]knowledge.Module, len(found))
	for i, s := range found {
		modules[i] = s.module
	}
	return modules
}

// filterByTerms keeps modules whose path or ID contains any term,
// case-insensitively.
func filterByTerms(modules []knowledge.Module, terms []string) []knowledge.Module {
	var filtered []knowledge.Module
	for _, m := range modules {
		lowerPath := strings.ToLower(m.Path)
		lowerID := strings.ToLower(m.ID)
		for _, term := range terms {
			t := strings.ToLower(term)
			if strings.Contains(lowerPath, t) || strings.Contains(lowerID, t) {
				filtered = append(filtered, m)
				break
			}
		}
	}
	return filtered
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
