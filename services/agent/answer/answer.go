// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package answer serves informational queries about a repository from its
// knowledge graph.
//
// # Design Principles
//
//   - Keyword routing picks a specialized handler; each handler assembles
//     a deterministic graph-derived answer first and only then hands that
//     context to the LLM for natural-language rendering.
//   - The LLM is optional. Without one (or when it fails) the structured
//     text is the answer, so every query type works offline.
//
// # Thread Safety
//
// Handler is safe for concurrent use.
package answer

import (
	"context"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/AleutianAI/atlas/services/agent/intent"
	"github.com/AleutianAI/atlas/services/knowledge"
	"github.com/AleutianAI/atlas/services/knowledge/query"
	"github.com/AleutianAI/atlas/services/llm"
)

// Reference points at a graph entity the answer mentions.
type Reference struct {
	Type string `json:"type"` // module, symbol, endpoint or project
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Metadata summarizes what an answer touched.
type Metadata struct {
	ModulesMentioned   []string `json:"modules_mentioned"`
	EndpointsMentioned []string `json:"endpoints_mentioned"`
	QueryType          string   `json:"query_type"`
}

// Response is the query-handler output contract.
type Response struct {
	Answer     string      `json:"answer"`
	References []Reference `json:"references"`
	Metadata   Metadata    `json:"metadata"`
}

// Rendering parameters for the optional LLM pass. A warmer temperature
// than classification: the facts are already fixed by the context.
const (
	renderTemperature = float32(0.7)
	renderMaxTokens   = 2000
)

// Keyword routes, checked in order. The first list that matches wins, so
// the specific phrasings sit above the generic ones.
var (
	entryFileKeywords    = []string{"entry file", "entry point", "main file", "startup file", "what is the entry", "where is main"}
	appComponentKeywords = []string{"app component", "root component", "main component", "what is the app component", "where is app component"}
	featuresKeywords     = []string{"what are the features", "what features", "list features", "features"}
	summaryKeywords      = []string{"what is this project", "project about", "project summary", "describe project"}
	dependencyKeywords   = []string{"dependencies", "depends on", "depend on", "what does it import"}
	moduleKeywords       = []string{"explain module", "what is module", "describe module", "module"}
	listModulesKeywords  = []string{"list modules", "what modules", "all modules", "modules"}
	endpointKeywords     = []string{"endpoints", "api", "routes"}
)

var (
	// modIDRe matches an explicit module ID in the question.
	modIDRe = regexp.MustCompile(`mod:[^\s]+`)

	// filePathRe matches a source path in the question. Longer extensions
	// sit before their prefixes so "app.tsx" is not cut to "app.ts".
	filePathRe = regexp.MustCompile(`[a-zA-Z0-9_/\\.-]+\.(?:tsx|ts|jsx|js|py|java|cpp|cs|c)\b`)

	// answerPathRe finds paths an LLM answer mentions, for references.
	answerPathRe = regexp.MustCompile(`[a-zA-Z0-9_/\\.-]+\.(?:tsx|ts|jsx|js|py)\b`)
)

// Handler answers informational queries.
type Handler struct {
	engine *query.Engine
	client llm.LLMClient
	logger *slog.Logger
}

// NewHandler builds a Handler. client may be nil; answers then stay
// structured.
func NewHandler(engine *query.Engine, client llm.LLMClient, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: engine, client: client, logger: logger}
}

// Answer routes message to the matching handler and wraps the result in
// the response contract.
func (h *Handler) Answer(ctx context.Context, message string, in intent.Intent) Response {
	h.logger.Debug("answering informational query", "intent", in.Label)
	lower := strings.ToLower(message)

	var (
		text string
		refs []Reference
	)
	switch {
	case containsAny(lower, entryFileKeywords...):
		text = h.entryFileAnswer(ctx, message)
		refs = refsForModules(h.engine.EntryPointModules(ctx))
	case containsAny(lower, appComponentKeywords...):
		text = h.appComponentAnswer(ctx, message)
		refs = refsForModules(h.engine.AppComponentModules(ctx))
	case containsAny(lower, featuresKeywords...):
		text = h.featuresAnswer(ctx, message)
		refs = h.featureRefs()
	case containsAny(lower, summaryKeywords...):
		text = h.projectSummary()
		refs = h.projectRefs()
	case containsAny(lower, dependencyKeywords...):
		moduleID := h.moduleFromQuery(ctx, message)
		text = h.dependenciesAnswer(ctx, moduleID)
		refs = h.dependencyRefs(ctx, moduleID)
	case containsAny(lower, moduleKeywords...):
		if moduleID := h.moduleFromQuery(ctx, message); moduleID != "" {
			text = h.explainModule(ctx, moduleID)
			refs = h.moduleRefs(moduleID)
		} else {
			text = h.listModules()
		}
	case containsAny(lower, listModulesKeywords...):
		text = h.listModules()
	case containsAny(lower, endpointKeywords...):
		text = h.listEndpoints()
		refs = h.endpointRefs()
	default:
		text = h.generalAnswer(ctx, message)
		refs = h.refsFromAnswer(text)
	}

	return Response{
		Answer:     text,
		References: refs,
		Metadata: Metadata{
			ModulesMentioned:   idsOfType(refs, "module"),
			EndpointsMentioned: idsOfType(refs, "endpoint"),
			QueryType:          classifyQueryType(lower),
		},
	}
}

// render asks the LLM to phrase prompt's context naturally. ok is false
// when no LLM is configured or the call failed; callers then fall back to
// their structured text.
func (h *Handler) render(ctx context.Context, prompt string) (string, bool) {
	if h.client == nil {
		return "", false
	}
	temp := renderTemperature
	maxTokens := renderMaxTokens
	out, err := h.client.Generate(ctx, prompt, llm.GenerationParams{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		h.logger.Warn("llm rendering failed, returning structured answer", "error", err)
		return "", false
	}
	return out, true
}

// moduleFromQuery resolves the module a question refers to: an explicit
// mod: ID, then a filename lookup, then a path-pattern search, then a raw
// substring scan. Empty when nothing matches.
func (h *Handler) moduleFromQuery(ctx context.Context, message string) string {
	if id := modIDRe.FindString(message); id != "" {
		return id
	}
	pathMatch := filePathRe.FindString(message)
	if pathMatch == "" {
		return ""
	}
	filename := path.Base(strings.ReplaceAll(pathMatch, `\`, "/"))

	if matches := h.engine.ModulesByFilename(ctx, filename); len(matches) > 0 {
		for _, m := range matches {
			if strings.HasSuffix(m.Path, pathMatch) || path.Base(m.Path) == filename {
				return m.ID
			}
		}
		return matches[0].ID
	}
	if mods, err := h.engine.ModulesByPathPattern(ctx, "*"+pathMatch+"*"); err == nil && len(mods) > 0 {
		return mods[0].ID
	}
	for i := range h.engine.Graph().Modules {
		mod := &h.engine.Graph().Modules[i]
		if strings.Contains(mod.Path, pathMatch) || strings.HasSuffix(mod.Path, pathMatch) {
			return mod.ID
		}
	}
	return ""
}

// classifyQueryType labels the query for response metadata.
func classifyQueryType(lower string) string {
	switch {
	case strings.Contains(lower, "project") || strings.Contains(lower, "about"):
		return "project_summary"
	case strings.Contains(lower, "depend"):
		return "dependencies"
	case strings.Contains(lower, "module"):
		return "module_info"
	case strings.Contains(lower, "endpoint") || strings.Contains(lower, "api"):
		return "endpoints"
	default:
		return "general"
	}
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// first returns at most n leading elements of items.
func first[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func nameOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}

func idsOfType(refs []Reference, refType string) []string {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref.Type == refType {
			ids = append(ids, ref.ID)
		}
	}
	return ids
}

// sortedDegrees orders module degree counts descending, ties by ID.
type degree struct {
	id string
	n  int
}

func sortedDegrees(counts map[string]int, min int) []degree {
	var out []degree
	for id, n := range counts {
		if n > min {
			out = append(out, degree{id: id, n: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].n != out[j].n {
			return out[i].n > out[j].n
		}
		return out[i].id < out[j].id
	})
	return out
}

// importDegrees counts import-edge endpoints per module.
func importDegrees(g *knowledge.Graph) map[string]int {
	counts := make(map[string]int)
	for _, e := range g.Edges {
		if e.Type != knowledge.EdgeImports {
			continue
		}
		if id := knowledge.ModuleIDFromRef(e.From); id != "" {
			counts[id]++
		}
		if id := knowledge.ModuleIDFromRef(e.To); id != "" {
			counts[id]++
		}
	}
	return counts
}
