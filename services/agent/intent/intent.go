// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package intent classifies user utterances into the three request
// categories the agent serves: informational queries, diagram requests,
// and code changes.
//
// # Design Principles
//
//   - Classification prefers the LLM but never depends on it: any failure
//     degrades to a keyword rule-set, so the router cannot fail and
//     downstream phases must tolerate minimal intents.
//   - The LLM contract is a single JSON object; everything around it in
//     the completion is ignored.
//
// # Thread Safety
//
// Router is safe for concurrent use.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/AleutianAI/atlas/services/llm"
)

// Category partitions user utterances by how the agent serves them.
type Category string

const (
	// CategoryInformational answers a question about the codebase.
	CategoryInformational Category = "informational_query"

	// CategoryDiagram produces an architecture or dependency diagram.
	CategoryDiagram Category = "diagram_request"

	// CategoryCodeChange performs an end-to-end code modification.
	CategoryCodeChange Category = "code_change"
)

// Intent is the structured classification of one user utterance.
// TargetModules carries tag hints for impact seeding; DiagramType and
// TargetFiles are category-specific and usually empty.
type Intent struct {
	Category      Category `json:"intent_category"`
	Label         string   `json:"intent"`
	Description   string   `json:"description"`
	Constraints   []string `json:"constraints,omitempty"`
	TargetModules []string `json:"target_modules,omitempty"`
	HumanApproval bool     `json:"human_approval"`
	DiagramType   string   `json:"diagram_type,omitempty"`
	TargetFiles   []string `json:"target_files,omitempty"`
}

// classifyTemperature keeps category assignment stable across retries
// without making the free-form label fields fully deterministic.
const classifyTemperature = float32(0.3)

// jsonObjectRe grabs the outermost JSON object in a completion, tolerating
// prose the model wraps around it.
var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// Router classifies utterances.
type Router struct {
	client llm.LLMClient
	logger *slog.Logger
}

// NewRouter builds a Router. client may be nil, in which case every
// classification uses the keyword rules.
func NewRouter(client llm.LLMClient, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{client: client, logger: logger}
}

// Extract classifies message. It never returns an error: when the LLM is
// absent, unreachable, or returns unusable output, a keyword-derived
// minimal intent is returned instead.
func (r *Router) Extract(ctx context.Context, message string) Intent {
	if r.client == nil {
		return r.minimal(message)
	}

	temp := classifyTemperature
	out, err := r.client.Generate(ctx, classifyPrompt(message), llm.GenerationParams{
		Temperature: &temp,
	})
	if err != nil {
		r.logger.Warn("intent classification failed, using keyword rules", "error", err)
		return r.minimal(message)
	}

	parsed, ok := parseIntent(out)
	if !ok {
		r.logger.Warn("intent classification returned no parsable JSON, using keyword rules")
		return r.minimal(message)
	}
	return normalize(parsed, message)
}

// minimal builds the degraded intent used whenever the LLM path is
// unavailable.
func (r *Router) minimal(message string) Intent {
	category := keywordCategory(message)
	return Intent{
		Category:    category,
		Label:       string(category),
		Description: message,
	}
}

func classifyPrompt(message string) string {
	return fmt.Sprintf(`Classify the following request about a software repository.

Respond with only a JSON object, no surrounding prose:
{
  "intent_category": one of "informational_query", "diagram_request", "code_change",
  "intent": "short free-form label",
  "description": "one-sentence restatement of the request",
  "constraints": ["explicit constraints the user stated"],
  "target_modules": ["module or feature tags the request mentions"],
  "human_approval": true when the user asks to review before changes are made,
  "diagram_type": "for diagram requests: architecture, dependency or focused",
  "target_files": ["for code changes: file paths the request names"]
}

Request: %s`, message)
}

// parseIntent pulls the first JSON object out of an LLM completion.
func parseIntent(out string) (Intent, bool) {
	match := jsonObjectRe.FindString(out)
	if match == "" {
		return Intent{}, false
	}
	var in Intent
	if err := json.Unmarshal([]byte(match), &in); err != nil {
		return Intent{}, false
	}
	return in, true
}

// normalize fills holes the model left so downstream phases always see a
// valid category, label, and description.
func normalize(in Intent, message string) Intent {
	switch in.Category {
	case CategoryInformational, CategoryDiagram, CategoryCodeChange:
	default:
		in.Category = keywordCategory(message)
	}
	if in.Label == "" {
		in.Label = string(in.Category)
	}
	if in.Description == "" {
		in.Description = message
	}
	return in
}

// keywordCategory applies the rule-set used when no LLM answer is
// available. Substring checks mirror how utterances actually phrase these
// requests; precedence is diagram, then informational, then code change.
func keywordCategory(message string) Category {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "diagram") || strings.Contains(lower, "architecture"):
		return CategoryDiagram
	case containsAny(lower, "what", "which", "list", "explain", "show me"):
		return CategoryInformational
	default:
		return CategoryCodeChange
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
