// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/AleutianAI/atlas/services/agent/intent"
	"github.com/AleutianAI/atlas/services/knowledge"
	"github.com/AleutianAI/atlas/services/knowledge/query"
	"github.com/AleutianAI/atlas/services/llm"
)

type fakeLLM struct {
	out    string
	err    error
	prompt string
	params llm.GenerationParams
	calls  int
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, params llm.GenerationParams) (string, error) {
	f.calls++
	f.prompt = prompt
	f.params = params
	return f.out, f.err
}

func fixtureGraph() *knowledge.Graph {
	return &knowledge.Graph{
		Project: knowledge.Project{ID: "shop", Name: "shop", Languages: []string{"typescript"}},
		Modules: []knowledge.Module{
			{ID: "mod:src/main.ts", Path: "src/main.ts"},
			{
				ID:      "mod:src/app/app.component.ts",
				Path:    "src/app/app.component.ts",
				Kinds:   []string{"component"},
				Exports: []string{"sym:mod:src/app/app.component.ts:AppComponent"},
			},
			{
				ID:            "mod:src/auth/login.service.ts",
				Path:          "src/auth/login.service.ts",
				Kinds:         []string{"service"},
				ModuleSummary: "Handles login.",
				Exports:       []string{"sym:mod:src/auth/login.service.ts:LoginService"},
			},
			{ID: "mod:src/auth/http.service.ts", Path: "src/auth/http.service.ts", Kinds: []string{"service"}},
		},
		Symbols: []knowledge.Symbol{
			{ID: "sym:mod:src/app/app.component.ts:AppComponent", ModuleID: "mod:src/app/app.component.ts", Name: "AppComponent", Kind: knowledge.SymbolClass},
			{ID: "sym:mod:src/auth/login.service.ts:LoginService", ModuleID: "mod:src/auth/login.service.ts", Name: "LoginService", Kind: knowledge.SymbolClass},
		},
		Endpoints: []knowledge.Endpoint{
			{ID: "ep:mod:src/auth/login.service.ts:POST:/login", Path: "/login", Method: "POST", Handler: "login"},
		},
		Edges: []knowledge.Edge{
			{From: "mod:src/app/app.component.ts", To: "mod:src/auth/login.service.ts", Type: knowledge.EdgeImports},
			{From: "mod:src/auth/login.service.ts", To: "mod:src/auth/http.service.ts", Type: knowledge.EdgeImports},
		},
		Features: []knowledge.Feature{
			{ID: "feat:src/auth", Name: "auth", Path: "src/auth", ModuleIDs: []string{"mod:src/auth/login.service.ts", "mod:src/auth/http.service.ts"}},
		},
	}
}

func handlerFor(t *testing.T, client llm.LLMClient) *Handler {
	t.Helper()
	return NewHandler(query.New(fixtureGraph(), nil, nil), client, nil)
}

func TestAnswerEntryPointWithoutLLM(t *testing.T) {
	h := handlerFor(t, nil)

	got := h.Answer(context.Background(), "where is main?", intent.Intent{})
	if !strings.Contains(got.Answer, "src/main.ts") {
		t.Fatalf("answer does not mention the entry file:\n%s", got.Answer)
	}
	if len(got.References) != 1 || got.References[0].ID != "mod:src/main.ts" {
		t.Fatalf("references = %+v, want the entry module", got.References)
	}
	if got.References[0].Type != "module" {
		t.Fatalf("reference type = %q, want module", got.References[0].Type)
	}
}

func TestAnswerRendersThroughLLM(t *testing.T) {
	fake := &fakeLLM{out: "The entry point is src/main.ts, which bootstraps the app."}
	h := handlerFor(t, fake)

	got := h.Answer(context.Background(), "what is the entry point?", intent.Intent{})
	if got.Answer != fake.out {
		t.Fatalf("answer = %q, want the rendered text", got.Answer)
	}
	if !strings.Contains(fake.prompt, "Entry Point Files") {
		t.Fatalf("prompt missing deterministic context:\n%s", fake.prompt)
	}
	if fake.params.Temperature == nil || *fake.params.Temperature != 0.7 {
		t.Fatalf("temperature = %v, want 0.7", fake.params.Temperature)
	}
	if fake.params.MaxTokens == nil || *fake.params.MaxTokens != 2000 {
		t.Fatalf("max tokens = %v, want 2000", fake.params.MaxTokens)
	}
}

func TestAnswerLLMFailureFallsBack(t *testing.T) {
	fake := &fakeLLM{err: errors.New("unreachable")}
	h := handlerFor(t, fake)

	got := h.Answer(context.Background(), "what is the entry point?", intent.Intent{})
	if !strings.Contains(got.Answer, "entry point file(s)") {
		t.Fatalf("expected structured fallback, got:\n%s", got.Answer)
	}
}

func TestAnswerModuleDependencies(t *testing.T) {
	h := handlerFor(t, nil)

	got := h.Answer(context.Background(), "what does src/auth/login.service.ts depend on?", intent.Intent{})
	if !strings.Contains(got.Answer, "http.service.ts") {
		t.Fatalf("answer missing callee:\n%s", got.Answer)
	}
	if !strings.Contains(got.Answer, "Used by (1)") {
		t.Fatalf("answer missing caller section:\n%s", got.Answer)
	}

	var ids []string
	for _, ref := range got.References {
		ids = append(ids, ref.ID)
	}
	wantCallee := "mod:src/auth/http.service.ts"
	found := false
	for _, id := range ids {
		if id == wantCallee {
			found = true
		}
	}
	if !found {
		t.Fatalf("references %v missing %s", ids, wantCallee)
	}
	if got.Metadata.QueryType != "dependencies" {
		t.Fatalf("query type = %q, want dependencies", got.Metadata.QueryType)
	}
}

func TestAnswerProjectWideDependencies(t *testing.T) {
	// No module resolvable from the message: the project-wide listing
	// still references modules, so dependency questions about modules
	// named without extensions keep working.
	h := handlerFor(t, nil)

	got := h.Answer(context.Background(), "what does B depend on", intent.Intent{})
	if !strings.Contains(got.Answer, "dependency relationships") {
		t.Fatalf("expected project-wide dependency answer, got:\n%s", got.Answer)
	}
	if len(got.References) == 0 {
		t.Fatal("expected module references for project-wide dependency answer")
	}
	if len(got.Metadata.ModulesMentioned) == 0 {
		t.Fatal("expected modules_mentioned to be populated")
	}
}

func TestAnswerProjectSummary(t *testing.T) {
	h := handlerFor(t, nil)

	got := h.Answer(context.Background(), "what is this project about?", intent.Intent{})
	if !strings.Contains(got.Answer, "Project shop with 4 modules") {
		t.Fatalf("summary = %q", got.Answer)
	}
	if !strings.Contains(got.Answer, "written in typescript") {
		t.Fatalf("summary missing languages: %q", got.Answer)
	}
	if got.Metadata.QueryType != "project_summary" {
		t.Fatalf("query type = %q, want project_summary", got.Metadata.QueryType)
	}
	if len(got.References) != 1 || got.References[0].Type != "project" {
		t.Fatalf("references = %+v, want one project ref", got.References)
	}
}

func TestAnswerListEndpoints(t *testing.T) {
	h := handlerFor(t, nil)

	got := h.Answer(context.Background(), "list the api routes", intent.Intent{})
	if !strings.Contains(got.Answer, "POST:") || !strings.Contains(got.Answer, "/login") {
		t.Fatalf("endpoint listing missing POST /login:\n%s", got.Answer)
	}
	if len(got.Metadata.EndpointsMentioned) != 1 {
		t.Fatalf("endpoints_mentioned = %v, want one", got.Metadata.EndpointsMentioned)
	}
}

func TestAnswerExplainModule(t *testing.T) {
	h := handlerFor(t, nil)

	got := h.Answer(context.Background(), "explain module src/auth/login.service.ts", intent.Intent{})
	if !strings.Contains(got.Answer, "Module: src/auth/login.service.ts") {
		t.Fatalf("answer = %q", got.Answer)
	}
	if !strings.Contains(got.Answer, "Summary: Handles login.") {
		t.Fatalf("answer missing summary:\n%s", got.Answer)
	}
	if !strings.Contains(got.Answer, "class LoginService") {
		t.Fatalf("answer missing exported symbol:\n%s", got.Answer)
	}
}

func TestAnswerGeneralWithoutLLM(t *testing.T) {
	h := handlerFor(t, nil)

	got := h.Answer(context.Background(), "how does checkout work?", intent.Intent{})
	if !strings.Contains(got.Answer, "LLM is not available") {
		t.Fatalf("answer = %q", got.Answer)
	}
	if got.Metadata.QueryType != "general" {
		t.Fatalf("query type = %q, want general", got.Metadata.QueryType)
	}
}

func TestAnswerGeneralExtractsReferences(t *testing.T) {
	fake := &fakeLLM{out: "Checkout goes through src/auth/login.service.ts first."}
	h := handlerFor(t, fake)

	got := h.Answer(context.Background(), "how does checkout work?", intent.Intent{})
	if len(got.References) != 1 || got.References[0].ID != "mod:src/auth/login.service.ts" {
		t.Fatalf("references = %+v, want the mentioned module", got.References)
	}
	if !strings.Contains(fake.prompt, "Key Modules") {
		t.Fatalf("prompt missing key module context:\n%s", fake.prompt)
	}
}

func TestFullProjectContextCapsModules(t *testing.T) {
	graph := &knowledge.Graph{Project: knowledge.Project{ID: "big", Name: "big"}}
	for i := 0; i < 50; i++ {
		id := knowledge.ModuleID(pathOf(i))
		graph.Modules = append(graph.Modules, knowledge.Module{ID: id, Path: pathOf(i)})
	}
	h := NewHandler(query.New(graph, nil, nil), nil, nil)

	key := h.keyModules(context.Background(), nil, nil)
	if len(key) != keyModuleCap {
		t.Fatalf("key modules = %d, want %d", len(key), keyModuleCap)
	}
}

func pathOf(i int) string {
	return "src/m" + string(rune('a'+i%26)) + string(rune('a'+i/26)) + ".ts"
}
