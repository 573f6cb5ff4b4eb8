// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package diagram

import (
	"context"
	"errors"
	"slices"
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

// stubRenderer stands in for the render chain so tests never launch a
// browser.
type stubRenderer struct {
	code       string
	resolution int
	calls      int
}

func (s *stubRenderer) Render(_ context.Context, mermaidCode string, resolution int) (string, RenderInfo) {
	s.calls++
	s.code = mermaidCode
	s.resolution = resolution
	return "rendered:" + mermaidCode, RenderInfo{Rendered: true, Method: "stub", Resolution: resolution}
}

func fixtureGraph() *knowledge.Graph {
	return &knowledge.Graph{
		Project: knowledge.Project{ID: "shop", Name: "shop", Languages: []string{"typescript"}},
		Modules: []knowledge.Module{
			{ID: "mod:src/main.ts", Path: "src/main.ts"},
			{ID: "mod:src/app/app.component.ts", Path: "src/app/app.component.ts", Kinds: []string{"component"}},
			{ID: "mod:src/auth/login.service.ts", Path: "src/auth/login.service.ts", Kinds: []string{"service"}},
			{ID: "mod:src/core/http.client.ts", Path: "src/core/http.client.ts", Kinds: []string{"service"}},
		},
		Symbols: []knowledge.Symbol{
			{ID: "sym:mod:src/auth/login.service.ts:LoginService", ModuleID: "mod:src/auth/login.service.ts", Name: "LoginService", Kind: knowledge.SymbolClass},
		},
		Edges: []knowledge.Edge{
			{From: "mod:src/main.ts", To: "mod:src/app/app.component.ts", Type: knowledge.EdgeImports},
			{From: "mod:src/app/app.component.ts", To: "mod:src/auth/login.service.ts", Type: knowledge.EdgeImports},
			{From: "mod:src/auth/login.service.ts", To: "mod:src/core/http.client.ts", Type: knowledge.EdgeImports},
		},
		Features: []knowledge.Feature{
			{ID: "feat:src/auth", Name: "auth", Path: "src/auth", ModuleIDs: []string{"mod:src/auth/login.service.ts"}},
		},
	}
}

func generatorFor(t *testing.T, client llm.LLMClient) (*Generator, *stubRenderer) {
	t.Helper()
	g := NewGenerator(query.New(fixtureGraph(), nil, nil), client, nil)
	stub := &stubRenderer{}
	g.renderer = stub
	return g, stub
}

func TestGenerateArchitecture(t *testing.T) {
	fake := &fakeLLM{out: "```mermaid\ngraph TD\n  A[App] --> B[DB]\n```"}
	g, stub := generatorFor(t, fake)

	got := g.Generate(context.Background(), intent.Intent{}, "show me the project architecture")
	if got.DiagramType != TypeArchitecture {
		t.Fatalf("diagram type = %q, want %q", got.DiagramType, TypeArchitecture)
	}
	if got.MermaidCode != "graph TD\n  A[App] --> B[DB]" {
		t.Fatalf("mermaid code not unfenced:\n%s", got.MermaidCode)
	}
	if got.Content != "rendered:"+got.MermaidCode {
		t.Fatalf("content = %q, want rendered mermaid", got.Content)
	}
	if got.Metadata.GeneratedBy != "llm" {
		t.Fatalf("generated_by = %q, want llm", got.Metadata.GeneratedBy)
	}
	if got.Metadata.Method != "stub" || !got.Metadata.Rendered {
		t.Fatalf("render info = %+v, want the stub's", got.Metadata.RenderInfo)
	}
	if stub.resolution != defaultResolution {
		t.Fatalf("resolution = %d, want %d", stub.resolution, defaultResolution)
	}
	if len(got.ModulesIncluded) != 0 {
		t.Fatalf("modules included = %v, want none", got.ModulesIncluded)
	}

	if !strings.Contains(fake.prompt, "Codebase Summary:") ||
		!strings.Contains(fake.prompt, "Total Modules: 4") ||
		!strings.Contains(fake.prompt, "User Request: show me the project architecture") {
		t.Fatalf("prompt missing codebase summary:\n%s", fake.prompt)
	}
	if fake.params.Temperature == nil || *fake.params.Temperature != 0.3 {
		t.Fatalf("temperature = %v, want 0.3", fake.params.Temperature)
	}
	if fake.params.MaxTokens == nil || *fake.params.MaxTokens != 4000 {
		t.Fatalf("max tokens = %v, want 4000", fake.params.MaxTokens)
	}
}

func TestGenerateArchitecturePrependsHeader(t *testing.T) {
	fake := &fakeLLM{out: "A --> B"}
	g, _ := generatorFor(t, fake)

	got := g.Generate(context.Background(), intent.Intent{}, "project architecture")
	if got.MermaidCode != "graph TD\nA --> B" {
		t.Fatalf("mermaid code = %q, want graph TD prepended", got.MermaidCode)
	}
}

func TestGenerateArchitectureFromIntentHint(t *testing.T) {
	fake := &fakeLLM{out: "graph TD\nX --> Y"}
	g, _ := generatorFor(t, fake)

	got := g.Generate(context.Background(), intent.Intent{DiagramType: TypeArchitecture}, "draw it for me")
	if got.DiagramType != TypeArchitecture {
		t.Fatalf("diagram type = %q, want architecture from the intent hint", got.DiagramType)
	}
}

func TestGenerateArchitectureWithoutLLM(t *testing.T) {
	g, stub := generatorFor(t, nil)

	got := g.Generate(context.Background(), intent.Intent{}, "show me the project architecture")
	if got.DiagramType != TypeDependency {
		t.Fatalf("diagram type = %q, want dependency fallback", got.DiagramType)
	}
	if len(got.ModulesIncluded) != 4 {
		t.Fatalf("modules included = %v, want the whole graph", got.ModulesIncluded)
	}
	if stub.calls != 1 {
		t.Fatalf("renderer calls = %d, want 1", stub.calls)
	}
}

func TestGenerateArchitectureLLMError(t *testing.T) {
	fake := &fakeLLM{err: errors.New("model offline")}
	g, _ := generatorFor(t, fake)

	got := g.Generate(context.Background(), intent.Intent{}, "show me the project architecture")
	if got.DiagramType != TypeDependency {
		t.Fatalf("diagram type = %q, want dependency fallback", got.DiagramType)
	}
	if fake.calls != 1 {
		t.Fatalf("llm calls = %d, want 1", fake.calls)
	}
}

func TestGenerateFocused(t *testing.T) {
	g, stub := generatorFor(t, nil)

	got := g.Generate(context.Background(), intent.Intent{}, "diagram for login.service.ts")
	if got.DiagramType != TypeFocused {
		t.Fatalf("diagram type = %q, want %q", got.DiagramType, TypeFocused)
	}
	if !got.Metadata.IsFocused || got.Metadata.Direction != "both" {
		t.Fatalf("metadata = %+v, want focused both ways", got.Metadata)
	}
	if !slices.Equal(got.Metadata.TargetModules, []string{"mod:src/auth/login.service.ts"}) {
		t.Fatalf("target modules = %v", got.Metadata.TargetModules)
	}
	if !slices.Equal(got.Metadata.TargetModulePaths, []string{"src/auth/login.service.ts"}) {
		t.Fatalf("target paths = %v", got.Metadata.TargetModulePaths)
	}

	// Targets first, then direct neighbors, then the depth-2 expansion.
	want := []string{
		"mod:src/auth/login.service.ts",
		"mod:src/app/app.component.ts",
		"mod:src/core/http.client.ts",
		"mod:src/main.ts",
	}
	if !slices.Equal(got.ModulesIncluded, want) {
		t.Fatalf("modules included = %v, want %v", got.ModulesIncluded, want)
	}

	code := got.MermaidCode
	for _, part := range []string{
		"subgraph Services",
		"subgraph Components",
		"subgraph Others",
		"class M0 targetModule",
		"class M1 serviceModule",
		`M2 -->|"Calls"| M0`,
		`M0 -->|"Imports"| M1`,
		`subgraph Legend["Legend"]`,
	} {
		if !strings.Contains(code, part) {
			t.Fatalf("mermaid code missing %q:\n%s", part, code)
		}
	}
	if got.Content != "rendered:"+code {
		t.Fatalf("content = %q, want rendered mermaid", got.Content)
	}
	if stub.resolution != defaultResolution {
		t.Fatalf("resolution = %d, want %d", stub.resolution, defaultResolution)
	}
}

func TestGenerateFocusedDirectionIncoming(t *testing.T) {
	g, _ := generatorFor(t, nil)

	got := g.Generate(context.Background(), intent.Intent{}, "what files depend on login.service.ts depth 1")
	if got.DiagramType != TypeFocused {
		t.Fatalf("diagram type = %q, want %q", got.DiagramType, TypeFocused)
	}
	if got.Metadata.Direction != "incoming" {
		t.Fatalf("direction = %q, want incoming", got.Metadata.Direction)
	}
	if got.Metadata.Depth != 1 {
		t.Fatalf("depth = %d, want 1", got.Metadata.Depth)
	}

	want := []string{"mod:src/auth/login.service.ts", "mod:src/app/app.component.ts"}
	if !slices.Equal(got.ModulesIncluded, want) {
		t.Fatalf("modules included = %v, want only the target and its caller", got.ModulesIncluded)
	}
	if got.Metadata.EdgeCount != 1 {
		t.Fatalf("edge count = %d, want 1", got.Metadata.EdgeCount)
	}
	if !strings.Contains(got.MermaidCode, `note1["Incoming dependencies (callers)"]`) {
		t.Fatalf("mermaid code missing direction note:\n%s", got.MermaidCode)
	}
	if !strings.Contains(got.MermaidCode, `M1 -->|"Calls"| M0`) {
		t.Fatalf("mermaid code missing caller edge:\n%s", got.MermaidCode)
	}
}

func TestGenerateDependencyDefault(t *testing.T) {
	g, _ := generatorFor(t, nil)

	got := g.Generate(context.Background(), intent.Intent{}, "show dependencies diagram")
	if got.DiagramType != TypeDependency {
		t.Fatalf("diagram type = %q, want %q", got.DiagramType, TypeDependency)
	}
	if got.Format != FormatMermaid {
		t.Fatalf("format = %q, want mermaid", got.Format)
	}

	want := []string{
		"mod:src/main.ts",
		"mod:src/app/app.component.ts",
		"mod:src/auth/login.service.ts",
		"mod:src/core/http.client.ts",
	}
	if !slices.Equal(got.ModulesIncluded, want) {
		t.Fatalf("modules included = %v, want the whole graph in order", got.ModulesIncluded)
	}
	if got.Metadata.EdgeCount != 3 || got.Metadata.ModuleCount != 4 {
		t.Fatalf("metadata = %+v, want 3 edges over 4 modules", got.Metadata)
	}
	if got.Metadata.Depth != defaultDepth {
		t.Fatalf("depth = %d, want default %d", got.Metadata.Depth, defaultDepth)
	}
	if !strings.Contains(got.MermaidCode, "M0 --> M1") {
		t.Fatalf("mermaid code missing plain edges:\n%s", got.MermaidCode)
	}
}

func TestGenerateDotFormat(t *testing.T) {
	g, stub := generatorFor(t, nil)

	got := g.Generate(context.Background(), intent.Intent{}, "show the dependency graph in dot format")
	if got.Format != FormatDot {
		t.Fatalf("format = %q, want dot", got.Format)
	}
	if !strings.HasPrefix(got.Content, "digraph Dependencies {") {
		t.Fatalf("content is not DOT:\n%s", got.Content)
	}
	if !strings.Contains(got.Content, `"mod_src_main_ts" -> "mod_src_app_app_component_ts";`) {
		t.Fatalf("content missing sanitized edge:\n%s", got.Content)
	}
	if got.MermaidCode != "" {
		t.Fatalf("mermaid code = %q, want empty for dot", got.MermaidCode)
	}
	if stub.calls != 0 {
		t.Fatalf("renderer calls = %d, want 0 for dot", stub.calls)
	}
}

func TestGenerateModuleFromExplicitID(t *testing.T) {
	g, _ := generatorFor(t, nil)

	got := g.Generate(context.Background(), intent.Intent{}, "module mod:lib/billing.rs diagram")
	if got.DiagramType != TypeModule {
		t.Fatalf("diagram type = %q, want %q", got.DiagramType, TypeModule)
	}
	if !slices.Equal(got.ModulesIncluded, []string{"mod:lib/billing.rs"}) {
		t.Fatalf("modules included = %v, want the named ID even when unknown", got.ModulesIncluded)
	}
	if !strings.Contains(got.MermaidCode, `M0["mod:lib/billing.rs"]`) {
		t.Fatalf("mermaid code missing ID fallback label:\n%s", got.MermaidCode)
	}
}

func TestExtractModule(t *testing.T) {
	g, _ := generatorFor(t, nil)
	ctx := context.Background()

	if got := g.extractModule(ctx, "mod:a/b diagram"); got != "mod:a/b" {
		t.Fatalf("explicit ID = %q, want mod:a/b", got)
	}
	if got := g.extractModule(ctx, "look at src/app/app.component.ts"); got != "mod:src/app/app.component.ts" {
		t.Fatalf("path extraction = %q, want the app component", got)
	}
	if got := g.extractModule(ctx, "something entirely unrelated"); got != "" {
		t.Fatalf("extraction = %q, want empty on no match", got)
	}
}

func TestParseDepth(t *testing.T) {
	tests := []struct {
		lower string
		want  int
	}{
		{"diagram depth 3", 3},
		{"diagram level: 4", 4},
		{"diagram", defaultDepth},
		{"depth of things", defaultDepth},
	}
	for _, tt := range tests {
		if got := parseDepth(tt.lower); got != tt.want {
			t.Errorf("parseDepth(%q) = %d, want %d", tt.lower, got, tt.want)
		}
	}
}

func TestParseQuery(t *testing.T) {
	tests := []struct {
		message      string
		direction    string
		filePattern  string
		moduleKinds  []string
		featureNames []string
		searchTerms  []string
	}{
		{
			message:      "what files depend on login.service.ts",
			direction:    "incoming",
			filePattern:  "service.ts",
			moduleKinds:  []string{"service"},
			featureNames: []string{"login"},
			searchTerms:  []string{"service"},
		},
		{
			message:     "what does app.component.ts depend on",
			direction:   "outgoing",
			filePattern: "component.ts",
			moduleKinds: []string{"component"},
			searchTerms: []string{"app", "component"},
		},
		{
			message:      "show me the auth services",
			direction:    "both",
			moduleKinds:  []string{"service"},
			featureNames: []string{"auth"},
			searchTerms:  []string{"services"},
		},
		{
			message:      "payment controller diagram",
			direction:    "both",
			moduleKinds:  []string{"controller"},
			featureNames: []string{"payment"},
		},
	}
	for _, tt := range tests {
		got := parseQuery(tt.message)
		if got.Direction != tt.direction {
			t.Errorf("parseQuery(%q).Direction = %q, want %q", tt.message, got.Direction, tt.direction)
		}
		if got.FilePattern != tt.filePattern {
			t.Errorf("parseQuery(%q).FilePattern = %q, want %q", tt.message, got.FilePattern, tt.filePattern)
		}
		if !slices.Equal(got.ModuleKinds, tt.moduleKinds) {
			t.Errorf("parseQuery(%q).ModuleKinds = %v, want %v", tt.message, got.ModuleKinds, tt.moduleKinds)
		}
		if !slices.Equal(got.FeatureNames, tt.featureNames) {
			t.Errorf("parseQuery(%q).FeatureNames = %v, want %v", tt.message, got.FeatureNames, tt.featureNames)
		}
		if !slices.Equal(got.SearchTerms, tt.searchTerms) {
			t.Errorf("parseQuery(%q).SearchTerms = %v, want %v", tt.message, got.SearchTerms, tt.searchTerms)
		}
	}
}

func TestFindModulesRanksFilenameFirst(t *testing.T) {
	g, _ := generatorFor(t, nil)
	ctx := context.Background()

	got := g.findModules(ctx, parsedQuery{
		FilePattern:  "main.ts",
		FeatureNames: []string{"login"},
		Direction:    "both",
	})
	if len(got) != 2 || got[0].ID != "mod:src/main.ts" || got[1].ID != "mod:src/auth/login.service.ts" {
		t.Fatalf("findModules = %v, want filename hit ranked above feature hit", got)
	}

	// The same module found twice keeps its first confidence.
	got = g.findModules(ctx, parsedQuery{
		FilePattern:  "login.service.ts",
		FeatureNames: []string{"login"},
		Direction:    "both",
	})
	if len(got) != 1 || got[0].ID != "mod:src/auth/login.service.ts" {
		t.Fatalf("findModules = %v, want a single deduplicated hit", got)
	}
}

func TestRenderMermaidStandard(t *testing.T) {
	g := graphData{
		ModuleIDs: []string{"mod:src/a.ts", "mod:src/b.ts"},
		Edges:     []graphEdge{{From: "mod:src/a.ts", To: "mod:src/b.ts", Type: "imports"}},
		Info: map[string]moduleInfo{
			"mod:src/a.ts": {Path: "src/a.ts"},
			"mod:src/b.ts": {Path: "src/b.ts"},
		},
	}

	out := renderMermaid(g)
	if !strings.HasPrefix(out, "graph TD\n") {
		t.Fatalf("missing graph TD header:\n%s", out)
	}
	if !strings.Contains(out, `M0["src/a.ts"]`) || !strings.Contains(out, `M1["src/b.ts"]`) {
		t.Fatalf("missing nodes:\n%s", out)
	}
	if !strings.Contains(out, "  M0 --> M1\n") {
		t.Fatalf("missing plain edge:\n%s", out)
	}
	if strings.Contains(out, "classDef") || strings.Contains(out, "Legend") {
		t.Fatalf("standard diagram should not carry focused styling:\n%s", out)
	}
}

func TestRenderMermaidFocusedUnknownKind(t *testing.T) {
	g := graphData{
		ModuleIDs: []string{"mod:src/s.service.ts", "mod:src/w.widget.ts"},
		Info: map[string]moduleInfo{
			"mod:src/s.service.ts": {Path: "src/s.service.ts", Kinds: []string{"service"}},
			"mod:src/w.widget.ts":  {Path: "src/w.widget.ts", Kinds: []string{"widget"}},
		},
		Targets:   []string{"mod:src/s.service.ts"},
		Direction: "both",
		Focused:   true,
	}

	out := renderMermaid(g)
	if !strings.Contains(out, "subgraph Services") {
		t.Fatalf("missing service subgraph:\n%s", out)
	}
	if strings.Contains(out, "subgraph Widgets") {
		t.Fatalf("unknown kind should not get a subgraph:\n%s", out)
	}
	// Flat node at top-level indent, outside any subgraph.
	if !strings.Contains(out, "\n  M1[\"src/w.widget.ts\"]\n") {
		t.Fatalf("unknown-kind node not rendered flat:\n%s", out)
	}
	if !strings.Contains(out, "class M0 targetModule") || !strings.Contains(out, "class M1 defaultModule") {
		t.Fatalf("missing class assignments:\n%s", out)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		path     string
		fallback string
		want     string
	}{
		{"src/a.ts", "x", "src/a.ts"},
		{"", "mod:fallback", "mod:fallback"},
		{"packages/deeply/nested/feature/component.ts", "", ".../component.ts"},
		{`a"b'c.ts`, "", "a&quot;b&#39;c.ts"},
		{strings.Repeat("a", 35) + ".ts", "", strings.Repeat("a", 30) + "..."},
	}
	for _, tt := range tests {
		if got := displayName(tt.path, tt.fallback); got != tt.want {
			t.Errorf("displayName(%q, %q) = %q, want %q", tt.path, tt.fallback, got, tt.want)
		}
	}
}

func TestRenderTextTree(t *testing.T) {
	g := graphData{
		ModuleIDs: []string{"mod:a", "mod:b", "mod:c"},
		Edges:     []graphEdge{{From: "mod:a", To: "mod:b"}, {From: "mod:b", To: "mod:c"}},
		Info: map[string]moduleInfo{
			"mod:a": {Path: "src/a.ts"},
			"mod:b": {Path: "src/b.ts"},
			"mod:c": {Path: "src/c.ts"},
		},
	}

	want := "Dependency Diagram\n" + strings.Repeat("=", 50) + "\n\n" +
		"└── src/a.ts\n" +
		"    └── src/b.ts\n" +
		"        └── src/c.ts\n" +
		"\n... and 2 more modules\n"
	if got := renderTextTree(g); got != want {
		t.Fatalf("renderTextTree =\n%s\nwant\n%s", got, want)
	}

	if got := renderTextTree(graphData{}); got != "No modules found to diagram." {
		t.Fatalf("empty graph = %q", got)
	}
}

func TestRenderTextTreeCycle(t *testing.T) {
	g := graphData{
		ModuleIDs: []string{"mod:a", "mod:b"},
		Edges:     []graphEdge{{From: "mod:a", To: "mod:b"}, {From: "mod:b", To: "mod:a"}},
		Info: map[string]moduleInfo{
			"mod:a": {Path: "src/a.ts"},
			"mod:b": {Path: "src/b.ts"},
		},
	}

	out := renderTextTree(g)
	if !strings.Contains(out, "├── src/a.ts") {
		t.Fatalf("cyclic graph should fall back to flat roots:\n%s", out)
	}
}

func TestRenderDot(t *testing.T) {
	g := graphData{
		ModuleIDs: []string{"mod:src/a.ts", "mod:src/b.ts"},
		Edges:     []graphEdge{{From: "mod:src/a.ts", To: "mod:src/b.ts", Type: "imports"}},
		Info: map[string]moduleInfo{
			"mod:src/a.ts": {Path: "src/a.ts"},
			"mod:src/b.ts": {Path: "src/b.ts"},
		},
	}

	out := renderDOT(g)
	if !strings.HasPrefix(out, "digraph Dependencies {") {
		t.Fatalf("missing digraph header:\n%s", out)
	}
	if !strings.Contains(out, `"mod_src_a_ts" [label="src/a.ts"];`) {
		t.Fatalf("missing sanitized node:\n%s", out)
	}
	if !strings.Contains(out, `"mod_src_a_ts" -> "mod_src_b_ts";`) {
		t.Fatalf("missing sanitized edge:\n%s", out)
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"```mermaid\ngraph TD\n  A --> B\n```", "graph TD\n  A --> B"},
		{"```\ngraph LR\nA-->B\n```", "graph LR\nA-->B"},
		{"graph TD\nA-->B", "graph TD\nA-->B"},
		{"```mermaid\ngraph TD\nA-->B", "graph TD\nA-->B"},
	}
	for _, tt := range tests {
		if got := stripFences(tt.in); got != tt.want {
			t.Errorf("stripFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
