// Copyright (C) 2025 Aleutian AI
//
// This program is licensed under the GNU Affero General Public License v3.
// See the LICENSE.txt file for details.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package relate

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/AleutianAI/atlas/services/knowledge"
	"github.com/AleutianAI/atlas/services/knowledge/ast"
)

// mkSource builds a Source for a module at relPath with the given
// definitions.
func mkSource(relPath string, defs *ast.Definitions) Source {
	return Source{
		Module: &knowledge.Module{
			ID:   knowledge.ModuleID(relPath),
			Path: relPath,
		},
		Definitions: defs,
	}
}

// writeFile creates a file (and parent dirs) under root.
func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func findEdge(edges []knowledge.Edge, from, to string, typ knowledge.EdgeType) *knowledge.Edge {
	for i := range edges {
		e := &edges[i]
		if e.From == from && e.To == to && e.Type == typ {
			return e
		}
	}
	return nil
}

func TestExtract_ImportEdges(t *testing.T) {
	sources := []Source{
		mkSource("app/main.py", &ast.Definitions{
			Imports: []string{
				"from app.helpers import run", // resolves
				"import os",                   // stdlib, unresolvable
				"from app.main import thing",  // self, dropped
			},
		}),
		mkSource("app/helpers.py", &ast.Definitions{}),
	}

	edges, _ := Extract(t.TempDir(), sources, nil, nil)

	want := []knowledge.Edge{{
		From:   "mod:app/main.py",
		To:     "mod:app/helpers.py",
		Type:   knowledge.EdgeImports,
		Weight: 1,
	}}
	if !reflect.DeepEqual(edges, want) {
		t.Errorf("Extract() edges = %v, want %v", edges, want)
	}
}

func TestExtract_RelativePythonImport(t *testing.T) {
	sources := []Source{
		mkSource("pkg/sub/worker.py", &ast.Definitions{
			Imports: []string{"from ..shared import util"},
		}),
		mkSource("pkg/shared.py", &ast.Definitions{}),
	}

	edges, _ := Extract(t.TempDir(), sources, nil, nil)
	if findEdge(edges, "mod:pkg/sub/worker.py", "mod:pkg/shared.py", knowledge.EdgeImports) == nil {
		t.Errorf("relative import not resolved; edges = %v", edges)
	}
}

func TestExtract_ScriptImportEdges(t *testing.T) {
	sources := []Source{
		mkSource("src/app/app.component.ts", &ast.Definitions{
			Imports: []string{
				`import { UserService } from './user.service'`,
				`import { Component } from '@angular/core'`, // package, unresolvable
			},
		}),
		mkSource("src/app/user.service.ts", &ast.Definitions{}),
	}

	edges, _ := Extract(t.TempDir(), sources, nil, nil)
	if findEdge(edges, "mod:src/app/app.component.ts", "mod:src/app/user.service.ts", knowledge.EdgeImports) == nil {
		t.Errorf("relative script import not resolved; edges = %v", edges)
	}
	if len(edges) != 1 {
		t.Errorf("package import leaked an edge: %v", edges)
	}
}

func TestExtract_CallEdges(t *testing.T) {
	caller := "mod:svc/caller.py"
	callee := "mod:svc/callee.py"
	symbols := []knowledge.Symbol{
		{ID: knowledge.SymbolID(callee, "run_job"), ModuleID: callee, Name: "run_job"},
		{ID: knowledge.SymbolID(caller, "local"), ModuleID: caller, Name: "local"},
		// "setup" is ambiguous across two modules.
		{ID: knowledge.SymbolID(callee, "setup"), ModuleID: callee, Name: "setup"},
		{ID: knowledge.SymbolID(caller, "setup"), ModuleID: caller, Name: "setup"},
	}
	sources := []Source{
		mkSource("svc/caller.py", &ast.Definitions{
			Calls: []ast.Call{
				{Function: "run_job"},
				{Function: "run_job"},        // repeat accumulates weight
				{Function: "jobs.run_job"},   // dotted fallback, same target
				{Function: "local"},          // same-module, dropped
				{Function: "setup"},          // ambiguous, dropped
				{Function: "missing_target"}, // unknown, dropped
			},
		}),
		mkSource("svc/callee.py", &ast.Definitions{}),
	}

	edges, _ := Extract(t.TempDir(), sources, symbols, nil)

	e := findEdge(edges, caller, knowledge.SymbolID(callee, "run_job"), knowledge.EdgeCalls)
	if e == nil {
		t.Fatalf("calls edge missing; edges = %v", edges)
	}
	if e.Weight != 3 {
		t.Errorf("calls weight = %v, want 3", e.Weight)
	}
	if len(edges) != 1 {
		t.Errorf("unexpected extra edges: %v", edges)
	}
}

func TestExtract_HeritageEdges(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "models/base.py", "class Base:\n    pass\n")
	writeFile(t, root, "models/user.py", "class User(Base):\n    pass\n")

	base := "mod:models/base.py"
	user := "mod:models/user.py"
	symbols := []knowledge.Symbol{
		{ID: knowledge.SymbolID(base, "Base"), ModuleID: base, Name: "Base", Kind: knowledge.SymbolClass},
		{ID: knowledge.SymbolID(user, "User"), ModuleID: user, Name: "User", Kind: knowledge.SymbolClass},
	}
	sources := []Source{
		mkSource("models/base.py", &ast.Definitions{Classes: []ast.Class{{Name: "Base"}}}),
		mkSource("models/user.py", &ast.Definitions{Classes: []ast.Class{{Name: "User"}}}),
	}

	edges, _ := Extract(root, sources, symbols, nil)
	if findEdge(edges, knowledge.SymbolID(user, "User"), knowledge.SymbolID(base, "Base"), knowledge.EdgeExtends) == nil {
		t.Errorf("extends edge missing; edges = %v", edges)
	}
}

func TestExtract_ImplementsEdges(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/auth/guard.ts",
		"export class AuthGuard implements CanActivate {\n}\n")
	writeFile(t, root, "src/auth/types.ts",
		"export interface CanActivate {\n  canActivate(): boolean\n}\n")

	guard := "mod:src/auth/guard.ts"
	types := "mod:src/auth/types.ts"
	symbols := []knowledge.Symbol{
		{ID: knowledge.SymbolID(guard, "AuthGuard"), ModuleID: guard, Name: "AuthGuard", Kind: knowledge.SymbolClass},
		{ID: knowledge.SymbolID(types, "CanActivate"), ModuleID: types, Name: "CanActivate", Kind: knowledge.SymbolInterface},
	}
	sources := []Source{
		mkSource("src/auth/guard.ts", &ast.Definitions{Classes: []ast.Class{{Name: "AuthGuard"}}}),
		mkSource("src/auth/types.ts", &ast.Definitions{Interfaces: []ast.Interface{{Name: "CanActivate"}}}),
	}

	edges, _ := Extract(root, sources, symbols, nil)
	if findEdge(edges, knowledge.SymbolID(guard, "AuthGuard"), knowledge.SymbolID(types, "CanActivate"), knowledge.EdgeImplements) == nil {
		t.Errorf("implements edge missing; edges = %v", edges)
	}
}

func TestExtract_EndpointHandlerEdges(t *testing.T) {
	mod := "mod:api/users.controller.ts"
	symbols := []knowledge.Symbol{
		{ID: knowledge.SymbolID(mod, "UsersController.findAll"), ModuleID: mod, Name: "UsersController.findAll", Kind: knowledge.SymbolMethod},
	}
	endpoints := []knowledge.Endpoint{
		{
			ID:              "ep:GET:/users",
			Method:          "GET",
			Path:            "/users",
			Handler:         "findAll",
			HandlerModuleID: mod,
		},
		{
			ID:              "ep:GET:/orphan",
			Method:          "GET",
			Path:            "/orphan",
			Handler:         "missing",
			HandlerModuleID: mod,
		},
	}

	edges, _ := Extract(t.TempDir(), nil, symbols, endpoints)

	want := []knowledge.Edge{{
		From:   "ep:GET:/users",
		To:     knowledge.SymbolID(mod, "UsersController.findAll"),
		Type:   knowledge.EdgeHandles,
		Weight: 1,
	}}
	if !reflect.DeepEqual(edges, want) {
		t.Errorf("Extract() edges = %v, want %v", edges, want)
	}
}

func TestExtract_FanStats(t *testing.T) {
	a, b, c := "mod:a.py", "mod:b.py", "mod:c.py"
	symbols := []knowledge.Symbol{
		{ID: knowledge.SymbolID(c, "shared"), ModuleID: c, Name: "shared"},
	}
	sources := []Source{
		mkSource("a.py", &ast.Definitions{
			Imports: []string{"import b"},
			Calls:   []ast.Call{{Function: "shared"}},
		}),
		mkSource("b.py", &ast.Definitions{
			Calls: []ast.Call{{Function: "shared"}},
		}),
		mkSource("c.py", &ast.Definitions{}),
	}

	_, fan := Extract(t.TempDir(), sources, symbols, nil)

	tests := []struct {
		id     string
		fanIn  int
		fanOut int
	}{
		{a, 0, 2}, // imports b, calls into c
		{b, 1, 1}, // imported by a, calls into c
		{c, 2, 0}, // called from a and b
	}
	for _, tt := range tests {
		got := fan[tt.id]
		if got.FanIn != tt.fanIn || got.FanOut != tt.fanOut {
			t.Errorf("fan[%s] = {in:%d out:%d}, want {in:%d out:%d}",
				tt.id, got.FanIn, got.FanOut, tt.fanIn, tt.fanOut)
		}
	}
}

func TestEdgeSet_Dedupe(t *testing.T) {
	set := newEdgeSet()
	set.add("mod:a.py", "mod:b.py", knowledge.EdgeImports)
	set.add("mod:a.py", "mod:b.py", knowledge.EdgeImports)
	set.add("mod:a.py", "sym:mod:b.py:f", knowledge.EdgeCalls)
	set.add("mod:a.py", "sym:mod:b.py:f", knowledge.EdgeCalls)

	if len(set.edges) != 2 {
		t.Fatalf("edges = %v, want 2 entries", set.edges)
	}
	if set.edges[0].Weight != 1 {
		t.Errorf("imports weight = %v, want 1 (no accumulation)", set.edges[0].Weight)
	}
	if set.edges[1].Weight != 2 {
		t.Errorf("calls weight = %v, want 2", set.edges[1].Weight)
	}
}

func TestPythonCandidates(t *testing.T) {
	tests := []struct {
		name string
		dir  string
		spec string
		want []string
	}{
		{
			name: "absolute",
			dir:  "app",
			spec: "app.helpers",
			want: []string{"app/helpers.py", "app/helpers/__init__.py", "src/app/helpers.py", "src/app/helpers/__init__.py"},
		},
		{
			name: "relative sibling",
			dir:  "pkg/sub",
			spec: ".util",
			want: []string{"pkg/sub/util.py", "pkg/sub/util/__init__.py"},
		},
		{
			name: "relative parent",
			dir:  "pkg/sub",
			spec: "..shared",
			want: []string{"pkg/sub/../shared.py", "pkg/sub/../shared/__init__.py"},
		},
		{
			name: "bare package",
			dir:  "pkg",
			spec: ".",
			want: []string{"pkg/__init__.py"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pythonCandidates(tt.dir, tt.spec)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("pythonCandidates(%q, %q) = %v, want %v", tt.dir, tt.spec, got, tt.want)
			}
		})
	}
}

func TestScriptCandidates_RelativeOrder(t *testing.T) {
	got := scriptCandidates("src/app", "./user.service")
	if got[0] != "src/app/user.service" || got[1] != "src/app/user.service.ts" {
		t.Errorf("scriptCandidates order = %v", got[:2])
	}
	last := got[len(got)-1]
	if last != "src/app/user.service/index.jsx" {
		t.Errorf("last candidate = %q, want index.jsx form", last)
	}
}

func TestParseHeritage_CSharp(t *testing.T) {
	content := "public class OrderService : ServiceBase, IOrderService, IDisposable\n{\n}\n"
	clauses := parseHeritage("csharp", content)

	var extends, implements []string
	for _, c := range clauses {
		switch c.typ {
		case knowledge.EdgeExtends:
			extends = append(extends, c.parent)
		case knowledge.EdgeImplements:
			implements = append(implements, c.parent)
		}
	}
	if !reflect.DeepEqual(extends, []string{"ServiceBase"}) {
		t.Errorf("extends = %v, want [ServiceBase]", extends)
	}
	if !reflect.DeepEqual(implements, []string{"IOrderService", "IDisposable"}) {
		t.Errorf("implements = %v, want [IOrderService IDisposable]", implements)
	}
}

func TestParseHeritage_PythonSkipsKeywords(t *testing.T) {
	content := "class Meta(Base, metaclass=ABCMeta):\n    pass\n"
	clauses := parseHeritage("python", content)
	if len(clauses) != 1 || clauses[0].parent != "Base" {
		t.Errorf("clauses = %v, want only Base", clauses)
	}
}

func TestNormalizeParent(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Base", "Base"},
		{"List<string>", "List"},
		{"nest.common.Guard", "Guard"},
		{" Spaced ", "Spaced"},
	}
	for _, tt := range tests {
		if got := normalizeParent(tt.in); got != tt.want {
			t.Errorf("normalizeParent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
