// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package knowledge

import "testing"

func TestModuleID(t *testing.T) {
	tests := []struct {
		name    string
		relPath string
		want    string
	}{
		{"simple file", "app.py", "mod:app.py"},
		{"nested path", "src/services/user.service.ts", "mod:src/services/user.service.ts"},
		{"backslashes normalized", `src\app\main.ts`, "mod:src/app/main.ts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ModuleID(tt.relPath); got != tt.want {
				t.Errorf("ModuleID(%q) = %q, want %q", tt.relPath, got, tt.want)
			}
		})
	}
}

func TestSymbolID(t *testing.T) {
	tests := []struct {
		name     string
		moduleID string
		symbol   string
		want     string
	}{
		{"function", "mod:app.py", "create_app", "sym:mod:app.py:create_app"},
		{"method", "mod:src/user.ts", "UserService.create", "sym:mod:src/user.ts:UserService.create"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SymbolID(tt.moduleID, tt.symbol); got != tt.want {
				t.Errorf("SymbolID(%q, %q) = %q, want %q", tt.moduleID, tt.symbol, got, tt.want)
			}
		})
	}
}

func TestFeatureID(t *testing.T) {
	if got := FeatureID("src/auth"); got != "feat:src/auth" {
		t.Errorf("FeatureID = %q, want feat:src/auth", got)
	}
	if got := FeatureID(`src\auth`); got != "feat:src/auth" {
		t.Errorf("FeatureID with backslashes = %q, want feat:src/auth", got)
	}
}

func TestEndpointID(t *testing.T) {
	got := EndpointID("mod:routes.py", "GET", "/users")
	want := "ep:mod:routes.py:GET:/users"
	if got != want {
		t.Errorf("EndpointID = %q, want %q", got, want)
	}

	// No method: omit the segment entirely.
	got = EndpointID("mod:routes.py", "", "/users")
	want = "ep:mod:routes.py:/users"
	if got != want {
		t.Errorf("EndpointID without method = %q, want %q", got, want)
	}
}

func TestIDPredicates(t *testing.T) {
	tests := []struct {
		id       string
		module   bool
		symbol   bool
		feature  bool
		endpoint bool
	}{
		{"mod:app.py", true, false, false, false},
		{"sym:mod:app.py:main", false, true, false, false},
		{"feat:src/auth", false, false, true, false},
		{"ep:mod:routes.py:GET:/users", false, false, false, true},
		{"garbage", false, false, false, false},
		{"", false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := IsModuleID(tt.id); got != tt.module {
				t.Errorf("IsModuleID(%q) = %v, want %v", tt.id, got, tt.module)
			}
			if got := IsSymbolID(tt.id); got != tt.symbol {
				t.Errorf("IsSymbolID(%q) = %v, want %v", tt.id, got, tt.symbol)
			}
			if got := IsFeatureID(tt.id); got != tt.feature {
				t.Errorf("IsFeatureID(%q) = %v, want %v", tt.id, got, tt.feature)
			}
			if got := IsEndpointID(tt.id); got != tt.endpoint {
				t.Errorf("IsEndpointID(%q) = %v, want %v", tt.id, got, tt.endpoint)
			}
		})
	}
}

func TestModulePath(t *testing.T) {
	if got := ModulePath("mod:src/app.ts"); got != "src/app.ts" {
		t.Errorf("ModulePath = %q, want src/app.ts", got)
	}
	if got := ModulePath("sym:mod:src/app.ts:main"); got != "" {
		t.Errorf("ModulePath on symbol ID = %q, want empty", got)
	}
}

func TestSymbolName(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"sym:mod:app.py:create_app", "create_app"},
		{"sym:mod:src/user.ts:UserService.create", "UserService.create"},
		{"sym:mod:app.py:", ""},
		{"mod:app.py", ""},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := SymbolName(tt.id); got != tt.want {
				t.Errorf("SymbolName(%q) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestModuleIDFromRef(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"module passes through", "mod:src/app.ts", "mod:src/app.ts"},
		{"symbol yields embedded module", "sym:mod:src/app.ts:AppComponent", "mod:src/app.ts"},
		{"method symbol", "sym:mod:src/user.ts:UserService.create", "mod:src/user.ts"},
		{"feature is not resolvable", "feat:src/auth", ""},
		{"malformed symbol", "sym:nonsense", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ModuleIDFromRef(tt.ref); got != tt.want {
				t.Errorf("ModuleIDFromRef(%q) = %q, want %q", tt.ref, got, tt.want)
			}
		})
	}
}

// Round trip: every symbol ID built from a module ID must resolve
// back to that module.
func TestModuleIDFromRef_RoundTrip(t *testing.T) {
	paths := []string{"app.py", "src/a/b/c.ts", "deep/dir/file.with.dots.js"}
	names := []string{"main", "Class.method", "snake_case_fn"}

	for _, p := range paths {
		mid := ModuleID(p)
		for _, n := range names {
			sid := SymbolID(mid, n)
			if got := ModuleIDFromRef(sid); got != mid {
				t.Errorf("round trip failed: %q -> %q, want %q", sid, got, mid)
			}
		}
	}
}
