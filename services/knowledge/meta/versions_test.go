// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package meta

import (
	"testing"
)

const ordersPackageJSON = `{
  "name": "shop",
  "version": "1.0.0",
  "dependencies": {"@angular/core": "^17.2.1", "typescript": "~5.3.2"},
  "devDependencies": {"@angular/cli": "^17.2.0", "webpack": "^5.90.1"},
  "engines": {"node": ">=18"}
}`

func TestCleanVersion(t *testing.T) {
	tests := []struct{ spec, want string }{
		{"^17.2.1", "17.2.1"},
		{"~5.3.2", "5.3.2"},
		{"1.0.0-beta1", "1.0.0-beta1"},
		{"v1.9.1", "1.9.1"},
		{"latest", "latest"},
	}
	for _, tt := range tests {
		if got := cleanVersion(tt.spec); got != tt.want {
			t.Errorf("cleanVersion(%q) = %q, want %q", tt.spec, got, tt.want)
		}
	}
}

func TestFrameworkVersions_LockFileWins(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "package.json", ordersPackageJSON)
	writeProjectFile(t, dir, "package-lock.json", `{
  "packages": {
    "": {"version": "1.0.0"},
    "node_modules/@angular/core": {"version": "17.2.3"}
  }
}`)

	pkg := readPackageJSON(dir)
	if pkg == nil {
		t.Fatal("readPackageJSON() = nil")
	}
	versions := frameworkVersions(dir, pkg, []string{"angular"})
	if versions["angular"] != "17.2.3" {
		t.Errorf("angular version = %q, want exact 17.2.3 from lock", versions["angular"])
	}
}

func TestFrameworkVersions_SpecFallback(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "package.json", ordersPackageJSON)

	pkg := readPackageJSON(dir)
	versions := frameworkVersions(dir, pkg, []string{"angular"})
	if versions["angular"] != "17.2.1" {
		t.Errorf("angular version = %q, want 17.2.1 cleaned from spec", versions["angular"])
	}
}

func TestReadLockVersions_V6Fallback(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "package-lock.json", `{
  "dependencies": {"react": {"version": "18.2.0"}}
}`)

	versions := readLockVersions(dir)
	if versions["react"] != "18.2.0" {
		t.Errorf("react = %q, want 18.2.0", versions["react"])
	}
}

func TestLockPackageName(t *testing.T) {
	tests := []struct{ path, want string }{
		{"node_modules/react", "react"},
		{"node_modules/@angular/core", "@angular/core"},
		{"node_modules/a/node_modules/b", "a"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := lockPackageName(tt.path); got != tt.want {
			t.Errorf("lockPackageName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestBuildToolVersions(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "package.json", ordersPackageJSON)

	pkg := readPackageJSON(dir)
	versions := buildToolVersions(pkg)
	if versions["angularCli"] != "17.2.0" {
		t.Errorf("angularCli = %q, want 17.2.0", versions["angularCli"])
	}
	if versions["webpack"] != "5.90.1" {
		t.Errorf("webpack = %q, want 5.90.1", versions["webpack"])
	}
	if v := typescriptVersion(pkg); v != "5.3.2" {
		t.Errorf("typescript = %q, want 5.3.2", v)
	}
}

func TestNodeVersion(t *testing.T) {
	t.Run("nvmrc wins", func(t *testing.T) {
		dir := t.TempDir()
		writeProjectFile(t, dir, ".nvmrc", "20.11.0\n")
		writeProjectFile(t, dir, "package.json", ordersPackageJSON)
		if got := nodeVersion(dir); got != "20.11.0" {
			t.Errorf("nodeVersion = %q, want 20.11.0", got)
		}
	})

	t.Run("engines fallback", func(t *testing.T) {
		dir := t.TempDir()
		writeProjectFile(t, dir, "package.json", ordersPackageJSON)
		if got := nodeVersion(dir); got != ">=18" {
			t.Errorf("nodeVersion = %q, want >=18", got)
		}
	})
}

func TestPythonVersion(t *testing.T) {
	t.Run("runtime txt", func(t *testing.T) {
		dir := t.TempDir()
		writeProjectFile(t, dir, "runtime.txt", "python-3.11.4\n")
		if got := pythonVersion(dir); got != "3.11.4" {
			t.Errorf("pythonVersion = %q, want 3.11.4", got)
		}
	})

	t.Run("setup py python_requires", func(t *testing.T) {
		dir := t.TempDir()
		writeProjectFile(t, dir, "setup.py", `setup(name="x", python_requires=">=3.10")`)
		if got := pythonVersion(dir); got != ">=3.10" {
			t.Errorf("pythonVersion = %q, want >=3.10", got)
		}
	})
}

func TestParseRequirements(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "requirements.txt", `# web stack
flask==2.3.0
fastapi[all]>=0.104.1
requests
`)

	packages := parseRequirements(dir)
	want := map[string]string{
		"flask":    "==2.3.0",
		"fastapi":  ">=0.104.1",
		"requests": "",
	}
	if len(packages) != len(want) {
		t.Fatalf("packages = %v, want %v", packages, want)
	}
	for name, spec := range want {
		if packages[name] != spec {
			t.Errorf("packages[%q] = %q, want %q", name, packages[name], spec)
		}
	}
}

func TestParsePomXML(t *testing.T) {
	t.Run("namespaced document", func(t *testing.T) {
		dir := t.TempDir()
		writeProjectFile(t, dir, "pom.xml", `<?xml version="1.0"?>
<project xmlns="http://maven.apache.org/POM/4.0.0">
  <groupId>com.shop</groupId>
  <artifactId>orders</artifactId>
  <version>2.1.0</version>
  <properties>
    <maven.compiler.source>17</maven.compiler.source>
  </properties>
</project>`)

		cfg := parsePomXML(dir)
		if cfg == nil {
			t.Fatal("parsePomXML() = nil")
		}
		if cfg.GroupID != "com.shop" || cfg.ArtifactID != "orders" || cfg.Version != "2.1.0" || cfg.JavaVersion != "17" {
			t.Errorf("cfg = %+v", cfg)
		}
	})

	t.Run("regex fallback on malformed xml", func(t *testing.T) {
		dir := t.TempDir()
		writeProjectFile(t, dir, "pom.xml", `<project><version>3.0.0</version><groupId>g`)

		cfg := parsePomXML(dir)
		if cfg == nil {
			t.Fatal("parsePomXML() = nil")
		}
		if cfg.Version != "3.0.0" {
			t.Errorf("version = %q, want 3.0.0", cfg.Version)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if cfg := parsePomXML(t.TempDir()); cfg != nil {
			t.Errorf("cfg = %+v, want nil", cfg)
		}
	})
}

func TestDotnetAssemblyName(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "Api/Api.csproj", `<Project><PropertyGroup><AssemblyName>Shop.Api</AssemblyName></PropertyGroup></Project>`)

	if got := dotnetAssemblyName(dir); got != "Shop.Api" {
		t.Errorf("dotnetAssemblyName = %q, want Shop.Api", got)
	}
}

func TestParseAngularJSON(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "angular.json", `{
  "defaultProject": "shop",
  "projects": {
    "shop": {"architect": {"build": {}, "serve": {}, "test": {}}},
    "admin": {"architect": {}}
  }
}`)

	cfg := parseAngularJSON(dir)
	if cfg == nil {
		t.Fatal("parseAngularJSON() = nil")
	}
	if cfg.DefaultProject != "shop" {
		t.Errorf("defaultProject = %q", cfg.DefaultProject)
	}
	if len(cfg.Projects) != 2 || cfg.Projects[0] != "admin" || cfg.Projects[1] != "shop" {
		t.Errorf("projects = %v, want sorted [admin shop]", cfg.Projects)
	}
	if len(cfg.ArchitectTargets) != 3 || cfg.ArchitectTargets[0] != "build" {
		t.Errorf("architectTargets = %v, want sorted [build serve test]", cfg.ArchitectTargets)
	}
}

func TestParseTSConfig(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "tsconfig.json", `{
  "compilerOptions": {
    "target": "ES2022",
    "module": "esnext",
    "strict": true,
    "baseUrl": "./",
    "paths": {"@app/*": ["src/app/*"]}
  }
}`)

	cfg := parseTSConfig(dir)
	if cfg == nil {
		t.Fatal("parseTSConfig() = nil")
	}
	if cfg.Target != "ES2022" || cfg.Module != "esnext" || !cfg.Strict || cfg.BaseURL != "./" {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.Paths["@app/*"]) != 1 {
		t.Errorf("paths = %v", cfg.Paths)
	}
}
