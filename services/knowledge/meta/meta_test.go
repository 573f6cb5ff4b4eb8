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
	"context"
	"path/filepath"
	"testing"

	"github.com/AleutianAI/atlas/services/knowledge/scan"
)

func TestExtract(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "package.json", ordersPackageJSON)
	source := styleFile(t, dir, "src/main.ts", scan.LangTypeScript, `import { bootstrap } from './app';

bootstrap();
`)

	project := Extract(context.Background(), dir, []scan.File{source})

	if want := filepath.Base(dir); project.ID != want || project.Name != want {
		t.Errorf("ID/Name = %q/%q, want %q", project.ID, project.Name, want)
	}
	if len(project.Languages) != 1 || project.Languages[0] != scan.LangTypeScript {
		t.Errorf("Languages = %v", project.Languages)
	}
	if len(project.Frameworks) != 1 || project.Frameworks[0] != "angular" {
		t.Errorf("Frameworks = %v", project.Frameworks)
	}
	if len(project.BuildTools) != 1 || project.BuildTools[0] != "npm" {
		t.Errorf("BuildTools = %v", project.BuildTools)
	}
	if project.GitSHA != "" {
		t.Errorf("GitSHA = %q, want empty (builder fills it)", project.GitSHA)
	}

	md := project.Metadata
	if md == nil {
		t.Fatal("Metadata = nil")
	}
	if md.PackageManager != "npm" || md.PackageName != "shop" || md.PackageVersion != "1.0.0" {
		t.Errorf("package fields = %q/%q/%q", md.PackageManager, md.PackageName, md.PackageVersion)
	}
	if md.FrameworkVersions["angular"] != "17.2.1" {
		t.Errorf("FrameworkVersions = %v", md.FrameworkVersions)
	}
	if md.TypeScriptVersion != "5.3.2" {
		t.Errorf("TypeScriptVersion = %q", md.TypeScriptVersion)
	}
	if md.NodeVersion != ">=18" {
		t.Errorf("NodeVersion = %q", md.NodeVersion)
	}
	if md.Configurations != nil {
		t.Errorf("Configurations = %+v, want nil without config files", md.Configurations)
	}
	if md.CodeStyle == nil {
		t.Error("CodeStyle = nil, want sampled style")
	}
}

func TestExtract_GoProject(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "go.mod", `module example.com/shop

go 1.22

require github.com/gin-gonic/gin v1.9.1
`)

	project := Extract(context.Background(), dir, nil)

	if len(project.BuildTools) != 1 || project.BuildTools[0] != "go" {
		t.Errorf("BuildTools = %v", project.BuildTools)
	}
	md := project.Metadata
	if md.GoModule != "example.com/shop" {
		t.Errorf("GoModule = %q", md.GoModule)
	}
	if md.GoVersion != "1.22" {
		t.Errorf("GoVersion = %q", md.GoVersion)
	}
	if md.FrameworkVersions["gin"] != "1.9.1" {
		t.Errorf("FrameworkVersions = %v", md.FrameworkVersions)
	}
}

func TestDetectBuildTools(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "package.json", "{}")
	writeProjectFile(t, dir, "yarn.lock", "")
	writeProjectFile(t, dir, "pom.xml", "<project/>")
	writeProjectFile(t, dir, "Makefile", "all:\n")
	writeProjectFile(t, dir, "go.mod", "module x\n")

	got := DetectBuildTools(dir)
	want := []string{"npm", "yarn", "maven", "make", "go"}
	if len(got) != len(want) {
		t.Fatalf("DetectBuildTools = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tools[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDetectBuildTools_None(t *testing.T) {
	if got := DetectBuildTools(t.TempDir()); got != nil {
		t.Errorf("DetectBuildTools = %v, want nil", got)
	}
}

func TestCounter(t *testing.T) {
	c := newCounter()
	if !c.empty() || c.best() != "" {
		t.Error("fresh counter should be empty with no best")
	}

	c.add("a")
	c.add("b")
	c.add("b")
	c.inc("c", 2)

	if c.best() != "b" {
		t.Errorf("best = %q, want b (first seen among count 2)", c.best())
	}

	top := c.top(2)
	if len(top) != 2 {
		t.Fatalf("top = %v", top)
	}
	if top[0].Pattern != "b" || top[0].Frequency != 2 {
		t.Errorf("top[0] = %v", top[0])
	}
	if top[1].Pattern != "c" || top[1].Frequency != 2 {
		t.Errorf("top[1] = %v", top[1])
	}
}

func TestFindFirstBySuffix_SkipsVendoredDirs(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "node_modules/dep/Dep.csproj", "<Project/>")
	writeProjectFile(t, dir, "services/Api.csproj", "<Project/>")

	got := findFirstBySuffix(dir, ".csproj")
	if filepath.Base(got) != "Api.csproj" {
		t.Errorf("findFirstBySuffix = %q, want services/Api.csproj", got)
	}
}
