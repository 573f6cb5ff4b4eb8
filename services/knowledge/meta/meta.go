// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package meta extracts project-level metadata for the knowledge graph:
// languages, frameworks, build tools, manifest versions, configuration
// file subsets, sampled code style, and aggregated UI conventions.
//
// Everything here is best-effort. A missing or unparseable manifest
// never fails extraction; the corresponding fields stay empty and the
// builder carries on.
package meta

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/atlas/services/knowledge"
	"github.com/AleutianAI/atlas/services/knowledge/scan"
)

// Extract builds the Project document for a repository.
//
// Description:
//
//	Detects languages (from the scanned file set), frameworks, and
//	build tools, then harvests versions and configuration subsets from
//	the manifest files present at the repository root. Code style is
//	sampled from up to 20 source files.
//
// Inputs:
//
//	ctx - Context for cancellation (style sampling reads files)
//	root - Repository root path
//	files - Scanned source files (see scan.Scan)
//
// Outputs:
//
//	knowledge.Project - Project document; GitSHA is left empty for the
//	builder to fill alongside the graph-level field.
func Extract(ctx context.Context, root string, files []scan.File) knowledge.Project {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}
	name := filepath.Base(absRoot)

	frameworks := DetectProjectFrameworks(root)
	md := &knowledge.ProjectMetadata{}

	if pkg := readPackageJSON(root); pkg != nil {
		md.PackageManager = "npm"
		md.PackageName = pkg.Name
		md.PackageVersion = pkg.Version
		md.FrameworkVersions = frameworkVersions(root, pkg, frameworks)
		md.TypeScriptVersion = typescriptVersion(pkg)
		md.BuildToolVersions = buildToolVersions(pkg)
	}
	md.NodeVersion = nodeVersion(root)
	md.PythonVersion = pythonVersion(root)
	applyGoModule(root, md)

	cfg := &knowledge.Configurations{
		Angular:        parseAngularJSON(root),
		TypeScript:     parseTSConfig(root),
		PythonPackages: parseRequirements(root),
		Maven:          parsePomXML(root),
	}
	if m := cfg.Maven; m != nil {
		md.JavaVersion = m.JavaVersion
		md.MavenGroupID = m.GroupID
		md.MavenArtifactID = m.ArtifactID
	}
	if cfg.Angular != nil || cfg.TypeScript != nil || len(cfg.PythonPackages) > 0 || cfg.Maven != nil {
		md.Configurations = cfg
	}
	md.DotnetAssemblyName = dotnetAssemblyName(root)
	md.CodeStyle = SampleCodeStyle(ctx, files)

	return knowledge.Project{
		ID:         name,
		Name:       name,
		RootPath:   absRoot,
		Languages:  scan.Languages(files),
		Frameworks: frameworks,
		BuildTools: DetectBuildTools(root),
		Metadata:   md,
	}
}

// DetectBuildTools detects build tools from well-known files at the
// repository root (csproj anywhere in the tree).
func DetectBuildTools(root string) []string {
	var tools []string

	if fileExists(root, "package.json") {
		tools = append(tools, "npm")
		if fileExists(root, "yarn.lock") {
			tools = append(tools, "yarn")
		}
		if fileExists(root, "pnpm-lock.yaml") {
			tools = append(tools, "pnpm")
		}
	}
	if fileExists(root, "pom.xml") {
		tools = append(tools, "maven")
	}
	if fileExists(root, "build.gradle") || fileExists(root, "build.gradle.kts") {
		tools = append(tools, "gradle")
	}
	if findFirstBySuffix(root, ".csproj") != "" {
		tools = append(tools, "dotnet")
	}
	if fileExists(root, "CMakeLists.txt") {
		tools = append(tools, "cmake")
	}
	if fileExists(root, "Makefile") {
		tools = append(tools, "make")
	}
	if fileExists(root, "go.mod") {
		tools = append(tools, "go")
	}

	return tools
}

// ===== Filesystem helpers =====

func fileExists(root string, name string) bool {
	info, err := os.Stat(filepath.Join(root, name))
	return err == nil && !info.IsDir()
}

func readFile(root string, name string) ([]byte, bool) {
	data, err := os.ReadFile(filepath.Join(root, name))
	if err != nil {
		return nil, false
	}
	return data, true
}

// metaSkipDirs prunes the tree walk used for needle files (csproj).
var metaSkipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"dist":         true,
	"build":        true,
	"venv":         true,
	"__pycache__":  true,
	"bin":          true,
	"obj":          true,
}

// findFirstBySuffix returns the first file under root whose lowercased
// name ends with suffix, or "".
func findFirstBySuffix(root, suffix string) string {
	var found string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && metaSkipDirs[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(strings.ToLower(d.Name()), suffix) {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	return found
}

// ===== Majority counter =====

// counter tallies string keys and answers majority and top-N queries.
// Ties go to the key seen first, so results are deterministic for a
// fixed input order.
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(key string) { c.inc(key, 1) }

func (c *counter) inc(key string, n int) {
	if c.counts[key] == 0 {
		c.order = append(c.order, key)
	}
	c.counts[key] += n
}

func (c *counter) empty() bool { return len(c.order) == 0 }

// best returns the most frequent key, or "" when nothing was counted.
func (c *counter) best() string {
	if len(c.order) == 0 {
		return ""
	}
	best := c.order[0]
	for _, k := range c.order[1:] {
		if c.counts[k] > c.counts[best] {
			best = k
		}
	}
	return best
}

// top returns up to n keys ordered by descending count, first-seen
// breaking ties.
func (c *counter) top(n int) []knowledge.PatternFrequency {
	keys := make([]string, len(c.order))
	copy(keys, c.order)
	// Insertion sort keeps the first-seen order stable within equal
	// counts; the key sets here are small.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && c.counts[keys[j]] > c.counts[keys[j-1]]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	if len(keys) > n {
		keys = keys[:n]
	}
	out := make([]knowledge.PatternFrequency, len(keys))
	for i, k := range keys {
		out[i] = knowledge.PatternFrequency{Pattern: k, Frequency: c.counts[k]}
	}
	return out
}
