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
	"encoding/json"
	"encoding/xml"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/AleutianAI/atlas/services/knowledge"
)

// versionRe extracts a bare semver from a version spec ("^17.2.1" ->
// "17.2.1", prerelease suffixes kept).
var versionRe = regexp.MustCompile(`(\d+\.\d+\.\d+(?:-[a-zA-Z0-9]+)?)`)

// cleanVersion strips range operators from a version spec, returning
// the spec unchanged when no version number is found.
func cleanVersion(spec string) string {
	if m := versionRe.FindStringSubmatch(spec); m != nil {
		return m[1]
	}
	return spec
}

// ===== package.json =====

type packageJSON struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
	Engines         struct {
		Node string `json:"node"`
	} `json:"engines"`
}

// allDependencies merges dependencies and devDependencies, the latter
// winning on conflicts.
func (p *packageJSON) allDependencies() map[string]string {
	deps := make(map[string]string, len(p.Dependencies)+len(p.DevDependencies))
	for name, spec := range p.Dependencies {
		deps[name] = spec
	}
	for name, spec := range p.DevDependencies {
		deps[name] = spec
	}
	return deps
}

func readPackageJSON(root string) *packageJSON {
	data, ok := readFile(root, "package.json")
	if !ok {
		return nil
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil
	}
	return &pkg
}

// frameworkVersions resolves the installed version of each detected
// framework: the package-lock exact version when available, otherwise
// the cleaned package.json spec.
func frameworkVersions(root string, pkg *packageJSON, frameworks []string) map[string]string {
	deps := pkg.allDependencies()
	lock := readLockVersions(root)

	versions := make(map[string]string, len(frameworks))
	for _, framework := range frameworks {
		packageName, ok := frameworkPackages[framework]
		if !ok {
			continue
		}
		spec, ok := deps[packageName]
		if !ok {
			continue
		}
		if exact, ok := lock[packageName]; ok {
			versions[framework] = exact
		} else {
			versions[framework] = cleanVersion(spec)
		}
	}
	if len(versions) == 0 {
		return nil
	}
	return versions
}

// readLockVersions reads exact versions from package-lock.json: the
// npm v7+ "packages" map first, the v6 "dependencies" map as fallback.
func readLockVersions(root string) map[string]string {
	data, ok := readFile(root, "package-lock.json")
	if !ok {
		return nil
	}

	var lock struct {
		Packages map[string]struct {
			Version string `json:"version"`
		} `json:"packages"`
		Dependencies map[string]struct {
			Version string `json:"version"`
		} `json:"dependencies"`
	}
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil
	}

	versions := make(map[string]string, len(lock.Packages))
	for path, entry := range lock.Packages {
		if entry.Version == "" {
			continue
		}
		name := lockPackageName(path)
		if name == "" {
			continue
		}
		versions[name] = entry.Version
	}
	if len(versions) > 0 {
		return versions
	}

	for name, entry := range lock.Dependencies {
		if entry.Version != "" {
			versions[name] = entry.Version
		}
	}
	return versions
}

// lockPackageName derives the package name from a v7 lock path like
// "node_modules/@angular/core" (scoped packages keep two segments).
func lockPackageName(path string) string {
	trimmed := strings.ReplaceAll(path, "node_modules/", "")
	if trimmed == "" {
		return ""
	}
	parts := strings.Split(trimmed, "/")
	if strings.HasPrefix(parts[0], "@") && len(parts) >= 2 {
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}

func typescriptVersion(pkg *packageJSON) string {
	if spec, ok := pkg.allDependencies()["typescript"]; ok {
		return cleanVersion(spec)
	}
	return ""
}

// buildToolPackages maps build tool report keys to npm package names.
var buildToolPackages = map[string]string{
	"angularCli":   "@angular/cli",
	"reactScripts": "react-scripts",
	"vite":         "vite",
	"webpack":      "webpack",
}

func buildToolVersions(pkg *packageJSON) map[string]string {
	deps := pkg.allDependencies()
	versions := make(map[string]string, len(buildToolPackages))
	for key, packageName := range buildToolPackages {
		if spec, ok := deps[packageName]; ok {
			versions[key] = cleanVersion(spec)
		}
	}
	if len(versions) == 0 {
		return nil
	}
	return versions
}

// ===== Runtime versions =====

// nodeVersion reads the Node.js version from .nvmrc, falling back to
// package.json engines.node.
func nodeVersion(root string) string {
	if data, ok := readFile(root, ".nvmrc"); ok {
		if v := strings.TrimSpace(string(data)); v != "" {
			return v
		}
	}
	if pkg := readPackageJSON(root); pkg != nil && pkg.Engines.Node != "" {
		return pkg.Engines.Node
	}
	return ""
}

var pythonRequiresRe = regexp.MustCompile(`python_requires\s*=\s*["']([^"']+)["']`)

// pythonVersion reads the Python version from .python-version,
// runtime.txt ("python-" prefix), or setup.py python_requires.
func pythonVersion(root string) string {
	if data, ok := readFile(root, ".python-version"); ok {
		if v := strings.TrimSpace(string(data)); v != "" {
			return v
		}
	}
	if data, ok := readFile(root, "runtime.txt"); ok {
		content := strings.TrimSpace(string(data))
		if strings.HasPrefix(content, "python-") {
			return strings.TrimPrefix(content, "python-")
		}
	}
	if data, ok := readFile(root, "setup.py"); ok {
		if m := pythonRequiresRe.FindSubmatch(data); m != nil {
			return string(m[1])
		}
	}
	return ""
}

// ===== requirements.txt =====

// requirementRe parses one requirements.txt line: name (optional
// extras), optional constraint, optional version.
var requirementRe = regexp.MustCompile(`^([a-zA-Z0-9_.-]+(?:\[[^\]]*\])?)\s*([<>=!~]+)?\s*([\d.*]+)?`)

// parseRequirements maps requirements.txt package names (extras
// stripped) to their pinned version spec, "" when unpinned.
func parseRequirements(root string) map[string]string {
	data, ok := readFile(root, "requirements.txt")
	if !ok {
		return nil
	}

	packages := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m := requirementRe.FindStringSubmatch(line)
		if m == nil || m[1] == "" {
			continue
		}
		name := m[1]
		if i := strings.Index(name, "["); i >= 0 {
			name = name[:i]
		}
		spec := ""
		if m[3] != "" {
			constraint := m[2]
			if constraint == "" {
				constraint = "=="
			}
			spec = constraint + m[3]
		}
		packages[name] = spec
	}
	if len(packages) == 0 {
		return nil
	}
	return packages
}

// ===== pom.xml =====

type pomProject struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Properties struct {
		CompilerSource string `xml:"maven.compiler.source"`
		CompilerTarget string `xml:"maven.compiler.target"`
		JavaVersion    string `xml:"java.version"`
	} `xml:"properties"`
}

var (
	pomCompilerSourceRe = regexp.MustCompile(`<maven\.compiler\.source>([^<]+)</maven\.compiler\.source>`)
	pomVersionRe        = regexp.MustCompile(`<version>([^<]+)</version>`)
	pomGroupRe          = regexp.MustCompile(`<groupId>([^<]+)</groupId>`)
	pomArtifactRe       = regexp.MustCompile(`<artifactId>([^<]+)</artifactId>`)
)

// parsePomXML extracts coordinates and the Java version from pom.xml.
// Namespaced and plain documents both parse; malformed XML falls back
// to regex extraction.
func parsePomXML(root string) *knowledge.MavenConfig {
	data, ok := readFile(root, "pom.xml")
	if !ok {
		return nil
	}

	var pom pomProject
	if err := xml.Unmarshal(data, &pom); err == nil {
		cfg := &knowledge.MavenConfig{
			GroupID:    strings.TrimSpace(pom.GroupID),
			ArtifactID: strings.TrimSpace(pom.ArtifactID),
			Version:    strings.TrimSpace(pom.Version),
		}
		switch {
		case pom.Properties.CompilerSource != "":
			cfg.JavaVersion = strings.TrimSpace(pom.Properties.CompilerSource)
		case pom.Properties.CompilerTarget != "":
			cfg.JavaVersion = strings.TrimSpace(pom.Properties.CompilerTarget)
		case pom.Properties.JavaVersion != "":
			cfg.JavaVersion = strings.TrimSpace(pom.Properties.JavaVersion)
		}
		if *cfg == (knowledge.MavenConfig{}) {
			return nil
		}
		return cfg
	}

	content := string(data)
	cfg := &knowledge.MavenConfig{}
	if m := pomCompilerSourceRe.FindStringSubmatch(content); m != nil {
		cfg.JavaVersion = m[1]
	}
	if m := pomVersionRe.FindStringSubmatch(content); m != nil {
		cfg.Version = m[1]
	}
	if m := pomGroupRe.FindStringSubmatch(content); m != nil {
		cfg.GroupID = m[1]
	}
	if m := pomArtifactRe.FindStringSubmatch(content); m != nil {
		cfg.ArtifactID = m[1]
	}
	if *cfg == (knowledge.MavenConfig{}) {
		return nil
	}
	return cfg
}

// ===== .csproj =====

var assemblyNameRe = regexp.MustCompile(`(?s)<PropertyGroup>.*?<AssemblyName>([^<]+)</AssemblyName>`)

// dotnetAssemblyName reads the AssemblyName from the first .csproj in
// the tree.
func dotnetAssemblyName(root string) string {
	path := findFirstBySuffix(root, ".csproj")
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	if m := assemblyNameRe.FindSubmatch(data); m != nil {
		return string(m[1])
	}
	return ""
}

// ===== angular.json / tsconfig.json =====

func parseAngularJSON(root string) *knowledge.AngularConfig {
	data, ok := readFile(root, "angular.json")
	if !ok {
		return nil
	}

	var doc struct {
		DefaultProject string `json:"defaultProject"`
		Projects       map[string]struct {
			Architect map[string]json.RawMessage `json:"architect"`
		} `json:"projects"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil
	}

	cfg := &knowledge.AngularConfig{DefaultProject: doc.DefaultProject}
	for name := range doc.Projects {
		cfg.Projects = append(cfg.Projects, name)
	}
	sort.Strings(cfg.Projects)

	if project, ok := doc.Projects[doc.DefaultProject]; ok {
		for target := range project.Architect {
			cfg.ArchitectTargets = append(cfg.ArchitectTargets, target)
		}
		sort.Strings(cfg.ArchitectTargets)
	}

	if len(cfg.Projects) == 0 && cfg.DefaultProject == "" {
		return nil
	}
	return cfg
}

func parseTSConfig(root string) *knowledge.TSConfig {
	data, ok := readFile(root, "tsconfig.json")
	if !ok {
		return nil
	}

	var doc struct {
		CompilerOptions struct {
			Target  string              `json:"target"`
			Module  string              `json:"module"`
			Strict  bool                `json:"strict"`
			BaseURL string              `json:"baseUrl"`
			Paths   map[string][]string `json:"paths"`
		} `json:"compilerOptions"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil
	}

	opts := doc.CompilerOptions
	if opts.Target == "" && opts.Module == "" && !opts.Strict && opts.BaseURL == "" && len(opts.Paths) == 0 {
		return nil
	}
	return &knowledge.TSConfig{
		Target:  opts.Target,
		Module:  opts.Module,
		Strict:  opts.Strict,
		BaseURL: opts.BaseURL,
		Paths:   opts.Paths,
	}
}
