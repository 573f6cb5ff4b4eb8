// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package knowledge defines the Project Knowledge Graph (PKG) document
// model shared by the builder, stores, query engine, and agent phases.
//
// A PKG is a single JSON document describing one repository: its
// modules (one per source file), exported symbols, HTTP endpoints,
// relationship edges, and folder-level features, plus project
// metadata (languages, frameworks, build tools, code style).
//
// Design principles:
//   - IDs are stable, content-independent, path-based strings
//     ("mod:<path>", "sym:<moduleId>:<name>", "feat:<folder>")
//   - JSON field names match the on-disk pkg.json format exactly;
//     optional fields are omitted, never null
//   - No map[string]interface{} in the core model - concrete types only
package knowledge

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Version is the PKG document format version written by the builder.
const Version = "1.0.0"

// =============================================================================
// Symbol Kinds
// =============================================================================

// SymbolKind classifies a symbol extracted from a module.
//
// The set is deliberately small: the PKG tracks the constructs that
// matter for navigation and impact analysis, not a full AST.
type SymbolKind int

const (
	// SymbolUnknown indicates an unrecognized kind (bad input).
	SymbolUnknown SymbolKind = iota

	// SymbolFunction is a standalone function.
	SymbolFunction

	// SymbolClass is a class or struct-like type.
	SymbolClass

	// SymbolMethod is a function attached to a class. Method names
	// are qualified as "Class.method".
	SymbolMethod

	// SymbolInterface is an interface or protocol definition.
	SymbolInterface
)

// symbolKindNames maps SymbolKind values to their wire names.
var symbolKindNames = map[SymbolKind]string{
	SymbolUnknown:   "unknown",
	SymbolFunction:  "function",
	SymbolClass:     "class",
	SymbolMethod:    "method",
	SymbolInterface: "interface",
}

// String returns the wire name of the kind ("function", "class",
// "method", "interface") or "unknown".
func (k SymbolKind) String() string {
	if name, ok := symbolKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON serializes the kind as a JSON string for readability.
func (k SymbolKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON accepts both string and numeric kind values.
func (k *SymbolKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*k = ParseSymbolKind(s)
		return nil
	}

	var i int
	if err := json.Unmarshal(data, &i); err != nil {
		return fmt.Errorf("SymbolKind must be string or int: %w", err)
	}
	*k = SymbolKind(i)
	return nil
}

// ParseSymbolKind converts a wire name to a SymbolKind.
// Unrecognized names return SymbolUnknown.
func ParseSymbolKind(s string) SymbolKind {
	for kind, name := range symbolKindNames {
		if name == s {
			return kind
		}
	}
	return SymbolUnknown
}

// =============================================================================
// Edge Types
// =============================================================================

// EdgeType names the relationship an Edge represents. The value is
// written to JSON as-is and upper-cased for graph database
// relationship types (imports -> IMPORTS).
type EdgeType string

const (
	// EdgeImports records that one module imports another.
	EdgeImports EdgeType = "imports"

	// EdgeCalls records a cross-module call into a symbol.
	EdgeCalls EdgeType = "calls"

	// EdgeExtends records class inheritance.
	EdgeExtends EdgeType = "extends"

	// EdgeImplements records interface implementation.
	EdgeImplements EdgeType = "implements"

	// EdgeHandles links an endpoint to its handler module.
	EdgeHandles EdgeType = "handles"

	// EdgeContains links a feature to a module inside it.
	EdgeContains EdgeType = "contains"

	// EdgeDependsOn is the generic relationship used when nothing
	// more specific applies.
	EdgeDependsOn EdgeType = "depends_on"
)

// RelationshipType returns the graph-database relationship name for
// the edge type: the upper-cased value, or DEPENDS_ON when empty.
func (t EdgeType) RelationshipType() string {
	if t == "" {
		return "DEPENDS_ON"
	}
	return strings.ToUpper(string(t))
}

// =============================================================================
// Symbol Visibility
// =============================================================================

// Visibility values for Symbol.Visibility.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// =============================================================================
// Module Kinds
// =============================================================================

// Module kind tags. A module may carry several; risk scoring treats
// entity and repository modules as high-impact.
const (
	KindController = "controller"
	KindService    = "service"
	KindEntity     = "entity"
	KindRepository = "repository"
	KindComponent  = "component"
	KindModule     = "module"
	KindTest       = "test"
	KindUtil       = "util"
)

// =============================================================================
// Core Documents
// =============================================================================

// Graph is the complete Project Knowledge Graph document for one
// repository. It is what pkg.json holds and what the graph database
// stores node-by-node.
type Graph struct {
	// Version is the document format version (see Version constant).
	Version string `json:"version"`

	// GeneratedAt is when the document was built (UTC).
	GeneratedAt time.Time `json:"generatedAt"`

	// GitSHA is the repository HEAD commit at generation time.
	// Empty when the repository is not a git working tree.
	GitSHA string `json:"gitSha,omitempty"`

	// Project holds repository-level metadata.
	Project Project `json:"project"`

	// Modules lists one module per parsed source file, ordered by path.
	Modules []Module `json:"modules"`

	// Symbols lists the symbols extracted from all modules.
	Symbols []Symbol `json:"symbols"`

	// Endpoints lists HTTP endpoints discovered in the source.
	Endpoints []Endpoint `json:"endpoints"`

	// Edges lists relationships between modules, symbols, and endpoints.
	Edges []Edge `json:"edges"`

	// Features lists folder-level groupings of modules.
	// Omitted when feature extraction is disabled.
	Features []Feature `json:"features,omitempty"`
}

// Project describes the repository the PKG was built from.
type Project struct {
	// ID is the project identifier: the basename of the root path.
	ID string `json:"id"`

	// Name is the human-readable project name (same as ID today).
	Name string `json:"name"`

	// RootPath is the absolute path the PKG was generated from.
	RootPath string `json:"rootPath"`

	// Languages lists detected languages, most common first.
	Languages []string `json:"languages"`

	// Frameworks lists detected framework names ("angular", "flask", ...).
	Frameworks []string `json:"frameworks,omitempty"`

	// BuildTools lists detected build tools ("npm", "maven", "go", ...).
	BuildTools []string `json:"buildTools,omitempty"`

	// GitSHA mirrors Graph.GitSHA for consumers that only see Project.
	GitSHA string `json:"gitSha,omitempty"`

	// Metadata carries package-manager and style information.
	Metadata *ProjectMetadata `json:"metadata,omitempty"`
}

// ProjectMetadata carries version, configuration, and convention
// details harvested from manifest files and source sampling.
type ProjectMetadata struct {
	// PackageManager is "npm" when package.json exists.
	PackageManager string `json:"packageManager,omitempty"`

	// PackageName is package.json "name".
	PackageName string `json:"packageName,omitempty"`

	// PackageVersion is package.json "version".
	PackageVersion string `json:"packageVersion,omitempty"`

	// FrameworkVersions maps framework name to the installed version,
	// exact when a lockfile resolves it.
	FrameworkVersions map[string]string `json:"frameworkVersions,omitempty"`

	// TypeScriptVersion from package.json devDependencies.
	TypeScriptVersion string `json:"typescriptVersion,omitempty"`

	// BuildToolVersions maps build tool packages (webpack, vite, ...)
	// to versions.
	BuildToolVersions map[string]string `json:"buildToolVersions,omitempty"`

	// NodeVersion from .nvmrc or engines.node.
	NodeVersion string `json:"nodeVersion,omitempty"`

	// PythonVersion from .python-version, runtime.txt, or setup.py.
	PythonVersion string `json:"pythonVersion,omitempty"`

	// JavaVersion from pom.xml compiler properties.
	JavaVersion string `json:"javaVersion,omitempty"`

	// GoVersion from the go.mod go directive.
	GoVersion string `json:"goVersion,omitempty"`

	// GoModule is the go.mod module path.
	GoModule string `json:"goModule,omitempty"`

	// MavenGroupID and MavenArtifactID from pom.xml.
	MavenGroupID    string `json:"mavenGroupId,omitempty"`
	MavenArtifactID string `json:"mavenArtifactId,omitempty"`

	// DotnetAssemblyName from the first .csproj found.
	DotnetAssemblyName string `json:"dotnetAssemblyName,omitempty"`

	// Configurations holds parsed configuration file subsets.
	Configurations *Configurations `json:"configurations,omitempty"`

	// UIPatterns aggregates project-wide UI conventions.
	UIPatterns *UIPatternSummary `json:"uiPatterns,omitempty"`

	// NavigationPatterns aggregates navigation conventions.
	NavigationPatterns *NavigationPatterns `json:"navigationPatterns,omitempty"`

	// CodeStyle holds sampled style conventions.
	CodeStyle *CodeStyle `json:"codeStyle,omitempty"`
}

// Configurations holds subsets of well-known configuration files.
type Configurations struct {
	// Angular is the angular.json subset.
	Angular *AngularConfig `json:"angular,omitempty"`

	// TypeScript is the tsconfig.json compilerOptions subset.
	TypeScript *TSConfig `json:"typescript,omitempty"`

	// PythonPackages maps requirements.txt package names to the
	// pinned version spec ("" when unpinned).
	PythonPackages map[string]string `json:"pythonPackages,omitempty"`

	// Maven is the pom.xml subset.
	Maven *MavenConfig `json:"maven,omitempty"`
}

// AngularConfig is the subset of angular.json the agent cares about.
type AngularConfig struct {
	// Projects lists project names declared in angular.json.
	Projects []string `json:"projects,omitempty"`

	// DefaultProject is the defaultProject entry if present.
	DefaultProject string `json:"defaultProject,omitempty"`

	// ArchitectTargets lists architect target names of the default
	// project (build, serve, test, ...).
	ArchitectTargets []string `json:"architectTargets,omitempty"`
}

// TSConfig is the tsconfig.json compilerOptions subset.
type TSConfig struct {
	Target  string              `json:"target,omitempty"`
	Module  string              `json:"module,omitempty"`
	Strict  bool                `json:"strict,omitempty"`
	BaseURL string              `json:"baseUrl,omitempty"`
	Paths   map[string][]string `json:"paths,omitempty"`
}

// MavenConfig is the pom.xml subset.
type MavenConfig struct {
	GroupID     string `json:"groupId,omitempty"`
	ArtifactID  string `json:"artifactId,omitempty"`
	Version     string `json:"version,omitempty"`
	JavaVersion string `json:"javaVersion,omitempty"`
}

// UIPatternSummary aggregates the dominant UI conventions across the
// project, for grounding LLM edits in what the codebase already does.
type UIPatternSummary struct {
	// ButtonComponent is the most common button import/pattern.
	ButtonComponent string `json:"buttonComponent,omitempty"`

	// NavigationPattern is the most common navigation pattern.
	NavigationPattern string `json:"navigationPattern,omitempty"`

	// RoutingConfig is the repo-relative path to the routing
	// configuration file, when one of the well-known names exists.
	RoutingConfig string `json:"routingConfig,omitempty"`

	// CommonImports lists the top button-related imports with
	// frequency, most common first (at most 10).
	CommonImports []PatternFrequency `json:"commonImports,omitempty"`
}

// NavigationPatterns aggregates navigation-specific conventions.
type NavigationPatterns struct {
	// BackButtonPatterns lists back-navigation regex patterns found
	// in source with their frequency (at most 10).
	BackButtonPatterns []PatternFrequency `json:"backButtonPatterns,omitempty"`
}

// PatternFrequency is a pattern with its occurrence count.
type PatternFrequency struct {
	Pattern   string `json:"pattern"`
	Frequency int    `json:"frequency"`
}

// CodeStyle holds style conventions sampled from source files.
type CodeStyle struct {
	// NamingConvention is "camelCase", "PascalCase", or "snake_case".
	NamingConvention string `json:"namingConvention,omitempty"`

	// ImportStyle is "absolute", "relative", or "mixed".
	ImportStyle string `json:"importStyle,omitempty"`

	// QuoteStyle is "single" or "double".
	QuoteStyle string `json:"quoteStyle,omitempty"`

	// Indentation is the indent width in spaces; 1 means tabs.
	Indentation int `json:"indentation,omitempty"`

	// Semicolons reports whether statements end with semicolons.
	Semicolons bool `json:"semicolons"`
}

// Module is one source file in the PKG.
type Module struct {
	// ID is the stable module identifier "mod:<repo-relative-path>".
	ID string `json:"id"`

	// Path is the repo-relative file path with forward slashes.
	Path string `json:"path"`

	// Kinds tags the module (controller, service, entity, test, ...).
	// Empty for untagged modules.
	Kinds []string `json:"kind"`

	// LOC is the number of non-blank lines in the file.
	LOC int `json:"loc"`

	// Hash is the SHA-256 of the file bytes, hex-encoded.
	Hash string `json:"hash"`

	// Exports lists symbol IDs exported by this module. Methods are
	// not exports; they belong to their class.
	Exports []string `json:"exports"`

	// Imports lists module IDs this module imports, derived from
	// "imports" edges after relationship extraction.
	Imports []string `json:"imports"`

	// ModuleSummary is an optional human-readable summary.
	ModuleSummary string `json:"moduleSummary,omitempty"`

	// CodePatterns describes per-module coding conventions.
	CodePatterns *CodePatterns `json:"codePatterns,omitempty"`

	// UIElements describes UI constructs found in the module.
	UIElements *UIElements `json:"uiElements,omitempty"`

	// FileStructure describes sibling template/style files.
	FileStructure *FileStructure `json:"fileStructure,omitempty"`
}

// CodePatterns captures per-module coding conventions used to ground
// LLM prompts in the module's existing style.
type CodePatterns struct {
	// ImportStyle is "absolute", "relative", or "mixed".
	ImportStyle string `json:"importStyle,omitempty"`

	// ExportStyle is "default", "named", or "mixed".
	ExportStyle string `json:"exportStyle,omitempty"`

	// Decorators lists decorator names without arguments, deduplicated.
	Decorators []string `json:"decorators,omitempty"`

	// ComponentType is "class", "function", or "arrow".
	ComponentType string `json:"componentType,omitempty"`

	// LifecycleHooks lists recognized framework lifecycle hooks used.
	LifecycleHooks []string `json:"lifecycleHooks,omitempty"`

	// StateManagement is "rxjs", "redux", "mobx", or "none".
	StateManagement string `json:"stateManagement,omitempty"`
}

// UIElements groups UI constructs found in one module. Buttons and
// forms accumulate; navigation keeps only the first pattern found.
type UIElements struct {
	// Buttons lists button usages, deduplicated by (type, pattern).
	Buttons []UIPattern `json:"buttons,omitempty"`

	// Navigation is the module's primary navigation pattern, if any.
	Navigation *UIPattern `json:"navigation,omitempty"`

	// Forms lists form bindings and submissions.
	Forms []UIPattern `json:"forms,omitempty"`
}

// UIPattern is one detected UI construct.
type UIPattern struct {
	// Type names the construct ("mat-button", "Button", "reactive", ...).
	// Navigation patterns leave it empty.
	Type string `json:"type,omitempty"`

	// Pattern is the matched source text, capped in length.
	Pattern string `json:"pattern"`

	// Import is the library import the pattern implies; empty for
	// native HTML elements.
	Import string `json:"import,omitempty"`
}

// FileStructure records sibling files that belong to a module
// (Angular templates and stylesheets).
type FileStructure struct {
	// HasTemplate reports whether a template file was found.
	HasTemplate bool `json:"hasTemplate"`

	// TemplatePath is the repo-relative template path when found.
	TemplatePath string `json:"templatePath,omitempty"`

	// HasStyles reports whether a stylesheet was found.
	HasStyles bool `json:"hasStyles"`

	// StylesPath is the repo-relative stylesheet path when found.
	StylesPath string `json:"stylesPath,omitempty"`

	// IsStandalone reports Angular standalone components.
	IsStandalone bool `json:"isStandalone,omitempty"`
}

// Symbol is a named construct extracted from a module.
type Symbol struct {
	// ID is the stable symbol identifier "sym:<moduleId>:<name>".
	ID string `json:"id"`

	// ModuleID is the owning module's ID.
	ModuleID string `json:"moduleId"`

	// Name is the symbol name; methods are "Class.method".
	Name string `json:"name"`

	// Kind classifies the symbol.
	Kind SymbolKind `json:"kind"`

	// IsExported reports whether the symbol is part of the module's
	// public surface. Methods are never exported.
	IsExported bool `json:"isExported"`

	// Signature is a compact declaration ("name(params)" for
	// functions, the bare name for classes and interfaces).
	Signature string `json:"signature"`

	// Visibility is "public" or "private".
	Visibility string `json:"visibility"`

	// Summary is the docstring, included only when the owning
	// module's fan-in meets the builder's threshold.
	Summary string `json:"summary,omitempty"`
}

// Endpoint is an HTTP endpoint discovered in the source.
type Endpoint struct {
	// ID is the stable endpoint identifier.
	ID string `json:"id"`

	// Path is the route path as written ("/users/:id").
	Path string `json:"path"`

	// Method is the HTTP method when determinable ("GET", "POST").
	Method string `json:"method,omitempty"`

	// HandlerModuleID is the module containing the handler.
	HandlerModuleID string `json:"handlerModuleId,omitempty"`

	// Handler is the handler function or class name when known.
	Handler string `json:"handler,omitempty"`

	// Framework is the framework the endpoint was detected for.
	Framework string `json:"framework,omitempty"`
}

// Edge is a directed relationship between two PKG entities.
// From and To are module or symbol IDs (endpoint IDs for "handles").
type Edge struct {
	// From is the source entity ID.
	From string `json:"from"`

	// To is the target entity ID.
	To string `json:"to"`

	// Type names the relationship.
	Type EdgeType `json:"type"`

	// Weight is an optional strength (call counts). Zero means unset.
	Weight float64 `json:"weight,omitempty"`
}

// Feature is a folder-level grouping of modules. Every non-trivial
// folder prefix of a module path becomes a feature.
type Feature struct {
	// ID is the stable feature identifier "feat:<folder-path>".
	ID string `json:"id"`

	// Name is the folder basename.
	Name string `json:"name"`

	// Path is the repo-relative folder path with forward slashes.
	Path string `json:"path"`

	// ModuleIDs lists the modules under this folder (transitively).
	ModuleIDs []string `json:"moduleIds"`
}

// FanStats holds the fan-in and fan-out counts of one module over
// imports and calls edges.
type FanStats struct {
	// FanIn is the number of distinct modules depending on this one.
	FanIn int `json:"fanIn"`

	// FanOut is the number of distinct modules this one depends on.
	FanOut int `json:"fanOut"`
}

// Stats summarizes a Graph for logs and status responses.
type Stats struct {
	Modules   int `json:"modules"`
	Symbols   int `json:"symbols"`
	Endpoints int `json:"endpoints"`
	Edges     int `json:"edges"`
	Features  int `json:"features"`
}

// =============================================================================
// Graph Helpers
// =============================================================================

// Stats returns entity counts for the graph.
func (g *Graph) Stats() Stats {
	return Stats{
		Modules:   len(g.Modules),
		Symbols:   len(g.Symbols),
		Endpoints: len(g.Endpoints),
		Edges:     len(g.Edges),
		Features:  len(g.Features),
	}
}

// FindModule returns the module with the given ID, or nil.
func (g *Graph) FindModule(id string) *Module {
	for i := range g.Modules {
		if g.Modules[i].ID == id {
			return &g.Modules[i]
		}
	}
	return nil
}

// FindModuleByPath returns the module with the given repo-relative
// path, or nil.
func (g *Graph) FindModuleByPath(path string) *Module {
	for i := range g.Modules {
		if g.Modules[i].Path == path {
			return &g.Modules[i]
		}
	}
	return nil
}

// FindSymbol returns the symbol with the given ID, or nil.
func (g *Graph) FindSymbol(id string) *Symbol {
	for i := range g.Symbols {
		if g.Symbols[i].ID == id {
			return &g.Symbols[i]
		}
	}
	return nil
}

// HasKind reports whether the module carries the given kind tag.
func (m *Module) HasKind(kind string) bool {
	for _, k := range m.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// =============================================================================
// Validation
// =============================================================================

// ValidationError describes the first structural problem found in a
// PKG document.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the PKG structural invariants:
//
//  1. every symbol's moduleId refers to an existing module
//  2. every edge endpoint resolves to an existing module, symbol, or
//     endpoint
//  3. module exports reference symbols belonging to that module
//  4. module imports hold module IDs only
//  5. feature moduleIds reference existing modules
//
// Returns nil when the document is consistent, or a ValidationError
// describing the first violation.
func (g *Graph) Validate() error {
	moduleIDs := make(map[string]bool, len(g.Modules))
	for i := range g.Modules {
		m := &g.Modules[i]
		if m.ID == "" {
			return ValidationError{Field: fmt.Sprintf("modules[%d].id", i), Message: "must not be empty"}
		}
		if !strings.HasPrefix(m.ID, ModuleIDPrefix) {
			return ValidationError{Field: fmt.Sprintf("modules[%d].id", i), Message: fmt.Sprintf("must start with %q", ModuleIDPrefix)}
		}
		if moduleIDs[m.ID] {
			return ValidationError{Field: fmt.Sprintf("modules[%d].id", i), Message: "duplicate module id " + m.ID}
		}
		moduleIDs[m.ID] = true
	}

	symbolIDs := make(map[string]string, len(g.Symbols))
	for i := range g.Symbols {
		s := &g.Symbols[i]
		if s.ID == "" {
			return ValidationError{Field: fmt.Sprintf("symbols[%d].id", i), Message: "must not be empty"}
		}
		if !moduleIDs[s.ModuleID] {
			return ValidationError{
				Field:   fmt.Sprintf("symbols[%d].moduleId", i),
				Message: fmt.Sprintf("references unknown module %q", s.ModuleID),
			}
		}
		symbolIDs[s.ID] = s.ModuleID
	}

	endpointIDs := make(map[string]bool, len(g.Endpoints))
	for i := range g.Endpoints {
		e := &g.Endpoints[i]
		if e.ID == "" {
			return ValidationError{Field: fmt.Sprintf("endpoints[%d].id", i), Message: "must not be empty"}
		}
		endpointIDs[e.ID] = true
	}

	for i := range g.Modules {
		m := &g.Modules[i]
		for j, exp := range m.Exports {
			owner, ok := symbolIDs[exp]
			if !ok {
				return ValidationError{
					Field:   fmt.Sprintf("modules[%d].exports[%d]", i, j),
					Message: fmt.Sprintf("references unknown symbol %q", exp),
				}
			}
			if owner != m.ID {
				return ValidationError{
					Field:   fmt.Sprintf("modules[%d].exports[%d]", i, j),
					Message: fmt.Sprintf("symbol %q belongs to module %q", exp, owner),
				}
			}
		}
		for j, imp := range m.Imports {
			if !moduleIDs[imp] {
				return ValidationError{
					Field:   fmt.Sprintf("modules[%d].imports[%d]", i, j),
					Message: fmt.Sprintf("references unknown module %q", imp),
				}
			}
		}
	}

	resolves := func(id string) bool {
		if moduleIDs[id] || endpointIDs[id] {
			return true
		}
		_, ok := symbolIDs[id]
		return ok
	}
	for i := range g.Edges {
		e := &g.Edges[i]
		if !resolves(e.From) {
			return ValidationError{
				Field:   fmt.Sprintf("edges[%d].from", i),
				Message: fmt.Sprintf("unresolvable endpoint %q", e.From),
			}
		}
		if !resolves(e.To) {
			return ValidationError{
				Field:   fmt.Sprintf("edges[%d].to", i),
				Message: fmt.Sprintf("unresolvable endpoint %q", e.To),
			}
		}
	}

	for i := range g.Features {
		f := &g.Features[i]
		for j, id := range f.ModuleIDs {
			if !moduleIDs[id] {
				return ValidationError{
					Field:   fmt.Sprintf("features[%d].moduleIds[%d]", i, j),
					Message: fmt.Sprintf("references unknown module %q", id),
				}
			}
		}
	}

	return nil
}
