// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package build assembles the Project Knowledge Graph for a repository.
//
// The builder runs a fixed sequence of passes: scan, project metadata,
// file normalization (parallel), module construction, preliminary
// symbols, endpoints, relationship extraction, import population, the
// fan-in threshold pass that decides which symbols carry summaries,
// and finally folder-derived features.
//
// Output is deterministic for a fixed tree: files are processed in
// sorted path order and every derived list preserves that order, so
// two builds over the same tree produce equal documents.
package build

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/atlas/services/knowledge"
	"github.com/AleutianAI/atlas/services/knowledge/ast"
	"github.com/AleutianAI/atlas/services/knowledge/endpoint"
	"github.com/AleutianAI/atlas/services/knowledge/git"
	"github.com/AleutianAI/atlas/services/knowledge/meta"
	"github.com/AleutianAI/atlas/services/knowledge/relate"
	"github.com/AleutianAI/atlas/services/knowledge/scan"
)

// DefaultFanThreshold is the fan-in at which a module's symbols start
// carrying summaries.
const DefaultFanThreshold = 3

// Options configures a Builder. The zero value builds with the default
// fan threshold and one worker per CPU.
type Options struct {
	// FanThreshold is the minimum fan-in for symbol summaries.
	// 0 means DefaultFanThreshold.
	FanThreshold int

	// Workers bounds the normalization pool. 0 means runtime.NumCPU().
	Workers int

	// Scan configures the file walk.
	Scan scan.Options
}

// Builder generates knowledge graphs.
//
// Thread Safety:
//
//	Safe for concurrent use; each Build call keeps its own state.
type Builder struct {
	registry *ast.Registry
	scanner  *scan.Scanner
	opts     Options
}

// New returns a Builder with all language normalizers registered.
func New(opts Options) *Builder {
	if opts.FanThreshold <= 0 {
		opts.FanThreshold = DefaultFanThreshold
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Builder{
		registry: ast.NewRegistry(),
		scanner:  scan.New(opts.Scan),
		opts:     opts,
	}
}

// parsedFile is the per-file result of the normalization pool.
type parsedFile struct {
	file      scan.File
	defs      *ast.Definitions
	hash      string
	loc       int
	endpoints []knowledge.Endpoint
}

// Build generates the complete knowledge graph for the repository at
// root.
//
// Description:
//
//	Runs every pass in order and returns a document satisfying the
//	structural invariants of knowledge.Graph.Validate. Files that
//	fail to parse are dropped from the module set; they still count
//	toward language statistics. The only errors are scan failures
//	and context cancellation.
//
// Inputs:
//
//	ctx - Context; cancellation aborts the parse pool
//	root - Repository root path
//
// Outputs:
//
//	*knowledge.Graph - The generated document
//	error - Non-nil on scan failure or cancellation
func (b *Builder) Build(ctx context.Context, root string) (*knowledge.Graph, error) {
	ctx, span := startBuildSpan(ctx, root)
	defer span.End()
	start := time.Now()

	files, err := b.scanner.Scan(ctx, root)
	if err != nil {
		recordBuildMetrics(ctx, time.Since(start), nil, false)
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })

	project := meta.Extract(ctx, root, files)

	parsed, err := b.normalizeAll(ctx, files, project.Frameworks)
	if err != nil {
		recordBuildMetrics(ctx, time.Since(start), nil, false)
		return nil, err
	}

	graph := b.assemble(ctx, root, project, files, parsed)

	recordBuildMetrics(ctx, time.Since(start), graph, true)
	setBuildSpanResult(span, graph)
	return graph, nil
}

// normalizeAll runs the normalization pool: one bounded goroutine per
// file, results indexed by position so output order stays sorted.
// Endpoint detection runs inside the worker while the source bytes are
// in hand.
func (b *Builder) normalizeAll(ctx context.Context, files []scan.File, frameworks []string) ([]parsedFile, error) {
	parsed := make([]parsedFile, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for i := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			file := files[i]
			parsed[i].file = file

			source, err := os.ReadFile(file.AbsPath)
			if err != nil {
				return nil // Unreadable file: drop from the module set
			}

			sum := sha256.Sum256(source)
			parsed[i].hash = hex.EncodeToString(sum[:])
			parsed[i].loc = countLines(source)

			defs, err := b.registry.Normalize(gctx, file.Language, file.RelPath, source)
			if err != nil || defs == nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				return nil // Parse failure: drop, never fatal
			}
			parsed[i].defs = defs

			moduleID := knowledge.ModuleID(file.RelPath)
			parsed[i].endpoints = endpoint.Extract(file.RelPath, source, moduleID, frameworks)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parsed, nil
}

// assemble runs the sequential passes over the normalized files.
func (b *Builder) assemble(ctx context.Context, root string, project knowledge.Project, files []scan.File, parsed []parsedFile) *knowledge.Graph {
	var (
		modules   []knowledge.Module
		sources   []relate.Source
		endpoints []knowledge.Endpoint
	)

	// Module pass: one module per successfully normalized file.
	defsByPath := make(map[string]*ast.Definitions, len(parsed))
	for i := range parsed {
		p := &parsed[i]
		if p.defs == nil {
			continue
		}
		modules = append(modules, newModule(p))
		defsByPath[p.file.RelPath] = p.defs
		endpoints = append(endpoints, p.endpoints...)
	}
	for i := range modules {
		sources = append(sources, relate.Source{
			Module:      &modules[i],
			Definitions: defsByPath[modules[i].Path],
		})
	}

	// Preliminary symbols: no summaries yet, fan is unknown.
	symbols := buildAllSymbols(modules, sources, nil, b.opts.FanThreshold)

	// Relationships, then module imports from the imports edges.
	edges, fan := relate.Extract(root, sources, symbols, endpoints)
	populateImports(modules, edges)

	// Threshold pass: rebuild symbols now that fan-in is known.
	symbols = buildAllSymbols(modules, sources, fan, b.opts.FanThreshold)
	populateExports(modules, symbols)

	features := buildFeatures(modules)

	if summary, navigation := meta.AggregateUIPatterns(ctx, root, files, modules); summary != nil || navigation != nil {
		if project.Metadata == nil {
			project.Metadata = &knowledge.ProjectMetadata{}
		}
		project.Metadata.UIPatterns = summary
		project.Metadata.NavigationPatterns = navigation
	}

	graph := &knowledge.Graph{
		Version:     knowledge.Version,
		GeneratedAt: time.Now().UTC(),
		Project:     project,
		Modules:     modules,
		Symbols:     symbols,
		Endpoints:   endpoints,
		Edges:       edges,
		Features:    features,
	}

	if sha, err := git.HeadSHA(ctx, root); err == nil {
		graph.GitSHA = sha
		graph.Project.GitSHA = sha
	}
	return graph
}

// populateImports fills each module's Imports from the imports edges,
// in edge order, deduplicated.
func populateImports(modules []knowledge.Module, edges []knowledge.Edge) {
	byID := make(map[string]*knowledge.Module, len(modules))
	for i := range modules {
		byID[modules[i].ID] = &modules[i]
	}
	seen := make(map[string]bool, len(edges))
	for _, e := range edges {
		if e.Type != knowledge.EdgeImports {
			continue
		}
		mod, ok := byID[e.From]
		if !ok {
			continue
		}
		key := e.From + "\x00" + e.To
		if seen[key] {
			continue
		}
		seen[key] = true
		mod.Imports = append(mod.Imports, e.To)
	}
}

// populateExports fills each module's Exports with its exported
// symbols' IDs, in symbol order.
func populateExports(modules []knowledge.Module, symbols []knowledge.Symbol) {
	byID := make(map[string]*knowledge.Module, len(modules))
	for i := range modules {
		modules[i].Exports = nil
		byID[modules[i].ID] = &modules[i]
	}
	for _, sym := range symbols {
		if !sym.IsExported {
			continue
		}
		if mod, ok := byID[sym.ModuleID]; ok {
			mod.Exports = append(mod.Exports, sym.ID)
		}
	}
}

// countLines counts non-blank lines.
func countLines(source []byte) int {
	n := 0
	start := 0
	for i := 0; i <= len(source); i++ {
		if i == len(source) || source[i] == '\n' {
			if hasInk(source[start:i]) {
				n++
			}
			start = i + 1
		}
	}
	return n
}

func hasInk(line []byte) bool {
	for _, c := range line {
		if c != ' ' && c != '\t' && c != '\r' {
			return true
		}
	}
	return false
}
