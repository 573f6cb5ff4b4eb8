// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package impact scores the blast radius of a proposed change: the
// transitive module/file set around the seed modules, the tests that
// exercise any of them, and a deterministic risk grade that drives the
// approval gate.
//
// # Thread Safety
//
// Analyzer is safe for concurrent use.
package impact

import (
	"context"
	"log/slog"
	"sort"

	"github.com/AleutianAI/atlas/services/agent/intent"
	"github.com/AleutianAI/atlas/services/knowledge"
	"github.com/AleutianAI/atlas/services/knowledge/query"
)

// Risk grades the blast radius of a change.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// defaultDepth bounds the transitive walk. Two hops covers direct
// dependents and their dependents, which is what plan sizing needs.
const defaultDepth = 2

// Risk thresholds. Crossing an entity or repository module is high risk
// regardless of size; the file counts grade everything else.
const (
	highFileThreshold   = 10
	mediumFileThreshold = 3
)

// Result is the impact summary handed to the planner and the approval
// gate.
type Result struct {
	ImpactedModules  []string `json:"impacted_modules"`
	ImpactedFiles    []string `json:"impacted_files"`
	AffectedTests    []string `json:"affected_tests"`
	ModuleCount      int      `json:"module_count"`
	FileCount        int      `json:"file_count"`
	RiskScore        Risk     `json:"risk_score"`
	RequiresApproval bool     `json:"requires_approval"`
}

// Analyzer computes impact over one loaded knowledge graph.
type Analyzer struct {
	engine *query.Engine
	logger *slog.Logger
	depth  int
}

// NewAnalyzer builds an Analyzer over engine.
func NewAnalyzer(engine *query.Engine, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{engine: engine, logger: logger, depth: defaultDepth}
}

// Analyze walks the graph around the seed modules and grades the result.
// The grade is deterministic for a given graph and seed set: high when
// the impact crosses an entity/repository module or exceeds
// highFileThreshold files, medium when it exceeds mediumFileThreshold
// files or touches any test, low otherwise. Approval is required for
// medium and high.
func (a *Analyzer) Analyze(ctx context.Context, in intent.Intent, moduleIDs []string) Result {
	a.logger.Debug("analyzing change impact", "intent", in.Label, "seed_modules", len(moduleIDs))

	imp := a.engine.ImpactedModules(ctx, moduleIDs, a.depth)

	impacted := make(map[string]bool, len(imp.ModuleIDs))
	for _, id := range imp.ModuleIDs {
		impacted[id] = true
	}
	tests := a.affectedTests(impacted)

	risk := scoreRisk(imp.Modules, len(imp.Files), len(tests))
	return Result{
		ImpactedModules:  imp.ModuleIDs,
		ImpactedFiles:    imp.Files,
		AffectedTests:    tests,
		ModuleCount:      len(imp.ModuleIDs),
		FileCount:        len(imp.Files),
		RiskScore:        risk,
		RequiresApproval: risk != RiskLow,
	}
}

// affectedTests returns the paths of test modules that are themselves
// impacted or that import an impacted module.
func (a *Analyzer) affectedTests(impacted map[string]bool) []string {
	var tests []string
	for i := range a.engine.Graph().Modules {
		mod := &a.engine.Graph().Modules[i]
		if !mod.HasKind(knowledge.KindTest) {
			continue
		}
		if impacted[mod.ID] {
			tests = append(tests, mod.Path)
			continue
		}
		for _, imp := range mod.Imports {
			if impacted[imp] {
				tests = append(tests, mod.Path)
				break
			}
		}
	}
	sort.Strings(tests)
	return tests
}

func scoreRisk(modules []knowledge.Module, fileCount, testCount int) Risk {
	for i := range modules {
		if modules[i].HasKind(knowledge.KindEntity) || modules[i].HasKind(knowledge.KindRepository) {
			return RiskHigh
		}
	}
	if fileCount > highFileThreshold {
		return RiskHigh
	}
	if fileCount > mediumFileThreshold || testCount > 0 {
		return RiskMedium
	}
	return RiskLow
}
