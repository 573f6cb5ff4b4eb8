// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrate

import (
	"context"
	"time"

	"github.com/AleutianAI/atlas/pkg/extensions"
	"github.com/AleutianAI/atlas/pkg/validation"
	"github.com/AleutianAI/atlas/services/agent/edit"
	"github.com/AleutianAI/atlas/services/agent/events"
	"github.com/AleutianAI/atlas/services/agent/impact"
	"github.com/AleutianAI/atlas/services/agent/intent"
	"github.com/AleutianAI/atlas/services/agent/observability"
	"github.com/AleutianAI/atlas/services/agent/plan"
	"github.com/AleutianAI/atlas/services/agent/pr"
	"github.com/AleutianAI/atlas/services/agent/session"
	"github.com/AleutianAI/atlas/services/agent/testrun"
	"github.com/AleutianAI/atlas/services/agent/verify"
	"github.com/AleutianAI/atlas/services/knowledge/query"
)

// executeWorkflow runs the code-change pipeline up to the approval
// gate, then either blocks on the gate or executes the plan directly.
func (o *Orchestrator) executeWorkflow(ctx context.Context, sess *session.Session, engine *query.Engine, in intent.Intent, message string, stream *events.Stream) {
	sid := sess.SessionID

	o.emitStatus(stream, sid, events.StageImpactAnalysis, "Analyzing change impact...")
	start := time.Now()
	seeds := o.seedModules(ctx, engine, in)
	imp := impact.NewAnalyzer(engine, o.logger).Analyze(ctx, in, seeds)
	observability.ObservePhase(events.StageImpactAnalysis, start, nil)
	o.emit(stream, events.New(events.TypeLog, events.StageImpactAnalysis, sid, map[string]any{
		"message": "Impact analysis complete",
		"impact":  asMap(imp),
	}))

	o.emitStatus(stream, sid, events.StagePlanning, "Creating a change plan...")
	start = time.Now()
	p := o.planner.GeneratePlan(ctx, in, imp, in.Constraints, engine.Graph(), sess.RepoPath)
	observability.ObservePhase(events.StagePlanning, start, nil)
	o.emit(stream, events.New(events.TypeLog, events.StagePlanning, sid, map[string]any{
		"message": "Plan generated",
		"plan":    asMap(p),
	}))

	sess.Lock()
	sess.CurrentImpact = &imp
	sess.CurrentPlan = &p
	sess.Unlock()

	if o.approvalNeeded(in, imp) {
		o.requestApproval(sess, in, imp, p, stream)
		return
	}
	o.executePlan(ctx, sess, p, stream)
}

// requestApproval parks the workflow on the gate: the plan is stored
// in the session, journaled for restart survival, and surfaced to the
// client as an approval_request.
func (o *Orchestrator) requestApproval(sess *session.Session, in intent.Intent, imp impact.Result, p plan.Plan, stream *events.Stream) {
	sess.Lock()
	sess.PendingApproval = true
	repoURL, repoPath, projectID := sess.RepoURL, sess.RepoPath, sess.ProjectID
	sess.Unlock()

	if o.journal != nil {
		err := o.journal.SaveApproval(session.ApprovalRecord{
			SessionID: sess.SessionID,
			RepoURL:   repoURL,
			RepoPath:  repoPath,
			ProjectID: projectID,
			Intent:    in,
			Impact:    imp,
			Plan:      p,
		})
		if err != nil {
			o.logger.Warn("could not journal approval",
				"session_id", sess.SessionID, "error", err)
		}
	}

	o.ext.AuditLogger.Record(context.Background(), extensions.AuditEvent{
		Timestamp: time.Now().UTC(),
		Action:    extensions.AuditPlanProposed,
		SessionID: sess.SessionID,
		PlanID:    p.PlanID,
		Detail:    map[string]any{"risk": string(imp.RiskScore), "tasks": len(p.Tasks)},
	})

	o.emit(stream, events.New(events.TypeApprovalRequest, events.StageApproval, sess.SessionID, map[string]any{
		"message": "The plan below needs your approval before any code is changed.",
		"plan_id": p.PlanID,
		"plan":    asMap(p),
		"intent":  asMap(in),
		"impact":  asMap(imp),
	}))
}

// executePlan runs edit, test, verify, and PR creation for an approved
// (or ungated) plan.
func (o *Orchestrator) executePlan(ctx context.Context, sess *session.Session, p plan.Plan, stream *events.Stream) {
	sid := sess.SessionID
	sess.Lock()
	repoPath := sess.RepoPath
	graph := sess.Graph
	sess.Unlock()

	o.emitStatus(stream, sid, events.StageEditing, "Applying code changes...")
	editor, err := edit.New(repoPath, o.client, o.git, o.logger)
	if err != nil {
		o.emitError(stream, sid, events.StageEditing, err.Error())
		o.countWorkflow(p.Intent.Category, "error")
		return
	}

	branch := edit.BranchForPlan(p.PlanID)
	if err := validation.ValidateBranchName(branch); err != nil {
		o.emitError(stream, sid, events.StageEditing, err.Error())
		o.countWorkflow(p.Intent.Category, "error")
		return
	}
	if _, err := editor.CreateBranch(ctx, branch); err != nil {
		o.emitError(stream, sid, events.StageEditing, "creating branch: "+err.Error())
		o.countWorkflow(p.Intent.Category, "error")
		return
	}

	start := time.Now()
	changes := editor.ApplyEdits(ctx, p, graph)
	observability.ObservePhase(events.StageEditing, start, nil)

	for _, ch := range changes.Changes {
		o.emit(stream, events.New(events.TypeCodeChange, events.StageEditing, sid, map[string]any{
			"file":    ch.File,
			"status":  ch.Status,
			"diff":    o.ext.ChangeFilter.FilterDiff(ctx, ch.File, ch.Diff),
			"task_id": ch.TaskID,
		}))
	}
	o.emit(stream, events.New(events.TypeLog, events.StageEditing, sid, map[string]any{
		"message":     "Editing complete",
		"total_files": changes.TotalFiles,
		"changed":     len(changes.Changes),
		"errors":      len(changes.Errors),
	}))

	if len(changes.Changes) > 0 {
		if _, err := editor.CommitChanges(ctx, pr.Title(p)); err != nil {
			o.logger.Warn("commit failed", "session_id", sid, "error", err)
		}
		o.ext.AuditLogger.Record(ctx, extensions.AuditEvent{
			Timestamp: time.Now().UTC(),
			Action:    extensions.AuditChangesApplied,
			SessionID: sid,
			PlanID:    p.PlanID,
			Detail:    map[string]any{"branch": branch, "changed": len(changes.Changes)},
		})
	}

	o.emitStatus(stream, sid, events.StageTesting, "Running tests...")
	runner := testrun.New(repoPath, o.cfg.TestTimeout, o.logger)
	language := runner.Language()

	start = time.Now()
	tests := runner.RunTests(ctx, language)
	observability.ObservePhase(events.StageTesting, start, nil)
	o.emit(stream, events.New(events.TypeTestResult, events.StageTesting, sid, asMap(tests)))

	lint := runner.RunLinter(ctx, language)
	typecheck := runner.RunTypecheck(ctx, language)

	o.emitStatus(stream, sid, events.StageVerification, "Verifying results...")
	result := verify.New(o.logger).Verify(tests, lint, typecheck, p.Intent.Constraints)
	o.emit(stream, events.New(events.TypeLog, events.StageVerification, sid, map[string]any{
		"message":      "Verification complete",
		"verification": asMap(result),
	}))

	if !result.ReadyForPR {
		o.emit(stream, events.New(events.TypeSummary, events.StageVerification, sid, map[string]any{
			"message":      "Changes were applied on branch " + branch + " but are not ready for a pull request.",
			"ready_for_pr": false,
			"branch":       branch,
			"verification": result.Summary,
		}))
		o.countWorkflow(p.Intent.Category, "success")
		return
	}

	o.emitStatus(stream, sid, events.StagePRCreation, "Creating pull request...")
	start = time.Now()
	prResult := pr.New(repoPath, o.git, o.logger).Run(ctx, branch, pr.Title(p), pr.Body(p, tests, changes))
	observability.ObservePhase(events.StagePRCreation, start, nil)

	switch {
	case prResult.Success:
		o.ext.AuditLogger.Record(ctx, extensions.AuditEvent{
			Timestamp: time.Now().UTC(),
			Action:    extensions.AuditPRCreated,
			SessionID: sid,
			PlanID:    p.PlanID,
			Detail:    map[string]any{"pr_url": prResult.URL, "branch": branch},
		})
		o.emit(stream, events.New(events.TypeSummary, events.StagePRCreation, sid, map[string]any{
			"message":      "All changes applied and verified. Pull request created.",
			"ready_for_pr": true,
			"branch":       branch,
			"pr_url":       prResult.URL,
			"pr_number":    prResult.Number,
		}))
	case prResult.Skipped:
		o.emit(stream, events.New(events.TypeSummary, events.StagePRCreation, sid, map[string]any{
			"message":      "Changes are ready on branch " + branch + ". Configure GITHUB_TOKEN to open pull requests automatically.",
			"ready_for_pr": true,
			"branch":       branch,
			"upstream_url": prResult.UpstreamURL,
		}))
	default:
		o.emitError(stream, sid, events.StagePRCreation, prResult.Error)
		o.emit(stream, events.New(events.TypeSummary, events.StagePRCreation, sid, map[string]any{
			"message":      "Changes are ready on branch " + branch + " but the pull request could not be opened.",
			"ready_for_pr": true,
			"branch":       branch,
			"upstream_url": prResult.UpstreamURL,
			"error":        prResult.Error,
		}))
	}
	o.countWorkflow(p.Intent.Category, "success")
}

// seedModules resolves intent targets to module IDs: exact IDs pass
// through, anything else is matched by filename.
func (o *Orchestrator) seedModules(ctx context.Context, engine *query.Engine, in intent.Intent) []string {
	seen := make(map[string]bool)
	var seeds []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			seeds = append(seeds, id)
		}
	}

	for _, target := range append(append([]string{}, in.TargetModules...), in.TargetFiles...) {
		if engine.ModuleByID(target) != nil {
			add(target)
			continue
		}
		for _, m := range engine.ModulesByFilename(ctx, target) {
			add(m.ID)
		}
	}
	return seeds
}

func (o *Orchestrator) countWorkflow(category intent.Category, status string) {
	if m := observability.DefaultMetrics; m != nil {
		m.WorkflowsTotal.WithLabelValues(string(category), status).Inc()
	}
}
