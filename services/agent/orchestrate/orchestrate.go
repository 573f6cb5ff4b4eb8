// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrate drives the agent workflow for a session: intent
// extraction, repository and knowledge graph loading, then either a
// query, a diagram, or the full code-change pipeline (impact, plan,
// approval gate, edit, test, verify, PR).
//
// Phases run sequentially per session; concurrency happens across
// sessions. Every phase announces itself with a status event before
// doing work, so a client always knows where a long turn is.
package orchestrate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/atlas/pkg/extensions"
	"github.com/AleutianAI/atlas/services/agent/answer"
	"github.com/AleutianAI/atlas/services/agent/config"
	"github.com/AleutianAI/atlas/services/agent/diagram"
	"github.com/AleutianAI/atlas/services/agent/events"
	"github.com/AleutianAI/atlas/services/agent/impact"
	"github.com/AleutianAI/atlas/services/agent/intent"
	"github.com/AleutianAI/atlas/services/agent/observability"
	"github.com/AleutianAI/atlas/services/agent/plan"
	"github.com/AleutianAI/atlas/services/agent/session"
	"github.com/AleutianAI/atlas/services/knowledge/git"
	"github.com/AleutianAI/atlas/services/knowledge/query"
	"github.com/AleutianAI/atlas/services/knowledge/store"
	"github.com/AleutianAI/atlas/services/llm"
)

// ErrUnknownSession is returned when an approval message names a
// session the orchestrator does not know.
var ErrUnknownSession = errors.New("orchestrate: unknown session")

// Orchestrator coordinates the workflow components for all sessions.
//
// Thread Safety: safe for concurrent use; per-session state lives in
// the session registry, and clones of the same repository serialize on
// a per-path lock.
type Orchestrator struct {
	cfg      config.Config
	client   llm.LLMClient
	store    *store.Manager
	backend  query.Backend // nil without a graph database
	git      *git.Driver
	router   *intent.Router
	planner  *plan.Planner
	sessions *session.Registry
	journal  *session.Journal // nil disables approval journaling
	ext      extensions.ServiceOptions
	logger   *slog.Logger

	cloneMu    sync.Mutex
	cloneLocks map[string]*sync.Mutex

	// Staleness tracking per working tree: a watcher marks the path
	// dirty on source changes (including the agent's own edits) so the
	// next turn rebuilds the graph instead of serving the session copy.
	watchMu    sync.Mutex
	watchers   map[string]*store.Watcher
	staleRepos map[string]bool
}

// New wires an Orchestrator. client may be nil (deterministic
// fallbacks everywhere), backend may be nil (in-memory queries only),
// journal may be nil (approvals do not survive restarts).
func New(cfg config.Config, client llm.LLMClient, mgr *store.Manager, backend query.Backend, journal *session.Journal, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:        cfg,
		client:     client,
		store:      mgr,
		backend:    backend,
		git:        git.New(cfg.Git.UserName, cfg.Git.UserEmail),
		router:     intent.NewRouter(client, logger),
		planner:    plan.NewPlanner(client, logger),
		sessions:   session.NewRegistry(),
		journal:    journal,
		ext:        extensions.DefaultOptions(),
		logger:     logger,
		cloneLocks: make(map[string]*sync.Mutex),
		watchers:   make(map[string]*store.Watcher),
		staleRepos: make(map[string]bool),
	}
}

// Close stops the repository watchers. Sessions and journal state are
// unaffected.
func (o *Orchestrator) Close() {
	o.watchMu.Lock()
	defer o.watchMu.Unlock()
	for _, w := range o.watchers {
		w.Stop()
	}
	o.watchers = make(map[string]*store.Watcher)
}

// Sessions exposes the registry for transport-level bookkeeping.
func (o *Orchestrator) Sessions() *session.Registry { return o.sessions }

// SetExtensions installs enterprise extension points. Nil fields fall
// back to no-op defaults. Call before serving traffic.
func (o *Orchestrator) SetExtensions(opts extensions.ServiceOptions) {
	o.ext = opts.Normalize()
}

// Extensions returns the installed extension points.
func (o *Orchestrator) Extensions() extensions.ServiceOptions { return o.ext }

// ProcessUserRequest runs one conversational turn for sessionID,
// emitting progress and results on stream. It never returns an error:
// failures become error events.
func (o *Orchestrator) ProcessUserRequest(ctx context.Context, sessionID, message, repoURL string, stream *events.Stream) {
	sess := o.sessions.GetOrCreate(sessionID)
	sess.Lock()
	sess.Touch()
	sess.Unlock()

	o.emitStatus(stream, sessionID, events.StageIntentExtraction, "Analyzing your request...")
	in := o.router.Extract(ctx, message)
	o.emit(stream, events.New(events.TypeLog, events.StageIntentExtraction, sessionID, map[string]any{
		"message": "Intent extracted",
		"intent":  asMap(in),
	}))

	sess.Lock()
	sess.CurrentIntent = &in
	sess.Unlock()

	if err := o.ensureRepoLoaded(ctx, sess, repoURL, stream); err != nil {
		o.emitError(stream, sessionID, events.StageRepoLoading, err.Error())
		return
	}

	engine := o.engineFor(sess)

	switch in.Category {
	case intent.CategoryInformational:
		o.handleQuery(ctx, sess, engine, in, message, stream)
	case intent.CategoryDiagram:
		o.handleDiagram(ctx, sess, engine, in, message, stream)
	case intent.CategoryCodeChange:
		o.executeWorkflow(ctx, sess, engine, in, message, stream)
	default:
		o.handleQuery(ctx, sess, engine, in, message, stream)
	}
}

// ApprovePlan resumes a workflow blocked on the approval gate. planID
// may be empty; when set it must match the pending plan.
func (o *Orchestrator) ApprovePlan(ctx context.Context, sessionID, planID string, stream *events.Stream) error {
	sess, p, err := o.takePendingPlan(sessionID, planID)
	if err != nil {
		o.emitError(stream, sessionID, events.StageApproval, err.Error())
		return err
	}
	if m := observability.DefaultMetrics; m != nil {
		m.ApprovalsTotal.WithLabelValues("approved").Inc()
	}
	o.ext.AuditLogger.Record(ctx, extensions.AuditEvent{
		Timestamp: time.Now().UTC(),
		Action:    extensions.AuditPlanApproved,
		SessionID: sessionID,
		PlanID:    p.PlanID,
	})

	o.emitStatus(stream, sessionID, events.StageApproval, "Plan approved, starting execution")

	// The session may be a journal restoration on a fresh process; the
	// graph is reloaded from the cached working tree in that case.
	if err := o.ensureRepoLoaded(ctx, sess, "", stream); err != nil {
		o.emitError(stream, sessionID, events.StageRepoLoading, err.Error())
		return nil
	}
	o.executePlan(ctx, sess, *p, stream)
	return nil
}

// RejectPlan discards the pending plan and returns the session to
// idle.
func (o *Orchestrator) RejectPlan(ctx context.Context, sessionID, planID, reason string, stream *events.Stream) error {
	_, p, err := o.takePendingPlan(sessionID, planID)
	if err != nil {
		o.emitError(stream, sessionID, events.StageApproval, err.Error())
		return err
	}
	if m := observability.DefaultMetrics; m != nil {
		m.ApprovalsTotal.WithLabelValues("rejected").Inc()
	}
	o.ext.AuditLogger.Record(ctx, extensions.AuditEvent{
		Timestamp: time.Now().UTC(),
		Action:    extensions.AuditPlanRejected,
		SessionID: sessionID,
		PlanID:    p.PlanID,
		Detail:    map[string]any{"reason": reason},
	})

	data := map[string]any{
		"message": "Plan rejected. Let me know how you would like to proceed.",
		"plan_id": p.PlanID,
	}
	if reason != "" {
		data["reason"] = reason
	}
	o.emit(stream, events.New(events.TypeStatus, events.StageApproval, sessionID, data))
	o.logger.Info("plan rejected", "session_id", sessionID, "plan_id", p.PlanID, "reason", reason)
	return nil
}

// takePendingPlan atomically claims the pending plan for sessionID,
// clearing the gate and the journal entry.
func (o *Orchestrator) takePendingPlan(sessionID, planID string) (*session.Session, *plan.Plan, error) {
	sess := o.sessions.Get(sessionID)
	if sess == nil {
		return nil, nil, ErrUnknownSession
	}

	sess.Lock()
	defer sess.Unlock()
	if !sess.PendingApproval || sess.CurrentPlan == nil {
		return nil, nil, errors.New("orchestrate: no plan awaiting approval")
	}
	p := sess.CurrentPlan
	if planID != "" && planID != p.PlanID {
		return nil, nil, errors.New("orchestrate: plan ID does not match the pending plan")
	}

	sess.PendingApproval = false
	sess.Touch()
	if o.journal != nil {
		if err := o.journal.DeleteApproval(sessionID); err != nil {
			o.logger.Warn("could not clear approval journal",
				"session_id", sessionID, "error", err)
		}
	}
	return sess, p, nil
}

// RestorePendingSessions reloads journaled approvals into the
// registry at startup so clients can answer gates that survived a
// restart.
func (o *Orchestrator) RestorePendingSessions() int {
	if o.journal == nil {
		return 0
	}
	recs, err := o.journal.PendingApprovals()
	if err != nil {
		o.logger.Warn("could not read approval journal", "error", err)
		return 0
	}

	for _, rec := range recs {
		sess := o.sessions.GetOrCreate(rec.SessionID)
		sess.Lock()
		sess.RepoURL = rec.RepoURL
		sess.RepoPath = rec.RepoPath
		sess.ProjectID = rec.ProjectID
		in, imp, p := rec.Intent, rec.Impact, rec.Plan
		sess.CurrentIntent = &in
		sess.CurrentImpact = &imp
		sess.CurrentPlan = &p
		sess.PendingApproval = true
		sess.Unlock()
		o.logger.Info("restored pending approval",
			"session_id", rec.SessionID, "plan_id", rec.Plan.PlanID)
	}
	return len(recs)
}

// handleQuery answers an informational question over the graph.
func (o *Orchestrator) handleQuery(ctx context.Context, sess *session.Session, engine *query.Engine, in intent.Intent, message string, stream *events.Stream) {
	o.emitStatus(stream, sess.SessionID, events.StagePKGQuery, "Searching the knowledge graph...")

	resp := answer.NewHandler(engine, o.client, o.logger).Answer(ctx, message, in)
	o.emit(stream, events.New(events.TypeQueryResponse, events.StageQueryHandling, sess.SessionID, asMap(resp)))

	if m := observability.DefaultMetrics; m != nil {
		m.WorkflowsTotal.WithLabelValues(string(in.Category), "success").Inc()
	}
}

// handleDiagram renders a diagram for the request.
func (o *Orchestrator) handleDiagram(ctx context.Context, sess *session.Session, engine *query.Engine, in intent.Intent, message string, stream *events.Stream) {
	o.emitStatus(stream, sess.SessionID, events.StageDiagramGeneration, "Generating diagram...")

	res := diagram.NewGenerator(engine, o.client, o.logger).Generate(ctx, in, message)
	o.emit(stream, events.New(events.TypeDiagramResponse, events.StageDiagramGeneration, sess.SessionID, asMap(res)))

	if m := observability.DefaultMetrics; m != nil {
		m.WorkflowsTotal.WithLabelValues(string(in.Category), "success").Inc()
	}
}

// engineFor builds the per-session query engine. The session graph may
// be nil for sessions restored from the journal before reload.
func (o *Orchestrator) engineFor(sess *session.Session) *query.Engine {
	sess.Lock()
	defer sess.Unlock()
	return query.New(sess.Graph, o.backend, o.logger)
}

// approvalNeeded applies the gate rule: the intent can demand a human,
// the impact grade can, and configuration can force it globally.
func (o *Orchestrator) approvalNeeded(in intent.Intent, imp impact.Result) bool {
	return in.HumanApproval || imp.RequiresApproval || o.cfg.ApprovalRequired
}

func (o *Orchestrator) emit(stream *events.Stream, ev events.Envelope) {
	observability.CountEvent(string(ev.Type))
	stream.Emit(ev)
}

func (o *Orchestrator) emitStatus(stream *events.Stream, sessionID, stage, message string) {
	o.emit(stream, events.New(events.TypeStatus, stage, sessionID, map[string]any{
		"message": message,
	}))
}

func (o *Orchestrator) emitError(stream *events.Stream, sessionID, stage, message string) {
	o.logger.Error("workflow error", "session_id", sessionID, "stage", stage, "error", message)
	o.emit(stream, events.New(events.TypeError, stage, sessionID, map[string]any{
		"message": message,
		"stage":   stage,
	}))
}

// asMap converts a JSON-marshalable value into the envelope's data
// shape.
func asMap(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}
