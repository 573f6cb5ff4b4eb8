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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/atlas/services/agent/config"
	"github.com/AleutianAI/atlas/services/agent/events"
	"github.com/AleutianAI/atlas/services/agent/plan"
	"github.com/AleutianAI/atlas/services/agent/session"
	"github.com/AleutianAI/atlas/services/knowledge"
	"github.com/AleutianAI/atlas/services/knowledge/store"
)

// stubBuilder satisfies store.Generator with a fixed two-module graph.
type stubBuilder struct{}

func (stubBuilder) Build(_ context.Context, root string) (*knowledge.Graph, error) {
	return &knowledge.Graph{
		Version: "1.0",
		Project: knowledge.Project{ID: "demo", Name: "demo", RootPath: root},
		Modules: []knowledge.Module{
			{ID: "mod:app.py", Path: "app.py", Kinds: []string{"entry"}},
			{ID: "mod:util.py", Path: "util.py"},
		},
	}, nil
}

func planFixture(planID string) plan.Plan {
	return plan.Plan{
		PlanID: planID,
		Tasks:  []plan.Task{{TaskID: 1, Task: "apply the change"}},
	}
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Port:             8080,
		ApprovalRequired: true,
		TestTimeout:      5 * time.Second,
		FanThreshold:     3,
		CloneRoot:        t.TempDir(),
		JournalPath:      t.TempDir(),
		Git:              config.GitConfig{UserName: "Agent", UserEmail: "agent@example.com"},
	}
}

func newTestOrchestrator(t *testing.T, cfg config.Config) (*Orchestrator, *session.Journal) {
	t.Helper()
	journal, err := session.OpenInMemoryJournal(nil)
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	mgr := store.NewManager(nil, store.NewFileCache(), stubBuilder{}, nil)
	return New(cfg, nil, mgr, nil, journal, nil), journal
}

// seedRepo attaches a working tree to the session so turns do not need
// a clone URL.
func seedRepo(t *testing.T, o *Orchestrator, sessionID string) string {
	t.Helper()
	dir := t.TempDir()
	sess := o.Sessions().GetOrCreate(sessionID)
	sess.Lock()
	sess.RepoPath = dir
	sess.ProjectID = "demo"
	sess.Unlock()
	return dir
}

// drain collects everything buffered on the stream.
func drain(s *events.Stream) []events.Envelope {
	var out []events.Envelope
	for {
		select {
		case ev := <-s.C():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func eventTypes(evs []events.Envelope) []events.Type {
	types := make([]events.Type, len(evs))
	for i, ev := range evs {
		types[i] = ev.Type
	}
	return types
}

func firstOfType(evs []events.Envelope, t events.Type) *events.Envelope {
	for i := range evs {
		if evs[i].Type == t {
			return &evs[i]
		}
	}
	return nil
}

func TestInformationalQueryEmitsQueryResponse(t *testing.T) {
	o, _ := newTestOrchestrator(t, testConfig(t))
	seedRepo(t, o, "s1")
	stream := events.NewStream(256, nil)
	defer stream.Close()

	o.ProcessUserRequest(context.Background(), "s1", "what is the entry point of this project?", "", stream)

	evs := drain(stream)
	resp := firstOfType(evs, events.TypeQueryResponse)
	require.NotNil(t, resp, "expected a query_response, got %v", eventTypes(evs))
	assert.Equal(t, events.StageQueryHandling, resp.Stage)
	assert.Equal(t, "s1", resp.SessionID)
	assert.NotEmpty(t, resp.Data["answer"])
	assert.Nil(t, firstOfType(evs, events.TypeError))
}

func TestMissingRepoEmitsError(t *testing.T) {
	o, _ := newTestOrchestrator(t, testConfig(t))
	stream := events.NewStream(256, nil)
	defer stream.Close()

	o.ProcessUserRequest(context.Background(), "s1", "what does this do?", "", stream)

	errEv := firstOfType(drain(stream), events.TypeError)
	require.NotNil(t, errEv)
	assert.Contains(t, errEv.Data["message"], "no repository loaded")
}

func TestCodeChangeBlocksOnApprovalGate(t *testing.T) {
	o, journal := newTestOrchestrator(t, testConfig(t))
	seedRepo(t, o, "s1")
	stream := events.NewStream(256, nil)
	defer stream.Close()

	o.ProcessUserRequest(context.Background(), "s1", "add a logout button to the navbar", "", stream)

	evs := drain(stream)
	req := firstOfType(evs, events.TypeApprovalRequest)
	require.NotNil(t, req, "expected an approval_request, got %v", eventTypes(evs))
	assert.NotEmpty(t, req.Data["plan_id"])

	// The gate precedes any code change: nothing may be edited yet.
	assert.Nil(t, firstOfType(evs, events.TypeCodeChange))

	sess := o.Sessions().Get("s1")
	sess.Lock()
	assert.True(t, sess.PendingApproval)
	require.NotNil(t, sess.CurrentPlan)
	planID := sess.CurrentPlan.PlanID
	sess.Unlock()

	rec, err := journal.LoadApproval("s1")
	require.NoError(t, err)
	assert.Equal(t, planID, rec.Plan.PlanID)
}

func TestApprovalPrecedesCodeChanges(t *testing.T) {
	o, _ := newTestOrchestrator(t, testConfig(t))
	seedRepo(t, o, "s1")
	stream := events.NewStream(256, nil)
	defer stream.Close()

	ctx := context.Background()
	o.ProcessUserRequest(ctx, "s1", "rename the util module", "", stream)
	require.NoError(t, o.ApprovePlan(ctx, "s1", "", stream))

	evs := drain(stream)
	approvalIdx, changeIdx, summaryIdx := -1, -1, -1
	for i, ev := range evs {
		switch ev.Type {
		case events.TypeApprovalRequest:
			if approvalIdx < 0 {
				approvalIdx = i
			}
		case events.TypeCodeChange:
			if changeIdx < 0 {
				changeIdx = i
			}
		case events.TypeSummary:
			summaryIdx = i
		}
	}

	require.GreaterOrEqual(t, approvalIdx, 0)
	require.GreaterOrEqual(t, summaryIdx, 0, "workflow should end with a summary, got %v", eventTypes(evs))
	assert.Greater(t, summaryIdx, approvalIdx)
	if changeIdx >= 0 {
		assert.Greater(t, changeIdx, approvalIdx)
	}

	sess := o.Sessions().Get("s1")
	sess.Lock()
	assert.False(t, sess.PendingApproval)
	sess.Unlock()
}

func TestApproveUnknownSession(t *testing.T) {
	o, _ := newTestOrchestrator(t, testConfig(t))
	stream := events.NewStream(256, nil)
	defer stream.Close()

	err := o.ApprovePlan(context.Background(), "ghost", "", stream)
	assert.ErrorIs(t, err, ErrUnknownSession)
	assert.NotNil(t, firstOfType(drain(stream), events.TypeError))
}

func TestApproveWrongPlanID(t *testing.T) {
	o, _ := newTestOrchestrator(t, testConfig(t))
	seedRepo(t, o, "s1")
	stream := events.NewStream(256, nil)
	defer stream.Close()

	ctx := context.Background()
	o.ProcessUserRequest(ctx, "s1", "add retry logic to the fetcher", "", stream)
	drain(stream)

	err := o.ApprovePlan(ctx, "s1", "plan-does-not-exist", stream)
	assert.Error(t, err)

	sess := o.Sessions().Get("s1")
	sess.Lock()
	assert.True(t, sess.PendingApproval, "a mismatched plan ID must not clear the gate")
	sess.Unlock()
}

func TestRejectPlanReturnsToIdle(t *testing.T) {
	o, journal := newTestOrchestrator(t, testConfig(t))
	seedRepo(t, o, "s1")
	stream := events.NewStream(256, nil)
	defer stream.Close()

	ctx := context.Background()
	o.ProcessUserRequest(ctx, "s1", "delete the legacy endpoints", "", stream)
	drain(stream)

	require.NoError(t, o.RejectPlan(ctx, "s1", "", "too risky", stream))

	evs := drain(stream)
	status := firstOfType(evs, events.TypeStatus)
	require.NotNil(t, status)
	assert.Contains(t, status.Data["message"], "rejected")
	assert.Equal(t, "too risky", status.Data["reason"])
	assert.Nil(t, firstOfType(evs, events.TypeCodeChange))

	sess := o.Sessions().Get("s1")
	sess.Lock()
	assert.False(t, sess.PendingApproval)
	sess.Unlock()

	_, err := journal.LoadApproval("s1")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestApprovalGateOffSkipsRequest(t *testing.T) {
	cfg := testConfig(t)
	cfg.ApprovalRequired = false
	o, _ := newTestOrchestrator(t, cfg)
	seedRepo(t, o, "s1")
	stream := events.NewStream(256, nil)
	defer stream.Close()

	// A small change with low risk passes the gate directly. The
	// fallback plan targets nothing, so no approval triggers fire.
	o.ProcessUserRequest(context.Background(), "s1", "tidy the readme", "", stream)

	evs := drain(stream)
	assert.Nil(t, firstOfType(evs, events.TypeApprovalRequest), "got %v", eventTypes(evs))
	assert.NotNil(t, firstOfType(evs, events.TypeSummary))
}

func TestRestorePendingSessions(t *testing.T) {
	journal, err := session.OpenInMemoryJournal(nil)
	require.NoError(t, err)
	defer journal.Close()

	require.NoError(t, journal.SaveApproval(session.ApprovalRecord{
		SessionID: "s1",
		RepoPath:  "/tmp/demo",
		Plan:      planFixture("plan-1"),
	}))

	mgr := store.NewManager(nil, store.NewFileCache(), stubBuilder{}, nil)
	o := New(testConfig(t), nil, mgr, nil, journal, nil)

	assert.Equal(t, 1, o.RestorePendingSessions())

	sess := o.Sessions().Get("s1")
	require.NotNil(t, sess)
	sess.Lock()
	assert.True(t, sess.PendingApproval)
	assert.Equal(t, "plan-1", sess.CurrentPlan.PlanID)
	assert.Equal(t, "/tmp/demo", sess.RepoPath)
	sess.Unlock()
}

func TestRepoName(t *testing.T) {
	cases := map[string]string{
		"https://github.com/octocat/hello.git": "hello",
		"https://github.com/octocat/hello":     "hello",
		"git@github.com:octocat/hello.git":     "hello",
		"https://github.com/octocat/hello/":    "hello",
	}
	for url, want := range cases {
		assert.Equal(t, want, repoName(url), url)
	}
}

func TestStaleWorkingTreeReloadsGraph(t *testing.T) {
	o, _ := newTestOrchestrator(t, testConfig(t))
	t.Cleanup(o.Close)
	dir := seedRepo(t, o, "s-stale")
	sess := o.Sessions().Get("s-stale")
	stream := events.NewStream(256, nil)

	require.NoError(t, o.ensureRepoLoaded(context.Background(), sess, "", stream))
	sess.Lock()
	first := sess.Graph
	sess.Unlock()
	require.NotNil(t, first)

	// An unchanged tree keeps the session copy.
	require.NoError(t, o.ensureRepoLoaded(context.Background(), sess, "", stream))
	sess.Lock()
	assert.Same(t, first, sess.Graph)
	sess.Unlock()

	// A source change marks the tree dirty and forces a rebuild even
	// though HEAD (and therefore the file cache key) is unchanged.
	o.markStale(dir)
	require.NoError(t, o.ensureRepoLoaded(context.Background(), sess, "", stream))
	sess.Lock()
	assert.NotSame(t, first, sess.Graph)
	sess.Unlock()
	assert.False(t, o.repoStale(dir))
}
