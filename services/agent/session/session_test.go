// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/atlas/services/agent/impact"
	"github.com/AleutianAI/atlas/services/agent/intent"
	"github.com/AleutianAI/atlas/services/agent/plan"
)

func TestRegistryGetOrCreate(t *testing.T) {
	r := NewRegistry()

	s1 := r.GetOrCreate("sess-1")
	require.NotNil(t, s1)
	assert.Equal(t, "sess-1", s1.SessionID)
	assert.False(t, s1.CreatedAt.IsZero())

	s2 := r.GetOrCreate("sess-1")
	assert.Same(t, s1, s2)
	assert.Equal(t, 1, r.Count())
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	r.GetOrCreate("sess-1")
	r.GetOrCreate("sess-2")

	r.Remove("sess-1")
	assert.Nil(t, r.Get("sess-1"))
	assert.Equal(t, 1, r.Count())
	assert.Equal(t, []string{"sess-2"}, r.IDs())
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := r.GetOrCreate("shared")
			s.Lock()
			s.Touch()
			s.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, r.Count())
}

func sampleRecord(sessionID string, at time.Time) ApprovalRecord {
	return ApprovalRecord{
		SessionID: sessionID,
		RepoURL:   "https://github.com/octocat/hello.git",
		RepoPath:  "./cloned_repos/hello",
		Intent:    intent.Intent{Category: intent.CategoryCodeChange, Description: "Add logout"},
		Impact:    impact.Result{FileCount: 2, RequiresApproval: true},
		Plan:      plan.Plan{PlanID: "plan-" + sessionID, Tasks: []plan.Task{{TaskID: 1, Task: "edit navbar"}}},
		CreatedAt: at,
	}
}

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := OpenInMemoryJournal(nil)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalRoundTrip(t *testing.T) {
	j := openTestJournal(t)

	rec := sampleRecord("sess-1", time.Now().UTC())
	require.NoError(t, j.SaveApproval(rec))

	got, err := j.LoadApproval("sess-1")
	require.NoError(t, err)
	assert.Equal(t, rec.Plan.PlanID, got.Plan.PlanID)
	assert.Equal(t, rec.Intent.Description, got.Intent.Description)
	assert.True(t, got.Impact.RequiresApproval)
}

func TestJournalLoadMissing(t *testing.T) {
	j := openTestJournal(t)

	_, err := j.LoadApproval("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJournalDeleteIsIdempotent(t *testing.T) {
	j := openTestJournal(t)

	require.NoError(t, j.SaveApproval(sampleRecord("sess-1", time.Now().UTC())))
	require.NoError(t, j.DeleteApproval("sess-1"))
	require.NoError(t, j.DeleteApproval("sess-1"))

	_, err := j.LoadApproval("sess-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJournalSaveRequiresSessionID(t *testing.T) {
	j := openTestJournal(t)
	assert.Error(t, j.SaveApproval(ApprovalRecord{}))
}

func TestJournalPendingApprovalsOrdered(t *testing.T) {
	j := openTestJournal(t)
	now := time.Now().UTC()

	require.NoError(t, j.SaveApproval(sampleRecord("late", now)))
	require.NoError(t, j.SaveApproval(sampleRecord("early", now.Add(-time.Hour))))

	recs, err := j.PendingApprovals()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "early", recs[0].SessionID)
	assert.Equal(t, "late", recs[1].SessionID)
}

func TestJournalPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	j, err := OpenJournal(dir, nil)
	require.NoError(t, err)
	require.NoError(t, j.SaveApproval(sampleRecord("sess-1", time.Now().UTC())))
	require.NoError(t, j.Close())

	j2, err := OpenJournal(dir, nil)
	require.NoError(t, err)
	defer j2.Close()

	got, err := j2.LoadApproval("sess-1")
	require.NoError(t, err)
	assert.Equal(t, "plan-sess-1", got.Plan.PlanID)
}
