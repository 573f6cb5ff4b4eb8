// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStampsEnvelope(t *testing.T) {
	ev := New(TypeStatus, StagePlanning, "sess-1", map[string]any{"message": "planning"})

	assert.Equal(t, TypeStatus, ev.Type)
	assert.Equal(t, StagePlanning, ev.Stage)
	assert.Equal(t, "sess-1", ev.SessionID)

	ts, err := time.Parse(time.RFC3339, ev.Timestamp)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), ts, 5*time.Second)
}

func TestNewNilDataBecomesEmptyMap(t *testing.T) {
	ev := New(TypeError, "", "", nil)
	require.NotNil(t, ev.Data)
	assert.Empty(t, ev.Data)
}

func TestEmitDropsLogsWhenFull(t *testing.T) {
	s := NewStream(2, nil)
	defer s.Close()

	s.Emit(New(TypeLog, StageEditing, "s", nil))
	s.Emit(New(TypeLog, StageEditing, "s", nil))
	s.Emit(New(TypeLog, StageEditing, "s", nil)) // buffer full, shed

	assert.Equal(t, 1, s.Dropped())
	assert.Len(t, s.ch, 2)
}

func TestEmitStatusBlocksUntilDrained(t *testing.T) {
	s := NewStream(1, nil)
	defer s.Close()

	s.Emit(New(TypeStatus, StageTesting, "s", nil))

	delivered := make(chan struct{})
	go func() {
		s.Emit(New(TypeSummary, StageVerification, "s", nil))
		close(delivered)
	}()

	select {
	case <-delivered:
		t.Fatal("summary event delivered before buffer drained")
	case <-time.After(20 * time.Millisecond):
	}

	first := <-s.C()
	assert.Equal(t, TypeStatus, first.Type)

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("summary event never delivered after drain")
	}
}

func TestCloseUnblocksEmit(t *testing.T) {
	s := NewStream(1, nil)
	s.Emit(New(TypeStatus, StageTesting, "s", nil))

	done := make(chan struct{})
	go func() {
		s.Emit(New(TypeSummary, StageVerification, "s", nil))
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	s.Close()
	s.Close() // idempotent

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit not unblocked by Close")
	}

	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed")
	}
}
