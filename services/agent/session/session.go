// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session holds per-conversation state: the loaded knowledge
// graph, the current intent and plan, and the approval gate. A session
// is keyed by the client-supplied session ID and lives for the length
// of the websocket connection; pending approvals additionally survive
// restarts through the badger journal.
package session

import (
	"sync"
	"time"

	"github.com/AleutianAI/atlas/services/agent/impact"
	"github.com/AleutianAI/atlas/services/agent/intent"
	"github.com/AleutianAI/atlas/services/agent/plan"
	"github.com/AleutianAI/atlas/services/knowledge"
)

// Session is the mutable state of one conversation.
//
// Thread Safety: callers hold mu around reads and writes of the
// exported fields. The orchestrator runs one request per session at a
// time, but approval messages arrive on the websocket reader goroutine
// while a workflow blocks on the gate.
type Session struct {
	mu sync.Mutex

	SessionID string
	RepoURL   string
	RepoPath  string
	ProjectID string

	Graph *knowledge.Graph

	CurrentIntent   *intent.Intent
	CurrentImpact   *impact.Result
	CurrentPlan     *plan.Plan
	PendingApproval bool

	CreatedAt  time.Time
	LastActive time.Time
}

// Lock acquires the session mutex.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session mutex.
func (s *Session) Unlock() { s.mu.Unlock() }

// Touch updates the activity timestamp. Caller holds the lock.
func (s *Session) Touch() { s.LastActive = time.Now().UTC() }

// RepoLoaded reports whether a graph is attached. Caller holds the
// lock.
func (s *Session) RepoLoaded() bool { return s.Graph != nil }

// Registry tracks live sessions by ID.
//
// Thread Safety: safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Get returns the session for id, or nil.
func (r *Registry) Get(id string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// GetOrCreate returns the session for id, creating it on first use.
func (r *Registry) GetOrCreate(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s
	}
	now := time.Now().UTC()
	s := &Session{SessionID: id, CreatedAt: now, LastActive: now}
	r.sessions[id] = s
	return s
}

// Put registers s, replacing any session with the same ID. Used when
// restoring journaled state at startup.
func (r *Registry) Put(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.SessionID] = s
}

// Remove drops the session for id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// IDs returns the live session IDs in unspecified order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}
