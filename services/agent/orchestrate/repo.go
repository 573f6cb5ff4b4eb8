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
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/atlas/pkg/validation"
	"github.com/AleutianAI/atlas/services/agent/events"
	"github.com/AleutianAI/atlas/services/agent/observability"
	"github.com/AleutianAI/atlas/services/agent/session"
	"github.com/AleutianAI/atlas/services/knowledge"
	"github.com/AleutianAI/atlas/services/knowledge/git"
	"github.com/AleutianAI/atlas/services/knowledge/store"
)

// ensureRepoLoaded makes sure the session has a working tree and a
// loaded knowledge graph. Priority: session cache, then clone (skipped
// when the tree already exists), then the store's own chain (graph
// database, file cache, regeneration).
func (o *Orchestrator) ensureRepoLoaded(ctx context.Context, sess *session.Session, repoURL string, stream *events.Stream) error {
	sess.Lock()
	loaded := sess.RepoLoaded()
	sameRepo := repoURL == "" || repoURL == sess.RepoURL
	repoPath := sess.RepoPath
	projectID := sess.ProjectID
	sess.Unlock()

	if loaded && sameRepo && !o.repoStale(repoPath) {
		return nil
	}

	if repoURL != "" {
		path, name, err := o.materializeRepo(ctx, repoURL, sess.SessionID, stream)
		if err != nil {
			return err
		}
		repoPath, projectID = path, name
		sess.Lock()
		sess.RepoURL = repoURL
		sess.RepoPath = repoPath
		sess.ProjectID = projectID
		sess.Graph = nil
		sess.Unlock()
	}

	if repoPath == "" {
		return errors.New("no repository loaded; provide a repository URL to get started")
	}

	o.emitStatus(stream, sess.SessionID, events.StagePKGLoading, "Loading project knowledge graph...")
	start := time.Now()
	var graph *knowledge.Graph
	var err error
	if o.repoStale(repoPath) {
		// The working tree changed without a new HEAD, so the
		// SHA-keyed cache cannot be trusted.
		graph, err = o.store.Regenerate(ctx, repoPath)
	} else {
		graph, err = o.store.Load(ctx, repoPath, projectID)
	}
	observability.ObservePhase(events.StagePKGLoading, start, err)
	if err != nil {
		return fmt.Errorf("building knowledge graph: %w", err)
	}
	o.clearStale(repoPath)
	o.watchRepo(repoPath)

	stats := graph.Stats()
	o.emit(stream, events.New(events.TypeLog, events.StagePKGLoading, sess.SessionID, map[string]any{
		"message": "Knowledge graph ready",
		"modules": stats.Modules,
		"symbols": stats.Symbols,
		"edges":   stats.Edges,
	}))

	sess.Lock()
	sess.Graph = graph
	sess.Touch()
	sess.Unlock()
	return nil
}

// materializeRepo clones repoURL under the clone root, reusing an
// existing tree. Concurrent sessions targeting the same repository
// serialize on a per-path lock so the clone happens once.
func (o *Orchestrator) materializeRepo(ctx context.Context, repoURL, sessionID string, stream *events.Stream) (path, name string, err error) {
	if err := validation.ValidateRepoURL(repoURL); err != nil {
		return "", "", err
	}
	name = repoName(repoURL)
	if name == "" {
		return "", "", fmt.Errorf("could not derive a repository name from %q", repoURL)
	}
	path = filepath.Join(o.cfg.CloneRoot, name)

	lock := o.cloneLock(path)
	lock.Lock()
	defer lock.Unlock()

	if git.IsRepository(path) {
		o.emit(stream, events.New(events.TypeLog, events.StageRepoLoading, sessionID, map[string]any{
			"message": "Repository already cloned",
			"path":    path,
		}))
		return path, name, nil
	}

	o.emitStatus(stream, sessionID, events.StageRepoLoading, "Cloning repository...")
	start := time.Now()
	err = o.git.Clone(ctx, repoURL, path)
	observability.ObservePhase(events.StageRepoLoading, start, err)
	if err != nil {
		return "", "", fmt.Errorf("cloning %s: %w", repoURL, err)
	}
	return path, name, nil
}

// watchRepo starts a staleness watcher for repoPath on first load.
// The watcher outlives any single request; Close stops it.
func (o *Orchestrator) watchRepo(repoPath string) {
	o.watchMu.Lock()
	defer o.watchMu.Unlock()
	if _, ok := o.watchers[repoPath]; ok {
		return
	}
	w, err := store.NewWatcher(repoPath, func() { o.markStale(repoPath) }, 0, o.logger)
	if err == nil {
		err = w.Start(context.Background())
	}
	if err != nil {
		o.logger.Warn("repository watcher unavailable",
			"repo_path", repoPath, "error", err)
		return
	}
	o.watchers[repoPath] = w
}

func (o *Orchestrator) markStale(repoPath string) {
	o.watchMu.Lock()
	defer o.watchMu.Unlock()
	o.staleRepos[repoPath] = true
}

func (o *Orchestrator) repoStale(repoPath string) bool {
	o.watchMu.Lock()
	defer o.watchMu.Unlock()
	return o.staleRepos[repoPath]
}

func (o *Orchestrator) clearStale(repoPath string) {
	o.watchMu.Lock()
	defer o.watchMu.Unlock()
	delete(o.staleRepos, repoPath)
}

// cloneLock returns the mutex guarding one clone destination.
func (o *Orchestrator) cloneLock(path string) *sync.Mutex {
	o.cloneMu.Lock()
	defer o.cloneMu.Unlock()
	if l, ok := o.cloneLocks[path]; ok {
		return l
	}
	l := &sync.Mutex{}
	o.cloneLocks[path] = l
	return l
}

// repoName extracts the repository basename from a clone URL.
func repoName(repoURL string) string {
	trimmed := strings.TrimSuffix(strings.TrimRight(repoURL, "/"), ".git")
	if i := strings.LastIndexAny(trimmed, "/:"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	return strings.TrimSpace(trimmed)
}
