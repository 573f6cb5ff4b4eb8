// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists and loads knowledge graphs.
//
// Two backends cooperate:
//   - A file cache at <repoPath>/pkg.json, validated against the
//     repository's HEAD commit.
//   - A Neo4j property graph, keyed by project ID, with batched
//     upserts and full-document reconstruction on load.
//
// # Design Principles
//
// The graph is always rebuildable from source. Both backends are
// accelerators, never sources of truth: a missing, stale, or
// unreachable backend degrades to regeneration, not to failure.
//
// # Thread Safety
//
// Manager and GraphStore are safe for concurrent use. FileCache
// writes are atomic (temp file + rename) so concurrent readers never
// observe a torn document.
package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/AleutianAI/atlas/services/knowledge"
	"github.com/AleutianAI/atlas/services/knowledge/git"
)

// Sentinel errors for cache and store operations.
var (
	// ErrCacheMiss is returned when no cached document exists.
	ErrCacheMiss = errors.New("store: cache miss")

	// ErrCacheStale is returned when a cached document exists but its
	// git SHA no longer matches the working tree.
	ErrCacheStale = errors.New("store: cache stale")

	// ErrNotStored is returned when the graph database has no document
	// for the requested project.
	ErrNotStored = errors.New("store: project not stored")

	// ErrUnavailable is returned when the graph database cannot be
	// reached.
	ErrUnavailable = errors.New("store: graph database unavailable")
)

// GraphDB is the graph-database surface the Manager depends on.
// *GraphStore implements it; tests substitute fakes.
type GraphDB interface {
	// CheckStored reports whether a document exists for the project.
	CheckStored(ctx context.Context, projectID string) bool

	// Load reconstructs the full document for the project.
	Load(ctx context.Context, projectID string) (*knowledge.Graph, error)

	// Store upserts the document into the database.
	Store(ctx context.Context, graph *knowledge.Graph) error
}

// Generator produces a fresh graph from a repository tree. The build
// package's Builder satisfies it.
type Generator interface {
	Build(ctx context.Context, root string) (*knowledge.Graph, error)
}

// Manager loads graphs with a fixed priority: graph database, file
// cache, regeneration. Whichever source produces the document, the
// others are refreshed from it where that makes sense (a regenerated
// graph is written to both; a database hit refreshes nothing).
type Manager struct {
	db      GraphDB // nil when no database is configured
	cache   *FileCache
	builder Generator
	logger  *slog.Logger
}

// NewManager wires a Manager. db may be nil; logger may be nil for
// slog.Default().
func NewManager(db GraphDB, cache *FileCache, builder Generator, logger *slog.Logger) *Manager {
	if cache == nil {
		cache = NewFileCache()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{db: db, cache: cache, builder: builder, logger: logger}
}

// LoadByProject loads a document for a project known to the graph
// database, without touching the filesystem. Returns ErrNotStored
// when the database has no document (or none is configured).
func (m *Manager) LoadByProject(ctx context.Context, projectID string) (*knowledge.Graph, error) {
	if m.db == nil || projectID == "" {
		return nil, ErrNotStored
	}
	if !m.db.CheckStored(ctx, projectID) {
		return nil, ErrNotStored
	}
	graph, err := m.db.Load(ctx, projectID)
	if err != nil {
		m.logger.Warn("graph database load failed",
			"project_id", projectID, "error", err)
		return nil, err
	}
	m.logger.Info("knowledge graph loaded from database",
		"project_id", projectID,
		"modules", len(graph.Modules),
		"symbols", len(graph.Symbols))
	return graph, nil
}

// Load produces the document for the repository at repoPath: graph
// database first (when projectID is known there), then the file
// cache, then regeneration. A regenerated document is written back to
// the cache and, when configured, the database; write-back failures
// are logged, never returned.
func (m *Manager) Load(ctx context.Context, repoPath, projectID string) (*knowledge.Graph, error) {
	if graph, err := m.LoadByProject(ctx, projectID); err == nil {
		return graph, nil
	}

	if graph, err := m.cache.Load(ctx, repoPath); err == nil {
		m.logger.Info("knowledge graph loaded from file cache",
			"repo_path", repoPath, "modules", len(graph.Modules))
		return graph, nil
	} else if !errors.Is(err, ErrCacheMiss) && !errors.Is(err, ErrCacheStale) {
		m.logger.Warn("file cache read failed, regenerating",
			"repo_path", repoPath, "error", err)
	}

	return m.Regenerate(ctx, repoPath)
}

// Regenerate builds a fresh document and writes it to every
// configured backend.
func (m *Manager) Regenerate(ctx context.Context, repoPath string) (*knowledge.Graph, error) {
	m.logger.Info("generating knowledge graph", "repo_path", repoPath)
	graph, err := m.builder.Build(ctx, repoPath)
	if err != nil {
		return nil, err
	}
	m.logger.Info("knowledge graph generated",
		"repo_path", repoPath,
		"modules", len(graph.Modules),
		"symbols", len(graph.Symbols),
		"edges", len(graph.Edges))

	if err := m.cache.Save(ctx, repoPath, graph); err != nil {
		m.logger.Warn("file cache write failed",
			"repo_path", repoPath, "error", err)
	}
	if m.db != nil {
		if err := m.db.Store(ctx, graph); err != nil {
			m.logger.Warn("graph database write failed",
				"project_id", graph.Project.ID, "error", err)
		}
	}
	return graph, nil
}

// Fresh reports whether a cached document is still current for the
// working tree: its recorded SHA must equal HEAD. Documents without a
// SHA (not a git tree at build time) are never fresh.
func Fresh(ctx context.Context, repoPath string, graph *knowledge.Graph) bool {
	if graph == nil || graph.GitSHA == "" {
		return false
	}
	sha, err := git.HeadSHA(ctx, repoPath)
	if err != nil {
		return false
	}
	return sha == graph.GitSHA
}
