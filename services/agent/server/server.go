// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server assembles and runs the agent service: LLM client,
// graph store, session journal, orchestrator, and the HTTP/WebSocket
// surface, with OTLP tracing and graceful shutdown.
//
// Every optional backend degrades instead of failing: no LLM means
// deterministic fallbacks, no Neo4j means in-memory queries, no
// journal means approvals do not survive restarts. The only fatal
// startup error is not being able to bind the port.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/atlas/pkg/extensions"
	"github.com/AleutianAI/atlas/services/agent/config"
	"github.com/AleutianAI/atlas/services/agent/handlers"
	"github.com/AleutianAI/atlas/services/agent/observability"
	"github.com/AleutianAI/atlas/services/agent/orchestrate"
	"github.com/AleutianAI/atlas/services/agent/session"
	"github.com/AleutianAI/atlas/services/docproc"
	"github.com/AleutianAI/atlas/services/knowledge/build"
	"github.com/AleutianAI/atlas/services/knowledge/query"
	"github.com/AleutianAI/atlas/services/knowledge/store"
	"github.com/AleutianAI/atlas/services/llm"
)

// serviceName identifies this process in traces and spans.
const serviceName = "atlas-agent"

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// Server is the assembled agent service.
type Server struct {
	cfg          config.Config
	router       *gin.Engine
	orchestrator *orchestrate.Orchestrator
	journal      *session.Journal
	graphStore   *store.GraphStore
	counter      *handlers.ConnCounter
	logger       *slog.Logger
}

// New wires a Server from configuration. Optional backends that fail
// to come up are logged and skipped.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	observability.InitMetrics()

	client, err := llm.NewFromEnv()
	if err != nil {
		logger.Warn("LLM client unavailable, using deterministic fallbacks", "error", err)
		client = nil
	}

	var (
		graphStore *store.GraphStore
		db         store.GraphDB
		backend    query.Backend
	)
	if cfg.GraphDBConfigured() {
		graphStore, err = store.Open(ctx, store.Config{
			URI:        cfg.Neo4j.URI,
			User:       cfg.Neo4j.User,
			Password:   cfg.Neo4j.Password,
			Database:   cfg.Neo4j.Database,
			MaxRetries: cfg.Neo4j.MaxRetries,
			RetryDelay: cfg.Neo4j.RetryDelay,
			BatchSize:  cfg.Neo4j.BatchSize,
		}, logger)
		if err != nil {
			logger.Warn("graph database unavailable, queries run in memory", "error", err)
			graphStore = nil
		} else {
			db = graphStore
			backend = query.NewDBEngine(graphStore.Driver(), graphStore.Database(), logger)
		}
	}

	builder := build.New(build.Options{FanThreshold: cfg.FanThreshold})
	manager := store.NewManager(db, store.NewFileCache(), builder, logger)

	journal, err := session.OpenJournal(cfg.JournalPath, logger)
	if err != nil {
		logger.Warn("session journal unavailable, approvals will not survive restarts", "error", err)
		journal = nil
	}

	orchestrator := orchestrate.New(cfg, client, manager, backend, journal, logger)
	if cfg.Debug {
		orchestrator.SetExtensions(extensions.DefaultOptions().
			WithAudit(&extensions.SlogAuditLogger{Logger: logger}))
	}
	if restored := orchestrator.RestorePendingSessions(); restored > 0 {
		logger.Info("restored pending approvals from journal", "count", restored)
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))

	counter := &handlers.ConnCounter{}
	SetupRoutes(router, orchestrator, counter, docproc.New(logger), logger)

	return &Server{
		cfg:          cfg,
		router:       router,
		orchestrator: orchestrator,
		journal:      journal,
		graphStore:   graphStore,
		counter:      counter,
		logger:       logger,
	}
}

// Router exposes the engine for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	cleanup, err := initTracer(ctx)
	if err != nil {
		s.logger.Warn("tracing disabled", "error", err)
	} else {
		defer cleanup(context.Background())
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("agent server listening", "port", s.cfg.Port)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown incomplete", "error", err)
		}
	}

	s.orchestrator.Close()
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			s.logger.Warn("journal close failed", "error", err)
		}
	}
	if s.graphStore != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.graphStore.Close(closeCtx); err != nil {
			s.logger.Warn("graph store close failed", "error", err)
		}
	}
	return nil
}
