// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/atlas/pkg/logging"
	"github.com/AleutianAI/atlas/pkg/ux"
	"github.com/AleutianAI/atlas/services/agent/answer"
	"github.com/AleutianAI/atlas/services/agent/intent"
	"github.com/AleutianAI/atlas/services/knowledge"
	"github.com/AleutianAI/atlas/services/knowledge/build"
	"github.com/AleutianAI/atlas/services/knowledge/query"
	"github.com/AleutianAI/atlas/services/knowledge/store"
	"github.com/AleutianAI/atlas/services/llm"
)

func runGenerate(cmd *cobra.Command, args []string) {
	repoPath, err := filepath.Abs(args[0])
	if err != nil {
		log.Fatalf("Invalid path: %v", err)
	}

	ctx := context.Background()
	builder := build.New(build.Options{FanThreshold: fanThreshold})

	var graph *knowledge.Graph
	err = ux.WithSpinner("Building knowledge graph", func() error {
		var buildErr error
		graph, buildErr = builder.Build(ctx, repoPath)
		return buildErr
	})
	if err != nil {
		log.Fatalf("Graph generation failed: %v", err)
	}

	cache := store.NewFileCache()
	if err := cache.Save(ctx, repoPath, graph); err != nil {
		log.Fatalf("Could not write graph cache: %v", err)
	}

	stats := graph.Stats()
	ux.Info(fmt.Sprintf("Modules: %d  Symbols: %d  Endpoints: %d  Edges: %d  Features: %d",
		stats.Modules, stats.Symbols, stats.Endpoints, stats.Edges, stats.Features))
	ux.Success("Graph cached at " + cache.Path(repoPath))
}

func runQuery(cmd *cobra.Command, args []string) {
	repoPath, err := filepath.Abs(args[0])
	if err != nil {
		log.Fatalf("Invalid path: %v", err)
	}
	question := strings.Join(args[1:], " ")

	ctx := context.Background()
	logger := logging.New(logging.Config{Level: logging.LevelWarn, Service: "cli"})
	defer logger.Close()

	client, err := llm.NewFromEnv()
	if err != nil {
		ux.Warning("LLM unavailable, using deterministic answers: " + err.Error())
		client = nil
	}

	graph, err := loadGraph(ctx, repoPath)
	if err != nil {
		log.Fatalf("Could not load knowledge graph: %v", err)
	}

	in := intent.NewRouter(client, logger.Slog()).Extract(ctx, question)
	engine := query.New(graph, nil, logger.Slog())
	resp := answer.NewHandler(engine, client, logger.Slog()).Answer(ctx, question, in)

	fmt.Printf("\n%s\n", resp.Answer)
	if len(resp.References) > 0 {
		fmt.Println()
		ux.Muted("References:")
		for i, ref := range resp.References {
			fmt.Printf("%d. %s (%s)\n", i+1, ref.Name, ref.Type)
		}
	}
}

// loadGraph uses the store chain (cache then regeneration) unless the
// user asked for a fresh build.
func loadGraph(ctx context.Context, repoPath string) (*knowledge.Graph, error) {
	builder := build.New(build.Options{FanThreshold: fanThreshold})

	if noCache {
		graph, err := builder.Build(ctx, repoPath)
		if err != nil {
			return nil, err
		}
		if err := store.NewFileCache().Save(ctx, repoPath, graph); err != nil {
			ux.Warning("Could not refresh graph cache: " + err.Error())
		}
		return graph, nil
	}

	manager := store.NewManager(nil, store.NewFileCache(), builder, nil)
	return manager.Load(ctx, repoPath, filepath.Base(repoPath))
}
