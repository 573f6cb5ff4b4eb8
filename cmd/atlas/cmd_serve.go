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
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/atlas/pkg/logging"
	"github.com/AleutianAI/atlas/services/agent/config"
	"github.com/AleutianAI/atlas/services/agent/server"
)

func runServe(cmd *cobra.Command, args []string) {
	var (
		cfg config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.FromFile(configFile)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if debugMode {
		cfg.Debug = true
	}

	level := logging.LevelInfo
	if cfg.Debug {
		level = logging.LevelDebug
	}
	logger := logging.New(logging.Config{Level: level, Service: "agent"})
	defer logger.Close()

	// SIGINT/SIGTERM trigger graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(ctx, cfg, logger.Slog())
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
