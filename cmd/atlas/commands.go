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
	"github.com/spf13/cobra"

	"github.com/AleutianAI/atlas/pkg/ux"
)

// --- Global Command Variables ---
var (
	configFile       string
	debugMode        bool
	personalityLevel string // output style (full/minimal/machine)
	fanThreshold     int
	noCache          bool
	serverURL        string
	resumeSession    string

	rootCmd = &cobra.Command{
		Use:   "atlas",
		Short: "A cli to run and talk to the Atlas code agent",
		Long: `Atlas builds a knowledge graph of a codebase and uses it to
				answer questions, draw diagrams, and make reviewed code changes.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if personalityLevel != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
			} else {
				ux.InitPersonality()
			}
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the agent server (HTTP + WebSocket)",
		Run:   runServe, // Defined in cmd_serve.go
	}

	generateCmd = &cobra.Command{
		Use:   "generate [repo_path]",
		Short: "Build the knowledge graph for a repository and cache it",
		Args:  cobra.ExactArgs(1),
		Run:   runGenerate, // Defined in cmd_graph.go
	}

	queryCmd = &cobra.Command{
		Use:   "query [repo_path] [question]",
		Short: "Ask a question about a repository using its knowledge graph",
		Args:  cobra.MinimumNArgs(2),
		Run:   runQuery, // Defined in cmd_graph.go
	}

	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Starts an interactive session with a running agent server",
		Run:   runChatCommand, // Defined in cmd_chat.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output style: full (default), minimal, or machine (scripting)")

	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to a YAML config file (overrides environment)")
	serveCmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging and gin debug mode")

	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().IntVar(&fanThreshold, "fan-threshold", 3, "Fan-in/fan-out threshold for hub module detection")

	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().IntVar(&fanThreshold, "fan-threshold", 3, "Fan-in/fan-out threshold for hub module detection")
	queryCmd.Flags().BoolVar(&noCache, "no-cache", false, "Rebuild the graph instead of using the cached copy")

	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&serverURL, "server", "", "Agent server base URL (default http://localhost:8080 or ATLAS_SERVER_URL)")
	chatCmd.Flags().StringVar(&resumeSession, "resume", "", "Resume a session using a specific session ID")
}
