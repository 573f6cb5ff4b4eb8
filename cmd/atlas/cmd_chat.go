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
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/atlas/pkg/ux"
)

// wsRequest is the client side of the agent websocket protocol.
type wsRequest struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	RepoURL string `json:"repo_url,omitempty"`
	PlanID  string `json:"plan_id,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func runChatCommand(cmd *cobra.Command, args []string) {
	base := serverURL
	if base == "" {
		base = os.Getenv("ATLAS_SERVER_URL")
	}
	if base == "" {
		base = "http://localhost:8080"
	}

	wsURL, err := agentWSURL(base, resumeSession)
	if err != nil {
		log.Fatalf("Invalid server URL: %v", err)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatalf("Could not connect to %s: %v", wsURL, err)
	}
	defer conn.Close()
	if resp != nil {
		defer resp.Body.Close()
	}

	renderer := ux.NewEventRenderer()
	reader := ux.NewInteractiveInputReader(50)

	// First event is the connection acknowledgement.
	var connected ux.AgentEvent
	if err := conn.ReadJSON(&connected); err != nil {
		log.Fatalf("Handshake failed: %v", err)
	}
	renderer.Render(connected)

	ux.Title("Atlas agent chat")
	ux.Muted("Type a request, /repo <url> to target a repository, or exit to quit.")

	var repoURL string
	for {
		if p, ok := reader.(ux.PromptingInputReader); ok {
			p.SetPrompt("atlas> ")
		} else {
			fmt.Print("atlas> ")
		}

		line, err := reader.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("Input error: %v", err)
		}

		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit":
			return
		case strings.HasPrefix(line, "/repo "):
			repoURL = strings.TrimSpace(strings.TrimPrefix(line, "/repo "))
			ux.Success("Repository set: " + repoURL)
			continue
		}

		req := wsRequest{Type: "chat_message", Message: line, RepoURL: repoURL}
		repoURL = "" // the server remembers the repo per session
		if err := conn.WriteJSON(req); err != nil {
			log.Fatalf("Send failed: %v", err)
		}

		if err := consumeTurn(conn, renderer, reader); err != nil {
			log.Fatalf("Connection lost: %v", err)
		}
	}
}

// consumeTurn renders events until the server finishes the current
// request. Approval requests are answered inline and the turn
// continues with the execution (or rejection acknowledgement).
func consumeTurn(conn *websocket.Conn, renderer *ux.EventRenderer, reader ux.InputReader) error {
	rejected := false
	for {
		var ev ux.AgentEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return err
		}
		renderer.Render(ev)

		switch ev.Type {
		case "query_response", "diagram_response", "summary", "error":
			return nil

		case "status":
			// The rejection acknowledgement closes the turn; it is the
			// only approval-stage status that carries the plan ID.
			if rejected && ev.Stage == "approval" {
				if _, ok := ev.Data["plan_id"]; ok {
					return nil
				}
			}

		case "approval_request":
			planID, _ := ev.Data["plan_id"].(string)
			approved, err := ux.Confirm("Apply this plan?", reader)
			if err != nil {
				return err
			}
			if approved {
				if err := conn.WriteJSON(wsRequest{Type: "approve_plan", PlanID: planID}); err != nil {
					return err
				}
			} else {
				rejected = true
				if err := conn.WriteJSON(wsRequest{Type: "reject_plan", PlanID: planID}); err != nil {
					return err
				}
			}
		}
	}
}

// agentWSURL converts an http(s) base URL into the agent websocket
// endpoint.
func agentWSURL(base, sessionID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/agent/ws"
	if sessionID != "" {
		q := u.Query()
		q.Set("session_id", sessionID)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
