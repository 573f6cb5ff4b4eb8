// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/atlas/pkg/validation"
	"github.com/AleutianAI/atlas/services/agent/events"
	"github.com/AleutianAI/atlas/services/agent/observability"
	"github.com/AleutianAI/atlas/services/agent/orchestrate"
)

// WSRequest is an inbound websocket message.
type WSRequest struct {
	Type      string `json:"type"`
	Message   string `json:"message,omitempty"`
	RepoURL   string `json:"repo_url,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	PlanID    string `json:"plan_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// ConnCounter tracks live websocket connections.
type ConnCounter struct {
	n atomic.Int64
}

// Count returns the current connection count.
func (c *ConnCounter) Count() int { return int(c.n.Load()) }

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

// HandleAgentWebSocket upgrades the connection and runs the chat
// protocol: one reader loop processing requests sequentially (so
// per-session event ordering holds), one writer goroutine draining the
// session's event stream.
func HandleAgentWebSocket(o *orchestrate.Orchestrator, counter *ConnCounter, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		identity, err := o.Extensions().AuthProvider.Authenticate(
			c.Request.Context(), bearerToken(c))
		if err != nil {
			logger.Warn("websocket auth rejected", "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Error("websocket upgrade failed", "error", err)
			return
		}
		defer ws.Close()

		sessionID := c.Query("session_id")
		if sessionID == "" || validation.ValidateSessionID(sessionID) != nil {
			sessionID = uuid.New().String()
		}
		logger.Info("websocket session connected",
			"session_id", sessionID, "user", identity.UserID)

		counter.n.Add(1)
		if m := observability.DefaultMetrics; m != nil {
			m.ActiveSessions.Inc()
		}
		defer func() {
			counter.n.Add(-1)
			if m := observability.DefaultMetrics; m != nil {
				m.ActiveSessions.Dec()
			}
		}()

		// Client disconnect cancels any in-flight workflow.
		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		stream := events.NewStream(0, logger)
		defer stream.Close()

		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			for {
				select {
				case ev := <-stream.C():
					if err := ws.WriteJSON(ev); err != nil {
						logger.Warn("websocket write failed",
							"session_id", sessionID, "error", err)
						cancel()
						return
					}
				case <-stream.Done():
					return
				}
			}
		}()

		stream.Emit(events.New(events.TypeConnected, "", sessionID, map[string]any{
			"session_id": sessionID,
			"status":     "connected",
			"message":    "Connected. Send a message to get started.",
		}))

		for {
			var req WSRequest
			if err := ws.ReadJSON(&req); err != nil {
				logger.Info("websocket session disconnected",
					"session_id", sessionID, "error", err.Error())
				break
			}
			sid := req.SessionID
			if sid == "" {
				sid = sessionID
			}

			switch req.Type {
			case "chat_message", "":
				if strings.TrimSpace(req.Message) == "" {
					stream.Emit(events.New(events.TypeError, "", sid, map[string]any{
						"message": "Message cannot be empty",
						"code":    "validation_error",
					}))
					continue
				}
				o.ProcessUserRequest(ctx, sid, req.Message, req.RepoURL, stream)

			case "approve_plan":
				// Errors surface on the stream inside the orchestrator.
				_ = o.ApprovePlan(ctx, sid, req.PlanID, stream)

			case "reject_plan":
				_ = o.RejectPlan(ctx, sid, req.PlanID, req.Reason, stream)

			default:
				stream.Emit(events.New(events.TypeError, "", sid, map[string]any{
					"message": "Unknown message type: " + req.Type,
				}))
			}
		}

		cancel()
		stream.Close()
		<-writerDone
	}
}

// bearerToken pulls the credential from the Authorization header or,
// for browser websocket clients that cannot set headers, the token
// query parameter.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return c.Query("token")
}
