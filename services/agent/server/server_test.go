// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/atlas/services/agent/config"
	"github.com/AleutianAI/atlas/services/agent/events"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Config{
		Port:             8080,
		ApprovalRequired: true,
		TestTimeout:      5 * time.Second,
		FanThreshold:     3,
		CloneRoot:        t.TempDir(),
		JournalPath:      t.TempDir(),
		Git:              config.GitConfig{UserName: "Agent", UserEmail: "agent@example.com"},
	}
	return New(context.Background(), cfg, nil)
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["websocket_enabled"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestWSStatusEndpoint(t *testing.T) {
	s := testServer(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(0), body["active_sessions"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := testServer(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "atlas_agent")
}

func TestWebSocketConnectAndValidation(t *testing.T) {
	s := testServer(t)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/agent/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	var connected events.Envelope
	require.NoError(t, conn.ReadJSON(&connected))
	assert.Equal(t, events.TypeConnected, connected.Type)
	assert.Equal(t, "connected", connected.Data["status"])
	assert.NotEmpty(t, connected.Data["session_id"])

	// An empty chat message is rejected before any workflow starts.
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    "chat_message",
		"message": "   ",
	}))

	var errEv events.Envelope
	require.NoError(t, conn.ReadJSON(&errEv))
	assert.Equal(t, events.TypeError, errEv.Type)
	assert.Equal(t, "Message cannot be empty", errEv.Data["message"])
	assert.Equal(t, "validation_error", errEv.Data["code"])
}

func TestWebSocketUnknownType(t *testing.T) {
	s := testServer(t)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/agent/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	var connected events.Envelope
	require.NoError(t, conn.ReadJSON(&connected))

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "poke"}))

	var errEv events.Envelope
	require.NoError(t, conn.ReadJSON(&errEv))
	assert.Equal(t, events.TypeError, errEv.Type)
	assert.Contains(t, errEv.Data["message"], "Unknown message type")
}
