// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the agent's HTTP and WebSocket surface:
// health and status endpoints, Prometheus metrics, and the chat
// websocket that carries the event stream.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the uniform HTTP reply envelope.
type Response struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// OK writes a success response with optional payload.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Status: "success", Data: data})
}

// Fail writes an error response with the given HTTP status.
func Fail(c *gin.Context, code int, message string) {
	c.JSON(code, Response{Status: "error", Message: message})
}
