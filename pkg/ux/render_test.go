// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func machineRenderer() (*EventRenderer, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewEventRendererWithWriter(&buf, PersonalityMachine), &buf
}

func TestRenderConnected(t *testing.T) {
	r, buf := machineRenderer()
	r.Render(AgentEvent{Type: "connected", Data: map[string]any{"session_id": "abc"}})
	assert.Equal(t, "CONNECTED session=abc\n", buf.String())
}

func TestRenderStatus(t *testing.T) {
	r, buf := machineRenderer()
	r.Render(AgentEvent{
		Type:  "status",
		Stage: "planning",
		Data:  map[string]any{"message": "Creating execution plan..."},
	})
	assert.Equal(t, "STATUS planning: Creating execution plan...\n", buf.String())
}

func TestRenderCodeChange(t *testing.T) {
	r, buf := machineRenderer()
	r.Render(AgentEvent{
		Type: "code_change",
		Data: map[string]any{"file": "app.py", "status": "changed", "diff": "+x\n-y"},
	})
	assert.Equal(t, "CHANGE\tchanged\tapp.py\n", buf.String())
}

func TestRenderCodeChangeFullIncludesDiff(t *testing.T) {
	var buf bytes.Buffer
	r := NewEventRendererWithWriter(&buf, PersonalityFull)
	r.Render(AgentEvent{
		Type: "code_change",
		Data: map[string]any{"file": "app.py", "status": "changed", "diff": "+added\n-removed"},
	})
	out := buf.String()
	assert.Contains(t, out, "app.py")
	assert.Contains(t, out, "+added")
	assert.Contains(t, out, "-removed")
}

func TestRenderTestResult(t *testing.T) {
	r, buf := machineRenderer()
	r.Render(AgentEvent{
		Type: "test_result",
		Data: map[string]any{
			"tests_passed":  float64(12),
			"tests_failed":  float64(1),
			"build_success": true,
		},
	})
	assert.Equal(t, "TESTS passed=12 failed=1 build=true\n", buf.String())
}

func TestRenderQueryResponse(t *testing.T) {
	r, buf := machineRenderer()
	r.Render(AgentEvent{
		Type: "query_response",
		Data: map[string]any{"answer": "Two modules handle auth."},
	})
	assert.Equal(t, "ANSWER: Two modules handle auth.\n", buf.String())
}

func TestRenderQueryResponseFullListsReferences(t *testing.T) {
	var buf bytes.Buffer
	r := NewEventRendererWithWriter(&buf, PersonalityFull)
	r.Render(AgentEvent{
		Type: "query_response",
		Data: map[string]any{
			"answer": "Two modules handle auth.",
			"references": []any{
				map[string]any{"name": "auth.py", "type": "module"},
			},
		},
	})
	out := buf.String()
	assert.Contains(t, out, "Two modules handle auth.")
	assert.Contains(t, out, "auth.py")
}

func TestRenderApprovalRequestMachine(t *testing.T) {
	r, buf := machineRenderer()
	r.Render(AgentEvent{
		Type: "approval_request",
		Data: map[string]any{"message": "Review the plan", "plan_id": "plan-1"},
	})
	assert.Equal(t, "APPROVAL_REQUIRED plan=plan-1: Review the plan\n", buf.String())
}

func TestRenderApprovalRequestFullListsTasks(t *testing.T) {
	var buf bytes.Buffer
	r := NewEventRendererWithWriter(&buf, PersonalityFull)
	r.Render(AgentEvent{
		Type: "approval_request",
		Data: map[string]any{
			"message": "Review the plan",
			"plan": map[string]any{
				"tasks": []any{
					map[string]any{"description": "Update the handler"},
					map[string]any{"description": "Adjust the tests"},
				},
			},
		},
	})
	out := buf.String()
	assert.Contains(t, out, "Update the handler")
	assert.Contains(t, out, "Adjust the tests")
}

func TestRenderSummary(t *testing.T) {
	r, buf := machineRenderer()
	r.Render(AgentEvent{
		Type: "summary",
		Data: map[string]any{"message": "done", "pr_url": "https://example.com/pr/1"},
	})
	assert.Equal(t, "SUMMARY: message=done pr_url=https://example.com/pr/1\n", buf.String())
}

func TestRenderError(t *testing.T) {
	r, buf := machineRenderer()
	r.Render(AgentEvent{Type: "error", Data: map[string]any{"message": "repo not found"}})
	assert.Equal(t, "ERROR: repo not found\n", buf.String())
}

func TestRenderUnknownType(t *testing.T) {
	r, buf := machineRenderer()
	r.Render(AgentEvent{Type: "heartbeat", Data: map[string]any{"seq": 3}})
	assert.Equal(t, "heartbeat: seq=3\n", buf.String())
}
