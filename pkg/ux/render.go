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
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// AgentEvent mirrors the agent's websocket event envelope. Data keys
// depend on the event type; the renderer is tolerant of missing keys.
type AgentEvent struct {
	Type      string         `json:"type"`
	Timestamp string         `json:"timestamp"`
	Stage     string         `json:"stage,omitempty"`
	Data      map[string]any `json:"data"`
	SessionID string         `json:"session_id,omitempty"`
}

// EventRenderer renders agent events to a terminal.
type EventRenderer struct {
	writer io.Writer
	level  PersonalityLevel
}

// NewEventRenderer creates a renderer writing to stdout with the
// current personality level.
func NewEventRenderer() *EventRenderer {
	return &EventRenderer{
		writer: os.Stdout,
		level:  GetPersonalityLevel(),
	}
}

// NewEventRendererWithWriter creates a renderer with a custom writer
// (for testing).
func NewEventRendererWithWriter(w io.Writer, level PersonalityLevel) *EventRenderer {
	return &EventRenderer{writer: w, level: level}
}

// Render writes one event. Unknown event types are rendered as muted
// key=value lines so new server-side types degrade gracefully.
func (r *EventRenderer) Render(ev AgentEvent) {
	switch ev.Type {
	case "connected":
		if r.level == PersonalityMachine {
			r.printf("CONNECTED session=%s\n", r.str(ev, "session_id"))
			return
		}
		r.printf("%s %s\n", IconSuccess.Render(), Styles.Success.Render("Connected (session "+r.str(ev, "session_id")+")"))
	case "status":
		r.renderStatus(ev)
	case "log":
		r.renderLog(ev)
	case "code_change":
		r.renderCodeChange(ev)
	case "test_result":
		r.renderTestResult(ev)
	case "query_response":
		r.renderQueryResponse(ev)
	case "diagram_response":
		r.renderDiagramResponse(ev)
	case "approval_request":
		r.renderApprovalRequest(ev)
	case "summary":
		r.renderSummary(ev)
	case "error":
		if r.level == PersonalityMachine {
			r.printf("ERROR: %s\n", r.str(ev, "message"))
			return
		}
		r.printf("%s %s\n", IconError.Render(), Styles.Error.Render(r.str(ev, "message")))
	default:
		r.printf("%s\n", r.style(Styles.Muted, ev.Type+": "+r.flatten(ev.Data)))
	}
}

func (r *EventRenderer) renderStatus(ev AgentEvent) {
	msg := r.str(ev, "message")
	if r.level == PersonalityMachine {
		r.printf("STATUS %s: %s\n", ev.Stage, msg)
		return
	}
	stage := r.style(Styles.Subtitle, "["+ev.Stage+"]")
	r.printf("%s %s %s\n", IconArrow.Render(), stage, msg)
}

func (r *EventRenderer) renderLog(ev AgentEvent) {
	if r.level == PersonalityMachine {
		r.printf("LOG %s: %s\n", ev.Stage, r.flatten(ev.Data))
		return
	}
	msg := r.str(ev, "message")
	if msg == "" {
		msg = r.flatten(ev.Data)
	}
	r.printf("%s\n", r.style(Styles.Muted, "  "+msg))
}

func (r *EventRenderer) renderCodeChange(ev AgentEvent) {
	file := r.str(ev, "file")
	status := r.str(ev, "status")

	icon := IconSuccess
	if status == "error" || status == "failed" {
		icon = IconError
	}
	if r.level == PersonalityMachine {
		r.printf("CHANGE\t%s\t%s\n", status, file)
		return
	}
	r.printf("%s %s %s\n", icon.Render(), file, r.style(Styles.Muted, "("+status+")"))

	if diff := r.str(ev, "diff"); diff != "" && r.level == PersonalityFull {
		for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
			switch {
			case strings.HasPrefix(line, "+"):
				r.printf("  %s\n", r.style(Styles.DiffAdd, line))
			case strings.HasPrefix(line, "-"):
				r.printf("  %s\n", r.style(Styles.DiffDel, line))
			default:
				r.printf("  %s\n", r.style(Styles.Muted, line))
			}
		}
	}
}

func (r *EventRenderer) renderTestResult(ev AgentEvent) {
	passed := r.num(ev, "tests_passed")
	failed := r.num(ev, "tests_failed")
	build, _ := ev.Data["build_success"].(bool)

	if r.level == PersonalityMachine {
		r.printf("TESTS passed=%d failed=%d build=%t\n", passed, failed, build)
		return
	}
	icon := IconSuccess
	style := Styles.Success
	if failed > 0 || !build {
		icon = IconError
		style = Styles.Error
	}
	r.printf("%s %s\n", icon.Render(),
		r.style(style, fmt.Sprintf("Tests: %d passed, %d failed", passed, failed)))
	if msg := r.str(ev, "error"); msg != "" {
		r.printf("  %s\n", r.style(Styles.Error, msg))
	}
}

func (r *EventRenderer) renderQueryResponse(ev AgentEvent) {
	answer := r.str(ev, "answer")
	if r.level == PersonalityMachine {
		r.printf("ANSWER: %s\n", answer)
		return
	}
	r.printf("\n%s\n", answer)

	refs, _ := ev.Data["references"].([]any)
	if len(refs) > 0 {
		r.printf("\n%s\n", r.style(Styles.Subtitle, "References:"))
		for i, raw := range refs {
			ref, _ := raw.(map[string]any)
			if ref == nil {
				continue
			}
			name, _ := ref["name"].(string)
			kind, _ := ref["type"].(string)
			r.printf("%d. %s %s\n", i+1, name, r.style(Styles.Muted, "("+kind+")"))
		}
	}
}

func (r *EventRenderer) renderDiagramResponse(ev AgentEvent) {
	content := r.str(ev, "content")
	if content == "" {
		content = r.str(ev, "mermaid_code")
	}
	if r.level == PersonalityMachine {
		r.printf("%s\n", content)
		return
	}
	r.printf("\n%s\n%s\n", r.style(Styles.Subtitle, "Diagram ("+r.str(ev, "diagram_type")+"):"), content)
}

func (r *EventRenderer) renderApprovalRequest(ev AgentEvent) {
	msg := r.str(ev, "message")
	if r.level == PersonalityMachine {
		r.printf("APPROVAL_REQUIRED plan=%s: %s\n", r.str(ev, "plan_id"), msg)
		return
	}

	var b strings.Builder
	b.WriteString(msg)
	if plan, ok := ev.Data["plan"].(map[string]any); ok {
		if tasks, ok := plan["tasks"].([]any); ok {
			for i, raw := range tasks {
				task, _ := raw.(map[string]any)
				if task == nil {
					continue
				}
				desc, _ := task["description"].(string)
				fmt.Fprintf(&b, "\n%d. %s", i+1, desc)
			}
		}
	}
	out := Styles.WarningBox.Width(72).Render(
		Styles.Warning.Bold(true).Render("Plan awaiting approval") + "\n" + b.String())
	r.printf("%s\n", out)
}

func (r *EventRenderer) renderSummary(ev AgentEvent) {
	if r.level == PersonalityMachine {
		r.printf("SUMMARY: %s\n", r.flatten(ev.Data))
		return
	}

	var b strings.Builder
	if msg := r.str(ev, "message"); msg != "" {
		b.WriteString(msg)
	}
	if branch := r.str(ev, "branch"); branch != "" {
		fmt.Fprintf(&b, "\nBranch: %s", branch)
	}
	if url := r.str(ev, "pr_url"); url != "" {
		fmt.Fprintf(&b, "\nPull request: %s", url)
	}
	if url := r.str(ev, "upstream_url"); url != "" {
		fmt.Fprintf(&b, "\nUpstream: %s", url)
	}
	if errMsg := r.str(ev, "error"); errMsg != "" {
		fmt.Fprintf(&b, "\nError: %s", errMsg)
	}
	out := Styles.Box.Width(72).Render(Styles.Title.Render("Summary") + "\n" + b.String())
	r.printf("%s\n", out)
}

func (r *EventRenderer) printf(format string, args ...any) {
	fmt.Fprintf(r.writer, format, args...)
}

// style applies s only outside machine mode.
func (r *EventRenderer) style(s interface{ Render(...string) string }, text string) string {
	if r.level == PersonalityMachine {
		return text
	}
	return s.Render(text)
}

func (r *EventRenderer) str(ev AgentEvent, key string) string {
	v, _ := ev.Data[key].(string)
	return v
}

// num reads a numeric data value. JSON decoding yields float64.
func (r *EventRenderer) num(ev AgentEvent, key string) int {
	switch v := ev.Data[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func (r *EventRenderer) flatten(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, data[k]))
	}
	return strings.Join(parts, " ")
}
