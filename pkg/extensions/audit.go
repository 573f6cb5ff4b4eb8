// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"context"
	"log/slog"
	"time"
)

// AuditAction identifies what happened.
type AuditAction string

const (
	// AuditPlanProposed records a plan reaching the approval gate.
	AuditPlanProposed AuditAction = "plan_proposed"

	// AuditPlanApproved records a human approving a plan.
	AuditPlanApproved AuditAction = "plan_approved"

	// AuditPlanRejected records a human rejecting a plan.
	AuditPlanRejected AuditAction = "plan_rejected"

	// AuditChangesApplied records edits landing on a branch.
	AuditChangesApplied AuditAction = "changes_applied"

	// AuditPRCreated records a pull request being opened.
	AuditPRCreated AuditAction = "pr_created"
)

// AuditEvent is one security-relevant occurrence.
type AuditEvent struct {
	Timestamp time.Time
	Action    AuditAction
	SessionID string
	PlanID    string

	// Detail holds action-specific context (branch name, file count,
	// PR URL, rejection reason). Keep values small and non-sensitive.
	Detail map[string]any
}

// AuditLogger records agent audit events.
//
// Record must not block the calling workflow; implementations that
// ship events remotely should buffer internally.
type AuditLogger interface {
	Record(ctx context.Context, event AuditEvent)
}

// NopAuditLogger discards all events. Open source default.
type NopAuditLogger struct{}

// Record does nothing.
func (l *NopAuditLogger) Record(ctx context.Context, event AuditEvent) {}

// SlogAuditLogger writes audit events to a structured logger. Useful
// for local setups that want a trail without an external sink.
type SlogAuditLogger struct {
	Logger *slog.Logger
}

// Record logs the event at Info level.
func (l *SlogAuditLogger) Record(ctx context.Context, event AuditEvent) {
	if l.Logger == nil {
		return
	}
	l.Logger.Info("audit",
		"action", string(event.Action),
		"session_id", event.SessionID,
		"plan_id", event.PlanID,
		"detail", event.Detail,
	)
}
