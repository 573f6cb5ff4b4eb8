// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the agent.
//
// Metrics cover the workflow phases (duration and outcome per stage),
// session lifecycle, the event channel, and the approval gate. All are
// exposed on /metrics and are thread-safe via Prometheus's internal
// locking.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics.
const metricsNamespace = "atlas"

// Subsystem for agent workflow metrics.
const agentSubsystem = "agent"

// AgentMetrics holds the Prometheus metrics for agent operation.
// Initialize once at startup via InitMetrics().
type AgentMetrics struct {
	// WorkflowsTotal counts completed workflows.
	// Labels: category (informational_query, diagram_request,
	// code_change), status (success, error, rejected)
	WorkflowsTotal *prometheus.CounterVec

	// PhaseDurationSeconds measures per-stage wall time.
	// Labels: stage (intent_extraction … pr_creation), status
	PhaseDurationSeconds *prometheus.HistogramVec

	// ActiveSessions tracks connected websocket sessions.
	ActiveSessions prometheus.Gauge

	// EventsTotal counts events emitted to clients by type.
	EventsTotal *prometheus.CounterVec

	// EventsDroppedTotal counts log events shed under back-pressure.
	EventsDroppedTotal prometheus.Counter

	// ApprovalsTotal counts approval gate outcomes.
	// Labels: decision (approved, rejected, expired)
	ApprovalsTotal *prometheus.CounterVec

	// LLMFallbacksTotal counts stages that fell back to deterministic
	// output because the model was absent or unusable.
	// Labels: stage
	LLMFallbacksTotal *prometheus.CounterVec

	// GraphLoadsTotal counts knowledge graph loads by source.
	// Labels: source (session, graph_db, file_cache, generated)
	GraphLoadsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance, set by InitMetrics.
var DefaultMetrics *AgentMetrics

// InitMetrics registers all agent metrics with the default registry.
// Idempotent: repeated calls return the existing instance, so tests
// that build multiple servers do not trip duplicate registration.
func InitMetrics() *AgentMetrics {
	if DefaultMetrics != nil {
		return DefaultMetrics
	}

	DefaultMetrics = &AgentMetrics{
		WorkflowsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "workflows_total",
				Help:      "Completed workflows by intent category and status",
			},
			[]string{"category", "status"},
		),

		PhaseDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "phase_duration_seconds",
				Help:      "Wall time per workflow stage",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"stage", "status"},
		),

		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "active_sessions",
				Help:      "Currently connected websocket sessions",
			},
		),

		EventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "events_total",
				Help:      "Events emitted to clients by type",
			},
			[]string{"type"},
		),

		EventsDroppedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "events_dropped_total",
				Help:      "Log events shed under event channel back-pressure",
			},
		),

		ApprovalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "approvals_total",
				Help:      "Approval gate outcomes",
			},
			[]string{"decision"},
		),

		LLMFallbacksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "llm_fallbacks_total",
				Help:      "Stages that used the deterministic fallback path",
			},
			[]string{"stage"},
		),

		GraphLoadsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "graph_loads_total",
				Help:      "Knowledge graph loads by source",
			},
			[]string{"source"},
		),
	}

	return DefaultMetrics
}

// ObservePhase records one stage execution. No-op when metrics are not
// initialized, so library code can call it unconditionally.
func ObservePhase(stage string, start time.Time, err error) {
	if DefaultMetrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.PhaseDurationSeconds.
		WithLabelValues(stage, status).
		Observe(time.Since(start).Seconds())
}

// CountEvent records one emitted event type.
func CountEvent(eventType string) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.EventsTotal.WithLabelValues(eventType).Inc()
}
