// Copyright (C) 2025 Aleutian AI
//
// This program is licensed under the GNU Affero General Public License v3.
// See the LICENSE.txt file for details.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package build

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/atlas/services/knowledge"
)

// Package-level tracer and meter for graph generation.
var (
	tracer = otel.Tracer("atlas.knowledge.build")
	meter  = otel.Meter("atlas.knowledge.build")
)

// Metrics for graph generation.
var (
	buildLatency metric.Float64Histogram
	buildTotal   metric.Int64Counter
	moduleCount  metric.Int64Histogram
	edgeCount    metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildLatency, err = meter.Float64Histogram(
			"knowledge_build_duration_seconds",
			metric.WithDescription("Duration of full graph generation"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildTotal, err = meter.Int64Counter(
			"knowledge_build_total",
			metric.WithDescription("Total number of graph generation runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		moduleCount, err = meter.Int64Histogram(
			"knowledge_build_modules",
			metric.WithDescription("Number of modules per generated graph"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		edgeCount, err = meter.Int64Histogram(
			"knowledge_build_edges",
			metric.WithDescription("Number of edges per generated graph"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordBuildMetrics records metrics for one generation run.
func recordBuildMetrics(ctx context.Context, duration time.Duration, graph *knowledge.Graph, success bool) {
	if err := initMetrics(); err != nil {
		return // Silently skip if metrics init failed
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))

	buildLatency.Record(ctx, duration.Seconds(), attrs)
	buildTotal.Add(ctx, 1, attrs)

	if success && graph != nil {
		moduleCount.Record(ctx, int64(len(graph.Modules)))
		edgeCount.Record(ctx, int64(len(graph.Edges)))
	}
}

// startBuildSpan creates the root span for one generation run.
func startBuildSpan(ctx context.Context, root string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "build.generate",
		trace.WithAttributes(
			attribute.String("repo.root", root),
		),
	)
}

// setBuildSpanResult attaches graph size attributes to the root span.
func setBuildSpanResult(span trace.Span, graph *knowledge.Graph) {
	if graph == nil {
		return
	}
	span.SetAttributes(
		attribute.String("project.id", graph.Project.ID),
		attribute.Int("graph.modules", len(graph.Modules)),
		attribute.Int("graph.symbols", len(graph.Symbols)),
		attribute.Int("graph.endpoints", len(graph.Endpoints)),
		attribute.Int("graph.edges", len(graph.Edges)),
		attribute.Int("graph.features", len(graph.Features)),
	)
}
