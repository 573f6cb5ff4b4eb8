// Copyright (C) 2025 Aleutian AI
//
// This program is licensed under the GNU Affero General Public License v3.
// See the LICENSE.txt file for details.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for normalization.
var (
	tracer = otel.Tracer("atlas.knowledge.ast")
	meter  = otel.Meter("atlas.knowledge.ast")
)

// Metrics for normalization operations.
var (
	normalizeLatency     metric.Float64Histogram
	normalizeTotal       metric.Int64Counter
	definitionsExtracted metric.Int64Histogram
	normalizeErrors      metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		normalizeLatency, err = meter.Float64Histogram(
			"knowledge_normalize_duration_seconds",
			metric.WithDescription("Duration of source normalization operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		normalizeTotal, err = meter.Int64Counter(
			"knowledge_normalize_total",
			metric.WithDescription("Total number of normalization operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		definitionsExtracted, err = meter.Int64Histogram(
			"knowledge_definitions_extracted",
			metric.WithDescription("Number of definitions extracted per file"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		normalizeErrors, err = meter.Int64Counter(
			"knowledge_normalize_errors_total",
			metric.WithDescription("Total number of normalization failures"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordNormalizeMetrics records metrics for one normalization.
func recordNormalizeMetrics(ctx context.Context, language string, duration time.Duration, symbolCount int, success bool) {
	if err := initMetrics(); err != nil {
		return // Silently skip if metrics init failed
	}

	attrs := metric.WithAttributes(
		attribute.String("language", language),
		attribute.Bool("success", success),
	)

	normalizeLatency.Record(ctx, duration.Seconds(), attrs)
	normalizeTotal.Add(ctx, 1, attrs)

	if success {
		definitionsExtracted.Record(ctx, int64(symbolCount),
			metric.WithAttributes(attribute.String("language", language)),
		)
	} else {
		normalizeErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("language", language)),
		)
	}
}

// startNormalizeSpan creates a span for one normalization.
func startNormalizeSpan(ctx context.Context, language, path string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "ast.normalize",
		trace.WithAttributes(
			attribute.String("language", language),
			attribute.String("file.path", path),
		),
	)
}
