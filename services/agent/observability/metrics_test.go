// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveBeforeInitIsSafe(t *testing.T) {
	saved := DefaultMetrics
	DefaultMetrics = nil
	defer func() { DefaultMetrics = saved }()

	assert.NotPanics(t, func() {
		ObservePhase("planning", time.Now(), nil)
		CountEvent("status")
	})
}

func TestInitMetricsIdempotent(t *testing.T) {
	m1 := InitMetrics()
	m2 := InitMetrics()
	require.NotNil(t, m1)
	assert.Same(t, m1, m2)
}

func TestObservePhaseRecordsStatus(t *testing.T) {
	m := InitMetrics()

	ObservePhase("testing", time.Now().Add(-time.Second), nil)
	ObservePhase("testing", time.Now(), errors.New("boom"))

	ok := testutil.CollectAndCount(m.PhaseDurationSeconds)
	assert.GreaterOrEqual(t, ok, 2)
}

func TestCountEvent(t *testing.T) {
	m := InitMetrics()
	before := testutil.ToFloat64(m.EventsTotal.WithLabelValues("summary"))
	CountEvent("summary")
	assert.Equal(t, before+1, testutil.ToFloat64(m.EventsTotal.WithLabelValues("summary")))
}
