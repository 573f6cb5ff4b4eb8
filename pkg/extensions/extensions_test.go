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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptionsAreNoOps(t *testing.T) {
	opts := DefaultOptions()
	ctx := context.Background()

	id, err := opts.AuthProvider.Authenticate(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "local", id.UserID)

	opts.AuditLogger.Record(ctx, AuditEvent{Action: AuditPlanApproved})

	assert.Equal(t, "+x\n-y", opts.ChangeFilter.FilterDiff(ctx, "a.go", "+x\n-y"))
}

func TestNormalizeFillsNilFields(t *testing.T) {
	opts := ServiceOptions{}.Normalize()
	assert.NotNil(t, opts.AuthProvider)
	assert.NotNil(t, opts.AuditLogger)
	assert.NotNil(t, opts.ChangeFilter)
}

func TestWithBuilders(t *testing.T) {
	custom := &SlogAuditLogger{}
	opts := DefaultOptions().WithAudit(custom)
	assert.Same(t, custom, opts.AuditLogger)
}
