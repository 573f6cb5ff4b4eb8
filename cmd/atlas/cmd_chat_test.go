// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentWSURL(t *testing.T) {
	got, err := agentWSURL("http://localhost:8080", "")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/v1/agent/ws", got)

	got, err = agentWSURL("https://atlas.example.com/", "abc-123")
	require.NoError(t, err)
	assert.Equal(t, "wss://atlas.example.com/v1/agent/ws?session_id=abc-123", got)

	_, err = agentWSURL("ftp://example.com", "")
	assert.Error(t, err)
}
