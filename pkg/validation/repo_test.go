// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRepoURL(t *testing.T) {
	valid := []string{
		"https://github.com/acme/widget.git",
		"https://github.com/acme/widget",
		"http://gitea.local:3000/acme/widget.git",
		"ssh://git@github.com/acme/widget.git",
		"git@github.com:acme/widget.git",
	}
	for _, u := range valid {
		assert.NoError(t, ValidateRepoURL(u), u)
	}

	invalid := []string{
		"",
		"-oProxyCommand=evil",
		"https://github.com/acme/widget.git; rm -rf /",
		"https://github.com/../../../etc/passwd",
		"ftp://example.com/repo.git",
		"https://",
		"just-a-name`whoami`",
	}
	for _, u := range invalid {
		assert.Error(t, ValidateRepoURL(u), u)
	}
}

func TestValidateBranchName(t *testing.T) {
	valid := []string{
		"main",
		"agent/plan-1a2b3c4d",
		"feature/add-rate-limit",
		"release-2.1",
	}
	for _, b := range valid {
		assert.NoError(t, ValidateBranchName(b), b)
	}

	invalid := []string{
		"",
		"-option",
		"/leading",
		"trailing/",
		"double..dot",
		"has space",
		"has~tilde",
		"refs//heads",
		"name.lock",
		"ends.",
		"at@{sign",
	}
	for _, b := range invalid {
		assert.Error(t, ValidateBranchName(b), b)
	}
}

func TestValidateSessionID(t *testing.T) {
	assert.NoError(t, ValidateSessionID("550e8400-e29b-41d4-a716-446655440000"))
	assert.NoError(t, ValidateSessionID("abc123"))

	assert.Error(t, ValidateSessionID(""))
	assert.Error(t, ValidateSessionID("has space"))
	assert.Error(t, ValidateSessionID("semi;colon"))
	assert.Error(t, ValidateSessionID(string(make([]byte, 65))))
}
