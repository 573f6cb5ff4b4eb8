// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/atlas/services/agent/testrun"
)

func passing() (testrun.TestResult, testrun.LintResult, testrun.TypecheckResult) {
	return testrun.TestResult{TestsPassed: 5, BuildSuccess: true},
		testrun.LintResult{Success: true},
		testrun.TypecheckResult{Success: true}
}

func TestVerifyAllGreen(t *testing.T) {
	tests, lint, tc := passing()
	res := New(nil).Verify(tests, lint, tc, nil)

	assert.True(t, res.ReadyForPR)
	assert.Equal(t, CheckPassed, res.LintCheck)
	assert.Equal(t, CheckPassed, res.TypeCheck)
	assert.Contains(t, res.Summary, "ready for a pull request")
}

func TestVerifyFailedTestsBlock(t *testing.T) {
	tests, lint, tc := passing()
	tests.TestsFailed = 2
	res := New(nil).Verify(tests, lint, tc, nil)

	assert.False(t, res.ReadyForPR)
	assert.Contains(t, res.Summary, "not ready")
}

func TestVerifyBuildFailureBlocks(t *testing.T) {
	tests, lint, tc := passing()
	tests.BuildSuccess = false
	tests.Error = "Timeout"
	res := New(nil).Verify(tests, lint, tc, nil)

	assert.False(t, res.ReadyForPR)
	assert.Contains(t, res.Summary, "Timeout")
}

func TestVerifyAdvisoryFailureSoftens(t *testing.T) {
	tests, lint, tc := passing()
	lint.Success = false

	res := New(nil).Verify(tests, lint, tc, nil)

	// Mandatory pair holds, so a lint failure degrades to skipped
	// rather than vetoing the PR.
	assert.True(t, res.ReadyForPR)
	assert.Equal(t, CheckSkipped, res.LintCheck)
}

func TestVerifySkippedToolsDoNotBlock(t *testing.T) {
	tests, _, _ := passing()
	lint := testrun.LintResult{Success: true, Skipped: true}
	tc := testrun.TypecheckResult{Success: true, Skipped: true}

	res := New(nil).Verify(tests, lint, tc, nil)

	assert.True(t, res.ReadyForPR)
	assert.Equal(t, CheckSkipped, res.LintCheck)
	assert.Equal(t, CheckSkipped, res.TypeCheck)
}

func TestVerifyCriteriaCarriedToSummary(t *testing.T) {
	tests, lint, tc := passing()
	res := New(nil).Verify(tests, lint, tc, []string{"login flow unchanged"})
	assert.Contains(t, res.Summary, "login flow unchanged")
}
