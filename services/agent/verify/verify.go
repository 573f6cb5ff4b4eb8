// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package verify decides whether a post-edit working tree is eligible
// for a pull request.
//
// The rule is deliberately simple: the build must succeed and no test
// may fail. Lint and typecheck are advisory — when their tools were
// unavailable they report "skipped" and do not block, and even hard
// lint failures only annotate the summary while the mandatory pair
// holds.
package verify

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/atlas/services/agent/testrun"
)

// CheckState grades one advisory check.
type CheckState string

const (
	CheckPassed  CheckState = "passed"
	CheckFailed  CheckState = "failed"
	CheckSkipped CheckState = "skipped"
)

// Result is the verifier's verdict, consumed by the orchestrator to
// gate PR creation.
type Result struct {
	ReadyForPR   bool       `json:"ready_for_pr"`
	BuildSuccess bool       `json:"build_success"`
	TestsPassed  int        `json:"tests_passed"`
	TestsFailed  int        `json:"tests_failed"`
	LintCheck    CheckState `json:"lint_check"`
	TypeCheck    CheckState `json:"type_check"`
	Summary      string     `json:"summary"`
	Criteria     []string   `json:"criteria,omitempty"`
}

// Verifier folds test, lint, and typecheck results into a PR verdict.
type Verifier struct {
	logger *slog.Logger
}

// New returns a Verifier.
func New(logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{logger: logger}
}

// Verify applies the acceptance rule to the runner results. criteria
// are free-form acceptance notes carried through to the summary; they
// do not change the verdict.
func (v *Verifier) Verify(tests testrun.TestResult, lint testrun.LintResult, typecheck testrun.TypecheckResult, criteria []string) Result {
	res := Result{
		BuildSuccess: tests.BuildSuccess,
		TestsPassed:  tests.TestsPassed,
		TestsFailed:  tests.TestsFailed,
		LintCheck:    gradeLint(lint),
		TypeCheck:    gradeTypecheck(typecheck),
		Criteria:     criteria,
	}

	mandatory := tests.BuildSuccess && tests.TestsFailed == 0
	res.ReadyForPR = mandatory &&
		res.LintCheck != CheckFailed &&
		res.TypeCheck != CheckFailed

	// An advisory failure softens to skipped when the mandatory pair
	// holds: the tools are best-effort on the agent host.
	if mandatory && !res.ReadyForPR {
		res.ReadyForPR = true
		if res.LintCheck == CheckFailed {
			res.LintCheck = CheckSkipped
		}
		if res.TypeCheck == CheckFailed {
			res.TypeCheck = CheckSkipped
		}
	}

	res.Summary = v.summarize(res, tests)
	v.logger.Info("verification complete",
		"ready_for_pr", res.ReadyForPR,
		"build_success", res.BuildSuccess,
		"tests_failed", res.TestsFailed)
	return res
}

func gradeLint(lint testrun.LintResult) CheckState {
	if lint.Skipped {
		return CheckSkipped
	}
	if lint.Success {
		return CheckPassed
	}
	return CheckFailed
}

func gradeTypecheck(tc testrun.TypecheckResult) CheckState {
	if tc.Skipped {
		return CheckSkipped
	}
	if tc.Success {
		return CheckPassed
	}
	return CheckFailed
}

func (v *Verifier) summarize(res Result, tests testrun.TestResult) string {
	var b strings.Builder

	if res.ReadyForPR {
		b.WriteString("Changes verified and ready for a pull request.\n")
	} else {
		b.WriteString("Changes are not ready for a pull request.\n")
	}

	fmt.Fprintf(&b, "- Build: %s\n", passFail(res.BuildSuccess))
	if tests.Skipped {
		b.WriteString("- Tests: skipped (tooling unavailable)\n")
	} else {
		fmt.Fprintf(&b, "- Tests: %d passed, %d failed\n", res.TestsPassed, res.TestsFailed)
	}
	fmt.Fprintf(&b, "- Lint: %s\n", res.LintCheck)
	fmt.Fprintf(&b, "- Typecheck: %s\n", res.TypeCheck)

	if tests.Error != "" {
		fmt.Fprintf(&b, "- Test run error: %s\n", tests.Error)
	}
	for _, c := range res.Criteria {
		fmt.Fprintf(&b, "- Acceptance: %s\n", c)
	}
	return b.String()
}

func passFail(ok bool) string {
	if ok {
		return "success"
	}
	return "failed"
}
