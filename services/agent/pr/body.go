// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pr

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/atlas/services/agent/edit"
	"github.com/AleutianAI/atlas/services/agent/plan"
	"github.com/AleutianAI/atlas/services/agent/testrun"
)

// Title derives a PR title from the plan's intent, with a generic
// fallback when the intent carries no description.
func Title(p plan.Plan) string {
	if d := strings.TrimSpace(p.Intent.Description); d != "" {
		return d
	}
	return "Agent-generated changes"
}

// Body renders the PR description markdown from the plan, test
// results, and applied changes.
func Body(p plan.Plan, tests testrun.TestResult, changes edit.Result) string {
	var b strings.Builder

	b.WriteString("## Summary\n")
	b.WriteString(Title(p))
	b.WriteString("\n\n## Files Changed\n")
	if len(changes.Changes) == 0 {
		b.WriteString("- No files listed\n")
	}
	for _, ch := range changes.Changes {
		fmt.Fprintf(&b, "- %s\n", ch.File)
	}

	b.WriteString("\n## Testing\n")
	fmt.Fprintf(&b, "- Tests passed: %d\n", tests.TestsPassed)
	fmt.Fprintf(&b, "- Tests failed: %d\n", tests.TestsFailed)
	fmt.Fprintf(&b, "- Build success: %v\n", tests.BuildSuccess)
	if tests.BuildSuccess {
		b.WriteString("- Lint and type checks: Passed\n")
	} else {
		b.WriteString("- Lint and type checks: Failed\n")
	}

	b.WriteString("\n## Plan Summary\nThis PR implements the following tasks:\n")
	for _, t := range p.Tasks {
		fmt.Fprintf(&b, "- %s\n", t.Task)
	}

	if p.MigrationRequired {
		b.WriteString("\n## Migration\nDatabase migration may be required. Please review migration steps.\n")
	}

	b.WriteString("\n## Rollback\nTo rollback, revert this branch or use `git revert <commit_sha>`\n")
	return b.String()
}
