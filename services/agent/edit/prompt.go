// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package edit

import (
	"strings"

	"github.com/AleutianAI/atlas/services/agent/plan"
)

// editPrompt frames a minimal-change edit request: the current content
// between <<< >>> markers, the instructions as a bullet list, and the
// framework/context blocks when the knowledge graph supplied them.
func editPrompt(path, original string, changes []string, frameworkInstr, contextInfo string) string {
	var b strings.Builder
	b.WriteString("You are a code-edit assistant. Given:\n")
	b.WriteString("- File path: " + path + "\n")
	b.WriteString("- Current file content:\n")
	b.WriteString("<<<\n")
	b.WriteString(original)
	b.WriteString("\n>>>\n")
	b.WriteString("- Edit instructions:\n")
	b.WriteString(changesText(changes))
	b.WriteString("\n")
	b.WriteString(frameworkInstr)
	b.WriteString(contextInfo)
	b.WriteString("\nApply the edits precisely. Return ONLY the modified file content (no prose, no explanations).\n")
	b.WriteString("Preserve code style and formatting. Make minimal, targeted changes.\n")
	if contextInfo != "" {
		b.WriteString("Follow the framework patterns and conventions shown in related modules.")
	}
	return b.String()
}

// generatePrompt frames a whole-file generation request for a file
// that does not exist yet.
func generatePrompt(path string, t plan.Task, frameworkInstr, contextInfo string) string {
	var b strings.Builder
	b.WriteString("You are a code generation assistant. Generate a complete, production-ready file.\n\n")
	b.WriteString("File path: " + path + "\n")
	b.WriteString("Task: " + t.Task + "\n")
	b.WriteString("Requirements:\n")
	b.WriteString(changesText(t.Changes))
	b.WriteString("\n\n")
	b.WriteString(frameworkInstr)
	b.WriteString(contextInfo)
	b.WriteString("\nGenerate the complete file content following:\n")
	b.WriteString("- Framework patterns and conventions from related modules\n")
	b.WriteString("- Import patterns and code style from the codebase\n")
	b.WriteString("- Best practices for the file type\n")
	b.WriteString("- All necessary imports, exports, and structure\n\n")
	b.WriteString("Return ONLY the complete file content (no prose, no explanations, no markdown code blocks).\n")
	b.WriteString("The file should be ready to use and follow the same patterns as related modules in the codebase.")
	return b.String()
}

func changesText(changes []string) string {
	if len(changes) == 0 {
		return "- Apply the described change"
	}
	lines := make([]string, len(changes))
	for i, desc := range changes {
		lines[i] = "- " + desc
	}
	return strings.Join(lines, "\n")
}
