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

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sourcegraph/go-diff/diff"
)

// Stats aggregates line counts across every change in a session.
type Stats struct {
	LinesAdded    int `json:"lines_added"`
	LinesRemoved  int `json:"lines_removed"`
	FilesAffected int `json:"files_affected"`
}

// unifiedDiff renders a unified diff between two versions of a file.
// Both headers carry the repo-relative path. Empty on error or when
// the contents are identical.
func unifiedDiff(original, modified, path string) string {
	var a, b []string
	if original != "" {
		a = difflib.SplitLines(original)
	}
	if modified != "" {
		b = difflib.SplitLines(modified)
	}

	out, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        a,
		B:        b,
		FromFile: path,
		ToFile:   path,
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return out
}

// diffStats parses the concatenated diffs of a session and counts
// added and removed lines per hunk body. Header lines (+++/---) are
// not counted. A parse failure still reports the file count.
func diffStats(changes []Change) Stats {
	var b strings.Builder
	for _, c := range changes {
		if c.Diff == "" {
			continue
		}
		b.WriteString(c.Diff)
		if !strings.HasSuffix(c.Diff, "\n") {
			b.WriteString("\n")
		}
	}
	if b.Len() == 0 {
		return Stats{}
	}

	fileDiffs, err := diff.NewMultiFileDiffReader(strings.NewReader(b.String())).ReadAllFiles()
	if err != nil {
		return Stats{FilesAffected: len(changes)}
	}

	stats := Stats{FilesAffected: len(fileDiffs)}
	for _, fd := range fileDiffs {
		for _, hunk := range fd.Hunks {
			for _, line := range strings.Split(string(hunk.Body), "\n") {
				if strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++") {
					stats.LinesAdded++
				} else if strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---") {
					stats.LinesRemoved++
				}
			}
		}
	}
	return stats
}
