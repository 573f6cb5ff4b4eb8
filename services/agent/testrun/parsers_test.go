// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package testrun

import "testing"

func TestParsePytest(t *testing.T) {
	cases := []struct {
		name           string
		output         string
		passed, failed int
	}{
		{"mixed", "..F..\n3 passed, 1 failed in 0.12s", 3, 1},
		{"all pass", "===== 12 passed in 1.02s =====", 12, 0},
		{"no tests", "no tests ran in 0.01s", 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, f := parsePytest(tc.output)
			if p != tc.passed || f != tc.failed {
				t.Errorf("parsePytest = (%d, %d), want (%d, %d)", p, f, tc.passed, tc.failed)
			}
		})
	}
}

func TestParseJest(t *testing.T) {
	out := "Test Suites: 2 passed, 2 total\nTests:       8 passed, 2 failed, 10 total\n"
	p, f := parseJest(out)
	if p != 8 || f != 2 {
		t.Errorf("parseJest = (%d, %d), want (8, 2)", p, f)
	}
}

func TestParseMaven(t *testing.T) {
	out := "[INFO] Tests run: 15, Failures: 2, Errors: 0, Skipped: 1"
	p, f := parseMaven(out)
	if p != 13 || f != 2 {
		t.Errorf("parseMaven = (%d, %d), want (13, 2)", p, f)
	}
}

func TestParseMavenNoSummary(t *testing.T) {
	p, f := parseMaven("[INFO] BUILD FAILURE")
	if p != 0 || f != 0 {
		t.Errorf("parseMaven = (%d, %d), want (0, 0)", p, f)
	}
}

func TestParseDotnet(t *testing.T) {
	t.Run("summary line", func(t *testing.T) {
		out := "Passed! - Failed: 1, Passed: 9, Skipped: 0, Total: 10"
		p, f := parseDotnet(out)
		if p != 9 || f != 1 {
			t.Errorf("parseDotnet = (%d, %d), want (9, 1)", p, f)
		}
	})
	t.Run("fallback", func(t *testing.T) {
		out := "4 passed\n1 failed"
		p, f := parseDotnet(out)
		if p != 4 || f != 1 {
			t.Errorf("parseDotnet = (%d, %d), want (4, 1)", p, f)
		}
	})
}

func TestParseGoTest(t *testing.T) {
	t.Run("verbose", func(t *testing.T) {
		out := "=== RUN   TestA\n--- PASS: TestA (0.00s)\n=== RUN   TestB\n--- FAIL: TestB (0.01s)\nFAIL\nFAIL\texample.com/pkg\t0.01s\n"
		p, f := parseGoTest(out)
		if p != 1 || f != 1 {
			t.Errorf("parseGoTest = (%d, %d), want (1, 1)", p, f)
		}
	})
	t.Run("package lines", func(t *testing.T) {
		out := "ok  \texample.com/a\t0.2s\nok  \texample.com/b\t(cached)\nFAIL\texample.com/c\t0.1s\n"
		p, f := parseGoTest(out)
		if p != 2 || f != 1 {
			t.Errorf("parseGoTest = (%d, %d), want (2, 1)", p, f)
		}
	})
}
