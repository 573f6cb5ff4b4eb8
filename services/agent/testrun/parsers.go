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

import (
	"regexp"
	"strconv"
	"strings"
)

// Per-tool output patterns. Each parser extracts (passed, failed)
// counts; a count that does not appear in the output parses as zero.
var (
	pytestPassedRe = regexp.MustCompile(`(\d+)\s+passed`)
	pytestFailedRe = regexp.MustCompile(`(\d+)\s+failed`)

	jestPassedRe = regexp.MustCompile(`(?i)Tests:\s*(\d+)\s+passed`)
	jestFailedRe = regexp.MustCompile(`(?i)(\d+)\s+failed`)

	mavenTotalRe  = regexp.MustCompile(`(?i)Tests run:\s*(\d+)`)
	mavenFailedRe = regexp.MustCompile(`(?i)Failures:\s*(\d+)`)

	dotnetSummaryRe = regexp.MustCompile(`(?is)Passed!.*?Failed:\s*(\d+).*?Passed:\s*(\d+)`)
	dotnetPassedRe  = regexp.MustCompile(`(?i)(\d+)\s+passed`)
	dotnetFailedRe  = regexp.MustCompile(`(?i)(\d+)\s+failed`)

	goFailCaseRe = regexp.MustCompile(`(?m)^--- FAIL: `)
	goPassCaseRe = regexp.MustCompile(`(?m)^--- PASS: `)
	goOKLineRe   = regexp.MustCompile(`(?m)^ok\s+`)
	goFailLineRe = regexp.MustCompile(`(?m)^FAIL\s+`)
)

func firstCount(re *regexp.Regexp, output string) int {
	m := re.FindStringSubmatch(output)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// parsePytest reads "5 passed, 2 failed" style summaries.
func parsePytest(output string) (passed, failed int) {
	return firstCount(pytestPassedRe, output), firstCount(pytestFailedRe, output)
}

// parseJest reads the "Tests: 5 passed, 2 failed" summary line.
func parseJest(output string) (passed, failed int) {
	return firstCount(jestPassedRe, output), firstCount(jestFailedRe, output)
}

// parseMaven reads "Tests run: X, Failures: Y"; passed is the
// difference.
func parseMaven(output string) (passed, failed int) {
	total := firstCount(mavenTotalRe, output)
	failed = firstCount(mavenFailedRe, output)
	passed = total - failed
	if passed < 0 {
		passed = 0
	}
	return passed, failed
}

// parseDotnet reads the "Passed! - Failed: X, Passed: Y" summary, with
// a loose passed/failed fallback for older SDK formats.
func parseDotnet(output string) (passed, failed int) {
	if m := dotnetSummaryRe.FindStringSubmatch(output); m != nil {
		failed, _ = strconv.Atoi(m[1])
		passed, _ = strconv.Atoi(m[2])
		return passed, failed
	}
	return firstCount(dotnetPassedRe, output), firstCount(dotnetFailedRe, output)
}

// parseGoTest counts per-case "--- PASS"/"--- FAIL" lines when present
// (go test -v), and falls back to package "ok"/"FAIL" lines otherwise.
func parseGoTest(output string) (passed, failed int) {
	passed = len(goPassCaseRe.FindAllString(output, -1))
	failed = len(goFailCaseRe.FindAllString(output, -1))
	if passed > 0 || failed > 0 {
		return passed, failed
	}
	passed = len(goOKLineRe.FindAllString(output, -1))
	for _, line := range strings.Split(output, "\n") {
		if goFailLineRe.MatchString(line) {
			failed++
		}
	}
	return passed, failed
}
