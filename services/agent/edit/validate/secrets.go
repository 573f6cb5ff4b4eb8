// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validate

import (
	"math"
	"regexp"
	"strings"
)

// secretScanner matches credential shapes line by line, gated by
// Shannon entropy so constant-looking strings do not trip it.
type secretScanner struct {
	patterns   []compiledSecret
	minEntropy float64
	allowlist  []*regexp.Regexp
}

type compiledSecret struct {
	SecretPattern
	re *regexp.Regexp
}

func newSecretScanner(config Config) (*secretScanner, error) {
	s := &secretScanner{minEntropy: config.MinSecretEntropy}

	for _, p := range secretPatterns() {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, err
		}
		s.patterns = append(s.patterns, compiledSecret{SecretPattern: p, re: re})
	}

	for _, glob := range config.AllowlistPaths {
		re, err := regexp.Compile(globRegex(glob))
		if err != nil {
			continue
		}
		s.allowlist = append(s.allowlist, re)
	}
	return s, nil
}

// scan reports hardcoded secrets in content. Allowlisted paths (tests,
// fixtures) are skipped entirely; comment lines are not scanned.
func (s *secretScanner) scan(content []byte, filePath string) []Warning {
	if s.allowlisted(filePath) {
		return nil
	}

	var warnings []Warning
	for lineNum, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || commentLine(trimmed) {
			continue
		}

		for _, p := range s.patterns {
			for _, match := range p.re.FindAllString(line, -1) {
				floor := p.MinEntropy
				if floor == 0 {
					floor = s.minEntropy
				}
				if floor > 0 && entropy(secretValue(match)) < floor {
					continue
				}

				warnings = append(warnings, Warning{
					Type:       WarnTypeSecret,
					Pattern:    p.Name,
					File:       filePath,
					Line:       lineNum + 1,
					Severity:   p.Severity,
					Message:    p.Message,
					Suggestion: "Load secrets from the environment or a secret manager.",
					Blocking:   true,
				})
			}
		}
	}
	return warnings
}

func (s *secretScanner) allowlisted(filePath string) bool {
	for _, re := range s.allowlist {
		if re.MatchString(filePath) {
			return true
		}
	}

	lower := strings.ToLower(filePath)
	return strings.Contains(lower, "/test") ||
		strings.Contains(lower, "test_") ||
		strings.HasSuffix(lower, "_test.go") ||
		strings.HasSuffix(lower, ".test.js") ||
		strings.HasSuffix(lower, ".test.ts") ||
		strings.HasSuffix(lower, ".spec.js") ||
		strings.HasSuffix(lower, ".spec.ts") ||
		strings.Contains(lower, "fixture") ||
		strings.Contains(lower, "mock") ||
		strings.Contains(lower, "example") ||
		strings.Contains(lower, "__tests__")
}

// entropy is the Shannon entropy of s in bits per character.
func entropy(s string) float64 {
	if s == "" {
		return 0
	}

	freq := make(map[rune]int)
	for _, r := range s {
		freq[r]++
	}

	var h float64
	n := float64(len(s))
	for _, count := range freq {
		p := float64(count) / n
		h -= p * math.Log2(p)
	}
	return h
}

// secretValue pulls the value side out of a key=value style match so
// the entropy gate judges the secret, not the keyword.
func secretValue(match string) string {
	for _, sep := range []string{"=", ":", " "} {
		if idx := strings.Index(match, sep); idx > 0 {
			return strings.Trim(strings.TrimSpace(match[idx+1:]), `"'`)
		}
	}
	return match
}

func commentLine(line string) bool {
	return strings.HasPrefix(line, "//") ||
		strings.HasPrefix(line, "#") ||
		strings.HasPrefix(line, "/*") ||
		strings.HasPrefix(line, "*") ||
		strings.HasPrefix(line, "'''") ||
		strings.HasPrefix(line, `"""`)
}

// globRegex converts an allowlist glob into an anchored regexp,
// mapping ** to any path and * to any path segment.
func globRegex(glob string) string {
	result := glob
	for _, s := range []string{".", "+", "^", "$", "(", ")", "[", "]", "{", "}", "|", "\\"} {
		result = strings.ReplaceAll(result, s, "\\"+s)
	}
	result = strings.ReplaceAll(result, "**", "\x00")
	result = strings.ReplaceAll(result, "*", "[^/]*")
	result = strings.ReplaceAll(result, "\x00", ".*")
	result = strings.ReplaceAll(result, "?", ".")
	return "^" + result + "$"
}
