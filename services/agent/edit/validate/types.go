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

import "time"

// ErrorType classifies a blocking validation error.
type ErrorType string

const (
	ErrorTypeSyntax   ErrorType = "SYNTAX"
	ErrorTypeInternal ErrorType = "INTERNAL"
)

// WarnType classifies a validation warning.
type WarnType string

const (
	WarnTypeDangerousPattern WarnType = "DANGEROUS_PATTERN"
	WarnTypeSecret           WarnType = "SECRET"
	WarnTypeSSRF             WarnType = "SSRF"
	WarnTypeSQLInjection     WarnType = "SQL_INJECTION"
	WarnTypeTemplateInject   WarnType = "TEMPLATE_INJECTION"
	WarnTypePrototypePollute WarnType = "PROTOTYPE_POLLUTION"
	WarnTypeDeserialization  WarnType = "DESERIALIZATION"
	WarnTypePathTraversal    WarnType = "PATH_TRAVERSAL"

	// WarnTypeInternal marks a validator pipeline failure surfaced as
	// an advisory finding.
	WarnTypeInternal WarnType = "INTERNAL"
)

// Severity grades a warning.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Result is the verdict on one proposed file content.
type Result struct {
	// Valid reports whether the content may be written.
	Valid bool `json:"valid"`

	// Errors are blocking findings (syntax failures).
	Errors []Error `json:"errors,omitempty"`

	// Warnings are pattern and secret findings. A warning marked
	// Blocking invalidates the result unless the config says otherwise.
	Warnings []Warning `json:"warnings,omitempty"`

	// PatternVersion records the pattern database the scan used.
	PatternVersion string `json:"pattern_version"`

	// ValidatedAt is when the check ran.
	ValidatedAt time.Time `json:"validated_at"`
}

// FailureReasons lists the messages that made the result invalid:
// every error, plus every blocking warning. Empty for a valid result.
func (r *Result) FailureReasons() []string {
	if r.Valid {
		return nil
	}
	var reasons []string
	for _, e := range r.Errors {
		reasons = append(reasons, e.Message)
	}
	for _, w := range r.Warnings {
		if w.Blocking {
			reasons = append(reasons, w.Message)
		}
	}
	return reasons
}

// Error is a blocking validation error.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	File    string    `json:"file,omitempty"`
	Line    int       `json:"line,omitempty"`
}

// Warning is a non-fatal finding.
type Warning struct {
	Type       WarnType `json:"type"`
	Pattern    string   `json:"pattern"`
	File       string   `json:"file"`
	Line       int      `json:"line"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
	Blocking   bool     `json:"blocking"`
}

// Config tunes the validator.
type Config struct {
	// BlockDangerous makes blocking warnings invalidate the result.
	BlockDangerous bool

	// WarnOnly downgrades every warning to advisory.
	WarnOnly bool

	// AllowlistPaths are glob patterns exempt from secret scanning
	// (test files and fixtures legitimately hold fake credentials).
	AllowlistPaths []string

	// MinSecretEntropy is the Shannon-entropy floor below which a
	// secret match is treated as a false positive.
	MinSecretEntropy float64
}

// DefaultConfig returns the validator defaults.
func DefaultConfig() Config {
	return Config{
		BlockDangerous: true,
		WarnOnly:       false,
		AllowlistPaths: []string{
			"*_test.go",
			"test_*.py",
			"*.test.js",
			"*.test.ts",
			"*.spec.ts",
			"**/testdata/**",
			"**/fixtures/**",
			"**/__tests__/**",
		},
		MinSecretEntropy: 3.5,
	}
}

// DangerousPattern describes an AST construct worth flagging.
type DangerousPattern struct {
	// Name identifies the pattern in warnings.
	Name string

	// NodeType is the tree-sitter node type to match.
	NodeType string

	// FuncNames are the callee names that trigger the pattern.
	FuncNames []string

	Severity   Severity
	Message    string
	Suggestion string

	// Blocking marks findings that invalidate the content.
	Blocking bool

	WarnType WarnType
}

// SecretPattern describes a credential shape to scan for.
type SecretPattern struct {
	// Name identifies the pattern in warnings.
	Name string

	// Pattern is the regular expression to match.
	Pattern string

	// MinEntropy overrides the config floor; zero uses the default,
	// and a negative value disables the entropy gate (header-style
	// matches like PEM banners need no randomness check).
	MinEntropy float64

	Severity Severity
	Message  string
}
