// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that are used in
// subprocess calls, file paths, or database queries. Using these validators
// prevents injection attacks (command injection, path traversal).
package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// scpLikePattern matches git SCP-style remotes: git@host:owner/repo.git
var scpLikePattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]+@[A-Za-z0-9_.\-]+:[A-Za-z0-9_./\-]+$`)

// sessionIDPattern allows UUIDs and similar opaque client tokens.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9\-]{1,64}$`)

// ValidateRepoURL validates a repository URL before it is passed to a
// git subprocess. Accepts https://, http:// (local forges), ssh:// and
// SCP-style git@host:path remotes.
//
// Rejects anything with shell metacharacters or option-like leading
// dashes, which would otherwise reach `git clone` argv.
func ValidateRepoURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("repository URL cannot be empty")
	}
	if strings.HasPrefix(raw, "-") {
		return fmt.Errorf("repository URL cannot start with a dash: %q", raw)
	}
	if strings.ContainsAny(raw, " \t\n;|&$`'\"\\") {
		return fmt.Errorf("repository URL contains invalid characters: %q", raw)
	}

	if scpLikePattern.MatchString(raw) {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid repository URL %q: %w", raw, err)
	}
	switch u.Scheme {
	case "https", "http", "ssh", "git":
	default:
		return fmt.Errorf("unsupported URL scheme %q (use https, ssh, or git@host:path)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("repository URL %q has no host", raw)
	}
	if strings.Contains(u.Path, "..") {
		return fmt.Errorf("repository URL %q contains path traversal", raw)
	}
	return nil
}

// ValidateBranchName validates a git branch name per the rules git
// itself enforces (check-ref-format), plus a length cap.
func ValidateBranchName(name string) error {
	if name == "" {
		return fmt.Errorf("branch name cannot be empty")
	}
	if len(name) > 250 {
		return fmt.Errorf("branch name too long (%d chars)", len(name))
	}
	if strings.HasPrefix(name, "-") || strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return fmt.Errorf("invalid branch name: %q", name)
	}
	if strings.HasSuffix(name, ".lock") || strings.HasSuffix(name, ".") {
		return fmt.Errorf("invalid branch name: %q", name)
	}
	if strings.Contains(name, "..") || strings.Contains(name, "//") || strings.Contains(name, "@{") {
		return fmt.Errorf("invalid branch name: %q", name)
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("branch name contains control characters")
		}
		switch r {
		case ' ', '~', '^', ':', '?', '*', '[', '\\':
			return fmt.Errorf("branch name contains invalid character %q", r)
		}
	}
	return nil
}

// ValidateSessionID validates a client-supplied session identifier.
// Session IDs become journal keys and log fields, so they are kept to
// a conservative charset.
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("invalid session ID format: %q", id)
	}
	return nil
}
