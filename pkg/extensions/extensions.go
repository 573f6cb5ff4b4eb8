// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extensions defines interfaces for enterprise functionality.
//
// The open source agent runs fully local with no-op defaults for all
// interfaces. Enterprise builds provide concrete implementations (SSO
// token validation, compliance audit sinks, diff redaction policies)
// and inject them via ServiceOptions without modifying the core
// codebase.
//
// All interface implementations must be safe for concurrent use.
package extensions

// ServiceOptions groups all extension points for service configuration.
//
// Pass this to service constructors to enable enterprise features.
// All fields are optional; nil values are replaced with no-op defaults
// when DefaultOptions() is called.
type ServiceOptions struct {
	// AuthProvider validates connection credentials.
	// Default: NopAuthProvider (always returns the local user)
	AuthProvider AuthProvider

	// AuditLogger records security-relevant agent events.
	// Default: NopAuditLogger (discards all events)
	AuditLogger AuditLogger

	// ChangeFilter transforms diffs before they leave the server.
	// Default: NopChangeFilter (passes through unchanged)
	ChangeFilter ChangeFilter
}

// DefaultOptions returns ServiceOptions with no-op defaults.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuthProvider: &NopAuthProvider{},
		AuditLogger:  &NopAuditLogger{},
		ChangeFilter: &NopChangeFilter{},
	}
}

// WithAuth returns a copy of opts with the given AuthProvider.
func (opts ServiceOptions) WithAuth(provider AuthProvider) ServiceOptions {
	opts.AuthProvider = provider
	return opts
}

// WithAudit returns a copy of opts with the given AuditLogger.
func (opts ServiceOptions) WithAudit(logger AuditLogger) ServiceOptions {
	opts.AuditLogger = logger
	return opts
}

// WithChangeFilter returns a copy of opts with the given ChangeFilter.
func (opts ServiceOptions) WithChangeFilter(filter ChangeFilter) ServiceOptions {
	opts.ChangeFilter = filter
	return opts
}

// Normalize replaces nil fields with no-op defaults so callers can
// use a partially populated ServiceOptions safely.
func (opts ServiceOptions) Normalize() ServiceOptions {
	if opts.AuthProvider == nil {
		opts.AuthProvider = &NopAuthProvider{}
	}
	if opts.AuditLogger == nil {
		opts.AuditLogger = &NopAuditLogger{}
	}
	if opts.ChangeFilter == nil {
		opts.ChangeFilter = &NopChangeFilter{}
	}
	return opts
}
