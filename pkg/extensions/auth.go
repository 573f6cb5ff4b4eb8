// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import "context"

// Identity describes an authenticated principal.
type Identity struct {
	// UserID is a stable identifier for the user.
	UserID string

	// DisplayName is a human-readable name for logs and audit records.
	DisplayName string

	// Roles carries coarse-grained permissions ("viewer", "editor",
	// "approver"). The open source agent does not interpret roles.
	Roles []string
}

// AuthProvider validates connection credentials.
//
// The agent calls Authenticate once per websocket connection with the
// bearer token from the request (empty when none was sent).
type AuthProvider interface {
	// Authenticate validates token and returns the caller's identity.
	// A non-nil error rejects the connection.
	Authenticate(ctx context.Context, token string) (Identity, error)
}

// NopAuthProvider accepts every connection as the local user. This is
// the open source default: a single-user tool on localhost.
type NopAuthProvider struct{}

// Authenticate always succeeds with a local identity.
func (p *NopAuthProvider) Authenticate(ctx context.Context, token string) (Identity, error) {
	return Identity{
		UserID:      "local",
		DisplayName: "Local User",
		Roles:       []string{"approver"},
	}, nil
}
