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

// ChangeFilter transforms diffs before they are streamed to clients.
//
// Enterprise deployments use this to redact secrets or proprietary
// paths from diffs that leave the server. The filtered diff is what
// the client sees; the actual edit on disk is unaffected.
type ChangeFilter interface {
	// FilterDiff returns the diff to present for the given file.
	// Returning an empty string suppresses the diff entirely.
	FilterDiff(ctx context.Context, file, diff string) string
}

// NopChangeFilter passes diffs through unchanged. Open source default.
type NopChangeFilter struct{}

// FilterDiff returns diff unchanged.
func (f *NopChangeFilter) FilterDiff(ctx context.Context, file, diff string) string {
	return diff
}
