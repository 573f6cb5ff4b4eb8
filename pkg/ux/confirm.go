// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"strings"
)

// Confirm asks a yes/no question. Interactive sessions get a styled
// form; everything else falls back to a plain y/N prompt on the given
// reader so piped input and tests still work.
func Confirm(title string, reader InputReader) (bool, error) {
	if IsInteractive() {
		return confirmForm(title)
	}

	fmt.Printf("%s [y/N]: ", title)
	line, err := reader.ReadLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
