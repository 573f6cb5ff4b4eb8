// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package meta

import (
	"golang.org/x/mod/modfile"

	"github.com/AleutianAI/atlas/services/knowledge"
)

// readGoMod parses the repository's go.mod, or returns nil when absent
// or unparseable.
func readGoMod(root string) *modfile.File {
	data, ok := readFile(root, "go.mod")
	if !ok {
		return nil
	}
	f, err := modfile.Parse("go.mod", data, nil)
	if err != nil {
		return nil
	}
	return f
}

// applyGoModule fills Go metadata from go.mod: module path, go
// directive, and versions of known Go web frameworks found among the
// direct requires.
func applyGoModule(root string, md *knowledge.ProjectMetadata) {
	f := readGoMod(root)
	if f == nil {
		return
	}

	if f.Module != nil {
		md.GoModule = f.Module.Mod.Path
	}
	if f.Go != nil {
		md.GoVersion = f.Go.Version
	}

	for _, req := range f.Require {
		if req.Indirect {
			continue
		}
		framework, ok := goFrameworkPackages[req.Mod.Path]
		if !ok {
			continue
		}
		if md.FrameworkVersions == nil {
			md.FrameworkVersions = make(map[string]string, 1)
		}
		md.FrameworkVersions[framework] = cleanVersion(req.Mod.Version)
	}
}
