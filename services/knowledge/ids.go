// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package knowledge

import (
	"path/filepath"
	"strings"
)

// ID prefixes. IDs are stable across regenerations because they
// derive from repo-relative paths and names, never from content.
const (
	// ModuleIDPrefix starts every module ID: "mod:<repo-relative-path>".
	ModuleIDPrefix = "mod:"

	// SymbolIDPrefix starts every symbol ID: "sym:<moduleId>:<name>".
	SymbolIDPrefix = "sym:"

	// FeatureIDPrefix starts every feature ID: "feat:<folder-path>".
	FeatureIDPrefix = "feat:"

	// EndpointIDPrefix starts every endpoint ID.
	EndpointIDPrefix = "ep:"
)

// ModuleID builds a module ID from a repo-relative file path.
// Separators are normalized to forward slashes so IDs are identical
// across operating systems.
func ModuleID(relPath string) string {
	return ModuleIDPrefix + filepath.ToSlash(relPath)
}

// SymbolID builds a symbol ID from the owning module's ID and the
// symbol's qualified name ("Name" or "Class.method").
func SymbolID(moduleID, name string) string {
	return SymbolIDPrefix + moduleID + ":" + name
}

// FeatureID builds a feature ID from a repo-relative folder path.
func FeatureID(folderPath string) string {
	return FeatureIDPrefix + filepath.ToSlash(folderPath)
}

// EndpointID builds an endpoint ID from the handling module's ID,
// the HTTP method, and the route path.
func EndpointID(moduleID, method, path string) string {
	if method == "" {
		return EndpointIDPrefix + moduleID + ":" + path
	}
	return EndpointIDPrefix + moduleID + ":" + method + ":" + path
}

// IsModuleID reports whether id is a module ID.
func IsModuleID(id string) bool { return strings.HasPrefix(id, ModuleIDPrefix) }

// IsSymbolID reports whether id is a symbol ID.
func IsSymbolID(id string) bool { return strings.HasPrefix(id, SymbolIDPrefix) }

// IsFeatureID reports whether id is a feature ID.
func IsFeatureID(id string) bool { return strings.HasPrefix(id, FeatureIDPrefix) }

// IsEndpointID reports whether id is an endpoint ID.
func IsEndpointID(id string) bool { return strings.HasPrefix(id, EndpointIDPrefix) }

// ModulePath returns the repo-relative path encoded in a module ID,
// or "" when id is not a module ID.
func ModulePath(id string) string {
	if !IsModuleID(id) {
		return ""
	}
	return strings.TrimPrefix(id, ModuleIDPrefix)
}

// SymbolName returns the qualified name encoded in a symbol ID, or
// "" when id is not a symbol ID.
func SymbolName(id string) string {
	if !IsSymbolID(id) {
		return ""
	}
	rest := strings.TrimPrefix(id, SymbolIDPrefix)
	i := strings.LastIndex(rest, ":")
	if i < 0 || i == len(rest)-1 {
		return ""
	}
	return rest[i+1:]
}

// ModuleIDFromRef resolves an edge endpoint reference to the module
// it belongs to. Module IDs pass through unchanged; symbol IDs yield
// the embedded module ID ("sym:mod:a/b.py:Name" -> "mod:a/b.py").
// Anything else returns "".
func ModuleIDFromRef(ref string) string {
	if IsModuleID(ref) {
		return ref
	}
	if IsSymbolID(ref) {
		// A symbol ID embeds the full module ID between the "sym:"
		// prefix and the final ":<name>" segment. Strip both; the
		// middle must itself be a module ID.
		rest := strings.TrimPrefix(ref, SymbolIDPrefix)
		i := strings.LastIndex(rest, ":")
		if i <= 0 {
			return ""
		}
		mid := rest[:i]
		if !IsModuleID(mid) {
			return ""
		}
		return mid
	}
	return ""
}
