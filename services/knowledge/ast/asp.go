// Copyright (C) 2025 Aleutian AI
//
// This program is licensed under the GNU Affero General Public License v3.
// See the LICENSE.txt file for details.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"regexp"

	"github.com/AleutianAI/atlas/services/knowledge/scan"
)

// Classic ASP has no tree-sitter grammar; VBScript functions, subs,
// and server-side includes are extracted with regular expressions.
var (
	aspFunctionRe = regexp.MustCompile(`(?i)Function\s+(\w+)\s*\([^)]*\)`)
	aspSubRe      = regexp.MustCompile(`(?i)Sub\s+(\w+)\s*\([^)]*\)`)
	aspIncludeRe  = regexp.MustCompile(`(?i)<!--\s*#include\s+(?:file|virtual)\s*=\s*["']([^"']+)["']\s*-->`)
)

// ASPNormalizer extracts definitions from Classic ASP pages.
type ASPNormalizer struct{}

// NewASPNormalizer creates an ASP normalizer.
func NewASPNormalizer() *ASPNormalizer {
	return &ASPNormalizer{}
}

// Language returns the language name for this normalizer.
func (n *ASPNormalizer) Language() string {
	return scan.LangASP
}

// Normalize extracts Function and Sub definitions plus server-side
// include paths. Includes carry the referenced path, not the directive
// text.
func (n *ASPNormalizer) Normalize(ctx context.Context, path string, source []byte) (*Definitions, error) {
	if err := checkSource(ctx, source); err != nil {
		return nil, err
	}

	defs := &Definitions{}
	src := string(source)

	for _, m := range aspFunctionRe.FindAllStringSubmatch(src, -1) {
		defs.Functions = append(defs.Functions, Function{Name: m[1]})
	}
	for _, m := range aspSubRe.FindAllStringSubmatch(src, -1) {
		defs.Subroutines = append(defs.Subroutines, Function{Name: m[1]})
	}
	for _, m := range aspIncludeRe.FindAllStringSubmatch(src, -1) {
		defs.Includes = append(defs.Includes, m[1])
	}

	return defs, nil
}
