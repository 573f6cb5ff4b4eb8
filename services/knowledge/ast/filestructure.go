// Copyright (C) 2025 Aleutian AI
//
// This program is licensed under the GNU Affero General Public License v3.
// See the LICENSE.txt file for details.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/AleutianAI/atlas/services/knowledge"
)

var (
	standaloneRe  = regexp.MustCompile(`(?i)standalone\s*:\s*true`)
	templateURLRe = regexp.MustCompile(`(?i)templateUrl\s*:\s*["']([^"']+)["']`)
	styleURLsRe   = regexp.MustCompile(`(?i)styleUrls\s*:\s*\[([^\]]+)\]`)
	quotedPathRe  = regexp.MustCompile(`["']([^"']+)["']`)
)

var (
	templateSuffixes = []string{".html", ".template.html"}
	styleSuffixes    = []string{".css", ".scss", ".less", ".sass"}
)

// AnalyzeFileStructure detects sibling template and style files for a
// component source file, plus Angular standalone components. Paths in
// the result are relative to the component's directory. The result is
// nil when nothing is detected.
//
// Sibling checks hit the filesystem, so path should be the absolute
// location of the file being analyzed.
func AnalyzeFileStructure(path string, source []byte) *knowledge.FileStructure {
	if len(source) == 0 {
		return nil
	}

	src := string(source)
	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	fs := &knowledge.FileStructure{}

	if strings.Contains(strings.ToLower(src), "@component") && standaloneRe.MatchString(src) {
		fs.IsStandalone = true
	}

	for _, suffix := range templateSuffixes {
		if rel, ok := siblingPath(dir, base+suffix); ok {
			fs.HasTemplate = true
			fs.TemplatePath = rel
			break
		}
	}
	if m := templateURLRe.FindStringSubmatch(src); m != nil {
		if rel, ok := resolveDecoratorPath(dir, m[1]); ok {
			fs.HasTemplate = true
			fs.TemplatePath = rel
		}
	}

	for _, suffix := range styleSuffixes {
		if rel, ok := siblingPath(dir, base+suffix); ok {
			fs.HasStyles = true
			fs.StylesPath = rel
			break
		}
	}
	if m := styleURLsRe.FindStringSubmatch(src); m != nil {
		if q := quotedPathRe.FindStringSubmatch(m[1]); q != nil {
			if rel, ok := resolveDecoratorPath(dir, q[1]); ok {
				fs.HasStyles = true
				fs.StylesPath = rel
			}
		}
	}

	if !fs.HasTemplate && !fs.HasStyles && !fs.IsStandalone {
		return nil
	}
	return fs
}

// siblingPath checks for a file next to the component and returns its
// directory-relative path.
func siblingPath(dir, name string) (string, bool) {
	if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
		return "", false
	}
	return name, true
}

// resolveDecoratorPath resolves a templateUrl/styleUrls reference
// against the component directory. Only relative references are
// followed, and only when the target exists.
func resolveDecoratorPath(dir, ref string) (string, bool) {
	if !strings.HasPrefix(ref, "./") && !strings.HasPrefix(ref, "../") {
		return "", false
	}
	target := filepath.Clean(filepath.Join(dir, ref))
	if _, err := os.Stat(target); err != nil {
		return "", false
	}
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
