// Copyright (C) 2025 Aleutian AI
//
// This program is licensed under the GNU Affero General Public License v3.
// See the LICENSE.txt file for details.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scan walks a project tree and classifies source files by
// language. It is the first pass of knowledge-graph generation: every
// downstream stage (normalization, metadata, relationships) operates on
// the file records produced here.
//
// Design principles:
//   - Closed extension map. Only the languages the normalizers understand
//     are reported; everything else is skipped silently.
//   - Relative paths always use forward slashes, on every platform, so
//     module IDs derived from them are stable across machines.
//   - Directories that never hold first-party source (.git, node_modules,
//     vendor, build output, nested clones) are pruned, not descended.
package scan

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// ===== Languages =====

// Language names reported by the scanner. Downstream packages key their
// per-language behavior (normalizers, import resolution) on these values.
const (
	LangPython     = "python"
	LangJavaScript = "javascript"
	LangTypeScript = "typescript"
	LangJava       = "java"
	LangC          = "c"
	LangCPP        = "cpp"
	LangCSharp     = "csharp"
	LangASP        = "asp"
)

// languageByExt maps file extensions (with leading dot, lowercase) to
// language names. The map is closed: extensions not listed here are not
// source files as far as the knowledge graph is concerned.
var languageByExt = map[string]string{
	".py":   LangPython,
	".js":   LangJavaScript,
	".jsx":  LangJavaScript,
	".ts":   LangTypeScript,
	".tsx":  LangTypeScript,
	".java": LangJava,
	".c":    LangC,
	".h":    LangC,
	".cpp":  LangCPP,
	".cc":   LangCPP,
	".cxx":  LangCPP,
	".hpp":  LangCPP,
	".hxx":  LangCPP,
	".cs":   LangCSharp,
	".asp":  LangASP,
	".aspx": LangASP,
}

// defaultSkipDirs are directory basenames pruned during the walk. They
// cover VCS internals, dependency trees, build output, and the agent's
// own clone root (so scanning a workspace never recurses into other
// checkouts).
var defaultSkipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"bin":          true,
	"obj":          true,
	"vendor":       true,
	"__pycache__":  true,
	"venv":         true,
	".venv":        true,
	"cloned_repos": true,
}

// ErrTooLarge is returned when a walk exceeds the configured file or
// byte limits.
var ErrTooLarge = errors.New("scan: project exceeds configured limits")

// ===== Types =====

// File is one classified source file.
type File struct {
	// AbsPath is the absolute filesystem path.
	AbsPath string `json:"abs_path"`

	// RelPath is the path relative to the scanned root, forward slashes.
	RelPath string `json:"rel_path"`

	// Language is one of the Lang* constants.
	Language string `json:"language"`
}

// Options configures a Scanner. The zero value scans everything the
// default skip set allows, with no size limits.
type Options struct {
	// SkipDirs lists extra directory basenames to prune, in addition to
	// the defaults.
	SkipDirs []string

	// MaxFiles caps the number of classified files. 0 means unlimited.
	MaxFiles int

	// MaxTotalBytes caps the cumulative size of classified files.
	// 0 means unlimited.
	MaxTotalBytes int64
}

// Scanner walks project trees. Safe for concurrent use; it holds no
// per-walk state.
type Scanner struct {
	skip     map[string]bool
	maxFiles int
	maxBytes int64
}

// ===== Construction =====

// New returns a Scanner with the given options applied on top of the
// default skip set.
func New(opts Options) *Scanner {
	skip := make(map[string]bool, len(defaultSkipDirs)+len(opts.SkipDirs))
	for name := range defaultSkipDirs {
		skip[name] = true
	}
	for _, name := range opts.SkipDirs {
		if name != "" {
			skip[name] = true
		}
	}
	return &Scanner{
		skip:     skip,
		maxFiles: opts.MaxFiles,
		maxBytes: opts.MaxTotalBytes,
	}
}

// Scan walks root with default options.
func Scan(ctx context.Context, root string) ([]File, error) {
	return New(Options{}).Scan(ctx, root)
}

// ===== Scanning =====

// Scan walks root and returns one File per recognized source file, in
// walk order. Unreadable entries are skipped rather than failing the
// whole walk; context cancellation aborts it.
func (s *Scanner) Scan(ctx context.Context, root string) ([]File, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var (
		files      []File
		totalBytes int64
	)

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip entries we can't access
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if d.IsDir() {
			if path != absRoot && s.skip[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		lang, ok := LanguageForPath(path)
		if !ok {
			return nil
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}

		if s.maxBytes > 0 {
			info, err := d.Info()
			if err != nil {
				return nil
			}
			totalBytes += info.Size()
			if totalBytes > s.maxBytes {
				return ErrTooLarge
			}
		}

		files = append(files, File{
			AbsPath:  path,
			RelPath:  filepath.ToSlash(relPath),
			Language: lang,
		})
		if s.maxFiles > 0 && len(files) > s.maxFiles {
			return ErrTooLarge
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// ===== Helpers =====

// LanguageForPath reports the language for a file path based on its
// extension. The second return is false for unrecognized extensions.
func LanguageForPath(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := languageByExt[ext]
	return lang, ok
}

// SkipDir reports whether a directory basename is in the default skip
// set. Watchers use it to prune the same trees the scanner prunes.
func SkipDir(name string) bool {
	return defaultSkipDirs[name]
}

// Extensions returns the recognized extensions for a language, without
// leading dots, sorted. It returns nil for unknown languages.
func Extensions(language string) []string {
	var exts []string
	for ext, lang := range languageByExt {
		if lang == language {
			exts = append(exts, strings.TrimPrefix(ext, "."))
		}
	}
	sort.Strings(exts)
	return exts
}

// Languages returns the distinct languages present in files, sorted.
func Languages(files []File) []string {
	seen := make(map[string]bool, 4)
	for _, f := range files {
		seen[f.Language] = true
	}
	langs := make([]string, 0, len(seen))
	for lang := range seen {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// CountByLanguage returns the number of files per language.
func CountByLanguage(files []File) map[string]int {
	counts := make(map[string]int, 4)
	for _, f := range files {
		counts[f.Language]++
	}
	return counts
}
