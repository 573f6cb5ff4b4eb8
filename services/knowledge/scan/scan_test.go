// Copyright (C) 2025 Aleutian AI
//
// This program is licensed under the GNU Affero General Public License v3.
// See the LICENSE.txt file for details.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// writeFile creates a file (and parent dirs) under root.
func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestScan_ClassifiesByExtension(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app.py", "print('hi')\n")
	writeFile(t, root, "web/index.ts", "export const x = 1\n")
	writeFile(t, root, "web/view.tsx", "export const V = () => null\n")
	writeFile(t, root, "legacy/site.asp", "<% Response.Write(\"hi\") %>\n")
	writeFile(t, root, "native/main.cpp", "int main() { return 0; }\n")
	writeFile(t, root, "README.md", "# docs\n")
	writeFile(t, root, "data.json", "{}\n")

	files, err := Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	got := make(map[string]string, len(files))
	for _, f := range files {
		got[f.RelPath] = f.Language
	}
	want := map[string]string{
		"app.py":          LangPython,
		"web/index.ts":    LangTypeScript,
		"web/view.tsx":    LangTypeScript,
		"legacy/site.asp": LangASP,
		"native/main.cpp": LangCPP,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Scan() = %v, want %v", got, want)
	}

	for _, f := range files {
		if !filepath.IsAbs(f.AbsPath) {
			t.Errorf("AbsPath %q is not absolute", f.AbsPath)
		}
		if filepath.Base(f.AbsPath) != filepath.Base(f.RelPath) {
			t.Errorf("AbsPath %q does not match RelPath %q", f.AbsPath, f.RelPath)
		}
	}
}

func TestScan_SkipsDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app.py", "x = 1\n")
	writeFile(t, root, "node_modules/pkg/index.js", "module.exports = {}\n")
	writeFile(t, root, ".git/hooks/pre-commit.py", "x = 1\n")
	writeFile(t, root, "cloned_repos/other/main.py", "x = 1\n")
	writeFile(t, root, "venv/lib/site.py", "x = 1\n")
	writeFile(t, root, "__pycache__/app.py", "x = 1\n")
	writeFile(t, root, "src/dist/bundle.js", "var x\n")

	files, err := Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(files) != 1 || files[0].RelPath != "app.py" {
		t.Errorf("Scan() = %v, want only app.py", files)
	}
}

func TestScan_RootNamedLikeSkipDir(t *testing.T) {
	// A root directory that happens to be named "build" is still scanned;
	// only nested directories are pruned.
	parent := t.TempDir()
	root := filepath.Join(parent, "build")
	writeFile(t, parent, "build/main.java", "class Main {}\n")

	files, err := Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(files) != 1 || files[0].Language != LangJava {
		t.Errorf("Scan() = %v, want main.java", files)
	}
}

func TestScan_ExtraSkipDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app.py", "x = 1\n")
	writeFile(t, root, "generated/gen.py", "x = 1\n")

	s := New(Options{SkipDirs: []string{"generated"}})
	files, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(files) != 1 || files[0].RelPath != "app.py" {
		t.Errorf("Scan() = %v, want only app.py", files)
	}
}

func TestScan_MaxFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "x = 1\n")
	writeFile(t, root, "b.py", "x = 2\n")

	s := New(Options{MaxFiles: 1})
	_, err := s.Scan(context.Background(), root)
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("Scan() error = %v, want ErrTooLarge", err)
	}
}

func TestScan_ContextCancellation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "x = 1\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Scan(ctx, root)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Scan() error = %v, want context.Canceled", err)
	}
}

func TestLanguageForPath(t *testing.T) {
	tests := []struct {
		path string
		lang string
		ok   bool
	}{
		{"src/app.py", LangPython, true},
		{"a/b/c.js", LangJavaScript, true},
		{"view.JSX", LangJavaScript, true},
		{"main.ts", LangTypeScript, true},
		{"comp.tsx", LangTypeScript, true},
		{"Main.java", LangJava, true},
		{"lib.c", LangC, true},
		{"lib.h", LangC, true},
		{"impl.cc", LangCPP, true},
		{"impl.cxx", LangCPP, true},
		{"hdr.hpp", LangCPP, true},
		{"hdr.hxx", LangCPP, true},
		{"Service.cs", LangCSharp, true},
		{"page.asp", LangASP, true},
		{"page.aspx", LangASP, true},
		{"README.md", "", false},
		{"Makefile", "", false},
		{"archive.tar.gz", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			lang, ok := LanguageForPath(tt.path)
			if lang != tt.lang || ok != tt.ok {
				t.Errorf("LanguageForPath(%q) = (%q, %v), want (%q, %v)",
					tt.path, lang, ok, tt.lang, tt.ok)
			}
		})
	}
}

func TestLanguages(t *testing.T) {
	files := []File{
		{RelPath: "a.ts", Language: LangTypeScript},
		{RelPath: "b.py", Language: LangPython},
		{RelPath: "c.ts", Language: LangTypeScript},
	}
	got := Languages(files)
	want := []string{LangPython, LangTypeScript}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Languages() = %v, want %v", got, want)
	}
}

func TestCountByLanguage(t *testing.T) {
	files := []File{
		{RelPath: "a.ts", Language: LangTypeScript},
		{RelPath: "b.py", Language: LangPython},
		{RelPath: "c.ts", Language: LangTypeScript},
	}
	got := CountByLanguage(files)
	if got[LangTypeScript] != 2 || got[LangPython] != 1 {
		t.Errorf("CountByLanguage() = %v", got)
	}
}

func TestExtensions(t *testing.T) {
	got := Extensions(LangCPP)
	want := []string{"cc", "cpp", "cxx", "hpp", "hxx"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extensions(cpp) = %v, want %v", got, want)
	}
	if Extensions("fortran") != nil {
		t.Errorf("Extensions(fortran) = %v, want nil", Extensions("fortran"))
	}
}
