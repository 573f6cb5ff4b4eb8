// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package testrun executes a repository's test suite, linter, and type
// checker and parses the results into counts the verifier can gate on.
//
// # Design Principles
//
//   - The runner never installs anything. It detects the project
//     language from indicator files, probes for the matching tools,
//     and skips with a successful "skipped" result when a tool is not
//     on PATH: an agent host without a toolchain must not veto a
//     change it cannot judge.
//   - Tests are mandatory signal, lint and typecheck are advisory.
//     A test subprocess failure or timeout fails the build; a linter
//     that breaks or times out degrades to a soft pass with a message.
//   - Subprocesses run in their own process group and the whole group
//     is killed on timeout, so an npm test run cannot leave watcher
//     children behind.
//
// # Thread Safety
//
// A Runner is immutable after New and safe for concurrent use; each
// call spawns its own subprocess.
package testrun

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	// defaultTestTimeout bounds a test suite run.
	defaultTestTimeout = 300 * time.Second

	// toolTimeout bounds lint and typecheck runs.
	toolTimeout = 60 * time.Second
)

// TestResult reports one test suite run.
type TestResult struct {
	TestsPassed  int    `json:"tests_passed"`
	TestsFailed  int    `json:"tests_failed"`
	TestOutput   string `json:"test_output"`
	BuildSuccess bool   `json:"build_success"`
	ExitCode     int    `json:"exit_code"`
	Error        string `json:"error,omitempty"`

	// Skipped marks a run that never happened because the language is
	// supported but its test tool is not installed.
	Skipped bool `json:"skipped,omitempty"`
}

// LintResult reports one linter run.
type LintResult struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Success  bool     `json:"success"`
	Output   string   `json:"output,omitempty"`
	Message  string   `json:"message,omitempty"`
	Skipped  bool     `json:"skipped,omitempty"`
}

// TypecheckResult reports one type checker run.
type TypecheckResult struct {
	Errors  []string `json:"errors"`
	Success bool     `json:"success"`
	Output  string   `json:"output,omitempty"`
	Message string   `json:"message,omitempty"`
	Skipped bool     `json:"skipped,omitempty"`
}

// Runner executes tests and static analysis for one repository.
type Runner struct {
	repoPath    string
	language    string
	testTimeout time.Duration
	logger      *slog.Logger
}

// New builds a Runner for the repository at repoPath. The language is
// detected from indicator files at the root. testTimeout bounds test
// suite runs; zero or negative selects the default.
func New(repoPath string, testTimeout time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if testTimeout <= 0 {
		testTimeout = defaultTestTimeout
	}

	abs, err := filepath.Abs(repoPath)
	if err != nil {
		abs = repoPath
	}

	return &Runner{
		repoPath:    abs,
		language:    detectLanguage(abs),
		testTimeout: testTimeout,
		logger:      logger,
	}
}

// Language reports the detected project language.
func (r *Runner) Language() string {
	return r.language
}

// detectLanguage maps root-level indicator files to a language name.
// The order mirrors the tooling ecosystems' conventions: a package
// manifest wins over a stray requirements file.
func detectLanguage(repoPath string) string {
	exists := func(name string) bool {
		_, err := os.Stat(filepath.Join(repoPath, name))
		return err == nil
	}

	switch {
	case exists("package.json"):
		return "typescript"
	case exists("requirements.txt"):
		return "python"
	case exists("pom.xml"), exists("build.gradle"):
		return "java"
	case exists("go.mod"):
		return "go"
	}

	if matches, err := filepath.Glob(filepath.Join(repoPath, "*.csproj")); err == nil && len(matches) > 0 {
		return "csharp"
	}
	return "unknown"
}

// RunTests runs the test suite for language, or for the detected
// language when language is empty.
func (r *Runner) RunTests(ctx context.Context, language string) TestResult {
	lang := language
	if lang == "" {
		lang = r.language
	}

	switch lang {
	case "python":
		return r.runPythonTests(ctx)
	case "typescript", "javascript":
		return r.runTypescriptTests(ctx)
	case "java":
		return r.runJavaTests(ctx)
	case "csharp":
		return r.runCsharpTests(ctx)
	case "go":
		return r.runGoTests(ctx)
	default:
		return TestResult{
			TestOutput: "Language not detected or not supported",
			Error:      "Unsupported language",
		}
	}
}

func (r *Runner) runPythonTests(ctx context.Context) TestResult {
	var argv []string
	if _, err := exec.LookPath("pytest"); err == nil {
		argv = []string{"pytest", "-q", "--tb=short"}
	} else if py := findPython(); py != "" {
		argv = []string{py, "-m", "pytest", "-q", "--tb=short"}
	} else {
		return r.skippedTests("pytest")
	}

	res := r.run(ctx, r.testTimeout, argv[0], argv[1:]...)
	return r.testResult(res, parsePytest)
}

func findPython() string {
	for _, name := range []string{"python", "python3"} {
		if _, err := exec.LookPath(name); err == nil {
			return name
		}
	}
	return ""
}

func (r *Runner) runTypescriptTests(ctx context.Context) TestResult {
	if _, err := os.Stat(filepath.Join(r.repoPath, "package.json")); err != nil {
		return TestResult{
			TestOutput: "package.json not found",
			Error:      "No package.json",
		}
	}
	if _, err := exec.LookPath("npm"); err != nil {
		return r.skippedTests("npm")
	}

	res := r.run(ctx, r.testTimeout, "npm", "test")
	return r.testResult(res, parseJest)
}

func (r *Runner) runJavaTests(ctx context.Context) TestResult {
	switch {
	case fileExists(filepath.Join(r.repoPath, "pom.xml")):
		if _, err := exec.LookPath("mvn"); err != nil {
			return r.skippedTests("mvn")
		}
		res := r.run(ctx, r.testTimeout, "mvn", "test")
		return r.testResult(res, parseMaven)

	case fileExists(filepath.Join(r.repoPath, "build.gradle")):
		gradlew := filepath.Join(r.repoPath, "gradlew")
		if !fileExists(gradlew) {
			return r.skippedTests("gradlew")
		}
		res := r.run(ctx, r.testTimeout, gradlew, "test")
		return r.testResult(res, parseMaven)

	default:
		return TestResult{
			TestOutput: "No build file found (pom.xml or build.gradle)",
			Error:      "No build file",
		}
	}
}

func (r *Runner) runCsharpTests(ctx context.Context) TestResult {
	if _, err := exec.LookPath("dotnet"); err != nil {
		return r.skippedTests("dotnet")
	}
	res := r.run(ctx, r.testTimeout, "dotnet", "test")
	return r.testResult(res, parseDotnet)
}

func (r *Runner) runGoTests(ctx context.Context) TestResult {
	if _, err := exec.LookPath("go"); err != nil {
		return r.skippedTests("go")
	}
	res := r.run(ctx, r.testTimeout, "go", "test", "./...")
	return r.testResult(res, parseGoTest)
}

// testResult folds a subprocess result and a parser into the report.
func (r *Runner) testResult(res execResult, parse func(string) (int, int)) TestResult {
	if res.timedOut {
		return TestResult{
			TestOutput:   "Test execution timed out",
			BuildSuccess: false,
			Error:        "Timeout",
		}
	}
	if res.err != nil {
		r.logger.Error("test run failed", "error", res.err)
		return TestResult{
			TestOutput:   res.err.Error(),
			BuildSuccess: false,
			Error:        res.err.Error(),
		}
	}

	passed, failed := parse(res.output)
	return TestResult{
		TestsPassed:  passed,
		TestsFailed:  failed,
		TestOutput:   res.output,
		BuildSuccess: res.exitCode == 0,
		ExitCode:     res.exitCode,
	}
}

func (r *Runner) skippedTests(tool string) TestResult {
	r.logger.Warn("test tool not available, skipping tests", "tool", tool)
	return TestResult{
		TestOutput:   tool + " not available; tests skipped",
		BuildSuccess: true,
		Skipped:      true,
	}
}

// RunLinter runs the linter for language, or for the detected language
// when language is empty. Linters are advisory: a missing or broken
// linter reports success with a message, never a failure.
func (r *Runner) RunLinter(ctx context.Context, language string) LintResult {
	lang := language
	if lang == "" {
		lang = r.language
	}

	switch lang {
	case "python":
		return r.lint(ctx, "pylint", "pylint", "--errors-only", ".")
	case "typescript", "javascript":
		return r.lint(ctx, "npx", "npx", "eslint", ".")
	case "go":
		return r.lint(ctx, "go", "go", "vet", "./...")
	default:
		return LintResult{
			Errors:   []string{},
			Warnings: []string{},
			Success:  true,
			Message:  "Linter not configured for this language",
			Skipped:  true,
		}
	}
}

func (r *Runner) lint(ctx context.Context, tool, name string, args ...string) LintResult {
	if _, err := exec.LookPath(tool); err != nil {
		return LintResult{
			Errors:   []string{},
			Warnings: []string{},
			Success:  true,
			Message:  "Linter not available: " + tool + " not found",
			Skipped:  true,
		}
	}

	res := r.run(ctx, toolTimeout, name, args...)
	if res.timedOut {
		return LintResult{
			Errors:   []string{},
			Warnings: []string{},
			Success:  true,
			Message:  "Linter not available: timeout",
			Skipped:  true,
		}
	}
	if res.err != nil {
		r.logger.Error("linter run failed", "tool", tool, "error", res.err)
		return LintResult{
			Errors:   []string{},
			Warnings: []string{},
			Success:  true,
			Message:  "Linter not available: " + res.err.Error(),
			Skipped:  true,
		}
	}

	return LintResult{
		Errors:   splitLines(res.output),
		Warnings: []string{},
		Success:  res.exitCode == 0,
		Output:   res.output,
	}
}

// RunTypecheck runs the type checker for language, or for the detected
// language when language is empty. Like linters, type checkers are
// advisory.
func (r *Runner) RunTypecheck(ctx context.Context, language string) TypecheckResult {
	lang := language
	if lang == "" {
		lang = r.language
	}

	switch lang {
	case "python":
		return r.typecheck(ctx, "mypy", "mypy", ".")
	case "typescript":
		return r.typecheck(ctx, "npx", "npx", "tsc", "--noEmit")
	default:
		return TypecheckResult{
			Errors:  []string{},
			Success: true,
			Message: "Type checker not configured for this language",
			Skipped: true,
		}
	}
}

func (r *Runner) typecheck(ctx context.Context, tool, name string, args ...string) TypecheckResult {
	if _, err := exec.LookPath(tool); err != nil {
		return TypecheckResult{
			Errors:  []string{},
			Success: true,
			Message: "Type checker not available: " + tool + " not found",
			Skipped: true,
		}
	}

	res := r.run(ctx, toolTimeout, name, args...)
	if res.timedOut {
		return TypecheckResult{
			Errors:  []string{},
			Success: true,
			Message: "Type checker not available: timeout",
			Skipped: true,
		}
	}
	if res.err != nil {
		r.logger.Error("type checker run failed", "tool", tool, "error", res.err)
		return TypecheckResult{
			Errors:  []string{},
			Success: true,
			Message: "Type checker not available: " + res.err.Error(),
			Skipped: true,
		}
	}

	return TypecheckResult{
		Errors:  splitLines(res.output),
		Success: res.exitCode == 0,
		Output:  res.output,
	}
}

// execResult is the raw outcome of one subprocess.
type execResult struct {
	output   string
	exitCode int
	timedOut bool
	err      error
}

// run executes a command in the repository with combined output and a
// timeout. On timeout the command's whole process group is killed and
// partial output is discarded by the callers, matching the fixed
// timeout messages they report.
func (r *Runner) run(ctx context.Context, timeout time.Duration, name string, args ...string) execResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.Command(name, args...)
	cmd.Dir = r.repoPath
	setProcessGroup(cmd)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	if err := cmd.Start(); err != nil {
		return execResult{err: err}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		killProcessGroup(cmd.Process)
		<-done
		return execResult{output: buf.String(), timedOut: true}

	case err := <-done:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return execResult{output: buf.String(), exitCode: exitErr.ExitCode()}
		}
		if err != nil {
			return execResult{output: buf.String(), err: err}
		}
		return execResult{output: buf.String()}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// splitLines splits tool output into lines, dropping the trailing
// newline artifact. Empty output yields an empty slice.
func splitLines(output string) []string {
	trimmed := strings.TrimRight(output, "\n")
	if trimmed == "" {
		return []string{}
	}
	return strings.Split(trimmed, "\n")
}
