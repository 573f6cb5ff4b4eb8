// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package edit applies an approved plan to a working tree: it opens a
// feature branch, rewrites or creates each task file through the LLM,
// validates the proposed content, and commits the result.
//
// # Design Principles
//
//   - Per-file failures never abort the run. Every file lands in either
//     the change list or the error list, and the caller decides what a
//     partial edit is worth.
//   - The LLM proposes, the validator disposes: content that fails
//     validation on an existing file is never written. Newly created
//     files validate non-blocking, because a half-right new file under
//     version control beats no file.
//   - Writes are atomic (temp file + rename); a crash mid-edit leaves
//     the working tree consistent.
//
// # Thread Safety
//
// An Editor owns its working tree. Concurrent ApplyEdits calls on the
// same Editor race on the filesystem and branch state; use one Editor
// per session.
package edit

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/atlas/services/agent/edit/validate"
	"github.com/AleutianAI/atlas/services/agent/plan"
	"github.com/AleutianAI/atlas/services/knowledge"
	"github.com/AleutianAI/atlas/services/knowledge/git"
	"github.com/AleutianAI/atlas/services/llm"
)

const (
	// editTemperature keeps file rewrites close to the instructions.
	editTemperature = float32(0.1)

	// branchPrefix namespaces agent branches in the target repo.
	branchPrefix = "feat/agent-"
)

// creationKeywords decide whether a missing task file should be
// created rather than reported missing.
var creationKeywords = []string{"create", "new", "add new", "generate", "implement"}

// Change records one successfully edited or created file.
type Change struct {
	File   string `json:"file"`
	Status string `json:"status"` // "created" or "modified"
	Diff   string `json:"diff"`
	TaskID int    `json:"task_id"`
}

// FileError records one file that could not be changed.
type FileError struct {
	File   string `json:"file"`
	Error  string `json:"error"`
	TaskID int    `json:"task_id"`

	// Validation carries the validator verdict when the failure was a
	// validation block.
	Validation *validate.Result `json:"validation,omitempty"`
}

// FileValidation pairs a changed file with its validator verdict.
type FileValidation struct {
	File       string           `json:"file"`
	Validation *validate.Result `json:"validation"`
	TaskID     int              `json:"task_id"`
}

// Result aggregates the outcome of applying a plan.
type Result struct {
	Changes           []Change         `json:"changes"`
	Errors            []FileError      `json:"errors"`
	ValidationResults []FileValidation `json:"validation_results"`
	TotalFiles        int              `json:"total_files"`
	Success           bool             `json:"success"`
	Stats             Stats            `json:"stats"`
}

// fileOutcome is the internal per-file result before aggregation.
type fileOutcome struct {
	status     string
	diff       string
	validation *validate.Result
	errMsg     string
}

// Editor executes code edits on a repository working tree.
type Editor struct {
	repoPath  string
	client    llm.LLMClient
	git       *git.Driver
	validator *validate.Validator
	logger    *slog.Logger
	isRepo    bool
}

// New builds an Editor for the working tree at repoPath. client may be
// nil; edits then fail with "No changes applied" and creations with a
// generation error. A repoPath outside a git working tree disables
// branch and commit operations but still allows file edits.
func New(repoPath string, client llm.LLMClient, d *git.Driver, logger *slog.Logger) (*Editor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if d == nil {
		d = git.New("", "")
	}

	abs, err := filepath.Abs(repoPath)
	if err != nil {
		abs = repoPath
	}

	validator, err := validate.New(validate.DefaultConfig())
	if err != nil {
		return nil, err
	}

	isRepo := git.IsRepository(abs)
	if !isRepo {
		logger.Warn("not a git repository", "path", abs)
	}

	return &Editor{
		repoPath:  abs,
		client:    client,
		git:       d,
		validator: validator,
		logger:    logger,
		isRepo:    isRepo,
	}, nil
}

// BranchForPlan derives the feature branch name from a plan ID.
func BranchForPlan(planID string) string {
	id := planID
	if len(id) > 8 {
		id = id[:8]
	}
	return branchPrefix + id
}

// CreateBranch checks out branch, creating it when missing. Outside a
// git working tree it is a logged no-op so edits on plain directories
// still run.
func (e *Editor) CreateBranch(ctx context.Context, branch string) (string, error) {
	if !e.isRepo {
		e.logger.Warn("not a git repository, skipping branch creation")
		return branch, nil
	}
	if err := e.git.CheckoutBranch(ctx, e.repoPath, branch); err != nil {
		e.logger.Error("creating branch failed", "branch", branch, "error", err)
		return "", err
	}
	e.logger.Info("checked out branch", "branch", branch)
	return branch, nil
}

// ApplyEdits runs every task of the plan against the working tree. g
// grounds prompts in the project's conventions and may be nil.
func (e *Editor) ApplyEdits(ctx context.Context, p plan.Plan, g *knowledge.Graph) Result {
	var result Result

	for _, t := range p.Tasks {
		for _, file := range t.Files {
			full := filepath.Join(e.repoPath, file)

			var outcome fileOutcome
			if _, err := os.Stat(full); err != nil {
				if !shouldCreate(t) {
					e.logger.Warn("file not found", "file", full)
					result.Errors = append(result.Errors, FileError{
						File:   file,
						Error:  "File not found",
						TaskID: t.TaskID,
					})
					continue
				}
				e.logger.Info("file not found, creating new file", "file", full)
				outcome = e.createFile(ctx, full, file, t, g)
			} else {
				outcome = e.editFile(ctx, full, file, t, g)
			}

			if outcome.errMsg != "" {
				result.Errors = append(result.Errors, FileError{
					File:       file,
					Error:      outcome.errMsg,
					TaskID:     t.TaskID,
					Validation: outcome.validation,
				})
				continue
			}

			result.Changes = append(result.Changes, Change{
				File:   file,
				Status: outcome.status,
				Diff:   outcome.diff,
				TaskID: t.TaskID,
			})
			if outcome.validation != nil {
				result.ValidationResults = append(result.ValidationResults, FileValidation{
					File:       file,
					Validation: outcome.validation,
					TaskID:     t.TaskID,
				})
			}
		}
	}

	result.TotalFiles = len(result.Changes)
	result.Success = len(result.Errors) == 0
	result.Stats = diffStats(result.Changes)
	return result
}

// shouldCreate reports whether a missing task file was meant to be
// created, judged by creation keywords across the task's changes,
// description, and notes.
func shouldCreate(t plan.Task) bool {
	text := strings.ToLower(strings.Join(t.Changes, " ") + " " + t.Task + " " + t.Notes)
	for _, kw := range creationKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// createFile generates content for a new file and writes it. The
// validator verdict is recorded but does not block a creation.
func (e *Editor) createFile(ctx context.Context, full, rel string, t plan.Task, g *knowledge.Graph) fileOutcome {
	if err := os.MkdirAll(filepath.Dir(full), 0750); err != nil {
		return fileOutcome{errMsg: err.Error()}
	}

	content := e.generateContent(ctx, full, rel, t, g)
	if content == "" {
		return fileOutcome{errMsg: "Failed to generate file content"}
	}

	verdict := e.check(ctx, rel, content)
	if verdict != nil && !verdict.Valid {
		e.logger.Warn("validation failed for created file",
			"file", rel, "reasons", strings.Join(verdict.FailureReasons(), "; "))
	}

	if err := atomicWrite(full, []byte(content), 0o644); err != nil {
		return fileOutcome{errMsg: err.Error()}
	}
	e.logger.Info("created new file", "file", full)

	return fileOutcome{
		status:     "created",
		diff:       unifiedDiff("", content, rel),
		validation: verdict,
	}
}

// editFile rewrites an existing file through the LLM. Unchanged output
// and validation blocks are reported as errors; nothing is written.
func (e *Editor) editFile(ctx context.Context, full, rel string, t plan.Task, g *knowledge.Graph) fileOutcome {
	originalBytes, err := os.ReadFile(full)
	if err != nil {
		return fileOutcome{errMsg: err.Error()}
	}
	original := string(originalBytes)

	modified := e.applyLLMEdit(ctx, full, rel, original, t, g)
	if modified == original {
		return fileOutcome{errMsg: "No changes applied"}
	}

	verdict := e.check(ctx, rel, modified)
	if verdict != nil && !verdict.Valid {
		return fileOutcome{
			errMsg:     "Validation failed: " + strings.Join(verdict.FailureReasons(), "; "),
			validation: verdict,
		}
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(full); err == nil {
		mode = info.Mode().Perm()
	}
	if err := atomicWrite(full, []byte(modified), mode); err != nil {
		return fileOutcome{errMsg: err.Error()}
	}

	return fileOutcome{
		status:     "modified",
		diff:       unifiedDiff(original, modified, rel),
		validation: verdict,
	}
}

// check runs the validator. A pipeline failure degrades to a
// permissive verdict carrying an INTERNAL-typed warning so a broken
// validator never blocks an edit.
func (e *Editor) check(ctx context.Context, rel, content string) *validate.Result {
	verdict, err := e.validator.Check(ctx, rel, []byte(content))
	if err != nil {
		e.logger.Warn("code validation error", "file", rel, "error", err)
		return &validate.Result{
			Valid: true,
			Warnings: []validate.Warning{{
				Type:     validate.WarnTypeInternal,
				File:     rel,
				Severity: validate.SeverityLow,
				Message:  "Validation check failed: " + err.Error(),
			}},
		}
	}
	if len(verdict.Warnings) > 0 {
		e.logger.Warn("code validation warnings", "file", rel, "count", len(verdict.Warnings))
	}
	return verdict
}

// applyLLMEdit asks the model for the full modified file. Any failure
// returns the original content, which the caller reports as "No
// changes applied".
func (e *Editor) applyLLMEdit(ctx context.Context, full, rel, original string, t plan.Task, g *knowledge.Graph) string {
	if e.client == nil {
		e.logger.Warn("no LLM configured, skipping edit", "file", rel)
		return original
	}

	prompt := editPrompt(full, original, t.Changes, frameworkInstruction(g, e.logger), editContext(g, rel))
	out, err := e.generate(ctx, prompt)
	if err != nil {
		e.logger.Error("LLM edit failed", "file", rel, "error", err)
		return original
	}
	return stripFences(out)
}

// generateContent asks the model for a complete new file. Empty on any
// failure.
func (e *Editor) generateContent(ctx context.Context, full, rel string, t plan.Task, g *knowledge.Graph) string {
	if e.client == nil {
		e.logger.Warn("no LLM configured, cannot generate file content", "file", rel)
		return ""
	}

	prompt := generatePrompt(full, t, frameworkInstruction(g, e.logger), createContext(g, rel))
	out, err := e.generate(ctx, prompt)
	if err != nil {
		e.logger.Error("LLM file generation failed", "file", rel, "error", err)
		return ""
	}
	return strings.TrimSpace(stripFences(out))
}

func (e *Editor) generate(ctx context.Context, prompt string) (string, error) {
	temp := editTemperature
	return e.client.Generate(ctx, prompt, llm.GenerationParams{Temperature: &temp})
}

// CommitChanges stages everything and commits with the configured
// identity. It returns the commit SHA, or "" when there is nothing to
// commit or the tree is not a repository.
func (e *Editor) CommitChanges(ctx context.Context, message string) (string, error) {
	if !e.isRepo {
		e.logger.Warn("not a git repository, skipping commit")
		return "", nil
	}

	sha, err := e.git.CommitAll(ctx, e.repoPath, message)
	if err != nil {
		e.logger.Error("commit failed", "error", err)
		return "", err
	}
	if sha == "" {
		e.logger.Info("nothing to commit")
		return "", nil
	}
	e.logger.Info("committed changes", "sha", sha)
	return sha, nil
}

// atomicWrite writes data to path via a temp file in the same
// directory and a rename, preserving mode.
func atomicWrite(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".edit-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// stripFences removes a wrapping Markdown code fence from an LLM
// completion. Content that does not start with a fence is returned
// unchanged.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
