// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package git drives the git binary for the operations the agent
// needs: resolving HEAD for cache validation, cloning target
// repositories, and the branch/commit/push cycle of a code change.
//
// Every call shells out with a context so shutdown cancels in-flight
// subprocesses. Nothing here parses .git internals; the binary is the
// source of truth.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// revParseTimeout bounds HEAD resolution so cache validation on a
// damaged repository cannot hang a build.
const revParseTimeout = 5 * time.Second

var (
	// ErrNotRepository is returned for paths outside a git working tree.
	ErrNotRepository = errors.New("git: not a git repository")

	// ErrCloneFailed wraps clone failures; the orchestrator aborts the
	// turn on it.
	ErrCloneFailed = errors.New("git: clone failed")
)

// Driver runs git commands in a working tree.
//
// Thread Safety:
//
//	Safe for concurrent use; the driver holds only configuration.
//	Concurrent mutations of the same working tree are the caller's
//	problem, as they are with the git binary itself.
type Driver struct {
	// UserName and UserEmail set the committer identity per command
	// (-c user.name/-c user.email) so global git config never leaks
	// into agent commits.
	UserName  string
	UserEmail string
}

// New returns a Driver committing as the given identity. Empty values
// fall back to "Agent" / "agent@example.com".
func New(userName, userEmail string) *Driver {
	if userName == "" {
		userName = "Agent"
	}
	if userEmail == "" {
		userEmail = "agent@example.com"
	}
	return &Driver{UserName: userName, UserEmail: userEmail}
}

// run executes git with args in dir and returns trimmed stdout.
func run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", args[0], msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// IsRepository reports whether path is inside a git working tree.
func IsRepository(path string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), revParseTimeout)
	defer cancel()
	out, err := run(ctx, path, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// HeadSHA resolves the current HEAD commit of the repository at path.
// It returns ErrNotRepository when path is not a git working tree, so
// callers can distinguish "no SHA" from a real failure.
func HeadSHA(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, revParseTimeout)
	defer cancel()

	out, err := run(ctx, path, "rev-parse", "HEAD")
	if err != nil {
		return "", ErrNotRepository
	}
	return out, nil
}

// Clone clones url into dest. The parent directory is created; an
// existing dest is an error (callers skip the clone when the checkout
// already exists).
func (d *Driver) Clone(ctx context.Context, url, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("%w: destination %s already exists", ErrCloneFailed, dest)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return fmt.Errorf("%w: %v", ErrCloneFailed, err)
	}
	if _, err := run(ctx, filepath.Dir(dest), "clone", url, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrCloneFailed, err)
	}
	return nil
}

// CurrentBranch returns the checked-out branch name.
func (d *Driver) CurrentBranch(ctx context.Context, repo string) (string, error) {
	return run(ctx, repo, "rev-parse", "--abbrev-ref", "HEAD")
}

// BranchExists reports whether the local branch exists in repo.
func (d *Driver) BranchExists(ctx context.Context, repo, branch string) bool {
	_, err := run(ctx, repo, "rev-parse", "--verify", "refs/heads/"+branch)
	return err == nil
}

// CheckoutBranch switches to branch, creating it when it does not
// exist yet. Re-running an interrupted edit lands on the same branch.
func (d *Driver) CheckoutBranch(ctx context.Context, repo, branch string) error {
	if d.BranchExists(ctx, repo, branch) {
		_, err := run(ctx, repo, "checkout", branch)
		return err
	}
	_, err := run(ctx, repo, "checkout", "-b", branch)
	return err
}

// CommitAll stages every change in repo and commits it with the
// driver's identity. It returns the new commit SHA, or "" with a nil
// error when there was nothing to commit.
func (d *Driver) CommitAll(ctx context.Context, repo, message string) (string, error) {
	if _, err := run(ctx, repo, "add", "-A"); err != nil {
		return "", err
	}

	status, err := run(ctx, repo, "status", "--porcelain")
	if err != nil {
		return "", err
	}
	if status == "" {
		return "", nil
	}

	_, err = run(ctx, repo,
		"-c", "user.name="+d.UserName,
		"-c", "user.email="+d.UserEmail,
		"commit", "-m", message)
	if err != nil {
		return "", err
	}
	return HeadSHA(ctx, repo)
}

// Push pushes branch to remote, setting the upstream so follow-up
// pushes of the same branch need no arguments.
func (d *Driver) Push(ctx context.Context, repo, remote, branch string) error {
	_, err := run(ctx, repo, "push", "-u", remote, branch)
	return err
}

// RemoteURL returns the fetch URL of remote, or "" when the remote is
// not configured.
func (d *Driver) RemoteURL(ctx context.Context, repo, remote string) string {
	out, err := run(ctx, repo, "remote", "get-url", remote)
	if err != nil {
		return ""
	}
	return out
}

// SetRemote points remote at url, adding it when missing. Used to
// retarget pushes at a fork.
func (d *Driver) SetRemote(ctx context.Context, repo, remote, url string) error {
	if d.RemoteURL(ctx, repo, remote) == "" {
		_, err := run(ctx, repo, "remote", "add", remote, url)
		return err
	}
	_, err := run(ctx, repo, "remote", "set-url", remote, url)
	return err
}

// DefaultBranch picks the base branch for a pull request: main when it
// exists, then master, then whatever HEAD the origin remote reports,
// and finally "main" as the conventional fallback.
func (d *Driver) DefaultBranch(ctx context.Context, repo string) string {
	for _, name := range []string{"main", "master"} {
		if d.BranchExists(ctx, repo, name) {
			return name
		}
	}
	if out, err := run(ctx, repo, "symbolic-ref", "refs/remotes/origin/HEAD"); err == nil {
		if i := strings.LastIndex(out, "/"); i >= 0 && i < len(out)-1 {
			return out[i+1:]
		}
	}
	return "main"
}

// Init initializes a new repository at path with an initial branch of
// main. Test helper for exercising the driver without network access.
func Init(ctx context.Context, path string) error {
	if err := os.MkdirAll(path, 0750); err != nil {
		return err
	}
	if _, err := run(ctx, path, "init", "--initial-branch=main"); err != nil {
		// Older git lacks --initial-branch.
		_, err = run(ctx, path, "init")
		return err
	}
	return nil
}
