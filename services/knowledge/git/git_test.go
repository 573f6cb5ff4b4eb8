// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// requireGit skips tests when the git binary is unavailable.
func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

// initRepo creates a repository with one committed file and returns
// its path.
func initRepo(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	if err := Init(ctx, dir); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\n"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	d := New("Tester", "tester@example.com")
	sha, err := d.CommitAll(ctx, dir, "initial")
	if err != nil {
		t.Fatalf("CommitAll: %v", err)
	}
	if sha == "" {
		t.Fatal("CommitAll returned empty SHA for a non-empty commit")
	}
	return dir
}

func TestHeadSHANotARepository(t *testing.T) {
	requireGit(t)

	_, err := HeadSHA(context.Background(), t.TempDir())
	if err != ErrNotRepository {
		t.Fatalf("HeadSHA on plain dir: got %v, want ErrNotRepository", err)
	}
}

func TestHeadSHAStableUntilCommit(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	dir := initRepo(t)

	first, err := HeadSHA(ctx, dir)
	if err != nil {
		t.Fatalf("HeadSHA: %v", err)
	}
	second, err := HeadSHA(ctx, dir)
	if err != nil {
		t.Fatalf("HeadSHA: %v", err)
	}
	if first != second {
		t.Fatalf("HEAD changed without a commit: %s vs %s", first, second)
	}

	if err := os.WriteFile(filepath.Join(dir, "b.txt"), []byte("two\n"), 0644); err != nil {
		t.Fatal(err)
	}
	d := New("Tester", "tester@example.com")
	sha, err := d.CommitAll(ctx, dir, "second")
	if err != nil {
		t.Fatalf("CommitAll: %v", err)
	}
	if sha == first {
		t.Fatal("new commit did not move HEAD")
	}
}

func TestCommitAllNothingToCommit(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	dir := initRepo(t)

	d := New("Tester", "tester@example.com")
	sha, err := d.CommitAll(ctx, dir, "empty")
	if err != nil {
		t.Fatalf("CommitAll on clean tree: %v", err)
	}
	if sha != "" {
		t.Fatalf("CommitAll on clean tree returned SHA %q, want empty", sha)
	}
}

func TestCheckoutBranch(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	dir := initRepo(t)
	d := New("Tester", "tester@example.com")

	if err := d.CheckoutBranch(ctx, dir, "feat/agent-12345678"); err != nil {
		t.Fatalf("CheckoutBranch create: %v", err)
	}
	branch, err := d.CurrentBranch(ctx, dir)
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "feat/agent-12345678" {
		t.Fatalf("on branch %q, want feat/agent-12345678", branch)
	}

	// Re-checkout of an existing branch must not fail.
	if err := d.CheckoutBranch(ctx, dir, "feat/agent-12345678"); err != nil {
		t.Fatalf("CheckoutBranch existing: %v", err)
	}
}

func TestDefaultBranchPrefersMain(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	dir := initRepo(t)
	d := New("Tester", "tester@example.com")

	got := d.DefaultBranch(ctx, dir)
	if got != "main" && got != "master" {
		t.Fatalf("DefaultBranch = %q, want main or master", got)
	}
}

func TestCloneIntoExistingDirFails(t *testing.T) {
	requireGit(t)
	d := New("", "")

	dest := t.TempDir() // already exists
	err := d.Clone(context.Background(), "https://example.invalid/repo.git", dest)
	if err == nil {
		t.Fatal("Clone into existing directory succeeded, want error")
	}
}

func TestIsRepository(t *testing.T) {
	requireGit(t)

	if IsRepository(t.TempDir()) {
		t.Fatal("plain temp dir reported as repository")
	}
	if !IsRepository(initRepo(t)) {
		t.Fatal("initialized repo not reported as repository")
	}
}
