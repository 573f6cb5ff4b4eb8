// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pr opens pull requests for agent branches against the GitHub
// API.
//
// The flow is fork-if-needed, push, open: when the authenticated user
// does not own the upstream repository a writable fork is ensured
// first and the branch pushed there, so the agent never needs write
// access to repositories it modifies.
//
// A missing token is not an error. The creator reports a skipped
// result and the orchestrator tells the user to open the PR manually;
// an unattended host without credentials must not fail the workflow it
// just finished verifying.
package pr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/awnumar/memguard"
	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"

	"github.com/AleutianAI/atlas/services/knowledge/git"
)

// ErrNoToken marks a creator constructed without credentials.
var ErrNoToken = errors.New("pr: host API token not configured")

// Result reports one pull request attempt.
type Result struct {
	Success bool   `json:"success"`
	Skipped bool   `json:"skipped,omitempty"`
	URL     string `json:"url,omitempty"`
	Number  int    `json:"number,omitempty"`
	State   string `json:"state,omitempty"`
	Error   string `json:"error,omitempty"`

	// UpstreamURL is always set when it could be determined, so a user
	// can open the PR manually after an API failure.
	UpstreamURL string `json:"upstream_url,omitempty"`
}

// ForkOutcome reports the fork-if-needed step.
type ForkOutcome struct {
	Owner        string
	CloneURL     string
	AlreadyOwned bool
}

// hostAPI is the slice of the hosting provider's API the creator
// needs. Narrowed to an interface so tests run without network access.
type hostAPI interface {
	AuthenticatedUser(ctx context.Context) (string, error)
	GetRepo(ctx context.Context, owner, name string) (*github.Repository, error)
	CreateFork(ctx context.Context, owner, name string) (*github.Repository, error)
	CreatePull(ctx context.Context, owner, name string, pull *github.NewPullRequest) (*github.PullRequest, error)
}

// Creator opens pull requests for one repository working tree.
type Creator struct {
	repoPath string
	git      *git.Driver
	api      hostAPI
	enclave  *memguard.Enclave
	logger   *slog.Logger
}

// New builds a Creator for the working tree at repoPath. The token is
// read from the GITHUB_TOKEN environment variable and sealed in a
// memguard enclave; it is only opened for the duration of a call. A
// missing token yields a creator whose Run reports a skipped result.
func New(repoPath string, d *git.Driver, logger *slog.Logger) *Creator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Creator{repoPath: repoPath, git: d, logger: logger}

	token := strings.TrimSpace(os.Getenv("GITHUB_TOKEN"))
	if token == "" || token == "your_github_token_here" {
		logger.Warn("GITHUB_TOKEN not set, PR creation will be skipped")
		return c
	}
	c.enclave = memguard.NewEnclave([]byte(token))
	return c
}

// client opens the enclave and builds an authenticated API client. The
// token copy inside the oauth2 transport lives only as long as the
// request cycle that uses it.
func (c *Creator) client(ctx context.Context) (hostAPI, error) {
	if c.api != nil {
		return c.api, nil
	}
	if c.enclave == nil {
		return nil, ErrNoToken
	}

	buf, err := c.enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("pr: opening token enclave: %w", err)
	}
	defer buf.Destroy()

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: buf.String()})
	return &githubAPI{client: github.NewClient(oauth2.NewClient(ctx, src))}, nil
}

// Run executes the full fork/push/open sequence for branch and returns
// the outcome. It never returns an error: failures land in the result
// with the upstream URL preserved.
func (c *Creator) Run(ctx context.Context, branch, title, body string) Result {
	upstream := normalizeRemoteURL(c.git.RemoteURL(ctx, c.repoPath, "origin"))
	owner, name := ParseRepoURL(upstream)

	if c.enclave == nil && c.api == nil {
		return Result{
			Skipped:     true,
			Error:       "GITHUB_TOKEN not configured",
			UpstreamURL: upstream,
		}
	}
	if owner == "" || name == "" {
		return Result{Error: "could not determine repository from origin remote", UpstreamURL: upstream}
	}

	api, err := c.client(ctx)
	if err != nil {
		return Result{Error: err.Error(), UpstreamURL: upstream}
	}

	fork, err := c.ensureFork(ctx, api, owner, name)
	if err != nil {
		c.logger.Error("fork step failed", "owner", owner, "repo", name, "error", err)
		return Result{Error: err.Error(), UpstreamURL: upstream}
	}

	remote := "origin"
	head := branch
	if !fork.AlreadyOwned {
		remote = "fork"
		head = fork.Owner + ":" + branch
		if err := c.git.SetRemote(ctx, c.repoPath, remote, fork.CloneURL); err != nil {
			return Result{Error: fmt.Sprintf("configuring fork remote: %v", err), UpstreamURL: upstream}
		}
	}
	if err := c.git.Push(ctx, c.repoPath, remote, branch); err != nil {
		return Result{Error: fmt.Sprintf("pushing branch: %v", err), UpstreamURL: upstream}
	}

	base := c.git.DefaultBranch(ctx, c.repoPath)
	pull, err := api.CreatePull(ctx, owner, name, &github.NewPullRequest{
		Title: github.String(title),
		Body:  github.String(body),
		Head:  github.String(head),
		Base:  github.String(base),
	})
	if err != nil {
		c.logger.Error("PR creation failed", "owner", owner, "repo", name, "error", err)
		return Result{Error: fmt.Sprintf("opening pull request: %v", err), UpstreamURL: upstream}
	}

	c.logger.Info("pull request created",
		"number", pull.GetNumber(), "url", pull.GetHTMLURL())
	return Result{
		Success:     true,
		URL:         pull.GetHTMLURL(),
		Number:      pull.GetNumber(),
		State:       pull.GetState(),
		UpstreamURL: upstream,
	}
}

// ensureFork makes sure the authenticated user has a writable copy of
// owner/name. Owning the upstream means no fork; an existing fork is
// reused; otherwise one is created, retrying the lookup on the
// already-exists race.
func (c *Creator) ensureFork(ctx context.Context, api hostAPI, owner, name string) (ForkOutcome, error) {
	user, err := api.AuthenticatedUser(ctx)
	if err != nil {
		return ForkOutcome{}, fmt.Errorf("resolving authenticated user: %w", err)
	}

	if strings.EqualFold(owner, user) {
		upstream, err := api.GetRepo(ctx, owner, name)
		if err != nil {
			return ForkOutcome{}, fmt.Errorf("fetching repository: %w", err)
		}
		return ForkOutcome{Owner: user, CloneURL: upstream.GetCloneURL(), AlreadyOwned: true}, nil
	}

	if fork := c.lookupFork(ctx, api, user, owner, name); fork != nil {
		return ForkOutcome{Owner: user, CloneURL: fork.GetCloneURL()}, nil
	}

	created, err := api.CreateFork(ctx, owner, name)
	if err != nil {
		// Forking is asynchronous; the API may also answer that the
		// fork already exists when two sessions race.
		var accepted *github.AcceptedError
		lower := strings.ToLower(err.Error())
		if !errors.As(err, &accepted) &&
			!strings.Contains(lower, "already exists") && !strings.Contains(lower, "already a fork") {
			return ForkOutcome{}, fmt.Errorf("creating fork: %w", err)
		}
		if created = c.lookupFork(ctx, api, user, owner, name); created == nil {
			return ForkOutcome{}, fmt.Errorf("fork reported in progress but not retrievable: %w", err)
		}
	}
	c.logger.Info("fork ensured", "fork", created.GetFullName())
	return ForkOutcome{Owner: user, CloneURL: created.GetCloneURL()}, nil
}

// lookupFork returns the user's fork of upstream owner/name, or nil.
func (c *Creator) lookupFork(ctx context.Context, api hostAPI, user, owner, name string) *github.Repository {
	repo, err := api.GetRepo(ctx, user, name)
	if err != nil {
		return nil
	}
	if repo.GetFork() && repo.GetParent().GetFullName() == owner+"/"+name {
		return repo
	}
	return nil
}

// sshRemoteRe matches the scp-like git@host:owner/repo.git form.
var sshRemoteRe = regexp.MustCompile(`^git@([^:]+):(.+)$`)

// normalizeRemoteURL rewrites SSH remotes to HTTPS so owner and
// repository parse uniformly.
func normalizeRemoteURL(url string) string {
	if m := sshRemoteRe.FindStringSubmatch(url); m != nil {
		return "https://" + m[1] + "/" + m[2]
	}
	return url
}

// ParseRepoURL extracts (owner, repo) from a GitHub remote URL in
// either HTTPS or SSH form. Both values are empty when the URL does
// not carry them.
func ParseRepoURL(url string) (owner, name string) {
	url = normalizeRemoteURL(url)
	idx := strings.Index(url, "github.com/")
	if idx < 0 {
		return "", ""
	}
	rest := strings.TrimSuffix(strings.Trim(url[idx+len("github.com/"):], "/"), ".git")
	parts := strings.Split(rest, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", ""
	}
	return parts[0], parts[1]
}

// githubAPI adapts the go-github client to hostAPI.
type githubAPI struct {
	client *github.Client
}

var _ hostAPI = (*githubAPI)(nil)

func (g *githubAPI) AuthenticatedUser(ctx context.Context) (string, error) {
	user, _, err := g.client.Users.Get(ctx, "")
	if err != nil {
		return "", err
	}
	return user.GetLogin(), nil
}

func (g *githubAPI) GetRepo(ctx context.Context, owner, name string) (*github.Repository, error) {
	repo, _, err := g.client.Repositories.Get(ctx, owner, name)
	return repo, err
}

func (g *githubAPI) CreateFork(ctx context.Context, owner, name string) (*github.Repository, error) {
	repo, _, err := g.client.Repositories.CreateFork(ctx, owner, name, nil)
	return repo, err
}

func (g *githubAPI) CreatePull(ctx context.Context, owner, name string, pull *github.NewPullRequest) (*github.PullRequest, error) {
	created, _, err := g.client.PullRequests.Create(ctx, owner, name, pull)
	return created, err
}
