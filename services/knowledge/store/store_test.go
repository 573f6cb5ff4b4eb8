// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/AleutianAI/atlas/services/knowledge"
	"github.com/AleutianAI/atlas/services/knowledge/git"
)

// requireGit skips tests when the git binary is unavailable.
func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

// initRepo creates a repository with one committed source file and
// returns its path and HEAD SHA.
func initRepo(t *testing.T) (string, string) {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	if err := git.Init(ctx, dir); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "main.py"), []byte("print('x')\n"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	d := git.New("Tester", "tester@example.com")
	sha, err := d.CommitAll(ctx, dir, "initial")
	if err != nil {
		t.Fatalf("CommitAll: %v", err)
	}
	return dir, sha
}

// testGraph builds a minimal valid document.
func testGraph(projectID, sha string) *knowledge.Graph {
	return &knowledge.Graph{
		Version:     knowledge.Version,
		GeneratedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		GitSHA:      sha,
		Project: knowledge.Project{
			ID:        projectID,
			Name:      projectID,
			RootPath:  "/tmp/" + projectID,
			Languages: []string{"python"},
			GitSHA:    sha,
		},
		Modules: []knowledge.Module{{
			ID:      "mod:main.py",
			Path:    "main.py",
			Kinds:   []string{},
			LOC:     1,
			Exports: []string{},
			Imports: []string{},
		}},
		Symbols:   []knowledge.Symbol{},
		Endpoints: []knowledge.Endpoint{},
		Edges:     []knowledge.Edge{},
	}
}

// ===== FileCache =====

func TestFileCacheMiss(t *testing.T) {
	cache := NewFileCache()
	_, err := cache.Load(context.Background(), t.TempDir())
	if !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Load on empty dir: got %v, want ErrCacheMiss", err)
	}
}

func TestFileCacheRoundTrip(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	dir, sha := initRepo(t)

	cache := NewFileCache()
	want := testGraph("proj", sha)
	if err := cache.Save(ctx, dir, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(cache.Path(dir)); err != nil {
		t.Fatalf("cache file not written: %v", err)
	}

	got, err := cache.Load(ctx, dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", got, want)
	}
}

func TestFileCacheStale(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	cache := NewFileCache()

	t.Run("sha mismatch", func(t *testing.T) {
		dir, _ := initRepo(t)
		if err := cache.Save(ctx, dir, testGraph("proj", "0000000000000000000000000000000000000000")); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if _, err := cache.Load(ctx, dir); !errors.Is(err, ErrCacheStale) {
			t.Fatalf("got %v, want ErrCacheStale", err)
		}
	})

	t.Run("no recorded sha", func(t *testing.T) {
		dir, _ := initRepo(t)
		if err := cache.Save(ctx, dir, testGraph("proj", "")); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if _, err := cache.Load(ctx, dir); !errors.Is(err, ErrCacheStale) {
			t.Fatalf("got %v, want ErrCacheStale", err)
		}
	})

	t.Run("not a git tree", func(t *testing.T) {
		dir := t.TempDir()
		if err := cache.Save(ctx, dir, testGraph("proj", "abc123")); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if _, err := cache.Load(ctx, dir); !errors.Is(err, ErrCacheStale) {
			t.Fatalf("got %v, want ErrCacheStale", err)
		}
	})
}

func TestFileCacheCorrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, CacheFileName), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := NewFileCache().Load(context.Background(), dir)
	if err == nil {
		t.Fatal("Load of corrupt cache succeeded")
	}
	if errors.Is(err, ErrCacheMiss) || errors.Is(err, ErrCacheStale) {
		t.Fatalf("corrupt cache misreported as %v", err)
	}
}

// ===== Manager =====

type fakeDB struct {
	graphs     map[string]*knowledge.Graph
	storeErr   error
	storeCalls int
	loadCalls  int
}

func (f *fakeDB) CheckStored(ctx context.Context, projectID string) bool {
	_, ok := f.graphs[projectID]
	return ok
}

func (f *fakeDB) Load(ctx context.Context, projectID string) (*knowledge.Graph, error) {
	f.loadCalls++
	g, ok := f.graphs[projectID]
	if !ok {
		return nil, ErrNotStored
	}
	return g, nil
}

func (f *fakeDB) Store(ctx context.Context, graph *knowledge.Graph) error {
	f.storeCalls++
	if f.storeErr != nil {
		return f.storeErr
	}
	if f.graphs == nil {
		f.graphs = make(map[string]*knowledge.Graph)
	}
	f.graphs[graph.Project.ID] = graph
	return nil
}

type fakeBuilder struct {
	graph *knowledge.Graph
	err   error
	calls int
}

func (f *fakeBuilder) Build(ctx context.Context, root string) (*knowledge.Graph, error) {
	f.calls++
	return f.graph, f.err
}

func TestLoadByProjectWithoutDatabase(t *testing.T) {
	m := NewManager(nil, nil, &fakeBuilder{}, nil)
	if _, err := m.LoadByProject(context.Background(), "proj"); !errors.Is(err, ErrNotStored) {
		t.Fatalf("got %v, want ErrNotStored", err)
	}
}

func TestManagerPrefersDatabase(t *testing.T) {
	want := testGraph("proj", "abc123")
	db := &fakeDB{graphs: map[string]*knowledge.Graph{"proj": want}}
	builder := &fakeBuilder{graph: testGraph("proj", "other")}
	m := NewManager(db, nil, builder, nil)

	got, err := m.Load(context.Background(), t.TempDir(), "proj")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Fatal("Load did not return the database document")
	}
	if builder.calls != 0 {
		t.Fatalf("builder called %d times for a stored project", builder.calls)
	}
}

func TestManagerFallsBackToFileCache(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	dir, sha := initRepo(t)

	want := testGraph("proj", sha)
	if err := NewFileCache().Save(ctx, dir, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	builder := &fakeBuilder{graph: testGraph("proj", sha)}
	m := NewManager(nil, nil, builder, nil)

	got, err := m.Load(ctx, dir, "proj")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if builder.calls != 0 {
		t.Fatalf("builder called %d times despite a fresh cache", builder.calls)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatal("cached document mismatch")
	}
}

func TestManagerRegeneratesAndWritesBack(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	fresh := testGraph("proj", "")
	db := &fakeDB{}
	builder := &fakeBuilder{graph: fresh}
	m := NewManager(db, nil, builder, nil)

	got, err := m.Load(ctx, dir, "proj")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != fresh {
		t.Fatal("Load did not return the regenerated document")
	}
	if builder.calls != 1 {
		t.Fatalf("builder called %d times, want 1", builder.calls)
	}
	if db.storeCalls != 1 {
		t.Fatalf("database Store called %d times, want 1", db.storeCalls)
	}
	if _, err := os.Stat(filepath.Join(dir, CacheFileName)); err != nil {
		t.Fatalf("regenerated document not cached: %v", err)
	}
}

func TestManagerRegeneratesOnStaleCache(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	dir, sha := initRepo(t)

	if err := NewFileCache().Save(ctx, dir, testGraph("proj", "0000000000000000000000000000000000000000")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	builder := &fakeBuilder{graph: testGraph("proj", sha)}
	m := NewManager(nil, nil, builder, nil)

	if _, err := m.Load(ctx, dir, "proj"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if builder.calls != 1 {
		t.Fatalf("builder called %d times for a stale cache, want 1", builder.calls)
	}
}

func TestManagerSurvivesWriteBackFailure(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db := &fakeDB{storeErr: errors.New("connection reset")}
	builder := &fakeBuilder{graph: testGraph("proj", "")}
	m := NewManager(db, nil, builder, nil)

	if _, err := m.Load(ctx, dir, "proj"); err != nil {
		t.Fatalf("Load failed on write-back error: %v", err)
	}
	if db.storeCalls != 1 {
		t.Fatalf("database Store called %d times, want 1", db.storeCalls)
	}
}

func TestManagerBuildFailure(t *testing.T) {
	buildErr := errors.New("parse failed")
	m := NewManager(nil, nil, &fakeBuilder{err: buildErr}, nil)

	_, err := m.Load(context.Background(), t.TempDir(), "proj")
	if !errors.Is(err, buildErr) {
		t.Fatalf("got %v, want the build error", err)
	}
}

// ===== Fresh =====

func TestFresh(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	dir, sha := initRepo(t)

	if !Fresh(ctx, dir, testGraph("proj", sha)) {
		t.Fatal("matching SHA reported stale")
	}
	if Fresh(ctx, dir, testGraph("proj", "0000000000000000000000000000000000000000")) {
		t.Fatal("mismatched SHA reported fresh")
	}
	if Fresh(ctx, dir, testGraph("proj", "")) {
		t.Fatal("document without SHA reported fresh")
	}
	if Fresh(ctx, dir, nil) {
		t.Fatal("nil document reported fresh")
	}
	if Fresh(ctx, t.TempDir(), testGraph("proj", sha)) {
		t.Fatal("non-git tree reported fresh")
	}
}
