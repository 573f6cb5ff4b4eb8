// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherIgnored(t *testing.T) {
	w := &Watcher{root: "/repo"}

	tests := []struct {
		path string
		want bool
	}{
		{"/repo/app/main.py", false},
		{"/repo/src/widget.ts", false},
		{"/repo/node_modules/lib/index.js", true},
		{"/repo/.git/HEAD", true},
		{"/repo/__pycache__/main.cpython-311.pyc", true},
		{"/repo/pkg.json", true},
		{"/repo/README.md", true},
		{"/repo/dist/bundle.js", true},
	}
	for _, tt := range tests {
		if got := w.ignored(tt.path); got != tt.want {
			t.Errorf("ignored(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestWatcherFiresOnSourceChange(t *testing.T) {
	dir := t.TempDir()
	appDir := filepath.Join(dir, "app")
	if err := os.MkdirAll(appDir, 0755); err != nil {
		t.Fatal(err)
	}

	fired := make(chan struct{}, 1)
	w, err := NewWatcher(dir, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}, 50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !w.IsWatching() {
		t.Fatal("watcher not active after Start")
	}

	if err := os.WriteFile(filepath.Join(appDir, "main.py"), []byte("print('x')\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("source change did not mark the graph stale")
	}
}

func TestWatcherIgnoresCacheFileWrites(t *testing.T) {
	dir := t.TempDir()

	fired := make(chan struct{}, 1)
	w, err := NewWatcher(dir, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}, 50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, CacheFileName), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-fired:
		t.Fatal("cache file write marked the graph stale")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), nil, 0, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	w.Stop()
	w.Stop()
	if w.IsWatching() {
		t.Fatal("watcher still active after Stop")
	}
}
