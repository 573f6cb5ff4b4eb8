// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/atlas/services/knowledge/scan"
)

// DefaultDebounce is how long a Watcher waits after the last source
// change before firing. Long enough to ride out editor save bursts.
const DefaultDebounce = 500 * time.Millisecond

// Watcher marks a repository's in-process document stale when source
// files under it change, so the next load regenerates instead of
// serving the cached graph for the rest of the process lifetime.
//
// Only files the scanner would classify count: a pkg.json write or a
// build-output change never fires. The callback runs from a single
// goroutine, at most once per debounce window.
type Watcher struct {
	root     string
	onStale  func()
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	watching bool
}

// NewWatcher creates a staleness watcher for the repository at root.
// onStale is invoked after each debounced burst of source changes.
// debounce <= 0 uses DefaultDebounce; logger may be nil.
func NewWatcher(root string, onStale func(), debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:     root,
		onStale:  onStale,
		debounce: debounce,
		watcher:  fsw,
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

// Start registers the repository tree and begins watching. Watching
// stops when ctx is canceled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	go w.run(ctx)
	return nil
}

// Stop stops the watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching reports whether the watcher is active.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// addRecursive registers root and every non-pruned subdirectory.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && scan.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// ignored reports whether a change path falls under a pruned
// directory or is not a source file.
func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		rel = path
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if scan.SkipDir(part) {
			return true
		}
	}
	_, ok := scan.LanguageForPath(path)
	return !ok
}

// run consumes events, debounces them with a single timer, and fires
// the callback when the window closes quiet.
func (w *Watcher) run(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	arm := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
			timerC = timer.C
		} else {
			timer.Reset(w.debounce)
		}
	}
	disarm := func() {
		if timer != nil {
			timer.Stop()
		}
	}

	for {
		select {
		case <-ctx.Done():
			disarm()
			return
		case <-w.done:
			disarm()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				disarm()
				return
			}
			// New directories join the watch before filtering, so
			// files created inside them are seen.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !scan.SkipDir(filepath.Base(event.Name)) {
						w.watcher.Add(event.Name)
					}
					continue
				}
			}
			if w.ignored(event.Name) {
				continue
			}
			arm()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				disarm()
				return
			}
			w.logger.Warn("repository watch error", "root", w.root, "error", err)

		case <-timerC:
			w.logger.Info("repository changed, marking knowledge graph stale", "root", w.root)
			if w.onStale != nil {
				w.onStale()
			}
		}
	}
}
