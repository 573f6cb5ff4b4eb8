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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AleutianAI/atlas/services/knowledge"
	"github.com/AleutianAI/atlas/services/knowledge/git"
)

// CacheFileName is the document's filename inside the repository.
const CacheFileName = "pkg.json"

// FileCache reads and writes the per-repository document file. A
// cached document is valid only while the repository HEAD matches the
// SHA recorded at generation time; repositories without git history
// never validate, so they regenerate on every load.
type FileCache struct{}

// NewFileCache returns a FileCache.
func NewFileCache() *FileCache {
	return &FileCache{}
}

// Path returns the cache file location for a repository.
func (c *FileCache) Path(repoPath string) string {
	return filepath.Join(repoPath, CacheFileName)
}

// Load reads and validates the cached document. It returns
// ErrCacheMiss when no file exists and ErrCacheStale when the
// recorded SHA is absent or no longer matches HEAD.
func (c *FileCache) Load(ctx context.Context, repoPath string) (*knowledge.Graph, error) {
	data, err := os.ReadFile(c.Path(repoPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("store: read cache: %w", err)
	}

	var graph knowledge.Graph
	if err := json.Unmarshal(data, &graph); err != nil {
		return nil, fmt.Errorf("store: decode cache: %w", err)
	}

	if graph.GitSHA == "" {
		return nil, ErrCacheStale
	}
	sha, err := git.HeadSHA(ctx, repoPath)
	if err != nil || sha != graph.GitSHA {
		return nil, ErrCacheStale
	}
	return &graph, nil
}

// Save writes the document atomically: a temp file in the same
// directory, fsynced, then renamed over the target.
func (c *FileCache) Save(ctx context.Context, repoPath string, graph *knowledge.Graph) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(graph, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode cache: %w", err)
	}

	target := c.Path(repoPath)
	tmp, err := os.CreateTemp(repoPath, CacheFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("store: create temp cache: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store: write cache: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store: sync cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: close cache: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: publish cache: %w", err)
	}
	return nil
}
