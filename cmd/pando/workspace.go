package main

import (
	"fmt"
	"os"

	"github.com/pandonetwork/pando/internal/blockstore"
	"github.com/pandonetwork/pando/internal/config"
	"github.com/pandonetwork/pando/internal/core"
	"github.com/pandonetwork/pando/internal/lockfile"
	"github.com/pandonetwork/pando/internal/textmerge"
	"github.com/pandonetwork/pando/internal/workspace"
)

// openWorkspace wires up the default adapters (disk blockstore, local
// working directory, line-merge text merger) and opens an
// already-initialized workspace rooted at the current directory.
func openWorkspace() (*core.Workspace, error) {
	root, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	layout := core.NewLayout(root)
	store, err := blockstore.Open(layout.ObjectsDir)
	if err != nil {
		return nil, err
	}
	wd := workspace.New(root)
	return core.Open(layout, store, wd, textmerge.New())
}

// withLock acquires the workspace metadata lock for the duration of fn,
// matching the single-writer discipline of SPEC_FULL.md §10.6.
func withLock(layout core.Layout, fn func() error) error {
	unlock, err := lockfile.Lock(layout.LockPath)
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer unlock()
	return fn()
}

// withLockShared acquires the workspace metadata lock in shared mode for
// the duration of fn, for read-only commands (status, log, show); Status
// still rewrites the on-disk index cache (SPEC_FULL.md §10.6).
func withLockShared(layout core.Layout, fn func() error) error {
	unlock, err := lockfile.LockShared(layout.LockPath)
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer unlock()
	return fn()
}

// authorName resolves the snapshot author: the workspace config if set,
// else $USER, else "unknown".
func authorName(layout core.Layout) string {
	cfg, err := config.Load(layout.ConfigPath)
	if err == nil && cfg.Author != "" {
		return cfg.Author
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}
