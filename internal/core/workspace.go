package core

import (
	"fmt"
	"path/filepath"
	"time"
)

// Layout names the metadata paths inside a workspace's .pando directory
// (spec.md §6). Every path is joined onto Root.
type Layout struct {
	Root         string
	MetaDir      string
	ObjectsDir   string
	IndexPath    string
	CurrentPath  string
	ConfigPath   string
	BranchesDir  string
	LockPath     string
}

// NewLayout derives the standard .pando/ layout under root.
func NewLayout(root string) Layout {
	meta := filepath.Join(root, ".pando")
	return Layout{
		Root:        root,
		MetaDir:     meta,
		ObjectsDir:  filepath.Join(meta, "ipfs"),
		IndexPath:   filepath.Join(meta, "index"),
		CurrentPath: filepath.Join(meta, "current"),
		ConfigPath:  filepath.Join(meta, "config"),
		BranchesDir: filepath.Join(meta, "branches"),
		LockPath:    filepath.Join(meta, "lock"),
	}
}

// DefaultBranch is the branch created by Init.
const DefaultBranch = "master"

// Workspace ties together the object store, working-directory adapter,
// staging index, and branch registry into the operations a caller (the
// CLI, a test) actually invokes. It holds no process-wide state — every
// field is workspace-local (spec.md §9 "Global mutable config").
type Workspace struct {
	Layout   Layout
	Store    ObjectStore
	WD       WorkingDirectory
	Index    *Index
	Branches *Branches
	Merger   TextMerger
}

// Open loads an already-initialized workspace's metadata.
func Open(layout Layout, store ObjectStore, wd WorkingDirectory, merger TextMerger) (*Workspace, error) {
	idx, err := LoadIndex(layout.IndexPath)
	if err != nil {
		return nil, err
	}
	branches, err := LoadBranches(layout.BranchesDir, layout.CurrentPath)
	if err != nil {
		return nil, err
	}
	if branches.Current() == "" {
		return nil, ErrNotInitialized
	}
	return &Workspace{Layout: layout, Store: store, WD: wd, Index: idx, Branches: branches, Merger: merger}, nil
}

// Init creates a brand-new workspace: an empty index, a single branch
// (DefaultBranch) with an empty head, set as current.
func Init(layout Layout, store ObjectStore, wd WorkingDirectory, merger TextMerger) (*Workspace, error) {
	branches, err := LoadBranches(layout.BranchesDir, layout.CurrentPath)
	if err != nil {
		return nil, err
	}
	if branches.Current() != "" {
		return nil, ErrAlreadyInitialized
	}
	if err := branches.Create(DefaultBranch, Empty); err != nil {
		return nil, err
	}
	if err := branches.SetCurrent(DefaultBranch); err != nil {
		return nil, err
	}
	idx := NewIndex()
	if err := idx.Save(layout.IndexPath); err != nil {
		return nil, err
	}
	return &Workspace{Layout: layout, Store: store, WD: wd, Index: idx, Branches: branches, Merger: merger}, nil
}

// Status rescans the working directory and returns the refreshed derived
// sets, persisting the refreshed index.
func (w *Workspace) Status() (DerivedSets, error) {
	sets, err := w.Index.Update(w.WD, w.Store)
	if err != nil {
		return DerivedSets{}, err
	}
	if err := w.Index.Save(w.Layout.IndexPath); err != nil {
		return DerivedSets{}, err
	}
	return sets, nil
}

// Stage hashes and stores the given paths' current content, recording them
// in the index's stage slot.
func (w *Workspace) Stage(paths []string) error {
	if err := w.Index.Stage(paths, w.WD, w.Store); err != nil {
		return err
	}
	return w.Index.Save(w.Layout.IndexPath)
}

// Snapshot builds a tree from the currently staged content and records a
// new Snapshot object as the current branch's head.
func (w *Workspace) Snapshot(author, message string, now time.Time) (CID, error) {
	sets := w.Index.Derive()
	if len(sets.Unsnapshot) == 0 {
		return Empty, ErrNothingToSnapshot
	}

	_, treeCID, err := BuildTree(w.Index, w.Store)
	if err != nil {
		return Empty, err
	}

	current := w.Branches.Current()
	head, err := w.Branches.Head(current)
	if err != nil {
		return Empty, err
	}

	var parents []CID
	if !head.IsEmpty() {
		parents = []CID{head}
	}

	snap := &Snapshot{
		Author:    author,
		Message:   message,
		Tree:      treeCID,
		Parents:   parents,
		Timestamp: now.Unix(),
	}
	snapCID, err := w.Store.PutNode(snap)
	if err != nil {
		return Empty, err
	}
	if err := w.Branches.SetHead(current, snapCID); err != nil {
		return Empty, err
	}
	if err := w.Index.Save(w.Layout.IndexPath); err != nil {
		return Empty, err
	}
	return snapCID, nil
}

// BranchCreate registers a new branch at the current head.
func (w *Workspace) BranchCreate(name string) error {
	head, err := w.Branches.Head(w.Branches.Current())
	if err != nil {
		return err
	}
	return w.Branches.Create(name, head)
}

// preflight enforces the dirty-workspace guard shared by checkout and
// merge (spec.md §4.8/§4.9 and §8 property 10).
func (w *Workspace) preflight() error {
	sets, err := w.Index.Update(w.WD, w.Store)
	if err != nil {
		return err
	}
	if len(sets.Modified) > 0 || len(sets.Unsnapshot) > 0 {
		return &DirtyWorkspaceError{Modified: sets.Modified, Unsnapshot: sets.Unsnapshot}
	}
	return nil
}

// Log walks the snapshot DAG from branch's head along first parents, newest
// first, stopping after limit snapshots when limit > 0 (supplemented
// feature, SPEC_FULL.md §12).
func (w *Workspace) Log(branch string, limit int) ([]*Snapshot, []CID, error) {
	head, err := w.Branches.Head(branch)
	if err != nil {
		return nil, nil, err
	}
	var snaps []*Snapshot
	var ids []CID
	cur := head
	for !cur.IsEmpty() && (limit <= 0 || len(snaps) < limit) {
		obj, err := w.Store.GetNode(cur)
		if err != nil {
			return nil, nil, err
		}
		snap, ok := obj.(*Snapshot)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s is not a snapshot", ErrCorruptObject, cur)
		}
		snaps = append(snaps, snap)
		ids = append(ids, cur)
		if len(snap.Parents) == 0 {
			break
		}
		cur = snap.Parents[0]
	}
	return snaps, ids, nil
}
