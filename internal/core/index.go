package core

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// IndexEntry is the per-path triple of CIDs the index tracks (spec.md §3).
type IndexEntry struct {
	Wdir  CID `yaml:"wdir"`
	Stage CID `yaml:"stage"`
	Repo  CID `yaml:"repo"`
}

// Index is the staging state machine (spec.md §4.4): a mapping from
// workspace-relative path to IndexEntry, persisted as YAML between
// invocations. The file is a mapping with a single "entries" key whose
// value maps each path to its triple; the path mapping is not at the top
// level of the file.
type Index struct {
	Entries map[string]IndexEntry `yaml:"entries"`
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{Entries: make(map[string]IndexEntry)}
}

// LoadIndex reads the index from path, returning an empty index if the
// file does not exist yet.
func LoadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path) //nolint:gosec // workspace-local metadata path
	if os.IsNotExist(err) {
		return NewIndex(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("core: read index: %w", err)
	}
	idx := NewIndex()
	if err := yaml.Unmarshal(data, idx); err != nil {
		return nil, fmt.Errorf("core: parse index: %w", err)
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]IndexEntry)
	}
	return idx, nil
}

// Save persists the index to path atomically (temp file + rename, per
// spec.md §5's ordering guarantees).
func (idx *Index) Save(path string) error {
	return atomicWriteYAML(path, idx)
}

// DerivedSets is the set of path classifications the index derives on
// every Update (spec.md §4.4).
type DerivedSets struct {
	Modified   []string
	Staged     []string
	Unsnapshot []string
	Untracked  []string
	Deleted    []string
}

// Derive recomputes the derived sets from the current entries without
// touching the working directory.
func (idx *Index) Derive() DerivedSets {
	var sets DerivedSets
	for path, e := range idx.Entries {
		wdirAbsent := e.Wdir.IsEmpty()

		// modified = wdir != stage, or (stage empty and wdir != repo)
		if e.Stage.IsEmpty() {
			if !e.Wdir.Equal(e.Repo) {
				sets.Modified = append(sets.Modified, path)
			}
		} else if !e.Wdir.Equal(e.Stage) {
			sets.Modified = append(sets.Modified, path)
		}

		// staged = stage nonempty and stage != repo
		if !e.Stage.IsEmpty() && !e.Stage.Equal(e.Repo) {
			sets.Staged = append(sets.Staged, path)
		}

		// untracked = repo empty and stage empty
		if e.Repo.IsEmpty() && e.Stage.IsEmpty() {
			sets.Untracked = append(sets.Untracked, path)
		}

		// deleted = wdir absent and repo nonempty
		if wdirAbsent && !e.Repo.IsEmpty() {
			sets.Deleted = append(sets.Deleted, path)
		}
	}
	// unsnapshot is defined as staged (spec.md §4.4).
	sets.Unsnapshot = sets.Staged
	return sets
}

// Update rescans the working directory, recomputing wdir hashes for every
// path the index or the working tree knows about, while preserving stage
// and repo. It returns the refreshed derived sets.
func (idx *Index) Update(wd WorkingDirectory, store ObjectStore) (DerivedSets, error) {
	seen := make(map[string]bool)

	err := wd.Walk(func(path string) error {
		seen[path] = true
		data, err := wd.Read(path)
		if err != nil {
			return fmt.Errorf("core: read %s: %w", path, err)
		}
		id, err := NewCID(data)
		if err != nil {
			return err
		}
		e := idx.Entries[path]
		e.Wdir = id
		idx.Entries[path] = e
		return nil
	})
	if err != nil {
		return DerivedSets{}, err
	}

	// Paths tracked by the index but no longer present on disk: wdir
	// becomes the empty sentinel, so Derive() reports them as deleted.
	for path, e := range idx.Entries {
		if !seen[path] {
			e.Wdir = Empty
			idx.Entries[path] = e
		}
	}

	return idx.Derive(), nil
}

// Stage hashes the current on-disk content of each path, puts the bytes
// into the object store as a prospective File blob, and records the
// resulting CID as the entry's stage slot.
func (idx *Index) Stage(paths []string, wd WorkingDirectory, store ObjectStore) error {
	for _, path := range paths {
		data, err := wd.Read(path)
		if err != nil {
			return fmt.Errorf("core: read %s: %w", path, err)
		}
		id, err := store.PutBlob(data)
		if err != nil {
			return fmt.Errorf("core: stage %s: %w", path, err)
		}
		e := idx.Entries[path]
		e.Wdir = id
		e.Stage = id
		idx.Entries[path] = e
	}
	return nil
}

// Reinitialize replaces the index from tree: for every file reachable
// under tree, repo = stage = wdir = the file's link CID. Called by
// checkout/merge once the working directory has been reconciled.
func (idx *Index) Reinitialize(tree *Tree, store ObjectStore) error {
	next := make(map[string]IndexEntry)
	if tree != nil {
		if err := collectFiles(tree, "", store, next); err != nil {
			return err
		}
	}
	idx.Entries = next
	return nil
}

func collectFiles(t *Tree, prefix string, store ObjectStore, out map[string]IndexEntry) error {
	for _, child := range t.Children {
		path := child.Name
		if prefix != "" {
			path = prefix + "/" + child.Name
		}
		obj, err := store.GetNode(child.CID)
		if err != nil {
			return fmt.Errorf("core: resolve %s: %w", path, err)
		}
		switch o := obj.(type) {
		case *File:
			out[path] = IndexEntry{Wdir: o.Link, Stage: o.Link, Repo: o.Link}
		case *Tree:
			if err := collectFiles(o, path, store, out); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: expected file or tree at %s", ErrCorruptObject, path)
		}
	}
	return nil
}

// atomicWriteYAML marshals v to YAML and writes it to path via a temp file
// in the same directory followed by rename, per spec.md §5.
func atomicWriteYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("core: marshal %s: %w", path, err)
	}
	return atomicWrite(path, data)
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("core: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("core: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("core: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("core: close %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("core: rename into %s: %w", path, err)
	}
	return nil
}
