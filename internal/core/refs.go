package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Branches is the branch registry (spec.md §4.5): named refs to a head
// snapshot CID, plus the single current-branch pointer. Backed by one YAML
// file per branch under branchesDir, and a YAML scalar at currentPath,
// mirroring the teacher's one-ref-per-file discipline (internal/gitcore
// refs.go) generalized away from Git's heads/tags/packed-refs/HEAD model.
type Branches struct {
	dir         string
	currentPath string
	current     string
	heads       map[string]CID
}

// LoadBranches reads every branch file under dir and the current-branch
// pointer at currentPath.
func LoadBranches(dir, currentPath string) (*Branches, error) {
	b := &Branches{dir: dir, currentPath: currentPath, heads: make(map[string]CID)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return b, b.loadCurrent()
		}
		return nil, fmt.Errorf("core: read branches dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		data, err := os.ReadFile(filepath.Join(dir, name)) //nolint:gosec // workspace-local metadata path
		if err != nil {
			return nil, fmt.Errorf("core: read branch %s: %w", name, err)
		}
		var s string
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("core: parse branch %s: %w", name, err)
		}
		id, err := ParseCID(s)
		if err != nil {
			return nil, fmt.Errorf("core: branch %s head: %w", name, err)
		}
		b.heads[name] = id
	}
	if err := b.loadCurrent(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Branches) loadCurrent() error {
	data, err := os.ReadFile(b.currentPath) //nolint:gosec // workspace-local metadata path
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("core: read current branch: %w", err)
	}
	var s string
	if err := yaml.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("core: parse current branch: %w", err)
	}
	b.current = s
	return nil
}

func validateBranchName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("core: invalid branch name %q", name)
	}
	return nil
}

// Exists reports whether name names a registered branch.
func (b *Branches) Exists(name string) bool {
	_, ok := b.heads[name]
	return ok
}

// Create registers a new branch with the given head (Empty for a branch
// with no snapshots yet). It fails with ErrBranchExists if name is taken.
func (b *Branches) Create(name string, head CID) error {
	if err := validateBranchName(name); err != nil {
		return err
	}
	if b.Exists(name) {
		return fmt.Errorf("%w: %s", ErrBranchExists, name)
	}
	b.heads[name] = head
	return b.saveBranch(name)
}

// Head returns the head CID of name, or Empty if the branch has no
// snapshots yet. Returns ErrUnknownBranch if name is not registered.
func (b *Branches) Head(name string) (CID, error) {
	id, ok := b.heads[name]
	if !ok {
		return Empty, fmt.Errorf("%w: %s", ErrUnknownBranch, name)
	}
	return id, nil
}

// SetHead moves name's head pointer to id.
func (b *Branches) SetHead(name string, id CID) error {
	if !b.Exists(name) {
		return fmt.Errorf("%w: %s", ErrUnknownBranch, name)
	}
	b.heads[name] = id
	return b.saveBranch(name)
}

// List returns all registered branch names in sorted order.
func (b *Branches) List() []string {
	names := make([]string, 0, len(b.heads))
	for n := range b.heads {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Delete removes a branch. Deleting the current branch is forbidden.
func (b *Branches) Delete(name string) error {
	if !b.Exists(name) {
		return fmt.Errorf("%w: %s", ErrUnknownBranch, name)
	}
	if name == b.current {
		return fmt.Errorf("%w: %s", ErrCannotDeleteCurrentBranch, name)
	}
	delete(b.heads, name)
	path := filepath.Join(b.dir, name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("core: delete branch %s: %w", name, err)
	}
	return nil
}

// Current returns the current branch name.
func (b *Branches) Current() string {
	return b.current
}

// SetCurrent updates the current-branch pointer. name must already exist.
func (b *Branches) SetCurrent(name string) error {
	if !b.Exists(name) {
		return fmt.Errorf("%w: %s", ErrUnknownBranch, name)
	}
	b.current = name
	return atomicWriteYAML(b.currentPath, name)
}

func (b *Branches) saveBranch(name string) error {
	return atomicWriteYAML(filepath.Join(b.dir, name), b.heads[name].String())
}
